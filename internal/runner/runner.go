// Package runner declares the interface the orchestration core
// consumes from the runner agent that executes on a provisioned
// instance: a best-effort graceful stop signal and a status poll (spec
// §6 "Runner-agent interface"). No transport is implemented here; the
// core depends only on the interface.
package runner

import (
	"context"

	"github.com/skyfleet/orchestrator/internal/domain"
)

// ExitDisposition describes how a polled job's process exited.
type ExitDisposition string

const (
	ExitDispositionRunning ExitDisposition = "RUNNING"
	ExitDispositionSuccess ExitDisposition = "SUCCESS"
	ExitDispositionFailure ExitDisposition = "FAILURE"
)

// Status is what PollStatus reports back about a job's runner process.
type Status struct {
	Disposition ExitDisposition
	ExitCode    *int
	Message     string
}

// Agent is the capability the runner exposes over whatever transport
// connects the control plane to a provisioned instance.
type Agent interface {
	// Stop sends a best-effort graceful stop signal to job's runner
	// process. Network failures are logged by the caller and never
	// block a state transition (spec §4.4 step 4).
	Stop(ctx context.Context, job *domain.Job) error

	// PollStatus returns job's current progress and exit disposition.
	PollStatus(ctx context.Context, job *domain.Job) (Status, error)
}
