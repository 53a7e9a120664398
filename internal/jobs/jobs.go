// Package jobs materializes jobs from a run specification and drives
// the per-job state transitions the reconciler and run termination
// flow depend on (spec §4.5).
package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skyfleet/orchestrator/internal/domain"
)

// FromRunSpec materializes one Job per configured port/command unit for
// replicaNum, mirroring get_jobs_from_run_spec: today every
// configuration produces exactly one job per replica (spec names no
// multi-job-per-replica fan-out), but the signature keeps replicaNum
// explicit so a future configuration type can extend it without
// changing callers.
func FromRunSpec(runID, projectID string, spec domain.RunSpec, replicaNum int) []*domain.Job {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:              uuid.NewString(),
		RunID:           runID,
		ProjectID:       projectID,
		ReplicaNum:      replicaNum,
		JobNum:          0,
		SubmissionNum:   0,
		JobName:         fmt.Sprintf("job-%d", replicaNum),
		SubmittedAt:     now,
		LastProcessedAt: now,
		Status:          domain.JobStatusSubmitted,
		JobSpec: domain.JobSpec{
			Image:        spec.Configuration.Image,
			Commands:     spec.Configuration.Commands,
			Env:          spec.Configuration.Env,
			Ports:        spec.Configuration.Ports,
			Requirements: spec.Requirements,
		},
	}
	return []*domain.Job{job}
}

// NextSubmission builds the JobModel for a retry of job, incrementing
// submission_num and resetting per-attempt state the way
// create_job_model_for_new_submission does.
func NextSubmission(previous *domain.Job, status domain.JobStatus) *domain.Job {
	now := time.Now().UTC()
	return &domain.Job{
		ID:              uuid.NewString(),
		RunID:           previous.RunID,
		ProjectID:       previous.ProjectID,
		ReplicaNum:      previous.ReplicaNum,
		JobNum:          previous.JobNum,
		SubmissionNum:   previous.SubmissionNum + 1,
		JobName:         previous.JobName,
		SubmittedAt:     now,
		LastProcessedAt: now,
		Status:          status,
		JobSpec:         previous.JobSpec,
	}
}

// TransitionToTerminating moves job into TERMINATING with reason,
// stamping LastProcessedAt (spec §4.4 step 4, §4.5).
func TransitionToTerminating(job *domain.Job, reason domain.JobTerminationReason) {
	job.Status = domain.JobStatusTerminating
	job.TerminationReason = &reason
	job.LastProcessedAt = time.Now().UTC()
}

// Finalize resolves a TERMINATING job's terminal status from its
// termination reason (spec §4.5 "TERMINATING → DONE | FAILED |
// TERMINATED | ABORTED, chosen from termination_reason").
func Finalize(job *domain.Job) {
	if job.TerminationReason == nil {
		return
	}
	switch *job.TerminationReason {
	case domain.JobTerminationDoneByRunner:
		job.Status = domain.JobStatusDone
	case domain.JobTerminationAbortedByUser:
		job.Status = domain.JobStatusAborted
	case domain.JobTerminationTerminatedByUser:
		job.Status = domain.JobStatusTerminated
	case domain.JobTerminationTerminatedByServer:
		job.Status = domain.JobStatusFailed
	}
	job.LastProcessedAt = time.Now().UTC()
}

// ReleaseInstance detaches job from its instance and returns the status
// the instance should move to: IDLE if the instance is otherwise
// healthy, FAILED if the job failed terminally in a way that takes
// the instance down with it (spec §4.5 "Instance lifecycle is coupled").
func ReleaseInstance(job *domain.Job) domain.InstanceStatus {
	if job.TerminationReason != nil && *job.TerminationReason == domain.JobTerminationTerminatedByServer {
		return domain.InstanceStatusFailed
	}
	return domain.InstanceStatusIdle
}
