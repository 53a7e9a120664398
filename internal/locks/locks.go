// Package locks implements the process-global lock sets the run/job
// state machine uses to serialize concurrent reconciler workers
// without deadlocking (spec §5, §9 "Global processing sets").
//
// The hierarchy has exactly two levels, and callers must always
// acquire in this order:
//
//  1. The run-processing set: one mutex-guarded id set.
//  2. Three disjoint job-processing sets keyed by phase (SUBMITTED,
//     RUNNING, TERMINATING), each with its own mutex and id set.
//
// A job id may be in at most one phase set at a time; TryLockJob does
// not check the other phase sets, so keeping to this is up to the
// callers. A run-processing entry takes precedence over any
// job-processing entry for jobs of that run.
package locks

import (
	"context"
	"sync"
	"time"
)

// JobPhase names one of the three disjoint job-processing lock sets.
type JobPhase string

const (
	PhaseSubmitted  JobPhase = "SUBMITTED"
	PhaseRunning    JobPhase = "RUNNING"
	PhaseTerminating JobPhase = "TERMINATING"
)

var allPhases = [...]JobPhase{PhaseSubmitted, PhaseRunning, PhaseTerminating}

// idSet is a mutex-guarded set of ids, the critical-section shape
// spec §5 describes: "await mutex, add id, release mutex" to enter,
// "remove id" to exit.
type idSet struct {
	mu  sync.Mutex
	ids map[string]bool
}

func newIDSet() *idSet {
	return &idSet{ids: make(map[string]bool)}
}

func (s *idSet) tryAdd(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[id] {
		return false
	}
	s.ids[id] = true
	return true
}

func (s *idSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *idSet) contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[id]
}

// Service is the single process-global LockService spec §9 calls for,
// encapsulating the run-processing set and the three job-phase sets so
// callers never touch ad-hoc global maps directly.
type Service struct {
	runs *idSet
	jobs map[JobPhase]*idSet
	// pollInterval is how often WaitJobsEmpty re-checks the job sets
	// while polling (spec §4.4 step 2's "poll with short delay").
	pollInterval time.Duration
}

// New builds an empty LockService.
func New() *Service {
	jobs := make(map[JobPhase]*idSet, len(allPhases))
	for _, phase := range allPhases {
		jobs[phase] = newIDSet()
	}
	return &Service{runs: newIDSet(), jobs: jobs, pollInterval: 50 * time.Millisecond}
}

// TryLockRun attempts to add runID to the run-processing set,
// reporting false if another worker already owns it.
func (s *Service) TryLockRun(runID string) bool {
	return s.runs.tryAdd(runID)
}

// UnlockRun removes runID from the run-processing set. Callers must
// call this in a defer immediately after a successful TryLockRun so a
// cancelled task never leaves an id stuck in the set (spec §5
// "Suspension points" cancellation-safety requirement).
func (s *Service) UnlockRun(runID string) {
	s.runs.remove(runID)
}

// RunLocked reports whether runID is currently in the run-processing
// set — the check a job reconciler makes before mutating a job (spec
// §5 "Precedence").
func (s *Service) RunLocked(runID string) bool {
	return s.runs.contains(runID)
}

// TryLockJob attempts to add jobID to phase's set, reporting false if
// another worker already owns it in that phase.
func (s *Service) TryLockJob(phase JobPhase, jobID string) bool {
	return s.jobs[phase].tryAdd(jobID)
}

// UnlockJob removes jobID from phase's set.
func (s *Service) UnlockJob(phase JobPhase, jobID string) {
	s.jobs[phase].remove(jobID)
}

// JobLockedAnyPhase reports whether jobID is currently held in any of
// the three job-processing sets.
func (s *Service) JobLockedAnyPhase(jobID string) bool {
	for _, phase := range allPhases {
		if s.jobs[phase].contains(jobID) {
			return true
		}
	}
	return false
}

// WaitJobsEmpty blocks until none of jobIDs appear in any job-phase
// set, polling at pollInterval. This is the wait a run-terminating
// flow performs before it may mutate those jobs (spec §4.4 step 2,
// §5 "A run reconciler entering a terminating flow must wait").
func (s *Service) WaitJobsEmpty(ctx context.Context, jobIDs []string) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if s.noneLocked(jobIDs) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) noneLocked(jobIDs []string) bool {
	for _, id := range jobIDs {
		if s.JobLockedAnyPhase(id) {
			return false
		}
	}
	return true
}

// WithRunLock runs fn while holding runID's run-processing lock,
// guaranteeing release even on panic or early return.
func (s *Service) WithRunLock(runID string, fn func() error) (acquired bool, err error) {
	if !s.TryLockRun(runID) {
		return false, nil
	}
	defer s.UnlockRun(runID)
	return true, fn()
}

// WithJobLock runs fn while holding jobID's lock in phase.
func (s *Service) WithJobLock(phase JobPhase, jobID string, fn func() error) (acquired bool, err error) {
	if !s.TryLockJob(phase, jobID) {
		return false, nil
	}
	defer s.UnlockJob(phase, jobID)
	return true, fn()
}
