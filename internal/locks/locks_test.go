package locks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockRunIsExclusive(t *testing.T) {
	s := New()
	assert.True(t, s.TryLockRun("run-1"))
	assert.False(t, s.TryLockRun("run-1"))
	s.UnlockRun("run-1")
	assert.True(t, s.TryLockRun("run-1"))
}

func TestJobLockedAnyPhaseAcrossPhases(t *testing.T) {
	s := New()
	assert.True(t, s.TryLockJob(PhaseSubmitted, "job-1"))
	assert.True(t, s.JobLockedAnyPhase("job-1"))
	assert.False(t, s.JobLockedAnyPhase("job-2"))

	// The phase sets are independent: TryLockJob does not refuse a job
	// held in another phase (keeping a job in one phase set is up to the
	// callers), and JobLockedAnyPhase reports it locked until it has been
	// released from every set it is in.
	assert.True(t, s.TryLockJob(PhaseRunning, "job-1"))
	s.UnlockJob(PhaseSubmitted, "job-1")
	assert.True(t, s.JobLockedAnyPhase("job-1"))
	s.UnlockJob(PhaseRunning, "job-1")
	assert.False(t, s.JobLockedAnyPhase("job-1"))
}

func TestWaitJobsEmptyReturnsOnceReleased(t *testing.T) {
	s := New()
	s.pollInterval = 5 * time.Millisecond
	require.True(t, s.TryLockJob(PhaseTerminating, "job-1"))

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.UnlockJob(PhaseTerminating, "job-1")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.WaitJobsEmpty(ctx, []string{"job-1"})
	assert.NoError(t, err)
}

func TestWaitJobsEmptyRespectsContextCancellation(t *testing.T) {
	s := New()
	s.pollInterval = 5 * time.Millisecond
	require.True(t, s.TryLockJob(PhaseRunning, "job-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WaitJobsEmpty(ctx, []string{"job-1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithRunLockReleasesOnCompletion(t *testing.T) {
	s := New()
	acquired, err := s.WithRunLock("run-1", func() error { return nil })
	assert.True(t, acquired)
	assert.NoError(t, err)
	assert.False(t, s.RunLocked("run-1"))
}

func TestConcurrentTryLockJobOnlyOneWinner(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	var wins int32
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryLockJob(PhaseSubmitted, "job-contended") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
