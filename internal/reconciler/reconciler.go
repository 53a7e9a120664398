// Package reconciler implements the periodic driver that advances the
// run/job state machine outside of any single HTTP request: it selects
// SUBMITTED jobs whose run is not locked, PROVISIONING/RUNNING jobs
// whose heartbeat has expired, TERMINATING jobs left over from a
// crashed finalize, and TERMINATING runs, dispatching each under the
// run-lock-precedence protocol (spec §4.8, §5).
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/config"
	"github.com/skyfleet/orchestrator/internal/domain"
	"github.com/skyfleet/orchestrator/internal/jobs"
	"github.com/skyfleet/orchestrator/internal/locks"
	"github.com/skyfleet/orchestrator/internal/metrics"
	"github.com/skyfleet/orchestrator/internal/pool"
	"github.com/skyfleet/orchestrator/internal/runner"
	"github.com/skyfleet/orchestrator/internal/runs"
	"github.com/skyfleet/orchestrator/internal/store"
)

// Batch sizes per tick per category; unbounded selection would let one
// slow tick starve the others under load.
const (
	submittedBatchLimit   = 100
	heartbeatBatchLimit   = 200
	terminatingJobsLimit  = 100
	terminatingRunsLimit  = 50
	defaultTickInterval   = 2 * time.Second
)

// Reconciler is the lifecycle.Service-conforming periodic driver.
type Reconciler struct {
	store   store.Store
	locks   *locks.Service
	pools   *pool.Manager
	runsSvc *runs.Service
	agents  runs.AgentResolver
	cfg     config.ReconcilerConfig
	log     *logrus.Entry

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	cronJob *cron.Cron
}

// New builds a Reconciler over its collaborators. agents may be nil in
// configurations that never dispatch create_instance work against a
// live runner transport (e.g. tests exercising only run submission).
func New(st store.Store, lockSvc *locks.Service, pools *pool.Manager, runsSvc *runs.Service, agents runs.AgentResolver, cfg config.ReconcilerConfig, log *logrus.Entry) *Reconciler {
	return &Reconciler{
		store:   st,
		locks:   lockSvc,
		pools:   pools,
		runsSvc: runsSvc,
		agents:  agents,
		cfg:     cfg,
		log:     log,
	}
}

// Name identifies this service to the lifecycle manager.
func (r *Reconciler) Name() string { return "reconciler-driver" }

// Start begins the periodic tick loop: an immediate tick, then a plain
// ticker at cfg.TickInterval, plus a cron.v3 schedule running alongside
// it when cfg.CronExpr is set.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	go r.tick(runCtx)

	if r.cfg.CronExpr != "" {
		sched := cron.New()
		if _, err := sched.AddFunc(r.cfg.CronExpr, func() { r.tick(runCtx) }); err != nil {
			r.mu.Lock()
			r.running = false
			r.cancel = nil
			r.mu.Unlock()
			cancel()
			return fmt.Errorf("invalid reconciler cron expression %q: %w", r.cfg.CronExpr, err)
		}
		sched.Start()
		r.mu.Lock()
		r.cronJob = sched
		r.mu.Unlock()
	}

	interval := r.cfg.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("reconciler driver started")
	return nil
}

// Stop cancels the tick loop (and any cron schedule) and waits for the
// in-flight tick to finish, up to ctx's deadline.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	cronJob := r.cronJob
	r.cancel = nil
	r.cronJob = nil
	r.running = false
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cronJob != nil {
		<-cronJob.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("reconciler driver stopped")
	return nil
}

// Ready reports whether the tick loop is running.
func (r *Reconciler) Ready(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return fmt.Errorf("reconciler driver not running")
	}
	return nil
}

// tick runs one pass over every eligible category concurrently,
// recording the total duration regardless of outcome.
func (r *Reconciler) tick(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.ReconcilerTickDuration.Observe(time.Since(start).Seconds()) }()

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); r.processSubmittedJobs(ctx) }()
	go func() { defer wg.Done(); r.processHeartbeats(ctx) }()
	go func() { defer wg.Done(); r.processStuckTerminatingJobs(ctx) }()
	go func() { defer wg.Done(); r.processTerminatingRuns(ctx) }()
	wg.Wait()
}

// processSubmittedJobs dispatches every SUBMITTED job whose run is not
// currently locked into instance creation/reuse, under its own
// per-job TryLockJob(SUBMITTED, ...) (spec §4.8).
func (r *Reconciler) processSubmittedJobs(ctx context.Context) {
	candidates, err := r.store.ListJobsByStatus(ctx, []domain.JobStatus{domain.JobStatusSubmitted}, submittedBatchLimit)
	if err != nil {
		r.log.WithError(err).Warn("list submitted jobs failed")
		return
	}

	var wg sync.WaitGroup
	for _, job := range candidates {
		if r.locks.RunLocked(job.RunID) {
			continue
		}
		if !r.locks.TryLockJob(locks.PhaseSubmitted, job.ID) {
			continue
		}
		wg.Add(1)
		go func(job *domain.Job) {
			defer wg.Done()
			defer r.locks.UnlockJob(locks.PhaseSubmitted, job.ID)
			r.dispatchSubmittedJob(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (r *Reconciler) dispatchSubmittedJob(ctx context.Context, job *domain.Job) {
	run, err := r.store.GetRun(ctx, job.RunID)
	if err != nil {
		r.log.WithError(err).WithField("job_id", job.ID).Warn("load run for submitted job failed")
		return
	}
	if run.Status.Terminal() || run.Status == domain.RunStatusTerminating {
		// The run-terminating drain owns this job now.
		return
	}

	project, err := r.store.GetProject(ctx, run.ProjectID)
	if err != nil {
		r.log.WithError(err).WithField("run_id", run.ID).Warn("load project for submitted job failed")
		return
	}

	profile := run.RunSpec.Profile
	requirements := job.JobSpec.Requirements

	instance, err := r.reuseOrCreateInstance(ctx, project, job, run, profile, requirements)
	if err != nil {
		r.log.WithError(err).WithField("job_id", job.ID).Warn("instance dispatch failed, retrying next tick")
		return
	}

	now := time.Now().UTC()
	job.InstanceID = &instance.ID
	job.Status = domain.JobStatusProvisioning
	job.LastProcessedAt = now
	job.LastHeartbeatAt = &now
	if err := r.store.UpdateJob(ctx, job); err != nil {
		r.log.WithError(err).WithField("job_id", job.ID).Error("persist provisioning job failed")
	}
}

// reuseOrCreateInstance binds job to an idle pool instance when one
// satisfies profile/requirements, falling back to create_instance
// unless the profile's creation policy forbids it (spec §4.2, §4.6).
func (r *Reconciler) reuseOrCreateInstance(ctx context.Context, project *domain.Project, job *domain.Job, run *domain.Run, profile domain.Profile, requirements domain.Requirements) (*domain.Instance, error) {
	p, err := r.pools.GetOrCreatePoolByName(ctx, project.ID, profile.PoolName)
	if err != nil {
		return nil, fmt.Errorf("resolve pool: %w", err)
	}

	candidates, err := r.pools.FilterPoolInstances(ctx, p.ID, profile, requirements)
	if err != nil {
		return nil, fmt.Errorf("filter pool instances: %w", err)
	}
	for _, inst := range candidates {
		if inst.Status != domain.InstanceStatusIdle {
			continue
		}
		inst.Status = domain.InstanceStatusBusy
		inst.CurrentJobID = &job.ID
		if err := r.store.UpdateInstance(ctx, inst); err != nil {
			return nil, fmt.Errorf("bind pool instance: %w", err)
		}
		return inst, nil
	}

	if profile.CreationPolicy == domain.CreationPolicyReuse {
		return nil, apperrors.Client("no idle pool instance available and the profile forbids creating one")
	}

	instance, err := r.runsSvc.CreateInstance(ctx, project, run.UserSSHKey, profile, requirements)
	if err != nil {
		return nil, err
	}
	instance.Status = domain.InstanceStatusBusy
	instance.CurrentJobID = &job.ID
	if err := r.store.UpdateInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("bind created instance: %w", err)
	}
	return instance, nil
}

// processHeartbeats polls the runner agent for every PROVISIONING or
// RUNNING job whose heartbeat has expired, advancing it to RUNNING or
// finalizing it depending on the reported disposition (spec §4.5,
// §4.8).
func (r *Reconciler) processHeartbeats(ctx context.Context) {
	candidates, err := r.store.ListJobsByStatus(ctx, []domain.JobStatus{domain.JobStatusProvisioning, domain.JobStatusRunning}, heartbeatBatchLimit)
	if err != nil {
		r.log.WithError(err).Warn("list heartbeat-due jobs failed")
		return
	}

	now := time.Now().UTC()
	var wg sync.WaitGroup
	for _, job := range candidates {
		if job.LastHeartbeatAt != nil && now.Sub(*job.LastHeartbeatAt) < r.cfg.JobHeartbeatTimeout {
			continue
		}
		if r.locks.RunLocked(job.RunID) {
			continue
		}
		if !r.locks.TryLockJob(locks.PhaseRunning, job.ID) {
			continue
		}
		wg.Add(1)
		go func(job *domain.Job) {
			defer wg.Done()
			defer r.locks.UnlockJob(locks.PhaseRunning, job.ID)
			r.pollJob(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (r *Reconciler) pollJob(ctx context.Context, job *domain.Job) {
	if r.agents == nil {
		return
	}
	agent, err := r.agents(job)
	if err != nil {
		r.log.WithError(err).WithField("job_id", job.ID).Warn("no runner agent available for heartbeat poll")
		return
	}
	status, err := agent.PollStatus(ctx, job)
	if err != nil {
		r.log.WithError(err).WithField("job_id", job.ID).Warn("heartbeat poll failed, retrying next tick")
		return
	}

	now := time.Now().UTC()
	switch status.Disposition {
	case runner.ExitDispositionRunning:
		job.Status = domain.JobStatusRunning
		job.LastHeartbeatAt = &now
		job.LastProcessedAt = now
		if err := r.store.UpdateJob(ctx, job); err != nil {
			r.log.WithError(err).WithField("job_id", job.ID).Error("persist heartbeat failed")
		}
	case runner.ExitDispositionSuccess:
		r.finalizeJob(ctx, job, domain.JobTerminationDoneByRunner)
	case runner.ExitDispositionFailure:
		r.finalizeJob(ctx, job, domain.JobTerminationTerminatedByServer)
		r.escalateJobFailureToRun(ctx, job)
	}
}

// finalizeJob transitions job to TERMINATING and immediately resolves
// its terminal status, then releases any bound instance.
func (r *Reconciler) finalizeJob(ctx context.Context, job *domain.Job, reason domain.JobTerminationReason) {
	jobs.TransitionToTerminating(job, reason)
	jobs.Finalize(job)
	if err := r.store.UpdateJob(ctx, job); err != nil {
		r.log.WithError(err).WithField("job_id", job.ID).Error("persist finalized job failed")
		return
	}
	r.releaseInstance(ctx, job)
}

func (r *Reconciler) releaseInstance(ctx context.Context, job *domain.Job) {
	if job.InstanceID == nil {
		return
	}
	instance, err := r.store.GetInstance(ctx, *job.InstanceID)
	if err != nil {
		r.log.WithError(err).WithField("instance_id", *job.InstanceID).Warn("load instance to release failed")
		return
	}
	instance.CurrentJobID = nil
	instance.Status = jobs.ReleaseInstance(job)
	if err := r.store.UpdateInstance(ctx, instance); err != nil {
		r.log.WithError(err).WithField("instance_id", instance.ID).Error("release instance failed")
	}
}

// escalateJobFailureToRun moves job's run into TERMINATING with
// JOB_FAILED when a server-side job failure leaves the run otherwise
// untouched, so the terminating-run reconciler drains the rest of its
// jobs (spec §4.4 termination-reason table).
func (r *Reconciler) escalateJobFailureToRun(ctx context.Context, job *domain.Job) {
	acquired, err := r.locks.WithRunLock(job.RunID, func() error {
		run, err := r.store.GetRun(ctx, job.RunID)
		if err != nil {
			return err
		}
		if run.Status.Terminal() || run.Status == domain.RunStatusTerminating {
			return nil
		}
		reason := domain.RunTerminationJobFailed
		run.Status = domain.RunStatusTerminating
		run.TerminationReason = &reason
		run.LastProcessedAt = time.Now().UTC()
		return r.store.UpdateRun(ctx, run)
	})
	if err != nil {
		r.log.WithError(err).WithField("run_id", job.RunID).Warn("escalate job failure to run failed")
		return
	}
	if !acquired {
		r.log.WithField("run_id", job.RunID).Debug("run already being processed, skipping failure escalation this tick")
	}
}

// processStuckTerminatingJobs finalizes any job left in TERMINATING
// with a termination reason already set but whose terminal status
// never got persisted (a crash between the two writes), and releases
// its instance.
func (r *Reconciler) processStuckTerminatingJobs(ctx context.Context) {
	candidates, err := r.store.ListJobsByStatus(ctx, []domain.JobStatus{domain.JobStatusTerminating}, terminatingJobsLimit)
	if err != nil {
		r.log.WithError(err).Warn("list terminating jobs failed")
		return
	}

	var wg sync.WaitGroup
	for _, job := range candidates {
		if job.TerminationReason == nil {
			continue
		}
		if r.locks.RunLocked(job.RunID) {
			continue
		}
		if !r.locks.TryLockJob(locks.PhaseTerminating, job.ID) {
			continue
		}
		wg.Add(1)
		go func(job *domain.Job) {
			defer wg.Done()
			defer r.locks.UnlockJob(locks.PhaseTerminating, job.ID)
			jobs.Finalize(job)
			if err := r.store.UpdateJob(ctx, job); err != nil {
				r.log.WithError(err).WithField("job_id", job.ID).Error("finalize stuck terminating job failed")
				return
			}
			r.releaseInstance(ctx, job)
		}(job)
	}
	wg.Wait()
}

// processTerminatingRuns re-drives process_terminating_run for every
// TERMINATING run, picking up runs a crashed drain left unfinished and
// runs newly marked TERMINATING by job-failure escalation (spec §4.4,
// §4.8).
func (r *Reconciler) processTerminatingRuns(ctx context.Context) {
	candidates, err := r.store.ListRunsByStatus(ctx, []domain.RunStatus{domain.RunStatusTerminating}, terminatingRunsLimit)
	if err != nil {
		r.log.WithError(err).Warn("list terminating runs failed")
		return
	}

	var wg sync.WaitGroup
	for _, run := range candidates {
		wg.Add(1)
		go func(run *domain.Run) {
			defer wg.Done()
			acquired, err := r.locks.WithRunLock(run.ID, func() error {
				return r.runsSvc.ProcessTerminatingRun(ctx, run)
			})
			if err != nil {
				r.log.WithError(err).WithField("run_id", run.ID).Warn("process terminating run failed, retrying next tick")
				return
			}
			if !acquired {
				r.log.WithField("run_id", run.ID).Debug("run already locked, skipping this tick")
			}
		}(run)
	}
	wg.Wait()
}
