// Package runs implements the run/job state machine: submission,
// dry-run planning, user-initiated stop/delete, instance creation on
// behalf of a job, and the terminating-run drain that resolves a run's
// final status once every job underneath it has finished (spec §4.3,
// §4.4, §4.6).
package runs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/backend"
	"github.com/skyfleet/orchestrator/internal/domain"
	"github.com/skyfleet/orchestrator/internal/gateway"
	"github.com/skyfleet/orchestrator/internal/instancecfg"
	"github.com/skyfleet/orchestrator/internal/jobs"
	"github.com/skyfleet/orchestrator/internal/locks"
	"github.com/skyfleet/orchestrator/internal/metrics"
	"github.com/skyfleet/orchestrator/internal/namegen"
	"github.com/skyfleet/orchestrator/internal/planner"
	"github.com/skyfleet/orchestrator/internal/pool"
	"github.com/skyfleet/orchestrator/internal/runner"
	"github.com/skyfleet/orchestrator/internal/store"
)

// AgentResolver returns the runner.Agent that speaks to job's bound
// instance. It is supplied by the caller (the reconciler driver) since
// the transport is an external collaborator this package never
// constructs itself (spec §6).
type AgentResolver func(job *domain.Job) (runner.Agent, error)

// Service implements the run/job operations the HTTP API and
// reconciler drive.
type Service struct {
	store    store.Store
	locks    *locks.Service
	pools    *pool.Manager
	planner  *planner.Planner
	registry *backend.Registry
	names    *namegen.Generator
	gateway  *gateway.Controller
	agents   AgentResolver
	log      *logrus.Entry
}

// New builds a Service over its collaborators.
func New(
	st store.Store,
	lockSvc *locks.Service,
	pools *pool.Manager,
	pl *planner.Planner,
	registry *backend.Registry,
	names *namegen.Generator,
	gw *gateway.Controller,
	agents AgentResolver,
	log *logrus.Entry,
) *Service {
	return &Service{
		store:    st,
		locks:    lockSvc,
		pools:    pools,
		planner:  pl,
		registry: registry,
		names:    names,
		gateway:  gw,
		agents:   agents,
		log:      log,
	}
}

// SubmitRun validates, names, and persists a new run along with the
// jobs materialized from its spec, registering a gateway service when
// spec is a service configuration (grounds submit_run).
func (s *Service) SubmitRun(ctx context.Context, project *domain.Project, repoID, userID, userSSHKey string, runName *string, spec domain.RunSpec, svc *domain.ServiceSpec) (*domain.Run, error) {
	if !project.HasBackends() {
		return nil, apperrors.Client("project has no backends configured")
	}
	if err := domain.ValidateProjectSSHKeypair(project); err != nil {
		return nil, apperrors.Client(err.Error())
	}
	if userSSHKey != "" {
		if err := domain.ValidateSSHPublicKey(userSSHKey); err != nil {
			return nil, apperrors.Client(err.Error())
		}
	}

	replicas := spec.Configuration.Replicas
	if replicas.Min == 0 && replicas.Max == 0 {
		replicas = domain.ReplicasSpec{Min: 1, Max: 1}
	}
	if spec.Type == domain.RunSpecTypeService && !replicas.Fixed() {
		return nil, apperrors.Client("Auto-scaling is not supported yet")
	}

	var run *domain.Run
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		resolvedName, err := s.resolveRunName(ctx, project.ID, runName)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		run = &domain.Run{
			ID:              uuid.NewString(),
			ProjectID:       project.ID,
			RepoID:          repoID,
			UserID:          userID,
			UserSSHKey:      userSSHKey,
			RunName:         resolvedName,
			SubmittedAt:     now,
			LastProcessedAt: now,
			Status:          domain.RunStatusSubmitted,
			RunSpec:         spec,
			ServiceSpec:     svc,
		}

		if svc != nil {
			if err := s.gateway.RegisterService(ctx, project.ID, run.ID, svc.Domain, svc.Auth); err != nil {
				return err
			}
			gatewayID := run.ID
			run.GatewayID = &gatewayID
		}

		if err := s.store.CreateRun(ctx, run); err != nil {
			return fmt.Errorf("create run: %w", err)
		}

		for replica := 0; replica < replicas.Max; replica++ {
			for _, job := range jobs.FromRunSpec(run.ID, project.ID, spec, replica) {
				if err := s.store.CreateJob(ctx, job); err != nil {
					return fmt.Errorf("create job: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// resolveRunName either validates an explicit name (soft-deleting a
// prior terminal run that held it) or generates a fresh one, mirroring
// _generate_run_name / _validate_run_name.
func (s *Service) resolveRunName(ctx context.Context, projectID string, runName *string) (string, error) {
	if runName == nil || *runName == "" {
		return s.names.Generate(ctx, projectID, s.store.ListActiveRunNames)
	}
	name := *runName
	if err := namegen.ValidateAndReserve(name); err != nil {
		return "", apperrors.Client(err.Error())
	}
	existing, err := s.store.GetRunByName(ctx, projectID, name)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return name, nil
		}
		return "", fmt.Errorf("lookup run name: %w", err)
	}
	if !existing.Status.Terminal() {
		return "", apperrors.Conflict(fmt.Sprintf("run_name %q is already in use", name))
	}
	if err := s.store.SoftDeleteRun(ctx, existing.ID); err != nil {
		return "", fmt.Errorf("soft delete prior run: %w", err)
	}
	return name, nil
}

// GetRunPlan builds a dry-run RunPlan for spec without creating any
// row, resolving an existing pool by name when one exists (spec §4.1
// "run plan").
func (s *Service) GetRunPlan(ctx context.Context, project *domain.Project, spec domain.RunSpec) (domain.RunPlan, error) {
	if !project.HasBackends() {
		return domain.RunPlan{}, apperrors.Client("project has no backends configured")
	}

	p, err := s.resolveExistingPool(ctx, project.ID, spec.Profile.PoolName)
	if err != nil {
		return domain.RunPlan{}, err
	}
	return s.planner.BuildRunPlan(ctx, project.ConfiguredBackends, p, spec.Profile, spec.Requirements, spec)
}

// resolveExistingPool looks up a pool by name (or the project default)
// without creating one, returning a nil pool when none exists yet so a
// dry-run plan simply omits pool offers.
func (s *Service) resolveExistingPool(ctx context.Context, projectID, name string) (*domain.Pool, error) {
	var (
		p   *domain.Pool
		err error
	)
	if name == "" {
		p, err = s.store.GetDefaultPool(ctx, projectID)
	} else {
		p, err = s.store.GetPoolByName(ctx, projectID, name)
	}
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve pool: %w", err)
	}
	return p, nil
}

// StopRun moves run into TERMINATING (ABORTED_BY_USER if abort, else
// STOPPED_BY_USER) and synchronously drains its jobs, mirroring
// stop_run. It returns a Conflict error if another worker already
// holds the run's processing lock.
func (s *Service) StopRun(ctx context.Context, runID string, abort bool) error {
	acquired, err := s.locks.WithRunLock(runID, func() error {
		run, err := s.store.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status.Terminal() {
			return nil
		}

		reason := domain.RunTerminationStoppedByUser
		if abort {
			reason = domain.RunTerminationAbortedByUser
		}
		run.Status = domain.RunStatusTerminating
		run.TerminationReason = &reason
		run.LastProcessedAt = time.Now().UTC()
		if err := s.store.UpdateRun(ctx, run); err != nil {
			return fmt.Errorf("mark run terminating: %w", err)
		}

		return s.ProcessTerminatingRun(ctx, run)
	})
	if err != nil {
		return err
	}
	if !acquired {
		return apperrors.Conflict("run is already being processed")
	}
	return nil
}

// StopRuns stops every run in runIDs one after another, collecting every
// failure while still attempting the rest and returning them together as
// one Client error (spec treats each stop_run call as independent).
func (s *Service) StopRuns(ctx context.Context, runIDs []string, abort bool) error {
	var errs []string
	for _, id := range runIDs {
		if err := s.StopRun(ctx, id, abort); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", id, err))
		}
	}
	if len(errs) > 0 {
		return apperrors.Client(fmt.Sprintf("failed to stop %d run(s): %s", len(errs), strings.Join(errs, "; ")))
	}
	return nil
}

// DeleteRuns soft-deletes every run in runIDs, rejecting the whole
// batch if any named run is still active (mirrors delete_runs' "Cannot
// delete active runs" guard).
func (s *Service) DeleteRuns(ctx context.Context, runIDs []string) error {
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		var active []string
		resolved := make([]*domain.Run, 0, len(runIDs))
		for _, id := range runIDs {
			run, err := s.store.GetRun(ctx, id)
			if err != nil {
				return err
			}
			if !run.Status.Terminal() {
				active = append(active, run.RunName)
			}
			resolved = append(resolved, run)
		}
		if len(active) > 0 {
			return apperrors.Client(fmt.Sprintf("Cannot delete active runs: %s", strings.Join(active, ", ")))
		}
		for _, run := range resolved {
			if err := s.store.SoftDeleteRun(ctx, run.ID); err != nil {
				return fmt.Errorf("soft delete run %s: %w", run.ID, err)
			}
		}
		return nil
	})
}

// ProcessTerminatingRun drains run's jobs once it has entered
// TERMINATING: it waits for every job id to leave all three
// job-processing lock sets, signals a graceful stop to jobs still
// RUNNING (unless the runner already caused the termination or the user
// aborted the run), marks
// each job TERMINATING/finalized, and — once every job has reached a
// terminal status — unregisters any gateway service and resolves the
// run's final status (spec §4.4).
func (s *Service) ProcessTerminatingRun(ctx context.Context, run *domain.Run) error {
	if run.TerminationReason == nil {
		return fmt.Errorf("process terminating run %s: no termination reason set", run.ID)
	}
	jobReason := domain.RunToJobTerminationReason[*run.TerminationReason]

	jobList, err := s.store.ListJobsByRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list jobs for run %s: %w", run.ID, err)
	}
	ids := make([]string, len(jobList))
	for i, j := range jobList {
		ids[i] = j.ID
	}

	waitStart := time.Now()
	if err := s.locks.WaitJobsEmpty(ctx, ids); err != nil {
		return fmt.Errorf("wait for jobs to drain: %w", err)
	}
	metrics.RunLockWaitDuration.Observe(time.Since(waitStart).Seconds())

	run, err = s.store.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return nil
	}

	allFinished := true
	for _, job := range jobList {
		if job.Status.Terminal() {
			continue
		}
		if job.Status == domain.JobStatusTerminating {
			allFinished = false
			continue
		}

		if job.Status == domain.JobStatusRunning && !skipRunnerSignal(jobReason) {
			if agent, aerr := s.resolveAgent(job); aerr == nil {
				if err := agent.Stop(ctx, job); err != nil {
					s.log.WithError(err).WithField("job_id", job.ID).Warn("runner stop signal failed, continuing termination")
				}
			}
		}

		jobs.TransitionToTerminating(job, jobReason)
		jobs.Finalize(job)
		if err := s.store.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("update job %s: %w", job.ID, err)
		}
		if !job.Status.Terminal() {
			allFinished = false
		}
	}

	if !allFinished {
		return nil
	}

	if run.GatewayID != nil {
		if err := s.gateway.UnregisterDomain(ctx, run.ServiceSpec.Domain); err != nil {
			s.log.WithError(err).WithField("run_id", run.ID).Warn("gateway unregister failed, run termination continues")
		}
	}

	finalStatus, ok := domain.RunTerminationToFinalStatus[*run.TerminationReason]
	if !ok {
		finalStatus = domain.RunStatusFailed
	}
	run.Status = finalStatus
	run.LastProcessedAt = time.Now().UTC()
	return s.store.UpdateRun(ctx, run)
}

// skipRunnerSignal reports whether jobReason already reflects the
// runner's own disposition, making an outbound stop signal redundant
// (spec §4.4 step 4: "skip the signal when the runner already caused
// the termination, or the user aborted rather than asked to stop
// gracefully").
func skipRunnerSignal(reason domain.JobTerminationReason) bool {
	return reason == domain.JobTerminationAbortedByUser || reason == domain.JobTerminationDoneByRunner
}

func (s *Service) resolveAgent(job *domain.Job) (runner.Agent, error) {
	if s.agents == nil {
		return nil, fmt.Errorf("no agent resolver configured")
	}
	return s.agents(job)
}

// CreateInstance resolves a pool, finds create-capable offers, and
// tries them in order until one backend succeeds, mirroring
// create_instance's offer-fallback loop (spec §4.6). userSSHKey is the
// submitting user's public key; it is installed alongside (never
// instead of) the project's own key.
func (s *Service) CreateInstance(ctx context.Context, project *domain.Project, userSSHKey string, profile domain.Profile, requirements domain.Requirements) (*domain.Instance, error) {
	offers, err := s.planner.Plan(ctx, project.ConfiguredBackends, profile, requirements, true)
	if err != nil {
		return nil, err
	}
	capable := createCapableShimOffers(offers)
	if len(capable) == 0 {
		return nil, apperrors.Client("no backend offers support instance creation for these requirements")
	}

	p, err := s.pools.GetOrCreatePoolByName(ctx, project.ID, profile.PoolName)
	if err != nil {
		return nil, fmt.Errorf("resolve pool: %w", err)
	}

	instanceConfig, err := instancecfg.Build(userSSHKey, project.SSHPublicKey)
	if err != nil {
		return nil, apperrors.Client(err.Error())
	}

	var lastErr error
	for _, offer := range capable {
		adapter, err := s.registry.Get(offer.BackendType)
		if err != nil {
			lastErr = err
			continue
		}

		launched, err := adapter.CreateInstance(ctx, offer, instanceConfig)
		if err != nil {
			metrics.InstanceCreateAttempts.WithLabelValues(offer.BackendType, outcomeFor(err)).Inc()
			if apperrors.IsBackendError(err) || err == apperrors.ErrUnsupportedCapability {
				s.log.WithError(err).WithField("backend", offer.BackendType).Warn("create_instance attempt failed, trying next offer")
				lastErr = err
				continue
			}
			return nil, err
		}
		metrics.InstanceCreateAttempts.WithLabelValues(offer.BackendType, "success").Inc()

		now := time.Now().UTC()
		instance := &domain.Instance{
			ID:                uuid.NewString(),
			Name:              instanceConfig.InstanceName,
			PoolID:            p.ID,
			BackendType:       offer.BackendType,
			Region:            launched.Region,
			OfferSnapshot:     offer,
			Hostname:          launched.IP,
			SSHPort:           launched.SSHPort,
			Username:          launched.Username,
			Dockerized:        launched.Dockerized,
			BackendData:       launched.BackendData,
			Price:             offer.Price,
			Status:            domain.InstanceStatusProvisioning,
			CreatedAt:         now,
			TerminationPolicy: profile.TerminationPolicy,
			TerminationIdleTime: profile.TerminationIdleTime,
		}
		if err := s.store.CreateInstance(ctx, instance); err != nil {
			return nil, fmt.Errorf("persist instance: %w", err)
		}
		return instance, nil
	}

	if lastErr != nil {
		return nil, apperrors.Client(fmt.Sprintf("every candidate offer failed to provision: %v", lastErr))
	}
	return nil, apperrors.Client("no candidate offer could be provisioned")
}

func outcomeFor(err error) string {
	if err == apperrors.ErrUnsupportedCapability {
		return "unsupported"
	}
	return "backend_error"
}

// createCapableShimOffers narrows offers to those whose backend
// supports explicit creation and whose runtime can host an arbitrary
// VM, excluding RUNNER offers and anything already derived from a pool
// instance (those are reused, not created).
func createCapableShimOffers(offers []domain.Offer) []domain.Offer {
	out := make([]domain.Offer, 0, len(offers))
	for _, o := range planner.CreateCapableOffers(offers) {
		if o.FromPool() || o.Runtime == domain.RuntimeRunner {
			continue
		}
		out = append(out, o)
	}
	return out
}
