// Package store defines the transactional storage interface the run
// orchestration core issues selects and updates against. Concrete
// implementations live in subpackages (postgres).
package store

import (
	"context"

	"github.com/skyfleet/orchestrator/internal/domain"
)

// Querier abstracts query execution against either a live connection
// or an open transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// Rows is the minimal row-iteration surface a Querier result supports.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// TxManager begins, commits, and rolls back the session-scoped
// transaction the core requires every mutating operation to run
// inside (spec §3 "Lifecycle", §5 "database operations are async with
// a per-request session").
type TxManager interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProjectStore reads project rows, including the configured backend
// set submit_run checks against.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	GetProjectByName(ctx context.Context, name string) (*domain.Project, error)
}

// PoolStore owns pool rows, enforcing the one-default-per-project
// invariant and idempotent get-or-create semantics (spec §4.2).
type PoolStore interface {
	GetPool(ctx context.Context, id string) (*domain.Pool, error)
	GetPoolByName(ctx context.Context, projectID, name string) (*domain.Pool, error)
	GetDefaultPool(ctx context.Context, projectID string) (*domain.Pool, error)
	CreatePool(ctx context.Context, pool *domain.Pool) error
	ListPools(ctx context.Context, projectID string) ([]*domain.Pool, error)
	DeletePool(ctx context.Context, id string) error
	SetDefaultPool(ctx context.Context, projectID, poolID string) error
}

// InstanceStore owns instance rows within pools.
type InstanceStore interface {
	GetInstance(ctx context.Context, id string) (*domain.Instance, error)
	ListPoolInstances(ctx context.Context, poolID string) ([]*domain.Instance, error)
	CreateInstance(ctx context.Context, instance *domain.Instance) error
	UpdateInstance(ctx context.Context, instance *domain.Instance) error
}

// RunStore owns run rows. Deleted runs are soft-deleted, never
// physically removed (spec §3 "Lifecycle").
type RunStore interface {
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	GetRunByName(ctx context.Context, projectID, runName string) (*domain.Run, error)
	CreateRun(ctx context.Context, run *domain.Run) error
	UpdateRun(ctx context.Context, run *domain.Run) error
	ListActiveRunNames(ctx context.Context, projectID string) (map[string]bool, error)
	ListRunsByStatus(ctx context.Context, statuses []domain.RunStatus, limit int) ([]*domain.Run, error)
	SoftDeleteRun(ctx context.Context, id string) error
}

// JobStore owns job rows, including every submission attempt.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	ListJobsByRun(ctx context.Context, runID string) ([]*domain.Job, error)
	// LatestSubmissions returns, for every (replica_num, job_num) pair in
	// runID, the job row with the highest submission_num.
	LatestSubmissions(ctx context.Context, runID string) ([]*domain.Job, error)
	CreateJob(ctx context.Context, job *domain.Job) error
	UpdateJob(ctx context.Context, job *domain.Job) error
	ListJobsByStatus(ctx context.Context, statuses []domain.JobStatus, limit int) ([]*domain.Job, error)
}

// Store aggregates every entity store plus transaction control behind
// one handle, the shape services depend on.
type Store interface {
	TxManager
	ProjectStore
	PoolStore
	InstanceStore
	RunStore
	JobStore
}
