// Package pool manages per-project pools of reusable instances: the
// default pool is created lazily on first reference, and instances are
// filtered against a profile and resource requirements before they are
// offered back to a run (spec §4.2).
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
	"github.com/skyfleet/orchestrator/internal/store"
)

const defaultPoolName = "default"

// Manager resolves and filters pools for a project.
type Manager struct {
	store store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a pool Manager over store.
func New(s store.Store) *Manager {
	return &Manager{store: s, locks: make(map[string]*sync.Mutex)}
}

func (m *Manager) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// GetOrCreatePoolByName returns the named pool, creating it if absent.
// An empty name resolves to the project's default pool, itself created
// on first reference. Concurrent callers for the same (project, name)
// are serialized through a project+name critical section so a race
// cannot create two pools with the same name; the store's unique index
// on (project_id, name) is the second line of defense if that ever
// slips (spec §4.2).
func (m *Manager) GetOrCreatePoolByName(ctx context.Context, projectID, name string) (*domain.Pool, error) {
	if name == "" {
		return m.getOrCreateDefaultPool(ctx, projectID)
	}

	lock := m.lockFor(projectID + "/" + name)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.store.GetPoolByName(ctx, projectID, name)
	if err == nil {
		return existing, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	p := &domain.Pool{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
	}
	if err := m.store.CreatePool(ctx, p); err != nil {
		return nil, fmt.Errorf("create pool %q: %w", name, err)
	}
	return p, nil
}

func (m *Manager) getOrCreateDefaultPool(ctx context.Context, projectID string) (*domain.Pool, error) {
	lock := m.lockFor(projectID + "/" + defaultPoolName)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.store.GetDefaultPool(ctx, projectID)
	if err == nil {
		return existing, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	p := &domain.Pool{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      defaultPoolName,
		Default:   true,
	}
	if err := m.store.CreatePool(ctx, p); err != nil {
		return nil, fmt.Errorf("create default pool: %w", err)
	}
	return p, nil
}

// FilterPoolInstances returns the pool's instances whose offer
// satisfies requirements, whose backend/region pass profile, and whose
// status is not TERMINATING/TERMINATED — the candidates a run may reuse
// instead of creating a new instance (spec §4.2).
func (m *Manager) FilterPoolInstances(ctx context.Context, poolID string, profile domain.Profile, requirements domain.Requirements) ([]*domain.Instance, error) {
	all, err := m.store.ListPoolInstances(ctx, poolID)
	if err != nil {
		return nil, err
	}

	var filtered []*domain.Instance
	for _, inst := range all {
		if inst.Status == domain.InstanceStatusTerminating || inst.Status == domain.InstanceStatusTerminated {
			continue
		}
		if !profile.BackendAllowed(inst.BackendType) || !profile.RegionAllowed(inst.Region) {
			continue
		}
		if !inst.OfferSnapshot.Satisfies(requirements) {
			continue
		}
		filtered = append(filtered, inst)
	}
	return filtered, nil
}
