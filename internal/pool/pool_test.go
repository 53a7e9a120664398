package pool

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
	"github.com/skyfleet/orchestrator/internal/store"
)

// fakeStore implements store.Store by embedding the interface (so any
// method this test doesn't exercise panics loudly if called) and
// overriding only the pool/instance surface Manager uses.
type fakeStore struct {
	store.Store

	mu          sync.Mutex
	pools       map[string]*domain.Pool // keyed by project/name
	defaults    map[string]*domain.Pool // keyed by project
	createCalls int
	instances   []*domain.Instance
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pools:    make(map[string]*domain.Pool),
		defaults: make(map[string]*domain.Pool),
	}
}

func (f *fakeStore) GetPoolByName(ctx context.Context, projectID, name string) (*domain.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[projectID+"/"+name]
	if !ok {
		return nil, apperrors.NotFound("pool", name)
	}
	return p, nil
}

func (f *fakeStore) GetDefaultPool(ctx context.Context, projectID string) (*domain.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.defaults[projectID]
	if !ok {
		return nil, apperrors.NotFound("pool", "default")
	}
	return p, nil
}

func (f *fakeStore) CreatePool(ctx context.Context, p *domain.Pool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.pools[p.ProjectID+"/"+p.Name] = p
	if p.Default {
		f.defaults[p.ProjectID] = p
	}
	return nil
}

func (f *fakeStore) ListPoolInstances(ctx context.Context, poolID string) ([]*domain.Instance, error) {
	var out []*domain.Instance
	for _, inst := range f.instances {
		if inst.PoolID == poolID {
			out = append(out, inst)
		}
	}
	return out, nil
}

func TestGetOrCreatePoolByNameCreatesWhenMissing(t *testing.T) {
	fs := newFakeStore()
	m := New(fs)

	p, err := m.GetOrCreatePoolByName(context.Background(), "proj-1", "gpu-pool")
	require.NoError(t, err)
	assert.Equal(t, "gpu-pool", p.Name)
	assert.Equal(t, 1, fs.createCalls)
}

func TestGetOrCreatePoolByNameReturnsExisting(t *testing.T) {
	fs := newFakeStore()
	m := New(fs)

	first, err := m.GetOrCreatePoolByName(context.Background(), "proj-1", "gpu-pool")
	require.NoError(t, err)

	second, err := m.GetOrCreatePoolByName(context.Background(), "proj-1", "gpu-pool")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, fs.createCalls)
}

func TestGetOrCreatePoolByNameEmptyResolvesToDefault(t *testing.T) {
	fs := newFakeStore()
	m := New(fs)

	p, err := m.GetOrCreatePoolByName(context.Background(), "proj-1", "")
	require.NoError(t, err)
	assert.Equal(t, "default", p.Name)
	assert.True(t, p.Default)
}

func TestGetOrCreatePoolByNameConcurrentCallersDoNotDuplicate(t *testing.T) {
	fs := newFakeStore()
	m := New(fs)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.GetOrCreatePoolByName(context.Background(), "proj-1", "shared")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fs.createCalls)
}

func TestFilterPoolInstancesExcludesTerminatingAndTerminated(t *testing.T) {
	fs := newFakeStore()
	fs.instances = []*domain.Instance{
		{ID: "i1", PoolID: "pool-1", BackendType: "aws", Region: "us-east-1", Status: domain.InstanceStatusIdle, OfferSnapshot: domain.Offer{CPU: 4, MemoryMiB: 8192}},
		{ID: "i2", PoolID: "pool-1", BackendType: "aws", Region: "us-east-1", Status: domain.InstanceStatusTerminating, OfferSnapshot: domain.Offer{CPU: 4, MemoryMiB: 8192}},
		{ID: "i3", PoolID: "pool-1", BackendType: "aws", Region: "us-east-1", Status: domain.InstanceStatusTerminated, OfferSnapshot: domain.Offer{CPU: 4, MemoryMiB: 8192}},
	}
	m := New(fs)

	out, err := m.FilterPoolInstances(context.Background(), "pool-1", domain.Profile{}, domain.Requirements{CPU: 2})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "i1", out[0].ID)
}

func TestFilterPoolInstancesExcludesUnsatisfyingRequirements(t *testing.T) {
	fs := newFakeStore()
	fs.instances = []*domain.Instance{
		{ID: "small", PoolID: "pool-1", BackendType: "aws", Status: domain.InstanceStatusIdle, OfferSnapshot: domain.Offer{CPU: 2, MemoryMiB: 4096}},
	}
	m := New(fs)

	out, err := m.FilterPoolInstances(context.Background(), "pool-1", domain.Profile{}, domain.Requirements{CPU: 8})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFilterPoolInstancesRespectsProfileBackendFilter(t *testing.T) {
	fs := newFakeStore()
	fs.instances = []*domain.Instance{
		{ID: "aws-inst", PoolID: "pool-1", BackendType: "aws", Status: domain.InstanceStatusIdle, OfferSnapshot: domain.Offer{}},
		{ID: "gcp-inst", PoolID: "pool-1", BackendType: "gcp", Status: domain.InstanceStatusIdle, OfferSnapshot: domain.Offer{}},
	}
	m := New(fs)

	out, err := m.FilterPoolInstances(context.Background(), "pool-1", domain.Profile{Backends: []string{"gcp"}}, domain.Requirements{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "gcp-inst", out[0].ID)
}
