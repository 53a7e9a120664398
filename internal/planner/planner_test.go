package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/orchestrator/internal/backend"
	"github.com/skyfleet/orchestrator/internal/domain"
	"github.com/skyfleet/orchestrator/internal/pool"
	"github.com/skyfleet/orchestrator/internal/store"
)

type stubCompute struct {
	name   string
	offers []domain.Offer
	err    error
}

func (s stubCompute) Type() string { return s.name }
func (s stubCompute) GetOffers(ctx context.Context, requirements domain.Requirements) ([]domain.Offer, error) {
	return s.offers, s.err
}
func (s stubCompute) CreateInstance(ctx context.Context, offer domain.Offer, config domain.InstanceConfiguration) (domain.LaunchedInstanceInfo, error) {
	return domain.LaunchedInstanceInfo{}, nil
}
func (s stubCompute) TerminateInstance(ctx context.Context, backendData string) error { return nil }

func newRegistry(adapters ...stubCompute) *backend.Registry {
	r := backend.NewRegistry()
	for _, a := range adapters {
		r.Register(a.name, a)
	}
	return r
}

func TestPlanFansOutAcrossConfiguredBackends(t *testing.T) {
	reg := newRegistry(
		stubCompute{name: "aws", offers: []domain.Offer{{BackendType: "aws", Region: "us-east-1", Availability: domain.AvailabilityAvailable}}},
		stubCompute{name: "gcp", offers: []domain.Offer{{BackendType: "gcp", Region: "us-central1", Availability: domain.AvailabilityAvailable}}},
	)
	p := New(reg, nil, nil)

	offers, err := p.Plan(context.Background(), []string{"aws", "gcp"}, domain.Profile{}, domain.Requirements{}, false)
	require.NoError(t, err)
	assert.Len(t, offers, 2)
}

func TestPlanExcludesFailingBackend(t *testing.T) {
	reg := newRegistry(
		stubCompute{name: "aws", offers: []domain.Offer{{BackendType: "aws", Availability: domain.AvailabilityAvailable}}},
		stubCompute{name: "broken", err: errors.New("timeout")},
	)
	p := New(reg, nil, nil)

	offers, err := p.Plan(context.Background(), []string{"aws", "broken"}, domain.Profile{}, domain.Requirements{}, false)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "aws", offers[0].BackendType)
}

func TestPlanAppliesProfileBackendFilter(t *testing.T) {
	reg := newRegistry(
		stubCompute{name: "aws", offers: []domain.Offer{{BackendType: "aws", Availability: domain.AvailabilityAvailable}}},
		stubCompute{name: "gcp", offers: []domain.Offer{{BackendType: "gcp", Availability: domain.AvailabilityAvailable}}},
	)
	p := New(reg, nil, nil)

	offers, err := p.Plan(context.Background(), []string{"aws", "gcp"}, domain.Profile{Backends: []string{"gcp"}}, domain.Requirements{}, false)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "gcp", offers[0].BackendType)
}

func TestPlanExcludesNotAvailableWhenRequested(t *testing.T) {
	reg := newRegistry(
		stubCompute{name: "aws", offers: []domain.Offer{
			{BackendType: "aws", Availability: domain.AvailabilityAvailable},
			{BackendType: "aws", Availability: domain.AvailabilityNoCapacity},
		}},
	)
	p := New(reg, nil, nil)

	offers, err := p.Plan(context.Background(), []string{"aws"}, domain.Profile{}, domain.Requirements{}, true)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, domain.AvailabilityAvailable, offers[0].Availability)
}

type fakeStore struct {
	store.Store
	instances []*domain.Instance
}

func (f *fakeStore) ListPoolInstances(ctx context.Context, poolID string) ([]*domain.Instance, error) {
	return f.instances, nil
}

func TestPlanPoolTagsAvailabilityFromInstanceStatus(t *testing.T) {
	fs := &fakeStore{instances: []*domain.Instance{
		{ID: "idle-1", PoolID: "pool-1", Status: domain.InstanceStatusIdle, OfferSnapshot: domain.Offer{CPU: 4}},
		{ID: "busy-1", PoolID: "pool-1", Status: domain.InstanceStatusBusy, OfferSnapshot: domain.Offer{CPU: 4}},
	}}
	p := New(nil, pool.New(fs), nil)

	offers, err := p.PlanPool(context.Background(), "pool-1", domain.Profile{}, domain.Requirements{})
	require.NoError(t, err)
	require.Len(t, offers, 2)

	byID := map[string]domain.Offer{}
	for _, o := range offers {
		byID[o.PoolInstanceID] = o
	}
	assert.Equal(t, domain.AvailabilityIdle, byID["idle-1"].Availability)
	assert.Equal(t, domain.AvailabilityBusy, byID["busy-1"].Availability)
}

func TestBuildRunPlanCapsPreviewAndRecordsTotalCount(t *testing.T) {
	var remoteOffers []domain.Offer
	for i := 0; i < 60; i++ {
		remoteOffers = append(remoteOffers, domain.Offer{BackendType: "aws", Availability: domain.AvailabilityAvailable, Price: float64(i)})
	}
	reg := newRegistry(stubCompute{name: "aws", offers: remoteOffers})
	fs := &fakeStore{}
	p := New(reg, pool.New(fs), nil)

	plan, err := p.BuildRunPlan(context.Background(), []string{"aws"}, &domain.Pool{ID: "pool-1"}, domain.Profile{}, domain.Requirements{}, domain.RunSpec{})
	require.NoError(t, err)
	assert.Len(t, plan.OfferPreview, domain.PreviewCap)
	assert.Equal(t, 60, plan.TotalOfferCount)
	require.NotNil(t, plan.MaxPrice)
	assert.Equal(t, 59.0, *plan.MaxPrice)
}

func TestBuildRunPlanConcatenatesPoolOffersFirst(t *testing.T) {
	reg := newRegistry(stubCompute{name: "aws", offers: []domain.Offer{{BackendType: "aws", Availability: domain.AvailabilityAvailable, Price: 5}}})
	fs := &fakeStore{instances: []*domain.Instance{
		{ID: "pool-inst", PoolID: "pool-1", Status: domain.InstanceStatusIdle, OfferSnapshot: domain.Offer{BackendType: "aws", Price: 1}},
	}}
	p := New(reg, pool.New(fs), nil)

	plan, err := p.BuildRunPlan(context.Background(), []string{"aws"}, &domain.Pool{ID: "pool-1"}, domain.Profile{}, domain.Requirements{}, domain.RunSpec{})
	require.NoError(t, err)
	require.Len(t, plan.OfferPreview, 2)
	assert.Equal(t, "pool-inst", plan.OfferPreview[0].PoolInstanceID)
}

func TestBuildRunPlanSkipsRemoteOffersUnderReusePolicy(t *testing.T) {
	reg := newRegistry(stubCompute{name: "aws", offers: []domain.Offer{{BackendType: "aws", Availability: domain.AvailabilityAvailable}}})
	fs := &fakeStore{instances: []*domain.Instance{
		{ID: "pool-inst", PoolID: "pool-1", Status: domain.InstanceStatusIdle, OfferSnapshot: domain.Offer{BackendType: "aws"}},
	}}
	p := New(reg, pool.New(fs), nil)

	plan, err := p.BuildRunPlan(context.Background(), []string{"aws"}, &domain.Pool{ID: "pool-1"}, domain.Profile{CreationPolicy: domain.CreationPolicyReuse}, domain.Requirements{}, domain.RunSpec{})
	require.NoError(t, err)
	require.Len(t, plan.OfferPreview, 1)
	assert.Equal(t, "pool-inst", plan.OfferPreview[0].PoolInstanceID)
}

func TestCreateCapableOffersFiltersAggregator(t *testing.T) {
	offers := []domain.Offer{
		{BackendType: "aws"},
		{BackendType: "aggregator"},
		{BackendType: "gcp"},
	}
	out := CreateCapableOffers(offers)
	require.Len(t, out, 2)
	for _, o := range out {
		assert.NotEqual(t, "aggregator", o.BackendType)
	}
}
