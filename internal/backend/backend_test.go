package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/orchestrator/internal/domain"
)

type stubCompute struct {
	name string
}

func (s stubCompute) Type() string { return s.name }
func (s stubCompute) GetOffers(ctx context.Context, requirements domain.Requirements) ([]domain.Offer, error) {
	return nil, nil
}
func (s stubCompute) CreateInstance(ctx context.Context, offer domain.Offer, config domain.InstanceConfiguration) (domain.LaunchedInstanceInfo, error) {
	return domain.LaunchedInstanceInfo{}, nil
}
func (s stubCompute) TerminateInstance(ctx context.Context, backendData string) error { return nil }

func TestRegistryGetUnknownBackend(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("aws")
	assert.Error(t, err)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register("aws", stubCompute{name: "aws"})
	adapter, err := r.Get("aws")
	require.NoError(t, err)
	assert.Equal(t, "aws", adapter.Type())
}

func TestRegistryRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register("aws", stubCompute{name: "aws"})
	assert.Panics(t, func() { r.Register("aws", stubCompute{name: "aws"}) })
}

func TestRegistryForProjectPreservesOrderAndSkipsUnknown(t *testing.T) {
	r := NewRegistry()
	r.Register("aws", stubCompute{name: "aws"})
	r.Register("gcp", stubCompute{name: "gcp"})

	adapters := r.ForProject([]string{"gcp", "azure", "aws"})
	require.Len(t, adapters, 2)
	assert.Equal(t, "gcp", adapters[0].Type())
	assert.Equal(t, "aws", adapters[1].Type())
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.Register("aws", stubCompute{name: "aws"})
	r.Register("gcp", stubCompute{name: "gcp"})
	assert.Equal(t, []string{"aws", "gcp"}, r.Names())
}
