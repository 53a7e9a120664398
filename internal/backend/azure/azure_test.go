package azure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

func TestTypeIsAzure(t *testing.T) {
	assert.Equal(t, "azure", New().Type())
}

func TestGetOffersFiltersByGPU(t *testing.T) {
	b := New()
	offers, err := b.GetOffers(context.Background(), domain.Requirements{
		GPU: &domain.GPURequirement{Count: 1},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, offers)
	for _, o := range offers {
		assert.GreaterOrEqual(t, o.GPUCount, 1)
	}
}

func TestCreateInstanceSucceeds(t *testing.T) {
	b := New()
	offer := domain.Offer{BackendType: "azure", InstanceType: "Standard_D2s_v5", Region: "eastus"}
	launched, err := b.CreateInstance(context.Background(), offer, domain.InstanceConfiguration{})
	require.NoError(t, err)
	assert.NotEmpty(t, launched.InstanceID)
}

func TestCreateInstanceRejectsWrongBackend(t *testing.T) {
	b := New()
	_, err := b.CreateInstance(context.Background(), domain.Offer{BackendType: "aws"}, domain.InstanceConfiguration{})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedCapability)
}

func TestTerminateInstanceNoError(t *testing.T) {
	b := New()
	assert.NoError(t, b.TerminateInstance(context.Background(), "vm-123"))
}
