package lambda

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

func TestTypeIsLambda(t *testing.T) {
	assert.Equal(t, "lambda", New().Type())
}

func TestGetOffersFiltersByGPUCount(t *testing.T) {
	b := New()
	offers, err := b.GetOffers(context.Background(), domain.Requirements{
		GPU: &domain.GPURequirement{Count: 8},
	})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
	assert.Equal(t, "gpu_8x_a100_80gb_sxm4", offers[0].InstanceType)
}

func TestCreateInstanceSucceeds(t *testing.T) {
	b := New()
	offer := domain.Offer{BackendType: "lambda", InstanceType: "gpu_1x_a10", Region: "us-east-1"}
	launched, err := b.CreateInstance(context.Background(), offer, domain.InstanceConfiguration{})
	require.NoError(t, err)
	assert.NotEmpty(t, launched.InstanceID)
	assert.False(t, launched.Dockerized)
}

func TestCreateInstanceRejectsWrongBackend(t *testing.T) {
	b := New()
	_, err := b.CreateInstance(context.Background(), domain.Offer{BackendType: "datacrunch"}, domain.InstanceConfiguration{})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedCapability)
}

func TestTerminateInstanceNoError(t *testing.T) {
	b := New()
	assert.NoError(t, b.TerminateInstance(context.Background(), "lambda-123"))
}
