package cudo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

func TestTypeIsCudo(t *testing.T) {
	assert.Equal(t, "cudo", New().Type())
}

func TestGetOffersFiltersByGPU(t *testing.T) {
	b := New()
	offers, err := b.GetOffers(context.Background(), domain.Requirements{
		GPU: &domain.GPURequirement{Count: 1},
	})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
	assert.Equal(t, "gpu.1xa100", offers[0].InstanceType)
}

func TestGetOffersWithoutGPUReturnsAll(t *testing.T) {
	b := New()
	offers, err := b.GetOffers(context.Background(), domain.Requirements{})
	require.NoError(t, err)
	assert.Len(t, offers, 2)
}

func TestCreateInstanceSucceeds(t *testing.T) {
	b := New()
	offer := domain.Offer{BackendType: "cudo", InstanceType: "vm.2v.8gb", Region: "no-central-1"}
	launched, err := b.CreateInstance(context.Background(), offer, domain.InstanceConfiguration{})
	require.NoError(t, err)
	assert.NotEmpty(t, launched.InstanceID)
	assert.True(t, launched.Dockerized)
}

func TestCreateInstanceRejectsWrongBackend(t *testing.T) {
	b := New()
	_, err := b.CreateInstance(context.Background(), domain.Offer{BackendType: "aws"}, domain.InstanceConfiguration{})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedCapability)
}

func TestTerminateInstanceNoError(t *testing.T) {
	b := New()
	assert.NoError(t, b.TerminateInstance(context.Background(), "cudo-vm-123"))
}
