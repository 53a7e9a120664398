package tensordock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

func TestTypeIsTensorDock(t *testing.T) {
	assert.Equal(t, "tensordock", New().Type())
}

func TestGetOffersFiltersByMaxPrice(t *testing.T) {
	b := New()
	maxPrice := 0.5
	offers, err := b.GetOffers(context.Background(), domain.Requirements{MaxPrice: &maxPrice})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
	assert.Equal(t, "rtx3090-24gb", offers[0].InstanceType)
}

func TestCreateInstanceSucceeds(t *testing.T) {
	b := New()
	offer := domain.Offer{BackendType: "tensordock", InstanceType: "rtx3090-24gb", Region: "us-central"}
	launched, err := b.CreateInstance(context.Background(), offer, domain.InstanceConfiguration{})
	require.NoError(t, err)
	assert.NotEmpty(t, launched.InstanceID)
	assert.True(t, launched.Dockerized)
}

func TestCreateInstanceRejectsWrongBackend(t *testing.T) {
	b := New()
	_, err := b.CreateInstance(context.Background(), domain.Offer{BackendType: "gcp"}, domain.InstanceConfiguration{})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedCapability)
}

func TestTerminateInstanceNoError(t *testing.T) {
	b := New()
	assert.NoError(t, b.TerminateInstance(context.Background(), "td-123"))
}
