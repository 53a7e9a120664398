package aggregator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
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

func TestGetOffersMergesAcrossBackends(t *testing.T) {
	aws := stubCompute{name: "aws", offers: []domain.Offer{{BackendType: "aws", InstanceType: "t3.large"}}}
	gcp := stubCompute{name: "gcp", offers: []domain.Offer{{BackendType: "gcp", InstanceType: "n2-standard-2"}}}

	b := New(nil, aws, gcp)
	offers, err := b.GetOffers(context.Background(), domain.Requirements{})
	require.NoError(t, err)
	assert.Len(t, offers, 2)
}

func TestGetOffersExcludesFailingBackend(t *testing.T) {
	aws := stubCompute{name: "aws", offers: []domain.Offer{{BackendType: "aws"}}}
	broken := stubCompute{name: "broken", err: errors.New("unreachable")}

	b := New(nil, aws, broken)
	offers, err := b.GetOffers(context.Background(), domain.Requirements{})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
	assert.Equal(t, "aws", offers[0].BackendType)
}

func TestGetOffersEmptyWhenNoBackendsWrapped(t *testing.T) {
	b := New(nil)
	offers, err := b.GetOffers(context.Background(), domain.Requirements{})
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestCreateInstanceUnsupported(t *testing.T) {
	b := New(nil)
	_, err := b.CreateInstance(context.Background(), domain.Offer{}, domain.InstanceConfiguration{})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedCapability)
}

func TestTerminateInstanceUnsupported(t *testing.T) {
	b := New(nil)
	err := b.TerminateInstance(context.Background(), "some-id")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedCapability)
}

func TestTypeIsAggregator(t *testing.T) {
	b := New(nil)
	assert.Equal(t, "aggregator", b.Type())
}
