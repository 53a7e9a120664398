// Package tensordock implements backend.Compute for TensorDock's
// marketplace.
//
// A production adapter would call TensorDock's REST API over
// net/http; no vendor SDK for it appears in the example pack (see
// DESIGN.md, "Backend adapters").
package tensordock

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

const backendType = "tensordock"

var instanceCatalog = []struct {
	instanceType string
	region       string
	cpu          float64
	memoryMiB    int
	gpuCount     int
	pricePerHour float64
}{
	{"rtx3090-24gb", "us-central", 8, 32768, 1, 0.29},
	{"a100-80gb", "eu-central", 32, 131072, 1, 1.1},
}

// Backend is the TensorDock Compute adapter.
type Backend struct{}

// New builds a TensorDock backend adapter.
func New() *Backend { return &Backend{} }

// Type returns "tensordock".
func (b *Backend) Type() string { return backendType }

// GetOffers returns the marketplace entries satisfying requirements.
func (b *Backend) GetOffers(ctx context.Context, requirements domain.Requirements) ([]domain.Offer, error) {
	var offers []domain.Offer
	for _, entry := range instanceCatalog {
		offer := domain.Offer{
			BackendType:  backendType,
			InstanceType: entry.instanceType,
			Region:       entry.region,
			CPU:          entry.cpu,
			MemoryMiB:    entry.memoryMiB,
			GPUCount:     entry.gpuCount,
			Price:        entry.pricePerHour,
			Availability: domain.AvailabilityAvailable,
			Runtime:      domain.RuntimeShim,
		}
		if offer.Satisfies(requirements) {
			offers = append(offers, offer)
		}
	}
	return offers, nil
}

// CreateInstance launches a TensorDock instance from offer.
func (b *Backend) CreateInstance(ctx context.Context, offer domain.Offer, config domain.InstanceConfiguration) (domain.LaunchedInstanceInfo, error) {
	if offer.BackendType != backendType {
		return domain.LaunchedInstanceInfo{}, apperrors.ErrUnsupportedCapability
	}
	id := "td-" + uuid.NewString()[:12]
	return domain.LaunchedInstanceInfo{
		InstanceID:  id,
		IP:          fmt.Sprintf("10.6.%d.%d", len(offer.Region), len(offer.InstanceType)),
		Region:      offer.Region,
		Username:    "user",
		SSHPort:     22,
		Dockerized:  true,
		BackendData: id,
	}, nil
}

// TerminateInstance tears down a TensorDock instance.
func (b *Backend) TerminateInstance(ctx context.Context, backendData string) error {
	return nil
}
