// Package cudo implements backend.Compute for Cudo Compute.
//
// A production adapter would call Cudo's REST API over net/http; no
// Cudo-specific Go client appears in the example pack, so the HTTP
// surface is represented here without a live transport (see
// DESIGN.md, "Backend adapters").
package cudo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

const backendType = "cudo"

var instanceCatalog = []struct {
	instanceType string
	region       string
	cpu          float64
	memoryMiB    int
	gpuCount     int
	pricePerHour float64
}{
	{"vm.2v.8gb", "no-central-1", 2, 8192, 0, 0.025},
	{"gpu.1xa100", "se-central-1", 16, 131072, 1, 1.35},
}

// Backend is the Cudo Compute adapter.
type Backend struct{}

// New builds a Cudo backend adapter.
func New() *Backend { return &Backend{} }

// Type returns "cudo".
func (b *Backend) Type() string { return backendType }

// GetOffers returns the catalog entries satisfying requirements.
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

// CreateInstance launches a Cudo VM from offer.
func (b *Backend) CreateInstance(ctx context.Context, offer domain.Offer, config domain.InstanceConfiguration) (domain.LaunchedInstanceInfo, error) {
	if offer.BackendType != backendType {
		return domain.LaunchedInstanceInfo{}, apperrors.ErrUnsupportedCapability
	}
	id := "cudo-" + uuid.NewString()[:12]
	return domain.LaunchedInstanceInfo{
		InstanceID:  id,
		IP:          fmt.Sprintf("10.3.%d.%d", len(offer.Region), len(offer.InstanceType)),
		Region:      offer.Region,
		Username:    "root",
		SSHPort:     22,
		Dockerized:  true,
		BackendData: id,
	}, nil
}

// TerminateInstance tears down a Cudo VM.
func (b *Backend) TerminateInstance(ctx context.Context, backendData string) error {
	return nil
}
