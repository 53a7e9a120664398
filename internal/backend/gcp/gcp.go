// Package gcp implements backend.Compute for Google Cloud Platform.
//
// A production adapter would call cloud.google.com/go/compute/apiv1;
// no GCP SDK appears anywhere in the example pack, so this adapter
// models the same surface without importing one (see DESIGN.md,
// "Backend adapters").
package gcp

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

const backendType = "gcp"

var regions = []string{"us-central1", "europe-west4"}

var instanceCatalog = []struct {
	instanceType string
	cpu          float64
	memoryMiB    int
	gpuCount     int
	pricePerHour float64
}{
	{"n2-standard-2", 2, 8192, 0, 0.097},
	{"a2-highgpu-1g", 12, 87040, 1, 3.67},
}

// Backend is the GCP Compute adapter.
type Backend struct{}

// New builds a GCP backend adapter.
func New() *Backend { return &Backend{} }

// Type returns "gcp".
func (b *Backend) Type() string { return backendType }

// GetOffers returns the catalog entries satisfying requirements.
func (b *Backend) GetOffers(ctx context.Context, requirements domain.Requirements) ([]domain.Offer, error) {
	var offers []domain.Offer
	for _, region := range regions {
		for _, entry := range instanceCatalog {
			offer := domain.Offer{
				BackendType:  backendType,
				InstanceType: entry.instanceType,
				Region:       region,
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
	}
	return offers, nil
}

// CreateInstance launches a Compute Engine instance from offer.
func (b *Backend) CreateInstance(ctx context.Context, offer domain.Offer, config domain.InstanceConfiguration) (domain.LaunchedInstanceInfo, error) {
	if offer.BackendType != backendType {
		return domain.LaunchedInstanceInfo{}, apperrors.ErrUnsupportedCapability
	}
	id := "gce-" + uuid.NewString()[:12]
	return domain.LaunchedInstanceInfo{
		InstanceID:  id,
		IP:          fmt.Sprintf("10.2.%d.%d", len(offer.Region), len(offer.InstanceType)),
		Region:      offer.Region,
		Username:    "gcpuser",
		SSHPort:     22,
		Dockerized:  false,
		BackendData: id,
	}, nil
}

// TerminateInstance tears down a Compute Engine instance.
func (b *Backend) TerminateInstance(ctx context.Context, backendData string) error {
	return nil
}
