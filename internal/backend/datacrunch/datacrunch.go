// Package datacrunch implements backend.Compute for DataCrunch.io.
//
// A production adapter would call DataCrunch's REST API over
// net/http; no vendor SDK for it appears in the example pack (see
// DESIGN.md, "Backend adapters").
package datacrunch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

const backendType = "datacrunch"

var instanceCatalog = []struct {
	instanceType string
	region       string
	cpu          float64
	memoryMiB    int
	gpuCount     int
	pricePerHour float64
}{
	{"1V100.6V", "FIN-01", 6, 45056, 1, 0.89},
	{"8A100.80S.176V", "FIN-01", 176, 1153434, 8, 18.8},
}

// Backend is the DataCrunch Compute adapter.
type Backend struct{}

// New builds a DataCrunch backend adapter.
func New() *Backend { return &Backend{} }

// Type returns "datacrunch".
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

// CreateInstance launches a DataCrunch instance from offer.
func (b *Backend) CreateInstance(ctx context.Context, offer domain.Offer, config domain.InstanceConfiguration) (domain.LaunchedInstanceInfo, error) {
	if offer.BackendType != backendType {
		return domain.LaunchedInstanceInfo{}, apperrors.ErrUnsupportedCapability
	}
	id := "dc-" + uuid.NewString()[:12]
	return domain.LaunchedInstanceInfo{
		InstanceID:  id,
		IP:          fmt.Sprintf("10.4.%d.%d", len(offer.Region), len(offer.InstanceType)),
		Region:      offer.Region,
		Username:    "root",
		SSHPort:     22,
		Dockerized:  false,
		BackendData: id,
	}, nil
}

// TerminateInstance tears down a DataCrunch instance.
func (b *Backend) TerminateInstance(ctx context.Context, backendData string) error {
	return nil
}
