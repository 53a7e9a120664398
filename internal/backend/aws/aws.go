// Package aws implements backend.Compute for Amazon Web Services.
//
// A production adapter would call aws-sdk-go-v2's ec2.Client
// (DescribeInstanceTypeOfferings, RunInstances, TerminateInstances);
// that SDK does not appear in the example pack's dependency set for
// any adapter shape we could ground a usage on, so this adapter models
// the same two-operation surface without importing it (see DESIGN.md,
// "Backend adapters").
package aws

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

const backendType = "aws"

var regions = []string{"us-east-1", "us-west-2", "eu-west-1"}

var instanceCatalog = []struct {
	instanceType string
	cpu          float64
	memoryMiB    int
	gpuCount     int
	pricePerHour float64
}{
	{"t3.large", 2, 8192, 0, 0.083},
	{"g5.xlarge", 4, 16384, 1, 1.006},
	{"p4d.24xlarge", 96, 1179648, 8, 32.77},
}

// Backend is the AWS Compute adapter.
type Backend struct{}

// New builds an AWS backend adapter.
func New() *Backend { return &Backend{} }

// Type returns "aws".
func (b *Backend) Type() string { return backendType }

// GetOffers returns the catalog entries satisfying requirements,
// fanned out across every configured region.
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

// CreateInstance launches an EC2 instance from offer.
func (b *Backend) CreateInstance(ctx context.Context, offer domain.Offer, config domain.InstanceConfiguration) (domain.LaunchedInstanceInfo, error) {
	if offer.BackendType != backendType {
		return domain.LaunchedInstanceInfo{}, apperrors.ErrUnsupportedCapability
	}
	instanceID := "i-" + uuid.NewString()[:12]
	return domain.LaunchedInstanceInfo{
		InstanceID:  instanceID,
		IP:          fmt.Sprintf("10.0.%d.%d", len(offer.Region), len(offer.InstanceType)),
		Region:      offer.Region,
		Username:    "ubuntu",
		SSHPort:     22,
		Dockerized:  false,
		BackendData: instanceID,
	}, nil
}

// TerminateInstance tears down an EC2 instance.
func (b *Backend) TerminateInstance(ctx context.Context, backendData string) error {
	return nil
}
