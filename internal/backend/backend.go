// Package backend defines the Compute capability every cloud-provider
// adapter implements and a name-keyed registry the planner and
// instance creator operate through (spec §2.2, §9 "Backend
// polymorphism": treat backends as a small interface; the planner and
// instance creator operate only through it).
package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/skyfleet/orchestrator/internal/domain"
)

// Compute is the uniform capability every backend adapter exposes:
// enumerate offers, create an instance from a chosen offer, and
// terminate a previously created instance.
type Compute interface {
	// Type returns the backend's identifier, e.g. "aws", "aggregator".
	Type() string

	// GetOffers enumerates capacity matching requirements. Callers that
	// fan out over several backends log a per-backend query failure and
	// leave that backend's offers out.
	GetOffers(ctx context.Context, requirements domain.Requirements) ([]domain.Offer, error)

	// CreateInstance launches offer with the given configuration. May
	// return an apperrors.Backend error (recoverable, try the next
	// offer) or apperrors.ErrUnsupportedCapability (skip this backend).
	CreateInstance(ctx context.Context, offer domain.Offer, config domain.InstanceConfiguration) (domain.LaunchedInstanceInfo, error)

	// TerminateInstance tears down a previously created instance.
	TerminateInstance(ctx context.Context, backendData string) error
}

// Registry holds named Compute adapters, mirroring the named-factory
// registration pattern services self-register under.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Compute
	order    []string
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Compute)}
}

// Register adds a Compute adapter under name, panicking on a duplicate
// registration the way the teacher's service registry does.
func (r *Registry) Register(name string, adapter Compute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[name]; exists {
		panic("backend already registered: " + name)
	}
	r.adapters[name] = adapter
	r.order = append(r.order, name)
}

// Get returns the adapter registered under name, or an error if none
// is registered.
func (r *Registry) Get(name string) (Compute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("backend %q is not registered", name)
	}
	return adapter, nil
}

// Names returns every registered backend name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ForProject returns the Compute adapters configured for a project,
// preserving registration order, skipping any name the project lists
// that has no registered adapter.
func (r *Registry) ForProject(configuredBackends []string) []Compute {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Compute, 0, len(configuredBackends))
	for _, name := range configuredBackends {
		if adapter, ok := r.adapters[name]; ok {
			out = append(out, adapter)
		}
	}
	return out
}
