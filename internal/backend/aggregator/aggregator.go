// Package aggregator implements backend.Compute for the "aggregator"
// meta-backend: it fans GetOffers out to every backend it wraps and
// returns their offers unchanged (each keeps the BackendType its own
// backend set), but never
// creates instances itself (spec §4.1 step 2, §4.6 step 2 — aggregator
// is deliberately absent from domain.CreateCapableBackends).
package aggregator

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/skyfleet/orchestrator/internal/apperrors"
	"github.com/skyfleet/orchestrator/internal/domain"
)

const backendType = "aggregator"

// Backend fans out offer queries to a wrapped set of backends.
type Backend struct {
	log     *logrus.Entry
	wrapped []compute
}

type compute interface {
	Type() string
	GetOffers(ctx context.Context, requirements domain.Requirements) ([]domain.Offer, error)
}

// New builds an aggregator over the given backends.
func New(log *logrus.Entry, wrapped ...compute) *Backend {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Backend{log: log, wrapped: wrapped}
}

// Type returns "aggregator".
func (b *Backend) Type() string { return backendType }

// GetOffers concurrently queries every wrapped backend, excluding
// individual failures rather than failing the whole call (spec §4.1
// step 3).
func (b *Backend) GetOffers(ctx context.Context, requirements domain.Requirements) ([]domain.Offer, error) {
	type result struct {
		offers []domain.Offer
		err    error
		name   string
	}
	results := make(chan result, len(b.wrapped))

	var wg sync.WaitGroup
	for _, backend := range b.wrapped {
		wg.Add(1)
		go func(be compute) {
			defer wg.Done()
			offers, err := be.GetOffers(ctx, requirements)
			results <- result{offers: offers, err: err, name: be.Type()}
		}(backend)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var all []domain.Offer
	for r := range results {
		if r.err != nil {
			b.log.WithField("backend", r.name).WithError(r.err).Warn("aggregator: backend offer query failed")
			continue
		}
		all = append(all, r.offers...)
	}
	return all, nil
}

// CreateInstance always reports unsupported: the aggregator never
// creates instances directly, only the concrete backend it fans out to
// does (spec §4.6 step 2).
func (b *Backend) CreateInstance(ctx context.Context, offer domain.Offer, config domain.InstanceConfiguration) (domain.LaunchedInstanceInfo, error) {
	return domain.LaunchedInstanceInfo{}, apperrors.ErrUnsupportedCapability
}

// TerminateInstance is unsupported for the same reason as CreateInstance.
func (b *Backend) TerminateInstance(ctx context.Context, backendData string) error {
	return apperrors.ErrUnsupportedCapability
}
