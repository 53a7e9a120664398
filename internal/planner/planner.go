// Package planner merges pool-derived and live backend-queried offers
// into ranked candidate lists, applying a profile's backend/region/
// availability filters (spec §4.1).
package planner

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/skyfleet/orchestrator/internal/backend"
	"github.com/skyfleet/orchestrator/internal/domain"
	"github.com/skyfleet/orchestrator/internal/metrics"
	"github.com/skyfleet/orchestrator/internal/pool"
)

// Planner enumerates candidate offers across a project's registered
// backends and its pools.
type Planner struct {
	registry *backend.Registry
	pools    *pool.Manager
	log      *logrus.Entry
}

// New builds a Planner over the given backend registry and pool manager.
func New(registry *backend.Registry, pools *pool.Manager, log *logrus.Entry) *Planner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Planner{registry: registry, pools: pools, log: log}
}

// Plan enumerates candidate (backend, offer) pairs for requirements,
// narrowed to the project's configured backends and the profile's
// backend/region filters (spec §4.1 "plan").
func (p *Planner) Plan(ctx context.Context, configuredBackends []string, profile domain.Profile, requirements domain.Requirements, excludeNotAvailable bool) ([]domain.Offer, error) {
	adapters := p.registry.ForProject(configuredBackends)

	var narrowed []backendHandle
	for _, a := range adapters {
		if profile.BackendAllowed(a.Type()) {
			narrowed = append(narrowed, backendHandle{name: a.Type(), compute: a})
		}
	}

	offers := p.fanOut(ctx, narrowed, requirements)

	var filtered []domain.Offer
	for _, o := range offers {
		if !profile.BackendAllowed(o.BackendType) {
			continue
		}
		if !profile.RegionAllowed(o.Region) {
			continue
		}
		if excludeNotAvailable && !o.Availability.Available() {
			continue
		}
		filtered = append(filtered, o)
	}
	return filtered, nil
}

type backendHandle struct {
	name    string
	compute backend.Compute
}

// fanOut concurrently queries every adapter, logging and excluding
// per-backend failures rather than failing the whole call (spec §4.1
// step 3).
func (p *Planner) fanOut(ctx context.Context, adapters []backendHandle, requirements domain.Requirements) []domain.Offer {
	type result struct {
		offers []domain.Offer
		err    error
		name   string
	}
	results := make(chan result, len(adapters))

	var wg sync.WaitGroup
	for _, a := range adapters {
		wg.Add(1)
		go func(h backendHandle) {
			defer wg.Done()
			offers, err := h.compute.GetOffers(ctx, requirements)
			results <- result{offers: offers, err: err, name: h.name}
		}(a)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var all []domain.Offer
	for r := range results {
		if r.err != nil {
			metrics.BackendOfferErrors.WithLabelValues(r.name).Inc()
			p.log.WithField("backend", r.name).WithError(r.err).Warn("planner: backend offer query failed")
			continue
		}
		all = append(all, r.offers...)
	}
	return all
}

// PlanPool returns offers derived from a pool's instances, tagged with
// availability IDLE or BUSY to reflect the underlying instance's status
// (spec §4.1 "plan_pool").
func (p *Planner) PlanPool(ctx context.Context, poolID string, profile domain.Profile, requirements domain.Requirements) ([]domain.Offer, error) {
	instances, err := p.pools.FilterPoolInstances(ctx, poolID, profile, requirements)
	if err != nil {
		return nil, err
	}

	offers := make([]domain.Offer, 0, len(instances))
	for _, inst := range instances {
		offer := inst.OfferSnapshot
		offer.PoolInstanceID = inst.ID
		if inst.Status == domain.InstanceStatusIdle {
			offer.Availability = domain.AvailabilityIdle
		} else {
			offer.Availability = domain.AvailabilityBusy
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// BuildRunPlan merges pool offers (reuse bias, concatenated first) with
// remote backend offers into the capped preview a dry-run or submit_run
// reports back to the caller (spec §4.1 "Merge policy for a run plan").
func (p *Planner) BuildRunPlan(ctx context.Context, configuredBackends []string, pool *domain.Pool, profile domain.Profile, requirements domain.Requirements, runSpec domain.RunSpec) (domain.RunPlan, error) {
	var combined []domain.Offer

	if pool != nil {
		poolOffers, err := p.PlanPool(ctx, pool.ID, profile, requirements)
		if err != nil {
			return domain.RunPlan{}, err
		}
		combined = append(combined, poolOffers...)
	}

	if profile.CreationPolicy == domain.CreationPolicyReuseOrCreate || profile.CreationPolicy == "" {
		remoteOffers, err := p.Plan(ctx, configuredBackends, profile, requirements, false)
		if err != nil {
			return domain.RunPlan{}, err
		}
		combined = append(combined, remoteOffers...)
	}

	metrics.OfferPlanSize.WithLabelValues("run_plan").Observe(float64(len(combined)))

	preview := combined
	if len(preview) > domain.PreviewCap {
		preview = preview[:domain.PreviewCap]
	}

	var maxPrice *float64
	for _, o := range combined {
		price := o.Price
		if maxPrice == nil || price > *maxPrice {
			maxPrice = &price
		}
	}

	return domain.RunPlan{
		RunSpec:         runSpec,
		OfferPreview:    preview,
		TotalOfferCount: len(combined),
		MaxPrice:        maxPrice,
	}, nil
}

// CreateCapableOffers narrows offers to those whose backend type
// supports instance creation, the filter create_instance applies before
// attempting its fallback sequence (spec §4.6 step 2).
func CreateCapableOffers(offers []domain.Offer) []domain.Offer {
	var out []domain.Offer
	for _, o := range offers {
		if domain.CreateCapableBackends[o.BackendType] {
			out = append(out, o)
		}
	}
	return out
}
