// Package namegen generates unique, human-readable run names under a
// per-project critical section, following the `<adjective>-<noun>-<n>`
// format spec §6 mandates.
package namegen

import (
	"context"
	"fmt"
	"sync"

	"github.com/skyfleet/orchestrator/internal/domain"
)

// ExistingNamesFunc returns the set of run_name values currently active
// (non-deleted) within a project.
type ExistingNamesFunc func(ctx context.Context, projectID string) (map[string]bool, error)

// Generator produces unique run names, serializing concurrent
// generation within a project via a per-project mutex so two
// simultaneous submissions never race to the same name (spec §5
// "Shared resources").
type Generator struct {
	adjectives []string
	nouns      []string
	rng        func(n int) int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a Generator over the given adjective/noun vocabularies.
// rng selects an index in [0, n); pass a deterministic function in
// tests.
func New(adjectives, nouns []string, rng func(n int) int) *Generator {
	return &Generator{
		adjectives: adjectives,
		nouns:      nouns,
		rng:        rng,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (g *Generator) lockFor(projectID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[projectID] = l
	}
	return l
}

// Generate produces a unique run name for projectID: `<adjective>-<noun>-<n>`
// where n is the smallest positive integer making the name unique
// within the project (spec §6).
func (g *Generator) Generate(ctx context.Context, projectID string, existingNames ExistingNamesFunc) (string, error) {
	lock := g.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	base := g.base()
	existing, err := existingNames(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("list existing run names: %w", err)
	}

	for idx := 1; ; idx++ {
		candidate := fmt.Sprintf("%s-%d", base, idx)
		if !existing[candidate] {
			return candidate, nil
		}
	}
}

func (g *Generator) base() string {
	adj := g.adjectives[g.rng(len(g.adjectives))]
	noun := g.nouns[g.rng(len(g.nouns))]
	return fmt.Sprintf("%s-%s", adj, noun)
}

// ValidateAndReserve checks an explicitly provided run name against
// the format regex. The caller (run submission) is responsible for the
// delete-existing-if-inactive step (spec §4.3 step 3).
func ValidateAndReserve(name string) error {
	return domain.ValidateRunName(name)
}
