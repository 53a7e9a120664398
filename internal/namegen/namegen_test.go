package namegen

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRNG(i int) func(int) int {
	return func(n int) int { return i % n }
}

func TestGenerateProducesRegexCompliantName(t *testing.T) {
	g := New([]string{"clever"}, []string{"otter"}, fixedRNG(0))
	name, err := g.Generate(context.Background(), "proj-1", func(ctx context.Context, projectID string) (map[string]bool, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "clever-otter-1", name)
}

func TestGenerateSkipsTakenNames(t *testing.T) {
	g := New([]string{"clever"}, []string{"otter"}, fixedRNG(0))
	taken := map[string]bool{"clever-otter-1": true, "clever-otter-2": true}
	name, err := g.Generate(context.Background(), "proj-1", func(ctx context.Context, projectID string) (map[string]bool, error) {
		return taken, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "clever-otter-3", name)
}

func TestGenerateSerializesPerProject(t *testing.T) {
	g := New([]string{"a"}, []string{"b"}, fixedRNG(0))
	var mu sync.Mutex
	seen := map[string]bool{}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := g.Generate(context.Background(), "proj-shared", func(ctx context.Context, projectID string) (map[string]bool, error) {
				mu.Lock()
				snapshot := make(map[string]bool, len(seen))
				for k := range seen {
					snapshot[k] = true
				}
				mu.Unlock()
				return snapshot, nil
			})
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			if seen[name] {
				mu.Unlock()
				errs <- fmt.Errorf("duplicate name generated: %s", name)
				return
			}
			seen[name] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	assert.Len(t, seen, 20)
}

func TestValidateAndReserve(t *testing.T) {
	assert.NoError(t, ValidateAndReserve("good-name-1"))
	assert.Error(t, ValidateAndReserve("Bad Name"))
}
