package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name          string
	startErr      error
	started       bool
	stopped       bool
	readyErr      error
	order         *[]string
}

func (f *fakeService) Name() string { return f.name }
func (f *fakeService) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	return nil
}
func (f *fakeService) Stop(ctx context.Context) error {
	f.stopped = true
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	return nil
}
func (f *fakeService) Ready(ctx context.Context) error { return f.readyErr }

func TestManagerStartsInOrder(t *testing.T) {
	m := NewManager(nil)
	var order []string
	a := &fakeService{name: "a", order: &order}
	b := &fakeService{name: "b", order: &order}
	m.Register(a)
	m.Register(b)

	require.NoError(t, m.Start(context.Background()))
	assert.True(t, a.started)
	assert.True(t, b.started)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	m := NewManager(nil)
	a := &fakeService{name: "a"}
	b := &fakeService{name: "b", startErr: errors.New("boom")}
	m.Register(a)
	m.Register(b)

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.True(t, a.started)
	assert.True(t, a.stopped, "previously started service must be rolled back")
}

func TestManagerStopsInReverseOrder(t *testing.T) {
	m := NewManager(nil)
	var order []string
	a := &fakeService{name: "a", order: &order}
	b := &fakeService{name: "b", order: &order}
	m.Register(a)
	m.Register(b)
	require.NoError(t, m.Start(context.Background()))
	order = nil
	require.NoError(t, m.Stop(context.Background()))
	assert.True(t, a.stopped)
	assert.True(t, b.stopped)
	assert.Equal(t, []string{"b", "a"}, order)
}

func TestManagerReadyPropagatesFirstFailure(t *testing.T) {
	m := NewManager(nil)
	a := &fakeService{name: "a"}
	b := &fakeService{name: "b", readyErr: errors.New("not ready")}
	m.Register(a)
	m.Register(b)
	err := m.Ready(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
}
