// Package lifecycle assembles the orchestrator process out of named
// services (HTTP API, reconciler driver) and brings them up in
// registration order and down in reverse order, mirroring the teacher's
// graceful-shutdown manager.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skyfleet/orchestrator/internal/logger"
)

// Service is anything the process manager can start, stop, and
// health-check.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ready(ctx context.Context) error
}

// Manager starts and stops a set of services in registration order and
// reverse order, respectively.
type Manager struct {
	log      *logger.Logger
	services []Service
}

// NewManager builds an empty Manager.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("lifecycle")
	}
	return &Manager{log: log}
}

// Register adds a service to the managed set.
func (m *Manager) Register(svc Service) {
	m.services = append(m.services, svc)
}

// Start starts every registered service in order, rolling back any
// already-started services if one fails.
func (m *Manager) Start(ctx context.Context) error {
	started := make([]Service, 0, len(m.services))
	for _, svc := range m.services {
		m.log.WithField("service", svc.Name()).Info("starting service")
		if err := svc.Start(ctx); err != nil {
			m.log.WithField("service", svc.Name()).WithError(err).Error("service failed to start")
			stopCtx, cancel := context.WithCancel(context.Background())
			for i := len(started) - 1; i >= 0; i-- {
				_ = started[i].Stop(stopCtx)
			}
			cancel()
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		started = append(started, svc)
	}
	return nil
}

// Stop stops every registered service in reverse order, collecting (but
// not short-circuiting on) individual failures.
func (m *Manager) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(m.services) - 1; i >= 0; i-- {
		svc := m.services[i]
		m.log.WithField("service", svc.Name()).Info("stopping service")
		if err := svc.Stop(ctx); err != nil {
			m.log.WithField("service", svc.Name()).WithError(err).Error("service failed to stop cleanly")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Ready returns the first error reported by any managed service.
func (m *Manager) Ready(ctx context.Context) error {
	for _, svc := range m.services {
		if err := svc.Ready(ctx); err != nil {
			return fmt.Errorf("%s: %w", svc.Name(), err)
		}
	}
	return nil
}

// Run starts all services, blocks until SIGINT/SIGTERM or ctx is
// cancelled, then stops them.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		m.log.WithField("signal", sig.String()).Info("received shutdown signal")
	case <-ctx.Done():
		m.log.Info("context cancelled")
	}

	return m.Stop(context.Background())
}
