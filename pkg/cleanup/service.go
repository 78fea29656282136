// Package cleanup provides data retention for journey history.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Pruner is the slice of the store the sweeper needs.
type Pruner interface {
	PruneRideEvents(ctx context.Context, cutoff time.Time) (int64, error)
	PruneRoutePoints(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config tunes the retention sweep.
type Config struct {
	// RideEventRetention is how long timeline entries of finished journeys
	// are kept.
	RideEventRetention time.Duration
	// RoutePointRetention is how long raw GPS tracks of terminal instances
	// are kept. Aggregates survive the prune.
	RoutePointRetention time.Duration
	// Interval between sweeps.
	Interval time.Duration
}

// Service periodically enforces retention policies:
//   - Deletes old ride events on non-active journeys
//   - Clears route points of long-finished instances
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config Config
	store  Pruner

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg Config, store Pruner) *Service {
	return &Service{config: cfg, store: store}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"ride_event_retention", s.config.RideEventRetention,
		"route_point_retention", s.config.RoutePointRetention,
		"interval", s.config.Interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.pruneRideEvents(ctx)
	s.pruneRoutePoints(ctx)
}

func (s *Service) pruneRideEvents(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.RideEventRetention)
	count, err := s.store.PruneRideEvents(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: ride event prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned old ride events", "count", count)
	}
}

func (s *Service) pruneRoutePoints(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.RoutePointRetention)
	count, err := s.store.PruneRoutePoints(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: route point prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: cleared route points", "count", count)
	}
}
