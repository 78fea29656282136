package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/convoyhq/convoy/pkg/cache"
	"github.com/convoyhq/convoy/pkg/models"
	"github.com/convoyhq/convoy/pkg/store"
)

// Clamp limits for a single location sample. A rider cannot cover more than
// maxDeltaKm in one sample nor sustain more than maxSpeedKmh.
const (
	maxDeltaKm  = 10.0
	maxSpeedKmh = 250.0

	// firstSampleElapsed is assumed when the previous update time yields no
	// usable elapsed interval.
	firstSampleElapsed = 60 * time.Second

	// DefaultMinInterval is the per-instance ingest throttle. Samples
	// arriving faster are dropped without advancing statistics.
	DefaultMinInterval = 1500 * time.Millisecond
)

// LocationService ingests location samples: validates, clamps to physical
// plausibility, aggregates instance statistics, writes through, and emits a
// throttled broadcast.
type LocationService struct {
	store      Store
	cache      cache.Cache
	broadcasts Broadcasts
	clock      clockwork.Clock

	minInterval time.Duration

	mu           sync.Mutex
	lastAccepted map[string]time.Time
}

// NewLocationService creates the pipeline. minInterval <= 0 selects
// DefaultMinInterval.
func NewLocationService(st Store, c cache.Cache, b Broadcasts, clock clockwork.Clock, minInterval time.Duration) *LocationService {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &LocationService{
		store:        st,
		cache:        c,
		broadcasts:   b,
		clock:        clock,
		minInterval:  minInterval,
		lastAccepted: make(map[string]time.Time),
	}
}

// UpdateLocation applies one sample to the caller's ACTIVE instance and
// returns the updated row. Throttled samples return the current row
// unchanged; the client resends on its own interval, so nothing is retried
// here.
func (s *LocationService) UpdateLocation(ctx context.Context, userID, instanceID string, req models.LocationUpdateRequest) (*models.JourneyInstance, error) {
	if !models.ValidCoordinates(req.Latitude, req.Longitude) {
		return nil, NewValidationError("latitude", "coordinates out of range")
	}

	inst, err := s.store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, fromStore(err)
	}
	if inst.UserID != userID {
		return nil, ErrNotYourInstance
	}
	if inst.Status != models.InstanceActive {
		return nil, ErrNotActive
	}

	now := s.clock.Now().UTC()
	if !s.accept(instanceID, now) {
		// Dropped silently; totals do not advance.
		return inst, nil
	}

	delta := clamp(req.DistanceDeltaKm, 0, maxDeltaKm)

	elapsed := now.Sub(inst.LastLocationUpdate)
	if inst.LastLocationUpdate.IsZero() || elapsed <= 0 {
		elapsed = firstSampleElapsed
	}
	if maxPlausible := elapsed.Hours() * maxSpeedKmh; delta > maxPlausible {
		slog.Warn("Clamping implausible distance delta",
			"instance_id", instanceID,
			"delta_km", delta,
			"elapsed_s", elapsed.Seconds(),
			"clamped_km", maxPlausible)
		delta = maxPlausible
	}

	speed := clamp(req.SpeedKmh, 0, maxSpeedKmh)

	totalTime := int64(now.Sub(inst.StartTime).Seconds())
	if totalTime < 0 {
		totalTime = 0
	}
	avgSpeed := 0.0
	if totalTime > 0 {
		avgSpeed = (inst.TotalDistance + delta) / float64(totalTime) * 3600
		if avgSpeed > maxSpeedKmh {
			avgSpeed = maxSpeedKmh
		}
	}

	var point *models.RoutePoint
	if req.RoutePoint != nil {
		p := *req.RoutePoint
		if p.Timestamp.IsZero() {
			p.Timestamp = now
		}
		point = &p
	}

	updated, err := s.store.ApplyLocation(ctx, store.LocationUpdate{
		InstanceID: instanceID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		At:         now,
		DistanceKm: delta,
		TotalTime:  totalTime,
		AvgSpeed:   avgSpeed,
		SpeedKmh:   speed,
		RoutePoint: point,
	})
	if err != nil {
		// The ACTIVE guard on the write lost to a concurrent pause or
		// complete.
		if terr := fromStore(err); errors.Is(terr, ErrNotFound) {
			return nil, ErrNotActive
		}
		return nil, fromStore(err)
	}
	updated.User = inst.User

	s.cache.Set(ctx, cache.InstanceKey(updated.ID), updated, cache.TTLShort)
	s.cache.Set(ctx, cache.UserInstanceKey(updated.UserID, updated.GroupJourneyID), updated, cache.TTLShort)
	s.cache.Del(ctx, cache.JourneyFullKey(updated.GroupJourneyID))

	p := instanceSnapshot(updated)
	p.SpeedKmh = speed
	s.broadcasts.LocationUpdated(updated.GroupJourneyID, p)

	return updated, nil
}

// accept records the sample time if the per-instance throttle allows it.
func (s *LocationService) accept(instanceID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastAccepted[instanceID]; ok && now.Sub(last) < s.minInterval {
		return false
	}
	if len(s.lastAccepted) > 4096 {
		s.prune(now)
	}
	s.lastAccepted[instanceID] = now
	return true
}

// prune drops throttle entries idle for an hour. Called with mu held.
func (s *LocationService) prune(now time.Time) {
	for id, last := range s.lastAccepted {
		if now.Sub(last) > time.Hour {
			delete(s.lastAccepted, id)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
