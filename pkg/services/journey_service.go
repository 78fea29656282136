// Package services contains the coordination core: the journey and instance
// state machines, the location-ingest pipeline, and the error taxonomy the
// API layer maps to status codes.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/convoyhq/convoy/pkg/cache"
	"github.com/convoyhq/convoy/pkg/events"
	"github.com/convoyhq/convoy/pkg/models"
	"github.com/convoyhq/convoy/pkg/notify"
	"github.com/convoyhq/convoy/pkg/store"
)

// JourneyService enforces the group-journey and instance lifecycles: start,
// pause, resume, complete, the all-finished auto-close rule, and the
// journey's read surface. It is the only component that writes lifecycle
// transitions.
type JourneyService struct {
	store        Store
	cache        cache.Cache
	broadcasts   Broadcasts
	notifier     Notifier
	achievements Achievements
	clock        clockwork.Clock

	// archiveOnComplete soft-archives the owning group when its journey
	// finishes for everyone. Defaults on; long-lived groups can opt out.
	archiveOnComplete bool
}

// NewJourneyService creates the lifecycle coordinator.
func NewJourneyService(st Store, c cache.Cache, b Broadcasts, n Notifier, a Achievements, clock clockwork.Clock, archiveOnComplete bool) *JourneyService {
	if a == nil {
		a = NoopAchievements{}
	}
	return &JourneyService{
		store:             st,
		cache:             c,
		broadcasts:        b,
		notifier:          n,
		achievements:      a,
		clock:             clock,
		archiveOnComplete: archiveOnComplete,
	}
}

// fromStore translates store sentinels into service error kinds. Unknown
// errors pass through and surface as ServerError at the API layer.
func fromStore(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}

// getGroup reads a group snapshot through the cache. The snapshot is the
// only basis for membership checks; the cache entry is itself store-derived
// so authorization never depends on client-supplied state.
func (s *JourneyService) getGroup(ctx context.Context, groupID string) (*models.GroupDetail, error) {
	key := cache.GroupKey(groupID)
	var cached models.GroupDetail
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	group, err := s.store.GetGroupDetail(ctx, groupID)
	if err != nil {
		return nil, fromStore(err)
	}
	s.cache.Set(ctx, key, group, cache.TTLMedium)
	return group, nil
}

// getJourney reads a journey header through the cache.
func (s *JourneyService) getJourney(ctx context.Context, journeyID string) (*models.GroupJourney, error) {
	key := cache.JourneyKey(journeyID)
	var cached models.GroupJourney
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	journey, err := s.store.GetGroupJourney(ctx, journeyID)
	if err != nil {
		return nil, fromStore(err)
	}
	s.cache.Set(ctx, key, journey, cache.TTLHour)
	return journey, nil
}

// requireMember resolves the journey's group and the caller's membership in
// one step.
func (s *JourneyService) requireMember(ctx context.Context, userID, groupID string) (*models.GroupDetail, *models.GroupMember, error) {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	member := group.Member(userID)
	if member == nil {
		return nil, nil, ErrNotAMember
	}
	return group, member, nil
}

// StartGroupJourney creates the group's shared journey. Only the group's
// creator or an admin may start one, and at most one may be ACTIVE per
// group at any time.
func (s *JourneyService) StartGroupJourney(ctx context.Context, userID string, req models.StartGroupJourneyRequest) (*models.GroupJourneyDetail, error) {
	if req.GroupID == "" {
		return nil, NewValidationError("group_id", "is required")
	}
	if !models.ValidCoordinates(req.EndLatitude, req.EndLongitude) {
		return nil, NewValidationError("end_latitude", "coordinates out of range")
	}

	group, err := s.getGroup(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	member := group.Member(userID)
	if member == nil || !member.Role.CanStartJourney() {
		return nil, ErrNotAuthorized
	}

	// Guard: cheap cache check first, then confirm against the store. The
	// partial unique index is the real arbiter under concurrency.
	var activeRef models.ActiveJourneyRef
	if s.cache.Get(ctx, cache.ActiveJourneyKey(group.ID), &activeRef) && activeRef.Status == models.JourneyActive {
		return nil, fmt.Errorf("%w: group already has an active journey", ErrConflict)
	}
	if _, err := s.store.GetActiveGroupJourney(ctx, group.ID); err == nil {
		return nil, fmt.Errorf("%w: group already has an active journey", ErrConflict)
	} else if terr := fromStore(err); !errors.Is(terr, ErrNotFound) {
		return nil, terr
	}

	title := req.Title
	if title == "" {
		title = group.Name + " journey"
	}
	journey := &models.GroupJourney{
		ID:           uuid.NewString(),
		GroupID:      group.ID,
		CreatorID:    userID,
		Title:        title,
		Description:  req.Description,
		EndLatitude:  req.EndLatitude,
		EndLongitude: req.EndLongitude,
		Status:       models.JourneyActive,
		StartedAt:    s.clock.Now().UTC(),
	}
	if err := s.store.CreateGroupJourney(ctx, journey); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: group already has an active journey", ErrConflict)
		}
		return nil, fromStore(err)
	}

	s.cache.Set(ctx, cache.ActiveJourneyKey(group.ID),
		models.ActiveJourneyRef{ID: journey.ID, Status: journey.Status}, cache.TTLHour)
	s.cache.Set(ctx, cache.JourneyKey(journey.ID), journey, cache.TTLHour)

	slog.Info("Group journey started",
		"journey_id", journey.ID, "group_id", group.ID, "creator_id", userID)

	s.broadcasts.JourneyStarted(group.MemberIDs(), events.JourneyStartedPayload{
		JourneyID:    journey.ID,
		GroupID:      group.ID,
		GroupName:    group.Name,
		Title:        journey.Title,
		Description:  journey.Description,
		CreatorID:    userID,
		EndLatitude:  journey.EndLatitude,
		EndLongitude: journey.EndLongitude,
	})

	// Everyone but the creator gets a push.
	recipients := make([]string, 0, len(group.Members))
	for _, id := range group.MemberIDs() {
		if id != userID {
			recipients = append(recipients, id)
		}
	}
	creatorName := ""
	if m := group.Member(userID); m != nil && m.User != nil {
		creatorName = m.User.DisplayName
	}
	s.notifier.JourneyStarted(ctx, recipients, notify.Notice{
		GroupJourneyID: journey.ID,
		GroupID:        group.ID,
		GroupName:      group.Name,
		StartedBy:      userID,
		StartedByName:  creatorName,
		StartedAt:      journey.StartedAt,
	})

	return &models.GroupJourneyDetail{
		GroupJourney: *journey,
		GroupName:    group.Name,
		Instances:    []models.JourneyInstance{},
		Members:      group.Members,
	}, nil
}

// StartInstance begins the caller's participation in an ACTIVE journey. A
// prior terminal or paused instance is reactivated in place; a live
// conflicting solo journey fails with Conflict unless force is set.
func (s *JourneyService) StartInstance(ctx context.Context, userID, journeyID string, req models.StartInstanceRequest) (*models.JourneyInstance, error) {
	if !models.ValidCoordinates(req.StartLatitude, req.StartLongitude) {
		return nil, NewValidationError("start_latitude", "coordinates out of range")
	}

	journey, err := s.getJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if journey.Status != models.JourneyActive {
		return nil, fmt.Errorf("%w: journey is no longer active", ErrConflict)
	}
	group, member, err := s.requireMember(ctx, userID, journey.GroupID)
	if err != nil {
		return nil, err
	}

	// The solo tracker is external; a user rides one journey at a time
	// across both systems.
	if solo, err := s.store.GetActiveSoloJourney(ctx, userID); err == nil {
		if !req.Force {
			return nil, fmt.Errorf("%w: user has an active solo journey", ErrConflict)
		}
		if _, err := s.store.CompleteSoloJourney(ctx, solo.ID, s.clock.Now().UTC()); err != nil {
			return nil, fromStore(err)
		}
		slog.Info("Force-completed solo journey", "journey_id", solo.ID, "user_id", userID)
	} else if terr := fromStore(err); !errors.Is(terr, ErrNotFound) {
		return nil, terr
	}

	// One non-terminal instance per user across all journeys.
	if open, err := s.store.GetOpenInstanceForUser(ctx, userID); err == nil {
		if open.GroupJourneyID != journeyID {
			return nil, fmt.Errorf("%w: user is already riding another journey", ErrConflict)
		}
	} else if terr := fromStore(err); !errors.Is(terr, ErrNotFound) {
		return nil, terr
	}

	now := s.clock.Now().UTC()
	point := models.RoutePoint{Lat: req.StartLatitude, Lng: req.StartLongitude, Timestamp: now}

	inst, err := s.store.GetInstanceForUser(ctx, journeyID, userID)
	switch {
	case err == nil:
		if inst.Status == models.InstanceActive {
			return nil, ErrAlreadyStarted
		}
		ok, err := s.store.ReactivateInstance(ctx, inst.ID, req.StartLatitude, req.StartLongitude, now, point)
		if err != nil {
			return nil, fromStore(err)
		}
		if !ok {
			// Lost a race to a concurrent start.
			return nil, ErrAlreadyStarted
		}
		inst, err = s.store.GetInstance(ctx, inst.ID)
		if err != nil {
			return nil, fromStore(err)
		}
	case errors.Is(err, store.ErrNotFound):
		inst = &models.JourneyInstance{
			ID:                 uuid.NewString(),
			GroupJourneyID:     journeyID,
			UserID:             userID,
			Status:             models.InstanceActive,
			StartTime:          now,
			CurrentLatitude:    req.StartLatitude,
			CurrentLongitude:   req.StartLongitude,
			LastLocationUpdate: now,
			RoutePoints:        models.RoutePoints{point},
		}
		if err := s.store.CreateInstance(ctx, inst); err != nil {
			if errors.Is(err, store.ErrConflict) {
				// The (journey, user) constraint fired under a concurrent
				// start; that start owns the instance.
				return nil, ErrAlreadyStarted
			}
			return nil, fromStore(err)
		}
		inst.User = member.User
	default:
		return nil, fromStore(err)
	}

	if err := s.store.UpdateMemberPresence(ctx, group.ID, userID, req.StartLatitude, req.StartLongitude, true, now); err != nil {
		slog.Warn("Failed to update member presence", "group_id", group.ID, "user_id", userID, "error", err)
	}
	s.cacheInstance(ctx, inst)
	s.cache.Del(ctx, cache.JourneyFullKey(journeyID), cache.GroupKey(group.ID))

	userRef := models.UserRef{ID: userID}
	if member.User != nil {
		userRef = *member.User
	}
	s.broadcasts.MemberStarted(group.ID, events.MemberStartedPayload{
		JourneyID:      journeyID,
		InstanceID:     inst.ID,
		UserID:         userID,
		User:           userRef,
		StartLatitude:  req.StartLatitude,
		StartLongitude: req.StartLongitude,
	})
	s.broadcasts.LocationUpdated(journeyID, instanceSnapshot(inst))

	event := &models.RideEvent{
		ID:             uuid.NewString(),
		GroupJourneyID: journeyID,
		InstanceID:     &inst.ID,
		UserID:         userID,
		Type:           models.EventMemberStarted,
		Latitude:       &req.StartLatitude,
		Longitude:      &req.StartLongitude,
		CreatedAt:      now,
	}
	if err := s.store.CreateRideEvent(ctx, event); err != nil {
		slog.Warn("Failed to persist member-started event", "journey_id", journeyID, "error", err)
	} else {
		event.User = inst.User
		s.broadcasts.RideEventPosted(journeyID, *event)
	}

	return inst, nil
}

// PauseInstance transitions the caller's ACTIVE instance to PAUSED.
func (s *JourneyService) PauseInstance(ctx context.Context, userID, instanceID string) (*models.JourneyInstance, error) {
	inst, err := s.ownInstance(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.PauseInstance(ctx, instanceID)
	if err != nil {
		return nil, fromStore(err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: only an active instance can be paused", ErrInvalidTransition)
	}
	inst.Status = models.InstancePaused
	s.cacheInstance(ctx, inst)
	s.cache.Del(ctx, cache.JourneyFullKey(inst.GroupJourneyID))

	s.broadcasts.InstancePaused(inst.GroupJourneyID, events.InstanceStatusPayload{
		InstanceID: inst.ID,
		UserID:     userID,
		Status:     inst.Status,
	})
	return inst, nil
}

// ResumeInstance transitions the caller's PAUSED instance back to ACTIVE.
func (s *JourneyService) ResumeInstance(ctx context.Context, userID, instanceID string) (*models.JourneyInstance, error) {
	inst, err := s.ownInstance(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.ResumeInstance(ctx, instanceID)
	if err != nil {
		return nil, fromStore(err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: only a paused instance can be resumed", ErrInvalidTransition)
	}
	inst.Status = models.InstanceActive
	s.cacheInstance(ctx, inst)
	s.cache.Del(ctx, cache.JourneyFullKey(inst.GroupJourneyID))

	s.broadcasts.InstanceResumed(inst.GroupJourneyID, events.InstanceStatusPayload{
		InstanceID: inst.ID,
		UserID:     userID,
		Status:     inst.Status,
	})
	return inst, nil
}

// CompleteInstance finalizes the caller's instance. Completing an already
// COMPLETED instance returns the stored row unchanged, so clients can
// safely retry on transport errors.
func (s *JourneyService) CompleteInstance(ctx context.Context, userID, instanceID string, req models.CompleteInstanceRequest) (*models.JourneyInstance, error) {
	inst, err := s.ownInstance(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	if inst.Status == models.InstanceCompleted {
		return inst, nil
	}
	if inst.Status == models.InstanceCancelled {
		return nil, fmt.Errorf("%w: instance was cancelled", ErrInvalidTransition)
	}
	if req.EndLatitude != nil && req.EndLongitude != nil &&
		!models.ValidCoordinates(*req.EndLatitude, *req.EndLongitude) {
		return nil, NewValidationError("end_latitude", "coordinates out of range")
	}

	// Journey and group are loaded before the transition commits: once the
	// instance flips to COMPLETED a retry short-circuits at the idempotent
	// early return, so nothing after FinalizeInstance may abort the
	// aggregate and auto-close side effects.
	journey, err := s.getJourney(ctx, inst.GroupJourneyID)
	if err != nil {
		return nil, err
	}
	group, err := s.getGroup(ctx, journey.GroupID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	totalTime := int64(now.Sub(inst.StartTime).Seconds())
	if totalTime < 0 {
		totalTime = 0
	}
	avgSpeed := 0.0
	if totalTime > 0 {
		avgSpeed = inst.TotalDistance / float64(totalTime) * 3600
		if avgSpeed > maxSpeedKmh {
			avgSpeed = maxSpeedKmh
		}
	}

	ok, err := s.store.FinalizeInstance(ctx, instanceID, now, totalTime, avgSpeed, req.EndLatitude, req.EndLongitude)
	if err != nil {
		return nil, fromStore(err)
	}
	final, err := s.store.GetInstance(ctx, instanceID)
	if err != nil {
		if !ok {
			return nil, fromStore(err)
		}
		// The transition committed; continue with locally computed totals
		// so the aggregates and the auto-close still run.
		slog.Warn("Failed to re-read finalized instance, using computed totals",
			"instance_id", instanceID, "error", err)
		cp := *inst
		cp.Status = models.InstanceCompleted
		cp.EndTime = &now
		cp.TotalTime = totalTime
		cp.AvgSpeed = avgSpeed
		if req.EndLatitude != nil && req.EndLongitude != nil {
			cp.CurrentLatitude = *req.EndLatitude
			cp.CurrentLongitude = *req.EndLongitude
		}
		final = &cp
	}
	if !ok {
		// A concurrent complete already finalized it; idempotent success.
		return final, nil
	}

	if err := s.store.IncrementUserStats(ctx, userID, final.TotalDistance, final.TotalTime, final.TopSpeed); err != nil {
		slog.Error("Failed to increment user aggregates", "user_id", userID, "error", err)
	}

	trip := tripRecord(final, group.Name)
	if err := s.store.CreateJourneySummary(ctx, &trip); err != nil {
		slog.Error("Failed to persist journey history row", "instance_id", instanceID, "error", err)
	}

	s.cacheInstance(ctx, final)
	s.cache.Del(ctx, cache.JourneyFullKey(journey.ID))

	displayName := ""
	if final.User != nil {
		displayName = final.User.DisplayName
	}
	s.broadcasts.MemberCompleted(journey.ID, events.MemberCompletedPayload{
		InstanceID:    final.ID,
		UserID:        userID,
		DisplayName:   displayName,
		TotalDistance: final.TotalDistance,
		Duration:      final.TotalTime,
		Status:        final.Status,
	})

	event := &models.RideEvent{
		ID:             uuid.NewString(),
		GroupJourneyID: journey.ID,
		InstanceID:     &final.ID,
		UserID:         userID,
		Type:           models.EventMemberCompleted,
		Data: models.JSONMap{
			"total_distance": final.TotalDistance,
			"total_time":     final.TotalTime,
		},
		CreatedAt: now,
	}
	if err := s.store.CreateRideEvent(ctx, event); err != nil {
		slog.Warn("Failed to persist member-completed event", "journey_id", journey.ID, "error", err)
	} else {
		event.User = final.User
		s.broadcasts.RideEventForGroup(group.ID, *event)
	}

	s.evaluateAchievements(ctx, userID, trip)

	open, err := s.store.CountOpenInstances(ctx, journey.ID, instanceID)
	if err != nil {
		slog.Error("Failed to count open instances", "journey_id", journey.ID, "error", err)
		return final, nil
	}
	if open == 0 {
		s.finishGroupJourney(ctx, journey)
	}
	return final, nil
}

// finishGroupJourney closes the journey once the last rider finishes, then
// soft-archives the owning group. The conditional update makes concurrent
// last-completes race safely: only the winner broadcasts.
func (s *JourneyService) finishGroupJourney(ctx context.Context, journey *models.GroupJourney) {
	done, err := s.store.CompleteGroupJourney(ctx, journey.ID, s.clock.Now().UTC())
	if err != nil {
		slog.Error("Failed to complete group journey", "journey_id", journey.ID, "error", err)
		return
	}
	if !done {
		return
	}
	s.cache.DelPattern(ctx, cache.JourneyPattern(journey.ID))
	s.cache.Del(ctx, cache.ActiveJourneyKey(journey.GroupID))

	slog.Info("Group journey completed", "journey_id", journey.ID, "group_id", journey.GroupID)
	s.broadcasts.JourneyCompleted(journey.ID, journey.GroupID)

	if !s.archiveOnComplete {
		return
	}
	archived, err := s.store.ArchiveGroup(ctx, journey.GroupID)
	if err != nil {
		slog.Error("Failed to archive group", "group_id", journey.GroupID, "error", err)
		return
	}
	if archived {
		s.cache.Del(ctx, cache.GroupKey(journey.GroupID))
		s.broadcasts.GroupArchived(journey.GroupID)
	}
}

// evaluateAchievements runs the external evaluator detached from the
// completing request so a slow collaborator cannot delay the response.
func (s *JourneyService) evaluateAchievements(ctx context.Context, userID string, trip models.Journey) {
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		unlocks, err := s.achievements.EvaluateCompletion(bgCtx, userID, trip)
		if err != nil {
			slog.Warn("Achievement evaluation failed", "user_id", userID, "error", err)
			return
		}
		for _, a := range unlocks {
			s.broadcasts.AchievementUnlocked(userID, events.AchievementUnlockedPayload{
				Achievement: a.ID,
				Title:       a.Title,
			})
		}
	}()
}

// GetJourney returns the journey with all instances and members, the
// group-journey:{id}:full cache unit.
func (s *JourneyService) GetJourney(ctx context.Context, userID, journeyID string) (*models.GroupJourneyDetail, error) {
	journey, err := s.getJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	group, _, err := s.requireMember(ctx, userID, journey.GroupID)
	if err != nil {
		return nil, err
	}

	key := cache.JourneyFullKey(journeyID)
	var cached models.GroupJourneyDetail
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	instances, err := s.store.ListInstances(ctx, journeyID)
	if err != nil {
		return nil, fromStore(err)
	}
	detail := &models.GroupJourneyDetail{
		GroupJourney: *journey,
		GroupName:    group.Name,
		Instances:    instances,
		Members:      group.Members,
	}
	s.cache.Set(ctx, key, detail, cache.TTLShort)
	return detail, nil
}

// GetMyInstance returns the caller's instance on the journey, or ErrNotFound.
func (s *JourneyService) GetMyInstance(ctx context.Context, userID, journeyID string) (*models.JourneyInstance, error) {
	key := cache.UserInstanceKey(userID, journeyID)
	var cached models.JourneyInstance
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	inst, err := s.store.GetInstanceForUser(ctx, journeyID, userID)
	if err != nil {
		return nil, fromStore(err)
	}
	s.cache.Set(ctx, key, inst, cache.TTLShort)
	return inst, nil
}

// GetActiveForGroup returns the group's single ACTIVE journey, or
// ErrNotFound.
func (s *JourneyService) GetActiveForGroup(ctx context.Context, userID, groupID string) (*models.GroupJourney, error) {
	if _, _, err := s.requireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	var ref models.ActiveJourneyRef
	if s.cache.Get(ctx, cache.ActiveJourneyKey(groupID), &ref) && ref.Status == models.JourneyActive {
		if journey, err := s.getJourney(ctx, ref.ID); err == nil && journey.Status == models.JourneyActive {
			return journey, nil
		}
	}
	journey, err := s.store.GetActiveGroupJourney(ctx, groupID)
	if err != nil {
		return nil, fromStore(err)
	}
	s.cache.Set(ctx, cache.ActiveJourneyKey(groupID),
		models.ActiveJourneyRef{ID: journey.ID, Status: journey.Status}, cache.TTLHour)
	return journey, nil
}

// Summary aggregates per-member totals for the post-ride screen.
func (s *JourneyService) Summary(ctx context.Context, userID, journeyID string) (*models.JourneySummary, error) {
	journey, err := s.getJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.requireMember(ctx, userID, journey.GroupID); err != nil {
		return nil, err
	}
	instances, err := s.store.ListInstances(ctx, journeyID)
	if err != nil {
		return nil, fromStore(err)
	}

	summary := &models.JourneySummary{
		JourneyID:    journey.ID,
		GroupID:      journey.GroupID,
		Title:        journey.Title,
		Status:       journey.Status,
		Participants: len(instances),
		StartedAt:    journey.StartedAt,
		EndedAt:      journey.CompletedAt,
	}
	for i := range instances {
		inst := &instances[i]
		summary.TotalDistance += inst.TotalDistance
		summary.TotalTime += inst.TotalTime
		if inst.TopSpeed > summary.TopSpeed {
			summary.TopSpeed = inst.TopSpeed
		}
		if inst.Status == models.InstanceCompleted {
			summary.Completed++
		}
		if inst.StartTime.Before(summary.StartedAt) {
			summary.StartedAt = inst.StartTime
		}
		if inst.EndTime != nil && (summary.EndedAt == nil || inst.EndTime.After(*summary.EndedAt)) {
			summary.EndedAt = inst.EndTime
		}
	}
	photos, err := s.store.CountRideEventsByType(ctx, journeyID, models.EventPhoto)
	if err != nil {
		slog.Warn("Failed to count photo events", "journey_id", journeyID, "error", err)
	}
	summary.PhotoCount = photos
	return summary, nil
}

// ListEvents returns the journey timeline, oldest first.
func (s *JourneyService) ListEvents(ctx context.Context, userID, journeyID string, since *time.Time, limit int) ([]models.RideEvent, error) {
	journey, err := s.getJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.requireMember(ctx, userID, journey.GroupID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	list, err := s.store.ListRideEvents(ctx, journeyID, since, limit)
	if err != nil {
		return nil, fromStore(err)
	}
	return list, nil
}

// PostEvent appends a timeline entry and broadcasts it. Also the backing of
// the socket post-event frame.
func (s *JourneyService) PostEvent(ctx context.Context, userID, journeyID string, req models.PostRideEventRequest) (*models.RideEvent, error) {
	if !req.Type.Valid() {
		return nil, NewValidationError("type", "unknown event type")
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, NewValidationError("latitude", "latitude and longitude must be provided together")
	}
	if req.Latitude != nil && !models.ValidCoordinates(*req.Latitude, *req.Longitude) {
		return nil, NewValidationError("latitude", "coordinates out of range")
	}
	journey, err := s.getJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	_, member, err := s.requireMember(ctx, userID, journey.GroupID)
	if err != nil {
		return nil, err
	}

	event := &models.RideEvent{
		ID:             uuid.NewString(),
		GroupJourneyID: journeyID,
		InstanceID:     req.InstanceID,
		UserID:         userID,
		Type:           req.Type,
		Message:        req.Message,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		MediaRef:       req.MediaRef,
		Data:           req.Data,
		CreatedAt:      s.clock.Now().UTC(),
	}
	if err := s.store.CreateRideEvent(ctx, event); err != nil {
		return nil, fromStore(err)
	}
	event.User = member.User
	s.broadcasts.RideEventPosted(journeyID, *event)
	return event, nil
}

// VerifyJourneyMembership authorizes a socket join: the user must be a
// member of the journey's owning group. Returns the group id for room
// subscription.
func (s *JourneyService) VerifyJourneyMembership(ctx context.Context, userID, journeyID string) (string, error) {
	journey, err := s.getJourney(ctx, journeyID)
	if err != nil {
		return "", err
	}
	if _, _, err := s.requireMember(ctx, userID, journey.GroupID); err != nil {
		return "", err
	}
	return journey.GroupID, nil
}

// ownInstance reads an instance and checks it belongs to the caller.
func (s *JourneyService) ownInstance(ctx context.Context, userID, instanceID string) (*models.JourneyInstance, error) {
	inst, err := s.store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, fromStore(err)
	}
	if inst.UserID != userID {
		return nil, ErrNotYourInstance
	}
	return inst, nil
}

// cacheInstance refreshes both keys an instance lives under.
func (s *JourneyService) cacheInstance(ctx context.Context, inst *models.JourneyInstance) {
	s.cache.Set(ctx, cache.InstanceKey(inst.ID), inst, cache.TTLShort)
	s.cache.Set(ctx, cache.UserInstanceKey(inst.UserID, inst.GroupJourneyID), inst, cache.TTLShort)
}

// tripRecord derives the immutable per-user history row from a completed
// instance, titled with the group's name.
func tripRecord(inst *models.JourneyInstance, groupName string) models.Journey {
	trip := models.Journey{
		ID:             uuid.NewString(),
		UserID:         inst.UserID,
		Title:          groupName,
		Status:         models.JourneyCompleted,
		StartTime:      inst.StartTime,
		EndTime:        inst.EndTime,
		StartLatitude:  inst.CurrentLatitude,
		StartLongitude: inst.CurrentLongitude,
		EndLatitude:    &inst.CurrentLatitude,
		EndLongitude:   &inst.CurrentLongitude,
		TotalDistance:  inst.TotalDistance,
		TotalTime:      inst.TotalTime,
		AvgSpeed:       inst.AvgSpeed,
		TopSpeed:       inst.TopSpeed,
	}
	if len(inst.RoutePoints) > 0 {
		trip.StartLatitude = inst.RoutePoints[0].Lat
		trip.StartLongitude = inst.RoutePoints[0].Lng
	}
	return trip
}

// instanceSnapshot builds the full location-updated payload from an
// instance row with its user joined.
func instanceSnapshot(inst *models.JourneyInstance) events.LocationUpdatedPayload {
	p := events.LocationUpdatedPayload{
		JourneyID:     inst.GroupJourneyID,
		InstanceID:    inst.ID,
		UserID:        inst.UserID,
		Latitude:      inst.CurrentLatitude,
		Longitude:     inst.CurrentLongitude,
		TotalDistance: inst.TotalDistance,
		TotalTime:     inst.TotalTime,
		AvgSpeed:      inst.AvgSpeed,
		TopSpeed:      inst.TopSpeed,
		Status:        inst.Status,
		LastUpdate:    events.Timestamp(inst.LastLocationUpdate),
	}
	if inst.User != nil {
		p.DisplayName = inst.User.DisplayName
		p.PhotoRef = inst.User.PhotoRef
	}
	return p
}
