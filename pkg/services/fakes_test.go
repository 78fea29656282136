package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/convoyhq/convoy/pkg/events"
	"github.com/convoyhq/convoy/pkg/models"
	"github.com/convoyhq/convoy/pkg/notify"
	"github.com/convoyhq/convoy/pkg/store"
)

// fakeStore is an in-memory Store that enforces the same constraints the
// real schema does: the one-ACTIVE-journey-per-group partial index, the
// (journey, user) unique constraint, and conditional transitions.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	groups    map[string]*models.GroupDetail
	journeys  map[string]*models.GroupJourney
	instances map[string]*models.JourneyInstance
	solo      map[string]*models.Journey
	history   []models.Journey
	events    []models.RideEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]*models.User),
		groups:    make(map[string]*models.GroupDetail),
		journeys:  make(map[string]*models.GroupJourney),
		instances: make(map[string]*models.JourneyInstance),
		solo:      make(map[string]*models.Journey),
	}
}

func (f *fakeStore) userRef(userID string) *models.UserRef {
	if u, ok := f.users[userID]; ok {
		return &models.UserRef{ID: u.ID, DisplayName: u.DisplayName, PhotoRef: u.PhotoRef}
	}
	return &models.UserRef{ID: userID}
}

func copyInstance(inst *models.JourneyInstance) *models.JourneyInstance {
	c := *inst
	c.RoutePoints = append(models.RoutePoints(nil), inst.RoutePoints...)
	return &c
}

func (f *fakeStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeStore) IncrementUserStats(_ context.Context, userID string, distanceKm float64, seconds int64, topSpeed float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.TotalDistance += distanceKm
	u.TotalTime += seconds
	if topSpeed > u.TopSpeed {
		u.TopSpeed = topSpeed
	}
	u.TotalTrips++
	return nil
}

func (f *fakeStore) GetGroupDetail(_ context.Context, groupID string) (*models.GroupDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *g
	c.Members = append([]models.GroupMember(nil), g.Members...)
	return &c, nil
}

func (f *fakeStore) UpdateMemberPresence(_ context.Context, groupID, userID string, lat, lng float64, shared bool, seen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return store.ErrNotFound
	}
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			g.Members[i].LastLatitude = &lat
			g.Members[i].LastLongitude = &lng
			g.Members[i].LastSeen = &seen
			g.Members[i].IsLocationShared = shared
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) ArchiveGroup(_ context.Context, groupID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok || !g.IsActive {
		return false, nil
	}
	g.IsActive = false
	return true, nil
}

func (f *fakeStore) CreateGroupJourney(_ context.Context, j *models.GroupJourney) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.journeys {
		if existing.GroupID == j.GroupID && existing.Status == models.JourneyActive {
			return store.ErrConflict
		}
	}
	c := *j
	f.journeys[j.ID] = &c
	return nil
}

func (f *fakeStore) GetGroupJourney(_ context.Context, journeyID string) (*models.GroupJourney, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.journeys[journeyID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *j
	return &c, nil
}

func (f *fakeStore) GetActiveGroupJourney(_ context.Context, groupID string) (*models.GroupJourney, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.journeys {
		if j.GroupID == groupID && j.Status == models.JourneyActive {
			c := *j
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CompleteGroupJourney(_ context.Context, journeyID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.journeys[journeyID]
	if !ok || j.Status != models.JourneyActive {
		return false, nil
	}
	j.Status = models.JourneyCompleted
	j.CompletedAt = &at
	return true, nil
}

func (f *fakeStore) CreateInstance(_ context.Context, inst *models.JourneyInstance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.instances {
		if existing.GroupJourneyID == inst.GroupJourneyID && existing.UserID == inst.UserID {
			return store.ErrConflict
		}
	}
	f.instances[inst.ID] = copyInstance(inst)
	return nil
}

func (f *fakeStore) GetInstance(_ context.Context, instanceID string) (*models.JourneyInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := copyInstance(inst)
	c.User = f.userRef(inst.UserID)
	return c, nil
}

func (f *fakeStore) GetInstanceForUser(_ context.Context, journeyID, userID string) (*models.JourneyInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inst := range f.instances {
		if inst.GroupJourneyID == journeyID && inst.UserID == userID {
			c := copyInstance(inst)
			c.User = f.userRef(userID)
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetOpenInstanceForUser(_ context.Context, userID string) (*models.JourneyInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inst := range f.instances {
		if inst.UserID == userID && !inst.Status.Terminal() {
			c := copyInstance(inst)
			c.User = f.userRef(userID)
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListInstances(_ context.Context, journeyID string) ([]models.JourneyInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.JourneyInstance
	for _, inst := range f.instances {
		if inst.GroupJourneyID == journeyID {
			c := copyInstance(inst)
			c.User = f.userRef(inst.UserID)
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeStore) CountOpenInstances(_ context.Context, journeyID, excludeInstanceID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, inst := range f.instances {
		if inst.GroupJourneyID == journeyID && inst.ID != excludeInstanceID && !inst.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ReactivateInstance(_ context.Context, instanceID string, lat, lng float64, at time.Time, point models.RoutePoint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok || inst.Status == models.InstanceActive {
		return false, nil
	}
	inst.Status = models.InstanceActive
	inst.CurrentLatitude = lat
	inst.CurrentLongitude = lng
	inst.LastLocationUpdate = at
	inst.EndTime = nil
	inst.RoutePoints = append(inst.RoutePoints, point)
	return true, nil
}

func (f *fakeStore) PauseInstance(_ context.Context, instanceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok || inst.Status != models.InstanceActive {
		return false, nil
	}
	inst.Status = models.InstancePaused
	return true, nil
}

func (f *fakeStore) ResumeInstance(_ context.Context, instanceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok || inst.Status != models.InstancePaused {
		return false, nil
	}
	inst.Status = models.InstanceActive
	return true, nil
}

func (f *fakeStore) ApplyLocation(_ context.Context, upd store.LocationUpdate) (*models.JourneyInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[upd.InstanceID]
	if !ok || inst.Status != models.InstanceActive {
		return nil, store.ErrNotFound
	}
	inst.CurrentLatitude = upd.Latitude
	inst.CurrentLongitude = upd.Longitude
	inst.LastLocationUpdate = upd.At
	inst.TotalDistance += upd.DistanceKm
	inst.TotalTime = upd.TotalTime
	inst.AvgSpeed = upd.AvgSpeed
	if upd.SpeedKmh > inst.TopSpeed {
		inst.TopSpeed = upd.SpeedKmh
	}
	if upd.RoutePoint != nil {
		inst.RoutePoints = append(inst.RoutePoints, *upd.RoutePoint)
	}
	return copyInstance(inst), nil
}

func (f *fakeStore) FinalizeInstance(_ context.Context, instanceID string, endTime time.Time, totalTime int64, avgSpeed float64, endLat, endLng *float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok || inst.Status.Terminal() {
		return false, nil
	}
	inst.Status = models.InstanceCompleted
	inst.EndTime = &endTime
	inst.TotalTime = totalTime
	inst.AvgSpeed = avgSpeed
	if endLat != nil {
		inst.CurrentLatitude = *endLat
	}
	if endLng != nil {
		inst.CurrentLongitude = *endLng
	}
	return true, nil
}

func (f *fakeStore) GetActiveSoloJourney(_ context.Context, userID string) (*models.Journey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.solo {
		if j.UserID == userID && j.Status == models.JourneyActive {
			c := *j
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CompleteSoloJourney(_ context.Context, journeyID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.solo[journeyID]
	if !ok || j.Status != models.JourneyActive {
		return false, nil
	}
	j.Status = models.JourneyCompleted
	j.EndTime = &at
	return true, nil
}

func (f *fakeStore) CreateJourneySummary(_ context.Context, j *models.Journey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, *j)
	return nil
}

func (f *fakeStore) CreateRideEvent(_ context.Context, e *models.RideEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeStore) ListRideEvents(_ context.Context, journeyID string, since *time.Time, limit int) ([]models.RideEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RideEvent
	for _, e := range f.events {
		if e.GroupJourneyID != journeyID {
			continue
		}
		if since != nil && !e.CreatedAt.After(*since) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CountRideEventsByType(_ context.Context, journeyID string, typ models.RideEventType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.GroupJourneyID == journeyID && e.Type == typ {
			n++
		}
	}
	return n, nil
}

// historyFor returns the persisted trip rows for a user.
func (f *fakeStore) historyFor(userID string) []models.Journey {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Journey
	for _, j := range f.history {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	return out
}

// flakyStore wraps fakeStore so selected reads can be made to fail, the way
// a flaky connection would, while writes keep working.
type flakyStore struct {
	*fakeStore
	journeyReadFails  int // fail the next N GetGroupJourney calls
	instanceReadOK    int // let this many GetInstance calls through first
	instanceReadFails int // then fail this many
}

func (f *flakyStore) GetGroupJourney(ctx context.Context, journeyID string) (*models.GroupJourney, error) {
	if f.journeyReadFails > 0 {
		f.journeyReadFails--
		return nil, errors.New("connection reset")
	}
	return f.fakeStore.GetGroupJourney(ctx, journeyID)
}

func (f *flakyStore) GetInstance(ctx context.Context, instanceID string) (*models.JourneyInstance, error) {
	if f.instanceReadFails > 0 {
		if f.instanceReadOK > 0 {
			f.instanceReadOK--
		} else {
			f.instanceReadFails--
			return nil, errors.New("read timeout")
		}
	}
	return f.fakeStore.GetInstance(ctx, instanceID)
}

// recorder is a Broadcasts implementation that records every emission.
type recorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

type recordedCall struct {
	kind    string
	target  string
	payload any
}

func (r *recorder) record(kind, target string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{kind: kind, target: target, payload: payload})
}

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind string) (recordedCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].kind == kind {
			return r.calls[i], true
		}
	}
	return recordedCall{}, false
}

func (r *recorder) JourneyStarted(memberIDs []string, payload events.JourneyStartedPayload) {
	r.record(events.TypeJourneyStarted, strings.Join(memberIDs, ","), payload)
}

func (r *recorder) MemberStarted(groupID string, payload events.MemberStartedPayload) {
	r.record(events.TypeMemberStarted, groupID, payload)
}

func (r *recorder) LocationUpdated(journeyID string, payload events.LocationUpdatedPayload) {
	r.record(events.TypeLocationUpdated, journeyID, payload)
}

func (r *recorder) InstancePaused(journeyID string, payload events.InstanceStatusPayload) {
	r.record(events.TypeJourneyPaused, journeyID, payload)
}

func (r *recorder) InstanceResumed(journeyID string, payload events.InstanceStatusPayload) {
	r.record(events.TypeJourneyResumed, journeyID, payload)
}

func (r *recorder) MemberCompleted(journeyID string, payload events.MemberCompletedPayload) {
	r.record(events.TypeMemberCompleted, journeyID, payload)
}

func (r *recorder) JourneyCompleted(journeyID, groupID string) {
	r.record(events.TypeJourneyCompleted, journeyID, nil)
}

func (r *recorder) RideEventPosted(journeyID string, event models.RideEvent) {
	r.record(events.TypeJourneyEvent, journeyID, event)
}

func (r *recorder) RideEventForGroup(groupID string, event models.RideEvent) {
	r.record(events.TypeJourneyEvent, groupID, event)
}

func (r *recorder) GroupArchived(groupID string) {
	r.record(events.TypeGroupArchived, groupID, nil)
}

func (r *recorder) AchievementUnlocked(userID string, payload events.AchievementUnlockedPayload) {
	r.record(events.TypeAchievementUnlocked, userID, payload)
}

// fakeNotifier records enqueued notices.
type fakeNotifier struct {
	mu      sync.Mutex
	notices []struct {
		recipients []string
		notice     notify.Notice
	}
}

func (n *fakeNotifier) JourneyStarted(_ context.Context, recipients []string, notice notify.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, struct {
		recipients []string
		notice     notify.Notice
	}{recipients, notice})
}

// memCache is an in-memory cache.Cache that ignores TTLs. Good enough to
// observe read-through and invalidation behavior.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, out any) bool {
	c.mu.Lock()
	data, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (c *memCache) Set(_ context.Context, key string, value any, _ time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.entries[key] = data
	c.mu.Unlock()
}

func (c *memCache) Del(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}

func (c *memCache) DelPattern(_ context.Context, pattern string) {
	prefix := strings.TrimSuffix(pattern, "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}
