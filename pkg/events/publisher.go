package events

import (
	"time"

	"github.com/convoyhq/convoy/pkg/models"
)

// Publisher is the typed fan-out surface the coordinator and the location
// pipeline speak. Every method is best-effort: failures are logged inside
// the hub and never surfaced, because broadcast problems must not fail the
// request that triggered them.
type Publisher struct {
	hub *Hub
}

// NewPublisher creates a publisher over the hub.
func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub}
}

// JourneyStarted notifies each member individually; members haven't joined
// the journey room yet when the journey is created.
func (p *Publisher) JourneyStarted(memberIDs []string, payload JourneyStartedPayload) {
	payload.Type = TypeJourneyStarted
	payload.Timestamp = Timestamp(time.Now())
	for _, id := range memberIDs {
		p.hub.Emit(UserRoom(id), payload)
	}
}

// MemberStarted announces a new rider to the group room.
func (p *Publisher) MemberStarted(groupID string, payload MemberStartedPayload) {
	payload.Type = TypeMemberStarted
	payload.Timestamp = Timestamp(time.Now())
	p.hub.Emit(GroupRoom(groupID), payload)
}

// LocationUpdated streams a member snapshot to the journey room.
func (p *Publisher) LocationUpdated(journeyID string, payload LocationUpdatedPayload) {
	payload.Type = TypeLocationUpdated
	payload.Timestamp = Timestamp(time.Now())
	p.hub.Emit(JourneyRoom(journeyID), payload)
}

// InstancePaused announces a pause to the journey room.
func (p *Publisher) InstancePaused(journeyID string, payload InstanceStatusPayload) {
	payload.Type = TypeJourneyPaused
	payload.Timestamp = Timestamp(time.Now())
	p.hub.Emit(JourneyRoom(journeyID), payload)
}

// InstanceResumed announces a resume to the journey room.
func (p *Publisher) InstanceResumed(journeyID string, payload InstanceStatusPayload) {
	payload.Type = TypeJourneyResumed
	payload.Timestamp = Timestamp(time.Now())
	p.hub.Emit(JourneyRoom(journeyID), payload)
}

// MemberCompleted announces a finished rider to the journey room.
func (p *Publisher) MemberCompleted(journeyID string, payload MemberCompletedPayload) {
	payload.Type = TypeMemberCompleted
	payload.Timestamp = Timestamp(time.Now())
	p.hub.Emit(JourneyRoom(journeyID), payload)
}

// JourneyCompleted announces journey completion to both the journey and the
// group rooms.
func (p *Publisher) JourneyCompleted(journeyID, groupID string) {
	payload := JourneyCompletedPayload{
		Type:      TypeJourneyCompleted,
		JourneyID: journeyID,
		GroupID:   groupID,
		Timestamp: Timestamp(time.Now()),
	}
	p.hub.Emit(JourneyRoom(journeyID), payload)
	p.hub.Emit(GroupRoom(groupID), payload)
}

// RideEventPosted broadcasts a persisted timeline entry to the journey room.
func (p *Publisher) RideEventPosted(journeyID string, event models.RideEvent) {
	p.hub.Emit(JourneyRoom(journeyID), RideEventPayload{
		Type:      TypeJourneyEvent,
		Event:     event,
		Timestamp: Timestamp(time.Now()),
	})
}

// RideEventForGroup broadcasts a timeline entry to the group room instead.
// Used for completion milestones, which members see without having joined
// the journey room.
func (p *Publisher) RideEventForGroup(groupID string, event models.RideEvent) {
	p.hub.Emit(GroupRoom(groupID), RideEventPayload{
		Type:      TypeJourneyEvent,
		Event:     event,
		Timestamp: Timestamp(time.Now()),
	})
}

// GroupArchived announces the soft-archive to the group room.
func (p *Publisher) GroupArchived(groupID string) {
	p.hub.Emit(GroupRoom(groupID), GroupArchivedPayload{
		Type:      TypeGroupArchived,
		GroupID:   groupID,
		Timestamp: Timestamp(time.Now()),
	})
}

// AchievementUnlocked notifies a single user of an unlock.
func (p *Publisher) AchievementUnlocked(userID string, payload AchievementUnlockedPayload) {
	payload.Type = TypeAchievementUnlocked
	payload.UserID = userID
	payload.Timestamp = Timestamp(time.Now())
	p.hub.Emit(UserRoom(userID), payload)
}
