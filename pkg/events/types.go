// Package events provides real-time event fan-out to connected clients,
// addressed by room name: one room per user, per group, and per journey.
//
// Delivery is best-effort and at-most-once per connection. Ordering within a
// room is preserved for events emitted from a single handler; clients
// reconcile across handlers by payload timestamps and resubscribe on
// reconnect.
package events

import "github.com/convoyhq/convoy/pkg/models"

// Server-sent event types. Every payload carries one of these in its "type"
// field plus an RFC3339Nano "timestamp".
const (
	TypeJourneyStarted      = "group-journey:started"
	TypeJourneyCompleted    = "group-journey:completed"
	TypeJourneyEvent        = "group-journey:event"
	TypeMemberStarted       = "member:started-instance"
	TypeLocationUpdated     = "member:location-updated"
	TypeJourneyPaused       = "member:journey-paused"
	TypeJourneyResumed      = "member:journey-resumed"
	TypeMemberCompleted     = "member:journey-completed"
	TypeGroupArchived       = "group:archived"
	TypeAchievementUnlocked = "achievement:unlocked"
)

// Actions clients send over the socket.
const (
	ActionJoin      = "group-journey:join"
	ActionLeave     = "group-journey:leave"
	ActionPostEvent = "group-journey:post-event"
	ActionPing      = "ping"
)

// UserRoom is joined automatically on connect with the authenticated
// identity.
func UserRoom(userID string) string {
	return "user-" + userID
}

// GroupRoom receives member lifecycle and archive events.
func GroupRoom(groupID string) string {
	return "group-" + groupID
}

// JourneyRoom receives location updates and the journey timeline.
func JourneyRoom(journeyID string) string {
	return "group-journey-" + journeyID
}

// ClientMessage is the JSON structure for client → server socket frames.
type ClientMessage struct {
	Action    string                       `json:"action"` // one of the Action* constants
	JourneyID string                       `json:"journey_id,omitempty"`
	Event     *models.PostRideEventRequest `json:"event,omitempty"` // for ActionPostEvent
}
