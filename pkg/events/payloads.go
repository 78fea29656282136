package events

import (
	"time"

	"github.com/convoyhq/convoy/pkg/models"
)

// Timestamp renders an instant the way every broadcast carries it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// JourneyStartedPayload is sent to each member's user room when a group
// journey starts. It carries everything the client needs to render the
// invitation without a follow-up read.
type JourneyStartedPayload struct {
	Type         string  `json:"type"` // always TypeJourneyStarted
	JourneyID    string  `json:"journey_id"`
	GroupID      string  `json:"group_id"`
	GroupName    string  `json:"group_name"`
	Title        string  `json:"title"`
	Description  *string `json:"description,omitempty"`
	CreatorID    string  `json:"creator_id"`
	EndLatitude  float64 `json:"end_latitude"`
	EndLongitude float64 `json:"end_longitude"`
	Timestamp    string  `json:"timestamp"`
}

// MemberStartedPayload is sent to the group room when a member begins
// riding.
type MemberStartedPayload struct {
	Type           string         `json:"type"` // always TypeMemberStarted
	JourneyID      string         `json:"journey_id"`
	InstanceID     string         `json:"instance_id"`
	UserID         string         `json:"user_id"`
	User           models.UserRef `json:"user"`
	StartLatitude  float64        `json:"start_latitude"`
	StartLongitude float64        `json:"start_longitude"`
	Timestamp      string         `json:"timestamp"`
}

// LocationUpdatedPayload is the full member snapshot sent to the journey
// room on every accepted location sample.
type LocationUpdatedPayload struct {
	Type          string                `json:"type"` // always TypeLocationUpdated
	JourneyID     string                `json:"journey_id"`
	InstanceID    string                `json:"instance_id"`
	UserID        string                `json:"user_id"`
	DisplayName   string                `json:"display_name"`
	PhotoRef      *string               `json:"photo_ref,omitempty"`
	Latitude      float64               `json:"latitude"`
	Longitude     float64               `json:"longitude"`
	SpeedKmh      float64               `json:"speed_kmh"`
	TotalDistance float64               `json:"total_distance"`
	TotalTime     int64                 `json:"total_time"`
	AvgSpeed      float64               `json:"avg_speed"`
	TopSpeed      float64               `json:"top_speed"`
	Status        models.InstanceStatus `json:"status"`
	LastUpdate    string                `json:"last_update"`
	Timestamp     string                `json:"timestamp"`
}

// InstanceStatusPayload is sent to the journey room on pause and resume.
type InstanceStatusPayload struct {
	Type       string                `json:"type"` // TypeJourneyPaused or TypeJourneyResumed
	InstanceID string                `json:"instance_id"`
	UserID     string                `json:"user_id"`
	Status     models.InstanceStatus `json:"status"`
	Timestamp  string                `json:"timestamp"`
}

// MemberCompletedPayload is sent to the journey room when a member finishes.
type MemberCompletedPayload struct {
	Type          string                `json:"type"` // always TypeMemberCompleted
	InstanceID    string                `json:"instance_id"`
	UserID        string                `json:"user_id"`
	DisplayName   string                `json:"display_name"`
	TotalDistance float64               `json:"total_distance"`
	Duration      int64                 `json:"duration"`
	Status        models.InstanceStatus `json:"status"`
	Timestamp     string                `json:"timestamp"`
}

// JourneyCompletedPayload is sent to both the journey and group rooms when
// the last rider finishes.
type JourneyCompletedPayload struct {
	Type      string `json:"type"` // always TypeJourneyCompleted
	JourneyID string `json:"journey_id"`
	GroupID   string `json:"group_id"`
	Timestamp string `json:"timestamp"`
}

// RideEventPayload wraps a persisted timeline entry, with user metadata,
// for the journey room.
type RideEventPayload struct {
	Type      string           `json:"type"` // always TypeJourneyEvent
	Event     models.RideEvent `json:"event"`
	Timestamp string           `json:"timestamp"`
}

// GroupArchivedPayload is sent to the group room when the group is
// soft-archived after its journey completes.
type GroupArchivedPayload struct {
	Type      string `json:"type"` // always TypeGroupArchived
	GroupID   string `json:"group_id"`
	Timestamp string `json:"timestamp"`
}

// AchievementUnlockedPayload is sent to a user room when the achievement
// collaborator reports an unlock.
type AchievementUnlockedPayload struct {
	Type        string `json:"type"` // always TypeAchievementUnlocked
	UserID      string `json:"user_id"`
	Achievement string `json:"achievement"`
	Title       string `json:"title"`
	Timestamp   string `json:"timestamp"`
}
