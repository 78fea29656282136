package models

import "time"

// JourneyStatus is the lifecycle state of a GroupJourney or a solo Journey.
type JourneyStatus string

const (
	JourneyActive    JourneyStatus = "ACTIVE"
	JourneyCompleted JourneyStatus = "COMPLETED"
	JourneyCancelled JourneyStatus = "CANCELLED"
)

// GroupJourney is one shared ride toward a destination. At most one ACTIVE
// journey exists per group (enforced by a partial unique index); the journey
// transitions once to COMPLETED and never back.
type GroupJourney struct {
	ID           string        `db:"id" json:"id"`
	GroupID      string        `db:"group_id" json:"group_id"`
	CreatorID    string        `db:"creator_id" json:"creator_id"`
	Title        string        `db:"title" json:"title"`
	Description  *string       `db:"description" json:"description,omitempty"`
	EndLatitude  float64       `db:"end_latitude" json:"end_latitude"`
	EndLongitude float64       `db:"end_longitude" json:"end_longitude"`
	Status       JourneyStatus `db:"status" json:"status"`
	StartedAt    time.Time     `db:"started_at" json:"started_at"`
	CompletedAt  *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
}

// GroupJourneyDetail is a journey with all member instances, the unit cached
// under group-journey:{id}:full.
type GroupJourneyDetail struct {
	GroupJourney
	GroupName string            `json:"group_name"`
	Instances []JourneyInstance `json:"instances"`
	Members   []GroupMember     `json:"members"`
}

// ActiveJourneyRef is the lightweight pointer cached under
// group:{id}:active-journey.
type ActiveJourneyRef struct {
	ID     string        `json:"id"`
	Status JourneyStatus `json:"status"`
}

// Journey is a per-user journey history row. Solo journey tracking itself is
// an external collaborator; this service writes a summary row here when a
// group instance completes, and consults the table for the active-solo
// conflict check on start.
type Journey struct {
	ID             string        `db:"id" json:"id"`
	UserID         string        `db:"user_id" json:"user_id"`
	Title          string        `db:"title" json:"title"`
	Status         JourneyStatus `db:"status" json:"status"`
	StartTime      time.Time     `db:"start_time" json:"start_time"`
	EndTime        *time.Time    `db:"end_time" json:"end_time,omitempty"`
	StartLatitude  float64       `db:"start_latitude" json:"start_latitude"`
	StartLongitude float64       `db:"start_longitude" json:"start_longitude"`
	EndLatitude    *float64      `db:"end_latitude" json:"end_latitude,omitempty"`
	EndLongitude   *float64      `db:"end_longitude" json:"end_longitude,omitempty"`
	TotalDistance  float64       `db:"total_distance" json:"total_distance"`
	TotalTime      int64         `db:"total_time" json:"total_time"`
	AvgSpeed       float64       `db:"avg_speed" json:"avg_speed"`
	TopSpeed       float64       `db:"top_speed" json:"top_speed"`
}

// JourneySummary is the post-ride aggregate for a group journey.
type JourneySummary struct {
	JourneyID     string        `json:"journey_id"`
	GroupID       string        `json:"group_id"`
	Title         string        `json:"title"`
	Status        JourneyStatus `json:"status"`
	Participants  int           `json:"participants"`
	Completed     int           `json:"completed"`
	TotalDistance float64       `json:"total_distance"`
	TotalTime     int64         `json:"total_time"`
	TopSpeed      float64       `json:"top_speed"`
	PhotoCount    int           `json:"photo_count"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       *time.Time    `json:"ended_at,omitempty"`
}
