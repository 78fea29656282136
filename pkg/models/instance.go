package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// InstanceStatus is the lifecycle state of a JourneyInstance.
type InstanceStatus string

const (
	InstanceActive    InstanceStatus = "ACTIVE"
	InstancePaused    InstanceStatus = "PAUSED"
	InstanceCompleted InstanceStatus = "COMPLETED"
	InstanceCancelled InstanceStatus = "CANCELLED"
)

// Terminal reports whether the status is COMPLETED or CANCELLED. A PAUSED
// instance is not terminal and keeps the journey open.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceCompleted || s == InstanceCancelled
}

// RoutePoint is one sample of a member's route. Points grow monotonically in
// insertion order until the instance terminates.
type RoutePoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
}

// RoutePoints is stored as a JSONB array so appends can happen in a single
// UPDATE without reading the row first.
type RoutePoints []RoutePoint

// Value implements driver.Valuer.
func (r RoutePoints) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *RoutePoints) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("cannot scan %T into RoutePoints", src)
	}
}

// JourneyInstance is one user's participation in a group journey, with its
// own route and cumulative stats. Distances are kilometers, times seconds,
// speeds km/h.
type JourneyInstance struct {
	ID                 string         `db:"id" json:"id"`
	GroupJourneyID     string         `db:"group_journey_id" json:"group_journey_id"`
	UserID             string         `db:"user_id" json:"user_id"`
	Status             InstanceStatus `db:"status" json:"status"`
	StartTime          time.Time      `db:"start_time" json:"start_time"`
	EndTime            *time.Time     `db:"end_time" json:"end_time,omitempty"`
	CurrentLatitude    float64        `db:"current_latitude" json:"current_latitude"`
	CurrentLongitude   float64        `db:"current_longitude" json:"current_longitude"`
	LastLocationUpdate time.Time      `db:"last_location_update" json:"last_location_update"`
	TotalDistance      float64        `db:"total_distance" json:"total_distance"`
	TotalTime          int64          `db:"total_time" json:"total_time"`
	AvgSpeed           float64        `db:"avg_speed" json:"avg_speed"`
	TopSpeed           float64        `db:"top_speed" json:"top_speed"`
	RoutePoints        RoutePoints    `db:"route_points" json:"route_points"`

	// User is populated by the store on reads that join the users table.
	User *UserRef `db:"-" json:"user,omitempty"`
}
