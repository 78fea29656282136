package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RideEventType classifies a timeline entry.
type RideEventType string

const (
	EventMessage         RideEventType = "MESSAGE"
	EventPhoto           RideEventType = "PHOTO"
	EventCheckpoint      RideEventType = "CHECKPOINT"
	EventStatus          RideEventType = "STATUS"
	EventEmergency       RideEventType = "EMERGENCY"
	EventCustom          RideEventType = "CUSTOM"
	EventMemberStarted   RideEventType = "MEMBER_STARTED"
	EventMemberCompleted RideEventType = "MEMBER_COMPLETED"
)

// Valid reports whether t is a known event type.
func (t RideEventType) Valid() bool {
	switch t {
	case EventMessage, EventPhoto, EventCheckpoint, EventStatus,
		EventEmergency, EventCustom, EventMemberStarted, EventMemberCompleted:
		return true
	}
	return false
}

// JSONMap is a free-form structured payload stored as JSONB.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}
}

// RideEvent is an immutable timeline entry on a group journey, ordered by
// CreatedAt within the journey.
type RideEvent struct {
	ID             string        `db:"id" json:"id"`
	GroupJourneyID string        `db:"group_journey_id" json:"group_journey_id"`
	InstanceID     *string       `db:"instance_id" json:"instance_id,omitempty"`
	UserID         string        `db:"user_id" json:"user_id"`
	Type           RideEventType `db:"type" json:"type"`
	Message        *string       `db:"message" json:"message,omitempty"`
	Latitude       *float64      `db:"latitude" json:"latitude,omitempty"`
	Longitude      *float64      `db:"longitude" json:"longitude,omitempty"`
	MediaRef       *string       `db:"media_ref" json:"media_ref,omitempty"`
	Data           JSONMap       `db:"data" json:"data,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`

	// User is populated by the store on reads that join the users table.
	User *UserRef `db:"-" json:"user,omitempty"`
}
