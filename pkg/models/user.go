// Package models contains the domain types shared by the store, services,
// and API layers, plus the request/response shapes of the HTTP surface.
package models

// User is a rider profile with lifetime aggregate stats. The profile itself
// is owned by the auth system; this service only reads it and increments the
// aggregates when an instance completes.
type User struct {
	ID            string  `db:"id" json:"id"`
	DisplayName   string  `db:"display_name" json:"display_name"`
	PhotoRef      *string `db:"photo_ref" json:"photo_ref,omitempty"`
	TotalDistance float64 `db:"total_distance" json:"total_distance"`
	TotalTime     int64   `db:"total_time" json:"total_time"`
	TopSpeed      float64 `db:"top_speed" json:"top_speed"`
	TotalTrips    int     `db:"total_trips" json:"total_trips"`
}

// UserRef is the minimal user identity embedded in broadcasts and snapshots.
type UserRef struct {
	ID          string  `db:"id" json:"id"`
	DisplayName string  `db:"display_name" json:"display_name"`
	PhotoRef    *string `db:"photo_ref" json:"photo_ref,omitempty"`
}
