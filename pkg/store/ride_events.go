package store

import (
	"context"
	"fmt"
	"time"

	"github.com/convoyhq/convoy/pkg/models"
)

// CreateRideEvent appends an immutable timeline entry.
func (s *Store) CreateRideEvent(ctx context.Context, e *models.RideEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ride_events
		   (id, group_journey_id, instance_id, user_id, type, message,
		    latitude, longitude, media_ref, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.GroupJourneyID, e.InstanceID, e.UserID, e.Type, e.Message,
		e.Latitude, e.Longitude, e.MediaRef, e.Data, e.CreatedAt)
	return translate(err)
}

// ListRideEvents returns the journey timeline ordered by creation time,
// optionally restricted to events after since. Served by the
// (group_journey_id, created_at) index.
func (s *Store) ListRideEvents(ctx context.Context, journeyID string, since *time.Time, limit int) ([]models.RideEvent, error) {
	type eventRow struct {
		models.RideEvent
		UserDisplayName string  `db:"user_display_name"`
		UserPhotoRef    *string `db:"user_photo_ref"`
	}
	query := `SELECT e.id, e.group_journey_id, e.instance_id, e.user_id, e.type,
	        e.message, e.latitude, e.longitude, e.media_ref, e.data, e.created_at,
	        u.display_name AS user_display_name, u.photo_ref AS user_photo_ref
	 FROM ride_events e
	 JOIN users u ON u.id = e.user_id
	 WHERE e.group_journey_id = $1`
	args := []any{journeyID}
	if since != nil {
		query += ` AND e.created_at > $2`
		args = append(args, *since)
	}
	query += fmt.Sprintf(` ORDER BY e.created_at LIMIT %d`, limit)

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list ride events: %w", err)
	}
	out := make([]models.RideEvent, 0, len(rows))
	for _, r := range rows {
		e := r.RideEvent
		e.User = &models.UserRef{ID: e.UserID, DisplayName: r.UserDisplayName, PhotoRef: r.UserPhotoRef}
		out = append(out, e)
	}
	return out, nil
}

// CountRideEventsByType counts timeline entries of one type, used by the
// journey summary for photo counts.
func (s *Store) CountRideEventsByType(ctx context.Context, journeyID string, typ models.RideEventType) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM ride_events WHERE group_journey_id = $1 AND type = $2`,
		journeyID, typ)
	if err != nil {
		return 0, fmt.Errorf("failed to count ride events: %w", err)
	}
	return n, nil
}
