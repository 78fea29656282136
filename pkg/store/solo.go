package store

import (
	"context"
	"fmt"
	"time"

	"github.com/convoyhq/convoy/pkg/models"
)

// GetActiveSoloJourney returns the user's ACTIVE solo journey, or
// ErrNotFound. Solo tracking itself lives elsewhere; this read feeds the
// conflict check on instance start.
func (s *Store) GetActiveSoloJourney(ctx context.Context, userID string) (*models.Journey, error) {
	var j models.Journey
	err := s.db.GetContext(ctx, &j,
		`SELECT id, user_id, title, status, start_time, end_time,
		        start_latitude, start_longitude, end_latitude, end_longitude,
		        total_distance, total_time, avg_speed, top_speed
		 FROM journeys WHERE user_id = $1 AND status = 'ACTIVE'
		 LIMIT 1`, userID)
	if err != nil {
		return nil, translate(err)
	}
	return &j, nil
}

// CompleteSoloJourney force-closes an active solo journey (the force=true
// path of instance start).
func (s *Store) CompleteSoloJourney(ctx context.Context, journeyID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE journeys SET status = 'COMPLETED', end_time = $2
		 WHERE id = $1 AND status = 'ACTIVE'`, journeyID, at)
	if err != nil {
		return false, fmt.Errorf("failed to complete solo journey: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CreateJourneySummary persists the immutable per-user history row derived
// from a completed instance.
func (s *Store) CreateJourneySummary(ctx context.Context, j *models.Journey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journeys
		   (id, user_id, title, status, start_time, end_time,
		    start_latitude, start_longitude, end_latitude, end_longitude,
		    total_distance, total_time, avg_speed, top_speed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		j.ID, j.UserID, j.Title, j.Status, j.StartTime, j.EndTime,
		j.StartLatitude, j.StartLongitude, j.EndLatitude, j.EndLongitude,
		j.TotalDistance, j.TotalTime, j.AvgSpeed, j.TopSpeed)
	return translate(err)
}
