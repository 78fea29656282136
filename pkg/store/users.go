package store

import (
	"context"
	"fmt"

	"github.com/convoyhq/convoy/pkg/models"
)

// GetUser reads a user profile with aggregates.
func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, display_name, photo_ref, total_distance, total_time, top_speed, total_trips
		 FROM users WHERE id = $1`, userID)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// IncrementUserStats applies one completed trip to the user's lifetime
// aggregates. Increments are expressed field ← field + delta so concurrent
// completions never lose updates.
func (s *Store) IncrementUserStats(ctx context.Context, userID string, distanceKm float64, seconds int64, topSpeed float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET
		   total_distance = total_distance + $2,
		   total_time = total_time + $3,
		   top_speed = GREATEST(top_speed, $4),
		   total_trips = total_trips + 1
		 WHERE id = $1`,
		userID, distanceKm, seconds, topSpeed)
	if err != nil {
		return fmt.Errorf("failed to increment user stats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
