package store

import (
	"context"
	"fmt"
	"time"

	"github.com/convoyhq/convoy/pkg/models"
)

const groupJourneyColumns = `id, group_id, creator_id, title, description,
	end_latitude, end_longitude, status, started_at, completed_at`

// CreateGroupJourney inserts a journey in ACTIVE status. The partial unique
// index on (group_id) WHERE status = 'ACTIVE' makes concurrent starts lose
// with ErrConflict.
func (s *Store) CreateGroupJourney(ctx context.Context, j *models.GroupJourney) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_journeys
		   (id, group_id, creator_id, title, description, end_latitude, end_longitude, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, j.GroupID, j.CreatorID, j.Title, j.Description,
		j.EndLatitude, j.EndLongitude, j.Status, j.StartedAt)
	return translate(err)
}

// GetGroupJourney reads a journey header by id.
func (s *Store) GetGroupJourney(ctx context.Context, journeyID string) (*models.GroupJourney, error) {
	var j models.GroupJourney
	err := s.db.GetContext(ctx, &j,
		`SELECT `+groupJourneyColumns+` FROM group_journeys WHERE id = $1`, journeyID)
	if err != nil {
		return nil, translate(err)
	}
	return &j, nil
}

// GetActiveGroupJourney returns the single ACTIVE journey of a group, or
// ErrNotFound.
func (s *Store) GetActiveGroupJourney(ctx context.Context, groupID string) (*models.GroupJourney, error) {
	var j models.GroupJourney
	err := s.db.GetContext(ctx, &j,
		`SELECT `+groupJourneyColumns+`
		 FROM group_journeys WHERE group_id = $1 AND status = 'ACTIVE'`, groupID)
	if err != nil {
		return nil, translate(err)
	}
	return &j, nil
}

// CompleteGroupJourney transitions ACTIVE → COMPLETED. The status guard in
// the WHERE clause makes the transition idempotent and one-way; the bool
// reports whether this call performed it.
func (s *Store) CompleteGroupJourney(ctx context.Context, journeyID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE group_journeys SET status = 'COMPLETED', completed_at = $2
		 WHERE id = $1 AND status = 'ACTIVE'`, journeyID, at)
	if err != nil {
		return false, fmt.Errorf("failed to complete group journey: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
