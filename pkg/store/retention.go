package store

import (
	"context"
	"time"
)

// PruneRideEvents deletes timeline entries older than cutoff on journeys
// that are no longer active. The active journey's timeline is never touched.
func (s *Store) PruneRideEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ride_events
		 WHERE created_at < $1
		   AND group_journey_id IN
		       (SELECT id FROM group_journeys WHERE status <> 'ACTIVE')`,
		cutoff)
	if err != nil {
		return 0, translate(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PruneRoutePoints clears route samples of terminal instances that ended
// before cutoff. Aggregates (distance, times, speeds) stay intact; only the
// raw JSONB track is dropped.
func (s *Store) PruneRoutePoints(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE journey_instances
		 SET route_points = '[]'::jsonb
		 WHERE status IN ('COMPLETED', 'CANCELLED')
		   AND end_time < $1
		   AND route_points <> '[]'::jsonb`,
		cutoff)
	if err != nil {
		return 0, translate(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
