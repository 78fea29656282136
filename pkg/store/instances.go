package store

import (
	"context"
	"fmt"
	"time"

	"github.com/convoyhq/convoy/pkg/models"
)

const instanceColumns = `i.id, i.group_journey_id, i.user_id, i.status,
	i.start_time, i.end_time, i.current_latitude, i.current_longitude,
	i.last_location_update, i.total_distance, i.total_time, i.avg_speed,
	i.top_speed, i.route_points`

type instanceRow struct {
	models.JourneyInstance
	UserDisplayName string  `db:"user_display_name"`
	UserPhotoRef    *string `db:"user_photo_ref"`
}

func (r *instanceRow) toModel() *models.JourneyInstance {
	inst := r.JourneyInstance
	inst.User = &models.UserRef{ID: inst.UserID, DisplayName: r.UserDisplayName, PhotoRef: r.UserPhotoRef}
	return &inst
}

// CreateInstance inserts a new instance. The (group_journey_id, user_id)
// unique constraint turns a duplicate start into ErrConflict so the
// coordinator can transition the existing row instead.
func (s *Store) CreateInstance(ctx context.Context, inst *models.JourneyInstance) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journey_instances
		   (id, group_journey_id, user_id, status, start_time,
		    current_latitude, current_longitude, last_location_update, route_points)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inst.ID, inst.GroupJourneyID, inst.UserID, inst.Status, inst.StartTime,
		inst.CurrentLatitude, inst.CurrentLongitude, inst.LastLocationUpdate, inst.RoutePoints)
	return translate(err)
}

// GetInstance reads an instance with its user joined.
func (s *Store) GetInstance(ctx context.Context, instanceID string) (*models.JourneyInstance, error) {
	var row instanceRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+instanceColumns+`,
		        u.display_name AS user_display_name, u.photo_ref AS user_photo_ref
		 FROM journey_instances i
		 JOIN users u ON u.id = i.user_id
		 WHERE i.id = $1`, instanceID)
	if err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

// GetInstanceForUser reads the (journey, user) instance.
func (s *Store) GetInstanceForUser(ctx context.Context, journeyID, userID string) (*models.JourneyInstance, error) {
	var row instanceRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+instanceColumns+`,
		        u.display_name AS user_display_name, u.photo_ref AS user_photo_ref
		 FROM journey_instances i
		 JOIN users u ON u.id = i.user_id
		 WHERE i.group_journey_id = $1 AND i.user_id = $2`, journeyID, userID)
	if err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

// GetOpenInstanceForUser returns the user's non-terminal instance across all
// journeys, or ErrNotFound. Served by the (user_id, status) index.
func (s *Store) GetOpenInstanceForUser(ctx context.Context, userID string) (*models.JourneyInstance, error) {
	var row instanceRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+instanceColumns+`,
		        u.display_name AS user_display_name, u.photo_ref AS user_photo_ref
		 FROM journey_instances i
		 JOIN users u ON u.id = i.user_id
		 WHERE i.user_id = $1 AND i.status IN ('ACTIVE', 'PAUSED')
		 LIMIT 1`, userID)
	if err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

// ListInstances returns every instance of a journey with users joined,
// ordered by start time.
func (s *Store) ListInstances(ctx context.Context, journeyID string) ([]models.JourneyInstance, error) {
	var rows []instanceRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+instanceColumns+`,
		        u.display_name AS user_display_name, u.photo_ref AS user_photo_ref
		 FROM journey_instances i
		 JOIN users u ON u.id = i.user_id
		 WHERE i.group_journey_id = $1
		 ORDER BY i.start_time`, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	out := make([]models.JourneyInstance, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toModel())
	}
	return out, nil
}

// CountOpenInstances counts ACTIVE or PAUSED instances of a journey,
// excluding one id. This feeds the auto-close rule.
func (s *Store) CountOpenInstances(ctx context.Context, journeyID, excludeInstanceID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM journey_instances
		 WHERE group_journey_id = $1 AND id <> $2 AND status IN ('ACTIVE', 'PAUSED')`,
		journeyID, excludeInstanceID)
	if err != nil {
		return 0, fmt.Errorf("failed to count open instances: %w", err)
	}
	return n, nil
}

// ReactivateInstance flips a paused or terminal instance back to ACTIVE,
// resets its current coordinates, and appends the restart route point. The
// status guard rejects a double start on an already-ACTIVE row.
func (s *Store) ReactivateInstance(ctx context.Context, instanceID string, lat, lng float64, at time.Time, point models.RoutePoint) (bool, error) {
	points := models.RoutePoints{point}
	res, err := s.db.ExecContext(ctx,
		`UPDATE journey_instances SET
		   status = 'ACTIVE',
		   end_time = NULL,
		   current_latitude = $2,
		   current_longitude = $3,
		   last_location_update = $4,
		   route_points = route_points || $5::jsonb
		 WHERE id = $1 AND status IN ('PAUSED', 'COMPLETED', 'CANCELLED')`,
		instanceID, lat, lng, at, points)
	if err != nil {
		return false, fmt.Errorf("failed to reactivate instance: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PauseInstance transitions ACTIVE → PAUSED.
func (s *Store) PauseInstance(ctx context.Context, instanceID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE journey_instances SET status = 'PAUSED'
		 WHERE id = $1 AND status = 'ACTIVE'`, instanceID)
	if err != nil {
		return false, fmt.Errorf("failed to pause instance: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ResumeInstance transitions PAUSED → ACTIVE.
func (s *Store) ResumeInstance(ctx context.Context, instanceID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE journey_instances SET status = 'ACTIVE'
		 WHERE id = $1 AND status = 'PAUSED'`, instanceID)
	if err != nil {
		return false, fmt.Errorf("failed to resume instance: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// LocationUpdate carries the validated, clamped values of one location
// sample. TotalDistance is applied as an increment and top speed with
// GREATEST so concurrent samples keep totals monotonic.
type LocationUpdate struct {
	InstanceID string
	Latitude   float64
	Longitude  float64
	At         time.Time
	DistanceKm float64
	TotalTime  int64
	AvgSpeed   float64
	SpeedKmh   float64
	RoutePoint *models.RoutePoint
}

// ApplyLocation writes one location sample in a single statement, guarded on
// ACTIVE status, and returns the updated row. ErrNotFound means the instance
// was not ACTIVE (or does not exist) at write time.
func (s *Store) ApplyLocation(ctx context.Context, upd LocationUpdate) (*models.JourneyInstance, error) {
	var points models.RoutePoints
	if upd.RoutePoint != nil {
		points = models.RoutePoints{*upd.RoutePoint}
	}
	var inst models.JourneyInstance
	err := s.db.GetContext(ctx, &inst,
		`UPDATE journey_instances SET
		   current_latitude = $2,
		   current_longitude = $3,
		   last_location_update = $4,
		   total_distance = total_distance + $5,
		   total_time = $6,
		   avg_speed = $7,
		   top_speed = GREATEST(top_speed, $8),
		   route_points = route_points || $9::jsonb
		 WHERE id = $1 AND status = 'ACTIVE'
		 RETURNING id, group_journey_id, user_id, status, start_time, end_time,
		   current_latitude, current_longitude, last_location_update,
		   total_distance, total_time, avg_speed, top_speed, route_points`,
		upd.InstanceID, upd.Latitude, upd.Longitude, upd.At,
		upd.DistanceKm, upd.TotalTime, upd.AvgSpeed, upd.SpeedKmh, points)
	if err != nil {
		return nil, translate(err)
	}
	return &inst, nil
}

// FinalizeInstance transitions a non-terminal instance to COMPLETED with its
// final totals. End coordinates overwrite the current position only when
// provided. The status guard makes the second complete a no-op.
func (s *Store) FinalizeInstance(ctx context.Context, instanceID string, endTime time.Time, totalTime int64, avgSpeed float64, endLat, endLng *float64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE journey_instances SET
		   status = 'COMPLETED',
		   end_time = $2,
		   total_time = $3,
		   avg_speed = $4,
		   current_latitude = COALESCE($5, current_latitude),
		   current_longitude = COALESCE($6, current_longitude)
		 WHERE id = $1 AND status IN ('ACTIVE', 'PAUSED')`,
		instanceID, endTime, totalTime, avgSpeed, endLat, endLng)
	if err != nil {
		return false, fmt.Errorf("failed to finalize instance: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
