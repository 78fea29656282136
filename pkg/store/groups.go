package store

import (
	"context"
	"fmt"
	"time"

	"github.com/convoyhq/convoy/pkg/models"
)

// GetGroupDetail reads a group with its members and their users eagerly.
// This snapshot is the only basis for membership authorization.
func (s *Store) GetGroupDetail(ctx context.Context, groupID string) (*models.GroupDetail, error) {
	var group models.Group
	err := s.db.GetContext(ctx, &group,
		`SELECT id, name, creator_id, is_active FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return nil, translate(err)
	}

	type memberRow struct {
		models.GroupMember
		UserDisplayName string  `db:"user_display_name"`
		UserPhotoRef    *string `db:"user_photo_ref"`
	}
	var rows []memberRow
	err = s.db.SelectContext(ctx, &rows,
		`SELECT m.group_id, m.user_id, m.role,
		        m.last_latitude, m.last_longitude, m.last_seen, m.is_location_shared,
		        u.display_name AS user_display_name, u.photo_ref AS user_photo_ref
		 FROM group_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.group_id = $1
		 ORDER BY m.user_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group members: %w", err)
	}

	detail := &models.GroupDetail{Group: group, Members: make([]models.GroupMember, 0, len(rows))}
	for _, r := range rows {
		m := r.GroupMember
		m.User = &models.UserRef{ID: r.UserID, DisplayName: r.UserDisplayName, PhotoRef: r.UserPhotoRef}
		detail.Members = append(detail.Members, m)
	}
	return detail, nil
}

// UpdateMemberPresence upserts the member's last shared position. The row is
// expected to exist (membership is a precondition of every caller), but
// upsert keeps the write idempotent against membership races.
func (s *Store) UpdateMemberPresence(ctx context.Context, groupID, userID string, lat, lng float64, shared bool, seen time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role, last_latitude, last_longitude, last_seen, is_location_shared)
		 VALUES ($1, $2, 'MEMBER', $3, $4, $5, $6)
		 ON CONFLICT (group_id, user_id) DO UPDATE SET
		   last_latitude = EXCLUDED.last_latitude,
		   last_longitude = EXCLUDED.last_longitude,
		   last_seen = EXCLUDED.last_seen,
		   is_location_shared = EXCLUDED.is_location_shared`,
		groupID, userID, lat, lng, seen, shared)
	if err != nil {
		return fmt.Errorf("failed to update member presence: %w", err)
	}
	return nil
}

// ArchiveGroup soft-archives a group, preserving all historical rows.
// Returns whether the group was still active.
func (s *Store) ArchiveGroup(ctx context.Context, groupID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE groups SET is_active = FALSE WHERE id = $1 AND is_active`, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to archive group: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
