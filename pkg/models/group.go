package models

import "time"

// MemberRole is a member's role within a group.
type MemberRole string

const (
	RoleCreator MemberRole = "CREATOR"
	RoleAdmin   MemberRole = "ADMIN"
	RoleMember  MemberRole = "MEMBER"
)

// CanStartJourney reports whether the role may start a group journey.
func (r MemberRole) CanStartJourney() bool {
	return r == RoleCreator || r == RoleAdmin
}

// Group is a set of users that run journeys together. Groups are created by
// an external collaborator; this service reads them and soft-archives them
// when their journey completes.
type Group struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	CreatorID string `db:"creator_id" json:"creator_id"`
	IsActive  bool   `db:"is_active" json:"is_active"`
}

// GroupMember is one (group, user) membership row, including the member's
// last shared position.
type GroupMember struct {
	GroupID          string     `db:"group_id" json:"group_id"`
	UserID           string     `db:"user_id" json:"user_id"`
	Role             MemberRole `db:"role" json:"role"`
	LastLatitude     *float64   `db:"last_latitude" json:"last_latitude,omitempty"`
	LastLongitude    *float64   `db:"last_longitude" json:"last_longitude,omitempty"`
	LastSeen         *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	IsLocationShared bool       `db:"is_location_shared" json:"is_location_shared"`

	// User is populated by the store on eager reads.
	User *UserRef `db:"-" json:"user,omitempty"`
}

// GroupDetail is a group snapshot with members and their users eagerly
// loaded. This is the unit cached under group:{id} and the only source
// consulted for membership authorization.
type GroupDetail struct {
	Group
	Members []GroupMember `json:"members"`
}

// Member returns the membership row for userID, or nil.
func (g *GroupDetail) Member(userID string) *GroupMember {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// MemberIDs returns the user ids of all members.
func (g *GroupDetail) MemberIDs() []string {
	ids := make([]string, 0, len(g.Members))
	for i := range g.Members {
		ids = append(ids, g.Members[i].UserID)
	}
	return ids
}
