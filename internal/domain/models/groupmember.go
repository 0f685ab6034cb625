package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupMember joins a user (by UserID handle) to a group.
// Exactly one document per (group_id, user_id).
type GroupMember struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID      primitive.ObjectID `bson:"group_id" json:"group_id"`
	UserID       string             `bson:"user_id" json:"user_id"`
	Role         string             `bson:"role" json:"role"`     // owner | admin | member
	Status       string             `bson:"status" json:"status"` // active | pending
	JoinedAt     time.Time          `bson:"joined_at" json:"joined_at"`
	LastActiveAt time.Time          `bson:"last_active_at" json:"last_active_at"`

	Location *MemberLocation `bson:"location,omitempty" json:"location,omitempty"`

	WeeklyStudy       WeeklyStudy `bson:"weekly_study" json:"weekly_study"`
	WeekStart         time.Time   `bson:"week_start,omitempty" json:"week_start,omitempty"`
	TotalStudyMinutes int         `bson:"total_study_minutes" json:"total_study_minutes"`
}

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"

	MemberActive  = "active"
	MemberPending = "pending"
)

// RoleRank orders roles for listing: owner, admin, member.
func RoleRank(role string) int {
	switch role {
	case RoleOwner:
		return 0
	case RoleAdmin:
		return 1
	default:
		return 2
	}
}

// IsActive reports whether the row counts as membership. Rows written before
// the pending state existed carry no status and are active.
func (m GroupMember) IsActive() bool { return m.Status != MemberPending }

// CanModerate reports whether the member may approve requests.
func (m GroupMember) CanModerate() bool {
	return m.IsActive() && (m.Role == RoleOwner || m.Role == RoleAdmin)
}

// MemberLocation is the member's last shared position. Last write wins.
type MemberLocation struct {
	Lat         float64   `bson:"lat" json:"lat"`
	Lng         float64   `bson:"lng" json:"lng"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	PlaceName   string    `bson:"place_name,omitempty" json:"place_name,omitempty"`
	PlaceType   string    `bson:"place_type,omitempty" json:"place_type,omitempty"`
	Crowdedness string    `bson:"crowdedness,omitempty" json:"crowdedness,omitempty"`
	Amenities   []string  `bson:"amenities,omitempty" json:"amenities,omitempty"`
	UpdatedAt   time.Time `bson:"updated_at" json:"timestamp"`
}
