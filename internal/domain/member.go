package domain

import "time"

type Role string

const (
	RoleHost     Role = "host"
	RoleListener Role = "listener"
)

// Member represents a device's participation in one room.
// No transport or lifecycle logic here.
type Member struct {
	ID          MemberID  `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// NewMember avoids raw literals in callers and keeps construction obvious.
func NewMember(id Identity, role Role, now time.Time) *Member {
	return &Member{
		ID:          id.MemberID,
		DisplayName: id.DisplayName,
		Role:        role,
		JoinedAt:    now,
	}
}
