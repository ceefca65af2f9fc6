package domain

import (
	"time"
)

// Role is a member's role inside a room.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// RoleFor returns RoleAdmin when admin is set, RoleMember otherwise.
func RoleFor(admin bool) Role {
	if admin {
		return RoleAdmin
	}
	return RoleMember
}

// MembershipStatus is the relation of one user to one room.
type MembershipStatus int

const (
	NonMember MembershipStatus = iota
	Requested
	RegularMember
	AdminMember
)

func (s MembershipStatus) String() string {
	switch s {
	case Requested:
		return "requested"
	case RegularMember:
		return "member"
	case AdminMember:
		return "admin"
	default:
		return "none"
	}
}

// IsMember reports whether the status grants read access to the room.
func (s MembershipStatus) IsMember() bool {
	return s == RegularMember || s == AdminMember
}

// Outcome reports whether a tolerant operation changed anything.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeIgnored
)

func (o Outcome) String() string {
	if o == OutcomeIgnored {
		return "ignored"
	}
	return "applied"
}

// Room represents a chat room.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserSummary is the public profile of a user.
type UserSummary struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Member is a user in a room's roster together with their role.
type Member struct {
	UserSummary
	Role Role `json:"role"`
}

// Membership is the (room, user) relation entity.
type Membership struct {
	RoomID string
	UserID uint64
	Role   Role
}

// RoomDetail is a room with its roster and pending join requests.
type RoomDetail struct {
	Room
	Members  []Member      `json:"members"`
	Requests []UserSummary `json:"requests"`
}

// StatusOf derives the membership status of userID.
func (d *RoomDetail) StatusOf(userID uint64) MembershipStatus {
	for _, m := range d.Members {
		if m.ID == userID {
			if m.Role == RoleAdmin {
				return AdminMember
			}
			return RegularMember
		}
	}
	for _, r := range d.Requests {
		if r.ID == userID {
			return Requested
		}
	}
	return NonMember
}

// MemberIDs returns the ids of every member.
func (d *RoomDetail) MemberIDs() []uint64 {
	ids := make([]uint64, len(d.Members))
	for i, m := range d.Members {
		ids[i] = m.ID
	}
	return ids
}

// RoomOverview groups the rooms a user belongs to with the rooms they asked to join.
type RoomOverview struct {
	Rooms    []Room `json:"rooms"`
	Requests []Room `json:"requests"`
}

// CreateRoomRequest represents a create room request.
type CreateRoomRequest struct {
	Name   string  `json:"name" binding:"required,min=1,max=255"`
	Avatar *string `json:"avatar"`
}

// UpdateRoomRequest represents an update room request.
type UpdateRoomRequest struct {
	Name     string   `json:"name" binding:"required,min=1,max=255"`
	Avatar   *string  `json:"avatar"`
	UserIDs  []uint64 `json:"userIds" binding:"required,min=1"`
	AdminIDs []uint64 `json:"adminIds" binding:"required,min=1"`
}

// HandleRequestsRequest lists the requesters to accept and reject.
type HandleRequestsRequest struct {
	Accept []uint64 `json:"accept"`
	Reject []uint64 `json:"reject"`
}

