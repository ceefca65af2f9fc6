package domain

import (
	"time"
)

// UserModel is the GORM model for the users table. The table belongs to the
// authentication subsystem; this service only reads public columns.
type UserModel struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	Name         string    `gorm:"type:varchar(255);not null"`
	Username     string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	Avatar       *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToSummary converts UserModel to its public profile.
func (m *UserModel) ToSummary() UserSummary {
	return UserSummary{
		ID:       m.ID,
		Name:     m.Name,
		Username: m.Username,
		Avatar:   deref(m.Avatar),
	}
}

// RoomModel is the GORM model for rooms table.
type RoomModel struct {
	ID        string    `gorm:"type:varchar(15);primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Avatar    *string   `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:        m.ID,
		Name:      m.Name,
		Avatar:    deref(m.Avatar),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// RoomToModel converts domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	var avatar *string
	if r.Avatar != "" {
		a := r.Avatar
		avatar = &a
	}
	return &RoomModel{
		ID:        r.ID,
		Name:      r.Name,
		Avatar:    avatar,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// MembershipModel is a membership edge. Deleting the room or the user
// removes the edge.
type MembershipModel struct {
	RoomID    string    `gorm:"type:varchar(15);primaryKey"`
	UserID    uint64    `gorm:"primaryKey;index"`
	Admin     bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Room RoomModel `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	User UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for MembershipModel.
func (MembershipModel) TableName() string {
	return "room_user"
}

// ToDomain converts MembershipModel to domain Membership.
func (m *MembershipModel) ToDomain() Membership {
	return Membership{RoomID: m.RoomID, UserID: m.UserID, Role: RoleFor(m.Admin)}
}

// MembershipToModel converts domain Membership to MembershipModel.
func MembershipToModel(ms Membership) *MembershipModel {
	return &MembershipModel{RoomID: ms.RoomID, UserID: ms.UserID, Admin: ms.Role == RoleAdmin}
}

// RequestModel is a pending join request edge.
type RequestModel struct {
	RoomID    string    `gorm:"type:varchar(15);primaryKey"`
	UserID    uint64    `gorm:"primaryKey;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Room RoomModel `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	User UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for RequestModel.
func (RequestModel) TableName() string {
	return "room_user_requests"
}

// Models lists every model handled by auto-migration, parents first.
func Models() []interface{} {
	return []interface{}{&UserModel{}, &RoomModel{}, &MembershipModel{}, &RequestModel{}}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
