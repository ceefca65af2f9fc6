package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrRoomExists         = errors.New("room already exists")
)

// RoomRepository defines the interface for room and membership persistence.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	// GetDetail loads the room with its members (with roles) and requesters.
	GetDetail(ctx context.Context, id string) (*domain.RoomDetail, error)
	Update(ctx context.Context, room *domain.Room) error
	// Delete removes the room and every membership and request edge.
	Delete(ctx context.Context, id string) error

	RoomsForUser(ctx context.Context, userID uint64) ([]domain.Room, error)
	RequestsForUser(ctx context.Context, userID uint64) ([]domain.Room, error)

	GetMembership(ctx context.Context, roomID string, userID uint64) (*domain.Membership, error)
	CountMembers(ctx context.Context, roomID string) (int64, error)
	// AttachMembers inserts memberships, overwriting the role of existing ones.
	AttachMembers(ctx context.Context, roomID string, members map[uint64]domain.Role) error
	// SyncMembers replaces the member set. An empty map removes every member.
	SyncMembers(ctx context.Context, roomID string, members map[uint64]domain.Role) error
	DetachMembers(ctx context.Context, roomID string, userIDs []uint64) error

	HasRequest(ctx context.Context, roomID string, userID uint64) (bool, error)
	// AttachRequests is idempotent.
	AttachRequests(ctx context.Context, roomID string, userIDs []uint64) error
	DetachRequests(ctx context.Context, roomID string, userIDs []uint64) error

	// Transaction runs fn against a repository bound to one transaction.
	Transaction(ctx context.Context, fn func(RoomRepository) error) error
}
