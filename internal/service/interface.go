package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
)

var (
	ErrUnauthorized = errors.New("access denied")
	ErrRoomNotFound = errors.New("room not found")
)

// RoomService defines the room membership operations.
//
// Read methods report whether the result was served from the cache.
// Every mutation commits first, then invalidates the affected cache keys,
// then writes the audit entry and publishes a room event.
type RoomService interface {
	CreateRoom(ctx context.Context, userID uint64, name string, avatar *string) (*domain.RoomDetail, error)
	GetRoom(ctx context.Context, userID uint64, roomID string) (*domain.RoomDetail, bool, error)
	GetRoomsOfUser(ctx context.Context, userID uint64) ([]domain.Room, bool, error)
	GetRequestedRoomsOfUser(ctx context.Context, userID uint64) ([]domain.Room, error)
	GetRoomOverview(ctx context.Context, userID uint64) (*domain.RoomOverview, bool, error)

	UpdateRoom(ctx context.Context, adminID uint64, roomID string, req *domain.UpdateRoomRequest) (*domain.RoomDetail, error)
	DeleteRoom(ctx context.Context, adminID uint64, roomID string) error

	JoinRequest(ctx context.Context, userID uint64, roomID string) (domain.Outcome, error)
	LeaveRoom(ctx context.Context, userID uint64, roomID string) (domain.Outcome, error)
	HandleRequests(ctx context.Context, adminID uint64, roomID string, accept, reject []uint64) error
}
