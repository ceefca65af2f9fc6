package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
)

const (
	DefaultTTL = time.Hour

	roomKeyPrefix   = "room:"
	userKeyPrefix   = "user:"
	userRoomsSuffix = ":rooms"
)

// RoomKey returns the key of a room's cached detail.
func RoomKey(roomID string) string {
	return roomKeyPrefix + roomID
}

// UserRoomsKey returns the key of a user's cached room list.
func UserRoomsKey(userID uint64) string {
	return userKeyPrefix + strconv.FormatUint(userID, 10) + userRoomsSuffix
}

// RoomCache stores room projections in a Store through the Codec.
type RoomCache struct {
	store Store
	codec Codec
	ttl   time.Duration
}

// NewRoomCache wraps store. A non-positive ttl selects DefaultTTL.
func NewRoomCache(store Store, ttl time.Duration) *RoomCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RoomCache{store: store, ttl: ttl}
}

// GetRoom returns ErrCacheMiss, ErrInvalidCacheValue or ErrStoreUnavailable
// when no usable value is cached.
func (c *RoomCache) GetRoom(ctx context.Context, roomID string) (*domain.RoomDetail, error) {
	raw, err := c.store.Get(ctx, RoomKey(roomID))
	if err != nil {
		return nil, err
	}
	return c.codec.DecodeRoom(raw)
}

func (c *RoomCache) SetRoom(ctx context.Context, d *domain.RoomDetail) error {
	raw, err := c.codec.EncodeRoom(d)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, RoomKey(d.ID), raw, c.ttl)
}

func (c *RoomCache) GetUserRooms(ctx context.Context, userID uint64) ([]domain.Room, error) {
	raw, err := c.store.Get(ctx, UserRoomsKey(userID))
	if err != nil {
		return nil, err
	}
	return c.codec.DecodeRoomList(raw)
}

func (c *RoomCache) SetUserRooms(ctx context.Context, userID uint64, rooms []domain.Room) error {
	raw, err := c.codec.EncodeRoomList(rooms)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, UserRoomsKey(userID), raw, c.ttl)
}

// Invalidate deletes the given room and user-room-list keys in one call.
func (c *RoomCache) Invalidate(ctx context.Context, roomIDs []string, userIDs []uint64) error {
	keys := make([]string, 0, len(roomIDs)+len(userIDs))
	for _, id := range roomIDs {
		keys = append(keys, RoomKey(id))
	}
	for _, id := range userIDs {
		keys = append(keys, UserRoomsKey(id))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.store.Delete(ctx, keys...)
}

// Cached reports whether every given key is present.
func (c *RoomCache) Cached(ctx context.Context, keys ...string) (bool, error) {
	return c.store.Exists(ctx, keys...)
}

// Clear drops every cached projection.
func (c *RoomCache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

func (c *RoomCache) Close() error {
	return c.store.Close()
}
