package service

import (
	"context"

	"github.com/weiawesome/wes-io-live/membership-service/internal/cache"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/log"
)

// Invalidator drops cached projections after a committed mutation.
// Failures are absorbed; a mutation never fails because of the cache.
type Invalidator interface {
	Invalidate(ctx context.Context, roomIDs []string, userIDs []uint64)
}

// CacheInvalidator deletes keys from a RoomCache in a single call.
type CacheInvalidator struct {
	cache *cache.RoomCache
}

// NewCacheInvalidator creates an Invalidator backed by rc.
func NewCacheInvalidator(rc *cache.RoomCache) *CacheInvalidator {
	return &CacheInvalidator{cache: rc}
}

func (i *CacheInvalidator) Invalidate(ctx context.Context, roomIDs []string, userIDs []uint64) {
	if err := i.cache.Invalidate(ctx, roomIDs, userIDs); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).
			Strs("rooms", roomIDs).
			Interface("users", userIDs).
			Msg("cache invalidation failed")
	}
}
