package service

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-live/membership-service/internal/cache"
	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
	"github.com/weiawesome/wes-io-live/membership-service/internal/repository"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/log"
)

type roomLoad struct {
	detail    *domain.RoomDetail
	fromCache bool
}

type roomsLoad struct {
	rooms     []domain.Room
	fromCache bool
}

// GetRoom returns the room if userID is a member. A missing room is reported
// as ErrUnauthorized so existence does not leak.
func (s *roomServiceImpl) GetRoom(ctx context.Context, userID uint64, roomID string) (*domain.RoomDetail, bool, error) {
	detail, fromCache, err := s.loadRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, false, ErrUnauthorized
		}
		return nil, false, err
	}
	if !detail.StatusOf(userID).IsMember() {
		return nil, false, ErrUnauthorized
	}
	return detail, fromCache, nil
}

// GetRoomsOfUser returns the rooms userID is a member of.
func (s *roomServiceImpl) GetRoomsOfUser(ctx context.Context, userID uint64) ([]domain.Room, bool, error) {
	key := cache.UserRoomsKey(userID)

	v, err := s.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		l := log.Ctx(ctx)

		rooms, err := s.cache.GetUserRooms(ctx, userID)
		if err == nil {
			return roomsLoad{rooms: rooms, fromCache: true}, nil
		}
		s.onCacheReadError(ctx, key, err, func() { s.invalidator.Invalidate(ctx, nil, []uint64{userID}) })

		rooms, err = s.repo.RoomsForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetUserRooms(ctx, userID, rooms); err != nil {
			l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("cache set error")
		}
		return roomsLoad{rooms: rooms}, nil
	})
	if err != nil {
		return nil, false, err
	}

	res := v.(roomsLoad)
	return res.rooms, res.fromCache, nil
}

// GetRequestedRoomsOfUser returns the rooms userID has a pending request for.
func (s *roomServiceImpl) GetRequestedRoomsOfUser(ctx context.Context, userID uint64) ([]domain.Room, error) {
	return s.repo.RequestsForUser(ctx, userID)
}

// GetRoomOverview loads member rooms and requested rooms concurrently.
// fromCache reflects the member room list.
func (s *roomServiceImpl) GetRoomOverview(ctx context.Context, userID uint64) (*domain.RoomOverview, bool, error) {
	var overview domain.RoomOverview
	var fromCache bool

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		overview.Rooms, fromCache, err = s.GetRoomsOfUser(gCtx, userID)
		return err
	})

	g.Go(func() error {
		var err error
		overview.Requests, err = s.GetRequestedRoomsOfUser(gCtx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	return &overview, fromCache, nil
}

// loadRoom is the cache-aside read of a room detail. Concurrent loads of the
// same room share one backend round trip.
func (s *roomServiceImpl) loadRoom(ctx context.Context, roomID string) (*domain.RoomDetail, bool, error) {
	key := cache.RoomKey(roomID)

	v, err := s.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		l := log.Ctx(ctx)

		detail, err := s.cache.GetRoom(ctx, roomID)
		if err == nil {
			return roomLoad{detail: detail, fromCache: true}, nil
		}
		s.onCacheReadError(ctx, key, err, func() { s.invalidator.Invalidate(ctx, []string{roomID}, nil) })

		detail, err = s.repo.GetDetail(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetRoom(ctx, detail); err != nil {
			l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("cache set error")
		}
		return roomLoad{detail: detail}, nil
	})
	if err != nil {
		return nil, false, err
	}

	res := v.(roomLoad)
	return res.detail, res.fromCache, nil
}

// shared runs load once per key across concurrent callers. The load runs
// detached from any single caller's cancellation; each caller stops waiting
// when its own ctx is done.
func (s *roomServiceImpl) shared(ctx context.Context, key string, load func(context.Context) (interface{}, error)) (interface{}, error) {
	loadCtx := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(key, func() (interface{}, error) {
		return load(loadCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// onCacheReadError logs a failed cache read. Invalid values are dropped so
// the next read repopulates them.
func (s *roomServiceImpl) onCacheReadError(ctx context.Context, key string, err error, drop func()) {
	l := log.Ctx(ctx)
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
		l.Debug().Str(log.FieldCacheKey, key).Msg("cache miss")
	case errors.Is(err, cache.ErrInvalidCacheValue):
		l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("invalid cache value, dropping key")
		drop()
	default:
		l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("cache get error")
	}
}

func keys(m map[uint64]domain.Role) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func adminKeys(m map[uint64]domain.Role) []uint64 {
	out := make([]uint64, 0, len(m))
	for _, k := range keys(m) {
		if m[k] == domain.RoleAdmin {
			out = append(out, k)
		}
	}
	return out
}

func countAdmins(m map[uint64]domain.Role) int {
	return len(adminKeys(m))
}

func union(a, b []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(a)+len(b))
	out := make([]uint64, 0, len(a)+len(b))
	for _, s := range [][]uint64{a, b} {
		for _, id := range s {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
