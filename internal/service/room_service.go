package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-live/membership-service/internal/audit"
	"github.com/weiawesome/wes-io-live/membership-service/internal/cache"
	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
	"github.com/weiawesome/wes-io-live/membership-service/internal/generator"
	"github.com/weiawesome/wes-io-live/membership-service/internal/repository"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/log"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/pubsub"
)

const publishTimeout = 3 * time.Second

// roomServiceImpl implements RoomService interface.
type roomServiceImpl struct {
	repo        repository.RoomRepository
	cache       *cache.RoomCache
	invalidator Invalidator
	publisher   pubsub.Publisher
	ids         generator.IDGenerator
	sf          singleflight.Group
}

// createAttempts bounds id regeneration when a generated id is already taken.
const createAttempts = 2

// NewRoomService creates a new room service.
func NewRoomService(
	repo repository.RoomRepository,
	roomCache *cache.RoomCache,
	invalidator Invalidator,
	publisher pubsub.Publisher,
	ids generator.IDGenerator,
) RoomService {
	if publisher == nil {
		publisher = pubsub.NopPublisher{}
	}
	return &roomServiceImpl{
		repo:        repo,
		cache:       roomCache,
		invalidator: invalidator,
		publisher:   publisher,
		ids:         ids,
	}
}

// CreateRoom creates a room with userID as its only member and admin.
func (s *roomServiceImpl) CreateRoom(ctx context.Context, userID uint64, name string, avatar *string) (*domain.RoomDetail, error) {
	room := &domain.Room{Name: name}
	if avatar != nil {
		room.Avatar = *avatar
	}

	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		if room.ID, err = s.ids.Generate(); err != nil {
			return nil, err
		}
		err = s.repo.Transaction(ctx, func(tx repository.RoomRepository) error {
			if err := tx.Create(ctx, room); err != nil {
				return err
			}
			return tx.AttachMembers(ctx, room.ID, map[uint64]domain.Role{userID: domain.RoleAdmin})
		})
		if !errors.Is(err, repository.ErrRoomExists) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	s.invalidator.Invalidate(ctx, []string{room.ID}, []uint64{userID})
	audit.Log(ctx, audit.ActionCreateRoom, userID, room.ID, "room created")
	s.publish(ctx, pubsub.EventRoomCreated, room.ID, pubsub.RoomCreatedPayload{RoomID: room.ID, Name: room.Name, CreatorID: userID})

	return s.freshDetail(ctx, room.ID)
}

// UpdateRoom edits the room and replaces its roster. Ids in AdminIDs that are
// not in UserIDs are ignored. The roster may end up without any admin.
func (s *roomServiceImpl) UpdateRoom(ctx context.Context, adminID uint64, roomID string, req *domain.UpdateRoomRequest) (*domain.RoomDetail, error) {
	admins := make(map[uint64]bool, len(req.AdminIDs))
	for _, id := range req.AdminIDs {
		admins[id] = true
	}
	members := make(map[uint64]domain.Role, len(req.UserIDs))
	for _, id := range req.UserIDs {
		members[id] = domain.RoleFor(admins[id])
	}

	var previous []uint64
	err := s.repo.Transaction(ctx, func(tx repository.RoomRepository) error {
		if err := requireAdmin(ctx, tx, roomID, adminID); err != nil {
			return err
		}

		old, err := tx.GetDetail(ctx, roomID)
		if err != nil {
			return err
		}
		previous = old.MemberIDs()

		room := old.Room
		room.Name = req.Name
		if req.Avatar != nil {
			room.Avatar = *req.Avatar
		}
		if err := tx.Update(ctx, &room); err != nil {
			return err
		}
		if err := tx.SyncMembers(ctx, roomID, members); err != nil {
			return err
		}
		return tx.DetachRequests(ctx, roomID, keys(members))
	})
	if err != nil {
		return nil, mapErr(err)
	}

	s.invalidator.Invalidate(ctx, []string{roomID}, union(previous, keys(members)))
	audit.LogWithDetail(ctx, audit.ActionUpdateRoom, adminID, roomID, map[string]interface{}{
		"members": len(members),
		"admins":  countAdmins(members),
	}, "room updated")
	s.publish(ctx, pubsub.EventRoomUpdated, roomID, pubsub.RoomUpdatedPayload{
		RoomID:    roomID,
		Name:      req.Name,
		ActorID:   adminID,
		MemberIDs: keys(members),
		AdminIDs:  adminKeys(members),
	})

	return s.freshDetail(ctx, roomID)
}

// DeleteRoom removes the room and every edge.
func (s *roomServiceImpl) DeleteRoom(ctx context.Context, adminID uint64, roomID string) error {
	var members []uint64
	err := s.repo.Transaction(ctx, func(tx repository.RoomRepository) error {
		if err := requireAdmin(ctx, tx, roomID, adminID); err != nil {
			return err
		}
		detail, err := tx.GetDetail(ctx, roomID)
		if err != nil {
			return err
		}
		members = detail.MemberIDs()
		return tx.Delete(ctx, roomID)
	})
	if err != nil {
		return mapErr(err)
	}

	s.invalidator.Invalidate(ctx, []string{roomID}, members)
	audit.Log(ctx, audit.ActionDeleteRoom, adminID, roomID, "room deleted")
	s.publish(ctx, pubsub.EventRoomDeleted, roomID, pubsub.RoomDeletedPayload{RoomID: roomID, ActorID: adminID, MemberIDs: members})
	return nil
}

// freshDetail reads a room straight from the repository after a mutation.
func (s *roomServiceImpl) freshDetail(ctx context.Context, roomID string) (*domain.RoomDetail, error) {
	detail, err := s.repo.GetDetail(ctx, roomID)
	if err != nil {
		return nil, mapErr(err)
	}
	return detail, nil
}

// publish emits a room event. Failures are logged and swallowed; the
// mutation has already committed.
func (s *roomServiceImpl) publish(ctx context.Context, eventType, roomID string, payload interface{}) {
	l := log.Ctx(ctx)

	event, err := pubsub.NewEvent(eventType, roomID, payload)
	if err != nil {
		l.Warn().Err(err).Str("event", eventType).Msg("failed to build room event")
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, pubsub.RoomEventsChannel(roomID), event); err != nil {
		l.Warn().Err(err).Str("event", eventType).Str(log.FieldRoomID, roomID).Msg("failed to publish room event")
	}
}

// requireAdmin reads the acting user's role from the repository. A missing
// room and a missing membership are indistinguishable to the caller.
func requireAdmin(ctx context.Context, repo repository.RoomRepository, roomID string, userID uint64) error {
	ms, err := repo.GetMembership(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMembershipNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if ms.Role != domain.RoleAdmin {
		return ErrUnauthorized
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, repository.ErrRoomNotFound) {
		return ErrRoomNotFound
	}
	return err
}
