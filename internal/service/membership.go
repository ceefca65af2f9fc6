package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-io-live/membership-service/internal/audit"
	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
	"github.com/weiawesome/wes-io-live/membership-service/internal/repository"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/pubsub"
)

// JoinRequest registers a pending request. A missing room, an existing
// membership or an existing request makes it a no-op.
func (s *roomServiceImpl) JoinRequest(ctx context.Context, userID uint64, roomID string) (domain.Outcome, error) {
	if _, err := s.repo.GetByID(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return domain.OutcomeIgnored, nil
		}
		return domain.OutcomeIgnored, err
	}

	if _, err := s.repo.GetMembership(ctx, roomID, userID); err == nil {
		return domain.OutcomeIgnored, nil
	} else if !errors.Is(err, repository.ErrMembershipNotFound) {
		return domain.OutcomeIgnored, err
	}

	pending, err := s.repo.HasRequest(ctx, roomID, userID)
	if err != nil {
		return domain.OutcomeIgnored, err
	}
	if pending {
		return domain.OutcomeIgnored, nil
	}

	if err := s.repo.AttachRequests(ctx, roomID, []uint64{userID}); err != nil {
		return domain.OutcomeIgnored, fmt.Errorf("join request: %w", err)
	}

	s.invalidator.Invalidate(ctx, []string{roomID}, nil)
	audit.Log(ctx, audit.ActionJoinRequest, userID, roomID, "join requested")
	s.publish(ctx, pubsub.EventJoinRequested, roomID, pubsub.JoinRequestedPayload{RoomID: roomID, UserID: userID})
	return domain.OutcomeApplied, nil
}

// LeaveRoom removes userID from the room. The room is deleted when its last
// member leaves.
func (s *roomServiceImpl) LeaveRoom(ctx context.Context, userID uint64, roomID string) (domain.Outcome, error) {
	outcome := domain.OutcomeApplied
	var deleted bool

	err := s.repo.Transaction(ctx, func(tx repository.RoomRepository) error {
		if _, err := tx.GetMembership(ctx, roomID, userID); err != nil {
			if errors.Is(err, repository.ErrMembershipNotFound) {
				outcome = domain.OutcomeIgnored
				return nil
			}
			return err
		}

		if err := tx.DetachMembers(ctx, roomID, []uint64{userID}); err != nil {
			return err
		}
		remaining, err := tx.CountMembers(ctx, roomID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			deleted = true
			return tx.Delete(ctx, roomID)
		}
		return nil
	})
	if err != nil {
		return domain.OutcomeIgnored, mapErr(err)
	}
	if outcome == domain.OutcomeIgnored {
		return outcome, nil
	}

	s.invalidator.Invalidate(ctx, []string{roomID}, []uint64{userID})
	audit.Log(ctx, audit.ActionLeaveRoom, userID, roomID, "room left")
	s.publish(ctx, pubsub.EventMemberLeft, roomID, pubsub.MemberLeftPayload{RoomID: roomID, UserID: userID})
	if deleted {
		audit.Log(ctx, audit.ActionDeleteRoom, userID, roomID, "room deleted after last member left")
		s.publish(ctx, pubsub.EventRoomDeleted, roomID, pubsub.RoomDeletedPayload{RoomID: roomID, ActorID: userID, MemberIDs: []uint64{userID}})
	}
	return outcome, nil
}

// HandleRequests accepts and rejects pending requests. Ids without a pending
// request are skipped; an id listed in both accept and reject is accepted.
func (s *roomServiceImpl) HandleRequests(ctx context.Context, adminID uint64, roomID string, accept, reject []uint64) error {
	var accepted, rejected []uint64

	err := s.repo.Transaction(ctx, func(tx repository.RoomRepository) error {
		if err := requireAdmin(ctx, tx, roomID, adminID); err != nil {
			return err
		}

		detail, err := tx.GetDetail(ctx, roomID)
		if err != nil {
			return err
		}

		seen := make(map[uint64]bool)
		for _, id := range accept {
			if !seen[id] && detail.StatusOf(id) == domain.Requested {
				accepted = append(accepted, id)
				seen[id] = true
			}
		}
		for _, id := range reject {
			if !seen[id] && detail.StatusOf(id) == domain.Requested {
				rejected = append(rejected, id)
				seen[id] = true
			}
		}
		if len(accepted)+len(rejected) == 0 {
			return nil
		}

		if err := tx.DetachRequests(ctx, roomID, append(append([]uint64{}, accepted...), rejected...)); err != nil {
			return err
		}
		roles := make(map[uint64]domain.Role, len(accepted))
		for _, id := range accepted {
			roles[id] = domain.RoleMember
		}
		return tx.AttachMembers(ctx, roomID, roles)
	})
	if err != nil {
		return mapErr(err)
	}
	if len(accepted)+len(rejected) == 0 {
		return nil
	}

	s.invalidator.Invalidate(ctx, []string{roomID}, accepted)
	audit.LogWithDetail(ctx, audit.ActionHandleRequests, adminID, roomID, map[string]interface{}{
		"accepted": accepted,
		"rejected": rejected,
	}, "requests handled")
	s.publish(ctx, pubsub.EventRequestsHandled, roomID, pubsub.RequestsHandledPayload{
		RoomID:   roomID,
		ActorID:  adminID,
		Accepted: accepted,
		Rejected: rejected,
	})
	return nil
}
