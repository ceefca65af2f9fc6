package pubsub

import (
	"fmt"
	"strings"
)

// ChannelRoomEvents is the per-room channel naming convention.
const ChannelRoomEvents = "rooms:%s:events"

// Event types for room lifecycle and membership changes.
const (
	EventRoomCreated     = "room.created"
	EventRoomUpdated     = "room.updated"
	EventRoomDeleted     = "room.deleted"
	EventJoinRequested   = "room.join_requested"
	EventRequestsHandled = "room.requests_handled"
	EventMemberLeft      = "room.member_left"
)

// RoomEventsChannel returns the channel name for a room's events.
func RoomEventsChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomEvents, roomID)
}

// roomIDFromChannel extracts the room id from "rooms:{roomID}:events".
func roomIDFromChannel(channel string) (string, error) {
	parts := strings.Split(channel, ":")
	if len(parts) != 3 || parts[0] != "rooms" || parts[2] != "events" || parts[1] == "" {
		return "", fmt.Errorf("invalid channel format: %s", channel)
	}
	return parts[1], nil
}

// Event payloads.

// RoomCreatedPayload is sent when a room is created.
type RoomCreatedPayload struct {
	RoomID    string `json:"room_id"`
	Name      string `json:"name"`
	CreatorID uint64 `json:"creator_id"`
}

// RoomUpdatedPayload is sent when an admin edits a room.
type RoomUpdatedPayload struct {
	RoomID    string   `json:"room_id"`
	Name      string   `json:"name"`
	ActorID   uint64   `json:"actor_id"`
	MemberIDs []uint64 `json:"member_ids"`
	AdminIDs  []uint64 `json:"admin_ids"`
}

// RoomDeletedPayload is sent when a room is deleted, explicitly or after the
// last member left.
type RoomDeletedPayload struct {
	RoomID    string   `json:"room_id"`
	ActorID   uint64   `json:"actor_id"`
	MemberIDs []uint64 `json:"member_ids"`
}

// JoinRequestedPayload is sent when a user asks to join.
type JoinRequestedPayload struct {
	RoomID string `json:"room_id"`
	UserID uint64 `json:"user_id"`
}

// RequestsHandledPayload is sent when an admin accepts or rejects requests.
type RequestsHandledPayload struct {
	RoomID   string   `json:"room_id"`
	ActorID  uint64   `json:"actor_id"`
	Accepted []uint64 `json:"accepted"`
	Rejected []uint64 `json:"rejected"`
}

// MemberLeftPayload is sent when a member leaves a room.
type MemberLeftPayload struct {
	RoomID string `json:"room_id"`
	UserID uint64 `json:"user_id"`
}
