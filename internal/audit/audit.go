package audit

import (
	"context"

	"github.com/weiawesome/wes-io-live/membership-service/pkg/log"
)

// Audit actions for the membership service.
const (
	ActionCreateRoom     = "room.create"
	ActionUpdateRoom     = "room.update"
	ActionDeleteRoom     = "room.delete"
	ActionJoinRequest    = "room.join_request"
	ActionHandleRequests = "room.handle_requests"
	ActionLeaveRoom      = "room.leave"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID uint64, roomID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Uint64(log.FieldUserID, userID).
		Str(log.FieldRoomID, roomID).
		Msg(msg)
}

// LogWithDetail emits an audit log with an extra detail object.
func LogWithDetail(ctx context.Context, action string, userID uint64, roomID string, detail map[string]interface{}, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Uint64(log.FieldUserID, userID).
		Str(log.FieldRoomID, roomID).
		Fields(map[string]interface{}{FieldDetail: detail}).
		Msg(msg)
}
