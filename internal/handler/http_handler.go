package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
	"github.com/weiawesome/wes-io-live/membership-service/internal/generator"
	"github.com/weiawesome/wes-io-live/membership-service/internal/service"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/log"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/response"
)

// Handler handles HTTP requests for the membership service.
type Handler struct {
	roomService    service.RoomService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(roomService service.RoomService, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		roomService:    roomService,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes. Every room route requires a bearer token.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		rooms := api.Group("/rooms", h.authMiddleware.RequireAuth())
		{
			rooms.GET("", h.ListRooms)
			rooms.POST("", h.CreateRoom)

			room := rooms.Group("/:id", requireRoomID)
			{
				room.GET("", h.GetRoom)
				room.PUT("", h.UpdateRoom)
				room.DELETE("", h.DeleteRoom)
				room.POST("/join", h.JoinRoom)
				room.POST("/leave", h.LeaveRoom)
				room.POST("/requests", h.HandleRequests)
			}
		}
	}
}

func requireRoomID(c *gin.Context) {
	roomID := c.Param("id")
	if !generator.ValidRoomID(roomID) {
		response.BadRequest(c, "invalid room id")
		c.Abort()
		return
	}
	c.Request = c.Request.WithContext(log.WithRoom(c.Request.Context(), roomID))
	c.Next()
}

// fail maps service errors onto responses. Unknown errors are logged.
func fail(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		response.Unauthorized(c, service.ErrUnauthorized.Error())
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, "room not found")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldUsername, middleware.GetUsername(c)).Msg("failed to " + action)
		response.InternalError(c, "failed to "+action)
	}
}

// ListRooms returns the caller's rooms and the rooms they asked to join.
func (h *Handler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	overview, fromCache, err := h.roomService.GetRoomOverview(ctx, userID)
	if err != nil {
		fail(c, err, "list rooms")
		return
	}

	response.Cached(c, overview, fromCache)
}

// CreateRoom creates a new room owned by the caller.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.roomService.CreateRoom(ctx, middleware.GetUserID(c), req.Name, req.Avatar)
	if err != nil {
		fail(c, err, "create room")
		return
	}

	response.Created(c, room)
}

// GetRoom returns a room's detail to one of its members.
func (h *Handler) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()

	room, fromCache, err := h.roomService.GetRoom(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		fail(c, err, "get room")
		return
	}

	response.Cached(c, room, fromCache)
}

// UpdateRoom edits a room and replaces its roster.
func (h *Handler) UpdateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind update room request")
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.roomService.UpdateRoom(ctx, middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err, "update room")
		return
	}

	response.Success(c, room)
}

// DeleteRoom deletes a room.
func (h *Handler) DeleteRoom(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.roomService.DeleteRoom(ctx, middleware.GetUserID(c), c.Param("id")); err != nil {
		fail(c, err, "delete room")
		return
	}

	response.Message(c, "room deleted")
}

// JoinRoom registers a join request. The answer is the same whether or not
// anything changed.
func (h *Handler) JoinRoom(c *gin.Context) {
	ctx := c.Request.Context()

	if _, err := h.roomService.JoinRequest(ctx, middleware.GetUserID(c), c.Param("id")); err != nil {
		fail(c, err, "request to join room")
		return
	}

	response.Message(c, "request sent")
}

// LeaveRoom removes the caller from a room.
func (h *Handler) LeaveRoom(c *gin.Context) {
	ctx := c.Request.Context()

	if _, err := h.roomService.LeaveRoom(ctx, middleware.GetUserID(c), c.Param("id")); err != nil {
		fail(c, err, "leave room")
		return
	}

	response.Message(c, "room left")
}

// HandleRequests accepts and rejects pending requests, then returns the room.
func (h *Handler) HandleRequests(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.HandleRequestsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind handle requests request")
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	if err := h.roomService.HandleRequests(ctx, userID, roomID, req.Accept, req.Reject); err != nil {
		fail(c, err, "handle requests")
		return
	}

	room, fromCache, err := h.roomService.GetRoom(ctx, userID, roomID)
	if err != nil {
		fail(c, err, "get room")
		return
	}

	response.Cached(c, room, fromCache)
}
