package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"solar_portal_backend/internal/chat/service"
	"solar_portal_backend/internal/chat/transport"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/httpkit"
)

type Handler struct {
	svc *service.Service
}

const (
	msgInvalidRequest = "invalid request"
	msgInvalidRoomID  = "invalid room id"
)

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/rooms", h.ListRooms)
	rg.POST("/rooms", h.CreateRoom)
	rg.GET("/rooms/:id", h.GetRoom)
	rg.POST("/rooms/:id/members", h.AddMembers)
	rg.DELETE("/rooms/:id/members/:subscriberId", h.RemoveMember)
	rg.GET("/rooms/:id/messages", h.ListMessages)
	rg.POST("/rooms/:id/messages", h.PostMessage)
	rg.PATCH("/rooms/:id/messages/:messageId", h.EditMessage)
	rg.DELETE("/rooms/:id/messages/:messageId", h.DeleteMessage)
	rg.POST("/rooms/:id/typing", h.SetTyping)
	rg.POST("/rooms/:id/read", h.MarkRead)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	actorID, ok := actorFrom(c)
	if !ok {
		return
	}
	var req transport.CreateRoomRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := h.svc.CreateRoom(c.Request.Context(), actorID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, room)
}

func (h *Handler) ListRooms(c *gin.Context) {
	actorID, ok := actorFrom(c)
	if !ok {
		return
	}
	var req transport.ListRoomsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	rooms, err := h.svc.ListRooms(c.Request.Context(), actorID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, rooms)
}

func (h *Handler) GetRoom(c *gin.Context) {
	actorID, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	room, err := h.svc.GetRoom(c.Request.Context(), actorID, roomID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, room)
}

func (h *Handler) AddMembers(c *gin.Context) {
	actorID, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	var req transport.AddMembersRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := h.svc.AddMembers(c.Request.Context(), actorID, roomID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, room)
}

func (h *Handler) RemoveMember(c *gin.Context) {
	actorID, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	err := h.svc.RemoveMember(c.Request.Context(), actorID, roomID, c.Param("subscriberId"))
	if httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListMessages(c *gin.Context) {
	actorID, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	var req transport.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	messages, err := h.svc.ListMessages(c.Request.Context(), actorID, roomID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, messages)
}

func (h *Handler) PostMessage(c *gin.Context) {
	actorID, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	var req transport.PostMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.svc.PostMessage(c.Request.Context(), actorID, roomID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, msg)
}

func (h *Handler) EditMessage(c *gin.Context) {
	actorID, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	var req transport.EditMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.svc.EditMessage(c.Request.Context(), actorID, roomID, c.Param("messageId"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	actorID, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteMessage(c.Request.Context(), actorID, roomID, c.Param("messageId"))) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetTyping(c *gin.Context) {
	actorID, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	var req transport.TypingRequest
	if !bindJSON(c, &req) {
		return
	}
	if httpkit.HandleError(c, h.svc.SetTyping(c.Request.Context(), actorID, roomID, req.IsTyping)) {
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *Handler) MarkRead(c *gin.Context) {
	actorID, roomID, ok := actorAndRoom(c)
	if !ok {
		return
	}
	cursor, err := h.svc.MarkRead(c.Request.Context(), actorID, roomID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, cursor)
}

func actorFrom(c *gin.Context) (string, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return "", false
	}
	return identity.SubscriberID(), true
}

func actorAndRoom(c *gin.Context) (string, uuid.UUID, bool) {
	actorID, ok := actorFrom(c)
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRoomID))
		return "", uuid.Nil, false
	}
	return actorID, id, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return false
	}
	return true
}
