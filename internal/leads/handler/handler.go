package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"solar_portal_backend/internal/leads/domain"
	"solar_portal_backend/internal/leads/service"
	"solar_portal_backend/internal/leads/transport"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/httpkit"
)

type Handler struct {
	svc *service.Service
}

const (
	msgInvalidRequest = "invalid request"
	msgInvalidLeadID  = "invalid lead id"
)

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/pipeline/stages", h.Stages)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id", h.Update)
	rg.PUT("/:id/stage", h.ChangeStage)
	rg.POST("/:id/activity", h.RecordActivity)
	rg.PUT("/:id/score-override", h.OverrideScore)
	rg.DELETE("/:id/score-override", h.ClearScoreOverride)
	rg.PUT("/:id/priority-override", h.OverridePriority)
	rg.DELETE("/:id/priority-override", h.ClearPriorityOverride)
	rg.POST("/:id/notes", h.AddNote)
	rg.GET("/:id/events", h.ListEvents)
}

// RegisterPrivilegedRoutes mounts the admin and manager operations. The
// service repeats the role check for callers outside HTTP.
func (h *Handler) RegisterPrivilegedRoutes(rg *gin.RouterGroup) {
	rg.GET("/deletions", h.RecentDeletions)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/restore", h.Restore)
	rg.POST("/:id/reopen", h.Reopen)
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req transport.CreateLeadRequest
	if !bindJSON(c, &req) {
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, lead)
}

func (h *Handler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}

	result, err := h.svc.List(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) GetByID(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Update(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}
	var req transport.UpdateLeadRequest
	if !bindJSON(c, &req) {
		return
	}

	lead, err := h.svc.Update(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) ChangeStage(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}
	var req transport.ChangeStageRequest
	if !bindJSON(c, &req) {
		return
	}

	lead, err := h.svc.ChangeStage(c.Request.Context(), actor, id, req.Stage)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Reopen(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}
	var req transport.ReopenLeadRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	lead, err := h.svc.Reopen(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) RecordActivity(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}
	var req transport.RecordActivityRequest
	if !bindJSON(c, &req) {
		return
	}

	lead, err := h.svc.RecordActivity(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) OverrideScore(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}
	var req transport.ScoreOverrideRequest
	if !bindJSON(c, &req) {
		return
	}

	lead, err := h.svc.OverrideScore(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) ClearScoreOverride(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}

	lead, err := h.svc.ClearScoreOverride(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) OverridePriority(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}
	var req transport.PriorityOverrideRequest
	if !bindJSON(c, &req) {
		return
	}

	lead, err := h.svc.OverridePriority(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) ClearPriorityOverride(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}

	lead, err := h.svc.ClearPriorityOverride(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) AddNote(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}
	var req transport.AddNoteRequest
	if !bindJSON(c, &req) {
		return
	}

	note, err := h.svc.AddNote(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, note)
}

func (h *Handler) Delete(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}
	var req transport.DeleteLeadRequest
	if !bindJSON(c, &req) {
		return
	}

	if httpkit.HandleError(c, h.svc.SoftDelete(c.Request.Context(), actor, id, req.Reason)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Restore(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}

	lead, err := h.svc.Restore(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) ListEvents(c *gin.Context) {
	actor, id, ok := actorAndLead(c)
	if !ok {
		return
	}

	items, err := h.svc.ListEvents(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) RecentDeletions(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			httpkit.HandleError(c, apperr.BadRequest("limit must be between 1 and 200"))
			return
		}
		limit = parsed
	}

	items, err := h.svc.RecentDeletions(c.Request.Context(), actor, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) Stages(c *gin.Context) {
	httpkit.OK(c, gin.H{"items": h.svc.Stages()})
}

// actorFrom turns the authenticated identity into the actor the service
// records on audit events.
func actorFrom(c *gin.Context) (domain.Actor, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return domain.Actor{}, false
	}
	return domain.Actor{ID: identity.SubscriberID(), Roles: identity.Roles()}, true
}

func actorAndLead(c *gin.Context) (domain.Actor, uuid.UUID, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		return domain.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidLeadID))
		return domain.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return false
	}
	return true
}
