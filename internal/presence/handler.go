package presence

import (
	"github.com/gin-gonic/gin"

	apphttp "solar_portal_backend/internal/http"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/httpkit"
)

type SetPresenceRequest struct {
	Status Status `json:"status" binding:"required"`
}

// Module exposes the tracker over HTTP.
type Module struct {
	tracker *Tracker
}

func NewModule(tracker *Tracker) *Module {
	return &Module{tracker: tracker}
}

func (m *Module) Name() string { return "presence" }

func (m *Module) Tracker() *Tracker { return m.tracker }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected.Group("/presence")
	g.PUT("", m.setPresence)
	g.GET("/online", m.listOnline)
	g.GET("/:subscriberId", m.get)
}

func (m *Module) setPresence(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req SetPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request"))
		return
	}

	rec, err := m.tracker.Touch(c.Request.Context(), identity.SubscriberID(), req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, rec)
}

func (m *Module) listOnline(c *gin.Context) {
	httpkit.OK(c, gin.H{"items": m.tracker.ListOnline()})
}

func (m *Module) get(c *gin.Context) {
	rec, err := m.tracker.Get(c.Request.Context(), c.Param("subscriberId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, rec)
}

var _ apphttp.Module = (*Module)(nil)
