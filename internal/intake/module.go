package intake

import (
	"github.com/gin-gonic/gin"

	apphttp "solar_portal_backend/internal/http"
	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/httpkit"
)

// Module exposes the public contact form.
type Module struct {
	svc     *Service
	limiter *httpkit.IPRateLimiter
}

func NewModule(svc *Service, limiter *httpkit.IPRateLimiter) *Module {
	return &Module{svc: svc, limiter: limiter}
}

func (m *Module) Name() string { return "intake" }

func (m *Module) Service() *Service { return m.svc }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	handlers := []gin.HandlerFunc{m.Submit}
	if m.limiter != nil {
		handlers = append([]gin.HandlerFunc{m.limiter.RateLimit()}, handlers...)
	}
	ctx.Public.POST("/contact", handlers...)
}

func (m *Module) Submit(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request"))
		return
	}
	receipt, err := m.svc.Submit(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Accepted(c, receipt)
}

var _ apphttp.Module = (*Module)(nil)
