// Package chat provides the chat bounded context: rooms, membership,
// ordered messages, typing indicators and read cursors.
package chat

import (
	"solar_portal_backend/internal/chat/handler"
	"solar_portal_backend/internal/chat/repository"
	"solar_portal_backend/internal/chat/service"
	"solar_portal_backend/internal/events"
	apphttp "solar_portal_backend/internal/http"
	"solar_portal_backend/internal/realtime"
	"solar_portal_backend/platform/logger"
	"solar_portal_backend/platform/validator"
)

// Module is the chat bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the chat service to the hub and makes the store the
// hub's room membership resolver.
func NewModule(repo repository.ChatRepository, hub *realtime.Hub, eventBus events.Bus, leads service.LeadTimeline, val *validator.Validator, log *logger.Logger) *Module {
	hub.SetMembershipResolver(repo)
	svc := service.New(repo, hub, eventBus, val, log, service.WithLeadTimeline(leads))

	return &Module{
		handler: handler.New(svc),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "chat"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/chat"))
}

var _ apphttp.Module = (*Module)(nil)
