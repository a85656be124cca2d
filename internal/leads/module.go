// Package leads provides the lead management bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"solar_portal_backend/internal/events"
	apphttp "solar_portal_backend/internal/http"
	"solar_portal_backend/internal/leads/handler"
	"solar_portal_backend/internal/leads/repository"
	"solar_portal_backend/internal/leads/service"
	"solar_portal_backend/platform/config"
	"solar_portal_backend/platform/logger"
	"solar_portal_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.LeadRepository
}

// NewModule creates the leads module on top of the given store.
// The composition root picks the Postgres or in-memory store.
func NewModule(repo repository.LeadRepository, eventBus events.Bus, val *validator.Validator, cfg config.LeadsConfig, log *logger.Logger) *Module {
	svc := service.New(repo, eventBus, val, log, service.WithPhoneRegion(cfg.GetPhoneDefaultRegion()))

	return &Module{
		handler: handler.New(svc),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead service for other modules (chat, intake, scheduler).
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the underlying store.
func (m *Module) Repository() repository.LeadRepository {
	return m.repo
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
	privileged := ctx.Privileged
	if privileged == nil {
		privileged = ctx.Protected
	}
	m.handler.RegisterPrivilegedRoutes(privileged.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
