// Package http holds the contract between the composition root, the router
// and the bounded-context modules that mount routes on it.
package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"solar_portal_backend/internal/events"
	"solar_portal_backend/platform/config"
	"solar_portal_backend/platform/logger"
)

// Module is a bounded context with HTTP routes.
type Module interface {
	// Name is used in startup logs.
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext hands modules the route groups they may mount on.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1 without authentication.
	V1 *gin.RouterGroup
	// Public is /api/v1/public, reachable by site visitors.
	Public *gin.RouterGroup
	// Protected requires a valid access token.
	Protected *gin.RouterGroup
	// Privileged additionally requires the admin or manager role.
	Privileged *gin.RouterGroup
	Config     config.JWTConfig
}

// RouterConfig is the slice of configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is everything main.go assembled that the router needs.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health is nil on the memory store; /api/health then always reports ok.
	Health HealthChecker
	// Metrics is served on /metrics when set.
	Metrics  prometheus.Gatherer
	EventBus events.Bus
	Modules  []Module
}
