// Package router assembles the gin engine from the registered modules.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apphttp "solar_portal_backend/internal/http"
	"solar_portal_backend/platform/httpkit"
)

func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if app.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Metrics, promhttp.HandlerOpts{})))
	}

	v1 := engine.Group("/api/v1")
	protected := v1.Group("", httpkit.AuthRequired(app.Config))

	rc := &apphttp.RouterContext{
		Engine:     engine,
		V1:         v1,
		Public:     v1.Group("/public"),
		Protected:  protected,
		Privileged: protected.Group("", httpkit.RequireAnyRole(httpkit.RoleAdmin, httpkit.RoleManager)),
		Config:     app.Config,
	}
	for _, module := range app.Modules {
		module.RegisterRoutes(rc)
		app.Logger.Debug("module routes registered", "module", module.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Type", "Cache-Control", "Connection"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	origins := cfg.GetCORSOrigins()
	if cfg.GetCORSAllowAll() || len(origins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = origins
	}
	return c
}
