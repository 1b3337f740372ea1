// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"
	"net/http"

	"leadline_backend/platform/config"
	"leadline_backend/platform/events"
	"leadline_backend/platform/httpkit"
	"leadline_backend/platform/logger"
	"leadline_backend/platform/ratelimit"

	"github.com/gin-gonic/gin"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the HTTP server configuration.
	Config config.HTTPConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., DB ping).
	Health HealthChecker
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// APILimiter is the injected sliding-window limiter for API-key routes.
	APILimiter ratelimit.Limiter
	// GlobalLimiter throttles every request per client IP before routing.
	// Nil disables the engine-level throttle.
	GlobalLimiter *httpkit.IPRateLimiter
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}

// BuildEngine assembles the Gin engine, shared middleware and module routes.
func (a *App) BuildEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(a.Logger))
	engine.Use(httpkit.SecurityHeaders())
	if a.GlobalLimiter != nil {
		engine.Use(a.GlobalLimiter.RateLimit())
	}

	engine.GET("/api/health", func(c *gin.Context) {
		if a.Health != nil {
			if err := a.Health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	admin := v1.Group("/admin")

	ctx := &RouterContext{
		Engine:       engine,
		V1:           v1,
		Admin:        admin,
		APIRateLimit: httpkit.RateLimit(a.APILimiter, httpkit.KeyByAPIKey, a.Logger),
		Logger:       a.Logger,
	}

	for _, m := range a.Modules {
		m.RegisterRoutes(ctx)
		a.Logger.Info("module routes registered", "module", m.Name())
	}

	return engine
}
