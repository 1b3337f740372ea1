// Package messaging owns the inbound message path: webhook intake, signature
// validation, idempotency, the message log and the stage pipeline that routes
// each message through compliance, onboarding and lead handling.
package messaging

import (
	apphttp "leadline_backend/internal/http"
)

// Module is the messaging bounded context implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(h *Handler) *Module {
	return &Module{handler: h}
}

func (m *Module) Name() string { return "messaging" }

// RegisterRoutes mounts the provider webhook under /api/v1.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	group.Use(ctx.APIRateLimit)
	group.POST("/inbound", m.handler.Inbound)
}

var _ apphttp.Module = (*Module)(nil)
