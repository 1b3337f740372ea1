// Package partners handles B2B lead ingestion from referral platforms.
package partners

import (
	apphttp "leadline_backend/internal/http"
)

// Module is the partner ingestion bounded context implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(h *Handler) *Module {
	return &Module{handler: h}
}

func (m *Module) Name() string { return "partners" }

// RegisterRoutes mounts the partner ingestion routes under /api/v1.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/partners")
	group.Use(ctx.APIRateLimit)
	group.Use(m.handler.Authenticate())
	group.POST("/leads", m.handler.Ingest)
}

var _ apphttp.Module = (*Module)(nil)
