package compliance

import (
	apphttp "leadline_backend/internal/http"
)

// Module exposes the consent audit surface implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(h *Handler) *Module {
	return &Module{handler: h}
}

func (m *Module) Name() string { return "compliance" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/compliance/consent", m.handler.ConsentAudit)
}

var _ apphttp.Module = (*Module)(nil)
