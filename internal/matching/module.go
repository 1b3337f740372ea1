package matching

import (
	apphttp "leadline_backend/internal/http"
)

// Module is the lead distribution surface implementing http.Module: admin
// lead queries, vendor feeds and the distribute action.
type Module struct {
	handler *Handler
}

func NewModule(h *Handler) *Module {
	return &Module{handler: h}
}

func (m *Module) Name() string { return "matching" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.V1.Group("/leads")
	leadsGroup.Use(ctx.APIRateLimit)
	leadsGroup.GET("", m.handler.ListLeads)

	vendorsGroup := ctx.V1.Group("/vendors")
	vendorsGroup.Use(ctx.APIRateLimit)
	vendorsGroup.GET("/:id/leads", m.handler.VendorFeed)
	vendorsGroup.POST("/:id/leads/:leadID/accept", m.handler.AcceptLead)

	ctx.Admin.POST("/leads/:id/distribute", m.handler.Distribute)
}

var _ apphttp.Module = (*Module)(nil)
