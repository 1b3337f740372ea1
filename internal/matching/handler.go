package matching

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"leadline_backend/internal/leads"
	"leadline_backend/internal/vendors"
	"leadline_backend/platform/httpkit"
	"leadline_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LeadAdmin is the slice of the leads repository the distribution surface
// needs.
type LeadAdmin interface {
	GetByID(ctx context.Context, id uuid.UUID) (leads.Lead, error)
	Query(ctx context.Context, f leads.Filters) ([]leads.Lead, error)
	Transition(ctx context.Context, id uuid.UUID, from, to string) error
	Accept(ctx context.Context, id, vendorID uuid.UUID) error
}

// VendorSourceByID resolves a vendor for the feed endpoint.
type VendorSourceByID interface {
	GetByID(ctx context.Context, id uuid.UUID) (vendors.Vendor, error)
}

type Handler struct {
	engine    *Engine
	leadAdmin LeadAdmin
	vendors   VendorSourceByID
	log       *logger.Logger
}

func NewHandler(engine *Engine, leadAdmin LeadAdmin, vendorSrc VendorSourceByID, log *logger.Logger) *Handler {
	return &Handler{engine: engine, leadAdmin: leadAdmin, vendors: vendorSrc, log: log}
}

// leadResponse is the wire shape of a lead.
type leadResponse struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"userId"`
	Category         string          `json:"category"`
	PartnerName      string          `json:"partnerName,omitempty"`
	Description      string          `json:"description"`
	Country          string          `json:"country,omitempty"`
	Region           string          `json:"region,omitempty"`
	City             string          `json:"city,omitempty"`
	Currency         string          `json:"currency,omitempty"`
	Budget           *float64        `json:"budget,omitempty"`
	BudgetUSD        *float64        `json:"budgetUsd,omitempty"`
	ConsentGiven     bool            `json:"consentGiven"`
	ConsentTimestamp *time.Time      `json:"consentTimestamp,omitempty"`
	Status           string          `json:"status"`
	Source           string          `json:"source"`
	LeadValue        float64         `json:"leadValue"`
	AcceptedByVendor *uuid.UUID      `json:"acceptedByVendorId,omitempty"`
	Details          json.RawMessage `json:"details,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

func toLeadResponse(l leads.Lead) leadResponse {
	return leadResponse{
		ID:               l.ID,
		UserID:           l.UserID,
		Category:         l.Category,
		PartnerName:      l.PartnerName,
		Description:      l.Description,
		Country:          l.Location.Country,
		Region:           l.Location.Region,
		City:             l.Location.City,
		Currency:         l.Currency,
		Budget:           l.Budget,
		BudgetUSD:        l.BudgetUSD,
		ConsentGiven:     l.ConsentGiven,
		ConsentTimestamp: l.ConsentTimestamp,
		Status:           l.Status,
		Source:           l.Source,
		LeadValue:        l.LeadValue,
		AcceptedByVendor: l.AcceptedByVendorID,
		Details:          json.RawMessage(l.Details),
		CreatedAt:        l.CreatedAt,
	}
}

func toLeadResponses(ls []leads.Lead) []leadResponse {
	out := make([]leadResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, toLeadResponse(l))
	}
	return out
}

// ListLeads handles GET /leads with status/category/country/city/q filters.
func (h *Handler) ListLeads(c *gin.Context) {
	f := leads.Filters{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Country:  c.Query("country"),
		City:     c.Query("city"),
		Q:        c.Query("q"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpkit.Error(c, http.StatusBadRequest, "limit must be a non-negative integer", nil)
			return
		}
		f.Limit = limit
	}

	found, err := h.leadAdmin.Query(c.Request.Context(), f)
	if err != nil {
		h.log.Error("lead query failed", "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}
	httpkit.OK(c, gin.H{"leads": toLeadResponses(found)})
}

// VendorFeed handles GET /vendors/:id/leads. The result is already capped by
// the vendor's subscription tier.
func (h *Handler) VendorFeed(c *gin.Context) {
	vendorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid vendor id", nil)
		return
	}

	vendor, err := h.vendors.GetByID(c.Request.Context(), vendorID)
	if err != nil {
		if errors.Is(err, vendors.ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "vendor not found", nil)
			return
		}
		h.log.Error("vendor lookup failed", "vendor_id", vendorID, "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}

	feed, err := h.engine.FindLeadsForVendor(c.Request.Context(), vendor, FeedFilters{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Country:  c.Query("country"),
		City:     c.Query("city"),
		Q:        c.Query("q"),
	})
	if err != nil {
		h.log.Error("vendor feed failed", "vendor_id", vendorID, "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}
	httpkit.OK(c, gin.H{"leads": toLeadResponses(feed)})
}

// AcceptLead handles POST /vendors/:id/leads/:leadID/accept. First taker
// wins; a lead already accepted or declined comes back 409.
func (h *Handler) AcceptLead(c *gin.Context) {
	vendorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid vendor id", nil)
		return
	}
	leadID, err := uuid.Parse(c.Param("leadID"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.vendors.GetByID(ctx, vendorID); err != nil {
		if errors.Is(err, vendors.ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "vendor not found", nil)
			return
		}
		h.log.Error("vendor lookup failed", "vendor_id", vendorID, "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}

	if err := h.leadAdmin.Accept(ctx, leadID, vendorID); err != nil {
		if errors.Is(err, leads.ErrInvalidTransition) {
			httpkit.Error(c, http.StatusConflict, err.Error(), nil)
			return
		}
		h.log.Error("lead accept failed", "lead_id", leadID, "vendor_id", vendorID, "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}

	accepted, err := h.leadAdmin.GetByID(ctx, leadID)
	if err != nil {
		h.log.Error("lead reload failed", "lead_id", leadID, "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}
	httpkit.OK(c, toLeadResponse(accepted))
}

// Distribute handles POST /admin/leads/:id/distribute. The matched-vendor
// audit is normally recorded when the lead is created; leads that predate a
// vendor-set change get re-matched here before the status flips.
func (h *Handler) Distribute(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	ctx := c.Request.Context()
	lead, err := h.leadAdmin.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, leads.ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "lead not found", nil)
			return
		}
		h.log.Error("lead lookup failed", "lead_id", leadID, "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}

	if len(lead.Details) == 0 {
		if _, err := h.engine.MatchAndRecord(ctx, lead); err != nil {
			h.log.Error("re-match before distribution failed", "lead_id", leadID, "error", err)
			httpkit.Error(c, http.StatusInternalServerError, "matching failed", nil)
			return
		}
	}

	if err := h.leadAdmin.Transition(ctx, leadID, lead.Status, leads.StatusDistributed); err != nil {
		if errors.Is(err, leads.ErrInvalidTransition) {
			httpkit.Error(c, http.StatusConflict, err.Error(), nil)
			return
		}
		h.log.Error("distribution transition failed", "lead_id", leadID, "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}

	updated, err := h.leadAdmin.GetByID(ctx, leadID)
	if err != nil {
		h.log.Error("lead reload failed", "lead_id", leadID, "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}
	httpkit.OK(c, toLeadResponse(updated))
}
