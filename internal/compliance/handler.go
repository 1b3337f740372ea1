package compliance

import (
	"context"
	"net/http"
	"time"

	"leadline_backend/platform/httpkit"
	"leadline_backend/platform/logger"
	"leadline_backend/platform/phone"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditStore is the repository slice the consent audit surface reads.
type AuditStore interface {
	ListConsentByPhone(ctx context.Context, phone string) ([]ConsentRecord, error)
	GetSuppression(ctx context.Context, phone string) (SuppressionEntry, bool, error)
}

type Handler struct {
	store AuditStore
	log   *logger.Logger
}

func NewHandler(store AuditStore, log *logger.Logger) *Handler {
	return &Handler{store: store, log: log}
}

type consentResponse struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *uuid.UUID `json:"userId,omitempty"`
	ConsentType  string     `json:"consentType"`
	UserResponse string     `json:"userResponse"`
	Channel      string     `json:"channel,omitempty"`
	Language     string     `json:"language,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type suppressionResponse struct {
	Reason    string    `json:"reason"`
	Channel   string    `json:"channel,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConsentAudit handles GET /admin/compliance/consent?phone=. It returns the
// full ledger for a phone, newest first, plus its current suppression state.
func (h *Handler) ConsentAudit(c *gin.Context) {
	raw := c.Query("phone")
	if raw == "" {
		httpkit.Error(c, http.StatusBadRequest, "phone query parameter is required", nil)
		return
	}
	phoneNum := phone.NormalizeE164(raw)

	ctx := c.Request.Context()
	records, err := h.store.ListConsentByPhone(ctx, phoneNum)
	if err != nil {
		h.log.Error("consent ledger query failed", "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}

	entry, suppressed, err := h.store.GetSuppression(ctx, phoneNum)
	if err != nil {
		h.log.Error("suppression lookup failed", "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}

	out := make([]consentResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, consentResponse{
			ID:           rec.ID,
			UserID:       rec.UserID,
			ConsentType:  rec.ConsentType,
			UserResponse: rec.UserResponse,
			Channel:      rec.Channel,
			Language:     rec.Language,
			CreatedAt:    rec.CreatedAt,
		})
	}

	resp := gin.H{
		"phone":      phoneNum,
		"suppressed": suppressed,
		"consents":   out,
	}
	if suppressed {
		resp["suppression"] = suppressionResponse{
			Reason:    entry.Reason,
			Channel:   entry.Channel,
			CreatedAt: entry.CreatedAt,
		}
	}
	httpkit.OK(c, resp)
}
