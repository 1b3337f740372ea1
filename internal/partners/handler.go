package partners

import (
	"errors"
	"net/http"

	"leadline_backend/platform/httpkit"
	"leadline_backend/platform/logger"
	"leadline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	govalidator "github.com/go-playground/validator/v10"
)

type Handler struct {
	svc       *Service
	repo      *Repository
	validator *validator.Validator
	log       *logger.Logger
}

func NewHandler(svc *Service, repo *Repository, v *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, repo: repo, validator: v, log: log}
}

// Authenticate resolves the X-API-Key header to a partner and stores the
// resolved key in the Gin context for the route handlers.
func (h *Handler) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-API-Key")
		if raw == "" {
			httpkit.Error(c, http.StatusUnauthorized, "missing API key", nil)
			c.Abort()
			return
		}

		key, err := h.repo.LookupAPIKey(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, ErrAPIKeyNotFound) {
				httpkit.Error(c, http.StatusForbidden, "invalid API key", nil)
			} else {
				h.log.Error("api key lookup failed", "error", err)
				httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
			}
			c.Abort()
			return
		}

		if platform := c.GetHeader("X-Platform"); platform != "" && key.Platform != "" && platform != key.Platform {
			httpkit.Error(c, http.StatusForbidden, "API key not valid for this platform", nil)
			c.Abort()
			return
		}

		c.Set("partnerKey", key)
		c.Next()
	}
}

// Ingest handles POST /partners/leads.
func (h *Handler) Ingest(c *gin.Context) {
	key := c.MustGet("partnerKey").(APIKey)

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.validator.Struct(req); err != nil {
		var verrs govalidator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
			httpkit.Error(c, http.StatusBadRequest, "validation failed", details)
			return
		}
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	res, err := h.svc.Ingest(c.Request.Context(), key, req)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, res)
}
