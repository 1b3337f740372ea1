package messaging

import (
	"net/http"

	"leadline_backend/platform/config"
	"leadline_backend/platform/logger"
	"leadline_backend/platform/phone"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "X-Provider-Signature"

type Handler struct {
	pipeline *Pipeline
	cfg      config.WebhookConfig
	log      *logger.Logger
}

func NewHandler(pipeline *Pipeline, cfg config.WebhookConfig, log *logger.Logger) *Handler {
	return &Handler{pipeline: pipeline, cfg: cfg, log: log}
}

// Inbound handles POST /webhook/inbound. Everything after the signature
// check answers 200 with an empty body, including application failures,
// which are logged here instead of surfaced to the provider. A non-200
// would only trigger provider retry storms for errors a retry cannot fix.
func (h *Handler) Inbound(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.Status(http.StatusOK)
		return
	}
	params := c.Request.PostForm

	if !ValidSignature(h.cfg.GetWebhookSigningSecret(), h.canonicalURL(c), params, c.GetHeader(signatureHeader)) {
		h.log.Warn("webhook signature mismatch", "remote", c.ClientIP())
		c.Status(http.StatusForbidden)
		return
	}

	in := phone.ParseInbound(params.Get("From"), params.Get("Body"), params.Get("MessageSid"))
	if err := h.pipeline.Process(c.Request.Context(), in); err != nil {
		h.log.Error("inbound processing failed",
			"provider_message_id", in.ProviderMessageID, "error", err)
	}

	c.Status(http.StatusOK)
}

// canonicalURL reconstructs the URL the provider signed. Providers sign the
// public URL, so a configured value wins over what the proxy shows us.
func (h *Handler) canonicalURL(c *gin.Context) string {
	if public := h.cfg.GetWebhookPublicURL(); public != "" {
		return public
	}
	scheme := "https"
	if c.Request.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}
