package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"leadline_backend/platform/apperr"
	"leadline_backend/platform/config"
	"leadline_backend/platform/logger"
)

// Classifier turns free text into a structured intent.
type Classifier interface {
	Classify(ctx context.Context, text, language string) (Intent, error)
}

// HTTPClassifier calls the external classification service. When the service
// is not configured it degrades to the keyword fallback so the pipeline keeps
// working in development.
type HTTPClassifier struct {
	cfg    config.ClassifierConfig
	client *http.Client
	log    *logger.Logger
}

func NewHTTPClassifier(cfg config.ClassifierConfig, log *logger.Logger) *HTTPClassifier {
	return &HTTPClassifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.GetClassifierTimeout()},
		log:    log,
	}
}

type classifyRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, text, language string) (Intent, error) {
	if c.cfg.GetClassifierURL() == "" {
		return KeywordFallback(text), nil
	}

	body, err := json.Marshal(classifyRequest{Text: text, Language: language})
	if err != nil {
		return Intent{}, fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GetClassifierURL(), bytes.NewReader(body))
	if err != nil {
		return Intent{}, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := c.cfg.GetClassifierAPIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("classifier unreachable, using keyword fallback", "error", err)
		return KeywordFallback(text), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("classifier returned non-200, using keyword fallback",
			"status", resp.StatusCode, "body", string(payload))
		return KeywordFallback(text), nil
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return Intent{}, apperr.Wrap(apperr.KindUnavailable, "classifier returned unreadable payload", err)
	}
	if err := intent.Validate(); err != nil {
		return Intent{}, apperr.Wrap(apperr.KindUnavailable, "classifier returned invalid intent", err)
	}

	return intent, nil
}

// categoryKeywords backs the fallback classifier. Intentionally coarse; the
// external service is the real classifier. Ordered so that a message hitting
// two categories always resolves the same way.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{CategoryPlumbing, []string{"plumber", "pipe", "leak", "tap", "drain", "toilet"}},
	{CategoryElectrical, []string{"electrician", "wiring", "socket", "power", "generator"}},
	{CategoryLegal, []string{"lawyer", "legal", "contract", "court", "visa"}},
	{CategoryHealth, []string{"doctor", "clinic", "hospital", "medicine", "sick"}},
	{CategoryRealEstate, []string{"apartment", "rent", "house", "flat", "land"}},
	{CategoryHomeRepair, []string{"repair", "fix", "broken", "painter", "carpenter"}},
}

// KeywordFallback is the degraded classifier used when the external service
// is absent or failing.
func KeywordFallback(text string) Intent {
	lowered := strings.ToLower(text)

	for _, entry := range categoryKeywords {
		category := entry.category
		for _, w := range entry.words {
			if strings.Contains(lowered, w) {
				return Intent{
					Category: category,
					Urgency:  UrgencyLow,
					Lead: &LeadSignal{
						Category:    category,
						AskConsent:  true,
						Description: strings.TrimSpace(text),
					},
				}
			}
		}
	}

	return Intent{Category: CategoryGeneral, Urgency: UrgencyLow}
}
