package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadline_backend/platform/config"
	"leadline_backend/platform/logger"
)

// VoiceClient places text-to-speech calls through an HTTP voice provider.
type VoiceClient struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
	log     *logger.Logger
}

// NewVoiceClient returns nil when no voice provider is configured.
func NewVoiceClient(cfg config.VoiceConfig, log *logger.Logger) *VoiceClient {
	if !cfg.IsVoiceEnabled() {
		return nil
	}

	return &VoiceClient{
		baseURL: strings.TrimRight(cfg.GetVoiceAPIBaseURL(), "/"),
		apiKey:  cfg.GetVoiceAPIKey(),
		from:    cfg.GetVoiceFromNumber(),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

type callRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

func (c *VoiceClient) Call(ctx context.Context, phone, speech string) error {
	body, err := json.Marshal(callRequest{To: phone, From: c.from, Text: speech})
	if err != nil {
		return fmt.Errorf("marshal call payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/calls", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("voice request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("voice provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("voice call placed", "phone", phone)
	return nil
}
