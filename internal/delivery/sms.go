package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadline_backend/platform/config"
	"leadline_backend/platform/logger"
)

// SMSClient sends through a Twilio-compatible messaging API.
type SMSClient struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	http       *http.Client
	log        *logger.Logger
}

// NewSMSClient returns nil when no provider credentials are configured.
func NewSMSClient(cfg config.SMSConfig, log *logger.Logger) *SMSClient {
	if !cfg.IsSMSEnabled() {
		return nil
	}

	return &SMSClient{
		baseURL:    strings.TrimRight(cfg.GetSMSAPIBaseURL(), "/"),
		accountSID: cfg.GetSMSAccountSID(),
		authToken:  cfg.GetSMSAuthToken(),
		from:       cfg.GetSMSFromNumber(),
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (c *SMSClient) SendMessage(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", c.from)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("sms sent", "phone", phone)
	return nil
}
