package email

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"strings"
	"time"

	"leadline_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

var errNotConfigured = errors.New("email sending not configured")

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSenderFromConfig returns the SMTP sender, or a noop when email is
// disabled so the delivery chain simply escalates past this step.
func NewSenderFromConfig(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}
	}
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

var relayTemplate = template.Must(template.New("relay").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1a1a1a;">
  <p>{{.Body}}</p>
  <hr>
  <p style="color: #777; font-size: 12px;">You received this email because we could not reach you by SMS. Reply STOP to any of our messages to unsubscribe.</p>
</body>
</html>`))

func (s *SMTPSender) SendMessageRelay(ctx context.Context, toEmail, subject, body string) error {
	var rendered strings.Builder
	if err := relayTemplate.Execute(&rendered, struct{ Body string }{Body: body}); err != nil {
		return fmt.Errorf("render relay email: %w", err)
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	msg.AddAlternativeString(gomail.TypeTextHTML, rendered.String())

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
