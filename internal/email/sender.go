// Package email delivers outbound messages over SMTP. It is the last
// automated step of the delivery fallback chain.
package email

import "context"

// Sender relays a conversational message to a user's mailbox.
type Sender interface {
	SendMessageRelay(ctx context.Context, toEmail, subject, body string) error
}

// NoopSender is used when no SMTP server is configured.
type NoopSender struct{}

func (NoopSender) SendMessageRelay(context.Context, string, string, string) error {
	return errNotConfigured
}
