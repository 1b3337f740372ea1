// Package delivery sends outbound messages through an ordered fallback
// chain: SMS, WhatsApp, voice, email, then the manual support queue. The
// first successful channel wins; every failure is logged and swallowed
// before the next step runs.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadline_backend/internal/users"
	"leadline_backend/platform/logger"
	"leadline_backend/platform/phone"
)

// Message types.
const (
	TypeMessage = "message"
	TypeOTP     = "otp"
)

// Method names reported in results and logs.
const (
	MethodSMS      = "sms"
	MethodWhatsApp = "whatsapp"
	MethodVoice    = "voice"
	MethodEmail    = "email"
)

// Request is one outbound delivery.
type Request struct {
	Phone      string `json:"phone"`
	Message    string `json:"message"`
	Language   string `json:"language"`
	Type       string `json:"type"`
	OTP        string `json:"otp,omitempty"`
	RetryCount int    `json:"retryCount"`
}

// Result reports the outcome of a delivery attempt.
type Result struct {
	Success    bool
	MethodUsed string
}

// TextSender sends a plain text to a phone. Both the SMS and WhatsApp
// clients satisfy it.
type TextSender interface {
	SendMessage(ctx context.Context, phone, message string) error
}

// VoiceCaller places a text-to-speech call.
type VoiceCaller interface {
	Call(ctx context.Context, phone, speech string) error
}

// EmailSender relays a message to a mailbox.
type EmailSender interface {
	SendMessageRelay(ctx context.Context, toEmail, subject, body string) error
}

// ManualQueue receives deliveries the whole chain failed on.
type ManualQueue interface {
	EnqueueManualSupport(ctx context.Context, req Request) error
}

// UserLookup resolves the recipient for channel-eligibility checks. Unknown
// phones are fine; the chain then runs without user-dependent steps.
type UserLookup interface {
	GetByPhone(ctx context.Context, phone string) (users.User, error)
}

type step struct {
	name       string
	applicable func(req Request, u *users.User) bool
	send       func(ctx context.Context, req Request, u *users.User) error
}

type Dispatcher struct {
	steps       []step
	users       UserLookup
	manual      ManualQueue
	stepTimeout time.Duration
	log         *logger.Logger
}

// NewDispatcher assembles the chain. Any sender may be nil; its step is then
// skipped. stepTimeout bounds each individual channel attempt.
func NewDispatcher(
	sms TextSender,
	wa TextSender,
	voice VoiceCaller,
	mail EmailSender,
	userLookup UserLookup,
	manual ManualQueue,
	stepTimeout time.Duration,
	log *logger.Logger,
) *Dispatcher {
	if stepTimeout <= 0 {
		stepTimeout = 5 * time.Second
	}

	d := &Dispatcher{
		users:       userLookup,
		manual:      manual,
		stepTimeout: stepTimeout,
		log:         log,
	}

	if sms != nil {
		d.steps = append(d.steps, step{
			name:       MethodSMS,
			applicable: func(Request, *users.User) bool { return true },
			send: func(ctx context.Context, req Request, _ *users.User) error {
				return sms.SendMessage(ctx, req.Phone, req.Message)
			},
		})
	}

	if wa != nil {
		d.steps = append(d.steps, step{
			name: MethodWhatsApp,
			applicable: func(_ Request, u *users.User) bool {
				return u != nil && u.PreferredChannel == string(phone.ChannelWhatsApp)
			},
			send: func(ctx context.Context, req Request, _ *users.User) error {
				return wa.SendMessage(ctx, req.Phone, req.Message)
			},
		})
	}

	if voice != nil {
		d.steps = append(d.steps, step{
			name: MethodVoice,
			applicable: func(req Request, _ *users.User) bool {
				return req.RetryCount >= 2 || req.Type == TypeOTP
			},
			send: func(ctx context.Context, req Request, _ *users.User) error {
				return voice.Call(ctx, req.Phone, Speech(req))
			},
		})
	}

	if mail != nil {
		d.steps = append(d.steps, step{
			name: MethodEmail,
			applicable: func(_ Request, u *users.User) bool {
				return u != nil && u.Email != nil && *u.Email != ""
			},
			send: func(ctx context.Context, req Request, u *users.User) error {
				return mail.SendMessageRelay(ctx, *u.Email, "New message for you", req.Message)
			},
		})
	}

	return d
}

// Deliver runs the chain and reports which channel succeeded. A fully failed
// chain lands on the manual support queue and returns Success=false; the
// caller's work (lead creation, state transitions) is never rolled back over
// a notification failure.
func (d *Dispatcher) Deliver(ctx context.Context, req Request) Result {
	var recipient *users.User
	if d.users != nil {
		u, err := d.users.GetByPhone(ctx, req.Phone)
		switch {
		case err == nil:
			recipient = &u
		case errors.Is(err, users.ErrNotFound):
		default:
			d.log.DatabaseError("delivery.lookup_user", err)
		}
	}

	for _, s := range d.steps {
		if !s.applicable(req, recipient) {
			continue
		}

		stepCtx, cancel := context.WithTimeout(ctx, d.stepTimeout)
		err := s.send(stepCtx, req, recipient)
		cancel()

		if err == nil {
			d.log.DeliveryAttempt(s.name, req.Phone, true, "")
			return Result{Success: true, MethodUsed: s.name}
		}
		d.log.DeliveryAttempt(s.name, req.Phone, false, err.Error())
	}

	if d.manual != nil {
		if err := d.manual.EnqueueManualSupport(ctx, req); err != nil {
			d.log.Error("manual support enqueue failed", "phone", req.Phone, "error", err)
		}
	}

	return Result{Success: false}
}

// Speech renders the text-to-speech script for a voice call. OTP digits are
// spoken one by one with pauses and the whole code is repeated once.
func Speech(req Request) string {
	if req.Type != TypeOTP || req.OTP == "" {
		return req.Message
	}

	digits := spellDigits(req.OTP)
	return fmt.Sprintf("Your verification code is. %s. I repeat. %s.", digits, digits)
}

func spellDigits(code string) string {
	out := make([]byte, 0, len(code)*3)
	for i, r := range code {
		if i > 0 {
			out = append(out, '.', ' ')
		}
		out = append(out, string(r)...)
	}
	return string(out)
}
