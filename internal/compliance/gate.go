package compliance

import (
	"context"
	"fmt"

	"leadline_backend/internal/events"
	"leadline_backend/internal/tables"
	"leadline_backend/internal/users"
	"leadline_backend/platform/logger"

	"github.com/google/uuid"
)

// Outcome is the gate's verdict for one inbound message.
type Outcome int

const (
	// PassThrough hands the message on to the state machine / active routing.
	PassThrough Outcome = iota
	// SuppressedSilent drops the message with no reply.
	SuppressedSilent
	// Reactivated means an opt-in keyword lifted a suppression.
	Reactivated
	// OptOutHandled means an opt-out keyword suppressed the phone.
	OptOutHandled
	// HelpHandled means a help keyword was answered.
	HelpHandled
)

// Decision carries the outcome plus the localized reply the caller must send
// (empty for SuppressedSilent and PassThrough).
type Decision struct {
	Outcome Outcome
	Reply   string
}

// Store is the persistence the gate needs: the suppression list and the
// consent ledger.
type Store interface {
	GetSuppression(ctx context.Context, phone string) (SuppressionEntry, bool, error)
	Suppress(ctx context.Context, phone, reason, channel string) error
	Unsuppress(ctx context.Context, phone string) error
	RecordConsent(ctx context.Context, rec ConsentRecord) (uuid.UUID, error)
}

// UserStatusStore mutates user lifecycle status keyed by phone.
type UserStatusStore interface {
	SetStatusByPhone(ctx context.Context, phone, status string) error
}

// Gate runs the mandatory keyword checks in strict priority order,
// independent of conversation state.
type Gate struct {
	store  Store
	userst UserStatusStore
	optOut *Matcher
	optIn  *Matcher
	help   *Matcher
	tables *tables.Tables
	bus    events.Bus
	log    *logger.Logger
}

// NewGate wires the gate from the loaded keyword tables.
func NewGate(store Store, userst UserStatusStore, t *tables.Tables, bus events.Bus, log *logger.Logger) *Gate {
	return &Gate{
		store:  store,
		userst: userst,
		optOut: NewMatcher(t.Keywords.OptOut),
		optIn:  NewMatcher(t.Keywords.OptIn),
		help:   NewMatcher(t.Keywords.Help),
		tables: t,
		bus:    bus,
		log:    log,
	}
}

// Evaluate applies the gate to one inbound message. Side effects (suppression
// upserts/deletes, status changes, ledger entries) happen here; the caller
// delivers Decision.Reply.
func (g *Gate) Evaluate(ctx context.Context, phoneNum, text, channel, language string) (Decision, error) {
	entry, suppressed, err := g.store.GetSuppression(ctx, phoneNum)
	if err != nil {
		return Decision{}, fmt.Errorf("suppression lookup: %w", err)
	}

	// 1. Suppressed phones: only an opt-in keyword gets a response.
	if suppressed {
		if !g.optIn.Matches(text) {
			g.log.ComplianceEvent("suppressed_drop", phoneNum, channel)
			return Decision{Outcome: SuppressedSilent}, nil
		}

		if err := g.store.Unsuppress(ctx, phoneNum); err != nil {
			return Decision{}, fmt.Errorf("unsuppress: %w", err)
		}
		if err := g.userst.SetStatusByPhone(ctx, phoneNum, users.StatusActive); err != nil {
			return Decision{}, fmt.Errorf("reactivate user: %w", err)
		}
		if _, err := g.store.RecordConsent(ctx, ConsentRecord{
			Phone:        phoneNum,
			ConsentType:  ConsentDoubleOptIn,
			UserResponse: fmt.Sprintf("%s (lifted suppression: %s)", text, entry.Reason),
			Channel:      channel,
			Language:     language,
		}); err != nil {
			return Decision{}, fmt.Errorf("record opt-in consent: %w", err)
		}
		g.log.ComplianceEvent("opt_in", phoneNum, channel)
		return Decision{
			Outcome: Reactivated,
			Reply:   g.tables.Message(language, "opt_in_confirmed"),
		}, nil
	}

	// 2. Opt-out keyword: suppress, record consent, confirm once.
	if g.optOut.Matches(text) {
		if err := g.store.Suppress(ctx, phoneNum, "user_opt_out", channel); err != nil {
			return Decision{}, fmt.Errorf("suppress: %w", err)
		}
		if err := g.userst.SetStatusByPhone(ctx, phoneNum, users.StatusOptedOut); err != nil {
			return Decision{}, fmt.Errorf("opt out user: %w", err)
		}
		if _, err := g.store.RecordConsent(ctx, ConsentRecord{
			Phone:        phoneNum,
			ConsentType:  ConsentOptOut,
			UserResponse: text,
			Channel:      channel,
			Language:     language,
		}); err != nil {
			return Decision{}, fmt.Errorf("record opt-out consent: %w", err)
		}

		g.log.ComplianceEvent("opt_out", phoneNum, channel)
		g.bus.Publish(ctx, events.UserOptedOut{
			BaseEvent: events.NewBaseEvent(),
			Phone:     phoneNum,
			Channel:   channel,
		})
		return Decision{
			Outcome: OptOutHandled,
			Reply:   g.tables.Message(language, "opt_out_confirmed"),
		}, nil
	}

	// 3. Help keyword.
	if g.help.Matches(text) {
		g.log.ComplianceEvent("help", phoneNum, channel)
		return Decision{
			Outcome: HelpHandled,
			Reply:   g.tables.Message(language, "help"),
		}, nil
	}

	// 4. Everything else continues down the pipeline.
	return Decision{Outcome: PassThrough}, nil
}
