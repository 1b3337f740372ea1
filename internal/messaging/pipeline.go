package messaging

import (
	"context"
	"errors"
	"fmt"

	"leadline_backend/internal/classify"
	"leadline_backend/internal/compliance"
	"leadline_backend/internal/delivery"
	"leadline_backend/internal/users"
	"leadline_backend/platform/logger"
	"leadline_backend/platform/phone"

	"github.com/google/uuid"
)

const defaultLanguage = "en"

// UserStore is the slice of the users repository the pipeline needs.
type UserStore interface {
	GetByPhone(ctx context.Context, phoneNum string) (users.User, error)
	Create(ctx context.Context, params users.CreateParams) (users.User, error)
	SetPreferredChannel(ctx context.Context, id uuid.UUID, channel string) error
}

// MessageLog persists the append-only message log and claims provider
// message ids for idempotency.
type MessageLog interface {
	RecordMessage(ctx context.Context, m Message) error
	MarkProcessed(ctx context.Context, providerMessageID string) (bool, error)
}

// ComplianceGate short-circuits opt-out, opt-in and help keywords.
type ComplianceGate interface {
	Evaluate(ctx context.Context, phoneNum, text, channel, language string) (compliance.Decision, error)
}

// Onboarder drives the registration conversation for non-active users.
type Onboarder interface {
	Advance(ctx context.Context, user users.User, input, channel string) (string, error)
}

// LeadHandler turns classified intents and pending-lead replies into leads.
type LeadHandler interface {
	HandlePendingReply(ctx context.Context, user users.User, input string) (reply string, handled bool, err error)
	HandleIntent(ctx context.Context, user users.User, intent classify.Intent) (string, error)
}

// Deliverer sends the outbound reply through the fallback chain.
type Deliverer interface {
	Deliver(ctx context.Context, req delivery.Request) delivery.Result
}

// Pipeline processes one inbound message through an ordered chain of stages.
// Each stage either passes the unit of work on or short-circuits it.
type Pipeline struct {
	userStore  UserStore
	log        MessageLog
	gate       ComplianceGate
	onboarding Onboarder
	classifier classify.Classifier
	leads      LeadHandler
	deliverer  Deliverer
	locks      *KeyedMutex
	logger     *logger.Logger
}

func NewPipeline(
	userStore UserStore,
	msgLog MessageLog,
	gate ComplianceGate,
	onboarding Onboarder,
	classifier classify.Classifier,
	leadHandler LeadHandler,
	deliverer Deliverer,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		userStore:  userStore,
		log:        msgLog,
		gate:       gate,
		onboarding: onboarding,
		classifier: classifier,
		leads:      leadHandler,
		deliverer:  deliverer,
		locks:      NewKeyedMutex(),
		logger:     log,
	}
}

// unit carries one inbound message through the stages.
type unit struct {
	in    phone.Inbound
	user  users.User
	reply string
}

// stage advances a unit. done=true short-circuits the remaining stages.
type stage func(ctx context.Context, u *unit) (done bool, err error)

// Process runs one inbound message through the pipeline. The per-phone lock
// is held from the compliance gate through the outbound reply.
func (p *Pipeline) Process(ctx context.Context, in phone.Inbound) error {
	if in.Phone == "" {
		return errors.New("inbound message without a phone")
	}

	fresh, err := p.log.MarkProcessed(ctx, in.ProviderMessageID)
	if err != nil {
		return fmt.Errorf("dedup claim: %w", err)
	}
	if !fresh {
		p.logger.Info("duplicate inbound skipped",
			"phone", in.Phone, "provider_message_id", in.ProviderMessageID)
		return nil
	}

	unlock := p.locks.Lock(in.Phone)
	defer unlock()

	u := &unit{in: in}
	stages := []stage{
		p.loadOrCreateUser,
		p.runComplianceGate,
		p.persistInbound,
		p.syncPreferredChannel,
		p.route,
	}
	for _, s := range stages {
		done, err := s(ctx, u)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	return p.sendReply(ctx, u)
}

// loadOrCreateUser resolves the sender. A first-time phone gets a user in
// onboarding at the consent step; the consent prompt itself comes out of the
// state machine when the message routes there.
func (p *Pipeline) loadOrCreateUser(ctx context.Context, u *unit) (bool, error) {
	user, err := p.userStore.GetByPhone(ctx, u.in.Phone)
	if errors.Is(err, users.ErrNotFound) {
		step := users.StepConsent
		user, err = p.userStore.Create(ctx, users.CreateParams{
			Phone:            u.in.Phone,
			Status:           users.StatusOnboarding,
			OnboardingStep:   &step,
			Language:         defaultLanguage,
			PreferredChannel: string(u.in.Channel),
		})
		if err != nil {
			return false, fmt.Errorf("create user: %w", err)
		}
		p.logger.Info("user created from inbound", "user_id", user.ID, "channel", u.in.Channel)
	} else if err != nil {
		return false, fmt.Errorf("load user: %w", err)
	}

	u.user = user
	return false, nil
}

func (p *Pipeline) runComplianceGate(ctx context.Context, u *unit) (bool, error) {
	decision, err := p.gate.Evaluate(ctx, u.in.Phone, u.in.Body, string(u.in.Channel), u.user.Language)
	if err != nil {
		return false, fmt.Errorf("compliance gate: %w", err)
	}
	if decision.Outcome == compliance.PassThrough {
		return false, nil
	}

	u.reply = decision.Reply
	if u.reply == "" {
		return true, nil
	}
	return true, p.sendReply(ctx, u)
}

// persistInbound writes the inbound log row. This happens before any
// outbound send on the pass-through path, so the per-user message log always
// reads inbound-then-outbound.
func (p *Pipeline) persistInbound(ctx context.Context, u *unit) (bool, error) {
	err := p.log.RecordMessage(ctx, Message{
		UserID:            &u.user.ID,
		Phone:             u.in.Phone,
		Direction:         DirectionInbound,
		Channel:           string(u.in.Channel),
		Body:              u.in.Body,
		ProviderMessageID: u.in.ProviderMessageID,
	})
	if err != nil {
		return false, fmt.Errorf("persist inbound message: %w", err)
	}
	return false, nil
}

func (p *Pipeline) syncPreferredChannel(ctx context.Context, u *unit) (bool, error) {
	if u.user.PreferredChannel == string(u.in.Channel) {
		return false, nil
	}
	if err := p.userStore.SetPreferredChannel(ctx, u.user.ID, string(u.in.Channel)); err != nil {
		return false, fmt.Errorf("update preferred channel: %w", err)
	}
	u.user.PreferredChannel = string(u.in.Channel)
	return false, nil
}

// route picks the branch for the message: the onboarding machine for anyone
// not yet active, otherwise pending-lead replies and then classification.
func (p *Pipeline) route(ctx context.Context, u *unit) (bool, error) {
	if u.user.Status != users.StatusActive {
		reply, err := p.onboarding.Advance(ctx, u.user, u.in.Body, string(u.in.Channel))
		if err != nil {
			return false, fmt.Errorf("onboarding: %w", err)
		}
		u.reply = reply
		return false, nil
	}

	reply, handled, err := p.leads.HandlePendingReply(ctx, u.user, u.in.Body)
	if err != nil {
		return false, fmt.Errorf("pending lead reply: %w", err)
	}
	if handled {
		u.reply = reply
		return false, nil
	}

	intent, err := p.classifier.Classify(ctx, u.in.Body, u.user.Language)
	if err != nil {
		// Classification is best effort. The inbound row is already
		// logged; acknowledge without a reply.
		p.logger.Error("classification failed", "user_id", u.user.ID, "error", err)
		return true, nil
	}

	if intent.IsLead() {
		reply, err := p.leads.HandleIntent(ctx, u.user, intent)
		if err != nil {
			return false, fmt.Errorf("materialize lead: %w", err)
		}
		u.reply = reply
		return false, nil
	}

	u.reply = intent.Reply
	return false, nil
}

// sendReply delivers the reply through the fallback chain and appends the
// outbound log row. Delivery failure is logged, never propagated: the
// inbound side effects must survive a dead channel.
func (p *Pipeline) sendReply(ctx context.Context, u *unit) error {
	if u.reply == "" {
		return nil
	}

	res := p.deliverer.Deliver(ctx, delivery.Request{
		Phone:    u.in.Phone,
		Message:  u.reply,
		Language: u.user.Language,
		Type:     delivery.TypeMessage,
	})
	if !res.Success {
		p.logger.Error("reply delivery failed", "phone", u.in.Phone)
		return nil
	}

	if err := p.log.RecordMessage(ctx, Message{
		UserID:    &u.user.ID,
		Phone:     u.in.Phone,
		Direction: DirectionOutbound,
		Channel:   res.MethodUsed,
		Body:      u.reply,
	}); err != nil {
		p.logger.Error("persist outbound message failed", "phone", u.in.Phone, "error", err)
	}
	return nil
}
