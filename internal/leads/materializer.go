package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"leadline_backend/internal/classify"
	"leadline_backend/internal/conversation"
	"leadline_backend/internal/events"
	"leadline_backend/internal/tables"
	"leadline_backend/internal/users"
	"leadline_backend/platform/logger"

	"github.com/google/uuid"
)

// pendingLeadTTL bounds how long a consent request stays answerable.
const pendingLeadTTL = 24 * time.Hour

// LeadStore is the slice of the repository the materializer writes.
type LeadStore interface {
	Create(ctx context.Context, l *Lead) error
}

// UserStore covers the user-row mutations the materializer performs.
type UserStore interface {
	SetPendingLead(ctx context.Context, id uuid.UUID, payload []byte, expiresAt time.Time) error
	ClearPendingLead(ctx context.Context, id uuid.UUID) error
	SetLocation(ctx context.Context, id uuid.UUID, country, region, city *string, lat, lon *float64) error
}

// pendingLead is the deferred-consent session serialized onto the user row.
type pendingLead struct {
	Category    string   `json:"category"`
	PartnerName string   `json:"partnerName"`
	Description string   `json:"description"`
	Location    Location `json:"location"`
	Currency    string   `json:"currency"`
	Budget      *float64 `json:"budget,omitempty"`
	BudgetUSD   *float64 `json:"budgetUsd,omitempty"`
	LeadValue   float64  `json:"leadValue"`
}

// Materializer turns classified lead intents into Lead rows, deferring
// creation behind a consent request when the classifier asks for one.
type Materializer struct {
	store     LeadStore
	userStore UserStore
	tables    *tables.Tables
	extractor *Extractor
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

func NewMaterializer(store LeadStore, userStore UserStore, t *tables.Tables, bus events.Bus, log *logger.Logger) *Materializer {
	return &Materializer{
		store:     store,
		userStore: userStore,
		tables:    t,
		extractor: NewExtractor(t),
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// HandleIntent processes a lead-flagged intent for an active user and returns
// the reply to send. An empty reply means the caller should fall back to the
// classifier's own response.
func (m *Materializer) HandleIntent(ctx context.Context, user users.User, intent classify.Intent) (string, error) {
	if !intent.IsLead() {
		return "", nil
	}

	partner, ok := m.tables.PartnerFor(intent.Lead.Category)
	if !ok {
		m.log.Info("no partner configured for category, skipping lead",
			"category", intent.Lead.Category, "user_id", user.ID)
		return "", nil
	}

	text := intent.Lead.Description
	if intent.LocationHint != "" {
		text += " " + intent.LocationHint
	}
	if intent.BudgetHint != "" {
		text += " " + intent.BudgetHint
	}

	loc := m.extractor.ResolveLocation(user, text)
	m.rememberLocation(ctx, user, loc)

	draft := pendingLead{
		Category:    intent.Lead.Category,
		PartnerName: partner.Name,
		Description: intent.Lead.Description,
		Location:    loc,
		LeadValue:   partner.FlatValue,
	}
	if code, amount, usd, found := m.extractor.Budget(text); found {
		draft.Currency = code
		draft.Budget = &amount
		draft.BudgetUSD = &usd
	}

	if intent.Lead.AskConsent {
		payload, err := json.Marshal(draft)
		if err != nil {
			return "", fmt.Errorf("marshal pending lead: %w", err)
		}
		if err := m.userStore.SetPendingLead(ctx, user.ID, payload, m.now().Add(pendingLeadTTL)); err != nil {
			return "", fmt.Errorf("store pending lead: %w", err)
		}
		prompt := m.tables.Message(user.Language, "lead_consent_request")
		return strings.ReplaceAll(prompt, "{partner}", partner.Name), nil
	}

	lead := draft.toLead(user.ID, StatusCaptured, false, nil)
	if err := m.store.Create(ctx, lead); err != nil {
		return "", fmt.Errorf("create lead: %w", err)
	}
	m.publishCreated(ctx, lead)

	return m.tables.Message(user.Language, "lead_created"), nil
}

// HandlePendingReply resolves an answer to an outstanding consent request.
// handled=false means there was no live pending lead and the message should
// flow through normal routing.
func (m *Materializer) HandlePendingReply(ctx context.Context, user users.User, input string) (reply string, handled bool, err error) {
	if len(user.PendingLead) == 0 {
		return "", false, nil
	}

	if user.PendingLeadExpiresAt != nil && m.now().After(*user.PendingLeadExpiresAt) {
		if err := m.userStore.ClearPendingLead(ctx, user.ID); err != nil {
			return "", false, fmt.Errorf("clear expired pending lead: %w", err)
		}
		return "", false, nil
	}

	var draft pendingLead
	if err := json.Unmarshal(user.PendingLead, &draft); err != nil {
		// An unreadable session cannot be resolved; drop it.
		m.log.Error("corrupt pending lead, discarding", "user_id", user.ID, "error", err)
		if clearErr := m.userStore.ClearPendingLead(ctx, user.ID); clearErr != nil {
			return "", false, clearErr
		}
		return "", false, nil
	}

	switch {
	case conversation.IsAffirmative(m.tables, user.Language, input):
		consentAt := m.now()
		lead := draft.toLead(user.ID, StatusReceived, true, &consentAt)
		if err := m.store.Create(ctx, lead); err != nil {
			return "", false, fmt.Errorf("create consented lead: %w", err)
		}
		if err := m.userStore.ClearPendingLead(ctx, user.ID); err != nil {
			return "", false, fmt.Errorf("clear pending lead: %w", err)
		}
		m.publishCreated(ctx, lead)
		return m.tables.Message(user.Language, "lead_created"), true, nil

	case conversation.IsNegative(m.tables, user.Language, input):
		if err := m.userStore.ClearPendingLead(ctx, user.ID); err != nil {
			return "", false, fmt.Errorf("clear declined pending lead: %w", err)
		}
		return m.tables.Message(user.Language, "lead_declined"), true, nil

	default:
		prompt := m.tables.Message(user.Language, "lead_consent_request")
		return strings.ReplaceAll(prompt, "{partner}", draft.PartnerName), true, nil
	}
}

func (p pendingLead) toLead(userID uuid.UUID, status string, consent bool, consentAt *time.Time) *Lead {
	return &Lead{
		UserID:           userID,
		Category:         p.Category,
		PartnerName:      p.PartnerName,
		Description:      p.Description,
		Location:         p.Location,
		Currency:         p.Currency,
		Budget:           p.Budget,
		BudgetUSD:        p.BudgetUSD,
		ConsentGiven:     consent,
		ConsentTimestamp: consentAt,
		Status:           status,
		Source:           SourceConversation,
		LeadValue:        p.LeadValue,
	}
}

func (m *Materializer) publishCreated(ctx context.Context, lead *Lead) {
	m.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		UserID:      lead.UserID,
		Category:    lead.Category,
		PartnerName: lead.PartnerName,
	})
}

// rememberLocation writes a freshly resolved location back to the user row
// so later leads from the same user skip text extraction.
func (m *Materializer) rememberLocation(ctx context.Context, user users.User, loc Location) {
	if user.Country != nil && *user.Country != "" {
		return
	}
	if loc.Country == "" {
		return
	}

	var region, city *string
	if loc.Region != "" {
		region = &loc.Region
	}
	if loc.City != "" {
		city = &loc.City
	}
	if err := m.userStore.SetLocation(ctx, user.ID, &loc.Country, region, city, loc.Lat, loc.Lon); err != nil {
		m.log.DatabaseError("users.set_location", err)
	}
}
