// Package conversation implements the per-user onboarding state machine:
// double opt-in consent followed by name, email and password capture.
// The machine never regresses to an earlier step; invalid input re-emits
// the current step's prompt.
package conversation

import (
	"context"
	"fmt"
	"strings"

	"leadline_backend/internal/compliance"
	"leadline_backend/internal/events"
	"leadline_backend/internal/tables"
	"leadline_backend/internal/users"
	"leadline_backend/platform/logger"
	"leadline_backend/platform/validator"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// UserStore is the slice of the users repository the machine mutates.
type UserStore interface {
	SetOnboardingStep(ctx context.Context, id uuid.UUID, step string) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SetName(ctx context.Context, id uuid.UUID, name string) error
	SetEmail(ctx context.Context, id uuid.UUID, email string) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	EmailTakenByOther(ctx context.Context, email string, userID uuid.UUID) (bool, error)
}

// ConsentStore appends to the consent ledger.
type ConsentStore interface {
	RecordConsent(ctx context.Context, rec compliance.ConsentRecord) (uuid.UUID, error)
}

// CopySelector picks a dialogue copy key, e.g. an experiment variant of the
// consent prompt. Implementations must fall back to defaultKey on any failure.
type CopySelector interface {
	SelectKey(ctx context.Context, userID uuid.UUID, defaultKey string) string
}

// Machine drives one user through onboarding.
type Machine struct {
	userst  UserStore
	consent ConsentStore
	tables  *tables.Tables
	val     *validator.Validator
	copySel CopySelector
	bus     events.Bus
	log     *logger.Logger
}

// New creates the onboarding machine. copySel may be nil.
func New(userst UserStore, consent ConsentStore, t *tables.Tables, val *validator.Validator, copySel CopySelector, bus events.Bus, log *logger.Logger) *Machine {
	return &Machine{
		userst:  userst,
		consent: consent,
		tables:  t,
		val:     val,
		copySel: copySel,
		bus:     bus,
		log:     log,
	}
}

// Prompt returns the prompt for the user's current onboarding step, used both
// when entering a step and when re-prompting after invalid input.
func (m *Machine) Prompt(ctx context.Context, user users.User) string {
	step := users.StepConsent
	if user.OnboardingStep != nil {
		step = *user.OnboardingStep
	}

	switch step {
	case users.StepConsent:
		key := "consent_prompt"
		if m.copySel != nil {
			key = m.copySel.SelectKey(ctx, user.ID, key)
		}
		return m.tables.Message(user.Language, key)
	case users.StepName:
		return m.tables.Message(user.Language, "name_prompt")
	case users.StepEmail:
		return m.renderEmailPrompt(user)
	case users.StepPassword:
		return m.tables.Message(user.Language, "password_prompt")
	default:
		return m.tables.Message(user.Language, "welcome")
	}
}

// Advance feeds one inbound message to the machine and returns the reply to
// send. The transition is persisted before the reply is returned, so a reply
// always reflects the new state.
func (m *Machine) Advance(ctx context.Context, user users.User, input, channel string) (string, error) {
	step := users.StepConsent
	if user.OnboardingStep != nil {
		step = *user.OnboardingStep
	}

	switch step {
	case users.StepConsent:
		return m.handleConsent(ctx, user, input, channel)
	case users.StepName:
		return m.handleName(ctx, user, input)
	case users.StepEmail:
		return m.handleEmail(ctx, user, input)
	case users.StepPassword:
		return m.handlePassword(ctx, user, input)
	default:
		return "", fmt.Errorf("onboarding machine invoked for step %q", step)
	}
}

func (m *Machine) handleConsent(ctx context.Context, user users.User, input, channel string) (string, error) {
	if !IsAffirmative(m.tables, user.Language, input) {
		// Anything but an affirmative re-sends the consent prompt verbatim.
		return m.Prompt(ctx, user), nil
	}

	if _, err := m.consent.RecordConsent(ctx, compliance.ConsentRecord{
		UserID:       &user.ID,
		Phone:        user.Phone,
		ConsentType:  compliance.ConsentDoubleOptIn,
		UserResponse: input,
		Channel:      channel,
		Language:     user.Language,
	}); err != nil {
		return "", fmt.Errorf("record double opt-in: %w", err)
	}

	if err := m.userst.SetOnboardingStep(ctx, user.ID, users.StepName); err != nil {
		return "", fmt.Errorf("advance to name: %w", err)
	}

	return m.tables.Message(user.Language, "consent_confirmed"), nil
}

func (m *Machine) handleName(ctx context.Context, user users.User, input string) (string, error) {
	name := strings.TrimSpace(input)
	if len([]rune(name)) < 2 {
		return m.tables.Message(user.Language, "name_invalid"), nil
	}

	if err := m.userst.SetName(ctx, user.ID, name); err != nil {
		return "", fmt.Errorf("store name: %w", err)
	}
	if err := m.userst.SetOnboardingStep(ctx, user.ID, users.StepEmail); err != nil {
		return "", fmt.Errorf("advance to email: %w", err)
	}

	user.Name = &name
	return m.renderEmailPrompt(user), nil
}

func (m *Machine) handleEmail(ctx context.Context, user users.User, input string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(input))
	if err := m.val.Var(email, "required,email"); err != nil {
		return m.tables.Message(user.Language, "email_invalid"), nil
	}

	taken, err := m.userst.EmailTakenByOther(ctx, email, user.ID)
	if err != nil {
		return "", fmt.Errorf("email uniqueness check: %w", err)
	}
	if taken {
		return m.tables.Message(user.Language, "email_taken"), nil
	}

	if err := m.userst.SetEmail(ctx, user.ID, email); err != nil {
		return "", fmt.Errorf("store email: %w", err)
	}
	if err := m.userst.SetOnboardingStep(ctx, user.ID, users.StepPassword); err != nil {
		return "", fmt.Errorf("advance to password: %w", err)
	}

	return m.tables.Message(user.Language, "password_prompt"), nil
}

func (m *Machine) handlePassword(ctx context.Context, user users.User, input string) (string, error) {
	password := strings.TrimSpace(input)
	if len(password) < 6 {
		return m.tables.Message(user.Language, "password_invalid"), nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	if err := m.userst.SetPasswordHash(ctx, user.ID, string(hash)); err != nil {
		return "", fmt.Errorf("store password: %w", err)
	}
	if err := m.userst.SetStatus(ctx, user.ID, users.StatusActive); err != nil {
		return "", fmt.Errorf("activate user: %w", err)
	}
	if err := m.userst.SetOnboardingStep(ctx, user.ID, users.StepComplete); err != nil {
		return "", fmt.Errorf("complete onboarding: %w", err)
	}

	m.log.Info("onboarding complete", "user_id", user.ID)
	m.bus.Publish(ctx, events.UserOnboarded{
		BaseEvent: events.NewBaseEvent(),
		UserID:    user.ID,
		Phone:     user.Phone,
	})

	return m.tables.Message(user.Language, "welcome"), nil
}

func (m *Machine) renderEmailPrompt(user users.User) string {
	prompt := m.tables.Message(user.Language, "email_prompt")
	name := ""
	if user.Name != nil {
		name = *user.Name
	}
	return strings.ReplaceAll(prompt, "{name}", name)
}

// IsAffirmative reports whether input is in the language's "yes" set.
func IsAffirmative(t *tables.Tables, lang, input string) bool {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.TrimRight(normalized, ".!?,")
	for _, yes := range t.AffirmativeSet(lang) {
		if normalized == strings.ToLower(yes) {
			return true
		}
	}
	return false
}

// IsNegative reports whether input is in the language's "no" set.
func IsNegative(t *tables.Tables, lang, input string) bool {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.TrimRight(normalized, ".!?,")
	for _, no := range t.NegativeSet(lang) {
		if normalized == strings.ToLower(no) {
			return true
		}
	}
	return false
}
