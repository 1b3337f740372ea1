package partners

import (
	"context"
	"fmt"
	"time"

	"leadline_backend/internal/compliance"
	"leadline_backend/internal/events"
	"leadline_backend/internal/leads"
	"leadline_backend/internal/users"
	"leadline_backend/platform/apperr"
	"leadline_backend/platform/logger"
	"leadline_backend/platform/phone"

	"github.com/google/uuid"
)

// paymentTerms is how long a partner has to settle an ingested lead.
const paymentTerms = 30 * 24 * time.Hour

// IngestRequest is the partner lead-ingestion payload.
type IngestRequest struct {
	SourcePlatform       string         `json:"source_platform" validate:"required"`
	SourceConversationID string         `json:"source_conversation_id" validate:"required"`
	UserPhoneHash        string         `json:"user_phone_hash" validate:"required,len=64,hexadecimal"`
	UserPhoneEncrypted   string         `json:"user_phone_encrypted" validate:"required,base64"`
	UserLanguage         string         `json:"user_language" validate:"required,len=2"`
	Country              string         `json:"country,omitempty" validate:"omitempty,len=2"`
	Region               string         `json:"region,omitempty"`
	City                 string         `json:"city,omitempty"`
	Category             string         `json:"category" validate:"required"`
	Subcategory          string         `json:"subcategory,omitempty"`
	OriginalMessage      string         `json:"original_message" validate:"required"`
	AIExtractedDetails   map[string]any `json:"ai_extracted_details,omitempty"`
	UserConsent          bool           `json:"user_consent"`
	ConsentTimestamp     time.Time      `json:"consent_timestamp" validate:"required"`
	LeadValueAgreed      float64        `json:"lead_value_agreed" validate:"gte=0,lte=10000"`
}

// IngestResult reports the created or reused entities.
type IngestResult struct {
	UserID uuid.UUID `json:"userId"`
	LeadID uuid.UUID `json:"leadId"`
}

// UserStore creates or reuses the referred user.
type UserStore interface {
	Create(ctx context.Context, params users.CreateParams) (users.User, error)
}

// ConsentStore appends the partner-referral consent entry.
type ConsentStore interface {
	RecordConsent(ctx context.Context, rec compliance.ConsentRecord) (uuid.UUID, error)
}

// LeadStore persists the ingested lead.
type LeadStore interface {
	Create(ctx context.Context, l *leads.Lead) error
}

// PaymentStore persists partner payment obligations.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *Payment) error
}

// ReminderScheduler queues the payment follow-up at its due date. May be nil.
type ReminderScheduler interface {
	SchedulePartnerPaymentReminder(ctx context.Context, paymentID string, runAt time.Time) error
}

type Service struct {
	payments  PaymentStore
	cipher    *PhoneCipher
	userStore UserStore
	consents  ConsentStore
	leadStore LeadStore
	reminders ReminderScheduler
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

func NewService(
	payments PaymentStore,
	cipher *PhoneCipher,
	userStore UserStore,
	consents ConsentStore,
	leadStore LeadStore,
	reminders ReminderScheduler,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		payments:  payments,
		cipher:    cipher,
		userStore: userStore,
		consents:  consents,
		leadStore: leadStore,
		reminders: reminders,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// Ingest turns a partner payload into a referred user, a consent ledger
// entry, a consented lead and a pending payment.
func (s *Service) Ingest(ctx context.Context, key APIKey, req IngestRequest) (IngestResult, error) {
	if !req.UserConsent {
		return IngestResult{}, apperr.ConsentRequired("user_consent must be true")
	}
	if s.cipher == nil {
		return IngestResult{}, apperr.Internal("partner phone decryption not configured")
	}

	plainPhone, err := s.cipher.Decrypt(req.UserPhoneEncrypted)
	if err != nil {
		return IngestResult{}, apperr.Wrap(apperr.KindValidation, "user_phone_encrypted cannot be decrypted", err)
	}
	if !VerifyPhoneHash(plainPhone, req.UserPhoneHash) {
		return IngestResult{}, apperr.Validation("user_phone_hash does not match the encrypted phone")
	}

	normalized := phone.NormalizeE164(plainPhone)

	var country *string
	if req.Country != "" {
		country = &req.Country
	}
	user, err := s.userStore.Create(ctx, users.CreateParams{
		Phone:            normalized,
		Status:           users.StatusReferred,
		Language:         req.UserLanguage,
		PreferredChannel: string(phone.ChannelSMS),
		Country:          country,
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("create referred user: %w", err)
	}

	consentAt := req.ConsentTimestamp
	if _, err := s.consents.RecordConsent(ctx, compliance.ConsentRecord{
		UserID:       &user.ID,
		Phone:        normalized,
		ConsentType:  compliance.ConsentPartnerReferral,
		UserResponse: fmt.Sprintf("attested by %s at %s", req.SourcePlatform, consentAt.Format(time.RFC3339)),
		Channel:      req.SourcePlatform,
		Language:     req.UserLanguage,
	}); err != nil {
		return IngestResult{}, fmt.Errorf("record referral consent: %w", err)
	}

	lead := &leads.Lead{
		UserID:      user.ID,
		Category:    req.Category,
		PartnerName: key.Partner,
		Description: req.OriginalMessage,
		Location: leads.Location{
			Country: req.Country,
			Region:  req.Region,
			City:    req.City,
		},
		ConsentGiven:     true,
		ConsentTimestamp: &consentAt,
		Status:           leads.StatusReceived,
		Source:           leads.SourcePartner,
		LeadValue:        req.LeadValueAgreed,
	}
	if err := s.leadStore.Create(ctx, lead); err != nil {
		return IngestResult{}, fmt.Errorf("create ingested lead: %w", err)
	}

	payment := &Payment{
		Partner: key.Partner,
		LeadID:  lead.ID,
		Amount:  req.LeadValueAgreed,
		Status:  PaymentPending,
		DueDate: s.now().Add(paymentTerms),
	}
	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		return IngestResult{}, fmt.Errorf("create partner payment: %w", err)
	}

	if s.reminders != nil {
		if err := s.reminders.SchedulePartnerPaymentReminder(ctx, payment.ID.String(), payment.DueDate); err != nil {
			// The payment row exists either way; the reminder is best effort.
			s.log.Warn("payment reminder scheduling failed", "payment_id", payment.ID, "error", err)
		}
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		UserID:      user.ID,
		Category:    lead.Category,
		PartnerName: lead.PartnerName,
	})

	s.log.Info("partner lead ingested",
		"partner", key.Partner, "platform", req.SourcePlatform,
		"lead_id", lead.ID, "user_id", user.ID)

	return IngestResult{UserID: user.ID, LeadID: lead.ID}, nil
}
