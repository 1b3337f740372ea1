// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadline_backend/platform/events"
	"leadline_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Intake Domain Events
// =============================================================================

// UserOnboarded is published when a user completes the registration dialogue.
type UserOnboarded struct {
	BaseEvent
	UserID uuid.UUID `json:"userId"`
	Phone  string    `json:"phone"`
}

func (e UserOnboarded) EventName() string { return "intake.user.onboarded" }

// UserOptedOut is published when an opt-out keyword suppresses a phone.
type UserOptedOut struct {
	BaseEvent
	Phone   string `json:"phone"`
	Channel string `json:"channel"`
}

func (e UserOptedOut) EventName() string { return "intake.user.opted_out" }

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when the materializer persists a new lead.
type LeadCreated struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	UserID      uuid.UUID `json:"userId"`
	Category    string    `json:"category"`
	PartnerName string    `json:"partnerName"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// PartnerPaymentDue is published when a partner payment reaches its due
// date while still pending.
type PartnerPaymentDue struct {
	BaseEvent
	PaymentID uuid.UUID `json:"paymentId"`
	Partner   string    `json:"partner"`
	LeadID    uuid.UUID `json:"leadId"`
	Amount    float64   `json:"amount"`
}

func (e PartnerPaymentDue) EventName() string { return "partners.payment.due" }

// LeadMatched is published after the matching engine ranks vendors for a lead.
type LeadMatched struct {
	BaseEvent
	LeadID    uuid.UUID   `json:"leadId"`
	VendorIDs []uuid.UUID `json:"vendorIds"`
}

func (e LeadMatched) EventName() string { return "leads.lead.matched" }
