// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"eventcover_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Quote Domain Events
// =============================================================================

// QuoteCreated is published when a new quote is persisted.
type QuoteCreated struct {
	BaseEvent
	QuoteID     uuid.UUID `json:"quoteId"`
	QuoteNumber string    `json:"quoteNumber"`
	Email       string    `json:"email"`
	TotalCents  int64     `json:"totalCents"`
	Source      string    `json:"source"`
}

func (e QuoteCreated) EventName() string { return "quotes.quote.created" }

// QuotesExpired is published after an expiration sweep marked stale quotes.
type QuotesExpired struct {
	BaseEvent
	Count int `json:"count"`
}

func (e QuotesExpired) EventName() string { return "quotes.sweep.expired" }

// =============================================================================
// Policy Domain Events
// =============================================================================

// PolicyIssued is published when a quote is converted into a policy.
type PolicyIssued struct {
	BaseEvent
	PolicyID     uuid.UUID `json:"policyId"`
	PolicyNumber string    `json:"policyNumber"`
	QuoteID      uuid.UUID `json:"quoteId"`
	QuoteNumber  string    `json:"quoteNumber"`
	Email        string    `json:"email"`
}

func (e PolicyIssued) EventName() string { return "policies.policy.issued" }

// PolicyAmended is published after an amendment (and its version snapshot)
// has been committed.
type PolicyAmended struct {
	BaseEvent
	PolicyID     uuid.UUID `json:"policyId"`
	PolicyNumber string    `json:"policyNumber"`
	VersionID    uuid.UUID `json:"versionId"`
}

func (e PolicyAmended) EventName() string { return "policies.policy.amended" }

// =============================================================================
// Payment Domain Events
// =============================================================================

// PaymentRecorded is published when a payment row is committed.
type PaymentRecorded struct {
	BaseEvent
	PaymentID   uuid.UUID  `json:"paymentId"`
	QuoteID     *uuid.UUID `json:"quoteId,omitempty"`
	PolicyID    *uuid.UUID `json:"policyId,omitempty"`
	AmountCents int64      `json:"amountCents"`
	Status      string     `json:"status"`
	Method      string     `json:"method"`
}

func (e PaymentRecorded) EventName() string { return "payments.payment.recorded" }
