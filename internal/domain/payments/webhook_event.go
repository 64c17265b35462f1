package payments

import (
	"encoding/json"
	"time"

	"github.com/lingobridge/backend/internal/domain/shared"
)

// EventRetention is how long a stored webhook event is kept before the
// retention job deletes it.
const EventRetention = 90 * 24 * time.Hour

// WebhookEvent is the audit record for one inbound Stripe event.
// Exactly one WebhookEvent ever exists per provider EventID; the unique
// constraint on that column is the event-level idempotency gate.
type WebhookEvent struct {
	shared.BaseEntity
	EventID         string
	EventType       string
	PaymentIntentID string // empty when the event carries no intent reference
	RawPayload      json.RawMessage
	Processed       bool
	ProcessedAt     *time.Time
	Error           string // empty means the handler completed without a recorded failure
	ExpiresAt       time.Time
}

// NewWebhookEvent creates an unprocessed event record with the retention
// window anchored to its creation time.
func NewWebhookEvent(eventID, eventType, paymentIntentID string, rawPayload []byte) (*WebhookEvent, error) {
	if eventID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "event ID is required")
	}

	e := &WebhookEvent{
		BaseEntity:      shared.NewBaseEntity(),
		EventID:         eventID,
		EventType:       eventType,
		PaymentIntentID: paymentIntentID,
		RawPayload:      rawPayload,
	}
	e.ExpiresAt = e.CreatedAt.Add(EventRetention)
	return e, nil
}

// MarkProcessed records the handler outcome. errMsg is empty on success and
// carries the caught failure message otherwise.
func (e *WebhookEvent) MarkProcessed(errMsg string) {
	now := time.Now()
	e.Processed = true
	e.ProcessedAt = &now
	e.Error = errMsg
	e.UpdatedAt = now
}

// Expired reports whether the event is past its retention window.
func (e *WebhookEvent) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
