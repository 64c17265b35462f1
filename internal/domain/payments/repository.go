package payments

import (
	"context"
	"time"
)

// WebhookEventRepository persists raw webhook events and provides the
// event-level idempotency gate via a unique constraint on EventID.
type WebhookEventRepository interface {
	// Store inserts a new event record. Returns shared.ErrAlreadyExists when
	// an event with the same EventID was already stored; concurrent callers
	// race on the unique constraint and exactly one insert succeeds.
	Store(ctx context.Context, event *WebhookEvent) error

	// MarkProcessed sets processed/processed_at and the error message on the
	// stored event. errMsg is empty when the handler succeeded.
	MarkProcessed(ctx context.Context, eventID, errMsg string) error

	// FindByEventID returns the stored event, or nil when absent. Timestamps
	// are normalized to UTC on read.
	FindByEventID(ctx context.Context, eventID string) (*WebhookEvent, error)

	// DeleteExpired removes events whose retention window elapsed before the
	// given instant. Returns the number of deleted rows.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PaymentRepository is the payment ledger keyed by Stripe payment intent ID.
type PaymentRepository interface {
	// CreateIfAbsent atomically inserts the payment unless a record for its
	// PaymentIntentID already exists. Returns created=true and the inserted
	// record on a win; created=false and the pre-existing record (unmodified)
	// when another delivery already owns the intent.
	CreateIfAbsent(ctx context.Context, payment *Payment) (created bool, existing *Payment, err error)

	// FindByIntentID returns the payment for the intent, or nil when absent.
	FindByIntentID(ctx context.Context, intentID string) (*Payment, error)

	// MarkRefunded atomically transitions the payment to refunded and returns
	// the post-update record, or nil when no payment exists for the intent.
	MarkRefunded(ctx context.Context, intentID string, amountRefunded int64) (*Payment, error)
}

// InvoiceRepository persists invoices
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *Invoice) error

	// FindByNumber returns the invoice, or nil when absent
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)

	// MarkPaid atomically transitions the referenced invoice to paid and
	// returns the post-update record, or nil when no such invoice exists.
	MarkPaid(ctx context.Context, invoiceNumber string, amountPaid int64, intentID string) (*Invoice, error)
}
