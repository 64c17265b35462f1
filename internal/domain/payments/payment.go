package payments

import (
	"strings"
	"time"

	"github.com/lingobridge/backend/internal/domain/shared"
)

// PaymentStatus represents the lifecycle state of a payment record
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is the ledger record for one Stripe payment intent. At most one
// Payment exists per PaymentIntentID; concurrent webhook deliveries race on
// an atomic insert-if-absent and exactly one wins.
type Payment struct {
	shared.BaseEntity
	PaymentIntentID string
	Amount          int64 // minor currency unit (cents)
	Currency        string
	Status          PaymentStatus
	CustomerEmail   string
	CompanyName     string // set for enterprise-attributed payments
	WebhookEventID  string // provider event ID that created this record
	AmountRefunded  *int64
	RefundedAt      *time.Time
}

// NewPayment creates a payment record for a payment intent. The currency is
// normalized to its uppercase ISO code.
func NewPayment(intentID string, amount int64, currency, customerEmail, companyName, webhookEventID string, status PaymentStatus) (*Payment, error) {
	if intentID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "payment intent ID is required")
	}
	if amount < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "amount cannot be negative")
	}

	return &Payment{
		BaseEntity:      shared.NewBaseEntity(),
		PaymentIntentID: intentID,
		Amount:          amount,
		Currency:        strings.ToUpper(currency),
		Status:          status,
		CustomerEmail:   customerEmail,
		CompanyName:     companyName,
		WebhookEventID:  webhookEventID,
	}, nil
}

// MarkRefunded transitions the payment to refunded
func (p *Payment) MarkRefunded(amountRefunded int64) {
	now := time.Now()
	p.Status = PaymentStatusRefunded
	p.AmountRefunded = &amountRefunded
	p.RefundedAt = &now
	p.UpdatedAt = now
}

// IsRefunded reports whether the payment has been refunded
func (p *Payment) IsRefunded() bool {
	return p.Status == PaymentStatusRefunded
}
