package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lingobridge/backend/internal/domain/payments"
	"github.com/lingobridge/backend/internal/domain/shared"
)

// WebhookEventModel is the persistence model for the WebhookEvent domain
// entity. The unique index on EventID is the event-level idempotency gate.
type WebhookEventModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	EventID         string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_webhook_events_event_id"`
	EventType       string    `gorm:"type:varchar(100)"`
	PaymentIntentID string    `gorm:"type:varchar(255);index"`
	RawPayload      []byte    `gorm:"type:jsonb"`
	Processed       bool      `gorm:"not null;default:false"`
	ProcessedAt     *time.Time
	Error           string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
	ExpiresAt       time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent.
// Timestamps are normalized to UTC on read.
func (m *WebhookEventModel) ToDomain() *payments.WebhookEvent {
	event := &payments.WebhookEvent{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		EventID:         m.EventID,
		EventType:       m.EventType,
		PaymentIntentID: m.PaymentIntentID,
		RawPayload:      m.RawPayload,
		Processed:       m.Processed,
		Error:           m.Error,
		ExpiresAt:       m.ExpiresAt.UTC(),
	}
	if m.ProcessedAt != nil {
		processedAt := m.ProcessedAt.UTC()
		event.ProcessedAt = &processedAt
	}
	return event
}

// FromDomain populates the persistence model from a domain WebhookEvent
func (m *WebhookEventModel) FromDomain(e *payments.WebhookEvent) {
	m.ID = e.ID
	m.EventID = e.EventID
	m.EventType = e.EventType
	m.PaymentIntentID = e.PaymentIntentID
	m.RawPayload = e.RawPayload
	m.Processed = e.Processed
	m.ProcessedAt = e.ProcessedAt
	m.Error = e.Error
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
	m.ExpiresAt = e.ExpiresAt
}

// PaymentModel is the persistence model for the Payment domain entity.
// The unique index on PaymentIntentID backs the atomic insert-if-absent.
type PaymentModel struct {
	ID              uuid.UUID              `gorm:"type:uuid;primary_key"`
	PaymentIntentID string                 `gorm:"type:varchar(255);not null;uniqueIndex:idx_payments_payment_intent_id"`
	Amount          int64                  `gorm:"not null"`
	Currency        string                 `gorm:"type:varchar(10);not null"`
	Status          payments.PaymentStatus `gorm:"type:varchar(20);not null"`
	CustomerEmail   string                 `gorm:"type:varchar(255)"`
	CompanyName     string                 `gorm:"type:varchar(255)"`
	WebhookEventID  string                 `gorm:"type:varchar(255)"`
	AmountRefunded  *int64
	RefundedAt      *time.Time
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *payments.Payment {
	return &payments.Payment{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		PaymentIntentID: m.PaymentIntentID,
		Amount:          m.Amount,
		Currency:        m.Currency,
		Status:          m.Status,
		CustomerEmail:   m.CustomerEmail,
		CompanyName:     m.CompanyName,
		WebhookEventID:  m.WebhookEventID,
		AmountRefunded:  m.AmountRefunded,
		RefundedAt:      m.RefundedAt,
	}
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *payments.Payment) {
	m.ID = p.ID
	m.PaymentIntentID = p.PaymentIntentID
	m.Amount = p.Amount
	m.Currency = p.Currency
	m.Status = p.Status
	m.CustomerEmail = p.CustomerEmail
	m.CompanyName = p.CompanyName
	m.WebhookEventID = p.WebhookEventID
	m.AmountRefunded = p.AmountRefunded
	m.RefundedAt = p.RefundedAt
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
}

// InvoiceModel is the persistence model for the Invoice domain entity
type InvoiceModel struct {
	ID                    uuid.UUID              `gorm:"type:uuid;primary_key"`
	InvoiceNumber         string                 `gorm:"type:varchar(100);not null;uniqueIndex"`
	Status                payments.InvoiceStatus `gorm:"type:varchar(20);not null"`
	AmountPaid            int64                  `gorm:"not null;default:0"`
	Currency              string                 `gorm:"type:varchar(10)"`
	CustomerEmail         string                 `gorm:"type:varchar(255)"`
	CompanyName           string                 `gorm:"type:varchar(255)"`
	StripePaymentIntentID string                 `gorm:"type:varchar(255);index"`
	PaidAt                *time.Time
	CreatedAt             time.Time `gorm:"not null"`
	UpdatedAt             time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *payments.Invoice {
	return &payments.Invoice{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		InvoiceNumber:         m.InvoiceNumber,
		Status:                m.Status,
		AmountPaid:            m.AmountPaid,
		Currency:              m.Currency,
		CustomerEmail:         m.CustomerEmail,
		CompanyName:           m.CompanyName,
		StripePaymentIntentID: m.StripePaymentIntentID,
		PaidAt:                m.PaidAt,
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(i *payments.Invoice) {
	m.ID = i.ID
	m.InvoiceNumber = i.InvoiceNumber
	m.Status = i.Status
	m.AmountPaid = i.AmountPaid
	m.Currency = i.Currency
	m.CustomerEmail = i.CustomerEmail
	m.CompanyName = i.CompanyName
	m.StripePaymentIntentID = i.StripePaymentIntentID
	m.PaidAt = i.PaidAt
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt
}
