package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lingobridge/backend/internal/domain/shared"
)

// InvoiceStatus represents the state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusSent InvoiceStatus = "sent"
	InvoiceStatusPaid InvoiceStatus = "paid"
)

// Invoice is a billing document. It is created either when a payment link is
// issued (status "sent", later marked paid by the webhook pipeline) or
// synthesized already-paid when a payment arrives with no invoice reference.
type Invoice struct {
	shared.BaseEntity
	InvoiceNumber         string
	Status                InvoiceStatus
	AmountPaid            int64 // minor currency unit (cents)
	Currency              string
	CustomerEmail         string
	CompanyName           string
	StripePaymentIntentID string
	PaidAt                *time.Time
}

// NewInvoiceNumber generates an invoice number of the form
// INV-<YYYYMMDD>-<suffix>. Each call yields a distinct suffix, so repeated
// calls for the same payment intent produce distinct invoices.
func NewInvoiceNumber(now time.Time) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"), suffix)
}

// NewPaidInvoice synthesizes an already-paid invoice for a payment that
// arrived without a pre-existing invoice reference.
func NewPaidInvoice(intentID string, amount int64, currency, customerEmail, companyName string) (*Invoice, error) {
	if intentID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "payment intent ID is required")
	}

	now := time.Now()
	inv := &Invoice{
		BaseEntity:            shared.NewBaseEntity(),
		InvoiceNumber:         NewInvoiceNumber(now),
		Status:                InvoiceStatusPaid,
		AmountPaid:            amount,
		Currency:              strings.ToUpper(currency),
		CustomerEmail:         customerEmail,
		CompanyName:           companyName,
		StripePaymentIntentID: intentID,
		PaidAt:                &now,
	}
	return inv, nil
}

// MarkPaid transitions a sent invoice to paid
func (i *Invoice) MarkPaid(amountPaid int64, intentID string) {
	now := time.Now()
	i.Status = InvoiceStatusPaid
	i.AmountPaid = amountPaid
	i.StripePaymentIntentID = intentID
	i.PaidAt = &now
	i.UpdatedAt = now
}
