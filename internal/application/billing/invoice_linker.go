package billing

import (
	"context"
	"fmt"

	"github.com/lingobridge/backend/internal/domain/payments"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

// InvoiceLinker connects a succeeded payment to its invoice. Payments made
// through a payment link carry an invoice reference in their metadata and
// flip that invoice to paid; payments without a reference get a standalone
// paid invoice synthesized (legacy path).
type InvoiceLinker struct {
	invoices payments.InvoiceRepository
	logger   *zap.Logger
}

// NewInvoiceLinker creates a new InvoiceLinker
func NewInvoiceLinker(invoices payments.InvoiceRepository, logger *zap.Logger) *InvoiceLinker {
	return &InvoiceLinker{
		invoices: invoices,
		logger:   logger,
	}
}

// LinkOrCreate marks the referenced invoice paid, or creates a standalone
// paid invoice when the metadata has no reference. A stale reference is
// logged and skipped so garbage metadata never blocks payment recording.
// Deduplication for the legacy path relies on the event/payment idempotency
// gates upstream never invoking it twice for the same intent.
func (l *InvoiceLinker) LinkOrCreate(ctx context.Context, intent *stripe.PaymentIntent) error {
	number := intent.Metadata["invoice_id"]
	if number == "" {
		number = intent.Metadata["invoice_number"]
	}

	if number != "" {
		invoice, err := l.invoices.MarkPaid(ctx, number, intent.Amount, intent.ID)
		if err != nil {
			return fmt.Errorf("failed to mark invoice paid: %w", err)
		}
		if invoice == nil {
			l.logger.Warn("Referenced invoice not found, continuing",
				zap.String("invoice_number", number),
				zap.String("payment_intent_id", intent.ID))
			return nil
		}
		l.logger.Info("Invoice marked paid",
			zap.String("invoice_number", number),
			zap.String("payment_intent_id", intent.ID))
		return nil
	}

	invoice, err := payments.NewPaidInvoice(intent.ID, intent.Amount, string(intent.Currency),
		intent.ReceiptEmail, intent.Metadata["company_name"])
	if err != nil {
		return fmt.Errorf("failed to build standalone invoice: %w", err)
	}
	if err := l.invoices.Create(ctx, invoice); err != nil {
		return fmt.Errorf("failed to create standalone invoice: %w", err)
	}

	l.logger.Info("Created standalone invoice for payment",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("payment_intent_id", intent.ID))
	return nil
}
