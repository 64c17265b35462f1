package billing

import (
	"context"

	"go.uber.org/zap"
)

// FulfillmentRequest carries everything the downstream translation pipeline
// needs to start work on a paid order.
type FulfillmentRequest struct {
	CustomerEmail   string
	PaymentIntentID string
	Amount          int64
	Currency        string
	FileIDs         []string
	WebhookEventID  string
}

// PaymentProcessor is the downstream fulfillment collaborator. It is invoked
// at most once per payment intent, after the payment record is created, and
// its failures are recorded on the webhook event but never propagate back to
// the payment provider.
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, req FulfillmentRequest) error
}

// LoggingPaymentProcessor is a PaymentProcessor that only logs. Deployments
// without the file-translation pipeline attached use it as the default.
type LoggingPaymentProcessor struct {
	logger *zap.Logger
}

// NewLoggingPaymentProcessor creates a new LoggingPaymentProcessor
func NewLoggingPaymentProcessor(logger *zap.Logger) *LoggingPaymentProcessor {
	return &LoggingPaymentProcessor{logger: logger}
}

// ProcessPayment logs the fulfillment request
func (p *LoggingPaymentProcessor) ProcessPayment(_ context.Context, req FulfillmentRequest) error {
	p.logger.Info("Payment ready for fulfillment",
		zap.String("payment_intent_id", req.PaymentIntentID),
		zap.String("customer_email", req.CustomerEmail),
		zap.Int64("amount", req.Amount),
		zap.String("currency", req.Currency),
		zap.Strings("file_ids", req.FileIDs),
		zap.String("webhook_event_id", req.WebhookEventID))
	return nil
}
