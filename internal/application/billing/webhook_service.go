package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lingobridge/backend/internal/domain/payments"
	"github.com/lingobridge/backend/internal/domain/shared"
	"github.com/lingobridge/backend/internal/infrastructure/billing"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

// Status is the terminal outcome of handling one webhook event
type Status string

const (
	// StatusProcessed means the event was stored, routed, and its handler ran.
	// A legitimately failed payment still counts as processed.
	StatusProcessed Status = "processed"
	// StatusDuplicate means the event was already stored by an earlier
	// delivery attempt; nothing further happened.
	StatusDuplicate Status = "duplicate"
	// StatusUnsupported means the event type has no handler. The event is
	// stored for audit but intentionally stays unprocessed.
	StatusUnsupported Status = "unsupported"
	// StatusError means routing or a handler failed; the failure message is
	// recorded on the stored event.
	StatusError Status = "error"
)

// Result contains the outcome of processing a webhook event
type Result struct {
	Status    Status `json:"status"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// WebhookService orchestrates the Stripe webhook pipeline: verify,
// deduplicate, route by event type, mutate the payment ledger and invoices,
// record the outcome. HandleEvent never returns an error; every failure
// terminates in a Result plus a diagnostic persisted on the event.
type WebhookService struct {
	verifier  *billing.SignatureVerifier
	events    payments.WebhookEventRepository
	ledger    payments.PaymentRepository
	linker    *InvoiceLinker
	processor PaymentProcessor
	logger    *zap.Logger
}

// WebhookServiceConfig contains configuration for WebhookService
type WebhookServiceConfig struct {
	Verifier  *billing.SignatureVerifier
	Events    payments.WebhookEventRepository
	Ledger    payments.PaymentRepository
	Linker    *InvoiceLinker
	Processor PaymentProcessor
	Logger    *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	return &WebhookService{
		verifier:  cfg.Verifier,
		events:    cfg.Events,
		ledger:    cfg.Ledger,
		linker:    cfg.Linker,
		processor: cfg.Processor,
		logger:    cfg.Logger,
	}
}

// VerifyPayload validates the webhook signature and parses the event. It is
// cheap and synchronous so the boundary can fast-fail spoofed or stale
// requests before acknowledging the provider.
func (s *WebhookService) VerifyPayload(payload []byte, signature string) (*stripe.Event, error) {
	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		s.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return nil, err
	}
	return event, nil
}

// HandleEvent runs the full pipeline for one verified event. It runs off the
// request path; the provider has already received its acknowledgment.
func (s *WebhookService) HandleEvent(ctx context.Context, event stripe.Event, rawPayload []byte) Result {
	eventType := string(event.Type)
	result := Result{EventID: event.ID, EventType: eventType}

	stored, err := payments.NewWebhookEvent(event.ID, eventType, extractIntentID(event), rawPayload)
	if err != nil {
		s.logger.Error("Rejected malformed webhook event", zap.Error(err))
		result.Status = StatusError
		result.Message = err.Error()
		return result
	}

	// Event-level idempotency gate: the unique constraint on event_id makes
	// repeated provider retries converge on a single stored event.
	if err := s.events.Store(ctx, stored); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			s.logger.Info("Duplicate webhook event, skipping",
				zap.String("event_id", event.ID),
				zap.String("event_type", eventType))
			result.Status = StatusDuplicate
			return result
		}
		s.logger.Error("Failed to store webhook event",
			zap.String("event_id", event.ID),
			zap.Error(err))
		result.Status = StatusError
		result.Message = err.Error()
		return result
	}

	if eventType == "" {
		return s.failEvent(ctx, result, fmt.Errorf("event %s carries no type", event.ID))
	}

	s.logger.Info("Processing webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", eventType))

	var note string
	var handlerErr error
	switch event.Type {
	case "payment_intent.succeeded":
		handlerErr = s.handlePaymentSucceeded(ctx, event)
	case "payment_intent.payment_failed":
		// The decline message becomes the event's error field, but a payment
		// that legitimately failed is not a processing error.
		note, handlerErr = s.handlePaymentFailed(event)
	case "charge.refunded":
		handlerErr = s.handleRefund(ctx, event)
	default:
		// Stored for audit, never handled: the event intentionally stays
		// processed=false so unhandled types remain visible.
		s.logger.Debug("Unsupported webhook event type",
			zap.String("event_type", eventType))
		result.Status = StatusUnsupported
		return result
	}

	if handlerErr != nil {
		return s.failEvent(ctx, result, handlerErr)
	}

	if err := s.events.MarkProcessed(ctx, event.ID, note); err != nil {
		s.logger.Error("Failed to mark webhook event processed",
			zap.String("event_id", event.ID),
			zap.Error(err))
		result.Status = StatusError
		result.Message = err.Error()
		return result
	}

	result.Status = StatusProcessed
	result.Message = note
	return result
}

// failEvent records a handler failure on the stored event and converts it
// into an error result. The secondary mark failure is swallowed; the event is
// stored either way and can be inspected later.
func (s *WebhookService) failEvent(ctx context.Context, result Result, err error) Result {
	s.logger.Error("Failed to process webhook event",
		zap.String("event_id", result.EventID),
		zap.String("event_type", result.EventType),
		zap.Error(err))

	if markErr := s.events.MarkProcessed(ctx, result.EventID, err.Error()); markErr != nil {
		s.logger.Error("Failed to record handler error on event",
			zap.String("event_id", result.EventID),
			zap.Error(markErr))
	}

	result.Status = StatusError
	result.Message = err.Error()
	return result
}

// handlePaymentSucceeded records the payment, links its invoice, and kicks
// off fulfillment. The atomic insert-if-absent on the ledger means that of N
// concurrent deliveries for one intent exactly one reaches fulfillment.
func (s *WebhookService) handlePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}
	if intent.ID == "" {
		return fmt.Errorf("payment intent in event %s has no ID", event.ID)
	}

	payment, err := payments.NewPayment(intent.ID, intent.Amount, string(intent.Currency),
		intent.ReceiptEmail, intent.Metadata["company_name"], event.ID, payments.PaymentStatusSucceeded)
	if err != nil {
		return err
	}

	created, existing, err := s.ledger.CreateIfAbsent(ctx, payment)
	if err != nil {
		return err
	}
	if !created {
		// Another delivery already owns this payment; let it drive fulfillment.
		s.logger.Info("Payment already recorded for intent, skipping",
			zap.String("payment_intent_id", intent.ID),
			zap.String("recorded_by_event", existing.WebhookEventID))
		return nil
	}

	if err := s.linker.LinkOrCreate(ctx, &intent); err != nil {
		// The payment record stays; the linkage failure lands on the event.
		return err
	}

	req := FulfillmentRequest{
		CustomerEmail:   intent.ReceiptEmail,
		PaymentIntentID: intent.ID,
		Amount:          intent.Amount,
		Currency:        strings.ToUpper(string(intent.Currency)),
		FileIDs:         splitFileIDs(intent.Metadata["file_ids"]),
		WebhookEventID:  event.ID,
	}
	if err := s.processor.ProcessPayment(ctx, req); err != nil {
		// The payment genuinely succeeded upstream; a fulfillment failure is
		// recorded for alerting but never rolls the ledger back.
		return fmt.Errorf("fulfillment failed for %s: %w", intent.ID, err)
	}

	s.logger.Info("Payment recorded",
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount", intent.Amount),
		zap.String("currency", req.Currency))
	return nil
}

// handlePaymentFailed extracts the decline message. No payment record is
// created for failures; the absence of a record for an intent is itself the
// signal that it never succeeded.
func (s *WebhookService) handlePaymentFailed(event stripe.Event) (string, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return "", fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	msg := "Unknown error"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		msg = intent.LastPaymentError.Msg
	}

	s.logger.Info("Payment failed",
		zap.String("payment_intent_id", intent.ID),
		zap.String("reason", msg))
	return msg, nil
}

// handleRefund transitions the matching payment to refunded. A refund with no
// matching payment is surfaced as an error on the event rather than swallowed:
// it indicates a data-integrity gap worth seeing in the audit trail.
func (s *WebhookService) handleRefund(ctx context.Context, event stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return fmt.Errorf("failed to unmarshal charge: %w", err)
	}
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		return fmt.Errorf("charge in event %s has no payment intent reference", event.ID)
	}
	intentID := charge.PaymentIntent.ID

	payment, err := s.ledger.MarkRefunded(ctx, intentID, charge.AmountRefunded)
	if err != nil {
		return err
	}
	if payment == nil {
		return fmt.Errorf("payment not found for refund: %s", intentID)
	}

	s.logger.Info("Payment refunded",
		zap.String("payment_intent_id", intentID),
		zap.Int64("amount_refunded", charge.AmountRefunded))
	return nil
}

// extractIntentID pulls the payment intent reference out of the event payload
// for cross-referencing on the stored event. Failures here are tolerated; the
// routing handlers re-parse the payload and report their own errors.
func extractIntentID(event stripe.Event) string {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return ""
	}

	switch {
	case strings.HasPrefix(string(event.Type), "payment_intent."):
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err == nil {
			return intent.ID
		}
	case event.Type == "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err == nil && charge.PaymentIntent != nil {
			return charge.PaymentIntent.ID
		}
	}
	return ""
}

// splitFileIDs parses the comma-separated file_ids metadata value
func splitFileIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if id := strings.TrimSpace(p); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
