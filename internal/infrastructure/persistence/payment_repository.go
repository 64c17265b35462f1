package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lingobridge/backend/internal/domain/payments"
	"github.com/lingobridge/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements payments.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// CreateIfAbsent inserts the payment with ON CONFLICT DO NOTHING on
// payment_intent_id. Zero affected rows means another delivery already owns
// the intent; the pre-existing record is returned unmodified.
func (r *GormPaymentRepository) CreateIfAbsent(ctx context.Context, payment *payments.Payment) (bool, *payments.Payment, error) {
	var model models.PaymentModel
	model.FromDomain(payment)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_intent_id"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return false, nil, fmt.Errorf("failed to create payment: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		existing, err := r.FindByIntentID(ctx, payment.PaymentIntentID)
		if err != nil {
			return false, nil, err
		}
		if existing == nil {
			// Insert lost the conflict race but the winner is not visible yet.
			return false, nil, fmt.Errorf("payment for intent %s exists but could not be read back", payment.PaymentIntentID)
		}
		return false, existing, nil
	}

	return true, model.ToDomain(), nil
}

// FindByIntentID finds a payment by its Stripe payment intent ID
func (r *GormPaymentRepository) FindByIntentID(ctx context.Context, intentID string) (*payments.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		First(&model, "payment_intent_id = ?", intentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return model.ToDomain(), nil
}

// MarkRefunded atomically transitions the payment to refunded and returns the
// post-update record, or nil when no payment exists for the intent
func (r *GormPaymentRepository) MarkRefunded(ctx context.Context, intentID string, amountRefunded int64) (*payments.Payment, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("payment_intent_id = ?", intentID).
		Updates(map[string]any{
			"status":          payments.PaymentStatusRefunded,
			"amount_refunded": amountRefunded,
			"refunded_at":     now,
			"updated_at":      now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to mark payment refunded: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	return r.FindByIntentID(ctx, intentID)
}
