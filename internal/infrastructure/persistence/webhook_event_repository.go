package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lingobridge/backend/internal/domain/payments"
	"github.com/lingobridge/backend/internal/domain/shared"
	"github.com/lingobridge/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormWebhookEventRepository implements payments.WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Store inserts a new webhook event. The unique index on event_id makes
// concurrent inserts of the same provider event race on the constraint;
// exactly one succeeds and the rest observe shared.ErrAlreadyExists.
func (r *GormWebhookEventRepository) Store(ctx context.Context, event *payments.WebhookEvent) error {
	var model models.WebhookEventModel
	model.FromDomain(event)

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: webhook event %s", shared.ErrAlreadyExists, event.EventID)
		}
		return fmt.Errorf("failed to store webhook event: %w", err)
	}
	return nil
}

// MarkProcessed records the handler outcome on the stored event
func (r *GormWebhookEventRepository) MarkProcessed(ctx context.Context, eventID, errMsg string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.WebhookEventModel{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": now,
			"error":        errMsg,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: webhook event %s", shared.ErrNotFound, eventID)
	}
	return nil
}

// FindByEventID finds a webhook event by its provider-assigned ID
func (r *GormWebhookEventRepository) FindByEventID(ctx context.Context, eventID string) (*payments.WebhookEvent, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		First(&model, "event_id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find webhook event: %w", err)
	}
	return model.ToDomain(), nil
}

// DeleteExpired removes events whose retention window elapsed before the
// given instant
func (r *GormWebhookEventRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", before).
		Delete(&models.WebhookEventModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired webhook events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// isUniqueViolation reports whether the error is a unique-constraint
// violation. GORM translates these to ErrDuplicatedKey when the connection
// is opened with TranslateError; the message check covers raw driver errors.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
