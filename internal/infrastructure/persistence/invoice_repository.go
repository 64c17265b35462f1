package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lingobridge/backend/internal/domain/payments"
	"github.com/lingobridge/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements payments.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Create inserts a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *payments.Invoice) error {
	var model models.InvoiceModel
	model.FromDomain(invoice)

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// FindByNumber finds an invoice by its invoice number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, invoiceNumber string) (*payments.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "invoice_number = ?", invoiceNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	return model.ToDomain(), nil
}

// MarkPaid atomically transitions the referenced invoice to paid, setting
// only the payment fields and leaving the rest untouched. Returns nil when
// no invoice with the given number exists.
func (r *GormInvoiceRepository) MarkPaid(ctx context.Context, invoiceNumber string, amountPaid int64, intentID string) (*payments.Invoice, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("invoice_number = ?", invoiceNumber).
		Updates(map[string]any{
			"status":                   payments.InvoiceStatusPaid,
			"amount_paid":              amountPaid,
			"stripe_payment_intent_id": intentID,
			"paid_at":                  now,
			"updated_at":               now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to mark invoice paid: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	return r.FindByNumber(ctx, invoiceNumber)
}
