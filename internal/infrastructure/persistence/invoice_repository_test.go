package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lingobridge/backend/internal/domain/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMockInvoiceRepository(t *testing.T) (*GormInvoiceRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockDB(t)
	return NewGormInvoiceRepository(gormDB), mock, mockDB
}

func invoiceRows(number string, status payments.InvoiceStatus, amountPaid int64, paidAt *time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "invoice_number", "status", "amount_paid", "currency",
		"customer_email", "company_name", "stripe_payment_intent_id",
		"paid_at", "created_at", "updated_at",
	}).AddRow(
		uuid.New(), number, status, amountPaid, "USD",
		"user@example.com", "", "pi_1",
		paidAt, time.Now(), time.Now(),
	)
}

func TestGormInvoiceRepository_Create(t *testing.T) {
	repo, mock, mockDB := newMockInvoiceRepository(t)
	defer mockDB.Close()

	invoice, err := payments.NewPaidInvoice("pi_1", 5000, "usd", "user@example.com", "")
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO "invoices"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Create(context.Background(), invoice)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInvoiceRepository_FindByNumber(t *testing.T) {
	t.Run("returns nil for missing invoice", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE invoice_number = \$1`).
			WithArgs("INV-404", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		invoice, err := repo.FindByNumber(context.Background(), "INV-404")

		assert.NoError(t, err)
		assert.Nil(t, invoice)
	})
}

func TestGormInvoiceRepository_MarkPaid(t *testing.T) {
	t.Run("transitions invoice to paid", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceRepository(t)
		defer mockDB.Close()

		now := time.Now()
		mock.ExpectExec(`UPDATE "invoices" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE invoice_number = \$1`).
			WithArgs("INV-20260115-abc12345", 1).
			WillReturnRows(invoiceRows("INV-20260115-abc12345", payments.InvoiceStatusPaid, 5000, &now))

		invoice, err := repo.MarkPaid(context.Background(), "INV-20260115-abc12345", 5000, "pi_1")

		require.NoError(t, err)
		require.NotNil(t, invoice)
		assert.Equal(t, payments.InvoiceStatusPaid, invoice.Status)
		assert.Equal(t, int64(5000), invoice.AmountPaid)
		assert.NotNil(t, invoice.PaidAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil for stale invoice reference", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "invoices" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		invoice, err := repo.MarkPaid(context.Background(), "INV-garbage", 5000, "pi_1")

		assert.NoError(t, err)
		assert.Nil(t, invoice)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
