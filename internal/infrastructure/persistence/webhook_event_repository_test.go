package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lingobridge/backend/internal/domain/payments"
	"github.com/lingobridge/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDB creates a gorm DB backed by a mocked SQL connection
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func newMockWebhookEventRepository(t *testing.T) (*GormWebhookEventRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockDB(t)
	return NewGormWebhookEventRepository(gormDB), mock, mockDB
}

func TestGormWebhookEventRepository_Store(t *testing.T) {
	t.Run("inserts new event", func(t *testing.T) {
		repo, mock, mockDB := newMockWebhookEventRepository(t)
		defer mockDB.Close()

		event, err := payments.NewWebhookEvent("evt_1", "payment_intent.succeeded", "pi_1", []byte(`{}`))
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO "webhook_events"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.Store(context.Background(), event)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports duplicate event via ErrAlreadyExists", func(t *testing.T) {
		repo, mock, mockDB := newMockWebhookEventRepository(t)
		defer mockDB.Close()

		event, err := payments.NewWebhookEvent("evt_1", "payment_intent.succeeded", "pi_1", []byte(`{}`))
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO "webhook_events"`).
			WillReturnError(gorm.ErrDuplicatedKey)

		err = repo.Store(context.Background(), event)

		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("translates raw driver unique violation", func(t *testing.T) {
		repo, mock, mockDB := newMockWebhookEventRepository(t)
		defer mockDB.Close()

		event, err := payments.NewWebhookEvent("evt_1", "payment_intent.succeeded", "pi_1", []byte(`{}`))
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO "webhook_events"`).
			WillReturnError(assertableUniqueViolation{})

		err = repo.Store(context.Background(), event)

		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

// assertableUniqueViolation mimics the raw Postgres driver error text
type assertableUniqueViolation struct{}

func (assertableUniqueViolation) Error() string {
	return `ERROR: duplicate key value violates unique constraint "idx_webhook_events_event_id" (SQLSTATE 23505)`
}

func TestGormWebhookEventRepository_MarkProcessed(t *testing.T) {
	t.Run("updates processed fields", func(t *testing.T) {
		repo, mock, mockDB := newMockWebhookEventRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "webhook_events" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkProcessed(context.Background(), "evt_1", "")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for unknown event", func(t *testing.T) {
		repo, mock, mockDB := newMockWebhookEventRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "webhook_events" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkProcessed(context.Background(), "evt_missing", "boom")

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormWebhookEventRepository_FindByEventID(t *testing.T) {
	t.Run("normalizes timestamps to UTC", func(t *testing.T) {
		repo, mock, mockDB := newMockWebhookEventRepository(t)
		defer mockDB.Close()

		berlin, err := time.LoadLocation("Europe/Berlin")
		require.NoError(t, err)
		stored := time.Date(2026, 1, 15, 9, 30, 0, 0, berlin)

		rows := sqlmock.NewRows([]string{
			"id", "event_id", "event_type", "payment_intent_id", "raw_payload",
			"processed", "processed_at", "error", "created_at", "updated_at", "expires_at",
		}).AddRow(
			uuid.New(), "evt_1", "payment_intent.succeeded", "pi_1", []byte(`{}`),
			false, nil, "", stored, stored, stored.Add(payments.EventRetention),
		)

		mock.ExpectQuery(`SELECT \* FROM "webhook_events" WHERE event_id = \$1`).
			WithArgs("evt_1", 1).
			WillReturnRows(rows)

		event, err := repo.FindByEventID(context.Background(), "evt_1")

		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, "evt_1", event.EventID)
		assert.Equal(t, time.UTC, event.CreatedAt.Location())
		assert.Equal(t, time.UTC, event.ExpiresAt.Location())
		assert.True(t, stored.Equal(event.CreatedAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil for missing event", func(t *testing.T) {
		repo, mock, mockDB := newMockWebhookEventRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "webhook_events" WHERE event_id = \$1`).
			WithArgs("evt_missing", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		event, err := repo.FindByEventID(context.Background(), "evt_missing")

		assert.NoError(t, err)
		assert.Nil(t, event)
	})
}

func TestGormWebhookEventRepository_DeleteExpired(t *testing.T) {
	repo, mock, mockDB := newMockWebhookEventRepository(t)
	defer mockDB.Close()

	mock.ExpectExec(`DELETE FROM "webhook_events" WHERE expires_at <= \$1`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteExpired(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
