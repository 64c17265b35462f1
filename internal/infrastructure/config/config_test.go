package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "lingobridge-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Webhook.Workers)
	assert.Equal(t, 256, cfg.Webhook.QueueSize)
	assert.Equal(t, 30*time.Second, cfg.Webhook.HandlerTimeout)
	assert.Equal(t, time.Hour, cfg.Retention.PurgeInterval)
	assert.True(t, cfg.Retention.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LINGOBRIDGE_DATABASE_PASSWORD", "secret-from-env")
	t.Setenv("LINGOBRIDGE_STRIPE_WEBHOOK_SECRET", "whsec_env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret-from-env", cfg.Database.Password)
	assert.Equal(t, "whsec_env", cfg.Stripe.WebhookSecret)
}

func TestLoad_ProductionRequiresWebhookSecret(t *testing.T) {
	t.Setenv("LINGOBRIDGE_APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook secret")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "app",
		Password: "pw",
		DBName:   "lingobridge",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=5433 user=app password=pw dbname=lingobridge sslmode=require",
		cfg.DSN())
	assert.Equal(t,
		"postgres://app:pw@db.internal:5433/lingobridge?sslmode=require",
		cfg.URL())
}
