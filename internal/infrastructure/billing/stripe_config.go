package billing

import (
	"fmt"

	"github.com/stripe/stripe-go/v81"
)

// StripeConfig holds configuration for Stripe integration
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`

	// WebhookSecret is the secret for verifying webhook signatures
	WebhookSecret string `json:"webhook_secret" mapstructure:"webhook_secret"`

	// IsTestMode indicates if using Stripe test mode
	IsTestMode bool `json:"is_test_mode" mapstructure:"is_test_mode"`
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.WebhookSecret == "" {
		return fmt.Errorf("stripe: webhook secret is required")
	}

	// Validate key format when an API key is configured
	if c.SecretKey != "" {
		if c.IsTestMode {
			if len(c.SecretKey) > 7 && c.SecretKey[:7] != "sk_test" {
				return fmt.Errorf("stripe: test mode enabled but secret key is not a test key")
			}
		} else {
			if len(c.SecretKey) > 7 && c.SecretKey[:7] != "sk_live" {
				return fmt.Errorf("stripe: live mode enabled but secret key is not a live key")
			}
		}
	}

	return nil
}

// InitStripeClient initializes the Stripe client with the configured API key
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey
}
