package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func computeSignature(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func signedHeader(payload []byte, secret string, ts time.Time) string {
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), computeSignature(payload, secret, ts))
}

func testPayload() []byte {
	return []byte(`{"id":"evt_test123","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`)
}

func TestSignatureVerifier_Verify(t *testing.T) {
	verifier := NewSignatureVerifier(testSecret)

	t.Run("accepts valid signature", func(t *testing.T) {
		payload := testPayload()
		event, err := verifier.Verify(payload, signedHeader(payload, testSecret, time.Now()))

		require.NoError(t, err)
		assert.Equal(t, "evt_test123", event.ID)
		assert.Equal(t, "payment_intent.succeeded", string(event.Type))
	})

	t.Run("accepts header with one valid v1 among several", func(t *testing.T) {
		payload := testPayload()
		now := time.Now()
		header := fmt.Sprintf("t=%d,v1=%s,v1=%s",
			now.Unix(),
			computeSignature(payload, "whsec_other", now),
			computeSignature(payload, testSecret, now))

		_, err := verifier.Verify(payload, header)
		assert.NoError(t, err)
	})

	t.Run("rejects empty header", func(t *testing.T) {
		_, err := verifier.Verify(testPayload(), "")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects signature from wrong secret", func(t *testing.T) {
		payload := testPayload()
		_, err := verifier.Verify(payload, signedHeader(payload, "whsec_wrong", time.Now()))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects tampered payload", func(t *testing.T) {
		payload := testPayload()
		header := signedHeader(payload, testSecret, time.Now())
		tampered := []byte(`{"id":"evt_test123","type":"payment_intent.succeeded","data":{"object":{"id":"pi_999"}}}`)

		_, err := verifier.Verify(tampered, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects stale timestamp", func(t *testing.T) {
		payload := testPayload()
		stale := time.Now().Add(-10 * time.Minute)

		_, err := verifier.Verify(payload, signedHeader(payload, testSecret, stale))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects future timestamp even when correctly signed", func(t *testing.T) {
		payload := testPayload()
		future := time.Now().Add(10 * time.Minute)

		_, err := verifier.Verify(payload, signedHeader(payload, testSecret, future))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects malformed header", func(t *testing.T) {
		_, err := verifier.Verify(testPayload(), "not-a-signature-header")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("normalizes unparseable payload to signature error", func(t *testing.T) {
		payload := []byte("not json at all")
		_, err := verifier.Verify(payload, signedHeader(payload, testSecret, time.Now()))

		// Whatever went wrong, the caller sees exactly one error kind.
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidSignature))
	})
}

func TestSignatureTimestamp(t *testing.T) {
	ts, ok := signatureTimestamp("t=1700000000,v1=abc")
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), ts)

	_, ok = signatureTimestamp("v1=abc")
	assert.False(t, ok)

	_, ok = signatureTimestamp("t=notanumber,v1=abc")
	assert.False(t, ok)
}
