package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// ErrInvalidSignature is the single failure value for every verification
// problem: missing header, wrong secret, tampered payload, stale or forged
// timestamp, or a payload too malformed to check. The boundary layer maps it
// to one uniform rejection regardless of the precise cause.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

// futureTolerance bounds how far ahead of our clock a signature timestamp
// may claim to be. The stripe-go webhook package only rejects timestamps
// that are too far in the past, so forged future timestamps need this
// additional guard.
const futureTolerance = 300 * time.Second

// SignatureVerifier validates the authenticity and freshness of inbound
// Stripe webhook payloads using the shared webhook secret.
type SignatureVerifier struct {
	secret string
}

// NewSignatureVerifier creates a verifier for the given webhook secret
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: secret}
}

// Verify checks the Stripe-Signature header against the raw payload and
// returns the parsed event. The header's v1 signatures are HMAC-SHA256 over
// "{timestamp}.{payload}" and compared in constant time by the underlying
// library; a header carrying several v1 values is accepted if any matches.
func (v *SignatureVerifier) Verify(payload []byte, signatureHeader string) (*stripe.Event, error) {
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, ErrInvalidSignature
	}

	if ts, ok := signatureTimestamp(signatureHeader); ok {
		if time.Unix(ts, 0).After(time.Now().Add(futureTolerance)) {
			return nil, fmt.Errorf("%w: timestamp too far in the future", ErrInvalidSignature)
		}
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return &event, nil
}

// signatureTimestamp extracts the t= component of a Stripe-Signature header
func signatureTimestamp(header string) (int64, bool) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 || kv[0] != "t" {
			continue
		}
		ts, err := strconv.ParseInt(kv[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return ts, true
	}
	return 0, false
}
