package stripeclient

import (
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/service/confirmation"
)

var _ confirmation.Verifier = (*Verifier)(nil)

// Verifier checks Stripe-Signature headers and decodes events.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier creates a verifier for the endpoint signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

// WithTolerance sets the accepted signature age. Non-positive values keep
// the current setting.
func (v *Verifier) WithTolerance(d time.Duration) *Verifier {
	if d > 0 {
		v.tolerance = d
	}
	return v
}

func (v *Verifier) Verify(payload []byte, signature string) (*confirmation.Event, error) {
	const op = "stripe.Verify"
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Authentication, op, err, "webhook signature verification failed")
	}

	out := &confirmation.Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: time.Unix(ev.Created, 0).UTC(),
	}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case confirmation.TypeCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, apperr.Wrap(apperr.Validation, op, err, "malformed checkout session")
		}
		out.Metadata = sess.Metadata
		out.PaymentStatus = string(sess.PaymentStatus)
		out.Reference = sess.ID
		if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
			out.Reference = sess.PaymentIntent.ID
		}
		out.CustomerEmail = sess.CustomerEmail
		if out.CustomerEmail == "" && sess.CustomerDetails != nil {
			out.CustomerEmail = sess.CustomerDetails.Email
		}
	case confirmation.TypePaymentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, apperr.Wrap(apperr.Validation, op, err, "malformed payment intent")
		}
		out.Metadata = pi.Metadata
		out.Reference = pi.ID
		out.CustomerEmail = pi.ReceiptEmail
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out, nil
}
