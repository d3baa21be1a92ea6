package confirmation

import (
	"context"
	"time"
)

// Event types the processor acts on.
const (
	TypeCheckoutCompleted = "checkout.session.completed"
	TypePaymentSucceeded  = "payment_intent.succeeded"
)

// PaymentStatusPaid is the checkout payment status that settles a debt.
const PaymentStatusPaid = "paid"

// Event is a verified provider event reduced to the fields we use.
type Event struct {
	ID            string
	Type          string
	Created       time.Time
	Metadata      map[string]string
	PaymentStatus string // checkout sessions only
	Reference     string // payment intent id, or the session id when absent
	CustomerEmail string
}

// Verifier authenticates a raw payload against its signature header and
// decodes it. Failures must be classified as apperr.Authentication.
type Verifier interface {
	Verify(payload []byte, signature string) (*Event, error)
}

// Ledger remembers event ids that were fully applied. It only lets
// redeliveries skip the store; correctness never depends on it.
type Ledger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Outcome reports how an event was handled.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeIgnored Outcome = "ignored"
)
