package payment

import "context"

// CheckoutRequest is everything the provider needs to open a session.
type CheckoutRequest struct {
	AmountMinor   int64
	Currency      string
	ProductName   string
	Description   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Session is the provider's answer to a CheckoutRequest.
type Session struct {
	ID  string
	URL string
}

// Gateway opens checkout sessions with a payment provider. Failures must
// be classified as apperr.ExternalService with a provider sub-kind.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
}
