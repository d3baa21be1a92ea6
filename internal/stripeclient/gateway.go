package stripeclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/service/payment"
)

var _ payment.Gateway = (*Gateway)(nil)

// Gateway creates Stripe Checkout sessions.
type Gateway struct {
	create func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewGateway creates a gateway authenticated with secretKey.
func NewGateway(secretKey string) *Gateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Gateway{create: sc.CheckoutSessions.New}
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(req.ProductName),
					Description: stripe.String(req.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:    stripe.String(req.SuccessURL),
		CancelURL:     stripe.String(req.CancelURL),
		CustomerEmail: stripe.String(req.CustomerEmail),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := g.create(params)
	if err != nil {
		return nil, classify(err)
	}
	return &payment.Session{ID: sess.ID, URL: sess.URL}, nil
}

// classify maps Stripe failures onto provider sub-kinds. Messages shown
// to callers are fixed strings; Stripe's text stays in the wrapped cause.
func classify(err error) error {
	const op = "stripe.CreateCheckoutSession"
	var se *stripe.Error
	if !errors.As(err, &se) {
		return apperr.External(apperr.Unavailable, op, err, "payment provider unreachable, please try again")
	}
	switch {
	case se.Type == stripe.ErrorTypeCard:
		return apperr.External(apperr.CardDeclined, op, err, "card was declined")
	case se.HTTPStatusCode == http.StatusTooManyRequests || se.Code == stripe.ErrorCodeRateLimit:
		return apperr.External(apperr.RateLimited, op, err, "too many payment requests, please retry shortly")
	case se.Type == stripe.ErrorTypeInvalidRequest:
		return apperr.External(apperr.InvalidRequest, op, err, "payment request rejected by provider")
	case se.HTTPStatusCode == http.StatusUnauthorized || se.HTTPStatusCode == http.StatusForbidden:
		return apperr.External(apperr.ProviderError, op, err, "payment provider misconfigured")
	default:
		return apperr.External(apperr.ProviderError, op, err, "payment provider error")
	}
}
