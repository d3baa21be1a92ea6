// Package stripeclient adapts Stripe Checkout and Stripe webhooks to the
// payment.Gateway and confirmation.Verifier interfaces.
package stripeclient
