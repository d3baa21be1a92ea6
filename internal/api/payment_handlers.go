package api

import (
	"io"
	"net/http"

	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/pkg/httputil"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
	"github.com/ignite/debt-recovery/internal/service/payment"
)

// CreatePayment opens a checkout session for a pending debt.
//
//	POST /api/payments/create {"debtId": 1} or {"email": "..."}
func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req payment.IntentRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	intent, err := h.payments.CreateIntent(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.OK(w, intent)
}

// StripeWebhook applies a signed payment event. Applied and ignored
// events are acknowledged with 200; a 5xx asks the sender to retry.
//
//	POST /api/webhooks/stripe
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.StripeWebhook"
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookPayload))
	if err != nil {
		httputil.WriteError(w, apperr.Wrap(apperr.Validation, op, err, "could not read request body"))
		return
	}

	outcome, err := h.processor.Process(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	logger.Debug("webhook handled", "outcome", string(outcome))
	httputil.OK(w, map[string]any{"received": true})
}
