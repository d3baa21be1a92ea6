package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/debt-recovery/internal/domain"
	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/pkg/httputil"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
	"github.com/ignite/debt-recovery/internal/poller"
	"github.com/ignite/debt-recovery/internal/service/debts"
)

// GetDebt returns the debt registered for an email.
//
//	GET /api/debts/{email}
func (h *Handlers) GetDebt(w http.ResponseWriter, r *http.Request) {
	d, err := h.debts.Get(r.Context(), debts.Lookup{Email: chi.URLParam(r, "email")})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.OK(w, d)
}

// AwaitResponse is the body of the settlement wait endpoint.
type AwaitResponse struct {
	Settled bool         `json:"settled"`
	Debt    *domain.Debt `json:"debt,omitempty"`
}

// AwaitSettlement blocks until the debt is PAID or the poll deadline
// passes. A client disconnect ends the wait.
//
//	GET /api/debts/{email}/await
func (h *Handlers) AwaitSettlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.debts.Get(ctx, debts.Lookup{Email: chi.URLParam(r, "email")})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, settled, err := h.poller.Watch(ctx, d.ID, nil)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	switch result {
	case poller.ResultSettled:
		httputil.OK(w, AwaitResponse{Settled: true, Debt: settled})
	case poller.ResultCancelled:
		// client is gone
		logger.Debug("settlement wait cancelled", "debt_id", d.ID)
	default:
		httputil.Accepted(w, AwaitResponse{Settled: false})
	}
}

// ListDebts is the admin listing with recent payment history.
//
//	GET /api/admin/debts?page=&limit=&search=&status=&sortBy=&sortOrder=
func (h *Handlers) ListDebts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ParsePagination(r, 10, 100)

	sortOrder := strings.ToLower(q.Get("sortOrder"))
	if sortOrder != "" && sortOrder != "asc" && sortOrder != "desc" {
		httputil.WriteError(w, apperr.Errorf(apperr.Validation, "api.ListDebts", "invalid sortOrder %q", sortOrder))
		return
	}

	filter := debts.ListFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Status: domain.Status(strings.ToUpper(q.Get("status"))),
		SortBy: debts.SortField(q.Get("sortBy")),
		Desc:   sortOrder != "asc",
		Limit:  params.Limit,
	}
	page, err := h.debts.ListWithPayments(r.Context(), filter, params.Page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.OK(w, NewPaginatedResponse(page.Debts, params, int64(page.Total)))
}
