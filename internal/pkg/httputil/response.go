package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/debt-recovery/internal/pkg/apperr"
	"github.com/ignite/debt-recovery/internal/pkg/logger"
)

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes a JSON response with the given status code. The data is
// serialized and Content-Type is set automatically.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("httputil: JSON encode error", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Accepted writes a 202 response with the given data.
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, data)
}

// Error writes a JSON error response. Use for client errors (4xx).
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// InternalError writes a 500 error. Logs the real error but returns a
// generic message to the client (never leak internals).
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("httputil: internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal server error")
}

// StatusFor maps a classified error to its HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.Validation, apperr.Authentication:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict, apperr.Duplicate:
		return http.StatusConflict
	case apperr.ExternalService:
		switch apperr.ProviderOf(err) {
		case apperr.CardDeclined:
			return http.StatusPaymentRequired
		case apperr.RateLimited:
			return http.StatusTooManyRequests
		case apperr.InvalidRequest:
			return http.StatusBadRequest
		case apperr.ProviderError:
			return http.StatusInternalServerError
		default:
			return http.StatusServiceUnavailable
		}
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders a classified error. Server-side failures are logged
// with their cause and rendered with a generic message.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	kind := apperr.KindOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", string(kind), "error", err)
		msg := "internal server error"
		if kind == apperr.ExternalService {
			msg = apperr.MessageOf(err)
		}
		JSON(w, status, ErrorResponse{Error: msg, Code: string(kind)})
		return
	}
	if kind == apperr.ExternalService {
		logger.Warn("provider rejected request", "provider_kind", string(apperr.ProviderOf(err)), "error", err)
	}
	resp := ErrorResponse{Error: apperr.MessageOf(err), Code: string(kind)}
	if p := apperr.ProviderOf(err); p != "" {
		resp.Details = map[string]string{"provider": string(p)}
	}
	JSON(w, status, resp)
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 response if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
