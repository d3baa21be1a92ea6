// Package apperr defines the closed set of error kinds shared by every
// service in the module. Services classify failures with a Kind; only the
// HTTP layer translates kinds into status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	Validation      Kind = "validation"
	NotFound        Kind = "not_found"
	Conflict        Kind = "conflict"
	Authentication  Kind = "authentication"
	Duplicate       Kind = "duplicate"
	ExternalService Kind = "external_service"
	Persistence     Kind = "persistence"
)

// Provider narrows an ExternalService failure.
type Provider string

const (
	CardDeclined   Provider = "card_declined"
	RateLimited    Provider = "rate_limited"
	InvalidRequest Provider = "invalid_request"
	Unavailable    Provider = "unavailable"
	ProviderError  Provider = "provider_error"
)

// Error is a classified failure. Message is safe to show to a caller;
// Err carries the technical cause and is never rendered to clients.
type Error struct {
	Kind     Kind
	Provider Provider
	Op       string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, op string, err error, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// External builds an ExternalService error with a provider sub-kind.
func External(p Provider, op string, err error, message string) *Error {
	return &Error{Kind: ExternalService, Provider: p, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of the first classified error in the chain.
// Unclassified errors report Persistence, the most conservative kind.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Persistence
}

// ProviderOf returns the ExternalService sub-kind, or "" when absent.
func ProviderOf(err error) Provider {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Provider
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return "internal error"
}
