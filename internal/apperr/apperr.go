// Package apperr defines the error taxonomy shared by all request-handling
// code. Each error carries the HTTP status it maps to; ledger soft-failures
// are deliberately not part of this taxonomy because they are reported as
// values inside response payloads, never returned as errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an application error with an HTTP status.
type Error struct {
	Code    int
	Kind    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Validation reports malformed or missing input. Fails fast, before any
// side effect.
func Validation(format string, args ...any) *Error {
	return &Error{Code: http.StatusBadRequest, Kind: "validation", Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a duplicate content key on ingestion.
func Conflict(format string, args ...any) *Error {
	return &Error{Code: http.StatusConflict, Kind: "conflict", Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown resource id.
func NotFound(resource string) *Error {
	return &Error{Code: http.StatusNotFound, Kind: "not_found", Message: resource + " not found"}
}

// InsufficientCredit reports a settlement precondition failure.
func InsufficientCredit(owner string) *Error {
	return &Error{Code: http.StatusPaymentRequired, Kind: "insufficient_credit",
		Message: "insufficient credit balance for " + owner}
}

// LedgerUnavailable reports a ledger outage on a call the workflow cannot
// proceed without (the settlement debit). Retryable by the caller.
func LedgerUnavailable(cause error) *Error {
	return &Error{Code: http.StatusServiceUnavailable, Kind: "ledger_unavailable",
		Message: "ledger unavailable", cause: cause}
}

// RateLimited reports that the caller exceeded its request quota.
func RateLimited() *Error {
	return &Error{Code: http.StatusTooManyRequests, Kind: "rate_limited", Message: "too many requests"}
}

// Internal wraps an unexpected fault. The cause is kept for logs; the
// message exposed to callers stays generic.
func Internal(cause error) *Error {
	return &Error{Code: http.StatusInternalServerError, Kind: "internal",
		Message: "internal error", cause: cause}
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// Status returns the HTTP status for err. Unrecognized errors map to 500.
func Status(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return http.StatusInternalServerError
}
