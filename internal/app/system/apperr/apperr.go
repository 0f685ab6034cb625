// Package apperr defines the error taxonomy returned by services and how
// each kind is rendered over HTTP.
//
// Every error carries a machine-stable Reason that clients can switch on,
// a human Message, and the HTTP Status it maps to. Services return the
// package-level values below (or ones built with New) and handlers call
// Write; unexpected faults are wrapped with Internal so their detail is
// logged but never sent to the client.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Kind groups errors by what went wrong, independent of call site.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindInvalidInput    Kind = "invalid_input"
	KindConflict        Kind = "conflict"
	KindRateLimited     Kind = "rate_limited"
	KindInternal        Kind = "internal"
)

// Error is the structured error type passed from services to handlers.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Status  int
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Reason + ": " + e.cause.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on Reason so wrapped copies compare equal to the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

// New builds an error with the default status for its kind.
func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message, Status: statusFor(kind)}
}

// WithStatus returns a copy using a different HTTP status.
func (e *Error) WithStatus(status int) *Error {
	c := *e
	c.Status = status
	return &c
}

// Internal wraps an unexpected fault.
func Internal(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Reason:  "internal",
		Message: "Something went wrong. Please try again.",
		Status:  http.StatusInternalServerError,
		cause:   err,
	}
}

func statusFor(k Kind) int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error, wrapping anything else as Internal.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}

type body struct {
	Error struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error"`
}

// Write renders err as JSON. Internal errors are logged with their cause.
func Write(w http.ResponseWriter, log *zap.Logger, err error) {
	ae := As(err)
	if ae.Kind == KindInternal && log != nil {
		log.Error("request failed", zap.Error(err))
	}
	var b body
	b.Error.Reason = ae.Reason
	b.Error.Message = ae.Message
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.Status)
	_ = json.NewEncoder(w).Encode(b)
}
