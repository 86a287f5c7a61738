package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the HTTP layer can pick a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindAuthRequired
	KindSubscriptionRequired
	KindRateLimited
	KindUpstreamUnavailable
	KindStoreUnavailable
)

// Stable machine-readable codes returned in the error envelope.
const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeUploadTooLarge       = "UPLOAD_TOO_LARGE"
	CodeEmptyQuestion        = "EMPTY_QUESTION"
	CodeInvalidRating        = "INVALID_RATING"
	CodeInvalidTitle         = "INVALID_TITLE"
	CodeNotFound             = "NOT_FOUND"
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeQueryNotFound        = "QUERY_NOT_FOUND"
	CodeAuthRequired         = "AUTH_REQUIRED"
	CodeSubscriptionRequired = "SUBSCRIPTION_REQUIRED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	CodeStoreUnavailable     = "STORE_UNAVAILABLE"
	CodeInternal             = "INTERNAL"
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindAuthRequired:
		return "auth_required"
	case KindSubscriptionRequired:
		return "subscription_required"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "internal"
	}
}

// Error is the error type returned by services to the HTTP layer.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of e carrying extra envelope details.
func (e *Error) WithDetails(details interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(err error, kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func InvalidInput(code, message string) *Error {
	return New(KindInvalidInput, code, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Upstream(err error, message string) *Error {
	return Wrap(err, KindUpstreamUnavailable, CodeUpstreamUnavailable, message)
}

func Store(err error) *Error {
	return Wrap(err, KindStoreUnavailable, CodeStoreUnavailable, "storage unavailable")
}

// KindOf reports the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a Kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindSubscriptionRequired:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
