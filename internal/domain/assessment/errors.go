package assessment

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable machine-readable error code clients branch on.
type Kind string

const (
	KindInvalidBody           Kind = "invalid_body"
	KindInvalidField          Kind = "invalid_field"
	KindInvalidFormat         Kind = "invalid_format"
	KindInvalidBase64         Kind = "invalid_base64"
	KindInvalidSignature      Kind = "invalid_signature"
	KindTypeMismatch          Kind = "type_mismatch"
	KindStructureInvalid      Kind = "structure_invalid"
	KindTooLarge              Kind = "too_large"
	KindAIUnavailable         Kind = "ai_unavailable"
	KindAITimeout             Kind = "ai_timeout"
	KindRateLimited           Kind = "rate_limited"
	KindInsufficientResources Kind = "insufficient_resources"
	KindUnexpected            Kind = "unexpected"
)

// Error is the taxonomy error every failure is converted into before it
// crosses the HTTP boundary. Message is a curated, stable string; Details
// carries the human explanation. Raw internal error text never leaves the
// process beyond Details.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a taxonomy error with an explicit status.
func NewError(kind Kind, status int, message, details string) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Details: details}
}

// Invalid builds a 400-class validation error. Validation failures are
// deterministic, so they are terminal and never retried.
func Invalid(kind Kind, message, details string) *Error {
	return &Error{Kind: kind, Status: http.StatusBadRequest, Message: message, Details: details}
}

// TooLarge builds the 413 size-ceiling error.
func TooLarge(details string) *Error {
	return &Error{Kind: KindTooLarge, Status: http.StatusRequestEntityTooLarge, Message: "Image too large", Details: details}
}

// Timeout builds the per-stage deadline error (maps to 504).
func Timeout(stage string) *Error {
	return &Error{
		Kind:    KindAITimeout,
		Status:  http.StatusGatewayTimeout,
		Message: "Request timeout",
		Details: fmt.Sprintf("%s stage exceeded its deadline", stage),
	}
}

// Unavailable signals a missing or misconfigured provider binding (503).
func Unavailable(details string) *Error {
	return &Error{Kind: KindAIUnavailable, Status: http.StatusServiceUnavailable, Message: "AI service unavailable", Details: details}
}

// RateLimited signals an upstream or local limiter trip (429).
func RateLimited(details string) *Error {
	return &Error{Kind: KindRateLimited, Status: http.StatusTooManyRequests, Message: "Rate limit exceeded", Details: details}
}

// InsufficientResources signals provider memory/size exhaustion (507).
func InsufficientResources(details string) *Error {
	return &Error{Kind: KindInsufficientResources, Status: http.StatusInsufficientStorage, Message: "Insufficient resources", Details: details}
}

// Unexpected wraps an uncategorized failure as a 500.
func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Status: http.StatusInternalServerError, Message: "Internal error", Details: "the request could not be processed", Err: err}
}

// AsError converts any error into a taxonomy error, wrapping unknown ones
// as unexpected.
func AsError(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Unexpected(err)
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
