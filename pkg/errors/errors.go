// Package errors carries a machine-readable Code on every error that can
// reach an HTTP response. The code decides the status, whether the message is
// shown to the caller and whether the caller may retry.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// CodeProcessor marks a rejection returned by the payment processor. The
	// processor's own message is surfaced to the caller unchanged.
	CodeProcessor Code = "PROCESSOR_ERROR"
	// CodeSettlementConflict marks an observed payment whose amount or currency
	// disagrees with the order it claims to settle.
	CodeSettlementConflict Code = "SETTLEMENT_CONFLICT"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:         {http.StatusBadRequest, false, "validation failed", true},
	CodeUnauthorized:       {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:          {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:           {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:           {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict:      {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeIdempotency:        {http.StatusConflict, false, "idempotency key reused", true},
	CodeRateLimit:          {http.StatusTooManyRequests, true, "rate limit exceeded", false},
	CodeInternal:           {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:         {http.StatusServiceUnavailable, true, "dependency unavailable", true},
	CodeProcessor:          {http.StatusBadGateway, false, "payment processor rejected the request", true},
	CodeSettlementConflict: {http.StatusConflict, false, "payment does not match order", true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost coded error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// IsRetryable reports whether the caller may repeat the operation. Uncoded
// errors count as internal and so are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(As(err).Code()).Retryable
}
