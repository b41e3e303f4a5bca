package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeRateLimit         Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Reason is the machine-readable error name surfaced next to the category code.
type Reason string

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
	CodeUnauthorized:      {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
	CodeForbidden:         {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	CodeNotFound:          {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	CodeConflict:          {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", DetailsAllowed: true},
	CodeInvalidTransition: {HTTPStatus: http.StatusBadRequest, PublicMessage: "status transition not allowed", DetailsAllowed: true},
	CodeRateLimit:         {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
	CodeInternal:          {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:        {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error carries a category code, an optional reason and a client safe
// message. Sentinels are never mutated: WithDetails and WithReason on a
// sentinel return a copy.
type Error struct {
	code     Code
	reason   Reason
	message  string
	details  any
	cause    error
	sentinel bool
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// Sentinel builds a reasoned error meant to be compared with errors.Is.
func Sentinel(code Code, reason Reason, message string) *Error {
	return &Error{code: code, reason: reason, message: message, sentinel: true}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Reason() Reason {
	if e == nil {
		return ""
	}
	return e.reason
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

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	target := e.mutable()
	target.details = details
	return target
}

func (e *Error) WithReason(reason Reason) *Error {
	if e == nil {
		return nil
	}
	target := e.mutable()
	target.reason = reason
	return target
}

// WithCause records err as the wrapped cause, reachable through errors.Is/As.
func (e *Error) WithCause(err error) *Error {
	if e == nil {
		return nil
	}
	target := e.mutable()
	target.cause = err
	return target
}

// Derive copies e with a more specific message, keeping code and reason.
func (e *Error) Derive(message string) *Error {
	if e == nil {
		return nil
	}
	return &Error{code: e.code, reason: e.reason, message: message}
}

func (e *Error) mutable() *Error {
	if !e.sentinel {
		return e
	}
	clone := *e
	clone.sentinel = false
	return &clone
}

// Error includes the wrapped cause for logs; clients only see Message.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches two errors carrying the same non-empty reason.
func (e *Error) Is(target error) bool {
	if e == nil || e.reason == "" {
		return false
	}
	var other *Error
	if !stdErrors.As(target, &other) || other == nil {
		return false
	}
	return other.reason == e.reason
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
