// Package apperrors provides the orchestrator's error taxonomy (spec §7):
// ClientError, BackendError, GatewayError, ValidationError, and a
// catch-all Internal wrapper, each carrying the HTTP status an API layer
// should answer with.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the broad category of a ServiceError.
type Code string

const (
	CodeClient     Code = "CLIENT_ERROR"
	CodeNotFound   Code = "NOT_FOUND"
	CodeConflict   Code = "CONFLICT"
	CodeBackend    Code = "BACKEND_ERROR"
	CodeGateway    Code = "GATEWAY_ERROR"
	CodeValidation Code = "VALIDATION_ERROR"
	CodeInternal   Code = "INTERNAL_ERROR"
)

// ServiceError is a structured error with a code, message, and the HTTP
// status an API handler should map it to.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As.
func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value detail and returns the receiver.
func (e *ServiceError) WithDetails(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func newErr(code Code, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

func wrapErr(code Code, message string, status int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Client builds a 400-class error surfaced to the caller verbatim, for
// cases like an invalid run_name, unknown repo, or "no backends
// configured" (spec §7).
func Client(message string) *ServiceError {
	return newErr(CodeClient, message, http.StatusBadRequest)
}

// Clientf builds a Client error with fmt.Sprintf formatting.
func Clientf(format string, args ...any) *ServiceError {
	return Client(fmt.Sprintf(format, args...))
}

// NotFound builds a 404 for a missing resource.
func NotFound(resource, id string) *ServiceError {
	return newErr(CodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

// Conflict builds a 409, e.g. a duplicate pool or run name collision that
// the caller needs to resolve explicitly.
func Conflict(message string) *ServiceError {
	return newErr(CodeConflict, message, http.StatusConflict)
}

// Backend wraps a recoverable per-offer failure reported by a Compute
// adapter. It is never surfaced directly; the caller logs it and tries
// the next offer (spec §4.6, §7). Only once all offers are exhausted is
// it folded into a Client error.
func Backend(backendType, operation string, err error) *ServiceError {
	return wrapErr(CodeBackend, "backend operation failed", http.StatusBadGateway, err).
		WithDetails("backend", backendType).
		WithDetails("operation", operation)
}

// Gateway wraps a reverse-proxy configuration or certificate failure
// (spec §4.7, §7). It always surfaces to the caller of the gateway
// operation that produced it.
func Gateway(message string, err error) *ServiceError {
	return wrapErr(CodeGateway, message, http.StatusBadGateway, err)
}

// Validation marks a persisted row that failed to decode; callers log it
// at debug with a count and silently exclude the row (spec §7).
func Validation(resource, id string, err error) *ServiceError {
	return wrapErr(CodeValidation, "row failed validation", http.StatusInternalServerError, err).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

// Internal wraps an unexpected failure (transaction error, unknown
// state). Reconciler callers log it and continue with the next item.
func Internal(message string, err error) *ServiceError {
	return wrapErr(CodeInternal, message, http.StatusInternalServerError, err)
}

// IsServiceError reports whether err (or something it wraps) is a
// *ServiceError.
func IsServiceError(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr)
}

// As extracts a *ServiceError from err's chain, or nil.
func As(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// HTTPStatus returns the status code for err, defaulting to 500 when err
// is not a *ServiceError.
func HTTPStatus(err error) int {
	if svcErr := As(err); svcErr != nil {
		return svcErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsBackendError reports whether err represents a recoverable per-offer
// backend failure, the signal instance creation's fallback loop watches
// for (spec §4.6 step 6).
func IsBackendError(err error) bool {
	svcErr := As(err)
	return svcErr != nil && svcErr.Code == CodeBackend
}

// IsNotFound reports whether err represents a missing resource, the
// signal get-or-create callers (pools, runs) watch for before creating
// the row themselves.
func IsNotFound(err error) bool {
	svcErr := As(err)
	return svcErr != nil && svcErr.Code == CodeNotFound
}

// ErrUnsupportedCapability is returned by a backend adapter when it does
// not implement a requested capability (spec §4.6 step 6, §7
// NotImplemented). It is treated identically to a Backend error by
// callers iterating offers.
var ErrUnsupportedCapability = errors.New("backend does not support this capability")
