// Package apperr defines the storefront error types and the error handler
// that turns failures into user-facing notifications.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard errors. Typed errors below wrap one of these so callers can use
// errors.Is regardless of where the failure came from.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInternal           = errors.New("internal error")
	ErrNetwork            = errors.New("network error")

	// ErrNotAuthenticated is returned by operations that need a session
	// token when none is held. No request is sent in that case.
	ErrNotAuthenticated error = notAuthenticatedError{}
)

type notAuthenticatedError struct{}

func (notAuthenticatedError) Error() string { return "Not authenticated" }
func (notAuthenticatedError) Unwrap() error { return ErrUnauthorized }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFoundError builds a NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError reports invalid caller input.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RequiredError reports a missing required field.
func RequiredError(field string) *ValidationError {
	return NewValidationError(field, "is required")
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// APIError is the failure returned by the domain facades. Code carries the
// HTTP status of the failed call, or 0 when no response was received.
type APIError struct {
	Code    int
	Message string
}

// NewAPIError builds an APIError.
func NewAPIError(code int, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

func (e *APIError) Error() string { return e.Message }

// Is maps the status code onto the standard errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Code == 0
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	case ErrForbidden:
		return e.Code == http.StatusForbidden
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrInvalidInput:
		return e.Code == http.StatusBadRequest || e.Code == http.StatusUnprocessableEntity
	case ErrAlreadyExists:
		return e.Code == http.StatusConflict
	case ErrServiceUnavailable:
		return e.Code == http.StatusServiceUnavailable
	case ErrInternal:
		return e.Code >= 500
	}
	return false
}

// ServiceError wraps a failure with the component and operation it came from.
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

// WrapServiceError wraps err; a nil err stays nil.
func WrapServiceError(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Op: op, Err: err}
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidationError reports whether err is an input validation failure.
func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// CodeOf returns the status code carried by err. The boolean is false when
// err carries no code at all.
func CodeOf(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return http.StatusNotFound, true
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, true
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized, true
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden, true
	}
	return 0, false
}
