// Package errors defines the gateway error taxonomy.
//
// Every failure that crosses a package boundary is a *ServiceError carrying a
// stable code and the HTTP status it maps to. Raw transport errors from
// backend calls never leave the backend package; they are wrapped here first.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class in the gateway taxonomy.
type Code string

const (
	CodeUnauthorized              Code = "UNAUTHORIZED"
	CodeForbidden                 Code = "FORBIDDEN"
	CodeUpstreamUnavailable       Code = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamRejected          Code = "UPSTREAM_REJECTED"
	CodeValidationFailed          Code = "VALIDATION_FAILED"
	CodeEmptyCart                 Code = "EMPTY_CART"
	CodePaymentDeclined           Code = "PAYMENT_DECLINED"
	CodeOrderCreationAfterPayment Code = "ORDER_CREATION_AFTER_PAYMENT"
	CodeUnknown                   Code = "UNKNOWN"
)

// ServiceError is the uniform error value used across the gateway.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is makes two ServiceErrors comparable by code via errors.Is.
func (e *ServiceError) Is(target error) bool {
	var se *ServiceError
	if errors.As(target, &se) {
		return e.Code == se.Code
	}
	return false
}

// WithDetails attaches a key/value pair for logging and JSON responses.
func (e *ServiceError) WithDetails(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func newError(code Code, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Unauthorized reports a request with no authenticated session.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// Forbidden reports an authenticated session with an insufficient role.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "insufficient permissions"
	}
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// UpstreamUnavailable reports a connection-level failure reaching a backend.
func UpstreamUnavailable(service string, err error) *ServiceError {
	return newError(CodeUpstreamUnavailable, http.StatusInternalServerError,
		fmt.Sprintf("%s service unavailable", service), err)
}

// UpstreamRejected reports a non-2xx backend response. The message is the
// upstream-supplied error when one was present.
func UpstreamRejected(service, message string, status int) *ServiceError {
	if message == "" {
		message = fmt.Sprintf("%s service rejected the request", service)
	}
	e := newError(CodeUpstreamRejected, http.StatusInternalServerError, message, nil)
	return e.WithDetails("upstream_status", status)
}

// ValidationFailed reports missing or malformed request fields, detected
// locally without contacting any backend.
func ValidationFailed(message string) *ServiceError {
	return newError(CodeValidationFailed, http.StatusBadRequest, message, nil)
}

// EmptyCart reports a checkout attempted with no cart items.
func EmptyCart() *ServiceError {
	return newError(CodeEmptyCart, http.StatusBadRequest, "cart is empty", nil)
}

// PaymentDeclined reports a non-success payment authorization. The cart is
// left untouched so the user can retry.
func PaymentDeclined(message string) *ServiceError {
	if message == "" {
		message = "payment was declined"
	}
	return newError(CodePaymentDeclined, http.StatusBadRequest, message, nil)
}

// OrderCreationAfterPayment reports the critical checkout partial failure:
// payment settled but the order record could not be created. It must never be
// collapsed into a generic error; operators reconcile these out-of-band.
func OrderCreationAfterPayment(err error) *ServiceError {
	return newError(CodeOrderCreationAfterPayment, http.StatusInternalServerError,
		"payment succeeded but order creation failed; flagged for reconciliation", err)
}

// Unknown wraps an unexpected failure.
func Unknown(message string, err error) *ServiceError {
	if message == "" {
		message = "internal error"
	}
	return newError(CodeUnknown, http.StatusInternalServerError, message, err)
}

// GetServiceError extracts a *ServiceError from err, or nil if none is in the
// chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// HTTPStatus returns the status code an error maps to, defaulting to 500.
func HTTPStatus(err error) int {
	if se := GetServiceError(err); se != nil {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
