// Package apperror defines the typed errors returned by the service
// layer. Each error carries the HTTP status the central error handler
// should answer with.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error codes
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeBadRequest        = "BAD_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeGateway           = "PAYMENT_GATEWAY_ERROR"
	CodePayPalCredentials = "PAYPAL_CREDENTIALS"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type AppError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Status  int          `json:"status"`
	Fields  []FieldError `json:"errors,omitempty"`
	Err     error        `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func NotFound(resource string) *AppError {
	return &AppError{Code: CodeNotFound, Message: resource + " not found", Status: http.StatusNotFound}
}

func BadRequest(message string) *AppError {
	return &AppError{Code: CodeBadRequest, Message: message, Status: http.StatusBadRequest}
}

// Validation builds a 400 error enumerating the offending fields.
func Validation(fields ...FieldError) *AppError {
	return &AppError{Code: CodeValidation, Message: "validation failed", Status: http.StatusBadRequest, Fields: fields}
}

func Unauthorized(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message, Status: http.StatusForbidden}
}

func Conflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message, Status: http.StatusConflict}
}

func TooManyRequests(message string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: message, Status: http.StatusTooManyRequests}
}

// Internal wraps an unexpected error. The cause is preserved for
// logging; clients only see the generic message.
func Internal(message string, err error) *AppError {
	ae := &AppError{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError, Err: err}
	if err != nil {
		ae.Details = err.Error()
	}
	return ae
}

// Gateway reports a payment provider failure with the provider's
// own status code and message. Statuses outside 4xx/5xx become 502.
func Gateway(status int, message string) *AppError {
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	return &AppError{Code: CodeGateway, Message: message, Status: status}
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// StatusOf returns the HTTP status hint of err, 500 when untyped.
func StatusOf(err error) int {
	if ae, ok := As(err); ok {
		return ae.Status
	}
	return http.StatusInternalServerError
}
