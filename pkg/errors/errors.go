package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for the broad failure categories the service deals in.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
	ErrServiceUnavail  = errors.New("service unavailable")
	ErrPaymentFailed   = errors.New("payment failed")
	ErrUnresolved      = errors.New("unresolvable items")
	ErrSupportRequired = errors.New("support required")
)

// AppError is a structured application error with an HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// PaymentFailed creates a 422 error for a payment authorization or capture failure.
func PaymentFailed(message string) *AppError {
	return &AppError{
		Code:    "PAYMENT_FAILED",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrPaymentFailed,
	}
}

// UnresolvedItems creates a 422 error naming every cart line that could not be
// sized for shipping. Quoting and payment creation are blocked until the user
// edits the cart.
func UnresolvedItems(names []string) *AppError {
	return &AppError{
		Code:    "UNRESOLVED_ITEMS",
		Message: fmt.Sprintf("cannot determine shipping dimensions for: %s", strings.Join(names, ", ")),
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrUnresolved,
	}
}

// RateUnavailable creates a 502 error for a failed or empty shipping quote.
// The condition is retryable once the address is corrected.
func RateUnavailable(message string) *AppError {
	return &AppError{
		Code:    "RATE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     ErrServiceUnavail,
	}
}

// SupportRequired creates a 500 error for the one non-recoverable case: a
// payment was captured but no order could be recorded. The payment id is
// embedded so the customer can quote it to support.
func SupportRequired(paymentID string) *AppError {
	return &AppError{
		Code:    "SUPPORT_REQUIRED",
		Message: fmt.Sprintf("your payment %s was received but the order could not be recorded; please contact support with this payment id", paymentID),
		Status:  http.StatusInternalServerError,
		Err:     ErrSupportRequired,
	}
}

// Wrap adds context to an error while keeping the chain intact.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrPaymentFailed), errors.Is(err, ErrUnresolved):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
