package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrConflict, ErrInternal,
		ErrServiceUnavail, ErrPaymentFailed, ErrUnresolved, ErrSupportRequired,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("db connection lost")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "something broke")
	assert.Contains(t, appErr.Error(), "db connection lost")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "cart not found"}
	assert.Equal(t, "NOT_FOUND: cart not found", appErr.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "nope", Err: ErrNotFound}
	assert.True(t, errors.Is(appErr, ErrNotFound))
}

func TestAppError_Unwrap_Nil(t *testing.T) {
	appErr := &AppError{Code: "TEST", Message: "test"}
	assert.Nil(t, appErr.Unwrap())
}

// --- Constructor functions ---

func TestNotFound(t *testing.T) {
	err := NotFound("cart", "user-42")
	require.NotNil(t, err)
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Contains(t, err.Message, "cart")
	assert.Contains(t, err.Message, "user-42")
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("quantity must be positive")
	require.NotNil(t, err)
	assert.Equal(t, "INVALID_INPUT", err.Code)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestConflict(t *testing.T) {
	err := Conflict("no quoted rates to select from")
	require.NotNil(t, err)
	assert.Equal(t, "CONFLICT", err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestUnresolvedItems(t *testing.T) {
	err := UnresolvedItems([]string{"Mystery Bracket", "Odd Shroud"})
	require.NotNil(t, err)
	assert.Equal(t, "UNRESOLVED_ITEMS", err.Code)
	assert.Contains(t, err.Message, "Mystery Bracket")
	assert.Contains(t, err.Message, "Odd Shroud")
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.True(t, errors.Is(err, ErrUnresolved))
}

func TestRateUnavailable(t *testing.T) {
	err := RateUnavailable("rating call failed")
	require.NotNil(t, err)
	assert.Equal(t, "RATE_UNAVAILABLE", err.Code)
	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.True(t, errors.Is(err, ErrServiceUnavail))
}

func TestSupportRequired(t *testing.T) {
	err := SupportRequired("pay-777")
	require.NotNil(t, err)
	assert.Equal(t, "SUPPORT_REQUIRED", err.Code)
	assert.Contains(t, err.Message, "pay-777")
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.True(t, errors.Is(err, ErrSupportRequired))
}

func TestPaymentFailed(t *testing.T) {
	err := PaymentFailed("card declined")
	require.NotNil(t, err)
	assert.Equal(t, "PAYMENT_FAILED", err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.True(t, errors.Is(err, ErrPaymentFailed))
}

// --- Wrap and status mapping ---

func TestWrap_PreservesChain(t *testing.T) {
	wrapped := Wrap(ErrConflict, "selecting rate")
	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.Contains(t, wrapped.Error(), "selecting rate")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", NotFound("cart", "x"), http.StatusNotFound},
		{"wrapped sentinel not found", Wrap(ErrNotFound, "loading"), http.StatusNotFound},
		{"wrapped sentinel invalid", Wrap(ErrInvalidInput, "parsing"), http.StatusBadRequest},
		{"wrapped sentinel conflict", Wrap(ErrConflict, "saving"), http.StatusConflict},
		{"unresolved items", Wrap(ErrUnresolved, "quoting"), http.StatusUnprocessableEntity},
		{"service unavailable", Wrap(ErrServiceUnavail, "calling"), http.StatusServiceUnavailable},
		{"unknown error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
