package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wreckyard/checkout/pkg/errors"
)

func makeResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponseError_StructuredNotFound(t *testing.T) {
	resp := makeResponse(http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"rate not found"}}`)

	err := ParseResponseError(resp, "rates")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Contains(t, err.Error(), "rates")
}

func TestParseResponseError_StructuredBadRequest(t *testing.T) {
	resp := makeResponse(http.StatusBadRequest, `{"error":{"code":"INVALID_INPUT","message":"postcode required"}}`)

	err := ParseResponseError(resp, "rates")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "postcode required")
}

func TestParseResponseError_StructuredConflict(t *testing.T) {
	resp := makeResponse(http.StatusConflict, `{"error":{"code":"CONFLICT","message":"intent already captured"}}`)

	err := ParseResponseError(resp, "payments")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestParseResponseError_StructuredUnprocessable(t *testing.T) {
	resp := makeResponse(http.StatusUnprocessableEntity, `{"error":{"code":"PAYMENT_FAILED","message":"card declined"}}`)

	err := ParseResponseError(resp, "payments")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPaymentFailed))
}

func TestParseResponseError_StructuredServiceUnavailable(t *testing.T) {
	resp := makeResponse(http.StatusServiceUnavailable, `{"error":{"code":"SERVICE_UNAVAILABLE","message":"maintenance"}}`)

	err := ParseResponseError(resp, "orders")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
}

func TestParseResponseError_ServerErrorKeepsDetail(t *testing.T) {
	resp := makeResponse(http.StatusInternalServerError, `{"error":{"code":"INTERNAL_ERROR","message":"db down"}}`)

	err := ParseResponseError(resp, "orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders")
	assert.Contains(t, err.Error(), "db down")
}

func TestParseResponseError_UnstructuredBody(t *testing.T) {
	resp := makeResponse(http.StatusBadGateway, "upstream timeout")

	err := ParseResponseError(resp, "rates")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}
