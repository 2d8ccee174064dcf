package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreria-lumen/backoffice/internal/shared"
)

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{shared.NewError(shared.ErrNotFound, "PRODUCT_NOT_FOUND", "missing"), http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{shared.NewError(shared.ErrInvalidArgument, "INVALID_QUANTITY", "bad"), http.StatusBadRequest, "INVALID_QUANTITY"},
		{shared.NewError(shared.ErrInsufficientStock, "INSUFFICIENT_STOCK", "short"), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{shared.NewError(shared.ErrAlreadyClosed, "RESERVATION_ALREADY_CLOSED", "closed"), http.StatusConflict, "RESERVATION_ALREADY_CLOSED"},
		{shared.NewError(shared.ErrCashierRequired, "CASHIER_REQUIRED", "none"), http.StatusUnprocessableEntity, "CASHIER_REQUIRED"},
		{shared.ErrNoSession, http.StatusUnauthorized, "AUTH_REQUIRED"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Code)
		assert.Equal(t, tc.status, body.Status)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: connection reset"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
	assert.True(t, IsInternal(errors.New("boom")))
}

func TestDecodeValidates(t *testing.T) {
	type payload struct {
		DNI   string `json:"dni" validate:"required,dni"`
		Phone string `json:"phone" validate:"required,phone"`
		Qty   int    `json:"quantity" validate:"min=1"`
	}
	v := NewValidator()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"dni":"123","phone":"+54 11 5555-0000","quantity":0}`))
	var p payload
	err := Decode(req, v, &p)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "dni")
	assert.Contains(t, err.Error(), "quantity")
	assert.NotContains(t, err.Error(), "phone")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"dni":"12345678","phone":"1155550000","quantity":2}`))
	require.NoError(t, Decode(req, v, &p))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":true}`))
	assert.Equal(t, "MALFORMED_BODY", shared.CodeOf(Decode(req, v, &p)))
}
