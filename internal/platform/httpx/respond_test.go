package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		detail string
	}{
		{fmt.Errorf("%w: session", ErrNotFound), http.StatusNotFound, "resource not found: session"},
		{fmt.Errorf("%w: busy", ErrConflict), http.StatusConflict, "conflict: busy"},
		{fmt.Errorf("%w: qty", ErrValidation), http.StatusUnprocessableEntity, "validation failed: qty"},
		{ErrBadRequest, http.StatusBadRequest, "malformed request"},
		{fmt.Errorf("%w: store down", ErrUpstream), http.StatusBadGateway, "upstream failure: store down"},
		{ErrUnavailable, http.StatusServiceUnavailable, "service unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.status, body.Status)
		require.Equal(t, tc.detail, body.Detail)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	var p payload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}`))
	require.NoError(t, DecodeJSON(req, &p))
	require.Equal(t, "ok", p.Name)

	p = payload{Name: "kept"}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.NoError(t, DecodeJSON(req, &p))
	require.Equal(t, "kept", p.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	require.ErrorIs(t, DecodeJSON(req, &p), ErrBadRequest)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
	require.ErrorIs(t, DecodeJSON(req, &p), ErrBadRequest)
}

func TestInvalidParamsFromValidator(t *testing.T) {
	type input struct {
		Kind  string `validate:"required"`
		Limit int    `validate:"max=100"`
	}
	err := validator.New().Struct(input{Limit: 500})
	params := InvalidParams(err)
	require.Len(t, params, 2)
	require.Equal(t, InvalidParam{Name: "Kind", Reason: "failed required"}, params[0])
	require.Equal(t, InvalidParam{Name: "Limit", Reason: "failed max=100"}, params[1])

	require.Nil(t, InvalidParams(fmt.Errorf("plain")))
}

func TestValidationProblemCarriesParams(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationProblem(rec, "bad row", InvalidParam{Name: "qty", Reason: "must be positive", Row: "r1"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), `"invalid-params":[{"name":"qty","reason":"must be positive","row":"r1"}]`)
}
