package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openclaw/tg-relay-go/internal/errors"
)

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code   apperrors.ErrorCode
		status int
	}{
		{apperrors.ErrCodeMissingRequired, http.StatusBadRequest},
		{apperrors.ErrCodeInvalidInput, http.StatusBadRequest},
		{apperrors.ErrCodeInvalidSession, http.StatusBadRequest},
		{apperrors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrCodeNotAuthorized, http.StatusUnauthorized},
		{apperrors.ErrCodePasswordRequired, http.StatusUnauthorized},
		{apperrors.ErrCodeSessionNotFound, http.StatusNotFound},
		{apperrors.ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{apperrors.ErrCodeExternal, http.StatusInternalServerError},
		{apperrors.ErrCodeDatabase, http.StatusInternalServerError},
		{apperrors.ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.status, StatusFromCode(tc.code))
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("writes app error with details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.MissingFields("connect", []string{"user_id"}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "connect: missing required fields", body["error"])
		assert.Equal(t, "MISSING_REQUIRED", body["code"])
		assert.Equal(t, []any{"user_id"}, body["details"].(map[string]any)["missing"])
	})

	t.Run("surfaces external message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.External(errors.New("FLOOD_WAIT_30")))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "FLOOD_WAIT_30")
	})

	t.Run("hides unknown errors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("secret internals"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret internals")
		assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	})
}

func TestWriteText(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteText(rec, http.StatusOK, "alive")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}
