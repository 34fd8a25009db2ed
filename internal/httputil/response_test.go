package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/screenscape/sync-server-go/internal/errors"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteError(t *testing.T) {
	t.Run("client errors keep their message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.MissingRequired("syncToken"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "syncToken is required", resp.Error)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, resp.Code)
	})

	t.Run("storage errors are masked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.Storage(errors.New("dial tcp 10.0.0.1:6379: refused")))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "Internal server error", resp.Error)
		assert.NotContains(t, rec.Body.String(), "10.0.0.1")
	})

	t.Run("link creation failure keeps its generic code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.LinkCreationFailed())

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, apperrors.ErrCodeLinkCreationFailed, decodeError(t, rec).Code)
	})

	t.Run("unknown errors become internal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, apperrors.ErrCodeInternal, decodeError(t, rec).Code)
	})
}

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code   apperrors.ErrorCode
		status int
	}{
		{apperrors.ErrCodeInvalidInput, http.StatusBadRequest},
		{apperrors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrCodeNotFound, http.StatusNotFound},
		{apperrors.ErrCodeMethodNotAllowed, http.StatusMethodNotAllowed},
		{apperrors.ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{apperrors.ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{apperrors.ErrCodeCodeGenerationExhausted, http.StatusInternalServerError},
		{apperrors.ErrorCode("SOMETHING_NEW"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.status, StatusFromCode(tc.code))
		})
	}
}
