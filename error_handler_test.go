package bearerauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authsamples/go-bearer-auth/apierrors"
)

func TestDefaultErrorHandler(t *testing.T) {
	t.Run("it writes a 401 without correlation detail", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		DefaultErrorHandler(recorder, httptest.NewRequest(http.MethodGet, "/", nil), apierrors.Invalid(errors.New("bad signature")))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "invalid_token", body["code"])
		assert.NotContains(t, body, "id")
		assert.NotContains(t, body, "utcTime")
		// The internal cause never reaches the response.
		assert.NotContains(t, recorder.Body.String(), "bad signature")
	})

	t.Run("it writes a 500 with correlation detail", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		err := apierrors.Server(apierrors.CodeClaimsFailure, "claims", "custom claims lookup failed", errors.New("dial tcp: refused"))
		DefaultErrorHandler(recorder, httptest.NewRequest(http.MethodGet, "/", nil), err)

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "claims_failure", body["code"])
		assert.Equal(t, err.ID, body["id"])
		assert.Equal(t, "claims", body["area"])
		assert.NotEmpty(t, body["utcTime"])
		assert.NotContains(t, recorder.Body.String(), "dial tcp")
	})

	t.Run("it classifies unknown errors as server errors", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		DefaultErrorHandler(recorder, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "server_error", body["code"])
		assert.NotEmpty(t, body["id"])
	})
}
