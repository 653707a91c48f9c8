package echoauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bearerauth "github.com/authsamples/go-bearer-auth"
	"github.com/authsamples/go-bearer-auth/authenticator"
	"github.com/authsamples/go-bearer-auth/claims"
	"github.com/authsamples/go-bearer-auth/internal/oidctest"
	"github.com/authsamples/go-bearer-auth/metadata"
)

func newAuthorizer(t *testing.T, idp *oidctest.IdentityProvider) *bearerauth.Authorizer {
	t.Helper()

	issuerURL, err := url.Parse(idp.Issuer())
	require.NoError(t, err)
	meta, err := metadata.NewProvider(metadata.WithIssuerURL(issuerURL))
	require.NoError(t, err)
	require.NoError(t, meta.Load(context.Background()))

	authn, err := authenticator.New(meta, authenticator.WithAudience(oidctest.Audience))
	require.NoError(t, err)

	provider := claims.NewStaticProvider(map[string]claims.Rule{
		"user-1": {Role: "admin"},
	})

	authorizer, err := bearerauth.NewAuthorizer(authn, provider)
	require.NoError(t, err)
	return authorizer
}

func TestEchoMiddleware(t *testing.T) {
	idp := oidctest.New(t)
	authorizer := newAuthorizer(t, idp)

	e := echo.New()
	e.Use(Middleware(authorizer))
	e.GET("/me", func(c echo.Context) error {
		principal, ok := GetPrincipal(c, DefaultContextKey)
		require.True(t, ok)

		// The principal is also on the request context.
		fromCtx, err := bearerauth.PrincipalFrom(c.Request().Context())
		require.NoError(t, err)
		assert.Same(t, principal, fromCtx)

		return c.JSON(http.StatusOK, map[string]string{"subject": principal.Base.Subject})
	})

	t.Run("it authorizes a valid token", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/me", nil)
		request.Header.Set("Authorization", "Bearer "+idp.SignToken(t, oidctest.TokenOptions{}))
		recorder := httptest.NewRecorder()
		e.ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `{"subject":"user-1"}`, recorder.Body.String())
	})

	t.Run("it rejects a missing token", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		e.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/me", nil))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "invalid_token")
	})

	t.Run("it rejects a bad token", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/me", nil)
		request.Header.Set("Authorization", "Bearer nope")
		recorder := httptest.NewRecorder()
		e.ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}
