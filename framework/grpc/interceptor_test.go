package grpcauth

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	bearerauth "github.com/authsamples/go-bearer-auth"
	"github.com/authsamples/go-bearer-auth/authenticator"
	"github.com/authsamples/go-bearer-auth/claims"
	"github.com/authsamples/go-bearer-auth/internal/oidctest"
	metadataprovider "github.com/authsamples/go-bearer-auth/metadata"
)

func newAuthorizer(t *testing.T, idp *oidctest.IdentityProvider) *bearerauth.Authorizer {
	t.Helper()

	issuerURL, err := url.Parse(idp.Issuer())
	require.NoError(t, err)
	meta, err := metadataprovider.NewProvider(metadataprovider.WithIssuerURL(issuerURL))
	require.NoError(t, err)
	require.NoError(t, meta.Load(context.Background()))

	authn, err := authenticator.New(meta, authenticator.WithAudience(oidctest.Audience))
	require.NoError(t, err)

	authorizer, err := bearerauth.NewAuthorizer(authn, claims.NewStaticProvider(nil))
	require.NoError(t, err)
	return authorizer
}

func incomingContext(token string) context.Context {
	md := metadata.New(map[string]string{"authorization": "Bearer " + token})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestUnaryServerInterceptor(t *testing.T) {
	idp := oidctest.New(t)
	interceptor := New(newAuthorizer(t, idp)).UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/accounts.v1.Accounts/List"}

	t.Run("it authorizes a valid token and passes the principal on", func(t *testing.T) {
		var handlerCtx context.Context
		handler := func(ctx context.Context, _ any) (any, error) {
			handlerCtx = ctx
			return "ok", nil
		}

		resp, err := interceptor(incomingContext(idp.SignToken(t, oidctest.TokenOptions{})), nil, info, handler)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)

		principal, err := bearerauth.PrincipalFrom(handlerCtx)
		require.NoError(t, err)
		assert.Equal(t, "user-1", principal.Base.Subject)
	})

	t.Run("it rejects a missing token with Unauthenticated", func(t *testing.T) {
		_, err := interceptor(context.Background(), nil, info, nil)
		require.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("it rejects an invalid token with Unauthenticated", func(t *testing.T) {
		_, err := interceptor(incomingContext("garbage"), nil, info, nil)
		require.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("it rejects a malformed authorization scheme", func(t *testing.T) {
		md := metadata.New(map[string]string{"authorization": "Basic abc"})
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, nil, info, nil)
		require.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("it skips excluded methods", func(t *testing.T) {
		excluding := New(
			newAuthorizer(t, idp),
			WithExcludedMethods("/grpc.health.v1.Health/Check"),
		).UnaryServerInterceptor()

		handler := func(ctx context.Context, _ any) (any, error) { return "ok", nil }
		resp, err := excluding(
			context.Background(),
			nil,
			&grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
			handler,
		)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})
}

func TestMetadataTokenExtractor(t *testing.T) {
	t.Run("it returns empty for a context without metadata", func(t *testing.T) {
		token, err := MetadataTokenExtractor(context.Background())
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("it extracts a bearer token", func(t *testing.T) {
		token, err := MetadataTokenExtractor(incomingContext("abc123"))
		require.NoError(t, err)
		assert.Equal(t, "abc123", token)
	})
}
