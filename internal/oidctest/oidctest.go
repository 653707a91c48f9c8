// Package oidctest provides a fake identity provider for tests. It serves an
// OIDC discovery document and a JWKS over httptest, signs access tokens with
// its current key, and counts requests so tests can assert on refresh
// behavior.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

// Audience is the audience the fake IdP issues tokens for by default.
const Audience = "https://api.authsamples.test"

// IdentityProvider is a fake OIDC identity provider backed by httptest.
type IdentityProvider struct {
	Server *httptest.Server

	mu         sync.Mutex
	signingKey jwk.Key
	publicKeys jwk.Set

	discoveryRequests atomic.Int32
	jwksRequests      atomic.Int32
}

// New starts a fake identity provider with a freshly generated RSA key.
// The server is shut down automatically when the test finishes.
func New(t *testing.T) *IdentityProvider {
	t.Helper()

	ip := &IdentityProvider{}
	ip.installKey(t, NewRSAKey(t, "test-key-1"))

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		ip.discoveryRequests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   ip.Server.URL,
			"jwks_uri": ip.Server.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, _ *http.Request) {
		ip.jwksRequests.Add(1)
		ip.mu.Lock()
		keys := ip.publicKeys
		ip.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keys)
	})

	ip.Server = httptest.NewServer(mux)
	t.Cleanup(ip.Server.Close)

	return ip
}

// NewRSAKey generates an RSA signing key with the given key id.
func NewRSAKey(t *testing.T, keyID string) jwk.Key {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, keyID))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	return key
}

// Issuer returns the issuer URL the fake IdP publishes.
func (ip *IdentityProvider) Issuer() string {
	return ip.Server.URL
}

// DiscoveryRequestCount returns how many discovery requests were served.
func (ip *IdentityProvider) DiscoveryRequestCount() int {
	return int(ip.discoveryRequests.Load())
}

// JWKSRequestCount returns how many JWKS requests were served.
func (ip *IdentityProvider) JWKSRequestCount() int {
	return int(ip.jwksRequests.Load())
}

// RotateKeys replaces the served key set wholesale with a new key, simulating
// key rotation at the identity provider.
func (ip *IdentityProvider) RotateKeys(t *testing.T, keyID string) {
	t.Helper()
	ip.installKey(t, NewRSAKey(t, keyID))
}

func (ip *IdentityProvider) installKey(t *testing.T, key jwk.Key) {
	t.Helper()

	pub, err := jwk.PublicKeyOf(key)
	require.NoError(t, err)

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))

	ip.mu.Lock()
	ip.signingKey = key
	ip.publicKeys = set
	ip.mu.Unlock()
}

// TokenOptions controls the claims of a signed test token. Zero values fall
// back to sane defaults: the fake IdP as issuer, Audience as audience, a
// one-hour expiry and subject "user-1".
type TokenOptions struct {
	Issuer    string
	Subject   string
	Audience  []string
	Expiry    time.Time
	NotBefore time.Time
	Scope     string
}

// SignToken signs a token with the IdP's current key.
func (ip *IdentityProvider) SignToken(t *testing.T, opts TokenOptions) string {
	t.Helper()

	ip.mu.Lock()
	key := ip.signingKey
	ip.mu.Unlock()

	return SignTokenWithKey(t, key, ip.Server.URL, opts)
}

// SignTokenWithKey signs a token with an arbitrary key, which lets tests
// produce tokens whose key id is absent from the served JWKS.
func SignTokenWithKey(t *testing.T, key jwk.Key, defaultIssuer string, opts TokenOptions) string {
	t.Helper()

	if opts.Issuer == "" {
		opts.Issuer = defaultIssuer
	}
	if opts.Subject == "" {
		opts.Subject = "user-1"
	}
	if len(opts.Audience) == 0 {
		opts.Audience = []string{Audience}
	}
	if opts.Expiry.IsZero() {
		opts.Expiry = time.Now().Add(time.Hour)
	}

	token := jwt.New()
	require.NoError(t, token.Set(jwt.IssuerKey, opts.Issuer))
	require.NoError(t, token.Set(jwt.SubjectKey, opts.Subject))
	require.NoError(t, token.Set(jwt.AudienceKey, opts.Audience))
	require.NoError(t, token.Set(jwt.ExpirationKey, opts.Expiry))
	require.NoError(t, token.Set(jwt.IssuedAtKey, time.Now()))
	if !opts.NotBefore.IsZero() {
		require.NoError(t, token.Set(jwt.NotBeforeKey, opts.NotBefore))
	}
	if opts.Scope != "" {
		require.NoError(t, token.Set("scope", opts.Scope))
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)

	return string(signed)
}
