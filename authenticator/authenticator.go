// Package authenticator validates presented access tokens: signature against
// the issuer's signing key set, issuer, audience and time-based claims.
//
// Every validation failure is classified uniformly as an invalid-token error
// so that callers cannot use the response as an oracle for which check
// failed; the underlying cause is preserved for server-side logs only.
package authenticator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/authsamples/go-bearer-auth/apierrors"
	"github.com/authsamples/go-bearer-auth/claims"
	"github.com/authsamples/go-bearer-auth/metadata"
)

// DefaultClockSkew is the default tolerance applied to time-based claims.
const DefaultClockSkew = 30 * time.Second

// Asymmetric algorithms only: HMAC and "none" are rejected by construction,
// since a bearer API must never share a secret with the token issuer.
var allowedSigningAlgorithms = map[jwa.SignatureAlgorithm]bool{
	jwa.RS256: true,
	jwa.RS384: true,
	jwa.RS512: true,
	jwa.PS256: true,
	jwa.PS384: true,
	jwa.PS512: true,
	jwa.ES256: true,
	jwa.ES384: true,
	jwa.ES512: true,
}

// Authenticator validates access tokens against issuer metadata. It holds no
// per-request state and is safe for concurrent use.
type Authenticator struct {
	metadata  *metadata.Provider
	issuer    string
	audience  string
	clockSkew time.Duration
}

// Option configures an Authenticator.
type Option func(*Authenticator) error

// WithAudience sets the audience the token must contain.
// This is a required option.
func WithAudience(audience string) Option {
	return func(a *Authenticator) error {
		if audience == "" {
			return fmt.Errorf("audience cannot be empty")
		}
		a.audience = audience
		return nil
	}
}

// WithIssuer overrides the expected issuer claim. When not set, the issuer is
// taken from the metadata provider's issuer URL.
func WithIssuer(issuer string) Option {
	return func(a *Authenticator) error {
		if issuer == "" {
			return fmt.Errorf("issuer cannot be empty")
		}
		a.issuer = issuer
		return nil
	}
}

// WithClockSkew sets the tolerance for exp and nbf checks.
func WithClockSkew(skew time.Duration) Option {
	return func(a *Authenticator) error {
		if skew < 0 {
			return fmt.Errorf("clock skew cannot be negative")
		}
		a.clockSkew = skew
		return nil
	}
}

// New builds an Authenticator bound to the given metadata provider.
func New(provider *metadata.Provider, opts ...Option) (*Authenticator, error) {
	if provider == nil {
		return nil, fmt.Errorf("metadata provider is required")
	}

	a := &Authenticator{
		metadata:  provider,
		issuer:    provider.IssuerURL().String(),
		clockSkew: DefaultClockSkew,
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if a.audience == "" {
		return nil, fmt.Errorf("audience is required (use WithAudience)")
	}

	return a, nil
}

// ValidateToken verifies the raw token's signature and claims and returns the
// base claims it carries. Signing key download failures propagate as 500s;
// every other failure is an invalid-token 401.
func (a *Authenticator) ValidateToken(ctx context.Context, rawToken string) (*claims.Base, error) {
	// Parse the compact JWS envelope without trusting anything in it yet.
	message, err := jws.Parse([]byte(rawToken))
	if err != nil {
		return nil, apierrors.Invalid(fmt.Errorf("could not parse the token: %w", err))
	}

	signatures := message.Signatures()
	if len(signatures) == 0 {
		return nil, apierrors.Invalid(fmt.Errorf("token has no signature"))
	}
	headers := signatures[0].ProtectedHeaders()

	algorithm := headers.Algorithm()
	if !allowedSigningAlgorithms[algorithm] {
		return nil, apierrors.Invalid(fmt.Errorf("token specified a disallowed signing algorithm %q", algorithm))
	}

	keyID := headers.KeyID()
	if keyID == "" {
		return nil, apierrors.Invalid(fmt.Errorf("token header is missing a key id"))
	}

	key, err := a.metadata.SigningKey(ctx, keyID)
	if err != nil {
		// A failed key set download is a server fault, not a token fault.
		return nil, err
	}

	token, err := jwt.Parse([]byte(rawToken), jwt.WithKey(algorithm, key), jwt.WithValidate(false))
	if err != nil {
		return nil, apierrors.Invalid(fmt.Errorf("token signature verification failed: %w", err))
	}

	if err := a.validateClaims(token); err != nil {
		return nil, apierrors.Invalid(err)
	}

	return &claims.Base{
		Subject:  token.Subject(),
		Scopes:   scopesOf(token),
		Expiry:   token.Expiration(),
		Issuer:   token.Issuer(),
		Audience: token.Audience(),
		ID:       token.JwtID(),
	}, nil
}

func (a *Authenticator) validateClaims(token jwt.Token) error {
	if token.Issuer() != a.issuer {
		return fmt.Errorf("invalid issuer claim")
	}

	foundAudience := false
	for _, audience := range token.Audience() {
		if audience == a.audience {
			foundAudience = true
			break
		}
	}
	if !foundAudience {
		return fmt.Errorf("invalid audience claim")
	}

	now := time.Now()

	expiry := token.Expiration()
	if expiry.IsZero() {
		return fmt.Errorf("token is missing an expiry claim")
	}
	if now.Add(-a.clockSkew).After(expiry) {
		return fmt.Errorf("token is expired")
	}

	if notBefore := token.NotBefore(); !notBefore.IsZero() && now.Add(a.clockSkew).Before(notBefore) {
		return fmt.Errorf("token is not valid yet")
	}

	return nil
}

// scopesOf reads the space-delimited OAuth2 scope claim.
func scopesOf(token jwt.Token) []string {
	raw, ok := token.Get("scope")
	if !ok {
		return nil
	}
	scope, ok := raw.(string)
	if !ok || scope == "" {
		return nil
	}
	return strings.Fields(scope)
}
