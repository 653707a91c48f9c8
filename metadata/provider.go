// Package metadata acquires and holds the identity provider's published
// configuration: the OIDC discovery document and the signing key set (JWKS)
// used to verify access token signatures.
//
// A Provider is constructed once per process, loaded before serving traffic,
// and shared by every request. The key set is read-mostly: lookups take a
// read lock, and a refresh replaces the set wholesale so readers never
// observe a partially-updated set and rotated-out keys do not accumulate.
package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/authsamples/go-bearer-auth/apierrors"
)

const defaultFetchTimeout = 30 * time.Second

// Provider fetches and caches issuer metadata and the signing key set.
// It is safe for concurrent use.
type Provider struct {
	issuerURL     *url.URL
	customJWKSURI *url.URL
	client        *http.Client

	mu      sync.RWMutex
	jwksURI string
	keys    jwk.Set

	// Coalesces concurrent key set refreshes into one outstanding fetch.
	refreshGroup singleflight.Group
}

// Option configures a Provider. Options return errors to enable validation
// during construction.
type Option func(*Provider) error

// WithIssuerURL sets the identity provider's issuer URL used for OIDC
// discovery. This is a required option.
func WithIssuerURL(issuerURL *url.URL) Option {
	return func(p *Provider) error {
		if issuerURL == nil {
			return fmt.Errorf("issuer URL cannot be nil")
		}
		p.issuerURL = issuerURL
		return nil
	}
}

// WithCustomJWKSURI sets a fixed JWKS URI, skipping discovery.
func WithCustomJWKSURI(jwksURI *url.URL) Option {
	return func(p *Provider) error {
		if jwksURI == nil {
			return fmt.Errorf("JWKS URI cannot be nil")
		}
		p.customJWKSURI = jwksURI
		return nil
	}
}

// WithHTTPClient overrides the HTTP client used for discovery and JWKS
// fetches. The client's timeout bounds each network call.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) error {
		if client == nil {
			return fmt.Errorf("HTTP client cannot be nil")
		}
		p.client = client
		return nil
	}
}

// NewProvider builds and returns a new *Provider.
func NewProvider(opts ...Option) (*Provider, error) {
	p := &Provider{
		client: &http.Client{Timeout: defaultFetchTimeout},
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if p.issuerURL == nil {
		return nil, fmt.Errorf("issuer URL is required (use WithIssuerURL)")
	}

	if p.customJWKSURI != nil {
		p.jwksURI = p.customJWKSURI.String()
	}

	return p, nil
}

// Load performs the one-time metadata acquisition: OIDC discovery (unless a
// custom JWKS URI was configured) followed by the initial key set fetch.
// It must complete before the process serves traffic; failure is classified
// as a metadata lookup failure and should be treated as fatal at startup.
func (p *Provider) Load(ctx context.Context) error {
	if err := p.discover(ctx); err != nil {
		return apierrors.Server(apierrors.CodeMetadataLookup, "metadata", "could not load issuer metadata", err)
	}

	if err := p.refreshKeys(ctx); err != nil {
		return apierrors.Server(apierrors.CodeMetadataLookup, "metadata", "could not load signing key set", err)
	}

	return nil
}

// SigningKey returns the signing key matching the given key id. On a lookup
// miss it performs exactly one synchronous key set refresh and retries once;
// concurrent refreshes coalesce into a single outstanding fetch. A second
// miss, or a failed refresh, is classified as a signing key download failure.
func (p *Provider) SigningKey(ctx context.Context, keyID string) (jwk.Key, error) {
	if key, ok := p.lookup(keyID); ok {
		return key, nil
	}

	// Key rotation may have happened since the last fetch.
	if err := p.refreshKeys(ctx); err != nil {
		return nil, apierrors.Server(apierrors.CodeSigningKeyDownload, "metadata", "could not refresh signing key set", err)
	}

	if key, ok := p.lookup(keyID); ok {
		return key, nil
	}

	return nil, apierrors.Server(
		apierrors.CodeSigningKeyDownload,
		"metadata",
		fmt.Sprintf("signing key %q not found after key set refresh", keyID),
		nil,
	)
}

// IssuerURL returns the configured issuer URL.
func (p *Provider) IssuerURL() *url.URL {
	return p.issuerURL
}

func (p *Provider) lookup(keyID string) (jwk.Key, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.keys == nil {
		return nil, false
	}
	return p.keys.LookupKeyID(keyID)
}

// discover resolves the JWKS URI from the discovery document. It is a no-op
// once the URI is known (custom URI or previous discovery).
func (p *Provider) discover(ctx context.Context) error {
	p.mu.RLock()
	uri := p.jwksURI
	p.mu.RUnlock()
	if uri != "" {
		return nil
	}

	wkEndpoints, err := getWellKnownEndpoints(ctx, p.client, *p.issuerURL)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.jwksURI = wkEndpoints.JWKSURI
	p.mu.Unlock()

	return nil
}

// refreshKeys fetches the JWKS and replaces the held key set wholesale.
// Concurrent callers share a single fetch via the singleflight group.
func (p *Provider) refreshKeys(ctx context.Context) error {
	_, err, _ := p.refreshGroup.Do("jwks", func() (interface{}, error) {
		if err := p.discover(ctx); err != nil {
			return nil, err
		}

		p.mu.RLock()
		uri := p.jwksURI
		p.mu.RUnlock()

		set, err := jwk.Fetch(ctx, uri, jwk.WithHTTPClient(p.client))
		if err != nil {
			return nil, fmt.Errorf("could not fetch JWKS: %w", err)
		}

		p.mu.Lock()
		p.keys = set
		p.mu.Unlock()

		return nil, nil
	})
	return err
}
