package bearerauth

import (
	"context"
	"fmt"
	"time"

	"github.com/authsamples/go-bearer-auth/authenticator"
	"github.com/authsamples/go-bearer-auth/claims"
	"github.com/authsamples/go-bearer-auth/claimscache"
)

// Authorizer orchestrates the pipeline for one presented token: claims cache
// lookup, then on a miss token validation, custom claims enrichment and cache
// population. It holds no state of its own between calls; the cache and the
// issuer metadata are the stateful collaborators, and both are safe for
// concurrent use, so a single Authorizer is shared across all requests.
type Authorizer struct {
	authenticator  *authenticator.Authenticator
	claimsProvider claims.Provider
	cache          *claimscache.Cache
	logger         Logger
	metrics        Metrics
	tracer         Tracer
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer) error

// WithCache overrides the claims cache. Useful to tune the sweep interval.
func WithCache(cache *claimscache.Cache) AuthorizerOption {
	return func(a *Authorizer) error {
		if cache == nil {
			return fmt.Errorf("cache cannot be nil")
		}
		a.cache = cache
		return nil
	}
}

// WithAuthorizerLogger sets the logger used by the Authorizer.
func WithAuthorizerLogger(logger Logger) AuthorizerOption {
	return func(a *Authorizer) error {
		a.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics sink used by the Authorizer.
func WithMetrics(metrics Metrics) AuthorizerOption {
	return func(a *Authorizer) error {
		if metrics == nil {
			return fmt.Errorf("metrics cannot be nil")
		}
		a.metrics = metrics
		return nil
	}
}

// WithTracer sets the tracer used by the Authorizer.
func WithTracer(tracer Tracer) AuthorizerOption {
	return func(a *Authorizer) error {
		if tracer == nil {
			return fmt.Errorf("tracer cannot be nil")
		}
		a.tracer = tracer
		return nil
	}
}

// NewAuthorizer builds an Authorizer from its two required collaborators.
func NewAuthorizer(authn *authenticator.Authenticator, provider claims.Provider, opts ...AuthorizerOption) (*Authorizer, error) {
	if authn == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("claims provider is required")
	}

	a := &Authorizer{
		authenticator:  authn,
		claimsProvider: provider,
		cache:          claimscache.New(),
		metrics:        NoopMetrics{},
		tracer:         NoopTracer{},
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	return a, nil
}

// Authorize resolves the raw token to a claims principal: served from the
// cache when a live entry exists, otherwise computed once (validate + enrich)
// under the cache's single-flight discipline and stored until token expiry.
func (a *Authorizer) Authorize(ctx context.Context, rawToken string) (*claims.Principal, error) {
	ctx, span := a.tracer.StartSpan(ctx, "bearerauth.authorize")

	start := time.Now()
	computed := false

	principal, err := a.cache.GetOrCompute(ctx, claimscache.Key(rawToken), func(ctx context.Context) (*claims.Principal, error) {
		computed = true
		return a.compute(ctx, rawToken)
	})

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	cacheResult := "hit"
	if computed {
		cacheResult = "miss"
	}

	a.metrics.IncCounter(MetricAuthorizeTotal, map[string]string{"outcome": outcome})
	a.metrics.IncCounter(MetricClaimsCacheTotal, map[string]string{"result": cacheResult})
	a.metrics.ObserveHistogram(MetricAuthorizeDuration, time.Since(start).Seconds(), map[string]string{"outcome": outcome})

	span.SetAttribute("authorize.outcome", outcome)
	span.SetAttribute("authorize.cache", cacheResult)
	span.End(err)

	if err != nil {
		return nil, err
	}

	if a.logger != nil {
		a.logger.Debug("request authorized",
			"subject", principal.Base.Subject,
			"cache", cacheResult,
			"duration", time.Since(start))
	}

	return principal, nil
}

// compute is the cache-miss path: validate the token, then enrich it.
func (a *Authorizer) compute(ctx context.Context, rawToken string) (*claims.Principal, error) {
	base, err := a.authenticator.ValidateToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	custom, err := a.claimsProvider.GetCustomClaims(ctx, base)
	if err != nil {
		return nil, err
	}

	return &claims.Principal{Base: base, Custom: custom}, nil
}
