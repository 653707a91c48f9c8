// Package claimscache caches fully-enriched claims principals keyed by a
// non-reversible hash of the access token, so that expensive token validation
// and claims-source lookups happen at most once per token lifetime.
//
// Two pieces make up the contract: a per-entry-TTL store whose entries expire
// exactly when the underlying token does, and a single-flight group that
// guarantees at most one in-flight computation per key. A burst of concurrent
// requests bearing the same fresh token results in exactly one validate +
// enrich round trip; all other callers wait for it and share the result or
// its failure. Failures are never stored.
package claimscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/authsamples/go-bearer-auth/claims"
)

// DefaultSweepInterval is how often the janitor removes expired entries.
// The sweep only ever removes entries past their token expiry, so it can
// never evict a live principal; it exists to bound memory when many distinct
// tokens pass through.
const DefaultSweepInterval = 5 * time.Minute

// ComputeFunc produces a principal for a cache miss. It runs token
// validation and custom claims enrichment.
type ComputeFunc func(ctx context.Context) (*claims.Principal, error)

// Cache is the token-keyed claims cache. Safe for concurrent use.
type Cache struct {
	store *gocache.Cache
	group singleflight.Group
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	sweepInterval time.Duration
}

// WithSweepInterval overrides the janitor interval. A zero or negative
// interval disables the background sweep, leaving only lazy expiry on read.
func WithSweepInterval(interval time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = interval
	}
}

// New builds an empty claims cache.
func New(opts ...Option) *Cache {
	o := options{sweepInterval: DefaultSweepInterval}
	for _, opt := range opts {
		opt(&o)
	}

	// go-cache's default expiration is irrelevant here: every entry is
	// stored with its own TTL derived from the token expiry.
	return &Cache{
		store: gocache.New(gocache.NoExpiration, o.sweepInterval),
	}
}

// Key derives the cache key for a raw access token: a hex SHA-256, so the
// token itself is never used as a map key.
func Key(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// GetOrCompute returns the live principal for the key, or runs compute to
// produce one. Expired entries are treated as absent. For any given key, at
// most one compute runs at a time; concurrent callers share its outcome.
// A successful principal is stored until its token expiry; errors are
// propagated to all waiters and nothing is stored, so the next call retries
// from scratch.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (*claims.Principal, error) {
	if cached, ok := c.store.Get(key); ok {
		return cached.(*claims.Principal), nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A racing caller may have completed while we queued on the group.
		if cached, ok := c.store.Get(key); ok {
			return cached, nil
		}

		principal, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		if ttl := time.Until(principal.Base.Expiry); ttl > 0 {
			c.store.Set(key, principal, ttl)
		}

		return principal, nil
	})
	if err != nil {
		return nil, err
	}

	return value.(*claims.Principal), nil
}

// Len reports the number of entries currently held, including entries that
// have expired but not yet been swept.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}
