// Package claims defines the claim types that flow through the authorization
// pipeline and the provider abstraction used to enrich validated tokens with
// domain-specific authorization data from a separate trust boundary.
package claims

import "time"

// Base holds the claims extracted from a validated access token. It is
// produced once per token by the authenticator and never mutated afterwards.
type Base struct {
	Subject  string
	Scopes   []string
	Expiry   time.Time
	Issuer   string
	Audience []string
	ID       string
}

// HasScope reports whether the token carries the given scope.
func (b *Base) HasScope(scope string) bool {
	for _, s := range b.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Custom holds domain authorization data that is not present in the token
// itself. Immutable once produced.
type Custom struct {
	// ResourceIDs are the identifiers of resources the caller may access.
	ResourceIDs []string `json:"resourceIds"`

	// Role is the caller's domain role, if the claims source assigns one.
	Role string `json:"role,omitempty"`
}

// CanAccessResource reports whether the given resource id is in the
// caller's accessible set.
func (c *Custom) CanAccessResource(id string) bool {
	for _, r := range c.ResourceIDs {
		if r == id {
			return true
		}
	}
	return false
}

// Principal is the combined result of token validation plus claims
// enrichment. It is the unit stored in the claims cache and attached to the
// request context, and is safe to share across concurrent requests holding
// the same token.
type Principal struct {
	Base   *Base
	Custom *Custom
}
