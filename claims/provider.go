package claims

import "context"

// Provider produces custom claims for a validated token. Implementations are
// swappable without touching the authorizer or the cache: the sample
// StaticProvider derives claims from in-memory rules, while RestProvider
// queries a claims source over HTTP.
//
// GetCustomClaims is called at most once per token lifetime thanks to the
// claims cache, so implementations may be comparatively expensive.
type Provider interface {
	GetCustomClaims(ctx context.Context, base *Base) (*Custom, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, base *Base) (*Custom, error)

// GetCustomClaims implements Provider.
func (f ProviderFunc) GetCustomClaims(ctx context.Context, base *Base) (*Custom, error) {
	return f(ctx, base)
}

// Rule is a static claims assignment keyed by token subject.
type Rule struct {
	Role        string
	ResourceIDs []string
}

// StaticProvider is the default sample Provider. It derives custom claims
// synchronously from a fixed rule table keyed by subject; subjects without a
// rule receive empty claims rather than an error.
type StaticProvider struct {
	rules map[string]Rule
}

// NewStaticProvider builds a StaticProvider from the given rules. The map is
// copied so later mutation by the caller cannot affect issued claims.
func NewStaticProvider(rules map[string]Rule) *StaticProvider {
	copied := make(map[string]Rule, len(rules))
	for subject, rule := range rules {
		copied[subject] = rule
	}
	return &StaticProvider{rules: copied}
}

// GetCustomClaims implements Provider.
func (p *StaticProvider) GetCustomClaims(_ context.Context, base *Base) (*Custom, error) {
	rule, ok := p.rules[base.Subject]
	if !ok {
		return &Custom{}, nil
	}
	return &Custom{
		ResourceIDs: append([]string(nil), rule.ResourceIDs...),
		Role:        rule.Role,
	}, nil
}
