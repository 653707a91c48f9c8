package bearerauth

import (
	"context"
	"errors"

	"github.com/authsamples/go-bearer-auth/claims"
)

// ErrNoPrincipal is returned when no principal is stored in the context,
// which means the request did not pass through the middleware.
var ErrNoPrincipal = errors.New("no principal in request context")

// contextKey is an unexported type for context keys so no other package can
// collide with the principal slot.
type contextKey int

const principalKey contextKey = iota

// WithPrincipal stores the authenticated principal in the context. The
// middleware calls this after a successful authorization; adapters for other
// transports can reuse it.
func WithPrincipal(ctx context.Context, principal *claims.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFrom retrieves the authenticated principal from the context.
func PrincipalFrom(ctx context.Context) (*claims.Principal, error) {
	principal, ok := ctx.Value(principalKey).(*claims.Principal)
	if !ok {
		return nil, ErrNoPrincipal
	}
	return principal, nil
}

// HasPrincipal reports whether the context carries a principal.
func HasPrincipal(ctx context.Context) bool {
	_, ok := ctx.Value(principalKey).(*claims.Principal)
	return ok
}
