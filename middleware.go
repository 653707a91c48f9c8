package bearerauth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/authsamples/go-bearer-auth/apierrors"
)

// errNoToken is the internal cause recorded when no bearer token was
// presented; callers only ever see the uniform invalid-token classification.
var errNoToken = errors.New("no bearer token in request")

// ExclusionHandler reports whether a request should skip authorization
// entirely, e.g. health or documentation endpoints.
type ExclusionHandler func(r *http.Request) bool

// Middleware guards HTTP handlers with the authorization pipeline. On
// success the authenticated principal is attached to the request context for
// downstream handlers; on failure the error handler writes the classified
// error response and the chain stops.
type Middleware struct {
	authorizer        *Authorizer
	errorHandler      ErrorHandler
	tokenExtractor    TokenExtractor
	exclusionHandler  ExclusionHandler
	logger            Logger
	validateOnOptions bool
}

// New constructs a Middleware. WithAuthorizer is required.
func New(opts ...Option) (*Middleware, error) {
	m := &Middleware{
		validateOnOptions: true,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if m.authorizer == nil {
		return nil, fmt.Errorf("authorizer is required (use WithAuthorizer)")
	}

	if m.errorHandler == nil {
		m.errorHandler = DefaultErrorHandler
	}
	if m.tokenExtractor == nil {
		m.tokenExtractor = AuthHeaderTokenExtractor
	}

	return m, nil
}

// CheckAuth wraps next with the authorization pipeline.
func (m *Middleware) CheckAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.exclusionHandler != nil && m.exclusionHandler(r) {
			m.debug("skipping authorization for excluded URL", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		if !m.validateOnOptions && r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token, err := m.tokenExtractor(r)
		if err != nil {
			// A malformed credential is still a credential problem: classify
			// it the same way as any other token failure.
			m.warn("failed to extract token", "error", err, "method", r.Method, "path", r.URL.Path)
			m.errorHandler(w, r, apierrors.Invalid(err))
			return
		}

		if token == "" {
			m.errorHandler(w, r, apierrors.Invalid(errNoToken))
			return
		}

		principal, err := m.authorizer.Authorize(r.Context(), token)
		if err != nil {
			m.warn("request authorization failed", "error", err, "method", r.Method, "path", r.URL.Path)
			m.errorHandler(w, r, err)
			return
		}

		r = r.Clone(WithPrincipal(r.Context(), principal))
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) debug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func (m *Middleware) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
