// Package echoauth adapts the authorization pipeline to the Echo framework.
package echoauth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	bearerauth "github.com/authsamples/go-bearer-auth"
	"github.com/authsamples/go-bearer-auth/apierrors"
	"github.com/authsamples/go-bearer-auth/claims"
)

// DefaultContextKey is the Echo context key under which the principal is
// stored in addition to the request context.
const DefaultContextKey = "principal"

type config struct {
	contextKey     string
	tokenExtractor bearerauth.TokenExtractor
	errorHandler   func(c echo.Context, err error) error
}

// Option configures the Echo middleware.
type Option func(*config)

// WithContextKey overrides the Echo context key for the principal.
func WithContextKey(key string) Option {
	return func(c *config) {
		c.contextKey = key
	}
}

// WithTokenExtractor overrides the token extractor.
func WithTokenExtractor(extractor bearerauth.TokenExtractor) Option {
	return func(c *config) {
		c.tokenExtractor = extractor
	}
}

// WithErrorHandler overrides how classified errors become Echo responses.
func WithErrorHandler(handler func(c echo.Context, err error) error) Option {
	return func(c *config) {
		c.errorHandler = handler
	}
}

// Middleware builds an echo.MiddlewareFunc running the authorization
// pipeline. On success the principal is available both via GetPrincipal and
// via bearerauth.PrincipalFrom on the request context.
func Middleware(authorizer *bearerauth.Authorizer, opts ...Option) echo.MiddlewareFunc {
	cfg := &config{
		contextKey:     DefaultContextKey,
		tokenExtractor: bearerauth.AuthHeaderTokenExtractor,
		errorHandler:   defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := cfg.tokenExtractor(c.Request())
			if err != nil {
				return cfg.errorHandler(c, apierrors.Invalid(err))
			}
			if token == "" {
				return cfg.errorHandler(c, apierrors.Invalid(apierrors.ErrUnauthorized))
			}

			principal, err := authorizer.Authorize(c.Request().Context(), token)
			if err != nil {
				return cfg.errorHandler(c, err)
			}

			c.Set(cfg.contextKey, principal)
			c.SetRequest(c.Request().Clone(bearerauth.WithPrincipal(c.Request().Context(), principal)))

			return next(c)
		}
	}
}

// GetPrincipal reads the principal stored by the middleware.
func GetPrincipal(c echo.Context, contextKey string) (*claims.Principal, bool) {
	principal, ok := c.Get(contextKey).(*claims.Principal)
	return principal, ok
}

func defaultErrorHandler(c echo.Context, err error) error {
	apiErr := apierrors.Classify(err)

	body := map[string]string{
		"code":    string(apiErr.Code),
		"message": apiErr.Message,
	}
	if apiErr.Status() >= http.StatusInternalServerError {
		body["id"] = apiErr.ID
		body["area"] = apiErr.Area
		body["utcTime"] = apiErr.UTCTime.Format(time.RFC3339)
	}

	return c.JSON(apiErr.Status(), body)
}
