package bearerauth

import "fmt"

// Option configures a Middleware.
type Option func(*Middleware) error

// WithAuthorizer sets the Authorizer the middleware delegates to.
// This is a required option.
func WithAuthorizer(authorizer *Authorizer) Option {
	return func(m *Middleware) error {
		if authorizer == nil {
			return fmt.Errorf("authorizer cannot be nil")
		}
		m.authorizer = authorizer
		return nil
	}
}

// WithErrorHandler overrides the error handler. Custom handlers must take
// the apierrors classification into account when choosing a status.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(m *Middleware) error {
		if handler == nil {
			return fmt.Errorf("error handler cannot be nil")
		}
		m.errorHandler = handler
		return nil
	}
}

// WithTokenExtractor overrides how the token is pulled from the request.
// Defaults to AuthHeaderTokenExtractor.
func WithTokenExtractor(extractor TokenExtractor) Option {
	return func(m *Middleware) error {
		if extractor == nil {
			return fmt.Errorf("token extractor cannot be nil")
		}
		m.tokenExtractor = extractor
		return nil
	}
}

// WithExclusionHandler sets a predicate for requests that bypass
// authorization entirely.
func WithExclusionHandler(handler ExclusionHandler) Option {
	return func(m *Middleware) error {
		m.exclusionHandler = handler
		return nil
	}
}

// WithValidateOnOptions controls whether OPTIONS requests are authorized.
// Defaults to true.
func WithValidateOnOptions(validate bool) Option {
	return func(m *Middleware) error {
		m.validateOnOptions = validate
		return nil
	}
}

// WithLogger sets the middleware logger.
func WithLogger(logger Logger) Option {
	return func(m *Middleware) error {
		m.logger = logger
		return nil
	}
}
