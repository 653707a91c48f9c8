// Package grpcauth adapts the authorization pipeline to gRPC servers.
// Tokens travel in the "authorization" metadata entry using the Bearer
// scheme, mirroring the HTTP Authorization header.
package grpcauth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	bearerauth "github.com/authsamples/go-bearer-auth"
	"github.com/authsamples/go-bearer-auth/apierrors"
)

// TokenExtractor pulls a raw token from the incoming context. An empty
// string with a nil error means no token was presented.
type TokenExtractor func(ctx context.Context) (string, error)

// MetadataTokenExtractor reads the bearer token from the "authorization"
// metadata entry.
func MetadataTokenExtractor(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", nil
	}

	values := md.Get("authorization")
	if len(values) == 0 {
		return "", nil
	}

	parts := strings.Fields(values[0])
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("authorization metadata format must be Bearer {token}")
	}

	return parts[1], nil
}

// Interceptor guards gRPC methods with the authorization pipeline.
type Interceptor struct {
	authorizer     *bearerauth.Authorizer
	tokenExtractor TokenExtractor
	excluded       func(fullMethod string) bool
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithTokenExtractor overrides the token extractor.
func WithTokenExtractor(extractor TokenExtractor) Option {
	return func(i *Interceptor) {
		i.tokenExtractor = extractor
	}
}

// WithExcludedMethods skips authorization for the given full method names
// (e.g. "/grpc.health.v1.Health/Check").
func WithExcludedMethods(methods ...string) Option {
	excluded := make(map[string]bool, len(methods))
	for _, method := range methods {
		excluded[method] = true
	}
	return func(i *Interceptor) {
		i.excluded = func(fullMethod string) bool {
			return excluded[fullMethod]
		}
	}
}

// New builds an Interceptor around the given Authorizer.
func New(authorizer *bearerauth.Authorizer, opts ...Option) *Interceptor {
	i := &Interceptor{
		authorizer:     authorizer,
		tokenExtractor: MetadataTokenExtractor,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// authorize runs the pipeline and returns a context carrying the principal.
func (i *Interceptor) authorize(ctx context.Context, fullMethod string) (context.Context, error) {
	if i.excluded != nil && i.excluded(fullMethod) {
		return ctx, nil
	}

	token, err := i.tokenExtractor(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, apierrors.ErrUnauthorized.Error())
	}
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, apierrors.ErrUnauthorized.Error())
	}

	principal, err := i.authorizer.Authorize(ctx, token)
	if err != nil {
		return nil, toStatusError(err)
	}

	return bearerauth.WithPrincipal(ctx, principal), nil
}

// UnaryServerInterceptor returns a unary interceptor running the pipeline
// before the handler.
func (i *Interceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		newCtx, err := i.authorize(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(newCtx, req)
	}
}

// StreamServerInterceptor returns a stream interceptor running the pipeline
// before the handler.
func (i *Interceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		newCtx, err := i.authorize(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: newCtx})
	}
}

// toStatusError maps the pipeline classification onto gRPC status codes
// without leaking internal causes; 500-class errors surface only the
// correlation id.
func toStatusError(err error) error {
	apiErr := apierrors.Classify(err)
	if apiErr.Code == apierrors.CodeInvalidToken {
		return status.Error(codes.Unauthenticated, apiErr.Message)
	}
	return status.Errorf(codes.Internal, "%s (id=%s)", apiErr.Message, apiErr.ID)
}

// wrappedStream overrides the stream context with the principal-carrying one.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *wrappedStream) Context() context.Context {
	return s.ctx
}
