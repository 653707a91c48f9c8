// Package bearerauth implements the request authorization pipeline for an
// OAuth2/OIDC-secured API: bearer token extraction, signature and claims
// validation against the issuer's rotating key set, enrichment with
// domain-specific custom claims from a separate trust boundary, and a
// token-keyed claims cache with single-flight computation.
//
// The pipeline is assembled from injected collaborators constructed once per
// process:
//
//	issuerURL, _ := url.Parse("https://login.example.com")
//	provider, _ := metadata.NewProvider(metadata.WithIssuerURL(issuerURL))
//	if err := provider.Load(ctx); err != nil {
//	    // fatal: do not serve traffic without issuer metadata
//	}
//
//	authn, _ := authenticator.New(provider, authenticator.WithAudience("https://api.example.com"))
//	authorizer, _ := bearerauth.NewAuthorizer(authn, claimsProvider)
//	middleware, _ := bearerauth.New(bearerauth.WithAuthorizer(authorizer))
//
//	router.Use(middleware.CheckAuth)
//
// Handlers downstream of the middleware read the authenticated principal from
// the request context:
//
//	principal, err := bearerauth.PrincipalFrom(r.Context())
package bearerauth
