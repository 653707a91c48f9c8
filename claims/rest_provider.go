package claims

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/authsamples/go-bearer-auth/apierrors"
)

const defaultRequestTimeout = 10 * time.Second

// Maximum claims source response we are willing to parse.
const maxResponseBytes = 1 * 1024 * 1024

// RestProvider queries an HTTP claims source for custom claims. The claims
// source receives the token subject and replies with a domain claims payload.
// Every failure mode of the call, including timeouts and malformed bodies, is
// classified as a claims failure (500) rather than a token problem.
type RestProvider struct {
	endpoint string
	client   *http.Client
}

// RestProviderOption configures a RestProvider.
type RestProviderOption func(*RestProvider)

// WithHTTPClient overrides the HTTP client used to call the claims source.
// The client's timeout bounds each lookup.
func WithHTTPClient(client *http.Client) RestProviderOption {
	return func(p *RestProvider) {
		p.client = client
	}
}

// NewRestProvider builds a RestProvider for the given claims source endpoint.
func NewRestProvider(endpoint string, opts ...RestProviderOption) (*RestProvider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("claims source endpoint is required")
	}

	p := &RestProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type claimsRequest struct {
	Subject string `json:"subject"`
}

// GetCustomClaims implements Provider by POSTing the subject to the claims
// source and decoding the domain claims payload from the response.
func (p *RestProvider) GetCustomClaims(ctx context.Context, base *Base) (*Custom, error) {
	body, err := json.Marshal(claimsRequest{Subject: base.Subject})
	if err != nil {
		return nil, apierrors.Server(apierrors.CodeClaimsFailure, "claims", "could not encode claims source request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apierrors.Server(apierrors.CodeClaimsFailure, "claims", "could not build claims source request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apierrors.Server(apierrors.CodeClaimsFailure, "claims", "claims source request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierrors.Server(
			apierrors.CodeClaimsFailure,
			"claims",
			fmt.Sprintf("claims source returned status %d, expected 200", resp.StatusCode),
			nil,
		)
	}

	var custom Custom
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&custom); err != nil {
		return nil, apierrors.Server(apierrors.CodeClaimsFailure, "claims", "could not decode claims source response", err)
	}

	return &custom, nil
}
