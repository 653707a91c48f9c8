package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
)

// wellKnownEndpoints holds the fields of the OIDC discovery document the
// pipeline cares about.
type wellKnownEndpoints struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// Discovery documents are small; anything past this is suspect.
const maxDiscoveryBytes = 1 * 1024 * 1024

// getWellKnownEndpoints fetches the discovery document for the issuer and
// double-validates that the document's issuer matches the configured one,
// guarding against a misconfigured or hostile metadata host.
func getWellKnownEndpoints(ctx context.Context, client *http.Client, issuerURL url.URL) (*wellKnownEndpoints, error) {
	expectedIssuer := issuerURL.String()
	issuerURL.Path = path.Join(issuerURL.Path, ".well-known/openid-configuration")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuerURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not build request to get well known endpoints: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not get well known endpoints from url %s: %w", issuerURL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery request returned status %d, expected 200", resp.StatusCode)
	}

	var wkEndpoints wellKnownEndpoints
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDiscoveryBytes)).Decode(&wkEndpoints); err != nil {
		return nil, fmt.Errorf("could not decode json body when getting well known endpoints: %w", err)
	}

	if wkEndpoints.Issuer != "" && wkEndpoints.Issuer != expectedIssuer {
		return nil, fmt.Errorf("discovery document issuer %q does not match expected issuer %q", wkEndpoints.Issuer, expectedIssuer)
	}
	if wkEndpoints.JWKSURI == "" {
		return nil, fmt.Errorf("discovery document is missing jwks_uri")
	}
	if _, err := url.Parse(wkEndpoints.JWKSURI); err != nil {
		return nil, fmt.Errorf("could not parse JWKS URI from well known endpoints: %w", err)
	}

	return &wkEndpoints, nil
}
