package bearerauth

import (
	"errors"
	"net/http"
	"strings"
)

// TokenExtractor pulls a raw access token out of a request. An error should
// only be returned when a token was supplied but malformed; when no token is
// present at all, the extractor returns an empty string and no error so the
// caller can decide how to treat the absence.
type TokenExtractor func(r *http.Request) (string, error)

// AuthHeaderTokenExtractor reads the token from the Authorization header,
// expecting the "Bearer {token}" scheme.
func AuthHeaderTokenExtractor(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil // No header, no token; not an extraction error.
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("Authorization header format must be Bearer {token}")
	}

	return parts[1], nil
}

// CookieTokenExtractor builds a TokenExtractor that reads the token from the
// named cookie.
func CookieTokenExtractor(cookieName string) TokenExtractor {
	return func(r *http.Request) (string, error) {
		cookie, err := r.Cookie(cookieName)
		if errors.Is(err, http.ErrNoCookie) {
			return "", nil
		}
		return cookie.Value, nil
	}
}

// ParameterTokenExtractor builds a TokenExtractor that reads the token from
// the named query string parameter.
func ParameterTokenExtractor(param string) TokenExtractor {
	return func(r *http.Request) (string, error) {
		return r.URL.Query().Get(param), nil
	}
}

// MultiTokenExtractor runs the given extractors in order and returns the
// first non-empty token. An extraction error aborts the chain immediately.
func MultiTokenExtractor(extractors ...TokenExtractor) TokenExtractor {
	return func(r *http.Request) (string, error) {
		for _, extract := range extractors {
			token, err := extract(r)
			if err != nil {
				return "", err
			}
			if token != "" {
				return token, nil
			}
		}
		return "", nil
	}
}
