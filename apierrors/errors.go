// Package apierrors defines the closed set of error classifications produced
// by the authorization pipeline.
//
// Components never write HTTP responses themselves; they return an *Error
// carrying one of the codes below, and the transport boundary maps it to a
// status and a serialized body. 401-class errors deliberately share a single
// generic message so that callers cannot probe which validation step failed.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Code is a machine-readable error classification.
type Code string

const (
	// CodeInvalidToken covers every client-side token problem: missing or
	// malformed header, bad signature, wrong issuer or audience, expired or
	// not-yet-valid token. Sub-reasons are never exposed to the caller.
	CodeInvalidToken Code = "invalid_token"

	// CodeMetadataLookup indicates the OIDC discovery document could not be
	// retrieved or parsed. Fatal at startup.
	CodeMetadataLookup Code = "metadata_lookup_failure"

	// CodeSigningKeyDownload indicates the JWKS refresh failed after a
	// key-id miss.
	CodeSigningKeyDownload Code = "signing_key_download_failure"

	// CodeClaimsFailure indicates the custom claims computation failed
	// (timeout, malformed response, unreachable claims source).
	CodeClaimsFailure Code = "claims_failure"

	// CodeServerError is the catch-all for unclassified failures.
	CodeServerError Code = "server_error"
)

// ErrUnauthorized is the sentinel that every 401-class error matches via
// errors.Is, mirroring how callers check for invalid credentials without
// caring about the concrete failure.
var ErrUnauthorized = errors.New("missing, invalid or expired access token")

// Error is the classified error value returned by the pipeline.
//
// For 500-class codes, ID, Area and UTCTime carry support correlation data
// assigned once at the point the error is created. 401-class errors leave
// them zero: they are expected, high-frequency, and not actionable
// server-side.
type Error struct {
	Code    Code
	Message string
	Cause   error

	ID      string
	Area    string
	UTCTime time.Time
}

// Error implements the error interface. The cause is included so that server
// logs stay useful; response serialization uses Code and Message only.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets 401-class errors compare equal to ErrUnauthorized.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Code == CodeInvalidToken
}

// Status maps the classification to an HTTP status code.
func (e *Error) Status() int {
	if e.Code == CodeInvalidToken {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// Invalid builds a 401-class error wrapping the real validation failure.
// The message is fixed: it must not leak which check failed.
func Invalid(cause error) *Error {
	return &Error{
		Code:    CodeInvalidToken,
		Message: ErrUnauthorized.Error(),
		Cause:   cause,
	}
}

// Server builds a 500-class error with the given code and area, stamping the
// correlation id and timestamp used to match the response against logs.
func Server(code Code, area, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		ID:      uuid.NewString(),
		Area:    area,
		UTCTime: time.Now().UTC(),
	}
}

// Classify returns err as an *Error, wrapping anything unclassified as a
// generic server error. It is idempotent for already-classified errors.
func Classify(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Server(CodeServerError, "authorization", "problem encountered in the authorization pipeline", err)
}
