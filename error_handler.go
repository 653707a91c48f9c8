package bearerauth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/authsamples/go-bearer-auth/apierrors"
)

// ErrorHandler converts a classified pipeline error into an HTTP response.
// The default implementation should suit most callers; custom handlers must
// still map apierrors classifications to statuses themselves.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// errorResponse is the serialized error body. 401 responses carry code and
// message only; 500 responses add the correlation fields used to match the
// failure against server logs. Internal causes are never serialized.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
	Area    string `json:"area,omitempty"`
	UTCTime string `json:"utcTime,omitempty"`
}

// DefaultErrorHandler writes the classified error as JSON. Unclassified
// errors are wrapped as generic server errors, which stamps them with a
// correlation id at this final handling point.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	apiErr := apierrors.Classify(err)

	body := errorResponse{
		Code:    string(apiErr.Code),
		Message: apiErr.Message,
	}
	if apiErr.Status() >= http.StatusInternalServerError {
		body.ID = apiErr.ID
		body.Area = apiErr.Area
		body.UTCTime = apiErr.UTCTime.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status())
	_ = json.NewEncoder(w).Encode(body)
}
