package api

import (
	"encoding/json"
	"net/http"

	"github.com/strefethen/connect-bridge-go/internal/apperrors"
)

// ListResponse is the envelope of every collection endpoint, for example
// {"object": "list", "data": [...], "has_more": false, "url": "/v1/audit/events"}.
type ListResponse struct {
	Object  string `json:"object"`
	Data    any    `json:"data"`
	HasMore bool   `json:"has_more"`
	URL     string `json:"url"`
}

// ErrorResponse is the envelope of every control-route error.
type ErrorResponse struct {
	Error apperrors.Body `json:"error"`
}

// WriteJSON sends payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

// WriteError writes err as an ErrorResponse with its mapped status.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.EnsureAppError(err)
	_ = WriteJSON(w, appErr.StatusCode, ErrorResponse{Error: appErr.Body()})
}

// WriteList writes one page of a collection.
func WriteList(w http.ResponseWriter, url string, data any, hasMore bool) error {
	return WriteJSON(w, http.StatusOK, ListResponse{
		Object:  "list",
		Data:    data,
		HasMore: hasMore,
		URL:     url,
	})
}

// WriteResource writes a single resource that already carries its "object"
// field.
func WriteResource(w http.ResponseWriter, status int, resource any) error {
	return WriteJSON(w, status, resource)
}
