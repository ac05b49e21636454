// Package httputil provides JSON request/response helpers shared by all
// gateway handlers.
package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/storefronthq/gateway/internal/errors"
)

// =============================================================================
// Responses
// =============================================================================

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the JSON error body for err, using its ServiceError
// status and message when available.
func WriteError(w http.ResponseWriter, err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Unknown("", err)
	}
	WriteJSON(w, se.HTTPStatus, map[string]string{"error": se.Message})
}

// JSONError writes a bare {"error": message} body with the given status.
func JSONError(w http.ResponseWriter, message string, status int) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message string) {
	JSONError(w, message, http.StatusBadRequest)
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "authentication required"
	}
	JSONError(w, message, http.StatusUnauthorized)
}

// Forbidden writes a 403 error response.
func Forbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "insufficient permissions"
	}
	JSONError(w, message, http.StatusForbidden)
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message string) {
	JSONError(w, message, http.StatusNotFound)
}

// InternalError writes a 500 error response.
func InternalError(w http.ResponseWriter, message string) {
	JSONError(w, message, http.StatusInternalServerError)
}

// =============================================================================
// Requests
// =============================================================================

// maxRequestBody bounds inbound JSON bodies.
const maxRequestBody = 1 << 20

// DecodeJSON decodes the request body into v. On failure it writes a 400
// response and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// ReadAllWithLimit reads up to limit bytes from r, reporting whether the
// input was truncated.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// ReadAllStrict reads up to limit bytes from r, failing if the input exceeds
// the limit.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	data, truncated, err := ReadAllWithLimit(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return data, nil
}
