package common

import (
	"encoding/json"
	"net/http"
)

// Envelope is the canonical success payload: data plus an optional
// human-readable message and endpoint-specific meta.
type Envelope struct {
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
	Meta    any    `json:"meta,omitempty"`
}

// ErrorBody represents a consistent error payload returned by the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONData wraps v in the success envelope with an optional message.
func JSONData(w http.ResponseWriter, status int, v any, message string) {
	JSON(w, status, Envelope{Data: v, Message: message})
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
