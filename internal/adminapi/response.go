// Package adminapi is the operator-facing HTTP API (SPEC_FULL §6): a chi
// router over internal/pubsub.Root and internal/server.Registry for
// inspecting and configuring a running node without touching the
// subscriber-facing pub/sub protocol itself.
//
// Grounded on Resin's internal/api package: the same WriteJSON/WriteError
// envelope, the same ServiceError-to-status mapping idiom, the same
// healthz/list/get handler shapes — rewritten against this domain's model
// (node groups and configurations instead of platforms and leases).
package adminapi

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standard error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
