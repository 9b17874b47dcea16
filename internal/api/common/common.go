// Package common provides shared HTTP response helpers for API handlers.
package common

import (
	"encoding/json"
	"net/http"
)

// Response URNs carried in the type field of every response body.
const (
	URNSuccess          = "urn:dx:rs:success"
	URNBadRequest       = "urn:dx:rs:badRequest"
	URNInvalidAuthToken = "urn:dx:rs:invalidAuthorizationToken"
	URNResourceNotFound = "urn:dx:rs:resourceNotFound"
	URNBackendError     = "urn:dx:rs:backendError"
)

// Response is the standard API response envelope.
type Response struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Detail  string `json:"detail,omitempty"`
	Results any    `json:"results,omitempty"`
}

// WriteJSONResponse writes a JSON response with the given data
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// WriteSuccessResponse writes a success envelope carrying results.
func WriteSuccessResponse(w http.ResponseWriter, results any) {
	WriteJSONResponse(w, Response{
		Type:    URNSuccess,
		Title:   "Success",
		Results: results,
	}, http.StatusOK)
}

// WriteErrorResponse writes an error envelope with the given URN and detail.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, urn, detail string) {
	WriteJSONResponse(w, Response{
		Type:   urn,
		Title:  http.StatusText(statusCode),
		Detail: detail,
	}, statusCode)
}
