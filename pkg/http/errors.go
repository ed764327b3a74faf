package http

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error             string `json:"error"`                         // Machine-readable error code
	Message           string `json:"message"`                       // Human-readable message
	Reason            string `json:"reason,omitempty"`              // Ban or block reason, verbatim
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"` // Set on 429
	Details           string `json:"details,omitempty"`             // Optional additional context
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorResponse(w, statusCode, ErrorResponse{Error: errorCode, Message: message})
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	WriteErrorResponse(w, statusCode, ErrorResponse{Error: errorCode, Message: message, Details: details})
}

// WriteErrorResponse writes resp as-is. A positive RetryAfterSeconds is also
// sent as the Retry-After header.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	if resp.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
	}
	w.WriteHeader(statusCode)

	// Log encoding errors but don't expose them to client
	_ = json.NewEncoder(w).Encode(resp)
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

// WriteForbiddenWithReason is used for blocked IPs and banned accounts.
func WriteForbiddenWithReason(w http.ResponseWriter, message, reason string) {
	WriteErrorResponse(w, http.StatusForbidden, ErrorResponse{
		Error:   "forbidden",
		Message: message,
		Reason:  reason,
	})
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string, retryAfterSeconds int) {
	WriteErrorResponse(w, http.StatusTooManyRequests, ErrorResponse{
		Error:             "rate_limit_exceeded",
		Message:           message,
		RetryAfterSeconds: retryAfterSeconds,
	})
}

func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, "service_unavailable", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
