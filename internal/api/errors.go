package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"moodcanvas/internal/apperr"
)

const (
	errCodeInvalidInput = "INVALID_INPUT"
	errCodeInternal     = "INTERNAL_ERROR"
	errCodeUnavailable  = "SERVICE_UNAVAILABLE"
	errCodeRateLimited  = "RATE_LIMITED"
	errCodeTimeout      = "TIMEOUT"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message, Details: details}})
}

// mapError translates an archive error into an HTTP status and code.
func mapError(err error) (int, string, string) {
	if apperr.IsValidation(err) {
		return http.StatusBadRequest, errCodeInvalidInput, err.Error()
	}
	if apperr.IsTimeout(err) {
		return http.StatusGatewayTimeout, errCodeTimeout, "upstream request timed out"
	}
	if apperr.IsStorage(err) {
		return http.StatusServiceUnavailable, errCodeUnavailable, "archive backend unavailable"
	}
	return http.StatusInternalServerError, errCodeInternal, "an internal server error occurred"
}

// validationDetails surfaces validation detail maps to the client.
func validationDetails(err error) map[string]any {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		return verr.Details
	}
	return nil
}
