package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/budgetme/prediction-api/internal/forecast"
	"github.com/budgetme/prediction-api/internal/usage"
)

// Error codes surfaced to clients beyond the forecast package's own.
const (
	codeUnauthenticated = "UNAUTHENTICATED"
	codeQuotaExceeded   = "USAGE_LIMIT_EXCEEDED"
	codeBadRequest      = "INVALID_REQUEST"
	codeInternal        = "INTERNAL"
)

// errorEnvelope is the uniform JSON error shape of the API.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id,omitempty"`
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{ //nolint:errcheck
		Error: errorBody{
			Code:      code,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC(),
			RequestID: requestIDFrom(r),
		},
	})
}

// writeServiceError maps domain errors to HTTP statuses and writes them.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *forecast.Error
	if errors.As(err, &fe) {
		writeError(w, r, forecastStatus(fe.Code), string(fe.Code), fe.Message, fe.Details)
		return
	}
	if errors.Is(err, usage.ErrQuotaExceeded) {
		writeError(w, r, http.StatusTooManyRequests, codeQuotaExceeded,
			"monthly prediction limit reached", nil)
		return
	}
	writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error", nil)
}

// forecastStatus maps forecast error codes to HTTP statuses. Input problems
// are 400s, data-quality rejections are 422s, everything else is a server
// fault.
func forecastStatus(code forecast.ErrorCode) int {
	switch code {
	case forecast.ErrInvalidInput:
		return http.StatusBadRequest
	case forecast.ErrInsufficientData, forecast.ErrModelAccuracyTooLow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a success payload.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload) //nolint:errcheck
}
