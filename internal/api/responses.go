package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "deepview/backend/internal/errors"
)

// ErrorResponse is the JSON body for any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Could not encode response", "error", err)
	}
}

// respondWithError maps domain sentinels onto HTTP statuses. Unrecognized
// errors are logged in full but reported generically so internals never leak.
func respondWithError(w http.ResponseWriter, err error) {
	var status int
	var message string

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
		message = apperrors.ErrNotFound.Error()
	case errors.Is(err, apperrors.ErrRateLimited):
		status = http.StatusTooManyRequests
		message = "Rate limit exceeded, please try again later."
	case errors.Is(err, apperrors.ErrPaymentRequired):
		status = http.StatusPaymentRequired
		message = "Insufficient credits. Please add funds to your workspace."
	case errors.Is(err, apperrors.ErrUpstream):
		status = http.StatusBadGateway
		message = apperrors.ErrUpstream.Error()
	default:
		slog.Error("Unhandled error in request", "error", err)
		status = http.StatusInternalServerError
		message = apperrors.ErrInternal.Error()
	}

	respondWithJSON(w, status, ErrorResponse{Error: message})
}
