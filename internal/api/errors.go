package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pauljones0/dealboard/internal/home"
	"github.com/pauljones0/dealboard/internal/models"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: errorType, Message: message}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// handleServiceError converts service and store errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, home.ErrInvalidSection), errors.Is(err, home.ErrInvalidSort),
		errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidPageToken):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	case errors.Is(err, home.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "AuthRequired", err.Error())
	case errors.Is(err, models.ErrForbidden):
		writeError(w, http.StatusForbidden, "NotAuthorized", "You may only change what you posted")
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, models.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "AlreadyExists", err.Error())
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
	}
}
