package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
)

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, retryable bool) {
	if err := WriteJSON(w, status, errorBody{Error: msg, Retryable: retryable}); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "Internal Server Error", false)
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	writeError(w, http.StatusBadRequest, msg, false)
}

func Unauthorized(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("unauthorized", "message", msg, "error", err)
	}
	writeError(w, http.StatusUnauthorized, msg, false)
}

// StatusFor maps a service error to the HTTP status it is reported with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, bracket.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bracket.ErrInvalidState), errors.Is(err, bracket.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, bracket.ErrInvalidWinner),
		errors.Is(err, bracket.ErrInvalidRoster),
		errors.Is(err, bracket.ErrInvalidScore),
		errors.Is(err, bracket.ErrUnknownSeeding):
		return http.StatusUnprocessableEntity
	case bracket.Retryable(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Error reports a service error. Dependency failures are flagged retryable
// and their cause is only logged.
func Error(w http.ResponseWriter, msg string, err error) {
	status := StatusFor(err)
	switch status {
	case http.StatusInternalServerError:
		InternalServerError(w, msg, err)
	case http.StatusServiceUnavailable:
		slog.Error(msg, "error", err)
		writeError(w, status, msg+": temporarily unavailable", true)
	default:
		slog.Warn(msg, "status", status, "error", err)
		writeError(w, status, err.Error(), false)
	}
}
