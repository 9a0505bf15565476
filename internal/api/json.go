package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/cheatsheet/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Code  int    `json:"code" example:"-3" validate:"required"`
}

func errorBody(msg string, code int) errResponse {
	return errResponse{Error: msg, Code: code}
}

// statusFor maps a failure kind onto the HTTP status returned for it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNetwork), errors.Is(err, apperr.ErrReadFile):
		return http.StatusBadGateway
	case errors.Is(err, apperr.ErrEmptyResult), errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidVersion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {error, code}. Tagged failures carry their own
// code and user-facing message; anything else is logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)

	var f *apperr.Failure
	switch {
	case errors.As(err, &f):
		if status >= http.StatusInternalServerError {
			slog.Error(op+" failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		}
		writeJSON(w, status, errorBody(f.Message, f.Code))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, status, errorBody("not found", status))
	case errors.Is(err, context.Canceled):
		slog.Debug(op+" cancelled", slog.String("path", r.URL.Path))
	default:
		slog.Error(op+" failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error", status))
	}
}
