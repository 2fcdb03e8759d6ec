// Package handlers implements the add-on HTTP surface: the descriptor,
// install and uninstall callbacks, signed glance requests and the admin API.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pysugar/hipchat-connect/internal/apperr"
	"github.com/pysugar/hipchat-connect/internal/hipchat"
	"github.com/pysugar/hipchat-connect/internal/logging"
)

// maxBodyBytes bounds inbound JSON bodies.
const maxBodyBytes = 64 << 10

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Type: errType, Message: message}})
}

// writeError answers with the status apperr assigns to err. Client errors
// are logged as warnings, everything else as errors.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, errType, message := classify(err)

	l := logging.FromContext(r.Context(), log)
	if status >= http.StatusInternalServerError {
		l.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		l.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeErrorBody(w, status, errType, message)
}

func classify(err error) (int, string, string) {
	var (
		exchange *apperr.TokenExchangeError
		apiErr   *hipchat.APIError
	)
	switch {
	case errors.As(err, &exchange):
		return http.StatusBadGateway, apperr.Type(err), exchange.Message()
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "platform_error", apiErr.Message()
	case errors.Is(err, hipchat.ErrInvalidMessage):
		return http.StatusBadRequest, "invalid_message", err.Error()
	case errors.Is(err, hipchat.ErrNoPersonalToken):
		return http.StatusServiceUnavailable, "not_configured", err.Error()
	}
	return apperr.HTTPStatus(err), apperr.Type(err), err.Error()
}

// pathID reads a numeric URL parameter. Anything that is not a positive
// integer cannot name a stored row and is reported as kind not found.
func pathID(r *http.Request, param, kind string) (uint, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.NewNotFound(kind, raw)
	}
	return uint(id), nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &apperr.MalformedPayloadError{Reason: err.Error()}
	}
	return nil
}
