package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pysugar/hipchat-connect/internal/apperr"
	"github.com/pysugar/hipchat-connect/internal/descriptor"
	"github.com/pysugar/hipchat-connect/internal/install"
	"github.com/pysugar/hipchat-connect/internal/lifecycle"
)

// DescriptorHandler serves GET /descriptor/{app_id}.
func DescriptorHandler(registry *install.Registry, builder *descriptor.Builder, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "app_id", "addon")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		addon, err := registry.GetAddon(r.Context(), id)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		desc := builder.BuildDescriptor(addon)
		if desc == nil {
			writeError(w, r, log, apperr.NewNotFound("addon", id))
			return
		}
		writeJSON(w, http.StatusOK, desc)
	}
}

// InstallHandler serves the install callback POST /install/{app_id}.
func InstallHandler(svc *lifecycle.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "app_id", "addon")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, r, log, &apperr.MalformedPayloadError{Reason: err.Error()})
			return
		}

		inst, err := svc.Install(r.Context(), id, body)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, inst)
	}
}

// UninstallHandler serves DELETE /install/{app_id}/{oauth_id}.
func UninstallHandler(svc *lifecycle.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "app_id", "addon")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		oauthID := chi.URLParam(r, "oauth_id")
		if err := svc.Uninstall(r.Context(), id, oauthID); err != nil {
			writeError(w, r, log, err)
			return
		}
		log.Info("addon uninstalled", "addon_id", id, "oauth_id", oauthID)
		w.WriteHeader(http.StatusNoContent)
	}
}
