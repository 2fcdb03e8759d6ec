package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/pysugar/hipchat-connect/internal/apperr"
	"github.com/pysugar/hipchat-connect/internal/auth/token"
	"github.com/pysugar/hipchat-connect/internal/db"
	"github.com/pysugar/hipchat-connect/internal/db/models"
	"github.com/pysugar/hipchat-connect/internal/glance"
	"github.com/pysugar/hipchat-connect/internal/hipchat"
	"github.com/pysugar/hipchat-connect/internal/install"
	"github.com/pysugar/hipchat-connect/internal/util"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// TokenSource forces a token for one install.
type TokenSource interface {
	GetOrRefresh(ctx context.Context, inst *models.Install, autoRefresh bool) (*token.Token, bool, error)
}

// RoomMessenger delivers a room notification, directly or through the queue.
type RoomMessenger interface {
	SendRoomMessage(ctx context.Context, room string, msg hipchat.Message) error
}

// GlanceUpdateRequest is the body of POST /api/glances/{glance_id}/updates.
type GlanceUpdateRequest struct {
	Target   string          `json:"target" validate:"omitempty,oneof=global room user"`
	Room     string          `json:"room" validate:"required_if=Target room"`
	User     string          `json:"user" validate:"required_if=Target user"`
	Label    string          `json:"label" validate:"required,max=1000"`
	Lozenge  *LozengeRequest `json:"lozenge"`
	Icon     *glance.Icon    `json:"icon"`
	Metadata json.RawMessage `json:"metadata"`
}

type LozengeRequest struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

func (req *GlanceUpdateRequest) options() ([]glance.Option, error) {
	var opts []glance.Option
	if req.Lozenge != nil {
		kind, err := glance.ParseLozengeType(req.Lozenge.Type)
		if err != nil {
			return nil, &apperr.MalformedPayloadError{Field: "lozenge.type", Reason: err.Error()}
		}
		l, err := glance.NewLozenge(kind, req.Lozenge.Label)
		if err != nil {
			return nil, &apperr.MalformedPayloadError{Field: "lozenge.label", Reason: err.Error()}
		}
		opts = append(opts, glance.WithLozenge(l))
	}
	if req.Icon != nil {
		opts = append(opts, glance.WithIcon(*req.Icon))
	}
	if len(req.Metadata) > 0 {
		opts = append(opts, glance.WithMetadata(req.Metadata))
	}
	return opts, nil
}

// PublishGlanceHandler pushes a glance update to the platform and returns
// the recorded history row.
func PublishGlanceHandler(publisher *glance.Publisher, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "glance_id", "glance")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		var req GlanceUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, r, log, &apperr.MalformedPayloadError{Reason: err.Error()})
			return
		}
		opts, err := req.options()
		if err != nil {
			writeError(w, r, log, err)
			return
		}

		g, err := publisher.GetGlance(r.Context(), id)
		if err != nil {
			writeError(w, r, log, err)
			return
		}

		var row *models.GlanceUpdate
		switch req.Target {
		case "room":
			row, err = publisher.PublishRoomUpdate(r.Context(), g, req.Room, req.Label, opts...)
		case "user":
			row, err = publisher.PublishUserUpdate(r.Context(), g, req.User, req.Label, opts...)
		default:
			row, err = publisher.PublishGlobalUpdate(r.Context(), g, req.Label, opts...)
		}
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, row)
	}
}

type tokenResponse struct {
	OAuthID     string    `json:"oauth_id"`
	AccessToken string    `json:"access_token"`
	Scope       string    `json:"scope"`
	GroupID     int64     `json:"group_id"`
	GroupName   string    `json:"group_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RefreshTokenHandler returns a usable token for an install, exchanging one
// if none is cached. The token itself is masked.
func RefreshTokenHandler(registry *install.Registry, tokens TokenSource, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, err := registry.GetInstall(r.Context(), chi.URLParam(r, "oauth_id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		tok, _, err := tokens.GetOrRefresh(r.Context(), inst, true)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{
			OAuthID:     inst.OAuthID,
			AccessToken: util.MaskSecret(tok.AccessToken),
			Scope:       tok.Scope,
			GroupID:     tok.GroupID,
			GroupName:   tok.GroupName,
			ExpiresAt:   tok.ExpiresAt,
		})
	}
}

// ListInstallsHandler serves GET /api/addons/{app_id}/installs.
func ListInstallsHandler(registry *install.Registry, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "app_id", "addon")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if _, err := registry.GetAddon(r.Context(), id); err != nil {
			writeError(w, r, log, err)
			return
		}
		installs, err := registry.ListInstalls(r.Context(), id)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"installs": installs})
	}
}

// RoomNotificationRequest is the body of POST /api/notifications/room.
type RoomNotificationRequest struct {
	Room    string `json:"room" validate:"required"`
	Message string `json:"message" validate:"required"`
	Color   string `json:"color"`
	Format  string `json:"format"`
	Notify  bool   `json:"notify"`
	From    string `json:"from"`
}

// RoomNotificationHandler sends a message to a room. With a queue
// configured the message is only accepted, hence 202.
func RoomNotificationHandler(messenger RoomMessenger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RoomNotificationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, r, log, &apperr.MalformedPayloadError{Reason: err.Error()})
			return
		}

		opts := []hipchat.MessageOption{hipchat.WithNotify(req.Notify)}
		if req.Color != "" {
			opts = append(opts, hipchat.WithColor(req.Color))
		}
		if req.Format != "" {
			opts = append(opts, hipchat.WithFormat(req.Format))
		}
		if req.From != "" {
			opts = append(opts, hipchat.WithSender(req.From))
		}
		if err := messenger.SendRoomMessage(r.Context(), req.Room, hipchat.NewMessage(req.Message, opts...)); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

// GetAPIKeyHandler returns the admin API key, masked.
func GetAPIKeyHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"api_key": util.MaskSecret(db.GetAPIKey(database)),
			"masked":  true,
		})
	}
}

// RegenerateAPIKeyHandler replaces the admin API key and returns the new
// value once, unmasked.
func RegenerateAPIKeyHandler(database *gorm.DB, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey, err := db.RegenerateAPIKey(database)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		log.Info("regenerated admin api key", "api_key", util.MaskSecret(apiKey))
		writeJSON(w, http.StatusOK, map[string]any{
			"api_key": apiKey,
			"masked":  false,
		})
	}
}

// HealthHandler reports liveness.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
