package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"github.com/pysugar/hipchat-connect/internal/descriptor"
	"github.com/pysugar/hipchat-connect/internal/glance"
	"github.com/pysugar/hipchat-connect/internal/install"
	"github.com/pysugar/hipchat-connect/internal/lifecycle"
	"github.com/pysugar/hipchat-connect/internal/logging"
	"github.com/pysugar/hipchat-connect/internal/middleware"
)

// Deps are the collaborators the router hands to its handlers.
type Deps struct {
	DB            *gorm.DB
	Registry      *install.Registry
	Lifecycle     *lifecycle.Service
	Descriptors   *descriptor.Builder
	Publisher     *glance.Publisher
	Verifier      *glance.Verifier
	DataSource    glance.DataSource
	Tokens        TokenSource
	Messenger     RoomMessenger
	AdminPassword string
	Log           *slog.Logger
}

// NewRouter wires the public callbacks and the admin API.
func NewRouter(d Deps) http.Handler {
	source := d.DataSource
	if source == nil {
		source = glance.DefaultDataSource{}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(logging.Middleware(d.Log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", HealthHandler())

	// Platform callbacks
	r.Get("/descriptor/{app_id}", DescriptorHandler(d.Registry, d.Descriptors, d.Log))
	r.Post("/install/{app_id}", InstallHandler(d.Lifecycle, d.Log))
	r.Delete("/install/{app_id}/{oauth_id}", UninstallHandler(d.Lifecycle, d.Log))
	r.Get("/glance/{glance_id}", GlanceHandler(d.Publisher, d.Verifier, source, d.Log))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AdminAuth(d.DB, d.AdminPassword))

		r.Get("/config/apikey", GetAPIKeyHandler(d.DB))
		r.Post("/config/apikey/regenerate", RegenerateAPIKeyHandler(d.DB, d.Log))

		r.Get("/addons/{app_id}/installs", ListInstallsHandler(d.Registry, d.Log))
		r.Post("/installs/{oauth_id}/token", RefreshTokenHandler(d.Registry, d.Tokens, d.Log))
		r.Post("/glances/{glance_id}/updates", PublishGlanceHandler(d.Publisher, d.Log))
		if d.Messenger != nil {
			r.Post("/notifications/room", RoomNotificationHandler(d.Messenger, d.Log))
		}
	})

	return r
}
