package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pysugar/hipchat-connect/internal/glance"
)

// GlanceHandler serves GET /glance/{glance_id}. The request must carry a JWT
// signed by an install of the glance's addon; the body is the content
// produced by source for that glance.
func GlanceHandler(publisher *glance.Publisher, verifier *glance.Verifier, source glance.DataSource, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The glance is loaded from the browser inside the chat client.
		w.Header().Set("Access-Control-Allow-Origin", "*")

		id, err := pathID(r, "glance_id", "glance")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		g, err := publisher.GetGlance(r.Context(), id)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		inst, err := verifier.Verify(r.Context(), glance.SignedRequest(r), g)
		if err != nil {
			writeError(w, r, log, err)
			return
		}

		update, err := source.FetchUpdate(glance.WithInstall(r.Context(), inst), g)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if update == nil {
			update = glance.Initialising()
		}
		writeJSON(w, http.StatusOK, update.Content())
	}
}
