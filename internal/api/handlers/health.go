package handlers

import (
	"log/slog"
	"net/http"
)

// HealthHandler returns a handler for the GET /api/health endpoint.
func HealthHandler(version string, sources int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"version": version,
			"sources": sources,
		})
	}
}
