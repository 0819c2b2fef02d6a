package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
	"github.com/Fantasim/vaultscan/internal/store"
)

// SourceHealthLister reads the recorded source health.
type SourceHealthLister interface {
	GetAllSourceHealth(ctx context.Context) ([]store.SourceHealthRow, error)
}

// GetSourceHealth returns a handler for GET /api/health/sources.
// Rows are grouped by chain.
func GetSourceHealth(lister SourceHealthLister, chains []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("source health requested", "remoteAddr", r.RemoteAddr)

		rows, err := lister.GetAllSourceHealth(r.Context())
		if err != nil {
			slog.Error("failed to get source health", "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to fetch source health")
			return
		}

		// Every registered chain is present, even before its first call.
		result := make(map[string][]store.SourceHealthRow, len(chains))
		for _, chain := range chains {
			result[chain] = []store.SourceHealthRow{}
		}
		for _, row := range rows {
			result[row.Chain] = append(result[row.Chain], row)
		}

		slog.Debug("source health response", "sourceCount", len(rows))

		writeJSON(w, http.StatusOK, models.APIResponse{Data: result})
	}
}
