package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/vaultscan/internal/aggregator"
	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
)

// BalanceAggregator is the aggregate operation the balances endpoint serves.
type BalanceAggregator interface {
	Aggregate(ctx context.Context, address string) aggregator.Result
}

// GetBalances handles GET /api/balances/{address}.
//
// Provider failures never produce an error status: they are listed in the
// coverage part of the response.
func GetBalances(agg BalanceAggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		address := strings.TrimSpace(chi.URLParam(r, "address"))

		if address == "" {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidAddress, "address is required")
			return
		}

		slog.Info("balances requested",
			"address", address,
			"remoteAddr", r.RemoteAddr,
		)

		result := agg.Aggregate(r.Context(), address)

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: result,
			Meta: &models.APIMeta{ExecutionTime: time.Since(start).Milliseconds()},
		})
	}
}
