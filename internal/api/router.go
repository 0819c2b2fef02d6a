package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Fantasim/vaultscan/internal/api/handlers"
	"github.com/Fantasim/vaultscan/internal/api/middleware"
	"github.com/Fantasim/vaultscan/internal/registry"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Deps are the services the API exposes.
type Deps struct {
	Registry   *registry.Registry
	Aggregator handlers.BalanceAggregator
	Health     handlers.SourceHealthLister // nil disables /api/health/sources
	Metrics    prometheus.Gatherer         // nil disables /metrics
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	// Middleware stack (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogging)
	r.Use(middleware.HostCheck)
	r.Use(middleware.CORS)

	slog.Info("router initialized",
		"middleware", []string{"requestId", "recoverer", "requestLogging", "hostCheck", "cors"},
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.HealthHandler(Version, deps.Registry.Len()))
		r.Get("/sources", handlers.ListSources(deps.Registry))
		r.Get("/balances/{address}", handlers.GetBalances(deps.Aggregator))
		if deps.Health != nil {
			r.Get("/health/sources", handlers.GetSourceHealth(deps.Health, deps.Registry.Chains()))
		}
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	return r
}
