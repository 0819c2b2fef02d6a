package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Fantasim/vaultscan/internal/models"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics holds the per-source fetch series, partitioned by source + chain.
type Metrics struct {
	SourceFetches  *prometheus.CounterVec
	SourceFailures *prometheus.CounterVec
	SourceAttempts *prometheus.CounterVec
	SourceLatency  *prometheus.HistogramVec
	SourceRecords  *prometheus.CounterVec
	Aggregates     prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SourceFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultscan",
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "Total source fetches by outcome",
		}, []string{"source", "chain", "outcome"}),

		SourceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultscan",
			Subsystem: "source",
			Name:      "failures_total",
			Help:      "Total failed source fetches by failure reason",
		}, []string{"source", "chain", "reason"}),

		SourceAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultscan",
			Subsystem: "source",
			Name:      "provider_calls_total",
			Help:      "Total provider calls, retries and failover included",
		}, []string{"source", "chain"}),

		SourceLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vaultscan",
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Source fetch duration across all endpoints",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source", "chain"}),

		SourceRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultscan",
			Subsystem: "source",
			Name:      "records_total",
			Help:      "Total balance records returned by a source before merging",
		}, []string{"source", "chain"}),

		Aggregates: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vaultscan",
			Subsystem: "aggregator",
			Name:      "calls_total",
			Help:      "Total aggregate calls",
		}),
	}
}

// RecordOutcomes observes one aggregate call. It never fails.
func (m *Metrics) RecordOutcomes(_ context.Context, outcomes []models.FetchOutcome) error {
	m.Aggregates.Inc()

	for _, o := range outcomes {
		switch {
		case o.Skipped:
			m.SourceFetches.WithLabelValues(o.Source, o.Chain, OutcomeSkipped).Inc()
			continue
		case o.OK():
			m.SourceFetches.WithLabelValues(o.Source, o.Chain, OutcomeOK).Inc()
			m.SourceRecords.WithLabelValues(o.Source, o.Chain).Add(float64(len(o.Records)))
		default:
			m.SourceFetches.WithLabelValues(o.Source, o.Chain, OutcomeFailed).Inc()
			reason := o.Reason
			if reason == models.ReasonNone {
				reason = models.ReasonNetworkError
			}
			m.SourceFailures.WithLabelValues(o.Source, o.Chain, string(reason)).Inc()
		}

		m.SourceAttempts.WithLabelValues(o.Source, o.Chain).Add(float64(o.Attempts))
		m.SourceLatency.WithLabelValues(o.Source, o.Chain).Observe(o.Duration.Seconds())
	}
	return nil
}
