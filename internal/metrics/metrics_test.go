package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/Fantasim/vaultscan/internal/models"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRecordOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())

	outcomes := []models.FetchOutcome{
		{Source: "ethereum-native", Chain: "ethereum", Records: []models.BalanceRecord{{}, {}}, Attempts: 1, Duration: 120 * time.Millisecond},
		{Source: "base-native", Chain: "base", Reason: models.ReasonTimeout, Err: errors.New("timeout"), Attempts: 4},
		{Source: "solana-native", Chain: "solana", Skipped: true},
	}

	if err := m.RecordOutcomes(context.Background(), outcomes); err != nil {
		t.Fatalf("RecordOutcomes() error = %v", err)
	}

	tests := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"ok fetch", m.SourceFetches.WithLabelValues("ethereum-native", "ethereum", OutcomeOK), 1},
		{"failed fetch", m.SourceFetches.WithLabelValues("base-native", "base", OutcomeFailed), 1},
		{"skipped fetch", m.SourceFetches.WithLabelValues("solana-native", "solana", OutcomeSkipped), 1},
		{"timeout reason", m.SourceFailures.WithLabelValues("base-native", "base", string(models.ReasonTimeout)), 1},
		{"records", m.SourceRecords.WithLabelValues("ethereum-native", "ethereum"), 2},
		{"attempts", m.SourceAttempts.WithLabelValues("base-native", "base"), 4},
		{"aggregates", m.Aggregates, 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Aggregates.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "vaultscan_aggregator_calls_total" {
			found = true
		}
	}
	if !found {
		t.Error("vaultscan_aggregator_calls_total not registered")
	}
}
