package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
	"github.com/Fantasim/vaultscan/internal/registry"
)

// Fetcher is one balance source. Fetch must always return a settled outcome.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, address string) models.FetchOutcome
}

// describer is implemented by fetchers built from a registry descriptor. It
// lets a recovered panic still report the source's chain and kind.
type describer interface {
	Descriptor() registry.SourceDescriptor
}

// HealthRecorder receives every outcome of an aggregate call after the join.
type HealthRecorder interface {
	RecordOutcomes(ctx context.Context, outcomes []models.FetchOutcome) error
}

// Result is the merged balance list plus the coverage of the call.
type Result struct {
	Records []models.BalanceRecord `json:"balances"`
	Report  CoverageReport         `json:"coverage"`
}

// Aggregator fans an address out to every source and merges the results.
type Aggregator struct {
	sources   []Fetcher
	recorders []HealthRecorder
}

// New creates an aggregator over sources, kept in the given (registry) order.
func New(sources []Fetcher) *Aggregator {
	return &Aggregator{sources: append([]Fetcher(nil), sources...)}
}

// AddRecorder attaches a health recorder. Recorders run in the order added.
func (a *Aggregator) AddRecorder(r HealthRecorder) {
	a.recorders = append(a.recorders, r)
}

// Sources returns the number of sources.
func (a *Aggregator) Sources() int {
	return len(a.sources)
}

// Aggregate returns the holdings of address across all sources.
//
// It never fails: sources that fail only show up in the coverage report, and
// a call where every source fails returns an empty list. An empty address
// returns immediately without dispatching anything.
func (a *Aggregator) Aggregate(ctx context.Context, address string) Result {
	start := time.Now()
	id := uuid.NewString()
	address = strings.TrimSpace(address)

	if address == "" {
		slog.Debug("aggregate called with empty address, nothing dispatched")
		return Result{
			Records: []models.BalanceRecord{},
			Report:  CoverageReport{ID: id, Sources: []SourceStatus{}},
		}
	}

	slog.Info("aggregate started",
		"aggregateId", id,
		"address", address,
		"sources", len(a.sources),
	)

	// Each task owns one slot; slots are only read after the join.
	outcomes := make([]models.FetchOutcome, len(a.sources))
	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src Fetcher) {
			defer wg.Done()
			taskStart := time.Now()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("recovered panic in source task",
						"source", src.Name(),
						"panic", r,
					)
					out := models.FetchOutcome{
						Source:   src.Name(),
						Reason:   models.ReasonNetworkError,
						Err:      fmt.Errorf("%w: panic: %v", config.ErrProviderUnavailable, r),
						Duration: time.Since(taskStart),
					}
					if d, ok := src.(describer); ok {
						desc := d.Descriptor()
						out.Chain, out.Kind = desc.Chain, desc.Kind
					}
					outcomes[i] = out
				}
			}()
			outcomes[i] = src.Fetch(ctx, address)
		}(i, src)
	}
	wg.Wait()

	records := Merge(outcomes)
	report := NewCoverageReport(address, outcomes, time.Since(start))
	report.ID = id

	for _, r := range a.recorders {
		if err := r.RecordOutcomes(context.WithoutCancel(ctx), outcomes); err != nil {
			slog.Warn("failed to record source outcomes", "aggregateId", id, "error", err)
		}
	}

	slog.Info("aggregate complete",
		"aggregateId", id,
		"address", address,
		"records", len(records),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.Duration.Round(time.Millisecond),
	)

	return Result{Records: records, Report: report}
}

type dedupKey struct {
	chain    string
	token    string
	contract string
}

// keyOf identifies the asset a record holds. Providers disagree on token
// symbols, so a contract address alone identifies a non-native asset. Hex
// contracts compare case-insensitively; base58 mints are case-sensitive.
func keyOf(r models.BalanceRecord) dedupKey {
	contract := r.ContractAddress
	if strings.HasPrefix(contract, "0x") || strings.HasPrefix(contract, "0X") {
		contract = strings.ToLower(contract)
	}
	token := r.Token
	if contract != "" && !r.IsNative() {
		token = ""
	}
	return dedupKey{chain: r.Chain, token: token, contract: contract}
}

// authoritative reports whether a source of kind is the designated path for r:
// native balances come from NativeRPC sources, token balances from TokenAPI.
func authoritative(r models.BalanceRecord, kind models.SourceKind) bool {
	if r.IsNative() {
		return kind == models.KindNativeRPC
	}
	return kind == models.KindTokenAPI
}

// Merge concatenates successful outcomes in the order given and removes
// duplicate assets. A record from the authoritative source kind replaces a
// non-authoritative one in place; any other duplicate is dropped and logged.
// Records whose balance is not a positive decimal are dropped.
func Merge(outcomes []models.FetchOutcome) []models.BalanceRecord {
	out := []models.BalanceRecord{}
	kinds := []models.SourceKind{}
	index := make(map[dedupKey]int)

	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		for _, rec := range o.Records {
			if !positive(rec.Balance) {
				slog.Warn("dropping record without a positive balance",
					"source", o.Source,
					"chain", rec.Chain,
					"token", rec.Token,
					"balance", rec.Balance,
				)
				continue
			}

			k := keyOf(rec)
			pos, dup := index[k]
			if !dup {
				index[k] = len(out)
				out = append(out, rec)
				kinds = append(kinds, o.Kind)
				continue
			}

			kept := out[pos]
			if !authoritative(kept, kinds[pos]) && authoritative(rec, o.Kind) {
				slog.Debug("duplicate replaced by authoritative source",
					"chain", rec.Chain,
					"token", rec.Token,
					"kept", rec.Source,
					"dropped", kept.Source,
				)
				out[pos] = rec
				kinds[pos] = o.Kind
				continue
			}

			slog.Warn("duplicate balance record dropped",
				"chain", rec.Chain,
				"token", rec.Token,
				"contract", rec.ContractAddress,
				"kept", kept.Source,
				"dropped", rec.Source,
			)
		}
	}

	return out
}

func positive(balance string) bool {
	d, err := decimal.NewFromString(balance)
	return err == nil && d.IsPositive()
}
