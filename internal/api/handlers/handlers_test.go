package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/vaultscan/internal/aggregator"
	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
	"github.com/Fantasim/vaultscan/internal/registry"
	"github.com/Fantasim/vaultscan/internal/store"
)

type fakeAggregator struct {
	gotAddress string
	result     aggregator.Result
}

func (f *fakeAggregator) Aggregate(_ context.Context, address string) aggregator.Result {
	f.gotAddress = address
	return f.result
}

type fakeLister struct {
	rows []store.SourceHealthRow
	err  error
}

func (f *fakeLister) GetAllSourceHealth(context.Context) ([]store.SourceHealthRow, error) {
	return f.rows, f.err
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.SourceDescriptor{
		{
			Name:      "ethereum-native",
			Chain:     "ethereum",
			Protocol:  registry.ProtocolEVM,
			Endpoints: []string{"https://eth-mainnet.g.alchemy.com/v2/{apiKey}", "https://cloudflare-eth.com"},
			APIKey:    "secret-key",
			Symbol:    "ETH",
		},
		{
			Name:      "solana-native",
			Chain:     "solana",
			Protocol:  registry.ProtocolSolana,
			Endpoints: []string{"https://api.mainnet-beta.solana.com"},
			Symbol:    "SOL",
		},
	})
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	return reg
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	HealthHandler("1.2.3", 4)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != "1.2.3" || resp["sources"] != float64(4) {
		t.Errorf("unexpected body: %v", resp)
	}
}

func TestListSources_MasksCredentials(t *testing.T) {
	reg := testRegistry(t)

	req := httptest.NewRequest("GET", "/api/sources", nil)
	w := httptest.NewRecorder()
	ListSources(reg)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), "secret-key") {
		t.Fatalf("response leaks the API key: %s", w.Body.String())
	}

	var resp struct {
		Data []SourceResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(resp.Data))
	}
	if resp.Data[0].Name != "ethereum-native" || resp.Data[0].Kind != models.KindNativeRPC {
		t.Errorf("first source = %+v", resp.Data[0])
	}
	if len(resp.Data[0].Endpoints) != 2 || !strings.Contains(resp.Data[0].Endpoints[0], "***") {
		t.Errorf("endpoints not masked: %v", resp.Data[0].Endpoints)
	}
}

func TestGetBalances(t *testing.T) {
	agg := &fakeAggregator{result: aggregator.Result{
		Records: []models.BalanceRecord{
			{Chain: "ethereum", Token: models.TokenNative, Name: "ETH", Balance: "1.5", Source: "ethereum-native"},
		},
		Report: aggregator.CoverageReport{
			Sources: []aggregator.SourceStatus{
				{Source: "ethereum-native", OK: true},
				{Source: "base-native", Reason: models.ReasonNotEnabled, Code: config.ErrorNetworkNotEnabled},
			},
			Succeeded: 1,
			Failed:    1,
		},
	}}

	r := chi.NewRouter()
	r.Get("/api/balances/{address}", GetBalances(agg))

	req := httptest.NewRequest("GET", "/api/balances/0xAbC", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with failed sources. body: %s", w.Code, w.Body.String())
	}
	if agg.gotAddress != "0xAbC" {
		t.Errorf("aggregated address = %q, want it passed through unchanged", agg.gotAddress)
	}

	var resp struct {
		Data struct {
			Balances []models.BalanceRecord   `json:"balances"`
			Coverage aggregator.CoverageReport `json:"coverage"`
		} `json:"data"`
		Meta *models.APIMeta `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Data.Balances) != 1 || resp.Data.Balances[0].Balance != "1.5" {
		t.Errorf("balances = %+v", resp.Data.Balances)
	}
	if resp.Data.Coverage.Failed != 1 || resp.Data.Coverage.Sources[1].Code != config.ErrorNetworkNotEnabled {
		t.Errorf("coverage = %+v", resp.Data.Coverage)
	}
	if resp.Meta == nil {
		t.Error("expected meta in response")
	}
}

func TestGetBalances_BlankAddress(t *testing.T) {
	agg := &fakeAggregator{}

	r := chi.NewRouter()
	r.Get("/api/balances/{address}", GetBalances(agg))

	req := httptest.NewRequest("GET", "/api/balances/%20%20", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp models.APIError
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Error.Code != config.ErrorInvalidAddress {
		t.Errorf("code = %s, want %s", resp.Error.Code, config.ErrorInvalidAddress)
	}
	if agg.gotAddress != "" {
		t.Error("aggregator must not be called for a blank address")
	}
}

func TestGetSourceHealth_GroupsByChain(t *testing.T) {
	lister := &fakeLister{rows: []store.SourceHealthRow{
		{SourceName: "ethereum-native", Chain: "ethereum", Status: config.SourceStatusHealthy},
	}}

	req := httptest.NewRequest("GET", "/api/health/sources", nil)
	w := httptest.NewRecorder()
	GetSourceHealth(lister, []string{"ethereum", "solana"})(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data map[string][]store.SourceHealthRow `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Data["ethereum"]) != 1 {
		t.Errorf("ethereum = %+v", resp.Data["ethereum"])
	}
	if rows, ok := resp.Data["solana"]; !ok || len(rows) != 0 {
		t.Errorf("solana should be an empty list, got %v (present=%v)", rows, ok)
	}
}

func TestGetSourceHealth_StoreError(t *testing.T) {
	lister := &fakeLister{err: errors.New("database is locked")}

	req := httptest.NewRequest("GET", "/api/health/sources", nil)
	w := httptest.NewRecorder()
	GetSourceHealth(lister, nil)(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), config.ErrorDatabase) {
		t.Errorf("body = %s", w.Body.String())
	}
}
