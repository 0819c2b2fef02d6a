package scanner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/registry"
)

func TestJSONRPCCheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1234"}`)) //nolint:errcheck
	}))
	defer server.Close()

	check := makeJSONRPCCheck(server.URL, `{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1}`)
	if err := check(context.Background(), server.Client()); err != nil {
		t.Fatalf("check error = %v, want nil", err)
	}
}

func TestJSONRPCCheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	check := makeJSONRPCCheck(server.URL, `{"jsonrpc":"2.0","method":"getHealth","id":1}`)
	if err := check(context.Background(), server.Client()); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestRESTCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"not found still reachable", http.StatusNotFound, false},
		{"forbidden", http.StatusForbidden, true},
		{"server error", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-API-Key") != "k" {
					t.Error("missing X-API-Key")
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := makeRESTCheck(server.URL, "k")(context.Background(), server.Client())
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.status == http.StatusForbidden && !errors.Is(err, config.ErrNetworkNotEnabled) {
				t.Errorf("403 should wrap ErrNetworkNotEnabled, got %v", err)
			}
		})
	}
}

func TestBuildChecks_OnePerEndpoint(t *testing.T) {
	reg, err := registry.New([]registry.SourceDescriptor{
		{Name: "eth", Chain: "ethereum", Protocol: registry.ProtocolEVM, Endpoints: []string{"https://a/{apiKey}", "https://b"}, APIKey: "s3cret"},
		{Name: "sol", Chain: "solana", Protocol: registry.ProtocolSolana, Endpoints: []string{"https://c"}},
		{Name: "mor", Chain: "bnb", Protocol: registry.ProtocolMoralisEVM, Endpoints: []string{"https://d"}, APIKey: "k"},
	})
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}

	checks := BuildChecks(reg)
	if len(checks) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(checks))
	}
	if checks[0].Endpoint != "https://a/***" {
		t.Errorf("endpoint not masked: %s", checks[0].Endpoint)
	}
	for _, c := range checks {
		if c.CheckFn == nil {
			t.Errorf("check %s/%s has no CheckFn", c.Source, c.Endpoint)
		}
	}
}

func TestRunChecks_MixedResultsInOrder(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"ok"}`)) //nolint:errcheck
	}))
	defer good.Close()

	checks := []ProviderCheck{
		{Source: "good", Chain: "solana", Endpoint: good.URL, CheckFn: makeJSONRPCCheck(good.URL, `{}`)},
		{Source: "bad", Chain: "ethereum", Endpoint: "http://127.0.0.1:1", CheckFn: makeJSONRPCCheck("http://127.0.0.1:1", `{}`)},
	}

	results := RunChecks(context.Background(), checks)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Source != "good" || !results[0].OK {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Source != "bad" || results[1].OK || results[1].Error == nil {
		t.Errorf("results[1] = %+v", results[1])
	}
	if results[0].Latency <= 0 {
		t.Error("latency not recorded")
	}
}
