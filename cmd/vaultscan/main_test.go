package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Fantasim/vaultscan/internal/aggregator"
)

const testAddress = "0x1234567890abcdef1234567890abcdef12345678"

// newBalanceServer answers eth_getBalance with 1 ETH and anything else with an error.
func newBalanceServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Method != "eth_getBalance" {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0xde0b6b3a7640000"}`, req.ID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeSourcesFile(t *testing.T, endpoints ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("sources:\n")
	b.WriteString("  - name: ethereum-native\n    chain: ethereum\n    protocol: evm\n    symbol: ETH\n    endpoints:\n")
	for _, ep := range endpoints {
		b.WriteString("      - " + ep + "\n")
	}
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	return path
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VAULTSCAN_ALCHEMY_API_KEY", "")
	t.Setenv("VAULTSCAN_MORALIS_API_KEY", "")
	t.Setenv("VAULTSCAN_SOURCES_FILE", "")
	t.Setenv("VAULTSCAN_CALL_TIMEOUT", "2s")
	t.Setenv("VAULTSCAN_RETRY_ATTEMPTS", "1")
	t.Setenv("VAULTSCAN_LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "vaultscan ") {
		t.Errorf("output = %q", out)
	}
}

func TestSourcesCommand_DefaultTableWithoutKeys(t *testing.T) {
	isolateEnv(t)

	out, _, err := execute(t, "sources", "--log-dir", "")
	if err != nil {
		t.Fatalf("sources error = %v", err)
	}
	for _, want := range []string{"ethereum-native", "solana-native", "bnb-erc20-tokens"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, "alchemy.com") {
		t.Errorf("keyed endpoints listed without a key:\n%s", out)
	}
}

func TestBalancesCommand_JSON(t *testing.T) {
	isolateEnv(t)
	srv := newBalanceServer(t)
	path := writeSourcesFile(t, srv.URL)

	out, _, err := execute(t, "balances", testAddress, "--json", "--sources", path, "--log-dir", "")
	if err != nil {
		t.Fatalf("balances error = %v", err)
	}

	var result aggregator.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(result.Records) != 1 {
		t.Fatalf("records = %+v", result.Records)
	}
	r := result.Records[0]
	if r.Chain != "ethereum" || r.Token != "NATIVE" || r.Balance != "1" || r.Source != "ethereum-native" {
		t.Errorf("record = %+v", r)
	}
	if !result.Report.Complete() {
		t.Errorf("coverage = %+v", result.Report)
	}
}

func TestBalancesCommand_FailoverAndTable(t *testing.T) {
	isolateEnv(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	srv := newBalanceServer(t)
	path := writeSourcesFile(t, down.URL, srv.URL)

	out, _, err := execute(t, "balances", testAddress, "--sources", path, "--log-dir", "")
	if err != nil {
		t.Fatalf("balances error = %v", err)
	}
	if !strings.Contains(out, "ETH") || !strings.Contains(out, "1 ok, 0 failed") {
		t.Errorf("unexpected table:\n%s", out)
	}
}

func TestBalancesCommand_StrictFailsOnIncompleteCoverage(t *testing.T) {
	isolateEnv(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer down.Close()
	path := writeSourcesFile(t, down.URL)

	out, _, err := execute(t, "balances", testAddress, "--strict", "--sources", path, "--log-dir", "")
	if err == nil {
		t.Fatal("expected an error with --strict and a failed source")
	}
	if !strings.Contains(out, "not_enabled") {
		t.Errorf("failure reason not printed:\n%s", out)
	}
}

func TestBalancesCommand_RequiresAddress(t *testing.T) {
	if _, _, err := execute(t, "balances"); err == nil {
		t.Error("expected an error without an address argument")
	}
}

func TestProbeCommand(t *testing.T) {
	isolateEnv(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	live := newBalanceServer(t)

	tests := []struct {
		name      string
		endpoints []string
		wantErr   string
		wantOut   []string
	}{
		{"all reachable", []string{live.URL}, "", []string{live.URL, "ok"}},
		{"one down", []string{down.URL, live.URL}, "1 of 2 endpoints failed", []string{"FAIL: unexpected status 502", live.URL}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSourcesFile(t, tt.endpoints...)

			out, _, err := execute(t, "probe", "--sources", path, "--log-dir", "")
			switch {
			case tt.wantErr == "" && err != nil:
				t.Fatalf("probe error = %v", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Fatalf("probe error = %v, want %q", err, tt.wantErr)
			}
			if !strings.HasPrefix(out, "SOURCE") {
				t.Errorf("missing table header:\n%s", out)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}
