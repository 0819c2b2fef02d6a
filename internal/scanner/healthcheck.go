package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/registry"
)

const healthCheckUserAgent = "vaultscan-healthcheck"

// ProviderCheck is a single endpoint connectivity check.
type ProviderCheck struct {
	Source   string
	Chain    string
	Endpoint string // masked, safe to log
	CheckFn  func(ctx context.Context, client *http.Client) error
}

// HealthCheckResult holds the outcome of a single endpoint check.
type HealthCheckResult struct {
	Source   string
	Chain    string
	Endpoint string
	OK       bool
	Latency  time.Duration
	Error    error
}

// RunStartupHealthChecks probes every registry endpoint and logs the results.
// Failures only produce WARN logs; they never prevent startup.
func RunStartupHealthChecks(ctx context.Context, reg *registry.Registry) []HealthCheckResult {
	checks := BuildChecks(reg)
	slog.Info("running startup provider health checks", "checks", len(checks))
	return RunChecks(ctx, checks)
}

// BuildChecks returns one check per endpoint in registry order.
func BuildChecks(reg *registry.Registry) []ProviderCheck {
	var checks []ProviderCheck

	for _, d := range reg.All() {
		labels := d.MaskedEndpoints()
		for i, ep := range d.Endpoints {
			check := ProviderCheck{Source: d.Name, Chain: d.Chain, Endpoint: labels[i]}

			switch d.Protocol {
			case registry.ProtocolEVM, registry.ProtocolERC20, registry.ProtocolAlchemy:
				check.CheckFn = makeJSONRPCCheck(ep, `{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1}`)
			case registry.ProtocolSolana, registry.ProtocolSolanaRPC:
				check.CheckFn = makeJSONRPCCheck(ep, `{"jsonrpc":"2.0","method":"getHealth","id":1}`)
			case registry.ProtocolMoralisEVM:
				check.CheckFn = makeRESTCheck(strings.TrimRight(ep, "/")+"/web3/version", d.APIKey)
			default:
				check.CheckFn = makeRESTCheck(ep, d.APIKey)
			}

			checks = append(checks, check)
		}
	}

	return checks
}

// RunChecks runs checks concurrently and returns results in check order.
func RunChecks(ctx context.Context, checks []ProviderCheck) []HealthCheckResult {
	client := &http.Client{Timeout: config.HealthCheckTimeout}
	results := make([]HealthCheckResult, len(checks))

	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, c ProviderCheck) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, config.HealthCheckTimeout)
			defer cancel()

			start := time.Now()
			err := c.CheckFn(checkCtx, client)
			latency := time.Since(start)

			results[i] = HealthCheckResult{
				Source:   c.Source,
				Chain:    c.Chain,
				Endpoint: c.Endpoint,
				OK:       err == nil,
				Latency:  latency,
				Error:    err,
			}

			if err != nil {
				slog.Warn("provider health check FAILED",
					"source", c.Source,
					"chain", c.Chain,
					"endpoint", c.Endpoint,
					"latency", latency.Round(time.Millisecond),
					"error", err,
				)
			} else {
				slog.Info("provider health check OK",
					"source", c.Source,
					"chain", c.Chain,
					"endpoint", c.Endpoint,
					"latency", latency.Round(time.Millisecond),
				)
			}
		}(i, check)
	}
	wg.Wait()

	okCount := 0
	for _, r := range results {
		if r.OK {
			okCount++
		}
	}

	slog.Info("startup health checks complete",
		"total", len(results),
		"ok", okCount,
		"failed", len(results)-okCount,
	)

	return results
}

// makeJSONRPCCheck returns a check that POSTs body to a JSON-RPC endpoint.
func makeJSONRPCCheck(rpcURL, body string) func(context.Context, *http.Client) error {
	return func(ctx context.Context, client *http.Client) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, strings.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", healthCheckUserAgent)

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil
	}
}

// makeRESTCheck returns a check that GETs url with the Moralis key header.
// Any answer below 500 other than 401/403 counts as reachable.
func makeRESTCheck(url, apiKey string) func(context.Context, *http.Client) error {
	return func(ctx context.Context, client *http.Client) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", healthCheckUserAgent)
		if apiKey != "" {
			req.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: HTTP %d", config.ErrNetworkNotEnabled, resp.StatusCode)
		case resp.StatusCode >= 500:
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil
	}
}
