package transport

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Fantasim/vaultscan/internal/config"
)

// NewHTTPClient creates the shared HTTP client used by every provider.
// The per-call deadline comes from CallWithTimeout, so the client itself only
// carries a generous safety timeout.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     config.HTTPMaxConnsPerHost,
		MaxIdleConnsPerHost: config.HTTPMaxIdleConnsPerHost,
		MaxIdleConns:        config.HTTPMaxIdleConns,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   config.APITimeout,
	}
}

// CheckStatus converts a non-2xx HTTP status into a classified error.
// 401/403 mean the credential lacks access, 429 and 5xx are transient.
func CheckStatus(resp *http.Response, provider string) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil

	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		slog.Warn("provider denied access",
			"provider", provider,
			"status", code,
		)
		return fmt.Errorf("%w: HTTP %d", config.ErrNetworkNotEnabled, code)

	case code == http.StatusTooManyRequests:
		retryAfter := ParseRetryAfter(resp.Header)
		slog.Warn("provider rate limited",
			"provider", provider,
			"retryAfter", retryAfter,
		)
		return config.NewTransientErrorWithRetry(
			fmt.Errorf("%w: HTTP %d", config.ErrProviderRateLimit, code),
			retryAfter,
		)

	case code >= 500:
		slog.Warn("provider server error",
			"provider", provider,
			"status", code,
		)
		return config.NewTransientError(fmt.Errorf("%w: HTTP %d", config.ErrProviderUnavailable, code))

	default:
		slog.Warn("provider non-2xx response",
			"provider", provider,
			"status", code,
		)
		return fmt.Errorf("%w: HTTP %d", config.ErrProviderUnavailable, code)
	}
}
