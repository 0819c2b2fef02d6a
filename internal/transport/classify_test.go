package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
)

func TestClassify(t *testing.T) {
	var syntaxErr error = &json.SyntaxError{Offset: 3}

	tests := []struct {
		name string
		err  error
		want models.FailureReason
	}{
		{"nil", nil, models.ReasonNone},
		{"timeout sentinel", fmt.Errorf("wrap: %w", config.ErrProviderTimeout), models.ReasonTimeout},
		{"deadline exceeded", context.DeadlineExceeded, models.ReasonTimeout},
		{"not enabled sentinel", fmt.Errorf("%w: HTTP 403", config.ErrNetworkNotEnabled), models.ReasonNotEnabled},
		{"ethclient 403", rpc.HTTPError{StatusCode: 403, Status: "403 Forbidden"}, models.ReasonNotEnabled},
		{"ethclient 401", fmt.Errorf("balance: %w", rpc.HTTPError{StatusCode: 401, Status: "401 Unauthorized"}), models.ReasonNotEnabled},
		{"ethclient 500", rpc.HTTPError{StatusCode: 500, Status: "500 Internal Server Error"}, models.ReasonNetworkError},
		{"alchemy message", errors.New("BASE_MAINNET is not enabled for this app"), models.ReasonNotEnabled},
		{"malformed", fmt.Errorf("%w: bad hex", config.ErrMalformedResponse), models.ReasonParseError},
		{"json syntax", fmt.Errorf("decode: %w", syntaxErr), models.ReasonParseError},
		{"unavailable", config.ErrProviderUnavailable, models.ReasonNetworkError},
		{"plain", errors.New("connection refused"), models.ReasonNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_NotEnabledWinsOverTimeoutWrapping(t *testing.T) {
	err := fmt.Errorf("%w after 7s: %w", config.ErrProviderTimeout, config.ErrNetworkNotEnabled)
	if got := Classify(err); got != models.ReasonNotEnabled {
		t.Errorf("Classify() = %q, want not_enabled", got)
	}
}

func TestErrorCode(t *testing.T) {
	for _, reason := range models.AllFailureReasons {
		if ErrorCode(reason) == "" {
			t.Errorf("ErrorCode(%q) is empty", reason)
		}
	}
	if ErrorCode(models.ReasonNone) != "" {
		t.Error("ErrorCode(none) should be empty")
	}
}
