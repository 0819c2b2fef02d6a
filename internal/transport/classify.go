package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
)

// notEnabledTokens are provider messages meaning the credential cannot reach the network.
var notEnabledTokens = []string{
	"not enabled",
	"not available on this app",
	"403 forbidden",
	"http 403",
}

// Classify maps an error to the failure taxonomy reported in coverage.
func Classify(err error) models.FailureReason {
	if err == nil {
		return models.ReasonNone
	}

	if IsNotEnabled(err) {
		return models.ReasonNotEnabled
	}

	if errors.Is(err, config.ErrProviderTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return models.ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ReasonTimeout
	}

	if errors.Is(err, config.ErrMalformedResponse) {
		return models.ReasonParseError
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return models.ReasonParseError
	}

	return models.ReasonNetworkError
}

// IsNotEnabled reports whether err means "this credential has no access to the network",
// as opposed to a generic network failure.
func IsNotEnabled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, config.ErrNetworkNotEnabled) {
		return true
	}

	// ethclient surfaces non-2xx answers as rpc.HTTPError.
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusForbidden || httpErr.StatusCode == http.StatusUnauthorized {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, token := range notEnabledTokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

// ErrorCode returns the API error code for a failure reason.
func ErrorCode(reason models.FailureReason) string {
	switch reason {
	case models.ReasonTimeout:
		return config.ErrorProviderTimeout
	case models.ReasonNotEnabled:
		return config.ErrorNetworkNotEnabled
	case models.ReasonParseError:
		return config.ErrorMalformedResponse
	case models.ReasonNetworkError:
		return config.ErrorProviderUnavailable
	default:
		return ""
	}
}
