package config

import (
	"errors"
	"time"
)

// Sentinel errors for internal use.
var (
	ErrInvalidConfig = errors.New("invalid configuration")

	// Registry
	ErrNoEndpoints       = errors.New("source has no endpoints")
	ErrUnknownProtocol   = errors.New("unknown source protocol")
	ErrDuplicateSource   = errors.New("duplicate source name")
	ErrMissingTokenList  = errors.New("erc20 source requires a token list")
	ErrSourcesFileFormat = errors.New("invalid sources file")

	// Provider
	ErrProviderTimeout     = errors.New("provider request timeout")
	ErrProviderRateLimit   = errors.New("provider rate limit exceeded")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrNetworkNotEnabled   = errors.New("network not enabled for this credential")
	ErrMalformedResponse   = errors.New("malformed provider response")
	ErrAllEndpointsFailed  = errors.New("all endpoints failed")

	// Circuit Breaker
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// TransientError wraps an error that should be retried.
type TransientError struct {
	Err        error
	RetryAfter time.Duration // 0 = use default backoff
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient (retriable).
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

// NewTransientErrorWithRetry wraps with explicit retry delay.
func NewTransientErrorWithRetry(err error, retryAfter time.Duration) error {
	return &TransientError{Err: err, RetryAfter: retryAfter}
}

// IsTransient returns true if the error is transient (retriable).
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// GetRetryAfter returns the retry delay if set, or 0.
func GetRetryAfter(err error) time.Duration {
	var te *TransientError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}

// Error codes returned to API clients.
const (
	ErrorInvalidAddress = "ERROR_INVALID_ADDRESS"
	ErrorDatabase       = "ERROR_DATABASE"
	ErrorInvalidConfig  = "ERROR_INVALID_CONFIG"
	ErrorNotFound       = "ERROR_NOT_FOUND"

	// Coverage reasons, mirrored from models.FailureReason for API clients.
	ErrorProviderTimeout     = "ERROR_PROVIDER_TIMEOUT"
	ErrorProviderUnavailable = "ERROR_PROVIDER_UNAVAILABLE"
	ErrorNetworkNotEnabled   = "ERROR_NETWORK_NOT_ENABLED"
	ErrorMalformedResponse   = "ERROR_MALFORMED_RESPONSE"
)
