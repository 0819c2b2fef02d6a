package models

import "time"

// TokenNative is the token symbol used for a chain's base currency.
const TokenNative = "NATIVE"

// SourceKind selects which protocol family a balance source speaks.
type SourceKind string

const (
	KindNativeRPC SourceKind = "native-rpc"
	KindTokenAPI  SourceKind = "token-api"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	return k == KindNativeRPC || k == KindTokenAPI
}

// FailureReason classifies why a source produced no data.
type FailureReason string

const (
	ReasonNone         FailureReason = ""
	ReasonTimeout      FailureReason = "timeout"
	ReasonNetworkError FailureReason = "network_error"
	ReasonNotEnabled   FailureReason = "not_enabled"
	ReasonParseError   FailureReason = "parse_error"
)

// AllFailureReasons is the ordered list of failure reasons.
var AllFailureReasons = []FailureReason{
	ReasonTimeout,
	ReasonNetworkError,
	ReasonNotEnabled,
	ReasonParseError,
}

// BalanceRecord is one (chain, asset) holding of the queried address.
type BalanceRecord struct {
	Chain           string `json:"chain"`
	Token           string `json:"token"`
	Name            string `json:"name,omitempty"`
	ContractAddress string `json:"contractAddress,omitempty"`
	Balance         string `json:"balance"` // decimal string, already scaled by the asset precision
	Source          string `json:"source"`  // name of the source that produced this record
}

// IsNative reports whether the record holds the chain's base currency.
func (r BalanceRecord) IsNative() bool {
	return r.Token == TokenNative
}

// FetchOutcome is the settled result of one source task.
// Exactly one of Records (success) or Reason (failure) is meaningful.
type FetchOutcome struct {
	Source   string
	Chain    string
	Kind     SourceKind
	Records  []BalanceRecord
	Reason   FailureReason
	Err      error
	Skipped  bool   // address format not served by this source, nothing was sent
	Endpoint string // endpoint that answered (success) or failed last
	Attempts int    // provider calls made, retries included
	Duration time.Duration

	CircuitState string // worst endpoint breaker state after the fetch, empty for non-breaker fetchers
}

// OK reports whether the outcome is a success.
func (o FetchOutcome) OK() bool {
	return o.Reason == ReasonNone && o.Err == nil
}

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
	Meta *APIMeta    `json:"meta,omitempty"`
}

// APIMeta contains execution metadata.
type APIMeta struct {
	ExecutionTime int64 `json:"executionTime,omitempty"`
}

// APIError is the standard error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error code and message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
