package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
)

// Protocol is the wire protocol a source speaks.
type Protocol string

const (
	ProtocolEVM           Protocol = "evm"
	ProtocolSolana        Protocol = "solana"
	ProtocolAlchemy       Protocol = "alchemy"
	ProtocolMoralisEVM    Protocol = "moralis-evm"
	ProtocolMoralisSolana Protocol = "moralis-solana"
	ProtocolSolanaRPC     Protocol = "solana-rpc"
	ProtocolERC20         Protocol = "erc20"
)

var protocolKinds = map[Protocol]models.SourceKind{
	ProtocolEVM:           models.KindNativeRPC,
	ProtocolSolana:        models.KindNativeRPC,
	ProtocolAlchemy:       models.KindTokenAPI,
	ProtocolMoralisEVM:    models.KindTokenAPI,
	ProtocolMoralisSolana: models.KindTokenAPI,
	ProtocolSolanaRPC:     models.KindTokenAPI,
	ProtocolERC20:         models.KindTokenAPI,
}

// Kind returns the source kind a protocol belongs to, or "" if unknown.
func (p Protocol) Kind() models.SourceKind {
	return protocolKinds[p]
}

// HeaderKey reports whether the protocol sends its credential as a header
// instead of in the endpoint URL. Such sources are unusable without a key.
func (p Protocol) HeaderKey() bool {
	return p == ProtocolMoralisEVM || p == ProtocolMoralisSolana
}

// TokenSpec is one token queried by an erc20 source.
type TokenSpec struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Name     string `yaml:"name" json:"name"`
	Contract string `yaml:"contract" json:"contract"`
	// Decimals is nil when unset; 0 is a valid exponent.
	Decimals *int `yaml:"decimals" json:"decimals,omitempty"`
}

// DecimalsOr returns the token's exponent, or def when none is set.
func (t TokenSpec) DecimalsOr(def int) int {
	if t.Decimals == nil {
		return def
	}
	return *t.Decimals
}

// Decimals returns a pointer to n for TokenSpec literals.
func Decimals(n int) *int {
	return &n
}

// SourceDescriptor is the static description of one balance source.
type SourceDescriptor struct {
	Name       string
	Chain      string
	Kind       models.SourceKind
	Protocol   Protocol
	Endpoints  []string
	APIKey     string
	Decimals   int
	Symbol     string
	ChainParam string
	Tokens     []TokenSpec
}

// MaskedEndpoints returns the endpoints with the credential replaced by "***".
func (d SourceDescriptor) MaskedEndpoints() []string {
	out := make([]string, len(d.Endpoints))
	for i, ep := range d.Endpoints {
		if d.APIKey != "" {
			ep = strings.ReplaceAll(ep, d.APIKey, "***")
		}
		out[i] = ep
	}
	return out
}

// Registry is the immutable, ordered table of balance sources.
type Registry struct {
	sources []SourceDescriptor
}

// New validates descs and builds a registry in the given order.
//
// Endpoints whose URL needs a credential that was not configured are dropped,
// and a descriptor left with no endpoints is excluded with a warning.
// Unknown protocols, kind mismatches and duplicate names are errors.
func New(descs []SourceDescriptor) (*Registry, error) {
	seen := make(map[string]struct{}, len(descs))
	sources := make([]SourceDescriptor, 0, len(descs))

	for _, d := range descs {
		if d.Name == "" || d.Chain == "" {
			return nil, fmt.Errorf("%w: source needs a name and a chain (name=%q chain=%q)",
				config.ErrSourcesFileFormat, d.Name, d.Chain)
		}
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", config.ErrDuplicateSource, d.Name)
		}

		kind := d.Protocol.Kind()
		if kind == "" {
			return nil, fmt.Errorf("%w: %q (source %s)", config.ErrUnknownProtocol, d.Protocol, d.Name)
		}
		if d.Kind == "" {
			d.Kind = kind
		}
		if d.Kind != kind {
			return nil, fmt.Errorf("%w: protocol %s is %s, source %s declares %s",
				config.ErrUnknownProtocol, d.Protocol, kind, d.Name, d.Kind)
		}
		if d.Protocol == ProtocolERC20 && len(d.Tokens) == 0 {
			return nil, fmt.Errorf("%w: %s", config.ErrMissingTokenList, d.Name)
		}

		d.Endpoints = resolveEndpoints(d)
		if len(d.Endpoints) == 0 {
			slog.Warn("source excluded from registry",
				"source", d.Name,
				"chain", d.Chain,
				"error", config.ErrNoEndpoints,
			)
			continue
		}

		if d.Decimals <= 0 {
			d.Decimals = defaultDecimals(d.Protocol)
		}
		d.Tokens = append([]TokenSpec(nil), d.Tokens...)

		seen[d.Name] = struct{}{}
		sources = append(sources, d)
	}

	slog.Info("source registry built",
		"sources", len(sources),
		"excluded", len(descs)-len(sources),
	)

	return &Registry{sources: sources}, nil
}

func resolveEndpoints(d SourceDescriptor) []string {
	if d.Protocol.HeaderKey() && d.APIKey == "" {
		return nil
	}

	out := make([]string, 0, len(d.Endpoints))
	for _, ep := range d.Endpoints {
		ep = strings.TrimSpace(ep)
		if ep == "" {
			continue
		}
		if strings.Contains(ep, config.APIKeyPlaceholder) {
			if d.APIKey == "" {
				slog.Debug("endpoint dropped, credential not configured",
					"source", d.Name,
					"endpoint", ep,
				)
				continue
			}
			ep = strings.ReplaceAll(ep, config.APIKeyPlaceholder, d.APIKey)
		}
		out = append(out, ep)
	}
	return out
}

func defaultDecimals(p Protocol) int {
	switch p {
	case ProtocolSolana:
		return config.SolanaNativeDecimals
	case ProtocolEVM:
		return config.EVMNativeDecimals
	default:
		return config.DefaultTokenDecimals
	}
}

// All returns the sources in registry order. The slice is a copy.
func (r *Registry) All() []SourceDescriptor {
	out := make([]SourceDescriptor, len(r.sources))
	copy(out, r.sources)
	return out
}

// Len returns the number of sources.
func (r *Registry) Len() int {
	return len(r.sources)
}

// Chains returns the distinct chains covered, in first-seen order.
func (r *Registry) Chains() []string {
	seen := make(map[string]struct{})
	var chains []string
	for _, s := range r.sources {
		if _, ok := seen[s.Chain]; ok {
			continue
		}
		seen[s.Chain] = struct{}{}
		chains = append(chains, s.Chain)
	}
	return chains
}

// Get looks up a source by name.
func (r *Registry) Get(name string) (SourceDescriptor, bool) {
	for _, s := range r.sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceDescriptor{}, false
}
