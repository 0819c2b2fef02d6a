package scanner

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/registry"
	"github.com/Fantasim/vaultscan/internal/transport"
)

// NewProtocol creates the protocol implementation for a descriptor.
func NewProtocol(desc registry.SourceDescriptor, client *http.Client) (Protocol, error) {
	switch desc.Protocol {
	case registry.ProtocolEVM:
		return NewEVMNative(desc, client)
	case registry.ProtocolERC20:
		return NewERC20(desc, client)
	case registry.ProtocolSolana:
		return NewSolanaNative(desc, client), nil
	case registry.ProtocolSolanaRPC:
		return NewSolanaTokens(desc, client), nil
	case registry.ProtocolAlchemy:
		return NewAlchemyTokens(desc, client)
	case registry.ProtocolMoralisEVM:
		return NewMoralisEVM(desc, client), nil
	case registry.ProtocolMoralisSolana:
		return NewMoralisSolana(desc, client), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProtocol, desc.Protocol)
	}
}

// Build creates one Source per registry entry, in registry order.
func Build(reg *registry.Registry, cfg *config.Config, client *http.Client) ([]*Source, error) {
	call := transport.NewCall(cfg)
	descs := reg.All()
	sources := make([]*Source, 0, len(descs))

	for _, desc := range descs {
		proto, err := NewProtocol(desc, client)
		if err != nil {
			CloseAll(sources)
			return nil, fmt.Errorf("build source %s: %w", desc.Name, err)
		}
		sources = append(sources, NewSource(desc, proto, call, cfg.RateLimitRPS))
	}

	slog.Info("sources built",
		"count", len(sources),
		"callTimeout", call.Timeout,
		"attempts", call.Policy.Attempts,
		"backoff", call.Policy.Backoff,
		"worstCasePerEndpoint", call.WorstCase(),
	)

	return sources, nil
}

// CloseAll releases every source.
func CloseAll(sources []*Source) {
	for _, s := range sources {
		s.Close()
	}
}
