package registry

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
)

// Credential names accepted in a sources file.
const (
	CredentialAlchemy = "alchemy"
	CredentialMoralis = "moralis"
)

type sourcesFile struct {
	Sources []sourceEntry `yaml:"sources"`
}

type sourceEntry struct {
	Name       string      `yaml:"name"`
	Chain      string      `yaml:"chain"`
	Kind       string      `yaml:"kind"`
	Protocol   string      `yaml:"protocol"`
	Credential string      `yaml:"credential"`
	Endpoints  []string    `yaml:"endpoints"`
	Decimals   int         `yaml:"decimals"`
	Symbol     string      `yaml:"symbol"`
	ChainParam string      `yaml:"chainParam"`
	Tokens     []TokenSpec `yaml:"tokens"`
}

// LoadFile reads a YAML sources file that replaces the built-in table.
// Credentials are never stored in the file; an entry names which configured
// key it uses with `credential: alchemy|moralis`.
func LoadFile(path string, cfg *config.Config) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file %q: %w", path, err)
	}

	descs, err := ParseSources(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse sources file %q: %w", path, err)
	}

	slog.Info("loaded sources file",
		"path", path,
		"entries", len(descs),
	)

	return New(descs)
}

// ParseSources decodes the YAML sources document into descriptors.
func ParseSources(data []byte, cfg *config.Config) ([]SourceDescriptor, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrSourcesFileFormat, err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("%w: no sources defined", config.ErrSourcesFileFormat)
	}

	descs := make([]SourceDescriptor, 0, len(f.Sources))
	for i, e := range f.Sources {
		var key string
		switch e.Credential {
		case "":
		case CredentialAlchemy:
			key = cfg.AlchemyAPIKey
		case CredentialMoralis:
			key = cfg.MoralisAPIKey
		default:
			return nil, fmt.Errorf("%w: source #%d (%s): unknown credential %q",
				config.ErrSourcesFileFormat, i+1, e.Name, e.Credential)
		}

		descs = append(descs, SourceDescriptor{
			Name:       e.Name,
			Chain:      e.Chain,
			Kind:       models.SourceKind(e.Kind),
			Protocol:   Protocol(e.Protocol),
			Endpoints:  e.Endpoints,
			APIKey:     key,
			Decimals:   e.Decimals,
			Symbol:     e.Symbol,
			ChainParam: e.ChainParam,
			Tokens:     e.Tokens,
		})
	}
	return descs, nil
}

// Load picks the sources file when one is configured, the built-in table otherwise.
func Load(cfg *config.Config) (*Registry, error) {
	if cfg.SourcesFile != "" {
		return LoadFile(cfg.SourcesFile, cfg)
	}
	return Default(cfg)
}
