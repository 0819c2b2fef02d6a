package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Fantasim/vaultscan/internal/aggregator"
	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/logging"
	"github.com/Fantasim/vaultscan/internal/registry"
	"github.com/Fantasim/vaultscan/internal/scanner"
	"github.com/Fantasim/vaultscan/internal/transport"
)

// app holds what every command needs: configuration, logging and the registry.
type app struct {
	cfg       *config.Config
	reg       *registry.Registry
	logCloser io.Closer
	sources   []*scanner.Source
}

// loadApp reads configuration, applies flag overrides, sets up logging and
// loads the source registry.
func loadApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flags.sourcesFile != "" {
		cfg.SourcesFile = flags.sourcesFile
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if cmd.Flags().Changed("log-dir") {
		cfg.LogDir = flags.logDir
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:   cfg.LogLevel,
		Dir:     cfg.LogDir,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	reg, err := registry.Load(cfg)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	slog.Info("vaultscan configured",
		"version", version,
		"sources", reg.Len(),
		"chains", reg.Chains(),
		"callTimeout", cfg.CallTimeout,
		"retryAttempts", cfg.RetryAttempts,
		"backoff", cfg.BackoffPolicy,
	)

	return &app{cfg: cfg, reg: reg, logCloser: logCloser}, nil
}

// buildAggregator builds the sources and the aggregator over them.
func (a *app) buildAggregator() (*aggregator.Aggregator, error) {
	sources, err := scanner.Build(a.reg, a.cfg, transport.NewHTTPClient())
	if err != nil {
		return nil, err
	}
	a.sources = sources

	fetchers := make([]aggregator.Fetcher, len(sources))
	for i, s := range sources {
		fetchers[i] = s
	}
	return aggregator.New(fetchers), nil
}

func (a *app) Close() {
	scanner.CloseAll(a.sources)
	a.logCloser.Close()
}
