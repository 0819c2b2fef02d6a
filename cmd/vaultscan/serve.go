package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Fantasim/vaultscan/internal/api"
	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/metrics"
	"github.com/Fantasim/vaultscan/internal/scanner"
	"github.com/Fantasim/vaultscan/internal/store"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API on localhost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	agg, err := a.buildAggregator()
	if err != nil {
		return err
	}
	agg.AddRecorder(st)
	agg.AddRecorder(metrics.New(promReg))

	// Probes only log; a failing endpoint does not block startup.
	go scanner.RunStartupHealthChecks(ctx, a.reg)

	api.Version = version
	router := api.NewRouter(api.Deps{
		Registry:   a.reg,
		Aggregator: agg,
		Health:     st,
		Metrics:    promReg,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    config.ServerReadTimeout,
		WriteTimeout:   config.ServerWriteTimeout,
		IdleTimeout:    config.ServerIdleTimeout,
		MaxHeaderBytes: config.ServerMaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("initiating graceful shutdown", "timeout", config.ServerShutdownWindow)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownWindow)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		slog.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
