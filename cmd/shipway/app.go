package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shipwaylabs/shipway/internal/core/domain"
	"github.com/shipwaylabs/shipway/internal/shell/api"
	"github.com/shipwaylabs/shipway/internal/shell/builder"
	"github.com/shipwaylabs/shipway/internal/shell/cluster"
	"github.com/shipwaylabs/shipway/internal/shell/deploy"
	"github.com/shipwaylabs/shipway/internal/shell/registry"
	"github.com/shipwaylabs/shipway/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDeployFailed    = 2
	ExitDeployAborted   = 3
	ExitDatabaseError   = 4
	ExitRegistryError   = 5
	ExitHTTPServerError = 6
)

// =============================================================================
// Deploy Mode
// =============================================================================

// runDeploy wires the collaborators and executes one pipeline run. SIGINT and
// SIGTERM abort the run at the next stage or poll boundary.
func runDeploy(cfg *Config, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open run store", "error", err)
		return ExitDatabaseError
	}
	defer st.Close()

	b, err := builder.New(builder.Config{
		Command:        cfg.Build.Command,
		Dir:            cfg.Build.Dir,
		ArtifactPath:   cfg.Build.ArtifactPath,
		TestReportPath: cfg.Build.TestReportPath,
		Timeout:        cfg.Build.Timeout,
	}, logger)
	if err != nil {
		logger.Error("invalid build configuration", "error", err)
		return ExitConfigError
	}

	reg, err := registry.NewDockerClient(registry.Config{
		Host:       cfg.Registry.Host,
		ContextDir: cfg.Registry.ContextDir,
		Dockerfile: cfg.Registry.Dockerfile,
		Username:   cfg.Registry.Username,
		Password:   cfg.Registry.Password,
	}, logger)
	if err != nil {
		logger.Error("failed to create registry client", "error", err)
		return ExitRegistryError
	}
	defer reg.Close()

	clu := cluster.NewKubectlClient(cluster.Config{
		Kubectl:   cfg.Cluster.Kubectl,
		Context:   cfg.Cluster.Context,
		Namespace: cfg.Cluster.Namespace,
		Insecure:  cfg.Cluster.Insecure,
	}, logger)

	orchestrator, err := deploy.New(deployParams(cfg), b, reg, clu, st, logger)
	if err != nil {
		logger.Error("invalid deploy configuration", "error", err)
		return ExitConfigError
	}

	run := orchestrator.Run(ctx)
	switch run.Outcome {
	case domain.OutcomeSucceeded:
		return ExitSuccess
	case domain.OutcomeAborted:
		return ExitDeployAborted
	default:
		return ExitDeployFailed
	}
}

// =============================================================================
// Serve Mode
// =============================================================================

// runServe starts the run status API and blocks until shutdown.
func runServe(cfg *Config, logger *slog.Logger) int {
	st, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open run store", "error", err)
		return ExitDatabaseError
	}
	defer st.Close()

	handler := api.NewHandler(st, logger)
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status API listening", "address", cfg.Server.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
		return ExitHTTPServerError
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
		return ExitHTTPServerError
	}

	return ExitSuccess
}
