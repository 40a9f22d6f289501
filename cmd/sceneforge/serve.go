// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sceneforge/sceneforge/internal/config"
	"github.com/sceneforge/sceneforge/internal/hub"
	"github.com/sceneforge/sceneforge/internal/observability"
	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/internal/transport"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

// ObservabilityServer is the part of observability.Server serve drives.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() *prometheus.Registry
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values use their default implementations.
type ServeDeps struct {
	// StoreOpener connects to the document store.
	// Default: openStore
	StoreOpener func(ctx context.Context, opts store.Options) (store.Store, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// OnReady is called with the transport address once serving.
	OnReady func(addr string)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the document server",
		Long: `Start the document server: the WebSocket editing endpoint, the document
HTTP API and, unless metrics-addr is empty, the metrics and health server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps runs the server until a signal arrives, ctx ends or a
// listener fails.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreOpener == nil {
		deps.StoreOpener = openStore
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}

	slog.Info("starting sceneforge",
		"listen_addr", cfg.ListenAddr,
		"store", cfg.Store.Driver,
		"tls", cfg.TLS.Enabled(),
		"version", version,
	)

	st, err := deps.StoreOpener(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Debug("error closing store", "error", closeErr)
		}
	}()

	ac, err := cfg.AccessControl()
	if err != nil {
		return oops.Wrapf(err, "invalid access configuration")
	}
	tlsConfig, err := serverTLS(cfg.TLS)
	if err != nil {
		return oops.Wrapf(err, "failed to load TLS certificate")
	}

	var (
		h        *hub.Hub
		obs      ObservabilityServer
		registry prometheus.Registerer
	)
	if cfg.MetricsAddr != "" {
		obs = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool { return h.Ready() })
		registry = obs.Registry()
	}

	h, err = hub.New(st,
		hub.WithAccess(ac),
		hub.WithMetrics(hub.NewMetrics(registry)),
		hub.WithSaveInterval(cfg.SaveInterval),
	)
	if err != nil {
		return oops.Wrapf(err, "failed to create hub")
	}
	if err := h.Start(ctx); err != nil {
		return oops.Wrapf(err, "failed to index documents")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsErrChan <-chan error
	if obs != nil {
		obsErrChan, err = obs.Start()
		if err != nil {
			closeHub(h)
			return oops.Wrapf(err, "failed to start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	var auth transport.Authenticator = transport.Anonymous(cfg.Access.Anonymous)
	if len(cfg.Access.Tokens) > 0 {
		auth = transport.Tokens(cfg.Access.Tokens)
	}
	srv := transport.NewServer(cfg.ListenAddr, h, auth)
	if tlsConfig != nil {
		srv.SetTLSConfig(tlsConfig)
	}
	srvErrChan, err := srv.Start()
	if err != nil {
		stopObservability(obs)
		closeHub(h)
		return oops.Wrapf(err, "failed to start server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("SceneForge listening on " + srv.Addr())
	if deps.OnReady != nil {
		deps.OnReady(srv.Addr())
	}

	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case err, ok := <-srvErrChan:
		if ok && err != nil {
			serveErr = oops.Wrapf(err, "server error")
		}
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		errutil.LogError(slog.Default(), "error stopping server", err)
	}
	if err := h.Close(shutdownCtx); err != nil {
		errutil.LogError(slog.Default(), "error flushing documents", err)
	}
	stopObservability(obs)

	slog.Info("shutdown complete")
	return serveErr
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

func closeHub(h *hub.Hub) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := h.Close(ctx); err != nil {
		slog.Warn("failed to flush documents during cleanup", "error", err)
	}
}

func stopObservability(obs ObservabilityServer) {
	if obs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obs.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}
