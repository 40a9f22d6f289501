// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneforge/sceneforge/internal/client"
	"github.com/sceneforge/sceneforge/internal/config"
	"github.com/sceneforge/sceneforge/internal/observability"
	"github.com/sceneforge/sceneforge/internal/scene"
	"github.com/sceneforge/sceneforge/internal/store"
)

func testServeConfig() *config.Config {
	return &config.Config{
		ListenAddr:   "127.0.0.1:0",
		LogFormat:    "text",
		LogLevel:     "error",
		SaveInterval: 50 * time.Millisecond,
		Store:        config.Store{Driver: store.DriverMemory},
		Access: config.Access{
			DefaultRole: "editor",
			Anonymous:   "user:anonymous",
		},
	}
}

func TestServe_ServesUntilCancelled(t *testing.T) {
	cfg := testServeConfig()
	st := store.NewMemory()

	var obsAddr string
	ready := make(chan string, 1)
	deps := &ServeDeps{
		StoreOpener: func(context.Context, store.Options) (store.Store, error) { return st, nil },
		ObservabilityServerFactory: func(addr string, check observability.ReadinessChecker) ObservabilityServer {
			srv := observability.NewServer(addr, check)
			return &addrRecorder{Server: srv, addr: &obsAddr}
		},
		OnReady: func(addr string) { ready <- addr },
	}
	cfg.MetricsAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))

	done := make(chan error, 1)
	go func() { done <- runServeWithDeps(ctx, cfg, cmd, deps) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	conn, err := client.Dial(ctx, "ws://"+addr+"/ws", "")
	require.NoError(t, err)
	assert.Equal(t, "user:anonymous", conn.Subject())
	id, err := conn.Create(ctx, scene.KindName, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", id)
	require.NoError(t, conn.Close())

	resp, err := http.Get("http://" + obsAddr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "sceneforge_resident_documents")

	resp, err = http.Get("http://" + obsAddr + "/healthz/readiness")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}

	_, err = st.Get(context.Background(), "s1")
	require.NoError(t, err)
}

// addrRecorder records the observability address once it is listening.
type addrRecorder struct {
	*observability.Server
	addr *string
}

func (a *addrRecorder) Start() (<-chan error, error) {
	ch, err := a.Server.Start()
	*a.addr = a.Server.Addr()
	return ch, err
}

type failingObservability struct{}

func (failingObservability) Start() (<-chan error, error)   { return nil, errors.New("address in use") }
func (failingObservability) Stop(context.Context) error     { return nil }
func (failingObservability) Addr() string                   { return "" }
func (failingObservability) Registry() *prometheus.Registry { return prometheus.NewRegistry() }

func TestServe_ObservabilityStartFailure(t *testing.T) {
	cfg := testServeConfig()
	cfg.MetricsAddr = "127.0.0.1:0"
	deps := &ServeDeps{
		StoreOpener: func(context.Context, store.Options) (store.Store, error) { return store.NewMemory(), nil },
		ObservabilityServerFactory: func(string, observability.ReadinessChecker) ObservabilityServer {
			return failingObservability{}
		},
	}

	err := runServeWithDeps(context.Background(), cfg, &cobra.Command{}, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}

func TestServe_StoreFailure(t *testing.T) {
	deps := &ServeDeps{
		StoreOpener: func(context.Context, store.Options) (store.Store, error) {
			return nil, errors.New("connection refused")
		},
	}
	err := runServeWithDeps(context.Background(), testServeConfig(), &cobra.Command{}, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestServe_ListenFailure(t *testing.T) {
	cfg := testServeConfig()
	cfg.ListenAddr = "256.0.0.1:0"
	deps := &ServeDeps{
		StoreOpener: func(context.Context, store.Options) (store.Store, error) { return store.NewMemory(), nil },
	}
	err := runServeWithDeps(context.Background(), cfg, &cobra.Command{}, deps)
	require.Error(t, err)
}

func TestServe_SelfSignedTLS(t *testing.T) {
	cfg := testServeConfig()
	cfg.TLS = config.TLS{SelfSigned: true, Dir: t.TempDir()}

	ready := make(chan string, 1)
	deps := &ServeDeps{
		StoreOpener: func(context.Context, store.Options) (store.Store, error) { return store.NewMemory(), nil },
		OnReady:     func(addr string) { ready <- addr },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))

	done := make(chan error, 1)
	go func() { done <- runServeWithDeps(ctx, cfg, cmd, deps) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	tlsCfg := clientTLS(cfg.TLS)
	require.NotNil(t, tlsCfg)
	conn, err := client.Dial(ctx, "wss://"+addr+"/ws", "", client.WithTLSConfig(tlsCfg))
	require.NoError(t, err)
	assert.Equal(t, "user:anonymous", conn.Subject())
	require.NoError(t, conn.Close())

	_, err = client.Dial(ctx, "ws://"+addr+"/ws", "")
	assert.Error(t, err)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestServe_BadCertificate(t *testing.T) {
	cfg := testServeConfig()
	cfg.TLS = config.TLS{CertFile: "/nonexistent/server.crt", KeyFile: "/nonexistent/server.key"}
	deps := &ServeDeps{
		StoreOpener: func(context.Context, store.Options) (store.Store, error) { return store.NewMemory(), nil },
	}
	err := runServeWithDeps(context.Background(), cfg, &cobra.Command{}, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLS")
}
