// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	ready := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	}))
	defer ready.Close()
	notReady := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	}))
	defer notReady.Close()

	client := &http.Client{Timeout: time.Second}

	s := probe(client, "server", ready.URL)
	assert.True(t, s.Up)
	assert.True(t, s.Ready)
	assert.Empty(t, s.Error)

	s = probe(client, "server", notReady.URL)
	assert.True(t, s.Up)
	assert.False(t, s.Ready)
	assert.Equal(t, "503 not ready", s.Error)

	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()
	s = probe(client, "server", url)
	assert.False(t, s.Up)
	assert.Contains(t, s.Error, "failed to connect")
}

func TestWriteStatus(t *testing.T) {
	statuses := []EndpointStatus{
		{Endpoint: "server", URL: "http://a/healthz", Up: true, Ready: true},
		{Endpoint: "observability", URL: "http://b/healthz/readiness", Up: true, Error: "503 not ready"},
	}

	var table bytes.Buffer
	require.NoError(t, writeStatus(&table, statuses, false))
	assert.Contains(t, table.String(), "ENDPOINT")
	assert.Contains(t, table.String(), "ready")
	assert.Contains(t, table.String(), "not ready")

	var out bytes.Buffer
	require.NoError(t, writeStatus(&out, statuses, true))
	var decoded []EndpointStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, statuses, decoded)
}
