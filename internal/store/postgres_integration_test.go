// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

//go:build integration

package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/internal/store/storetest"
)

func startPostgres(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sceneforge"),
		postgres.WithUsername("sceneforge"),
		postgres.WithPassword("sceneforge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2)),
	)
	if err != nil {
		return nil, "", err
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	return container, dsn, err
}

func TestPostgres_Integration(t *testing.T) {
	ctx := context.Background()
	container, dsn, err := startPostgres(ctx)
	require.NoError(t, err)
	defer container.Terminate(ctx) //nolint:errcheck // best effort

	m, err := store.NewMigrator(dsn)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	s, err := store.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	storetest.Run(t, s)

	require.NoError(t, s.Put(ctx, &store.Record{ID: "cascade", Kind: "cubicModel", Data: json.RawMessage(`{}`)}))
	require.NoError(t, s.PutBlob(ctx, "cascade", "map", []byte{1}))
	require.NoError(t, s.Delete(ctx, "cascade"))
	require.NoError(t, s.Put(ctx, &store.Record{ID: "cascade", Kind: "cubicModel", Data: json.RawMessage(`{}`)}))
	blobs, err := s.Blobs(ctx, "cascade")
	require.NoError(t, err)
	assert.Empty(t, blobs)
}
