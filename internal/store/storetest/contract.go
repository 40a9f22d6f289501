// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package storetest holds the behavior every store.Store must share.
package storetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

// Run exercises s. The store must start empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing documents", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		errutil.AssertErrorCode(t, err, store.CodeNotFound)
		errutil.AssertErrorCode(t, s.Delete(ctx, "missing"), store.CodeNotFound)
		errutil.AssertErrorCode(t, s.PutBlob(ctx, "missing", "map", []byte{1}), store.CodeNotFound)
		_, err = s.Blobs(ctx, "missing")
		errutil.AssertErrorCode(t, err, store.CodeNotFound)
	})

	t.Run("create get put", func(t *testing.T) {
		rec := &store.Record{ID: "scene-a", Kind: "scene", Data: json.RawMessage(`{"formatVersion":2,"nodes":[]}`)}
		require.NoError(t, s.Create(ctx, rec))
		assert.False(t, rec.UpdatedAt.IsZero())

		errutil.AssertErrorCode(t, s.Create(ctx, &store.Record{ID: "scene-a", Kind: "scene", Data: json.RawMessage(`{}`)}), store.CodeExists)

		got, err := s.Get(ctx, "scene-a")
		require.NoError(t, err)
		assert.Equal(t, "scene", got.Kind)
		assert.JSONEq(t, `{"formatVersion":2,"nodes":[]}`, string(got.Data))

		require.NoError(t, s.Put(ctx, &store.Record{ID: "scene-a", Kind: "scene", Data: json.RawMessage(`{"formatVersion":2,"nodes":[],"x":1}`)}))
		got, err = s.Get(ctx, "scene-a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"formatVersion":2,"nodes":[],"x":1}`, string(got.Data))

		require.NoError(t, s.Put(ctx, &store.Record{ID: "model-b", Kind: "cubicModel", Data: json.RawMessage(`{}`)}))
	})

	t.Run("list", func(t *testing.T) {
		infos, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "model-b", infos[0].ID)
		assert.Equal(t, "cubicModel", infos[0].Kind)
		assert.Equal(t, "scene-a", infos[1].ID)
	})

	t.Run("blobs", func(t *testing.T) {
		require.NoError(t, s.PutBlob(ctx, "model-b", "map", []byte{1, 2, 3}))
		require.NoError(t, s.PutBlob(ctx, "model-b", "map", []byte{4, 5}))
		require.NoError(t, s.PutBlob(ctx, "model-b", "normal", []byte{}))

		blobs, err := s.Blobs(ctx, "model-b")
		require.NoError(t, err)
		assert.Equal(t, []byte{4, 5}, blobs["map"])
		assert.Contains(t, blobs, "normal")

		empty, err := s.Blobs(ctx, "scene-a")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "model-b"))
		_, err := s.Get(ctx, "model-b")
		errutil.AssertErrorCode(t, err, store.CodeNotFound)

		require.NoError(t, s.Put(ctx, &store.Record{ID: "model-b", Kind: "cubicModel", Data: json.RawMessage(`{}`)}))
		blobs, err := s.Blobs(ctx, "model-b")
		require.NoError(t, err)
		assert.Empty(t, blobs, "blobs must not survive their document")

		infos, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, infos, 2)
	})
}
