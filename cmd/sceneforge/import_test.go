// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneforge/sceneforge/internal/scene"
	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

func TestImport(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemory()
	seedPrefabProject(t, src)
	child, err := src.Get(ctx, "child")
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(child.Data, &raw))
	raw["formatVersion"] = 1
	old, err := json.Marshal(raw)
	require.NoError(t, err)

	dir := t.TempDir()
	path := writeDocumentFile(t, dir, "imported", scene.KindName, old)
	dst := store.NewMemory()

	run := func(cfg *importConfig) string {
		cmd := &cobra.Command{}
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		require.NoError(t, runImport(ctx, cmd, dst, cfg, []string{path}))
		return buf.String()
	}

	out := run(&importConfig{})
	assert.Contains(t, out, "1 imported, 0 skipped")

	rec, err := dst.Get(ctx, "imported")
	require.NoError(t, err)
	assert.Equal(t, scene.KindName, rec.Kind)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(rec.Data, &stored))
	assert.InDelta(t, float64(scene.FormatVersion), stored["formatVersion"], 0, "stored migrated")

	out = run(&importConfig{})
	assert.Contains(t, out, "0 imported, 1 skipped")

	out = run(&importConfig{replace: true})
	assert.Contains(t, out, "1 imported, 0 skipped")
}

func TestImport_RejectsInvalidDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeDocumentFile(t, dir, "bad", "texture", []byte(`{"nodes":[]}`))

	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))
	err := runImport(context.Background(), cmd, store.NewMemory(), &importConfig{}, []string{path})
	errutil.AssertErrorCode(t, err, "UNKNOWN_KIND")
}
