// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneforge/sceneforge/internal/component/builtin"
)

func TestGenerate_WritesOneSchemaPerType(t *testing.T) {
	reg, err := builtin.NewRegistry()
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "schemas", "components")

	paths, err := generate(dir, reg)
	require.NoError(t, err)
	require.Len(t, paths, len(reg.Names()))

	data, err := os.ReadFile(filepath.Join(dir, builtin.CameraType+".schema.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "object", doc["type"])
	assert.Contains(t, doc, "properties")
}
