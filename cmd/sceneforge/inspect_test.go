// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

func TestInspectDocument_ResolvesPrefabs(t *testing.T) {
	st := store.NewMemory()
	seedPrefabProject(t, st)

	report, err := inspectDocument(context.Background(), st, "parent")
	require.NoError(t, err)

	assert.Equal(t, "parent", report.ID)
	assert.Equal(t, "scene", report.Kind)
	assert.Equal(t, 1, report.Nodes)
	assert.Equal(t, []string{"child"}, report.Dependencies)
	assert.Empty(t, report.Referrers)
	require.Len(t, report.Tree, 1)
	slot := report.Tree[0]
	assert.Equal(t, "Slot", slot.Name)
	assert.Equal(t, "child", slot.Prefab)
	assert.InDeltaSlice(t, []float64{0, 2, 0}, slot.WorldPosition, 1e-9)
}

func TestInspectDocument_Referrers(t *testing.T) {
	st := store.NewMemory()
	seedPrefabProject(t, st)

	report, err := inspectDocument(context.Background(), st, "child")
	require.NoError(t, err)
	assert.Equal(t, []string{"parent"}, report.Referrers)
	require.Len(t, report.Tree, 1)
	assert.InDeltaSlice(t, []float64{1, 0, 0}, report.Tree[0].WorldPosition, 1e-9)
}

func TestInspectDocument_NotFound(t *testing.T) {
	_, err := inspectDocument(context.Background(), store.NewMemory(), "missing")
	errutil.AssertErrorCode(t, err, store.CodeNotFound)
}

func TestWriteReport(t *testing.T) {
	report := &DocumentReport{
		ID:   "s1",
		Kind: "scene",
		Tree: []*NodeReport{{ID: "n1", Name: "Root", WorldPosition: []float64{1, 2, 3}}},
	}

	var out bytes.Buffer
	require.NoError(t, writeReport(&out, "yaml", report))
	var fromYAML DocumentReport
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &fromYAML))
	assert.Equal(t, "Root", fromYAML.Tree[0].Name)
	assert.Contains(t, out.String(), "worldPosition: [1, 2, 3]")

	out.Reset()
	require.NoError(t, writeReport(&out, "json", report))
	var fromJSON DocumentReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &fromJSON))
	assert.Equal(t, []float64{1, 2, 3}, fromJSON.Tree[0].WorldPosition)
}

func TestInspectCommand_RejectsUnknownFormat(t *testing.T) {
	configFile = ""
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"inspect", "s1", "--format", "xml"})

	errutil.AssertErrorCode(t, cmd.Execute(), "INVALID_FORMAT")
}
