// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sceneforge/sceneforge/internal/access"
	"github.com/sceneforge/sceneforge/internal/hub"
	"github.com/sceneforge/sceneforge/internal/protocol"
	"github.com/sceneforge/sceneforge/internal/scene"
	"github.com/sceneforge/sceneforge/internal/store"
)

// seedPrefabProject stores a scene "child" with one root at x=1 and a scene
// "parent" whose prefab slot at y=2 instantiates it.
func seedPrefabProject(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	h, err := hub.New(st)
	require.NoError(t, err)
	require.NoError(t, h.Start(ctx))
	defer func() { _ = h.Close(ctx) }()

	c := h.Connect(access.SubjectSystem)
	defer func() { _ = c.Close() }()

	events := make(map[string]<-chan protocol.Event)
	for _, id := range []string{"child", "parent"} {
		_, err := h.Create(ctx, access.SubjectSystem, scene.KindName, id)
		require.NoError(t, err)
		_, ev, err := c.Open(ctx, id)
		require.NoError(t, err)
		events[id] = ev
	}

	run := func(docID, name string, args any) json.RawMessage {
		raw, err := json.Marshal(args)
		require.NoError(t, err)
		ack, err := c.Submit(ctx, docID, protocol.Command{Name: name, Args: raw})
		require.NoError(t, err)
		for {
			select {
			case ev := <-events[docID]:
				if ev.Seq == ack.Seq {
					return ev.Result
				}
			case <-time.After(time.Second):
				t.Fatalf("no event for %s", name)
			}
		}
	}

	var root scene.AddNodeResult
	require.NoError(t, json.Unmarshal(run("child", scene.CmdAddNode, scene.AddNodeArgs{
		Name:      "Root",
		Transform: &scene.Transform{Position: &scene.Vec3{X: 1}},
	}), &root))

	var slot scene.AddNodeResult
	require.NoError(t, json.Unmarshal(run("parent", scene.CmdAddNode, scene.AddNodeArgs{
		Name:      "Slot",
		Prefab:    true,
		Transform: &scene.Transform{Position: &scene.Vec3{Y: 2}},
	}), &slot))
	run("parent", scene.CmdSetNodeProperty, scene.SetNodePropertyArgs{
		ID:    slot.NodeID,
		Path:  "prefab.sceneAssetId",
		Value: "child",
	})
}

// writeDocumentFile writes a DocumentFile to dir and returns its path.
func writeDocumentFile(t *testing.T, dir, id, kind string, data []byte) string {
	t.Helper()
	raw, err := json.Marshal(DocumentFile{ID: id, Kind: kind, Document: data})
	require.NoError(t, err)
	path := filepath.Join(dir, id+".json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}
