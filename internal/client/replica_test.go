// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sceneforge/sceneforge/internal/access"
	"github.com/sceneforge/sceneforge/internal/client"
	"github.com/sceneforge/sceneforge/internal/cubicmodel"
	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/hub"
	"github.com/sceneforge/sceneforge/internal/scene"
	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/internal/tree"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newHub(t *testing.T, opts ...hub.Option) *hub.Hub {
	t.Helper()
	h, err := hub.New(store.NewMemory(), opts...)
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h
}

func openReplica(t *testing.T, h *hub.Hub, docID string) *client.Replica {
	t.Helper()
	conn := h.Connect("user:" + t.Name())
	r, err := client.Open(context.Background(), conn, h.Kinds(), h.Registry(), docID)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close(context.Background())
		_ = conn.Close()
	})
	return r
}

func encode(t *testing.T, r *client.Replica) string {
	t.Helper()
	var data []byte
	var err error
	r.Read(func(d *document.Document) { data, err = d.Encode() })
	require.NoError(t, err)
	return string(data)
}

func rootNames(r *client.Replica) []string {
	var names []string
	r.Read(func(d *document.Document) {
		for _, id := range d.Tree.Roots() {
			n, _ := d.Tree.Get(id)
			names = append(names, n.Name)
		}
	})
	return names
}

func TestReplicas_Converge(t *testing.T) {
	h := newHub(t)
	docID, err := h.Create(context.Background(), access.SubjectSystem, scene.KindName, "")
	require.NoError(t, err)

	a := openReplica(t, h, docID)
	b := openReplica(t, h, docID)
	ctx := context.Background()

	require.NoError(t, a.Submit(ctx, scene.CmdAddNode, scene.AddNodeArgs{Name: "Light"}))
	assert.Equal(t, []string{"Light"}, rootNames(a), "submit returns after the broadcast is applied")

	require.NoError(t, b.Submit(ctx, scene.CmdAddNode, scene.AddNodeArgs{Name: "Camera", Index: intp(0)}))
	require.NoError(t, a.WaitFor(ctx, b.Seq()))

	assert.Equal(t, []string{"Camera", "Light"}, rootNames(a))
	assert.Equal(t, encode(t, a), encode(t, b))

	c := openReplica(t, h, docID)
	assert.Equal(t, uint64(2), c.Seq())
	assert.Equal(t, encode(t, a), encode(t, c))
}

func TestReplica_FailedSubmitLeavesStateAlone(t *testing.T) {
	h := newHub(t)
	docID, err := h.Create(context.Background(), access.SubjectSystem, scene.KindName, "")
	require.NoError(t, err)
	r := openReplica(t, h, docID)
	before := encode(t, r)

	err = r.Submit(context.Background(), scene.CmdRemoveNode, scene.RemoveNodeArgs{ID: "nope"})
	errutil.AssertErrorCode(t, err, tree.CodeInvalidNode)
	assert.Equal(t, before, encode(t, r))
	assert.Equal(t, uint64(0), r.Seq())
	assert.NoError(t, r.Err())
}

func TestReplica_BlobsTravelWithSnapshot(t *testing.T) {
	h := newHub(t)
	docID, err := h.Create(context.Background(), access.SubjectSystem, cubicmodel.KindName, "")
	require.NoError(t, err)
	a := openReplica(t, h, docID)

	require.NoError(t, a.Submit(context.Background(), cubicmodel.CmdSetMap, cubicmodel.SetMapArgs{Name: "map", Data: []byte{9, 8, 7}}))

	b := openReplica(t, h, docID)
	for _, r := range []*client.Replica{a, b} {
		r.Read(func(d *document.Document) {
			data, ok := d.Blob("map")
			assert.True(t, ok)
			assert.Equal(t, []byte{9, 8, 7}, data)
		})
	}
}

func TestReplica_EvictionEndsReplica(t *testing.T) {
	h := newHub(t)
	docID, err := h.Create(context.Background(), access.SubjectSystem, scene.KindName, "")
	require.NoError(t, err)
	r := openReplica(t, h, docID)

	require.NoError(t, h.Close(context.Background()))
	require.Eventually(t, func() bool { return r.Err() != nil }, time.Second, time.Millisecond)
	errutil.AssertErrorCode(t, r.Err(), client.CodeReplicaClosed)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	errutil.AssertErrorCode(t, r.WaitFor(ctx, 1), client.CodeReplicaClosed)
}

func TestReplica_WaitForHonorsContext(t *testing.T) {
	h := newHub(t)
	docID, err := h.Create(context.Background(), access.SubjectSystem, scene.KindName, "")
	require.NoError(t, err)
	r := openReplica(t, h, docID)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.WaitFor(ctx, 5), context.DeadlineExceeded)
}

func intp(i int) *int { return &i }
