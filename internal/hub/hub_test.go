// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package hub_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sceneforge/sceneforge/internal/access"
	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/hub"
	"github.com/sceneforge/sceneforge/internal/protocol"
	"github.com/sceneforge/sceneforge/internal/scene"
	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/internal/tree"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newHub(t *testing.T, st store.Store, opts ...hub.Option) *hub.Hub {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}
	h, err := hub.New(st, opts...)
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h
}

func connect(t *testing.T, h *hub.Hub, subject string) *hub.LocalConn {
	t.Helper()
	c := h.Connect(subject)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func createScene(t *testing.T, h *hub.Hub, id string) string {
	t.Helper()
	id, err := h.Create(context.Background(), access.SubjectSystem, scene.KindName, id)
	require.NoError(t, err)
	return id
}

func submit(c *hub.LocalConn, docID, name string, args any) (protocol.Ack, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return protocol.Ack{}, err
	}
	return c.Submit(context.Background(), docID, protocol.Command{Name: name, Args: raw})
}

// addNode runs addNode through its own connection and returns the new
// node id from the broadcast.
func addNode(t *testing.T, h *hub.Hub, docID string, args scene.AddNodeArgs) string {
	t.Helper()
	c := h.Connect(access.SubjectSystem)
	defer func() { _ = c.Close() }()

	_, events, err := c.Open(context.Background(), docID)
	require.NoError(t, err)
	ack, err := submit(c, docID, scene.CmdAddNode, args)
	require.NoError(t, err)
	ev := next(t, events)
	require.Equal(t, ack.Seq, ev.Seq)

	var res scene.AddNodeResult
	require.NoError(t, json.Unmarshal(ev.Result, &res))
	return res.NodeID
}

func next(t *testing.T, events <-chan protocol.Event) protocol.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return protocol.Event{}
	}
}

func TestOpen_SnapshotAndBroadcastToEverySubscriber(t *testing.T) {
	h := newHub(t, nil)
	docID := createScene(t, h, "")
	alice := connect(t, h, "user:alice")
	bob := connect(t, h, "user:bob")
	ctx := context.Background()

	snap, aliceEvents, err := alice.Open(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, scene.KindName, snap.Kind)
	assert.Equal(t, uint64(0), snap.Seq)
	_, bobEvents, err := bob.Open(ctx, docID)
	require.NoError(t, err)
	assert.True(t, h.Resident(docID))

	ack, err := submit(alice, docID, scene.CmdAddNode, scene.AddNodeArgs{Name: "Camera"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ack.Seq)

	for _, events := range []<-chan protocol.Event{aliceEvents, bobEvents} {
		ev := next(t, events)
		assert.Equal(t, uint64(1), ev.Seq)
		assert.Equal(t, alice.ClientID(), ev.ClientID)
		assert.Equal(t, scene.CmdAddNode, ev.Command)
	}

	_, laterEvents, err := connect(t, h, "user:carol").Open(ctx, docID)
	require.NoError(t, err)
	select {
	case ev := <-laterEvents:
		t.Fatalf("late subscriber replayed event %d", ev.Seq)
	default:
	}
}

func TestSubmit_FailureIsNotBroadcast(t *testing.T) {
	h := newHub(t, nil)
	docID := createScene(t, h, "")
	c := connect(t, h, "user:alice")

	_, events, err := c.Open(context.Background(), docID)
	require.NoError(t, err)

	_, err = submit(c, docID, scene.CmdRemoveNode, scene.RemoveNodeArgs{ID: "missing"})
	errutil.AssertErrorCode(t, err, tree.CodeInvalidNode)
	_, err = submit(c, docID, "explode", nil)
	require.Error(t, err)

	ack, err := submit(c, docID, scene.CmdAddNode, scene.AddNodeArgs{Name: "Root"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ack.Seq, "failed commands do not consume sequence numbers")
	assert.Equal(t, uint64(1), next(t, events).Seq)
}

func TestSubmit_EventsFollowCommitOrder(t *testing.T) {
	h := newHub(t, nil)
	docID := createScene(t, h, "")
	watcher := connect(t, h, "user:watcher")
	_, events, err := watcher.Open(context.Background(), docID)
	require.NoError(t, err)

	const writers, perWriter = 4, 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		c := connect(t, h, "user:writer")
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_, err := submit(c, docID, scene.CmdAddNode, scene.AddNodeArgs{Name: "n"})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for want := uint64(1); want <= writers*perWriter; want++ {
		assert.Equal(t, want, next(t, events).Seq)
	}
}

func TestUnload_SavesDocument(t *testing.T) {
	st := store.NewMemory()
	h := newHub(t, st, hub.WithSaveInterval(time.Hour))
	docID := createScene(t, h, "")
	addNode(t, h, docID, scene.AddNodeArgs{Name: "Saved"})
	require.Eventually(t, func() bool { return !h.Resident(docID) }, time.Second, time.Millisecond)

	rec, err := st.Get(context.Background(), docID)
	require.NoError(t, err)
	doc, err := document.Decode(scene.NewKind(), docID, rec.Data, document.WithRegistry(h.Registry()))
	require.NoError(t, err)
	require.Len(t, doc.Tree.Roots(), 1)
	n, _ := doc.Tree.Get(doc.Tree.Roots()[0])
	assert.Equal(t, "Saved", n.Name)
}

func TestAutosave_WhileOpen(t *testing.T) {
	st := store.NewMemory()
	reg := prometheus.NewRegistry()
	metrics := hub.NewMetrics(reg)
	h := newHub(t, st, hub.WithSaveInterval(10*time.Millisecond), hub.WithMetrics(metrics))
	docID := createScene(t, h, "")
	c := connect(t, h, "user:alice")

	_, _, err := c.Open(context.Background(), docID)
	require.NoError(t, err)
	_, err = submit(c, docID, scene.CmdAddNode, scene.AddNodeArgs{Name: "Autosaved"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.Saves.WithLabelValues(hub.StatusSuccess)) >= 1
	}, time.Second, 5*time.Millisecond)
	rec, err := st.Get(context.Background(), docID)
	require.NoError(t, err)
	assert.Contains(t, string(rec.Data), "Autosaved")
	assert.True(t, h.Resident(docID))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Resident))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CommandExecutions.WithLabelValues(scene.KindName, scene.CmdAddNode, hub.StatusSuccess)))
}

func TestAccess(t *testing.T) {
	ac, err := access.NewStatic(access.DefaultRoles())
	require.NoError(t, err)
	require.NoError(t, ac.Assign("user:vera", "viewer"))
	require.NoError(t, ac.Assign("user:eli", "editor"))

	h := newHub(t, nil, hub.WithAccess(ac))
	docID := createScene(t, h, "")
	ctx := context.Background()

	_, err = h.Create(ctx, "user:vera", scene.KindName, "")
	errutil.AssertErrorCode(t, err, access.CodePermissionDenied)

	viewer := connect(t, h, "user:vera")
	_, _, err = viewer.Open(ctx, docID)
	require.NoError(t, err)
	_, err = submit(viewer, docID, scene.CmdAddNode, scene.AddNodeArgs{Name: "x"})
	errutil.AssertErrorCode(t, err, access.CodePermissionDenied)

	_, err = submit(connect(t, h, "user:eli"), docID, scene.CmdAddNode, scene.AddNodeArgs{Name: "x"})
	require.NoError(t, err)

	_, _, err = connect(t, h, "user:stranger").Open(ctx, docID)
	errutil.AssertErrorCode(t, err, access.CodePermissionDenied)
}

func TestPrefabs_AcrossDocuments(t *testing.T) {
	st := store.NewMemory()
	h := newHub(t, st)
	level := createScene(t, h, "level")
	enemy := createScene(t, h, "enemy")
	c := connect(t, h, "user:alice")

	enemyRoot := addNode(t, h, enemy, scene.AddNodeArgs{Name: "Enemy"})
	slot := addNode(t, h, level, scene.AddNodeArgs{Name: "Spawn", Prefab: true})

	_, err := submit(c, level, scene.CmdSetNodeProperty, scene.SetNodePropertyArgs{ID: slot, Path: "prefab.sceneAssetId", Value: enemy})
	require.NoError(t, err)
	assert.True(t, h.IsReferenced(enemy))
	assert.Equal(t, []string{level}, h.Graph().Referrers(enemy))

	_, err = submit(c, enemy, scene.CmdAddNode, scene.AddNodeArgs{Name: "Second root"})
	errutil.AssertErrorCode(t, err, scene.CodeStructuralConstraint)

	back := addNode(t, h, enemy, scene.AddNodeArgs{Name: "Back", ParentID: enemyRoot, Prefab: true})
	_, err = submit(c, enemy, scene.CmdSetNodeProperty, scene.SetNodePropertyArgs{ID: back, Path: "prefab.sceneAssetId", Value: level})
	errutil.AssertErrorCode(t, err, scene.CodeCyclicReference)

	err = h.Delete(context.Background(), access.SubjectSystem, enemy)
	errutil.AssertErrorCode(t, err, hub.CodeInUse)

	require.Eventually(t, func() bool { return !h.Resident(level) && !h.Resident(enemy) }, time.Second, time.Millisecond)

	restarted := newHub(t, st)
	assert.True(t, restarted.IsReferenced(enemy), "references are indexed at start")
	assert.False(t, restarted.IsReferenced(level))
}

func TestDelete(t *testing.T) {
	st := store.NewMemory()
	h := newHub(t, st)
	docID := createScene(t, h, "")
	c := connect(t, h, "user:alice")
	ctx := context.Background()

	_, _, err := c.Open(ctx, docID)
	require.NoError(t, err)
	errutil.AssertErrorCode(t, h.Delete(ctx, access.SubjectSystem, docID), hub.CodeInUse)

	require.NoError(t, c.CloseDocument(ctx, docID))
	require.Eventually(t, func() bool { return !h.Resident(docID) }, time.Second, time.Millisecond)
	require.NoError(t, h.Delete(ctx, access.SubjectSystem, docID))

	_, _, err = c.Open(ctx, docID)
	errutil.AssertErrorCode(t, err, store.CodeNotFound)
}

func TestSlowSubscriberIsEvicted(t *testing.T) {
	metrics := hub.NewMetrics(nil)
	h := newHub(t, nil, hub.WithSubscriberBuffer(1), hub.WithMetrics(metrics))
	docID := createScene(t, h, "")
	slow := connect(t, h, "user:slow")
	writer := connect(t, h, "user:writer")

	_, events, err := slow.Open(context.Background(), docID)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := submit(writer, docID, scene.CmdAddNode, scene.AddNodeArgs{Name: "n"})
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(1), next(t, events).Seq)
	_, ok := <-events
	assert.False(t, ok, "evicted subscriber sees a closed stream")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Evictions))
}

func TestCreate_Errors(t *testing.T) {
	h := newHub(t, nil)
	ctx := context.Background()

	_, err := h.Create(ctx, access.SubjectSystem, "spreadsheet", "")
	errutil.AssertErrorCode(t, err, hub.CodeUnknownKind)

	createScene(t, h, "dup")
	_, err = h.Create(ctx, access.SubjectSystem, scene.KindName, "dup")
	errutil.AssertErrorCode(t, err, store.CodeExists)
}

func TestClose_FlushesAndRejects(t *testing.T) {
	st := store.NewMemory()
	h, err := hub.New(st, hub.WithSaveInterval(time.Hour))
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	assert.True(t, h.Ready())

	docID := createScene(t, h, "")
	c := h.Connect("user:alice")
	defer func() { _ = c.Close() }()
	_, events, err := c.Open(context.Background(), docID)
	require.NoError(t, err)
	_, err = submit(c, docID, scene.CmdAddNode, scene.AddNodeArgs{Name: "Flushed"})
	require.NoError(t, err)

	require.NoError(t, h.Close(context.Background()))
	assert.False(t, h.Ready())

	rec, err := st.Get(context.Background(), docID)
	require.NoError(t, err)
	assert.Contains(t, string(rec.Data), "Flushed")

	next(t, events)
	_, ok := <-events
	assert.False(t, ok)

	_, err = submit(c, docID, scene.CmdAddNode, scene.AddNodeArgs{Name: "late"})
	errutil.AssertErrorCode(t, err, hub.CodeClosed)
}

func TestStart_SkipsUnreadableDocuments(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, &store.Record{ID: "odd", Kind: "spreadsheet", Data: json.RawMessage(`{}`)}))
	require.NoError(t, st.Create(ctx, &store.Record{ID: "broken", Kind: scene.KindName, Data: json.RawMessage(`[`)}))

	h := newHub(t, st)
	assert.True(t, h.Ready())

	_, _, err := connect(t, h, "user:alice").Open(ctx, "odd")
	errutil.AssertErrorCode(t, err, hub.CodeUnknownKind)
}

// cancelOnGet cancels the submitter's context when target is loaded, then
// behaves like a backend that honors cancellation.
type cancelOnGet struct {
	store.Store
	target string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (s *cancelOnGet) arm(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

func (s *cancelOnGet) Get(ctx context.Context, id string) (*store.Record, error) {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if id == s.target && cancel != nil {
		cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.Get(ctx, id)
}

func TestSubmit_RunsToCompletionWhenSubmitterGoesAway(t *testing.T) {
	st := &cancelOnGet{Store: store.NewMemory(), target: "enemy"}
	h := newHub(t, st)
	level := createScene(t, h, "level")
	enemy := createScene(t, h, "enemy")
	addNode(t, h, enemy, scene.AddNodeArgs{Name: "Enemy"})
	slot := addNode(t, h, level, scene.AddNodeArgs{Name: "Spawn", Prefab: true})
	require.Eventually(t, func() bool { return !h.Resident(enemy) }, time.Second, time.Millisecond)

	c := connect(t, h, "user:alice")
	_, events, err := c.Open(context.Background(), level)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st.arm(cancel)

	raw, err := json.Marshal(scene.SetNodePropertyArgs{ID: slot, Path: "prefab.sceneAssetId", Value: enemy})
	require.NoError(t, err)
	ack, err := c.Submit(ctx, level, protocol.Command{Name: scene.CmdSetNodeProperty, Args: raw})
	require.NoError(t, err)
	assert.Equal(t, ack.Seq, next(t, events).Seq)
	assert.True(t, h.IsReferenced(enemy))
	require.Error(t, ctx.Err(), "the submitter's context was cancelled mid-command")
}
