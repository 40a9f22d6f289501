// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package hub serves documents to editing clients.
//
// Each resident document lives in a room: a goroutine that runs commands
// one at a time, broadcasts every committed command to all subscribers
// (the submitting client included) and only then acknowledges it. Rooms
// load on first use and save and unload when their last holder leaves.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/sceneforge/sceneforge/internal/access"
	"github.com/sceneforge/sceneforge/internal/component"
	"github.com/sceneforge/sceneforge/internal/component/builtin"
	"github.com/sceneforge/sceneforge/internal/cubicmodel"
	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/ids"
	"github.com/sceneforge/sceneforge/internal/project"
	"github.com/sceneforge/sceneforge/internal/protocol"
	"github.com/sceneforge/sceneforge/internal/scene"
	"github.com/sceneforge/sceneforge/internal/store"
)

var tracer = otel.Tracer("sceneforge/hub")

// Defaults for Options.
const (
	DefaultSaveInterval     = 2 * time.Second
	DefaultSubscriberBuffer = 256
	DefaultCommandTimeout   = 30 * time.Second
)

// Hub owns every resident document of a project.
type Hub struct {
	store            store.Store
	kinds            map[string]*document.Kind
	registry         *component.Registry
	access           access.Control
	metrics          *Metrics
	saveInterval     time.Duration
	subscriberBuffer int
	commandTimeout   time.Duration

	graph   *project.Graph
	rooms   *project.Residency[*room]
	refLock sync.Mutex

	mu      sync.Mutex
	live    map[string]*room
	started bool
	closed  bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithKinds replaces the served document kinds.
func WithKinds(kinds ...*document.Kind) Option {
	return func(h *Hub) {
		h.kinds = make(map[string]*document.Kind, len(kinds))
		for _, k := range kinds {
			h.kinds[k.Name] = k
		}
	}
}

// WithRegistry sets the component registry shared by all documents.
func WithRegistry(r *component.Registry) Option {
	return func(h *Hub) { h.registry = r }
}

// WithAccess sets the access controller. The default allows everything.
func WithAccess(ac access.Control) Option {
	return func(h *Hub) { h.access = ac }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithSaveInterval sets how long a changed document waits before it is
// saved.
func WithSaveInterval(d time.Duration) Option {
	return func(h *Hub) { h.saveInterval = d }
}

// WithSubscriberBuffer sets how many events a subscriber may lag behind
// before it is evicted.
func WithSubscriberBuffer(n int) Option {
	return func(h *Hub) { h.subscriberBuffer = n }
}

// WithCommandTimeout bounds how long one command may run. Commands are not
// cancelled when the submitting client goes away.
func WithCommandTimeout(d time.Duration) Option {
	return func(h *Hub) { h.commandTimeout = d }
}

// New creates a hub over st serving scenes and cubic models.
func New(st store.Store, opts ...Option) (*Hub, error) {
	if st == nil {
		return nil, oops.Errorf("store is required")
	}
	h := &Hub{
		store:            st,
		access:           access.AllowAll{},
		saveInterval:     DefaultSaveInterval,
		subscriberBuffer: DefaultSubscriberBuffer,
		commandTimeout:   DefaultCommandTimeout,
		graph:            project.NewGraph(),
		live:             make(map[string]*room),
	}
	WithKinds(scene.NewKind(), cubicmodel.NewKind())(h)
	for _, opt := range opts {
		opt(h)
	}
	if h.registry == nil {
		r, err := builtin.NewRegistry()
		if err != nil {
			return nil, oops.Wrapf(err, "build component registry")
		}
		h.registry = r
	}
	if h.metrics == nil {
		h.metrics = NewMetrics(nil)
	}
	if h.saveInterval <= 0 {
		h.saveInterval = DefaultSaveInterval
	}
	if h.subscriberBuffer <= 0 {
		h.subscriberBuffer = DefaultSubscriberBuffer
	}
	if h.commandTimeout <= 0 {
		h.commandTimeout = DefaultCommandTimeout
	}
	h.rooms = project.NewResidency(h.loadRoom, h.unloadRoom)
	return h, nil
}

// Start indexes the references between stored documents.
func (h *Hub) Start(ctx context.Context) error {
	infos, err := h.store.List(ctx)
	if err != nil {
		return oops.Wrapf(err, "list documents")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, info := range infos {
		g.Go(func() error {
			deps, err := h.scanDependencies(gctx, info)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.WarnContext(gctx, "skipping unreadable document", "document_id", info.ID, "error", err)
				return nil
			}
			h.graph.Add(info.ID, deps...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
	slog.InfoContext(ctx, "hub started", "documents", len(infos))
	return nil
}

func (h *Hub) scanDependencies(ctx context.Context, info store.Info) ([]string, error) {
	kind, ok := h.kinds[info.Kind]
	if !ok {
		return nil, ErrUnknownKind(info.Kind)
	}
	rec, err := h.store.Get(ctx, info.ID)
	if err != nil {
		return nil, err
	}
	doc, err := document.Decode(kind, info.ID, rec.Data, document.WithRegistry(h.registry))
	if err != nil {
		return nil, err
	}
	return doc.Dependencies().IDs(), nil
}

// Ready reports whether the hub has started and is not closed.
func (h *Hub) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started && !h.closed
}

// Close saves every resident document and evicts its subscribers. Rooms
// unload once their holders release them.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	rooms := make([]*room, 0, len(h.live))
	for _, r := range h.live {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	for _, r := range rooms {
		err := r.do(ctx, func() {
			r.save()
			r.bcast.evictAll()
		})
		if err != nil && ctx.Err() != nil {
			return oops.Wrapf(err, "close hub")
		}
	}
	slog.InfoContext(ctx, "hub closed", "flushed", len(rooms))
	return nil
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Kinds returns the served kinds by name.
func (h *Hub) Kinds() map[string]*document.Kind { return h.kinds }

// Registry returns the component registry.
func (h *Hub) Registry() *component.Registry { return h.registry }

// Graph returns the project reference graph.
func (h *Hub) Graph() *project.Graph { return h.graph }

// Resident reports whether id is loaded.
func (h *Hub) Resident(id string) bool { return h.rooms.Resident(id) }

// Acquire implements document.Environment.
func (h *Hub) Acquire(ctx context.Context, id string) (*document.Document, func(), error) {
	r, release, err := h.rooms.Acquire(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return r.doc, release, nil
}

// IsReferenced implements document.Environment.
func (h *Hub) IsReferenced(id string) bool { return h.graph.IsReferenced(id) }

// ReferenceLock implements document.Environment.
func (h *Hub) ReferenceLock() sync.Locker { return &h.refLock }

func (h *Hub) loadRoom(ctx context.Context, id string) (*room, error) {
	rec, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	kind, ok := h.kinds[rec.Kind]
	if !ok {
		return nil, ErrUnknownKind(rec.Kind)
	}
	doc, err := document.Decode(kind, id, rec.Data,
		document.WithRegistry(h.registry),
		document.WithEnvironment(h),
	)
	if err != nil {
		return nil, err
	}
	blobs, err := h.store.Blobs(ctx, id)
	if err != nil {
		return nil, err
	}
	for name, data := range blobs {
		doc.SetBlob(name, data)
	}

	h.graph.Forget(id)
	h.graph.Add(id, doc.Dependencies().IDs()...)

	r := newRoom(h, doc, cloneBlobs(blobs))
	go r.run()

	h.mu.Lock()
	h.live[id] = r
	h.mu.Unlock()
	h.metrics.Resident.Inc()
	slog.DebugContext(ctx, "document loaded", "document_id", id, "kind", kind.Name)
	return r, nil
}

func (h *Hub) unloadRoom(id string, r *room) {
	r.stop()
	h.mu.Lock()
	delete(h.live, id)
	h.mu.Unlock()
	h.metrics.Resident.Dec()
	slog.Debug("document unloaded", "document_id", id)
}

// Subscription is an open document. Events arrive in commit order after
// Snapshot; the channel closes when the subscriber is evicted or closed.
type Subscription struct {
	Snapshot protocol.Snapshot

	room    *room
	sub     *subscriber
	release func()
	once    sync.Once
}

// Events returns the event stream.
func (s *Subscription) Events() <-chan protocol.Event { return s.sub.events }

// Close stops the event stream and releases the document.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.room.bcast.unsubscribe(s.sub)
		s.release()
	})
}

// Open subscribes origin to a document.
func (h *Hub) Open(ctx context.Context, origin document.Origin, id string) (*Subscription, error) {
	if h.isClosed() {
		return nil, ErrClosed()
	}
	r, release, err := h.rooms.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	resource := access.Resource(r.doc.Kind.Name, id)
	if !h.access.Check(ctx, origin.Subject, access.ActionRead, resource) {
		release()
		return nil, ErrPermissionDenied(origin.Subject, access.ActionRead, resource)
	}

	var (
		snap    *protocol.Snapshot
		sub     *subscriber
		snapErr error
	)
	if err := r.do(ctx, func() { snap, sub, snapErr = r.snapshot(origin.ClientID) }); err != nil {
		release()
		return nil, err
	}
	if snapErr != nil {
		release()
		return nil, snapErr
	}
	return &Subscription{Snapshot: *snap, room: r, sub: sub, release: release}, nil
}

// Submit runs a command on a document. It returns once the command is
// committed and its event queued to every subscriber.
func (h *Hub) Submit(ctx context.Context, origin document.Origin, id string, cmd protocol.Command) (protocol.Ack, error) {
	if h.isClosed() {
		return protocol.Ack{}, ErrClosed()
	}
	r, release, err := h.rooms.Acquire(ctx, id)
	if err != nil {
		return protocol.Ack{}, err
	}
	defer release()

	resource := access.Resource(r.doc.Kind.Name, id)
	if !h.access.Check(ctx, origin.Subject, access.ActionWrite, resource) {
		h.metrics.recordCommand(r.doc.Kind.Name, cmd.Name, StatusPermissionDenied, 0)
		return protocol.Ack{}, ErrPermissionDenied(origin.Subject, access.ActionWrite, resource)
	}

	var (
		seq     uint64
		execErr error
	)
	if err := r.do(ctx, func() { seq, execErr = r.execute(ctx, origin, cmd) }); err != nil {
		return protocol.Ack{}, err
	}
	if execErr != nil {
		return protocol.Ack{}, execErr
	}
	return protocol.Ack{Seq: seq}, nil
}

// Create stores a new empty document. An empty id gets a fresh ULID.
func (h *Hub) Create(ctx context.Context, subject, kindName, id string) (string, error) {
	if h.isClosed() {
		return "", ErrClosed()
	}
	kind, ok := h.kinds[kindName]
	if !ok {
		return "", ErrUnknownKind(kindName)
	}
	if id == "" {
		id = ids.New()
	}
	resource := access.Resource(kindName, id)
	if !h.access.Check(ctx, subject, access.ActionCreate, resource) {
		return "", ErrPermissionDenied(subject, access.ActionCreate, resource)
	}

	data, err := document.New(kind, id, document.WithRegistry(h.registry)).Encode()
	if err != nil {
		return "", err
	}
	if err := h.store.Create(ctx, &store.Record{ID: id, Kind: kindName, Data: json.RawMessage(data)}); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "document created", "document_id", id, "kind", kindName, "subject", subject)
	return id, nil
}

// Delete removes a stored document. Open or referenced documents cannot
// be deleted.
func (h *Hub) Delete(ctx context.Context, subject, id string) error {
	rec, err := h.store.Get(ctx, id)
	if err != nil {
		return err
	}
	resource := access.Resource(rec.Kind, id)
	if !h.access.Check(ctx, subject, access.ActionDelete, resource) {
		return ErrPermissionDenied(subject, access.ActionDelete, resource)
	}

	h.refLock.Lock()
	defer h.refLock.Unlock()
	if h.Resident(id) {
		return ErrInUse(id, "document is open")
	}
	if h.graph.IsReferenced(id) {
		return ErrInUse(id, "document is used as a prefab")
	}
	if err := h.store.Delete(ctx, id); err != nil {
		return err
	}
	h.graph.Forget(id)
	slog.InfoContext(ctx, "document deleted", "document_id", id, "subject", subject)
	return nil
}

// List returns every stored document.
func (h *Hub) List(ctx context.Context) ([]store.Info, error) {
	return h.store.List(ctx)
}
