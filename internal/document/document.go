// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package document hosts server-authoritative document trees: a tree store,
// per-node component sets, dependency bookkeeping and the command table
// through which every mutation flows.
//
// A document is mutated by one goroutine at a time. Other goroutines may
// read its published Summary.
package document

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/component"
	"github.com/sceneforge/sceneforge/internal/ids"
	"github.com/sceneforge/sceneforge/internal/tree"
)

// Environment gives server-side commands access to other documents.
type Environment interface {
	// Acquire keeps a document resident until release is called.
	Acquire(ctx context.Context, id string) (doc *Document, release func(), err error)
	// IsReferenced reports whether another document references id.
	IsReferenced(id string) bool
	// ReferenceLock serializes changes to the reference graph.
	ReferenceLock() sync.Locker
}

// Document is one tree document.
type Document struct {
	ID   string
	Kind *Kind
	Tree *tree.Store
	Meta map[string]any

	registry   *component.Registry
	newID      ids.Generator
	env        Environment
	components map[string]*component.Set
	deps       *component.DependencyTracker
	observers  []*observerEntry
	blobs      map[string][]byte
	summary    atomic.Pointer[Summary]
}

// Option configures a Document.
type Option func(*Document)

// WithRegistry sets the component registry.
func WithRegistry(r *component.Registry) Option {
	return func(d *Document) { d.registry = r }
}

// WithIDGenerator sets the node and component id source.
func WithIDGenerator(g ids.Generator) Option {
	return func(d *Document) { d.newID = g }
}

// WithEnvironment attaches the server environment. Replicas have none.
func WithEnvironment(env Environment) Option {
	return func(d *Document) { d.env = env }
}

// New creates an empty document of kind.
func New(kind *Kind, id string, opts ...Option) *Document {
	d := &Document{
		ID:         id,
		Kind:       kind,
		Meta:       make(map[string]any, len(kind.meta)),
		newID:      ids.New,
		components: make(map[string]*component.Set),
		blobs:      make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry, _ = component.NewRegistry()
	}
	for k, v := range kind.meta {
		d.Meta[k] = v
	}
	d.Tree = tree.New(kind.Schema, tree.WithIDGenerator(d.newID))
	d.deps = component.NewDependencyTracker(d.notifyAddDependencies, d.notifyRemoveDependencies)
	d.Tree.OnRemove(func(n *tree.Node) {
		if set, ok := d.components[n.ID]; ok {
			set.Clear()
			delete(d.components, n.ID)
		}
	})
	for _, fn := range kind.setup {
		fn(d)
	}
	d.publish()
	return d
}

// Env returns the server environment, or nil for replicas.
func (d *Document) Env() Environment { return d.env }

// Registry returns the component registry.
func (d *Document) Registry() *component.Registry { return d.registry }

// NewID returns a fresh id from the document's generator.
func (d *Document) NewID() string { return d.newID() }

// Dependencies returns the tracker of documents this one references.
func (d *Document) Dependencies() *component.DependencyTracker { return d.deps }

// Summary returns the last published summary. Safe for concurrent use.
func (d *Document) Summary() Summary { return *d.summary.Load() }

// Publish recomputes the summary other documents see.
func (d *Document) Publish() { d.publish() }

func (d *Document) publish() {
	s := &Summary{Roots: len(d.Tree.Roots())}
	if d.Kind.summarize != nil {
		s.Prefabs = d.Kind.summarize(d)
	}
	d.summary.Store(s)
}

// Execute runs the server side of a command and returns the final
// arguments to broadcast. A failing command leaves the document unchanged.
func (d *Document) Execute(ctx context.Context, origin Origin, name string, args json.RawMessage) (json.RawMessage, error) {
	h, err := d.Kind.Handler(name)
	if err != nil {
		return nil, err
	}
	if h.Server == nil {
		return nil, UnknownCommandError(d.Kind.Name, name)
	}
	result, err := h.Server(ctx, d, origin, args)
	if err != nil {
		return nil, err
	}
	d.publish()
	d.notifyChange()
	return result, nil
}

// Apply runs the client side of a command with server-final arguments.
func (d *Document) Apply(name string, result json.RawMessage) error {
	h, err := d.Kind.Handler(name)
	if err != nil {
		return err
	}
	if h.Client == nil {
		return UnknownCommandError(d.Kind.Name, name)
	}
	if err := h.Client(d, result); err != nil {
		return oops.With("document_id", d.ID).With("command", name).Wrapf(err, "apply command")
	}
	d.publish()
	d.notifyChange()
	return nil
}

// Components returns the component set of a node.
func (d *Document) Components(nodeID string) (*component.Set, error) {
	if _, ok := d.Tree.Get(nodeID); !ok {
		return nil, tree.InvalidNodeError(nodeID)
	}
	return d.componentSet(nodeID), nil
}

func (d *Document) componentSet(nodeID string) *component.Set {
	set, ok := d.components[nodeID]
	if !ok {
		set = component.NewSet(d.registry,
			component.WithIDGenerator(d.newID),
			component.WithDependencyListener(func(c *component.Component, added, removed []string) {
				path := component.Path(nodeID, c.ID)
				if len(removed) > 0 {
					d.deps.Remove(path, removed)
				}
				if len(added) > 0 {
					d.deps.Add(path, added)
				}
			}),
		)
		d.components[nodeID] = set
	}
	return set
}

// Blob returns a side payload stored with the document.
func (d *Document) Blob(name string) ([]byte, bool) {
	b, ok := d.blobs[name]
	return b, ok
}

// SetBlob stores a side payload.
func (d *Document) SetBlob(name string, data []byte) {
	d.blobs[name] = data
}

// BlobNames returns the names of every side payload.
func (d *Document) BlobNames() []string {
	names := make([]string, 0, len(d.blobs))
	for name := range d.blobs {
		names = append(names, name)
	}
	return names
}
