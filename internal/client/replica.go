// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package client keeps local replicas of server documents.
//
// A replica never mutates itself when a command is submitted. It applies
// only the events the server broadcasts, in order, so every replica of a
// document converges on the server's state.
package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/component"
	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/protocol"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

// Replica error codes.
const (
	// CodeReplicaClosed reports use of a replica whose event stream ended.
	CodeReplicaClosed = "REPLICA_CLOSED"
	// CodeReplicaDiverged reports a replica that failed to apply a
	// committed command and no longer mirrors the server.
	CodeReplicaDiverged = "REPLICA_DIVERGED"
)

// Conn is a connection to a document server.
type Conn interface {
	// Open subscribes to a document. Events after the snapshot follow on
	// the channel, which closes when the subscription ends.
	Open(ctx context.Context, documentID string) (*protocol.Snapshot, <-chan protocol.Event, error)
	// CloseDocument ends a subscription.
	CloseDocument(ctx context.Context, documentID string) error
	// Submit runs a command and returns once it is committed.
	Submit(ctx context.Context, documentID string, cmd protocol.Command) (protocol.Ack, error)
}

// Replica is a local copy of one document.
type Replica struct {
	conn Conn
	id   string

	mu      sync.Mutex
	changed *sync.Cond
	doc     *document.Document
	applied uint64

	// diverged is set when a committed command could not be applied; the
	// replica stops applying events from then on.
	diverged error
	closed   error

	done chan struct{}
}

// Open subscribes to documentID and starts applying its events. kinds maps
// kind names to their definitions.
func Open(ctx context.Context, conn Conn, kinds map[string]*document.Kind, registry *component.Registry, documentID string) (*Replica, error) {
	snap, events, err := conn.Open(ctx, documentID)
	if err != nil {
		return nil, err
	}
	kind, ok := kinds[snap.Kind]
	if !ok {
		_ = conn.CloseDocument(ctx, documentID)
		return nil, oops.With("kind", snap.Kind).Errorf("unknown document kind: %s", snap.Kind)
	}
	doc, err := document.Decode(kind, documentID, snap.Data, document.WithRegistry(registry))
	if err != nil {
		_ = conn.CloseDocument(ctx, documentID)
		return nil, err
	}
	for name, data := range snap.Blobs {
		doc.SetBlob(name, data)
	}

	r := &Replica{
		conn:    conn,
		id:      documentID,
		doc:     doc,
		applied: snap.Seq,
		done:    make(chan struct{}),
	}
	r.changed = sync.NewCond(&r.mu)
	go r.apply(events)
	return r, nil
}

func (r *Replica) apply(events <-chan protocol.Event) {
	defer close(r.done)
	for ev := range events {
		r.mu.Lock()
		// A diverged replica only drains its stream.
		if r.diverged != nil || ev.Seq <= r.applied {
			r.mu.Unlock()
			continue
		}
		if err := r.doc.Apply(ev.Command, ev.Result); err != nil {
			r.diverged = oops.Code(CodeReplicaDiverged).
				With("document_id", r.id).
				With("seq", ev.Seq).
				With("command", ev.Command).
				With("cause_code", errutil.Code(err)).
				Errorf("replica diverged at seq %d: %v", ev.Seq, err)
			slog.Error("replica diverged", "document_id", r.id, "seq", ev.Seq, "command", ev.Command, "error", err)
			r.changed.Broadcast()
			r.mu.Unlock()
			continue
		}
		r.applied = ev.Seq
		r.changed.Broadcast()
		r.mu.Unlock()
	}

	r.mu.Lock()
	if r.closed == nil {
		r.closed = oops.Code(CodeReplicaClosed).With("document_id", r.id).Errorf("event stream closed")
	}
	r.changed.Broadcast()
	r.mu.Unlock()
}

// ID returns the document id.
func (r *Replica) ID() string { return r.id }

// Seq returns the sequence number of the last applied event.
func (r *Replica) Seq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied
}

// Err returns why the replica stopped following the server, if it did.
// Divergence takes precedence over the end of the stream.
func (r *Replica) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.diverged != nil {
		return r.diverged
	}
	return r.closed
}

// Read calls fn with the document while no event is being applied. fn must
// not retain d or mutate it.
func (r *Replica) Read(fn func(d *document.Document)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.doc)
}

// Submit sends a command and waits until the replica has applied its
// broadcast. args is marshaled to JSON.
func (r *Replica) Submit(ctx context.Context, name string, args any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return oops.With("command", name).Wrapf(err, "encode arguments")
	}
	ack, err := r.conn.Submit(ctx, r.id, protocol.Command{Name: name, Args: raw})
	if err != nil {
		return err
	}
	return r.WaitFor(ctx, ack.Seq)
}

// WaitFor blocks until the event with seq has been applied. A diverged
// replica fails every wait.
func (r *Replica) WaitFor(ctx context.Context, seq uint64) error {
	stop := context.AfterFunc(ctx, func() {
		r.mu.Lock()
		r.changed.Broadcast()
		r.mu.Unlock()
	})
	defer stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.diverged != nil {
			return r.diverged
		}
		if r.applied >= seq {
			return nil
		}
		if r.closed != nil {
			return r.closed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r.changed.Wait()
	}
}

// Close ends the subscription and waits for the event loop to finish.
func (r *Replica) Close(ctx context.Context) error {
	err := r.conn.CloseDocument(ctx, r.id)
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
