// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/protocol"
	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

const saveTimeout = 30 * time.Second

// room owns one resident document. Its goroutine is the document's only
// writer: every command and snapshot runs there, one at a time.
type room struct {
	hub   *Hub
	doc   *document.Document
	ops   chan func()
	bcast *broadcaster

	// Owned by the room goroutine.
	seq        uint64
	dirty      bool
	savedBlobs map[string][]byte

	done    chan struct{}
	stopped chan struct{}
}

func newRoom(h *Hub, doc *document.Document, blobs map[string][]byte) *room {
	r := &room{
		hub:        h,
		doc:        doc,
		ops:        make(chan func()),
		bcast:      newBroadcaster(h.metrics, h.subscriberBuffer),
		savedBlobs: blobs,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	doc.Observe(document.Observer{
		OnChange: func(*document.Document) { r.dirty = true },
		OnAddDependencies: func(d *document.Document, ids []string) {
			h.graph.Add(d.ID, ids...)
		},
		OnRemoveDependencies: func(d *document.Document, ids []string) {
			h.graph.Remove(d.ID, ids...)
		},
	})
	return r
}

func (r *room) run() {
	defer close(r.stopped)

	var (
		timer *time.Timer
		tick  <-chan time.Time
	)
	for {
		select {
		case op := <-r.ops:
			op()
			if r.dirty && tick == nil {
				timer = time.NewTimer(r.hub.saveInterval)
				tick = timer.C
			}
		case <-tick:
			r.save()
			if r.dirty {
				timer.Reset(r.hub.saveInterval)
			} else {
				tick = nil
			}
		case <-r.done:
			if timer != nil {
				timer.Stop()
			}
			r.save()
			r.bcast.evictAll()
			return
		}
	}
}

// do runs fn on the room goroutine and waits for it.
func (r *room) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn()
	}
	select {
	case r.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return oops.With("document_id", r.doc.ID).Errorf("document unloaded")
	}
	<-finished
	return nil
}

func (r *room) stop() {
	close(r.done)
	<-r.stopped
}

// execute runs a command and broadcasts its final arguments before
// returning. Failed commands are neither applied nor broadcast. Once
// started, a command runs to completion or to the hub's command timeout,
// whatever happens to the submitter.
func (r *room) execute(ctx context.Context, origin document.Origin, cmd protocol.Command) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.hub.commandTimeout)
	defer cancel()

	kind := r.doc.Kind.Name
	ctx, span := tracer.Start(ctx, "hub.execute",
		trace.WithAttributes(
			attribute.String("document.id", r.doc.ID),
			attribute.String("document.kind", kind),
			attribute.String("command.name", cmd.Name),
			attribute.String("client.id", origin.ClientID),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := r.doc.Execute(ctx, origin, cmd.Name, cmd.Args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.hub.metrics.recordCommand(kind, cmd.Name, StatusError, time.Since(start))
		slog.WarnContext(ctx, "command failed",
			"document_id", r.doc.ID,
			"command", cmd.Name,
			"client_id", origin.ClientID,
			"code", errutil.Code(err),
			"error", err,
		)
		return 0, err
	}
	r.hub.metrics.recordCommand(kind, cmd.Name, StatusSuccess, time.Since(start))

	r.seq++
	span.SetAttributes(attribute.Int64("command.seq", int64(r.seq)))
	r.bcast.broadcast(protocol.Event{
		DocumentID: r.doc.ID,
		Seq:        r.seq,
		ClientID:   origin.ClientID,
		Command:    cmd.Name,
		Result:     result,
	})
	return r.seq, nil
}

// snapshot encodes the document and subscribes clientID in one step, so
// the subscriber receives exactly the events after the snapshot.
func (r *room) snapshot(clientID string) (*protocol.Snapshot, *subscriber, error) {
	data, err := r.doc.Encode()
	if err != nil {
		return nil, nil, err
	}
	snap := &protocol.Snapshot{
		DocumentID: r.doc.ID,
		Kind:       r.doc.Kind.Name,
		Seq:        r.seq,
		Data:       data,
	}
	if names := r.doc.BlobNames(); len(names) > 0 {
		snap.Blobs = make(map[string][]byte, len(names))
		for _, name := range names {
			b, _ := r.doc.Blob(name)
			snap.Blobs[name] = bytes.Clone(b)
		}
	}
	return snap, r.bcast.subscribe(clientID), nil
}

// save persists the document and changed blobs. Failures keep the room
// dirty so the next tick retries.
func (r *room) save() {
	if !r.dirty {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := r.persist(ctx); err != nil {
		r.hub.metrics.Saves.WithLabelValues(StatusError).Inc()
		errutil.LogError(slog.Default(), "save document failed", oops.With("document_id", r.doc.ID).Wrap(err))
		return
	}
	r.dirty = false
	r.hub.metrics.Saves.WithLabelValues(StatusSuccess).Inc()
	slog.Debug("document saved", "document_id", r.doc.ID, "seq", r.seq)
}

func (r *room) persist(ctx context.Context) error {
	data, err := r.doc.Encode()
	if err != nil {
		return err
	}
	rec := &store.Record{ID: r.doc.ID, Kind: r.doc.Kind.Name, Data: json.RawMessage(data)}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := r.hub.store.Put(ctx, rec); err != nil {
			return retry.RetryableError(err)
		}
		for _, name := range r.doc.BlobNames() {
			b, _ := r.doc.Blob(name)
			if saved, ok := r.savedBlobs[name]; ok && bytes.Equal(saved, b) {
				continue
			}
			if err := r.hub.store.PutBlob(ctx, r.doc.ID, name, b); err != nil {
				return retry.RetryableError(err)
			}
			if r.savedBlobs == nil {
				r.savedBlobs = make(map[string][]byte)
			}
			r.savedBlobs[name] = bytes.Clone(b)
		}
		return nil
	})
}

func cloneBlobs(blobs map[string][]byte) map[string][]byte {
	out := maps.Clone(blobs)
	for k, v := range out {
		out[k] = bytes.Clone(v)
	}
	return out
}
