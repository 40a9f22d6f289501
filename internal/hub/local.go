// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package hub

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/ids"
	"github.com/sceneforge/sceneforge/internal/protocol"
)

// LocalConn is an in-process client connection. It keeps one subscription
// per open document.
type LocalConn struct {
	hub    *Hub
	origin document.Origin

	mu   sync.Mutex
	subs map[string]*Subscription
}

// Connect opens an in-process connection for subject.
func (h *Hub) Connect(subject string) *LocalConn {
	return &LocalConn{
		hub:    h,
		origin: document.Origin{ClientID: ids.New(), Subject: subject},
		subs:   make(map[string]*Subscription),
	}
}

// ClientID returns the id stamped on events this connection causes.
func (c *LocalConn) ClientID() string { return c.origin.ClientID }

// Open subscribes to a document.
func (c *LocalConn) Open(ctx context.Context, documentID string) (*protocol.Snapshot, <-chan protocol.Event, error) {
	c.mu.Lock()
	_, open := c.subs[documentID]
	c.mu.Unlock()
	if open {
		return nil, nil, oops.With("document_id", documentID).Errorf("document already open")
	}

	sub, err := c.hub.Open(ctx, c.origin, documentID)
	if err != nil {
		return nil, nil, err
	}
	c.mu.Lock()
	c.subs[documentID] = sub
	c.mu.Unlock()
	snap := sub.Snapshot
	return &snap, sub.Events(), nil
}

// CloseDocument ends the subscription to a document.
func (c *LocalConn) CloseDocument(_ context.Context, documentID string) error {
	c.mu.Lock()
	sub, ok := c.subs[documentID]
	delete(c.subs, documentID)
	c.mu.Unlock()
	if ok {
		sub.Close()
	}
	return nil
}

// Submit runs a command on an open or closed document.
func (c *LocalConn) Submit(ctx context.Context, documentID string, cmd protocol.Command) (protocol.Ack, error) {
	return c.hub.Submit(ctx, c.origin, documentID, cmd)
}

// Close ends every subscription.
func (c *LocalConn) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]*Subscription)
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
	return nil
}
