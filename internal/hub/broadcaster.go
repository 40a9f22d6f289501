// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package hub

import (
	"log/slog"
	"sync"

	"github.com/sceneforge/sceneforge/internal/protocol"
)

type subscriber struct {
	clientID string
	events   chan protocol.Event
}

// broadcaster distributes one document's events to its subscribers.
// A subscriber whose buffer is full is evicted: its channel is closed and
// it must reopen the document. Events are never skipped silently.
type broadcaster struct {
	metrics *Metrics
	buffer  int

	mu   sync.Mutex
	subs []*subscriber
}

func newBroadcaster(metrics *Metrics, buffer int) *broadcaster {
	return &broadcaster{metrics: metrics, buffer: buffer}
}

func (b *broadcaster) subscribe(clientID string) *subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &subscriber{clientID: clientID, events: make(chan protocol.Event, b.buffer)}
	b.subs = append(b.subs, s)
	b.metrics.Subscribers.Inc()
	return s
}

// unsubscribe closes s. It reports false when s was already gone.
func (b *broadcaster) unsubscribe(s *subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remove(s)
}

func (b *broadcaster) remove(s *subscriber) bool {
	for i, sub := range b.subs {
		if sub == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(s.events)
			b.metrics.Subscribers.Dec()
			return true
		}
	}
	return false
}

func (b *broadcaster) broadcast(event protocol.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range append([]*subscriber(nil), b.subs...) {
		select {
		case s.events <- event:
			b.metrics.EventsBroadcast.Inc()
		default:
			slog.Warn("subscriber evicted: buffer full",
				"document_id", event.DocumentID,
				"client_id", s.clientID,
				"seq", event.Seq,
			)
			b.metrics.Evictions.Inc()
			b.remove(s)
		}
	}
}

// evictAll closes every subscriber.
func (b *broadcaster) evictAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.subs) > 0 {
		b.remove(b.subs[0])
	}
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
