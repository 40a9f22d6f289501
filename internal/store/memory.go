// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package store

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"
)

// Memory keeps documents in process. It backs tests and `serve` without a
// database.
type Memory struct {
	mu    sync.RWMutex
	now   func() time.Time
	docs  map[string]Record
	blobs map[string]map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:   time.Now,
		docs:  make(map[string]Record),
		blobs: make(map[string]map[string][]byte),
	}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.docs[id]
	if !ok {
		return nil, NotFoundError(id)
	}
	rec.Data = bytes.Clone(rec.Data)
	return &rec, nil
}

// Create implements Store.
func (m *Memory) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[rec.ID]; ok {
		return ExistsError(rec.ID)
	}
	m.put(rec)
	return nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(rec)
	return nil
}

func (m *Memory) put(rec *Record) {
	stored := *rec
	stored.Data = bytes.Clone(rec.Data)
	stored.UpdatedAt = m.now()
	m.docs[rec.ID] = stored
	rec.UpdatedAt = stored.UpdatedAt
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return NotFoundError(id)
	}
	delete(m.docs, id)
	delete(m.blobs, id)
	return nil
}

// List implements Store.
func (m *Memory) List(_ context.Context) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.docs))
	for _, rec := range m.docs {
		out = append(out, Info{ID: rec.ID, Kind: rec.Kind, UpdatedAt: rec.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Blobs implements Store.
func (m *Memory) Blobs(_ context.Context, id string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.docs[id]; !ok {
		return nil, NotFoundError(id)
	}
	out := make(map[string][]byte, len(m.blobs[id]))
	for name, data := range m.blobs[id] {
		out[name] = bytes.Clone(data)
	}
	return out, nil
}

// PutBlob implements Store.
func (m *Memory) PutBlob(_ context.Context, id, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return NotFoundError(id)
	}
	if m.blobs[id] == nil {
		m.blobs[id] = make(map[string][]byte)
	}
	m.blobs[id][name] = bytes.Clone(data)
	return nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
