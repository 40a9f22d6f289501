// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package project tracks which assets of a project are resident in memory
// and how they reference each other.
package project

import (
	"context"
	"sync"
)

// Loader makes an asset resident.
type Loader[T any] func(ctx context.Context, id string) (T, error)

// Unloader releases a resident asset once its last reference is dropped.
type Unloader[T any] func(id string, value T)

// Residency keeps assets loaded while at least one holder references them.
// Concurrent acquisitions of the same id share a single load. An asset
// whose unload is in progress is reloaded only after the unload returns.
type Residency[T any] struct {
	load   Loader[T]
	unload Unloader[T]

	mu      sync.Mutex
	entries map[string]*entry[T]
}

type entry[T any] struct {
	ready   chan struct{}
	value   T
	err     error
	refs    int
	closing chan struct{}
}

// NewResidency creates a Residency. unload may be nil.
func NewResidency[T any](load Loader[T], unload Unloader[T]) *Residency[T] {
	return &Residency[T]{load: load, unload: unload, entries: make(map[string]*entry[T])}
}

// Acquire returns the asset id, loading it if needed. The caller must call
// release exactly once; extra calls are ignored.
func (r *Residency[T]) Acquire(ctx context.Context, id string) (value T, release func(), err error) {
	for {
		r.mu.Lock()
		e, ok := r.entries[id]
		if ok && e.closing != nil {
			closing := e.closing
			r.mu.Unlock()
			select {
			case <-closing:
				continue
			case <-ctx.Done():
				return value, nil, ctx.Err()
			}
		}

		if !ok {
			e = &entry[T]{ready: make(chan struct{}), refs: 1}
			r.entries[id] = e
			r.mu.Unlock()

			v, err := r.load(ctx, id)
			r.mu.Lock()
			e.value, e.err = v, err
			if err != nil {
				delete(r.entries, id)
			}
			close(e.ready)
			r.mu.Unlock()
			if err != nil {
				return value, nil, err
			}
			return v, r.releaser(id, e), nil
		}

		e.refs++
		r.mu.Unlock()
		select {
		case <-e.ready:
		case <-ctx.Done():
			go func() {
				<-e.ready
				if e.err == nil {
					r.release(id, e)
				}
			}()
			return value, nil, ctx.Err()
		}
		if e.err != nil {
			return value, nil, e.err
		}
		return e.value, r.releaser(id, e), nil
	}
}

func (r *Residency[T]) releaser(id string, e *entry[T]) func() {
	var once sync.Once
	return func() { once.Do(func() { r.release(id, e) }) }
}

func (r *Residency[T]) release(id string, e *entry[T]) {
	r.mu.Lock()
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	e.closing = make(chan struct{})
	r.mu.Unlock()

	if r.unload != nil {
		r.unload(id, e.value)
	}

	r.mu.Lock()
	delete(r.entries, id)
	close(e.closing)
	r.mu.Unlock()
}

// Resident reports whether id is loaded and not being unloaded.
func (r *Residency[T]) Resident(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.closing != nil {
		return false
	}
	select {
	case <-e.ready:
		return e.err == nil
	default:
		return false
	}
}

// Len returns the number of loaded or loading assets.
func (r *Residency[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
