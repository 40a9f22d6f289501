// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package project

import (
	"sort"
	"sync"
)

// Graph records which documents reference which. It covers the whole
// project, resident or not. Safe for concurrent use.
type Graph struct {
	mu        sync.RWMutex
	deps      map[string]map[string]struct{}
	referrers map[string]map[string]struct{}
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		deps:      make(map[string]map[string]struct{}),
		referrers: make(map[string]map[string]struct{}),
	}
}

// Add records that from references every id in to.
func (g *Graph) Add(from string, to ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range to {
		link(g.deps, from, id)
		link(g.referrers, id, from)
	}
}

// Remove drops the references from from to every id in to.
func (g *Graph) Remove(from string, to ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range to {
		unlink(g.deps, from, id)
		unlink(g.referrers, id, from)
	}
}

// Forget drops a document and its outgoing references. References to it
// from other documents stay, dangling.
func (g *Graph) Forget(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for dep := range g.deps[id] {
		unlink(g.referrers, dep, id)
	}
	delete(g.deps, id)
}

// IsReferenced reports whether another document references id.
func (g *Graph) IsReferenced(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for from := range g.referrers[id] {
		if from != id {
			return true
		}
	}
	return false
}

// Dependencies returns the ids id references, sorted.
func (g *Graph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sorted(g.deps[id])
}

// Referrers returns the ids referencing id, sorted.
func (g *Graph) Referrers(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sorted(g.referrers[id])
}

func link(m map[string]map[string]struct{}, a, b string) {
	set, ok := m[a]
	if !ok {
		set = make(map[string]struct{})
		m[a] = set
	}
	set[b] = struct{}{}
}

func unlink(m map[string]map[string]struct{}, a, b string) {
	set, ok := m[a]
	if !ok {
		return
	}
	delete(set, b)
	if len(set) == 0 {
		delete(m, a)
	}
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
