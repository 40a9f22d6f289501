// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package component

import "sort"

// Path identifies a referencing component within a document.
func Path(nodeID, componentID string) string {
	return nodeID + "_" + componentID
}

// DependencyTracker counts, per referenced document id, the paths that
// reference it. Listeners hear only about ids whose count crosses zero.
type DependencyTracker struct {
	refs     map[string]map[string]struct{}
	onAdd    func(ids []string)
	onRemove func(ids []string)
}

// NewDependencyTracker creates a tracker reporting 0→1 transitions to
// onAdd and 1→0 transitions to onRemove. Either may be nil.
func NewDependencyTracker(onAdd, onRemove func(ids []string)) *DependencyTracker {
	return &DependencyTracker{
		refs:     make(map[string]map[string]struct{}),
		onAdd:    onAdd,
		onRemove: onRemove,
	}
}

// Add records that path references ids.
func (d *DependencyTracker) Add(path string, ids []string) {
	var fresh []string
	for _, id := range ids {
		paths, ok := d.refs[id]
		if !ok {
			paths = make(map[string]struct{})
			d.refs[id] = paths
		}
		if _, dup := paths[path]; dup {
			continue
		}
		paths[path] = struct{}{}
		if len(paths) == 1 {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) > 0 && d.onAdd != nil {
		d.onAdd(fresh)
	}
}

// Remove records that path no longer references ids.
func (d *DependencyTracker) Remove(path string, ids []string) {
	var gone []string
	for _, id := range ids {
		paths, ok := d.refs[id]
		if !ok {
			continue
		}
		if _, ok := paths[path]; !ok {
			continue
		}
		delete(paths, path)
		if len(paths) == 0 {
			delete(d.refs, id)
			gone = append(gone, id)
		}
	}
	if len(gone) > 0 && d.onRemove != nil {
		d.onRemove(gone)
	}
}

// Count returns how many paths reference id.
func (d *DependencyTracker) Count(id string) int {
	return len(d.refs[id])
}

// IDs returns every referenced id, sorted.
func (d *DependencyTracker) IDs() []string {
	out := make([]string, 0, len(d.refs))
	for id := range d.refs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Referrers returns the paths referencing id, sorted.
func (d *DependencyTracker) Referrers(id string) []string {
	out := make([]string, 0, len(d.refs[id]))
	for p := range d.refs[id] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
