// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package document

// Observer receives document notifications. Any field may be nil.
type Observer struct {
	// OnChange fires once after every committed command.
	OnChange func(d *Document)
	// OnAddDependencies fires when ids gain their first reference.
	OnAddDependencies func(d *Document, ids []string)
	// OnRemoveDependencies fires when ids lose their last reference.
	OnRemoveDependencies func(d *Document, ids []string)
}

type observerEntry struct {
	Observer
}

// Observe registers o and returns a function that unregisters it.
func (d *Document) Observe(o Observer) (cancel func()) {
	e := &observerEntry{Observer: o}
	d.observers = append(d.observers, e)
	return func() {
		for i, cur := range d.observers {
			if cur == e {
				d.observers = append(d.observers[:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

func (d *Document) notifyChange() {
	for _, o := range append([]*observerEntry(nil), d.observers...) {
		if o.OnChange != nil {
			o.OnChange(d)
		}
	}
}

func (d *Document) notifyAddDependencies(ids []string) {
	for _, o := range append([]*observerEntry(nil), d.observers...) {
		if o.OnAddDependencies != nil {
			o.OnAddDependencies(d, ids)
		}
	}
}

func (d *Document) notifyRemoveDependencies(ids []string) {
	for _, o := range append([]*observerEntry(nil), d.observers...) {
		if o.OnRemoveDependencies != nil {
			o.OnRemoveDependencies(d, ids)
		}
	}
}
