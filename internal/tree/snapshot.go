// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package tree

import (
	"encoding/json"

	"github.com/samber/oops"
)

// Entry is the nested, serializable form of a node and its subtree. When
// marshaled, properties are inlined next to id, name and children.
type Entry struct {
	ID       string
	Name     string
	Props    map[string]any
	Children []*Entry
}

// Snapshot returns the forest in nested form with deep-copied properties.
func (s *Store) Snapshot() ([]*Entry, error) {
	entries := make([]*Entry, 0, len(s.roots))
	for _, id := range s.roots {
		e, err := s.snapshot(id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) snapshot(id string) (*Entry, error) {
	n := s.nodes[id]
	props, err := Clone(n.Props)
	if err != nil {
		return nil, err
	}
	e := &Entry{ID: n.ID, Name: n.Name, Props: props, Children: make([]*Entry, 0, len(n.Children))}
	for _, child := range n.Children {
		c, err := s.snapshot(child)
		if err != nil {
			return nil, err
		}
		e.Children = append(e.Children, c)
	}
	return e, nil
}

// Load replaces the store's content with entries, keeping their ids.
// Every node is validated as if added.
func (s *Store) Load(entries []*Entry) error {
	s.nodes = make(map[string]*Node)
	s.parents = make(map[string]string)
	s.roots = nil
	for _, e := range entries {
		if err := s.load(e, ""); err != nil {
			return oops.With("node_id", e.ID).Wrapf(err, "load tree")
		}
	}
	return nil
}

func (s *Store) load(e *Entry, parentID string) error {
	props, err := Clone(e.Props)
	if err != nil {
		return err
	}
	if _, err := s.Add(&Node{ID: e.ID, Name: e.Name, Props: props}, parentID, nil); err != nil {
		return err
	}
	for _, child := range e.Children {
		if err := s.load(child, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON inlines properties next to the structural keys.
func (e *Entry) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Props)+3)
	for k, v := range e.Props {
		m[k] = v
	}
	m["id"] = e.ID
	m["name"] = e.Name
	children := e.Children
	if children == nil {
		children = []*Entry{}
	}
	m["children"] = children
	return json.Marshal(m)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return oops.Wrapf(err, "decode node")
	}
	*e = Entry{Props: make(map[string]any)}
	for k, v := range raw {
		var err error
		switch k {
		case "id":
			err = json.Unmarshal(v, &e.ID)
		case "name":
			err = json.Unmarshal(v, &e.Name)
		case "children":
			err = json.Unmarshal(v, &e.Children)
		default:
			var val any
			err = json.Unmarshal(v, &val)
			e.Props[k] = val
		}
		if err != nil {
			return oops.With("key", k).Wrapf(err, "decode node")
		}
	}
	return nil
}
