// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package document

import (
	"encoding/json"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/component"
	"github.com/sceneforge/sceneforge/internal/tree"
)

// Encode serializes the document in its nested storage form.
func (d *Document) Encode() ([]byte, error) {
	out := make(map[string]any, len(d.Meta)+2)
	for k, v := range d.Meta {
		out[k] = v
	}
	out[FormatVersionKey] = d.Kind.FormatVersion

	entries, err := d.Tree.Snapshot()
	if err != nil {
		return nil, err
	}
	nodes := make([]*NodeData, 0, len(entries))
	for _, e := range entries {
		n, err := d.withComponents(e)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	out[NodesKey] = nodes

	data, err := json.Marshal(out)
	if err != nil {
		return nil, oops.With("document_id", d.ID).Wrapf(err, "encode document")
	}
	return data, nil
}

func (d *Document) withComponents(e *tree.Entry) (*NodeData, error) {
	n := &NodeData{ID: e.ID, Name: e.Name, Props: e.Props, Children: make([]*NodeData, 0, len(e.Children))}
	if d.Kind.Options.Components {
		n.Components = []component.Descriptor{}
		if set, ok := d.components[e.ID]; ok {
			descriptors, err := set.Encode()
			if err != nil {
				return nil, err
			}
			n.Components = descriptors
		}
	}
	for _, child := range e.Children {
		c, err := d.withComponents(child)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	return n, nil
}

// Decode builds a document from its storage form, migrating it first.
// Dependencies are rebuilt from every component and prefab reference; the
// caller reports Dependencies().IDs() upstream once.
func Decode(kind *Kind, id string, data []byte, opts ...Option) (*Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, oops.With("document_id", id).Wrapf(err, "decode document")
	}
	d := New(kind, id, opts...)
	if _, err := Migrate(kind, d.registry, raw); err != nil {
		return nil, oops.With("document_id", id).Wrap(err)
	}

	nodesJSON, err := json.Marshal(raw[NodesKey])
	if err != nil {
		return nil, oops.With("document_id", id).Wrapf(err, "decode nodes")
	}
	var nodes []*NodeData
	if err := json.Unmarshal(nodesJSON, &nodes); err != nil {
		return nil, oops.With("document_id", id).Wrapf(err, "decode nodes")
	}

	entries := make([]*tree.Entry, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, toEntry(n))
	}
	if err := d.Tree.Load(entries); err != nil {
		return nil, oops.With("document_id", id).Wrap(err)
	}
	for _, n := range nodes {
		if err := d.loadSubtreeComponents(n); err != nil {
			return nil, oops.With("document_id", id).Wrap(err)
		}
	}

	for k := range kind.meta {
		if v, ok := raw[k]; ok {
			d.Meta[k] = v
		}
	}
	for _, fn := range kind.loaded {
		fn(d)
	}
	d.publish()
	return d, nil
}

func toEntry(n *NodeData) *tree.Entry {
	e := &tree.Entry{ID: n.ID, Name: n.Name, Props: n.Props, Children: make([]*tree.Entry, 0, len(n.Children))}
	for _, c := range n.Children {
		e.Children = append(e.Children, toEntry(c))
	}
	return e
}

func (d *Document) loadSubtreeComponents(n *NodeData) error {
	if d.Kind.Options.Components {
		d.componentSet(n.ID)
	}
	if err := d.loadComponents(n); err != nil {
		return oops.With("node_id", n.ID).Wrap(err)
	}
	for _, c := range n.Children {
		if err := d.loadSubtreeComponents(c); err != nil {
			return err
		}
	}
	return nil
}
