// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package document

import (
	"encoding/json"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/component"
	"github.com/sceneforge/sceneforge/internal/tree"
)

// NodeData is the wire and storage form of a node with its components and
// descendants. Properties are inlined next to the structural keys.
type NodeData struct {
	ID         string
	Name       string
	Props      map[string]any
	Components []component.Descriptor
	Children   []*NodeData
}

var reservedKeys = map[string]bool{"id": true, "name": true, "children": true, "components": true}

// MarshalJSON implements json.Marshaler.
func (n *NodeData) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(n.Props)+4)
	for k, v := range n.Props {
		m[k] = v
	}
	m["id"] = n.ID
	m["name"] = n.Name
	children := n.Children
	if children == nil {
		children = []*NodeData{}
	}
	m["children"] = children
	if n.Components != nil {
		m["components"] = n.Components
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NodeData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return oops.Wrapf(err, "decode node")
	}
	*n = NodeData{Props: make(map[string]any)}
	for k, v := range raw {
		var err error
		switch k {
		case "id":
			err = json.Unmarshal(v, &n.ID)
		case "name":
			err = json.Unmarshal(v, &n.Name)
		case "children":
			err = json.Unmarshal(v, &n.Children)
		case "components":
			err = json.Unmarshal(v, &n.Components)
		default:
			var val any
			err = json.Unmarshal(v, &val)
			n.Props[k] = val
		}
		if err != nil {
			return oops.With("key", k).Wrapf(err, "decode node")
		}
	}
	return nil
}

// AddNode inserts a new node and creates its component set.
func (d *Document) AddNode(n *tree.Node, parentID string, index *int) (int, error) {
	actual, err := d.Tree.Add(n, parentID, index)
	if err != nil {
		return 0, err
	}
	if d.Kind.Options.Components {
		d.componentSet(n.ID)
	}
	return actual, nil
}

// InsertNode inserts a node and its subtree as encoded by the server,
// keeping every id. Replicas use it to apply addNode and duplicateNode.
func (d *Document) InsertNode(data *NodeData, parentID string, index *int) (int, error) {
	props, err := tree.Clone(data.Props)
	if err != nil {
		return 0, err
	}
	actual, err := d.AddNode(&tree.Node{ID: data.ID, Name: data.Name, Props: props}, parentID, index)
	if err != nil {
		return 0, err
	}
	if err := d.loadComponents(data); err != nil {
		_ = d.Tree.Remove(data.ID)
		return 0, err
	}
	for _, child := range data.Children {
		if _, err := d.InsertNode(child, data.ID, nil); err != nil {
			_ = d.Tree.Remove(data.ID)
			return 0, err
		}
	}
	return actual, nil
}

func (d *Document) loadComponents(data *NodeData) error {
	if len(data.Components) == 0 {
		return nil
	}
	if !d.Kind.Options.Components {
		return oops.Code(component.CodeInvalidComponent).
			With("kind", d.Kind.Name).
			Errorf("%s documents have no components", d.Kind.Name)
	}
	return d.componentSet(data.ID).Load(data.Components)
}

// RemoveNode removes a node and its subtree with their components.
func (d *Document) RemoveNode(id string) error {
	return d.Tree.Remove(id)
}

// MoveNode reparents a node. See tree.Store.Move.
func (d *Document) MoveNode(id, parentID string, index *int) (int, error) {
	return d.Tree.Move(id, parentID, index)
}

// DuplicateNode clones a subtree with its components. It returns the
// encoded clone root, its parent and index.
func (d *Document) DuplicateNode(id, newName string, index *int) (*NodeData, string, int, error) {
	dup, err := d.Tree.Duplicate(id, newName, index)
	if err != nil {
		return nil, "", 0, err
	}
	root := dup.Nodes[0]
	if d.Kind.Options.Components {
		for _, created := range dup.Nodes {
			src, ok := d.components[created.SourceID]
			if !ok {
				continue
			}
			if err := d.componentSet(created.Node.ID).CloneFrom(src); err != nil {
				_ = d.Tree.Remove(root.Node.ID)
				return nil, "", 0, err
			}
		}
	}
	data, err := d.EncodeNode(root.Node.ID)
	if err != nil {
		_ = d.Tree.Remove(root.Node.ID)
		return nil, "", 0, err
	}
	return data, root.ParentID, root.Index, nil
}

// EncodeNode returns the node with its components and descendants.
func (d *Document) EncodeNode(id string) (*NodeData, error) {
	n, ok := d.Tree.Get(id)
	if !ok {
		return nil, tree.InvalidNodeError(id)
	}
	props, err := tree.Clone(n.Props)
	if err != nil {
		return nil, err
	}
	data := &NodeData{ID: n.ID, Name: n.Name, Props: props, Children: make([]*NodeData, 0, len(n.Children))}
	if d.Kind.Options.Components {
		data.Components = []component.Descriptor{}
		if set, ok := d.components[id]; ok {
			if data.Components, err = set.Encode(); err != nil {
				return nil, err
			}
		}
	}
	for _, child := range n.Children {
		c, err := d.EncodeNode(child)
		if err != nil {
			return nil, err
		}
		data.Children = append(data.Children, c)
	}
	return data, nil
}
