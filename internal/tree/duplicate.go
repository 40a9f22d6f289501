// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package tree

import "github.com/samber/oops"

// Duplicated records one node created by Duplicate.
type Duplicated struct {
	Node     *Node
	SourceID string
	ParentID string
	Index    int
}

// Duplication is the result of duplicating a subtree. Nodes are listed in
// creation order; Nodes[0] is the new subtree root.
type Duplication struct {
	Nodes []Duplicated
}

// Root returns the new subtree root.
func (d *Duplication) Root() *Node { return d.Nodes[0].Node }

// Duplicate deep-clones the subtree rooted at id. The clone root is named
// newName and inserted next to the source's siblings at index; every clone
// gets a fresh id. The result is only returned once every source node has
// a counterpart.
func (s *Store) Duplicate(id, newName string, index *int) (*Duplication, error) {
	src, ok := s.nodes[id]
	if !ok {
		return nil, InvalidNodeError(id)
	}

	expected := 0
	s.WalkNode(id, func(*Node, string) bool {
		expected++
		return true
	})

	dup := &Duplication{}
	if err := s.duplicate(src, newName, s.parents[id], index, dup); err != nil {
		if len(dup.Nodes) > 0 {
			_ = s.Remove(dup.Root().ID)
		}
		return nil, err
	}
	if len(dup.Nodes) != expected {
		_ = s.Remove(dup.Root().ID)
		return nil, oops.Code(CodeInvalidNode).
			With("node_id", id).
			Errorf("duplicated %d of %d nodes", len(dup.Nodes), expected)
	}
	return dup, nil
}

func (s *Store) duplicate(src *Node, name, parentID string, index *int, dup *Duplication) error {
	props, err := Clone(src.Props)
	if err != nil {
		return err
	}
	clone := &Node{Name: name, Props: props}
	actual, err := s.Add(clone, parentID, index)
	if err != nil {
		return err
	}
	dup.Nodes = append(dup.Nodes, Duplicated{Node: clone, SourceID: src.ID, ParentID: parentID, Index: actual})

	for _, childID := range append([]string(nil), src.Children...) {
		child := s.nodes[childID]
		if err := s.duplicate(child, child.Name, clone.ID, nil, dup); err != nil {
			return err
		}
	}
	return nil
}
