// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package tree implements the ordered tree store backing every document:
// a forest of uniquely identified nodes with ordered children, schema
// validated properties and id stable move and duplicate operations.
//
// Nodes live in an arena keyed by id. Parent and children links are id
// lookups, never pointers.
package tree

import (
	"context"
	"strings"

	"github.com/mitchellh/copystructure"
	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/ids"
	"github.com/sceneforge/sceneforge/internal/schema"
)

// NameKey is the property path that addresses a node's name.
const NameKey = "name"

// Node is one element of a document tree.
type Node struct {
	ID       string
	Name     string
	Children []string
	Props    map[string]any
}

// PropertyHook runs before a property write on the path it was registered
// for (or any path below it). A non-nil commit runs immediately after the
// write, with no other mutation in between.
type PropertyHook func(ctx context.Context, node *Node, path string, value any) (commit func(), err error)

type pathHook struct {
	path string
	hook PropertyHook
}

// Store is an ordered forest of nodes.
type Store struct {
	schema schema.Schema
	newID  ids.Generator

	nodes   map[string]*Node
	parents map[string]string
	roots   []string

	hooks    []pathHook
	onRemove []func(*Node)
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the id source used by Add.
func WithIDGenerator(g ids.Generator) Option {
	return func(s *Store) { s.newID = g }
}

// New creates an empty store validating properties against sch.
func New(sch schema.Schema, opts ...Option) *Store {
	s := &Store{
		schema:  sch,
		newID:   ids.New,
		nodes:   make(map[string]*Node),
		parents: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the rule set the store validates against.
func (s *Store) Schema() schema.Schema { return s.schema }

// Hook registers h for writes to path and every path nested below it.
func (s *Store) Hook(path string, h PropertyHook) {
	s.hooks = append(s.hooks, pathHook{path: path, hook: h})
}

// OnRemove registers fn to be called, in pre-order, for every node of a
// removed subtree before it is detached.
func (s *Store) OnRemove(fn func(*Node)) {
	s.onRemove = append(s.onRemove, fn)
}

// Len returns the number of nodes in the store.
func (s *Store) Len() int { return len(s.nodes) }

// Get returns the node with id. The returned node is owned by the store.
func (s *Store) Get(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Parent returns the parent id of a node; "" for roots.
func (s *Store) Parent(id string) (string, bool) {
	p, ok := s.parents[id]
	return p, ok
}

// Roots returns a copy of the root id list.
func (s *Store) Roots() []string {
	return append([]string(nil), s.roots...)
}

// Siblings returns a copy of the ordered child list of parentID, or the
// root list when parentID is "".
func (s *Store) Siblings(parentID string) []string {
	if parentID == "" {
		return s.Roots()
	}
	if p, ok := s.nodes[parentID]; ok {
		return append([]string(nil), p.Children...)
	}
	return nil
}

// IndexOf returns the parent id and the position of id among its siblings.
func (s *Store) IndexOf(id string) (string, int, error) {
	parentID, ok := s.parents[id]
	if !ok {
		return "", 0, InvalidNodeError(id)
	}
	return parentID, indexOf(*s.list(parentID), id), nil
}

// IsAncestor reports whether ancestorID is id or one of its ancestors.
func (s *Store) IsAncestor(ancestorID, id string) bool {
	for cur := id; cur != ""; cur = s.parents[cur] {
		if cur == ancestorID {
			return true
		}
	}
	return false
}

// Add inserts node under parentID ("" for the root list) at index, clamped
// to the sibling count; a nil index appends. An empty node id is assigned
// from the store's generator. Returns the actual insertion index.
func (s *Store) Add(node *Node, parentID string, index *int) (int, error) {
	if parentID != "" {
		if _, ok := s.nodes[parentID]; !ok {
			return 0, InvalidParentError(parentID, "parent does not exist")
		}
	}
	if node.ID == "" {
		node.ID = s.newID()
	}
	if _, exists := s.nodes[node.ID]; exists {
		return 0, oops.Code(CodeInvalidNode).
			With("node_id", node.ID).
			Errorf("node id already in use: %s", node.ID)
	}

	if err := s.validate(node); err != nil {
		return 0, err
	}
	node.Children = nil

	list := s.list(parentID)
	actual := clamp(index, len(*list))
	*list = insertAt(*list, actual, node.ID)
	s.nodes[node.ID] = node
	s.parents[node.ID] = parentID
	return actual, nil
}

// Move reparents id under parentID at index. The index is the final
// position among the new siblings, clamped. Moving a node into its own
// subtree fails with INVALID_PARENT.
func (s *Store) Move(id, parentID string, index *int) (int, error) {
	if _, ok := s.nodes[id]; !ok {
		return 0, InvalidNodeError(id)
	}
	if parentID != "" {
		if _, ok := s.nodes[parentID]; !ok {
			return 0, InvalidParentError(parentID, "parent does not exist")
		}
		if s.IsAncestor(id, parentID) {
			return 0, InvalidParentError(parentID, "cannot move a node into its own subtree")
		}
	}

	old := s.list(s.parents[id])
	*old = removeID(*old, id)

	list := s.list(parentID)
	actual := clamp(index, len(*list))
	*list = insertAt(*list, actual, id)
	s.parents[id] = parentID
	return actual, nil
}

// Remove deletes id and its whole subtree.
func (s *Store) Remove(id string) error {
	if _, ok := s.nodes[id]; !ok {
		return InvalidNodeError(id)
	}

	var doomed []*Node
	s.WalkNode(id, func(n *Node, _ string) bool {
		doomed = append(doomed, n)
		return true
	})
	for _, n := range doomed {
		for _, fn := range s.onRemove {
			fn(n)
		}
	}

	list := s.list(s.parents[id])
	*list = removeID(*list, id)
	for _, n := range doomed {
		delete(s.nodes, n.ID)
		delete(s.parents, n.ID)
	}
	return nil
}

// Walk visits every node in pre-order, roots first in order. Returning
// false from fn skips the node's descendants.
func (s *Store) Walk(fn func(n *Node, parentID string) bool) {
	for _, id := range s.Roots() {
		s.WalkNode(id, fn)
	}
}

// WalkNode visits the subtree rooted at id in pre-order.
func (s *Store) WalkNode(id string, fn func(n *Node, parentID string) bool) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	if !fn(n, s.parents[id]) {
		return
	}
	for _, child := range append([]string(nil), n.Children...) {
		s.WalkNode(child, fn)
	}
}

// Property reads the value at a dotted path of a node.
func (s *Store) Property(id, path string) (any, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	if path == NameKey {
		return n.Name, true
	}
	return lookup(n.Props, path)
}

// SetProperty validates value for the dotted path, runs the hooks
// registered for it and writes it. Returns the normalized value.
func (s *Store) SetProperty(ctx context.Context, id, path string, value any) (any, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, InvalidNodeError(id)
	}

	normalized, err := s.schema.Check(path, value)
	if err != nil {
		return nil, err
	}

	var commits []func()
	for _, h := range s.hooksFor(path) {
		commit, err := h(ctx, n, path, normalized)
		if err != nil {
			return nil, err
		}
		if commit != nil {
			commits = append(commits, commit)
		}
	}

	if path == NameKey {
		n.Name, _ = normalized.(string)
	} else {
		if n.Props == nil {
			n.Props = make(map[string]any)
		}
		assign(n.Props, path, normalized)
	}
	for _, commit := range commits {
		commit()
	}
	return normalized, nil
}

// Clone deep-copies a property map.
func Clone(props map[string]any) (map[string]any, error) {
	if props == nil {
		return nil, nil
	}
	c, err := copystructure.Copy(props)
	if err != nil {
		return nil, oops.Wrapf(err, "clone properties")
	}
	return c.(map[string]any), nil
}

func (s *Store) validate(node *Node) error {
	candidate := make(map[string]any, len(node.Props)+1)
	for k, v := range node.Props {
		candidate[k] = v
	}
	_, hasNameRule := s.schema[NameKey]
	if hasNameRule {
		candidate[NameKey] = node.Name
	} else if node.Name == "" {
		return oops.Code(schema.CodeSchemaViolation).
			With("path", NameKey).
			Errorf("node name must not be empty")
	}

	out, err := s.schema.Validate(candidate)
	if err != nil {
		return err
	}
	if hasNameRule {
		node.Name, _ = out[NameKey].(string)
		delete(out, NameKey)
	}
	node.Props = out
	return nil
}

func (s *Store) hooksFor(path string) []PropertyHook {
	var hs []PropertyHook
	for _, h := range s.hooks {
		if path == h.path || strings.HasPrefix(path, h.path+".") {
			hs = append(hs, h.hook)
		}
	}
	return hs
}

func (s *Store) list(parentID string) *[]string {
	if parentID == "" {
		return &s.roots
	}
	return &s.nodes[parentID].Children
}

func clamp(index *int, n int) int {
	if index == nil || *index > n {
		return n
	}
	if *index < 0 {
		return 0
	}
	return *index
}

func insertAt(list []string, i int, id string) []string {
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = id
	return list
}

func removeID(list []string, id string) []string {
	if i := indexOf(list, id); i >= 0 {
		return append(list[:i], list[i+1:]...)
	}
	return list
}

func indexOf(list []string, id string) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

func lookup(props map[string]any, path string) (any, bool) {
	var cur any = props
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func assign(props map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	m := props
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}
