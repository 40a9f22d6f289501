// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package transform maintains the runtime actor hierarchy: a forest of nodes
// carrying local transforms and an eagerly maintained world matrix.
//
// Nodes live in a Graph arena and refer to each other by NodeID. A node never
// holds a pointer to its parent; parent and children are lookups into the
// graph. The graph is not safe for concurrent use; a scene graph is owned by
// the goroutine that ticks it.
package transform

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// NodeID identifies a node within its Graph. The zero value means "no node".
type NodeID uint32

var (
	// ErrDestroyed is returned when a node pending destruction is reparented
	// or used as a parent.
	ErrDestroyed = errors.New("node is pending destruction")
	// ErrCyclicParent is returned when a node would become its own ancestor.
	ErrCyclicParent = errors.New("node cannot be parented to itself or a descendant")
	// ErrForeignNode is returned when a node from another graph is passed in.
	ErrForeignNode = errors.New("node belongs to another graph")
)

// Renderable is the rendering back-end object attached to a node. The graph
// pushes local transform changes and reparenting to it; a nil parent means
// the scene root container.
type Renderable interface {
	SetTransform(position mgl64.Vec3, orientation mgl64.Quat, scale mgl64.Vec3)
	SetParent(parent Renderable)
	SetVisible(visible bool)
	Dispose()
}

// Behavior is a runtime unit attached to a node and ticked with it.
type Behavior interface {
	Awake()
	Update()
	Destroy()
	SetLayerActive(active bool)
}

// Graph owns a forest of nodes.
type Graph struct {
	nodes map[NodeID]*Node
	roots []NodeID
	next  NodeID
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// NodeOption configures a node at creation.
type NodeOption func(*Node)

// WithVisible sets the initial visibility.
func WithVisible(visible bool) NodeOption {
	return func(n *Node) { n.visible = visible }
}

// WithLayer sets the initial layer.
func WithLayer(layer int) NodeOption {
	return func(n *Node) { n.layer = layer }
}

// WithRenderable attaches a rendering back-end object.
func WithRenderable(r Renderable) NodeOption {
	return func(n *Node) { n.render = r }
}

// NewNode creates a node under parent, or as a root when parent is nil.
func (g *Graph) NewNode(name string, parent *Node, opts ...NodeOption) (*Node, error) {
	if parent != nil {
		if parent.graph != g {
			return nil, ErrForeignNode
		}
		if parent.pending || parent.destroyed {
			return nil, ErrDestroyed
		}
	}

	g.next++
	n := &Node{
		graph:       g,
		id:          g.next,
		Name:        name,
		orientation: mgl64.QuatIdent(),
		scale:       mgl64.Vec3{1, 1, 1},
		visible:     true,
		world:       mgl64.Ident4(),
	}
	for _, opt := range opts {
		opt(n)
	}
	g.nodes[n.id] = n

	if parent != nil {
		n.parent = parent.id
		parent.children = append(parent.children, n.id)
	} else {
		g.roots = append(g.roots, n.id)
	}

	if n.render != nil {
		n.render.SetParent(parent.renderable())
		n.render.SetVisible(n.visible)
		n.render.SetTransform(n.position, n.orientation, n.scale)
	}
	n.updateWorld()
	return n, nil
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Len returns the number of live or pending nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Roots returns the root nodes in order.
func (g *Graph) Roots() []*Node {
	return g.lookup(g.roots)
}

// Walk visits every node in pre-order. Returning false from fn skips the
// node's subtree.
func (g *Graph) Walk(fn func(n *Node) bool) {
	for _, id := range append([]NodeID(nil), g.roots...) {
		g.walk(g.nodes[id], fn)
	}
}

func (g *Graph) walk(n *Node, fn func(n *Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, id := range append([]NodeID(nil), n.children...) {
		g.walk(g.nodes[id], fn)
	}
}

// Awake awakes every behavior of every node.
func (g *Graph) Awake() {
	g.Walk(func(n *Node) bool {
		for _, b := range append([]Behavior(nil), n.behaviors...) {
			b.Awake()
		}
		return true
	})
}

// Update ticks every behavior of every node not pending destruction.
func (g *Graph) Update() {
	g.Walk(func(n *Node) bool {
		n.Update()
		return !n.pending
	})
}

// SetActiveLayer activates behaviors on nodes in layer and deactivates the
// others. A nil layer activates everything.
func (g *Graph) SetActiveLayer(layer *int) {
	g.Walk(func(n *Node) bool {
		active := layer == nil || n.layer == *layer
		for _, b := range n.behaviors {
			b.SetLayerActive(active)
		}
		return true
	})
}

// Collect destroys every node flagged pending destruction. It is called once
// per tick after Update.
func (g *Graph) Collect() {
	var pending []*Node
	g.Walk(func(n *Node) bool {
		if n.pending {
			pending = append(pending, n)
			return false
		}
		return true
	})
	for _, n := range pending {
		n.Destroy()
	}
}

func (g *Graph) lookup(ids []NodeID) []*Node {
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}

func (g *Graph) siblings(parent NodeID) *[]NodeID {
	if parent == 0 {
		return &g.roots
	}
	return &g.nodes[parent].children
}

func removeID(list *[]NodeID, id NodeID) {
	for i, v := range *list {
		if v == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}
