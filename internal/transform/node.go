// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package transform

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Node is one actor of a Graph. Its world matrix is recomputed whenever its
// own or an ancestor's local transform changes, so global reads are always
// current.
type Node struct {
	Name string

	graph     *Graph
	id        NodeID
	parent    NodeID
	children  []NodeID
	behaviors []Behavior

	position    mgl64.Vec3
	orientation mgl64.Quat
	scale       mgl64.Vec3
	world       mgl64.Mat4

	visible   bool
	layer     int
	pending   bool
	destroyed bool
	render    Renderable
}

// ID returns the node's key in its graph.
func (n *Node) ID() NodeID { return n.id }

// Parent returns the parent node, or nil for roots.
func (n *Node) Parent() *Node {
	if n.parent == 0 {
		return nil
	}
	return n.graph.nodes[n.parent]
}

// Children returns the children in order.
func (n *Node) Children() []*Node { return n.graph.lookup(n.children) }

// Visible reports the visibility flag.
func (n *Node) Visible() bool { return n.visible }

// SetVisible updates the visibility flag.
func (n *Node) SetVisible(visible bool) {
	n.visible = visible
	if n.render != nil {
		n.render.SetVisible(visible)
	}
}

// Layer returns the node's layer.
func (n *Node) Layer() int { return n.layer }

// SetLayer updates the node's layer.
func (n *Node) SetLayer(layer int) { n.layer = layer }

// PendingDestruction reports whether the node was flagged for destruction.
func (n *Node) PendingDestruction() bool { return n.pending }

// Destroyed reports whether the node reached its terminal state.
func (n *Node) Destroyed() bool { return n.destroyed }

// AddBehavior attaches a behavior.
func (n *Node) AddBehavior(b Behavior) { n.behaviors = append(n.behaviors, b) }

// RemoveBehavior detaches a behavior without destroying it.
func (n *Node) RemoveBehavior(b Behavior) {
	for i, v := range n.behaviors {
		if v == b {
			n.behaviors = append(n.behaviors[:i], n.behaviors[i+1:]...)
			return
		}
	}
}

// Behaviors returns the attached behaviors in order.
func (n *Node) Behaviors() []Behavior { return append([]Behavior(nil), n.behaviors...) }

// Update ticks the node's behaviors unless the node is pending destruction.
func (n *Node) Update() {
	if n.pending {
		return
	}
	for _, b := range append([]Behavior(nil), n.behaviors...) {
		b.Update()
	}
}

// GlobalMatrix returns the cached world matrix.
func (n *Node) GlobalMatrix() mgl64.Mat4 { return n.world }

// GlobalPosition returns the world-space position.
func (n *Node) GlobalPosition() mgl64.Vec3 { return n.world.Col(3).Vec3() }

// GlobalOrientation returns the world-space orientation.
func (n *Node) GlobalOrientation() mgl64.Quat {
	return n.parentGlobalOrientation().Mul(n.orientation).Normalize()
}

// GlobalEulerAngles returns the world-space orientation as Euler angles.
func (n *Node) GlobalEulerAngles() Euler { return EulerFromQuat(n.GlobalOrientation()) }

// LocalPosition returns the position relative to the parent.
func (n *Node) LocalPosition() mgl64.Vec3 { return n.position }

// LocalOrientation returns the orientation relative to the parent.
func (n *Node) LocalOrientation() mgl64.Quat { return n.orientation }

// LocalEulerAngles returns the local orientation as Euler angles.
func (n *Node) LocalEulerAngles() Euler { return EulerFromQuat(n.orientation) }

// LocalScale returns the local scale.
func (n *Node) LocalScale() mgl64.Vec3 { return n.scale }

// SetLocalPosition overwrites the local position.
func (n *Node) SetLocalPosition(p mgl64.Vec3) {
	n.position = p
	n.changed()
}

// SetLocalOrientation overwrites the local orientation.
func (n *Node) SetLocalOrientation(q mgl64.Quat) {
	n.orientation = q.Normalize()
	n.changed()
}

// SetLocalEulerAngles overwrites the local orientation from Euler angles.
func (n *Node) SetLocalEulerAngles(e Euler) {
	n.orientation = e.Quat()
	n.changed()
}

// SetLocalScale overwrites the local scale.
func (n *Node) SetLocalScale(s mgl64.Vec3) {
	n.scale = s
	n.changed()
}

// SetGlobalMatrix sets the local transform so that the world matrix equals m.
func (n *Node) SetGlobalMatrix(m mgl64.Mat4) {
	local := n.parentWorld().Inv().Mul4(m)
	n.position, n.orientation, n.scale = Decompose(local)
	n.changed()
}

// SetGlobalPosition moves the node so that its world position equals p.
func (n *Node) SetGlobalPosition(p mgl64.Vec3) {
	n.position = mgl64.TransformCoordinate(p, n.parentWorld().Inv())
	n.changed()
}

// SetGlobalOrientation rotates the node so that its world orientation equals q.
func (n *Node) SetGlobalOrientation(q mgl64.Quat) {
	n.orientation = n.parentGlobalOrientation().Inverse().Mul(q).Normalize()
	n.changed()
}

// SetGlobalEulerAngles rotates the node so that its world orientation equals e.
func (n *Node) SetGlobalEulerAngles(e Euler) {
	n.SetGlobalOrientation(e.Quat())
}

// LookAt orients the node towards a world-space target.
func (n *Node) LookAt(target, up mgl64.Vec3) {
	n.SetGlobalOrientation(LookRotation(n.GlobalPosition(), target, up))
}

// LookTowards orients the node along a world-space direction.
func (n *Node) LookTowards(direction, up mgl64.Vec3) {
	n.LookAt(n.GlobalPosition().Sub(direction), up)
}

// RotateGlobal applies a world-space rotation.
func (n *Node) RotateGlobal(q mgl64.Quat) {
	n.SetGlobalOrientation(q.Mul(n.GlobalOrientation()))
}

// RotateLocal applies a rotation in the parent's space.
func (n *Node) RotateLocal(q mgl64.Quat) {
	n.orientation = q.Mul(n.orientation).Normalize()
	n.changed()
}

// RotateGlobalEulerAngles applies a world-space rotation given as Euler angles.
func (n *Node) RotateGlobalEulerAngles(e Euler) { n.RotateGlobal(e.Quat()) }

// RotateLocalEulerAngles applies a local rotation given as Euler angles.
func (n *Node) RotateLocalEulerAngles(e Euler) { n.RotateLocal(e.Quat()) }

// MoveGlobal translates the node by a world-space offset.
func (n *Node) MoveGlobal(offset mgl64.Vec3) {
	n.SetGlobalPosition(n.GlobalPosition().Add(offset))
}

// MoveLocal translates the node by an offset in the parent's space.
func (n *Node) MoveLocal(offset mgl64.Vec3) {
	n.position = n.position.Add(offset)
	n.changed()
}

// MoveOriented translates the node along its own axes ("move forward").
func (n *Node) MoveOriented(offset mgl64.Vec3) {
	n.position = n.position.Add(n.orientation.Rotate(offset))
	n.changed()
}

// SetParent moves the node under newParent, or to the root list when nil.
// Unless keepLocal is set the world transform is preserved.
func (n *Node) SetParent(newParent *Node, keepLocal bool) error {
	if n.pending || n.destroyed {
		return ErrDestroyed
	}
	if newParent != nil {
		if newParent.graph != n.graph {
			return ErrForeignNode
		}
		if newParent.pending || newParent.destroyed {
			return ErrDestroyed
		}
		for a := newParent; a != nil; a = a.Parent() {
			if a == n {
				return ErrCyclicParent
			}
		}
	}

	world := n.world

	removeID(n.graph.siblings(n.parent), n.id)
	if newParent != nil {
		n.parent = newParent.id
		newParent.children = append(newParent.children, n.id)
	} else {
		n.parent = 0
		n.graph.roots = append(n.graph.roots, n.id)
	}
	if n.render != nil {
		n.render.SetParent(newParent.renderable())
	}

	if keepLocal {
		n.updateWorld()
		return nil
	}
	n.SetGlobalMatrix(world)
	return nil
}

// MarkDestructionPending flags the node and its whole subtree. Flagged nodes
// stay in the graph until Destroy but are skipped by Update and refuse
// reparenting.
func (n *Node) MarkDestructionPending() {
	n.pending = true
	for _, c := range n.Children() {
		c.MarkDestructionPending()
	}
}

// Destroy destroys the node's behaviors, then its children, then detaches it.
// The node must not be used afterwards.
func (n *Node) Destroy() {
	if n.destroyed {
		return
	}
	n.pending = true
	for len(n.behaviors) > 0 {
		b := n.behaviors[0]
		n.behaviors = n.behaviors[1:]
		b.Destroy()
	}
	for len(n.children) > 0 {
		n.graph.nodes[n.children[0]].Destroy()
	}

	removeID(n.graph.siblings(n.parent), n.id)
	delete(n.graph.nodes, n.id)
	if n.render != nil {
		n.render.Dispose()
		n.render = nil
	}
	n.parent = 0
	n.children = nil
	n.behaviors = nil
	n.destroyed = true
}

func (n *Node) renderable() Renderable {
	if n == nil {
		return nil
	}
	return n.render
}

func (n *Node) parentWorld() mgl64.Mat4 {
	if p := n.Parent(); p != nil {
		return p.world
	}
	return mgl64.Ident4()
}

func (n *Node) parentGlobalOrientation() mgl64.Quat {
	q := mgl64.QuatIdent()
	for a := n.Parent(); a != nil; a = a.Parent() {
		q = a.orientation.Mul(q)
	}
	return q
}

func (n *Node) changed() {
	if n.render != nil {
		n.render.SetTransform(n.position, n.orientation, n.scale)
	}
	n.updateWorld()
}

// updateWorld recomputes the world matrix of n and its descendants in
// pre-order.
func (n *Node) updateWorld() {
	n.world = n.parentWorld().Mul4(Compose(n.position, n.orientation, n.scale))
	for _, id := range n.children {
		n.graph.nodes[id].updateWorld()
	}
}
