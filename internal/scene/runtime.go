// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package scene

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/transform"
	"github.com/sceneforge/sceneforge/internal/tree"
)

// Resolver gives access to scenes referenced by prefab nodes.
type Resolver func(ctx context.Context, id string) (doc *document.Document, release func(), err error)

// Instantiate builds runtime transform nodes for every node of d beneath
// parent (nil for graph roots). The nodes of a scene instantiated by a
// prefab become children of the prefab node. d and the scenes it reaches
// must not be mutated concurrently. The returned map covers d's own nodes.
func Instantiate(ctx context.Context, d *document.Document, g *transform.Graph, parent *transform.Node, resolve Resolver) (map[string]*transform.Node, error) {
	inst := &instantiator{graph: g, resolve: resolve, stack: map[string]bool{d.ID: true}}
	nodes := make(map[string]*transform.Node, d.Tree.Len())
	for _, id := range d.Tree.Roots() {
		if err := inst.node(ctx, d, id, parent, nodes); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

type instantiator struct {
	graph   *transform.Graph
	resolve Resolver
	stack   map[string]bool
}

func (inst *instantiator) node(ctx context.Context, d *document.Document, id string, parent *transform.Node, out map[string]*transform.Node) error {
	n, _ := d.Tree.Get(id)
	visible, _ := n.Props["visible"].(bool)
	layer, _ := n.Props["layer"].(float64)

	rt, err := inst.graph.NewNode(n.Name, parent, transform.WithVisible(visible), transform.WithLayer(int(layer)))
	if err != nil {
		return err
	}
	rt.SetLocalScale(readVec(n.Props, "scale", mgl64.Vec3{1, 1, 1}))
	rt.SetLocalOrientation(readQuat(n.Props, "orientation"))
	rt.SetLocalPosition(readVec(n.Props, "position", mgl64.Vec3{}))
	if out != nil {
		out[n.ID] = rt
	}

	if ref := PrefabRef(n); ref != "" && inst.resolve != nil {
		if err := inst.prefab(ctx, d.ID, ref, rt); err != nil {
			return err
		}
	}

	for _, child := range n.Children {
		if err := inst.node(ctx, d, child, rt, out); err != nil {
			return err
		}
	}
	return nil
}

func (inst *instantiator) prefab(ctx context.Context, sceneID, ref string, parent *transform.Node) error {
	if inst.stack[ref] {
		return CyclicReferenceError(sceneID, ref)
	}
	doc, release, err := inst.resolve(ctx, ref)
	if err != nil {
		return err
	}
	defer release()

	inst.stack[ref] = true
	defer delete(inst.stack, ref)

	var walkErr error
	for _, id := range doc.Tree.Roots() {
		if walkErr = inst.node(ctx, doc, id, parent, nil); walkErr != nil {
			break
		}
	}
	return walkErr
}

// WorldPositions reports the world position of every node of d, keyed by
// node id, by instantiating it into a fresh graph.
func WorldPositions(ctx context.Context, d *document.Document, resolve Resolver) (map[string]mgl64.Vec3, error) {
	g := transform.NewGraph()
	nodes, err := Instantiate(ctx, d, g, nil, resolve)
	if err != nil {
		return nil, err
	}
	out := make(map[string]mgl64.Vec3, len(nodes))
	d.Tree.Walk(func(n *tree.Node, _ string) bool {
		out[n.ID] = nodes[n.ID].GlobalPosition()
		return true
	})
	return out, nil
}
