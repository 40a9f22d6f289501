// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/transform"
	"github.com/sceneforge/sceneforge/internal/tree"
)

// Vec3 is the JSON form of a vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat is the JSON form of a quaternion.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Transform is an optional initial placement for addNode.
type Transform struct {
	Position    *Vec3 `json:"position,omitempty"`
	Orientation *Quat `json:"orientation,omitempty"`
	Scale       *Vec3 `json:"scale,omitempty"`
}

func vecProp(v mgl64.Vec3) map[string]any {
	return map[string]any{"x": v[0], "y": v[1], "z": v[2]}
}

func quatProp(q mgl64.Quat) map[string]any {
	return map[string]any{"x": q.V[0], "y": q.V[1], "z": q.V[2], "w": q.W}
}

func readVec(props map[string]any, key string, def mgl64.Vec3) mgl64.Vec3 {
	m, ok := props[key].(map[string]any)
	if !ok {
		return def
	}
	return mgl64.Vec3{num(m["x"]), num(m["y"]), num(m["z"])}
}

func readQuat(props map[string]any, key string) mgl64.Quat {
	m, ok := props[key].(map[string]any)
	if !ok {
		return mgl64.QuatIdent()
	}
	return mgl64.Quat{W: num(m["w"]), V: mgl64.Vec3{num(m["x"]), num(m["y"]), num(m["z"])}}
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

// LocalMatrix composes a node's local transform.
func LocalMatrix(n *tree.Node) mgl64.Mat4 {
	return transform.Compose(
		readVec(n.Props, "position", mgl64.Vec3{}),
		readQuat(n.Props, "orientation"),
		readVec(n.Props, "scale", mgl64.Vec3{1, 1, 1}),
	)
}

// GlobalMatrix composes the transforms from the root down to id.
func GlobalMatrix(d *document.Document, id string) mgl64.Mat4 {
	n, ok := d.Tree.Get(id)
	if !ok {
		return mgl64.Ident4()
	}
	m := LocalMatrix(n)
	if parentID, _ := d.Tree.Parent(id); parentID != "" {
		m = GlobalMatrix(d, parentID).Mul4(m)
	}
	return m
}

// applyGlobalMatrix rewrites id's local transform so that its world
// transform equals m under its current parent.
func applyGlobalMatrix(d *document.Document, id string, m mgl64.Mat4) {
	n, ok := d.Tree.Get(id)
	if !ok {
		return
	}
	if parentID, _ := d.Tree.Parent(id); parentID != "" {
		m = GlobalMatrix(d, parentID).Inv().Mul4(m)
	}
	pos, rot, scale := transform.Decompose(m)
	n.Props["position"] = vecProp(pos)
	n.Props["orientation"] = quatProp(rot)
	n.Props["scale"] = vecProp(scale)
}

func transformProps(t *Transform) map[string]any {
	pos, rot, scale := mgl64.Vec3{}, mgl64.QuatIdent(), mgl64.Vec3{1, 1, 1}
	if t != nil {
		if t.Position != nil {
			pos = mgl64.Vec3{t.Position.X, t.Position.Y, t.Position.Z}
		}
		if t.Orientation != nil {
			rot = mgl64.Quat{W: t.Orientation.W, V: mgl64.Vec3{t.Orientation.X, t.Orientation.Y, t.Orientation.Z}}
		}
		if t.Scale != nil {
			scale = mgl64.Vec3{t.Scale.X, t.Scale.Y, t.Scale.Z}
		}
	}
	return map[string]any{
		"position":    vecProp(pos),
		"orientation": quatProp(rot),
		"scale":       vecProp(scale),
	}
}
