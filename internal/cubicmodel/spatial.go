// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package cubicmodel

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

func (v Vec3) mgl() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

// Quat is the JSON form of a quaternion.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Shape describes the box drawn for a part. Offset is expressed in the
// part's frame; children are placed relative to position plus offset.
type Shape struct {
	Type   string `json:"type"`
	Offset Vec3   `json:"offset"`
	Size   Vec3   `json:"size"`
}

func vecProp(x, y, z float64) map[string]any {
	return map[string]any{"x": x, "y": y, "z": z}
}

func readVec(m map[string]any, key string) mgl64.Vec3 {
	v, _ := m[key].(map[string]any)
	x, _ := v["x"].(float64)
	y, _ := v["y"].(float64)
	z, _ := v["z"].(float64)
	return mgl64.Vec3{x, y, z}
}

func readQuat(m map[string]any, key string) mgl64.Quat {
	v, ok := m[key].(map[string]any)
	if !ok {
		return mgl64.QuatIdent()
	}
	x, _ := v["x"].(float64)
	y, _ := v["y"].(float64)
	z, _ := v["z"].(float64)
	w, _ := v["w"].(float64)
	return mgl64.Quat{W: w, V: mgl64.Vec3{x, y, z}}
}

func shapeOffset(n *tree.Node) mgl64.Vec3 {
	shape, _ := n.Props["shape"].(map[string]any)
	return readVec(shape, "offset")
}

func setShapeOffset(n *tree.Node, v mgl64.Vec3) {
	shape, ok := n.Props["shape"].(map[string]any)
	if !ok {
		return
	}
	shape["offset"] = vecProp(v[0], v[1], v[2])
}

// frame is the matrix children of n are placed in: the part's pose moved
// by its rotated shape offset. Parts are never scaled.
func frame(n *tree.Node) mgl64.Mat4 {
	rot := readQuat(n.Props, "orientation")
	pos := readVec(n.Props, "position").Add(rot.Rotate(shapeOffset(n)))
	return transform.Compose(pos, rot, mgl64.Vec3{1, 1, 1})
}

func parentFrame(d *document.Document, id string) mgl64.Mat4 {
	m := mgl64.Ident4()
	for parentID, _ := d.Tree.Parent(id); parentID != ""; parentID, _ = d.Tree.Parent(parentID) {
		p, ok := d.Tree.Get(parentID)
		if !ok {
			break
		}
		m = frame(p).Mul4(m)
	}
	return m
}

// GlobalMatrix returns the world pose of a part, excluding its own shape
// offset.
func GlobalMatrix(d *document.Document, id string) mgl64.Mat4 {
	n, ok := d.Tree.Get(id)
	if !ok {
		return mgl64.Ident4()
	}
	local := transform.Compose(readVec(n.Props, "position"), readQuat(n.Props, "orientation"), mgl64.Vec3{1, 1, 1})
	return parentFrame(d, id).Mul4(local)
}

func applyGlobalMatrix(d *document.Document, id string, m mgl64.Mat4) {
	n, ok := d.Tree.Get(id)
	if !ok {
		return
	}
	pos, rot, _ := transform.Decompose(parentFrame(d, id).Inv().Mul4(m))
	n.Props["position"] = vecProp(pos[0], pos[1], pos[2])
	n.Props["orientation"] = map[string]any{"x": rot.V[0], "y": rot.V[1], "z": rot.V[2], "w": rot.W}
}
