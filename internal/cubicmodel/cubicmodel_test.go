// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package cubicmodel_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneforge/sceneforge/internal/cubicmodel"
	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/ids"
	"github.com/sceneforge/sceneforge/internal/schema"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

func newModel(prefix string) *document.Document {
	return document.New(cubicmodel.NewKind(), "model", document.WithIDGenerator(ids.Sequence(prefix)))
}

func run(d *document.Document, name string, args any) (json.RawMessage, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return d.Execute(context.Background(), document.Origin{ClientID: "c1"}, name, raw)
}

func mustRun(t *testing.T, d *document.Document, name string, args any) json.RawMessage {
	t.Helper()
	out, err := run(d, name, args)
	require.NoError(t, err)
	return out
}

func addNode(t *testing.T, d *document.Document, args cubicmodel.AddNodeArgs) string {
	t.Helper()
	var res cubicmodel.AddNodeResult
	require.NoError(t, json.Unmarshal(mustRun(t, d, cubicmodel.CmdAddNode, args), &res))
	return res.NodeID
}

func box(offset cubicmodel.Vec3) *cubicmodel.Shape {
	return &cubicmodel.Shape{Type: cubicmodel.ShapeBox, Offset: offset, Size: cubicmodel.Vec3{X: 2, Y: 2, Z: 2}}
}

func shapeWorld(d *document.Document, id string) mgl64.Vec3 {
	n, _ := d.Tree.Get(id)
	shape := n.Props["shape"].(map[string]any)
	offset := shape["offset"].(map[string]any)
	v := mgl64.Vec4{offset["x"].(float64), offset["y"].(float64), offset["z"].(float64), 1}
	return cubicmodel.GlobalMatrix(d, id).Mul4x1(v).Vec3()
}

func TestNewModel_DefaultsPixelsPerUnit(t *testing.T) {
	d := newModel("n")
	assert.Equal(t, 16, cubicmodel.PixelsPerUnit(d))
	assert.False(t, d.Kind.Options.Components)
	assert.False(t, d.Kind.Options.Prefabs)
}

func TestSetPixelsPerUnit(t *testing.T) {
	d := newModel("n")

	out := mustRun(t, d, cubicmodel.CmdSetPixelsPerUnit, cubicmodel.SetPixelsPerUnitArgs{Value: 32})
	assert.Equal(t, 32, cubicmodel.PixelsPerUnit(d))
	assert.JSONEq(t, `{"value":32}`, string(out))

	for _, bad := range []any{0, 1.5, "big", nil} {
		_, err := run(d, cubicmodel.CmdSetPixelsPerUnit, cubicmodel.SetPixelsPerUnitArgs{Value: bad})
		errutil.AssertErrorCode(t, err, schema.CodeSchemaViolation)
	}
	assert.Equal(t, 32, cubicmodel.PixelsPerUnit(d))
}

func TestMoveNodePivot_KeepsShapeInPlace(t *testing.T) {
	d := newModel("n")
	body := addNode(t, d, cubicmodel.AddNodeArgs{
		Name:      "body",
		Transform: &cubicmodel.Transform{Orientation: &cubicmodel.Quat{Y: 0.7071067811865476, W: 0.7071067811865476}},
		Shape:     box(cubicmodel.Vec3{X: 1}),
	})
	head := addNode(t, d, cubicmodel.AddNodeArgs{
		Name:      "head",
		ParentID:  body,
		Transform: &cubicmodel.Transform{Position: &cubicmodel.Vec3{Y: 3}},
		Shape:     box(cubicmodel.Vec3{}),
	})

	bodyShape := shapeWorld(d, body)
	headPose := cubicmodel.GlobalMatrix(d, head).Col(3).Vec3()

	mustRun(t, d, cubicmodel.CmdMoveNodePivot, cubicmodel.MoveNodePivotArgs{ID: body, Value: cubicmodel.Vec3{X: 2, Y: -1, Z: 4}})

	n, _ := d.Tree.Get(body)
	pos := n.Props["position"].(map[string]any)
	assert.Equal(t, 2.0, pos["x"])
	assert.True(t, bodyShape.ApproxEqualThreshold(shapeWorld(d, body), 1e-9))
	assert.True(t, headPose.ApproxEqualThreshold(cubicmodel.GlobalMatrix(d, head).Col(3).Vec3(), 1e-9))
}

func TestMoveNode_PreservesWorldPose(t *testing.T) {
	d := newModel("n")
	arm := addNode(t, d, cubicmodel.AddNodeArgs{
		Name:      "arm",
		Transform: &cubicmodel.Transform{Position: &cubicmodel.Vec3{X: 5}},
		Shape:     box(cubicmodel.Vec3{Y: 1}),
	})
	hand := addNode(t, d, cubicmodel.AddNodeArgs{
		Name:      "hand",
		Transform: &cubicmodel.Transform{Position: &cubicmodel.Vec3{X: 7, Y: 2}},
	})

	before := cubicmodel.GlobalMatrix(d, hand).Col(3).Vec3()
	mustRun(t, d, cubicmodel.CmdMoveNode, cubicmodel.MoveNodeArgs{ID: hand, ParentID: arm})
	after := cubicmodel.GlobalMatrix(d, hand).Col(3).Vec3()
	assert.True(t, before.ApproxEqualThreshold(after, 1e-9), "before %v after %v", before, after)

	n, _ := d.Tree.Get(hand)
	pos := n.Props["position"].(map[string]any)
	assert.InDelta(t, 2.0, pos["x"], 1e-9)
	assert.InDelta(t, 1.0, pos["y"], 1e-9)
}

func TestShapeRules(t *testing.T) {
	d := newModel("n")

	_, err := run(d, cubicmodel.CmdAddNode, cubicmodel.AddNodeArgs{Name: "bad", Shape: &cubicmodel.Shape{Type: "sphere"}})
	errutil.AssertErrorCode(t, err, schema.CodeSchemaViolation)

	_, err = run(d, cubicmodel.CmdAddNode, cubicmodel.AddNodeArgs{Name: "a/b"})
	errutil.AssertErrorCode(t, err, schema.CodeSchemaViolation)

	id := addNode(t, d, cubicmodel.AddNodeArgs{Name: "part", Shape: box(cubicmodel.Vec3{})})
	_, err = run(d, cubicmodel.CmdSetNodeProperty, cubicmodel.SetNodePropertyArgs{ID: id, Path: "shape.size.x", Value: 1.5})
	errutil.AssertErrorCode(t, err, schema.CodeSchemaViolation)
	_, err = run(d, cubicmodel.CmdSetNodeProperty, cubicmodel.SetNodePropertyArgs{ID: id, Path: "shape.type", Value: cubicmodel.ShapeNone})
	errutil.AssertErrorCode(t, err, schema.CodeSchemaViolation)

	mustRun(t, d, cubicmodel.CmdSetNodeProperty, cubicmodel.SetNodePropertyArgs{ID: id, Path: "shape.size.x", Value: 4})
	v, ok := d.Tree.Property(id, "shape.size.x")
	require.True(t, ok)
	assert.Equal(t, 4.0, v)
}

func TestSetMap(t *testing.T) {
	d := newModel("n")
	mustRun(t, d, cubicmodel.CmdSetMap, cubicmodel.SetMapArgs{Name: "map", Data: []byte{1, 2, 3, 4}})
	data, ok := d.Blob("map")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	_, err := run(d, cubicmodel.CmdSetMap, cubicmodel.SetMapArgs{Name: "emissive", Data: []byte{0}})
	errutil.AssertErrorCode(t, err, schema.CodeSchemaViolation)
}

func TestReplica_ReplaysEveryCommand(t *testing.T) {
	server := newModel("n")
	replica := newModel("replica-")

	apply := func(name string, args any) json.RawMessage {
		out := mustRun(t, server, name, args)
		require.NoError(t, replica.Apply(name, out))
		return out
	}

	var body cubicmodel.AddNodeResult
	require.NoError(t, json.Unmarshal(apply(cubicmodel.CmdAddNode, cubicmodel.AddNodeArgs{Name: "body", Shape: box(cubicmodel.Vec3{Z: 1})}), &body))
	var leg cubicmodel.AddNodeResult
	require.NoError(t, json.Unmarshal(apply(cubicmodel.CmdAddNode, cubicmodel.AddNodeArgs{
		Name: "leg", Transform: &cubicmodel.Transform{Position: &cubicmodel.Vec3{X: 1, Y: -2}},
	}), &leg))

	apply(cubicmodel.CmdMoveNode, cubicmodel.MoveNodeArgs{ID: leg.NodeID, ParentID: body.NodeID})
	apply(cubicmodel.CmdMoveNodePivot, cubicmodel.MoveNodePivotArgs{ID: body.NodeID, Value: cubicmodel.Vec3{Y: 3}})
	apply(cubicmodel.CmdDuplicateNode, cubicmodel.DuplicateNodeArgs{ID: leg.NodeID, NewName: "leg 2"})
	apply(cubicmodel.CmdSetNodeProperty, cubicmodel.SetNodePropertyArgs{ID: leg.NodeID, Path: "name", Value: "left leg"})
	apply(cubicmodel.CmdSetPixelsPerUnit, cubicmodel.SetPixelsPerUnitArgs{Value: 8})
	apply(cubicmodel.CmdSetMap, cubicmodel.SetMapArgs{Name: "map", Data: []byte{9}})

	serverJSON, err := server.Encode()
	require.NoError(t, err)
	replicaJSON, err := replica.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, string(serverJSON), string(replicaJSON))
	blob, _ := replica.Blob("map")
	assert.Equal(t, []byte{9}, blob)
}

func TestDecode_MigratesShapeSettings(t *testing.T) {
	legacy := `{
	  "formatVersion": 0,
	  "nodes": [{
	    "id": "p1", "name": "body", "children": [],
	    "position": {"x": 0, "y": 0, "z": 0},
	    "orientation": {"x": 0, "y": 0, "z": 0, "w": 1},
	    "shape": {
	      "type": "box",
	      "offset": {"x": 0, "y": 1, "z": 0},
	      "textureOffset": {},
	      "settings": {"size": {"x": 4, "y": 6, "z": 2}}
	    }
	  }]
	}`
	d, err := document.Decode(cubicmodel.NewKind(), "model", []byte(legacy))
	require.NoError(t, err)

	size, ok := d.Tree.Property("p1", "shape.size.y")
	require.True(t, ok)
	assert.Equal(t, 6.0, size)
	assert.Equal(t, 16, cubicmodel.PixelsPerUnit(d))
}
