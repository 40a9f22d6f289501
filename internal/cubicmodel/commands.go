// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package cubicmodel

import (
	"context"
	"strings"

	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/tree"
)

// Command names of the cubic model protocol.
const (
	CmdAddNode          = "addNode"
	CmdSetNodeProperty  = "setNodeProperty"
	CmdMoveNode         = "moveNode"
	CmdMoveNodePivot    = "moveNodePivot"
	CmdDuplicateNode    = "duplicateNode"
	CmdRemoveNode       = "removeNode"
	CmdSetPixelsPerUnit = "setPixelsPerUnit"
	CmdSetMap           = "setMap"
)

// Transform is an optional initial placement for addNode.
type Transform struct {
	Position    *Vec3 `json:"position,omitempty"`
	Orientation *Quat `json:"orientation,omitempty"`
}

// AddNodeArgs requests a new part.
type AddNodeArgs struct {
	Name      string     `json:"name"`
	ParentID  string     `json:"parentId,omitempty"`
	Index     *int       `json:"index,omitempty"`
	Transform *Transform `json:"transform,omitempty"`
	Shape     *Shape     `json:"shape,omitempty"`
}

// AddNodeResult is broadcast after addNode.
type AddNodeResult struct {
	NodeID   string             `json:"nodeId"`
	Node     *document.NodeData `json:"node"`
	ParentID string             `json:"parentId"`
	Index    int                `json:"index"`
}

// SetNodePropertyArgs is both the request and the broadcast of
// setNodeProperty.
type SetNodePropertyArgs struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// MoveNodeArgs is both the request and the broadcast of moveNode.
type MoveNodeArgs struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
	Index    *int   `json:"index,omitempty"`
}

// MoveNodePivotArgs moves a part's origin while its shape stays in place.
type MoveNodePivotArgs struct {
	ID    string `json:"id"`
	Value Vec3   `json:"value"`
}

// DuplicateNodeArgs requests a copy of a subtree.
type DuplicateNodeArgs struct {
	NewName string `json:"newName"`
	ID      string `json:"id"`
	Index   *int   `json:"index,omitempty"`
}

// DuplicateNodeResult is broadcast after duplicateNode.
type DuplicateNodeResult struct {
	Node     *document.NodeData `json:"node"`
	ParentID string             `json:"parentId"`
	Index    int                `json:"index"`
}

// RemoveNodeArgs is both the request and the broadcast of removeNode.
type RemoveNodeArgs struct {
	ID string `json:"id"`
}

// SetPixelsPerUnitArgs is both the request and the broadcast of
// setPixelsPerUnit.
type SetPixelsPerUnitArgs struct {
	Value any `json:"value"`
}

// SetMapArgs replaces one texture map. Data travels base64 encoded.
type SetMapArgs struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

func registerCommands(k *document.Kind) {
	k.MustRegister(CmdAddNode, document.Command(serverAddNode, clientAddNode))
	k.MustRegister(CmdSetNodeProperty, document.Command(serverSetNodeProperty, clientSetNodeProperty))
	k.MustRegister(CmdMoveNode, document.Command(serverMoveNode, clientMoveNode))
	k.MustRegister(CmdMoveNodePivot, document.Command(serverMoveNodePivot, clientMoveNodePivot))
	k.MustRegister(CmdDuplicateNode, document.Command(serverDuplicateNode, clientDuplicateNode))
	k.MustRegister(CmdRemoveNode, document.Command(serverRemoveNode, clientRemoveNode))
	k.MustRegister(CmdSetPixelsPerUnit, document.Command(serverSetPixelsPerUnit, clientSetPixelsPerUnit))
	k.MustRegister(CmdSetMap, document.Command(serverSetMap, clientSetMap))
}

func serverAddNode(_ context.Context, d *document.Document, _ document.Origin, args AddNodeArgs) (AddNodeResult, error) {
	if strings.Contains(args.Name, "/") {
		return AddNodeResult{}, slashError()
	}
	props := map[string]any{
		"position":    vecProp(0, 0, 0),
		"orientation": map[string]any{"x": 0.0, "y": 0.0, "z": 0.0, "w": 1.0},
		"shape":       emptyShape(),
	}
	if t := args.Transform; t != nil {
		if t.Position != nil {
			props["position"] = vecProp(t.Position.X, t.Position.Y, t.Position.Z)
		}
		if t.Orientation != nil {
			props["orientation"] = map[string]any{"x": t.Orientation.X, "y": t.Orientation.Y, "z": t.Orientation.Z, "w": t.Orientation.W}
		}
	}
	if s := args.Shape; s != nil {
		props["shape"] = map[string]any{
			"type":   s.Type,
			"offset": vecProp(s.Offset.X, s.Offset.Y, s.Offset.Z),
			"size":   vecProp(s.Size.X, s.Size.Y, s.Size.Z),
		}
	}

	n := &tree.Node{Name: args.Name, Props: props}
	index, err := d.AddNode(n, args.ParentID, args.Index)
	if err != nil {
		return AddNodeResult{}, err
	}
	data, err := d.EncodeNode(n.ID)
	if err != nil {
		_ = d.RemoveNode(n.ID)
		return AddNodeResult{}, err
	}
	return AddNodeResult{NodeID: n.ID, Node: data, ParentID: args.ParentID, Index: index}, nil
}

func clientAddNode(d *document.Document, r AddNodeResult) error {
	_, err := d.InsertNode(r.Node, r.ParentID, &r.Index)
	return err
}

func serverSetNodeProperty(ctx context.Context, d *document.Document, _ document.Origin, args SetNodePropertyArgs) (SetNodePropertyArgs, error) {
	if name, ok := args.Value.(string); ok && args.Path == "name" && strings.Contains(name, "/") {
		return args, slashError()
	}
	value, err := d.Tree.SetProperty(ctx, args.ID, args.Path, args.Value)
	if err != nil {
		return args, err
	}
	args.Value = value
	return args, nil
}

func clientSetNodeProperty(d *document.Document, r SetNodePropertyArgs) error {
	_, err := d.Tree.SetProperty(context.Background(), r.ID, r.Path, r.Value)
	return err
}

func serverMoveNode(_ context.Context, d *document.Document, _ document.Origin, args MoveNodeArgs) (MoveNodeArgs, error) {
	index, err := moveKeepingWorld(d, args.ID, args.ParentID, args.Index)
	if err != nil {
		return args, err
	}
	args.Index = &index
	return args, nil
}

func clientMoveNode(d *document.Document, r MoveNodeArgs) error {
	_, err := moveKeepingWorld(d, r.ID, r.ParentID, r.Index)
	return err
}

func moveKeepingWorld(d *document.Document, id, parentID string, index *int) (int, error) {
	if _, ok := d.Tree.Get(id); !ok {
		return 0, tree.InvalidNodeError(id)
	}
	world := GlobalMatrix(d, id)
	actual, err := d.MoveNode(id, parentID, index)
	if err != nil {
		return 0, err
	}
	applyGlobalMatrix(d, id, world)
	return actual, nil
}

func serverMoveNodePivot(ctx context.Context, d *document.Document, _ document.Origin, args MoveNodePivotArgs) (MoveNodePivotArgs, error) {
	return args, movePivot(ctx, d, args)
}

func clientMoveNodePivot(d *document.Document, r MoveNodePivotArgs) error {
	return movePivot(context.Background(), d, r)
}

// movePivot sets the part's position and compensates the shape offset so
// the shape and the children keep their world placement.
func movePivot(ctx context.Context, d *document.Document, args MoveNodePivotArgs) error {
	n, ok := d.Tree.Get(args.ID)
	if !ok {
		return tree.InvalidNodeError(args.ID)
	}
	before := GlobalMatrix(d, args.ID)
	offset := shapeOffset(n)

	value := map[string]any{"x": args.Value.X, "y": args.Value.Y, "z": args.Value.Z}
	if _, err := d.Tree.SetProperty(ctx, args.ID, "position", value); err != nil {
		return err
	}

	after := GlobalMatrix(d, args.ID).Inv()
	moved := after.Mul4(before).Mul4x1(offset.Vec4(1)).Vec3()
	setShapeOffset(n, moved)
	return nil
}

func serverDuplicateNode(_ context.Context, d *document.Document, _ document.Origin, args DuplicateNodeArgs) (DuplicateNodeResult, error) {
	if strings.Contains(args.NewName, "/") {
		return DuplicateNodeResult{}, slashError()
	}
	data, parentID, index, err := d.DuplicateNode(args.ID, args.NewName, args.Index)
	if err != nil {
		return DuplicateNodeResult{}, err
	}
	return DuplicateNodeResult{Node: data, ParentID: parentID, Index: index}, nil
}

func clientDuplicateNode(d *document.Document, r DuplicateNodeResult) error {
	_, err := d.InsertNode(r.Node, r.ParentID, &r.Index)
	return err
}

func serverRemoveNode(_ context.Context, d *document.Document, _ document.Origin, args RemoveNodeArgs) (RemoveNodeArgs, error) {
	return args, d.RemoveNode(args.ID)
}

func clientRemoveNode(d *document.Document, r RemoveNodeArgs) error {
	return d.RemoveNode(r.ID)
}

func serverSetPixelsPerUnit(_ context.Context, d *document.Document, _ document.Origin, args SetPixelsPerUnitArgs) (SetPixelsPerUnitArgs, error) {
	value, err := pixelsPerUnitRule.Check(args.Value)
	if err != nil {
		return args, err
	}
	d.Meta[PixelsPerUnitKey] = value
	return SetPixelsPerUnitArgs{Value: value}, nil
}

func clientSetPixelsPerUnit(d *document.Document, r SetPixelsPerUnitArgs) error {
	value, err := pixelsPerUnitRule.Check(r.Value)
	if err != nil {
		return err
	}
	d.Meta[PixelsPerUnitKey] = value
	return nil
}

func serverSetMap(_ context.Context, d *document.Document, _ document.Origin, args SetMapArgs) (SetMapArgs, error) {
	if err := checkMapName(args.Name); err != nil {
		return args, err
	}
	d.SetBlob(args.Name, args.Data)
	return args, nil
}

func clientSetMap(d *document.Document, r SetMapArgs) error {
	d.SetBlob(r.Name, r.Data)
	return nil
}

func slashError() error {
	return schemaViolation("name", "node names cannot contain slashes")
}
