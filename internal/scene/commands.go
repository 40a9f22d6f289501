// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package scene

import (
	"context"
	"strings"

	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/tree"
)

// Command names of the scene node protocol.
const (
	CmdAddNode         = "addNode"
	CmdSetNodeProperty = "setNodeProperty"
	CmdMoveNode        = "moveNode"
	CmdDuplicateNode   = "duplicateNode"
	CmdRemoveNode      = "removeNode"
)

// AddNodeArgs requests a new node.
type AddNodeArgs struct {
	Name      string     `json:"name"`
	ParentID  string     `json:"parentId,omitempty"`
	Index     *int       `json:"index,omitempty"`
	Transform *Transform `json:"transform,omitempty"`
	Prefab    bool       `json:"prefab,omitempty"`
}

// AddNodeResult is broadcast after addNode.
type AddNodeResult struct {
	NodeID   string             `json:"nodeId"`
	Node     *document.NodeData `json:"node"`
	ParentID string             `json:"parentId"`
	Index    int                `json:"index"`
}

// SetNodePropertyArgs is both the request and the broadcast of
// setNodeProperty; the broadcast carries the normalized value.
type SetNodePropertyArgs struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// MoveNodeArgs is both the request and the broadcast of moveNode; the
// broadcast carries the actual index.
type MoveNodeArgs struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
	Index    *int   `json:"index,omitempty"`
}

// DuplicateNodeArgs requests a copy of a subtree.
type DuplicateNodeArgs struct {
	NewName string `json:"newName"`
	ID      string `json:"id"`
	Index   *int   `json:"index,omitempty"`
}

// DuplicatedNode locates one node created by duplicateNode.
type DuplicatedNode struct {
	NodeID   string `json:"nodeId"`
	ParentID string `json:"parentId"`
	Index    int    `json:"index"`
}

// DuplicateNodeResult is broadcast after duplicateNode.
type DuplicateNodeResult struct {
	Node     *document.NodeData `json:"node"`
	ParentID string             `json:"parentId"`
	Index    int                `json:"index"`
	NewNodes []DuplicatedNode   `json:"newNodes"`
}

// RemoveNodeArgs is both the request and the broadcast of removeNode.
type RemoveNodeArgs struct {
	ID string `json:"id"`
}

func registerNodeCommands(k *document.Kind) {
	k.MustRegister(CmdAddNode, document.Command(serverAddNode, clientAddNode))
	k.MustRegister(CmdSetNodeProperty, document.Command(serverSetNodeProperty, clientSetNodeProperty))
	k.MustRegister(CmdMoveNode, document.Command(serverMoveNode, clientMoveNode))
	k.MustRegister(CmdDuplicateNode, document.Command(serverDuplicateNode, clientDuplicateNode))
	k.MustRegister(CmdRemoveNode, document.Command(serverRemoveNode, clientRemoveNode))
}

func serverAddNode(_ context.Context, d *document.Document, _ document.Origin, args AddNodeArgs) (AddNodeResult, error) {
	if err := checkName(d, args.Name); err != nil {
		return AddNodeResult{}, err
	}
	if args.ParentID != "" {
		parent, ok := d.Tree.Get(args.ParentID)
		if !ok {
			return AddNodeResult{}, tree.InvalidParentError(args.ParentID, "parent does not exist")
		}
		if IsPrefab(parent) {
			return AddNodeResult{}, tree.InvalidParentError(args.ParentID, "prefab nodes cannot have children")
		}
	}

	referenced, release := rootGuard(d)
	defer release()
	if args.ParentID == "" && referenced && len(d.Tree.Roots()) > 0 {
		return AddNodeResult{}, StructuralConstraintError(d.ID, "a scene used as a prefab can only have one root node")
	}

	props := transformProps(args.Transform)
	props["visible"] = true
	props["layer"] = 0
	props["prefab"] = nil
	if args.Prefab {
		props["prefab"] = map[string]any{"sceneAssetId": nil}
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
	if args.Path == "name" {
		name, _ := args.Value.(string)
		if err := checkName(d, name); err != nil {
			return args, err
		}
	}

	if args.Path == prefabPath || strings.HasPrefix(args.Path, "prefab.") {
		if env := d.Env(); env != nil {
			_, release := lockReferences(d, env.ReferenceLock())
			defer release()
		}
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
	if _, err := nodeOf(d, args.ID); err != nil {
		return args, err
	}
	if args.ParentID != "" {
		parent, ok := d.Tree.Get(args.ParentID)
		if !ok {
			return args, tree.InvalidParentError(args.ParentID, "parent does not exist")
		}
		if IsPrefab(parent) {
			return args, tree.InvalidParentError(args.ParentID, "prefab nodes cannot have children")
		}
	}

	referenced, release := rootGuard(d)
	defer release()
	currentParent, _ := d.Tree.Parent(args.ID)
	if args.ParentID == "" && currentParent != "" && referenced {
		return args, StructuralConstraintError(d.ID, "a scene used as a prefab can only have one root node")
	}

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
	world := GlobalMatrix(d, id)
	actual, err := d.MoveNode(id, parentID, index)
	if err != nil {
		return 0, err
	}
	applyGlobalMatrix(d, id, world)
	return actual, nil
}

func serverDuplicateNode(_ context.Context, d *document.Document, _ document.Origin, args DuplicateNodeArgs) (DuplicateNodeResult, error) {
	if err := checkName(d, args.NewName); err != nil {
		return DuplicateNodeResult{}, err
	}
	if _, err := nodeOf(d, args.ID); err != nil {
		return DuplicateNodeResult{}, err
	}

	referenced, release := rootGuard(d)
	defer release()
	if parentID, _ := d.Tree.Parent(args.ID); parentID == "" && referenced {
		return DuplicateNodeResult{}, StructuralConstraintError(d.ID, "a scene used as a prefab can only have one root node")
	}

	data, parentID, index, err := d.DuplicateNode(args.ID, args.NewName, args.Index)
	if err != nil {
		return DuplicateNodeResult{}, err
	}
	trackPrefabs(d, data.ID)

	result := DuplicateNodeResult{Node: data, ParentID: parentID, Index: index}
	d.Tree.WalkNode(data.ID, func(n *tree.Node, parent string) bool {
		_, i, _ := d.Tree.IndexOf(n.ID)
		result.NewNodes = append(result.NewNodes, DuplicatedNode{NodeID: n.ID, ParentID: parent, Index: i})
		return true
	})
	return result, nil
}

func clientDuplicateNode(d *document.Document, r DuplicateNodeResult) error {
	if _, err := d.InsertNode(r.Node, r.ParentID, &r.Index); err != nil {
		return err
	}
	trackPrefabs(d, r.Node.ID)
	return nil
}

func trackPrefabs(d *document.Document, rootID string) {
	d.Tree.WalkNode(rootID, func(n *tree.Node, _ string) bool {
		trackPrefab(d, n)
		return true
	})
}

func serverRemoveNode(_ context.Context, d *document.Document, _ document.Origin, args RemoveNodeArgs) (RemoveNodeArgs, error) {
	if _, err := nodeOf(d, args.ID); err != nil {
		return args, err
	}

	referenced, release := rootGuard(d)
	defer release()
	if parentID, _ := d.Tree.Parent(args.ID); parentID == "" && referenced && len(d.Tree.Roots()) == 1 {
		return args, StructuralConstraintError(d.ID, "the root node of a scene used as a prefab cannot be removed")
	}

	return args, d.RemoveNode(args.ID)
}

func clientRemoveNode(d *document.Document, r RemoveNodeArgs) error {
	return d.RemoveNode(r.ID)
}
