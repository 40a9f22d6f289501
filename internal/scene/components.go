// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package scene

import (
	"context"
	"encoding/json"

	"github.com/sceneforge/sceneforge/internal/component"
	"github.com/sceneforge/sceneforge/internal/document"
)

// Command names of the scene component protocol.
const (
	CmdAddComponent    = "addComponent"
	CmdEditComponent   = "editComponent"
	CmdRemoveComponent = "removeComponent"
)

// AddComponentArgs requests a new component on a node.
type AddComponentArgs struct {
	NodeID string `json:"nodeId"`
	Type   string `json:"type"`
	Index  *int   `json:"index,omitempty"`
}

// AddComponentResult is broadcast after addComponent.
type AddComponentResult struct {
	NodeID      string               `json:"nodeId"`
	ComponentID string               `json:"componentId"`
	Component   component.Descriptor `json:"component"`
	Index       int                  `json:"index"`
}

// EditComponentArgs runs a component command. The broadcast carries the
// command's result in Args.
type EditComponentArgs struct {
	NodeID      string          `json:"nodeId"`
	ComponentID string          `json:"componentId"`
	Command     string          `json:"command"`
	Args        json.RawMessage `json:"args,omitempty"`
}

// RemoveComponentArgs is both the request and the broadcast of
// removeComponent.
type RemoveComponentArgs struct {
	NodeID      string `json:"nodeId"`
	ComponentID string `json:"componentId"`
}

func registerComponentCommands(k *document.Kind) {
	k.MustRegister(CmdAddComponent, document.Command(serverAddComponent, clientAddComponent))
	k.MustRegister(CmdEditComponent, document.Command(serverEditComponent, clientEditComponent))
	k.MustRegister(CmdRemoveComponent, document.Command(serverRemoveComponent, clientRemoveComponent))
}

func serverAddComponent(_ context.Context, d *document.Document, _ document.Origin, args AddComponentArgs) (AddComponentResult, error) {
	n, err := nodeOf(d, args.NodeID)
	if err != nil {
		return AddComponentResult{}, err
	}
	if IsPrefab(n) {
		return AddComponentResult{}, StructuralConstraintError(d.ID, "prefab nodes cannot have components")
	}
	set, err := d.Components(args.NodeID)
	if err != nil {
		return AddComponentResult{}, err
	}
	c, index, err := set.Add(args.Type, args.Index)
	if err != nil {
		return AddComponentResult{}, err
	}
	desc, err := component.Encode(c)
	if err != nil {
		_ = set.Remove(c.ID)
		return AddComponentResult{}, err
	}
	return AddComponentResult{NodeID: args.NodeID, ComponentID: c.ID, Component: desc, Index: index}, nil
}

func clientAddComponent(d *document.Document, r AddComponentResult) error {
	set, err := d.Components(r.NodeID)
	if err != nil {
		return err
	}
	c, err := component.Decode(d.Registry(), r.Component)
	if err != nil {
		return err
	}
	_, err = set.Insert(c, &r.Index)
	return err
}

func serverEditComponent(ctx context.Context, d *document.Document, _ document.Origin, args EditComponentArgs) (EditComponentArgs, error) {
	set, err := d.Components(args.NodeID)
	if err != nil {
		return args, err
	}
	result, err := set.Dispatch(ctx, args.ComponentID, args.Command, args.Args)
	if err != nil {
		return args, err
	}
	args.Args = result
	return args, nil
}

func clientEditComponent(d *document.Document, r EditComponentArgs) error {
	set, err := d.Components(r.NodeID)
	if err != nil {
		return err
	}
	return set.Replay(r.ComponentID, r.Command, r.Args)
}

func serverRemoveComponent(_ context.Context, d *document.Document, _ document.Origin, args RemoveComponentArgs) (RemoveComponentArgs, error) {
	set, err := d.Components(args.NodeID)
	if err != nil {
		return args, err
	}
	return args, set.Remove(args.ComponentID)
}

func clientRemoveComponent(d *document.Document, r RemoveComponentArgs) error {
	set, err := d.Components(r.NodeID)
	if err != nil {
		return err
	}
	return set.Remove(r.ComponentID)
}
