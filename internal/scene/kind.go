// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package scene defines the scene document kind: a tree of transformable
// nodes carrying components, where a node may instantiate another scene as
// a prefab.
package scene

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/component"
	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/schema"
	"github.com/sceneforge/sceneforge/internal/tree"
)

// KindName identifies scene documents.
const KindName = "scene"

// FormatVersion is the current scene document format.
const FormatVersion = 2

const prefabPath = "prefab.sceneAssetId"

// Schema returns the node rule set of scenes.
func Schema() schema.Schema {
	return schema.Schema{
		"name":        {Type: schema.TypeString, Mutable: true, Trim: true, MinLength: schema.Int(1), MaxLength: schema.Int(80)},
		"position":    schema.Vec3(),
		"orientation": schema.Quat(),
		"scale":       schema.Vec3(),
		"visible":     {Type: schema.TypeBoolean, Mutable: true},
		"layer":       {Type: schema.TypeInteger, Mutable: true, Min: schema.Float(0)},
		"prefab": {Type: schema.TypeHash, Nullable: true, Properties: map[string]*schema.Rule{
			"sceneAssetId": {Type: schema.TypeString, Nullable: true, Mutable: true},
		}},
	}
}

// NewKind builds the scene kind with its command table.
func NewKind() *document.Kind {
	k := document.NewKind(KindName, FormatVersion, Schema(),
		document.Options{Components: true, Prefabs: true, SingleRootWhenReferenced: true},
		document.WithMigration(0, migratePrefabID),
		document.WithMigration(1, migrateVisibility),
		document.WithSetup(setup),
		document.WithLoad(restorePrefabs),
		document.WithPrefabRefs(PrefabRefs),
	)
	registerNodeCommands(k)
	registerComponentCommands(k)
	return k
}

// PrefabRef returns the scene a node instantiates, or "".
func PrefabRef(n *tree.Node) string {
	prefab, ok := n.Props["prefab"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := prefab["sceneAssetId"].(string)
	return id
}

// IsPrefab reports whether a node is a prefab slot, referenced or not.
func IsPrefab(n *tree.Node) bool {
	_, ok := n.Props["prefab"].(map[string]any)
	return ok
}

// PrefabRefs lists the scenes referenced by prefab nodes of d.
func PrefabRefs(d *document.Document) []string {
	var refs []string
	d.Tree.Walk(func(n *tree.Node, _ string) bool {
		if id := PrefabRef(n); id != "" {
			refs = append(refs, id)
		}
		return true
	})
	return refs
}

func prefabDependencyPath(nodeID string) string {
	return component.Path(nodeID, "prefab")
}

func setup(d *document.Document) {
	d.Tree.Hook(prefabPath, func(ctx context.Context, n *tree.Node, _ string, value any) (func(), error) {
		if !IsPrefab(n) {
			return nil, StructuralConstraintError(d.ID, "node is not a prefab")
		}
		old := PrefabRef(n)
		next, _ := value.(string)
		if next != "" && d.Env() != nil {
			if err := CheckPrefab(ctx, d.Env(), d.ID, next); err != nil {
				return nil, err
			}
		}
		return func() {
			if old == next {
				return
			}
			path := prefabDependencyPath(n.ID)
			if old != "" {
				d.Dependencies().Remove(path, []string{old})
			}
			if next != "" {
				d.Dependencies().Add(path, []string{next})
			}
		}, nil
	})

	d.Tree.OnRemove(func(n *tree.Node) {
		if ref := PrefabRef(n); ref != "" {
			d.Dependencies().Remove(prefabDependencyPath(n.ID), []string{ref})
		}
	})
}

func restorePrefabs(d *document.Document) {
	d.Tree.Walk(func(n *tree.Node, _ string) bool {
		trackPrefab(d, n)
		return true
	})
}

func trackPrefab(d *document.Document, n *tree.Node) {
	if ref := PrefabRef(n); ref != "" {
		d.Dependencies().Add(prefabDependencyPath(n.ID), []string{ref})
	}
}

// Node ids from before the prefab hash existed stored the referenced scene
// in prefabId; an empty string meant an unassigned prefab.
func migratePrefabID(raw map[string]any) error {
	return document.WalkRaw(raw, func(node map[string]any) error {
		old, ok := node["prefabId"]
		if !ok {
			return nil
		}
		delete(node, "prefabId")
		id, _ := old.(string)
		if id == "" {
			node["prefab"] = map[string]any{"sceneAssetId": nil}
		} else {
			node["prefab"] = map[string]any{"sceneAssetId": id}
		}
		return nil
	})
}

func migrateVisibility(raw map[string]any) error {
	return document.WalkRaw(raw, func(node map[string]any) error {
		if _, ok := node["visible"]; !ok {
			node["visible"] = true
			node["layer"] = 0.0
		}
		if _, ok := node["layer"]; !ok {
			node["layer"] = 0.0
		}
		if _, ok := node["prefab"]; !ok {
			node["prefab"] = nil
		}
		if _, ok := node["components"]; !ok {
			node["components"] = []any{}
		}
		return nil
	})
}

// rootGuard serializes root count changes with the reference graph when
// the scene may be referenced. The returned release publishes the new
// summary before letting other writers in.
func rootGuard(d *document.Document) (referenced bool, release func()) {
	env := d.Env()
	if env == nil || !d.Kind.Options.SingleRootWhenReferenced {
		return false, func() {}
	}
	return lockReferences(d, env.ReferenceLock())
}

func lockReferences(d *document.Document, lock sync.Locker) (bool, func()) {
	lock.Lock()
	return d.Env().IsReferenced(d.ID), func() {
		d.Publish()
		lock.Unlock()
	}
}

func nodeOf(d *document.Document, id string) (*tree.Node, error) {
	n, ok := d.Tree.Get(id)
	if !ok {
		return nil, tree.InvalidNodeError(id)
	}
	return n, nil
}

func checkName(d *document.Document, name string) error {
	for _, r := range name {
		if r == '/' {
			return oops.Code(schema.CodeSchemaViolation).
				With("scene_id", d.ID).
				With("path", "name").
				Errorf("node names cannot contain slashes")
		}
	}
	return nil
}
