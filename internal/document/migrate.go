// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package document

import (
	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/component"
)

// FormatVersionKey holds a document's format version.
const FormatVersionKey = "formatVersion"

// NodesKey holds a document's root nodes.
const NodesKey = "nodes"

// Migrate upgrades a raw document to kind's current format version, then
// every component config to its type's current version. It reports whether
// anything changed; running it twice changes nothing the second time.
func Migrate(kind *Kind, registry *component.Registry, raw map[string]any) (bool, error) {
	version := 0
	if v, ok := raw[FormatVersionKey].(float64); ok {
		version = int(v)
	}
	if version > kind.FormatVersion {
		return false, oops.With("kind", kind.Name).
			With("format_version", version).
			Errorf("document format version %d is newer than supported %d", version, kind.FormatVersion)
	}

	changed := false
	for v := version; v < kind.FormatVersion; v++ {
		if m, ok := kind.migrations[v]; ok {
			if err := m(raw); err != nil {
				return false, oops.With("kind", kind.Name).With("from_version", v).Wrapf(err, "migrate document")
			}
		}
		changed = true
	}
	raw[FormatVersionKey] = float64(kind.FormatVersion)

	if !kind.Options.Components {
		return changed, nil
	}
	err := WalkRaw(raw, func(node map[string]any) error {
		list, _ := node["components"].([]any)
		for _, item := range list {
			desc, ok := item.(map[string]any)
			if !ok {
				continue
			}
			typeName, _ := desc["type"].(string)
			t, err := registry.Lookup(typeName)
			if err != nil {
				return err
			}
			cfg, _ := desc["config"].(map[string]any)
			if cfg == nil {
				cfg = map[string]any{}
				desc["config"] = cfg
			}
			c, err := t.Migrate(cfg)
			if err != nil {
				return err
			}
			changed = changed || c
		}
		return nil
	})
	return changed, err
}

// WalkRaw visits every node of a raw document in pre-order.
func WalkRaw(raw map[string]any, fn func(node map[string]any) error) error {
	nodes, _ := raw[NodesKey].([]any)
	return walkRaw(nodes, fn)
}

func walkRaw(nodes []any, fn func(node map[string]any) error) error {
	for _, item := range nodes {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if err := fn(node); err != nil {
			return err
		}
		children, _ := node["children"].([]any)
		if err := walkRaw(children, fn); err != nil {
			return err
		}
	}
	return nil
}
