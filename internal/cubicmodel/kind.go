// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package cubicmodel defines the cubic model document kind: a tree of
// box-shaped parts with a texture atlas stored as side payloads.
package cubicmodel

import (
	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/schema"
)

// KindName identifies cubic model documents.
const KindName = "cubicModel"

// FormatVersion is the current cubic model format.
const FormatVersion = 1

// PixelsPerUnitKey is the document level texel density.
const PixelsPerUnitKey = "pixelsPerUnit"

// DefaultPixelsPerUnit is used by new models.
const DefaultPixelsPerUnit = 16.0

// Shape types.
const (
	ShapeNone = "none"
	ShapeBox  = "box"
)

// MapNames are the texture maps a model may carry.
var MapNames = []string{"map", "light", "specular", "alpha", "normal"}

var pixelsPerUnitRule = &schema.Rule{Type: schema.TypeInteger, Mutable: true, Min: schema.Float(1)}

func sizeRule() *schema.Rule {
	r := schema.Vec3()
	for _, axis := range r.Properties {
		axis.Type = schema.TypeInteger
		axis.Min = schema.Float(0)
	}
	return r
}

// Schema returns the node rule set of cubic models.
func Schema() schema.Schema {
	return schema.Schema{
		"name":        {Type: schema.TypeString, Mutable: true, Trim: true, MinLength: schema.Int(1), MaxLength: schema.Int(80)},
		"position":    schema.Vec3(),
		"orientation": schema.Quat(),
		"shape": {Type: schema.TypeHash, Mutable: true, Properties: map[string]*schema.Rule{
			"type":   {Type: schema.TypeEnum, Items: []string{ShapeNone, ShapeBox}},
			"offset": schema.Vec3(),
			"size":   sizeRule(),
		}},
	}
}

// NewKind builds the cubic model kind with its command table.
func NewKind() *document.Kind {
	k := document.NewKind(KindName, FormatVersion, Schema(), document.Options{},
		document.WithMeta(map[string]any{PixelsPerUnitKey: DefaultPixelsPerUnit}),
		document.WithMigration(0, migrateShapes),
	)
	registerCommands(k)
	return k
}

// PixelsPerUnit returns the texel density of d.
func PixelsPerUnit(d *document.Document) int {
	v, _ := d.Meta[PixelsPerUnitKey].(float64)
	return int(v)
}

// Models saved before shapes had sizes stored the box size under
// shape.settings.size; parts without a shape become empty.
func migrateShapes(raw map[string]any) error {
	if _, ok := raw[PixelsPerUnitKey]; !ok {
		raw[PixelsPerUnitKey] = DefaultPixelsPerUnit
	}
	return document.WalkRaw(raw, func(node map[string]any) error {
		shape, ok := node["shape"].(map[string]any)
		if !ok {
			node["shape"] = emptyShape()
			return nil
		}
		if settings, ok := shape["settings"].(map[string]any); ok {
			if size, ok := settings["size"]; ok {
				shape["size"] = size
			}
		}
		delete(shape, "settings")
		delete(shape, "textureOffset")
		delete(shape, "textureLayout")
		delete(shape, "textureLayoutCustom")
		if _, ok := shape["size"]; !ok {
			shape["size"] = vecProp(0, 0, 0)
		}
		if _, ok := shape["offset"]; !ok {
			shape["offset"] = vecProp(0, 0, 0)
		}
		if _, ok := shape["type"]; !ok {
			shape["type"] = ShapeNone
		}
		delete(node, "scale")
		return nil
	})
}

func emptyShape() map[string]any {
	return map[string]any{"type": ShapeNone, "offset": vecProp(0, 0, 0), "size": vecProp(0, 0, 0)}
}

func checkMapName(name string) error {
	for _, n := range MapNames {
		if n == name {
			return nil
		}
	}
	return oops.Code(schema.CodeSchemaViolation).
		With("path", "maps").
		With("map", name).
		Errorf("unknown texture map %q", name)
}

func schemaViolation(path, msg string) error {
	return oops.Code(schema.CodeSchemaViolation).With("path", path).Errorf("%s", msg)
}
