// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package builtin defines the component types shipped with the server.
package builtin

import "github.com/sceneforge/sceneforge/internal/component"

// Type names.
const (
	ModelRendererType  = "ModelRenderer"
	SpriteRendererType = "SpriteRenderer"
	TextRendererType   = "TextRenderer"
	BehaviorType       = "Behavior"
	LightType          = "Light"
	ArcadeBody2DType   = "ArcadeBody2D"
	CameraType         = "Camera"
)

// Types builds every built-in component type.
func Types() []*component.Type {
	return []*component.Type{
		modelRenderer(),
		spriteRenderer(),
		textRenderer(),
		behavior(),
		light(),
		arcadeBody2D(),
		camera(),
	}
}

// NewRegistry returns a registry holding the built-in types.
func NewRegistry() (*component.Registry, error) {
	return component.NewRegistry(Types()...)
}

// Vec2 is a 2D vector.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec3 is a 3D vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func refs(ids ...string) []string {
	var out []string
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
