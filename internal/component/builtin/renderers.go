// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package builtin

import "github.com/sceneforge/sceneforge/internal/component"

// ModelRenderer draws a model asset.
type ModelRenderer struct {
	ModelAssetID    string  `json:"modelAssetId"`
	AnimationID     string  `json:"animationId"`
	HorizontalFlip  bool    `json:"horizontalFlip"`
	VerticalFlip    bool    `json:"verticalFlip"`
	CastShadow      bool    `json:"castShadow"`
	ReceiveShadow   bool    `json:"receiveShadow"`
	Color           string  `json:"color" jsonschema:"pattern=^[0-9a-fA-F]{6}$"`
	OverrideOpacity bool    `json:"overrideOpacity"`
	Opacity         float64 `json:"opacity" jsonschema:"minimum=0,maximum=1"`
	MaterialType    string  `json:"materialType" jsonschema:"enum=basic,enum=phong,enum=shader"`
	ShaderAssetID   string  `json:"shaderAssetId"`
}

// Dependencies implements component.Config.
func (m *ModelRenderer) Dependencies() []string {
	return refs(m.ModelAssetID, m.ShaderAssetID)
}

func modelRenderer() *component.Type {
	return component.MustDefine(ModelRendererType,
		func() *ModelRenderer {
			return &ModelRenderer{Color: "ffffff", Opacity: 1, MaterialType: "basic"}
		},
		component.WithFormatVersion(2),
		component.WithMigration(0, addMaterialDefaults),
		component.WithMigration(1, addOpacityDefaults),
	)
}

// SpriteRenderer draws a sprite asset.
type SpriteRenderer struct {
	SpriteAssetID   string  `json:"spriteAssetId"`
	AnimationID     string  `json:"animationId"`
	HorizontalFlip  bool    `json:"horizontalFlip"`
	VerticalFlip    bool    `json:"verticalFlip"`
	CastShadow      bool    `json:"castShadow"`
	ReceiveShadow   bool    `json:"receiveShadow"`
	Color           string  `json:"color" jsonschema:"pattern=^[0-9a-fA-F]{6}$"`
	OverrideOpacity bool    `json:"overrideOpacity"`
	Opacity         float64 `json:"opacity" jsonschema:"minimum=0,maximum=1"`
	MaterialType    string  `json:"materialType" jsonschema:"enum=basic,enum=phong,enum=shader"`
	ShaderAssetID   string  `json:"shaderAssetId"`
}

// Dependencies implements component.Config.
func (s *SpriteRenderer) Dependencies() []string {
	return refs(s.SpriteAssetID, s.ShaderAssetID)
}

func spriteRenderer() *component.Type {
	return component.MustDefine(SpriteRendererType,
		func() *SpriteRenderer {
			return &SpriteRenderer{Color: "ffffff", Opacity: 1, MaterialType: "basic"}
		},
		component.WithFormatVersion(2),
		component.WithMigration(0, addMaterialDefaults),
		component.WithMigration(1, addOpacityDefaults),
	)
}

// TextRenderer draws text with a font asset.
type TextRenderer struct {
	FontAssetID       string  `json:"fontAssetId"`
	Text              string  `json:"text"`
	Alignment         string  `json:"alignment" jsonschema:"enum=left,enum=center,enum=right"`
	VerticalAlignment string  `json:"verticalAlignment" jsonschema:"enum=top,enum=center,enum=bottom"`
	Size              int     `json:"size" jsonschema:"minimum=0"`
	Color             string  `json:"color" jsonschema:"pattern=^[0-9a-fA-F]{6}$"`
	Opacity           float64 `json:"opacity" jsonschema:"minimum=0,maximum=1"`
}

// Dependencies implements component.Config.
func (t *TextRenderer) Dependencies() []string {
	return refs(t.FontAssetID)
}

func textRenderer() *component.Type {
	return component.MustDefine(TextRendererType,
		func() *TextRenderer {
			return &TextRenderer{Text: "Text", Alignment: "center", VerticalAlignment: "center", Size: 32, Color: "ffffff", Opacity: 1}
		},
		component.WithFormatVersion(1),
		component.WithMigration(0, func(raw map[string]any) error {
			if _, ok := raw["verticalAlignment"]; !ok {
				raw["verticalAlignment"] = "center"
			}
			return nil
		}),
	)
}

func addMaterialDefaults(raw map[string]any) error {
	if _, ok := raw["materialType"]; !ok {
		raw["materialType"] = "basic"
	}
	if _, ok := raw["shaderAssetId"]; !ok {
		raw["shaderAssetId"] = ""
	}
	return nil
}

func addOpacityDefaults(raw map[string]any) error {
	if _, ok := raw["color"]; !ok {
		raw["color"] = "ffffff"
	}
	if _, ok := raw["overrideOpacity"]; !ok {
		raw["overrideOpacity"] = false
	}
	if _, ok := raw["opacity"]; !ok {
		raw["opacity"] = 1.0
	}
	return nil
}
