// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package builtin

import "github.com/sceneforge/sceneforge/internal/component"

// Light is a light source.
type Light struct {
	Type          string      `json:"type" jsonschema:"enum=ambient,enum=point,enum=spot,enum=directional"`
	Color         string      `json:"color" jsonschema:"pattern=^[0-9a-fA-F]{6}$"`
	Intensity     float64     `json:"intensity" jsonschema:"minimum=0"`
	Distance      float64     `json:"distance" jsonschema:"minimum=0"`
	Angle         float64     `json:"angle" jsonschema:"minimum=0,maximum=90"`
	Target        Vec3        `json:"target"`
	CastShadow    bool        `json:"castShadow"`
	ShadowMapSize ShadowMap   `json:"shadowMapSize"`
	ShadowBias    float64     `json:"shadowBias"`
	ShadowCamera  ShadowClips `json:"shadowCamera"`
}

// ShadowMap is a shadow map resolution.
type ShadowMap struct {
	Width  int `json:"width" jsonschema:"minimum=1"`
	Height int `json:"height" jsonschema:"minimum=1"`
}

// ShadowClips bounds the shadow camera.
type ShadowClips struct {
	NearPlane float64 `json:"nearPlane" jsonschema:"minimum=0"`
	FarPlane  float64 `json:"farPlane" jsonschema:"minimum=0"`
	Top       float64 `json:"top"`
	Bottom    float64 `json:"bottom"`
	Left      float64 `json:"left"`
	Right     float64 `json:"right"`
}

// Dependencies implements component.Config.
func (*Light) Dependencies() []string { return nil }

func light() *component.Type {
	return component.MustDefine(LightType, func() *Light {
		return &Light{
			Type: "point", Color: "ffffff", Intensity: 1, Angle: 60,
			ShadowMapSize: ShadowMap{Width: 512, Height: 512},
			ShadowCamera:  ShadowClips{NearPlane: 0.1, FarPlane: 100, Top: 100, Bottom: -100, Left: -100, Right: 100},
		}
	}, component.WithFormatVersion(1))
}

// ArcadeBody2D is an axis aligned physics body description.
type ArcadeBody2D struct {
	Type                string `json:"type" jsonschema:"enum=box,enum=tileMap"`
	Movable             bool   `json:"movable"`
	Size                Vec2   `json:"size"`
	Offset              Vec2   `json:"offset"`
	TileMapAssetID      string `json:"tileMapAssetId"`
	TileSetPropertyName string `json:"tileSetPropertyName"`
	LayersIndex         string `json:"layersIndex"`
}

// Dependencies implements component.Config.
func (a *ArcadeBody2D) Dependencies() []string {
	return refs(a.TileMapAssetID)
}

func arcadeBody2D() *component.Type {
	return component.MustDefine(ArcadeBody2DType, func() *ArcadeBody2D {
		return &ArcadeBody2D{Type: "box", Movable: true, Size: Vec2{X: 1, Y: 1}}
	}, component.WithFormatVersion(1))
}

// Camera renders the scene from its node.
type Camera struct {
	Mode              string   `json:"mode" jsonschema:"enum=perspective,enum=orthographic"`
	FOV               float64  `json:"fov" jsonschema:"exclusiveMinimum=0,maximum=179"`
	OrthographicScale float64  `json:"orthographicScale" jsonschema:"exclusiveMinimum=0"`
	Viewport          Viewport `json:"viewport"`
	Depth             int      `json:"depth"`
	NearClippingPlane float64  `json:"nearClippingPlane" jsonschema:"exclusiveMinimum=0"`
	FarClippingPlane  float64  `json:"farClippingPlane" jsonschema:"exclusiveMinimum=0"`
}

// Viewport is the normalized screen region a camera draws into.
type Viewport struct {
	X      float64 `json:"x" jsonschema:"minimum=0,maximum=1"`
	Y      float64 `json:"y" jsonschema:"minimum=0,maximum=1"`
	Width  float64 `json:"width" jsonschema:"minimum=0,maximum=1"`
	Height float64 `json:"height" jsonschema:"minimum=0,maximum=1"`
}

// Dependencies implements component.Config.
func (*Camera) Dependencies() []string { return nil }

func camera() *component.Type {
	return component.MustDefine(CameraType, func() *Camera {
		return &Camera{
			Mode: "perspective", FOV: 45, OrthographicScale: 10,
			Viewport:          Viewport{Width: 1, Height: 1},
			NearClippingPlane: 0.1, FarClippingPlane: 1000,
		}
	}, component.WithFormatVersion(1))
}
