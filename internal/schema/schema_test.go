// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package schema_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneforge/sceneforge/internal/schema"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

func nodeSchema() schema.Schema {
	return schema.Schema{
		"name":     {Type: schema.TypeString, Mutable: true, Trim: true, MinLength: schema.Int(1), MaxLength: schema.Int(8)},
		"position": schema.Vec3(),
		"layer":    {Type: schema.TypeInteger, Mutable: true, Min: schema.Float(0)},
		"visible":  {Type: schema.TypeBoolean, Mutable: true},
		"kind":     {Type: schema.TypeEnum, Items: []string{"box", "plane"}},
		"prefab": {Type: schema.TypeHash, Nullable: true, Mutable: true, Properties: map[string]*schema.Rule{
			"sceneAssetId": {Type: schema.TypeString, Nullable: true, Mutable: true},
		}},
		"tags": {Type: schema.TypeArray, Mutable: true, MaxLength: schema.Int(2), Item: &schema.Rule{Type: schema.TypeString}},
		"maps": {Type: schema.TypeHash, Mutable: true, Keys: &schema.Rule{Type: schema.TypeString, MinLength: schema.Int(1)}, Values: &schema.Rule{Type: schema.TypeString, Mutable: true}},
	}
}

func validProps() map[string]any {
	return map[string]any{
		"name":     "cube",
		"position": map[string]any{"x": 1.0, "y": 2, "z": 3.5},
		"layer":    2.0,
		"visible":  true,
		"kind":     "box",
		"prefab":   nil,
		"tags":     []any{"a"},
		"maps":     map[string]any{"albedo": "abc"},
	}
}

func TestValidate_NormalizesAndCopies(t *testing.T) {
	props := validProps()
	props["name"] = "  cube  "

	out, err := nodeSchema().Validate(props)
	require.NoError(t, err)

	assert.Equal(t, "cube", out["name"])
	assert.Equal(t, map[string]any{"x": 1.0, "y": 2.0, "z": 3.5}, out["position"])
	assert.Contains(t, out, "prefab")
	assert.Nil(t, out["prefab"])

	out["position"].(map[string]any)["x"] = 99.0
	assert.Equal(t, 1.0, props["position"].(map[string]any)["x"])
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		path   string
	}{
		{"unknown top-level key", func(p map[string]any) { p["bogus"] = 1 }, "bogus"},
		{"empty name after trim", func(p map[string]any) { p["name"] = "   " }, "name"},
		{"name too long", func(p map[string]any) { p["name"] = "abcdefghi" }, "name"},
		{"missing non-nullable", func(p map[string]any) { delete(p, "visible") }, "visible"},
		{"wrong type", func(p map[string]any) { p["visible"] = "yes" }, "visible"},
		{"non integer layer", func(p map[string]any) { p["layer"] = 1.5 }, "layer"},
		{"layer below min", func(p map[string]any) { p["layer"] = -1 }, "layer"},
		{"nan", func(p map[string]any) { p["position"] = map[string]any{"x": math.NaN(), "y": 0, "z": 0} }, "position.x"},
		{"unknown nested key", func(p map[string]any) { p["position"] = map[string]any{"x": 0, "y": 0, "z": 0, "w": 0} }, "position.w"},
		{"enum value", func(p map[string]any) { p["kind"] = "sphere" }, "kind"},
		{"array too long", func(p map[string]any) { p["tags"] = []any{"a", "b", "c"} }, "tags"},
		{"array item", func(p map[string]any) { p["tags"] = []any{1} }, "tags[0]"},
		{"hash key rule", func(p map[string]any) { p["maps"] = map[string]any{"": "x"} }, "maps."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := validProps()
			tt.mutate(props)

			_, err := nodeSchema().Validate(props)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, schema.CodeSchemaViolation)

			var v *schema.Violation
			require.True(t, errors.As(err, &v))
			assert.Equal(t, tt.path, v.Path)
		})
	}
}

func TestCheck_DottedPath(t *testing.T) {
	s := nodeSchema()

	v, err := s.Check("position.y", 4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	v, err = s.Check("prefab", map[string]any{"sceneAssetId": "scene-1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sceneAssetId": "scene-1"}, v)

	v, err = s.Check("prefab.sceneAssetId", nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCheck_RejectsImmutableAndUnknown(t *testing.T) {
	s := nodeSchema()

	_, err := s.Check("kind", "plane")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, schema.CodeSchemaViolation)
	assert.Contains(t, err.Error(), "immutable")

	_, err = s.Check("position.w", 1)
	errutil.AssertErrorCode(t, err, schema.CodeSchemaViolation)

	_, err = s.Check("visible.deep", true)
	errutil.AssertErrorCode(t, err, schema.CodeSchemaViolation)

	v, err := s.CheckValue("kind", "plane")
	require.NoError(t, err)
	assert.Equal(t, "plane", v)
}

func TestCheck_FreeFormHashValues(t *testing.T) {
	v, err := nodeSchema().Check("maps.normal", "xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", v)

	_, err = nodeSchema().Check("maps.normal", 3)
	errutil.AssertErrorCode(t, err, schema.CodeSchemaViolation)
}

func TestRule_Check(t *testing.T) {
	r := &schema.Rule{Type: schema.TypeNumber, MinExcluded: schema.Float(0), MaxExcluded: schema.Float(1)}

	_, err := r.Check(0.0)
	assert.Error(t, err)
	_, err = r.Check(1.0)
	assert.Error(t, err)
	v, err := r.Check(float32(0.5))
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	anything := &schema.Rule{Type: schema.TypeAny}
	v, err = anything.Check(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}
