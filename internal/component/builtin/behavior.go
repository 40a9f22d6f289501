// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package builtin

import (
	"context"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/component"
	"github.com/sceneforge/sceneforge/internal/schema"
)

// Behavior attaches a scripted behavior class to a node with per-instance
// property overrides.
type Behavior struct {
	BehaviorName   string                   `json:"behaviorName" jsonschema:"maxLength=80"`
	PropertyValues map[string]PropertyValue `json:"propertyValues"`
}

// PropertyValue is one behavior property override.
type PropertyValue struct {
	Type  string `json:"type" jsonschema:"enum=boolean,enum=number,enum=string,enum=Vector2,enum=Vector3,enum=asset"`
	Value any    `json:"value"`
}

// Dependencies implements component.Config. Asset-typed overrides
// reference other documents.
func (b *Behavior) Dependencies() []string {
	var out []string
	for _, v := range b.PropertyValues {
		if id, ok := v.Value.(string); ok && v.Type == "asset" {
			out = append(out, id)
		}
	}
	return refs(out...)
}

// SetBehaviorPropertyArgs overrides one behavior property.
type SetBehaviorPropertyArgs struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// ClearBehaviorPropertyArgs removes one override.
type ClearBehaviorPropertyArgs struct {
	Name string `json:"name"`
}

var behaviorValueRules = map[string]*schema.Rule{
	"boolean": {Type: schema.TypeBoolean},
	"number":  {Type: schema.TypeNumber},
	"string":  {Type: schema.TypeString},
	"asset":   {Type: schema.TypeString, Nullable: true},
	"Vector2": {Type: schema.TypeHash, Properties: map[string]*schema.Rule{
		"x": {Type: schema.TypeNumber}, "y": {Type: schema.TypeNumber},
	}},
	"Vector3": {Type: schema.TypeHash, Properties: map[string]*schema.Rule{
		"x": {Type: schema.TypeNumber}, "y": {Type: schema.TypeNumber}, "z": {Type: schema.TypeNumber},
	}},
}

func behavior() *component.Type {
	t := component.MustDefine(BehaviorType,
		func() *Behavior { return &Behavior{PropertyValues: map[string]PropertyValue{}} },
		component.WithFormatVersion(1),
	)

	component.Handle(t, "setBehaviorPropertyValue",
		func(_ context.Context, cfg *Behavior, args SetBehaviorPropertyArgs) (SetBehaviorPropertyArgs, error) {
			if args.Name == "" {
				return args, oops.Code(schema.CodeSchemaViolation).Errorf("behavior property name must not be empty")
			}
			rule, ok := behaviorValueRules[args.Type]
			if !ok {
				return args, oops.Code(schema.CodeSchemaViolation).
					With("type", args.Type).
					Errorf("unsupported behavior property type: %s", args.Type)
			}
			value, err := rule.Check(args.Value)
			if err != nil {
				return args, err
			}
			args.Value = value
			cfg.setValue(args)
			return args, nil
		},
		func(cfg *Behavior, result SetBehaviorPropertyArgs) error {
			cfg.setValue(result)
			return nil
		},
	)

	component.Handle(t, "clearBehaviorPropertyValue",
		func(_ context.Context, cfg *Behavior, args ClearBehaviorPropertyArgs) (ClearBehaviorPropertyArgs, error) {
			delete(cfg.PropertyValues, args.Name)
			return args, nil
		},
		func(cfg *Behavior, result ClearBehaviorPropertyArgs) error {
			delete(cfg.PropertyValues, result.Name)
			return nil
		},
	)
	return t
}

func (b *Behavior) setValue(args SetBehaviorPropertyArgs) {
	if b.PropertyValues == nil {
		b.PropertyValues = make(map[string]PropertyValue)
	}
	b.PropertyValues[args.Name] = PropertyValue{Type: args.Type, Value: args.Value}
}
