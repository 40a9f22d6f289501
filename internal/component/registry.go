// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package component

import (
	"sort"

	"github.com/samber/oops"
)

// Registry maps component type names to their definitions. It is built once
// at startup and passed to every document that resolves component types.
type Registry struct {
	types map[string]*Type
}

// NewRegistry creates a registry holding types.
func NewRegistry(types ...*Type) (*Registry, error) {
	r := &Registry{types: make(map[string]*Type)}
	for _, t := range types {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a type. Names must be unique.
func (r *Registry) Register(t *Type) error {
	if t == nil || t.Name == "" {
		return oops.Code(CodeUnknownComponentType).Errorf("component type must have a name")
	}
	if _, exists := r.types[t.Name]; exists {
		return oops.Code(CodeUnknownComponentType).
			With("component_type", t.Name).
			Errorf("component type already registered: %s", t.Name)
	}
	r.types[t.Name] = t
	return nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*Type, error) {
	t, ok := r.types[name]
	if !ok {
		return nil, UnknownTypeError(name)
	}
	return t, nil
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
