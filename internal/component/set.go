// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package component

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/mitchellh/copystructure"
	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/ids"
)

// Component is one typed config attached to a document node.
type Component struct {
	ID     string
	Type   *Type
	Config Config

	deps []string
}

// Dependencies returns the document ids last computed for the component.
func (c *Component) Dependencies() []string {
	return append([]string(nil), c.deps...)
}

// Descriptor is the serialized form of a component.
type Descriptor struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// DependencyListener receives dependency changes of one component.
type DependencyListener func(c *Component, added, removed []string)

// Set is the ordered list of components owned by one node.
type Set struct {
	registry *Registry
	newID    ids.Generator
	onDeps   DependencyListener
	items    []*Component
}

// SetOption configures a Set.
type SetOption func(*Set)

// WithIDGenerator overrides the component id source.
func WithIDGenerator(g ids.Generator) SetOption {
	return func(s *Set) { s.newID = g }
}

// WithDependencyListener installs fn to receive dependency diffs.
func WithDependencyListener(fn DependencyListener) SetOption {
	return func(s *Set) { s.onDeps = fn }
}

// NewSet creates an empty component set resolving types through registry.
func NewSet(registry *Registry, opts ...SetOption) *Set {
	s := &Set{registry: registry, newID: ids.New}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of components.
func (s *Set) Len() int { return len(s.items) }

// Components returns the components in order.
func (s *Set) Components() []*Component {
	return append([]*Component(nil), s.items...)
}

// Get returns the component with id.
func (s *Set) Get(id string) (*Component, error) {
	for _, c := range s.items {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, InvalidComponentError(id)
}

// Add creates a component of typeName with default config at index (nil
// appends). Returns the component and its actual index.
func (s *Set) Add(typeName string, index *int) (*Component, int, error) {
	t, err := s.registry.Lookup(typeName)
	if err != nil {
		return nil, 0, err
	}
	c := &Component{ID: s.newID(), Type: t, Config: t.New()}
	return c, s.insert(c, index), nil
}

// Insert places an already built component, keeping its id. Replicas use
// it to apply server-created components.
func (s *Set) Insert(c *Component, index *int) (int, error) {
	if _, err := s.Get(c.ID); err == nil {
		return 0, oops.Code(CodeInvalidComponent).
			With("component_id", c.ID).
			Errorf("component id already in use: %s", c.ID)
	}
	return s.insert(c, index), nil
}

func (s *Set) insert(c *Component, index *int) int {
	at := len(s.items)
	if index != nil && *index >= 0 && *index < at {
		at = *index
	} else if index != nil && *index < 0 {
		at = 0
	}
	s.items = append(s.items, nil)
	copy(s.items[at+1:], s.items[at:])
	s.items[at] = c
	s.refresh(c)
	return at
}

// Remove deletes a component and releases its dependencies.
func (s *Set) Remove(id string) error {
	for i, c := range s.items {
		if c.ID != id {
			continue
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		s.release(c)
		return nil
	}
	return InvalidComponentError(id)
}

// Clear removes every component, releasing dependencies in order.
func (s *Set) Clear() {
	items := s.items
	s.items = nil
	for _, c := range items {
		s.release(c)
	}
}

// Dispatch runs the server side of command on component id and returns
// the result to broadcast.
func (s *Set) Dispatch(ctx context.Context, id, command string, args json.RawMessage) (json.RawMessage, error) {
	c, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	cmd, err := c.Type.Command(command)
	if err != nil {
		return nil, err
	}
	result, err := cmd.Server(ctx, c, args)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, oops.With("command", command).Wrapf(err, "encode result")
	}
	s.refresh(c)
	return data, nil
}

// Replay applies the client side of command with a server result.
func (s *Set) Replay(id, command string, result json.RawMessage) error {
	c, err := s.Get(id)
	if err != nil {
		return err
	}
	cmd, err := c.Type.Command(command)
	if err != nil {
		return err
	}
	if err := cmd.Client(c, result); err != nil {
		return err
	}
	s.refresh(c)
	return nil
}

// Encode returns the descriptors of every component in order.
func (s *Set) Encode() ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(s.items))
	for _, c := range s.items {
		d, err := Encode(c)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Load appends components decoded from descriptors.
func (s *Set) Load(descriptors []Descriptor) error {
	for _, d := range descriptors {
		c, err := Decode(s.registry, d)
		if err != nil {
			return err
		}
		if _, err := s.Insert(c, nil); err != nil {
			return err
		}
	}
	return nil
}

// CloneFrom appends deep copies of src's components with fresh ids.
func (s *Set) CloneFrom(src *Set) error {
	for _, c := range src.items {
		d, err := Encode(c)
		if err != nil {
			return err
		}
		copied, err := copystructure.Copy(d.Config)
		if err != nil {
			return oops.Wrapf(err, "clone component config")
		}
		d.ID = s.newID()
		d.Config = copied.(map[string]any)
		clone, err := Decode(s.registry, d)
		if err != nil {
			return err
		}
		if _, err := s.Insert(clone, nil); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializes a component.
func Encode(c *Component) (Descriptor, error) {
	raw, err := c.Type.Encode(c.Config)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{ID: c.ID, Type: c.Type.Name, Config: raw}, nil
}

// Decode builds a component from its descriptor.
func Decode(registry *Registry, d Descriptor) (*Component, error) {
	t, err := registry.Lookup(d.Type)
	if err != nil {
		return nil, err
	}
	cfg, err := t.Decode(d.Config)
	if err != nil {
		return nil, err
	}
	return &Component{ID: d.ID, Type: t, Config: cfg}, nil
}

func (s *Set) refresh(c *Component) {
	next := dedupe(c.Config.Dependencies())
	added, removed := diff(c.deps, next)
	c.deps = next
	if s.onDeps != nil && (len(added) > 0 || len(removed) > 0) {
		s.onDeps(c, added, removed)
	}
}

func (s *Set) release(c *Component) {
	removed := c.deps
	c.deps = nil
	if s.onDeps != nil && len(removed) > 0 {
		s.onDeps(c, nil, removed)
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func diff(prev, next []string) (added, removed []string) {
	had := make(map[string]bool, len(prev))
	for _, id := range prev {
		had[id] = true
	}
	has := make(map[string]bool, len(next))
	for _, id := range next {
		has[id] = true
		if !had[id] {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if !has[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}
