// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package document

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/schema"
)

// Options toggles structural features of a document kind.
type Options struct {
	// Components allows typed components on nodes.
	Components bool
	// Prefabs allows nodes to reference other documents as templates.
	Prefabs bool
	// SingleRootWhenReferenced keeps exactly one root node while another
	// document references this one.
	SingleRootWhenReferenced bool
}

// Origin identifies the client that submitted a command.
type Origin struct {
	ClientID string
	Subject  string
}

// Handler is the server/client pair for one document command. Server
// validates args, mutates the document and returns the final arguments
// broadcast to every replica; Client applies those final arguments.
type Handler struct {
	Server func(ctx context.Context, d *Document, origin Origin, args json.RawMessage) (json.RawMessage, error)
	Client func(d *Document, result json.RawMessage) error
}

// Command builds a Handler from typed functions.
func Command[A, R any](
	server func(ctx context.Context, d *Document, origin Origin, args A) (R, error),
	client func(d *Document, result R) error,
) Handler {
	return Handler{
		Server: func(ctx context.Context, d *Document, origin Origin, raw json.RawMessage) (json.RawMessage, error) {
			var args A
			if err := unmarshal(raw, &args); err != nil {
				return nil, oops.Code(schema.CodeSchemaViolation).Wrapf(err, "decode arguments")
			}
			result, err := server(ctx, d, origin, args)
			if err != nil {
				return nil, err
			}
			data, err := json.Marshal(result)
			if err != nil {
				return nil, oops.Wrapf(err, "encode result")
			}
			return data, nil
		},
		Client: func(d *Document, raw json.RawMessage) error {
			var result R
			if err := unmarshal(raw, &result); err != nil {
				return oops.Wrapf(err, "decode result")
			}
			return client(d, result)
		},
	}
}

// Migration upgrades a raw document from one format version to the next.
type Migration func(raw map[string]any) error

// Summary is the state of a document other documents may inspect while it
// is being edited.
type Summary struct {
	Roots   int
	Prefabs []string
}

// Kind describes one document type: its schema, structure and commands.
type Kind struct {
	Name          string
	FormatVersion int
	Schema        schema.Schema
	Options       Options

	meta       map[string]any
	migrations map[int]Migration
	handlers   map[string]Handler
	setup      []func(d *Document)
	loaded     []func(d *Document)
	summarize  func(d *Document) []string
}

// KindOption configures a Kind.
type KindOption func(*Kind)

// WithMigration registers the upgrade from version from to from+1.
func WithMigration(from int, m Migration) KindOption {
	return func(k *Kind) { k.migrations[from] = m }
}

// WithMeta sets document level fields and their defaults.
func WithMeta(defaults map[string]any) KindOption {
	return func(k *Kind) { k.meta = defaults }
}

// WithSetup runs fn on every new or decoded document before it is used.
func WithSetup(fn func(d *Document)) KindOption {
	return func(k *Kind) { k.setup = append(k.setup, fn) }
}

// WithLoad runs fn on every decoded document once its nodes and
// components are in place.
func WithLoad(fn func(d *Document)) KindOption {
	return func(k *Kind) { k.loaded = append(k.loaded, fn) }
}

// WithPrefabRefs supplies the prefab references published in Summary.
func WithPrefabRefs(fn func(d *Document) []string) KindOption {
	return func(k *Kind) { k.summarize = fn }
}

// NewKind creates a document kind.
func NewKind(name string, formatVersion int, sch schema.Schema, opts Options, kindOpts ...KindOption) *Kind {
	k := &Kind{
		Name:          name,
		FormatVersion: formatVersion,
		Schema:        sch,
		Options:       opts,
		meta:          map[string]any{},
		migrations:    make(map[int]Migration),
		handlers:      make(map[string]Handler),
	}
	for _, opt := range kindOpts {
		opt(k)
	}
	return k
}

// Register adds a command. Names must be unique within the kind.
func (k *Kind) Register(name string, h Handler) error {
	if _, exists := k.handlers[name]; exists {
		return oops.With("kind", k.Name).With("command", name).Errorf("command already registered: %s", name)
	}
	k.handlers[name] = h
	return nil
}

// MustRegister is Register that panics, for kind constructors.
func (k *Kind) MustRegister(name string, h Handler) {
	if err := k.Register(name, h); err != nil {
		panic(err)
	}
}

// Handler returns the handler for name.
func (k *Kind) Handler(name string) (Handler, error) {
	h, ok := k.handlers[name]
	if !ok {
		return Handler{}, UnknownCommandError(k.Name, name)
	}
	return h, nil
}

// Commands returns the registered command names, sorted.
func (k *Kind) Commands() []string {
	names := make([]string, 0, len(k.handlers))
	for name := range k.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return json.Unmarshal(raw, v)
}
