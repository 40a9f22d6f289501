// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package component

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/sceneforge/sceneforge/internal/schema"
)

// FormatVersionKey holds a config's format version inside its encoded form.
const FormatVersionKey = "formatVersion"

// SetPropertyCommand is the generic command every type handles.
const SetPropertyCommand = "setProperty"

// Config is the typed payload of a component.
type Config interface {
	// Dependencies lists the document ids the config references.
	Dependencies() []string
}

// Migration upgrades an encoded config from one format version to the next.
type Migration func(raw map[string]any) error

// Command is the server/client handler pair for one component command.
// Server validates and applies args, returning the final result that every
// replica passes to Client.
type Command struct {
	Server func(ctx context.Context, c *Component, args json.RawMessage) (any, error)
	Client func(c *Component, result json.RawMessage) error
}

// Type is one component variant.
type Type struct {
	Name          string
	FormatVersion int

	migrations map[int]Migration
	defaults   func() Config
	schema     *jschema.Schema
	schemaJSON []byte
	commands   map[string]Command
}

// TypeOption configures a Type.
type TypeOption func(*Type)

// WithFormatVersion sets the current config format version.
func WithFormatVersion(v int) TypeOption {
	return func(t *Type) { t.FormatVersion = v }
}

// WithMigration registers the upgrade from version from to from+1.
func WithMigration(from int, m Migration) TypeOption {
	return func(t *Type) { t.migrations[from] = m }
}

// Define builds a component type from the Go struct returned by defaults.
// The struct's JSON shape becomes the config schema.
func Define[T Config](name string, defaults func() T, opts ...TypeOption) (*Type, error) {
	t := &Type{
		Name:       name,
		migrations: make(map[int]Migration),
		defaults:   func() Config { return defaults() },
		commands:   make(map[string]Command),
	}
	for _, opt := range opts {
		opt(t)
	}

	r := jsonschema.Reflector{DoNotReference: true}
	reflected := r.Reflect(defaults())
	reflected.ID = jsonschema.ID("https://sceneforge.dev/schemas/components/" + name + ".json")
	reflected.Title = name

	data, err := json.Marshal(reflected)
	if err != nil {
		return nil, oops.With("component_type", name).Wrapf(err, "marshal config schema")
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, oops.With("component_type", name).Wrapf(err, "parse config schema")
	}
	c := jschema.NewCompiler()
	if err := c.AddResource(string(reflected.ID), doc); err != nil {
		return nil, oops.With("component_type", name).Wrapf(err, "add config schema")
	}
	compiled, err := c.Compile(string(reflected.ID))
	if err != nil {
		return nil, oops.With("component_type", name).Wrapf(err, "compile config schema")
	}
	t.schema = compiled
	t.schemaJSON = data

	t.commands[SetPropertyCommand] = Command{Server: t.serverSetProperty, Client: t.clientSetProperty}
	return t, nil
}

// MustDefine is Define that panics on error, for package-level type tables.
func MustDefine[T Config](name string, defaults func() T, opts ...TypeOption) *Type {
	t, err := Define(name, defaults, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Handle registers a typed command on t. server receives the decoded args
// and returns the result broadcast to every replica; client applies it.
func Handle[T Config, A, R any](
	t *Type,
	name string,
	server func(ctx context.Context, cfg T, args A) (R, error),
	client func(cfg T, result R) error,
) {
	t.commands[name] = Command{
		Server: func(ctx context.Context, c *Component, raw json.RawMessage) (any, error) {
			cfg, err := configAs[T](t, c)
			if err != nil {
				return nil, err
			}
			var args A
			if err := decodeArgs(raw, &args); err != nil {
				return nil, oops.Code(schema.CodeSchemaViolation).
					With("command", name).Wrapf(err, "decode arguments")
			}
			return server(ctx, cfg, args)
		},
		Client: func(c *Component, raw json.RawMessage) error {
			cfg, err := configAs[T](t, c)
			if err != nil {
				return err
			}
			var result R
			if err := decodeArgs(raw, &result); err != nil {
				return oops.With("command", name).Wrapf(err, "decode result")
			}
			return client(cfg, result)
		},
	}
}

// Command returns the handler pair for name.
func (t *Type) Command(name string) (Command, error) {
	cmd, ok := t.commands[name]
	if !ok {
		return Command{}, UnknownCommandError(t.Name, name)
	}
	return cmd, nil
}

// Schema returns the JSON Schema of the config.
func (t *Type) Schema() []byte { return t.schemaJSON }

// New returns a config holding the type's defaults.
func (t *Type) New() Config { return t.defaults() }

// Encode returns the JSON form of cfg tagged with the current format version.
func (t *Type) Encode(cfg Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, oops.With("component_type", t.Name).Wrapf(err, "encode config")
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, oops.With("component_type", t.Name).Wrapf(err, "encode config")
	}
	raw[FormatVersionKey] = float64(t.FormatVersion)
	return raw, nil
}

// Decode validates raw against the config schema and decodes it. Keys
// missing from raw keep their default values.
func (t *Type) Decode(raw map[string]any) (Config, error) {
	base, err := t.Encode(t.defaults())
	if err != nil {
		return nil, err
	}
	delete(base, FormatVersionKey)
	normalized, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range normalized {
		if k != FormatVersionKey {
			base[k] = v
		}
	}

	if err := t.schema.Validate(base); err != nil {
		return nil, oops.Code(schema.CodeSchemaViolation).
			With("component_type", t.Name).
			Wrapf(err, "invalid %s config", t.Name)
	}

	cfg := t.defaults()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, oops.Wrapf(err, "create config decoder")
	}
	if err := dec.Decode(base); err != nil {
		return nil, oops.Code(schema.CodeSchemaViolation).
			With("component_type", t.Name).
			Wrapf(err, "decode %s config", t.Name)
	}
	return cfg, nil
}

// Migrate upgrades raw in place from its stored format version to the
// current one. It reports whether anything changed and is a no-op for
// configs already at the current version.
func (t *Type) Migrate(raw map[string]any) (bool, error) {
	version := 0
	if v, ok := raw[FormatVersionKey].(float64); ok {
		version = int(v)
	}
	if version == t.FormatVersion {
		return false, nil
	}
	if version > t.FormatVersion {
		return false, oops.Code(CodeInvalidComponent).
			With("component_type", t.Name).
			With("format_version", version).
			Errorf("config format version %d is newer than supported %d", version, t.FormatVersion)
	}
	for v := version; v < t.FormatVersion; v++ {
		if m, ok := t.migrations[v]; ok {
			if err := m(raw); err != nil {
				return false, oops.With("component_type", t.Name).With("from_version", v).Wrapf(err, "migrate config")
			}
		}
	}
	raw[FormatVersionKey] = float64(t.FormatVersion)
	return true, nil
}

type setPropertyArgs struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (t *Type) serverSetProperty(_ context.Context, c *Component, args json.RawMessage) (any, error) {
	var a setPropertyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, oops.Code(schema.CodeSchemaViolation).Wrapf(err, "decode arguments")
	}
	cfg, value, err := t.withProperty(c.Config, a.Path, a.Value)
	if err != nil {
		return nil, err
	}
	c.Config = cfg
	return setPropertyArgs{Path: a.Path, Value: value}, nil
}

func (t *Type) clientSetProperty(c *Component, result json.RawMessage) error {
	var a setPropertyArgs
	if err := decodeArgs(result, &a); err != nil {
		return oops.Wrapf(err, "decode result")
	}
	cfg, _, err := t.withProperty(c.Config, a.Path, a.Value)
	if err != nil {
		return err
	}
	c.Config = cfg
	return nil
}

func (t *Type) withProperty(cfg Config, path string, value any) (Config, any, error) {
	raw, err := t.Encode(cfg)
	if err != nil {
		return nil, nil, err
	}
	delete(raw, FormatVersionKey)

	parts := strings.Split(path, ".")
	m := raw
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			return nil, nil, unknownProperty(t.Name, path)
		}
		m = next
	}
	leaf := parts[len(parts)-1]
	if _, ok := m[leaf]; !ok || path == "" {
		return nil, nil, unknownProperty(t.Name, path)
	}
	m[leaf] = value

	updated, err := t.Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	encoded, err := t.Encode(updated)
	if err != nil {
		return nil, nil, err
	}
	actual, _ := lookupPath(encoded, parts)
	return updated, actual, nil
}

func unknownProperty(typeName, path string) error {
	return oops.Code(schema.CodeSchemaViolation).
		With("component_type", typeName).
		With("path", path).
		Errorf("unknown config property: %s", path)
}

func lookupPath(m map[string]any, parts []string) (any, bool) {
	var cur any = m
	for _, part := range parts {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = mm[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func configAs[T Config](t *Type, c *Component) (T, error) {
	cfg, ok := c.Config.(T)
	if !ok {
		var zero T
		return zero, oops.Code(CodeInvalidComponent).
			With("component_type", t.Name).
			Errorf("component %s holds %T", c.ID, c.Config)
	}
	return cfg, nil
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return json.Unmarshal(raw, v)
}

func normalize(raw map[string]any) (map[string]any, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, oops.Wrapf(err, "normalize config")
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, oops.Wrapf(err, "normalize config")
	}
	return out, nil
}
