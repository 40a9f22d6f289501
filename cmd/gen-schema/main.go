// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Command gen-schema writes the JSON Schema of every built-in component
// config to schemas/components.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/component"
	"github.com/sceneforge/sceneforge/internal/component/builtin"
)

func main() {
	reg, err := builtin.NewRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building registry: %v\n", err)
		os.Exit(1)
	}

	paths, err := generate(filepath.Join("schemas", "components"), reg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schemas: %v\n", err)
		os.Exit(1)
	}
	for _, p := range paths {
		fmt.Printf("Generated %s\n", p)
	}
}

// generate writes one indented <name>.schema.json per registered type.
func generate(dir string, reg *component.Registry) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, oops.With("dir", dir).Wrapf(err, "create directory")
	}
	var paths []string
	for _, name := range reg.Names() {
		t, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, t.Schema(), "", "  "); err != nil {
			return nil, oops.With("type", name).Wrapf(err, "format schema")
		}
		buf.WriteByte('\n')

		path := filepath.Join(dir, name+".schema.json")
		if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
			return nil, oops.With("path", path).Wrapf(err, "write schema")
		}
		paths = append(paths, path)
	}
	return paths, nil
}
