// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/component"
	"github.com/sceneforge/sceneforge/internal/component/builtin"
	"github.com/sceneforge/sceneforge/internal/cubicmodel"
	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/scene"
)

// DocumentFile is the on-disk exchange form read by import and validate.
type DocumentFile struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Document json.RawMessage `json:"document"`
}

// readDocumentFile loads a DocumentFile from path.
func readDocumentFile(path string) (*DocumentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("READ_FAILED").With("path", path).Wrap(err)
	}
	var f DocumentFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, oops.Code("INVALID_DOCUMENT_FILE").With("path", path).Wrapf(err, "decode document file")
	}
	if f.ID == "" || f.Kind == "" || len(f.Document) == 0 {
		return nil, oops.Code("INVALID_DOCUMENT_FILE").With("path", path).Errorf("document file needs id, kind and document")
	}
	return &f, nil
}

// checker decodes documents offline, without a hub.
type checker struct {
	kinds    map[string]*document.Kind
	registry *component.Registry
}

func newChecker() (*checker, error) {
	registry, err := builtin.NewRegistry()
	if err != nil {
		return nil, oops.Wrapf(err, "build component registry")
	}
	c := &checker{kinds: make(map[string]*document.Kind), registry: registry}
	for _, k := range []*document.Kind{scene.NewKind(), cubicmodel.NewKind()} {
		c.kinds[k.Name] = k
	}
	return c, nil
}

// checkResult is the outcome of checking one document.
type checkResult struct {
	ID           string
	Kind         string
	NeedsMigrate bool
	Dependencies []string
	Err          error
	// Encoded is the migrated storage form, set when Err is nil.
	Encoded json.RawMessage
}

func (c *checker) check(id, kindName string, data []byte) checkResult {
	res := checkResult{ID: id, Kind: kindName}
	kind, ok := c.kinds[kindName]
	if !ok {
		res.Err = oops.Code("UNKNOWN_KIND").With("kind", kindName).Errorf("unknown document kind %q", kindName)
		return res
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		res.Err = oops.With("document_id", id).Wrapf(err, "decode document")
		return res
	}
	changed, err := document.Migrate(kind, c.registry, raw)
	if err != nil {
		res.Err = err
		return res
	}
	res.NeedsMigrate = changed

	doc, err := document.Decode(kind, id, data, document.WithRegistry(c.registry))
	if err != nil {
		res.Err = err
		return res
	}
	res.Dependencies = doc.Dependencies().IDs()
	if res.Encoded, err = doc.Encode(); err != nil {
		res.Err = err
	}
	return res
}

// referenceProblems reports dependencies on unknown documents and prefab
// cycles among results, keyed by document id.
func referenceProblems(results []checkResult, known map[string]bool) map[string]error {
	problems := make(map[string]error)
	deps := make(map[string][]string, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		deps[r.ID] = r.Dependencies
		for _, dep := range r.Dependencies {
			if !known[dep] {
				problems[r.ID] = oops.Code("MISSING_REFERENCE").
					With("document_id", r.ID).
					With("target_id", dep).
					Errorf("references missing document %s", dep)
				break
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(deps))
	var visit func(id string)
	visit = func(id string) {
		state[id] = visiting
		for _, dep := range deps[id] {
			switch state[dep] {
			case visiting:
				if _, ok := problems[id]; !ok {
					problems[id] = scene.CyclicReferenceError(id, dep)
				}
			case unvisited:
				visit(dep)
			}
		}
		state[id] = done
	}
	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return problems
}
