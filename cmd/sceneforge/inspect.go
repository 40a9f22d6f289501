// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"context"
	"encoding/json"
	"io"
	"sort"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/hub"
	"github.com/sceneforge/sceneforge/internal/scene"
	"github.com/sceneforge/sceneforge/internal/store"
)

// DocumentReport is the inspect output for one document.
type DocumentReport struct {
	ID            string         `json:"id" yaml:"id"`
	Kind          string         `json:"kind" yaml:"kind"`
	FormatVersion int            `json:"formatVersion" yaml:"formatVersion"`
	Meta          map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
	Nodes         int            `json:"nodes" yaml:"nodes"`
	Dependencies  []string       `json:"dependencies" yaml:"dependencies"`
	Referrers     []string       `json:"referrers" yaml:"referrers"`
	Blobs         []string       `json:"blobs,omitempty" yaml:"blobs,omitempty"`
	Tree          []*NodeReport  `json:"tree" yaml:"tree"`
}

// NodeReport describes one node of a DocumentReport.
type NodeReport struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Prefab        string        `json:"prefab,omitempty" yaml:"prefab,omitempty"`
	WorldPosition []float64     `json:"worldPosition,omitempty" yaml:"worldPosition,flow,omitempty"`
	Components    []string      `json:"components,omitempty" yaml:"components,omitempty"`
	Children      []*NodeReport `json:"children,omitempty" yaml:"children,omitempty"`
}

type inspectConfig struct {
	format string
}

// NewInspectCmd creates the inspect subcommand.
func NewInspectCmd() *cobra.Command {
	cfg := &inspectConfig{}

	cmd := &cobra.Command{
		Use:   "inspect DOCUMENT_ID",
		Short: "Print a stored document's structure",
		Long: `Load a document from the store, migrating it in memory, and print its
node tree with components, prefab references and, for scenes, the world
position of every node with prefabs resolved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.format != "yaml" && cfg.format != "json" {
				return oops.Code("INVALID_FORMAT").Errorf("format must be 'yaml' or 'json', got %q", cfg.format)
			}
			appCfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), appCfg.StoreOptions())
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // read-only use

			report, err := inspectDocument(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), cfg.format, report)
		},
	}

	cmd.Flags().StringVar(&cfg.format, "format", "yaml", "output format (yaml or json)")

	return cmd
}

// inspectDocument builds the report of id through a hub over st, so prefab
// references resolve the same way they do while serving.
func inspectDocument(ctx context.Context, st store.Store, id string) (*DocumentReport, error) {
	h, err := hub.New(st)
	if err != nil {
		return nil, err
	}
	if err := h.Start(ctx); err != nil {
		return nil, err
	}
	defer h.Close(ctx) //nolint:errcheck // nothing was modified

	doc, release, err := h.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	report := &DocumentReport{
		ID:            doc.ID,
		Kind:          doc.Kind.Name,
		FormatVersion: doc.Kind.FormatVersion,
		Nodes:         doc.Tree.Len(),
		Dependencies:  h.Graph().Dependencies(id),
		Referrers:     h.Graph().Referrers(id),
		Blobs:         doc.BlobNames(),
	}
	if len(doc.Meta) > 0 {
		report.Meta = doc.Meta
	}
	sort.Strings(report.Blobs)

	var positions map[string][]float64
	if doc.Kind.Name == scene.KindName {
		world, err := scene.WorldPositions(ctx, doc, h.Acquire)
		if err != nil {
			return nil, oops.With("document_id", id).Wrapf(err, "resolve world positions")
		}
		positions = make(map[string][]float64, len(world))
		for nodeID, p := range world {
			positions[nodeID] = []float64{p.X(), p.Y(), p.Z()}
		}
	}

	for _, rootID := range doc.Tree.Roots() {
		report.Tree = append(report.Tree, nodeReport(doc, rootID, positions))
	}
	return report, nil
}

func nodeReport(doc *document.Document, id string, positions map[string][]float64) *NodeReport {
	n, _ := doc.Tree.Get(id)
	r := &NodeReport{ID: n.ID, Name: n.Name, Prefab: scene.PrefabRef(n), WorldPosition: positions[id]}
	if doc.Kind.Options.Components {
		if set, err := doc.Components(id); err == nil {
			for _, c := range set.Components() {
				r.Components = append(r.Components, c.Type.Name)
			}
		}
	}
	for _, child := range n.Children {
		r.Children = append(r.Children, nodeReport(doc, child, positions))
	}
	return r
}

func writeReport(w io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return oops.Wrapf(err, "encode report")
		}
		return nil
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return oops.Wrapf(err, "encode report")
	}
	return enc.Close()
}
