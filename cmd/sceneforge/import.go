// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

// Default timeout for the import command.
const defaultImportTimeout = 30 * time.Second

type importConfig struct {
	timeout time.Duration
	replace bool
}

// NewImportCmd creates the import subcommand.
func NewImportCmd() *cobra.Command {
	cfg := &importConfig{}

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Store document files",
		Long: `Check each document file, migrate it to the current format and store it.
Existing documents are skipped unless --replace is set, so running the
command twice does not duplicate anything. Do not replace documents while a
server is editing them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
			defer cancel()

			st, err := openStore(ctx, appCfg.StoreOptions())
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // writes are committed per document
			return runImport(ctx, cmd, st, cfg, args)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultImportTimeout, "timeout for store operations (e.g., 30s, 1m)")
	cmd.Flags().BoolVar(&cfg.replace, "replace", false, "overwrite documents that already exist")

	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, st store.Store, cfg *importConfig, paths []string) error {
	c, err := newChecker()
	if err != nil {
		return err
	}

	imported, skipped := 0, 0
	for _, path := range paths {
		f, err := readDocumentFile(path)
		if err != nil {
			return err
		}
		res := c.check(f.ID, f.Kind, f.Document)
		if res.Err != nil {
			return oops.With("path", path).Wrap(res.Err)
		}

		rec := &store.Record{ID: f.ID, Kind: f.Kind, Data: res.Encoded, UpdatedAt: time.Now().UTC()}
		if cfg.replace {
			err = st.Put(ctx, rec)
		} else {
			err = st.Create(ctx, rec)
		}
		switch {
		case err == nil:
			imported++
			cmd.Printf("Imported %s (%s)\n", f.ID, f.Kind)
			slog.Info("imported document", "document_id", f.ID, "kind", f.Kind, "migrated", res.NeedsMigrate)
		case errutil.Code(err) == store.CodeExists:
			skipped++
			cmd.Printf("Document %s already exists, skipping\n", f.ID)
		default:
			return oops.Code("IMPORT_FAILED").With("path", path).With("document_id", f.ID).Wrap(err)
		}
	}

	cmd.Printf("Import complete: %d imported, %d skipped\n", imported, skipped)
	return nil
}
