// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [FILE...]",
		Short: "Check documents without starting the server",
		Long: `Decode every stored document, or the given document files, and check
their structure, component configs and prefab references. Documents stored
in an older format are reported but still count as valid.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch broken documents early:
  sceneforge validate scenes/*.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newChecker()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				return runValidateFiles(cmd.OutOrStdout(), c, args)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg.StoreOptions())
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // read-only use
			return runValidateStore(cmd.Context(), cmd.OutOrStdout(), c, st)
		},
	}
}

func runValidateFiles(w io.Writer, c *checker, paths []string) error {
	results := make([]checkResult, 0, len(paths))
	known := make(map[string]bool, len(paths))
	for _, path := range paths {
		f, err := readDocumentFile(path)
		if err != nil {
			results = append(results, checkResult{ID: path, Err: err})
			continue
		}
		known[f.ID] = true
		results = append(results, c.check(f.ID, f.Kind, f.Document))
	}
	return report(w, results, known)
}

func runValidateStore(ctx context.Context, w io.Writer, c *checker, st store.Store) error {
	infos, err := st.List(ctx)
	if err != nil {
		return oops.Wrapf(err, "list documents")
	}
	results := make([]checkResult, 0, len(infos))
	known := make(map[string]bool, len(infos))
	for _, info := range infos {
		known[info.ID] = true
		rec, err := st.Get(ctx, info.ID)
		if err != nil {
			results = append(results, checkResult{ID: info.ID, Kind: info.Kind, Err: err})
			continue
		}
		results = append(results, c.check(rec.ID, rec.Kind, rec.Data))
	}
	return report(w, results, known)
}

// report prints one line per document and fails when any is invalid.
func report(w io.Writer, results []checkResult, known map[string]bool) error {
	problems := referenceProblems(results, known)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	//nolint:errcheck // tabwriter buffers; Flush reports failures
	fmt.Fprintln(tw, "DOCUMENT\tKIND\tSTATUS\tDETAIL")
	invalid := 0
	for _, r := range results {
		err := r.Err
		if err == nil {
			err = problems[r.ID]
		}
		status, detail := "ok", ""
		switch {
		case err != nil:
			invalid++
			status = "invalid"
			detail = err.Error()
			if code := errutil.Code(err); code != "" {
				detail = code + ": " + detail
			}
			slog.Debug("document invalid", "document_id", r.ID, "error", err)
		case r.NeedsMigrate:
			status = "outdated"
			detail = "stored in an older format"
		}
		//nolint:errcheck // tabwriter buffers; Flush reports failures
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Kind, status, detail)
	}
	if err := tw.Flush(); err != nil {
		return oops.Wrapf(err, "write report")
	}

	if invalid > 0 {
		return oops.Code("VALIDATION_FAILED").
			With("invalid", invalid).
			Errorf("validation failed: %d of %d documents invalid", invalid, len(results))
	}
	return nil
}
