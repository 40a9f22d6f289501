// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sceneforge/sceneforge/internal/config"
	"github.com/sceneforge/sceneforge/internal/logging"
	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/internal/xdg"
)

// serviceName identifies the process in logs.
const serviceName = "sceneforge"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the SceneForge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sceneforge",
		Short: "SceneForge - a collaborative scene document server",
		Long: `SceneForge serves scene and cubic model documents to editing clients
that collaborate in real time over WebSocket, with prefab references between
scenes, pluggable components and PostgreSQL or Redis storage.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewInspectCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewImportCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("sceneforge %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}

// loadConfig reads the config file and the flags of cmd, then installs
// the configured logger. Without --config the file in the XDG config
// directory is used when present.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path, _ = xdg.ConfigFile()
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, oops.Wrapf(err, "invalid configuration")
	}
	if err := logging.SetDefault(cfg.LoggingOptions(serviceName, version)); err != nil {
		return nil, oops.Wrapf(err, "failed to set up logging")
	}
	return cfg, nil
}

// openStore connects to the configured store. Remote backends retry their
// initial connection themselves.
func openStore(ctx context.Context, opts store.Options) (store.Store, error) {
	st, err := store.Open(ctx, opts)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("driver", opts.Driver).Wrap(err)
	}
	return st, nil
}
