// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scenio-dev/scenio/internal/config"
)

// app carries the loaded configuration into subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd creates the root scenio command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "scenio",
		Short:         "Scenio is a compositional 3D scene generation toolkit",
		Long:          "Scenio manages scene assets, metadata, and embeddings behind pluggable backends.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.Logging)
			slog.SetDefault(a.logger)
			return nil
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")

	root.AddCommand(
		newAssetsCmd(a),
		newSearchCmd(a),
		newDoctorCmd(a),
		newVersionCmd(),
	)

	return root
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
