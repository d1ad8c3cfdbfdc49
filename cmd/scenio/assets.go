// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scenio-dev/scenio/internal/storage"
)

// openStorage builds the storage adapter named by the configuration,
// accepting either the structured backend form or a connection URL.
func (a *app) openStorage(ctx context.Context) (storage.Adapter, error) {
	if a.cfg.Storage.URL != "" {
		return storage.NewFromURL(ctx, a.cfg.Storage.URL, a.cfg.Storage.Options)
	}
	return storage.New(ctx, storage.Config{
		Backend: a.cfg.Storage.Backend,
		Options: a.cfg.Storage.Options,
	})
}

func newAssetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage scene assets in the configured storage backend",
	}

	cmd.AddCommand(
		newAssetsLsCmd(a),
		newAssetsGetCmd(a),
		newAssetsPutCmd(a),
		newAssetsRmCmd(a),
	)
	return cmd
}

func newAssetsLsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List assets, optionally narrowed to a path prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			adapter, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = adapter.Close() }()

			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			paths, err := adapter.List(ctx, prefix)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newAssetsGetCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Fetch an asset and write it to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			adapter, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = adapter.Close() }()

			if output == "" {
				// Stream to stdout so large assets never buffer whole.
				seq, err := adapter.StreamRead(ctx, args[0], storage.DefaultChunkSize)
				if err != nil {
					return err
				}
				for chunk, err := range seq {
					if err != nil {
						return err
					}
					if _, err := cmd.OutOrStdout().Write(chunk); err != nil {
						return err
					}
				}
				return nil
			}

			data, err := adapter.Read(ctx, args[0])
			if err != nil {
				return err
			}
			return os.WriteFile(output, data, 0o644)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the asset to this file instead of stdout")
	return cmd
}

func newAssetsPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file> <path>",
		Short: "Upload a local file as an asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			adapter, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = adapter.Close() }()

			if err := adapter.Write(ctx, args[1], data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%d bytes)\n", args[1], len(data))
			return nil
		},
	}
}

func newAssetsRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			adapter, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = adapter.Close() }()

			return adapter.Delete(ctx, args[0])
		},
	}
}
