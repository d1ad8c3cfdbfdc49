// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scenio-dev/scenio/internal/metadata"
	"github.com/scenio-dev/scenio/internal/vector"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

// newDoctorCmd checks that every configured backend can actually be
// constructed, so misconfiguration surfaces before a long experiment run.
func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that all configured backends are reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			var failures []error

			if adapter, err := a.openStorage(ctx); err != nil {
				failures = append(failures, err)
				fmt.Fprintf(out, "storage: FAIL (%v)\n", err)
			} else {
				fmt.Fprintf(out, "storage: ok (%s)\n", adapter.Name())
				_ = adapter.Close()
			}

			if adapter, err := metadata.New(ctx, metadata.Config{
				Backend: a.cfg.Metadata.Backend,
				Options: a.cfg.Metadata.Options,
			}); err != nil {
				failures = append(failures, err)
				fmt.Fprintf(out, "metadata: FAIL (%v)\n", err)
			} else {
				fmt.Fprintf(out, "metadata: ok (%s)\n", adapter.Name())
				_ = adapter.Close()
			}

			if adapter, err := vector.New(ctx, vector.Config{
				Backend:    a.cfg.Vector.Backend,
				Dimensions: a.cfg.Vector.Dimensions,
				Options:    a.cfg.Vector.Options,
			}); err != nil {
				failures = append(failures, err)
				fmt.Fprintf(out, "vector: FAIL (%v)\n", err)
			} else {
				fmt.Fprintf(out, "vector: ok (%s, %d dimensions)\n", adapter.Name(), adapter.Dimensions())
				_ = adapter.Close()
			}

			if len(failures) > 0 {
				return scenioerr.Join(failures...)
			}
			return nil
		},
	}
}
