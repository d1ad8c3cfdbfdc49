// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scenio-dev/scenio/internal/filter"
	"github.com/scenio-dev/scenio/internal/vector"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		vectorFile   string
		k            int
		minCertainty float32
		filterExprs  []string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find the nearest embeddings to a query vector",
		Long: `Search reads a JSON array of numbers from --vector-file (or stdin when
omitted) and prints the nearest records as JSON lines.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			query, err := readQueryVector(vectorFile)
			if err != nil {
				return err
			}
			f, err := parseFilterExprs(filterExprs)
			if err != nil {
				return err
			}

			adapter, err := vector.New(ctx, vector.Config{
				Backend:    a.cfg.Vector.Backend,
				Dimensions: a.cfg.Vector.Dimensions,
				Options:    a.cfg.Vector.Options,
			})
			if err != nil {
				return err
			}
			defer func() { _ = adapter.Close() }()

			results, err := adapter.Search(ctx, query, k, vector.SearchOptions{
				Filter:       f,
				MinCertainty: minCertainty,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range results {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vectorFile, "vector-file", "", "JSON file holding the query vector")
	cmd.Flags().IntVarP(&k, "top-k", "k", 10, "number of results")
	cmd.Flags().Float32Var(&minCertainty, "min-certainty", 0, "minimum cosine similarity")
	cmd.Flags().StringArrayVar(&filterExprs, "filter", nil, "metadata filter as field=value (repeatable)")
	return cmd
}

func readQueryVector(path string) ([]float32, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeCLIInputInvalid, "reading query vector")
	}

	var query []float32
	if err := json.Unmarshal(data, &query); err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeCLIInputInvalid,
			"query vector must be a JSON array of numbers")
	}
	return query, nil
}

// parseFilterExprs builds an equality conjunction from field=value pairs.
func parseFilterExprs(exprs []string) (filter.Filter, error) {
	var f filter.Filter
	for _, expr := range exprs {
		field, value, ok := strings.Cut(expr, "=")
		if !ok || field == "" {
			return filter.Filter{}, scenioerr.Errorf(scenioerr.CodeCLIInputInvalid,
				"filter must be field=value, got %q", expr)
		}
		f = f.And(field, filter.OpEq, value)
	}
	return f, nil
}
