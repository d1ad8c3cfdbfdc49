// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

// Package vector stores object and scene embeddings behind a uniform
// adapter interface. An adapter is fixed to one embedding dimensionality at
// construction; every incoming vector is checked against it before the
// backend is touched. Similarity is cosine throughout: 1.0 is an exact
// directional match, 0.0 orthogonal, negative values anti-correlated.
package vector

import (
	"context"

	"github.com/scenio-dev/scenio/internal/filter"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

// Record is one embedding with its identity and optional metadata.
type Record struct {
	ID        string
	Embedding []float32
	Metadata  map[string]any
}

// RecordStatus reports the outcome of one record in a batch insert. A nil
// Err means the record was stored.
type RecordStatus struct {
	ID  string
	Err error
}

// SearchResult is one nearest-neighbor hit. Score is cosine similarity to
// the query vector.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// SearchOptions narrows a similarity search. The zero value applies no
// metadata filter and a similarity floor of zero, which already excludes
// anti-correlated results.
type SearchOptions struct {
	// Filter restricts candidates by metadata before ranking.
	Filter filter.Filter

	// MinCertainty drops results whose cosine similarity falls below it.
	MinCertainty float32
}

// Adapter is the contract every vector backend implements.
type Adapter interface {
	// Insert stores one record, replacing any existing record with the
	// same identifier.
	Insert(ctx context.Context, rec Record) error

	// InsertBatch stores records individually and reports a status per
	// record in input order. A record that fails (for example on a
	// dimension mismatch) leaves the store unchanged for that record and
	// does not abort the rest of the batch. The returned error is
	// non-nil only when the batch as a whole could not run.
	InsertBatch(ctx context.Context, recs []Record) ([]RecordStatus, error)

	// Search returns the k nearest records to query, best first. The
	// metadata filter applies before ranking, the similarity floor
	// before truncation to k. Equal scores tie-break on ascending
	// identifier so results are deterministic.
	Search(ctx context.Context, query []float32, k int, opts SearchOptions) ([]SearchResult, error)

	// Delete removes the named records and their metadata. Unknown
	// identifiers are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// Dimensions returns the embedding dimensionality the adapter was
	// built with.
	Dimensions() int

	// Name returns the backend identity the adapter was built from.
	Name() string

	// Close releases backend resources. Further calls on the adapter
	// fail; Close itself is idempotent.
	Close() error
}

// checkDimensions rejects a vector whose length differs from the adapter's
// fixed dimensionality.
func checkDimensions(want int, vec []float32, id string) error {
	if len(vec) == want {
		return nil
	}
	attrs := []scenioerr.Attr{
		scenioerr.Field("want", want),
		scenioerr.Field("got", len(vec)),
	}
	if id != "" {
		attrs = append(attrs, scenioerr.FieldID(id))
	}
	return scenioerr.New(scenioerr.CodeVectorDimensionMismatch,
		"embedding dimension mismatch", attrs...)
}

// checkQuery validates the common search arguments.
func checkQuery(dims int, query []float32, k int) error {
	if k <= 0 {
		return scenioerr.Errorf(scenioerr.CodeVectorQueryInvalid, "k must be positive, got %d", k)
	}
	return checkDimensions(dims, query, "")
}
