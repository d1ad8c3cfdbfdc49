// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

// Package metadata stores scene and asset documents behind a uniform
// adapter interface. Documents are schemaless JSON-like maps addressed by a
// string identifier; queries run a declarative conjunction filter so
// callers never touch backend query syntax.
package metadata

import (
	"context"

	"github.com/scenio-dev/scenio/internal/filter"
)

// Entry pairs a document with its identifier in query results.
type Entry struct {
	ID  string
	Doc map[string]any
}

// Adapter is the contract every metadata backend implements. All
// operations take a context that bounds any backend round trip. Lookup of
// an unknown identifier reports a not-found error, never a nil document.
type Adapter interface {
	// Insert stores doc and returns its identifier. A document may carry
	// its own identity under the "_id" key; otherwise one is generated.
	// Inserting an identifier that already exists reports a conflict.
	Insert(ctx context.Context, doc map[string]any) (string, error)

	// Get returns the document stored under id.
	Get(ctx context.Context, id string) (map[string]any, error)

	// Query returns documents matching f in ascending identifier order.
	// A limit of 0 means unbounded. An empty filter matches everything.
	Query(ctx context.Context, f filter.Filter, limit int) ([]Entry, error)

	// Update applies patch to the document stored under id as a JSON
	// merge patch: keys present in patch replace the stored values, a
	// nil value removes the key, and nested maps merge recursively.
	Update(ctx context.Context, id string, patch map[string]any) error

	// Delete removes the document stored under id.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored documents matching f. The
	// predicate is pushed down to the backend like Query's; an empty
	// filter counts everything.
	Count(ctx context.Context, f filter.Filter) (int64, error)

	// Name returns the backend identity the adapter was built from.
	Name() string

	// Close releases backend resources. Further calls on the adapter
	// fail; Close itself is idempotent.
	Close() error
}

// mergePatch applies patch to doc per RFC 7386 and returns the result.
// Neither input map is modified.
func mergePatch(doc, patch map[string]any) map[string]any {
	out := make(map[string]any, len(doc)+len(patch))
	for k, v := range doc {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		if pm, ok := v.(map[string]any); ok {
			if dm, ok := out[k].(map[string]any); ok {
				out[k] = mergePatch(dm, pm)
				continue
			}
			out[k] = mergePatch(nil, pm)
			continue
		}
		out[k] = v
	}
	return out
}
