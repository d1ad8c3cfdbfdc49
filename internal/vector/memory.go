// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package vector

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/scenio-dev/scenio/internal/vecmath"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	RegisterBackend("memory", newMemoryAdapter)
}

// memoryAdapter ranks embeddings with a flat cosine scan. It is exact, needs
// no index, and is the reference implementation the backend contract tests
// are written against.
type memoryAdapter struct {
	mu         sync.RWMutex
	dimensions int
	records    map[string]Record
	closed     atomic.Bool
}

func newMemoryAdapter(_ context.Context, dimensions int, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("memory", opts); err != nil {
		return nil, err
	}
	return &memoryAdapter{
		dimensions: dimensions,
		records:    map[string]Record{},
	}, nil
}

func (a *memoryAdapter) Name() string    { return "memory" }
func (a *memoryAdapter) Dimensions() int { return a.dimensions }

func (a *memoryAdapter) guard(ctx context.Context) error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeVectorAdapterClosed,
			"vector adapter is closed", scenioerr.FieldBackend("memory"))
	}
	return ctx.Err()
}

func (a *memoryAdapter) Insert(ctx context.Context, rec Record) error {
	if err := a.guard(ctx); err != nil {
		return err
	}
	if err := checkDimensions(a.dimensions, rec.Embedding, rec.ID); err != nil {
		return err
	}

	stored := Record{
		ID:        rec.ID,
		Embedding: append([]float32(nil), rec.Embedding...),
		Metadata:  copyMetadata(rec.Metadata),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[rec.ID] = stored
	return nil
}

func (a *memoryAdapter) InsertBatch(ctx context.Context, recs []Record) ([]RecordStatus, error) {
	if err := a.guard(ctx); err != nil {
		return nil, err
	}

	statuses := make([]RecordStatus, len(recs))
	for i, rec := range recs {
		statuses[i] = RecordStatus{ID: rec.ID, Err: a.Insert(ctx, rec)}
	}
	return statuses, nil
}

func (a *memoryAdapter) Search(ctx context.Context, query []float32, k int, opts SearchOptions) ([]SearchResult, error) {
	if err := a.guard(ctx); err != nil {
		return nil, err
	}
	if err := checkQuery(a.dimensions, query, k); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	var results []SearchResult
	for _, rec := range a.records {
		if !opts.Filter.Matches(rec.Metadata) {
			continue
		}
		score := vecmath.Cosine(query, rec.Embedding)
		if score < opts.MinCertainty {
			continue
		}
		results = append(results, SearchResult{
			ID:       rec.ID,
			Score:    score,
			Metadata: copyMetadata(rec.Metadata),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (a *memoryAdapter) Delete(ctx context.Context, ids []string) error {
	if err := a.guard(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		delete(a.records, id)
	}
	return nil
}

func (a *memoryAdapter) Count(ctx context.Context) (int64, error) {
	if err := a.guard(ctx); err != nil {
		return 0, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return int64(len(a.records)), nil
}

func (a *memoryAdapter) Close() error {
	a.closed.Store(true)
	return nil
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
