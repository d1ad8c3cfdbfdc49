// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package vector_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/scenio-dev/scenio/internal/filter"
	"github.com/scenio-dev/scenio/internal/vector"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 3

// newTestAdapters returns one adapter per locally-testable backend so the
// contract tests below run against all of them.
func newTestAdapters(t *testing.T) map[string]vector.Adapter {
	t.Helper()
	ctx := context.Background()

	memAdapter, err := vector.New(ctx, vector.Config{Backend: "memory", Dimensions: testDims})
	require.NoError(t, err)

	sqliteAdapter, err := vector.New(ctx, vector.Config{
		Backend:    "sqlite",
		Dimensions: testDims,
		Options:    map[string]string{"path": filepath.Join(t.TempDir(), "vectors.db")},
	})
	require.NoError(t, err)

	adapters := map[string]vector.Adapter{
		"memory": memAdapter,
		"sqlite": sqliteAdapter,
	}
	t.Cleanup(func() {
		for _, a := range adapters {
			_ = a.Close()
		}
	})
	return adapters
}

func seedScene(t *testing.T, ctx context.Context, a vector.Adapter) {
	t.Helper()
	recs := []vector.Record{
		{ID: "chair", Embedding: []float32{1, 0, 0}, Metadata: map[string]any{"kind": "seating"}},
		{ID: "stool", Embedding: []float32{0.8, 0.6, 0}, Metadata: map[string]any{"kind": "seating"}},
		{ID: "lamp", Embedding: []float32{0, 1, 0}, Metadata: map[string]any{"kind": "lighting"}},
	}
	statuses, err := a.InsertBatch(ctx, recs)
	require.NoError(t, err)
	for _, st := range statuses {
		require.NoError(t, st.Err)
	}
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			seedScene(t, ctx, adapter)

			results, err := adapter.Search(ctx, []float32{1, 0, 0}, 2,
				vector.SearchOptions{MinCertainty: 0.5})
			require.NoError(t, err)

			require.Len(t, results, 2)
			assert.Equal(t, "chair", results[0].ID)
			assert.InDelta(t, 1.0, results[0].Score, 1e-5)
			assert.Equal(t, "stool", results[1].ID)
			assert.InDelta(t, 0.8, results[1].Score, 1e-5)
			assert.Equal(t, map[string]any{"kind": "seating"}, results[1].Metadata)
		})
	}
}

func TestSearchSimilarityFloorDropsDistantResults(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			seedScene(t, ctx, adapter)

			// k allows three results, but only two clear the floor.
			results, err := adapter.Search(ctx, []float32{1, 0, 0}, 3,
				vector.SearchOptions{MinCertainty: 0.5})
			require.NoError(t, err)
			require.Len(t, results, 2)
		})
	}
}

func TestSearchFilterRunsBeforeRanking(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			seedScene(t, ctx, adapter)

			// The nearest records are both seating; the filter must surface
			// the lighting record even though it would never make top-1.
			results, err := adapter.Search(ctx, []float32{1, 0, 0}, 1,
				vector.SearchOptions{Filter: filter.Eq("kind", "lighting")})
			require.NoError(t, err)

			require.Len(t, results, 1)
			assert.Equal(t, "lamp", results[0].ID)
			assert.InDelta(t, 0.0, results[0].Score, 1e-5)
		})
	}
}

func TestSearchTieBreaksOnAscendingID(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"b", "a", "c"} {
				require.NoError(t, adapter.Insert(ctx, vector.Record{
					ID:        id,
					Embedding: []float32{0, 0, 1},
				}))
			}

			results, err := adapter.Search(ctx, []float32{0, 0, 1}, 3, vector.SearchOptions{})
			require.NoError(t, err)

			require.Len(t, results, 3)
			assert.Equal(t, "a", results[0].ID)
			assert.Equal(t, "b", results[1].ID)
			assert.Equal(t, "c", results[2].ID)
		})
	}
}

func TestInsertReplacesExistingRecord(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, adapter.Insert(ctx, vector.Record{
				ID: "chair", Embedding: []float32{1, 0, 0},
			}))
			require.NoError(t, adapter.Insert(ctx, vector.Record{
				ID: "chair", Embedding: []float32{0, 1, 0},
			}))

			n, err := adapter.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			results, err := adapter.Search(ctx, []float32{0, 1, 0}, 1, vector.SearchOptions{})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.InDelta(t, 1.0, results[0].Score, 1e-5)
		})
	}
}

func TestInsertWrongDimensionLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			err := adapter.Insert(ctx, vector.Record{ID: "bad", Embedding: []float32{1, 0}})
			require.Error(t, err)
			assert.True(t, scenioerr.IsDimensionMismatch(err))

			n, err := adapter.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestInsertBatchReportsPerRecordStatus(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			statuses, err := adapter.InsertBatch(ctx, []vector.Record{
				{ID: "ok-1", Embedding: []float32{1, 0, 0}},
				{ID: "bad", Embedding: []float32{1, 0}},
				{ID: "ok-2", Embedding: []float32{0, 1, 0}},
			})
			require.NoError(t, err)

			require.Len(t, statuses, 3)
			assert.NoError(t, statuses[0].Err)
			assert.True(t, scenioerr.IsDimensionMismatch(statuses[1].Err))
			assert.NoError(t, statuses[2].Err)

			n, err := adapter.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n, "failed record must not be stored")
		})
	}
}

func TestDeleteRemovesRecordsAndIgnoresUnknown(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			seedScene(t, ctx, adapter)

			require.NoError(t, adapter.Delete(ctx, []string{"chair", "ghost"}))

			n, err := adapter.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			results, err := adapter.Search(ctx, []float32{1, 0, 0}, 3, vector.SearchOptions{})
			require.NoError(t, err)
			for _, r := range results {
				assert.NotEqual(t, "chair", r.ID)
			}
		})
	}
}

func TestSearchRejectsBadArguments(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			_, err := adapter.Search(ctx, []float32{1, 0, 0}, 0, vector.SearchOptions{})
			require.Error(t, err)
			assert.True(t, scenioerr.IsInvalidInput(err))

			_, err = adapter.Search(ctx, []float32{1, 0}, 1, vector.SearchOptions{})
			require.Error(t, err)
			assert.True(t, scenioerr.IsDimensionMismatch(err))
		})
	}
}

func TestOperationsAfterCloseFail(t *testing.T) {
	ctx := context.Background()

	adapter, err := vector.New(ctx, vector.Config{Backend: "memory", Dimensions: testDims})
	require.NoError(t, err)
	require.NoError(t, adapter.Close())
	require.NoError(t, adapter.Close(), "close must be idempotent")

	err = adapter.Insert(ctx, vector.Record{ID: "x", Embedding: []float32{1, 0, 0}})
	assert.True(t, scenioerr.IsClosed(err))

	_, err = adapter.Search(ctx, []float32{1, 0, 0}, 1, vector.SearchOptions{})
	assert.True(t, scenioerr.IsClosed(err))
}

func TestCloseIsSafeDuringConcurrentInserts(t *testing.T) {
	ctx := context.Background()

	adapter, err := vector.New(ctx, vector.Config{Backend: "memory", Dimensions: testDims})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rec := vector.Record{
					ID:        fmt.Sprintf("r-%d-%d", worker, j),
					Embedding: []float32{1, 0, 0},
				}
				if err := adapter.Insert(ctx, rec); err != nil {
					assert.True(t, scenioerr.IsClosed(err))
					return
				}
			}
		}(i)
	}
	require.NoError(t, adapter.Close())
	wg.Wait()
}

func TestNewValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := vector.New(ctx, vector.Config{Backend: "pinecone", Dimensions: testDims})
	require.Error(t, err)
	assert.True(t, scenioerr.IsConfigurationError(err))

	_, err = vector.New(ctx, vector.Config{Backend: "memory", Dimensions: 0})
	require.Error(t, err)
	assert.True(t, scenioerr.IsConfigurationError(err))
}
