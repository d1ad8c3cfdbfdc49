// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package metadata_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/scenio-dev/scenio/internal/filter"
	"github.com/scenio-dev/scenio/internal/metadata"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestAdapters returns one adapter per locally-testable backend so the
// contract tests below run against all of them.
func newTestAdapters(t *testing.T) map[string]metadata.Adapter {
	t.Helper()
	ctx := context.Background()

	memAdapter, err := metadata.New(ctx, metadata.Config{Backend: "memory"})
	require.NoError(t, err)

	sqliteAdapter, err := metadata.New(ctx, metadata.Config{
		Backend: "sqlite",
		Options: map[string]string{"path": filepath.Join(t.TempDir(), "metadata.db")},
	})
	require.NoError(t, err)

	adapters := map[string]metadata.Adapter{
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

func TestInsertGeneratesID(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			id, err := adapter.Insert(ctx, map[string]any{"kind": "chair"})
			require.NoError(t, err)
			assert.NotEmpty(t, id)

			doc, err := adapter.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"kind": "chair"}, doc)
		})
	}
}

func TestInsertHonorsCallerID(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			id, err := adapter.Insert(ctx, map[string]any{"_id": "scene-42", "kind": "room"})
			require.NoError(t, err)
			assert.Equal(t, "scene-42", id)

			doc, err := adapter.Get(ctx, "scene-42")
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"kind": "room"}, doc, "identity key must not leak into the document")

			_, err = adapter.Insert(ctx, map[string]any{"_id": "scene-42"})
			require.Error(t, err)
			assert.True(t, scenioerr.IsConflict(err))
		})
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			_, err := adapter.Get(ctx, "nope")
			require.Error(t, err)
			assert.True(t, scenioerr.IsNotFound(err))
		})
	}
}

func TestQueryFiltersAndOrders(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			seed := []map[string]any{
				{"_id": "c", "kind": "chair", "height": 0.9},
				{"_id": "a", "kind": "chair", "height": 1.1},
				{"_id": "b", "kind": "table", "height": 0.75},
				{"_id": "d", "kind": "lamp"},
			}
			for _, doc := range seed {
				_, err := adapter.Insert(ctx, doc)
				require.NoError(t, err)
			}

			entries, err := adapter.Query(ctx, filter.Eq("kind", "chair"), 0)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, "a", entries[0].ID)
			assert.Equal(t, "c", entries[1].ID)

			entries, err = adapter.Query(ctx,
				filter.Eq("kind", "chair").And("height", filter.OpGt, 1.0), 0)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "a", entries[0].ID)

			// Documents without the filtered field never match, even for ne.
			entries, err = adapter.Query(ctx, filter.Where("height", filter.OpNe, 0.9), 0)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, "a", entries[0].ID)
			assert.Equal(t, "b", entries[1].ID)

			entries, err = adapter.Query(ctx, filter.Filter{}, 2)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, "a", entries[0].ID)
			assert.Equal(t, "b", entries[1].ID)
		})
	}
}

func TestUpdateAppliesMergePatch(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			id, err := adapter.Insert(ctx, map[string]any{
				"kind":  "chair",
				"color": "red",
				"placement": map[string]any{
					"room": "studio",
					"x":    1.0,
				},
			})
			require.NoError(t, err)

			err = adapter.Update(ctx, id, map[string]any{
				"color": nil,
				"placement": map[string]any{
					"x": 2.5,
				},
				"tags": []any{"seating"},
			})
			require.NoError(t, err)

			doc, err := adapter.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{
				"kind": "chair",
				"placement": map[string]any{
					"room": "studio",
					"x":    2.5,
				},
				"tags": []any{"seating"},
			}, doc)
		})
	}
}

func TestQueryInAcceptsTypedSlices(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			_, err := adapter.Insert(ctx, map[string]any{"_id": "c1", "kind": "chair"})
			require.NoError(t, err)
			_, err = adapter.Insert(ctx, map[string]any{"_id": "l1", "kind": "lamp"})
			require.NoError(t, err)

			entries, err := adapter.Query(ctx,
				filter.Where("kind", filter.OpIn, []string{"chair", "table"}), 0)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "c1", entries[0].ID)

			// A scalar is a single-candidate membership test.
			entries, err = adapter.Query(ctx, filter.Where("kind", filter.OpIn, "lamp"), 0)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "l1", entries[0].ID)

			entries, err = adapter.Query(ctx, filter.Where("kind", filter.OpIn, []any{}), 0)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			err := adapter.Update(ctx, "nope", map[string]any{"x": 1.0})
			require.Error(t, err)
			assert.True(t, scenioerr.IsNotFound(err))
		})
	}
}

func TestDeleteAndCount(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			id, err := adapter.Insert(ctx, map[string]any{"kind": "chair"})
			require.NoError(t, err)
			_, err = adapter.Insert(ctx, map[string]any{"kind": "table"})
			require.NoError(t, err)

			n, err := adapter.Count(ctx, filter.Filter{})
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			n, err = adapter.Count(ctx, filter.Eq("kind", "chair"))
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			require.NoError(t, adapter.Delete(ctx, id))

			n, err = adapter.Count(ctx, filter.Eq("kind", "chair"))
			require.NoError(t, err)
			assert.Zero(t, n)

			err = adapter.Delete(ctx, id)
			require.Error(t, err)
			assert.True(t, scenioerr.IsNotFound(err), "second delete must report not-found, got %v", err)
		})
	}
}

func TestOperationsAfterCloseFail(t *testing.T) {
	ctx := context.Background()

	adapter, err := metadata.New(ctx, metadata.Config{Backend: "memory"})
	require.NoError(t, err)
	require.NoError(t, adapter.Close())
	require.NoError(t, adapter.Close(), "close must be idempotent")

	_, err = adapter.Insert(ctx, map[string]any{"kind": "chair"})
	assert.True(t, scenioerr.IsClosed(err))

	_, err = adapter.Get(ctx, "x")
	assert.True(t, scenioerr.IsClosed(err))
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := metadata.New(context.Background(), metadata.Config{Backend: "postgres"})
	require.Error(t, err)
	assert.True(t, scenioerr.IsConfigurationError(err))
}

func TestBackendsIncludesBuiltins(t *testing.T) {
	assert.Subset(t, metadata.Backends(), []string{"memory", "sqlite", "mongodb", "mongo"})
}

func TestCloseIsSafeDuringConcurrentInserts(t *testing.T) {
	ctx := context.Background()

	adapter, err := metadata.New(ctx, metadata.Config{Backend: "memory"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := adapter.Insert(ctx, map[string]any{"n": float64(j)}); err != nil {
					assert.True(t, scenioerr.IsClosed(err))
					return
				}
			}
		}()
	}
	require.NoError(t, adapter.Close())
	wg.Wait()
}

func TestInsertRejectsNonStringID(t *testing.T) {
	ctx := context.Background()

	for name, adapter := range newTestAdapters(t) {
		t.Run(name, func(t *testing.T) {
			_, err := adapter.Insert(ctx, map[string]any{"_id": 42})
			require.Error(t, err)
			assert.True(t, scenioerr.IsInvalidInput(err))
		})
	}
}
