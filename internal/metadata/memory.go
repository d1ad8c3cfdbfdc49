// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package metadata

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/scenio-dev/scenio/internal/filter"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	RegisterBackend("memory", newMemoryAdapter)
}

// memoryAdapter keeps documents in a process-local map. It is the
// reference implementation the backend contract tests are written against
// and the default for experiments that need no persistence.
type memoryAdapter struct {
	mu     sync.RWMutex
	docs   map[string]map[string]any
	closed atomic.Bool
}

func newMemoryAdapter(_ context.Context, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("memory", opts); err != nil {
		return nil, err
	}
	return &memoryAdapter{docs: map[string]map[string]any{}}, nil
}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) guard(ctx context.Context) error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeMetadataAdapterClosed,
			"metadata adapter is closed", scenioerr.FieldBackend("memory"))
	}
	return ctx.Err()
}

// claimID pulls the caller-supplied identity out of doc, generating one
// when absent, and returns the identifier with the identity-free document.
func claimID(doc map[string]any) (string, map[string]any, error) {
	body := deepCopy(doc)
	raw, ok := body["_id"]
	if !ok {
		return uuid.NewString(), body, nil
	}

	id, ok := raw.(string)
	if !ok || id == "" {
		return "", nil, scenioerr.New(scenioerr.CodeMetadataDocumentInvalid,
			"_id must be a non-empty string")
	}
	delete(body, "_id")
	return id, body, nil
}

func (a *memoryAdapter) Insert(ctx context.Context, doc map[string]any) (string, error) {
	if err := a.guard(ctx); err != nil {
		return "", err
	}
	id, body, err := claimID(doc)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.docs[id]; exists {
		return "", scenioerr.New(scenioerr.CodeMetadataDocumentConflict,
			"document already exists", scenioerr.FieldID(id))
	}
	a.docs[id] = body
	return id, nil
}

func (a *memoryAdapter) Get(ctx context.Context, id string) (map[string]any, error) {
	if err := a.guard(ctx); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	doc, ok := a.docs[id]
	if !ok {
		return nil, notFound("memory", id)
	}
	return deepCopy(doc), nil
}

func (a *memoryAdapter) Query(ctx context.Context, f filter.Filter, limit int) ([]Entry, error) {
	if err := a.guard(ctx); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.docs))
	for id := range a.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var entries []Entry
	for _, id := range ids {
		if !f.Matches(a.docs[id]) {
			continue
		}
		entries = append(entries, Entry{ID: id, Doc: deepCopy(a.docs[id])})
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

func (a *memoryAdapter) Update(ctx context.Context, id string, patch map[string]any) error {
	if err := a.guard(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	doc, ok := a.docs[id]
	if !ok {
		return notFound("memory", id)
	}
	a.docs[id] = mergePatch(doc, deepCopy(patch))
	return nil
}

func (a *memoryAdapter) Delete(ctx context.Context, id string) error {
	if err := a.guard(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.docs[id]; !ok {
		return notFound("memory", id)
	}
	delete(a.docs, id)
	return nil
}

func (a *memoryAdapter) Count(ctx context.Context, f filter.Filter) (int64, error) {
	if err := a.guard(ctx); err != nil {
		return 0, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	var n int64
	for _, doc := range a.docs {
		if f.Matches(doc) {
			n++
		}
	}
	return n, nil
}

func (a *memoryAdapter) Close() error {
	a.closed.Store(true)
	return nil
}

func notFound(backend, id string) error {
	return scenioerr.New(scenioerr.CodeMetadataDocumentNotFound,
		"document not found", scenioerr.FieldBackend(backend), scenioerr.FieldID(id))
}

// deepCopy clones a JSON-like document so callers cannot mutate stored
// state through returned maps.
func deepCopy(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
