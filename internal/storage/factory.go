// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package storage

import (
	"context"
	"sync"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

// Factory constructs an adapter from validated backend options. The context
// bounds any network round trip construction needs (opening a session,
// validating credentials).
type Factory func(ctx context.Context, opts map[string]string) (Adapter, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend. Backend
// files call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend identities.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// New constructs a storage adapter for the configured backend. An unknown
// backend identity fails here, never at first use.
func New(ctx context.Context, cfg Config) (Adapter, error) {
	factoriesMu.RLock()
	factory, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, scenioerr.New(scenioerr.CodeBackendUnknown,
			"unknown storage backend: "+cfg.Backend,
			scenioerr.FieldBackend(cfg.Backend))
	}

	opts := cfg.Options
	if opts == nil {
		opts = map[string]string{}
	}
	return factory(ctx, opts)
}

// NewFromURL constructs a storage adapter from a connection URL, with extra
// options (credentials, region) merged over the parsed ones.
func NewFromURL(ctx context.Context, rawURL string, extra map[string]string) (Adapter, error) {
	cfg, err := ParseURL(rawURL, extra)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}
