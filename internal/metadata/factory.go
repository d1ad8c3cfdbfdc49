// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package metadata

import (
	"context"
	"sync"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

// Config selects a metadata backend identity and its options.
type Config struct {
	Backend string
	Options map[string]string
}

// Factory constructs an adapter from validated backend options.
type Factory func(ctx context.Context, opts map[string]string) (Adapter, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named metadata backend. Backend
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

// New constructs a metadata adapter for the configured backend. An unknown
// backend identity fails here, never at first use.
func New(ctx context.Context, cfg Config) (Adapter, error) {
	factoriesMu.RLock()
	factory, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, scenioerr.New(scenioerr.CodeBackendUnknown,
			"unknown metadata backend: "+cfg.Backend,
			scenioerr.FieldBackend(cfg.Backend))
	}

	opts := cfg.Options
	if opts == nil {
		opts = map[string]string{}
	}
	return factory(ctx, opts)
}

func optionError(backend, msg string) error {
	return scenioerr.New(scenioerr.CodeConfigValidateInvalidValue,
		msg, scenioerr.FieldBackend(backend))
}

func requireOptions(backend string, opts map[string]string, keys ...string) error {
	for _, key := range keys {
		if opts[key] == "" {
			return optionError(backend, "missing required option: "+key)
		}
	}
	return nil
}

func rejectUnknownOptions(backend string, opts map[string]string, known ...string) error {
	allowed := map[string]struct{}{}
	for _, key := range known {
		allowed[key] = struct{}{}
	}
	for key := range opts {
		if _, ok := allowed[key]; !ok {
			return optionError(backend, "unrecognized option: "+key)
		}
	}
	return nil
}
