// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

// Package storage provides uniform byte-oriented file access over pluggable
// backends. Backends register themselves by identity at init time; callers
// construct adapters from a structured Config or an opaque URL and talk to
// every backend through the same Adapter contract.
package storage

import (
	"context"
	"io"
	"iter"
	"strings"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

// DefaultChunkSize is the StreamRead chunk size used when the caller passes
// a non-positive size.
const DefaultChunkSize = 1 << 20 // 1 MiB

// Adapter is the uniform storage contract. Paths are forward-slash keys
// relative to the backend's configured root/bucket/prefix.
//
// Read, Write, and Delete fail with a not-found error when the path is
// absent (for read/delete) and with a connection-failure error when the
// backend is unreachable. Read-only backends reject Write and Delete with
// an unsupported error. After Close, every operation fails with a closed
// error.
type Adapter interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error

	// StreamRead returns a lazy sequence of chunks of at most chunkSize
	// bytes (the final chunk may be shorter). Production is pull-driven:
	// the next chunk is read from the backend only when the consumer asks
	// for it, so arbitrarily large objects never materialize in memory.
	// Breaking out of the loop releases the underlying reader.
	StreamRead(ctx context.Context, path string, chunkSize int) (iter.Seq2[[]byte, error], error)

	// Name returns the backend identity (e.g. "file", "s3").
	Name() string

	// Close releases the adapter's connection or session. Close is
	// idempotent.
	Close() error
}

// chunked converts a reader into a pull-driven chunk sequence. The reader
// is closed when the sequence terminates or the consumer stops early.
func chunked(rc io.ReadCloser, chunkSize int) iter.Seq2[[]byte, error] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return func(yield func([]byte, error) bool) {
		defer func() { _ = rc.Close() }()

		for {
			buf := make([]byte, chunkSize)
			n, err := io.ReadFull(rc, buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return
			}
			if err != nil {
				yield(nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure, "streaming object"))
				return
			}
		}
	}
}

// cleanPath validates and normalizes a caller-supplied path. Empty paths and
// paths escaping the backend root are programmer errors, distinct from the
// backend-condition errors.
func cleanPath(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", scenioerr.New(scenioerr.CodeStoragePathInvalid, "path must not be empty")
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", scenioerr.New(scenioerr.CodeStoragePathInvalid, "path must not traverse upward", scenioerr.FieldPath(p))
		}
	}
	return p, nil
}
