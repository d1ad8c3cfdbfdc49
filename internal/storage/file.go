// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package storage

import (
	"context"
	"iter"
	"os"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/spf13/afero"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	RegisterBackend("file", newFileAdapter)
	RegisterBackend("memory", newMemoryAdapter)
}

// fsAdapter serves both the "file" and "memory" identities over an afero
// filesystem: a base-path OS filesystem for "file", an in-memory one for
// "memory" (used by tests and as the reference implementation).
type fsAdapter struct {
	name   string
	fs     afero.Fs
	closed atomic.Bool
}

func newFileAdapter(_ context.Context, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("file", opts, "root"); err != nil {
		return nil, err
	}
	if err := requireOptions("file", opts, "root"); err != nil {
		return nil, err
	}

	root := opts["root"]
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeConfigValidateInvalidValue,
			"creating storage root", scenioerr.FieldPath(root))
	}

	return &fsAdapter{
		name: "file",
		fs:   afero.NewBasePathFs(afero.NewOsFs(), root),
	}, nil
}

func newMemoryAdapter(_ context.Context, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("memory", opts); err != nil {
		return nil, err
	}
	return &fsAdapter{name: "memory", fs: afero.NewMemMapFs()}, nil
}

func (a *fsAdapter) Name() string { return a.name }

func (a *fsAdapter) guard(ctx context.Context) error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeStorageAdapterClosed,
			"storage adapter is closed", scenioerr.FieldBackend(a.name))
	}
	return ctx.Err()
}

// fsPath anchors a cleaned key at the filesystem root so the OS-backed and
// in-memory filesystems resolve keys identically.
func fsPath(p string) string { return "/" + p }

func (a *fsAdapter) Read(ctx context.Context, p string) ([]byte, error) {
	if err := a.guard(ctx); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(a.fs, fsPath(p))
	if err != nil {
		return nil, a.mapError(err, p, "reading object")
	}
	return data, nil
}

func (a *fsAdapter) Write(ctx context.Context, p string, data []byte) error {
	if err := a.guard(ctx); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	if dir := path.Dir(fsPath(p)); dir != "/" {
		if err := a.fs.MkdirAll(dir, 0o755); err != nil {
			return a.mapError(err, p, "creating parent directories")
		}
	}
	if err := afero.WriteFile(a.fs, fsPath(p), data, 0o644); err != nil {
		return a.mapError(err, p, "writing object")
	}
	return nil
}

func (a *fsAdapter) List(ctx context.Context, prefix string) ([]string, error) {
	if err := a.guard(ctx); err != nil {
		return nil, err
	}
	prefix = strings.TrimPrefix(prefix, "/")

	var paths []string
	err := afero.Walk(a.fs, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel := strings.TrimPrefix(p, "/")
		if strings.HasPrefix(rel, prefix) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, a.mapError(err, prefix, "listing objects")
	}

	sort.Strings(paths)
	return paths, nil
}

func (a *fsAdapter) Exists(ctx context.Context, p string) (bool, error) {
	if err := a.guard(ctx); err != nil {
		return false, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return false, err
	}

	ok, err := afero.Exists(a.fs, fsPath(p))
	if err != nil {
		return false, a.mapError(err, p, "checking object")
	}
	return ok, nil
}

func (a *fsAdapter) Delete(ctx context.Context, p string) error {
	if err := a.guard(ctx); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	if err := a.fs.Remove(fsPath(p)); err != nil {
		return a.mapError(err, p, "deleting object")
	}
	return nil
}

func (a *fsAdapter) StreamRead(ctx context.Context, p string, chunkSize int) (iter.Seq2[[]byte, error], error) {
	if err := a.guard(ctx); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	f, err := a.fs.Open(fsPath(p))
	if err != nil {
		return nil, a.mapError(err, p, "opening object")
	}
	return chunked(f, chunkSize), nil
}

func (a *fsAdapter) Close() error {
	a.closed.Store(true)
	return nil
}

func (a *fsAdapter) mapError(err error, p, op string) error {
	if os.IsNotExist(err) {
		return scenioerr.New(scenioerr.CodeStorageObjectNotFound,
			"object not found", scenioerr.FieldBackend(a.name), scenioerr.FieldPath(p))
	}
	return scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure, op,
		scenioerr.FieldBackend(a.name), scenioerr.FieldPath(p))
}
