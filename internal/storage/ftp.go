// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"net/textproto"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jlaffaye/ftp"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	RegisterBackend("ftp", newFTPAdapter)
}

// ftpAdapter serves files over a single FTP session. FTP multiplexes one
// control connection, so operations are serialized behind a mutex; a
// streaming read holds the session until its data connection drains.
type ftpAdapter struct {
	mu     sync.Mutex
	conn   *ftp.ServerConn
	base   string
	closed atomic.Bool
}

func newFTPAdapter(ctx context.Context, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("ftp", opts, "host", "user", "password", "base_path"); err != nil {
		return nil, err
	}
	if err := requireOptions("ftp", opts, "host"); err != nil {
		return nil, err
	}

	conn, err := ftp.Dial(opts["host"], ftp.DialWithContext(ctx))
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"dialing ftp host", scenioerr.FieldBackend("ftp"))
	}

	user := opts["user"]
	password := opts["password"]
	if user == "" {
		user, password = "anonymous", "anonymous"
	}
	if err := conn.Login(user, password); err != nil {
		_ = conn.Quit()
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"authenticating ftp session", scenioerr.FieldBackend("ftp"))
	}

	return &ftpAdapter{
		conn: conn,
		base: strings.TrimSuffix(opts["base_path"], "/"),
	}, nil
}

func (a *ftpAdapter) Name() string { return "ftp" }

func (a *ftpAdapter) guard() error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeStorageAdapterClosed,
			"storage adapter is closed", scenioerr.FieldBackend("ftp"))
	}
	return nil
}

func (a *ftpAdapter) full(p string) string {
	if a.base == "" {
		return p
	}
	return path.Join(a.base, p)
}

func isFTPNotFound(err error) bool {
	var protoErr *textproto.Error
	return errors.As(err, &protoErr) && protoErr.Code == ftp.StatusFileUnavailable
}

func (a *ftpAdapter) mapError(err error, p, op string) error {
	if isFTPNotFound(err) {
		return scenioerr.New(scenioerr.CodeStorageObjectNotFound,
			"object not found", scenioerr.FieldBackend("ftp"), scenioerr.FieldPath(p))
	}
	return scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure, op,
		scenioerr.FieldBackend("ftp"), scenioerr.FieldPath(p))
}

func (a *ftpAdapter) Read(ctx context.Context, p string) ([]byte, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	resp, err := a.conn.Retr(a.full(p))
	if err != nil {
		return nil, a.mapError(err, p, "retrieving file")
	}
	defer func() { _ = resp.Close() }()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, a.mapError(err, p, "reading file")
	}
	return data, nil
}

func (a *ftpAdapter) Write(ctx context.Context, p string, data []byte) error {
	if err := a.guard(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	full := a.full(p)
	// Parent directories may already exist; MakeDir failures are resolved
	// by the Stor below either way.
	if dir := path.Dir(full); dir != "." && dir != "/" {
		segments := strings.Split(dir, "/")
		for i := range segments {
			_ = a.conn.MakeDir(strings.Join(segments[:i+1], "/"))
		}
	}

	if err := a.conn.Stor(full, bytes.NewReader(data)); err != nil {
		return a.mapError(err, p, "storing file")
	}
	return nil
}

func (a *ftpAdapter) List(ctx context.Context, prefix string) ([]string, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	prefix = strings.TrimPrefix(prefix, "/")

	a.mu.Lock()
	defer a.mu.Unlock()

	root := a.base
	if root == "" {
		root = "."
	}

	var paths []string
	if err := a.walkLocked(root, "", prefix, &paths); err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (a *ftpAdapter) walkLocked(dir, rel, prefix string, out *[]string) error {
	entries, err := a.conn.List(dir)
	if err != nil {
		if isFTPNotFound(err) {
			return nil
		}
		return a.mapError(err, rel, "listing directory")
	}

	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		entryRel := entry.Name
		if rel != "" {
			entryRel = rel + "/" + entry.Name
		}
		switch entry.Type {
		case ftp.EntryTypeFolder:
			if err := a.walkLocked(path.Join(dir, entry.Name), entryRel, prefix, out); err != nil {
				return err
			}
		case ftp.EntryTypeFile:
			if strings.HasPrefix(entryRel, prefix) {
				*out = append(*out, entryRel)
			}
		}
	}
	return nil
}

func (a *ftpAdapter) Exists(ctx context.Context, p string) (bool, error) {
	if err := a.guard(); err != nil {
		return false, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	_, err = a.conn.FileSize(a.full(p))
	if err != nil {
		if isFTPNotFound(err) {
			return false, nil
		}
		return false, a.mapError(err, p, "checking file")
	}
	return true, nil
}

func (a *ftpAdapter) Delete(ctx context.Context, p string) error {
	if err := a.guard(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.conn.Delete(a.full(p)); err != nil {
		return a.mapError(err, p, "deleting file")
	}
	return nil
}

func (a *ftpAdapter) StreamRead(ctx context.Context, p string, chunkSize int) (iter.Seq2[[]byte, error], error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	resp, err := a.conn.Retr(a.full(p))
	if err != nil {
		a.mu.Unlock()
		return nil, a.mapError(err, p, "retrieving file")
	}

	// The session stays locked until the stream is consumed or abandoned;
	// sessionReader releases it exactly once on Close.
	return chunked(&sessionReader{rc: resp, unlock: a.mu.Unlock}, chunkSize), nil
}

func (a *ftpAdapter) Close() error {
	if a.closed.Swap(true) {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn.Quit()
}

// sessionReader wraps a data-connection reader and releases the session
// lock when closed.
type sessionReader struct {
	rc     io.ReadCloser
	unlock func()
	once   sync.Once
}

func (r *sessionReader) Read(p []byte) (int, error) {
	return r.rc.Read(p)
}

func (r *sessionReader) Close() error {
	err := r.rc.Close()
	r.once.Do(r.unlock)
	return err
}
