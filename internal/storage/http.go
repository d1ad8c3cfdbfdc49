// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package storage

import (
	"context"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	RegisterBackend("http", newHTTPAdapter)
}

// httpAdapter serves objects from a remote dataset host over plain HTTP(S).
// It is read-only: writes, deletes, and listing are rejected rather than
// silently no-oped. Reads stream straight off the response body, so it is
// the backend of choice for large remote datasets.
type httpAdapter struct {
	base   *url.URL
	client *http.Client
	closed atomic.Bool
}

func newHTTPAdapter(_ context.Context, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("http", opts, "base_url"); err != nil {
		return nil, err
	}
	if err := requireOptions("http", opts, "base_url"); err != nil {
		return nil, err
	}

	base, err := url.Parse(opts["base_url"])
	if err != nil {
		return nil, scenioerr.Wrapf(err, scenioerr.CodeConfigValidateInvalidValue,
			"parsing base_url %q", opts["base_url"])
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, optionError("http", "base_url must use http or https scheme")
	}

	return &httpAdapter{base: base, client: &http.Client{}}, nil
}

func (a *httpAdapter) Name() string { return "http" }

func (a *httpAdapter) guard() error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeStorageAdapterClosed,
			"storage adapter is closed", scenioerr.FieldBackend("http"))
	}
	return nil
}

func (a *httpAdapter) objectURL(p string) string {
	u := *a.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + p
	return u.String()
}

func (a *httpAdapter) get(ctx context.Context, p string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.objectURL(p), nil)
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeStoragePathInvalid, "building request", scenioerr.FieldPath(p))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"fetching object", scenioerr.FieldBackend("http"), scenioerr.FieldPath(p))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, scenioerr.New(scenioerr.CodeStorageObjectNotFound,
			"object not found", scenioerr.FieldBackend("http"), scenioerr.FieldPath(p))
	default:
		_ = resp.Body.Close()
		return nil, scenioerr.Errorf(scenioerr.CodeStorageConnectionFailure,
			"unexpected status %d fetching %s", resp.StatusCode, p)
	}
}

func (a *httpAdapter) Read(ctx context.Context, p string) ([]byte, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	body, err := a.get(ctx, p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"reading response body", scenioerr.FieldPath(p))
	}
	return data, nil
}

func (a *httpAdapter) Write(ctx context.Context, p string, data []byte) error {
	if err := a.guard(); err != nil {
		return err
	}
	return scenioerr.New(scenioerr.CodeStorageBackendUnsupported,
		"http storage is read-only: write not supported", scenioerr.FieldPath(p))
}

func (a *httpAdapter) List(ctx context.Context, prefix string) ([]string, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	return nil, scenioerr.New(scenioerr.CodeStorageBackendUnsupported,
		"http storage does not support listing")
}

func (a *httpAdapter) Exists(ctx context.Context, p string) (bool, error) {
	if err := a.guard(); err != nil {
		return false, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.objectURL(p), nil)
	if err != nil {
		return false, scenioerr.Wrap(err, scenioerr.CodeStoragePathInvalid, "building request", scenioerr.FieldPath(p))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return false, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"checking object", scenioerr.FieldBackend("http"), scenioerr.FieldPath(p))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, scenioerr.Errorf(scenioerr.CodeStorageConnectionFailure,
			"unexpected status %d checking %s", resp.StatusCode, p)
	}
}

func (a *httpAdapter) Delete(ctx context.Context, p string) error {
	if err := a.guard(); err != nil {
		return err
	}
	return scenioerr.New(scenioerr.CodeStorageBackendUnsupported,
		"http storage is read-only: delete not supported", scenioerr.FieldPath(p))
}

func (a *httpAdapter) StreamRead(ctx context.Context, p string, chunkSize int) (iter.Seq2[[]byte, error], error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	body, err := a.get(ctx, p)
	if err != nil {
		return nil, err
	}
	return chunked(body, chunkSize), nil
}

func (a *httpAdapter) Close() error {
	if !a.closed.Swap(true) {
		a.client.CloseIdleConnections()
	}
	return nil
}
