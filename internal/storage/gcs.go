// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package storage

import (
	"context"
	"errors"
	"io"
	"iter"
	"path"
	"strings"
	"sync/atomic"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	RegisterBackend("gcs", newGCSAdapter)
}

// gcsAdapter stores objects in a Google Cloud Storage bucket under an
// optional key prefix. Credentials come from the "credentials_file" option
// or application default credentials; "anonymous=true" disables
// authentication for public buckets.
type gcsAdapter struct {
	client *gcstorage.Client
	bucket *gcstorage.BucketHandle
	prefix string
	closed atomic.Bool
}

func newGCSAdapter(ctx context.Context, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("gcs", opts, "bucket", "prefix", "credentials_file", "anonymous"); err != nil {
		return nil, err
	}
	if err := requireOptions("gcs", opts, "bucket"); err != nil {
		return nil, err
	}

	var clientOpts []option.ClientOption
	if file := opts["credentials_file"]; file != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(file))
	}
	if opts["anonymous"] == "true" {
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	}

	client, err := gcstorage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"creating GCS client", scenioerr.FieldBackend("gcs"))
	}

	return &gcsAdapter{
		client: client,
		bucket: client.Bucket(opts["bucket"]),
		prefix: strings.Trim(opts["prefix"], "/"),
	}, nil
}

func (a *gcsAdapter) Name() string { return "gcs" }

func (a *gcsAdapter) guard() error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeStorageAdapterClosed,
			"storage adapter is closed", scenioerr.FieldBackend("gcs"))
	}
	return nil
}

func (a *gcsAdapter) object(p string) *gcstorage.ObjectHandle {
	return a.bucket.Object(path.Join(a.prefix, p))
}

func (a *gcsAdapter) mapError(err error, p, op string) error {
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return scenioerr.New(scenioerr.CodeStorageObjectNotFound,
			"object not found", scenioerr.FieldBackend("gcs"), scenioerr.FieldPath(p))
	}
	return scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure, op,
		scenioerr.FieldBackend("gcs"), scenioerr.FieldPath(p))
}

func (a *gcsAdapter) Read(ctx context.Context, p string) ([]byte, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	r, err := a.object(p).NewReader(ctx)
	if err != nil {
		return nil, a.mapError(err, p, "opening object")
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, a.mapError(err, p, "reading object")
	}
	return data, nil
}

func (a *gcsAdapter) Write(ctx context.Context, p string, data []byte) error {
	if err := a.guard(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	w := a.object(p).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return a.mapError(err, p, "writing object")
	}
	// The upload completes on Close; its error is the write's outcome.
	if err := w.Close(); err != nil {
		return a.mapError(err, p, "finalizing object write")
	}
	return nil
}

func (a *gcsAdapter) List(ctx context.Context, prefix string) ([]string, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}

	keyPrefix := path.Join(a.prefix, strings.TrimPrefix(prefix, "/"))
	it := a.bucket.Objects(ctx, &gcstorage.Query{Prefix: keyPrefix})

	var paths []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
				"listing objects", scenioerr.FieldBackend("gcs"))
		}
		name := attrs.Name
		if a.prefix != "" {
			name = strings.TrimPrefix(name, a.prefix+"/")
		}
		paths = append(paths, name)
	}
	return paths, nil
}

func (a *gcsAdapter) Exists(ctx context.Context, p string) (bool, error) {
	if err := a.guard(); err != nil {
		return false, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return false, err
	}

	_, err = a.object(p).Attrs(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"checking object", scenioerr.FieldBackend("gcs"), scenioerr.FieldPath(p))
	}
	return true, nil
}

func (a *gcsAdapter) Delete(ctx context.Context, p string) error {
	if err := a.guard(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	if err := a.object(p).Delete(ctx); err != nil {
		return a.mapError(err, p, "deleting object")
	}
	return nil
}

func (a *gcsAdapter) StreamRead(ctx context.Context, p string, chunkSize int) (iter.Seq2[[]byte, error], error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	r, err := a.object(p).NewReader(ctx)
	if err != nil {
		return nil, a.mapError(err, p, "opening object")
	}
	return chunked(r, chunkSize), nil
}

func (a *gcsAdapter) Close() error {
	if !a.closed.Swap(true) {
		return a.client.Close()
	}
	return nil
}
