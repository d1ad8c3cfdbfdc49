// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"path"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	RegisterBackend("s3", newS3Adapter)
}

// s3Adapter stores objects in an S3 (or S3-compatible) bucket under an
// optional key prefix. Credentials come from explicit options or the
// standard AWS credential chain; the "endpoint" option points the client at
// MinIO-style compatible stores.
type s3Adapter struct {
	client *s3.Client
	bucket string
	prefix string
	closed atomic.Bool
}

func newS3Adapter(ctx context.Context, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("s3", opts,
		"bucket", "prefix", "region", "endpoint", "access_key_id", "secret_access_key"); err != nil {
		return nil, err
	}
	if err := requireOptions("s3", opts, "bucket"); err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region := opts["region"]; region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	if ak := opts["access_key_id"]; ak != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, opts["secret_access_key"], "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"loading AWS configuration", scenioerr.FieldBackend("s3"))
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := opts["endpoint"]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3Adapter{
		client: client,
		bucket: opts["bucket"],
		prefix: strings.Trim(opts["prefix"], "/"),
	}, nil
}

func (a *s3Adapter) Name() string { return "s3" }

func (a *s3Adapter) guard() error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeStorageAdapterClosed,
			"storage adapter is closed", scenioerr.FieldBackend("s3"))
	}
	return nil
}

func (a *s3Adapter) key(p string) string {
	return path.Join(a.prefix, p)
}

func (a *s3Adapter) open(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, scenioerr.New(scenioerr.CodeStorageObjectNotFound,
				"object not found", scenioerr.FieldBackend("s3"), scenioerr.FieldPath(p))
		}
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"fetching object", scenioerr.FieldBackend("s3"), scenioerr.FieldPath(p))
	}
	return out.Body, nil
}

func (a *s3Adapter) Read(ctx context.Context, p string) ([]byte, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	body, err := a.open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"reading object body", scenioerr.FieldPath(p))
	}
	return data, nil
}

func (a *s3Adapter) Write(ctx context.Context, p string, data []byte) error {
	if err := a.guard(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"writing object", scenioerr.FieldBackend("s3"), scenioerr.FieldPath(p))
	}
	return nil
}

func (a *s3Adapter) List(ctx context.Context, prefix string) ([]string, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}

	keyPrefix := a.key(strings.TrimPrefix(prefix, "/"))
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(keyPrefix),
	})

	var paths []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
				"listing objects", scenioerr.FieldBackend("s3"))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if a.prefix != "" {
				key = strings.TrimPrefix(key, a.prefix+"/")
			}
			paths = append(paths, key)
		}
	}
	return paths, nil
}

func (a *s3Adapter) Exists(ctx context.Context, p string) (bool, error) {
	if err := a.guard(); err != nil {
		return false, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return false, err
	}

	_, err = a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"checking object", scenioerr.FieldBackend("s3"), scenioerr.FieldPath(p))
	}
	return true, nil
}

func (a *s3Adapter) Delete(ctx context.Context, p string) error {
	if err := a.guard(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	// S3 deletes are idempotent; probe first so deleting an absent key
	// reports not-found instead of silently succeeding.
	ok, err := a.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return scenioerr.New(scenioerr.CodeStorageObjectNotFound,
			"object not found", scenioerr.FieldBackend("s3"), scenioerr.FieldPath(p))
	}

	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
	})
	if err != nil {
		return scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"deleting object", scenioerr.FieldBackend("s3"), scenioerr.FieldPath(p))
	}
	return nil
}

func (a *s3Adapter) StreamRead(ctx context.Context, p string, chunkSize int) (iter.Seq2[[]byte, error], error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	body, err := a.open(ctx, p)
	if err != nil {
		return nil, err
	}
	return chunked(body, chunkSize), nil
}

func (a *s3Adapter) Close() error {
	a.closed.Store(true)
	return nil
}
