// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package storage

import (
	"context"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"
	"sync/atomic"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

func init() {
	RegisterBackend("azure", newAzureAdapter)
}

// azureAdapter stores objects as blobs in an Azure Blob Storage container.
// Authentication: a full connection string, or an account name with an
// optional shared key (no key means anonymous access to a public container).
type azureAdapter struct {
	client    *azblob.Client
	container string
	prefix    string
	closed    atomic.Bool
}

func newAzureAdapter(_ context.Context, opts map[string]string) (Adapter, error) {
	if err := rejectUnknownOptions("azure", opts,
		"container", "prefix", "account", "account_key", "connection_string", "endpoint"); err != nil {
		return nil, err
	}
	if err := requireOptions("azure", opts, "container"); err != nil {
		return nil, err
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case opts["connection_string"] != "":
		client, err = azblob.NewClientFromConnectionString(opts["connection_string"], nil)
	case opts["account"] != "":
		serviceURL := opts["endpoint"]
		if serviceURL == "" {
			serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", opts["account"])
		}
		if key := opts["account_key"]; key != "" {
			var cred *azblob.SharedKeyCredential
			cred, err = azblob.NewSharedKeyCredential(opts["account"], key)
			if err == nil {
				client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
			}
		} else {
			client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
		}
	default:
		return nil, optionError("azure", "either connection_string or account is required")
	}
	if err != nil {
		return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"creating Azure blob client", scenioerr.FieldBackend("azure"))
	}

	return &azureAdapter{
		client:    client,
		container: opts["container"],
		prefix:    strings.Trim(opts["prefix"], "/"),
	}, nil
}

func (a *azureAdapter) Name() string { return "azure" }

func (a *azureAdapter) guard() error {
	if a.closed.Load() {
		return scenioerr.New(scenioerr.CodeStorageAdapterClosed,
			"storage adapter is closed", scenioerr.FieldBackend("azure"))
	}
	return nil
}

func (a *azureAdapter) blobName(p string) string {
	return path.Join(a.prefix, p)
}

func (a *azureAdapter) mapError(err error, p, op string) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return scenioerr.New(scenioerr.CodeStorageObjectNotFound,
			"object not found", scenioerr.FieldBackend("azure"), scenioerr.FieldPath(p))
	}
	return scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure, op,
		scenioerr.FieldBackend("azure"), scenioerr.FieldPath(p))
}

func (a *azureAdapter) open(ctx context.Context, p string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, a.blobName(p), nil)
	if err != nil {
		return nil, a.mapError(err, p, "fetching blob")
	}
	return resp.Body, nil
}

func (a *azureAdapter) Read(ctx context.Context, p string) ([]byte, error) {
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
		return nil, a.mapError(err, p, "reading blob body")
	}
	return data, nil
}

func (a *azureAdapter) Write(ctx context.Context, p string, data []byte) error {
	if err := a.guard(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	if _, err := a.client.UploadBuffer(ctx, a.container, a.blobName(p), data, nil); err != nil {
		return a.mapError(err, p, "uploading blob")
	}
	return nil
}

func (a *azureAdapter) List(ctx context.Context, prefix string) ([]string, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}

	keyPrefix := a.blobName(strings.TrimPrefix(prefix, "/"))
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{
		Prefix: &keyPrefix,
	})

	var paths []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
				"listing blobs", scenioerr.FieldBackend("azure"))
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			name := *item.Name
			if a.prefix != "" {
				name = strings.TrimPrefix(name, a.prefix+"/")
			}
			paths = append(paths, name)
		}
	}
	return paths, nil
}

func (a *azureAdapter) Exists(ctx context.Context, p string) (bool, error) {
	if err := a.guard(); err != nil {
		return false, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return false, err
	}

	_, err = a.client.ServiceClient().
		NewContainerClient(a.container).
		NewBlobClient(a.blobName(p)).
		GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return false, nil
		}
		return false, scenioerr.Wrap(err, scenioerr.CodeStorageConnectionFailure,
			"checking blob", scenioerr.FieldBackend("azure"), scenioerr.FieldPath(p))
	}
	return true, nil
}

func (a *azureAdapter) Delete(ctx context.Context, p string) error {
	if err := a.guard(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	if _, err := a.client.DeleteBlob(ctx, a.container, a.blobName(p), nil); err != nil {
		return a.mapError(err, p, "deleting blob")
	}
	return nil
}

func (a *azureAdapter) StreamRead(ctx context.Context, p string, chunkSize int) (iter.Seq2[[]byte, error], error) {
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

func (a *azureAdapter) Close() error {
	a.closed.Store(true)
	return nil
}
