// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package storage_test

import (
	"context"
	"testing"

	"github.com/scenio-dev/scenio/internal/storage"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnknownBackend(t *testing.T) {
	_, err := storage.New(context.Background(), storage.Config{Backend: "tape"})
	require.Error(t, err)
	assert.True(t, scenioerr.IsConfigurationError(err))
	assert.Equal(t, scenioerr.CodeBackendUnknown, scenioerr.CodeOf(err))
}

func TestBackendsIncludesBuiltins(t *testing.T) {
	names := storage.Backends()
	for _, want := range []string{"file", "memory", "http", "s3", "gcs", "azure", "sftp", "ftp"} {
		assert.Contains(t, names, want)
	}
}

func TestNewFromURLMatchesConfigPath(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	fromURL, err := storage.NewFromURL(ctx, "file://"+root, nil)
	require.NoError(t, err)
	defer func() { _ = fromURL.Close() }()

	fromCfg, err := storage.New(ctx, storage.Config{
		Backend: "file",
		Options: map[string]string{"root": root},
	})
	require.NoError(t, err)
	defer func() { _ = fromCfg.Close() }()

	// Both construction paths land on the same backing root.
	require.NoError(t, fromURL.Write(ctx, "shared.bin", []byte("payload")))
	got, err := fromCfg.Read(ctx, "shared.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
	assert.Equal(t, fromURL.Name(), fromCfg.Name())
}
