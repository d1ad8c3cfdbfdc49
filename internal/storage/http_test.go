// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package storage_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scenio-dev/scenio/internal/storage"
	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTPTestAdapter(t *testing.T, objects map[string][]byte) storage.Adapter {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := objects["datasets"+r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)

	adapter, err := storage.New(context.Background(), storage.Config{
		Backend: "http",
		Options: map[string]string{"base_url": srv.URL + "/datasets"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter
}

func TestHTTPRead(t *testing.T) {
	ctx := context.Background()
	adapter := newHTTPTestAdapter(t, map[string][]byte{
		"datasets/scenes/room.json": []byte(`{"objects":[]}`),
	})

	got, err := adapter.Read(ctx, "scenes/room.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"objects":[]}`), got)

	ok, err := adapter.Exists(ctx, "scenes/room.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = adapter.Exists(ctx, "scenes/missing.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPReadMissingIsNotFound(t *testing.T) {
	adapter := newHTTPTestAdapter(t, nil)

	_, err := adapter.Read(context.Background(), "missing.bin")
	require.Error(t, err)
	assert.True(t, scenioerr.IsNotFound(err))
}

func TestHTTPStreamRead(t *testing.T) {
	payload := bytes.Repeat([]byte("scene"), 1000)
	adapter := newHTTPTestAdapter(t, map[string][]byte{
		"datasets/big.bin": payload,
	})

	seq, err := adapter.StreamRead(context.Background(), "big.bin", 1024)
	require.NoError(t, err)

	var got []byte
	for chunk, err := range seq {
		require.NoError(t, err)
		got = append(got, chunk...)
	}
	assert.Equal(t, payload, got)
}

func TestHTTPMutationsUnsupported(t *testing.T) {
	ctx := context.Background()
	adapter := newHTTPTestAdapter(t, nil)

	err := adapter.Write(ctx, "x.bin", []byte("x"))
	assert.True(t, scenioerr.IsUnsupported(err))

	err = adapter.Delete(ctx, "x.bin")
	assert.True(t, scenioerr.IsUnsupported(err))

	_, err = adapter.List(ctx, "")
	assert.True(t, scenioerr.IsUnsupported(err))
}
