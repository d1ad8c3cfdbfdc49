// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package scene_test

import (
	"encoding/json"
	"testing"

	"github.com/scenio-dev/scenio/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDoesNotMutateReceiver(t *testing.T) {
	base := scene.Empty().With("x", 1)
	derived := base.With("x", 2).With("y", 3)

	x, ok := base.Get("x")
	require.True(t, ok)
	assert.Equal(t, 1, x)
	_, ok = base.Get("y")
	assert.False(t, ok)

	x, _ = derived.Get("x")
	assert.Equal(t, 2, x)
	y, _ := derived.Get("y")
	assert.Equal(t, 3, y)
}

func TestNilStateBehavesLikeEmpty(t *testing.T) {
	var s *scene.State

	_, ok := s.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Keys())

	derived := s.With("x", 1)
	v, ok := derived.Get("x")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestWithAllAndWithout(t *testing.T) {
	s := scene.Empty().WithAll(map[string]any{"a": 1, "b": 2, "c": 3})
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"a", "b", "c"}, s.Keys())

	trimmed := s.Without("b")
	assert.Equal(t, 2, trimmed.Len())
	_, ok := trimmed.Get("b")
	assert.False(t, ok)
	// Receiver keeps the field.
	_, ok = s.Get("b")
	assert.True(t, ok)
}

func TestFromMapCopiesTopLevel(t *testing.T) {
	doc := map[string]any{"a": 1}
	s := scene.FromMap(doc)

	doc["a"] = 99
	v, _ := s.Get("a")
	assert.Equal(t, 1, v)
}

func TestJSONRoundTrip(t *testing.T) {
	s := scene.Empty().
		With("prompt", "cozy reading nook").
		With("objects", []any{"chair", "lamp"}).
		With("budget", 3.5)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var restored scene.State
	require.NoError(t, json.Unmarshal(data, &restored))

	prompt, _ := restored.Get("prompt")
	assert.Equal(t, "cozy reading nook", prompt)
	budget, _ := restored.Get("budget")
	assert.Equal(t, 3.5, budget)
	objects, _ := restored.Get("objects")
	assert.Equal(t, []any{"chair", "lamp"}, objects)
}

func TestMarshalNilState(t *testing.T) {
	var s *scene.State
	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(data))
}

func TestToMapReturnsCopy(t *testing.T) {
	s := scene.Empty().With("a", 1)
	m := s.ToMap()
	m["a"] = 99

	v, _ := s.Get("a")
	assert.Equal(t, 1, v)
}
