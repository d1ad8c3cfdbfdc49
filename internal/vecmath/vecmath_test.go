// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package vecmath_test

import (
	"testing"

	"github.com/scenio-dev/scenio/internal/vecmath"
	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, vecmath.Cosine([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, vecmath.Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, vecmath.Cosine([]float32{1, 0}, []float32{-3, 0}), 1e-6)
}

func TestCosineZeroNorm(t *testing.T) {
	assert.Equal(t, float32(0), vecmath.Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestDotAndNorm(t *testing.T) {
	assert.Equal(t, float32(11), vecmath.Dot([]float32{1, 2}, []float32{3, 4}))
	assert.InDelta(t, 5.0, vecmath.Norm([]float32{3, 4}), 1e-6)
}
