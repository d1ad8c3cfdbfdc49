// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

// Package vecmath provides the similarity primitives used by the in-memory
// vector backend.
package vecmath

import "math"

// Dot computes the dot product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm computes the L2 norm of a vector.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// Cosine computes cosine similarity: 1 for identical directions, 0 for
// perpendicular, -1 for opposite. Zero-norm inputs score 0.
func Cosine(a, b []float32) float32 {
	normA := Norm(a)
	normB := Norm(b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return Dot(a, b) / (normA * normB)
}
