// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

// Package vector implements the numeric aggregation primitives used to
// derive personalization vectors from embedding vectors: elementwise
// averaging, recency-weighted averaging, and multi-source blending.
//
// The functions are pure and perform no I/O. Vectors produced by the same
// embedding model share a fixed dimension; cross-source combination
// (WeightedBlend) tolerates differing dimensions by treating missing
// trailing positions as zero.
package vector

import "fmt"

// Vector is an ordered sequence of floating-point embedding components.
type Vector []float64

// IsEmpty reports whether the vector carries no components. Absent
// embeddings are represented as nil or zero-length vectors and are valid
// inputs everywhere in this package.
func (v Vector) IsEmpty() bool { return len(v) == 0 }

// ShapeError reports a dimension mismatch between vectors, or between a
// vector list and its weight list.
type ShapeError struct {
	Want int
	Got  int
	What string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("vector: %s length mismatch: want %d, got %d", e.What, e.Want, e.Got)
}

// Average returns the elementwise mean of the given vectors. Nil and empty
// vectors are filtered out first; if nothing remains the result is an
// empty vector. All remaining vectors must share one dimension, otherwise
// a ShapeError is returned.
func Average(vectors []Vector) (Vector, error) {
	return WeightedAverage(vectors, nil)
}

// WeightedAverage returns the weighted elementwise mean of the given
// vectors. A nil weight slice makes it equivalent to Average. When
// weights are present, weights[i] applies to vectors[i] (index 0 is the
// most recent entry); the weight slice must be at least as long as the
// vector slice; callers must not rely on implicit padding. Surplus
// weights are ignored.
//
// Empty vectors are dropped together with their weights before any shape
// check, so signals without a stored embedding degrade gracefully.
func WeightedAverage(vectors []Vector, weights []float64) (Vector, error) {
	if weights != nil && len(weights) < len(vectors) {
		return nil, &ShapeError{Want: len(vectors), Got: len(weights), What: "weights"}
	}

	kept := make([]Vector, 0, len(vectors))
	keptWeights := make([]float64, 0, len(vectors))
	for i, v := range vectors {
		if v.IsEmpty() {
			continue
		}
		kept = append(kept, v)
		if weights != nil {
			keptWeights = append(keptWeights, weights[i])
		}
	}

	if len(kept) == 0 {
		return Vector{}, nil
	}

	dim := len(kept[0])
	total := make(Vector, dim)
	var weightSum float64

	for i, v := range kept {
		if len(v) != dim {
			return nil, &ShapeError{Want: dim, Got: len(v), What: "vector"}
		}
		w := 1.0
		if weights != nil {
			w = keptWeights[i]
		}
		weightSum += w
		for j, x := range v {
			total[j] += w * x
		}
	}

	if weightSum == 0 {
		return Vector{}, nil
	}
	for j := range total {
		total[j] /= weightSum
	}

	return total, nil
}

// WeightedBlend combines up to three vectors with explicit scalar weights:
//
//	result[i] = w1*a[i] + w2*b[i] + w3*c[i]
//
// Any vector may be nil or empty and contributes zero regardless of its
// weight. Positions beyond a vector's length also contribute zero, so the
// result has the length of the longest input. WeightedBlend is total: it
// never fails on well-formed numeric input.
func WeightedBlend(a, b, c Vector, w1, w2, w3 float64) Vector {
	dim := max(len(a), len(b), len(c))
	result := make(Vector, dim)

	for i := range result {
		var ai, bi, ci float64
		if i < len(a) {
			ai = a[i]
		}
		if i < len(b) {
			bi = b[i]
		}
		if i < len(c) {
			ci = c[i]
		}
		result[i] = w1*ai + w2*bi + w3*ci
	}

	return result
}

// DecayWeights produces geometric recency weights base^i for i in [0, n),
// so index 0 (the most recent entry) has weight 1 and influence drops
// geometrically. Returns nil for n <= 0.
func DecayWeights(n int, base float64) []float64 {
	if n <= 0 {
		return nil
	}

	weights := make([]float64, n)
	w := 1.0
	for i := range weights {
		weights[i] = w
		w *= base
	}

	return weights
}
