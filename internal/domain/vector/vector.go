// Package vector holds the normalization and similarity primitives shared by
// the ranking and embedding use cases.
package vector

import "math"

// Norm returns the Euclidean norm of v. Squares are accumulated in float64.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		f := float64(x)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// Normalize returns v scaled to unit length as a new slice.
// A zero vector is returned unchanged (as a copy), never divided by zero.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Dot returns the dot product of a and b, or 0 when their lengths differ.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// CosineSimilarity returns dot(a, b) / (|a| * |b|).
// Empty vectors, zero-norm vectors and dimension mismatches all score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Zero returns the sentinel vector substituted for a failed embedding.
// dim <= 0 yields a single-element zero vector.
func Zero(dim int) []float32 {
	if dim <= 0 {
		dim = 1
	}
	return make([]float32, dim)
}

// IsZero reports whether every element of v is zero (an empty vector counts as zero).
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
