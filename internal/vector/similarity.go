// Package vector provides the numeric operations used to score embeddings.
//
// Ranking code depends on the Ops interface rather than on a concrete numeric
// backend, so a SIMD or BLAS implementation can be swapped in without touching it.
package vector

import "math"

// Ops computes the primitives needed for cosine similarity. Implementations must be
// pure and safe for concurrent use.
type Ops interface {
	// Dot returns the inner product of a and b. Callers guarantee len(a) == len(b).
	Dot(a, b []float32) float64
	// Norm returns the Euclidean length of x.
	Norm(x []float32) float64
}

// Float64Ops accumulates in float64 regardless of the float32 storage precision.
type Float64Ops struct{}

var _ Ops = Float64Ops{}

// Dot implements Ops.
func (Float64Ops) Dot(a, b []float32) float64 {
	return InnerProduct(a, b)
}

// Norm implements Ops.
func (Float64Ops) Norm(x []float32) float64 {
	return L2Norm(x)
}

// InnerProduct returns the inner product of two vectors in double precision.
// Vectors of different length yield 0.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector in double precision.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// Cosine returns dot(a, b) / (|a| * |b|) using ops. A zero-norm or non-finite
// operand yields -Inf, which ranks below every valid score.
func Cosine(ops Ops, a, b []float32) float64 {
	return CosineWithNorm(ops, a, ops.Norm(a), b)
}

// CosineWithNorm is Cosine with the norm of a precomputed, so a query norm is
// evaluated once per scan.
func CosineWithNorm(ops Ops, a []float32, normA float64, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(-1)
	}
	normB := ops.Norm(b)
	if !valid(normA) || !valid(normB) {
		return math.Inf(-1)
	}
	score := ops.Dot(a, b) / (normA * normB)
	if math.IsNaN(score) {
		return math.Inf(-1)
	}
	return score
}

func valid(norm float64) bool {
	return norm > 0 && !math.IsInf(norm, 0) && !math.IsNaN(norm)
}
