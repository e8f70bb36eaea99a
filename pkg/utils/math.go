package utils

import "math"

// NormalizeL2 scales x in place to unit length and returns its original L2 norm.
// The sum of squares is accumulated in float64. A zero or non-finite norm leaves x
// untouched, so degenerate vectors stay detectable downstream.
func NormalizeL2(x []float32) float64 {
	var sum float64
	for _, v := range x {
		f := float64(v)
		sum += f * f
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsInf(norm, 0) || math.IsNaN(norm) {
		return norm
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / norm)
	}
	return norm
}
