// Package vector provides exact L2 distance, a bounded top-k collector and the
// embedding BLOB codec used by the SQLite store.
package vector

import (
	"fmt"
	"math"

	"github.com/hyperjump/shoroku/internal/models"
)

// L2Distance returns the Euclidean distance between a and b, accumulated in float64.
// Returns models.ErrDimensionMismatch when the lengths differ.
func L2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", models.ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// NonFinite returns the index of the first NaN or infinite component of x, or -1.
func NonFinite(x []float32) int {
	for i, v := range x {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return i
		}
	}
	return -1
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize scales x in place to unit length. Zero vectors are left unchanged.
func Normalize(x []float32) {
	norm := L2Norm(x)
	if norm == 0 {
		return
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / norm)
	}
}
