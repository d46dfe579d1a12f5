package vecmath

import (
	"errors"
	"fmt"
	"math"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// DimensionMismatchError reports a comparison between vectors of different length.
type DimensionMismatchError struct {
	Left  int
	Right int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: %d != %d", ErrDimensionMismatch, e.Left, e.Right)
}

func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}

// Cosine returns dot(a,b) / (|a| * |b|) accumulated in float64.
// Each side is scaled by its largest magnitude first so large components
// cannot overflow the sums. A zero norm or a non-finite component yields 0.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{Left: len(a), Right: len(b)}
	}
	scaleA, scaleB := maxAbs(a), maxAbs(b)
	if scaleA == 0 || scaleB == 0 || math.IsInf(scaleA, 0) || math.IsInf(scaleB, 0) {
		return 0, nil
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := a[i]/scaleA, b[i]/scaleB
		dot += x * y
		normA += x * x
		normB += y * y
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0, nil
	}
	// rounding can push parallel vectors slightly past the bounds
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// Finite reports whether every component of v is a real number.
func Finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// maxAbs is +Inf when v holds a NaN or an infinity.
func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		if math.IsNaN(x) {
			return math.Inf(1)
		}
		if ax := math.Abs(x); ax > m {
			m = ax
		}
	}
	return m
}
