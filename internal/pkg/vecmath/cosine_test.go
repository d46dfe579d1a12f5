package vecmath

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{1, 0, 0}, b: []float64{1, 0, 0}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "opposite", a: []float64{1, 2}, b: []float64{-1, -2}, want: -1},
		{name: "magnitude independent", a: []float64{3, 4}, b: []float64{6, 8}, want: 1},
		{name: "zero left", a: []float64{0, 0}, b: []float64{1, 1}, want: 0},
		{name: "zero right", a: []float64{1, 1}, b: []float64{0, 0}, want: 0},
		{name: "both zero", a: []float64{0, 0, 0}, b: []float64{0, 0, 0}, want: 0},
		{name: "empty", a: []float64{}, b: []float64{}, want: 0},
		{name: "huge identical", a: []float64{1e200}, b: []float64{1e200}, want: 1},
		{name: "huge against small", a: []float64{1e200, 1e200}, b: []float64{1, 1}, want: 1},
		{name: "huge opposite", a: []float64{1e308, -1e308}, b: []float64{-1e308, 1e308}, want: -1},
		{name: "tiny identical", a: []float64{1e-200, 2e-200}, b: []float64{1e-200, 2e-200}, want: 1},
		{name: "nan component", a: []float64{math.NaN(), 1}, b: []float64{1, 1}, want: 0},
		{name: "inf component", a: []float64{1, 1}, b: []float64{math.Inf(-1), 1}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			require.NoError(t, err)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosine_DimensionMismatch(t *testing.T) {
	_, err := Cosine([]float64{1, 0}, []float64{1, 0, 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	var dimErr *DimensionMismatchError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Left)
	assert.Equal(t, 3, dimErr.Right)
}

func TestCosine_Bounds(t *testing.T) {
	vectors := [][]float64{
		{0.1, 0.2, 0.3},
		{-5, 2, 0.001},
		{1e6, -1e6, 3},
		{1e200, -3e199, 5},
		{0.9, 0.1, 0},
		{1e-12, 1e-12, 1e-12},
	}
	for _, a := range vectors {
		self, err := Cosine(a, a)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, self, 1e-9)
		for _, b := range vectors {
			sim, err := Cosine(a, b)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, sim, -1.0)
			assert.LessOrEqual(t, sim, 1.0)
		}
	}
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite([]float64{0, -1e308, 1e-300}))
	assert.True(t, Finite(nil))
	assert.False(t, Finite([]float64{1, math.NaN()}))
	assert.False(t, Finite([]float64{math.Inf(1)}))
	assert.False(t, Finite([]float64{0, math.Inf(-1)}))
}
