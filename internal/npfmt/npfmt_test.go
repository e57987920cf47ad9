package npfmt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatFloats(t *testing.T) {
	tests := []struct {
		name  string
		vals  []float64
		shape []uint64
		opts  Options
		want  string
	}{
		{
			name:  "rank 1",
			vals:  []float64{1, 2, 3},
			shape: []uint64{3},
			opts:  Defaults(),
			want:  "[1. 2. 3.]",
		},
		{
			name:  "rank 1 aligned",
			vals:  []float64{1, 10, 0.5},
			shape: []uint64{3},
			opts:  Defaults(),
			want:  "[ 1. 10. 0.5]",
		},
		{
			name:  "rank 2",
			vals:  []float64{1, 2, 3, 4},
			shape: []uint64{2, 2},
			opts:  Defaults(),
			want:  "[[1. 2.]\n [3. 4.]]",
		},
		{
			name:  "rank 3 blank line between outer blocks",
			vals:  []float64{1, 2, 3, 4},
			shape: []uint64{2, 1, 2},
			opts:  Defaults(),
			want:  "[[[1. 2.]]\n\n [[3. 4.]]]",
		},
		{
			name:  "exponent keeps decimal point",
			vals:  []float64{1e20},
			shape: []uint64{1},
			opts:  Defaults(),
			want:  "[1.e+20]",
		},
		{
			name:  "nan and inf elements",
			vals:  []float64{math.NaN(), math.Inf(1), math.Inf(-1)},
			shape: []uint64{3},
			opts:  Options{Precision: 8},
			want:  "[ nan  inf -inf]",
		},
		{
			name:  "wrap at line width",
			vals:  []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
			shape: []uint64{10},
			opts:  Options{Precision: 8, LineWidth: 20},
			want:  "[0. 1. 2. 3. 4. 5.\n 6. 7. 8. 9.]",
		},
		{
			name:  "unlimited never wraps",
			vals:  []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
			shape: []uint64{10},
			opts:  Unlimited(),
			want:  "[0. 1. 2. 3. 4. 5. 6. 7. 8. 9.]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, FormatFloats(tt.vals, tt.shape, tt.opts))
		})
	}
}

func TestFormatFloatsSummarized(t *testing.T) {
	vals := make([]float64, 10)
	for i := range vals {
		vals[i] = float64(i)
	}
	opts := Options{Precision: 8, Threshold: 5, EdgeItems: 2}
	require.Equal(t, "[0. 1. ... 8. 9.]", FormatFloats(vals, []uint64{10}, opts))
}

func TestFormatInts(t *testing.T) {
	got := FormatInts([]float64{1, -20, 300}, []uint64{3}, Unlimited())
	require.Equal(t, "[  1 -20 300]", got)
}

func TestFormatStrings(t *testing.T) {
	got := FormatStrings([]string{"a", "bb"}, []uint64{2}, Unlimited())
	require.Equal(t, "['a' 'bb']", got)
}

func TestFormatScalarFloat(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{1, "1.0"},
		{0.5, "0.5"},
		{-3, "-3.0"},
		{math.NaN(), "nan"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatScalarFloat(tt.v))
	}
}

func TestFormatList(t *testing.T) {
	require.Equal(t, "['x', 'y']", FormatList([]string{"x", "y"}))
	require.Equal(t, "[]", FormatList(nil))
}
