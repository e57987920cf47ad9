package h5json

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatAttributeValue(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"string", "meter", "meter"},
		{"fractional float", 0.5, "0.5"},
		{"whole float keeps point", 1.0, "1.0"},
		{"nan", math.NaN(), "nan"},
		{"negative inf", math.Inf(-1), "-inf"},
		{"int", int64(-7), "-7"},
		{"uint", uint64(42), "42"},
		{"uint above int64 range", uint64(1<<63 + 5), "9223372036854775813"},
		{"float slice", []float64{1, 2.5}, "[1.0 2.5]"},
		{"int slice", []int64{1, -20, 300}, "[1 -20 300]"},
		{"uint slice", []uint64{1, 0xFFFF}, "[1 65535]"},
		{"string slice", []string{"a", "b"}, "[a b]"},
		{"empty", []interface{}{}, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, formatAttributeValue(tt.value))
		})
	}
}
