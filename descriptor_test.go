package h5json

import (
	"math"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestRangeSummary(t *testing.T) {
	tests := []struct {
		name string
		vals []float64
		want string
	}{
		{"empty", nil, ""},
		{"integral endpoints", []float64{1, 2, 3}, "1:3"},
		{"single value", []float64{2.5}, "2.5"},
		{"constant", []float64{7, 7, 7}, "7"},
		{"all nan", []float64{math.NaN(), math.NaN()}, "nan"},
		{"nan skipped", []float64{math.NaN(), 2, 10}, "2:10"},
		{"three significant digits", []float64{1.23456, 9.87654}, "1.23:9.88"},
		{"negative", []float64{-5, 5}, "-5:5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, rangeSummary(tt.vals))
		})
	}
}

func TestShapeString(t *testing.T) {
	require.Equal(t, "(3,)", shapeString([]uint64{3}))
	require.Equal(t, "(2, 3)", shapeString([]uint64{2, 3}))
	require.Equal(t, "(1, 2, 3)", shapeString([]uint64{1, 2, 3}))
}

func TestDescriptorMarshalJSON(t *testing.T) {
	dataset := &Descriptor{
		Type:  "dataset",
		Name:  "/data/x",
		Shape: "(3,)",
		Dtype: "float64",
		Range: "1:3",
	}
	data, err := json.Marshal(dataset)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"type":"dataset","name":"/data/x","shape":"(3,)","dtype":"float64","range":"1:3"}`,
		string(data))

	group := &Descriptor{Type: "group", Name: "/data"}
	data, err = json.Marshal(group)
	require.NoError(t, err)
	require.Equal(t, `{"type":"group","name":"/data"}`, string(data))

	other := &Descriptor{Type: "other", Name: "/data/link"}
	data, err = json.Marshal(other)
	require.NoError(t, err)
	require.Equal(t, `{"type":"other","name":"/data/link"}`, string(data))
}

func TestDescribeValue(t *testing.T) {
	numeric := &Value{
		Class:     ValueFloat,
		DtypeName: "float64",
		Shape:     []uint64{3},
		Floats:    []float64{1, 2, 3},
	}
	desc := describeValue("/data/x", numeric)
	require.Equal(t, &Descriptor{
		Type: "dataset", Name: "/data/x",
		Shape: "(3,)", Dtype: "float64", Range: "1:3",
	}, desc)

	scalar := &Value{
		Class:     ValueFloat,
		DtypeName: "float64",
		Scalar:    true,
		Floats:    []float64{2.5},
	}
	desc = describeValue("/data/s", scalar)
	require.Equal(t, "scalar", desc.Shape)
	require.Equal(t, "2.5", desc.Range)

	strs := &Value{Class: ValueString, Shape: []uint64{2}, Strings: []string{"a", "b"}}
	desc = describeValue("/data/names", strs)
	require.Equal(t, "object", desc.Dtype)
	require.Equal(t, "scalar", desc.Shape)
	require.Empty(t, desc.Range)
}

func TestPreviewMarshalJSON(t *testing.T) {
	p := &Preview{
		Descriptor: &Descriptor{
			Type: "dataset", Name: "/data/x",
			Shape: "(3,)", Dtype: "float64", Range: "1:3",
		},
		Data: "[1. 2. 3.]",
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"type":"dataset","name":"/data/x","shape":"(3,)","dtype":"float64","range":"1:3","data":"[1. 2. 3.]"}`,
		string(data))

	g := &Preview{
		Descriptor: &Descriptor{Type: "group", Name: "/data"},
		Data:       "['x']",
	}
	data, err = json.Marshal(g)
	require.NoError(t, err)
	require.Equal(t, `{"type":"group","name":"/data","data":"['x']"}`, string(data))
}
