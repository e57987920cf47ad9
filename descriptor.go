package h5json

import (
	"fmt"
	"math"
	"strings"

	json "github.com/goccy/go-json"
)

// Descriptor is the JSON-facing summary record for a node. Type is one
// of "group", "dataset" or "other"; the shape/dtype/range fields are
// meaningful for datasets only, and MarshalJSON keeps the field sets
// exact for each variant.
type Descriptor struct {
	Type  string
	Name  string
	Shape string
	Dtype string
	Range string
}

// MarshalJSON emits exactly the fields the descriptor variant carries: a
// dataset always has shape, dtype and range (range may be empty), other
// variants have neither.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	if d.Type == "dataset" {
		return json.Marshal(struct {
			Type  string `json:"type"`
			Name  string `json:"name"`
			Shape string `json:"shape"`
			Dtype string `json:"dtype"`
			Range string `json:"range"`
		}{d.Type, d.Name, d.Shape, d.Dtype, d.Range})
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}{d.Type, d.Name})
}

// Describe summarizes a node. Groups reduce to type and name; datasets
// read their payload once and add shape, dtype and value range. Anything
// else fails with ErrNotANode naming the path.
func Describe(obj Object) (*Descriptor, error) {
	switch node := obj.(type) {
	case *Group:
		return &Descriptor{Type: "group", Name: node.Path()}, nil
	case *Dataset:
		return describeDataset(node)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotANode, obj.Path())
	}
}

func describeDataset(d *Dataset) (*Descriptor, error) {
	value, err := d.Values()
	if err != nil {
		return nil, err
	}
	return describeValue(d.Path(), value), nil
}

func describeValue(path string, value *Value) *Descriptor {
	desc := &Descriptor{Type: "dataset", Name: path, Dtype: "object", Shape: "scalar"}
	if value.Numeric() {
		desc.Dtype = value.DtypeName
		if !value.Scalar {
			desc.Shape = shapeString(value.Shape)
		}
		desc.Range = rangeSummary(value.Floats)
	}

	return desc
}

// describeChild is the lenient variant used by group enumeration: a
// child that cannot be described becomes an "other" placeholder instead
// of failing the whole listing.
func describeChild(obj Object) *Descriptor {
	desc, err := Describe(obj)
	if err != nil {
		return &Descriptor{Type: "other", Name: obj.Path()}
	}
	return desc
}

// shapeString renders an extent in Python tuple form: "(3,)", "(2, 3)".
func shapeString(shape []uint64) string {
	if len(shape) == 1 {
		return fmt.Sprintf("(%d,)", shape[0])
	}
	parts := make([]string, len(shape))
	for i, dim := range shape {
		parts[i] = fmt.Sprintf("%d", dim)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// rangeSummary summarizes numeric values, ignoring NaN entries: "" for
// an empty payload, "nan" when nothing but NaN remains, a single value
// at 4 significant digits when min equals max, "min:max" at 3 otherwise.
func rangeSummary(vals []float64) string {
	if len(vals) == 0 {
		return ""
	}

	minV, maxV := math.NaN(), math.NaN()
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(minV) || v < minV {
			minV = v
		}
		if math.IsNaN(maxV) || v > maxV {
			maxV = v
		}
	}

	if math.IsNaN(minV) {
		return "nan"
	}
	if minV == maxV {
		return fmt.Sprintf("%.4g", minV)
	}
	return fmt.Sprintf("%.3g:%.3g", minV, maxV)
}
