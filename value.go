package h5json

import "github.com/scigolib/h5json/internal/core"

// ValueClass is the element class of a materialized payload.
type ValueClass int

// Element classes.
const (
	ValueFloat ValueClass = iota
	ValueInt
	ValueUint
	ValueString
	ValueCompound
	ValueOpaque
)

// Value is a dataset payload materialized in full: a row-major flat
// slice in whichever representation the element class dictates, plus the
// dataspace extent. It is built once per query and discarded.
type Value struct {
	Class     ValueClass
	DtypeName string // numpy-style element name, "" for non-numeric classes
	Shape     []uint64
	Scalar    bool

	Floats  []float64 // ValueFloat, ValueInt, ValueUint
	Strings []string  // ValueString
	Records []core.CompoundValue
}

// Numeric reports whether the payload holds float64-widened numbers.
func (v *Value) Numeric() bool {
	return v.Class == ValueFloat || v.Class == ValueInt || v.Class == ValueUint
}

// Len returns the number of flattened elements.
func (v *Value) Len() int {
	switch v.Class {
	case ValueString:
		return len(v.Strings)
	case ValueCompound:
		return len(v.Records)
	case ValueOpaque:
		return 0
	default:
		return len(v.Floats)
	}
}
