package h5json

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/scigolib/h5json/internal/core"
	"github.com/scigolib/h5json/internal/structures"
	"github.com/scigolib/h5json/internal/utils"
)

// objectAttributes collects every attribute of the object at address:
// the compact ones parsed with the header plus, when the object uses
// dense storage, the ones behind the attribute info message's fractal heap.
func objectAttributes(f *File, address uint64) ([]*core.Attribute, error) {
	header, err := core.ReadObjectHeader(f.osFile, address, f.sb)
	if err != nil {
		return nil, utils.WrapError("object header read failed", err)
	}

	attrs := header.Attributes
	if header.AttributeInfo.HasDenseStorage() {
		dense, err := denseAttributes(f, header.AttributeInfo)
		if err != nil {
			return nil, utils.WrapError("dense attribute read failed", err)
		}
		attrs = append(attrs, dense...)
	}

	return attrs, nil
}

// denseAttributes resolves dense attribute storage: heap IDs from the v2
// B-tree name index, each pointing at an encoded attribute message in
// the fractal heap.
func denseAttributes(f *File, info *core.AttributeInfoMessage) ([]*core.Attribute, error) {
	heapIDs, err := structures.ReadBTreeV2HeapIDs(f.osFile, info.BTreeNameIndexAddr, f.sb)
	if err != nil {
		return nil, utils.WrapError("attribute name index read failed", err)
	}
	if len(heapIDs) == 0 {
		return nil, nil
	}

	heap, err := structures.OpenFractalHeap(f.osFile, info.FractalHeapAddr, f.sb)
	if err != nil {
		return nil, utils.WrapError("attribute heap open failed", err)
	}

	attrs := make([]*core.Attribute, 0, len(heapIDs))
	for _, id := range heapIDs {
		data, err := heap.ReadObject(id)
		if err != nil {
			return nil, utils.WrapError("attribute heap object read failed", err)
		}
		attr, err := core.ParseAttributeMessage(data, f.sb.Endianness)
		if err != nil {
			return nil, utils.WrapError("dense attribute parse failed", err)
		}
		attrs = append(attrs, attr)
	}

	return attrs, nil
}

// stringifyAttribute decodes an attribute's value and renders it the way
// the query surface reports attributes: a plain display string.
func stringifyAttribute(f *File, attr *core.Attribute) (string, error) {
	value, err := attr.ReadValue(f.osFile, int(f.sb.OffsetSize))
	if err != nil {
		return "", utils.WrapError("attribute value read failed", err)
	}
	return formatAttributeValue(value), nil
}

func formatAttributeValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return formatAttributeFloat(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case []float64:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = formatAttributeFloat(elem)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case []int64:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = strconv.FormatInt(elem, 10)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case []uint64:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = strconv.FormatUint(elem, 10)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case []string:
		return "[" + strings.Join(v, " ") + "]"
	case []interface{}:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = formatAttributeValue(elem)
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatAttributeFloat keeps a decimal point on whole floats so the text
// still reads as a float ("1.0", not "1").
func formatAttributeFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	if math.IsInf(v, 0) {
		if v > 0 {
			return "inf"
		}
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
