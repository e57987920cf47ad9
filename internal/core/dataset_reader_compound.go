package core

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/scigolib/h5json/internal/utils"
)

// CompoundValue holds one compound element as field name to value. Values
// are float64 for floats, int64/uint64 for fixed-point members, and string
// for both fixed and variable-length string members.
type CompoundValue map[string]interface{}

// ReadDatasetCompound reads a compound dataset into per-element field maps.
func ReadDatasetCompound(r io.ReaderAt, header *ObjectHeader, sb *Superblock) ([]CompoundValue, error) {
	info, err := ReadDatasetInfo(header, sb)
	if err != nil {
		return nil, err
	}
	return ReadCompoundData(r, info, sb)
}

// ReadCompoundData is ReadDatasetCompound for callers that already parsed
// the dataset messages.
func ReadCompoundData(r io.ReaderAt, info *DatasetInfo, sb *Superblock) ([]CompoundValue, error) {
	if !info.Datatype.IsCompound() {
		return nil, fmt.Errorf("element class %d is not a compound type", info.Datatype.Class)
	}

	ct, err := ParseCompoundType(info.Datatype)
	if err != nil {
		return nil, utils.WrapError("parse compound type", err)
	}

	data, err := readRawData(r, info, sb)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []CompoundValue{}, nil
	}

	elemSize := int(info.Datatype.Size)
	if elemSize == 0 || len(data)%elemSize != 0 {
		return nil, fmt.Errorf("data length %d not a multiple of element size %d", len(data), elemSize)
	}

	heaps := newGlobalHeapCache(r, int(sb.OffsetSize))
	values := make([]CompoundValue, 0, len(data)/elemSize)

	for off := 0; off+elemSize <= len(data); off += elemSize {
		elem := data[off : off+elemSize]
		value := make(CompoundValue, len(ct.Members))
		for _, m := range ct.Members {
			v, err := decodeCompoundMember(elem, &m, heaps, int(sb.OffsetSize))
			if err != nil {
				return nil, utils.WrapError(fmt.Sprintf("decode member %q", m.Name), err)
			}
			value[m.Name] = v
		}
		values = append(values, value)
	}

	return values, nil
}

func decodeCompoundMember(elem []byte, m *CompoundMember, heaps *globalHeapCache, offsetSize int) (interface{}, error) {
	start := int(m.Offset)
	size := int(m.Type.Size)
	if start+size > len(elem) {
		return nil, fmt.Errorf("member extends past element (%d+%d > %d)", start, size, len(elem))
	}
	raw := elem[start : start+size]
	order := byteOrderOf(m.Type)

	switch {
	case m.Type.Class == DatatypeFloat:
		switch size {
		case 8:
			return math.Float64frombits(order.Uint64(raw)), nil
		case 4:
			return float64(math.Float32frombits(order.Uint32(raw))), nil
		default:
			return nil, fmt.Errorf("unsupported float member size %d", size)
		}

	case m.Type.Class == DatatypeFixed && m.Type.IsSigned():
		switch size {
		case 1:
			return int64(int8(raw[0])), nil
		case 2:
			return int64(int16(order.Uint16(raw))), nil
		case 4:
			return int64(int32(order.Uint32(raw))), nil
		case 8:
			return int64(order.Uint64(raw)), nil
		default:
			return nil, fmt.Errorf("unsupported integer member size %d", size)
		}

	case m.Type.Class == DatatypeFixed:
		switch size {
		case 1:
			return uint64(raw[0]), nil
		case 2:
			return uint64(order.Uint16(raw)), nil
		case 4:
			return uint64(order.Uint32(raw)), nil
		case 8:
			return order.Uint64(raw), nil
		default:
			return nil, fmt.Errorf("unsupported integer member size %d", size)
		}

	case m.Type.IsVariableString():
		return decodeMemberVlenString(raw, heaps, offsetSize)

	case m.Type.IsString():
		return decodeFixedString(raw, m.Type.GetStringPadding()), nil

	default:
		return nil, fmt.Errorf("unsupported member class %d", m.Type.Class)
	}
}

func decodeMemberVlenString(raw []byte, heaps *globalHeapCache, offsetSize int) (string, error) {
	// Strip the optional 4-byte length prefix when the member size leaves
	// room for it in front of the heap reference.
	if len(raw) == 4+offsetSize+4 {
		raw = raw[4:]
	}
	ref, err := ParseGlobalHeapReference(raw, offsetSize)
	if err != nil {
		return "", err
	}
	if ref.HeapAddress == 0 {
		return "", nil
	}
	obj, err := heaps.object(ref)
	if err != nil {
		return "", err
	}
	s := obj
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), nil
}
