package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scigolib/h5json/internal/utils"
)

// ReadDatasetStrings reads a string dataset. Both fixed-length strings and
// variable-length strings stored in global heap collections are supported.
func ReadDatasetStrings(r io.ReaderAt, header *ObjectHeader, sb *Superblock) ([]string, error) {
	info, err := ReadDatasetInfo(header, sb)
	if err != nil {
		return nil, err
	}
	return ReadStringData(r, info, sb)
}

// ReadStringData is ReadDatasetStrings for callers that already parsed the
// dataset messages.
func ReadStringData(r io.ReaderAt, info *DatasetInfo, sb *Superblock) ([]string, error) {
	if !info.Datatype.IsString() && !info.Datatype.IsVariableString() {
		return nil, fmt.Errorf("element class %d is not a string type", info.Datatype.Class)
	}

	data, err := readRawData(r, info, sb)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []string{}, nil
	}

	if info.Datatype.IsVariableString() {
		return decodeVariableStrings(r, data, info.Datatype, sb)
	}
	return decodeFixedStrings(data, info.Datatype)
}

func decodeFixedStrings(data []byte, dt *DatatypeMessage) ([]string, error) {
	elemSize := int(dt.Size)
	if elemSize == 0 {
		return nil, fmt.Errorf("zero-size string element")
	}
	if len(data)%elemSize != 0 {
		return nil, fmt.Errorf("data length %d not a multiple of string size %d", len(data), elemSize)
	}

	padding := dt.GetStringPadding()
	values := make([]string, 0, len(data)/elemSize)
	for off := 0; off+elemSize <= len(data); off += elemSize {
		values = append(values, decodeFixedString(data[off:off+elemSize], padding))
	}
	return values, nil
}

// decodeFixedString trims a fixed-width string element according to its
// declared padding: 0 null-terminated, 1 null-padded, 2 space-padded.
func decodeFixedString(raw []byte, padding uint8) string {
	switch padding {
	case 2:
		return string(bytes.TrimRight(raw, " \x00"))
	case 1:
		return string(bytes.TrimRight(raw, "\x00"))
	default:
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			return string(raw[:i])
		}
		return string(raw)
	}
}

// decodeVariableStrings resolves global heap references to string data.
// Elements are either a bare heap reference (address + index) or, as
// written by the C library, a 4-byte length followed by the reference.
func decodeVariableStrings(r io.ReaderAt, data []byte, dt *DatatypeMessage, sb *Superblock) ([]string, error) {
	elemSize := int(dt.Size)
	offsetSize := int(sb.OffsetSize)
	refSize := offsetSize + 4

	hasLength := false
	switch elemSize {
	case refSize:
	case 4 + refSize:
		hasLength = true
	default:
		return nil, fmt.Errorf("variable-length string element size %d does not match reference size", elemSize)
	}

	if len(data)%elemSize != 0 {
		return nil, fmt.Errorf("data length %d not a multiple of element size %d", len(data), elemSize)
	}

	heaps := newGlobalHeapCache(r, offsetSize)
	values := make([]string, 0, len(data)/elemSize)

	for off := 0; off+elemSize <= len(data); off += elemSize {
		elem := data[off : off+elemSize]
		var declaredLen uint32
		if hasLength {
			declaredLen = binary.LittleEndian.Uint32(elem[:4])
			elem = elem[4:]
		}

		ref, err := ParseGlobalHeapReference(elem, offsetSize)
		if err != nil {
			return nil, utils.WrapError("parse string heap reference", err)
		}

		// An all-zero reference is an unwritten element.
		if ref.HeapAddress == 0 {
			values = append(values, "")
			continue
		}

		obj, err := heaps.object(ref)
		if err != nil {
			return nil, utils.WrapError("resolve string heap object", err)
		}

		s := obj
		if hasLength && uint64(declaredLen) <= uint64(len(s)) {
			s = s[:declaredLen]
		}
		if i := bytes.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}
		values = append(values, string(s))
	}

	return values, nil
}
