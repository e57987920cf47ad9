package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DatatypeClass is the HDF5 datatype class.
type DatatypeClass uint8

// Datatype classes.
const (
	DatatypeFixed     DatatypeClass = 0  // Fixed-point (integers).
	DatatypeFloat     DatatypeClass = 1  // Floating-point.
	DatatypeTime      DatatypeClass = 2  // Time.
	DatatypeString    DatatypeClass = 3  // String.
	DatatypeBitfield  DatatypeClass = 4  // Bitfield.
	DatatypeOpaque    DatatypeClass = 5  // Opaque.
	DatatypeCompound  DatatypeClass = 6  // Compound.
	DatatypeReference DatatypeClass = 7  // Reference.
	DatatypeEnum      DatatypeClass = 8  // Enumerated.
	DatatypeVarLen    DatatypeClass = 9  // Variable-length.
	DatatypeArray     DatatypeClass = 10 // Array.
	DatatypeComplex   DatatypeClass = 11 // Complex (HDF5 2.0+).
)

// DatatypeMessage is a parsed HDF5 datatype message.
type DatatypeMessage struct {
	Class         DatatypeClass
	Version       uint8
	Size          uint32
	ClassBitField uint32
	Properties    []byte
}

// ParseDatatypeMessage parses a datatype message from header message data.
func ParseDatatypeMessage(data []byte) (*DatatypeMessage, error) {
	if len(data) < 8 {
		return nil, errors.New("datatype message too short")
	}

	// Bytes 0-3 pack class (low nibble), version (next nibble) and the
	// 24-bit class bit field; bytes 4-7 carry the element size.
	classAndVersion := binary.LittleEndian.Uint32(data[0:4])

	return &DatatypeMessage{
		//nolint:gosec // G115: HDF5 binary format unpacking
		Class: DatatypeClass(classAndVersion & 0x0F),
		//nolint:gosec // G115: HDF5 binary format unpacking
		Version:       uint8((classAndVersion >> 4) & 0x0F),
		Size:          binary.LittleEndian.Uint32(data[4:8]),
		ClassBitField: (classAndVersion >> 8) & 0x00FFFFFF,
		Properties:    data[8:],
	}, nil
}

// IsFloat64 reports IEEE 754 double precision (64-bit).
func (dt *DatatypeMessage) IsFloat64() bool {
	return dt.Class == DatatypeFloat && dt.Size == 8
}

// IsFloat32 reports IEEE 754 single precision (32-bit).
func (dt *DatatypeMessage) IsFloat32() bool {
	return dt.Class == DatatypeFloat && dt.Size == 4
}

// IsInt32 reports a 4-byte fixed-point type.
func (dt *DatatypeMessage) IsInt32() bool {
	return dt.Class == DatatypeFixed && dt.Size == 4
}

// IsInt64 reports an 8-byte fixed-point type.
func (dt *DatatypeMessage) IsInt64() bool {
	return dt.Class == DatatypeFixed && dt.Size == 8
}

// IsString reports any string class type.
func (dt *DatatypeMessage) IsString() bool {
	return dt.Class == DatatypeString
}

// IsFixedString reports a fixed-length string (explicit element size).
func (dt *DatatypeMessage) IsFixedString() bool {
	return dt.Class == DatatypeString && dt.Size > 0
}

// IsVariableString reports a variable-length string: a VarLen type whose
// base class is string.
func (dt *DatatypeMessage) IsVariableString() bool {
	if dt.Class != DatatypeVarLen {
		return false
	}
	if len(dt.Properties) > 0 {
		return DatatypeClass(dt.Properties[0]&0x0F) == DatatypeString
	}
	return true
}

// IsCompound reports a compound (struct) type.
func (dt *DatatypeMessage) IsCompound() bool {
	return dt.Class == DatatypeCompound
}

// IsSigned reports whether a fixed-point type is signed (bit field bit 3).
func (dt *DatatypeMessage) IsSigned() bool {
	return dt.Class == DatatypeFixed && dt.ClassBitField&0x08 != 0
}

// GetStringPadding returns the string padding type:
// 0 null-terminated, 1 null-padded, 2 space-padded.
func (dt *DatatypeMessage) GetStringPadding() uint8 {
	//nolint:gosec // G115: HDF5 binary format bitfield extraction
	return uint8(dt.ClassBitField & 0x0F)
}

// GetByteOrder returns the byte order for numeric types (bit field bit 0).
func (dt *DatatypeMessage) GetByteOrder() binary.ByteOrder {
	if dt.ClassBitField&0x01 == 0 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// ElementName returns the numpy-style element type name for numeric types,
// or "" when the type has no such name (strings, compounds, references...).
func (dt *DatatypeMessage) ElementName() string {
	switch dt.Class {
	case DatatypeFloat:
		switch dt.Size {
		case 1, 2:
			// Covers float16 plus the byte-wide ML formats, which all
			// widen to float64 on read.
			if dt.Size == 1 {
				return "float8"
			}
			return "float16"
		case 4:
			return "float32"
		case 8:
			return "float64"
		}
	case DatatypeFixed:
		base := "uint"
		if dt.IsSigned() {
			base = "int"
		}
		switch dt.Size {
		case 1:
			return base + "8"
		case 2:
			return base + "16"
		case 4:
			return base + "32"
		case 8:
			return base + "64"
		}
	}
	return ""
}

// String returns a short human-readable description.
func (dt *DatatypeMessage) String() string {
	var className string
	switch dt.Class {
	case DatatypeFixed:
		className = "integer"
	case DatatypeFloat:
		className = "float"
	case DatatypeString:
		className = "string"
	case DatatypeCompound:
		className = "compound"
	case DatatypeArray:
		className = "array"
	default:
		className = fmt.Sprintf("class_%d", dt.Class)
	}
	return fmt.Sprintf("%s (size=%d bytes)", className, dt.Size)
}

// GetEncodedSize returns the encoded size of the datatype message: the
// 8-byte header plus class-specific properties (H5Odtype.c). Compound
// member parsing uses this to step through member definitions.
func (dt *DatatypeMessage) GetEncodedSize() int {
	switch dt.Class {
	case DatatypeFixed, DatatypeBitfield:
		return 12 // header + bit offset + precision
	case DatatypeFloat:
		return 20 // header + byte order, padding, mantissa/exponent layout
	case DatatypeTime:
		return 10
	default:
		return 8 + len(dt.Properties)
	}
}
