package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/scigolib/h5json/internal/utils"
)

// Attribute is a parsed attribute message: a name plus a typed value kept
// as raw bytes until decoded.
type Attribute struct {
	Name      string
	Datatype  *DatatypeMessage
	Dataspace *DataspaceMessage
	Data      []byte
}

// AttributeInfoMessage (0x000F) describes dense attribute storage: a
// fractal heap holding the attribute messages and a B-tree v2 name index.
type AttributeInfoMessage struct {
	Version             uint8
	Flags               uint8
	FractalHeapAddr     uint64
	BTreeNameIndexAddr  uint64
	MaxCreationIndex    uint64 // Present when creation order is tracked.
	BTreeOrderIndexAddr uint64 // Present when creation order is indexed.
}

// ParseAttributeMessage parses an attribute message (0x000C): version,
// flags, three uint16 sizes, then name, datatype, dataspace, and value.
// Versions 1 through 3 are handled; in version 1 the name, datatype and
// dataspace regions are each padded to 8 bytes.
func ParseAttributeMessage(data []byte, endianness binary.ByteOrder) (*Attribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("attribute message too short: %d bytes", len(data))
	}

	version := data[0]
	if version < 1 || version > 3 {
		return nil, fmt.Errorf("unsupported attribute message version: %d", version)
	}

	nameSize := int(endianness.Uint16(data[2:4]))
	datatypeSize := int(endianness.Uint16(data[4:6]))
	dataspaceSize := int(endianness.Uint16(data[6:8]))

	offset := 8
	if version >= 3 {
		// Name character set encoding byte.
		offset++
	}

	pad := func(n int) int {
		if version == 1 && n%8 != 0 {
			return n + 8 - n%8
		}
		return n
	}

	attr := &Attribute{}

	if offset+nameSize > len(data) {
		return nil, fmt.Errorf("attribute name extends past message")
	}
	if nameSize > 0 {
		// The stored size includes the null terminator.
		attr.Name = string(data[offset : offset+nameSize-1])
	}
	offset += pad(nameSize)

	if offset+datatypeSize > len(data) {
		return nil, fmt.Errorf("attribute datatype extends past message")
	}
	dt, err := ParseDatatypeMessage(data[offset : offset+datatypeSize])
	if err != nil {
		return nil, utils.WrapError("parse attribute datatype", err)
	}
	attr.Datatype = dt
	offset += pad(datatypeSize)

	if offset+dataspaceSize > len(data) {
		return nil, fmt.Errorf("attribute dataspace extends past message")
	}
	ds, err := ParseDataspaceMessage(data[offset : offset+dataspaceSize])
	if err != nil {
		return nil, utils.WrapError("parse attribute dataspace", err)
	}
	attr.Dataspace = ds
	offset += pad(dataspaceSize)

	if offset < len(data) {
		attr.Data = make([]byte, len(data)-offset)
		copy(attr.Data, data[offset:])
	}

	return attr, nil
}

// ReadValue decodes the attribute's value. Numeric values widen to float64
// or int64/uint64, strings resolve through the global heap when
// variable-length. Scalar attributes return a single value, non-scalar
// ones a slice.
func (a *Attribute) ReadValue(r io.ReaderAt, offsetSize int) (interface{}, error) {
	if a.Datatype == nil || a.Dataspace == nil {
		return nil, errors.New("attribute missing datatype or dataspace")
	}

	total := a.Dataspace.TotalElements()
	if total == 0 || len(a.Data) == 0 {
		return []interface{}{}, nil
	}
	isScalar := a.Dataspace.IsScalar() ||
		(len(a.Dataspace.Dimensions) == 1 && a.Dataspace.Dimensions[0] == 1)

	elemSize := uint64(a.Datatype.Size)
	if elemSize == 0 || total*elemSize > uint64(len(a.Data)) {
		return nil, fmt.Errorf("attribute data too short: %d bytes for %d elements of %d",
			len(a.Data), total, elemSize)
	}
	order := byteOrderOf(a.Datatype)

	switch {
	case a.Datatype.Class == DatatypeFloat:
		values := make([]float64, total)
		for i := uint64(0); i < total; i++ {
			raw := a.Data[i*elemSize : (i+1)*elemSize]
			switch elemSize {
			case 8:
				values[i] = math.Float64frombits(order.Uint64(raw))
			case 4:
				values[i] = float64(math.Float32frombits(order.Uint32(raw)))
			case 2:
				if a.Datatype.ExponentBits() == 8 {
					values[i] = float64(BFloat16(order.Uint16(raw)).ToFloat32())
				} else {
					values[i] = float64(DecodeFloat16(order.Uint16(raw)))
				}
			default:
				return nil, fmt.Errorf("unsupported float attribute size %d", elemSize)
			}
		}
		if isScalar {
			return values[0], nil
		}
		return values, nil

	case a.Datatype.Class == DatatypeFixed:
		raw := make([]uint64, total)
		for i := uint64(0); i < total; i++ {
			elem := a.Data[i*elemSize : (i+1)*elemSize]
			switch elemSize {
			case 1:
				raw[i] = uint64(elem[0])
			case 2:
				raw[i] = uint64(order.Uint16(elem))
			case 4:
				raw[i] = uint64(order.Uint32(elem))
			case 8:
				raw[i] = order.Uint64(elem)
			default:
				return nil, fmt.Errorf("unsupported integer attribute size %d", elemSize)
			}
		}
		// Unsigned values stay uint64 so the full range survives; the
		// callers render uint64 and int64 separately.
		if !a.Datatype.IsSigned() {
			if isScalar {
				return raw[0], nil
			}
			return raw, nil
		}
		values := make([]int64, total)
		for i, v := range raw {
			values[i] = signExtend(v, int(elemSize))
		}
		if isScalar {
			return values[0], nil
		}
		return values, nil

	case a.Datatype.IsVariableString():
		heaps := newGlobalHeapCache(r, offsetSize)
		values := make([]string, total)
		for i := uint64(0); i < total; i++ {
			raw := a.Data[i*elemSize : (i+1)*elemSize]
			s, err := decodeMemberVlenString(raw, heaps, offsetSize)
			if err != nil {
				return nil, utils.WrapError("resolve attribute string", err)
			}
			values[i] = s
		}
		if isScalar {
			return values[0], nil
		}
		return values, nil

	case a.Datatype.IsString():
		padding := a.Datatype.GetStringPadding()
		values := make([]string, total)
		for i := uint64(0); i < total; i++ {
			values[i] = decodeFixedString(a.Data[i*elemSize:(i+1)*elemSize], padding)
		}
		if isScalar {
			return values[0], nil
		}
		return values, nil
	}

	return nil, fmt.Errorf("unsupported attribute datatype class %d", a.Datatype.Class)
}

// signExtend interprets the low size bytes of v as a signed integer.
func signExtend(v uint64, size int) int64 {
	shift := uint(64 - 8*size)
	return int64(v<<shift) >> shift
}

// ParseAttributesFromMessages collects the compact attributes stored
// directly in header messages. When an attribute info message is present
// it is returned alongside so callers can resolve dense attributes from
// the fractal heap it points at (H5Adense.c).
func ParseAttributesFromMessages(messages []*HeaderMessage, sb *Superblock) ([]*Attribute, *AttributeInfoMessage) {
	var attributes []*Attribute
	var attrInfo *AttributeInfoMessage

	for _, msg := range messages {
		switch msg.Type {
		case MsgAttribute:
			attr, err := ParseAttributeMessage(msg.Data, sb.Endianness)
			if err != nil {
				// A single bad attribute should not hide the others.
				continue
			}
			attributes = append(attributes, attr)
		case MsgAttributeInfo:
			if info, err := ParseAttributeInfoMessage(msg.Data, sb); err == nil {
				attrInfo = info
			}
		}
	}

	return attributes, attrInfo
}

// HasDenseStorage reports whether the attribute info message points at a
// fractal heap holding dense attributes.
func (m *AttributeInfoMessage) HasDenseStorage() bool {
	return m != nil && m.FractalHeapAddr != 0 && m.FractalHeapAddr != UndefinedAddress
}

// ParseAttributeInfoMessage parses an attribute info message (H5Oainfo.c).
func ParseAttributeInfoMessage(data []byte, sb *Superblock) (*AttributeInfoMessage, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("attribute info message too short: %d bytes", len(data))
	}

	msg := &AttributeInfoMessage{Version: data[0], Flags: data[1]}
	offset := 2
	offsetSize := int(sb.OffsetSize)

	if msg.Flags&0x01 != 0 {
		if offset+2 > len(data) {
			return nil, errors.New("attribute info message truncated at creation index")
		}
		msg.MaxCreationIndex = uint64(sb.Endianness.Uint16(data[offset : offset+2]))
		offset += 2
	}

	if offset+2*offsetSize > len(data) {
		return nil, errors.New("attribute info message truncated at heap addresses")
	}
	msg.FractalHeapAddr = readPaddedUint(data[offset:], offsetSize, binary.LittleEndian)
	offset += offsetSize
	msg.BTreeNameIndexAddr = readPaddedUint(data[offset:], offsetSize, binary.LittleEndian)
	offset += offsetSize

	if msg.Flags&0x02 != 0 {
		if offset+offsetSize > len(data) {
			return nil, errors.New("attribute info message truncated at order index")
		}
		msg.BTreeOrderIndexAddr = readPaddedUint(data[offset:], offsetSize, binary.LittleEndian)
	}

	return msg, nil
}
