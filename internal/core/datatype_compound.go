package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// CompoundMember is one field of a compound datatype.
type CompoundMember struct {
	Name   string
	Offset uint32 // Byte offset within the compound element.
	Type   *DatatypeMessage
}

// CompoundType is a parsed compound datatype.
type CompoundType struct {
	Size    uint32 // Element size in bytes.
	Members []CompoundMember
}

// ParseCompoundType decodes the member list from a compound datatype's
// property block. Versions 1 and 3 of the member encoding are supported.
func ParseCompoundType(dt *DatatypeMessage) (*CompoundType, error) {
	if dt.Class != DatatypeCompound {
		return nil, errors.New("not a compound datatype")
	}
	if len(dt.Properties) < 2 {
		return nil, errors.New("compound properties too short")
	}

	ct := &CompoundType{Size: dt.Size}

	switch dt.Version {
	case 1:
		// v1 keeps the member count in bit field bits 0-15.
		return parseCompoundV1(ct, dt.Properties, uint16(dt.ClassBitField&0xFFFF))
	case 3:
		return parseCompoundV3(ct, dt.Properties)
	default:
		return nil, fmt.Errorf("unsupported compound datatype version: %d", dt.Version)
	}
}

// parseCompoundV1 decodes the version 1 member encoding (H5Odtype.c): a
// name null-terminated and padded to 8 bytes, a uint32 byte offset, 28
// bytes of array info, then the member's datatype message with no padding
// before the next member.
func parseCompoundV1(ct *CompoundType, props []byte, numMembers uint16) (*CompoundType, error) {
	offset := 0

	for i := uint16(0); i < numMembers; i++ {
		nameLen := bytes.IndexByte(props[offset:], 0)
		if nameLen < 0 {
			return nil, fmt.Errorf("member %d name not null-terminated", i)
		}
		member := CompoundMember{Name: string(props[offset : offset+nameLen])}
		offset += ((nameLen + 8) / 8) * 8

		if offset+4 > len(props) {
			return nil, fmt.Errorf("member %d offset field truncated", i)
		}
		member.Offset = binary.LittleEndian.Uint32(props[offset : offset+4])
		offset += 4

		// Array info is present even for scalar members. Array-valued
		// members are not decoded, only skipped over.
		if offset+28 > len(props) {
			return nil, fmt.Errorf("member %d array info truncated", i)
		}
		offset += 28

		if offset+8 > len(props) {
			return nil, fmt.Errorf("member %d datatype header truncated", i)
		}
		mt, err := ParseDatatypeMessage(props[offset:])
		if err != nil {
			return nil, fmt.Errorf("member %d (%s): %w", i, member.Name, err)
		}
		member.Type = mt
		offset += mt.GetEncodedSize()

		ct.Members = append(ct.Members, member)
	}

	return ct, nil
}

// parseCompoundV3 decodes the version 3 member encoding: a uint32 member
// count, then per member an unpadded null-terminated name, a uint32 byte
// offset, and the member's datatype message.
func parseCompoundV3(ct *CompoundType, props []byte) (*CompoundType, error) {
	if len(props) < 4 {
		return nil, errors.New("compound v3 properties too short")
	}
	numMembers := binary.LittleEndian.Uint32(props[0:4])
	offset := 4

	for i := uint32(0); i < numMembers; i++ {
		if offset >= len(props) {
			return nil, errors.New("compound v3 properties truncated")
		}
		nameLen := bytes.IndexByte(props[offset:], 0)
		if nameLen < 0 {
			return nil, errors.New("member name not null-terminated")
		}
		member := CompoundMember{Name: string(props[offset : offset+nameLen])}
		offset += nameLen + 1

		if offset+4 > len(props) {
			return nil, errors.New("compound v3 member offset truncated")
		}
		member.Offset = binary.LittleEndian.Uint32(props[offset : offset+4])
		offset += 4

		if offset+8 > len(props) {
			return nil, fmt.Errorf("compound v3 member %d datatype truncated", i)
		}
		mt, err := ParseDatatypeMessage(props[offset:])
		if err != nil {
			return nil, fmt.Errorf("member %d (%s): %w", i, member.Name, err)
		}
		member.Type = mt
		offset += mt.GetEncodedSize()

		ct.Members = append(ct.Members, member)
	}

	return ct, nil
}

func (ct *CompoundType) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "compound{size=%d, members=[", ct.Size)
	for i, m := range ct.Members {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%s@%d", m.Name, m.Type.String(), m.Offset)
	}
	b.WriteString("]}")
	return b.String()
}
