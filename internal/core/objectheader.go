package core

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scigolib/h5json/internal/utils"
)

// ObjectType identifies what kind of object a header describes.
type ObjectType uint8

// Object type constants.
const (
	ObjectTypeGroup ObjectType = iota
	ObjectTypeDataset
	ObjectTypeDatatype
	ObjectTypeUnknown
)

// ObjectHeader is a parsed HDF5 object header with its metadata messages.
type ObjectHeader struct {
	Version    uint8
	Flags      uint8
	Type       ObjectType
	Messages   []*HeaderMessage
	Name       string
	Attributes []*Attribute
	// AttributeInfo is set when the object uses dense attribute storage;
	// the attributes behind it are resolved by the caller.
	AttributeInfo *AttributeInfoMessage
}

// HeaderMessage is a single raw message within an object header.
type HeaderMessage struct {
	Type   MessageType
	Offset uint64
	Data   []byte
}

// MessageType identifies the type of an object header message.
type MessageType uint16

// Known header message types.
const (
	MsgNil            MessageType = 0
	MsgDataspace      MessageType = 1
	MsgLinkInfo       MessageType = 2
	MsgDatatype       MessageType = 3
	MsgFillValueOld   MessageType = 4
	MsgFillValue      MessageType = 5
	MsgLinkMessage    MessageType = 6
	MsgDataLayout     MessageType = 8
	MsgFilterPipeline MessageType = 11
	MsgAttribute      MessageType = 12
	MsgName           MessageType = 13
	MsgAttributeInfo  MessageType = 15
	MsgContinuation   MessageType = 16
	MsgSymbolTable    MessageType = 17
)

// ReadObjectHeader parses the object header at address. Both the version 1
// format (no signature) and the version 2 "OHDR" format are handled.
func ReadObjectHeader(r io.ReaderAt, address uint64, sb *Superblock) (*ObjectHeader, error) {
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	offset := int64(address)
	if offset < 0 {
		return nil, fmt.Errorf("negative offset: %d", offset)
	}

	prefix := utils.GetBuffer(8)
	defer utils.ReleaseBuffer(prefix)

	if _, err := r.ReadAt(prefix, offset); err != nil {
		return nil, utils.WrapError("object header read failed", err)
	}

	header := &ObjectHeader{}

	// V1 headers have no signature: version byte 1 followed by a zero
	// reserved byte. V2 headers start with "OHDR" in file byte order.
	isBE := false
	switch {
	case string(prefix[0:4]) == "OHDR":
		header.Version = prefix[4]
		header.Flags = prefix[5]
	case prefix[3] == 'O' && prefix[2] == 'H' && prefix[1] == 'D' && prefix[0] == 'R':
		isBE = true
		header.Version = prefix[7]
		header.Flags = prefix[6]
	case prefix[0] == 1 && prefix[1] == 0:
		header.Version = 1
	default:
		return nil, fmt.Errorf("invalid object header signature: % x", prefix[0:4])
	}

	var err error
	switch header.Version {
	case 1:
		header.Messages, header.Name, err = parseV1Header(r, address, sb)
		if err != nil {
			return nil, utils.WrapError("v1 header parse failed", err)
		}
	case 2:
		header.Messages, header.Name, err = parseV2Header(r, address, header.Flags, isBE)
		if err != nil {
			return nil, utils.WrapError("v2 header parse failed", err)
		}
	default:
		return nil, fmt.Errorf("unsupported object header version: %d", header.Version)
	}

	header.Type = determineObjectType(header.Messages)

	header.Attributes, header.AttributeInfo = ParseAttributesFromMessages(header.Messages, sb)

	return header, nil
}

func determineObjectType(messages []*HeaderMessage) ObjectType {
	// A dataspace message is definitive for datasets (they also carry a
	// datatype message); link bookkeeping is definitive for groups.
	for _, msg := range messages {
		switch msg.Type {
		case MsgSymbolTable, MsgLinkInfo, MsgLinkMessage:
			return ObjectTypeGroup
		case MsgDataspace:
			return ObjectTypeDataset
		}
	}

	// A standalone datatype message marks a committed datatype object.
	for _, msg := range messages {
		if msg.Type == MsgDatatype {
			return ObjectTypeDatatype
		}
	}

	return ObjectTypeUnknown
}

func parseV2Header(r io.ReaderAt, headerAddr uint64, flags uint8, isBE bool) ([]*HeaderMessage, string, error) {
	var messages []*HeaderMessage
	var name string

	// Skip signature (4) + version (1) + flags (1).
	current := headerAddr + 6

	// Flag bits per H5Opublic.h: 0-1 chunk-0 size field width, bit 4
	// attribute phase change fields, bit 5 timestamp fields.
	if flags&0x20 != 0 {
		current += 16 // four 4-byte time fields
	}
	if flags&0x10 != 0 {
		current += 4 // max-compact + min-dense attribute counts
	}

	chunkSizeBytes := 1 << (flags & 0x03) // 1, 2, 4 or 8 bytes
	chunkSize, err := readUintField(r, current, chunkSizeBytes, isBE)
	if err != nil {
		return nil, "", utils.WrapError("chunk size read failed", err)
	}

	//nolint:gosec // G115: Safe conversion for HDF5 structure sizes
	current += uint64(chunkSizeBytes)
	end := current + chunkSize

	for current < end {
		// V2 message prefix: type (1) + size (2) + flags (1).
		head := utils.GetBuffer(4)
		//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
		if _, err := r.ReadAt(head, int64(current)); err != nil {
			utils.ReleaseBuffer(head)
			return nil, "", utils.WrapError("message header read failed", err)
		}

		msgType := MessageType(head[0])
		var msgSize uint16
		if isBE {
			msgSize = binary.BigEndian.Uint16(head[1:3])
		} else {
			msgSize = binary.LittleEndian.Uint16(head[1:3])
		}
		utils.ReleaseBuffer(head)

		if msgSize == 0 {
			current += 4
			continue
		}

		data := utils.GetBuffer(int(msgSize))
		//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
		if _, err := r.ReadAt(data, int64(current+4)); err != nil {
			utils.ReleaseBuffer(data)
			return nil, "", utils.WrapError("message data read failed", err)
		}

		if msgType == MsgName && len(data) > 1 {
			name = string(data[1:])
		}

		messages = append(messages, &HeaderMessage{
			Type:   msgType,
			Offset: current,
			Data:   data,
		})

		current += 4 + uint64(msgSize)
	}

	return messages, name, nil
}

// readUintField reads an unsigned integer field of 1, 2, 4 or 8 bytes.
func readUintField(r io.ReaderAt, addr uint64, width int, isBE bool) (uint64, error) {
	buf := utils.GetBuffer(width)
	defer utils.ReleaseBuffer(buf)

	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(buf, int64(addr)); err != nil {
		return 0, err
	}

	var order binary.ByteOrder = binary.LittleEndian
	if isBE {
		order = binary.BigEndian
	}

	switch width {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(order.Uint16(buf)), nil
	case 4:
		return uint64(order.Uint32(buf)), nil
	case 8:
		return order.Uint64(buf), nil
	default:
		return 0, fmt.Errorf("unsupported field width: %d", width)
	}
}
