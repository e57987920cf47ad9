// Package core implements the HDF5 binary format read layer: superblocks,
// object headers, datatype/dataspace/layout messages, attributes and the
// dataset readers built on them.
package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/h5json/internal/utils"
)

// HDF5 file signature and supported superblock versions.
const (
	Signature = "\x89HDF\r\n\x1a\n"
	Version0  = 0
	Version2  = 2
	Version3  = 3
)

// UndefinedAddress marks an unset file address (all bits set).
const UndefinedAddress = ^uint64(0)

// Superblock holds the file-level metadata read from the start of the file.
type Superblock struct {
	Version        uint8
	OffsetSize     uint8
	LengthSize     uint8
	BaseAddress    uint64
	RootGroup      uint64
	Endianness     binary.ByteOrder
	SuperExtension uint64
	DriverInfo     uint64
}

// ReadSuperblock parses the superblock at offset 0. Versions 0, 2 and 3
// are supported (version 1 files are rare enough to reject outright).
func ReadSuperblock(r io.ReaderAt) (*Superblock, error) {
	buf := utils.GetBuffer(128)
	defer utils.ReleaseBuffer(buf)

	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, utils.WrapError("superblock read failed", err)
	}
	if n < 48 {
		return nil, errors.New("file too small to contain a superblock")
	}
	if string(buf[:8]) != Signature {
		return nil, errors.New("invalid HDF5 signature")
	}

	version := buf[8]
	if version != Version0 && version != Version2 && version != Version3 {
		return nil, fmt.Errorf("unsupported superblock version: %d", version)
	}

	endianness, offsetSize, lengthSize, err := parseSizes(version, buf)
	if err != nil {
		return nil, err
	}

	// readValue reads a variable-sized address field out of the buffer.
	readValue := func(offset int, size uint8) (uint64, error) {
		if offset < 0 || offset+int(size) > len(buf) {
			return 0, fmt.Errorf("buffer overflow: offset=%d, size=%d", offset, size)
		}
		data := buf[offset : offset+int(size)]
		switch size {
		case 1:
			return uint64(data[0]), nil
		case 2:
			return uint64(endianness.Uint16(data)), nil
		case 4:
			return uint64(endianness.Uint32(data)), nil
		case 8:
			return endianness.Uint64(data), nil
		default:
			return 0, fmt.Errorf("unsupported size: %d", size)
		}
	}

	sb := &Superblock{
		Version:    version,
		OffsetSize: offsetSize,
		LengthSize: lengthSize,
		Endianness: endianness,
	}

	if version == Version0 {
		// Version 0 layout, after the 24-byte prefix:
		//   24-31 base address, 32-39 free space index, 40-47 EOF address,
		//   48-55 driver info block, 56-95 root group symbol table entry:
		//   56-63 link name offset, 64-71 object header address,
		//   72-79 cache type + reserved, 80-87 B-tree address,
		//   88-95 local heap address.
		sb.BaseAddress = 0
		sb.RootGroup, err = readValue(64, offsetSize)
		if err != nil {
			return nil, utils.WrapError("root group address read failed", err)
		}
		// Object header address 0 means symbol-table format; the root is
		// reached through the B-tree address in the scratch pad instead.
		if sb.RootGroup == 0 {
			sb.RootGroup, err = readValue(80, offsetSize)
			if err != nil {
				return nil, utils.WrapError("b-tree address read failed", err)
			}
		}
		return sb, nil
	}

	// v2 and v3: base address, superblock extension, EOF (skipped),
	// root group object header address, each offsetSize bytes from byte 12.
	current := 12

	sb.BaseAddress, err = readValue(current, offsetSize)
	if err != nil {
		return nil, utils.WrapError("base address read failed", err)
	}
	current += int(offsetSize)

	sb.SuperExtension, err = readValue(current, offsetSize)
	if err != nil {
		return nil, utils.WrapError("super extension read failed", err)
	}
	current += 2 * int(offsetSize) // skip end-of-file address

	sb.RootGroup, err = readValue(current, offsetSize)
	if err != nil {
		return nil, utils.WrapError("root group address read failed", err)
	}

	return sb, nil
}

// parseSizes decodes byte order and offset/length sizes, which are encoded
// differently per superblock version.
func parseSizes(version uint8, buf []byte) (binary.ByteOrder, uint8, uint8, error) {
	var endianness binary.ByteOrder
	var offsetSize, lengthSize uint8

	if version == Version0 {
		offsetSize = buf[13]
		lengthSize = buf[14]
		endianness = binary.LittleEndian
	} else {
		// Byte 9 bit 0 selects endianness, byte 10 carries the sizes either
		// as a direct byte count (1/2/4/8) or as packed 4-bit codes.
		if buf[9]&0x01 == 0 {
			endianness = binary.LittleEndian
		} else {
			endianness = binary.BigEndian
		}

		sizesByte := buf[10]
		switch sizesByte {
		case 1, 2, 4, 8:
			offsetSize = sizesByte
			lengthSize = 8
		default:
			codes := map[uint8]uint8{0: 1, 1: 2, 2: 4, 3: 8}
			var ok bool
			if offsetSize, ok = codes[sizesByte&0x0F]; !ok {
				return nil, 0, 0, fmt.Errorf("invalid offset size code: %d", sizesByte&0x0F)
			}
			if lengthSize, ok = codes[(sizesByte>>4)&0x0F]; !ok {
				return nil, 0, 0, fmt.Errorf("invalid length size code: %d", (sizesByte>>4)&0x0F)
			}
		}
	}

	// Some generators leave the sizes zeroed; default to 8.
	if offsetSize == 0 {
		offsetSize = 8
	}
	if lengthSize == 0 {
		lengthSize = 8
	}

	switch offsetSize {
	case 1, 2, 4, 8:
	default:
		return nil, 0, 0, fmt.Errorf("invalid offset size %d for version %d", offsetSize, version)
	}
	switch lengthSize {
	case 1, 2, 4, 8:
	default:
		return nil, 0, 0, fmt.Errorf("invalid length size %d for version %d", lengthSize, version)
	}

	return endianness, offsetSize, lengthSize, nil
}
