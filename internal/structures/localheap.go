// Package structures provides the group storage structures of the HDF5
// format: local heaps, symbol tables, group B-trees, fractal heaps and the
// B-tree v2 name indexes used by dense groups.
package structures

import (
	"bytes"
	"errors"
	"io"

	"github.com/scigolib/h5json/internal/core"
	"github.com/scigolib/h5json/internal/utils"
)

// LocalHeap holds the data segment of an HDF5 local heap. Symbol tables
// store object names as offsets into this segment.
type LocalHeap struct {
	Data       []byte
	HeaderSize uint64
}

// LoadLocalHeap reads the HEAP block at the given address and its data
// segment: signature, version, 3 reserved bytes, data segment size,
// free list offset, then the data segment address.
func LoadLocalHeap(r io.ReaderAt, address uint64, sb *core.Superblock) (*LocalHeap, error) {
	headerSize := 8 + 2*int(sb.LengthSize) + int(sb.OffsetSize)
	header := utils.GetBuffer(headerSize)
	defer utils.ReleaseBuffer(header)

	if _, err := r.ReadAt(header, int64(address)); err != nil {
		return nil, utils.WrapError("read local heap header", err)
	}
	if string(header[0:4]) != "HEAP" {
		return nil, errors.New("invalid local heap signature")
	}

	pos := 8
	dataSize := readSized(header[pos:], int(sb.LengthSize), sb)
	pos += 2 * int(sb.LengthSize) // Past the free list offset too.
	dataAddr := readSized(header[pos:], int(sb.OffsetSize), sb)

	if err := utils.ValidateBufferSize(dataSize, utils.MaxStringSize, "local heap"); err != nil {
		return nil, err
	}

	heap := &LocalHeap{
		Data:       make([]byte, dataSize),
		HeaderSize: uint64(headerSize),
	}
	if _, err := r.ReadAt(heap.Data, int64(dataAddr)); err != nil {
		return nil, utils.WrapError("read local heap data", err)
	}
	return heap, nil
}

// GetString returns the null-terminated string at the given data segment
// offset.
func (h *LocalHeap) GetString(offset uint64) (string, error) {
	if offset >= uint64(len(h.Data)) {
		return "", errors.New("offset beyond heap data")
	}
	end := bytes.IndexByte(h.Data[offset:], 0)
	if end < 0 {
		return "", errors.New("string not null-terminated")
	}
	return string(h.Data[offset : offset+uint64(end)]), nil
}

// readSized decodes a field whose width is the file's offset or length
// size, in the file's byte order.
func readSized(data []byte, size int, sb *core.Superblock) uint64 {
	switch size {
	case 2:
		return uint64(sb.Endianness.Uint16(data[:2]))
	case 4:
		return uint64(sb.Endianness.Uint32(data[:4]))
	default:
		return sb.Endianness.Uint64(data[:8])
	}
}
