package structures

import (
	"fmt"
	"io"

	"github.com/scigolib/h5json/internal/core"
	"github.com/scigolib/h5json/internal/utils"
)

// ReadBTreeV2HeapIDs enumerates the records of a version 2 B-tree used
// as a name index over fractal heap objects (dense links and dense
// attributes) and returns the heap ID portion of each record. Name
// index records are a 4-byte hash followed by the heap ID.
//
// Only single-leaf trees (depth 0) are supported, which covers dense
// storage below the B-tree split threshold.
func ReadBTreeV2HeapIDs(r io.ReaderAt, address uint64, sb *core.Superblock) ([][]byte, error) {
	if address == 0 || address == core.UndefinedAddress {
		return nil, fmt.Errorf("invalid v2 B-tree address: 0x%X", address)
	}

	// Header: signature, version, type, node size (4), record size (2),
	// depth (2), split/merge percents (2), root address, root record
	// count (2), total record count (lengthSize).
	offsetSize := int(sb.OffsetSize)
	headerSize := 16 + offsetSize + 2 + int(sb.LengthSize)
	header := utils.GetBuffer(headerSize)
	defer utils.ReleaseBuffer(header)

	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt
	if _, err := r.ReadAt(header, int64(address)); err != nil {
		return nil, utils.WrapError("v2 B-tree header read failed", err)
	}

	if string(header[0:4]) != "BTHD" {
		return nil, fmt.Errorf("invalid v2 B-tree signature: %q (expected BTHD)", header[0:4])
	}
	if header[4] != 0 {
		return nil, fmt.Errorf("unsupported v2 B-tree version: %d", header[4])
	}

	recordSize := sb.Endianness.Uint16(header[10:12])
	depth := sb.Endianness.Uint16(header[12:14])
	if depth != 0 {
		return nil, fmt.Errorf("multi-level v2 B-trees not supported (depth %d)", depth)
	}
	if recordSize < 5 {
		return nil, fmt.Errorf("v2 B-tree record size too small for a name index: %d", recordSize)
	}

	rootAddr := readAddressFromBytes(header[16:], offsetSize, sb.Endianness)
	numRecords := sb.Endianness.Uint16(header[16+offsetSize : 16+offsetSize+2])
	if numRecords == 0 {
		return nil, nil
	}
	if rootAddr == 0 || rootAddr == core.UndefinedAddress {
		return nil, fmt.Errorf("v2 B-tree has records but no root node")
	}

	return readBTreeV2Leaf(r, rootAddr, numRecords, recordSize, sb)
}

func readBTreeV2Leaf(r io.ReaderAt, address uint64, numRecords, recordSize uint16, sb *core.Superblock) ([][]byte, error) {
	// Leaf: signature, version, type, then the packed records.
	size := 6 + int(numRecords)*int(recordSize)
	buf := utils.GetBuffer(size)
	defer utils.ReleaseBuffer(buf)

	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt
	if _, err := r.ReadAt(buf, int64(address)); err != nil {
		return nil, utils.WrapError("v2 B-tree leaf read failed", err)
	}

	if string(buf[0:4]) != "BTLF" {
		return nil, fmt.Errorf("invalid v2 B-tree leaf signature: %q (expected BTLF)", buf[0:4])
	}
	if buf[4] != 0 {
		return nil, fmt.Errorf("unsupported v2 B-tree leaf version: %d", buf[4])
	}

	heapIDs := make([][]byte, 0, numRecords)
	for i := 0; i < int(numRecords); i++ {
		record := buf[6+i*int(recordSize) : 6+(i+1)*int(recordSize)]
		id := make([]byte, recordSize-4)
		copy(id, record[4:]) // skip the name hash
		heapIDs = append(heapIDs, id)
	}

	return heapIDs, nil
}
