package structures

import (
	"fmt"
	"io"

	"github.com/scigolib/h5json/internal/core"
	"github.com/scigolib/h5json/internal/utils"
)

// FractalHeap is a read-only view of a fractal heap, the storage backing
// dense group links and dense attributes. Managed and tiny objects are
// supported; huge objects (stored outside the heap behind a v2 B-tree)
// are not.
type FractalHeap struct {
	Header     *FractalHeapHeader
	reader     io.ReaderAt
	headerAddr uint64
	sb         *core.Superblock
}

// FractalHeapHeader holds the fields of the FRHP header needed to locate
// and decode managed objects.
type FractalHeapHeader struct {
	HeapIDLen         uint16
	IOFiltersLen      uint16
	Flags             uint8
	MaxManagedObjSize uint32

	// Doubling table parameters.
	TableWidth         uint16
	StartingBlockSize  uint64
	MaxDirectBlockSize uint64
	MaxHeapSize        uint16 // log2 of maximum heap size
	RootBlockAddr      uint64
	CurrentRowCount    uint16 // 0 means the root block is a direct block

	// Derived encoding widths.
	HeapOffsetSize       uint8
	HeapLengthSize       uint8
	ChecksumDirectBlocks bool
}

// Heap ID type field values (bits 4-5 of the leading flag byte).
const (
	heapIDTypeManaged = 0x00
	heapIDTypeHuge    = 0x10
	heapIDTypeTiny    = 0x20
)

// OpenFractalHeap parses the fractal heap header at address.
func OpenFractalHeap(r io.ReaderAt, address uint64, sb *core.Superblock) (*FractalHeap, error) {
	if address == 0 || address == core.UndefinedAddress {
		return nil, fmt.Errorf("invalid fractal heap address: 0x%X", address)
	}

	header, err := parseFractalHeapHeader(r, address, sb)
	if err != nil {
		return nil, utils.WrapError("fractal heap header parse failed", err)
	}

	return &FractalHeap{
		Header:     header,
		reader:     r,
		headerAddr: address,
		sb:         sb,
	}, nil
}

// parseFractalHeapHeader decodes the FRHP header. The layout is:
// signature, version, heap ID length, filter length, flags, max managed
// object size, huge object fields (2), free space fields (2), statistics
// (8 lengths), then the doubling table block.
func parseFractalHeapHeader(r io.ReaderAt, address uint64, sb *core.Superblock) (*FractalHeapHeader, error) {
	lengthSize := int(sb.LengthSize)
	offsetSize := int(sb.OffsetSize)
	headerSize := 22 + 12*lengthSize + 3*offsetSize

	buf := utils.GetBuffer(headerSize)
	defer utils.ReleaseBuffer(buf)

	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt
	if _, err := r.ReadAt(buf, int64(address)); err != nil {
		return nil, utils.WrapError("fractal heap header read failed", err)
	}

	if string(buf[0:4]) != "FRHP" {
		return nil, fmt.Errorf("invalid fractal heap signature: %q (expected FRHP)", buf[0:4])
	}
	if buf[4] != 0 {
		return nil, fmt.Errorf("unsupported fractal heap version: %d", buf[4])
	}

	h := &FractalHeapHeader{
		HeapIDLen:    sb.Endianness.Uint16(buf[5:7]),
		IOFiltersLen: sb.Endianness.Uint16(buf[7:9]),
		Flags:        buf[9],
	}
	h.ChecksumDirectBlocks = h.Flags&0x02 != 0
	h.MaxManagedObjSize = sb.Endianness.Uint32(buf[10:14])

	// Skip the huge object, free space and statistics fields.
	offset := 14 + lengthSize + offsetSize + lengthSize + offsetSize + 8*lengthSize

	h.TableWidth = sb.Endianness.Uint16(buf[offset : offset+2])
	offset += 2
	h.StartingBlockSize = readAddressFromBytes(buf[offset:], lengthSize, sb.Endianness)
	offset += lengthSize
	h.MaxDirectBlockSize = readAddressFromBytes(buf[offset:], lengthSize, sb.Endianness)
	offset += lengthSize
	h.MaxHeapSize = sb.Endianness.Uint16(buf[offset : offset+2])
	offset += 2 + 2 // plus starting rows in root indirect block
	h.RootBlockAddr = readAddressFromBytes(buf[offset:], offsetSize, sb.Endianness)
	offset += offsetSize
	h.CurrentRowCount = sb.Endianness.Uint16(buf[offset : offset+2])

	h.HeapOffsetSize = uint8((h.MaxHeapSize + 7) / 8) //nolint:gosec // G115: result <= 8
	h.HeapLengthSize = minBytesToEncode(h.MaxDirectBlockSize)
	if n := minBytesToEncode(uint64(h.MaxManagedObjSize)); n < h.HeapLengthSize {
		h.HeapLengthSize = n
	}

	return h, nil
}

// ReadObject retrieves the object identified by heapID.
func (fh *FractalHeap) ReadObject(heapID []byte) ([]byte, error) {
	if len(heapID) < 1 {
		return nil, fmt.Errorf("heap ID too short: %d bytes", len(heapID))
	}

	flags := heapID[0]
	if version := (flags & 0xC0) >> 6; version != 0 {
		return nil, fmt.Errorf("unsupported heap ID version: %d", version)
	}

	switch flags & 0x30 {
	case heapIDTypeManaged:
		return fh.readManagedObject(heapID)
	case heapIDTypeTiny:
		// Tiny objects store their data inline after the flag byte.
		data := make([]byte, len(heapID)-1)
		copy(data, heapID[1:])
		return data, nil
	case heapIDTypeHuge:
		return nil, fmt.Errorf("huge heap objects not supported")
	default:
		return nil, fmt.Errorf("unsupported heap ID type: 0x%02X", flags&0x30)
	}
}

// readManagedObject decodes a managed heap ID (offset and length within
// the heap address space) and extracts the object from its direct block.
func (fh *FractalHeap) readManagedObject(heapID []byte) ([]byte, error) {
	offsetSize := int(fh.Header.HeapOffsetSize)
	lengthSize := int(fh.Header.HeapLengthSize)
	if len(heapID) < 1+offsetSize+lengthSize {
		return nil, fmt.Errorf("heap ID too short for managed object: %d bytes (need %d)",
			len(heapID), 1+offsetSize+lengthSize)
	}

	objOffset := readAddressFromBytes(heapID[1:], offsetSize, fh.sb.Endianness)
	objLength := readAddressFromBytes(heapID[1+offsetSize:], lengthSize, fh.sb.Endianness)

	blockAddr, blockSize, err := fh.locateDirectBlock(objOffset)
	if err != nil {
		return nil, err
	}

	block, err := fh.readDirectBlock(blockAddr, blockSize)
	if err != nil {
		return nil, utils.WrapError("direct block read failed", err)
	}

	if objOffset < block.Offset {
		return nil, fmt.Errorf("object offset 0x%X before block offset 0x%X", objOffset, block.Offset)
	}
	rel := objOffset - block.Offset
	if rel+objLength > uint64(len(block.Data)) {
		return nil, fmt.Errorf("object extends beyond direct block (offset 0x%X, length %d, block size %d)",
			rel, objLength, len(block.Data))
	}

	obj := make([]byte, objLength)
	copy(obj, block.Data[rel:rel+objLength])
	return obj, nil
}

// locateDirectBlock maps a heap offset to the address and size of the
// direct block containing it. With no indirect rows the root block is
// the single direct block; otherwise the root indirect block's doubling
// table is walked. Rows 0 and 1 hold blocks of the starting size, row n
// doubles the size of row n-1 from there on.
func (fh *FractalHeap) locateDirectBlock(objOffset uint64) (addr, size uint64, err error) {
	h := fh.Header
	if h.CurrentRowCount == 0 {
		return h.RootBlockAddr, h.StartingBlockSize, nil
	}

	iblock, err := fh.readIndirectBlock(h.RootBlockAddr, h.CurrentRowCount)
	if err != nil {
		return 0, 0, utils.WrapError("root indirect block read failed", err)
	}

	var blockStart uint64
	for row := uint16(0); row < h.CurrentRowCount; row++ {
		rowBlockSize := h.StartingBlockSize
		if row > 1 {
			rowBlockSize = h.StartingBlockSize << (row - 1)
		}
		if rowBlockSize > h.MaxDirectBlockSize {
			return 0, 0, fmt.Errorf("multi-level indirect heaps not supported")
		}
		for col := uint16(0); col < h.TableWidth; col++ {
			if objOffset < blockStart+rowBlockSize {
				entry := int(row)*int(h.TableWidth) + int(col)
				if entry >= len(iblock.Entries) {
					return 0, 0, fmt.Errorf("heap offset 0x%X beyond indirect block entries", objOffset)
				}
				childAddr := iblock.Entries[entry]
				if childAddr == 0 || childAddr == core.UndefinedAddress {
					return 0, 0, fmt.Errorf("heap offset 0x%X points to unallocated block", objOffset)
				}
				return childAddr, rowBlockSize, nil
			}
			blockStart += rowBlockSize
		}
	}

	return 0, 0, fmt.Errorf("heap offset 0x%X beyond allocated rows", objOffset)
}

// directBlock holds a decoded FHDB block.
type directBlock struct {
	Offset uint64 // offset of the block within the heap address space
	Data   []byte
}

// readDirectBlock reads an FHDB block of the given size and strips its header.
func (fh *FractalHeap) readDirectBlock(address, blockSize uint64) (*directBlock, error) {
	if address == 0 || address == core.UndefinedAddress {
		return nil, fmt.Errorf("invalid direct block address: 0x%X", address)
	}
	if err := utils.ValidateBufferSize(blockSize, utils.MaxChunkSize, "fractal heap direct block"); err != nil {
		return nil, err
	}

	buf := make([]byte, blockSize)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt
	if _, err := fh.reader.ReadAt(buf, int64(address)); err != nil {
		return nil, utils.WrapError("direct block read failed", err)
	}

	if string(buf[0:4]) != "FHDB" {
		return nil, fmt.Errorf("invalid direct block signature: %q (expected FHDB)", buf[0:4])
	}
	if buf[4] != 0 {
		return nil, fmt.Errorf("unsupported direct block version: %d", buf[4])
	}

	offsetSize := int(fh.sb.OffsetSize)
	headerAddr := readAddressFromBytes(buf[5:], offsetSize, fh.sb.Endianness)
	if headerAddr != fh.headerAddr {
		return nil, fmt.Errorf("direct block heap header mismatch: 0x%X (expected 0x%X)", headerAddr, fh.headerAddr)
	}

	pos := 5 + offsetSize
	blockOffset := readAddressFromBytes(buf[pos:], int(fh.Header.HeapOffsetSize), fh.sb.Endianness)
	pos += int(fh.Header.HeapOffsetSize)

	dataEnd := len(buf)
	if fh.Header.ChecksumDirectBlocks {
		dataEnd -= 4
	}
	data := make([]byte, dataEnd-pos)
	copy(data, buf[pos:dataEnd])

	return &directBlock{Offset: blockOffset, Data: data}, nil
}

// indirectBlock holds the child addresses of a decoded FHIB block.
type indirectBlock struct {
	Offset  uint64
	Entries []uint64
}

// readIndirectBlock reads an FHIB block with numRows rows of child addresses.
func (fh *FractalHeap) readIndirectBlock(address uint64, numRows uint16) (*indirectBlock, error) {
	if address == 0 || address == core.UndefinedAddress {
		return nil, fmt.Errorf("invalid indirect block address: 0x%X", address)
	}

	offsetSize := int(fh.sb.OffsetSize)
	numEntries := int(numRows) * int(fh.Header.TableWidth)
	headerSize := 5 + offsetSize + int(fh.Header.HeapOffsetSize)
	totalSize := headerSize + numEntries*offsetSize

	buf := utils.GetBuffer(totalSize)
	defer utils.ReleaseBuffer(buf)

	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt
	if _, err := fh.reader.ReadAt(buf, int64(address)); err != nil {
		return nil, utils.WrapError("indirect block read failed", err)
	}

	if string(buf[0:4]) != "FHIB" {
		return nil, fmt.Errorf("invalid indirect block signature: %q (expected FHIB)", buf[0:4])
	}
	if buf[4] != 0 {
		return nil, fmt.Errorf("unsupported indirect block version: %d", buf[4])
	}

	headerAddr := readAddressFromBytes(buf[5:], offsetSize, fh.sb.Endianness)
	if headerAddr != fh.headerAddr {
		return nil, fmt.Errorf("indirect block heap header mismatch: 0x%X (expected 0x%X)", headerAddr, fh.headerAddr)
	}

	pos := 5 + offsetSize
	blockOffset := readAddressFromBytes(buf[pos:], int(fh.Header.HeapOffsetSize), fh.sb.Endianness)
	pos += int(fh.Header.HeapOffsetSize)

	entries := make([]uint64, numEntries)
	for i := range entries {
		entries[i] = readAddressFromBytes(buf[pos:], offsetSize, fh.sb.Endianness)
		pos += offsetSize
	}

	return &indirectBlock{Offset: blockOffset, Entries: entries}, nil
}

// minBytesToEncode returns the number of bytes needed to store value.
func minBytesToEncode(value uint64) uint8 {
	if value == 0 {
		return 1
	}
	bits := 0
	for v := value; v > 0; v >>= 1 {
		bits++
	}
	return uint8((bits + 7) / 8) //nolint:gosec // G115: bits <= 64
}
