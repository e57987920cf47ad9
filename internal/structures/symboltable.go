package structures

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scigolib/h5json/internal/core"
	"github.com/scigolib/h5json/internal/utils"
)

// Cache type constants for symbol table entries.
const (
	// CacheTypeNone indicates no cached information.
	CacheTypeNone uint32 = 0
	// CacheTypeSymbolTable indicates cached symbol table addresses (H5G_CACHED_STAB).
	CacheTypeSymbolTable uint32 = 1
	// CacheTypeSoftLink indicates a soft link (H5G_CACHED_SLINK).
	// For soft links the object address is undefined and the target path
	// offset is stored in CachedSoftLinkOffset.
	CacheTypeSoftLink uint32 = 2
)

// SymbolTableEntry is a single entry in a symbol table node.
// Entry format (40 bytes for 8-byte offsets):
//   - Link Name Offset (offsetSize bytes): offset into the local heap
//   - Object Header Address (offsetSize bytes): undefined for soft links
//   - Cache Type (4 bytes)
//   - Reserved (4 bytes)
//   - Scratch-pad Space (16 bytes):
//     CacheType=1: B-tree address (offsetSize) + heap address (offsetSize)
//     CacheType=2: soft link target offset (4 bytes) into the local heap
type SymbolTableEntry struct {
	LinkNameOffset uint64
	ObjectAddress  uint64
	CacheType      uint32
	// Soft link target offset in the local heap (valid when CacheType == 2).
	// The CacheType=1 scratch-pad only mirrors addresses the child's own
	// symbol table message carries, so it is not decoded.
	CachedSoftLinkOffset uint32
}

// IsSoftLink reports whether this entry is a soft link.
func (e *SymbolTableEntry) IsSoftLink() bool {
	return e.CacheType == CacheTypeSoftLink
}

// SymbolTableNode is an SNOD structure holding the entries of an old-style group.
type SymbolTableNode struct {
	Version    uint8
	NumSymbols uint16
	Entries    []SymbolTableEntry
}

// symbolTableEntrySize returns the on-disk entry size for the given offset size.
func symbolTableEntrySize(sb *core.Superblock) int {
	return int(sb.OffsetSize)*2 + 4 + 4 + 16
}

// ParseSymbolTableNode parses a symbol table node (SNOD).
// Format:
//   - 4 bytes: signature "SNOD"
//   - 1 byte: version (1)
//   - 1 byte: reserved
//   - 2 bytes: number of symbols
//   - entries follow immediately
func ParseSymbolTableNode(r io.ReaderAt, address uint64, sb *core.Superblock) (*SymbolTableNode, error) {
	header := utils.GetBuffer(8)
	defer utils.ReleaseBuffer(header)

	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt
	if _, err := r.ReadAt(header, int64(address)); err != nil {
		return nil, utils.WrapError("SNOD header read failed", err)
	}

	if string(header[0:4]) != "SNOD" {
		return nil, fmt.Errorf("invalid SNOD signature: %q", header[0:4])
	}

	version := header[4]
	if version != 1 {
		return nil, fmt.Errorf("unsupported SNOD version: %d", version)
	}

	node := &SymbolTableNode{
		Version:    version,
		NumSymbols: sb.Endianness.Uint16(header[6:8]),
	}
	if node.NumSymbols == 0 {
		return node, nil
	}

	entrySize := symbolTableEntrySize(sb)
	dataSize := int(node.NumSymbols) * entrySize
	data := utils.GetBuffer(dataSize)
	defer utils.ReleaseBuffer(data)

	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt
	if _, err := r.ReadAt(data, int64(address)+8); err != nil {
		return nil, utils.WrapError("SNOD entries read failed", err)
	}

	node.Entries = make([]SymbolTableEntry, 0, node.NumSymbols)
	for i := 0; i < int(node.NumSymbols); i++ {
		entry, err := parseSymbolTableEntry(data[i*entrySize:(i+1)*entrySize], sb)
		if err != nil {
			return nil, fmt.Errorf("SNOD entry %d: %w", i, err)
		}
		node.Entries = append(node.Entries, entry)
	}

	return node, nil
}

// parseSymbolTableEntry decodes one entry, including the cache-type
// specific scratch-pad. Soft link entries keep their heap offset so the
// target path can be resolved against the group's local heap.
func parseSymbolTableEntry(data []byte, sb *core.Superblock) (SymbolTableEntry, error) {
	offsetSize := int(sb.OffsetSize)
	if len(data) < symbolTableEntrySize(sb) {
		return SymbolTableEntry{}, fmt.Errorf("symbol table entry truncated: %d bytes", len(data))
	}

	entry := SymbolTableEntry{
		LinkNameOffset: readAddressFromBytes(data, offsetSize, sb.Endianness),
		ObjectAddress:  readAddressFromBytes(data[offsetSize:], offsetSize, sb.Endianness),
		CacheType:      sb.Endianness.Uint32(data[2*offsetSize : 2*offsetSize+4]),
	}

	if entry.CacheType == CacheTypeSoftLink {
		scratch := data[2*offsetSize+8:]
		entry.CachedSoftLinkOffset = sb.Endianness.Uint32(scratch[0:4])
	}

	return entry, nil
}

// ParseSymbolTableMessage decodes a symbol table header message (type 0x0011).
// The message body holds the group B-tree address followed by the local heap address.
func ParseSymbolTableMessage(data []byte, sb *core.Superblock) (btreeAddr, heapAddr uint64, err error) {
	offsetSize := int(sb.OffsetSize)
	if len(data) < 2*offsetSize {
		return 0, 0, fmt.Errorf("symbol table message too short: %d bytes", len(data))
	}
	btreeAddr = readAddressFromBytes(data, offsetSize, sb.Endianness)
	heapAddr = readAddressFromBytes(data[offsetSize:], offsetSize, sb.Endianness)
	return btreeAddr, heapAddr, nil
}

// readAddressFromBytes reads a variable-sized address from a byte slice.
func readAddressFromBytes(data []byte, size int, endianness binary.ByteOrder) uint64 {
	if size > len(data) {
		size = len(data)
	}

	switch size {
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(endianness.Uint16(data[:2]))
	case 4:
		return uint64(endianness.Uint32(data[:4]))
	case 8:
		return endianness.Uint64(data[:8])
	default:
		var buf [8]byte
		copy(buf[:], data[:size])
		return endianness.Uint64(buf[:])
	}
}
