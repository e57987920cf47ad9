package structures

import (
	"fmt"
	"io"

	"github.com/scigolib/h5json/internal/core"
	"github.com/scigolib/h5json/internal/utils"
)

const maxGroupBTreeDepth = 32

// ReadGroupBTreeEntries walks a version 1 B-tree (type 0, group symbol
// table index) rooted at address and collects the entries of every
// symbol table node it reaches.
//
// Node format:
//   - 4 bytes: signature "TREE"
//   - 1 byte: node type (0 = group)
//   - 1 byte: node level (0 = leaf)
//   - 2 bytes: entries used
//   - offsetSize bytes: left sibling address
//   - offsetSize bytes: right sibling address
//   - interleaved keys and children: Key[0], Child[0], ..., Child[N-1], Key[N]
//
// Keys are local heap offsets and are not needed for enumeration. Leaf
// children point to symbol table nodes, internal children to further
// B-tree nodes.
func ReadGroupBTreeEntries(r io.ReaderAt, address uint64, sb *core.Superblock) ([]SymbolTableEntry, error) {
	return readGroupBTreeNode(r, address, sb, 0)
}

func readGroupBTreeNode(r io.ReaderAt, address uint64, sb *core.Superblock, depth int) ([]SymbolTableEntry, error) {
	if depth > maxGroupBTreeDepth {
		return nil, fmt.Errorf("group B-tree deeper than %d levels", maxGroupBTreeDepth)
	}

	offsetSize := int(sb.OffsetSize)
	headerSize := 8 + 2*offsetSize
	header := utils.GetBuffer(headerSize)
	defer utils.ReleaseBuffer(header)

	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt
	if _, err := r.ReadAt(header, int64(address)); err != nil {
		return nil, utils.WrapError("group B-tree node read failed", err)
	}

	if string(header[0:4]) != "TREE" {
		return nil, fmt.Errorf("invalid B-tree signature: %q (expected TREE)", header[0:4])
	}
	if header[4] != 0 {
		return nil, fmt.Errorf("expected group B-tree (type 0), got type %d", header[4])
	}

	nodeLevel := header[5]
	entriesUsed := sb.Endianness.Uint16(header[6:8])
	if entriesUsed == 0 {
		return nil, nil
	}

	// Children with their surrounding keys: N children need N+1 keys.
	dataSize := (2*int(entriesUsed) + 1) * offsetSize
	data := utils.GetBuffer(dataSize)
	defer utils.ReleaseBuffer(data)

	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt
	if _, err := r.ReadAt(data, int64(address)+int64(headerSize)); err != nil {
		return nil, utils.WrapError("group B-tree children read failed", err)
	}

	var entries []SymbolTableEntry
	pos := offsetSize // skip Key[0]
	for i := uint16(0); i < entriesUsed; i++ {
		childAddr := readAddressFromBytes(data[pos:], offsetSize, sb.Endianness)
		pos += 2 * offsetSize // child plus the key that follows it

		if childAddr == 0 || childAddr == core.UndefinedAddress {
			continue
		}

		if nodeLevel > 0 {
			childEntries, err := readGroupBTreeNode(r, childAddr, sb, depth+1)
			if err != nil {
				return nil, err
			}
			entries = append(entries, childEntries...)
			continue
		}

		node, err := ParseSymbolTableNode(r, childAddr, sb)
		if err != nil {
			return nil, utils.WrapError("symbol table node parse failed", err)
		}
		entries = append(entries, node.Entries...)
	}

	return entries, nil
}
