package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/h5json/internal/utils"
)

// BTreeV1Node is one node of the version 1 B-tree that indexes chunked
// dataset storage (H5Bpkg.h, H5Dbtree.c).
type BTreeV1Node struct {
	NodeType     uint8
	NodeLevel    uint8 // 0 = leaf.
	EntriesUsed  uint16
	LeftSibling  uint64
	RightSibling uint64
	Keys         []ChunkKey
	Children     []uint64 // Chunk addresses (leaf) or child nodes.
}

// ChunkKey locates one chunk in N-dimensional element space.
type ChunkKey struct {
	Scaled     []uint64 // Chunk index per dimension.
	Nbytes     uint32   // Stored (possibly filtered) chunk size.
	FilterMask uint32
}

// ParseBTreeV1Node parses the B-tree node at the given address. Key
// coordinates are stored on disk as uint64 element offsets regardless of
// file version; they are converted to scaled chunk indices by dividing by
// the chunk dimensions. Keys always carry one coordinate per layout
// dimension including the trailing element-size dimension, so chunkDims
// must be the layout's full dimension list (H5Dbtree.c encode_key).
func ParseBTreeV1Node(r io.ReaderAt, address uint64, offsetSize uint8, ndims int, chunkDims []uint64) (*BTreeV1Node, error) {
	headerSize := 4 + 1 + 1 + 2 + 2*int(offsetSize)
	header := utils.GetBuffer(headerSize)
	defer utils.ReleaseBuffer(header)

	if _, err := r.ReadAt(header, int64(address)); err != nil {
		return nil, utils.WrapError("read B-tree node header", err)
	}
	if string(header[0:4]) != "TREE" {
		return nil, fmt.Errorf("invalid B-tree signature: %q", header[0:4])
	}

	node := &BTreeV1Node{
		NodeType:    header[4],
		NodeLevel:   header[5],
		EntriesUsed: binary.LittleEndian.Uint16(header[6:8]),
	}
	node.LeftSibling = readPaddedUint(header[8:], int(offsetSize), binary.LittleEndian)
	node.RightSibling = readPaddedUint(header[8+int(offsetSize):], int(offsetSize), binary.LittleEndian)

	if node.EntriesUsed == 0 {
		return node, nil
	}

	// Entries are key0, child0, ..., keyN-1, childN-1, keyN: one more key
	// than children. Chunk keys are nbytes(4) + filter mask(4) + ndims
	// uint64 coordinates.
	keySize := 8 + ndims*8
	entries := int(node.EntriesUsed)
	dataSize := entries*(keySize+int(offsetSize)) + keySize

	data := make([]byte, dataSize)
	if _, err := r.ReadAt(data, int64(address)+int64(headerSize)); err != nil {
		return nil, utils.WrapError("read B-tree node entries", err)
	}

	node.Keys = make([]ChunkKey, entries+1)
	node.Children = make([]uint64, entries)

	offset := 0
	for i := 0; i <= entries; i++ {
		key, n, err := parseChunkKey(data[offset:], ndims, chunkDims)
		if err != nil {
			return nil, err
		}
		node.Keys[i] = key
		offset += n

		if i < entries {
			if offset+int(offsetSize) > len(data) {
				return nil, errors.New("B-tree node truncated reading child pointer")
			}
			node.Children[i] = readPaddedUint(data[offset:], int(offsetSize), binary.LittleEndian)
			offset += int(offsetSize)
		}
	}

	return node, nil
}

func parseChunkKey(data []byte, ndims int, chunkDims []uint64) (ChunkKey, int, error) {
	need := 8 + ndims*8
	if len(data) < need {
		return ChunkKey{}, 0, errors.New("B-tree node truncated reading key")
	}

	key := ChunkKey{
		Nbytes:     binary.LittleEndian.Uint32(data[0:4]),
		FilterMask: binary.LittleEndian.Uint32(data[4:8]),
		Scaled:     make([]uint64, ndims),
	}
	for j := 0; j < ndims; j++ {
		elemOffset := binary.LittleEndian.Uint64(data[8+j*8 : 16+j*8])
		if chunkDims[j] == 0 {
			return ChunkKey{}, 0, fmt.Errorf("chunk dimension %d is zero", j)
		}
		key.Scaled[j] = elemOffset / chunkDims[j]
	}
	return key, need, nil
}

// ChunkEntry pairs a chunk key with the chunk's file address.
type ChunkEntry struct {
	Key     ChunkKey
	Address uint64
}

// CollectAllChunks walks the tree below this node and returns every chunk.
func (node *BTreeV1Node) CollectAllChunks(r io.ReaderAt, offsetSize uint8, chunkDims []uint64) ([]ChunkEntry, error) {
	if node.NodeLevel == 0 {
		chunks := make([]ChunkEntry, 0, node.EntriesUsed)
		for i := 0; i < int(node.EntriesUsed); i++ {
			chunks = append(chunks, ChunkEntry{Key: node.Keys[i], Address: node.Children[i]})
		}
		return chunks, nil
	}

	var chunks []ChunkEntry
	for i := 0; i < int(node.EntriesUsed); i++ {
		child, err := ParseBTreeV1Node(r, node.Children[i], offsetSize, len(chunkDims), chunkDims)
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("parse B-tree child at 0x%x", node.Children[i]), err)
		}
		childChunks, err := child.CollectAllChunks(r, offsetSize, chunkDims)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, childChunks...)
	}
	return chunks, nil
}

func (node *BTreeV1Node) String() string {
	return fmt.Sprintf("B-tree v1 node: type=%d level=%d entries=%d",
		node.NodeType, node.NodeLevel, node.EntriesUsed)
}
