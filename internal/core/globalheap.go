package core

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scigolib/h5json/internal/utils"
)

// GlobalHeapCollection is a parsed GCOL block. Variable-length data
// (notably vlen strings) is stored as objects in these collections, with
// dataset elements holding (address, index) references into them.
type GlobalHeapCollection struct {
	Address uint64
	Size    uint64
	Objects map[uint32][]byte
}

// GlobalHeapReference points at one object inside a collection.
type GlobalHeapReference struct {
	HeapAddress uint64
	ObjectIndex uint32
}

// ReadGlobalHeapCollection parses the GCOL collection at the given address.
// Layout per H5HG.c: signature, version, 3 reserved bytes, collection size
// (LengthSize bytes), then 8-byte-aligned objects of id(2) + nrefs(2) +
// reserved(4) + size(LengthSize) + data.
func ReadGlobalHeapCollection(r io.ReaderAt, address uint64, offsetSize int) (*GlobalHeapCollection, error) {
	if offsetSize != 4 && offsetSize != 8 {
		return nil, fmt.Errorf("invalid offset size: %d", offsetSize)
	}

	headerSize := 4 + 1 + 3 + offsetSize
	header := utils.GetBuffer(headerSize)
	defer utils.ReleaseBuffer(header)

	if _, err := r.ReadAt(header, int64(address)); err != nil {
		return nil, utils.WrapError("read global heap header", err)
	}
	if string(header[0:4]) != "GCOL" {
		return nil, fmt.Errorf("invalid global heap signature: %q", header[0:4])
	}
	if header[4] != 1 {
		return nil, fmt.Errorf("unsupported global heap version: %d", header[4])
	}

	collectionSize := readPaddedUint(header[8:], offsetSize, binary.LittleEndian)
	if collectionSize < uint64(headerSize) {
		return nil, fmt.Errorf("global heap collection size %d too small", collectionSize)
	}
	if err := utils.ValidateBufferSize(collectionSize, utils.MaxChunkSize, "global heap collection"); err != nil {
		return nil, err
	}

	data := make([]byte, collectionSize)
	if _, err := r.ReadAt(data, int64(address)); err != nil {
		return nil, utils.WrapError("read global heap collection", err)
	}

	gc := &GlobalHeapCollection{
		Address: address,
		Size:    collectionSize,
		Objects: make(map[uint32][]byte),
	}

	objHeaderSize := 2 + 2 + 4 + offsetSize
	offset := align8(headerSize)

	for offset+objHeaderSize <= len(data) {
		objID := binary.LittleEndian.Uint16(data[offset : offset+2])
		objSize := readPaddedUint(data[offset+8:], offsetSize, binary.LittleEndian)

		// Object 0 describes the remaining free space; its size spans the
		// rest of the collection, so stop there.
		if objID == 0 {
			break
		}

		dataStart := offset + objHeaderSize
		if uint64(dataStart)+objSize > uint64(len(data)) {
			return nil, fmt.Errorf("global heap object %d extends past collection", objID)
		}
		gc.Objects[uint32(objID)] = data[dataStart : dataStart+int(objSize)]

		offset = dataStart + int(align8u(objSize))
	}

	return gc, nil
}

// GetObject returns the data of the object with the given index.
func (gc *GlobalHeapCollection) GetObject(index uint32) ([]byte, error) {
	obj, ok := gc.Objects[index]
	if !ok {
		return nil, fmt.Errorf("global heap object %d not found at 0x%x", index, gc.Address)
	}
	return obj, nil
}

// ParseGlobalHeapReference decodes an (address, index) reference as stored
// in dataset elements for variable-length types.
func ParseGlobalHeapReference(data []byte, offsetSize int) (*GlobalHeapReference, error) {
	if offsetSize != 4 && offsetSize != 8 {
		return nil, fmt.Errorf("invalid offset size: %d", offsetSize)
	}
	if len(data) < offsetSize+4 {
		return nil, fmt.Errorf("global heap reference needs %d bytes, have %d", offsetSize+4, len(data))
	}
	return &GlobalHeapReference{
		HeapAddress: readPaddedUint(data, offsetSize, binary.LittleEndian),
		ObjectIndex: binary.LittleEndian.Uint32(data[offsetSize : offsetSize+4]),
	}, nil
}

// globalHeapCache memoizes collections while reading a vlen dataset, where
// many elements typically reference the same collection.
type globalHeapCache struct {
	r           io.ReaderAt
	offsetSize  int
	collections map[uint64]*GlobalHeapCollection
}

func newGlobalHeapCache(r io.ReaderAt, offsetSize int) *globalHeapCache {
	return &globalHeapCache{
		r:           r,
		offsetSize:  offsetSize,
		collections: make(map[uint64]*GlobalHeapCollection),
	}
}

func (c *globalHeapCache) object(ref *GlobalHeapReference) ([]byte, error) {
	gc, ok := c.collections[ref.HeapAddress]
	if !ok {
		var err error
		gc, err = ReadGlobalHeapCollection(c.r, ref.HeapAddress, c.offsetSize)
		if err != nil {
			return nil, err
		}
		c.collections[ref.HeapAddress] = gc
	}
	return gc.GetObject(ref.ObjectIndex)
}

func align8(n int) int {
	if n%8 != 0 {
		n += 8 - n%8
	}
	return n
}

func align8u(n uint64) uint64 {
	if n%8 != 0 {
		n += 8 - n%8
	}
	return n
}
