package structures

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5json/internal/core"
)

func testSuperblock() *core.Superblock {
	return &core.Superblock{
		Version:    0,
		OffsetSize: 8,
		LengthSize: 8,
		Endianness: binary.LittleEndian,
	}
}

func putU64(buf []byte, offset int, v uint64) {
	binary.LittleEndian.PutUint64(buf[offset:], v)
}

func TestParseSymbolTableMessage(t *testing.T) {
	sb := testSuperblock()

	data := make([]byte, 16)
	putU64(data, 0, 0x1000)
	putU64(data, 8, 0x2000)

	btreeAddr, heapAddr, err := ParseSymbolTableMessage(data, sb)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1000), btreeAddr)
	require.Equal(t, uint64(0x2000), heapAddr)

	_, _, err = ParseSymbolTableMessage(data[:10], sb)
	require.Error(t, err)
}

// buildSymbolNode serializes an SNOD with the given raw entries.
func buildSymbolNode(entries ...[]byte) []byte {
	buf := make([]byte, 8)
	copy(buf, "SNOD")
	buf[4] = 1
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(entries)))
	for _, e := range entries {
		buf = append(buf, e...)
	}
	return buf
}

func symbolEntryBytes(nameOffset, objectAddr uint64, cacheType uint32, scratch []byte) []byte {
	e := make([]byte, 40)
	putU64(e, 0, nameOffset)
	putU64(e, 8, objectAddr)
	binary.LittleEndian.PutUint32(e[16:20], cacheType)
	copy(e[24:], scratch)
	return e
}

func TestParseSymbolTableNode(t *testing.T) {
	sb := testSuperblock()

	cached := make([]byte, 16)
	putU64(cached, 0, 0x3000)
	putU64(cached, 8, 0x4000)
	soft := make([]byte, 16)
	binary.LittleEndian.PutUint32(soft[0:4], 24)

	image := buildSymbolNode(
		symbolEntryBytes(8, 0x100, CacheTypeSymbolTable, cached),
		symbolEntryBytes(16, core.UndefinedAddress, CacheTypeSoftLink, soft),
	)

	node, err := ParseSymbolTableNode(bytes.NewReader(image), 0, sb)
	require.NoError(t, err)
	require.Equal(t, uint16(2), node.NumSymbols)

	first := node.Entries[0]
	require.Equal(t, uint64(8), first.LinkNameOffset)
	require.Equal(t, uint64(0x100), first.ObjectAddress)
	require.False(t, first.IsSoftLink())
	require.Zero(t, first.CachedSoftLinkOffset)

	second := node.Entries[1]
	require.True(t, second.IsSoftLink())
	require.Equal(t, uint32(24), second.CachedSoftLinkOffset)
}

func TestParseSymbolTableNodeBadSignature(t *testing.T) {
	image := buildSymbolNode()
	copy(image, "XXXX")
	_, err := ParseSymbolTableNode(bytes.NewReader(image), 0, testSuperblock())
	require.ErrorContains(t, err, "signature")
}

// buildBTreeNode serializes a TREE node with the given level and child
// addresses; keys are zeroed (enumeration ignores them).
func buildBTreeNode(level uint8, children ...uint64) []byte {
	buf := make([]byte, 24+(2*len(children)+1)*8)
	copy(buf, "TREE")
	buf[5] = level
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(children)))
	putU64(buf, 8, core.UndefinedAddress)
	putU64(buf, 16, core.UndefinedAddress)
	pos := 24 + 8
	for _, child := range children {
		putU64(buf, pos, child)
		pos += 16
	}
	return buf
}

func TestReadGroupBTreeEntriesLeaf(t *testing.T) {
	sb := testSuperblock()

	// Image: TREE leaf at 0 pointing at SNODs at 128 and 256.
	image := make([]byte, 512)
	copy(image, buildBTreeNode(0, 128, 256))
	copy(image[128:], buildSymbolNode(symbolEntryBytes(8, 0x100, 0, nil)))
	copy(image[256:], buildSymbolNode(
		symbolEntryBytes(16, 0x200, 0, nil),
		symbolEntryBytes(24, 0x300, 0, nil),
	))

	entries, err := ReadGroupBTreeEntries(bytes.NewReader(image), 0, sb)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint64(0x100), entries[0].ObjectAddress)
	require.Equal(t, uint64(0x200), entries[1].ObjectAddress)
	require.Equal(t, uint64(0x300), entries[2].ObjectAddress)
}

func TestReadGroupBTreeEntriesInternal(t *testing.T) {
	sb := testSuperblock()

	// Internal node at 0 pointing at a leaf at 128, which points at an
	// SNOD at 256.
	image := make([]byte, 512)
	copy(image, buildBTreeNode(1, 128))
	copy(image[128:], buildBTreeNode(0, 256))
	copy(image[256:], buildSymbolNode(symbolEntryBytes(8, 0xABC, 0, nil)))

	entries, err := ReadGroupBTreeEntries(bytes.NewReader(image), 0, sb)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, uint64(0xABC), entries[0].ObjectAddress)
}

func TestReadGroupBTreeEntriesBadNode(t *testing.T) {
	sb := testSuperblock()

	image := buildBTreeNode(0, 0x100)
	copy(image, "HEAP")
	_, err := ReadGroupBTreeEntries(bytes.NewReader(image), 0, sb)
	require.ErrorContains(t, err, "TREE")

	image = buildBTreeNode(0, 0x100)
	image[4] = 1 // chunk B-tree, not a group B-tree
	_, err = ReadGroupBTreeEntries(bytes.NewReader(image), 0, sb)
	require.ErrorContains(t, err, "type")
}

func TestLocalHeap(t *testing.T) {
	sb := testSuperblock()

	// Data segment at 64 holding two names; HEAP header at 0.
	image := make([]byte, 128)
	copy(image, "HEAP")
	putU64(image, 8, 32)  // data segment size
	putU64(image, 24, 64) // data segment address
	copy(image[64+8:], "alpha\x00")
	copy(image[64+16:], "beta\x00")

	heap, err := LoadLocalHeap(bytes.NewReader(image), 0, sb)
	require.NoError(t, err)

	name, err := heap.GetString(8)
	require.NoError(t, err)
	require.Equal(t, "alpha", name)
	name, err = heap.GetString(16)
	require.NoError(t, err)
	require.Equal(t, "beta", name)

	_, err = heap.GetString(100)
	require.ErrorContains(t, err, "beyond")
}

func TestLocalHeapBadSignature(t *testing.T) {
	image := make([]byte, 64)
	copy(image, "TREE")
	_, err := LoadLocalHeap(bytes.NewReader(image), 0, testSuperblock())
	require.ErrorContains(t, err, "signature")
}

// buildFractalHeap lays out an FRHP header at 16 with a single root
// direct block at 160 and returns the image plus the block's data start.
func buildFractalHeap(flags uint8) []byte {
	image := make([]byte, 160+512)

	h := image[16:]
	copy(h, "FRHP")
	binary.LittleEndian.PutUint16(h[5:7], 7) // heap ID length
	h[9] = flags
	binary.LittleEndian.PutUint32(h[10:14], 256) // max managed object size
	// Huge object, free space and statistics fields stay zero.
	binary.LittleEndian.PutUint16(h[110:112], 4) // table width
	putU64(h, 112, 512)                          // starting block size
	putU64(h, 120, 512)                          // max direct block size
	binary.LittleEndian.PutUint16(h[128:130], 32)
	putU64(h, 132, 160) // root block address
	// current row count 0: root is a direct block

	db := image[160:]
	copy(db, "FHDB")
	putU64(db, 5, 16) // heap header address
	// 4-byte block offset of 0 follows; object data starts at 17.

	return image
}

// managedHeapID builds a managed heap ID: flag byte, 4-byte offset,
// 2-byte length.
func managedHeapID(offset uint32, length uint16) []byte {
	id := make([]byte, 7)
	binary.LittleEndian.PutUint32(id[1:5], offset)
	binary.LittleEndian.PutUint16(id[5:7], length)
	return id
}

func TestFractalHeapManagedObject(t *testing.T) {
	sb := testSuperblock()

	image := buildFractalHeap(0)
	copy(image[160+17+10:], "hello")

	heap, err := OpenFractalHeap(bytes.NewReader(image), 16, sb)
	require.NoError(t, err)
	require.Equal(t, uint16(0), heap.Header.CurrentRowCount)
	require.Equal(t, uint8(4), heap.Header.HeapOffsetSize)
	require.Equal(t, uint8(2), heap.Header.HeapLengthSize)

	obj, err := heap.ReadObject(managedHeapID(10, 5))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), obj)
}

func TestFractalHeapTinyAndHugeIDs(t *testing.T) {
	sb := testSuperblock()
	heap, err := OpenFractalHeap(bytes.NewReader(buildFractalHeap(0)), 16, sb)
	require.NoError(t, err)

	obj, err := heap.ReadObject(append([]byte{0x20}, "ab"...))
	require.NoError(t, err)
	require.Equal(t, []byte("ab"), obj)

	_, err = heap.ReadObject(managedHeapID(0, 0)[:0])
	require.Error(t, err)
	huge := managedHeapID(10, 5)
	huge[0] = 0x10
	_, err = heap.ReadObject(huge)
	require.ErrorContains(t, err, "huge")
}

func TestFractalHeapHeaderMismatch(t *testing.T) {
	sb := testSuperblock()

	image := buildFractalHeap(0)
	putU64(image[160:], 5, 0x9999) // wrong heap header back-pointer

	heap, err := OpenFractalHeap(bytes.NewReader(image), 16, sb)
	require.NoError(t, err)
	_, err = heap.ReadObject(managedHeapID(10, 5))
	require.ErrorContains(t, err, "mismatch")
}

func TestReadBTreeV2HeapIDs(t *testing.T) {
	sb := testSuperblock()

	// BTHD header at 8, BTLF leaf at 80 with two 11-byte records.
	image := make([]byte, 160)
	hdr := image[8:]
	copy(hdr, "BTHD")
	binary.LittleEndian.PutUint16(hdr[10:12], 11) // record size
	putU64(hdr, 16, 80)                           // root node address
	binary.LittleEndian.PutUint16(hdr[24:26], 2)  // record count

	leaf := image[80:]
	copy(leaf, "BTLF")
	copy(leaf[6+4:], "id-one!")
	copy(leaf[6+11+4:], "id-two!")

	ids, err := ReadBTreeV2HeapIDs(bytes.NewReader(image), 8, sb)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("id-one!"), []byte("id-two!")}, ids)
}

func TestReadBTreeV2HeapIDsEmpty(t *testing.T) {
	sb := testSuperblock()

	image := make([]byte, 64)
	hdr := image[8:]
	copy(hdr, "BTHD")
	binary.LittleEndian.PutUint16(hdr[10:12], 11)
	putU64(hdr, 16, core.UndefinedAddress)

	ids, err := ReadBTreeV2HeapIDs(bytes.NewReader(image), 8, sb)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestReadBTreeV2RejectsDeepTree(t *testing.T) {
	sb := testSuperblock()

	image := make([]byte, 64)
	hdr := image[8:]
	copy(hdr, "BTHD")
	binary.LittleEndian.PutUint16(hdr[10:12], 11)
	binary.LittleEndian.PutUint16(hdr[12:14], 1) // depth
	_, err := ReadBTreeV2HeapIDs(bytes.NewReader(image), 8, sb)
	require.ErrorContains(t, err, "depth")
}
