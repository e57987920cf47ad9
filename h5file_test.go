package h5json

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5json/internal/core"
)

// fileImage assembles an HDF5 v0 byte image bottom-up: each structure is
// appended and its address flows into the structure referencing it, with
// the superblock filled in last.
type fileImage struct {
	buf []byte
}

func newFileImage() *fileImage {
	// Reserve the 96-byte v0 superblock region up front.
	return &fileImage{buf: make([]byte, 96)}
}

func (img *fileImage) place(data []byte) uint64 {
	addr := uint64(len(img.buf))
	img.buf = append(img.buf, data...)
	return addr
}

func (img *fileImage) finishSuperblock(rootHeader uint64) {
	buf := img.buf
	copy(buf[0:8], core.Signature)
	buf[13] = 8 // offset size
	buf[14] = 8 // length size
	binary.LittleEndian.PutUint16(buf[16:18], 4)  // group leaf K
	binary.LittleEndian.PutUint16(buf[18:20], 16) // group internal K
	binary.LittleEndian.PutUint64(buf[32:40], core.UndefinedAddress)
	binary.LittleEndian.PutUint64(buf[40:48], uint64(len(buf))) // end of file
	binary.LittleEndian.PutUint64(buf[48:56], core.UndefinedAddress)
	// Root group symbol table entry.
	binary.LittleEndian.PutUint64(buf[64:72], rootHeader)
	binary.LittleEndian.PutUint32(buf[72:76], 1)
}

func (img *fileImage) writeFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.h5")
	require.NoError(t, os.WriteFile(path, img.buf, 0o600))
	return path
}

// v1Message is one object header message before framing.
type v1Message struct {
	typ  core.MessageType
	data []byte
}

func align8(n int) int {
	if n%8 != 0 {
		n += 8 - n%8
	}
	return n
}

func pad8(data []byte) []byte {
	out := make([]byte, align8(len(data)))
	copy(out, data)
	return out
}

// v1ObjectHeader frames messages into a version 1 object header: 16-byte
// prefix, then each message with its 8-byte prefix padded to an 8-byte
// boundary.
func v1ObjectHeader(msgs ...v1Message) []byte {
	size := 16
	for _, m := range msgs {
		size += align8(8 + len(m.data))
	}

	buf := make([]byte, size)
	buf[0] = 1
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(msgs)))
	binary.LittleEndian.PutUint32(buf[4:8], 1) // reference count
	binary.LittleEndian.PutUint32(buf[8:12], uint32(size))

	pos := 16
	for _, m := range msgs {
		binary.LittleEndian.PutUint16(buf[pos:pos+2], uint16(m.typ))
		binary.LittleEndian.PutUint16(buf[pos+2:pos+4], uint16(len(m.data)))
		copy(buf[pos+8:], m.data)
		pos += align8(8 + len(m.data))
	}
	return buf
}

// dataspaceMsg builds a version 1 dataspace message; no dims means a
// scalar dataspace.
func dataspaceMsg(dims ...uint64) v1Message {
	data := make([]byte, 8+8*len(dims))
	data[0] = 1
	data[1] = uint8(len(dims))
	for i, d := range dims {
		binary.LittleEndian.PutUint64(data[8+8*i:], d)
	}
	return v1Message{typ: core.MsgDataspace, data: data}
}

func datatypeFloat64Msg() v1Message {
	data := make([]byte, 20)
	data[0] = 0x11 // class 1 (float), version 1
	data[1] = 0x20 // little-endian, implied msb normalization
	data[2] = 63   // sign bit location
	binary.LittleEndian.PutUint32(data[4:8], 8)
	binary.LittleEndian.PutUint16(data[10:12], 64) // precision
	data[12] = 52                                  // exponent location
	data[13] = 11                                  // exponent size
	data[15] = 52                                  // mantissa size
	binary.LittleEndian.PutUint32(data[16:20], 1023)
	return v1Message{typ: core.MsgDatatype, data: data}
}

func datatypeInt32Msg() v1Message {
	data := make([]byte, 12)
	data[0] = 0x10 // class 0 (fixed-point), version 1
	data[1] = 0x08 // little-endian, signed
	binary.LittleEndian.PutUint32(data[4:8], 4)
	binary.LittleEndian.PutUint16(data[10:12], 32) // precision
	return v1Message{typ: core.MsgDatatype, data: data}
}

func datatypeStringMsg(size uint32) v1Message {
	data := make([]byte, 8)
	data[0] = 0x13 // class 3 (string), version 1, null-terminated
	binary.LittleEndian.PutUint32(data[4:8], size)
	return v1Message{typ: core.MsgDatatype, data: data}
}

// datatypeVlenStringMsg builds a variable-length string type: elements are
// 16-byte length-prefixed global heap references, the base type a
// null-terminated char string.
func datatypeVlenStringMsg() v1Message {
	data := make([]byte, 16)
	data[0] = 0x19 // class 9 (variable-length), version 1
	data[1] = 0x01 // vlen kind: string
	binary.LittleEndian.PutUint32(data[4:8], 16)
	data[8] = 0x13
	binary.LittleEndian.PutUint32(data[12:16], 1)
	return v1Message{typ: core.MsgDatatype, data: data}
}

func layoutContiguousMsg(addr, size uint64) v1Message {
	data := make([]byte, 18)
	data[0] = 3
	data[1] = 1
	binary.LittleEndian.PutUint64(data[2:10], addr)
	binary.LittleEndian.PutUint64(data[10:18], size)
	return v1Message{typ: core.MsgDataLayout, data: data}
}

// layoutChunkedMsg builds a v3 chunked layout message; dims carry the
// trailing element-size dimension the format requires.
func layoutChunkedMsg(btreeAddr uint64, dims ...uint32) v1Message {
	data := make([]byte, 3+8+4*len(dims))
	data[0] = 3
	data[1] = 2
	data[2] = uint8(len(dims))
	binary.LittleEndian.PutUint64(data[3:11], btreeAddr)
	for i, d := range dims {
		binary.LittleEndian.PutUint32(data[11+4*i:], d)
	}
	return v1Message{typ: core.MsgDataLayout, data: data}
}

// deflatePipelineMsg builds a version 1 filter pipeline with one deflate
// entry at compression level 6.
func deflatePipelineMsg() v1Message {
	data := make([]byte, 24)
	data[0] = 1
	data[1] = 1
	binary.LittleEndian.PutUint16(data[8:10], 1)  // deflate
	binary.LittleEndian.PutUint16(data[14:16], 1) // one client value
	binary.LittleEndian.PutUint32(data[16:20], 6)
	return v1Message{typ: core.MsgFilterPipeline, data: data}
}

func symbolTableMsg(btreeAddr, heapAddr uint64) v1Message {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data[0:8], btreeAddr)
	binary.LittleEndian.PutUint64(data[8:16], heapAddr)
	return v1Message{typ: core.MsgSymbolTable, data: data}
}

// attributeMsg builds a version 1 attribute message, with the name,
// datatype and dataspace regions each padded to 8 bytes.
func attributeMsg(name string, datatype, dataspace v1Message, value []byte) v1Message {
	nameBytes := append([]byte(name), 0)
	data := make([]byte, 8)
	data[0] = 1
	binary.LittleEndian.PutUint16(data[2:4], uint16(len(nameBytes)))
	binary.LittleEndian.PutUint16(data[4:6], uint16(len(datatype.data)))
	binary.LittleEndian.PutUint16(data[6:8], uint16(len(dataspace.data)))
	data = append(data, pad8(nameBytes)...)
	data = append(data, pad8(datatype.data)...)
	data = append(data, pad8(dataspace.data)...)
	data = append(data, value...)
	return v1Message{typ: core.MsgAttribute, data: data}
}

// placeLocalHeap writes a heap data segment holding the given names plus
// its HEAP header, and returns the header address and per-name offsets.
func (img *fileImage) placeLocalHeap(names []string) (uint64, map[string]uint64) {
	offsets := make(map[string]uint64, len(names))
	data := make([]byte, 8) // offset 0 holds the empty name
	for _, name := range names {
		offsets[name] = uint64(len(data))
		data = append(data, name...)
		data = append(data, 0)
		data = pad8(data)
	}
	dataAddr := img.place(data)

	hdr := make([]byte, 32)
	copy(hdr, "HEAP")
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(data)))
	binary.LittleEndian.PutUint64(hdr[24:32], dataAddr)
	return img.place(hdr), offsets
}

type symbolEntry struct {
	nameOffset uint64
	address    uint64
	cacheType  uint32
	scratch    [16]byte
}

func (img *fileImage) placeSymbolNode(entries []symbolEntry) uint64 {
	buf := make([]byte, 8+40*len(entries))
	copy(buf, "SNOD")
	buf[4] = 1
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(entries)))
	pos := 8
	for _, e := range entries {
		binary.LittleEndian.PutUint64(buf[pos:], e.nameOffset)
		binary.LittleEndian.PutUint64(buf[pos+8:], e.address)
		binary.LittleEndian.PutUint32(buf[pos+16:], e.cacheType)
		copy(buf[pos+24:], e.scratch[:])
		pos += 40
	}
	return img.place(buf)
}

// placeGroupBTree writes a leaf v1 B-tree node whose children are symbol
// table nodes.
func (img *fileImage) placeGroupBTree(children ...uint64) uint64 {
	buf := make([]byte, 24+(2*len(children)+1)*8)
	copy(buf, "TREE")
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(children)))
	binary.LittleEndian.PutUint64(buf[8:16], core.UndefinedAddress)
	binary.LittleEndian.PutUint64(buf[16:24], core.UndefinedAddress)
	pos := 24 + 8 // skip Key[0]
	for _, child := range children {
		binary.LittleEndian.PutUint64(buf[pos:], child)
		pos += 16
	}
	return img.place(buf)
}

type chunkRef struct {
	nbytes uint32
	offset uint64 // Element offset of the chunk's first element.
	addr   uint64
}

// placeChunkBTree writes a leaf chunk-index node for a rank-1 dataset.
// Every key carries two coordinates: the element offset plus the trailing
// zero of the element-size dimension.
func (img *fileImage) placeChunkBTree(refs []chunkRef, endOffset uint64) uint64 {
	key := func(nbytes uint32, offset uint64) []byte {
		k := make([]byte, 24)
		binary.LittleEndian.PutUint32(k[0:4], nbytes)
		binary.LittleEndian.PutUint64(k[8:16], offset)
		return k
	}

	buf := make([]byte, 24)
	copy(buf, "TREE")
	buf[4] = 1 // chunk node
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(refs)))
	binary.LittleEndian.PutUint64(buf[8:16], core.UndefinedAddress)
	binary.LittleEndian.PutUint64(buf[16:24], core.UndefinedAddress)
	for _, ref := range refs {
		buf = append(buf, key(ref.nbytes, ref.offset)...)
		child := make([]byte, 8)
		binary.LittleEndian.PutUint64(child, ref.addr)
		buf = append(buf, child...)
	}
	buf = append(buf, key(0, endOffset)...)
	return img.place(buf)
}

// placeGlobalHeap writes a GCOL collection holding the objects under ids
// 1..n.
func (img *fileImage) placeGlobalHeap(objs ...[]byte) uint64 {
	buf := make([]byte, 16)
	copy(buf, "GCOL")
	buf[4] = 1
	for i, obj := range objs {
		hdr := make([]byte, 16)
		binary.LittleEndian.PutUint16(hdr[0:2], uint16(i+1))
		binary.LittleEndian.PutUint16(hdr[2:4], 1) // reference count
		binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(obj)))
		buf = append(buf, hdr...)
		buf = append(buf, pad8(obj)...)
	}
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(buf)))
	return img.place(buf)
}

// vlenStringElem encodes one dataset element of a vlen string: declared
// length, then the (address, index) heap reference.
func vlenStringElem(length uint32, heapAddr uint64, index uint32) []byte {
	e := make([]byte, 16)
	binary.LittleEndian.PutUint32(e[0:4], length)
	binary.LittleEndian.PutUint64(e[4:12], heapAddr)
	binary.LittleEndian.PutUint32(e[12:16], index)
	return e
}

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func float64Bytes(vals ...float64) []byte {
	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

func int32Bytes(vals ...int32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(v))
	}
	return out
}

// buildTestFile writes an HDF5 file with this hierarchy:
//
//	/
//	└── data            group
//	    ├── c           float64 [10..60], chunked in fours, deflate
//	    ├── i           int32 [1 -20 300]
//	    ├── s           float64 scalar 2.5
//	    ├── soft        soft link to /data/x
//	    ├── v           vlen string ["alpha" "beta"]
//	    └── x           float64 [1 2 3], attrs units="m" scale=0.5
func buildTestFile(t *testing.T) string {
	t.Helper()
	img := newFileImage()

	xData := img.place(float64Bytes(1, 2, 3))
	sData := img.place(float64Bytes(2.5))
	iData := img.place(int32Bytes(1, -20, 300))

	// Six elements split into two chunks of four; the second chunk hangs
	// past the extent and gets clipped on read.
	chunk0Bytes := zlibCompress(t, float64Bytes(10, 20, 30, 40))
	chunk1Bytes := zlibCompress(t, float64Bytes(50, 60, 0, 0))
	chunk0 := img.place(chunk0Bytes)
	chunk1 := img.place(chunk1Bytes)
	chunkTree := img.placeChunkBTree([]chunkRef{
		{nbytes: uint32(len(chunk0Bytes)), offset: 0, addr: chunk0},
		{nbytes: uint32(len(chunk1Bytes)), offset: 4, addr: chunk1},
	}, 8)

	gheap := img.placeGlobalHeap([]byte("alpha"), []byte("beta"))
	vData := img.place(append(vlenStringElem(5, gheap, 1), vlenStringElem(4, gheap, 2)...))

	dsX := img.place(v1ObjectHeader(
		dataspaceMsg(3),
		datatypeFloat64Msg(),
		layoutContiguousMsg(xData, 24),
		attributeMsg("units", datatypeStringMsg(2), dataspaceMsg(), []byte{'m', 0}),
		attributeMsg("scale", datatypeFloat64Msg(), dataspaceMsg(), float64Bytes(0.5)),
	))
	dsS := img.place(v1ObjectHeader(
		dataspaceMsg(),
		datatypeFloat64Msg(),
		layoutContiguousMsg(sData, 8),
	))
	dsI := img.place(v1ObjectHeader(
		dataspaceMsg(3),
		datatypeInt32Msg(),
		layoutContiguousMsg(iData, 12),
	))
	dsC := img.place(v1ObjectHeader(
		dataspaceMsg(6),
		datatypeFloat64Msg(),
		layoutChunkedMsg(chunkTree, 4, 8),
		deflatePipelineMsg(),
	))
	dsV := img.place(v1ObjectHeader(
		dataspaceMsg(2),
		datatypeVlenStringMsg(),
		layoutContiguousMsg(vData, 32),
	))

	heapAddr, offsets := img.placeLocalHeap([]string{"c", "i", "s", "soft", "v", "x", "/data/x"})
	var softScratch [16]byte
	binary.LittleEndian.PutUint32(softScratch[0:4], uint32(offsets["/data/x"]))
	snod := img.placeSymbolNode([]symbolEntry{
		{nameOffset: offsets["c"], address: dsC, cacheType: 0},
		{nameOffset: offsets["i"], address: dsI, cacheType: 0},
		{nameOffset: offsets["s"], address: dsS, cacheType: 0},
		{nameOffset: offsets["soft"], address: core.UndefinedAddress, cacheType: 2, scratch: softScratch},
		{nameOffset: offsets["v"], address: dsV, cacheType: 0},
		{nameOffset: offsets["x"], address: dsX, cacheType: 0},
	})
	btree := img.placeGroupBTree(snod)
	dataGroup := img.place(v1ObjectHeader(symbolTableMsg(btree, heapAddr)))

	rootHeap, rootOffsets := img.placeLocalHeap([]string{"data"})
	rootSnod := img.placeSymbolNode([]symbolEntry{
		{nameOffset: rootOffsets["data"], address: dataGroup, cacheType: 0},
	})
	rootBTree := img.placeGroupBTree(rootSnod)
	rootHeader := img.place(v1ObjectHeader(symbolTableMsg(rootBTree, rootHeap)))

	img.finishSuperblock(rootHeader)
	return img.writeFile(t)
}
