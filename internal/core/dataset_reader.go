package core

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scigolib/h5json/internal/utils"
)

// DatasetInfo bundles the parsed header messages that describe a dataset:
// element type, extent, storage layout, and the optional filter pipeline.
type DatasetInfo struct {
	Datatype  *DatatypeMessage
	Dataspace *DataspaceMessage
	Layout    *DataLayoutMessage
	Filters   *FilterPipelineMessage
}

// ReadDatasetInfo extracts and parses the dataset-describing messages from
// an already-read object header.
func ReadDatasetInfo(header *ObjectHeader, sb *Superblock) (*DatasetInfo, error) {
	info := &DatasetInfo{}

	for _, msg := range header.Messages {
		switch msg.Type {
		case MsgDatatype:
			dt, err := ParseDatatypeMessage(msg.Data)
			if err != nil {
				return nil, utils.WrapError("parse datatype message", err)
			}
			info.Datatype = dt
		case MsgDataspace:
			ds, err := ParseDataspaceMessage(msg.Data)
			if err != nil {
				return nil, utils.WrapError("parse dataspace message", err)
			}
			info.Dataspace = ds
		case MsgDataLayout:
			layout, err := ParseDataLayoutMessage(msg.Data, sb)
			if err != nil {
				return nil, utils.WrapError("parse data layout message", err)
			}
			info.Layout = layout
		case MsgFilterPipeline:
			fp, err := ParseFilterPipelineMessage(msg.Data)
			if err != nil {
				return nil, utils.WrapError("parse filter pipeline message", err)
			}
			info.Filters = fp
		}
	}

	if info.Datatype == nil {
		return nil, fmt.Errorf("dataset has no datatype message")
	}
	if info.Dataspace == nil {
		return nil, fmt.Errorf("dataset has no dataspace message")
	}
	if info.Layout == nil {
		return nil, fmt.Errorf("dataset has no data layout message")
	}

	return info, nil
}

func (info *DatasetInfo) String() string {
	return fmt.Sprintf("Dataset{type: %s, space: %s, layout: %s}",
		info.Datatype.String(), info.Dataspace.String(), info.Layout.String())
}

// readRawData returns the dataset's element bytes regardless of storage
// layout. Compact data lives inside the layout message itself; contiguous
// and chunked data is read from the file, with the filter pipeline applied
// where present.
func readRawData(r io.ReaderAt, info *DatasetInfo, sb *Superblock) ([]byte, error) {
	totalElements := info.Dataspace.TotalElements()
	if totalElements == 0 {
		return nil, nil
	}

	totalSize, err := utils.SafeMultiply(totalElements, uint64(info.Datatype.Size))
	if err != nil {
		return nil, utils.WrapError("dataset size overflow", err)
	}
	if err := utils.ValidateBufferSize(totalSize, utils.MaxChunkSize, "dataset"); err != nil {
		return nil, err
	}

	switch {
	case info.Layout.IsCompact():
		if uint64(len(info.Layout.CompactData)) < totalSize {
			return nil, fmt.Errorf("compact data truncated: have %d bytes, need %d",
				len(info.Layout.CompactData), totalSize)
		}
		return info.Layout.CompactData[:totalSize], nil

	case info.Layout.IsContiguous():
		if info.Layout.DataAddress == UndefinedAddress {
			// Space never allocated; the dataset has no stored values.
			return nil, nil
		}
		data := make([]byte, totalSize)
		if _, err := r.ReadAt(data, int64(info.Layout.DataAddress)); err != nil {
			return nil, utils.WrapError("read contiguous data", err)
		}
		if info.Filters != nil {
			return info.Filters.ApplyFilters(data)
		}
		return data, nil

	case info.Layout.IsChunked():
		return readChunkedData(r, info, sb, totalSize)

	default:
		return nil, fmt.Errorf("unsupported data layout class %d", info.Layout.Class)
	}
}

// readChunkedData walks the chunk index B-tree and assembles the chunks
// into a single row-major buffer.
func readChunkedData(r io.ReaderAt, info *DatasetInfo, sb *Superblock, totalSize uint64) ([]byte, error) {
	if info.Layout.DataAddress == UndefinedAddress {
		return nil, nil
	}

	// The layout message carries rank+1 chunk dimensions; the trailing
	// entry is the element size in bytes. B-tree keys store a coordinate
	// for that trailing dimension too, so key parsing takes the full set
	// and only the copy phase below drops it.
	if len(info.Layout.ChunkSize) < 2 {
		return nil, fmt.Errorf("chunked layout with %d dimensions", len(info.Layout.ChunkSize))
	}
	keyDims := info.Layout.ChunkSize
	chunkDims := keyDims[:len(keyDims)-1]
	ndims := len(chunkDims)

	root, err := ParseBTreeV1Node(r, info.Layout.DataAddress, sb.OffsetSize, len(keyDims), keyDims)
	if err != nil {
		return nil, utils.WrapError("parse chunk B-tree", err)
	}

	chunks, err := root.CollectAllChunks(r, sb.OffsetSize, keyDims)
	if err != nil {
		return nil, utils.WrapError("collect chunks", err)
	}

	result := make([]byte, totalSize)
	elemSize := uint64(info.Datatype.Size)

	for _, chunk := range chunks {
		if uint64(chunk.Key.Nbytes) > utils.MaxChunkSize {
			return nil, fmt.Errorf("chunk size %d exceeds limit", chunk.Key.Nbytes)
		}
		raw := make([]byte, chunk.Key.Nbytes)
		if _, err := r.ReadAt(raw, int64(chunk.Address)); err != nil {
			return nil, utils.WrapError("read chunk", err)
		}

		data := raw
		if info.Filters != nil {
			data, err = info.Filters.ApplyFilters(raw)
			if err != nil {
				return nil, utils.WrapError("decode chunk", err)
			}
		}

		// Element-space offset of the chunk's first element per dimension.
		offsets := make([]uint64, ndims)
		for j := 0; j < ndims; j++ {
			offsets[j] = chunk.Key.Scaled[j] * chunkDims[j]
		}

		if err := copyChunkToArray(result, data, offsets, info.Dataspace.Dimensions, chunkDims, elemSize); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// copyChunkToArray places one decoded chunk into the full dataset buffer,
// clipping edge chunks that extend past the dataset extent.
func copyChunkToArray(dst, chunk []byte, offsets, dims, chunkDims []uint64, elemSize uint64) error {
	if len(offsets) < len(dims) || len(chunkDims) < len(dims) {
		return fmt.Errorf("chunk rank below dataset rank %d", len(dims))
	}

	if len(dims) == 1 {
		start := offsets[0]
		if start >= dims[0] {
			return nil
		}
		n := chunkDims[0]
		if start+n > dims[0] {
			n = dims[0] - start
		}
		byteStart := start * elemSize
		byteLen := n * elemSize
		if uint64(len(chunk)) < byteLen {
			byteLen = uint64(len(chunk))
		}
		copy(dst[byteStart:byteStart+byteLen], chunk[:byteLen])
		return nil
	}

	// Row strides of the full dataset and of the chunk, innermost last.
	strides := make([]uint64, len(dims))
	strides[len(dims)-1] = elemSize
	for i := len(dims) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * dims[i+1]
	}
	chunkStrides := make([]uint64, len(dims))
	chunkStrides[len(dims)-1] = elemSize
	for i := len(dims) - 2; i >= 0; i-- {
		chunkStrides[i] = chunkStrides[i+1] * chunkDims[i+1]
	}

	pos := make([]uint64, len(dims))
	return copyChunkRows(dst, chunk, offsets, dims, chunkDims, strides, chunkStrides, elemSize, pos, 0)
}

// copyChunkRows recurses over all but the innermost dimension and copies
// each innermost row in one step.
func copyChunkRows(dst, chunk []byte, offsets, dims, chunkDims, strides, chunkStrides []uint64, elemSize uint64, pos []uint64, depth int) error {
	if depth == len(dims)-1 {
		rowStart := offsets[depth]
		if rowStart >= dims[depth] {
			return nil
		}
		n := chunkDims[depth]
		if rowStart+n > dims[depth] {
			n = dims[depth] - rowStart
		}

		var dstOff, srcOff uint64
		for i := 0; i < depth; i++ {
			dstOff += (offsets[i] + pos[i]) * strides[i]
			srcOff += pos[i] * chunkStrides[i]
		}
		dstOff += rowStart * elemSize

		rowLen := n * elemSize
		if srcOff >= uint64(len(chunk)) {
			return nil
		}
		if srcOff+rowLen > uint64(len(chunk)) {
			rowLen = uint64(len(chunk)) - srcOff
		}
		if dstOff+rowLen > uint64(len(dst)) {
			return fmt.Errorf("chunk row exceeds dataset bounds")
		}
		copy(dst[dstOff:dstOff+rowLen], chunk[srcOff:srcOff+rowLen])
		return nil
	}

	for i := uint64(0); i < chunkDims[depth]; i++ {
		if offsets[depth]+i >= dims[depth] {
			break
		}
		pos[depth] = i
		if err := copyChunkRows(dst, chunk, offsets, dims, chunkDims, strides, chunkStrides, elemSize, pos, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// byteOrderOf resolves the element byte order declared by a datatype.
func byteOrderOf(dt *DatatypeMessage) binary.ByteOrder {
	if dt.GetByteOrder() == binary.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
