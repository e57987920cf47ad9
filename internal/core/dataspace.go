package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DataspaceType is the dataspace kind.
type DataspaceType uint8

// Dataspace kinds.
const (
	DataspaceScalar DataspaceType = 0 // Single value, rank 0.
	DataspaceSimple DataspaceType = 1 // N-dimensional array.
	DataspaceNull   DataspaceType = 2 // No data at all.
)

// DataspaceMessage is a parsed HDF5 dataspace message.
type DataspaceMessage struct {
	Version    uint8
	Type       DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // Present only for resizable datasets.
}

// ParseDataspaceMessage parses a dataspace message from header message data.
// Versions 1 and 2 are supported.
func ParseDataspaceMessage(data []byte) (*DataspaceMessage, error) {
	if len(data) < 3 {
		return nil, errors.New("dataspace message too short")
	}

	version := data[0]
	if version != 1 && version != 2 {
		return nil, fmt.Errorf("unsupported dataspace version: %d", version)
	}

	dimensionality := data[1]
	flags := data[2]
	hasMaxDims := flags&0x01 != 0 // bit 1 (permutation indices) is ignored

	ds := &DataspaceMessage{Version: version}

	if dimensionality == 0 {
		// Rank 0: scalar, unless a v2 message marks it null explicitly.
		ds.Type = DataspaceScalar
		if version == 2 && len(data) >= 4 && DataspaceType(data[3]) == DataspaceNull {
			ds.Type = DataspaceNull
			return ds, nil
		}
		ds.Dimensions = []uint64{1} // one addressable element
		return ds, nil
	}

	ds.Type = DataspaceSimple

	// V1 prefix: version, dimensionality, flags, 5 reserved bytes.
	// V2 prefix: version, dimensionality, flags, type.
	offset := 4
	if version == 1 {
		offset = 8
	}

	// Dimension fields are 4 bytes per spec for v1, but files produced
	// alongside v0 superblocks frequently use 8. Detect from the length.
	totalDimsCount := int(dimensionality)
	if hasMaxDims {
		totalDimsCount *= 2
	}

	var dimSize int
	switch {
	case len(data) >= offset+totalDimsCount*8:
		dimSize = 8
	case len(data) >= offset+totalDimsCount*4:
		dimSize = 4
	default:
		return nil, fmt.Errorf("dataspace message too short: %d bytes, need %d",
			len(data), offset+totalDimsCount*4)
	}

	readDims := func(n int) ([]uint64, error) {
		dims := make([]uint64, n)
		for i := range dims {
			if offset+dimSize > len(data) {
				return nil, errors.New("dataspace message truncated")
			}
			if dimSize == 4 {
				dims[i] = uint64(binary.LittleEndian.Uint32(data[offset : offset+4]))
			} else {
				dims[i] = binary.LittleEndian.Uint64(data[offset : offset+8])
			}
			offset += dimSize
		}
		return dims, nil
	}

	var err error
	if ds.Dimensions, err = readDims(int(dimensionality)); err != nil {
		return nil, err
	}
	if hasMaxDims {
		if ds.MaxDims, err = readDims(int(dimensionality)); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// TotalElements returns the number of elements the dataspace addresses.
func (ds *DataspaceMessage) TotalElements() uint64 {
	switch ds.Type {
	case DataspaceNull:
		return 0
	case DataspaceScalar:
		return 1
	}

	total := uint64(1)
	for _, dim := range ds.Dimensions {
		total *= dim
	}
	return total
}

// IsScalar reports a rank-0 dataspace.
func (ds *DataspaceMessage) IsScalar() bool {
	return ds.Type == DataspaceScalar
}

// String returns a short human-readable description.
func (ds *DataspaceMessage) String() string {
	switch ds.Type {
	case DataspaceScalar:
		return "scalar"
	case DataspaceNull:
		return "null"
	case DataspaceSimple:
		switch len(ds.Dimensions) {
		case 1:
			return fmt.Sprintf("1D array [%d]", ds.Dimensions[0])
		case 2:
			return fmt.Sprintf("2D array [%d x %d]", ds.Dimensions[0], ds.Dimensions[1])
		default:
			return fmt.Sprintf("%dD array %v", len(ds.Dimensions), ds.Dimensions)
		}
	default:
		return "unknown"
	}
}
