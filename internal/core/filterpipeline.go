package core

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FilterID identifies an HDF5 filter.
type FilterID uint16

// Registered filter identifiers.
const (
	FilterDeflate     FilterID = 1 // GZIP/zlib compression.
	FilterShuffle     FilterID = 2 // Byte shuffle.
	FilterFletcher    FilterID = 3 // Fletcher32 checksum.
	FilterSZIP        FilterID = 4 // SZIP compression.
	FilterNBit        FilterID = 5 // N-bit packing.
	FilterScaleOffset FilterID = 6 // Scale-offset.
)

// FilterPipelineMessage is a parsed filter pipeline message (type 0x000B).
type FilterPipelineMessage struct {
	Version    uint8
	NumFilters uint8
	Filters    []Filter
}

// Filter is one entry in a pipeline.
type Filter struct {
	ID            FilterID
	NameLength    uint16
	Flags         uint16
	NumClientData uint16
	Name          string
	ClientData    []uint32
}

// ParseFilterPipelineMessage parses a filter pipeline message, versions 1
// and 2. Version 1 pads names and client data to 8-byte boundaries.
func ParseFilterPipelineMessage(data []byte) (*FilterPipelineMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("filter pipeline message too short")
	}

	version := data[0]
	numFilters := data[1]
	if version < 1 || version > 2 {
		return nil, fmt.Errorf("unsupported filter pipeline version: %d", version)
	}

	pipeline := &FilterPipelineMessage{
		Version:    version,
		NumFilters: numFilters,
		Filters:    make([]Filter, 0, numFilters),
	}

	offset := 2
	if version == 1 {
		offset += 6 // reserved
	}

	for i := uint8(0); i < numFilters; i++ {
		if offset+8 > len(data) {
			return nil, fmt.Errorf("filter pipeline truncated at filter %d", i)
		}

		filter := Filter{}
		filter.ID = FilterID(binary.LittleEndian.Uint16(data[offset : offset+2]))
		offset += 2

		if version == 1 {
			filter.NameLength = binary.LittleEndian.Uint16(data[offset : offset+2])
			offset += 2
		}

		filter.Flags = binary.LittleEndian.Uint16(data[offset : offset+2])
		offset += 2
		filter.NumClientData = binary.LittleEndian.Uint16(data[offset : offset+2])
		offset += 2

		if version == 1 && filter.NameLength > 0 {
			padded := filter.NameLength
			if padded%8 != 0 {
				padded += 8 - (padded % 8)
			}
			if offset+int(padded) > len(data) {
				return nil, fmt.Errorf("filter name truncated at filter %d", i)
			}

			nameBytes := data[offset : offset+int(filter.NameLength)]
			if idx := bytes.IndexByte(nameBytes, 0); idx >= 0 {
				filter.Name = string(nameBytes[:idx])
			} else {
				filter.Name = string(nameBytes)
			}
			offset += int(padded)
		}

		if filter.NumClientData > 0 {
			dataSize := int(filter.NumClientData) * 4
			if offset+dataSize > len(data) {
				return nil, fmt.Errorf("filter client data truncated at filter %d", i)
			}

			filter.ClientData = make([]uint32, filter.NumClientData)
			for j := range filter.ClientData {
				filter.ClientData[j] = binary.LittleEndian.Uint32(data[offset : offset+4])
				offset += 4
			}

			if version == 1 && dataSize%8 != 0 {
				offset += 8 - (dataSize % 8)
			}
		}

		pipeline.Filters = append(pipeline.Filters, filter)
	}

	return pipeline, nil
}

// ApplyFilters decodes chunk data through the pipeline. Decoding runs the
// filters in reverse of their compression order.
func (fp *FilterPipelineMessage) ApplyFilters(data []byte) ([]byte, error) {
	if fp == nil || len(fp.Filters) == 0 {
		return data, nil
	}

	result := data
	var err error

	for i := len(fp.Filters) - 1; i >= 0; i-- {
		filter := fp.Filters[i]
		isOptional := filter.Flags&0x0001 != 0

		result, err = applyFilter(filter, result)
		if err != nil {
			if isOptional {
				continue
			}
			return nil, fmt.Errorf("filter %d (%s) failed: %w", filter.ID, filterName(filter.ID), err)
		}
	}

	return result, nil
}

func applyFilter(filter Filter, data []byte) ([]byte, error) {
	switch filter.ID {
	case FilterDeflate:
		return applyDeflate(data)
	case FilterShuffle:
		return applyShuffle(data, filter.ClientData)
	case FilterFletcher:
		return applyFletcher32(data)
	case FilterSZIP:
		return nil, errors.New("SZIP compression not supported")
	default:
		return nil, fmt.Errorf("unsupported filter ID: %d", filter.ID)
	}
}

// applyDeflate inflates zlib-compressed data (HDF5 "deflate" is zlib,
// not gzip framing).
func applyDeflate(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib reader creation failed: %w", err)
	}
	defer func() { _ = reader.Close() }()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}
	return decompressed, nil
}

// applyShuffle reverses the byte shuffle: stored data groups byte 0 of
// every element, then byte 1, and so on.
func applyShuffle(data []byte, clientData []uint32) ([]byte, error) {
	if len(clientData) == 0 {
		return nil, errors.New("shuffle filter missing element size")
	}

	elementSize := int(clientData[0])
	if elementSize <= 0 || elementSize > len(data) {
		return nil, fmt.Errorf("invalid shuffle element size: %d", elementSize)
	}
	if len(data)%elementSize != 0 {
		return nil, errors.New("data size not multiple of element size")
	}

	numElements := len(data) / elementSize
	result := make([]byte, len(data))
	for elemIdx := 0; elemIdx < numElements; elemIdx++ {
		for byteIdx := 0; byteIdx < elementSize; byteIdx++ {
			result[elemIdx*elementSize+byteIdx] = data[byteIdx*numElements+elemIdx]
		}
	}
	return result, nil
}

// applyFletcher32 strips the trailing 4-byte Fletcher32 checksum. The
// checksum is not verified; a mismatch would surface as garbage values,
// and corrupt files are better diagnosed with external integrity tools.
func applyFletcher32(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("data too short for Fletcher32 checksum")
	}
	return data[:len(data)-4], nil
}

func filterName(id FilterID) string {
	switch id {
	case FilterDeflate:
		return "GZIP"
	case FilterShuffle:
		return "Shuffle"
	case FilterFletcher:
		return "Fletcher32"
	case FilterSZIP:
		return "SZIP"
	case FilterNBit:
		return "N-bit"
	case FilterScaleOffset:
		return "Scale-Offset"
	default:
		return fmt.Sprintf("Unknown-%d", id)
	}
}
