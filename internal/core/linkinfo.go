package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// LinkInfoMessage (0x0002) describes how a modern group stores its links:
// compact link messages in the object header, or dense storage in a
// fractal heap indexed by a B-tree v2 (H5Olinfo.c).
type LinkInfoMessage struct {
	Version                   uint8
	Flags                     uint8 // Bit 0 tracks, bit 1 indexes creation order.
	MaxCreationOrder          int64
	FractalHeapAddress        uint64
	NameBTreeAddress          uint64
	CreationOrderBTreeAddress uint64
}

const (
	LinkInfoTrackCreationOrder uint8 = 0x01
	LinkInfoIndexCreationOrder uint8 = 0x02
)

// HasDenseStorage reports whether the group's links live in a fractal
// heap rather than in header messages.
func (lim *LinkInfoMessage) HasDenseStorage() bool {
	return lim.FractalHeapAddress != 0 && lim.FractalHeapAddress != UndefinedAddress
}

// ParseLinkInfoMessage decodes a link info message: version, flags, the
// optional max creation order, then the fractal heap and name index
// addresses, plus the creation order index address when present.
func ParseLinkInfoMessage(data []byte, sb *Superblock) (*LinkInfoMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("link info message too short")
	}

	lim := &LinkInfoMessage{Version: data[0], Flags: data[1]}
	if lim.Version != 0 {
		return nil, fmt.Errorf("unsupported link info version: %d", lim.Version)
	}
	if lim.Flags&^(LinkInfoTrackCreationOrder|LinkInfoIndexCreationOrder) != 0 {
		return nil, fmt.Errorf("invalid link info flags: 0x%02x", lim.Flags)
	}
	offset := 2

	if lim.Flags&LinkInfoTrackCreationOrder != 0 {
		if offset+8 > len(data) {
			return nil, errors.New("link info message truncated at max creation order")
		}
		lim.MaxCreationOrder = int64(binary.LittleEndian.Uint64(data[offset : offset+8]))
		offset += 8
	}

	offsetSize := int(sb.OffsetSize)
	if offset+2*offsetSize > len(data) {
		return nil, errors.New("link info message truncated at storage addresses")
	}
	lim.FractalHeapAddress = readPaddedUint(data[offset:], offsetSize, binary.LittleEndian)
	offset += offsetSize
	lim.NameBTreeAddress = readPaddedUint(data[offset:], offsetSize, binary.LittleEndian)
	offset += offsetSize

	if lim.Flags&LinkInfoIndexCreationOrder != 0 {
		if offset+offsetSize > len(data) {
			return nil, errors.New("link info message truncated at creation order index")
		}
		lim.CreationOrderBTreeAddress = readPaddedUint(data[offset:], offsetSize, binary.LittleEndian)
	}

	return lim, nil
}
