package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// LinkType classifies a link message.
type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

func (lt LinkType) String() string {
	switch lt {
	case LinkTypeHard:
		return "hard"
	case LinkTypeSoft:
		return "soft"
	case LinkTypeExternal:
		return "external"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(lt))
	}
}

// LinkMessage is a parsed link message (0x0006), the per-child record of
// modern groups. The link target is decoded by type: hard links carry an
// object address, soft links a path inside the file, external links a
// file name and a path within that file.
type LinkMessage struct {
	Version       uint8
	Flags         uint8
	Type          LinkType
	CreationOrder uint64
	Name          string

	Address      uint64 // Hard links.
	Target       string // Soft links.
	ExternalFile string // External links.
	ExternalPath string
}

// Link message flag bits (H5Olink.c).
const (
	linkFlagNameLengthMask uint8 = 0x03 // Width of the name length field.
	linkFlagCreationOrder  uint8 = 0x04
	linkFlagTypeField      uint8 = 0x08
	linkFlagCharSet        uint8 = 0x10
)

// ParseLinkMessage decodes a version 1 link message: version, flags, the
// optional type, creation order and character set fields, the name with a
// flag-dependent length width, and the type-specific target.
func ParseLinkMessage(data []byte, sb *Superblock) (*LinkMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("link message too short")
	}

	lm := &LinkMessage{Version: data[0], Flags: data[1], Type: LinkTypeHard}
	if lm.Version != 1 {
		return nil, fmt.Errorf("unsupported link message version: %d", lm.Version)
	}
	offset := 2

	if lm.Flags&linkFlagTypeField != 0 {
		if offset >= len(data) {
			return nil, errors.New("link message truncated at type field")
		}
		lm.Type = LinkType(data[offset])
		offset++
	}
	if lm.Flags&linkFlagCreationOrder != 0 {
		if offset+8 > len(data) {
			return nil, errors.New("link message truncated at creation order")
		}
		lm.CreationOrder = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
	}
	if lm.Flags&linkFlagCharSet != 0 {
		// Character set byte; names are treated as UTF-8 either way.
		offset++
	}

	lengthSize := 1 << (lm.Flags & linkFlagNameLengthMask)
	if offset+lengthSize > len(data) {
		return nil, errors.New("link message truncated at name length")
	}
	nameLength := readPaddedUint(data[offset:], lengthSize, binary.LittleEndian)
	offset += lengthSize

	if nameLength > uint64(len(data)-offset) {
		return nil, errors.New("link message truncated at name")
	}
	lm.Name = string(data[offset : offset+int(nameLength)])
	offset += int(nameLength)

	switch lm.Type {
	case LinkTypeHard:
		if offset+int(sb.OffsetSize) > len(data) {
			return nil, errors.New("link message truncated at hard link address")
		}
		lm.Address = readPaddedUint(data[offset:], int(sb.OffsetSize), binary.LittleEndian)

	case LinkTypeSoft:
		if offset+2 > len(data) {
			return nil, errors.New("link message truncated at soft link length")
		}
		n := int(binary.LittleEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if offset+n > len(data) {
			return nil, errors.New("link message truncated at soft link path")
		}
		lm.Target = string(data[offset : offset+n])

	case LinkTypeExternal:
		file, path, err := parseExternalLinkValue(data[offset:])
		if err != nil {
			return nil, err
		}
		lm.ExternalFile, lm.ExternalPath = file, path

	default:
		return nil, fmt.Errorf("unsupported link type: %d", lm.Type)
	}

	return lm, nil
}

// parseExternalLinkValue decodes an external link target: a version/flags
// byte, the null-terminated target file name, and the null-terminated
// path within that file (H5Lexternal.c).
func parseExternalLinkValue(data []byte) (string, string, error) {
	if len(data) < 2 {
		return "", "", errors.New("external link value too short")
	}
	// Length-prefixed encoding as stored in the link message: total value
	// length (2), then the flag byte and two null-terminated strings.
	total := int(binary.LittleEndian.Uint16(data[0:2]))
	value := data[2:]
	if total > len(value) {
		return "", "", errors.New("external link value truncated")
	}
	value = value[:total]
	if len(value) < 1 {
		return "", "", errors.New("external link value empty")
	}
	value = value[1:] // Version/flags byte.

	fileEnd := -1
	for i, b := range value {
		if b == 0 {
			fileEnd = i
			break
		}
	}
	if fileEnd < 0 {
		return "", "", errors.New("external link file name not terminated")
	}
	file := string(value[:fileEnd])

	rest := value[fileEnd+1:]
	pathEnd := len(rest)
	for i, b := range rest {
		if b == 0 {
			pathEnd = i
			break
		}
	}
	return file, string(rest[:pathEnd]), nil
}
