package core

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scigolib/h5json/internal/utils"
)

// parseV1Header parses a version 1 object header.
//
// V1 prefix (16 bytes, no signature): version, reserved, message count
// (uint16), reference count (uint32), header size (uint32), padding to an
// 8-byte boundary. Messages follow, each with an 8-byte prefix: type
// (uint16), data size (uint16), flags, 3 reserved bytes.
//
// Continuation messages (type 0x0010) chain additional message blocks:
// address (OffsetSize bytes) + size (LengthSize bytes), per H5Ocont.c.
func parseV1Header(r io.ReaderAt, headerAddr uint64, sb *Superblock) ([]*HeaderMessage, string, error) {
	headerBuf := utils.GetBuffer(16)
	defer utils.ReleaseBuffer(headerBuf)

	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	if _, err := r.ReadAt(headerBuf, int64(headerAddr)); err != nil {
		return nil, "", utils.WrapError("v1 header read failed", err)
	}

	if headerBuf[0] != 1 {
		return nil, "", fmt.Errorf("invalid v1 header version: %d", headerBuf[0])
	}

	numMessages := sb.Endianness.Uint16(headerBuf[2:4])
	headerSize := sb.Endianness.Uint32(headerBuf[8:12])

	// Messages start after the 16-byte prefix.
	messages, name, err := parseV1MessagesInBlock(r,
		headerAddr+16, headerAddr+uint64(headerSize), numMessages, sb)
	if err != nil {
		return nil, "", err
	}

	// Follow continuation chains breadth-first; a continuation block may
	// itself contain further continuation messages.
	continuations := findContinuations(messages, sb)
	for len(continuations) > 0 {
		cont := continuations[0]
		continuations = continuations[1:]

		// Continuation blocks have no prefix of their own, just messages.
		contMessages, contName, err := parseV1MessagesInBlock(r,
			cont.Address, cont.Address+cont.Size, 0xFFFF, sb)
		if err != nil {
			return nil, "", utils.WrapError("continuation block parse failed", err)
		}

		messages = append(messages, contMessages...)
		if contName != "" && name == "" {
			name = contName
		}
		continuations = append(continuations, findContinuations(contMessages, sb)...)
	}

	return messages, name, nil
}

type continuationInfo struct {
	Address uint64
	Size    uint64
}

func findContinuations(messages []*HeaderMessage, sb *Superblock) []continuationInfo {
	var continuations []continuationInfo
	for _, msg := range messages {
		if msg.Type != MsgContinuation || len(msg.Data) == 0 {
			continue
		}
		cont, err := parseContinuationMessage(msg.Data, sb)
		if err != nil {
			continue // malformed continuation, skip
		}
		continuations = append(continuations, cont)
	}
	return continuations
}

func parseContinuationMessage(data []byte, sb *Superblock) (continuationInfo, error) {
	minSize := int(sb.OffsetSize + sb.LengthSize)
	if len(data) < minSize {
		return continuationInfo{}, fmt.Errorf("continuation message too small: need %d bytes, got %d", minSize, len(data))
	}

	address, err := decodeUint(data, sb.OffsetSize, sb.Endianness)
	if err != nil {
		return continuationInfo{}, err
	}
	size, err := decodeUint(data[sb.OffsetSize:], sb.LengthSize, sb.Endianness)
	if err != nil {
		return continuationInfo{}, err
	}
	if size == 0 {
		return continuationInfo{}, fmt.Errorf("invalid continuation block size: 0")
	}

	return continuationInfo{Address: address, Size: size}, nil
}

// decodeUint decodes a variable-width unsigned field at the start of data.
func decodeUint(data []byte, width uint8, order binary.ByteOrder) (uint64, error) {
	if int(width) > len(data) {
		return 0, fmt.Errorf("field width %d exceeds data length %d", width, len(data))
	}
	switch width {
	case 1:
		return uint64(data[0]), nil
	case 2:
		return uint64(order.Uint16(data)), nil
	case 4:
		return uint64(order.Uint32(data)), nil
	case 8:
		return order.Uint64(data), nil
	default:
		return 0, fmt.Errorf("invalid field width: %d", width)
	}
}

// parseV1MessagesInBlock parses up to maxMessages messages between start and
// end, which may be the main header block or a continuation block.
func parseV1MessagesInBlock(r io.ReaderAt, start, end uint64, maxMessages uint16, sb *Superblock) ([]*HeaderMessage, string, error) {
	var messages []*HeaderMessage
	var name string
	current := start
	parsed := uint16(0)

	for current < end && parsed < maxMessages {
		if current+8 > end {
			break
		}

		head := utils.GetBuffer(8)
		//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
		if _, err := r.ReadAt(head, int64(current)); err != nil {
			utils.ReleaseBuffer(head)
			if err == io.EOF {
				break
			}
			return nil, "", utils.WrapError("message header read failed", err)
		}

		msgType := MessageType(sb.Endianness.Uint16(head[0:2]))
		msgSize := sb.Endianness.Uint16(head[2:4])
		utils.ReleaseBuffer(head)

		if msgSize == 0 {
			current += 8
			continue
		}
		if current+8+uint64(msgSize) > end {
			break
		}

		data := utils.GetBuffer(int(msgSize))
		//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
		if _, err := r.ReadAt(data, int64(current+8)); err != nil {
			utils.ReleaseBuffer(data)
			if err == io.EOF {
				break
			}
			return nil, "", utils.WrapError("message data read failed", err)
		}

		// V1 name messages are null-terminated.
		if msgType == MsgName && len(data) > 0 {
			nameBytes := data
			for i, b := range nameBytes {
				if b == 0 {
					nameBytes = nameBytes[:i]
					break
				}
			}
			name = string(nameBytes)
		}

		messages = append(messages, &HeaderMessage{
			Type:   msgType,
			Offset: current,
			Data:   data,
		})

		// Messages are padded to 8-byte alignment.
		msgTotalSize := 8 + uint64(msgSize)
		if msgTotalSize%8 != 0 {
			msgTotalSize += 8 - (msgTotalSize % 8)
		}
		current += msgTotalSize
		parsed++
	}

	return messages, name, nil
}
