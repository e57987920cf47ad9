package core

import (
	"fmt"
	"io"
	"math"

	"github.com/scigolib/h5json/internal/utils"
)

// ReadDatasetFloat64 reads a numeric dataset and widens every element to
// float64. All fixed-point widths, both float widths, and the 16- and 8-bit
// ML float formats are accepted; other element types return an error.
func ReadDatasetFloat64(r io.ReaderAt, header *ObjectHeader, sb *Superblock) ([]float64, error) {
	info, err := ReadDatasetInfo(header, sb)
	if err != nil {
		return nil, err
	}
	return ReadFloat64Data(r, info, sb)
}

// ReadFloat64Data is ReadDatasetFloat64 for callers that already parsed
// the dataset messages.
func ReadFloat64Data(r io.ReaderAt, info *DatasetInfo, sb *Superblock) ([]float64, error) {
	data, err := readRawData(r, info, sb)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []float64{}, nil
	}
	return convertToFloat64(data, info.Datatype)
}

// convertToFloat64 decodes raw element bytes into float64 values.
func convertToFloat64(data []byte, dt *DatatypeMessage) ([]float64, error) {
	elemSize := int(dt.Size)
	if elemSize == 0 {
		return nil, fmt.Errorf("zero-size element type")
	}
	if len(data)%elemSize != 0 {
		return nil, fmt.Errorf("data length %d not a multiple of element size %d", len(data), elemSize)
	}
	count := len(data) / elemSize
	order := byteOrderOf(dt)
	values := make([]float64, count)

	switch {
	case dt.Class == DatatypeFloat:
		switch elemSize {
		case 8:
			for i := range values {
				values[i] = math.Float64frombits(order.Uint64(data[i*8 : i*8+8]))
			}
		case 4:
			for i := range values {
				values[i] = float64(math.Float32frombits(order.Uint32(data[i*4 : i*4+4])))
			}
		case 2:
			// Exponent width separates IEEE half (5) from bfloat16 (8).
			if dt.ExponentBits() == 8 {
				for i := range values {
					values[i] = float64(BFloat16(order.Uint16(data[i*2 : i*2+2])).ToFloat32())
				}
			} else {
				for i := range values {
					values[i] = float64(DecodeFloat16(order.Uint16(data[i*2 : i*2+2])))
				}
			}
		case 1:
			if dt.ExponentBits() == 5 {
				for i := range values {
					values[i] = float64(FP8E5M2(data[i]).ToFloat32())
				}
			} else {
				for i := range values {
					values[i] = float64(FP8E4M3(data[i]).ToFloat32())
				}
			}
		default:
			return nil, fmt.Errorf("unsupported float size: %d bytes", elemSize)
		}

	case dt.Class == DatatypeFixed && dt.IsSigned():
		switch elemSize {
		case 1:
			for i := range values {
				values[i] = float64(int8(data[i]))
			}
		case 2:
			for i := range values {
				values[i] = float64(int16(order.Uint16(data[i*2 : i*2+2])))
			}
		case 4:
			for i := range values {
				values[i] = float64(int32(order.Uint32(data[i*4 : i*4+4])))
			}
		case 8:
			for i := range values {
				values[i] = float64(int64(order.Uint64(data[i*8 : i*8+8])))
			}
		default:
			return nil, fmt.Errorf("unsupported integer size: %d bytes", elemSize)
		}

	case dt.Class == DatatypeFixed:
		switch elemSize {
		case 1:
			for i := range values {
				values[i] = float64(data[i])
			}
		case 2:
			for i := range values {
				values[i] = float64(order.Uint16(data[i*2 : i*2+2]))
			}
		case 4:
			for i := range values {
				values[i] = float64(order.Uint32(data[i*4 : i*4+4]))
			}
		case 8:
			for i := range values {
				values[i] = float64(order.Uint64(data[i*8 : i*8+8]))
			}
		default:
			return nil, fmt.Errorf("unsupported integer size: %d bytes", elemSize)
		}

	default:
		return nil, utils.WrapError("convert dataset values",
			fmt.Errorf("element class %d is not numeric", dt.Class))
	}

	return values, nil
}
