package core

import "math"

// Decoders for sub-32-bit floating point storage. All of them widen to
// float32; the dataset readers widen once more to float64.
//
// The variant is picked from the float datatype properties: v1 float
// properties carry bit offset (2), precision (2), exponent location (1),
// exponent size (1), mantissa location (1), mantissa size (1), bias (4).
// IEEE half uses a 5-bit exponent, bfloat16 an 8-bit one; the two 8-bit
// formats split the same way (E4M3 vs E5M2).

// ExponentBits returns the exponent field width for float types, or 0 when
// the properties are absent or not a float.
func (dt *DatatypeMessage) ExponentBits() uint8 {
	if dt.Class != DatatypeFloat || len(dt.Properties) < 6 {
		return 0
	}
	return dt.Properties[5]
}

// DecodeFloat16 decodes an IEEE 754 half-precision value.
func DecodeFloat16(bits uint16) float32 {
	sign := uint32(bits>>15) & 0x1
	exponent := uint32(bits>>10) & 0x1F
	mantissa := uint32(bits) & 0x3FF

	var f32 uint32
	switch {
	case exponent == 0x1F:
		// Inf or NaN.
		f32 = sign<<31 | 0xFF<<23 | mantissa<<13
	case exponent == 0:
		if mantissa == 0 {
			f32 = sign << 31 // signed zero
		} else {
			// Subnormal: renormalize into float32.
			e := uint32(127 - 15 + 1)
			for mantissa&0x400 == 0 {
				mantissa <<= 1
				e--
			}
			mantissa &= 0x3FF
			f32 = sign<<31 | e<<23 | mantissa<<13
		}
	default:
		f32 = sign<<31 | (exponent-15+127)<<23 | mantissa<<13
	}
	return math.Float32frombits(f32)
}

// BFloat16 is a 16-bit brain float: the upper half of a float32
// (1 sign bit, 8 exponent bits, 7 mantissa bits).
type BFloat16 uint16

// ToFloat32 restores the float32 the bfloat16 was truncated from.
func (b BFloat16) ToFloat32() float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// FP8E4M3 is an 8-bit float: 1 sign, 4 exponent (bias 7), 3 mantissa bits.
// Exponent 15 with mantissa 7 is infinity, other exponent-15 values NaN.
type FP8E4M3 uint8

// ToFloat32 decodes the E4M3 value.
func (f FP8E4M3) ToFloat32() float32 {
	return decodeMiniFloat(uint8(f), 4, 3, 7)
}

// FP8E5M2 is an 8-bit float: 1 sign, 5 exponent (bias 15), 2 mantissa bits.
type FP8E5M2 uint8

// ToFloat32 decodes the E5M2 value.
func (f FP8E5M2) ToFloat32() float32 {
	return decodeMiniFloat(uint8(f), 5, 2, 15)
}

// decodeMiniFloat decodes an 8-bit float with the given field layout.
func decodeMiniFloat(bits uint8, expBits, manBits, bias int) float32 {
	signBit := bits >> 7
	maxExp := uint8(1<<expBits - 1)
	maxMan := uint8(1<<manBits - 1)
	exponent := (bits >> manBits) & maxExp
	mantissa := bits & maxMan

	if exponent == maxExp {
		if mantissa == maxMan {
			if signBit == 1 {
				return float32(math.Inf(-1))
			}
			return float32(math.Inf(1))
		}
		return float32(math.NaN())
	}

	manScale := float64(int(1) << manBits)
	var value float64
	if exponent == 0 {
		if mantissa == 0 {
			if signBit == 1 {
				//nolint:staticcheck // SA4026: negative zero is intentional
				return -0.0
			}
			return 0.0
		}
		// Subnormal: 0.mantissa * 2^(1-bias).
		value = float64(mantissa) / manScale * math.Pow(2, float64(1-bias))
	} else {
		// Normal: 1.mantissa * 2^(exp-bias).
		value = (1 + float64(mantissa)/manScale) * math.Pow(2, float64(int(exponent)-bias))
	}

	if signBit == 1 {
		value = -value
	}
	return float32(value)
}
