package utils

import (
	"fmt"
	"math"
)

// Size limits for buffers materialized from file metadata. Untrusted sizes
// read from a file must never drive an allocation directly.
const (
	// MaxChunkSize limits a single chunk to 1GB.
	MaxChunkSize = 1024 * 1024 * 1024

	// MaxAttributeSize limits attribute payloads to 64MB.
	MaxAttributeSize = 64 * 1024 * 1024

	// MaxStringSize limits a single string value to 16MB.
	MaxStringSize = 16 * 1024 * 1024
)

// CheckMultiplyOverflow reports whether a*b would overflow uint64.
func CheckMultiplyOverflow(a, b uint64) error {
	if a == 0 || b == 0 {
		return nil
	}
	if a > math.MaxUint64/b {
		return fmt.Errorf("multiplication overflow: %d * %d exceeds uint64 max", a, b)
	}
	return nil
}

// SafeMultiply multiplies two uint64 values, failing on overflow.
func SafeMultiply(a, b uint64) (uint64, error) {
	if err := CheckMultiplyOverflow(a, b); err != nil {
		return 0, err
	}
	return a * b, nil
}

// ValidateBufferSize validates that a size read from the file is non-zero
// and within maxSize.
func ValidateBufferSize(size, maxSize uint64, description string) error {
	if size == 0 {
		return fmt.Errorf("%s: size cannot be zero", description)
	}
	if size > maxSize {
		return fmt.Errorf("%s: size %d exceeds maximum %d", description, size, maxSize)
	}
	return nil
}
