package utils

import "sync"

// ReaderAt is the subset of io.ReaderAt the read path needs.
type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// Scratch buffers for header and message parsing. Most reads are tiny
// (signatures, fixed-size headers), so a single pool suffices.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 4096)
	},
}

// GetBuffer returns a byte slice of the requested size from the pool.
func GetBuffer(size int) []byte {
	buf := bufferPool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size, size*2)
	}
	return buf[:size]
}

// ReleaseBuffer returns a buffer to the pool.
func ReleaseBuffer(buf []byte) {
	//nolint:staticcheck // SA6002: slice descriptor copy is acceptable for sync.Pool
	bufferPool.Put(buf[:0])
}
