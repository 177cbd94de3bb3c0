package pool

import (
	"io"
	"sync"
)

// Pool sizing. HDU buffers hold one encoded FITS header-data unit; archive
// buffers hold a whole flattened archive or snapshot before it is written
// out. Buffers grown past the threshold are dropped instead of pooled.
const (
	HDUBufferDefaultSize      = 1024 * 16       // 16KiB
	HDUBufferMaxThreshold     = 1024 * 128      // 128KiB
	ArchiveBufferDefaultSize  = 1024 * 1024     // 1MiB
	ArchiveBufferMaxThreshold = 1024 * 1024 * 8 // 8MiB
)

// ByteBuffer is an append-only byte accumulator backed by one slice,
// cheaper than bytes.Buffer for the write-assemble-flush pattern the FITS
// and snapshot writers use.
type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a buffer with the given initial capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the accumulated bytes.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset empties the buffer, retaining its capacity.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the number of accumulated bytes.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the buffer capacity.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// MustWrite appends data, growing the buffer as needed.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.B = append(bb.B, data...)
}

// Write implements io.Writer. It cannot fail.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.B = append(bb.B, data...)

	return len(data), nil
}

// WriteTo flushes the accumulated bytes to w.
func (bb *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bb.B)

	return int64(n), err
}

// ByteBufferPool recycles ByteBuffers through a sync.Pool. Buffers whose
// capacity exceeds maxThreshold are discarded on Put so one oversized HDU
// does not pin memory for the life of the process.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a pool whose fresh buffers start at defaultSize.
// A maxThreshold of 0 disables the discard check.
func NewByteBufferPool(defaultSize int, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return NewByteBuffer(defaultSize)
			},
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves an empty buffer from the pool.
func (bbp *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := bbp.pool.Get().(*ByteBuffer)

	return bb
}

// Put resets the buffer and returns it to the pool. Nil and over-threshold
// buffers are dropped.
func (bbp *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}
	if bbp.maxThreshold > 0 && cap(bb.B) > bbp.maxThreshold {
		return
	}

	bb.Reset()
	bbp.pool.Put(bb)
}

var (
	hduDefaultPool     = NewByteBufferPool(HDUBufferDefaultSize, HDUBufferMaxThreshold)
	archiveDefaultPool = NewByteBufferPool(ArchiveBufferDefaultSize, ArchiveBufferMaxThreshold)
)

// GetHDUBuffer retrieves a buffer sized for one FITS HDU.
func GetHDUBuffer() *ByteBuffer {
	return hduDefaultPool.Get()
}

// PutHDUBuffer returns an HDU buffer to its pool.
func PutHDUBuffer(bb *ByteBuffer) {
	hduDefaultPool.Put(bb)
}

// GetArchiveBuffer retrieves a buffer sized for a flattened archive or
// snapshot stream.
func GetArchiveBuffer() *ByteBuffer {
	return archiveDefaultPool.Get()
}

// PutArchiveBuffer returns an archive buffer to its pool.
func PutArchiveBuffer(bb *ByteBuffer) {
	archiveDefaultPool.Put(bb)
}
