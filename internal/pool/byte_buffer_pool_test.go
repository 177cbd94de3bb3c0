package pool

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteBuffer_WriteAccumulate(t *testing.T) {
	bb := NewByteBuffer(8)
	bb.MustWrite([]byte("XTENSION"))

	n, err := bb.Write([]byte("= 'BINTABLE'"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	assert.Equal(t, 20, bb.Len())
	assert.Equal(t, []byte("XTENSION= 'BINTABLE'"), bb.Bytes())
}

func TestByteBuffer_GrowsPastInitialCapacity(t *testing.T) {
	bb := NewByteBuffer(4)
	payload := bytes.Repeat([]byte{0xab}, 1024)
	bb.MustWrite(payload)

	require.Equal(t, len(payload), bb.Len())
	assert.GreaterOrEqual(t, bb.Cap(), len(payload))
	assert.Equal(t, payload, bb.Bytes())
}

func TestByteBuffer_ResetKeepsCapacity(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.MustWrite(bytes.Repeat([]byte{1}, 100))
	grown := bb.Cap()

	bb.Reset()
	assert.Zero(t, bb.Len())
	assert.Equal(t, grown, bb.Cap())
}

func TestByteBuffer_WriteTo(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.MustWrite([]byte("SIMPLE  =                    T"))

	var out bytes.Buffer
	n, err := bb.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(bb.Len()), n)
	assert.Equal(t, bb.Bytes(), out.Bytes())
}

func TestByteBufferPool_RecyclesEmptyBuffers(t *testing.T) {
	p := NewByteBufferPool(32, 0)

	bb := p.Get()
	require.NotNil(t, bb)
	bb.MustWrite([]byte("leftover"))
	p.Put(bb)

	// Whatever Get returns next must come back empty.
	next := p.Get()
	assert.Zero(t, next.Len())
	p.Put(next)
}

func TestByteBufferPool_PutNil(t *testing.T) {
	p := NewByteBufferPool(32, 0)
	assert.NotPanics(t, func() { p.Put(nil) })
}

func TestByteBufferPool_DiscardsOversizedBuffers(t *testing.T) {
	const threshold = 64
	p := NewByteBufferPool(16, threshold)

	big := p.Get()
	big.MustWrite(bytes.Repeat([]byte{0}, threshold*4))
	require.Greater(t, big.Cap(), threshold)

	// Must not panic; the buffer is simply dropped.
	p.Put(big)

	small := p.Get()
	assert.Zero(t, small.Len())
	p.Put(small)
}

func TestDefaultPools(t *testing.T) {
	t.Run("HDU buffer", func(t *testing.T) {
		bb := GetHDUBuffer()
		require.NotNil(t, bb)
		assert.Zero(t, bb.Len())
		assert.GreaterOrEqual(t, bb.Cap(), HDUBufferDefaultSize)

		bb.MustWrite([]byte("END"))
		PutHDUBuffer(bb)
	})

	t.Run("archive buffer", func(t *testing.T) {
		bb := GetArchiveBuffer()
		require.NotNil(t, bb)
		assert.Zero(t, bb.Len())
		assert.GreaterOrEqual(t, bb.Cap(), ArchiveBufferDefaultSize)
		PutArchiveBuffer(bb)
	})
}

func TestByteBufferPool_ConcurrentUse(t *testing.T) {
	p := NewByteBufferPool(64, 0)
	payload := bytes.Repeat([]byte{0x2a}, 256)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				bb := p.Get()
				bb.MustWrite(payload)
				if len(bb.Bytes()) != len(payload) {
					t.Error("buffer from pool was not empty")
				}
				p.Put(bb)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkHDUBufferPool(b *testing.B) {
	header := bytes.Repeat([]byte{' '}, 2880)

	b.Run("WithPool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			bb := GetHDUBuffer()
			bb.MustWrite(header)
			bb.MustWrite(header)
			PutHDUBuffer(bb)
		}
	})

	b.Run("WithoutPool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			bb := NewByteBuffer(HDUBufferDefaultSize)
			bb.MustWrite(header)
			bb.MustWrite(header)
			_ = bb
		}
	})
}
