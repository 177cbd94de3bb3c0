package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumensky/starcat/compress"
	"github.com/lumensky/starcat/errs"
)

func TestHeader_BytesParseRoundTrip(t *testing.T) {
	h := Header{
		Version:      FormatVersion,
		Compression:  compress.Zstd,
		CatalogCount: 3,
		SchemaSize:   412,
		DataSize:     98304,
		Checksum:     0xdeadbeefcafef00d,
	}

	raw := h.Bytes()
	require.Len(t, raw, HeaderSize)
	assert.Equal(t, uint32(Magic), engine.Uint32(raw[0:4]))
	assert.Zero(t, raw[6])
	assert.Zero(t, raw[7])

	var parsed Header
	require.NoError(t, parsed.Parse(raw))
	assert.Equal(t, h, parsed)
}

func TestHeader_ParseErrors(t *testing.T) {
	valid := (&Header{Version: FormatVersion, Compression: compress.None}).Bytes()

	t.Run("wrong length", func(t *testing.T) {
		var h Header
		err := h.Parse(valid[:10])
		require.ErrorIs(t, err, errs.ErrInvalidHeader)
	})

	t.Run("bad magic", func(t *testing.T) {
		raw := append([]byte{}, valid...)
		raw[0] = 'X'

		var h Header
		err := h.Parse(raw)
		require.ErrorIs(t, err, errs.ErrInvalidHeader)
		assert.Contains(t, err.Error(), "magic")
	})

	t.Run("unsupported version", func(t *testing.T) {
		raw := append([]byte{}, valid...)
		raw[4] = FormatVersion + 1

		var h Header
		err := h.Parse(raw)
		require.ErrorIs(t, err, errs.ErrInvalidHeader)
		assert.Contains(t, err.Error(), "version")
	})

	t.Run("unknown compression", func(t *testing.T) {
		raw := append([]byte{}, valid...)
		raw[5] = 0x7f

		var h Header
		err := h.Parse(raw)
		require.ErrorIs(t, err, errs.ErrInvalidHeader)
	})
}

func TestParseHeader_TooShort(t *testing.T) {
	_, err := ParseHeader(make([]byte, HeaderSize-1))
	require.ErrorIs(t, err, errs.ErrInvalidHeader)
}

func TestParseHeader_IgnoresTrailingBytes(t *testing.T) {
	h := Header{Version: FormatVersion, Compression: compress.LZ4, CatalogCount: 1}
	raw := append(h.Bytes(), 0xaa, 0xbb, 0xcc)

	parsed, err := ParseHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}
