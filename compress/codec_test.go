package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGetCodec verifies every built-in compression type resolves to a codec.
func TestGetCodec(t *testing.T) {
	for _, ct := range []Type{None, Zstd, S2, LZ4} {
		codec, err := GetCodec(ct)
		require.NoError(t, err, "type %s", ct)
		require.NotNil(t, codec)
	}

	_, err := GetCodec(Type(0xff))
	require.Error(t, err)
}

// TestCreateCodecInvalidType verifies the factory rejects unknown types.
func TestCreateCodecInvalidType(t *testing.T) {
	_, err := CreateCodec(Type(0), "section")
	require.Error(t, err)
	require.Contains(t, err.Error(), "section")
}

// TestCodecRoundTrip verifies compress/decompress round-trips for each codec.
func TestCodecRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	// Columnar-looking payload: repetitive descriptors plus numeric noise.
	payload := bytes.Repeat([]byte("coord.ra coord.dec flux.psf "), 128)
	noise := make([]byte, 4096)
	rng.Read(noise)
	payload = append(payload, noise...)

	tests := []struct {
		name  string
		cType Type
	}{
		{name: "None", cType: None},
		{name: "Zstd", cType: Zstd},
		{name: "S2", cType: S2},
		{name: "LZ4", cType: LZ4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := GetCodec(tt.cType)
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, payload, decompressed)
		})
	}
}

// TestCodecEmptyInput verifies empty payload handling for each codec.
func TestCodecEmptyInput(t *testing.T) {
	for _, ct := range []Type{None, Zstd, S2, LZ4} {
		codec, err := GetCodec(ct)
		require.NoError(t, err)

		compressed, err := codec.Compress(nil)
		require.NoError(t, err)

		decompressed, err := codec.Decompress(compressed)
		require.NoError(t, err)
		require.Empty(t, decompressed)
	}
}

// TestTypeString verifies the String representation of compression types.
func TestTypeString(t *testing.T) {
	require.Equal(t, "None", None.String())
	require.Equal(t, "Zstd", Zstd.String())
	require.Equal(t, "S2", S2.String())
	require.Equal(t, "LZ4", LZ4.String())
	require.Equal(t, "Unknown", Type(0x99).String())
}
