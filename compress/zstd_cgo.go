//go:build cgo

package compress

import (
	"github.com/valyala/gozstd"
)

// Compress encodes one section as a Zstandard frame via the libzstd
// binding.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, 3), nil
}

// Decompress decodes a Zstandard frame via the libzstd binding.
func (c ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.Decompress(nil, data)
}
