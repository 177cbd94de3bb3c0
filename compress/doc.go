// Package compress provides compression and decompression codecs for starcat
// snapshot payload sections.
//
// Snapshots store catalog data in columnar sections (schema descriptors,
// fixed-width column payloads). Compression is applied per section after the
// columns have been gathered, so each algorithm sees long runs of homogeneous
// binary data.
//
// # Supported Algorithms
//
//   - None: no compression (fastest, largest)
//   - Zstd: excellent compression ratio, moderate speed
//   - S2: balanced compression and speed
//   - LZ4: fast decompression, moderate compression
//
// Two Zstandard implementations are provided. When cgo is available the
// valyala/gozstd binding is used; otherwise the pure-Go
// klauspost/compress/zstd implementation is selected via build tags. Both
// produce interoperable frames.
//
// # Usage
//
//	codec, err := compress.GetCodec(compress.Zstd)
//	if err != nil {
//	    return err
//	}
//	compressed, err := codec.Compress(section)
//
// All built-in codecs are stateless values and safe for concurrent use; the
// pooled encoder/decoder state behind them is managed internally.
package compress
