package compress

import "fmt"

// Type identifies a compression algorithm used for snapshot payload sections.
type Type uint8

const (
	// None represents no compression.
	None Type = 0x1
	// Zstd represents Zstandard compression.
	Zstd Type = 0x2
	// S2 represents S2 compression.
	S2 Type = 0x3
	// LZ4 represents LZ4 block compression.
	LZ4 Type = 0x4
)

func (t Type) String() string {
	switch t {
	case None:
		return "None"
	case Zstd:
		return "Zstd"
	case S2:
		return "S2"
	case LZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// Compressor provides compression for catalog snapshot payload sections.
//
// The interface is optimized for starcat's columnar snapshot data where:
//   - Schema sections: small, highly repetitive field descriptors
//   - Column sections: fixed-width numeric data, often with long runs
//   - Payload sizes: usually 1KB-1MB per section
type Compressor interface {
	// Compress encodes one section. The input is never modified; the result
	// is owned by the caller (the no-op codec aliases its input).
	Compress(data []byte) ([]byte, error)
}

// Decompressor provides decompression for snapshot payload sections.
// Implementations must be safe for concurrent use; pooled encoder/decoder
// state stays internal.
type Decompressor interface {
	// Decompress decodes a section written by the matching Compress,
	// failing on corrupted or foreign input.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions; every built-in implements it.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec is a factory function that creates a Codec based on the specified compression type.
//
// Parameters:
//   - compressionType: Type of compression (None, Zstd, S2, or LZ4)
//   - target: Description of target usage (for error messages)
//
// Returns:
//   - Codec: Compressor instance for the specified type
//   - error: Invalid compression type error
func CreateCodec(compressionType Type, target string) (Codec, error) {
	switch compressionType {
	case None:
		return NewNoOpCompressor(), nil
	case Zstd:
		return NewZstdCompressor(), nil
	case S2:
		return NewS2Compressor(), nil
	case LZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("invalid %s compression: %s", target, compressionType)
	}
}

var builtinCodecs = map[Type]Codec{
	None: NewNoOpCompressor(),
	Zstd: NewZstdCompressor(),
	S2:   NewS2Compressor(),
	LZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves a built-in Codec for the specified compression type.
func GetCodec(compressionType Type) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}
