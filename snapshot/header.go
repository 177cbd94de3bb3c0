package snapshot

import (
	"fmt"

	"github.com/lumensky/starcat/compress"
	"github.com/lumensky/starcat/endian"
	"github.com/lumensky/starcat/errs"
)

const (
	// Magic identifies a snapshot stream ("SCAT", little-endian).
	Magic uint32 = 0x54414353

	// FormatVersion is the snapshot layout version this package writes.
	FormatVersion = 1

	// HeaderSize is the fixed byte size of the snapshot header.
	HeaderSize = 32
)

// engine is the byte order of every snapshot section.
var engine = endian.GetLittleEndianEngine()

// Header is the fixed-size section at the start of a snapshot stream.
// The schema section follows the header, then the data section; both are
// compressed independently with the codec named by Compression.
type Header struct {
	// Version is the snapshot layout version. Byte offset 4.
	Version uint8
	// Compression selects the codec for both payload sections. Byte offset 5.
	Compression compress.Type
	// CatalogCount is the number of catalogs in the snapshot. Byte offset 8-11.
	CatalogCount uint32
	// SchemaSize is the compressed schema section length. Byte offset 12-15.
	SchemaSize uint32
	// DataSize is the compressed data section length. Byte offset 16-23.
	DataSize uint64
	// Checksum is the xxhash64 of the two compressed sections as stored.
	// Byte offset 24-31.
	Checksum uint64
}

// Bytes serializes the header into a 32-byte slice. Bytes 6-7 are reserved
// and written as zero.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	engine.PutUint32(b[0:4], Magic)
	b[4] = h.Version
	b[5] = uint8(h.Compression)
	engine.PutUint32(b[8:12], h.CatalogCount)
	engine.PutUint32(b[12:16], h.SchemaSize)
	engine.PutUint64(b[16:24], h.DataSize)
	engine.PutUint64(b[24:32], h.Checksum)

	return b
}

// Parse fills the header from a byte slice, validating the magic, version
// and compression type.
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("%w: snapshot header is %d bytes, want %d",
			errs.ErrInvalidHeader, len(data), HeaderSize)
	}
	if m := engine.Uint32(data[0:4]); m != Magic {
		return fmt.Errorf("%w: bad snapshot magic %#x", errs.ErrInvalidHeader, m)
	}

	h.Version = data[4]
	if h.Version != FormatVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", errs.ErrInvalidHeader, h.Version)
	}
	h.Compression = compress.Type(data[5])
	if _, err := compress.GetCodec(h.Compression); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidHeader, err)
	}
	h.CatalogCount = engine.Uint32(data[8:12])
	h.SchemaSize = engine.Uint32(data[12:16])
	h.DataSize = engine.Uint64(data[16:24])
	h.Checksum = engine.Uint64(data[24:32])

	return nil
}

// ParseHeader parses a snapshot header from the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is too short for a snapshot header",
			errs.ErrInvalidHeader, len(data))
	}

	var h Header
	if err := h.Parse(data[:HeaderSize]); err != nil {
		return Header{}, err
	}

	return h, nil
}
