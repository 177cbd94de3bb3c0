// Package snapshot implements a compact binary cache format for catalog
// sets.
//
// A snapshot is a fixed 32-byte header followed by two independently
// compressed sections: a schema section describing every catalog's layout,
// and a column-major data section holding the fixed-width field values.
// All multi-byte values are little-endian, and the header carries an
// xxhash64 checksum of the stored sections.
//
// The format trades completeness for speed: variable-length array fields
// are not materialized in the data section and read back empty. Catalogs
// that need them round-tripped belong on the FITS archive path.
package snapshot

import (
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/lumensky/starcat/compress"
	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/internal/pool"
	"github.com/lumensky/starcat/table"
)

type config struct {
	compression compress.Type
}

// Option configures a snapshot write.
type Option func(*config)

// WithCompression selects the codec for both payload sections.
// The default is compress.None.
func WithCompression(t compress.Type) Option {
	return func(c *config) { c.compression = t }
}

// Write serializes the catalogs as one snapshot stream.
func Write(w io.Writer, cats []*table.Catalog, opts ...Option) error {
	cfg := config{compression: compress.None}
	for _, opt := range opts {
		opt(&cfg)
	}
	codec, err := compress.GetCodec(cfg.compression)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidParameter, err)
	}

	schemaRaw := encodeSchemas(cats)
	dataRaw := encodeData(cats)

	schemaSec, err := codec.Compress(schemaRaw)
	if err != nil {
		return err
	}
	dataSec, err := codec.Compress(dataRaw)
	if err != nil {
		return err
	}

	digest := xxhash.New()
	_, _ = digest.Write(schemaSec)
	_, _ = digest.Write(dataSec)

	hdr := Header{
		Version:      FormatVersion,
		Compression:  cfg.compression,
		CatalogCount: uint32(len(cats)),
		SchemaSize:   uint32(len(schemaSec)),
		DataSize:     uint64(len(dataSec)),
		Checksum:     digest.Sum64(),
	}

	buf := pool.GetArchiveBuffer()
	defer pool.PutArchiveBuffer(buf)
	buf.MustWrite(hdr.Bytes())
	buf.MustWrite(schemaSec)
	buf.MustWrite(dataSec)
	_, err = buf.WriteTo(w)

	return err
}

// Read deserializes a snapshot stream back into catalogs.
func Read(r io.Reader) ([]*table.Catalog, error) {
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: reading snapshot header: %v", errs.ErrInvalidHeader, err)
	}
	hdr, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	schemaSec, err := readSection(r, uint64(hdr.SchemaSize), "schema")
	if err != nil {
		return nil, err
	}
	dataSec, err := readSection(r, hdr.DataSize, "data")
	if err != nil {
		return nil, err
	}

	digest := xxhash.New()
	_, _ = digest.Write(schemaSec)
	_, _ = digest.Write(dataSec)
	if digest.Sum64() != hdr.Checksum {
		return nil, fmt.Errorf("%w: snapshot checksum %#x, header says %#x",
			errs.ErrChecksumMismatch, digest.Sum64(), hdr.Checksum)
	}

	codec, err := compress.GetCodec(hdr.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidHeader, err)
	}
	schemaRaw, err := codec.Decompress(schemaSec)
	if err != nil {
		return nil, err
	}
	dataRaw, err := codec.Decompress(dataSec)
	if err != nil {
		return nil, err
	}

	// Every catalog contributes at least its four fixed counters to the
	// schema section; a count beyond that is a corrupt header.
	if uint64(hdr.CatalogCount)*16 > uint64(len(schemaRaw)) {
		return nil, fmt.Errorf("%w: catalog count %d exceeds schema section size %d",
			errs.ErrInvalidHeader, hdr.CatalogCount, len(schemaRaw))
	}

	cats, rows, err := decodeSchemas(schemaRaw, int(hdr.CatalogCount))
	if err != nil {
		return nil, err
	}
	if err := decodeData(dataRaw, cats, rows); err != nil {
		return nil, err
	}

	return cats, nil
}

// readSection reads a header-declared section in bounded chunks, so a
// corrupt size fails against the stream instead of sizing one allocation.
func readSection(r io.Reader, size uint64, name string) ([]byte, error) {
	const chunk = 1 << 20
	buf := make([]byte, 0, min(size, chunk))
	for uint64(len(buf)) < size {
		n := int(min(size-uint64(len(buf)), chunk))
		off := len(buf)
		buf = append(buf, make([]byte, n)...)
		if _, err := io.ReadFull(r, buf[off:]); err != nil {
			return nil, fmt.Errorf("%w: reading %s section: %v", errs.ErrInvalidHeader, name, err)
		}
	}

	return buf, nil
}

// encodeSchemas writes, per catalog: row count, schema version, field
// descriptors in declaration order, and the alias map.
func encodeSchemas(cats []*table.Catalog) []byte {
	var b []byte
	for _, cat := range cats {
		s := cat.Schema()
		b = engine.AppendUint32(b, uint32(cat.Len()))
		b = engine.AppendUint32(b, uint32(s.Version()))
		b = engine.AppendUint32(b, uint32(s.FieldCount()))
		for _, item := range s.Items() {
			b = appendString(b, item.Field.Name)
			b = append(b, byte(item.Field.Type))
			b = engine.AppendUint32(b, uint32(item.Field.Count))
			b = appendString(b, item.Field.Units)
			b = appendString(b, item.Field.Doc)
		}
		aliases := s.Aliases().Items()
		b = engine.AppendUint32(b, uint32(len(aliases)))
		for _, pair := range aliases {
			b = appendString(b, pair[0])
			b = appendString(b, pair[1])
		}
	}

	return b
}

func decodeSchemas(raw []byte, count int) ([]*table.Catalog, []int, error) {
	d := &decoder{b: raw}
	cats := make([]*table.Catalog, count)
	rows := make([]int, count)
	for i := range cats {
		rows[i] = int(d.uint32())
		version := int(d.uint32())
		fieldCount := int(d.uint32())

		s := table.NewSchema()
		s.SetVersion(version)
		for f := 0; f < fieldCount; f++ {
			name := d.str()
			ftype := table.FieldType(d.uint8())
			fcount := int(d.uint32())
			units := d.str()
			doc := d.str()
			if d.err != nil {
				return nil, nil, d.fail()
			}
			if err := addField(s, name, ftype, fcount, units, doc); err != nil {
				return nil, nil, err
			}
		}
		aliasCount := int(d.uint32())
		for a := 0; a < aliasCount; a++ {
			alias := d.str()
			target := d.str()
			if d.err == nil {
				s.Aliases().Set(alias, target)
			}
		}
		if d.err != nil {
			return nil, nil, d.fail()
		}

		cat, err := table.NewCatalogFromSchema(s)
		if err != nil {
			return nil, nil, err
		}
		cats[i] = cat
	}

	return cats, rows, nil
}

func addField(s *table.Schema, name string, ftype table.FieldType, count int, units, doc string) error {
	var err error
	switch ftype {
	case table.TypeFlag:
		_, err = s.AddFlagField(name, doc)
	case table.TypeString:
		_, err = s.AddStringField(name, doc, units, count)
	case table.TypeArrayI32, table.TypeArrayF32, table.TypeArrayF64:
		_, err = s.AddArrayField(name, ftype, doc, units, count)
	case table.TypeVarArrayU16, table.TypeVarArrayF32, table.TypeVarArrayF64:
		_, err = s.AddVarArrayField(name, ftype, doc, units)
	case table.TypeI32, table.TypeI64, table.TypeF32, table.TypeF64:
		_, err = s.AddField(name, ftype, doc, units)
	default:
		return fmt.Errorf("%w: snapshot field %q has unknown type %#x", errs.ErrInvalidHeader, name, uint8(ftype))
	}

	return err
}

// encodeData writes each catalog column-major: for every field in
// declaration order, the value of every record. Variable-length arrays are
// omitted. Columns are gathered through the typed slice pools so repeated
// snapshots reuse their staging buffers.
func encodeData(cats []*table.Catalog) []byte {
	var b []byte
	for _, cat := range cats {
		n := cat.Len()
		for _, item := range cat.Schema().Items() {
			k := item.Key
			switch item.Field.Type {
			case table.TypeI32:
				for _, rec := range cat.Records() {
					b = engine.AppendUint32(b, uint32(rec.GetI32(k)))
				}
			case table.TypeI64:
				col, cleanup := pool.GetInt64Slice(n)
				for i, rec := range cat.Records() {
					col[i] = rec.GetI64(k)
				}
				for _, v := range col {
					b = engine.AppendUint64(b, uint64(v))
				}
				cleanup()
			case table.TypeF32:
				col, cleanup := pool.GetFloat32Slice(n)
				for i, rec := range cat.Records() {
					col[i] = rec.GetF32(k)
				}
				for _, v := range col {
					b = engine.AppendUint32(b, math.Float32bits(v))
				}
				cleanup()
			case table.TypeF64:
				col, cleanup := pool.GetFloat64Slice(n)
				for i, rec := range cat.Records() {
					col[i] = rec.GetF64(k)
				}
				for _, v := range col {
					b = engine.AppendUint64(b, math.Float64bits(v))
				}
				cleanup()
			case table.TypeFlag:
				for _, rec := range cat.Records() {
					if rec.GetFlag(k) {
						b = append(b, 1)
					} else {
						b = append(b, 0)
					}
				}
			case table.TypeString:
				for _, rec := range cat.Records() {
					b = appendFixedString(b, rec.GetString(k), item.Field.Count)
				}
			case table.TypeArrayI32:
				for _, rec := range cat.Records() {
					for _, v := range rec.GetArrayI32(k) {
						b = engine.AppendUint32(b, uint32(v))
					}
				}
			case table.TypeArrayF32:
				for _, rec := range cat.Records() {
					for _, v := range rec.GetArrayF32(k) {
						b = engine.AppendUint32(b, math.Float32bits(v))
					}
				}
			case table.TypeArrayF64:
				for _, rec := range cat.Records() {
					for _, v := range rec.GetArrayF64(k) {
						b = engine.AppendUint64(b, math.Float64bits(v))
					}
				}
			}
		}
	}

	return b
}

func decodeData(raw []byte, cats []*table.Catalog, rows []int) error {
	d := &decoder{b: raw}
	for ci, cat := range cats {
		for i := 0; i < rows[ci]; i++ {
			cat.AddNew()
		}
		for _, item := range cat.Schema().Items() {
			k := item.Key
			switch item.Field.Type {
			case table.TypeI32:
				for _, rec := range cat.Records() {
					rec.SetI32(k, int32(d.uint32()))
				}
			case table.TypeI64:
				for _, rec := range cat.Records() {
					rec.SetI64(k, int64(d.uint64()))
				}
			case table.TypeF32:
				for _, rec := range cat.Records() {
					rec.SetF32(k, math.Float32frombits(d.uint32()))
				}
			case table.TypeF64:
				for _, rec := range cat.Records() {
					rec.SetF64(k, math.Float64frombits(d.uint64()))
				}
			case table.TypeFlag:
				for _, rec := range cat.Records() {
					rec.SetFlag(k, d.uint8() != 0)
				}
			case table.TypeString:
				for _, rec := range cat.Records() {
					v := trimNul(d.bytes(item.Field.Count))
					if d.err == nil {
						if err := rec.SetString(k, v); err != nil {
							return err
						}
					}
				}
			case table.TypeArrayI32:
				for _, rec := range cat.Records() {
					dst := rec.GetArrayI32(k)
					for j := range dst {
						dst[j] = int32(d.uint32())
					}
				}
			case table.TypeArrayF32:
				for _, rec := range cat.Records() {
					dst := rec.GetArrayF32(k)
					for j := range dst {
						dst[j] = math.Float32frombits(d.uint32())
					}
				}
			case table.TypeArrayF64:
				for _, rec := range cat.Records() {
					dst := rec.GetArrayF64(k)
					for j := range dst {
						dst[j] = math.Float64frombits(d.uint64())
					}
				}
			}
			if d.err != nil {
				return d.fail()
			}
		}
	}
	if d.off != len(d.b) {
		return fmt.Errorf("%w: %d trailing bytes in snapshot data section",
			errs.ErrInvalidHeader, len(d.b)-d.off)
	}

	return nil
}

func appendString(b []byte, s string) []byte {
	b = engine.AppendUint16(b, uint16(len(s)))

	return append(b, s...)
}

func appendFixedString(b []byte, s string, size int) []byte {
	b = append(b, s...)
	for i := len(s); i < size; i++ {
		b = append(b, 0)
	}

	return b
}

func trimNul(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}

	return string(b[:end])
}

// decoder walks a section with a sticky error, so field loops stay flat.
type decoder struct {
	b   []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.b) {
		d.err = fmt.Errorf("%w: snapshot section truncated at byte %d", errs.ErrInvalidHeader, d.off)

		return nil
	}
	v := d.b[d.off : d.off+n]
	d.off += n

	return v
}

func (d *decoder) uint8() uint8 {
	v := d.take(1)
	if v == nil {
		return 0
	}

	return v[0]
}

func (d *decoder) uint32() uint32 {
	v := d.take(4)
	if v == nil {
		return 0
	}

	return engine.Uint32(v)
}

func (d *decoder) uint64() uint64 {
	v := d.take(8)
	if v == nil {
		return 0
	}

	return engine.Uint64(v)
}

func (d *decoder) str() string {
	n := d.take(2)
	if n == nil {
		return ""
	}

	return string(d.take(int(engine.Uint16(n))))
}

func (d *decoder) bytes(n int) []byte { return d.take(n) }

func (d *decoder) fail() error { return d.err }
