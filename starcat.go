// Package starcat provides columnar catalogs of astronomical sources with
// schema-described records, pixel-region footprints, and FITS persistence.
//
// A catalog is a sequence of records sharing one schema. Schemas are built
// field by field, frozen on first use, and compared structurally, so two
// catalogs written and read independently can still exchange records. On
// top of the catalogs sit footprints (sets of pixel spans with detected
// peaks) and heavy footprints (footprints carrying their pixel values),
// plus an object archive that persists arbitrary linked objects alongside
// a catalog in one FITS file.
//
// # Core Features
//
//   - Typed schema fields: integers, floats, flags, strings, fixed and
//     variable-length arrays, with units and documentation per field
//   - Flag fields packed into shared bit words for dense boolean columns
//   - Alias maps and measurement slots for indirection over field names
//   - Span-based footprints with erosion, dilation and set operations
//   - FITS binary-table persistence, gzip-transparent on read
//   - Identity-preserving object archives (shared objects stay shared)
//   - Snapshot format for fast catalog caching with optional compression
//     (None, Zstd, S2, LZ4) and xxHash64 integrity checks
//
// # Basic Usage
//
// Building and writing a catalog:
//
//	import "github.com/lumensky/starcat"
//	import "github.com/lumensky/starcat/table"
//
//	schema := table.NewSchema()
//	idKey, _ := schema.AddField("id", table.TypeI64, "source id", "")
//	fluxKey, _ := schema.AddField("flux", table.TypeF64, "instrumental flux", "count")
//
//	cat, _ := table.NewCatalogFromSchema(schema)
//	rec := cat.AddNew()
//	rec.SetI64(idKey, 1)
//	rec.SetF64(fluxKey, 1234.5)
//
//	var buf bytes.Buffer
//	_ = starcat.WriteCatalog(&buf, cat)
//
//	roundTripped, _ := starcat.ReadCatalog(&buf)
//
// # Package Structure
//
// This package provides top-level wrappers for the most common read and
// write paths. For fine-grained control use the subpackages directly:
// table (schemas, records, catalogs), geom (points, boxes, spans),
// image (pixel arrays), detection (footprints and peaks), archive
// (object persistence), fits (binary tables), and snapshot (the binary
// cache format).
package starcat

import (
	"fmt"
	"io"

	"github.com/lumensky/starcat/archive"
	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/fits"
	"github.com/lumensky/starcat/snapshot"
	"github.com/lumensky/starcat/table"
)

// WriteCatalog writes a catalog as a two-HDU FITS stream: a dataless
// primary HDU followed by one binary-table HDU holding the records.
//
// Parameters:
//   - w: The destination stream.
//   - cat: The catalog to write.
//
// Returns an error if a record value cannot be represented in the FITS
// column mapping.
func WriteCatalog(w io.Writer, cat *table.Catalog) error {
	if err := fits.WritePrimary(w, nil); err != nil {
		return err
	}

	return archive.WriteCatalog(w, cat, "", nil)
}

// ReadCatalog reads a catalog from a FITS stream written by WriteCatalog.
// Gzipped streams are detected and decompressed transparently. Leading
// table-less HDUs are skipped; the first binary table becomes the catalog.
func ReadCatalog(r io.Reader) (*table.Catalog, error) {
	hdus, err := fits.ReadAll(r)
	if err != nil {
		return nil, err
	}
	hdu := firstTableHDU(hdus)
	if hdu == nil {
		return nil, fmt.Errorf("%w: no binary table HDU in stream", errs.ErrInvalidHeader)
	}

	cat, _, err := archive.CatalogFromHDU(hdu)

	return cat, err
}

// WriteCatalogWithArchive writes a catalog together with an object archive
// in one FITS stream.
//
// Objects referenced by the catalog's records must already have been
// registered with arch.Put; the ids Put returned are what the records
// store. The catalog HDU carries an AR_HDU card naming the 1-based
// position of the archive index HDU, so readers can find the archive
// without scanning.
//
// Parameters:
//   - w: The destination stream.
//   - cat: The catalog to write.
//   - arch: The archive holding every object the catalog references.
func WriteCatalogWithArchive(w io.Writer, cat *table.Catalog, arch *archive.OutputArchive) error {
	if arch == nil {
		return fmt.Errorf("%w: nil archive", errs.ErrInvalidParameter)
	}
	if err := fits.WritePrimary(w, nil); err != nil {
		return err
	}

	// Primary is HDU 1, the catalog HDU 2, so the archive index lands at 3.
	extra := fits.NewHeader()
	extra.Append(archive.KeyArchiveHDU, int64(3), "archive index HDU (1-based)")
	if err := archive.WriteCatalog(w, cat, "", extra); err != nil {
		return err
	}

	return arch.WriteHDUs(w)
}

// ReadCatalogWithArchive reads a catalog and, when the stream carries one,
// its object archive.
//
// Returns:
//   - *table.Catalog: The catalog from the first binary-table HDU.
//   - *archive.InputArchive: The archive named by the catalog's AR_HDU
//     card, or nil when the card is absent.
//   - error: An error if either structure cannot be decoded.
func ReadCatalogWithArchive(r io.Reader) (*table.Catalog, *archive.InputArchive, error) {
	hdus, err := fits.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	hdu := firstTableHDU(hdus)
	if hdu == nil {
		return nil, nil, fmt.Errorf("%w: no binary table HDU in stream", errs.ErrInvalidHeader)
	}

	cat, _, err := archive.CatalogFromHDU(hdu)
	if err != nil {
		return nil, nil, err
	}

	arHDU, ok := hdu.Header.GetInt(archive.KeyArchiveHDU)
	if !ok {
		return cat, nil, nil
	}
	if arHDU < 1 || int(arHDU) > len(hdus) {
		return nil, nil, fmt.Errorf("%w: %s names HDU %d of %d",
			errs.ErrInvalidHeader, archive.KeyArchiveHDU, arHDU, len(hdus))
	}

	arch, err := archive.ArchiveFromHDUs(hdus[arHDU-1:])
	if err != nil {
		return nil, nil, err
	}

	return cat, arch, nil
}

// WriteSnapshot writes catalogs in the snapshot cache format, a compact
// alternative to FITS for fast local round trips. Variable-length array
// fields are not stored; see the snapshot package for the trade-offs.
//
// Example:
//
//	_ = starcat.WriteSnapshot(&buf, cats, snapshot.WithCompression(compress.Zstd))
func WriteSnapshot(w io.Writer, cats []*table.Catalog, opts ...snapshot.Option) error {
	return snapshot.Write(w, cats, opts...)
}

// ReadSnapshot reads catalogs written by WriteSnapshot, verifying the
// stream checksum before decoding.
func ReadSnapshot(r io.Reader) ([]*table.Catalog, error) {
	return snapshot.Read(r)
}

func firstTableHDU(hdus []*fits.HDU) *fits.HDU {
	for _, hdu := range hdus {
		if hdu.Table != nil {
			return hdu
		}
	}

	return nil
}
