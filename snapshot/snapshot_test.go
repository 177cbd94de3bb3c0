package snapshot

import (
	"bytes"
	"math"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumensky/starcat/compress"
	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/table"
)

type snapKeys struct {
	id      table.Key
	x       table.Key
	flux    table.Key
	fluxErr table.Key
	name    table.Key
	blended table.Key
	shape   table.Key
	samples table.Key
}

func buildSnapshotCatalog(t *testing.T) (*table.Catalog, snapKeys) {
	t.Helper()

	s := table.NewSchema()
	s.SetVersion(3)

	var k snapKeys
	var err error
	k.id, err = s.AddField("id", table.TypeI64, "source id", "")
	require.NoError(t, err)
	k.x, err = s.AddField("i.x", table.TypeI32, "pixel column", "pixel")
	require.NoError(t, err)
	k.flux, err = s.AddField("flux", table.TypeF64, "instrumental flux", "count")
	require.NoError(t, err)
	k.fluxErr, err = s.AddField("flux.err", table.TypeF32, "flux uncertainty", "count")
	require.NoError(t, err)
	k.name, err = s.AddStringField("name", "source label", "", 12)
	require.NoError(t, err)
	k.blended, err = s.AddFlagField("flags.blended", "overlaps a neighbor")
	require.NoError(t, err)
	k.shape, err = s.AddArrayField("shape", table.TypeArrayF64, "adaptive moments", "pixel^2", 3)
	require.NoError(t, err)
	k.samples, err = s.AddVarArrayField("samples", table.TypeVarArrayF32, "posterior samples", "")
	require.NoError(t, err)
	s.Aliases().Set("total.flux", "flux")

	cat, err := table.NewCatalogFromSchema(s)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := cat.AddNew()
		rec.SetI64(k.id, int64(100+i))
		rec.SetI32(k.x, int32(-5*i))
		rec.SetF64(k.flux, 1.5+float64(i))
		rec.SetF32(k.fluxErr, 0.25*float32(i+1))
		require.NoError(t, rec.SetString(k.name, "src"))
		rec.SetFlag(k.blended, i == 1)
		require.NoError(t, rec.SetArrayF64(k.shape, []float64{float64(i), 2, 3.5}))
		rec.SetVarF32(k.samples, []float32{float32(i), 1, 2})
	}
	cat.Records()[2].SetF64(k.flux, math.NaN())

	return cat, k
}

func TestSnapshot_RoundTrip(t *testing.T) {
	types := map[string]compress.Type{
		"none": compress.None,
		"zstd": compress.Zstd,
		"s2":   compress.S2,
		"lz4":  compress.LZ4,
	}

	for name, ctype := range types {
		t.Run(name, func(t *testing.T) {
			cat, k := buildSnapshotCatalog(t)

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, []*table.Catalog{cat}, WithCompression(ctype)))

			cats, err := Read(&buf)
			require.NoError(t, err)
			require.Len(t, cats, 1)

			got := cats[0]
			require.True(t, got.Schema().Equal(cat.Schema()))
			assert.Equal(t, 3, got.Schema().Version())
			assert.Equal(t, "flux", got.Schema().Aliases().Get("total.flux"))
			require.Equal(t, cat.Len(), got.Len())

			item, err := got.Schema().Find("flux")
			require.NoError(t, err)
			assert.Equal(t, "count", item.Field.Units)
			assert.Equal(t, "instrumental flux", item.Field.Doc)

			for i, rec := range got.Records() {
				want := cat.Records()[i]
				assert.Equal(t, want.GetI64(k.id), rec.GetI64(k.id))
				assert.Equal(t, want.GetI32(k.x), rec.GetI32(k.x))
				assert.Equal(t, want.GetF32(k.fluxErr), rec.GetF32(k.fluxErr))
				assert.Equal(t, want.GetString(k.name), rec.GetString(k.name))
				assert.Equal(t, want.GetFlag(k.blended), rec.GetFlag(k.blended))
				assert.Equal(t, append([]float64(nil), want.GetArrayF64(k.shape)...),
					append([]float64(nil), rec.GetArrayF64(k.shape)...))
			}
			assert.Equal(t, 2.5, got.Records()[1].GetF64(k.flux))
			assert.True(t, math.IsNaN(got.Records()[2].GetF64(k.flux)))
		})
	}
}

func TestSnapshot_VarArraysNotStored(t *testing.T) {
	cat, k := buildSnapshotCatalog(t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*table.Catalog{cat}))

	cats, err := Read(&buf)
	require.NoError(t, err)

	// The field survives in the schema but its values ride the FITS path.
	item, err := cats[0].Schema().Find("samples")
	require.NoError(t, err)
	assert.Equal(t, table.TypeVarArrayF32, item.Field.Type)
	for _, rec := range cats[0].Records() {
		assert.Empty(t, rec.GetVarF32(k.samples))
	}
}

func TestSnapshot_MultipleCatalogs(t *testing.T) {
	first, _ := buildSnapshotCatalog(t)

	s := table.NewSchema()
	yKey, err := s.AddField("y", table.TypeI32, "", "")
	require.NoError(t, err)
	second, err := table.NewCatalogFromSchema(s)
	require.NoError(t, err)
	second.AddNew().SetI32(yKey, 42)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*table.Catalog{first, second}, WithCompression(compress.S2)))

	cats, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, 3, cats[0].Len())
	require.Equal(t, 1, cats[1].Len())

	item, err := cats[1].Schema().Find("y")
	require.NoError(t, err)
	assert.Equal(t, int32(42), cats[1].Records()[0].GetI32(item.Key))
}

func TestSnapshot_EmptyCatalog(t *testing.T) {
	s := table.NewSchema()
	_, err := s.AddField("id", table.TypeI64, "", "")
	require.NoError(t, err)
	cat, err := table.NewCatalogFromSchema(s)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*table.Catalog{cat}))

	cats, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Zero(t, cats[0].Len())
	assert.Equal(t, 1, cats[0].Schema().FieldCount())
}

func TestSnapshot_ChecksumMismatch(t *testing.T) {
	cat, _ := buildSnapshotCatalog(t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*table.Catalog{cat}))

	raw := buf.Bytes()
	raw[HeaderSize] ^= 0xff

	_, err := Read(bytes.NewReader(raw))
	require.ErrorIs(t, err, errs.ErrChecksumMismatch)
}

func TestSnapshot_Truncated(t *testing.T) {
	cat, _ := buildSnapshotCatalog(t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*table.Catalog{cat}))

	t.Run("inside header", func(t *testing.T) {
		_, err := Read(bytes.NewReader(buf.Bytes()[:HeaderSize-4]))
		require.ErrorIs(t, err, errs.ErrInvalidHeader)
	})

	t.Run("inside data section", func(t *testing.T) {
		_, err := Read(bytes.NewReader(buf.Bytes()[:buf.Len()-8]))
		require.ErrorIs(t, err, errs.ErrInvalidHeader)
	})
}

func TestRead_CorruptHeaderSizes(t *testing.T) {
	t.Run("data size beyond stream", func(t *testing.T) {
		hdr := Header{Version: FormatVersion, Compression: compress.None, DataSize: 1 << 40}
		_, err := Read(bytes.NewReader(hdr.Bytes()))
		require.ErrorIs(t, err, errs.ErrInvalidHeader)
	})

	t.Run("schema size beyond stream", func(t *testing.T) {
		hdr := Header{Version: FormatVersion, Compression: compress.None, SchemaSize: math.MaxUint32}
		_, err := Read(bytes.NewReader(hdr.Bytes()))
		require.ErrorIs(t, err, errs.ErrInvalidHeader)
	})

	t.Run("catalog count beyond schema section", func(t *testing.T) {
		hdr := Header{
			Version:      FormatVersion,
			Compression:  compress.None,
			CatalogCount: math.MaxUint32,
			Checksum:     xxhash.New().Sum64(),
		}
		_, err := Read(bytes.NewReader(hdr.Bytes()))
		require.ErrorIs(t, err, errs.ErrInvalidHeader)
	})
}

func TestWrite_UnknownCompression(t *testing.T) {
	cat, _ := buildSnapshotCatalog(t)

	var buf bytes.Buffer
	err := Write(&buf, []*table.Catalog{cat}, WithCompression(compress.Type(0x7f)))
	require.ErrorIs(t, err, errs.ErrInvalidParameter)
}
