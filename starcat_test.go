package starcat

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumensky/starcat/archive"
	"github.com/lumensky/starcat/compress"
	"github.com/lumensky/starcat/detection"
	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/geom"
	"github.com/lumensky/starcat/snapshot"
	"github.com/lumensky/starcat/table"
)

type sourceKeys struct {
	id        table.Key
	flux      table.Key
	footprint table.Key
}

func buildSourceCatalog(t *testing.T) (*table.Catalog, sourceKeys) {
	t.Helper()

	s := table.NewSchema()

	var k sourceKeys
	var err error
	k.id, err = s.AddField("id", table.TypeI64, "source id", "")
	require.NoError(t, err)
	k.flux, err = s.AddField("flux", table.TypeF64, "instrumental flux", "count")
	require.NoError(t, err)
	k.footprint, err = s.AddField("footprint", table.TypeI64, "archive id of the detection footprint", "")
	require.NoError(t, err)

	cat, err := table.NewCatalogFromSchema(s)
	require.NoError(t, err)

	return cat, k
}

func TestWriteReadCatalog(t *testing.T) {
	cat, k := buildSourceCatalog(t)
	for i := 0; i < 4; i++ {
		rec := cat.AddNew()
		rec.SetI64(k.id, int64(i+1))
		rec.SetF64(k.flux, 10.5*float64(i))
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCatalog(&buf, cat))

	got, err := ReadCatalog(&buf)
	require.NoError(t, err)
	require.True(t, got.Schema().Equal(cat.Schema()))
	require.Equal(t, 4, got.Len())
	assert.Equal(t, int64(3), got.Records()[2].GetI64(k.id))
	assert.Equal(t, 31.5, got.Records()[3].GetF64(k.flux))
}

func TestReadCatalog_NoTableHDU(t *testing.T) {
	_, err := ReadCatalog(bytes.NewReader(nil))
	require.Error(t, err)
}

func TestWriteCatalogWithArchive_NilArchive(t *testing.T) {
	cat, _ := buildSourceCatalog(t)

	var buf bytes.Buffer
	err := WriteCatalogWithArchive(&buf, cat, nil)
	require.ErrorIs(t, err, errs.ErrInvalidParameter)
}

func TestCatalogWithArchive_RoundTrip(t *testing.T) {
	cat, k := buildSourceCatalog(t)
	arch := archive.NewOutputArchive()

	region := geom.NewBox2I(geom.Point2I{X: 0, Y: 0}, geom.Point2I{X: 99, Y: 99})
	fpA := detection.NewFootprint(geom.NewSpanSet(
		geom.Span{Y: 4, X0: 2, X1: 8},
		geom.Span{Y: 5, X0: 1, X1: 9},
	), region)
	fpA.AddPeak(5.0, 4.5, 120)
	fpB := detection.NewFootprint(geom.NewSpanSet(
		geom.Span{Y: 40, X0: 60, X1: 63},
	), region)

	for i, fp := range []*detection.Footprint{fpA, fpB, nil} {
		var obj archive.Persistable
		if fp != nil {
			obj = fp
		}
		id, err := arch.Put(obj)
		require.NoError(t, err)

		rec := cat.AddNew()
		rec.SetI64(k.id, int64(i+1))
		rec.SetI64(k.footprint, id)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCatalogWithArchive(&buf, cat, arch))

	got, in, err := ReadCatalogWithArchive(&buf)
	require.NoError(t, err)
	require.NotNil(t, in)
	require.Equal(t, 3, got.Len())

	obj, err := in.Get(got.Records()[0].GetI64(k.footprint))
	require.NoError(t, err)
	fp, ok := obj.(*detection.Footprint)
	require.True(t, ok)
	assert.True(t, fp.Spans().Equal(fpA.Spans()))
	assert.Equal(t, region, fp.Region())
	require.Equal(t, 1, fp.Peaks().Len())
	assert.Equal(t, float32(120), fp.Peaks().PeakAt(0).GetPeakValue())

	obj, err = in.Get(got.Records()[1].GetI64(k.footprint))
	require.NoError(t, err)
	assert.True(t, obj.(*detection.Footprint).Spans().Equal(fpB.Spans()))

	obj, err = in.Get(got.Records()[2].GetI64(k.footprint))
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestReadCatalogWithArchive_NoArchiveCard(t *testing.T) {
	cat, _ := buildSourceCatalog(t)
	cat.AddNew()

	var buf bytes.Buffer
	require.NoError(t, WriteCatalog(&buf, cat))

	got, in, err := ReadCatalogWithArchive(&buf)
	require.NoError(t, err)
	assert.Nil(t, in)
	assert.Equal(t, 1, got.Len())
}

func TestSnapshotWrappers(t *testing.T) {
	cat, k := buildSourceCatalog(t)
	rec := cat.AddNew()
	rec.SetI64(k.id, 7)
	rec.SetF64(k.flux, 99.25)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, []*table.Catalog{cat}, snapshot.WithCompression(compress.Zstd)))

	cats, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, int64(7), cats[0].Records()[0].GetI64(k.id))
	assert.Equal(t, 99.25, cats[0].Records()[0].GetF64(k.flux))
}
