package detection

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumensky/starcat/archive"
	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/geom"
	"github.com/lumensky/starcat/table"
)

func archiveRoundTrip(t *testing.T, obj archive.Persistable) archive.Persistable {
	t.Helper()

	out := archive.NewOutputArchive()
	id, err := out.Put(obj)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, out.WriteFits(&buf))

	in, err := archive.ReadArchive(&buf)
	require.NoError(t, err)
	got, err := in.Get(id)
	require.NoError(t, err)

	return got
}

func TestFootprint_ArchiveRoundTrip(t *testing.T) {
	spans := geom.NewSpanSet(
		geom.NewSpan(2, 1, 3),
		geom.NewSpan(3, 0, 1),
	)
	fp := NewFootprint(spans, box(-5, -5, 20, 20))
	fp.AddPeak(1.5, 2.5, 10)
	fp.AddPeak(0.5, 3.5, 7)

	got, ok := archiveRoundTrip(t, fp).(*Footprint)
	require.True(t, ok)

	require.True(t, fp.Spans().Equal(got.Spans()))
	require.Equal(t, fp.Region(), got.Region())
	require.Equal(t, 2, got.Peaks().Len())
	for i := 0; i < 2; i++ {
		want, have := fp.Peaks().PeakAt(i), got.Peaks().PeakAt(i)
		require.Equal(t, want.GetId(), have.GetId())
		require.Equal(t, want.GetIx(), have.GetIx())
		require.Equal(t, want.GetIy(), have.GetIy())
		require.Equal(t, want.GetFx(), have.GetFx())
		require.Equal(t, want.GetPeakValue(), have.GetPeakValue())
	}
}

func TestFootprint_EmptyRegionRoundTrip(t *testing.T) {
	fp := NewFootprint(geom.NewSpanSet(geom.NewSpan(0, 0, 0)), geom.EmptyBox2I())

	got := archiveRoundTrip(t, fp).(*Footprint)
	require.True(t, got.Region().IsEmpty())
}

// legacyFootprint writes the old two-catalog layout: spans inline as
// y/x0/x1 rows instead of an archived span set reference.
type legacyFootprint struct {
	spans []geom.Span
	peaks *table.PeakCatalog
}

func (l *legacyFootprint) PersistenceName() string   { return "Footprint" }
func (l *legacyFootprint) PersistenceModule() string { return "starcat.detection" }

func (l *legacyFootprint) Write(h *archive.Handle) error {
	s := table.NewSchema()
	yk, err := s.AddField("y", table.TypeI32, "", "")
	if err != nil {
		return err
	}
	x0k, err := s.AddField("x0", table.TypeI32, "", "")
	if err != nil {
		return err
	}
	x1k, err := s.AddField("x1", table.TypeI32, "", "")
	if err != nil {
		return err
	}
	cat, err := h.MakeCatalog(s)
	if err != nil {
		return err
	}
	for _, sp := range l.spans {
		rec := cat.AddNew()
		rec.SetI32(yk, int32(sp.Y))
		rec.SetI32(x0k, int32(sp.X0))
		rec.SetI32(x1k, int32(sp.X1))
	}
	h.SaveCatalog(l.peaks.Catalog)

	return nil
}

func TestFootprint_LegacySpanCatalogRead(t *testing.T) {
	peaks := table.NewMinimalPeakCatalog()
	p := peaks.AddNew()
	p.SetIx(2)
	p.SetIy(4)
	p.SetPeakValue(3)

	legacy := &legacyFootprint{
		spans: []geom.Span{geom.NewSpan(4, 1, 5), geom.NewSpan(5, 2, 2)},
		peaks: peaks,
	}

	got, ok := archiveRoundTrip(t, legacy).(*Footprint)
	require.True(t, ok, "legacy layout restores through the Footprint factory")

	want := geom.NewSpanSet(geom.NewSpan(4, 1, 5), geom.NewSpan(5, 2, 2))
	require.True(t, want.Equal(got.Spans()))
	require.Equal(t, want.BBox(), got.Region(), "legacy region defaults to the span bounding box")
	require.Equal(t, 1, got.Peaks().Len())
	require.Equal(t, 2, got.Peaks().PeakAt(0).GetIx())
}

func TestHeavyFootprint_ArchiveRoundTrip(t *testing.T) {
	mi := rampImage(box(0, 0, 9, 9))
	fp := NewFootprint(geom.NewSpanSet(
		geom.NewSpan(2, 1, 3),
		geom.NewSpan(3, 0, 1),
	), mi.BBox())
	fp.AddPeak(2, 2, 203)

	hf, err := MakeHeavy(fp, mi, HeavyFootprintCtrl{})
	require.NoError(t, err)

	got, ok := archiveRoundTrip(t, hf).(*HeavyFootprint)
	require.True(t, ok)

	require.True(t, hf.Spans().Equal(got.Spans()))
	require.Equal(t, hf.ImageArray(), got.ImageArray())
	require.Equal(t, hf.MaskArray(), got.MaskArray())
	require.Equal(t, hf.VarianceArray(), got.VarianceArray())
	require.Equal(t, hf.Dot(hf), got.Dot(got))
	require.Equal(t, 1, got.Peaks().Len())
}

func TestHeavyFootprint_MaskTooWideToPersist(t *testing.T) {
	fp := NewFootprint(geom.NewSpanSet(geom.NewSpan(0, 0, 0)), geom.EmptyBox2I())
	hf := NewHeavyFootprint(fp)
	require.NoError(t, hf.SetArrays([]float32{1}, []uint32{1 << 16}, []float32{0}))

	out := archive.NewOutputArchive()
	_, err := out.Put(hf)
	require.ErrorIs(t, err, errs.ErrUnsupportedOperation)
}
