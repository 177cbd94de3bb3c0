package detection

import (
	"testing"

	"github.com/lumensky/starcat/geom"
	"github.com/lumensky/starcat/table"
	"github.com/stretchr/testify/require"
)

func box(x0, y0, x1, y1 int) geom.Box2I {
	return geom.NewBox2I(geom.Point2I{X: x0, Y: y0}, geom.Point2I{X: x1, Y: y1})
}

func TestFootprint_Basics(t *testing.T) {
	fp := NewFootprintFromBox(box(2, 3, 5, 6), box(0, 0, 99, 99))

	require.Equal(t, 16, fp.Area())
	require.Equal(t, box(2, 3, 5, 6), fp.BBox())
	require.Equal(t, box(0, 0, 99, 99), fp.Region())
	require.True(t, fp.Contains(geom.Point2I{X: 2, Y: 3}))
	require.False(t, fp.Contains(geom.Point2I{X: 6, Y: 3}))
	require.False(t, fp.IsHeavy())
}

func TestFootprint_AddPeak(t *testing.T) {
	fp := NewFootprintFromBox(box(0, 0, 9, 9), geom.EmptyBox2I())

	p := fp.AddPeak(3.7, 4.2, 100)
	require.Equal(t, 3, p.GetIx(), "integer position is the containing pixel")
	require.Equal(t, 4, p.GetIy())
	require.Equal(t, float32(3.7), p.GetFx())
	require.Equal(t, float32(100), p.GetPeakValue())
	require.NotZero(t, p.GetId())

	// Negative positions truncate toward negative infinity.
	fp2 := NewFootprintFromBox(box(-10, -10, 9, 9), geom.EmptyBox2I())
	pn := fp2.AddPeak(-0.5, -3.2, 1)
	require.Equal(t, -1, pn.GetIx())
	require.Equal(t, -4, pn.GetIy())
}

func TestFootprint_SortPeaks(t *testing.T) {
	fp := NewFootprintFromBox(box(0, 0, 9, 9), geom.EmptyBox2I())
	fp.AddPeak(1, 1, 5)
	fp.AddPeak(2, 2, 50)
	fp.AddPeak(3, 3, 0.5)

	fp.SortPeaks(table.PeakValueKey())
	require.Equal(t, float32(50), fp.Peaks().PeakAt(0).GetPeakValue())
	require.Equal(t, float32(0.5), fp.Peaks().PeakAt(2).GetPeakValue())

	// An invalid key falls back to peak value.
	fp.SortPeaks(table.Key{})
	require.Equal(t, float32(50), fp.Peaks().PeakAt(0).GetPeakValue())
}

func TestFootprint_RemoveOrphanPeaks(t *testing.T) {
	fp := NewFootprintFromBox(box(0, 0, 9, 9), geom.EmptyBox2I())
	fp.AddPeak(2, 2, 10)
	fp.AddPeak(8, 8, 20)

	fp.ClipTo(box(0, 0, 4, 4))
	require.Equal(t, 1, fp.Peaks().Len(), "the clipped-away peak is pruned")
	require.Equal(t, 2, fp.Peaks().PeakAt(0).GetIx())
}

func TestFootprint_Shift(t *testing.T) {
	fp := NewFootprintFromBox(box(0, 0, 2, 2), box(0, 0, 9, 9))
	fp.AddPeak(1, 1, 7)

	fp.Shift(10, 20)
	require.Equal(t, box(10, 20, 12, 22), fp.BBox())
	require.Equal(t, box(10, 20, 19, 29), fp.Region())

	p := fp.Peaks().PeakAt(0)
	require.Equal(t, 11, p.GetIx())
	require.Equal(t, 21, p.GetIy())
	require.Equal(t, float32(11), p.GetFx())
}

func TestFootprint_DilateErodeRoundTrip(t *testing.T) {
	fp := NewFootprint(geom.NewSpanSet(geom.NewSpan(0, 0, 2)), geom.EmptyBox2I())
	fp.AddPeak(1, 0, 3)
	area := fp.Area()

	fp.Dilate(1, geom.StencilCircle)
	require.Equal(t, 11, fp.Area())

	fp.Erode(1, geom.StencilCircle)
	require.Equal(t, area, fp.Area())
	require.Equal(t, 1, fp.Peaks().Len(), "the peak survives the round trip")

	// Eroding to nothing orphans every peak.
	fp.Erode(2, geom.StencilCircle)
	require.Zero(t, fp.Area())
	require.Zero(t, fp.Peaks().Len())
}

type offsetTransform struct {
	dx, dy float64
}

func (o offsetTransform) Forward(p geom.Point2D) geom.Point2D {
	return geom.Point2D{X: p.X + o.dx, Y: p.Y + o.dy}
}

func (o offsetTransform) Inverse(p geom.Point2D) geom.Point2D {
	return geom.Point2D{X: p.X - o.dx, Y: p.Y - o.dy}
}

func TestFootprint_Transform(t *testing.T) {
	fp := NewFootprintFromBox(box(0, 0, 4, 4), box(0, 0, 9, 9))
	fp.AddPeak(2, 2, 9)

	region := box(0, 0, 99, 99)
	out := fp.Transform(offsetTransform{dx: 10, dy: 5}, region, true)

	require.Equal(t, box(10, 5, 14, 9), out.BBox())
	require.Equal(t, region, out.Region())
	require.Equal(t, 1, out.Peaks().Len())
	p := out.Peaks().PeakAt(0)
	require.Equal(t, 12, p.GetIx())
	require.Equal(t, 7, p.GetIy())

	// Clipping drops the parts mapped outside the region.
	clipped := fp.Transform(offsetTransform{dx: 98, dy: 0}, region, true)
	require.Equal(t, box(98, 0, 99, 4), clipped.BBox())
	require.Zero(t, clipped.Peaks().Len(), "the mapped peak lands outside")

	// Without doClip the footprint keeps pixels beyond the region.
	free := fp.Transform(offsetTransform{dx: 98, dy: 0}, region, false)
	require.Equal(t, box(98, 0, 102, 4), free.BBox())
	require.Equal(t, fp.Area(), free.Area())
	require.Equal(t, 1, free.Peaks().Len())
}

func TestMergeFootprints(t *testing.T) {
	a := NewFootprintFromBox(box(0, 0, 3, 3), box(0, 0, 9, 9))
	a.AddPeak(1, 1, 10)
	b := NewFootprintFromBox(box(2, 2, 5, 5), box(0, 0, 19, 19))
	b.AddPeak(4, 4, 30)

	m, err := MergeFootprints(a, b)
	require.NoError(t, err)

	require.Equal(t, box(0, 0, 5, 5), m.BBox())
	require.Equal(t, 16+16-4, m.Area(), "the overlap is counted once")
	require.Equal(t, box(0, 0, 19, 19), m.Region())

	require.Equal(t, 2, m.Peaks().Len())
	require.Equal(t, float32(30), m.Peaks().PeakAt(0).GetPeakValue(),
		"peaks come out sorted by decreasing value")

	// The merged peaks are copies.
	m.Peaks().PeakAt(0).SetPeakValue(1)
	require.Equal(t, float32(30), b.Peaks().PeakAt(0).GetPeakValue())
}
