package detection

import (
	"testing"

	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/geom"
	"github.com/lumensky/starcat/image"
	"github.com/stretchr/testify/require"
)

// rampImage fills a masked image so every pixel value encodes its position.
func rampImage(b geom.Box2I) *image.MaskedImage {
	mi := image.NewMaskedImage(b)
	for y := b.Min().Y; y <= b.Max().Y; y++ {
		for x := b.Min().X; x <= b.Max().X; x++ {
			mi.Image().Set(x, y, float32(100*y+x))
			mi.Mask().Set(x, y, uint32(1))
			mi.Variance().Set(x, y, 0.5)
		}
	}

	return mi
}

func TestMakeHeavy_CopiesSpanOrder(t *testing.T) {
	mi := rampImage(box(0, 0, 9, 9))
	fp := NewFootprint(geom.NewSpanSet(
		geom.NewSpan(2, 1, 3),
		geom.NewSpan(3, 0, 1),
	), mi.BBox())

	h, err := MakeHeavy(fp, mi, HeavyFootprintCtrl{})
	require.NoError(t, err)

	require.True(t, h.IsHeavy())
	require.Len(t, h.ImageArray(), fp.Area())
	require.Equal(t, []float32{201, 202, 203, 300, 301}, h.ImageArray())
	require.Equal(t, []uint32{1, 1, 1, 1, 1}, h.MaskArray())
	require.Equal(t, []float32{0.5, 0.5, 0.5, 0.5, 0.5}, h.VarianceArray())

	// The source image is untouched with ModifyNone.
	require.Equal(t, float32(202), mi.Image().At(2, 2))
}

func TestMakeHeavy_ModifySet(t *testing.T) {
	mi := rampImage(box(0, 0, 9, 9))
	fp := NewFootprintFromBox(box(2, 2, 3, 3), mi.BBox())

	ctrl := HeavyFootprintCtrl{Modify: ModifySet, ImageVal: -1, MaskVal: 8, VarianceVal: 0}
	h, err := MakeHeavy(fp, mi, ctrl)
	require.NoError(t, err)

	require.Equal(t, float32(202), h.ImageArray()[0], "the copy holds the original values")
	require.Equal(t, float32(-1), mi.Image().At(2, 2), "the source is cleared to the sentinel")
	require.Equal(t, uint32(8), mi.Mask().At(3, 3))
	require.Equal(t, float32(0), mi.Variance().At(2, 3))
	require.Equal(t, float32(104), mi.Image().At(4, 1), "outside pixels keep their values")
}

func TestMakeHeavy_OutsideImage(t *testing.T) {
	mi := rampImage(box(0, 0, 4, 4))
	fp := NewFootprintFromBox(box(3, 3, 6, 6), mi.BBox())

	_, err := MakeHeavy(fp, mi, HeavyFootprintCtrl{})
	require.ErrorIs(t, err, errs.ErrInvalidParameter)
}

func TestHeavyFootprint_InsertRoundTrip(t *testing.T) {
	mi := rampImage(box(0, 0, 9, 9))
	fp := NewFootprintFromBox(box(2, 2, 5, 5), mi.BBox())

	// Cut the footprint out, then paste it back.
	h, err := MakeHeavy(fp, mi, HeavyFootprintCtrl{Modify: ModifySet, ImageVal: 0})
	require.NoError(t, err)
	require.Equal(t, float32(0), mi.Image().At(3, 3))

	h.Insert(mi)
	require.Equal(t, float32(303), mi.Image().At(3, 3))
	require.Equal(t, uint32(1), mi.Mask().At(5, 5))
	require.Equal(t, float32(0.5), mi.Variance().At(2, 2))
}

func TestHeavyFootprint_InsertImage(t *testing.T) {
	mi := rampImage(box(0, 0, 9, 9))
	fp := NewFootprintFromBox(box(1, 1, 2, 2), mi.BBox())
	h, err := MakeHeavy(fp, mi, HeavyFootprintCtrl{})
	require.NoError(t, err)

	target := image.NewImage[float32](box(0, 0, 9, 9))
	h.InsertImage(target)
	require.Equal(t, float32(101), target.At(1, 1))
	require.Equal(t, float32(202), target.At(2, 2))
	require.Equal(t, float32(0), target.At(3, 3))
}

func TestHeavyFootprint_SetArrays(t *testing.T) {
	fp := NewFootprintFromBox(box(0, 0, 1, 1), geom.EmptyBox2I())
	h := NewHeavyFootprint(fp)

	err := h.SetArrays([]float32{1, 2, 3, 4}, []uint32{0, 0, 0, 0}, []float32{1, 1, 1, 1})
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, h.ImageArray())

	err = h.SetArrays([]float32{1}, []uint32{0}, []float32{1})
	require.ErrorIs(t, err, errs.ErrArraySizeMismatch)
}

func TestHeavyFootprint_Dot(t *testing.T) {
	mi := rampImage(box(0, 0, 9, 9))

	a, err := MakeHeavy(NewFootprintFromBox(box(0, 0, 3, 0), mi.BBox()), mi, HeavyFootprintCtrl{})
	require.NoError(t, err)
	b, err := MakeHeavy(NewFootprintFromBox(box(2, 0, 5, 0), mi.BBox()), mi, HeavyFootprintCtrl{})
	require.NoError(t, err)

	// Overlap is pixels x=2,3 on row 0: 2*2 + 3*3.
	require.Equal(t, float64(13), a.Dot(b))
	require.Equal(t, a.Dot(b), b.Dot(a))

	// Disjoint footprints have a zero dot product.
	c, err := MakeHeavy(NewFootprintFromBox(box(0, 5, 3, 5), mi.BBox()), mi, HeavyFootprintCtrl{})
	require.NoError(t, err)
	require.Zero(t, a.Dot(c))
}

func TestHeavyFootprint_DotMultiSpan(t *testing.T) {
	mi := image.NewMaskedImage(box(0, 0, 9, 9))
	for y := 0; y <= 9; y++ {
		for x := 0; x <= 9; x++ {
			mi.Image().Set(x, y, 1)
		}
	}

	a, err := MakeHeavy(NewFootprint(geom.NewSpanSet(
		geom.NewSpan(0, 0, 4),
		geom.NewSpan(1, 0, 4),
	), mi.BBox()), mi, HeavyFootprintCtrl{})
	require.NoError(t, err)
	b, err := MakeHeavy(NewFootprint(geom.NewSpanSet(
		geom.NewSpan(0, 3, 8),
		geom.NewSpan(2, 0, 4),
	), mi.BBox()), mi, HeavyFootprintCtrl{})
	require.NoError(t, err)

	// Only row 0 overlaps, on x=3,4 with unit pixels.
	require.Equal(t, float64(2), a.Dot(b))
}

func TestMergeHeavy(t *testing.T) {
	mi := rampImage(box(0, 0, 9, 9))

	a, err := MakeHeavy(NewFootprintFromBox(box(0, 0, 2, 0), mi.BBox()), mi, HeavyFootprintCtrl{})
	require.NoError(t, err)

	for x := 2; x <= 4; x++ {
		mi.Mask().Set(x, 0, uint32(2))
	}
	b, err := MakeHeavy(NewFootprintFromBox(box(2, 0, 4, 0), mi.BBox()), mi, HeavyFootprintCtrl{})
	require.NoError(t, err)

	m, err := MergeHeavy(a, b)
	require.NoError(t, err)

	require.Equal(t, 5, m.Area())
	require.Equal(t, []float32{0, 1, 4, 3, 4}, m.ImageArray(), "overlap pixels sum")
	require.Equal(t, []uint32{1, 1, 3, 2, 2}, m.MaskArray(), "overlap masks or together")
	require.Equal(t, []float32{0.5, 0.5, 1, 0.5, 0.5}, m.VarianceArray(), "overlap variances add")
}
