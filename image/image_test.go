package image

import (
	"testing"

	"github.com/lumensky/starcat/geom"
	"github.com/stretchr/testify/require"
)

func boxForTest() geom.Box2I {
	return geom.NewBox2I(geom.Point2I{X: 10, Y: 20}, geom.Point2I{X: 19, Y: 29})
}

func TestImage_AtSet(t *testing.T) {
	img := NewImage[float32](boxForTest())

	require.Equal(t, float32(0), img.At(10, 20))
	img.Set(15, 25, 3.5)
	require.Equal(t, float32(3.5), img.At(15, 25))
	require.Equal(t, 10, img.Width())
	require.Equal(t, 10, img.Height())

	require.Panics(t, func() { img.At(9, 20) }, "outside the box on the left")
	require.Panics(t, func() { img.Set(10, 30, 1) }, "outside the box below")
}

func TestImage_Row(t *testing.T) {
	img := NewImage[int32](boxForTest())

	row := img.Row(22, 12, 15)
	require.Len(t, row, 4)
	row[0] = 7

	// Row returns a live view.
	require.Equal(t, int32(7), img.At(12, 22))
}

func TestImage_Fill(t *testing.T) {
	img := NewImageWithValue(boxForTest(), float64(1.5))
	require.Equal(t, 1.5, img.At(19, 29))
}

func TestImage_AddEq(t *testing.T) {
	a := NewImageWithValue(boxForTest(), float32(1))

	// Partially overlapping addend.
	bBox := geom.NewBox2I(geom.Point2I{X: 15, Y: 25}, geom.Point2I{X: 24, Y: 34})
	b := NewImageWithValue(bBox, float32(2))

	a.AddEq(b)
	require.Equal(t, float32(3), a.At(15, 25))
	require.Equal(t, float32(3), a.At(19, 29))
	require.Equal(t, float32(1), a.At(10, 20), "pixels outside the overlap are untouched")
}

func TestImage_Clone(t *testing.T) {
	img := NewImageWithValue(boxForTest(), float32(4))
	cp := img.Clone()
	cp.Set(10, 20, 9)

	require.Equal(t, float32(4), img.At(10, 20))
	require.Equal(t, float32(9), cp.At(10, 20))
}

func TestMask_SetSpanAndClearPlane(t *testing.T) {
	m := NewMask(boxForTest())
	bit, err := m.AddMaskPlane("SPANTEST", "")
	require.NoError(t, err)
	bits := uint32(1) << uint(bit)

	m.SetSpan(25, 12, 14, bits)
	require.Equal(t, bits, m.At(13, 25)&bits)
	require.Zero(t, m.At(15, 25)&bits)

	require.NoError(t, m.ClearPlane("SPANTEST"))
	require.Zero(t, m.At(13, 25)&bits)
}

func TestMaskedImage_Planes(t *testing.T) {
	mi := NewMaskedImage(boxForTest())

	require.Equal(t, boxForTest(), mi.BBox())
	mi.Image().Set(11, 21, 5)
	mi.Variance().Set(11, 21, 0.25)
	require.Equal(t, float32(5), mi.Image().At(11, 21))
	require.Equal(t, float32(0.25), mi.Variance().At(11, 21))

	// Mismatched plane boxes are rejected.
	other := geom.NewBox2I(geom.Point2I{X: 0, Y: 0}, geom.Point2I{X: 4, Y: 4})
	_, err := NewMaskedImageFrom(NewImage[float32](boxForTest()), NewMask(boxForTest()),
		NewImage[float32](other))
	require.Error(t, err)
}
