package detection

import (
	"fmt"

	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/geom"
	"github.com/lumensky/starcat/image"
)

// ModifySource selects what MakeHeavy does to the source image after
// copying a footprint's pixels out of it.
type ModifySource uint8

const (
	// ModifyNone leaves the source image untouched.
	ModifyNone ModifySource = iota
	// ModifySet clears the copied pixels to the control's sentinel values,
	// removing the source's footprint from the image.
	ModifySet
)

// HeavyFootprintCtrl configures HeavyFootprint construction.
type HeavyFootprintCtrl struct {
	Modify      ModifySource
	ImageVal    float32
	MaskVal     uint32
	VarianceVal float32
}

// HeavyFootprint is a footprint densified with the pixel values under its
// spans: three flat arrays (image, mask, variance) with one element per
// footprint pixel, in span order.
type HeavyFootprint struct {
	*Footprint

	image    []float32
	mask     []uint32
	variance []float32
}

// IsHeavy reports that this footprint carries pixel values.
func (h *HeavyFootprint) IsHeavy() bool { return true }

// ImageArray returns the flattened image pixels in span order.
func (h *HeavyFootprint) ImageArray() []float32 { return h.image }

// MaskArray returns the flattened mask pixels in span order.
func (h *HeavyFootprint) MaskArray() []uint32 { return h.mask }

// VarianceArray returns the flattened variance pixels in span order.
func (h *HeavyFootprint) VarianceArray() []float32 { return h.variance }

// NewHeavyFootprint creates a heavy footprint with zero-filled pixel
// arrays, to be filled by a persistence reader or by Insert's inverse.
func NewHeavyFootprint(fp *Footprint) *HeavyFootprint {
	n := fp.Area()

	return &HeavyFootprint{
		Footprint: fp,
		image:     make([]float32, n),
		mask:      make([]uint32, n),
		variance:  make([]float32, n),
	}
}

// SetArrays installs pixel arrays read back from persistent storage; each
// must have exactly one element per footprint pixel.
func (h *HeavyFootprint) SetArrays(img []float32, mask []uint32, variance []float32) error {
	n := h.Area()
	if len(img) != n || len(mask) != n || len(variance) != n {
		return fmt.Errorf("%w: pixel arrays (%d,%d,%d) do not match footprint area %d",
			errs.ErrArraySizeMismatch, len(img), len(mask), len(variance), n)
	}
	h.image = img
	h.mask = mask
	h.variance = variance

	return nil
}

// MakeHeavy densifies a footprint by copying the pixel values under its
// spans out of a masked image. The footprint must lie within the image
// bounds. With ctrl.Modify == ModifySet the copied pixels in the source are
// simultaneously reset to the control's sentinel values.
func MakeHeavy(fp *Footprint, mi *image.MaskedImage, ctrl HeavyFootprintCtrl) (*HeavyFootprint, error) {
	if !mi.BBox().ContainsBox(fp.BBox()) {
		return nil, fmt.Errorf("%w: footprint %s extends outside image %s",
			errs.ErrInvalidParameter, fp.BBox(), mi.BBox())
	}

	h := NewHeavyFootprint(fp)
	pos := 0
	for _, s := range fp.Spans().Spans() {
		imgRow := mi.Image().Row(s.Y, s.X0, s.X1)
		maskRow := mi.Mask().Row(s.Y, s.X0, s.X1)
		varRow := mi.Variance().Row(s.Y, s.X0, s.X1)

		copy(h.image[pos:], imgRow)
		copy(h.mask[pos:], maskRow)
		copy(h.variance[pos:], varRow)

		if ctrl.Modify == ModifySet {
			for i := range imgRow {
				imgRow[i] = ctrl.ImageVal
				maskRow[i] = ctrl.MaskVal
				varRow[i] = ctrl.VarianceVal
			}
		}
		pos += s.Width()
	}

	return h, nil
}

// Insert scatters the flattened pixel arrays back into a masked image at
// the spans' locations. Spans outside the target are skipped.
func (h *HeavyFootprint) Insert(mi *image.MaskedImage) {
	h.insertPlanes(mi.BBox(), func(s geom.Span, pos int) {
		copy(mi.Image().Row(s.Y, s.X0, s.X1), h.image[pos:pos+s.Width()])
		copy(mi.Mask().Row(s.Y, s.X0, s.X1), h.mask[pos:pos+s.Width()])
		copy(mi.Variance().Row(s.Y, s.X0, s.X1), h.variance[pos:pos+s.Width()])
	})
}

// InsertImage scatters only the image plane into a plain image.
func (h *HeavyFootprint) InsertImage(img *image.Image[float32]) {
	h.insertPlanes(img.BBox(), func(s geom.Span, pos int) {
		copy(img.Row(s.Y, s.X0, s.X1), h.image[pos:pos+s.Width()])
	})
}

func (h *HeavyFootprint) insertPlanes(bounds geom.Box2I, write func(s geom.Span, pos int)) {
	pos := 0
	for _, s := range h.Spans().Spans() {
		if bounds.Contains(geom.Point2I{X: s.X0, Y: s.Y}) &&
			bounds.Contains(geom.Point2I{X: s.X1, Y: s.Y}) {
			write(s, pos)
		}
		pos += s.Width()
	}
}

// Dot computes the inner product of the image pixels the two heavy
// footprints have in common, walking both normalized span lists in
// lockstep. Mask and variance are ignored.
func (h *HeavyFootprint) Dot(other *HeavyFootprint) float64 {
	aSpans := h.Spans().Spans()
	bSpans := other.Spans().Spans()

	var sum float64
	aPos, bPos := 0, 0
	ai, bi := 0, 0
	for ai < len(aSpans) && bi < len(bSpans) {
		a, b := aSpans[ai], bSpans[bi]
		switch {
		case a.Y < b.Y || (a.Y == b.Y && a.X1 < b.X0):
			aPos += a.Width()
			ai++
		case b.Y < a.Y || (b.Y == a.Y && b.X1 < a.X0):
			bPos += b.Width()
			bi++
		default:
			// Overlapping runs on one row.
			x0 := max(a.X0, b.X0)
			x1 := min(a.X1, b.X1)
			aOff := aPos + x0 - a.X0
			bOff := bPos + x0 - b.X0
			for i := 0; i <= x1-x0; i++ {
				sum += float64(h.image[aOff+i]) * float64(other.image[bOff+i])
			}
			// Advance whichever span ends first.
			if a.X1 <= b.X1 {
				aPos += a.Width()
				ai++
			}
			if b.X1 <= a.X1 {
				bPos += b.Width()
				bi++
			}
		}
	}

	return sum
}

// MergeHeavy merges two heavy footprints by scattering each into its own
// scratch plane covering the union of their bounds, summing the image and
// variance planes, oring the masks, and re-densifying over the merged spans.
// Pixels both footprints cover hold the sum of the two values.
func MergeHeavy(a, b *HeavyFootprint) (*HeavyFootprint, error) {
	merged, err := MergeFootprints(a.Footprint, b.Footprint)
	if err != nil {
		return nil, err
	}

	bbox := a.BBox().IncludeBox(b.BBox())
	scratchA := image.NewMaskedImage(bbox)
	scratchB := image.NewMaskedImage(bbox)
	a.Insert(scratchA)
	b.Insert(scratchB)

	scratchA.Image().AddEq(scratchB.Image())
	scratchA.Variance().AddEq(scratchB.Variance())
	image.OrEq(scratchA.Mask().Image, scratchB.Mask().Image)

	return MakeHeavy(merged, scratchA, HeavyFootprintCtrl{})
}
