package image

import (
	"fmt"

	"github.com/lumensky/starcat/errs"
	"github.com/lumensky/starcat/geom"
)

// Pixel is the set of element types an Image can hold.
type Pixel interface {
	~uint16 | ~uint32 | ~int32 | ~float32 | ~float64
}

// Image is a flat row-major pixel buffer anchored at an arbitrary origin.
//
// All coordinates are in the parent frame: an image whose bounding box is
// [(100,200), (109,209)] is addressed with x in [100,109] and y in
// [200,209]. Out-of-box access panics; callers iterate spans that they have
// already clipped to the image.
type Image[T Pixel] struct {
	bbox   geom.Box2I
	pixels []T
}

// NewImage allocates a zero-filled image covering bbox.
func NewImage[T Pixel](bbox geom.Box2I) *Image[T] {
	return &Image[T]{
		bbox:   bbox,
		pixels: make([]T, bbox.Area()),
	}
}

// NewImageWithValue allocates an image covering bbox with every pixel set
// to v.
func NewImageWithValue[T Pixel](bbox geom.Box2I, v T) *Image[T] {
	img := NewImage[T](bbox)
	img.Fill(v)

	return img
}

// BBox returns the image's bounding box in the parent frame.
func (img *Image[T]) BBox() geom.Box2I { return img.bbox }

// Width returns the number of pixel columns.
func (img *Image[T]) Width() int { return img.bbox.Width() }

// Height returns the number of pixel rows.
func (img *Image[T]) Height() int { return img.bbox.Height() }

func (img *Image[T]) index(x, y int) int {
	if !img.bbox.Contains(geom.Point2I{X: x, Y: y}) {
		panic(fmt.Sprintf("image: pixel (%d,%d) outside %s", x, y, img.bbox))
	}

	return (y-img.bbox.Min().Y)*img.bbox.Width() + (x - img.bbox.Min().X)
}

// At returns the pixel at parent-frame position (x, y).
func (img *Image[T]) At(x, y int) T { return img.pixels[img.index(x, y)] }

// Set stores v at parent-frame position (x, y).
func (img *Image[T]) Set(x, y int, v T) { img.pixels[img.index(x, y)] = v }

// Row returns the pixels of row y covering columns [x0, x1] inclusive, as a
// live slice into the buffer.
func (img *Image[T]) Row(y, x0, x1 int) []T {
	i0 := img.index(x0, y)
	i1 := img.index(x1, y)

	return img.pixels[i0 : i1+1 : i1+1]
}

// Fill sets every pixel to v.
func (img *Image[T]) Fill(v T) {
	for i := range img.pixels {
		img.pixels[i] = v
	}
}

// AddEq adds other's pixels into img over the overlap of the two bounding
// boxes. Disjoint images are a no-op.
func (img *Image[T]) AddEq(other *Image[T]) {
	ov := img.bbox.Clipped(other.bbox)
	if ov.IsEmpty() {
		return
	}
	for y := ov.Min().Y; y <= ov.Max().Y; y++ {
		dst := img.Row(y, ov.Min().X, ov.Max().X)
		src := other.Row(y, ov.Min().X, ov.Max().X)
		for i := range dst {
			dst[i] += src[i]
		}
	}
}

// OrEq ors other's pixels into img over the overlap of the two bounding
// boxes; used for bit-plane masks.
func OrEq[T ~uint16 | ~uint32](img, other *Image[T]) {
	ov := img.BBox().Clipped(other.BBox())
	if ov.IsEmpty() {
		return
	}
	for y := ov.Min().Y; y <= ov.Max().Y; y++ {
		dst := img.Row(y, ov.Min().X, ov.Max().X)
		src := other.Row(y, ov.Min().X, ov.Max().X)
		for i := range dst {
			dst[i] |= src[i]
		}
	}
}

// Clone returns a deep copy.
func (img *Image[T]) Clone() *Image[T] {
	cp := NewImage[T](img.bbox)
	copy(cp.pixels, img.pixels)

	return cp
}

// Mask is a bit-plane image whose planes are named through a shared
// MaskDict.
type Mask struct {
	*Image[uint32]
	dict *MaskDict
}

// NewMask allocates a cleared mask covering bbox, sharing the process-wide
// plane dictionary.
func NewMask(bbox geom.Box2I) *Mask {
	return &Mask{Image: NewImage[uint32](bbox), dict: DefaultMaskDict()}
}

// Dict returns the mask's plane dictionary.
func (m *Mask) Dict() *MaskDict { return m.dict }

// AddMaskPlane binds name in the mask's dictionary, following the
// dictionary's copy-on-write rules: a conflicting redefinition makes this
// mask diverge onto a private dictionary.
func (m *Mask) AddMaskPlane(name, doc string) (int, error) {
	d, bit, err := m.dict.Add(name, doc)
	if err != nil {
		return 0, err
	}
	m.dict = d

	return bit, nil
}

// PlaneBitMask returns the pixel bitmask of the named plane.
func (m *Mask) PlaneBitMask(name string) (uint32, error) {
	return m.dict.Bitmask(name)
}

// SetSpan ors bits into every pixel of row y, columns [x0, x1] inclusive.
func (m *Mask) SetSpan(y, x0, x1 int, bits uint32) {
	row := m.Row(y, x0, x1)
	for i := range row {
		row[i] |= bits
	}
}

// ClearPlane clears the named plane's bit across all pixels.
func (m *Mask) ClearPlane(name string) error {
	bits, err := m.dict.Bitmask(name)
	if err != nil {
		return err
	}
	b := m.BBox()
	for y := b.Min().Y; y <= b.Max().Y; y++ {
		row := m.Row(y, b.Min().X, b.Max().X)
		for i := range row {
			row[i] &^= bits
		}
	}

	return nil
}

// MaskedImage bundles an image with its mask and per-pixel variance. The
// three planes always cover the same bounding box.
type MaskedImage struct {
	image    *Image[float32]
	mask     *Mask
	variance *Image[float32]
}

// NewMaskedImage allocates a cleared masked image covering bbox.
func NewMaskedImage(bbox geom.Box2I) *MaskedImage {
	return &MaskedImage{
		image:    NewImage[float32](bbox),
		mask:     NewMask(bbox),
		variance: NewImage[float32](bbox),
	}
}

// NewMaskedImageFrom bundles existing planes; they must share one bounding
// box.
func NewMaskedImageFrom(img *Image[float32], mask *Mask, variance *Image[float32]) (*MaskedImage, error) {
	if img.BBox() != mask.BBox() || img.BBox() != variance.BBox() {
		return nil, fmt.Errorf("%w: image, mask and variance cover different boxes",
			errs.ErrInvalidParameter)
	}

	return &MaskedImage{image: img, mask: mask, variance: variance}, nil
}

// BBox returns the common bounding box of the three planes.
func (mi *MaskedImage) BBox() geom.Box2I { return mi.image.BBox() }

// Image returns the science pixel plane.
func (mi *MaskedImage) Image() *Image[float32] { return mi.image }

// Mask returns the mask plane.
func (mi *MaskedImage) Mask() *Mask { return mi.mask }

// Variance returns the variance plane.
func (mi *MaskedImage) Variance() *Image[float32] { return mi.variance }
