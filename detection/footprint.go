// Package detection implements run-length footprints over masked images:
// arbitrary-shaped pixel regions with their detected peaks, and "heavy"
// footprints that additionally carry the pixel values themselves.
package detection

import (
	"fmt"

	"github.com/lumensky/starcat/geom"
	"github.com/lumensky/starcat/table"
)

// Footprint is a pixel region described by a normalized SpanSet, together
// with the catalog of peaks detected inside it and the bounding box of the
// exposure region it was detected on.
type Footprint struct {
	spans  *geom.SpanSet
	peaks  *table.PeakCatalog
	region geom.Box2I
}

// NewFootprint creates a footprint over the given spans. The region records
// the full exposure bounds the footprint was detected on; it may be empty.
func NewFootprint(spans *geom.SpanSet, region geom.Box2I) *Footprint {
	return &Footprint{
		spans:  spans,
		peaks:  table.NewMinimalPeakCatalog(),
		region: region,
	}
}

// NewFootprintFromBox creates a rectangular footprint.
func NewFootprintFromBox(box, region geom.Box2I) *Footprint {
	return NewFootprint(geom.SpanSetFromBox(box), region)
}

// NewFootprintWithPeakSchema creates an empty-span footprint whose peak
// catalog uses the given schema (which must contain the minimal peak
// schema). Used when reading persisted footprints.
func NewFootprintWithPeakSchema(spans *geom.SpanSet, region geom.Box2I, peakSchema *table.Schema) (*Footprint, error) {
	pc, err := table.NewPeakCatalog(peakSchema)
	if err != nil {
		return nil, err
	}

	return &Footprint{spans: spans, peaks: pc, region: region}, nil
}

// Spans returns the footprint's span set.
func (f *Footprint) Spans() *geom.SpanSet { return f.spans }

// SetSpans replaces the footprint's span set. Peaks are left untouched;
// callers shrinking the footprint should follow with RemoveOrphanPeaks.
func (f *Footprint) SetSpans(spans *geom.SpanSet) { f.spans = spans }

// Peaks returns the footprint's peak catalog.
func (f *Footprint) Peaks() *table.PeakCatalog { return f.peaks }

// Region returns the exposure region the footprint was detected on.
func (f *Footprint) Region() geom.Box2I { return f.region }

// SetRegion replaces the exposure region.
func (f *Footprint) SetRegion(region geom.Box2I) { f.region = region }

// Area returns the number of pixels covered by the footprint.
func (f *Footprint) Area() int { return f.spans.Area() }

// BBox returns the tight bounding box of the footprint's spans.
func (f *Footprint) BBox() geom.Box2I { return f.spans.BBox() }

// Contains reports whether the pixel lies inside the footprint.
func (f *Footprint) Contains(p geom.Point2I) bool { return f.spans.Contains(p) }

// IsHeavy reports whether the footprint carries pixel values.
func (f *Footprint) IsHeavy() bool { return false }

// AddPeak appends a peak at floating-point position (fx, fy) with the given
// value. The integer position is the containing pixel (truncation toward
// negative infinity).
func (f *Footprint) AddPeak(fx, fy float32, value float32) table.PeakRecord {
	peak := f.peaks.AddNew()
	peak.SetFx(fx)
	peak.SetFy(fy)
	peak.SetIx(floorInt(fx))
	peak.SetIy(floorInt(fy))
	peak.SetPeakValue(value)

	return peak
}

func floorInt(v float32) int {
	i := int(v)
	if float32(i) > v {
		i--
	}

	return i
}

// SortPeaks sorts the peak catalog in decreasing order of the given key; an
// invalid key sorts by decreasing peak value.
func (f *Footprint) SortPeaks(k table.Key) {
	if !k.IsValid() {
		k = table.PeakValueKey()
	}
	f.peaks.SortBy(func(a, b *table.Record) bool {
		return a.GetF32(k) > b.GetF32(k)
	})
}

// RemoveOrphanPeaks drops peaks whose integer position no longer lies
// inside the footprint's spans.
func (f *Footprint) RemoveOrphanPeaks() {
	for i := f.peaks.Len() - 1; i >= 0; i-- {
		p := f.peaks.PeakAt(i)
		if !f.spans.Contains(geom.Point2I{X: p.GetIx(), Y: p.GetIy()}) {
			f.peaks.Erase(i)
		}
	}
}

// Shift translates the footprint, its peaks and its region by (dx, dy).
func (f *Footprint) Shift(dx, dy int) {
	f.spans = f.spans.ShiftedBy(dx, dy)
	f.region = f.region.Shifted(dx, dy)
	for i := 0; i < f.peaks.Len(); i++ {
		p := f.peaks.PeakAt(i)
		p.SetIx(p.GetIx() + dx)
		p.SetIy(p.GetIy() + dy)
		p.SetFx(p.GetFx() + float32(dx))
		p.SetFy(p.GetFy() + float32(dy))
	}
}

// ClipTo intersects the footprint with a box and prunes peaks that fall
// outside the clipped spans.
func (f *Footprint) ClipTo(box geom.Box2I) {
	f.spans = f.spans.ClippedTo(box)
	f.RemoveOrphanPeaks()
}

// Dilate grows the footprint by a stencil of the given radius. Peaks are
// unaffected; dilation never orphans them.
func (f *Footprint) Dilate(radius int, stencil geom.Stencil) {
	f.spans = f.spans.Dilated(radius, stencil)
}

// Erode shrinks the footprint by a stencil of the given radius and prunes
// orphaned peaks.
func (f *Footprint) Erode(radius int, stencil geom.Stencil) {
	f.spans = f.spans.Eroded(radius, stencil)
	f.RemoveOrphanPeaks()
}

// Transform maps the footprint through a coordinate transform into a new
// region. Peak positions are mapped with the forward transform; with doClip
// the result is clipped to the region.
func (f *Footprint) Transform(t geom.Transform, region geom.Box2I, doClip bool) *Footprint {
	out := &Footprint{
		spans:  f.spans.TransformedBy(t),
		peaks:  table.NewMinimalPeakCatalog(),
		region: region,
	}
	for i := 0; i < f.peaks.Len(); i++ {
		p := f.peaks.PeakAt(i)
		mapped := t.Forward(geom.Point2D{X: float64(p.GetFx()), Y: float64(p.GetFy())})
		np := out.AddPeak(float32(mapped.X), float32(mapped.Y), p.GetPeakValue())
		np.SetId(p.GetId())
	}
	if doClip {
		out.ClipTo(region)
	}

	return out
}

// MergeFootprints returns a footprint covering the union of a and b, with
// the peaks of both sorted by decreasing value. The peak catalogs must share
// one schema; the result's region is the union of the two regions.
func MergeFootprints(a, b *Footprint) (*Footprint, error) {
	merged, err := NewFootprintWithPeakSchema(
		a.spans.UnionWith(b.spans), a.region.IncludeBox(b.region), a.peaks.Schema())
	if err != nil {
		return nil, err
	}
	for _, src := range []*Footprint{a, b} {
		for i := 0; i < src.peaks.Len(); i++ {
			if _, err := merged.peaks.AppendDeep(src.peaks.At(i)); err != nil {
				return nil, fmt.Errorf("merge footprints: %w", err)
			}
		}
	}
	merged.SortPeaks(table.PeakValueKey())

	return merged, nil
}
