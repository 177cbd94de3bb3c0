package geom

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// SpanSet is a normalized, immutable run-length representation of a pixel
// region.
//
// Normalization invariant: spans are ordered by row then start column, and
// spans within a row neither overlap nor touch (touching runs are merged).
// Every operation below both requires and preserves this invariant, so
// algorithms such as HeavyFootprint.Dot can co-iterate two span sets and
// their flattened pixel arrays in lockstep.
type SpanSet struct {
	spans []Span
	bbox  Box2I
	area  int
}

// NewSpanSet creates a span set from the given spans, normalizing them.
// Spans with X1 < X0 are discarded.
func NewSpanSet(spans ...Span) *SpanSet {
	kept := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.X1 >= s.X0 {
			kept = append(kept, s)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].less(kept[j]) })

	// Merge overlapping or touching runs within each row.
	normalized := kept[:0]
	for _, s := range kept {
		if n := len(normalized); n > 0 {
			prev := &normalized[n-1]
			if prev.Y == s.Y && s.X0 <= prev.X1+1 {
				if s.X1 > prev.X1 {
					prev.X1 = s.X1
				}

				continue
			}
		}
		normalized = append(normalized, s)
	}

	ss := &SpanSet{spans: normalized}
	ss.recompute()

	return ss
}

// SpanSetFromBox returns the span set covering every pixel of the box.
func SpanSetFromBox(box Box2I) *SpanSet {
	if box.IsEmpty() {
		return NewSpanSet()
	}

	spans := make([]Span, 0, box.Height())
	for y := box.Min().Y; y <= box.Max().Y; y++ {
		spans = append(spans, Span{Y: y, X0: box.Min().X, X1: box.Max().X})
	}

	return &SpanSet{spans: spans, bbox: box, area: box.Area()}
}

func (ss *SpanSet) recompute() {
	ss.area = 0
	ss.bbox = EmptyBox2I()
	for _, s := range ss.spans {
		ss.area += s.Width()
		ss.bbox = ss.bbox.Include(Point2I{X: s.X0, Y: s.Y})
		ss.bbox = ss.bbox.Include(Point2I{X: s.X1, Y: s.Y})
	}
}

// Spans returns the normalized span list. The returned slice is shared;
// callers must not modify it.
func (ss *SpanSet) Spans() []Span { return ss.spans }

// Len returns the number of spans.
func (ss *SpanSet) Len() int { return len(ss.spans) }

// Area returns the total number of pixels covered.
func (ss *SpanSet) Area() int { return ss.area }

// BBox returns the tight bounding box of the set.
func (ss *SpanSet) BBox() Box2I { return ss.bbox }

// IsEmpty reports whether the set covers no pixels.
func (ss *SpanSet) IsEmpty() bool { return len(ss.spans) == 0 }

// Contains reports whether the pixel lies in the set.
//
// Runs in O(log n) over the span list.
func (ss *SpanSet) Contains(p Point2I) bool {
	idx := sort.Search(len(ss.spans), func(i int) bool {
		s := ss.spans[i]

		return s.Y > p.Y || (s.Y == p.Y && s.X0 > p.X)
	})
	if idx == 0 {
		return false
	}

	return ss.spans[idx-1].Contains(p.X, p.Y)
}

// ContainsSet reports whether every pixel of other lies in the set.
func (ss *SpanSet) ContainsSet(other *SpanSet) bool {
	return ss.IntersectWith(other).Area() == other.Area()
}

// Equal reports whether two span sets cover exactly the same pixels.
func (ss *SpanSet) Equal(other *SpanSet) bool {
	if len(ss.spans) != len(other.spans) {
		return false
	}
	for i, s := range ss.spans {
		if s != other.spans[i] {
			return false
		}
	}

	return true
}

// ShiftedBy returns the set translated by (dx, dy).
func (ss *SpanSet) ShiftedBy(dx, dy int) *SpanSet {
	spans := make([]Span, len(ss.spans))
	for i, s := range ss.spans {
		spans[i] = s.Shifted(dx, dy)
	}

	return &SpanSet{spans: spans, bbox: ss.bbox.Shifted(dx, dy), area: ss.area}
}

// ClippedTo returns the intersection of the set with the box.
func (ss *SpanSet) ClippedTo(box Box2I) *SpanSet {
	if box.IsEmpty() {
		return NewSpanSet()
	}

	spans := make([]Span, 0, len(ss.spans))
	for _, s := range ss.spans {
		if s.Y < box.Min().Y || s.Y > box.Max().Y {
			continue
		}
		x0 := max(s.X0, box.Min().X)
		x1 := min(s.X1, box.Max().X)
		if x0 <= x1 {
			spans = append(spans, Span{Y: s.Y, X0: x0, X1: x1})
		}
	}

	out := &SpanSet{spans: spans}
	out.recompute()

	return out
}

// UnionWith returns the union of the two sets.
func (ss *SpanSet) UnionWith(other *SpanSet) *SpanSet {
	merged := make([]Span, 0, len(ss.spans)+len(other.spans))
	merged = append(merged, ss.spans...)
	merged = append(merged, other.spans...)

	return NewSpanSet(merged...)
}

// IntersectWith returns the intersection of the two sets.
//
// Both operands are normalized, so the two span lists are merged row by row
// in a single pass.
func (ss *SpanSet) IntersectWith(other *SpanSet) *SpanSet {
	spans := make([]Span, 0, min(len(ss.spans), len(other.spans)))
	i, j := 0, 0
	for i < len(ss.spans) && j < len(other.spans) {
		a, b := ss.spans[i], other.spans[j]
		switch {
		case a.Y < b.Y:
			i++
		case a.Y > b.Y:
			j++
		default:
			x0 := max(a.X0, b.X0)
			x1 := min(a.X1, b.X1)
			if x0 <= x1 {
				spans = append(spans, Span{Y: a.Y, X0: x0, X1: x1})
			}
			if a.X1 <= b.X1 {
				i++
			} else {
				j++
			}
		}
	}

	out := &SpanSet{spans: spans}
	out.recompute()

	return out
}

// Dilated returns the morphological dilation of the set by the given stencil.
func (ss *SpanSet) Dilated(radius int, stencil Stencil) *SpanSet {
	return ss.DilatedBy(SpanSetFromStencil(radius, stencil))
}

// DilatedBy returns the dilation of the set by an arbitrary structuring
// element centered at the origin.
//
// The union of the set shifted by every pixel of a structuring-element span
// (y, x0..x1) collapses to a single span expansion, so the result is built
// span-by-span rather than pixel-by-pixel.
func (ss *SpanSet) DilatedBy(other *SpanSet) *SpanSet {
	if ss.IsEmpty() || other.IsEmpty() {
		return NewSpanSet()
	}

	spans := make([]Span, 0, len(ss.spans)*len(other.spans))
	for _, s := range ss.spans {
		for _, t := range other.spans {
			spans = append(spans, Span{Y: s.Y + t.Y, X0: s.X0 + t.X0, X1: s.X1 + t.X1})
		}
	}

	return NewSpanSet(spans...)
}

// Eroded returns the morphological erosion of the set by the given stencil.
func (ss *SpanSet) Eroded(radius int, stencil Stencil) *SpanSet {
	return ss.ErodedBy(SpanSetFromStencil(radius, stencil))
}

// ErodedBy returns the erosion of the set by an arbitrary structuring element
// centered at the origin: the pixels at which the entire shifted element fits
// inside the set.
func (ss *SpanSet) ErodedBy(other *SpanSet) *SpanSet {
	if ss.IsEmpty() || other.IsEmpty() {
		return NewSpanSet()
	}

	yMin := ss.bbox.Min().Y - other.bbox.Min().Y
	yMax := ss.bbox.Max().Y - other.bbox.Max().Y

	var spans []Span
	for y := yMin; y <= yMax; y++ {
		row := []Span{{Y: y, X0: math.MinInt32, X1: math.MaxInt32}}
		for _, t := range other.spans {
			// A center x is admissible for element span t iff the source row
			// y+t.Y contains [x+t.X0, x+t.X1]; shrinking each source interval
			// gives the admissible centers, and the final row is the
			// intersection over all element spans.
			shrunk := make([]Span, 0, 4)
			for _, src := range ss.rowSpans(y + t.Y) {
				x0 := src.X0 - t.X0
				x1 := src.X1 - t.X1
				if x0 <= x1 {
					shrunk = append(shrunk, Span{Y: y, X0: x0, X1: x1})
				}
			}
			row = intersectRows(row, shrunk)
			if len(row) == 0 {
				break
			}
		}
		spans = append(spans, row...)
	}

	return NewSpanSet(spans...)
}

// rowSpans returns the spans of the given row.
func (ss *SpanSet) rowSpans(y int) []Span {
	lo := sort.Search(len(ss.spans), func(i int) bool { return ss.spans[i].Y >= y })
	hi := lo
	for hi < len(ss.spans) && ss.spans[hi].Y == y {
		hi++
	}

	return ss.spans[lo:hi]
}

// intersectRows intersects two sorted interval lists belonging to one row.
func intersectRows(a, b []Span) []Span {
	out := make([]Span, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		x0 := max(a[i].X0, b[j].X0)
		x1 := min(a[i].X1, b[j].X1)
		if x0 <= x1 {
			out = append(out, Span{Y: a[i].Y, X0: x0, X1: x1})
		}
		if a[i].X1 <= b[j].X1 {
			i++
		} else {
			j++
		}
	}

	return out
}

// Transform maps continuous positions between two pixel coordinate systems.
// Forward maps source positions to target positions; Inverse is its inverse.
//
// WCS projection math is out of scope for this library; callers compose a
// Transform from their coordinate machinery (e.g. a pair of WCS solutions)
// and pass it in.
type Transform interface {
	Forward(Point2D) Point2D
	Inverse(Point2D) Point2D
}

// TransformedBy returns the span set remapped through t.
//
// The forward-mapped bounding box of the source spans is scanned pixel by
// pixel; a target pixel is included when its center maps back (through
// t.Inverse) into the source set: exact on pixel centers, conservative at
// edges. The result is not clipped; callers clip when they need to.
func (ss *SpanSet) TransformedBy(t Transform) *SpanSet {
	if ss.IsEmpty() {
		return NewSpanSet()
	}

	corners := []Point2D{
		{X: float64(ss.bbox.Min().X), Y: float64(ss.bbox.Min().Y)},
		{X: float64(ss.bbox.Max().X), Y: float64(ss.bbox.Min().Y)},
		{X: float64(ss.bbox.Min().X), Y: float64(ss.bbox.Max().Y)},
		{X: float64(ss.bbox.Max().X), Y: float64(ss.bbox.Max().Y)},
	}
	scan := EmptyBox2I()
	for _, c := range corners {
		p := t.Forward(c)
		scan = scan.Include(Point2I{X: int(math.Floor(p.X)), Y: int(math.Floor(p.Y))})
		scan = scan.Include(Point2I{X: int(math.Ceil(p.X)), Y: int(math.Ceil(p.Y))})
	}
	if scan.IsEmpty() {
		return NewSpanSet()
	}

	var spans []Span
	for y := scan.Min().Y; y <= scan.Max().Y; y++ {
		x0 := 0
		inSpan := false
		for x := scan.Min().X; x <= scan.Max().X; x++ {
			src := t.Inverse(Point2D{X: float64(x), Y: float64(y)})
			inside := ss.Contains(Point2I{X: int(math.Round(src.X)), Y: int(math.Round(src.Y))})
			if inside && !inSpan {
				x0 = x
				inSpan = true
			} else if !inside && inSpan {
				spans = append(spans, Span{Y: y, X0: x0, X1: x - 1})
				inSpan = false
			}
		}
		if inSpan {
			spans = append(spans, Span{Y: y, X0: x0, X1: scan.Max().X})
		}
	}

	return NewSpanSet(spans...)
}

// String returns a compact textual form, useful in test failures.
func (ss *SpanSet) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, s := range ss.spans {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "(%d: %d..%d)", s.Y, s.X0, s.X1)
	}
	sb.WriteByte('}')

	return sb.String()
}
