// Package geom provides the integer pixel geometry used by the table and
// detection layers: points, boxes, spans and span sets.
//
// A SpanSet is a run-length representation of an arbitrary pixel region. It is
// always kept normalized (rows ascending, spans within a row sorted and
// non-overlapping), which lets set algebra and pixel extraction co-iterate two
// span lists in lockstep.
package geom

// Point2I is an integer pixel position.
type Point2I struct {
	X int
	Y int
}

// Point2D is a continuous (sub-pixel) position.
type Point2D struct {
	X float64
	Y float64
}

// Extent2I is an integer width/height pair.
type Extent2I struct {
	X int
	Y int
}

// Shifted returns the point translated by (dx, dy).
func (p Point2I) Shifted(dx, dy int) Point2I {
	return Point2I{X: p.X + dx, Y: p.Y + dy}
}
