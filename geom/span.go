package geom

// Span is a contiguous run of pixels in one row, with inclusive column range
// [X0, X1].
type Span struct {
	Y  int
	X0 int
	X1 int
}

// NewSpan creates a span; callers must ensure X0 <= X1.
func NewSpan(y, x0, x1 int) Span {
	return Span{Y: y, X0: x0, X1: x1}
}

// Width returns the number of pixels in the span.
func (s Span) Width() int { return s.X1 - s.X0 + 1 }

// Contains reports whether the pixel (x, y) lies in the span.
func (s Span) Contains(x, y int) bool {
	return y == s.Y && x >= s.X0 && x <= s.X1
}

// Shifted returns the span translated by (dx, dy).
func (s Span) Shifted(dx, dy int) Span {
	return Span{Y: s.Y + dy, X0: s.X0 + dx, X1: s.X1 + dx}
}

// less orders spans by row, then by start column.
func (s Span) less(other Span) bool {
	if s.Y != other.Y {
		return s.Y < other.Y
	}
	if s.X0 != other.X0 {
		return s.X0 < other.X0
	}

	return s.X1 < other.X1
}
