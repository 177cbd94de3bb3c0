package geom

import "math"

// Stencil selects the structuring element used by morphological dilation and
// erosion of span sets.
type Stencil uint8

const (
	// StencilCircle is a Euclidean disc of the given radius.
	StencilCircle Stencil = iota
	// StencilBox is a square of half-width equal to the radius.
	StencilBox
	// StencilManhattan is a diamond: |dx| + |dy| <= radius.
	StencilManhattan
)

func (s Stencil) String() string {
	switch s {
	case StencilCircle:
		return "Circle"
	case StencilBox:
		return "Box"
	case StencilManhattan:
		return "Manhattan"
	default:
		return "Unknown"
	}
}

// halfWidth returns the half-width of the stencil row at vertical offset dy,
// or -1 if the stencil has no pixels in that row.
func (s Stencil) halfWidth(radius, dy int) int {
	if dy < -radius || dy > radius {
		return -1
	}

	switch s {
	case StencilBox:
		return radius
	case StencilManhattan:
		return radius - abs(dy)
	default: // StencilCircle
		return int(math.Sqrt(float64(radius*radius - dy*dy)))
	}
}

// SpanSetFromStencil returns the span set of the stencil of the given radius
// centered at the origin.
func SpanSetFromStencil(radius int, stencil Stencil) *SpanSet {
	if radius < 0 {
		return NewSpanSet()
	}

	spans := make([]Span, 0, 2*radius+1)
	for dy := -radius; dy <= radius; dy++ {
		hw := stencil.halfWidth(radius, dy)
		if hw < 0 {
			continue
		}
		spans = append(spans, Span{Y: dy, X0: -hw, X1: hw})
	}

	return NewSpanSet(spans...)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
