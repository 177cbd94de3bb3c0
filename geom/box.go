package geom

import "fmt"

// Box2I is an integer bounding box with inclusive minimum and maximum corners.
//
// An empty box (EmptyBox2I) contains no points and is the identity for
// Include and the absorbing element for Clipped.
type Box2I struct {
	min   Point2I
	max   Point2I
	empty bool
}

// EmptyBox2I returns an empty box.
func EmptyBox2I() Box2I {
	return Box2I{empty: true}
}

// NewBox2I creates a box from inclusive minimum and maximum corners.
// If max is less than min on either axis the box is empty.
func NewBox2I(min, max Point2I) Box2I {
	if max.X < min.X || max.Y < min.Y {
		return EmptyBox2I()
	}

	return Box2I{min: min, max: max}
}

// NewBox2IFromDims creates a box from a minimum corner and dimensions.
// Non-positive dimensions yield an empty box.
func NewBox2IFromDims(min Point2I, dims Extent2I) Box2I {
	if dims.X <= 0 || dims.Y <= 0 {
		return EmptyBox2I()
	}

	return Box2I{min: min, max: Point2I{X: min.X + dims.X - 1, Y: min.Y + dims.Y - 1}}
}

// IsEmpty reports whether the box contains no points.
func (b Box2I) IsEmpty() bool { return b.empty }

// Min returns the inclusive minimum corner. Undefined for empty boxes.
func (b Box2I) Min() Point2I { return b.min }

// Max returns the inclusive maximum corner. Undefined for empty boxes.
func (b Box2I) Max() Point2I { return b.max }

// Width returns the number of columns covered by the box.
func (b Box2I) Width() int {
	if b.empty {
		return 0
	}

	return b.max.X - b.min.X + 1
}

// Height returns the number of rows covered by the box.
func (b Box2I) Height() int {
	if b.empty {
		return 0
	}

	return b.max.Y - b.min.Y + 1
}

// Area returns the number of pixels in the box.
func (b Box2I) Area() int {
	return b.Width() * b.Height()
}

// Contains reports whether the point lies inside the box.
func (b Box2I) Contains(p Point2I) bool {
	if b.empty {
		return false
	}

	return p.X >= b.min.X && p.X <= b.max.X && p.Y >= b.min.Y && p.Y <= b.max.Y
}

// ContainsBox reports whether other lies entirely inside the box.
// An empty other is contained by any box.
func (b Box2I) ContainsBox(other Box2I) bool {
	if other.empty {
		return true
	}
	if b.empty {
		return false
	}

	return b.Contains(other.min) && b.Contains(other.max)
}

// Clipped returns the intersection of the two boxes.
func (b Box2I) Clipped(other Box2I) Box2I {
	if b.empty || other.empty {
		return EmptyBox2I()
	}

	lo := Point2I{X: max(b.min.X, other.min.X), Y: max(b.min.Y, other.min.Y)}
	hi := Point2I{X: min(b.max.X, other.max.X), Y: min(b.max.Y, other.max.Y)}

	return NewBox2I(lo, hi)
}

// Include returns the smallest box containing both b and p.
func (b Box2I) Include(p Point2I) Box2I {
	if b.empty {
		return Box2I{min: p, max: p}
	}

	return Box2I{
		min: Point2I{X: min(b.min.X, p.X), Y: min(b.min.Y, p.Y)},
		max: Point2I{X: max(b.max.X, p.X), Y: max(b.max.Y, p.Y)},
	}
}

// IncludeBox returns the smallest box containing both boxes.
func (b Box2I) IncludeBox(other Box2I) Box2I {
	if other.empty {
		return b
	}
	if b.empty {
		return other
	}

	return b.Include(other.min).Include(other.max)
}

// Shifted returns the box translated by (dx, dy).
func (b Box2I) Shifted(dx, dy int) Box2I {
	if b.empty {
		return b
	}

	return Box2I{min: b.min.Shifted(dx, dy), max: b.max.Shifted(dx, dy)}
}


// String returns a compact textual form, useful in test failures.
func (b Box2I) String() string {
	if b.empty {
		return "Box2I(empty)"
	}

	return fmt.Sprintf("Box2I[(%d,%d)..(%d,%d)]", b.min.X, b.min.Y, b.max.X, b.max.Y)
}
