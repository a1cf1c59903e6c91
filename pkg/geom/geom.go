package geom

// Point is a position in page pixels.
type Point struct {
	X, Y float64
}

// Size is a width/height pair in page pixels.
type Size struct {
	Width, Height float64
}

// Rect is an axis-aligned rectangle in page pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// Origin returns the top-left corner of the rectangle.
func (r Rect) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// Contains reports whether the point lies inside the rectangle.
// The top and left edges are inclusive, the bottom and right exclusive.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}
