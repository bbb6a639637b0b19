package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
)

// IntersectsRect is true if g intersects rect. For Point and Box this is a
// pure envelope-vs-rect overlap test; for Polygon it additionally clips the
// ring to rect so that a polygon whose envelope overlaps rect but whose
// actual boundary does not is correctly excluded (§4.A).
func IntersectsRect(g Geometry, rect orb.Bound) bool {
	if !g.Envelope().Intersects(rect) {
		return false
	}
	if g.Kind != KindPolygon {
		return true
	}
	clipped := clip.Polygon(rect, g.Polygon)
	return len(clipped) > 0
}

// ContainsRect reports whether outer fully contains inner. Borders are
// inclusive: inner may touch or lie along outer's border.
func ContainsRect(outer, inner orb.Bound) bool {
	return outer.Contains(inner.Min) && outer.Contains(inner.Max)
}

// CoversRect is the same test as ContainsRect. Because ContainsRect already
// includes borders, a degenerate inner rectangle (a single point) lying on
// outer's border is covered.
func CoversRect(outer, inner orb.Bound) bool {
	return ContainsRect(outer, inner)
}

// CoversPoint reports whether rect covers p, including its border.
func CoversPoint(rect orb.Bound, p orb.Point) bool {
	return rect.Contains(p)
}

// Area returns the area of rect, 0 for a degenerate (zero-width or
// zero-height) rectangle.
func Area(rect orb.Bound) float64 {
	w := rect.Max[0] - rect.Min[0]
	h := rect.Max[1] - rect.Min[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// ClipArea returns the area of the intersection of a and b, 0 if disjoint.
func ClipArea(a, b orb.Bound) float64 {
	xmin := max(a.Min[0], b.Min[0])
	ymin := max(a.Min[1], b.Min[1])
	xmax := min(a.Max[0], b.Max[0])
	ymax := min(a.Max[1], b.Max[1])
	w := xmax - xmin
	h := ymax - ymin
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
