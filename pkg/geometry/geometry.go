// Package geometry implements the tagged geometry variant used throughout
// the indexer and query engine: points, axis-aligned boxes, and polygons,
// each exposing an envelope and an intersects-rectangle predicate.
package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Kind tags a Geometry's underlying shape.
type Kind int

const (
	KindPoint Kind = iota
	KindBox
	KindPolygon
)

// String renders the kind the way master-table rows spell it (§6).
func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "POINT"
	case KindBox:
		return "BOX"
	case KindPolygon:
		return "POLYGON"
	default:
		return "UNKNOWN"
	}
}

// Extension returns the partition-file suffix for the kind.
func (k Kind) Extension() string {
	if k == KindPolygon {
		return ".wkt"
	}
	return ".csv"
}

// ParseKind maps a master-table GeometryType column back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "POINT":
		return KindPoint, nil
	case "BOX":
		return KindBox, nil
	case "POLYGON":
		return KindPolygon, nil
	default:
		return 0, fmt.Errorf("geometry: unknown kind %q", s)
	}
}

// Geometry is one Point, Box, or Polygon. Exactly one of the typed fields is
// populated, selected by Kind — a closed tagged union rather than an
// interface, since every consumer needs the kind before it can do anything
// useful with the payload.
type Geometry struct {
	Kind    Kind
	Point   orb.Point
	Box     orb.Bound
	Polygon orb.Polygon
	WKT     string // original WKT text for Polygon, preserved for re-emission
}

// NewPoint builds a Point geometry.
func NewPoint(x, y float64) Geometry {
	return Geometry{Kind: KindPoint, Point: orb.Point{x, y}}
}

// NewBox builds a Box geometry. Callers must ensure xmin<=xmax, ymin<=ymax.
func NewBox(xmin, ymin, xmax, ymax float64) Geometry {
	return Geometry{Kind: KindBox, Box: orb.Bound{
		Min: orb.Point{xmin, ymin},
		Max: orb.Point{xmax, ymax},
	}}
}

// NewPolygon builds a Polygon geometry from its WKT text and parsed ring.
func NewPolygon(wkt string, poly orb.Polygon) Geometry {
	return Geometry{Kind: KindPolygon, Polygon: poly, WKT: wkt}
}

// Envelope returns the axis-aligned bounding rectangle of g. For points the
// envelope is degenerate (xmin=xmax, ymin=ymax).
func (g Geometry) Envelope() orb.Bound {
	switch g.Kind {
	case KindPoint:
		return orb.Bound{Min: g.Point, Max: g.Point}
	case KindBox:
		return g.Box
	case KindPolygon:
		return g.Polygon.Bound()
	default:
		return orb.Bound{}
	}
}

// Centroid returns the geometric center of g's envelope. Used by the
// per-partition loader's containment-or-centroid re-filter (§4.G, §9).
func (g Geometry) Centroid() orb.Point {
	env := g.Envelope()
	return orb.Point{
		(env.Min[0] + env.Max[0]) / 2,
		(env.Min[1] + env.Max[1]) / 2,
	}
}
