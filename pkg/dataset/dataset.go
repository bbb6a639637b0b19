// Package dataset loads a dataset file into an in-memory geometry table,
// inferring its kind from the file extension and column count (§4.B).
package dataset

import (
	"github.com/paulmach/orb"
	"github.com/smigliorini/spatialidx/pkg/geometry"
)

// Dataset is an ordered collection of geometries of a single kind, plus the
// dataset's total envelope (§3).
type Dataset struct {
	Path       string
	Kind       geometry.Kind
	Geometries []geometry.Geometry
	Envelope   orb.Bound
	ByteSize   int64 // source file size, used by the "bytes" sizing mode
}

// Count returns the number of geometries loaded.
func (d *Dataset) Count() int { return len(d.Geometries) }

// envelopeOf computes the bounding rectangle of a set of geometries. An
// empty set yields the zero Bound.
func envelopeOf(geoms []geometry.Geometry) orb.Bound {
	if len(geoms) == 0 {
		return orb.Bound{}
	}
	env := geoms[0].Envelope()
	for _, g := range geoms[1:] {
		env = env.Union(g.Envelope())
	}
	return env
}
