// Package quadtree implements the level-by-level breadth-first subdivision
// that turns one in-memory dataset into a set of partition files plus a
// master-table manifest (§4.D). A node is classified against the capacity
// and area-floor rules every level; once a node qualifies as a leaf it is
// buffered for write-out rather than written immediately, bounding peak
// open-file-handle churn at the flush threshold.
package quadtree

import (
	"fmt"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/smigliorini/spatialidx/pkg/dataset"
	"github.com/smigliorini/spatialidx/pkg/geometry"
	"github.com/smigliorini/spatialidx/pkg/mastertable"
	"github.com/smigliorini/spatialidx/pkg/observability"
)

// LeafReason records which termination rule produced a leaf, for logging
// and tests (§4.D).
type LeafReason string

const (
	ReasonCapacity  LeafReason = "capacity"
	ReasonAreaFloor LeafReason = "area_floor"
	ReasonDegenerate LeafReason = "degenerate_split"
	ReasonNonProgress LeafReason = "non_progress"
)

// workNode is one node awaiting classification during the BFS.
type workNode struct {
	envelope   orb.Bound
	geometries []geometry.Geometry
}

// leaf is a terminal node buffered for write-out.
type leaf struct {
	envelope   orb.Bound
	geometries []geometry.Geometry
	reason     LeafReason
}

// Options configures one quadtree build.
type Options struct {
	Kind           geometry.Kind
	OutDir         string // directory partition files and master_table.csv are written to
	NumGeoms       int    // target geometries per leaf, from the partition planner
	AreaMin        float64
	FlushThreshold int // leaves buffered before a write-out flush; 0 uses the design default (8)
	Log            *observability.Logger
}

// Result summarizes one completed build.
type Result struct {
	MasterTablePath string
	Rows            []mastertable.Row
	LeavesByReason  map[LeafReason]int
}

// Build subdivides ds.Geometries per opts and writes partition files plus
// master_table.csv into opts.OutDir.
func Build(ds *dataset.Dataset, opts Options) (*Result, error) {
	log := opts.Log
	if log == nil {
		log = observability.Default()
	}
	flushThreshold := opts.FlushThreshold
	if flushThreshold < 1 {
		flushThreshold = 8
	}

	level := []workNode{{envelope: ds.Envelope, geometries: ds.Geometries}}

	var buffer []leaf
	var rows []mastertable.Row
	byReason := make(map[LeafReason]int)
	nextID := 0

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		flushed, newID, err := flushLeaves(buffer, opts, nextID, log)
		if err != nil {
			return err
		}
		rows = append(rows, flushed...)
		nextID = newID
		buffer = buffer[:0]
		return nil
	}

	for len(level) > 0 {
		var next []workNode
		for _, n := range level {
			lf, children, reason := classify(n, opts.NumGeoms, opts.AreaMin)
			if lf != nil {
				byReason[reason]++
				buffer = append(buffer, *lf)
				if len(buffer) >= flushThreshold {
					if err := flush(); err != nil {
						return nil, err
					}
				}
				continue
			}
			next = append(next, children...)
		}
		level = next
	}

	if err := flush(); err != nil {
		return nil, err
	}

	masterPath := filepath.Join(opts.OutDir, "master_table.csv")
	if err := mastertable.WriteFile(masterPath, rows); err != nil {
		return nil, err
	}

	return &Result{MasterTablePath: masterPath, Rows: rows, LeavesByReason: byReason}, nil
}

// classify applies the four-way leaf test from §4.D to one node. It
// returns either a populated leaf (nil children) or a nil leaf plus the
// node's non-empty children for the next BFS level.
func classify(n workNode, numGeoms int, areaMin float64) (*leaf, []workNode, LeafReason) {
	if len(n.geometries) <= numGeoms {
		return &leaf{envelope: n.envelope, geometries: n.geometries, reason: ReasonCapacity}, nil, ReasonCapacity
	}
	if geometry.Area(n.envelope) <= areaMin {
		return &leaf{envelope: n.envelope, geometries: n.geometries, reason: ReasonAreaFloor}, nil, ReasonAreaFloor
	}

	quadrants := splitQuadrants(n.envelope)
	var children []workNode
	for _, q := range quadrants {
		var assigned []geometry.Geometry
		for _, g := range n.geometries {
			if geometry.IntersectsRect(g, q) {
				assigned = append(assigned, g)
			}
		}
		if len(assigned) > 0 {
			children = append(children, workNode{envelope: q, geometries: assigned})
		}
	}

	if len(children) == 0 {
		return &leaf{envelope: n.envelope, geometries: n.geometries, reason: ReasonDegenerate}, nil, ReasonDegenerate
	}

	allSame := true
	for _, c := range children {
		if len(c.geometries) != len(n.geometries) {
			allSame = false
			break
		}
	}
	if allSame {
		return &leaf{envelope: n.envelope, geometries: n.geometries, reason: ReasonNonProgress}, nil, ReasonNonProgress
	}

	return nil, children, ""
}

// splitQuadrants divides envelope at its midpoint into NE, NW, SW, SE.
func splitQuadrants(envelope orb.Bound) [4]orb.Bound {
	midX := (envelope.Min[0] + envelope.Max[0]) / 2
	midY := (envelope.Min[1] + envelope.Max[1]) / 2

	return [4]orb.Bound{
		{Min: orb.Point{midX, midY}, Max: envelope.Max},                     // NE
		{Min: orb.Point{envelope.Min[0], midY}, Max: orb.Point{midX, envelope.Max[1]}}, // NW
		{Min: envelope.Min, Max: orb.Point{midX, midY}},                     // SW
		{Min: orb.Point{midX, envelope.Min[1]}, Max: orb.Point{envelope.Max[0], midY}}, // SE
	}
}

// flushLeaves persists buffered leaves to partition files and returns their
// master-table rows plus the next available partition ID.
func flushLeaves(buffer []leaf, opts Options, nextID int, log *observability.Logger) ([]mastertable.Row, int, error) {
	var rows []mastertable.Row
	id := nextID
	for _, lf := range buffer {
		name := fmt.Sprintf("partition_%d%s", id, opts.Kind.Extension())
		path := filepath.Join(opts.OutDir, name)
		size, err := writePartitionFile(path, opts.Kind, lf.geometries)
		if err != nil {
			return nil, id, err
		}
		rows = append(rows, mastertable.Row{
			ID:       id,
			Name:     name,
			NumGeoms: len(lf.geometries),
			FileSize: size,
			Kind:     opts.Kind,
			Bounds:   lf.envelope,
		})
		log.Debug("flushed partition", observability.Fields{"partition": name, "reason": lf.reason, "count": len(lf.geometries)})
		id++
	}
	return rows, id, nil
}
