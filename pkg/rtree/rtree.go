// Package rtree implements a bulk-loaded R-tree over axis-aligned
// rectangles, built once via sort-tile-recursive packing and then queried
// for rectangle intersection (§4.F, §4.G). There is no incremental insert:
// every tree this package builds is throwaway for one batch job or one
// partition load, so packing for query performance beats the bookkeeping
// an insert-friendly structure would need.
package rtree

import (
	"sort"

	"github.com/paulmach/orb"
)

// Entry pairs an ordinal index (into whatever slice the caller is
// indexing — partitions, or geometries within one partition) with its
// envelope.
type Entry struct {
	Index int
	Bound orb.Bound
}

// node is an internal or leaf node of the packed tree.
type node struct {
	bound    orb.Bound
	entries  []Entry // populated on leaves only
	children []*node // populated on internal nodes only
}

func (n *node) leaf() bool { return n.children == nil }

// RTree is a read-only, bulk-loaded spatial index over rectangles.
type RTree struct {
	root  *node
	count int
}

// defaultFanout bounds how many children/entries a node holds before the
// packer starts a new one. 16 keeps tree depth shallow for the partition
// counts this index deals with (tens to low thousands per dataset).
const defaultFanout = 16

// Build bulk-loads entries into a packed R-tree. An empty entries slice
// yields a tree whose Query always returns nil.
func Build(entries []Entry) *RTree {
	if len(entries) == 0 {
		return &RTree{}
	}
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &RTree{root: packSTR(cp, defaultFanout), count: len(entries)}
}

// Count returns the number of entries the tree was built from.
func (t *RTree) Count() int { return t.count }

// Query returns the indices of every entry whose bound intersects rect.
func (t *RTree) Query(rect orb.Bound) []int {
	if t.root == nil {
		return nil
	}
	var out []int
	queryNode(t.root, rect, &out)
	return out
}

func queryNode(n *node, rect orb.Bound, out *[]int) {
	if !n.bound.Intersects(rect) {
		return
	}
	if n.leaf() {
		for _, e := range n.entries {
			if e.Bound.Intersects(rect) {
				*out = append(*out, e.Index)
			}
		}
		return
	}
	for _, c := range n.children {
		queryNode(c, rect, out)
	}
}

// packSTR packs entries into leaf nodes using the sort-tile-recursive
// method, then repeatedly packs the level above until one root remains.
func packSTR(entries []Entry, fanout int) *node {
	leaves := packLeaves(entries, fanout)
	level := leaves
	for len(level) > 1 {
		level = packLevel(level, fanout)
	}
	return level[0]
}

// packLeaves slices entries into vertical slabs of roughly sqrt(n/fanout)
// leaves each, sorts every slab by the Y midpoint, and cuts each slab into
// leaf nodes of at most fanout entries.
func packLeaves(entries []Entry, fanout int) []*node {
	n := len(entries)
	sort.Slice(entries, func(i, j int) bool {
		return midX(entries[i].Bound) < midX(entries[j].Bound)
	})

	numLeaves := (n + fanout - 1) / fanout
	numSlabs := isqrt(numLeaves)
	if numSlabs < 1 {
		numSlabs = 1
	}
	slabSize := (n + numSlabs - 1) / numSlabs

	var leaves []*node
	for s := 0; s < n; s += slabSize {
		end := s + slabSize
		if end > n {
			end = n
		}
		slab := entries[s:end]
		sort.Slice(slab, func(i, j int) bool {
			return midY(slab[i].Bound) < midY(slab[j].Bound)
		})
		for i := 0; i < len(slab); i += fanout {
			j := i + fanout
			if j > len(slab) {
				j = len(slab)
			}
			chunk := slab[i:j]
			leaves = append(leaves, newLeaf(chunk))
		}
	}
	return leaves
}

// packLevel groups nodes (leaves or internal nodes from a lower level)
// into parent nodes of at most fanout children, using the same STR
// slabbing over each node's bound.
func packLevel(nodes []*node, fanout int) []*node {
	n := len(nodes)
	sort.Slice(nodes, func(i, j int) bool {
		return midX(nodes[i].bound) < midX(nodes[j].bound)
	})

	numParents := (n + fanout - 1) / fanout
	numSlabs := isqrt(numParents)
	if numSlabs < 1 {
		numSlabs = 1
	}
	slabSize := (n + numSlabs - 1) / numSlabs

	var parents []*node
	for s := 0; s < n; s += slabSize {
		end := s + slabSize
		if end > n {
			end = n
		}
		slab := nodes[s:end]
		sort.Slice(slab, func(i, j int) bool {
			return midY(slab[i].bound) < midY(slab[j].bound)
		})
		for i := 0; i < len(slab); i += fanout {
			j := i + fanout
			if j > len(slab) {
				j = len(slab)
			}
			parents = append(parents, newInternal(slab[i:j]))
		}
	}
	return parents
}

func newLeaf(entries []Entry) *node {
	n := &node{entries: append([]Entry(nil), entries...)}
	n.bound = entries[0].Bound
	for _, e := range entries[1:] {
		n.bound = n.bound.Union(e.Bound)
	}
	return n
}

func newInternal(children []*node) *node {
	n := &node{children: append([]*node(nil), children...)}
	n.bound = children[0].bound
	for _, c := range children[1:] {
		n.bound = n.bound.Union(c.bound)
	}
	return n
}

func midX(b orb.Bound) float64 { return (b.Min[0] + b.Max[0]) / 2 }
func midY(b orb.Bound) float64 { return (b.Min[1] + b.Max[1]) / 2 }

// isqrt returns the integer square root, used to pick a roughly-square
// slab count during STR packing.
func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	r := 1
	for r*r < n {
		r++
	}
	if r*r > n && r > 1 {
		r--
	}
	return r
}
