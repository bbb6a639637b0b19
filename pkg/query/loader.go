// Package query implements the range-query engine: loading one candidate
// partition and re-filtering its contents (§4.G), then fanning a query out
// across the candidate set (§4.H).
package query

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/smigliorini/spatialidx/pkg/geometry"
	"github.com/smigliorini/spatialidx/pkg/mastertable"
	"github.com/smigliorini/spatialidx/pkg/rtree"
	"github.com/smigliorini/spatialidx/pkg/spatialerr"
)

// LoadResult is what LoadPartition returns: the kept geometries, a
// per-partition R-tree over their envelopes, and the kept count (which
// doubles as the query executor's mbr_tests contribution for this
// partition, §4.H).
type LoadResult struct {
	Geometries []geometry.Geometry
	RTree      *rtree.RTree
	KeptCount  int
}

// LoadPartition reads entry's partition file, parses its geometries per
// kind, and re-filters against entry.Bounds (§4.G):
//   - Point: kept if it lies inside or on bounds.
//   - Box/Polygon: kept if fully contained in bounds, or if its centroid is
//     covered by bounds AND entry is the smallest-ID partition (among all)
//     covering that centroid. The centroid fallback exists because
//     border-duplication (§4.A) can place the same geometry in more than
//     one leaf; the tie-break makes exactly one partition its owner.
//
// allPartitions must include entry itself; it is used only for the
// centroid tie-break and is not otherwise read.
func LoadPartition(entry mastertable.Entry, kind geometry.Kind, allPartitions []mastertable.Entry) (*LoadResult, error) {
	geoms, err := readPartitionFile(entry.FilePath, kind)
	if err != nil {
		return nil, spatialerr.New(spatialerr.PartitionLoadError, entry.FilePath, err)
	}

	var kept []geometry.Geometry
	for _, g := range geoms {
		if kind == geometry.KindPoint {
			if geometry.CoversPoint(entry.Bounds, g.Point) {
				kept = append(kept, g)
			}
			continue
		}
		env := g.Envelope()
		if geometry.ContainsRect(entry.Bounds, env) {
			kept = append(kept, g)
			continue
		}
		centroid := g.Centroid()
		if geometry.CoversPoint(entry.Bounds, centroid) && isCentroidOwner(entry.ID, centroid, allPartitions) {
			kept = append(kept, g)
		}
	}

	entries := make([]rtree.Entry, len(kept))
	for i, g := range kept {
		entries[i] = rtree.Entry{Index: i, Bound: g.Envelope()}
	}

	return &LoadResult{
		Geometries: kept,
		RTree:      rtree.Build(entries),
		KeptCount:  len(kept),
	}, nil
}

// isCentroidOwner reports whether no partition with a smaller ID than id
// also covers centroid.
func isCentroidOwner(id int, centroid orb.Point, all []mastertable.Entry) bool {
	for _, p := range all {
		if p.ID < id && geometry.CoversPoint(p.Bounds, centroid) {
			return false
		}
	}
	return true
}

// readPartitionFile parses a partition file of the given kind, in the same
// formats the dataset reader accepts (§6): comma-separated Point/Box CSV
// with no header, or one WKT polygon per line.
func readPartitionFile(path string, kind geometry.Kind) ([]geometry.Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if kind == geometry.KindPolygon {
		return readPartitionWKT(f)
	}
	return readPartitionCSV(f, kind)
}

func readPartitionWKT(r io.Reader) ([]geometry.Geometry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var geoms []geometry.Geometry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		g, err := wkt.Unmarshal(line)
		poly, ok := g.(orb.Polygon)
		if err != nil || !ok {
			continue
		}
		geoms = append(geoms, geometry.NewPolygon(line, poly))
	}
	return geoms, scanner.Err()
}

func readPartitionCSV(r io.Reader, kind geometry.Kind) ([]geometry.Geometry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var geoms []geometry.Geometry
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		if kind == geometry.KindPoint && len(record) >= 2 {
			x, errX := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
			y, errY := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
			if errX == nil && errY == nil {
				geoms = append(geoms, geometry.NewPoint(x, y))
			}
			continue
		}
		if kind == geometry.KindBox && len(record) >= 4 {
			vals := make([]float64, 4)
			ok := true
			for i := 0; i < 4; i++ {
				v, perr := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
				if perr != nil {
					ok = false
					break
				}
				vals[i] = v
			}
			if ok && vals[0] <= vals[2] && vals[1] <= vals[3] {
				geoms = append(geoms, geometry.NewBox(vals[0], vals[1], vals[2], vals[3]))
			}
		}
	}
	return geoms, nil
}
