package query

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/paulmach/orb"
	"github.com/smigliorini/spatialidx/pkg/geometry"
	"github.com/smigliorini/spatialidx/pkg/mastertable"
	"github.com/smigliorini/spatialidx/pkg/rtree"
)

func writePointsCSV(t *testing.T, dir, name string, pts [][2]float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var content string
	for _, p := range pts {
		content += strconv.FormatFloat(p[0], 'f', -1, 64) + "," + strconv.FormatFloat(p[1], 'f', -1, 64) + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func buildPartitionIndex(entries []mastertable.Entry) *rtree.RTree {
	rentries := make([]rtree.Entry, len(entries))
	for i, e := range entries {
		rentries[i] = rtree.Entry{Index: i, Bound: e.Bounds}
	}
	return rtree.Build(rentries)
}

func TestExecuteSequentialBranch(t *testing.T) {
	dir := t.TempDir()
	p0 := writePointsCSV(t, dir, "partition_0.csv", [][2]float64{{1, 1}, {2, 2}, {3, 3}})
	p1 := writePointsCSV(t, dir, "partition_1.csv", [][2]float64{{6, 6}, {7, 7}, {8, 8}})

	entries := []mastertable.Entry{
		{ID: 0, FilePath: p0, Bounds: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{5, 5}}},
		{ID: 1, FilePath: p1, Bounds: orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{10, 10}}},
	}
	idx := buildPartitionIndex(entries)

	res := Execute(
		orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}},
		entries, idx, geometry.KindPoint, 6,
		orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}},
		4, 0, nil,
	)

	if res.ParallelThreads != 1 {
		t.Errorf("expected sequential branch (1 thread), got %d", res.ParallelThreads)
	}
	if res.Matches != 6 {
		t.Errorf("expected 6 matches, got %d", res.Matches)
	}
	if res.Cardinality != 1.0 {
		t.Errorf("expected cardinality 1.0, got %v", res.Cardinality)
	}
	if res.MBRTests != 6 {
		t.Errorf("expected 6 mbr tests, got %d", res.MBRTests)
	}
}

func TestExecuteParallelBranch(t *testing.T) {
	dir := t.TempDir()
	var entries []mastertable.Entry
	id := 0
	total := 0
	for cx := 0; cx < 4; cx++ {
		for cy := 0; cy < 2; cy++ {
			xmin, ymin := float64(cx)*2.5, float64(cy)*5
			xmax, ymax := xmin+2.5, ymin+5
			pts := [][2]float64{{xmin + 0.5, ymin + 0.5}, {xmin + 1, ymin + 1}}
			path := writePointsCSV(t, dir, "partition_"+strconv.Itoa(id)+".csv", pts)
			entries = append(entries, mastertable.Entry{
				ID:       id,
				FilePath: path,
				Bounds:   orb.Bound{Min: orb.Point{xmin, ymin}, Max: orb.Point{xmax, ymax}},
			})
			total += len(pts)
			id++
		}
	}
	idx := buildPartitionIndex(entries)

	res := Execute(
		orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}},
		entries, idx, geometry.KindPoint, total,
		orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}},
		4, 0, nil,
	)

	if res.ParallelThreads != 8 {
		t.Errorf("expected 8 worker threads, got %d", res.ParallelThreads)
	}
	if res.Matches != total {
		t.Errorf("expected %d matches, got %d", total, res.Matches)
	}
}

func TestExecuteEmptyCandidateSet(t *testing.T) {
	dir := t.TempDir()
	p0 := writePointsCSV(t, dir, "partition_0.csv", [][2]float64{{1, 1}})
	entries := []mastertable.Entry{
		{ID: 0, FilePath: p0, Bounds: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{5, 5}}},
	}
	idx := buildPartitionIndex(entries)

	res := Execute(
		orb.Bound{Min: orb.Point{100, 100}, Max: orb.Point{110, 110}},
		entries, idx, geometry.KindPoint, 1,
		orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{5, 5}},
		4, 0, nil,
	)

	if res.Matches != 0 || res.MBRTests != 0 || res.ParallelThreads != 1 {
		t.Errorf("expected zeroed empty-candidate result, got %+v", res)
	}
}

func TestExecuteClippedArea(t *testing.T) {
	dir := t.TempDir()
	p0 := writePointsCSV(t, dir, "partition_0.csv", [][2]float64{{1, 1}})
	entries := []mastertable.Entry{
		{ID: 0, FilePath: p0, Bounds: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}},
	}
	idx := buildPartitionIndex(entries)

	res := Execute(
		orb.Bound{Min: orb.Point{8, 8}, Max: orb.Point{15, 15}},
		entries, idx, geometry.KindPoint, 1,
		orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}},
		4, 0, nil,
	)

	if res.ClippedArea != 4 {
		t.Errorf("expected clipped area 4, got %v", res.ClippedArea)
	}
}
