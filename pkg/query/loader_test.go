package query

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/smigliorini/spatialidx/pkg/geometry"
	"github.com/smigliorini/spatialidx/pkg/mastertable"
)

func TestLoadPartitionPointsContained(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partition_0.csv")
	os.WriteFile(path, []byte("1,1\n2,2\n9,9\n"), 0o644)

	entry := mastertable.Entry{ID: 0, FilePath: path, Bounds: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{5, 5}}}
	res, err := LoadPartition(entry, geometry.KindPoint, []mastertable.Entry{entry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.KeptCount != 2 {
		t.Errorf("expected 2 kept points (the one at (9,9) is outside bounds), got %d", res.KeptCount)
	}
}

func TestLoadPartitionBoxCentroidTieBreak(t *testing.T) {
	dir := t.TempDir()
	// a box that straddles the border between two partitions and is
	// contained in neither, but its centroid at (5,2.5) falls in both.
	path0 := filepath.Join(dir, "partition_0.csv")
	path1 := filepath.Join(dir, "partition_1.csv")
	os.WriteFile(path0, []byte("4,1,6,4\n"), 0o644)
	os.WriteFile(path1, []byte("4,1,6,4\n"), 0o644)

	e0 := mastertable.Entry{ID: 0, FilePath: path0, Bounds: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{5, 5}}}
	e1 := mastertable.Entry{ID: 1, FilePath: path1, Bounds: orb.Bound{Min: orb.Point{5, 0}, Max: orb.Point{10, 5}}}
	all := []mastertable.Entry{e0, e1}

	res0, err := LoadPartition(e0, geometry.KindBox, all)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res1, err := LoadPartition(e1, geometry.KindBox, all)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res0.KeptCount != 1 {
		t.Errorf("expected partition 0 (smallest ID covering centroid) to own the box, got %d", res0.KeptCount)
	}
	if res1.KeptCount != 0 {
		t.Errorf("expected partition 1 to yield ownership to partition 0, got %d", res1.KeptCount)
	}
}

func TestLoadPartitionMissingFile(t *testing.T) {
	entry := mastertable.Entry{ID: 0, FilePath: "/nonexistent/partition_0.csv", Bounds: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{5, 5}}}
	_, err := LoadPartition(entry, geometry.KindPoint, []mastertable.Entry{entry})
	if err == nil {
		t.Fatalf("expected PartitionLoadError for missing file")
	}
}
