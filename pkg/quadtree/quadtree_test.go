package quadtree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/smigliorini/spatialidx/pkg/dataset"
	"github.com/smigliorini/spatialidx/pkg/geometry"
	"github.com/smigliorini/spatialidx/pkg/mastertable"
	"github.com/smigliorini/spatialidx/pkg/partition"
)

func TestBuildPointCapacityDriven(t *testing.T) {
	var geoms []geometry.Geometry
	for i := 0; i < 10; i++ {
		geoms = append(geoms, geometry.NewPoint(float64(i)+0.5, float64(i)+0.5))
	}
	ds := &dataset.Dataset{
		Kind:       geometry.KindPoint,
		Geometries: geoms,
		Envelope:   orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}},
	}

	plan, err := partition.Compute(partition.ModeGeometries, 4, ds.Count(), 0, geometry.Area(ds.Envelope))
	if err != nil {
		t.Fatalf("plan error: %v", err)
	}
	if plan.NumPartitions != 3 {
		t.Fatalf("expected 3 partitions, got %d", plan.NumPartitions)
	}

	outDir := t.TempDir()
	res, err := Build(ds, Options{
		Kind:     geometry.KindPoint,
		OutDir:   outDir,
		NumGeoms: plan.NumGeoms,
		AreaMin:  plan.AreaMin,
	})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if len(res.Rows) < 3 {
		t.Errorf("expected at least 3 leaves, got %d", len(res.Rows))
	}

	total := 0
	for _, r := range res.Rows {
		if r.NumGeoms > plan.NumGeoms {
			t.Errorf("leaf %s exceeds capacity: %d > %d", r.Name, r.NumGeoms, plan.NumGeoms)
		}
		total += r.NumGeoms
	}
	// The second-level splits of (0,0,5,5) and (5,5,10,10) fall exactly on
	// the points (2.5,2.5) and (7.5,7.5); border duplication assigns each of
	// them to all four quadrants, so the 10 points yield 10+3+3 = 16 rows.
	if total != 16 {
		t.Errorf("expected master rows to hold 16 points (10 plus 6 border duplicates), got %d", total)
	}

	if _, err := os.Stat(res.MasterTablePath); err != nil {
		t.Errorf("expected master_table.csv to exist: %v", err)
	}
}

func TestBuildBoxAreaFloorTermination(t *testing.T) {
	var geoms []geometry.Geometry
	for i := 0; i < 100; i++ {
		geoms = append(geoms, geometry.NewBox(0, 0, 1, 1))
	}
	ds := &dataset.Dataset{
		Kind:       geometry.KindBox,
		Geometries: geoms,
		Envelope:   orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}},
	}

	plan, err := partition.Compute(partition.ModeGeometries, 1, ds.Count(), 0, geometry.Area(ds.Envelope))
	if err != nil {
		t.Fatalf("plan error: %v", err)
	}

	outDir := t.TempDir()
	res, err := Build(ds, Options{
		Kind:     geometry.KindBox,
		OutDir:   outDir,
		NumGeoms: plan.NumGeoms,
		AreaMin:  plan.AreaMin,
	})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected a single leaf (identical children never progress), got %d", len(res.Rows))
	}
	if res.Rows[0].NumGeoms != 100 {
		t.Errorf("expected leaf to hold all 100 boxes, got %d", res.Rows[0].NumGeoms)
	}
}

func TestBuildRoundTripSinglePartition(t *testing.T) {
	geoms := []geometry.Geometry{
		geometry.NewBox(0, 0, 1, 1),
		geometry.NewBox(2, 2, 3, 3),
	}
	ds := &dataset.Dataset{
		Kind:       geometry.KindBox,
		Geometries: geoms,
		Envelope:   orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{3, 3}},
	}

	outDir := t.TempDir()
	res, err := Build(ds, Options{
		Kind:     geometry.KindBox,
		OutDir:   outDir,
		NumGeoms: 10,
		AreaMin:  0,
	})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected exactly one partition when K<=G, got %d", len(res.Rows))
	}

	entries, err := mastertable.Load(filepath.Join(outDir, "master_table.csv"))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != 0 {
		t.Errorf("expected single ID-0 entry, got %+v", entries)
	}
}

func TestBuildIDsAreConsecutiveAndUnique(t *testing.T) {
	var geoms []geometry.Geometry
	for i := 0; i < 40; i++ {
		geoms = append(geoms, geometry.NewPoint(float64(i%10), float64(i/10)))
	}
	ds := &dataset.Dataset{
		Kind:       geometry.KindPoint,
		Geometries: geoms,
		Envelope:   orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}},
	}

	outDir := t.TempDir()
	res, err := Build(ds, Options{
		Kind:           geometry.KindPoint,
		OutDir:         outDir,
		NumGeoms:       2,
		AreaMin:        0.01,
		FlushThreshold: 2,
	})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	seen := make(map[int]bool)
	for i, r := range res.Rows {
		if r.ID != i {
			t.Errorf("expected consecutive IDs, row %d has ID %d", i, r.ID)
		}
		if seen[r.ID] {
			t.Errorf("duplicate ID %d", r.ID)
		}
		seen[r.ID] = true
	}
}
