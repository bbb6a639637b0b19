package partition

import (
	"testing"

	"github.com/smigliorini/spatialidx/pkg/spatialerr"
)

func TestComputePartitionsMode(t *testing.T) {
	plan, err := Compute(ModePartitions, 3, 10, 0, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.NumPartitions != 3 {
		t.Errorf("expected 3 partitions, got %d", plan.NumPartitions)
	}
	if plan.NumGeoms != 4 {
		t.Errorf("expected 4 geoms/leaf (ceil(10/3)), got %d", plan.NumGeoms)
	}
	wantArea := 100.0 / (4 * 3)
	if plan.AreaMin != wantArea {
		t.Errorf("expected area min %v, got %v", wantArea, plan.AreaMin)
	}
}

func TestComputeGeometriesMode(t *testing.T) {
	plan, err := Compute(ModeGeometries, 4, 10, 0, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.NumGeoms != 4 {
		t.Errorf("expected 4 geoms/leaf, got %d", plan.NumGeoms)
	}
	if plan.NumPartitions != 3 {
		t.Errorf("expected 3 partitions (ceil(10/4)), got %d", plan.NumPartitions)
	}
}

func TestComputeBytesMode(t *testing.T) {
	// F=1000 bytes, K=10 geoms -> g=100 bytes/geom; N=250 -> n_geoms=ceil(250/100)=3
	plan, err := Compute(ModeBytes, 250, 10, 1000, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.NumGeoms != 3 {
		t.Errorf("expected 3 geoms/leaf, got %d", plan.NumGeoms)
	}
	if plan.NumPartitions != 4 {
		t.Errorf("expected 4 partitions (ceil(10/3)), got %d", plan.NumPartitions)
	}
}

func TestComputeRejectsNonPositiveN(t *testing.T) {
	_, err := Compute(ModeGeometries, 0, 10, 100, 100)
	if !spatialerr.Is(err, spatialerr.InvalidPartitionParam) {
		t.Fatalf("expected InvalidPartitionParam, got %v", err)
	}
}

func TestComputeRejectsUnknownMode(t *testing.T) {
	_, err := Compute(Mode("bogus"), 4, 10, 100, 100)
	if !spatialerr.Is(err, spatialerr.InvalidPartitionParam) {
		t.Fatalf("expected InvalidPartitionParam, got %v", err)
	}
}

func TestComputeClampsToOne(t *testing.T) {
	plan, err := Compute(ModePartitions, 1000, 1, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.NumPartitions < 1 || plan.NumGeoms < 1 {
		t.Errorf("expected clamped outputs >= 1, got %+v", plan)
	}
}
