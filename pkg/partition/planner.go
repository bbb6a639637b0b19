// Package partition computes the geometries-per-leaf capacity and minimum
// leaf area a quadtree build targets, from one of three user-chosen sizing
// modes (§4.C).
package partition

import (
	"math"

	"github.com/smigliorini/spatialidx/pkg/spatialerr"
)

// Mode selects how N is interpreted.
type Mode string

const (
	ModePartitions Mode = "partitions"
	ModeGeometries Mode = "geometries"
	ModeBytes      Mode = "bytes"
)

// Plan is the planner's output: the target geometry count per leaf, the
// resulting partition count, and the minimum leaf area below which the
// quadtree builder stops subdividing regardless of capacity.
type Plan struct {
	NumGeoms      int
	NumPartitions int
	AreaMin       float64
}

// Compute derives a Plan for the given sizing mode, parameter N, dataset
// geometry count K, file size (bytes) and envelope area. N<=0 or an unknown
// mode fails with InvalidPartitionParam.
func Compute(mode Mode, n int, k int, fileSize int64, envelopeArea float64) (Plan, error) {
	if n <= 0 {
		return Plan{}, spatialerr.New(spatialerr.InvalidPartitionParam, string(mode), nil)
	}
	if k < 1 {
		k = 1
	}

	var numGeoms, numPartitions int
	switch mode {
	case ModePartitions:
		numPartitions = n
		numGeoms = ceilDiv(k, n)
	case ModeGeometries:
		numGeoms = n
		numPartitions = ceilDiv(k, n)
	case ModeBytes:
		g := ceilDiv(int(fileSize), k)
		if g < 1 {
			g = 1
		}
		numGeoms = ceilDiv(n, g)
		numPartitions = ceilDiv(k, numGeoms)
	default:
		return Plan{}, spatialerr.New(spatialerr.InvalidPartitionParam, string(mode), nil)
	}

	if numGeoms < 1 {
		numGeoms = 1
	}
	if numPartitions < 1 {
		numPartitions = 1
	}

	areaMin := envelopeArea / (4 * float64(numPartitions))

	return Plan{
		NumGeoms:      numGeoms,
		NumPartitions: numPartitions,
		AreaMin:       areaMin,
	}, nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return int(math.Ceil(float64(a) / float64(b)))
}
