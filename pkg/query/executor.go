package query

import (
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/smigliorini/spatialidx/pkg/geometry"
	"github.com/smigliorini/spatialidx/pkg/mastertable"
	"github.com/smigliorini/spatialidx/pkg/observability"
	"github.com/smigliorini/spatialidx/pkg/rtree"
)

// Result is one range query's outcome (§4.H, §6's rqR_* output columns).
type Result struct {
	Matches         int
	MBRTests        int
	Cardinality     float64
	ParallelThreads int
	TotalTimeMs     float64
	AvgThreadTimeMs float64
	ClippedArea     float64
}

// partitionOutcome is one worker's contribution before the reduce step.
type partitionOutcome struct {
	matches  int
	mbrTests int
	wallMs   float64
}

// Execute runs query Q against partitions, using partitionIndex to narrow
// candidates before loading anything from disk (§4.H). totalCount is the
// dataset's total geometry count T, used for cardinality; datasetEnvelope
// is the dataset's envelope, used for the clipped-area figure. workerCap
// bounds the parallel fan-out; 0 means no cap beyond |candidates|.
func Execute(
	q orb.Bound,
	partitions []mastertable.Entry,
	partitionIndex *rtree.RTree,
	kind geometry.Kind,
	totalCount int,
	datasetEnvelope orb.Bound,
	parallelThreshold int,
	workerCap int,
	log *observability.Logger,
) *Result {
	if log == nil {
		log = observability.Default()
	}

	start := time.Now()
	clippedArea := geometry.ClipArea(q, datasetEnvelope)

	candidateIdx := partitionIndex.Query(q)
	if len(candidateIdx) == 0 {
		return &Result{ParallelThreads: 1, TotalTimeMs: elapsedMs(start), AvgThreadTimeMs: elapsedMs(start), ClippedArea: clippedArea}
	}

	var outcomes []partitionOutcome
	var threads int

	if len(candidateIdx) < parallelThreshold {
		threads = 1
		outcomes = append(outcomes, runSequential(candidateIdx, q, partitions, kind, log))
	} else {
		workers := len(candidateIdx)
		if workerCap > 0 && workerCap < workers {
			workers = workerCap
		}
		threads = workers
		outcomes = runParallel(candidateIdx, q, partitions, kind, workers, log)
	}

	var matches, mbrTests int
	var sumWall float64
	for _, o := range outcomes {
		matches += o.matches
		mbrTests += o.mbrTests
		sumWall += o.wallMs
	}

	cardinality := 0.0
	if totalCount > 0 {
		cardinality = float64(matches) / float64(totalCount)
	}

	avgThread := elapsedMs(start)
	if len(outcomes) > 0 {
		avgThread = sumWall / float64(len(outcomes))
	}

	return &Result{
		Matches:         matches,
		MBRTests:        mbrTests,
		Cardinality:     cardinality,
		ParallelThreads: threads,
		TotalTimeMs:     elapsedMs(start),
		AvgThreadTimeMs: avgThread,
		ClippedArea:     clippedArea,
	}
}

// runSequential processes every candidate partition on the calling
// goroutine and folds the result into a single outcome, so the sequential
// and parallel branches share the same reduce shape.
func runSequential(candidateIdx []int, q orb.Bound, partitions []mastertable.Entry, kind geometry.Kind, log *observability.Logger) partitionOutcome {
	start := time.Now()
	var out partitionOutcome
	for _, idx := range candidateIdx {
		m, mbr := loadAndTest(partitions[idx], q, kind, partitions, log)
		out.matches += m
		out.mbrTests += mbr
	}
	out.wallMs = elapsedMs(start)
	return out
}

// runParallel fans candidate loading across a worker pool sized to
// workers, using errgroup.Group to own the pool instead of a bare
// WaitGroup; loadAndTest never returns an error (a load failure is
// logged and skipped, not propagated), so every Go func here always
// returns nil and g.Wait() only serves to block for completion.
func runParallel(candidateIdx []int, q orb.Bound, partitions []mastertable.Entry, kind geometry.Kind, workers int, log *observability.Logger) []partitionOutcome {
	jobs := make(chan int, len(candidateIdx))
	for _, idx := range candidateIdx {
		jobs <- idx
	}
	close(jobs)

	outcomes := make([]partitionOutcome, workers)
	var g errgroup.Group

	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			start := time.Now()
			var m, mbr int
			for idx := range jobs {
				pm, pmbr := loadAndTest(partitions[idx], q, kind, partitions, log)
				m += pm
				mbr += pmbr
			}
			outcomes[w] = partitionOutcome{matches: m, mbrTests: mbr, wallMs: elapsedMs(start)}
			return nil
		})
	}
	g.Wait()

	return outcomes
}

// loadAndTest loads one candidate partition (§4.G), intersects its local
// R-tree with q, and confirms each local candidate with a true intersects
// test. A load failure is logged and contributes nothing (§4.H edge
// policy: the partition is skipped, mbr_tests not incremented for it).
func loadAndTest(entry mastertable.Entry, q orb.Bound, kind geometry.Kind, all []mastertable.Entry, log *observability.Logger) (matches int, mbrTests int) {
	loaded, err := LoadPartition(entry, kind, all)
	if err != nil {
		log.WarnSkip("PartitionLoadError", entry.FilePath, err)
		return 0, 0
	}

	localIdx := loaded.RTree.Query(q)
	for _, i := range localIdx {
		if geometry.IntersectsRect(loaded.Geometries[i], q) {
			matches++
		}
	}
	return matches, loaded.KeptCount
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
