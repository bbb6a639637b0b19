// Package batch implements the two batch drivers the CLI exposes:
// indexing a set of datasets (§4.I) and running a set of range-query task
// groups against already-indexed datasets. Both read a semicolon-separated
// task CSV. Indexing distributes the rows across a worker pool; query
// groups run one after another, each query fanning out internally.
package batch

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smigliorini/spatialidx/pkg/config"
	"github.com/smigliorini/spatialidx/pkg/dataset"
	"github.com/smigliorini/spatialidx/pkg/geometry"
	"github.com/smigliorini/spatialidx/pkg/jobs"
	"github.com/smigliorini/spatialidx/pkg/observability"
	"github.com/smigliorini/spatialidx/pkg/partition"
	"github.com/smigliorini/spatialidx/pkg/quadtree"
	"github.com/smigliorini/spatialidx/pkg/spatialerr"
)

const delimiter = ';'

// IndexTask is one row of an indexing task CSV (§6).
type IndexTask struct {
	PathDatasets  string
	NameDataset   string
	PathIndexes   string
	TypePartition string
	Num           int
}

var indexHeader = []string{"pathDatasets", "nameDataset", "pathIndexes", "typePartition", "num"}

// ReadIndexTasks reads and validates an indexing task CSV. A header that
// doesn't match indexHeader fails immediately with HeaderMismatch; a row
// with an unparseable num is skipped, not fatal.
func ReadIndexTasks(path string, log *observability.Logger) ([]IndexTask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, spatialerr.New(spatialerr.MissingFile, path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil || !headerMatches(header, indexHeader) {
		return nil, spatialerr.New(spatialerr.HeaderMismatch, path, err)
	}

	var tasks []IndexTask
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(record) < 5 {
			log.WarnSkip(string(spatialerr.HeaderMismatch), path, err)
			continue
		}
		num, err := strconv.Atoi(strings.TrimSpace(record[4]))
		if err != nil {
			log.WarnSkip(string(spatialerr.InvalidPartitionParam), record[1], err)
			continue
		}
		tasks = append(tasks, IndexTask{
			PathDatasets:  record[0],
			NameDataset:   record[1],
			PathIndexes:   record[2],
			TypePartition: record[3],
			Num:           num,
		})
	}
	return tasks, nil
}

func headerMatches(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if strings.TrimSpace(got[i]) != want[i] {
			return false
		}
	}
	return true
}

// RunIndexBatch distributes tasks across a worker pool of size
// max(1, cores-1) (§5), each worker owning one job end-to-end: dataset
// load, plan, quadtree build, write-out. Per-job failures are logged and
// do not abort sibling jobs.
func RunIndexBatch(tasks []IndexTask, cfg *config.Config, log *observability.Logger, metrics *observability.Metrics, registry *jobs.Registry) {
	workers := cfg.Batch.Parallelism
	if workers < 1 {
		workers = runtime.NumCPU() - 1
	}
	if workers < 1 {
		workers = 1
	}

	queue := make(chan IndexTask, len(tasks))
	for _, task := range tasks {
		queue <- task
	}
	close(queue)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				runIndexJob(task, cfg, log, metrics, registry)
			}
		}()
	}
	wg.Wait()
}

// RunSingleIndexTask runs one indexing task inline, outside the worker
// pool. The monitoring API's /v1/reindex handler uses this so a single
// on-demand reindex never waits behind an unrelated batch run.
func RunSingleIndexTask(task IndexTask, cfg *config.Config, log *observability.Logger, metrics *observability.Metrics, registry *jobs.Registry) {
	runIndexJob(task, cfg, log, metrics, registry)
}

func runIndexJob(task IndexTask, cfg *config.Config, log *observability.Logger, metrics *observability.Metrics, registry *jobs.Registry) {
	jobLog := log.With(observability.Fields{"dataset": task.NameDataset})
	jobStart := time.Now()

	record := func(status, detail string, dupEstimate int) {
		if metrics != nil {
			metrics.RecordBatchJob("index", status)
		}
		if registry == nil {
			return
		}
		registry.Append(jobs.Record{
			Kind:              "index",
			Dataset:           task.NameDataset,
			Status:            status,
			StartedAt:         jobStart,
			Duration:          time.Since(jobStart),
			Detail:            detail,
			DuplicateEstimate: dupEstimate,
		})
	}

	datasetPath := filepath.Join(task.PathDatasets, task.NameDataset)
	ds, err := dataset.Load(datasetPath, jobLog)
	if err != nil {
		jobLog.WarnSkip(errKind(err), task.NameDataset, err)
		record("error", err.Error(), 0)
		return
	}

	plan, err := partition.Compute(partition.Mode(task.TypePartition), task.Num, ds.Count(), ds.ByteSize, geometry.Area(ds.Envelope))
	if err != nil {
		jobLog.WarnSkip(errKind(err), task.NameDataset, err)
		record("error", err.Error(), 0)
		return
	}

	outDir := partitionOutDir(task.PathIndexes, task.PathDatasets, task.NameDataset)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		jobLog.WarnSkip(string(spatialerr.IOWriteError), outDir, err)
		record("error", err.Error(), 0)
		return
	}

	flushThreshold := cfg.Partition.FlushThreshold
	if workers := cfg.Batch.Parallelism; workers > 0 {
		if doubled := 2 * workers; doubled > flushThreshold {
			flushThreshold = doubled
		}
	}

	buildStart := time.Now()
	res, err := quadtree.Build(ds, quadtree.Options{
		Kind:           ds.Kind,
		OutDir:         outDir,
		NumGeoms:       plan.NumGeoms,
		AreaMin:        plan.AreaMin,
		FlushThreshold: flushThreshold,
		Log:            jobLog,
	})
	if err != nil {
		jobLog.WarnSkip(errKind(err), task.NameDataset, err)
		record("error", err.Error(), 0)
		return
	}

	if metrics != nil {
		metrics.RecordBuild(task.NameDataset, time.Since(buildStart), len(res.Rows))
		for reason, count := range res.LeavesByReason {
			for i := 0; i < count; i++ {
				metrics.RecordLeaf(task.NameDataset, string(reason))
			}
		}
	}

	// §4.N: duplicate_estimate is the surplus of geometries emitted across
	// all partitions over the dataset's own geometry count. Border
	// duplication only ever adds copies, so this surplus is never negative
	// in a healthy build. Reporting-only: never feeds back into partitioning.
	emitted := 0
	for _, row := range res.Rows {
		emitted += row.NumGeoms
	}
	dupEstimate := emitted - ds.Count()
	jobLog.Info("duplicate_estimate", observability.Fields{"emitted": emitted, "source": ds.Count(), "duplicate_estimate": dupEstimate})
	if metrics != nil {
		metrics.RecordDuplicateEstimate(task.NameDataset, dupEstimate)
	}

	jobLog.Info("indexed dataset", observability.Fields{"partitions": len(res.Rows)})
	record("ok", "", dupEstimate)
}

// partitionOutDir derives <index_root>/<dataset_dirname>/<dataset_base>_spatialIndex/
// per §6, matching the original indexer's
// folderIndexes = os.path.join(pathIndex, os.path.basename(pathDatasets)):
// dataset_dirname is the source dataset folder's own basename, not
// anything derived from nameDataset.
func partitionOutDir(indexRoot, pathDatasets, nameDataset string) string {
	base := strings.TrimSuffix(filepath.Base(nameDataset), filepath.Ext(nameDataset))
	dirName := filepath.Base(pathDatasets)
	return filepath.Join(indexRoot, dirName, base+"_spatialIndex")
}

func errKind(err error) string {
	if se, ok := err.(*spatialerr.Error); ok {
		return string(se.Kind)
	}
	return "error"
}
