package batch

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/smigliorini/spatialidx/pkg/config"
	"github.com/smigliorini/spatialidx/pkg/geometry"
	"github.com/smigliorini/spatialidx/pkg/jobs"
	"github.com/smigliorini/spatialidx/pkg/mastertable"
	"github.com/smigliorini/spatialidx/pkg/observability"
	"github.com/smigliorini/spatialidx/pkg/query"
	"github.com/smigliorini/spatialidx/pkg/rtree"
	"github.com/smigliorini/spatialidx/pkg/spatialerr"
	"github.com/smigliorini/spatialidx/pkg/summary"

	"github.com/paulmach/orb"
)

// QueryTask is one row of a query task CSV (§6).
type QueryTask struct {
	PathDatasets     string
	NameDataset      string
	PathSummaries    string
	NameSummary      string
	PathIndexes      string
	PathRangeQueries string
	NameRangeQueries string
}

var queryHeader = []string{"pathDatasets", "nameDataset", "pathSummaries", "nameSummary", "pathIndexes", "pathRangeQueries", "nameRangeQueries"}

// ReadQueryTasks reads and validates a query task CSV.
func ReadQueryTasks(path string, log *observability.Logger) ([]QueryTask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, spatialerr.New(spatialerr.MissingFile, path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil || !headerMatches(header, queryHeader) {
		return nil, spatialerr.New(spatialerr.HeaderMismatch, path, err)
	}

	var tasks []QueryTask
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(record) < 7 {
			log.WarnSkip(string(spatialerr.HeaderMismatch), path, err)
			continue
		}
		tasks = append(tasks, QueryTask{
			PathDatasets:     record[0],
			NameDataset:      record[1],
			PathSummaries:    record[2],
			NameSummary:      record[3],
			PathIndexes:      record[4],
			PathRangeQueries: record[5],
			NameRangeQueries: record[6],
		})
	}
	return tasks, nil
}

// rangeQuery is one row read from a range-queries input CSV (§6).
type rangeQuery struct {
	DatasetName string
	NumQuery    int
	Bounds      orb.Bound
}

// readRangeQueries reads path's range-query rows, keeping only those whose
// datasetName column equals datasetName.
func readRangeQueries(path, datasetName string) ([]rangeQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, spatialerr.New(spatialerr.MissingFile, path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, spatialerr.New(spatialerr.HeaderMismatch, path, err)
	}
	required := []string{"datasetName", "numQuery", "minX", "minY", "maxX", "maxY"}
	idx := make(map[string]int, len(required))
	for _, col := range required {
		i := colIndex(header, col)
		if i < 0 {
			return nil, spatialerr.New(spatialerr.HeaderMismatch, path, nil)
		}
		idx[col] = i
	}

	var rows []rangeQuery
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if record[idx["datasetName"]] != datasetName {
			continue
		}
		numQuery, e0 := strconv.Atoi(strings.TrimSpace(record[idx["numQuery"]]))
		minX, e1 := strconv.ParseFloat(strings.TrimSpace(record[idx["minX"]]), 64)
		minY, e2 := strconv.ParseFloat(strings.TrimSpace(record[idx["minY"]]), 64)
		maxX, e3 := strconv.ParseFloat(strings.TrimSpace(record[idx["maxX"]]), 64)
		maxY, e4 := strconv.ParseFloat(strings.TrimSpace(record[idx["maxY"]]), 64)
		if e0 != nil || e1 != nil || e2 != nil || e3 != nil || e4 != nil {
			continue
		}
		rows = append(rows, rangeQuery{
			DatasetName: datasetName,
			NumQuery:    numQuery,
			Bounds:      orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}},
		})
	}
	return rows, nil
}

func colIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

var outputHeader = []string{"datasetName", "numQuery", "queryArea", "minX", "minY", "maxX", "maxY", "areaint", "cardinality", "mbrTests", "averageExecutionTime", "numberParallelThreads", "totalExecutionTime"}

// RunQueryBatch groups tasks by nameDataset so each dataset's partition
// R-tree and master table load once per group, then processes every
// group's range queries in the order the task rows were read (§4.I, §5).
func RunQueryBatch(tasks []QueryTask, cfg *config.Config, log *observability.Logger, metrics *observability.Metrics, registry *jobs.Registry) {
	groups := make(map[string][]QueryTask)
	var order []string
	for _, t := range tasks {
		if _, ok := groups[t.NameDataset]; !ok {
			order = append(order, t.NameDataset)
		}
		groups[t.NameDataset] = append(groups[t.NameDataset], t)
	}

	for _, name := range order {
		runQueryGroup(name, groups[name], cfg, log, metrics, registry)
	}
}

func runQueryGroup(datasetName string, tasks []QueryTask, cfg *config.Config, log *observability.Logger, metrics *observability.Metrics, registry *jobs.Registry) {
	groupLog := log.With(observability.Fields{"dataset": datasetName})
	first := tasks[0]
	groupStart := time.Now()

	record := func(status, detail string) {
		if metrics != nil {
			metrics.RecordBatchJob("query", status)
		}
		if registry == nil {
			return
		}
		registry.Append(jobs.Record{
			Kind:      "query",
			Dataset:   datasetName,
			Status:    status,
			StartedAt: groupStart,
			Duration:  time.Since(groupStart),
			Detail:    detail,
		})
	}

	masterPath := filepath.Join(partitionOutDir(first.PathIndexes, first.PathDatasets, first.NameDataset), "master_table.csv")
	entries, err := mastertable.Load(masterPath)
	if err != nil {
		groupLog.WarnSkip(errKind(err), datasetName, err)
		record("error", err.Error())
		return
	}

	kind, err := inferKindFromEntries(masterPath)
	if err != nil {
		groupLog.WarnSkip(errKind(err), datasetName, err)
		record("error", err.Error())
		return
	}

	summaries, err := summary.Load(filepath.Join(first.PathSummaries, first.NameSummary))
	if err != nil {
		groupLog.WarnSkip(errKind(err), datasetName, err)
		record("error", err.Error())
		return
	}
	ds, ok := summaries[datasetName]
	if !ok {
		groupLog.WarnSkip(string(spatialerr.MasterSchemaError), datasetName, nil)
		record("error", "dataset missing from summary")
		return
	}

	partitionIdx := buildPartitionIndex(entries)

	var outRows []string
	flush := func(outPath string, header bool) error {
		if len(outRows) == 0 {
			return nil
		}
		if err := appendRows(outPath, outRows, header); err != nil {
			return err
		}
		outRows = outRows[:0]
		return nil
	}

	for _, task := range tasks {
		rqPath := filepath.Join(task.PathRangeQueries, task.NameRangeQueries)
		rows, err := readRangeQueries(rqPath, datasetName)
		if err != nil {
			groupLog.WarnSkip(errKind(err), rqPath, err)
			continue
		}

		outBase := strings.TrimSuffix(datasetName, filepath.Ext(datasetName))
		outPath := filepath.Join(task.PathRangeQueries, "rqR_"+outBase+".csv")
		if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
			groupLog.WarnSkip(string(spatialerr.IOWriteError), outPath, err)
			continue
		}
		firstWrite := true

		for _, rq := range rows {
			start := time.Now()
			res := query.Execute(rq.Bounds, entries, partitionIdx, kind, ds.NumFeatures, ds.Envelope, cfg.Query.ParallelThreshold, cfg.Query.MaxWorkers, groupLog)

			if metrics != nil {
				metrics.RecordQuery(datasetName, res.Cardinality, res.MBRTests, res.ParallelThreads, time.Since(start))
			}

			outRows = append(outRows, formatResultRow(datasetName, rq, res))
			if len(outRows) >= cfg.Batch.ResultBufferN {
				if err := flush(outPath, firstWrite); err != nil {
					groupLog.WarnSkip(string(spatialerr.IOWriteError), outPath, err)
					record("error", err.Error())
					return
				}
				firstWrite = false
			}
		}
		if err := flush(outPath, firstWrite); err != nil {
			groupLog.WarnSkip(string(spatialerr.IOWriteError), outPath, err)
			record("error", err.Error())
			return
		}
	}
	record("ok", "")
}

func buildPartitionIndex(entries []mastertable.Entry) *rtree.RTree {
	rentries := make([]rtree.Entry, len(entries))
	for i, e := range entries {
		rentries[i] = rtree.Entry{Index: i, Bound: e.Bounds}
	}
	return rtree.Build(rentries)
}

// inferKindFromEntries reads the master table a second time for its
// GeometryType column, since mastertable.Entry keeps only ID, path and bounds.
func inferKindFromEntries(masterPath string) (geometry.Kind, error) {
	f, err := os.Open(masterPath)
	if err != nil {
		return 0, spatialerr.New(spatialerr.MissingFile, masterPath, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return 0, spatialerr.New(spatialerr.MasterSchemaError, masterPath, err)
	}
	ki := colIndex(header, "GeometryType")
	if ki < 0 {
		return 0, spatialerr.New(spatialerr.MasterSchemaError, masterPath, nil)
	}
	record, err := cr.Read()
	if err != nil {
		return 0, spatialerr.New(spatialerr.MasterSchemaError, masterPath, err)
	}
	return geometry.ParseKind(record[ki])
}

func formatResultRow(datasetName string, rq rangeQuery, res *query.Result) string {
	queryArea := geometry.Area(rq.Bounds)
	fields := []string{
		datasetName,
		strconv.Itoa(rq.NumQuery),
		strconv.FormatFloat(queryArea, 'f', -1, 64),
		strconv.FormatFloat(rq.Bounds.Min[0], 'f', -1, 64),
		strconv.FormatFloat(rq.Bounds.Min[1], 'f', -1, 64),
		strconv.FormatFloat(rq.Bounds.Max[0], 'f', -1, 64),
		strconv.FormatFloat(rq.Bounds.Max[1], 'f', -1, 64),
		strconv.FormatFloat(res.ClippedArea, 'f', -1, 64),
		strconv.FormatFloat(res.Cardinality, 'f', -1, 64),
		strconv.Itoa(res.MBRTests),
		strconv.FormatFloat(res.AvgThreadTimeMs, 'f', -1, 64),
		strconv.Itoa(res.ParallelThreads),
		strconv.FormatFloat(res.TotalTimeMs, 'f', -1, 64),
	}
	return strings.Join(fields, ";")
}

func appendRows(path string, rows []string, writeHeader bool) error {
	flag := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return spatialerr.New(spatialerr.IOWriteError, path, err)
	}
	defer f.Close()

	if writeHeader {
		if _, err := f.WriteString(strings.Join(outputHeader, ";") + "\n"); err != nil {
			return spatialerr.New(spatialerr.IOWriteError, path, err)
		}
	}
	for _, row := range rows {
		if _, err := f.WriteString(row + "\n"); err != nil {
			return spatialerr.New(spatialerr.IOWriteError, path, err)
		}
	}
	return nil
}
