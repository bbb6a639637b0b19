// Package summary reads the per-dataset summary CSV the query engine
// consumes for a dataset's total geometry count and envelope (§6). The
// format carries several analytic columns (segment counts, average areas)
// that this package does not interpret — only the columns the query
// executor actually needs are parsed.
package summary

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/smigliorini/spatialidx/pkg/spatialerr"
)

// Summary is the subset of one dataset-summary row the query engine uses:
// its total feature count and envelope.
type Summary struct {
	DatasetName string
	Envelope    orb.Bound
	NumFeatures int
}

const delimiter = ';'

// Load reads the semicolon-separated summary CSV at path and indexes rows
// by datasetName. Required columns: datasetName, x1, y1, x2, y2,
// num_features; their absence fails with MasterSchemaError, mirroring the
// master-table loader's column-presence contract.
func Load(path string) (map[string]Summary, error) {
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
		return nil, spatialerr.New(spatialerr.MasterSchemaError, path, err)
	}

	required := []string{"datasetName", "x1", "y1", "x2", "y2", "num_features"}
	idx := make(map[string]int, len(required))
	for _, col := range required {
		i := colIndex(header, col)
		if i < 0 {
			return nil, spatialerr.New(spatialerr.MasterSchemaError, path, nil)
		}
		idx[col] = i
	}

	out := make(map[string]Summary)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		x1, e1 := strconv.ParseFloat(record[idx["x1"]], 64)
		y1, e2 := strconv.ParseFloat(record[idx["y1"]], 64)
		x2, e3 := strconv.ParseFloat(record[idx["x2"]], 64)
		y2, e4 := strconv.ParseFloat(record[idx["y2"]], 64)
		n, e5 := strconv.Atoi(record[idx["num_features"]])
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
			continue
		}

		name := record[idx["datasetName"]]
		out[name] = Summary{
			DatasetName: name,
			Envelope:    orb.Bound{Min: orb.Point{x1, y1}, Max: orb.Point{x2, y2}},
			NumFeatures: n,
		}
	}
	return out, nil
}

func colIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
