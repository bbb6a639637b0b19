// Package mastertable reads and writes the master-table CSV a quadtree
// build produces: one row per partition file, naming its path and envelope
// (§4.E, §6).
package mastertable

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/smigliorini/spatialidx/pkg/geometry"
	"github.com/smigliorini/spatialidx/pkg/spatialerr"
)

// Header is the master-table CSV's fixed column order (§6).
var Header = []string{"ID", "NamePartition", "NumberGeometries", "FileSize", "GeometryType", "xMin", "yMin", "xMax", "yMax"}

// Row is one partition's master-table entry.
type Row struct {
	ID         int
	Name       string
	NumGeoms   int
	FileSize   int64
	Kind       geometry.Kind
	Bounds     orb.Bound
}

// Entry is the trimmed view the R-tree and query engine need: a partition's
// file path plus its envelope.
type Entry struct {
	ID       int
	FilePath string
	Bounds   orb.Bound
}

// Write emits rows to w as a master-table CSV with header.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return spatialerr.New(spatialerr.IOWriteError, "master_table.csv", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.ID),
			r.Name,
			strconv.Itoa(r.NumGeoms),
			strconv.FormatInt(r.FileSize, 10),
			r.Kind.String(),
			strconv.FormatFloat(r.Bounds.Min[0], 'f', -1, 64),
			strconv.FormatFloat(r.Bounds.Min[1], 'f', -1, 64),
			strconv.FormatFloat(r.Bounds.Max[0], 'f', -1, 64),
			strconv.FormatFloat(r.Bounds.Max[1], 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return spatialerr.New(spatialerr.IOWriteError, "master_table.csv", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return spatialerr.New(spatialerr.IOWriteError, "master_table.csv", err)
	}
	return nil
}

// WriteFile is Write against a file path, creating or truncating it.
func WriteFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return spatialerr.New(spatialerr.IOWriteError, path, err)
	}
	defer f.Close()
	return Write(f, rows)
}

// columnIndex maps required column names to their position in the header
// actually present in the file, tolerating column reordering.
func columnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

// Load reads a master-table CSV from path, returning the ordered list of
// partition entries the R-tree builder and per-partition loader consume.
// NamePartition is stored bare in the CSV (§6), so Load joins it with
// path's own directory (quadtree.Build writes every partition file
// alongside master_table.csv), producing an Entry.FilePath callers can
// open directly. Required columns: NamePartition, xMin, yMin, xMax, yMax.
// Their absence fails with MasterSchemaError (§4.E).
func Load(path string) ([]Entry, error) {
	dir := filepath.Dir(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, spatialerr.New(spatialerr.MissingFile, path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, spatialerr.New(spatialerr.MasterSchemaError, path, err)
	}

	required := []string{"NamePartition", "xMin", "yMin", "xMax", "yMax"}
	idx := make(map[string]int, len(required))
	for _, col := range required {
		i := columnIndex(header, col)
		if i < 0 {
			return nil, spatialerr.New(spatialerr.MasterSchemaError, path, nil)
		}
		idx[col] = i
	}
	idIdx := columnIndex(header, "ID")

	var entries []Entry
	ordinal := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		xmin, e1 := strconv.ParseFloat(record[idx["xMin"]], 64)
		ymin, e2 := strconv.ParseFloat(record[idx["yMin"]], 64)
		xmax, e3 := strconv.ParseFloat(record[idx["xMax"]], 64)
		ymax, e4 := strconv.ParseFloat(record[idx["yMax"]], 64)
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
			continue
		}

		id := ordinal
		if idIdx >= 0 {
			if n, err := strconv.Atoi(record[idIdx]); err == nil {
				id = n
			}
		}

		entries = append(entries, Entry{
			ID:       id,
			FilePath: filepath.Join(dir, record[idx["NamePartition"]]),
			Bounds: orb.Bound{
				Min: orb.Point{xmin, ymin},
				Max: orb.Point{xmax, ymax},
			},
		})
		ordinal++
	}

	return entries, nil
}
