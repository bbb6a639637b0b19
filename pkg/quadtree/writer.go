package quadtree

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/smigliorini/spatialidx/pkg/geometry"
	"github.com/smigliorini/spatialidx/pkg/spatialerr"
)

// writePartitionFile writes geoms to path in the dataset kind's native
// format (CSV for Point/Box, one WKT line per row for Polygon, §6) and
// returns the written file's size in bytes.
func writePartitionFile(path string, kind geometry.Kind, geoms []geometry.Geometry) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, spatialerr.New(spatialerr.IOWriteError, path, err)
	}
	defer f.Close()

	switch kind {
	case geometry.KindPolygon:
		for _, g := range geoms {
			if _, err := f.WriteString(g.WKT + "\n"); err != nil {
				return 0, spatialerr.New(spatialerr.IOWriteError, path, err)
			}
		}
	default:
		cw := csv.NewWriter(f)
		for _, g := range geoms {
			var record []string
			if kind == geometry.KindPoint {
				record = []string{
					strconv.FormatFloat(g.Point[0], 'f', -1, 64),
					strconv.FormatFloat(g.Point[1], 'f', -1, 64),
				}
			} else {
				record = []string{
					strconv.FormatFloat(g.Box.Min[0], 'f', -1, 64),
					strconv.FormatFloat(g.Box.Min[1], 'f', -1, 64),
					strconv.FormatFloat(g.Box.Max[0], 'f', -1, 64),
					strconv.FormatFloat(g.Box.Max[1], 'f', -1, 64),
				}
			}
			if err := cw.Write(record); err != nil {
				return 0, spatialerr.New(spatialerr.IOWriteError, path, err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return 0, spatialerr.New(spatialerr.IOWriteError, path, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, spatialerr.New(spatialerr.IOWriteError, path, err)
	}
	return info.Size(), nil
}
