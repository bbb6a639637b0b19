package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/smigliorini/spatialidx/pkg/geometry"
	"github.com/smigliorini/spatialidx/pkg/observability"
	"github.com/smigliorini/spatialidx/pkg/spatialerr"
)

// Load reads path into memory, inferring the geometry kind from its
// extension and (for .csv) column count. Malformed rows are dropped without
// failing the load, each drop logged as one WARN line; a .csv with a column
// count other than 2 or 4 fails with UnsupportedFormat.
func Load(path string, log *observability.Logger) (*Dataset, error) {
	if log == nil {
		log = observability.Default()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, spatialerr.New(spatialerr.MissingFile, path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	f, err := os.Open(path)
	if err != nil {
		return nil, spatialerr.New(spatialerr.MissingFile, path, err)
	}
	defer f.Close()

	var (
		geoms []geometry.Geometry
		kind  geometry.Kind
	)

	switch ext {
	case ".wkt":
		kind = geometry.KindPolygon
		geoms, err = readWKT(f, log, path)
	case ".csv":
		geoms, kind, err = readCSV(f, log, path)
	default:
		return nil, spatialerr.New(spatialerr.UnsupportedFormat, path, nil)
	}
	if err != nil {
		return nil, err
	}

	return &Dataset{
		Path:       path,
		Kind:       kind,
		Geometries: geoms,
		Envelope:   envelopeOf(geoms),
		ByteSize:   info.Size(),
	}, nil
}

func readWKT(r io.Reader, log *observability.Logger, path string) ([]geometry.Geometry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var geoms []geometry.Geometry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		g, err := wkt.Unmarshal(line)
		poly, ok := g.(orb.Polygon)
		if err != nil || !ok {
			log.WarnSkip(string(spatialerr.UnsupportedFormat), path, err)
			continue
		}
		geoms = append(geoms, geometry.NewPolygon(line, poly))
	}
	if err := scanner.Err(); err != nil {
		return nil, spatialerr.New(spatialerr.MissingFile, path, err)
	}
	return geoms, nil
}

func readCSV(r io.Reader, log *observability.Logger, path string) ([]geometry.Geometry, geometry.Kind, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // column count is validated per-row below

	var (
		geoms      []geometry.Geometry
		kind       geometry.Kind
		kindKnown  bool
	)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WarnSkip(string(spatialerr.UnsupportedFormat), path, err)
			continue
		}

		switch len(record) {
		case 2:
			if kindKnown && kind != geometry.KindPoint {
				return nil, 0, spatialerr.New(spatialerr.UnsupportedFormat, path, nil)
			}
			kind, kindKnown = geometry.KindPoint, true

			x, errX := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
			y, errY := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
			if errX != nil || errY != nil {
				log.WarnSkip(string(spatialerr.UnsupportedFormat), path, nil)
				continue
			}
			geoms = append(geoms, geometry.NewPoint(x, y))

		case 4:
			if kindKnown && kind != geometry.KindBox {
				return nil, 0, spatialerr.New(spatialerr.UnsupportedFormat, path, nil)
			}
			kind, kindKnown = geometry.KindBox, true

			vals := make([]float64, 4)
			ok := true
			for i := 0; i < 4; i++ {
				v, perr := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
				if perr != nil {
					ok = false
					break
				}
				vals[i] = v
			}
			if !ok || vals[0] > vals[2] || vals[1] > vals[3] {
				log.WarnSkip(string(spatialerr.UnsupportedFormat), path, nil)
				continue
			}
			geoms = append(geoms, geometry.NewBox(vals[0], vals[1], vals[2], vals[3]))

		default:
			return nil, 0, spatialerr.New(spatialerr.UnsupportedFormat, path, nil)
		}
	}

	if !kindKnown {
		return nil, 0, spatialerr.New(spatialerr.UnsupportedFormat, path, nil)
	}
	return geoms, kind, nil
}
