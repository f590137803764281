package metric

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultReference is the built-in logistics baseline used when no
// reference file is configured.
func DefaultReference() map[string]float64 {
	return map[string]float64{
		"inventory_turnover":     8.5,
		"order_fulfillment_rate": 0.98,
		"transit_time":           2.5,
		"warehousing_cost":       12.0,
		"shipment_on_time_rate":  0.92,
		"on_time_delivery_rate":  0.92,
	}
}

// LoadReference reads a reference table from path, dispatching on the file
// extension. YAML files map metric names to numbers; XLSX files carry
// name/value pairs in the first two columns of the first sheet.
func LoadReference(path string) (map[string]float64, error) {
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return loadYAMLReference(path)
	case strings.HasSuffix(path, ".xlsx"):
		return loadXLSXReference(path)
	default:
		return nil, eris.Errorf("metric: unsupported reference format %s", path)
	}
}

func loadYAMLReference(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "metric: read reference %s", path)
	}

	ref := map[string]float64{}
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, eris.Wrapf(err, "metric: decode reference %s", path)
	}

	zap.L().Info("metric: reference loaded", zap.String("path", path), zap.Int("metrics", len(ref)))
	return ref, nil
}

func loadXLSXReference(path string) (map[string]float64, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "metric: open reference %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("metric: reference %s has no sheets", path)
	}

	ref := map[string]float64{}
	for _, row := range f.Sheets[0].Rows {
		if len(row.Cells) < 2 {
			continue
		}
		name := strings.TrimSpace(row.Cells[0].String())
		if name == "" {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row.Cells[1].String()), 64)
		if err != nil {
			// Header rows and annotations are expected; skip them.
			continue
		}
		ref[name] = value
	}

	if len(ref) == 0 {
		return nil, eris.Errorf("metric: reference %s has no usable rows", path)
	}
	zap.L().Info("metric: reference loaded", zap.String("path", path), zap.Int("metrics", len(ref)))
	return ref, nil
}
