package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
)

// readCSV loads a numeric table whose last column is the target. A first row
// that does not parse as numbers is treated as a header.
func readCSV(path string) (*mat.Dense, *mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, scigoErrors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return parseCSV(f, path)
}

func parseCSV(r io.Reader, name string) (*mat.Dense, *mat.Dense, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, scigoErrors.Wrapf(err, "read %s", name)
	}
	if len(records) > 0 {
		if _, err := parseRow(records[0]); err != nil {
			records = records[1:]
		}
	}
	if len(records) == 0 {
		return nil, nil, scigoErrors.Wrapf(scigoErrors.ErrEmptyData, "%s has no data rows", name)
	}

	cols := len(records[0])
	if cols < 2 {
		return nil, nil, scigoErrors.NewValueError("readCSV", "need at least one feature column and a target column")
	}
	n := len(records)
	X := mat.NewDense(n, cols-1, nil)
	y := mat.NewDense(n, 1, nil)
	for i, rec := range records {
		if len(rec) != cols {
			return nil, nil, scigoErrors.NewDimensionError("readCSV", cols, len(rec), 1)
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, nil, scigoErrors.Wrapf(err, "%s line %d", name, i+1)
		}
		X.SetRow(i, row[:cols-1])
		y.Set(i, 0, row[cols-1])
	}
	return X, y, nil
}

func parseRow(rec []string) ([]float64, error) {
	out := make([]float64, len(rec))
	for j, field := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "column %d", j)
		}
		out[j] = v
	}
	return out, nil
}
