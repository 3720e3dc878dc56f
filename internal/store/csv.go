package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// ReadForceCSV reads a force history with one column per DOF and one row per
// sample, returning the n-by-m matrix the solver consumes. A leading header
// row is skipped when its first cell is not numeric.
func ReadForceCSV(path string) (*mat.Dense, error) {
	rows, err := readNumericCSV(path)
	if err != nil {
		return nil, err
	}
	n := len(rows[0])
	m := len(rows)
	f := mat.NewDense(n, m, nil)
	for k, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("store: %s: row %d has %d columns, want %d", path, k, len(row), n)
		}
		for i, v := range row {
			f.Set(i, k, v)
		}
	}
	return f, nil
}

// ReadSignalCSV reads a single-channel signal, taking the first column when
// several are present.
func ReadSignalCSV(path string) ([]float64, error) {
	rows, err := readNumericCSV(path)
	if err != nil {
		return nil, err
	}
	sig := make([]float64, len(rows))
	for k, row := range rows {
		sig[k] = row[0]
	}
	return sig, nil
}

func readNumericCSV(path string) ([][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("store: %s is empty", path)
	}
	if _, err := strconv.ParseFloat(records[0][0], 64); err != nil {
		records = records[1:] // header row
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("store: %s has no data rows", path)
	}

	out := make([][]float64, 0, len(records))
	for _, rec := range records {
		row := make([]float64, len(rec))
		for j, cell := range rec {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("store: %s: bad value %q", path, cell)
			}
			row[j] = v
		}
		out = append(out, row)
	}
	return out, nil
}
