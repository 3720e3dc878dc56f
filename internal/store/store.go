// Package store persists solve runs under a data directory, one run per
// folder with metadata.json and response.csv.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/arendil/modalsolve/internal/ode"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Dt        float64   `json:"dt"`
	DOFs      int       `json:"dofs"`
	Samples   int       `json:"samples"`
	Order     string    `json:"order"`
	Coupled   bool      `json:"coupled"`
	Warnings  []string  `json:"warnings,omitempty"`
	Elapsed   string    `json:"elapsed"`
}

// Save writes one run directory and returns its id.
func (s *Store) Save(name string, solver *ode.Solver, resp *ode.Response, elapsed time.Duration) (string, error) {
	runID := fmt.Sprintf("%s_%d", name, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	var warnings []string
	for _, w := range solver.Warnings() {
		warnings = append(warnings, w.String())
	}
	meta := RunMetadata{
		ID:        runID,
		Name:      name,
		Timestamp: time.Now(),
		Dt:        resp.Dt,
		DOFs:      resp.DOFs(),
		Samples:   resp.Samples(),
		Order:     solver.Order().String(),
		Coupled:   solver.System().Coupled,
		Warnings:  warnings,
		Elapsed:   elapsed.String(),
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "response.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	n := resp.DOFs()
	header := []string{"time"}
	for _, prefix := range []string{"x", "v", "a"} {
		for i := 0; i < n; i++ {
			header = append(header, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	row := make([]string, 0, 1+3*n)
	for k := 0; k < resp.Samples(); k++ {
		row = row[:0]
		row = append(row, strconv.FormatFloat(resp.Time[k], 'g', -1, 64))
		for i := 0; i < n; i++ {
			row = append(row, strconv.FormatFloat(resp.Disp.At(i, k), 'g', -1, 64))
		}
		for i := 0; i < n; i++ {
			row = append(row, strconv.FormatFloat(resp.Vel.At(i, k), 'g', -1, 64))
		}
		for i := 0; i < n; i++ {
			row = append(row, strconv.FormatFloat(resp.Acc.At(i, k), 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

// Run is a loaded response history, one row slice per DOF.
type Run struct {
	Meta RunMetadata
	Time []float64
	Disp [][]float64
	Vel  [][]float64
	Acc  [][]float64
}

func (s *Store) Load(runID string) (*Run, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, "response.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("store: run %s has no samples", runID)
	}

	n := meta.DOFs
	if got := len(records[0]); got != 1+3*n {
		return nil, fmt.Errorf("store: run %s has %d columns, want %d", runID, got, 1+3*n)
	}

	run := &Run{
		Meta: meta,
		Disp: make([][]float64, n),
		Vel:  make([][]float64, n),
		Acc:  make([][]float64, n),
	}
	for _, rec := range records[1:] {
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("store: bad time value %q", rec[0])
		}
		run.Time = append(run.Time, t)
		for i := 0; i < n; i++ {
			x, err1 := strconv.ParseFloat(rec[1+i], 64)
			v, err2 := strconv.ParseFloat(rec[1+n+i], 64)
			a, err3 := strconv.ParseFloat(rec[1+2*n+i], 64)
			if err1 != nil || err2 != nil || err3 != nil {
				return nil, fmt.Errorf("store: bad sample row in run %s", runID)
			}
			run.Disp[i] = append(run.Disp[i], x)
			run.Vel[i] = append(run.Vel[i], v)
			run.Acc[i] = append(run.Acc[i], a)
		}
	}
	return run, nil
}
