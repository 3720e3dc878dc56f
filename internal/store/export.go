package store

import (
	"encoding/json"
	"os"
)

// ExportData is the flat JSON form of a run used by downstream reporting
// tools.
type ExportData struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Dt      float64     `json:"dt"`
	Samples int         `json:"samples"`
	Time    []float64   `json:"time"`
	Disp    [][]float64 `json:"disp"`
	Vel     [][]float64 `json:"vel"`
	Acc     [][]float64 `json:"acc"`
}

// ExportJSON writes one run as a standalone JSON document.
func ExportJSON(path string, run *Run) error {
	data := ExportData{
		ID:      run.Meta.ID,
		Name:    run.Meta.Name,
		Dt:      run.Meta.Dt,
		Samples: len(run.Time),
		Time:    run.Time,
		Disp:    run.Disp,
		Vel:     run.Vel,
		Acc:     run.Acc,
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
