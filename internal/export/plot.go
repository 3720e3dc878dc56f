// Package export renders response histories and shock spectra to image
// files.
package export

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/arendil/modalsolve/internal/store"
)

// ResponsePNG plots one channel kind ("disp", "vel" or "acc") of a stored
// run, one line per DOF.
func ResponsePNG(path string, run *store.Run, kind string) error {
	var rows [][]float64
	var label string
	switch kind {
	case "disp":
		rows, label = run.Disp, "displacement"
	case "vel":
		rows, label = run.Vel, "velocity"
	case "acc":
		rows, label = run.Acc, "acceleration"
	default:
		return fmt.Errorf("export: unknown channel kind %q", kind)
	}

	p := plot.New()
	p.Title.Text = run.Meta.Name
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = label
	p.Add(plotter.NewGrid())

	for i, row := range rows {
		xys := make(plotter.XYs, len(row))
		for k, v := range row {
			xys[k].X = run.Time[k]
			xys[k].Y = v
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("dof %d", i), line)
	}

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}

// SpectrumPNG plots a shock response spectrum on log-log axes.
func SpectrumPNG(path string, freqs, spec []float64, title string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "frequency (Hz)"
	p.Y.Label.Text = "peak response"
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, 0, len(freqs))
	for i := range freqs {
		if spec[i] <= 0 {
			continue // log scale cannot place zeros
		}
		xys = append(xys, plotter.XY{X: freqs[i], Y: spec[i]})
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	p.Add(line)

	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}
