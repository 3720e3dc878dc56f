// Package metrics derives scalar quality measures from solved responses.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/arendil/modalsolve/internal/ode"
)

// EnergyHistory tracks the mechanical energy of every sample: kinetic
// 1/2 v'Mv, strain 1/2 x'Kx and their sum.
type EnergyHistory struct {
	Kinetic []float64
	Strain  []float64
	Total   []float64
}

// Energy evaluates the energy history of a response against the mass and
// stiffness matrices it was solved with.
func Energy(resp *ode.Response, m, k mat.Matrix) *EnergyHistory {
	samples := resp.Samples()
	h := &EnergyHistory{
		Kinetic: make([]float64, samples),
		Strain:  make([]float64, samples),
		Total:   make([]float64, samples),
	}

	n := resp.DOFs()
	x := mat.NewVecDense(n, nil)
	v := mat.NewVecDense(n, nil)
	var tmp mat.VecDense

	for s := 0; s < samples; s++ {
		for i := 0; i < n; i++ {
			x.SetVec(i, resp.Disp.At(i, s))
			v.SetVec(i, resp.Vel.At(i, s))
		}
		tmp.MulVec(m, v)
		h.Kinetic[s] = 0.5 * mat.Dot(v, &tmp)
		tmp.MulVec(k, x)
		h.Strain[s] = 0.5 * mat.Dot(x, &tmp)
		h.Total[s] = h.Kinetic[s] + h.Strain[s]
	}
	return h
}

// MaxDrift reports the largest deviation of total energy from its initial
// value, relative to the initial energy. With no initial energy the drift is
// measured against the peak instead, so a forced run still gets a finite
// number.
func (h *EnergyHistory) MaxDrift() float64 {
	if len(h.Total) == 0 {
		return 0
	}
	scale := math.Abs(h.Total[0])
	if scale == 0 {
		for _, e := range h.Total {
			scale = math.Max(scale, math.Abs(e))
		}
		if scale == 0 {
			return 0
		}
	}
	drift := 0.0
	for _, e := range h.Total {
		drift = math.Max(drift, math.Abs(e-h.Total[0])/scale)
	}
	return drift
}

// Peak reports the largest total mechanical energy in the history.
func (h *EnergyHistory) Peak() float64 {
	peak := 0.0
	for _, e := range h.Total {
		peak = math.Max(peak, e)
	}
	return peak
}
