package ode

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Response is the full time history of a solve: one row per DOF, one column
// per force sample. Sample 0 is the initial condition, not a stepped result.
type Response struct {
	Dt   float64
	Time []float64

	Disp *mat.Dense
	Vel  *mat.Dense
	Acc  *mat.Dense
}

func newResponse(dt float64, disp, vel, acc *mat.Dense) *Response {
	_, samples := disp.Dims()
	tv := make([]float64, samples)
	for k := range tv {
		tv[k] = float64(k) * dt
	}
	return &Response{Dt: dt, Time: tv, Disp: disp, Vel: vel, Acc: acc}
}

// DOFs reports the number of physical coordinates.
func (r *Response) DOFs() int {
	n, _ := r.Disp.Dims()
	return n
}

// Samples reports the history length.
func (r *Response) Samples() int {
	return len(r.Time)
}

// DispRow returns the displacement history of one DOF. The slice aliases the
// response storage; treat it as read-only.
func (r *Response) DispRow(dof int) []float64 { return r.Disp.RawRowView(dof) }

// VelRow returns the velocity history of one DOF.
func (r *Response) VelRow(dof int) []float64 { return r.Vel.RawRowView(dof) }

// AccRow returns the acceleration history of one DOF.
func (r *Response) AccRow(dof int) []float64 { return r.Acc.RawRowView(dof) }

// PeakDisp returns the time and signed value of the largest absolute
// displacement of one DOF.
func (r *Response) PeakDisp(dof int) (t, v float64) {
	row := r.Disp.RawRowView(dof)
	best := 0
	for k, x := range row {
		if math.Abs(x) > math.Abs(row[best]) {
			best = k
		}
	}
	return r.Time[best], row[best]
}
