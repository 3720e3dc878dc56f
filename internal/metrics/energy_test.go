package metrics

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/arendil/modalsolve/internal/ode"
)

// An undamped free vibration conserves mechanical energy; the exact
// integrator should hold the total to round-off over the whole run.
func TestEnergyConservation(t *testing.T) {
	omega := 2 * math.Pi * 4
	m := mat.NewDense(1, 1, []float64{2})
	c := mat.NewDense(1, 1, nil)
	k := mat.NewDense(1, 1, []float64{2 * omega * omega})

	resp, err := ode.Solve(context.Background(), m, c, k, 0.001,
		mat.NewDense(1, 2000, nil), []float64{0.1}, nil)
	if err != nil {
		t.Fatal(err)
	}

	h := Energy(resp, m, k)

	want := 0.5 * 2 * omega * omega * 0.1 * 0.1 // all strain at t=0
	if math.Abs(h.Total[0]-want)/want > 1e-12 {
		t.Fatalf("initial energy %g, want %g", h.Total[0], want)
	}
	if h.Kinetic[0] != 0 {
		t.Fatalf("initial kinetic energy %g, want 0", h.Kinetic[0])
	}
	if drift := h.MaxDrift(); drift > 1e-9 {
		t.Fatalf("energy drift %g", drift)
	}
}

// Damping must bleed energy monotonically in free vibration.
func TestEnergyDecaysWithDamping(t *testing.T) {
	omega := 2 * math.Pi * 4
	m := mat.NewDense(1, 1, []float64{1})
	c := mat.NewDense(1, 1, []float64{2 * 0.1 * omega})
	k := mat.NewDense(1, 1, []float64{omega * omega})

	resp, err := ode.Solve(context.Background(), m, c, k, 0.001,
		mat.NewDense(1, 3000, nil), []float64{0.1}, nil)
	if err != nil {
		t.Fatal(err)
	}

	h := Energy(resp, m, k)
	if h.Total[len(h.Total)-1] > 0.01*h.Total[0] {
		t.Fatalf("energy did not decay: start %g, end %g", h.Total[0], h.Total[len(h.Total)-1])
	}
	if h.MaxDrift() < 0.9 {
		t.Fatalf("drift %g should approach 1 for a fully decayed run", h.MaxDrift())
	}
}

func TestEnergyDriftOnQuietStart(t *testing.T) {
	h := &EnergyHistory{Total: []float64{0, 1, 4, 2}}
	if got := h.MaxDrift(); got != 1 {
		t.Fatalf("drift %g, want 1 (scaled by peak)", got)
	}
	if (&EnergyHistory{}).MaxDrift() != 0 {
		t.Fatal("empty history should have zero drift")
	}
	if got := h.Peak(); got != 4 {
		t.Fatalf("peak %g, want 4", got)
	}
}
