package srs

import (
	"errors"
	"math"
	"testing"
)

func sine(freq, sr float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sr)
	}
	return out
}

func TestParseResponseType(t *testing.T) {
	tests := []struct {
		in      string
		want    ResponseType
		wantErr bool
	}{
		{"", AbsAccel, false},
		{"absacce", AbsAccel, false},
		{"relacce", RelAccel, false},
		{"reldisp", RelDisp, false},
		{"relvelo", RelVel, false},
		{"pvelo", PseudoVel, false},
		{"pacce", PseudoAccel, false},
		{"bogus", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseResponseType(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseResponseType(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseResponseType(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseResponseType(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if tc.in != "" && got.String() != tc.in {
			t.Errorf("%v.String() = %q, want %q", got, got.String(), tc.in)
		}
	}
}

// A long sine at the oscillator's own frequency must be amplified by the
// steady-state transmissibility, roughly Q. Off resonance the oscillator
// follows the base with gain near one.
func TestResonantSineAmplification(t *testing.T) {
	sr := 1000.0
	sig := sine(10, sr, 5000)
	q := 10.0

	spec, err := Spectrum(sig, sr, []float64{10, 100}, q, Options{Resp: AbsAccel})
	if err != nil {
		t.Fatal(err)
	}

	zeta := 1 / (2 * q)
	wantRes := math.Sqrt(1+4*zeta*zeta) / (2 * zeta)
	if math.Abs(spec[0]-wantRes)/wantRes > 0.05 {
		t.Errorf("resonant gain %g, want about %g", spec[0], wantRes)
	}
	if math.Abs(spec[1]-1) > 0.05 {
		t.Errorf("stiff-oscillator gain %g, want about 1", spec[1])
	}
}

func TestZeroSignal(t *testing.T) {
	spec, err := Spectrum(make([]float64, 256), 100, []float64{1, 10, 40}, 10, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range spec {
		if v != 0 {
			t.Errorf("freq %d: zero input gave %g", i, v)
		}
	}
}

func TestSpectrumValidation(t *testing.T) {
	sig := sine(5, 100, 64)

	if _, err := Spectrum(nil, 100, []float64{1}, 10, Options{}); err == nil {
		t.Error("empty signal accepted")
	}
	if _, err := Spectrum(sig, 0, []float64{1}, 10, Options{}); err == nil {
		t.Error("zero sample rate accepted")
	}
	if _, err := Spectrum(sig, 100, []float64{-3}, 10, Options{}); err == nil {
		t.Error("negative frequency accepted")
	}
	if _, err := Spectrum(sig, 100, []float64{1}, 0.5, Options{}); !errors.Is(err, errBadQ) {
		t.Errorf("Q=0.5: got %v", err)
	}
}

// The wn=0 relative-displacement taps are a Simpson double integrator: a
// unit step of base acceleration sums exactly to -(t^2 + t*dt)/2 - dt^2/6,
// which tends to -t^2/2 in the continuum.
func TestRelDispRigidLimit(t *testing.T) {
	dt := 0.001
	n := 2000
	b, a := Coefficients(RelDisp, 10, dt, 0)

	x := make([]float64, n)
	for i := range x {
		x[i] = 1
	}
	y := make([]float64, n)
	iir3(b, a, x, y)

	for k := 100; k < n; k += 100 {
		tv := float64(k) * dt
		want := -(tv*tv+tv*dt)/2 - dt*dt/6
		if math.Abs(y[k]-want)/math.Abs(want) > 1e-9 {
			t.Errorf("k=%d: got %.15g, want %.15g", k, y[k], want)
		}
	}

	last := float64(n-1) * dt
	if math.Abs(y[n-1]+last*last/2)/(last*last/2) > 1e-3 {
		t.Errorf("continuum limit: got %g, want about %g", y[n-1], -last*last/2)
	}
}

// Pseudo-velocity is relative displacement scaled by wn, so the taps must
// differ by exactly that factor.
func TestPseudoVelocityScaling(t *testing.T) {
	q, dt, wn := 8.0, 0.0005, 2*math.Pi*30
	bd, ad := Coefficients(RelDisp, q, dt, wn)
	bv, av := Coefficients(PseudoVel, q, dt, wn)

	for i := 0; i < 3; i++ {
		if math.Abs(bv[i]-wn*bd[i]) > 1e-12*math.Abs(bv[i]) {
			t.Errorf("b[%d]: pvelo %g, wn*reldisp %g", i, bv[i], wn*bd[i])
		}
		if av[i] != ad[i] {
			t.Errorf("a[%d]: pvelo %g, reldisp %g", i, av[i], ad[i])
		}
	}
}

// A slow sample rate relative to the spectrum frequency triggers linear
// upsampling; the resonant estimate must stay close to the high-rate answer.
func TestUpsampledSweepConsistency(t *testing.T) {
	q := 10.0
	freq := 10.0

	coarse := sine(freq, 80, 400)  // 8 points per cycle, factor 2 upsample
	fine := sine(freq, 1000, 5000) // reference, no upsampling

	specCoarse, err := Spectrum(coarse, 80, []float64{freq}, q, Options{})
	if err != nil {
		t.Fatal(err)
	}
	specFine, err := Spectrum(fine, 1000, []float64{freq}, q, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(specCoarse[0]-specFine[0])/specFine[0] > 0.15 {
		t.Errorf("coarse %g vs fine %g", specCoarse[0], specFine[0])
	}
}

func TestWorkerCountInvariance(t *testing.T) {
	sig := sine(7, 200, 1024)
	freqs := []float64{1, 2, 5, 7, 11, 20, 40}

	one, err := Spectrum(sig, 200, freqs, 10, Options{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	four, err := Spectrum(sig, 200, freqs, 10, Options{Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	for i := range one {
		if one[i] != four[i] {
			t.Errorf("freq %g: workers changed result: %g vs %g", freqs[i], one[i], four[i])
		}
	}
}

func TestPeakMethods(t *testing.T) {
	sig := []float64{0, 0.5, -2, 1, 0}
	// wn=0 relacce taps pass the negated second difference through; just
	// check the reductions directly.
	tests := []struct {
		m    Method
		want float64
	}{
		{Abs, 2},
		{Pos, 1},
		{Neg, -2},
	}
	for _, tc := range tests {
		if got := reduce(tc.m, sig); got != tc.want {
			t.Errorf("method %v: got %g, want %g", tc.m, got, tc.want)
		}
	}
	rms := reduce(RMS, sig)
	want := math.Sqrt((0.25 + 4 + 1) / 5)
	if math.Abs(rms-want) > 1e-12 {
		t.Errorf("rms: got %g, want %g", rms, want)
	}
}
