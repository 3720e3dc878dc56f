// Package srs computes shock response spectra from base-acceleration
// signals.
//
// Each spectrum frequency is an independent single-DOF oscillator riding the
// base motion. The oscillator response is produced by an exact recursive
// digital filter whose coefficients are closed forms in (Q, dt, wn), so the
// sweep is stable and exact for any sample rate; signals with too few points
// per cycle are linearly upsampled first.
package srs

import (
	"errors"
	"fmt"
	"math"

	"github.com/arendil/modalsolve/internal/ode"
)

// ResponseType selects which oscillator quantity the spectrum reports.
type ResponseType int

const (
	// AbsAccel is the absolute acceleration of the oscillator mass.
	AbsAccel ResponseType = iota
	// RelAccel is the acceleration relative to the base.
	RelAccel
	// RelDisp is the displacement relative to the base.
	RelDisp
	// RelVel is the velocity relative to the base.
	RelVel
	// PseudoVel is relative displacement times wn.
	PseudoVel
	// PseudoAccel is relative displacement times wn squared.
	PseudoAccel
)

func (r ResponseType) String() string {
	switch r {
	case AbsAccel:
		return "absacce"
	case RelAccel:
		return "relacce"
	case RelDisp:
		return "reldisp"
	case RelVel:
		return "relvelo"
	case PseudoVel:
		return "pvelo"
	case PseudoAccel:
		return "pacce"
	}
	return fmt.Sprintf("response(%d)", int(r))
}

// ParseResponseType maps a config string to a ResponseType.
func ParseResponseType(s string) (ResponseType, error) {
	switch s {
	case "", "absacce":
		return AbsAccel, nil
	case "relacce":
		return RelAccel, nil
	case "reldisp":
		return RelDisp, nil
	case "relvelo":
		return RelVel, nil
	case "pvelo":
		return PseudoVel, nil
	case "pacce":
		return PseudoAccel, nil
	}
	return 0, fmt.Errorf("srs: unknown response type %q", s)
}

// Method reduces a response history to one spectrum value.
type Method int

const (
	// Abs takes the largest magnitude (default).
	Abs Method = iota
	// Pos takes the largest positive excursion.
	Pos
	// Neg takes the largest negative excursion.
	Neg
	// RMS takes the root-mean-square of the history.
	RMS
)

// Options tunes a spectrum sweep.
type Options struct {
	Resp    ResponseType
	Method  Method
	PPC     float64 // minimum points per cycle before upsampling, default 10
	Workers int
}

var errBadQ = errors.New("srs: Q must be greater than 0.5")

// Spectrum sweeps the frequencies (Hz) over the base-acceleration signal
// sampled at sr (Hz) and returns one spectrum value per frequency. Q is the
// dimensionless quality factor, Q = 1/(2*zeta).
func Spectrum(sig []float64, sr float64, freqs []float64, q float64, opt Options) ([]float64, error) {
	if len(sig) == 0 {
		return nil, errors.New("srs: empty signal")
	}
	if sr <= 0 {
		return nil, fmt.Errorf("srs: sample rate must be positive, got %g", sr)
	}
	if q <= 0.5 {
		return nil, errBadQ
	}
	for _, f := range freqs {
		if f < 0 {
			return nil, fmt.Errorf("srs: negative spectrum frequency %g", f)
		}
	}
	ppc := opt.PPC
	if ppc <= 0 {
		ppc = 10
	}

	// Upsampled copies shared by all frequencies needing the same factor.
	// Built up front so the parallel sweep stays read-only.
	upsampled := map[int][]float64{1: sig}
	for _, f := range freqs {
		if fac := rollFactor(f, sr, ppc); fac > 1 {
			if _, ok := upsampled[fac]; !ok {
				upsampled[fac] = lerpResample(sig, fac)
			}
		}
	}

	out := make([]float64, len(freqs))
	ode.ParallelFor(len(freqs), opt.Workers, func(start, end int) {
		resp := make([]float64, 0, len(sig))
		for i := start; i < end; i++ {
			fac := rollFactor(freqs[i], sr, ppc)
			s := upsampled[fac]
			dt := 1 / (sr * float64(fac))
			b, a := Coefficients(opt.Resp, q, dt, 2*math.Pi*freqs[i])

			if cap(resp) < len(s) {
				resp = make([]float64, len(s))
			}
			resp = resp[:len(s)]
			iir3(b, a, s, resp)
			out[i] = reduce(opt.Method, resp)
		}
	})
	return out, nil
}

// Coefficients returns the (b, a) taps of the exact recursive filter for one
// oscillator. wn is in rad/s; wn = 0 degenerates to the closed rigid forms.
// q must exceed 1/2 (a subcritical oscillator), otherwise the damped
// frequency is undefined and the taps come out NaN; Spectrum rejects such a
// Q before reaching here, callers using the taps directly must do the same.
func Coefficients(rt ResponseType, q, dt, wn float64) (b, a [3]float64) {
	zeta := 1 / (2 * q)
	sqz := math.Sqrt(1 - zeta*zeta)
	wd := wn * sqz
	e := math.Exp(-zeta * wn * dt)
	e2 := e * e
	bb := dt * wd
	c := e * math.Cos(bb)
	s := e * math.Sin(bb)

	a = [3]float64{1, -2 * c, e2}

	switch rt {
	case AbsAccel:
		if wn == 0 {
			return [3]float64{}, a
		}
		sb := s / bb
		return [3]float64{1 - sb, 2 * (sb - c), e2 - sb}, a

	case RelAccel:
		b = [3]float64{-1, 2, -1}
		if wn != 0 {
			for i := range b {
				b[i] *= s / bb
			}
		}
		return b, a

	case RelDisp, PseudoVel, PseudoAccel:
		var f float64
		switch rt {
		case RelDisp:
			f = dt * wn * wn * wn
		case PseudoVel:
			f = dt * wn * wn
		default:
			f = dt * wn
		}
		if wn == 0 {
			if rt == RelDisp {
				d2 := dt * dt / 6
				return [3]float64{-d2, -4 * d2, -d2}, a
			}
			return [3]float64{}, a
		}
		qq := (2*zeta*zeta - 1) / sqz
		return [3]float64{
			((1-c)/q - qq*s - wn*dt) / f,
			(2*c*wn*dt - (1-e2)/q + 2*qq*s) / f,
			(-e2*(wn*dt+1/q) + c/q - qq*s) / f,
		}, a

	case RelVel:
		if wn == 0 {
			return [3]float64{-dt / 2, -dt / 2, 0}, [3]float64{1, -1, 0}
		}
		sz := s * zeta / sqz
		f := dt * wn * wn
		return [3]float64{
			(c + sz - 1) / f,
			(1 - e2 - 2*sz) / f,
			(e2 + sz - c) / f,
		}, a
	}
	return b, a
}

// iir3 applies the 3-tap recursive filter in transposed direct form II.
// a[0] is assumed 1.
func iir3(b, a [3]float64, x, y []float64) {
	var z1, z2 float64
	for i, xi := range x {
		yi := b[0]*xi + z1
		z1 = b[1]*xi - a[1]*yi + z2
		z2 = b[2]*xi - a[2]*yi
		y[i] = yi
	}
}

func reduce(m Method, resp []float64) float64 {
	switch m {
	case Pos:
		best := resp[0]
		for _, v := range resp[1:] {
			if v > best {
				best = v
			}
		}
		return best
	case Neg:
		best := resp[0]
		for _, v := range resp[1:] {
			if v < best {
				best = v
			}
		}
		return best
	case RMS:
		sum := 0.0
		for _, v := range resp {
			sum += v * v
		}
		return math.Sqrt(sum / float64(len(resp)))
	}
	best := 0.0
	for _, v := range resp {
		if av := math.Abs(v); av > best {
			best = av
		}
	}
	return best
}

// rollFactor is the integer upsampling factor needed to give frequency f at
// least ppc points per cycle.
func rollFactor(f, sr, ppc float64) int {
	if f <= 0 {
		return 1
	}
	fac := int(math.Ceil(ppc * f / sr))
	if fac < 1 {
		fac = 1
	}
	return fac
}

// lerpResample inserts fac-1 linearly interpolated points between every pair
// of samples.
func lerpResample(sig []float64, fac int) []float64 {
	if len(sig) < 2 {
		return append([]float64(nil), sig...)
	}
	out := make([]float64, 0, (len(sig)-1)*fac+1)
	for i := 0; i+1 < len(sig); i++ {
		for j := 0; j < fac; j++ {
			t := float64(j) / float64(fac)
			out = append(out, sig[i]+(sig[i+1]-sig[i])*t)
		}
	}
	return append(out, sig[len(sig)-1])
}
