package ode

import (
	"fmt"
	"math"
	"strings"
)

// Order selects how the forcing is interpolated across each time step.
type Order int

const (
	// Constant holds each force sample over the full step.
	Constant Order = iota
	// Linear ramps the force between consecutive samples. This is the
	// default and matches sampled test data well.
	Linear
	// Quadratic fits a local parabola through three consecutive samples.
	Quadratic
)

// Window returns how many force samples a step of this order consumes.
func (o Order) Window() int {
	switch o {
	case Constant:
		return 1
	case Linear:
		return 2
	default:
		return 3
	}
}

func (o Order) String() string {
	switch o {
	case Constant:
		return "constant"
	case Linear:
		return "linear"
	case Quadratic:
		return "quadratic"
	}
	return fmt.Sprintf("order(%d)", int(o))
}

// ParseOrder maps a config string to an Order. The empty string selects
// Linear.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return Linear, nil
	case "constant", "zoh":
		return Constant, nil
	case "quadratic":
		return Quadratic, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedOrder, s)
}

// Regime classifies a mode by frequency and damping ratio. The step loop
// never branches on it; it only selects which closed form builds the
// transition pair.
type Regime uint8

const (
	RigidBody Regime = iota
	Underdamped
	CriticallyDamped
	Overdamped
)

func (r Regime) String() string {
	switch r {
	case RigidBody:
		return "rigid-body"
	case Underdamped:
		return "underdamped"
	case CriticallyDamped:
		return "critically-damped"
	case Overdamped:
		return "overdamped"
	}
	return "unknown"
}

// Default classification tolerances. Both are policy knobs, not physics;
// override them with solver options if the defaults do not suit the model.
const (
	// DefaultRigidTol is the frequency (rad/s) below which a mode is
	// treated as rigid-body and integrated directly.
	DefaultRigidTol = 0.005

	// DefaultCriticalTol is the half-width of the |zeta-1| band snapped to
	// the critically damped closed form.
	DefaultCriticalTol = 1e-8
)

// Pair is the exact discrete update for one mode over a fixed step:
//
//	state[k+1] = A*state[k] + B*force[k : k+window]
//
// with state = (modal displacement, modal velocity). A and B are closed
// forms, so the recurrence is unconditionally stable for any step size.
type Pair struct {
	Regime Regime
	Order  Order
	A      [2][2]float64
	B      [2][3]float64 // only the first Order.Window() columns are used
}

// NewPair builds the transition pair for a single mode given its natural
// frequency (rad/s), damping ratio and step size. Negative frequencies are
// rejected with a DegenerateModeError.
func NewPair(omega, zeta, dt float64, order Order) (Pair, error) {
	if omega < 0 {
		return Pair{}, &DegenerateModeError{Mode: 0, Omega2: -omega * omega}
	}
	if order < Constant || order > Quadratic {
		return Pair{}, fmt.Errorf("%w: %d", ErrUnsupportedOrder, int(order))
	}
	return newPair(omega, 2*zeta*omega, dt, order, DefaultRigidTol, DefaultCriticalTol), nil
}

// newPair is the internal builder. It takes the modal damping coefficient
// (2*zeta*omega) rather than zeta so rigid-body modes, where zeta is
// undefined, stay representable.
func newPair(omega, damp, dt float64, order Order, rigidTol, critTol float64) Pair {
	p := Pair{Order: order}

	var i0, i1, i2 [2][2]float64
	if omega <= rigidTol {
		p.Regime = RigidBody
		if damp <= rigidTol {
			p.A, i0, i1, i2 = rigidFree(dt)
		} else {
			p.A, i0, i1, i2 = rigidDamped(damp, dt)
		}
	} else {
		zeta := damp / (2 * omega)
		switch {
		case math.Abs(zeta-1) <= critTol:
			p.Regime = CriticallyDamped
			damp = 2 * omega // snap to the repeated-root form
			p.A = criticalA(omega, dt)
		case zeta < 1:
			p.Regime = Underdamped
			p.A = underdampedA(omega, zeta, dt)
		default:
			p.Regime = Overdamped
			p.A = overdampedA(omega, zeta, dt)
		}
		i0, i1, i2 = momentIntegrals(p.A, omega, damp, dt)
	}

	p.B = forceColumns(order, dt, i0, i1, i2)
	return p
}

// underdampedA is exp(F*dt) on the decaying-sinusoid basis.
func underdampedA(omega, zeta, dt float64) [2][2]float64 {
	wd := omega * math.Sqrt(1-zeta*zeta)
	e := math.Exp(-zeta * omega * dt)
	s := math.Sin(wd * dt)
	c := math.Cos(wd * dt)
	zw := zeta * omega
	return [2][2]float64{
		{e * (c + zw*s/wd), e * s / wd},
		{-e * omega * omega * s / wd, e * (c - zw*s/wd)},
	}
}

// criticalA is the repeated-root limit: exp(F*dt) = e^{-w dt}(I + (F+wI)dt).
// The singularity is removed analytically, not suppressed numerically.
func criticalA(omega, dt float64) [2][2]float64 {
	e := math.Exp(-omega * dt)
	return [2][2]float64{
		{e * (1 + omega*dt), e * dt},
		{-e * omega * omega * dt, e * (1 - omega*dt)},
	}
}

// overdampedA is exp(F*dt) on the hyperbolic basis.
func overdampedA(omega, zeta, dt float64) [2][2]float64 {
	wh := omega * math.Sqrt(zeta*zeta-1)
	e := math.Exp(-zeta * omega * dt)
	sh := math.Sinh(wh * dt)
	ch := math.Cosh(wh * dt)
	zw := zeta * omega
	return [2][2]float64{
		{e * (ch + zw*sh/wh), e * sh / wh},
		{-e * omega * omega * sh / wh, e * (ch - zw*sh/wh)},
	}
}

// momentIntegrals computes In = integral of exp(F*u)*u^n du over the step
// for n = 0, 1, 2 using the recursion In = Finv*(dt^n*A - n*I(n-1)). F is
// invertible here since omega > 0.
func momentIntegrals(a [2][2]float64, omega, damp, dt float64) (i0, i1, i2 [2][2]float64) {
	w2 := omega * omega
	finv := [2][2]float64{
		{-damp / w2, -1 / w2},
		{1, 0},
	}
	am := a
	am[0][0] -= 1
	am[1][1] -= 1
	i0 = mul2(finv, am)
	i1 = mul2(finv, sub2(scale2(a, dt), i0))
	i2 = mul2(finv, sub2(scale2(a, dt*dt), scale2(i1, 2)))
	return i0, i1, i2
}

// rigidFree is the zero-frequency closed form: pure double integration of
// force, no division by omega anywhere.
func rigidFree(dt float64) (a, i0, i1, i2 [2][2]float64) {
	a = [2][2]float64{{1, dt}, {0, 1}}
	i0 = [2][2]float64{{dt, dt * dt / 2}, {0, dt}}
	i1 = [2][2]float64{{dt * dt / 2, dt * dt * dt / 3}, {0, dt * dt / 2}}
	i2 = [2][2]float64{{dt * dt * dt / 3, dt * dt * dt * dt / 4}, {0, dt * dt * dt / 3}}
	return a, i0, i1, i2
}

// rigidDamped handles zero stiffness with non-negligible modal damping d:
// velocity decays as e^{-d t} while displacement integrates it. The closed
// forms of the force moments are differences of near-equal terms that cancel
// to nothing as d*dt shrinks, so below the seam they are summed as series.
func rigidDamped(d, dt float64) (a, i0, i1, i2 [2][2]float64) {
	x := d * dt
	em1 := -math.Expm1(-x) // 1 - e^{-d*dt}, stable for small d*dt
	e := 1 - em1
	g := em1 / d

	a = [2][2]float64{{1, g}, {0, e}}

	// m_n = integral of u^n e^{-d u}, w_n = integral of u^n (1-e^{-d u})/d
	// over the step; they fill the velocity and displacement rows of I_n.
	var m1, m2, w0, w1, w2 float64
	if x < momentSeriesCut {
		m1 = dt * dt * decaySeries(1, x)
		m2 = dt * dt * dt * decaySeries(2, x)
		w0 = dt * dt * lagSeries(0, x)
		w1 = dt * dt * dt * lagSeries(1, x)
		w2 = dt * dt * dt * dt * lagSeries(2, x)
	} else {
		m1 = (1 - (1+x)*e) / (d * d)
		m2 = (2 - (2+2*x+x*x)*e) / (d * d * d)
		w0 = (x - em1) / (d * d)
		w1 = (dt*dt/2 - m1) / d
		w2 = (dt*dt*dt/3 - m2) / d
	}

	i0 = [2][2]float64{{dt, w0}, {0, g}}
	i1 = [2][2]float64{{dt * dt / 2, w1}, {0, m1}}
	i2 = [2][2]float64{{dt * dt * dt / 3, w2}, {0, m2}}
	return a, i0, i1, i2
}

// momentSeriesCut is where the alternating series and the closed forms meet
// at comparable round-off; eleven terms hold the series under 1e-13 there.
const momentSeriesCut = 0.05

// decaySeries sums integral_0^dt u^n e^{-d u} du / dt^(n+1) in x = d*dt.
func decaySeries(n int, x float64) float64 {
	sum, term := 0.0, 1.0 // term = (-x)^k / k!
	for k := 0; k <= 10; k++ {
		sum += term / float64(n+k+1)
		term *= -x / float64(k+1)
	}
	return sum
}

// lagSeries sums integral_0^dt u^n (1-e^{-d u})/d du / dt^(n+2) in x = d*dt.
func lagSeries(n int, x float64) float64 {
	sum, term := 0.0, 1.0 // term = (-x)^k / (k+1)!
	for k := 0; k <= 10; k++ {
		sum += term / float64(n+k+2)
		term *= -x / float64(k+2)
	}
	return sum
}

// forceColumns turns the moment integrals into the B columns for the chosen
// interpolation order. Only the second column of each In matters since the
// force enters through L = (0, 1).
func forceColumns(order Order, dt float64, i0, i1, i2 [2][2]float64) [2][3]float64 {
	l0 := [2]float64{i0[0][1], i0[1][1]}
	l1 := [2]float64{i1[0][1], i1[1][1]}
	l2 := [2]float64{i2[0][1], i2[1][1]}

	var b [2][3]float64
	switch order {
	case Constant:
		b[0][0], b[1][0] = l0[0], l0[1]
	case Linear:
		for r := 0; r < 2; r++ {
			b[r][0] = l1[r] / dt
			b[r][1] = l0[r] - l1[r]/dt
		}
	case Quadratic:
		d2 := dt * dt
		for r := 0; r < 2; r++ {
			b[r][0] = (l2[r] + dt*l1[r]) / (2 * d2)
			b[r][1] = (d2*l0[r] - l2[r]) / d2
			b[r][2] = (l2[r] - dt*l1[r]) / (2 * d2)
		}
	}
	return b
}

func mul2(a, b [2][2]float64) [2][2]float64 {
	return [2][2]float64{
		{a[0][0]*b[0][0] + a[0][1]*b[1][0], a[0][0]*b[0][1] + a[0][1]*b[1][1]},
		{a[1][0]*b[0][0] + a[1][1]*b[1][0], a[1][0]*b[0][1] + a[1][1]*b[1][1]},
	}
}

func sub2(a, b [2][2]float64) [2][2]float64 {
	return [2][2]float64{
		{a[0][0] - b[0][0], a[0][1] - b[0][1]},
		{a[1][0] - b[1][0], a[1][1] - b[1][1]},
	}
}

func scale2(a [2][2]float64, f float64) [2][2]float64 {
	return [2][2]float64{
		{a[0][0] * f, a[0][1] * f},
		{a[1][0] * f, a[1][1] * f},
	}
}
