package ode

import (
	"context"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

type options struct {
	order        Order
	workers      int
	rigidTol     float64
	criticalTol  float64
	couplingTol  float64
	repeatTol    float64
	forceCoupled bool
}

func defaultOptions() options {
	return options{
		order:       Linear,
		rigidTol:    DefaultRigidTol,
		criticalTol: DefaultCriticalTol,
		couplingTol: 1e-8,
		repeatTol:   1e-8,
	}
}

// Option configures solver construction.
type Option func(*options)

// WithOrder selects the force-interpolation order (default Linear).
func WithOrder(o Order) Option { return func(opt *options) { opt.order = o } }

// WithWorkers sets the number of goroutines used for the per-mode
// recurrences. Zero or negative selects GOMAXPROCS.
func WithWorkers(n int) Option { return func(opt *options) { opt.workers = n } }

// WithRigidTol overrides the frequency below which a mode is treated as
// rigid-body.
func WithRigidTol(w float64) Option { return func(opt *options) { opt.rigidTol = w } }

// WithCriticalTol overrides the |zeta-1| band snapped to the critically
// damped form.
func WithCriticalTol(tol float64) Option { return func(opt *options) { opt.criticalTol = tol } }

// WithCouplingTol overrides the off-diagonal tolerance deciding whether
// modal damping counts as proportional.
func WithCouplingTol(tol float64) Option { return func(opt *options) { opt.couplingTol = tol } }

// WithCoupledSolve forces the state-space path even for proportionally
// damped systems. Mainly useful for cross-checking the two formulations.
func WithCoupledSolve() Option { return func(opt *options) { opt.forceCoupled = true } }

// cpair is the complex-scalar analogue of Pair used on the state-space path.
type cpair struct {
	e complex128
	b [3]complex128
}

// Solver is a session bound to one (M, C, K, dt, order) tuple. Construction
// runs the eigendecomposition and builds every transition pair once; Solve
// is pure and can be called repeatedly with different force histories.
type Solver struct {
	n    int
	dt   float64
	opts options
	sys  *System

	pairs []Pair
	tail  []Pair // linear fallback for the last quadratic step
	cp    []cpair
	ctail []cpair

	chol  mat.Cholesky
	cd    *mat.Dense
	kd    *mat.Dense
	phiTM *mat.Dense // maps physical initial state to modal coordinates
}

// NewSolver validates and decomposes the system matrices and precomputes the
// per-mode transition pairs for the given uniform step size.
func NewSolver(m, c, k mat.Matrix, dt float64, opts ...Option) (*Solver, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("ode: dt must be positive, got %g", dt)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	md, cd, kd, err := checkMatrices(m, c, k)
	if err != nil {
		return nil, err
	}
	sys, err := decompose(md, cd, kd, o)
	if err != nil {
		return nil, err
	}

	s := &Solver{n: sys.N, dt: dt, opts: o, sys: sys, cd: cd, kd: kd}
	if !s.chol.Factorize(symmetrize(md)) {
		return nil, fmt.Errorf("%w: mass matrix is not positive definite", ErrDegenerateMode)
	}

	if sys.Coupled {
		s.cp = make([]cpair, len(sys.Lambda))
		s.ctail = make([]cpair, len(sys.Lambda))
		for i, lv := range sys.Lambda {
			s.cp[i] = newCPair(lv, dt, o.order)
			s.ctail[i] = newCPair(lv, dt, Linear)
		}
	} else {
		s.pairs = make([]Pair, len(sys.Omega))
		s.tail = make([]Pair, len(sys.Omega))
		for i := range sys.Omega {
			s.pairs[i] = newPair(sys.Omega[i], sys.Damp[i], dt, o.order, o.rigidTol, o.criticalTol)
			s.tail[i] = newPair(sys.Omega[i], sys.Damp[i], dt, Linear, o.rigidTol, o.criticalTol)
		}
		s.phiTM = &mat.Dense{}
		s.phiTM.Mul(sys.Shapes.T(), md)
	}
	return s, nil
}

// System exposes the decomposition behind this solver.
func (s *Solver) System() *System { return s.sys }

// DOFs reports the physical dimension of the system.
func (s *Solver) DOFs() int { return s.n }

// Dt reports the fixed step size the session was built for.
func (s *Solver) Dt() float64 { return s.dt }

// Order reports the force-interpolation order.
func (s *Solver) Order() Order { return s.opts.order }

// Warnings returns non-fatal numerical conditions recorded during
// decomposition.
func (s *Solver) Warnings() []InstabilityWarning { return s.sys.Warnings }

// Solve integrates the response to an n-by-m force history. Nil initial
// vectors mean starting from rest. The output holds exactly m samples per
// channel, and sample 0 equals the initial condition.
func (s *Solver) Solve(ctx context.Context, force mat.Matrix, x0, v0 []float64) (*Response, error) {
	fr, fc := force.Dims()
	if fr != s.n {
		return nil, &ShapeError{What: "force matrix rows", Want: s.n, Got: fr}
	}
	if fc < 1 {
		return nil, &ShapeError{What: "force sample count", Want: 1, Got: fc}
	}
	if x0 == nil {
		x0 = make([]float64, s.n)
	} else if len(x0) != s.n {
		return nil, &ShapeError{What: "initial displacement", Want: s.n, Got: len(x0)}
	}
	if v0 == nil {
		v0 = make([]float64, s.n)
	} else if len(v0) != s.n {
		return nil, &ShapeError{What: "initial velocity", Want: s.n, Got: len(v0)}
	}

	fd, ok := force.(*mat.Dense)
	if !ok {
		fd = mat.DenseCopyOf(force)
	}

	var disp, vel *mat.Dense
	var err error
	if s.sys.Coupled {
		disp, vel, err = s.solveCoupled(ctx, fd, fc, x0, v0)
	} else {
		disp, vel, err = s.solveUncoupled(ctx, fd, fc, x0, v0)
	}
	if err != nil {
		return nil, err
	}

	// Sample 0 is the caller's initial condition, exactly.
	for i := 0; i < s.n; i++ {
		disp.Set(i, 0, x0[i])
		vel.Set(i, 0, v0[i])
	}

	acc, err := s.recoverAccel(fd, disp, vel)
	if err != nil {
		return nil, err
	}
	return newResponse(s.dt, disp, vel, acc), nil
}

func (s *Solver) solveUncoupled(ctx context.Context, fd *mat.Dense, m int, x0, v0 []float64) (*mat.Dense, *mat.Dense, error) {
	nm := s.sys.Modes()

	var p mat.Dense
	p.Mul(s.sys.Shapes.T(), fd)

	q0 := make([]float64, nm)
	qd0 := make([]float64, nm)
	if anyNonzero(x0) {
		projectVec(s.phiTM, x0, q0)
	}
	if anyNonzero(v0) {
		projectVec(s.phiTM, v0, qd0)
	}

	q := mat.NewDense(nm, m, nil)
	qd := mat.NewDense(nm, m, nil)

	ParallelFor(nm, s.opts.workers, func(start, end int) {
		for i := start; i < end; i++ {
			if ctx.Err() != nil {
				return
			}
			stepMode(s.pairs[i], s.tail[i], q.RawRowView(i), qd.RawRowView(i), p.RawRowView(i), q0[i], qd0[i])
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Modal to physical merge runs after every per-mode loop finished since
	// it mixes contributions from all modes.
	disp := &mat.Dense{}
	vel := &mat.Dense{}
	disp.Mul(s.sys.Shapes, q)
	vel.Mul(s.sys.Shapes, qd)
	return disp, vel, nil
}

func (s *Solver) solveCoupled(ctx context.Context, fd *mat.Dense, m int, x0, v0 []float64) (*mat.Dense, *mat.Dense, error) {
	nm := len(s.sys.Lambda)

	var pr, pi mat.Dense
	pr.Mul(s.sys.PartRe, fd)
	pi.Mul(s.sys.PartIm, fd)

	y0r := make([]float64, nm)
	y0i := make([]float64, nm)
	if anyNonzero(x0) || anyNonzero(v0) {
		z0 := make([]float64, 2*s.n)
		copy(z0, x0)
		copy(z0[s.n:], v0)
		projectVec(s.sys.InitRe, z0, y0r)
		projectVec(s.sys.InitIm, z0, y0i)
	}

	yr := mat.NewDense(nm, m, nil)
	yi := mat.NewDense(nm, m, nil)

	ParallelFor(nm, s.opts.workers, func(start, end int) {
		for i := start; i < end; i++ {
			if ctx.Err() != nil {
				return
			}
			stepComplex(s.cp[i], s.ctail[i], s.opts.order,
				yr.RawRowView(i), yi.RawRowView(i),
				pr.RawRowView(i), pi.RawRowView(i),
				complex(y0r[i], y0i[i]))
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var d1, d2 mat.Dense
	d1.Mul(s.sys.RecXRe, yr)
	d2.Mul(s.sys.RecXIm, yi)
	disp := &mat.Dense{}
	disp.Sub(&d1, &d2)

	var v1, v2 mat.Dense
	v1.Mul(s.sys.RecVRe, yr)
	v2.Mul(s.sys.RecVIm, yi)
	vel := &mat.Dense{}
	vel.Sub(&v1, &v2)
	return disp, vel, nil
}

// recoverAccel solves M a = f - C v - K x. Acceleration is never obtained
// by differentiating the displacement history.
func (s *Solver) recoverAccel(fd, disp, vel *mat.Dense) (*mat.Dense, error) {
	var cv, kx mat.Dense
	cv.Mul(s.cd, vel)
	kx.Mul(s.kd, disp)

	var rhs mat.Dense
	rhs.Sub(fd, &cv)
	rhs.Sub(&rhs, &kx)

	acc := &mat.Dense{}
	if err := s.chol.SolveTo(acc, &rhs); err != nil {
		// A Condition error still carries the solution; anything else
		// means the factorization degraded, which construction rules out.
		if _, ok := err.(mat.Condition); !ok {
			return nil, fmt.Errorf("ode: acceleration recovery: %w", err)
		}
	}
	return acc, nil
}

// stepMode runs the exact recurrence for one real second-order mode.
func stepMode(pr, tail Pair, qi, qdi, pi []float64, x, v float64) {
	m := len(qi)
	qi[0], qdi[0] = x, v
	wide := pr.Order.Window() == 3
	for k := 0; k+1 < m; k++ {
		p := &pr
		if wide && k+2 >= m {
			p = &tail
		}
		f0 := pi[k]
		var f1, f2 float64
		if w := p.Order.Window(); w >= 2 {
			f1 = pi[k+1]
			if w == 3 {
				f2 = pi[k+2]
			}
		}
		nx := p.A[0][0]*x + p.A[0][1]*v + p.B[0][0]*f0 + p.B[0][1]*f1 + p.B[0][2]*f2
		nv := p.A[1][0]*x + p.A[1][1]*v + p.B[1][0]*f0 + p.B[1][1]*f1 + p.B[1][2]*f2
		x, v = nx, nv
		qi[k+1] = x
		qdi[k+1] = v
	}
}

// stepComplex runs the recurrence for one complex state-space mode.
func stepComplex(cp, tail cpair, order Order, yrr, yir, prr, pir []float64, y complex128) {
	m := len(yrr)
	yrr[0], yir[0] = real(y), imag(y)
	wide := order.Window() == 3
	for k := 0; k+1 < m; k++ {
		c := &cp
		w := order.Window()
		if wide && k+2 >= m {
			c = &tail
			w = 2
		}
		f0 := complex(prr[k], pir[k])
		y = c.e*y + c.b[0]*f0
		if w >= 2 {
			y += c.b[1] * complex(prr[k+1], pir[k+1])
			if w == 3 {
				y += c.b[2] * complex(prr[k+2], pir[k+2])
			}
		}
		yrr[k+1] = real(y)
		yir[k+1] = imag(y)
	}
}

// newCPair builds the scalar transition coefficients for one complex
// eigenvalue using the same moment-integral recursion as the real path.
func newCPair(lv complex128, dt float64, order Order) cpair {
	e := cmplx.Exp(lv * complex(dt, 0))

	var i0, i1, i2 complex128
	if cmplx.Abs(lv)*dt < 1e-12 {
		i0 = complex(dt, 0)
		i1 = complex(dt*dt/2, 0)
		i2 = complex(dt*dt*dt/3, 0)
	} else {
		i0 = (e - 1) / lv
		i1 = (complex(dt, 0)*e - i0) / lv
		i2 = (complex(dt*dt, 0)*e - 2*i1) / lv
	}

	var c cpair
	c.e = e
	switch order {
	case Constant:
		c.b[0] = i0
	case Linear:
		c.b[0] = i1 / complex(dt, 0)
		c.b[1] = i0 - c.b[0]
	case Quadratic:
		d2 := complex(dt*dt, 0)
		dc := complex(dt, 0)
		c.b[0] = (i2 + dc*i1) / (2 * d2)
		c.b[1] = (d2*i0 - i2) / d2
		c.b[2] = (i2 - dc*i1) / (2 * d2)
	}
	return c
}

func anyNonzero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}

func projectVec(a *mat.Dense, src, dst []float64) {
	var out mat.VecDense
	out.MulVec(a, mat.NewVecDense(len(src), src))
	copy(dst, out.RawVector().Data)
}

// Solve is the one-shot convenience around a throwaway session. Prefer
// NewSolver when several force histories share the same system matrices.
func Solve(ctx context.Context, m, c, k mat.Matrix, dt float64, force mat.Matrix, x0, v0 []float64, opts ...Option) (*Response, error) {
	s, err := NewSolver(m, c, k, dt, opts...)
	if err != nil {
		return nil, err
	}
	return s.Solve(ctx, force, x0, v0)
}
