package ode

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// System is the decoupled form of a (M, C, K) triple. Proportionally damped
// systems decouple into n independent single-DOF oscillators described by
// Omega/Damp plus the mass-normalized mode shapes. Anything else falls back
// to the doubled-order state-space form with complex modes (Coupled=true).
type System struct {
	N       int
	Coupled bool

	// Proportional path: one entry per mode.
	Omega  []float64 // natural frequencies, rad/s
	Damp   []float64 // modal damping coefficients, 2*zeta*omega
	Shapes *mat.Dense

	// State-space path: one entry per kept eigenvalue. Conjugate pairs
	// collapse to the member with non-negative imaginary part and carry
	// weight 2; real eigenvalues carry weight 1.
	Lambda []complex128
	Weight []float64

	// Complex maps stored as real/imaginary parts so recombination runs as
	// plain dense products. Part maps physical force to modal force, Rec*
	// map modal states back to displacement/velocity, Init maps a physical
	// initial state into modal coordinates.
	PartRe, PartIm *mat.Dense
	RecXRe, RecXIm *mat.Dense
	RecVRe, RecVIm *mat.Dense
	InitRe, InitIm *mat.Dense

	Warnings []InstabilityWarning
}

// Modes reports how many decoupled recurrences the system carries.
func (s *System) Modes() int {
	if s.Coupled {
		return len(s.Lambda)
	}
	return len(s.Omega)
}

// Decompose separates coupled mass/damping/stiffness matrices into
// independent modal equations. All three matrices must be square and of
// equal size.
func Decompose(m, c, k mat.Matrix, opts ...Option) (*System, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	md, cd, kd, err := checkMatrices(m, c, k)
	if err != nil {
		return nil, err
	}
	return decompose(md, cd, kd, o)
}

func decompose(md, cd, kd *mat.Dense, o options) (*System, error) {
	n, _ := md.Dims()

	var chol mat.Cholesky
	if !chol.Factorize(symmetrize(md)) {
		return nil, fmt.Errorf("%w: mass matrix is not positive definite", ErrDegenerateMode)
	}

	sys := &System{N: n}
	if o.forceCoupled {
		sys.Coupled = true
		return sys, decomposeCoupled(sys, md, cd, kd, &chol, o)
	}

	// Transform K phi = w^2 M phi to a standard symmetric problem through
	// the Cholesky factor of M.
	l := mat.NewTriDense(n, mat.Lower, nil)
	chol.LTo(l)

	var y, z mat.Dense
	if err := y.Solve(l, kd); err != nil {
		return nil, fmt.Errorf("ode: stiffness transform: %w", err)
	}
	if err := z.Solve(l, y.T()); err != nil {
		return nil, fmt.Errorf("ode: stiffness transform: %w", err)
	}

	var es mat.EigenSym
	if !es.Factorize(symmetrize(&z), true) {
		return nil, fmt.Errorf("%w: eigendecomposition failed", ErrDegenerateMode)
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	negTol := 0.0
	for _, v := range vals {
		if a := math.Abs(v); a > negTol {
			negTol = a
		}
	}
	negTol = negTol*1e-10 + 1e-300

	omega := make([]float64, n)
	for i, v := range vals {
		if v < -negTol {
			return nil, &DegenerateModeError{Mode: i, Omega2: v}
		}
		if v < 0 {
			v = 0
		}
		omega[i] = math.Sqrt(v)
	}

	// Mass-normalized shapes: phi = L^-T y, so phi' M phi = I.
	var phi mat.Dense
	if err := phi.Solve(l.T(), &vecs); err != nil {
		return nil, fmt.Errorf("ode: mode shape transform: %w", err)
	}

	// Modal damping: proportional iff phi' C phi is diagonal within
	// tolerance.
	var t1, chat mat.Dense
	t1.Mul(phi.T(), cd)
	chat.Mul(&t1, &phi)

	maxDiag, maxOff := 0.0, 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a := math.Abs(chat.At(i, j))
			if i == j && a > maxDiag {
				maxDiag = a
			}
			if i != j && a > maxOff {
				maxOff = a
			}
		}
	}
	if maxOff > o.couplingTol*(maxDiag+negTol) {
		sys.Coupled = true
		return sys, decomposeCoupled(sys, md, cd, kd, &chol, o)
	}

	damp := make([]float64, n)
	for i := 0; i < n; i++ {
		if d := chat.At(i, i); d > 0 {
			damp[i] = d
		}
	}

	sys.Omega = omega
	sys.Damp = damp
	sys.Shapes = &phi
	return sys, nil
}

// checkMatrices validates the shape contract and copies the inputs so the
// solve never aliases caller memory.
func checkMatrices(m, c, k mat.Matrix) (md, cd, kd *mat.Dense, err error) {
	r, cc := m.Dims()
	if r != cc {
		return nil, nil, nil, &ShapeError{What: "mass matrix not square", Want: r, Got: cc}
	}
	for _, mm := range []struct {
		name string
		m    mat.Matrix
	}{{"damping matrix", c}, {"stiffness matrix", k}} {
		mr, mc := mm.m.Dims()
		if mr != r || mc != r {
			return nil, nil, nil, &ShapeError{What: mm.name, Want: r, Got: mr}
		}
	}
	md = mat.DenseCopyOf(m)
	cd = mat.DenseCopyOf(c)
	kd = mat.DenseCopyOf(k)
	return md, cd, kd, nil
}

func symmetrize(a *mat.Dense) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (a.At(i, j)+a.At(j, i))/2)
		}
	}
	return s
}
