package ode

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// decomposeCoupled handles non-proportional damping through the doubled-order
// state matrix [[0, I], [-M^-1 K, -M^-1 C]]. Its complex eigenvalues come in
// conjugate pairs; each pair is carried as one recurrence with weight 2.
func decomposeCoupled(sys *System, md, cd, kd *mat.Dense, chol *mat.Cholesky, o options) error {
	n, _ := md.Dims()

	var minv mat.SymDense
	if err := chol.InverseTo(&minv); err != nil {
		return fmt.Errorf("%w: mass matrix inversion failed", ErrDegenerateMode)
	}

	a := stateMatrix(n, &minv, cd, kd)

	var eig mat.Eigen
	if !eig.Factorize(a, mat.EigenRight) {
		return fmt.Errorf("%w: state-space eigendecomposition failed", ErrDegenerateMode)
	}
	vals := eig.Values(nil)
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	flagNearRepeated(sys, vals, o.repeatTol)

	q, err := complexInverse(&vecs)
	if err != nil {
		if _, near := err.(mat.Condition); near {
			// Ill-conditioned but solvable; the perturbed retry below is
			// only for an outright singular eigenvector basis.
			sys.Warnings = append(sys.Warnings, InstabilityWarning{
				Mode: -1, Message: "ill-conditioned eigenvector basis"})
		} else {
			// Defective (repeated eigenvalue) basis. Split the eigenvalues
			// with a graded diagonal perturbation and retry once.
			sys.Warnings = append(sys.Warnings, InstabilityWarning{
				Mode: -1, Message: "defective eigenvector basis, applying perturbation"})
			perturb(a, vals)
			if !eig.Factorize(a, mat.EigenRight) {
				return fmt.Errorf("%w: perturbed eigendecomposition failed", ErrDegenerateMode)
			}
			vals = eig.Values(nil)
			eig.VectorsTo(&vecs)
			q, err = complexInverse(&vecs)
			if err != nil {
				if _, near := err.(mat.Condition); !near {
					return fmt.Errorf("ode: eigenvector basis not invertible: %w", err)
				}
			}
		}
	}

	// Keep one eigenvalue per conjugate pair (the non-negative imaginary
	// member), real eigenvalues as-is.
	realTol := 1e-12
	var kept []int
	for j, lv := range vals {
		scale := cmplx.Abs(lv) + 1
		if imag(lv) < -realTol*scale {
			continue
		}
		kept = append(kept, j)
	}

	nm := len(kept)
	sys.Lambda = make([]complex128, nm)
	sys.Weight = make([]float64, nm)
	sys.InitRe = mat.NewDense(nm, 2*n, nil)
	sys.InitIm = mat.NewDense(nm, 2*n, nil)
	sys.RecXRe = mat.NewDense(n, nm, nil)
	sys.RecXIm = mat.NewDense(n, nm, nil)
	sys.RecVRe = mat.NewDense(n, nm, nil)
	sys.RecVIm = mat.NewDense(n, nm, nil)

	qrRight := mat.NewDense(nm, n, nil)
	qiRight := mat.NewDense(nm, n, nil)

	for r, idx := range kept {
		lv := vals[idx]
		sys.Lambda[r] = lv
		if imag(lv) > realTol*(cmplx.Abs(lv)+1) {
			sys.Weight[r] = 2
		} else {
			sys.Weight[r] = 1
			sys.Lambda[r] = complex(real(lv), 0)
		}

		for col := 0; col < 2*n; col++ {
			sys.InitRe.Set(r, col, q.At(idx, col))
			sys.InitIm.Set(r, col, q.At(2*n+idx, col))
		}
		for col := 0; col < n; col++ {
			qrRight.Set(r, col, q.At(idx, n+col))
			qiRight.Set(r, col, q.At(2*n+idx, n+col))
		}

		w := sys.Weight[r]
		for i := 0; i < n; i++ {
			sys.RecXRe.Set(i, r, w*real(vecs.At(i, idx)))
			sys.RecXIm.Set(i, r, w*imag(vecs.At(i, idx)))
			sys.RecVRe.Set(i, r, w*real(vecs.At(n+i, idx)))
			sys.RecVIm.Set(i, r, w*imag(vecs.At(n+i, idx)))
		}
	}

	// Modal force participation folds M^-1 in, so the step loop consumes
	// raw physical force samples.
	sys.PartRe = &mat.Dense{}
	sys.PartIm = &mat.Dense{}
	sys.PartRe.Mul(qrRight, &minv)
	sys.PartIm.Mul(qiRight, &minv)
	return nil
}

func stateMatrix(n int, minv mat.Matrix, cd, kd *mat.Dense) *mat.Dense {
	var mk, mc mat.Dense
	mk.Mul(minv, kd)
	mc.Mul(minv, cd)

	a := mat.NewDense(2*n, 2*n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, n+i, 1)
		for j := 0; j < n; j++ {
			a.Set(n+i, j, -mk.At(i, j))
			a.Set(n+i, n+j, -mc.At(i, j))
		}
	}
	return a
}

// flagNearRepeated records a warning for eigenvalue clusters that can make
// the eigenvector basis ill-conditioned. Non-fatal: genuinely repeated modes
// of symmetric structures are diagonalizable and solve fine. Every repeat is
// flagged against its first occurrence, so distinct clusters each show up.
func flagNearRepeated(sys *System, vals []complex128, tol float64) {
	for j := 1; j < len(vals); j++ {
		for i := 0; i < j; i++ {
			scale := math.Max(cmplx.Abs(vals[i]), cmplx.Abs(vals[j])) + 1e-12
			if cmplx.Abs(vals[i]-vals[j]) <= tol*scale {
				sys.Warnings = append(sys.Warnings, InstabilityWarning{
					Mode:    j,
					Message: fmt.Sprintf("eigenvalue nearly repeats mode %d", i),
				})
				break
			}
		}
	}
}

// complexInverse computes Psi^-1 through the equivalent real block system
// [[Pr, -Pi], [Pi, Pr]] [Qr; Qi] = [I; 0]. The returned matrix stacks Qr on
// top of Qi.
func complexInverse(vecs *mat.CDense) (*mat.Dense, error) {
	d, _ := vecs.Dims()

	s := mat.NewDense(2*d, 2*d, nil)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			pr := real(vecs.At(i, j))
			pi := imag(vecs.At(i, j))
			s.Set(i, j, pr)
			s.Set(i, d+j, -pi)
			s.Set(d+i, j, pi)
			s.Set(d+i, d+j, pr)
		}
	}

	rhs := mat.NewDense(2*d, d, nil)
	for i := 0; i < d; i++ {
		rhs.Set(i, i, 1)
	}

	q := &mat.Dense{}
	err := q.Solve(s, rhs)
	if err != nil {
		if _, ok := err.(mat.Condition); ok {
			return q, err
		}
		return nil, err
	}
	return q, nil
}

// perturb grades the state-matrix diagonal so repeated eigenvalues split.
// The shift is tiny relative to the spectral scale; the warning already
// recorded tells the caller accuracy is mode-shape limited here.
func perturb(a *mat.Dense, vals []complex128) {
	scale := 0.0
	for _, v := range vals {
		if av := cmplx.Abs(v); av > scale {
			scale = av
		}
	}
	if scale == 0 {
		scale = 1
	}
	d, _ := a.Dims()
	for i := 0; i < d; i++ {
		a.Set(i, i, a.At(i, i)+scale*1e-9*float64(i+1)/float64(d))
	}
}
