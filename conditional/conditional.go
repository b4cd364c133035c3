// Package conditional computes the distribution of a Gaussian process at new
// points given its values at a set of reference points.
//
// Given f, the values of a GP at the M points X, Conditional produces the mean
// and (co-)variance of the GP at the N points Xnew. There may additionally be
// Gaussian uncertainty about f, represented by the square root of its
// covariance; in that case f is the mean of that distribution.
//
// The GP may also be whitened, so that
//
//	p(v) = N(0, I)
//	f = L v
//
// and thus p(f) = N(0, LLᵀ) = N(0, K). When whitened, f holds the values of v.
//
// The K columns of f are independent functions sharing the same kernel.
package conditional

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/sgalee2/sgp-bae/kernel"
	"github.com/sgalee2/sgp-bae/linalg"
)

// DefaultJitter is added to the diagonal of the reference covariance when
// Options.Jitter is zero.
const DefaultJitter = 1e-6

// Options configures Conditional. The zero value computes marginal variances
// of an unwhitened GP without posterior uncertainty.
type Options struct {
	// FullCov requests the full N×N covariance of each function instead of
	// the marginal variances.
	FullCov bool

	// Whiten indicates f holds whitened values.
	Whiten bool

	// QSqrt is the square root of the covariance over f, or nil if f is
	// known exactly.
	QSqrt Uncertainty

	// Jitter is added to the diagonal of K(X, X) before factorization. Zero
	// selects DefaultJitter; the reference covariance is never factorized
	// without jitter.
	Jitter float64

	// Trace requests tr(K(Xnew, Xnew) + Jitter·I - AᵀA), the part of the
	// prior variance at Xnew not explained by the reference points.
	// A = Lm⁻¹K(X, Xnew) is always the forward projection, so the trace does
	// not depend on Whiten.
	Trace bool
}

// Result is the output of Conditional.
type Result struct {
	// Mean is the N×K predictive mean.
	Mean *mat.Dense

	// Var is the N×K predictive marginal variance. Nil when FullCov is set.
	Var *mat.Dense

	// Cov holds the N×N predictive covariance of each of the K functions.
	// Nil unless FullCov is set.
	Cov []*mat.SymDense

	// Lm is the lower Cholesky factor of K(X, X) + Jitter·I. Nil if there
	// are no reference points.
	Lm *mat.TriDense

	// Trace is set when Options.Trace is.
	Trace    float64
	HasTrace bool
}

// Conditional computes the distribution of the GP at xnew given the values f
// at x. xnew is N×D, x is M×D (or nil/empty for M = 0) and f is M×K.
//
// A failed factorization of the reference covariance is returned as
// linalg.ErrNotPositiveDefinite; it is the caller's responsibility to retry
// with more jitter.
func Conditional(xnew, x mat.Matrix, kern kernel.Kernel, f mat.Matrix, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	jitter := opts.Jitter
	if jitter == 0 {
		jitter = DefaultJitter
	}
	if !(jitter >= 0) {
		return nil, fmt.Errorf("%w: negative jitter %v", linalg.ErrInvalidArgument, jitter)
	}

	n, d := xnew.Dims()
	if n == 0 {
		return nil, fmt.Errorf("%w: no new points", linalg.ErrShape)
	}
	m := linalg.Rows(x)
	fm, numFunc := f.Dims()
	if fm != m {
		return nil, fmt.Errorf("%w: f has %d rows for %d reference points", linalg.ErrShape, fm, m)
	}
	if m > 0 {
		if _, dx := x.Dims(); dx != d {
			return nil, fmt.Errorf("%w: reference points have dimension %d, new points %d", linalg.ErrShape, dx, d)
		}
	}
	if opts.QSqrt != nil {
		if err := opts.QSqrt.validate(m, numFunc); err != nil {
			return nil, err
		}
	}
	if m == 0 {
		return prior(xnew, kern, numFunc, jitter, opts), nil
	}

	// Compute kernel stuff.
	kmn := kernel.Cross(kern, x, xnew, true, false)
	kmm := kernel.Sym(kern, x, true)
	linalg.AddDiag(kmm, jitter)
	chol, err := linalg.Cholesky(kmm)
	if err != nil {
		return nil, fmt.Errorf("conditional: factorizing reference covariance with jitter %g: %w", jitter, err)
	}
	lm := mat.NewTriDense(m, mat.Lower, nil)
	chol.LTo(lm)

	// Projection of the new points onto the reference basis.
	a, err := linalg.SolveLower(lm, kmn)
	if err != nil {
		return nil, err
	}

	res := &Result{Lm: lm}
	kdiag := kernel.Diag(kern, xnew, false)
	colSq := linalg.ColumnSumSquares(a)

	// Covariance due to the conditioning.
	var base *mat.SymDense
	var baseDiag []float64
	if opts.FullCov {
		base = mat.NewSymDense(n, nil)
		base.SymRankK(kernel.Sym(kern, xnew, false), -1, a.T())
	} else {
		baseDiag = make([]float64, n)
		for i := range baseDiag {
			baseDiag[i] = kdiag[i] - colSq[i]
		}
	}
	if opts.Trace {
		for i := range kdiag {
			res.Trace += kdiag[i] + jitter - colSq[i]
		}
		res.HasTrace = true
	}

	// Complete the inverse of the Cholesky decomposition in the unwhitened
	// case.
	if !opts.Whiten {
		a, err = linalg.SolveLowerT(lm, a)
		if err != nil {
			return nil, err
		}
	}

	res.Mean = mat.NewDense(n, numFunc, nil)
	res.Mean.Mul(a.T(), f)

	if opts.FullCov {
		res.Cov = make([]*mat.SymDense, numFunc)
		for k := range res.Cov {
			cov := mat.NewSymDense(n, nil)
			if opts.QSqrt != nil {
				cov.SymRankK(base, 1, opts.QSqrt.project(a, k).T())
			} else {
				cov.CopySym(base)
			}
			res.Cov[k] = cov
		}
		return res, nil
	}

	res.Var = mat.NewDense(n, numFunc, nil)
	for k := 0; k < numFunc; k++ {
		var extra []float64
		if opts.QSqrt != nil {
			extra = linalg.ColumnSumSquares(opts.QSqrt.project(a, k))
		}
		for i, v := range baseDiag {
			if extra != nil {
				v += extra[i]
			}
			res.Var.Set(i, k, v)
		}
	}
	return res, nil
}

// prior is the conditional with no reference points: the prior at xnew.
func prior(xnew mat.Matrix, kern kernel.Kernel, numFunc int, jitter float64, opts *Options) *Result {
	n, _ := xnew.Dims()
	res := &Result{Mean: mat.NewDense(n, numFunc, nil)}
	kdiag := kernel.Diag(kern, xnew, false)
	if opts.FullCov {
		knn := kernel.Sym(kern, xnew, false)
		res.Cov = make([]*mat.SymDense, numFunc)
		for k := range res.Cov {
			cov := mat.NewSymDense(n, nil)
			cov.CopySym(knn)
			res.Cov[k] = cov
		}
	} else {
		res.Var = mat.NewDense(n, numFunc, nil)
		for k := 0; k < numFunc; k++ {
			res.Var.SetCol(k, kdiag)
		}
	}
	if opts.Trace {
		for _, v := range kdiag {
			res.Trace += v + jitter
		}
		res.HasTrace = true
	}
	return res
}
