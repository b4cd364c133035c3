// Package linalg holds the small numeric helpers shared by the conditional
// engine and the regression model: triangular masking, triangular solves and
// jittered Cholesky factorization. It has no knowledge of any model.
package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotPositiveDefinite is returned when a covariance matrix cannot be
	// Cholesky factorized at the current jitter.
	ErrNotPositiveDefinite = errors.New("linalg: matrix not positive definite")

	// ErrUnboundedJitter is returned by AdaptiveCholesky when the jitter
	// multiplier overflows to infinity without the matrix becoming positive
	// definite.
	ErrUnboundedJitter = errors.New("linalg: jitter required is unbounded")

	// ErrInvalidArgument signals a caller programming error.
	ErrInvalidArgument = errors.New("linalg: invalid argument")

	// ErrShape signals mismatched operand dimensions.
	ErrShape = errors.New("linalg: dimension mismatch")

	// ErrSingular is returned when a triangular factor has a zero on its
	// diagonal.
	ErrSingular = errors.New("linalg: triangular factor is singular")
)

// Tril copies the lower triangle and diagonal of the square matrix a into dst,
// discarding everything strictly above the diagonal. If dst is nil a new
// matrix is allocated.
func Tril(dst *mat.TriDense, a mat.Matrix) *mat.TriDense {
	r, c := a.Dims()
	if r != c {
		panic(mat.ErrSquare)
	}
	if dst == nil {
		dst = mat.NewTriDense(r, mat.Lower, nil)
	} else {
		dst.Reset()
		dst.ReuseAsTri(r, mat.Lower)
	}
	for i := 0; i < r; i++ {
		for j := 0; j <= i; j++ {
			dst.SetTri(i, j, a.At(i, j))
		}
	}
	return dst
}

// BatchTril applies Tril to every matrix of a stack.
func BatchTril(a []mat.Matrix) []*mat.TriDense {
	out := make([]*mat.TriDense, len(a))
	for i, m := range a {
		out[i] = Tril(nil, m)
	}
	return out
}

// Diag returns the main diagonal of a, of length min(r, c).
func Diag(a mat.Matrix) []float64 {
	r, c := a.Dims()
	n := min(r, c)
	d := make([]float64, n)
	for i := range d {
		d[i] = a.At(i, i)
	}
	return d
}

// BatchDiag applies Diag to every matrix of a stack.
func BatchDiag(a []mat.Matrix) [][]float64 {
	out := make([][]float64, len(a))
	for i, m := range a {
		out[i] = Diag(m)
	}
	return out
}

// AddDiag adds v to every diagonal element of s in place.
func AddDiag(s *mat.SymDense, v float64) {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+v)
	}
}

// SolveLower solves L * X = B by forward substitution.
func SolveLower(l *mat.TriDense, b mat.Matrix) (*mat.Dense, error) {
	return solveTri(l, false, b)
}

// SolveLowerT solves Lᵀ * X = B by backward substitution, where l is the
// lower triangular factor itself.
func SolveLowerT(l *mat.TriDense, b mat.Matrix) (*mat.Dense, error) {
	return solveTri(l, true, b)
}

func solveTri(l *mat.TriDense, trans bool, b mat.Matrix) (*mat.Dense, error) {
	n, kind := l.Triangle()
	if kind != mat.Lower {
		panic(mat.ErrTriangle)
	}
	r, _ := b.Dims()
	if r != n {
		return nil, fmt.Errorf("%w: factor is %d×%d, right-hand side has %d rows", ErrShape, n, n, r)
	}
	var x mat.Dense
	err := l.SolveTo(&x, trans, b)
	if err != nil {
		// A finite condition number is only a warning from gonum; the
		// solution is still stored in x.
		var cond mat.Condition
		if errors.As(err, &cond) && !math.IsInf(float64(cond), 1) {
			return &x, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return &x, nil
}

// ColumnSumSquares returns the sum of squares of each column of a.
func ColumnSumSquares(a *mat.Dense) []float64 {
	r, c := a.Dims()
	s := make([]float64, c)
	for i := 0; i < r; i++ {
		for j, v := range a.RawRowView(i) {
			s[j] += v * v
		}
	}
	return s
}

// Cholesky performs a single factorization attempt of s.
func Cholesky(s mat.Symmetric) (*mat.Cholesky, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(s); !ok {
		return nil, ErrNotPositiveDefinite
	}
	return &chol, nil
}

// AdaptiveCholesky factorizes s + m*jitter*I, starting with m = 1 and doubling
// m after every failed attempt. It returns the factorization together with the
// multiplier that succeeded. If m overflows to +Inf, ErrUnboundedJitter is
// returned. The jitter must be strictly positive.
func AdaptiveCholesky(s mat.Symmetric, jitter float64) (*mat.Cholesky, float64, error) {
	if !(jitter > 0) || math.IsInf(jitter, 1) {
		return nil, 0, fmt.Errorf("%w: jitter must be positive and finite, got %v", ErrInvalidArgument, jitter)
	}
	n := s.SymmetricDim()
	work := mat.NewSymDense(n, nil)
	var chol mat.Cholesky
	for m := 1.0; !math.IsInf(m, 1); m *= 2 {
		work.CopySym(s)
		AddDiag(work, m*jitter)
		if chol.Factorize(work) {
			return &chol, m, nil
		}
	}
	return nil, math.Inf(1), ErrUnboundedJitter
}

// Zeros is an R×C matrix of zeros. Unlike mat.Dense it may have zero rows or
// columns, which is how an empty reference set is expressed.
type Zeros struct {
	R, C int
}

func (z Zeros) Dims() (r, c int) { return z.R, z.C }

func (z Zeros) At(i, j int) float64 {
	if i < 0 || i >= z.R {
		panic(mat.ErrRowAccess)
	}
	if j < 0 || j >= z.C {
		panic(mat.ErrColAccess)
	}
	return 0
}

func (z Zeros) T() mat.Matrix { return Zeros{R: z.C, C: z.R} }

// Rows returns the number of rows of a, treating nil as empty.
func Rows(a mat.Matrix) int {
	if a == nil {
		return 0
	}
	r, _ := a.Dims()
	return r
}
