package conditional

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/sgalee2/sgp-bae/linalg"
)

// Uncertainty is the square root of an approximate posterior covariance over
// the function values at the reference points. It is either a
// DiagonalUncertainty or a FullUncertainty.
type Uncertainty interface {
	// project returns LᵀA for function k, where L is the square root of
	// the covariance of that function and a is M×N.
	project(a *mat.Dense, k int) *mat.Dense

	validate(m, k int) error
}

// DiagonalUncertainty holds per-point, per-function standard deviations of an
// approximate posterior with diagonal covariance. Std is M×K.
type DiagonalUncertainty struct {
	Std mat.Matrix
}

func (d DiagonalUncertainty) validate(m, k int) error {
	if d.Std == nil {
		return fmt.Errorf("%w: nil diagonal uncertainty", linalg.ErrInvalidArgument)
	}
	r, c := d.Std.Dims()
	if r != m || c != k {
		return fmt.Errorf("%w: diagonal uncertainty is %d×%d, want %d×%d", linalg.ErrInvalidArgument, r, c, m, k)
	}
	return nil
}

func (d DiagonalUncertainty) project(a *mat.Dense, k int) *mat.Dense {
	var lta mat.Dense
	lta.Apply(func(i, j int, v float64) float64 {
		return v * d.Std.At(i, k)
	}, a)
	return &lta
}

// FullUncertainty holds one M×M lower triangular Cholesky factor per function.
// Entries strictly above the diagonal are ignored, so callers may pass
// matrices with arbitrary values there.
type FullUncertainty struct {
	Sqrt []mat.Matrix
}

func (f FullUncertainty) validate(m, k int) error {
	if len(f.Sqrt) != k {
		return fmt.Errorf("%w: full uncertainty has %d factors, want %d", linalg.ErrInvalidArgument, len(f.Sqrt), k)
	}
	for i, s := range f.Sqrt {
		if s == nil {
			return fmt.Errorf("%w: nil factor %d", linalg.ErrInvalidArgument, i)
		}
		r, c := s.Dims()
		if r != m || c != m {
			return fmt.Errorf("%w: factor %d is %d×%d, want %d×%d", linalg.ErrInvalidArgument, i, r, c, m, m)
		}
	}
	return nil
}

func (f FullUncertainty) project(a *mat.Dense, k int) *mat.Dense {
	l := linalg.Tril(nil, f.Sqrt[k])
	var lta mat.Dense
	lta.Mul(l.T(), a)
	return &lta
}
