// Package densities implements the log densities used by likelihoods and
// models. All functions return natural-log values.
package densities

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"

	"github.com/sgalee2/sgp-bae/linalg"
)

var log2Pi = math.Log(2 * math.Pi)

// betaClip keeps Beta observations away from 0 and 1, where the log is not
// finite.
const betaClip = 1e-6

// Gaussian is the log density of x under N(mu, variance).
func Gaussian(x, mu, variance float64) float64 {
	d := mu - x
	return -0.5 * (log2Pi + math.Log(variance) + d*d/variance)
}

// LogNormal is the log density of x when log(x) ~ N(mu, variance).
func LogNormal(x, mu, variance float64) float64 {
	lnx := math.Log(x)
	return Gaussian(lnx, mu, variance) - lnx
}

// Bernoulli is the log probability of y ∈ {0, 1} with success probability p.
func Bernoulli(p, y float64) float64 {
	return math.Log(y*p + (1-y)*(1-p))
}

// Gammaln returns log|Γ(x)|.
//
// Gammaln is not differentiable in this package; gradient-based fitting of a
// parameter that flows through it needs a separate derivative (the digamma
// function).
func Gammaln(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// Poisson is the log probability of the count y under rate lambda.
func Poisson(lambda, y float64) float64 {
	return y*math.Log(lambda) - lambda - Gammaln(y+1)
}

// Exponential is the log density of y for an exponential distribution with
// mean (scale) lambda.
func Exponential(lambda, y float64) float64 {
	return -y/lambda - math.Log(lambda)
}

// Gamma is the log density of x for a gamma distribution with the given shape
// and scale.
func Gamma(shape, scale, x float64) float64 {
	return -shape*math.Log(scale) - Gammaln(shape) + (shape-1)*math.Log(x) - x/scale
}

// Beta is the log density of y under Beta(alpha, beta). y is clipped to
// [1e-6, 1-1e-6].
func Beta(alpha, beta, y float64) float64 {
	y = math.Min(math.Max(y, betaClip), 1-betaClip)
	return (alpha-1)*math.Log(y) + (beta-1)*math.Log(1-y) - mathext.Lbeta(alpha, beta)
}

// Laplace is the log density of y under a Laplace distribution with location
// mu and scale sigma.
func Laplace(mu, sigma, y float64) float64 {
	return -math.Abs(mu-y)/sigma - math.Log(2*sigma)
}

// MultivariateNormal returns the log density of the columns of x under a
// multivariate normal with mean mu and covariance L*Lᵀ. x is D×C and the
// columns are treated as independent draws; mu is either D×C or D×1, in
// which case it is shared by all columns.
//
// The computation stays in log space throughout:
//
//	alpha = L⁻¹(x - mu)
//	log p = -½·D·C·log(2π) - C·Σ log(diag(L)) - ½·Σ alpha²
func MultivariateNormal(x, mu mat.Matrix, l mat.Triangular) (float64, error) {
	d, c := x.Dims()
	n, kind := l.Triangle()
	if kind != mat.Lower {
		return 0, fmt.Errorf("%w: covariance factor must be lower triangular", linalg.ErrInvalidArgument)
	}
	if n != d {
		return 0, fmt.Errorf("%w: x has %d rows, factor is %d×%d", linalg.ErrShape, d, n, n)
	}
	mr, mc := mu.Dims()
	if mr != d || (mc != c && mc != 1) {
		return 0, fmt.Errorf("%w: x is %d×%d, mean is %d×%d", linalg.ErrShape, d, c, mr, mc)
	}
	if d == 0 || c == 0 {
		return 0, nil
	}

	diff := mat.NewDense(d, c, nil)
	diff.Apply(func(i, j int, v float64) float64 {
		if mc == 1 {
			return v - mu.At(i, 0)
		}
		return v - mu.At(i, j)
	}, x)

	lt := mat.NewTriDense(n, mat.Lower, nil)
	lt.Copy(l)
	alpha, err := linalg.SolveLower(lt, diff)
	if err != nil {
		return 0, err
	}

	var logDiag float64
	for i := 0; i < n; i++ {
		logDiag += math.Log(lt.At(i, i))
	}
	var sq float64
	for i := 0; i < d; i++ {
		for _, v := range alpha.RawRowView(i) {
			sq += v * v
		}
	}
	fc := float64(c)
	return -0.5*float64(d)*fc*log2Pi - fc*logDiag - 0.5*sq, nil
}

// MultivariateNormalVec is MultivariateNormal for a single column.
func MultivariateNormalVec(x, mu []float64, l mat.Triangular) (float64, error) {
	if len(x) != len(mu) {
		return 0, fmt.Errorf("%w: len(x)=%d, len(mu)=%d", linalg.ErrShape, len(x), len(mu))
	}
	return MultivariateNormal(mat.NewVecDense(len(x), x), mat.NewVecDense(len(mu), mu), l)
}
