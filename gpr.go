package gaussproc

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/sgalee2/sgp-bae/densities"
	"github.com/sgalee2/sgp-bae/kernel"
	"github.com/sgalee2/sgp-bae/linalg"
)

// GPR is exact Gaussian process regression with a Gaussian likelihood. All the
// training points are used as reference points.
type GPR struct {
	Model
}

// NewGPR creates a regression model from the N×D inputs x and N×R outputs y.
// The R output columns are modeled as independent functions sharing the
// kernel. NewGPR panics if k is nil or x and y have a different number of
// rows.
func NewGPR(x, y mat.Matrix, k kernel.Kernel, opts ...Option) *GPR {
	return &GPR{Model: newModel("gpr", x, y, k, opts)}
}

// Prediction is the distribution of the latent function (or of the
// observations) at a set of new points.
type Prediction struct {
	// Mean is Nnew×R.
	Mean *mat.Dense

	// Var holds the marginal variances, Nnew×R. Nil for full covariance
	// predictions.
	Var *mat.Dense

	// Cov holds the Nnew×Nnew covariance of each output column. Nil unless a
	// full covariance was requested.
	Cov []*mat.SymDense
}

// diagTerm is the value added to the diagonal of the training covariance: the
// noise variance, or the jitter level for noiseless observations.
func (g *GPR) diagTerm() float64 {
	if v := g.likelihood.NoiseVariance(); v != 0 {
		return v
	}
	return g.jitter
}

// factorize returns the lower Cholesky factor of K(x, x) + diagTerm·I + m·jitter·I
// for the smallest m = 1, 2, 4, ... that makes the matrix positive definite.
// The noise variance is never scaled.
func (g *GPR) factorize(x mat.Matrix) (*mat.TriDense, error) {
	n, _ := x.Dims()
	k := kernel.Sym(g.kernel, x, false)
	diag := g.diagTerm()
	linalg.AddDiag(k, diag)
	chol, m, err := linalg.AdaptiveCholesky(k, g.jitter)
	if err != nil {
		g.logger.Error("factorization failed",
			zap.Int("size", n),
			zap.Float64("diag", diag),
			zap.Float64("jitter", g.jitter),
			zap.Error(err),
		)
		return nil, fmt.Errorf("gp: factorizing training covariance: %w", err)
	}
	if m > 1 {
		g.logger.Warn("covariance not positive definite, jitter escalated",
			zap.Int("size", n),
			zap.Float64("diag", diag),
			zap.Float64("jitter", g.jitter),
			zap.Float64("multiplier", m),
		)
	} else {
		g.logger.Debug("factorized training covariance", zap.Int("size", n), zap.Float64("diag", diag))
	}
	l := mat.NewTriDense(n, mat.Lower, nil)
	chol.LTo(l)
	return l, nil
}

// LogLikelihood returns the log marginal likelihood of y at the inputs x, one
// entry per output column. A nil x or y is replaced by the training inputs or
// outputs.
func (g *GPR) LogLikelihood(x, y mat.Matrix) ([]float64, error) {
	if x == nil {
		x = g.x
	}
	if y == nil {
		y = g.y
	}
	n, d := x.Dims()
	ry, r := y.Dims()
	if n != ry {
		return nil, fmt.Errorf("%w: %d inputs and %d outputs", linalg.ErrShape, n, ry)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: no data", linalg.ErrShape)
	}
	if _, dx := g.x.Dims(); dx != d {
		return nil, fmt.Errorf("%w: input dimension %d, model has %d", linalg.ErrShape, d, dx)
	}

	l, err := g.factorize(x)
	if err != nil {
		return nil, err
	}
	mean, err := meanAt(g.meanFunc, x, r)
	if err != nil {
		return nil, err
	}

	yd := mat.DenseCopyOf(y)
	ll := make([]float64, r)
	for j := range ll {
		ll[j], err = densities.MultivariateNormal(yd.ColView(j), mean.ColView(j), l)
		if err != nil {
			return nil, err
		}
	}
	return ll, nil
}

// LogProb returns the log marginal likelihood summed over the output columns.
func (g *GPR) LogProb(x, y mat.Matrix) (float64, error) {
	ll, err := g.LogLikelihood(x, y)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range ll {
		sum += v
	}
	return sum, nil
}

// PredictF returns the posterior distribution of the latent function at the
// Nnew×D points xnew. With fullCov set, the joint covariance of each output
// column is returned instead of the marginal variances.
func (g *GPR) PredictF(xnew mat.Matrix, fullCov bool) (*Prediction, error) {
	nnew, d := xnew.Dims()
	if nnew == 0 {
		return nil, fmt.Errorf("%w: no prediction points", linalg.ErrShape)
	}
	if _, dx := g.x.Dims(); dx != d {
		return nil, fmt.Errorf("%w: input dimension %d, model has %d", linalg.ErrShape, d, dx)
	}
	_, r := g.y.Dims()

	kx := kernel.Cross(g.kernel, g.x, xnew, false, false)
	l, err := g.factorize(g.x)
	if err != nil {
		return nil, err
	}
	a, err := linalg.SolveLower(l, kx)
	if err != nil {
		return nil, err
	}
	mx, err := meanAt(g.meanFunc, g.x, r)
	if err != nil {
		return nil, err
	}
	var resid mat.Dense
	resid.Sub(g.y, mx)
	v, err := linalg.SolveLower(l, &resid)
	if err != nil {
		return nil, err
	}

	pred := &Prediction{Mean: mat.NewDense(nnew, r, nil)}
	pred.Mean.Mul(a.T(), v)
	mnew, err := meanAt(g.meanFunc, xnew, r)
	if err != nil {
		return nil, err
	}
	pred.Mean.Add(pred.Mean, mnew)

	if fullCov {
		cov := mat.NewSymDense(nnew, nil)
		cov.SymRankK(kernel.Sym(g.kernel, xnew, false), -1, a.T())
		pred.Cov = make([]*mat.SymDense, r)
		for j := range pred.Cov {
			c := mat.NewSymDense(nnew, nil)
			c.CopySym(cov)
			pred.Cov[j] = c
		}
		return pred, nil
	}

	kdiag := kernel.Diag(g.kernel, xnew, false)
	sq := linalg.ColumnSumSquares(a)
	pred.Var = mat.NewDense(nnew, r, nil)
	for i := range kdiag {
		fv := kdiag[i] - sq[i]
		for j := 0; j < r; j++ {
			pred.Var.Set(i, j, fv)
		}
	}
	return pred, nil
}

// PredictY returns the marginal distribution of noisy observations at xnew.
func (g *GPR) PredictY(xnew mat.Matrix) (*Prediction, error) {
	f, err := g.PredictF(xnew, false)
	if err != nil {
		return nil, err
	}
	mean, variance := g.likelihood.PredictMeanAndVar(f.Mean, f.Var)
	return &Prediction{Mean: mean, Var: variance}, nil
}

// PredictDensity returns the elementwise log predictive density of the
// observations ynew at xnew.
func (g *GPR) PredictDensity(xnew, ynew mat.Matrix) (*mat.Dense, error) {
	rn, _ := xnew.Dims()
	ry, cy := ynew.Dims()
	if _, r := g.y.Dims(); rn != ry || cy != r {
		return nil, fmt.Errorf("%w: observations are %d×%d for %d points and %d outputs", linalg.ErrShape, ry, cy, rn, r)
	}
	f, err := g.PredictF(xnew, false)
	if err != nil {
		return nil, err
	}
	return g.likelihood.PredictDensity(f.Mean, f.Var, ynew), nil
}

// PredictFSamples draws n joint samples of the latent function at xnew. Each
// sample is Nnew×R. If src is nil the global random source is used.
func (g *GPR) PredictFSamples(xnew mat.Matrix, n int, src rand.Source) ([]*mat.Dense, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative sample count %d", linalg.ErrInvalidArgument, n)
	}
	pred, err := g.PredictF(xnew, true)
	if err != nil {
		return nil, err
	}
	nnew, r := pred.Mean.Dims()
	chols := make([]*mat.Cholesky, r)
	for j, cov := range pred.Cov {
		chol, m, err := linalg.AdaptiveCholesky(cov, g.jitter)
		if err != nil {
			return nil, fmt.Errorf("gp: factorizing predictive covariance: %w", err)
		}
		g.logger.Debug("factorized predictive covariance", zap.Int("column", j), zap.Float64("multiplier", m))
		chols[j] = chol
	}

	samples := make([]*mat.Dense, n)
	mu := make([]float64, nnew)
	draw := make([]float64, nnew)
	for s := range samples {
		sample := mat.NewDense(nnew, r, nil)
		for j := 0; j < r; j++ {
			mat.Col(mu, j, pred.Mean)
			distmv.NormalRand(draw, mu, chols[j], src)
			sample.SetCol(j, draw)
		}
		samples[s] = sample
	}
	return samples, nil
}
