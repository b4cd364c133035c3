package gaussproc

import (
	"gonum.org/v1/gonum/mat"

	"github.com/sgalee2/sgp-bae/densities"
)

// Gaussian is a likelihood with independent Gaussian observation noise.
type Gaussian struct {
	Variance float64
}

// NewGaussian returns a Gaussian likelihood with the given noise variance.
// A variance of zero means the observations are noiseless.
func NewGaussian(variance float64) *Gaussian {
	if !(variance >= 0) {
		panic("gp: negative noise") // also handles NaN.
	}
	return &Gaussian{Variance: variance}
}

// NoiseVariance returns the observation noise variance.
func (g *Gaussian) NoiseVariance() float64 {
	return g.Variance
}

// LogProb returns the elementwise log density of y given latent values f.
func (g *Gaussian) LogProb(f, y mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(i, j int, v float64) float64 {
		return densities.Gaussian(v, f.At(i, j), g.Variance)
	}, y)
	return &out
}

// PredictMeanAndVar turns the distribution of the latent function into the
// distribution of the observations by adding the noise variance.
func (g *Gaussian) PredictMeanAndVar(fmean, fvar mat.Matrix) (ymean, yvar *mat.Dense) {
	ymean = mat.DenseCopyOf(fmean)
	yvar = &mat.Dense{}
	yvar.Apply(func(i, j int, v float64) float64 {
		return v + g.Variance
	}, fvar)
	return ymean, yvar
}

// PredictDensity returns the elementwise log predictive density of y when the
// latent function has marginal mean fmean and variance fvar.
func (g *Gaussian) PredictDensity(fmean, fvar, y mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(i, j int, v float64) float64 {
		return densities.Gaussian(v, fmean.At(i, j), fvar.At(i, j)+g.Variance)
	}, y)
	return &out
}
