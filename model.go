// gaussproc is a package for using gaussian processes.
package gaussproc

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/sgalee2/sgp-bae/kernel"
)

const (
	badInputLength = "gp: input length mismatch"
	badInOut       = "gp: inequal number of input and output samples"
	nilKernel      = "gp: nil kernel"
	emptyData      = "gp: no training data"
)

// DefaultJitter is the jitter level of a model built without WithJitter.
const DefaultJitter = 1e-6

// Model holds what every GP model in the package shares: the training data,
// the kernel, the likelihood, the mean function and the jitter level used to
// stabilize factorizations.
type Model struct {
	kernel     kernel.Kernel
	likelihood *Gaussian
	meanFunc   MeanFunction
	jitter     float64
	logger     *zap.Logger

	x *mat.Dense // N×D training inputs
	y *mat.Dense // N×R training outputs
}

// Option configures a Model.
type Option func(*Model)

// WithMeanFunction sets the prior mean function. The default is Zero.
func WithMeanFunction(mf MeanFunction) Option {
	return func(m *Model) {
		m.meanFunc = mf
	}
}

// WithNoiseVariance sets the variance of the Gaussian likelihood. The default
// is 1.
func WithNoiseVariance(v float64) Option {
	return func(m *Model) {
		m.likelihood = NewGaussian(v)
	}
}

// WithJitter sets the jitter level. It must be positive.
func WithJitter(jitter float64) Option {
	if !(jitter > 0) {
		panic("gp: non-positive jitter")
	}
	return func(m *Model) {
		m.jitter = jitter
	}
}

// WithLogger sets the logger. Models are silent by default.
func WithLogger(l *zap.Logger) Option {
	return func(m *Model) {
		m.logger = l
	}
}

func newModel(name string, x, y mat.Matrix, k kernel.Kernel, opts []Option) Model {
	if k == nil {
		panic(nilKernel)
	}
	if x == nil || y == nil {
		panic(emptyData)
	}
	rx, _ := x.Dims()
	ry, _ := y.Dims()
	if rx != ry {
		panic(badInOut)
	}
	m := Model{
		kernel:     k,
		likelihood: NewGaussian(1),
		meanFunc:   Zero{},
		jitter:     DefaultJitter,
		logger:     zap.NewNop(),
		x:          mat.DenseCopyOf(x),
		y:          mat.DenseCopyOf(y),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.logger = m.logger.Named(name)
	return m
}

// X returns the training inputs. The returned matrix must not be modified.
func (m *Model) X() *mat.Dense { return m.x }

// Y returns the training outputs. The returned matrix must not be modified.
func (m *Model) Y() *mat.Dense { return m.y }

func (m *Model) Kernel() kernel.Kernel { return m.kernel }

func (m *Model) Likelihood() *Gaussian { return m.likelihood }

func (m *Model) MeanFunction() MeanFunction { return m.meanFunc }

func (m *Model) Jitter() float64 { return m.jitter }
