package kernel

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var _ InducingKernel = White{}

// White is an independent noise kernel. It adds Variance between coincident
// points and nothing elsewhere. Inducing locations carry no noise, so any
// evaluation that involves an inducing side is zero.
type White struct {
	Variance float64
}

func (k White) K(x, y mat.Matrix) *mat.Dense {
	return k.KInducing(x, y, false, false)
}

func (k White) Kdiag(x mat.Matrix) []float64 {
	return k.KdiagInducing(x, false)
}

func (k White) KInducing(x, y mat.Matrix, xInducing, yInducing bool) *mat.Dense {
	if xInducing || yInducing {
		return pairwise(x, y, func(a, b []float64) float64 { return 0 })
	}
	return pairwise(x, y, func(a, b []float64) float64 {
		if floats.Equal(a, b) {
			return k.Variance
		}
		return 0
	})
}

func (k White) KdiagInducing(x mat.Matrix, inducing bool) []float64 {
	r, _ := x.Dims()
	d := make([]float64, r)
	if inducing {
		return d
	}
	for i := range d {
		d[i] = k.Variance
	}
	return d
}
