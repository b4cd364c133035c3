package kernel

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	_ Kernel = SqExpIso{}
	_ Kernel = Matern32{}
)

// SqExpIso represents an isotropic squared exponential kernel
//
//	k(x, y) = exp(LogVariance) * exp(-|x-y|² / (2 exp(LogLength)²))
//
// Logs are used for improved numerical conditioning.
type SqExpIso struct {
	LogVariance float64 // Log of the variance of the kernel
	LogLength   float64 // Log of the length scale of the kernel function
}

// LogDistance returns the log of the kernel between x and y.
func (k SqExpIso) LogDistance(x, y []float64) float64 {
	if len(x) != len(y) {
		panic(badInputDim)
	}
	norm := floats.Distance(x, y, 2)
	if norm == 0 {
		return k.LogVariance
	}
	logNorm := math.Log(norm)
	logExp := -math.Exp(2*logNorm - 2*k.LogLength - math.Ln2)
	return k.LogVariance + logExp
}

// Distance returns the kernel between x and y.
func (k SqExpIso) Distance(x, y []float64) float64 {
	return math.Exp(k.LogDistance(x, y))
}

func (k SqExpIso) K(x, y mat.Matrix) *mat.Dense {
	return pairwise(x, y, k.Distance)
}

func (k SqExpIso) Kdiag(x mat.Matrix) []float64 {
	r, _ := x.Dims()
	d := make([]float64, r)
	for i := range d {
		d[i] = math.Exp(k.LogVariance)
	}
	return d
}

// Matern32 is the Matérn kernel with smoothness 3/2
//
//	k(r) = Variance * (1 + √3 r/ℓ) * exp(-√3 r/ℓ)
type Matern32 struct {
	Variance    float64
	LengthScale float64
}

func (k Matern32) Distance(x, y []float64) float64 {
	if len(x) != len(y) {
		panic(badInputDim)
	}
	a := math.Sqrt(3) * floats.Distance(x, y, 2) / k.LengthScale
	return k.Variance * (1 + a) * math.Exp(-a)
}

func (k Matern32) K(x, y mat.Matrix) *mat.Dense {
	return pairwise(x, y, k.Distance)
}

func (k Matern32) Kdiag(x mat.Matrix) []float64 {
	r, _ := x.Dims()
	d := make([]float64, r)
	for i := range d {
		d[i] = k.Variance
	}
	return d
}
