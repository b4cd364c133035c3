// Package kernel defines covariance functions for Gaussian processes.
package kernel

import (
	"gonum.org/v1/gonum/mat"
)

const badInputDim = "kernel: input dimension mismatch"

// Kernel is a covariance function evaluated over sets of points. Points are
// stored in the rows of the input matrices.
type Kernel interface {
	// K returns the r×c cross covariance between the r rows of x and the c
	// rows of y. K(x, x) must be symmetric.
	K(x, y mat.Matrix) *mat.Dense

	// Kdiag returns the variance at each row of x, the diagonal of K(x, x).
	Kdiag(x mat.Matrix) []float64
}

// InducingKernel is implemented by kernels whose covariance depends on whether
// the points are inducing locations. Sparse approximations evaluate the
// reference covariance at inducing points and the predictive covariance at
// ordinary points.
type InducingKernel interface {
	Kernel
	KInducing(x, y mat.Matrix, xInducing, yInducing bool) *mat.Dense
	KdiagInducing(x mat.Matrix, inducing bool) []float64
}

// Cross evaluates the cross covariance between x and y, passing the inducing
// flags to k if it implements InducingKernel.
func Cross(k Kernel, x, y mat.Matrix, xInducing, yInducing bool) *mat.Dense {
	if ik, ok := k.(InducingKernel); ok {
		return ik.KInducing(x, y, xInducing, yInducing)
	}
	return k.K(x, y)
}

// Sym evaluates the covariance of x with itself as a symmetric matrix.
func Sym(k Kernel, x mat.Matrix, inducing bool) *mat.SymDense {
	c := Cross(k, x, x, inducing, inducing)
	n, _ := c.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(c.At(i, j)+c.At(j, i)))
		}
	}
	return s
}

// Diag evaluates the diagonal of the covariance of x with itself.
func Diag(k Kernel, x mat.Matrix, inducing bool) []float64 {
	if ik, ok := k.(InducingKernel); ok {
		return ik.KdiagInducing(x, inducing)
	}
	return k.Kdiag(x)
}

// Func adapts a pointwise covariance function to the Kernel interface.
type Func func(x, y []float64) float64

func (f Func) K(x, y mat.Matrix) *mat.Dense {
	return pairwise(x, y, f)
}

func (f Func) Kdiag(x mat.Matrix) []float64 {
	return diagonal(x, f)
}

// pairwise computes the kernel matrix between the rows of x and y.
func pairwise(x, y mat.Matrix, fn func(a, b []float64) float64) *mat.Dense {
	m, p := x.Dims()
	n, p2 := y.Dims()
	if p != p2 {
		panic(badInputDim)
	}
	k := mat.NewDense(m, n, nil)
	xi := make([]float64, p)
	yj := make([]float64, p)
	for j := 0; j < n; j++ {
		mat.Row(yj, j, y)
		for i := 0; i < m; i++ {
			mat.Row(xi, i, x)
			k.Set(i, j, fn(xi, yj))
		}
	}
	return k
}

func diagonal(x mat.Matrix, fn func(a, b []float64) float64) []float64 {
	m, p := x.Dims()
	d := make([]float64, m)
	xi := make([]float64, p)
	for i := range d {
		mat.Row(xi, i, x)
		d[i] = fn(xi, xi)
	}
	return d
}
