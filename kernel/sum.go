package kernel

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var _ InducingKernel = (*Sum)(nil)

// Sum is the sum of several kernels.
type Sum struct {
	parts []Kernel
}

// NewSum returns the sum of the given kernels. Nested sums are flattened.
func NewSum(kernels ...Kernel) *Sum {
	if len(kernels) == 0 {
		panic("kernel: empty sum")
	}
	parts := make([]Kernel, 0, len(kernels))
	for _, k := range kernels {
		switch k := k.(type) {
		case *Sum:
			parts = append(parts, k.parts...)
		default:
			parts = append(parts, k)
		}
	}
	return &Sum{parts: parts}
}

// Parts returns the summands.
func (s *Sum) Parts() []Kernel {
	return s.parts
}

func (s *Sum) K(x, y mat.Matrix) *mat.Dense {
	return s.KInducing(x, y, false, false)
}

func (s *Sum) Kdiag(x mat.Matrix) []float64 {
	return s.KdiagInducing(x, false)
}

func (s *Sum) KInducing(x, y mat.Matrix, xInducing, yInducing bool) *mat.Dense {
	out := Cross(s.parts[0], x, y, xInducing, yInducing)
	for _, k := range s.parts[1:] {
		out.Add(out, Cross(k, x, y, xInducing, yInducing))
	}
	return out
}

func (s *Sum) KdiagInducing(x mat.Matrix, inducing bool) []float64 {
	out := Diag(s.parts[0], x, inducing)
	for _, k := range s.parts[1:] {
		floats.Add(out, Diag(k, x, inducing))
	}
	return out
}
