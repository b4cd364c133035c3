package gaussproc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sgalee2/sgp-bae/linalg"
)

// MeanFunction is the prior mean of a GP. Mean returns an N×Q matrix for the N
// rows of x; Q is either 1, shared by every output column, or the number of
// output columns.
type MeanFunction interface {
	Mean(x mat.Matrix) *mat.Dense
}

var (
	_ MeanFunction = Zero{}
	_ MeanFunction = Constant{}
	_ MeanFunction = Linear{}
)

// Zero is the zero mean function.
type Zero struct{}

func (Zero) Mean(x mat.Matrix) *mat.Dense {
	r, _ := x.Dims()
	return mat.NewDense(r, 1, nil)
}

// Constant returns C[j] for output column j at every point.
type Constant struct {
	C []float64
}

func (c Constant) Mean(x mat.Matrix) *mat.Dense {
	r, _ := x.Dims()
	m := mat.NewDense(r, len(c.C), nil)
	for i := 0; i < r; i++ {
		m.SetRow(i, c.C)
	}
	return m
}

// NewEmpiricalMean returns a Constant mean function set to the column means of
// y. If y == nil, NewEmpiricalMean panics.
func NewEmpiricalMean(y mat.Matrix) Constant {
	if y == nil {
		panic(emptyData)
	}
	r, c := y.Dims()
	mean := make([]float64, c)
	col := make([]float64, r)
	for j := range mean {
		mat.Col(col, j, y)
		mean[j] = stat.Mean(col, nil)
	}
	return Constant{C: mean}
}

// Linear is the mean function x·A + B, with A a D×Q matrix and B of length Q.
type Linear struct {
	A *mat.Dense
	B []float64
}

func (l Linear) Mean(x mat.Matrix) *mat.Dense {
	var m mat.Dense
	m.Mul(x, l.A)
	r, c := m.Dims()
	if len(l.B) != c {
		panic(badInputLength)
	}
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] += l.B[j]
		}
	}
	return &m
}

// meanAt evaluates mf at x and broadcasts the result to cols columns.
func meanAt(mf MeanFunction, x mat.Matrix, cols int) (*mat.Dense, error) {
	m := mf.Mean(x)
	r, c := m.Dims()
	if rx, _ := x.Dims(); rx != r {
		return nil, fmt.Errorf("%w: mean function returned %d rows for %d points", linalg.ErrShape, r, rx)
	}
	switch c {
	case cols:
		return m, nil
	case 1:
		out := mat.NewDense(r, cols, nil)
		col := mat.Col(nil, 0, m)
		for j := 0; j < cols; j++ {
			out.SetCol(j, col)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: mean function returned %d columns for %d outputs", linalg.ErrShape, c, cols)
	}
}
