package gaussproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sgalee2/sgp-bae/linalg"
)

func TestMeanFunctions(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		1, 2,
		0, -1,
		3, 0.5,
	})

	for _, test := range []struct {
		name string
		mf   MeanFunction
		want *mat.Dense
	}{
		{
			name: "zero",
			mf:   Zero{},
			want: mat.NewDense(3, 1, nil),
		},
		{
			name: "constant",
			mf:   Constant{C: []float64{1.5, -2}},
			want: mat.NewDense(3, 2, []float64{
				1.5, -2,
				1.5, -2,
				1.5, -2,
			}),
		},
		{
			name: "linear",
			mf: Linear{
				A: mat.NewDense(2, 1, []float64{2, -1}),
				B: []float64{0.5},
			},
			want: mat.NewDense(3, 1, []float64{0.5, 1.5, 6}),
		},
	} {
		got := test.mf.Mean(x)
		assert.True(t, mat.EqualApprox(got, test.want, 1e-14), "%s: got\n%v", test.name, mat.Formatted(got))
	}

	assert.Panics(t, func() {
		Linear{A: mat.NewDense(2, 2, nil), B: []float64{1}}.Mean(x)
	})
}

func TestNewEmpiricalMean(t *testing.T) {
	y := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		6, 0,
	})
	mf := NewEmpiricalMean(y)
	assert.Equal(t, []float64{3, 15}, mf.C)
	assert.Panics(t, func() { NewEmpiricalMean(nil) })
}

func TestMeanAtBroadcast(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{1, 2})

	m, err := meanAt(Linear{A: mat.NewDense(1, 1, []float64{3}), B: []float64{1}}, x, 3)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, mat.NewDense(2, 3, []float64{
		4, 4, 4,
		7, 7, 7,
	})))

	m, err = meanAt(Constant{C: []float64{1, 2}}, x, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, m.RawRowView(1))

	_, err = meanAt(Constant{C: []float64{1, 2}}, x, 3)
	assert.ErrorIs(t, err, linalg.ErrShape)
}
