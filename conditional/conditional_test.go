package conditional

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sgalee2/sgp-bae/kernel"
	"github.com/sgalee2/sgp-bae/linalg"
)

const tol = 1e-9

func testData() (x, xnew *mat.Dense, kern kernel.Kernel) {
	x = mat.NewDense(4, 2, []float64{
		1, -1,
		2, 1.6,
		2, 1,
		-1, 1,
	})
	xnew = mat.NewDense(3, 2, []float64{
		0, 0,
		1.5, 1.2,
		-0.5, 2,
	})
	kern = kernel.SqExpIso{LogVariance: math.Log(1.3), LogLength: 0}
	return x, xnew, kern
}

func testF() *mat.Dense {
	return mat.NewDense(4, 2, []float64{
		0.5, -1,
		1, 0.3,
		-0.2, 0.8,
		2, 0,
	})
}

// testFull returns one lower triangular factor per function with junk above
// the diagonal.
func testFull() FullUncertainty {
	return FullUncertainty{Sqrt: []mat.Matrix{
		mat.NewDense(4, 4, []float64{
			0.5, 9, 9, 9,
			0.1, 0.4, 9, 9,
			-0.2, 0.1, 0.3, 9,
			0.05, 0, 0.1, 0.6,
		}),
		mat.NewDense(4, 4, []float64{
			0.2, -7, -7, -7,
			0, 0.3, -7, -7,
			0.1, 0.1, 0.7, -7,
			0, 0.2, 0, 0.1,
		}),
	}}
}

func testDiag() DiagonalUncertainty {
	return DiagonalUncertainty{Std: mat.NewDense(4, 2, []float64{
		0.1, 0.5,
		0.3, 0.2,
		0.4, 0.1,
		0.2, 0.6,
	})}
}

func TestConditionalNoReferencePoints(t *testing.T) {
	_, xnew, kern := testData()
	f := linalg.Zeros{R: 0, C: 2}

	for _, x := range []mat.Matrix{nil, linalg.Zeros{R: 0, C: 2}} {
		res, err := Conditional(xnew, x, kern, f, &Options{Trace: true})
		require.NoError(t, err)
		assert.Zero(t, mat.Norm(res.Mean, 1))
		assert.Nil(t, res.Lm)
		kdiag := kern.Kdiag(xnew)
		for k := 0; k < 2; k++ {
			assert.Equal(t, kdiag, mat.Col(nil, k, res.Var))
		}
		assert.InDelta(t, 3*1.3+3*DefaultJitter, res.Trace, 1e-12)

		res, err = Conditional(xnew, x, kern, f, &Options{FullCov: true, QSqrt: DiagonalUncertainty{Std: f}})
		require.NoError(t, err)
		require.Len(t, res.Cov, 2)
		for _, cov := range res.Cov {
			assert.True(t, mat.Equal(cov, kern.K(xnew, xnew)))
		}
	}
}

func TestConditionalInterpolates(t *testing.T) {
	x, _, kern := testData()
	f := testF()
	res, err := Conditional(x, x, kern, f, &Options{Jitter: 1e-10})
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(res.Mean, f, 1e-6), "mean:\n%v", mat.Formatted(res.Mean))
	for i := 0; i < 4; i++ {
		for k := 0; k < 2; k++ {
			assert.InDelta(t, 0, res.Var.At(i, k), 1e-6)
		}
	}
}

func TestConditionalWhitenEquivalence(t *testing.T) {
	x, xnew, kern := testData()
	v := testF()

	for _, fullCov := range []bool{false, true} {
		white, err := Conditional(xnew, x, kern, v, &Options{Whiten: true, FullCov: fullCov})
		require.NoError(t, err)
		require.NotNil(t, white.Lm)

		var f mat.Dense
		f.Mul(white.Lm, v)
		plain, err := Conditional(xnew, x, kern, &f, &Options{FullCov: fullCov})
		require.NoError(t, err)
		assertSameResult(t, white, plain)

		// The whitened square root S maps to Lm·S in the unwhitened basis.
		qWhite := testFull()
		qPlain := FullUncertainty{Sqrt: make([]mat.Matrix, 2)}
		for k, s := range qWhite.Sqrt {
			var ls mat.Dense
			ls.Mul(white.Lm, linalg.Tril(nil, s))
			qPlain.Sqrt[k] = &ls
		}
		white, err = Conditional(xnew, x, kern, v, &Options{Whiten: true, FullCov: fullCov, QSqrt: qWhite})
		require.NoError(t, err)
		plain, err = Conditional(xnew, x, kern, &f, &Options{FullCov: fullCov, QSqrt: qPlain})
		require.NoError(t, err)
		assertSameResult(t, white, plain)
	}
}

func assertSameResult(t *testing.T, a, b *Result) {
	t.Helper()
	assert.True(t, mat.EqualApprox(a.Mean, b.Mean, tol), "mean mismatch")
	if a.Var != nil {
		assert.True(t, mat.EqualApprox(a.Var, b.Var, tol), "variance mismatch")
	}
	require.Len(t, b.Cov, len(a.Cov))
	for k := range a.Cov {
		assert.True(t, mat.EqualApprox(a.Cov[k], b.Cov[k], tol), "covariance %d mismatch", k)
	}
}

func TestConditionalFullCovDiagonal(t *testing.T) {
	x, xnew, kern := testData()
	f := testF()
	for name, q := range map[string]Uncertainty{
		"none": nil,
		"diag": testDiag(),
		"full": testFull(),
	} {
		for _, whiten := range []bool{false, true} {
			marg, err := Conditional(xnew, x, kern, f, &Options{QSqrt: q, Whiten: whiten})
			require.NoError(t, err, name)
			full, err := Conditional(xnew, x, kern, f, &Options{QSqrt: q, Whiten: whiten, FullCov: true})
			require.NoError(t, err, name)

			assert.True(t, mat.EqualApprox(marg.Mean, full.Mean, tol), "%s: mean mismatch", name)
			require.Len(t, full.Cov, 2)
			for k, cov := range full.Cov {
				r, c := cov.Dims()
				require.Equal(t, 3, r)
				require.Equal(t, 3, c)
				assert.InDeltaSlice(t, mat.Col(nil, k, marg.Var), linalg.Diag(cov), tol,
					"%s whiten=%v function %d", name, whiten, k)
			}
		}
	}
}

func TestConditionalFullMatchesDiagonalUncertainty(t *testing.T) {
	x, xnew, kern := testData()
	f := testF()
	diag := testDiag()

	full := FullUncertainty{Sqrt: make([]mat.Matrix, 2)}
	for k := range full.Sqrt {
		m := mat.NewDense(4, 4, nil)
		for i := 0; i < 4; i++ {
			m.Set(i, i, diag.Std.At(i, k))
			for j := i + 1; j < 4; j++ {
				m.Set(i, j, 42) // ignored
			}
		}
		full.Sqrt[k] = m
	}

	for _, fullCov := range []bool{false, true} {
		want, err := Conditional(xnew, x, kern, f, &Options{QSqrt: diag, FullCov: fullCov})
		require.NoError(t, err)
		got, err := Conditional(xnew, x, kern, f, &Options{QSqrt: full, FullCov: fullCov})
		require.NoError(t, err)
		assertSameResult(t, want, got)
	}
}

func TestConditionalUncertaintyIncreasesVariance(t *testing.T) {
	x, xnew, kern := testData()
	f := testF()
	base, err := Conditional(xnew, x, kern, f, nil)
	require.NoError(t, err)
	withQ, err := Conditional(xnew, x, kern, f, &Options{QSqrt: testDiag()})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		for k := 0; k < 2; k++ {
			assert.Greater(t, withQ.Var.At(i, k), base.Var.At(i, k))
		}
	}
	assert.True(t, mat.Equal(base.Mean, withQ.Mean))
}

func TestConditionalSingleFunction(t *testing.T) {
	x, xnew, kern := testData()
	f := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	res, err := Conditional(xnew, x, kern, f, &Options{FullCov: true})
	require.NoError(t, err)
	r, c := res.Mean.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
	assert.Len(t, res.Cov, 1)
	assert.Nil(t, res.Var)
}

func TestConditionalTrace(t *testing.T) {
	x, xnew, kern := testData()
	f := testF()
	const jitter = 1e-6

	// tr(Knn + jitter·I) - tr(Kmnᵀ (Kmm + jitter·I)⁻¹ Kmn)
	kmm := kernel.Sym(kern, x, true)
	linalg.AddDiag(kmm, jitter)
	chol, err := linalg.Cholesky(kmm)
	require.NoError(t, err)
	kmn := kern.K(x, xnew)
	var sol, q mat.Dense
	require.NoError(t, chol.SolveTo(&sol, kmn))
	q.Mul(kmn.T(), &sol)
	want := mat.Trace(kern.K(xnew, xnew)) + 3*jitter - mat.Trace(&q)

	for _, whiten := range []bool{false, true} {
		res, err := Conditional(xnew, x, kern, f, &Options{Whiten: whiten, Trace: true, Jitter: jitter})
		require.NoError(t, err)
		assert.True(t, res.HasTrace)
		assert.InDelta(t, want, res.Trace, tol)
		assert.NotNil(t, res.Lm, "factor is returned alongside the trace")
	}

	res, err := Conditional(xnew, x, kern, f, nil)
	require.NoError(t, err)
	assert.False(t, res.HasTrace)
}

func TestConditionalReturnsFactor(t *testing.T) {
	x, xnew, kern := testData()
	res, err := Conditional(xnew, x, kern, testF(), &Options{Jitter: 1e-4})
	require.NoError(t, err)
	var back mat.Dense
	back.Mul(res.Lm, res.Lm.T())
	want := kernel.Sym(kern, x, true)
	linalg.AddDiag(want, 1e-4)
	assert.True(t, mat.EqualApprox(&back, want, 1e-12))
}

func TestConditionalErrors(t *testing.T) {
	x, xnew, kern := testData()
	f := testF()

	bad := []struct {
		name string
		q    Uncertainty
	}{
		{"diag nil", DiagonalUncertainty{}},
		{"diag shape", DiagonalUncertainty{Std: mat.NewDense(4, 3, nil)}},
		{"full count", FullUncertainty{Sqrt: testFull().Sqrt[:1]}},
		{"full shape", FullUncertainty{Sqrt: []mat.Matrix{mat.NewDense(3, 3, nil), mat.NewDense(4, 4, nil)}}},
		{"full nil", FullUncertainty{Sqrt: []mat.Matrix{nil, mat.NewDense(4, 4, nil)}}},
	}
	for _, test := range bad {
		_, err := Conditional(xnew, x, kern, f, &Options{QSqrt: test.q})
		assert.ErrorIs(t, err, linalg.ErrInvalidArgument, test.name)
	}

	_, err := Conditional(xnew, x, kern, f, &Options{Jitter: -1})
	assert.ErrorIs(t, err, linalg.ErrInvalidArgument)

	_, err = Conditional(xnew, x, kern, mat.NewDense(3, 2, nil), nil)
	assert.ErrorIs(t, err, linalg.ErrShape)

	_, err = Conditional(mat.NewDense(2, 3, nil), x, kern, f, nil)
	assert.ErrorIs(t, err, linalg.ErrShape)

	negative := kernel.Func(func(a, b []float64) float64 { return -1 })
	_, err = Conditional(xnew, x, negative, f, nil)
	assert.ErrorIs(t, err, linalg.ErrNotPositiveDefinite)
}

func TestConditionalZeroJitterIsDefault(t *testing.T) {
	x, xnew, kern := testData()
	zero, err := Conditional(xnew, x, kern, testF(), &Options{})
	require.NoError(t, err)
	def, err := Conditional(xnew, x, kern, testF(), &Options{Jitter: DefaultJitter})
	require.NoError(t, err)
	assert.True(t, mat.Equal(zero.Lm, def.Lm))
	assert.True(t, mat.Equal(zero.Var, def.Var))
}

func TestConditionalNoNewPoints(t *testing.T) {
	x, _, kern := testData()
	empty := linalg.Zeros{R: 0, C: 2}

	_, err := Conditional(empty, x, kern, testF(), nil)
	assert.ErrorIs(t, err, linalg.ErrShape)
	_, err = Conditional(empty, nil, kern, linalg.Zeros{R: 0, C: 2}, &Options{FullCov: true})
	assert.ErrorIs(t, err, linalg.ErrShape)
}
