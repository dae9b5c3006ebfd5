package linear

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/claimrate/core/model"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

// planeData: y = 3 + 2·x0 - x1, x uniform on [-1, 1]
func planeData(rows int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(7, 7))
	X := mat.NewDense(rows, 2, nil)
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		x0 := rng.Float64()*2 - 1
		x1 := rng.Float64()*2 - 1
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		y.Set(i, 0, 3+2*x0-x1)
	}
	return X, y
}

func predictAll(t *testing.T, m model.Regressor, X mat.Matrix) []float64 {
	t.Helper()
	pred, err := m.Predict(X)
	require.NoError(t, err)
	return model.Column(pred)
}

func TestOptions(t *testing.T) {
	p := NewPoissonRegressor(WithMaxIterations(5), WithL1Weight(0.1), WithL2Weight(0.3), WithLearningRate(0.5), WithTol(1e-3))
	assert.Equal(t, 5, p.MaxIterations)
	assert.Equal(t, 0.1, p.L1Weight)
	assert.Equal(t, 0.3, p.L2Weight)
	assert.Equal(t, 0.5, p.LearningRate)
	assert.Equal(t, 1e-3, p.Tol)
	assert.Equal(t, 0.1, p.GetParams()["l1_weight"])

	s := NewSDCARegressor(WithShuffle(false), WithSeed(9))
	assert.False(t, s.Shuffle)
	assert.Equal(t, int64(9), s.Seed)
	assert.Equal(t, 1e-4, s.L2Weight)
}

func TestOLSRegressor_ExactLine(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})

	ols := NewOLSRegressor(WithL2Weight(1e-10))
	require.NoError(t, ols.Fit(X, y))

	assert.InDelta(t, 2.0, ols.Coefficients()[0], 1e-6)
	assert.InDelta(t, 1.0, ols.Intercept(), 1e-6)

	pred := predictAll(t, ols, mat.NewDense(2, 1, []float64{5, 6}))
	assert.InDelta(t, 11.0, pred[0], 1e-5)
	assert.InDelta(t, 13.0, pred[1], 1e-5)
}

func TestOLSRegressor_CollinearOneHot(t *testing.T) {
	// 2列の one-hot は切片と共線。リッジ項で解ける
	X := mat.NewDense(4, 2, []float64{
		1, 0,
		1, 0,
		0, 1,
		0, 1,
	})
	y := mat.NewDense(4, 1, []float64{10, 12, 20, 22})

	ols := NewOLSRegressor()
	require.NoError(t, ols.Fit(X, y))

	pred := predictAll(t, ols, X)
	assert.InDelta(t, 11.0, pred[0], 1e-3)
	assert.InDelta(t, 11.0, pred[1], 1e-3)
	assert.InDelta(t, 21.0, pred[2], 1e-3)
	assert.InDelta(t, 21.0, pred[3], 1e-3)
}

func TestPoissonRegressor_RecoversLogLinear(t *testing.T) {
	const n = 40
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := 2 * float64(i) / float64(n-1)
		X.Set(i, 0, x)
		y.Set(i, 0, math.Exp(0.5+x))
	}

	p := NewPoissonRegressor(
		WithL1Weight(0),
		WithL2Weight(0),
		WithMaxIterations(20000),
		WithTol(1e-15),
	)
	require.NoError(t, p.Fit(X, y))

	assert.InDelta(t, 1.0, p.Coefficients()[0], 1e-2)
	assert.InDelta(t, 0.5, p.Intercept(), 1e-2)

	pred := predictAll(t, p, X)
	for i, v := range pred {
		assert.InEpsilon(t, y.At(i, 0), v, 1e-2, "row %d", i)
	}
}

func TestPoissonRegressor_StrongL1PredictsMean(t *testing.T) {
	X, y := planeData(30)
	labels := model.Column(y)
	var mean float64
	for _, v := range labels {
		mean += v
	}
	mean /= float64(len(labels))

	p := NewPoissonRegressor(WithL1Weight(1e6))
	require.NoError(t, p.Fit(X, y))

	assert.True(t, p.Converged())
	assert.Equal(t, []float64{0, 0}, p.Coefficients())
	for _, v := range predictAll(t, p, X) {
		assert.InDelta(t, mean, v, 1e-6*mean)
	}
}

func TestPoissonRegressor_Errors(t *testing.T) {
	p := NewPoissonRegressor()
	_, err := p.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = p.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, -1}))
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))

	bad := NewPoissonRegressor(WithLearningRate(0))
	err = bad.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2}))
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "learning_rate", verr.ParamName)

	require.NoError(t, p.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2})))
	_, err = p.Predict(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestSDCARegressor_RecoversPlane(t *testing.T) {
	X, y := planeData(60)

	s := NewSDCARegressor(WithMaxIterations(500))
	require.NoError(t, s.Fit(X, y))

	pred := predictAll(t, s, X)
	for i, v := range pred {
		assert.InDelta(t, y.At(i, 0), v, 0.05, "row %d", i)
	}
	coef := s.Coefficients()
	assert.InDelta(t, 2.0, coef[0], 0.05)
	assert.InDelta(t, -1.0, coef[1], 0.05)
}

func TestSDCARegressor_ConvergesOnDualityGap(t *testing.T) {
	X, y := planeData(60)

	s := NewSDCARegressor(WithL2Weight(0.1), WithTol(1e-6))
	require.NoError(t, s.Fit(X, y))

	assert.True(t, s.Converged())
	assert.Less(t, s.NIter(), s.MaxIterations)
	assert.GreaterOrEqual(t, s.DualityGap(), -1e-9)
}

func TestSDCARegressor_Deterministic(t *testing.T) {
	X, y := planeData(40)
	for _, shuffle := range []bool{true, false} {
		a := NewSDCARegressor(WithMaxIterations(20), WithShuffle(shuffle), WithSeed(3))
		b := NewSDCARegressor(WithMaxIterations(20), WithShuffle(shuffle), WithSeed(3))
		require.NoError(t, a.Fit(X, y))
		require.NoError(t, b.Fit(X, y))
		assert.Equal(t, predictAll(t, a, X), predictAll(t, b, X))
	}
}

func TestSDCARegressor_Errors(t *testing.T) {
	X, y := planeData(4)

	s := NewSDCARegressor(WithL2Weight(0))
	var verr *errors.ValidationError
	require.True(t, errors.As(s.Fit(X, y), &verr))
	assert.Equal(t, "l2_weight", verr.ParamName)

	err := NewSDCARegressor().Fit(&mat.Dense{}, &mat.Dense{})
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestTwoRowsAllLearners(t *testing.T) {
	X := mat.NewDense(2, 3, []float64{
		1, 0, 1,
		0, 1, 2,
	})
	y := mat.NewDense(2, 1, []float64{100, 200})

	for _, m := range []model.Regressor{NewOLSRegressor(), NewPoissonRegressor(), NewSDCARegressor()} {
		t.Run(m.Name(), func(t *testing.T) {
			require.NoError(t, m.Fit(X, y))
			assert.True(t, m.IsFitted())
			for _, v := range predictAll(t, m, X) {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			}
		})
	}
}
