package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

func TestBaseEstimator(t *testing.T) {
	var e BaseEstimator
	assert.False(t, e.IsFitted())
	assert.Equal(t, 0, e.NFeatures())

	id := e.EstimatorID()
	assert.Len(t, id, 36)
	assert.Equal(t, id, e.EstimatorID(), "id must be stable until Reset")

	e.SetFitted(5)
	assert.True(t, e.IsFitted())
	assert.Equal(t, 5, e.NFeatures())

	e.Reset()
	assert.False(t, e.IsFitted())
	assert.Equal(t, 0, e.NFeatures())
	assert.NotEqual(t, id, e.EstimatorID())
}

func TestCheckXY(t *testing.T) {
	tests := []struct {
		name  string
		X, y  mat.Matrix
		check func(t *testing.T, err error)
		rows  int
		cols  int
	}{
		{
			name: "valid",
			X:    mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
			y:    mat.NewDense(2, 1, []float64{1, 2}),
			rows: 2, cols: 3,
		},
		{
			name: "row mismatch",
			X:    mat.NewDense(2, 1, []float64{1, 2}),
			y:    mat.NewDense(3, 1, []float64{1, 2, 3}),
			check: func(t *testing.T, err error) {
				var dimErr *errors.DimensionError
				require.True(t, errors.As(err, &dimErr))
				assert.Equal(t, 0, dimErr.Axis)
			},
		},
		{
			name: "y not a column",
			X:    mat.NewDense(2, 1, []float64{1, 2}),
			y:    mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
			check: func(t *testing.T, err error) {
				var valErr *errors.ValueError
				assert.True(t, errors.As(err, &valErr))
			},
		},
		{
			name: "NaN label",
			X:    mat.NewDense(1, 1, []float64{1}),
			y:    mat.NewDense(1, 1, []float64{math.NaN()}),
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "NaN")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, cols, err := CheckXY("Test.Fit", tt.X, tt.y)
			if tt.check != nil {
				require.Error(t, err)
				tt.check(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rows, rows)
			assert.Equal(t, tt.cols, cols)
		})
	}
}

func TestCheckPredict(t *testing.T) {
	var e BaseEstimator
	X := mat.NewDense(1, 2, []float64{1, 2})

	_, err := CheckPredict("Test", &e, X)
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Predict", nf.Method)

	e.SetFitted(3)
	_, err = CheckPredict("Test", &e, X)
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	e.SetFitted(2)
	rows, err := CheckPredict("Test", &e, X)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}

func TestColumn(t *testing.T) {
	assert.Equal(t, []float64{3, 4}, Column(mat.NewDense(2, 1, []float64{3, 4})))
}
