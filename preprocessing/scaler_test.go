package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 3, []float64{
		0, -2, 5,
		1, 4, 5,
		0, 1, 5,
	})

	tests := []struct {
		name    string
		fixZero bool
		want    []float64
	}{
		{
			name:    "fix zero",
			fixZero: true,
			want: []float64{
				0, -0.5, 1,
				1, 1, 1,
				0, 0.25, 1,
			},
		},
		{
			name:    "plain min-max",
			fixZero: false,
			want: []float64{
				0, 0, 0,
				1, 1, 0,
				0, 0.5, 0,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMinMaxScaler(tt.fixZero)
			got, err := s.FitTransform(X)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got.RawMatrix().Data, 1e-12)

			back, err := s.InverseTransform(got)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(X, back, 1e-12))
		})
	}
}

func TestMinMaxScaler_Errors(t *testing.T) {
	s := NewMinMaxScaler(true)
	_, err := s.Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}
