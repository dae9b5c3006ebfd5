package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

func fittedEncoder(t *testing.T, opts ...DictionarizerOption) *OneHotEncoder {
	t.Helper()
	d := NewDictionarizer("NewRenewal", opts...)
	require.NoError(t, d.Fit([]string{"New", "Renewal", "Lapsed"}))
	enc, err := NewOneHotEncoder(d)
	require.NoError(t, err)
	return enc
}

func TestOneHotEncoder_RoundTrip(t *testing.T) {
	enc := fittedEncoder(t)
	assert.Equal(t, 3, enc.Width())

	for i, v := range enc.Dictionarizer().Vocabulary() {
		block := make([]float64, enc.Width())
		require.NoError(t, enc.Encode(v, block))

		want := make([]float64, enc.Width())
		want[i] = 1
		assert.Equal(t, want, block)

		got, ok, err := enc.Decode(block)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestOneHotEncoder_UnknownIsZeroBlock(t *testing.T) {
	errors.SetWarningHandler(nil)
	enc := fittedEncoder(t)

	block := []float64{9, 9, 9}
	require.NoError(t, enc.Encode("Cancelled", block))
	assert.Equal(t, []float64{0, 0, 0}, block)

	_, ok, err := enc.Decode(block)
	require.NoError(t, err)
	assert.False(t, ok)

	strict := fittedEncoder(t, WithHandleUnknown(UnknownError))
	err = strict.Encode("Cancelled", make([]float64, 3))
	var uce *errors.UnknownCategoryError
	assert.True(t, errors.As(err, &uce))
}

func TestOneHotEncoder_Errors(t *testing.T) {
	_, err := NewOneHotEncoder(NewDictionarizer("x"))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	enc := fittedEncoder(t)
	err = enc.Encode("New", make([]float64, 2))
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 3, dimErr.Expected)
}

func TestOneHotEncoder_FeatureNames(t *testing.T) {
	enc := fittedEncoder(t)
	assert.Equal(t, []string{"NewRenewal=New", "NewRenewal=Renewal", "NewRenewal=Lapsed"}, enc.FeatureNames())
}
