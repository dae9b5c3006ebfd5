package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

func TestDictionarizer_FirstSeenOrder(t *testing.T) {
	d := NewDictionarizer("NewRenewal")
	require.NoError(t, d.Fit([]string{"Renewal", "New", "Renewal", "New", "Lapsed"}))

	assert.Equal(t, []string{"Renewal", "New", "Lapsed"}, d.Vocabulary())
	assert.Equal(t, 3, d.Size())

	for i, v := range d.Vocabulary() {
		idx, err := d.Transform(v)
		require.NoError(t, err)
		assert.Equal(t, i, idx)

		back, err := d.InverseTransform(idx)
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}

func TestDictionarizer_Deterministic(t *testing.T) {
	values := []string{"VVC", "ABC", "VVC", "XYZ"}
	a := NewDictionarizer("BusinessTypeCode")
	b := NewDictionarizer("BusinessTypeCode")
	require.NoError(t, a.Fit(values))
	require.NoError(t, b.Fit(values))

	assert.Equal(t, a.Vocabulary(), b.Vocabulary())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := NewDictionarizer("BusinessTypeCode")
	require.NoError(t, c.Fit([]string{"ABC", "VVC", "XYZ"}))
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint(), "order is part of the vocabulary")

	// "a"+"bc" と "ab"+"c" は区切りで区別される
	x := NewDictionarizer("col")
	y := NewDictionarizer("col")
	require.NoError(t, x.Fit([]string{"a", "bc"}))
	require.NoError(t, y.Fit([]string{"ab", "c"}))
	assert.NotEqual(t, x.Fingerprint(), y.Fingerprint())
}

func TestDictionarizer_ImmutableAfterFit(t *testing.T) {
	d := NewDictionarizer("PostalCode")
	require.NoError(t, d.Fit([]string{"MK46 5JA"}))

	err := d.Fit([]string{"SW1A 1AA"})
	var valErr *errors.ValueError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, []string{"MK46 5JA"}, d.Vocabulary())

	d.Reset()
	assert.False(t, d.IsFitted())
	require.NoError(t, d.Fit([]string{"SW1A 1AA"}))
	assert.Equal(t, []string{"SW1A 1AA"}, d.Vocabulary())
}

func TestDictionarizer_Errors(t *testing.T) {
	d := NewDictionarizer("InceptionDate")

	_, err := d.Transform("9/10/2018")
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = d.Fit(nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	require.NoError(t, d.Fit([]string{"9/10/2018"}))
	_, err = d.InverseTransform(1)
	assert.Error(t, err)
	_, err = d.InverseTransform(-1)
	assert.Error(t, err)
}

func TestDictionarizer_UnknownPolicy(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	ignore := NewDictionarizer("PostalCode")
	require.NoError(t, ignore.Fit([]string{"AB1 2CD"}))
	idx, err := ignore.Transform("ZZ9 9ZZ")
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
	require.Len(t, warnings, 1)
	var w *errors.UnknownCategoryWarning
	require.True(t, errors.As(warnings[0], &w))
	assert.Equal(t, "PostalCode", w.Column)
	assert.Equal(t, "ZZ9 9ZZ", w.Value)

	strict := NewDictionarizer("PostalCode", WithHandleUnknown(UnknownError))
	require.NoError(t, strict.Fit([]string{"AB1 2CD"}))
	_, err = strict.Transform("ZZ9 9ZZ")
	var uce *errors.UnknownCategoryError
	require.True(t, errors.As(err, &uce))
	assert.Equal(t, "ZZ9 9ZZ", uce.Value)
}

func TestParseHandleUnknown(t *testing.T) {
	tests := []struct {
		in      string
		want    HandleUnknown
		wantErr bool
	}{
		{"", UnknownIgnore, false},
		{"ignore", UnknownIgnore, false},
		{"ERROR", UnknownError, false},
		{"drop", UnknownIgnore, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHandleUnknown(tt.in)
			if tt.wantErr {
				var verr *errors.ValidationError
				assert.True(t, errors.As(err, &verr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
