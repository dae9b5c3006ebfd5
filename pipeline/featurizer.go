// Package pipeline ties the claims run together: it fits the featurizer,
// trains the configured learner, evaluates it and predicts single records.
package pipeline

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/claimrate/dataset"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
	"github.com/YuminosukeSato/claimrate/preprocessing"
)

// slot is one input column of the feature layout. Categorical slots carry an
// encoder and expand to a one-hot block, numeric slots take one column.
type slot struct {
	column  string
	text    func(dataset.ClaimsRecord) string
	number  func(dataset.ClaimsRecord) float64
	encoder *preprocessing.OneHotEncoder
	offset  int
	width   int
}

// layout は特徴量の固定順序。PolicyStatus と Premium は含まない。
func layout() []slot {
	return []slot{
		{column: dataset.ColInceptionDate, text: func(r dataset.ClaimsRecord) string { return r.InceptionDate }},
		{column: dataset.ColExpirationDate, text: func(r dataset.ClaimsRecord) string { return r.ExpirationDate }},
		{column: dataset.ColPoliciesPerDocument, number: func(r dataset.ClaimsRecord) float64 { return float64(r.PoliciesPerDocument) }},
		{column: dataset.ColNewRenewal, text: func(r dataset.ClaimsRecord) string { return r.NewRenewal }},
		{column: dataset.ColBusinessTypeCode, text: func(r dataset.ClaimsRecord) string { return r.BusinessTypeCode }},
		{column: dataset.ColPostalCode, text: func(r dataset.ClaimsRecord) string { return r.PostalCode }},
		{column: dataset.ColThreeYearClaims, number: func(r dataset.ClaimsRecord) float64 { return r.ThreeYearClaims }},
	}
}

// Featurizer turns claims records into feature rows. It is fitted once on the
// training records and is immutable afterwards.
type Featurizer struct {
	slots []slot
	width int
}

// NewFeaturizer fits one Dictionarizer per categorical column on records.
func NewFeaturizer(records []dataset.ClaimsRecord, unknown preprocessing.HandleUnknown) (*Featurizer, error) {
	if len(records) == 0 {
		return nil, errors.NewModelError("NewFeaturizer", "empty data", errors.ErrEmptyData)
	}

	logger := log.GetLoggerWithName("pipeline.featurizer")
	f := &Featurizer{slots: layout()}
	values := make([]string, len(records))
	for k := range f.slots {
		s := &f.slots[k]
		s.offset = f.width
		if s.text == nil {
			s.width = 1
			f.width++
			continue
		}

		for i, r := range records {
			values[i] = s.text(r)
		}
		d := preprocessing.NewDictionarizer(s.column, preprocessing.WithHandleUnknown(unknown))
		if err := d.Fit(values); err != nil {
			return nil, errors.Wrapf(err, "fit dictionarizer for %s", s.column)
		}
		enc, err := preprocessing.NewOneHotEncoder(d)
		if err != nil {
			return nil, err
		}
		s.encoder = enc
		s.width = enc.Width()
		f.width += s.width

		logger.Debug("Vocabulary fitted",
			log.ColumnKey, s.column,
			log.VocabularySizeKey, d.Size(),
			log.FingerprintKey, d.Fingerprint(),
		)
	}

	logger.Info("Featurizer fitted", log.SamplesKey, len(records), log.FeaturesKey, f.width)
	return f, nil
}

// Width is the number of feature columns: the vocabulary sizes plus two numeric columns.
func (f *Featurizer) Width() int {
	return f.width
}

// FeatureNames returns "column=value" for one-hot columns and the column name
// for numeric ones, in feature order.
func (f *Featurizer) FeatureNames() []string {
	names := make([]string, 0, f.width)
	for _, s := range f.slots {
		if s.encoder == nil {
			names = append(names, s.column)
			continue
		}
		names = append(names, s.encoder.FeatureNames()...)
	}
	return names
}

// Dictionarizer returns the fitted dictionarizer of a categorical column, or nil.
func (f *Featurizer) Dictionarizer(column string) *preprocessing.Dictionarizer {
	for _, s := range f.slots {
		if s.column == column && s.encoder != nil {
			return s.encoder.Dictionarizer()
		}
	}
	return nil
}

// Fingerprints returns the vocabulary fingerprint of every categorical column.
func (f *Featurizer) Fingerprints() map[string]uint64 {
	out := make(map[string]uint64)
	for _, s := range f.slots {
		if s.encoder != nil {
			out[s.column] = s.encoder.Dictionarizer().Fingerprint()
		}
	}
	return out
}

// TransformOne writes the feature row of one record.
func (f *Featurizer) TransformOne(r dataset.ClaimsRecord) ([]float64, error) {
	row := make([]float64, f.width)
	if err := f.transformInto(r, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (f *Featurizer) transformInto(r dataset.ClaimsRecord, row []float64) error {
	for _, s := range f.slots {
		if s.encoder == nil {
			row[s.offset] = s.number(r)
			continue
		}
		if err := s.encoder.Encode(s.text(r), row[s.offset:s.offset+s.width]); err != nil {
			return err
		}
	}
	return nil
}

// Transform builds the n×Width feature matrix.
func (f *Featurizer) Transform(records []dataset.ClaimsRecord) (*mat.Dense, error) {
	if len(records) == 0 {
		return nil, errors.NewModelError("Featurizer.Transform", "empty data", errors.ErrEmptyData)
	}
	X := mat.NewDense(len(records), f.width, nil)
	for i, r := range records {
		if err := f.transformInto(r, X.RawRowView(i)); err != nil {
			return nil, errors.Wrapf(err, "record %d", i)
		}
	}
	return X, nil
}

// Labels returns the Premium column as an n×1 matrix, or nil for no records.
func (f *Featurizer) Labels(records []dataset.ClaimsRecord) *mat.Dense {
	if len(records) == 0 {
		return nil
	}
	y := mat.NewDense(len(records), 1, nil)
	for i, r := range records {
		y.Set(i, 0, r.Label())
	}
	return y
}
