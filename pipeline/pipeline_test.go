package pipeline

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/claimrate/config"
	"github.com/YuminosukeSato/claimrate/dataset"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
	"github.com/YuminosukeSato/claimrate/preprocessing"
)

const twoRows = "2018-01-01\t2019-01-01\tFirm\t1\tNew\tAAA\t12345\t0.0\t100.0\n" +
	"2018-02-01\t2019-02-01\tFirm\t2\tRenew\tBBB\t54321\t1.0\t200.0\n"

func loadTwoRows(t *testing.T) []dataset.ClaimsRecord {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claims.txt")
	require.NoError(t, os.WriteFile(path, []byte(twoRows), 0o600))
	records, err := dataset.LoadFile(path, dataset.DefaultSeparator)
	require.NoError(t, err)
	require.Len(t, records, 2)
	return records
}

func rowOne() dataset.ClaimsRecord {
	return dataset.ClaimsRecord{
		InceptionDate:       "2018-01-01",
		ExpirationDate:      "2019-01-01",
		PoliciesPerDocument: 1,
		NewRenewal:          "New",
		BusinessTypeCode:    "AAA",
		PostalCode:          "12345",
		ThreeYearClaims:     0,
	}
}

func TestFeaturizer_Layout(t *testing.T) {
	records := loadTwoRows(t)
	f, err := NewFeaturizer(records, preprocessing.UnknownIgnore)
	require.NoError(t, err)

	// 5列 × 語彙2 + 数値2列
	assert.Equal(t, 12, f.Width())
	assert.Equal(t, []string{
		"InceptionDate=2018-01-01", "InceptionDate=2018-02-01",
		"ExpirationDate=2019-01-01", "ExpirationDate=2019-02-01",
		"PoliciesPerDocument",
		"NewRenewal=New", "NewRenewal=Renew",
		"BusinessTypeCode=AAA", "BusinessTypeCode=BBB",
		"PostalCode=12345", "PostalCode=54321",
		"ThreeYearClaims",
	}, f.FeatureNames())

	row, err := f.TransformOne(records[1])
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1, 2, 0, 1, 0, 1, 0, 1, 1}, row)

	X, err := f.Transform(records)
	require.NoError(t, err)
	assert.Equal(t, row, X.RawRowView(1))

	y := f.Labels(records)
	assert.Equal(t, 100.0, y.At(0, 0))
	assert.Equal(t, 200.0, y.At(1, 0))
	assert.Nil(t, f.Labels(nil))
}

func TestFeaturizer_WidthIsVocabularyPlusTwo(t *testing.T) {
	records := []dataset.ClaimsRecord{
		{InceptionDate: "a", ExpirationDate: "x", NewRenewal: "New", BusinessTypeCode: "B1", PostalCode: "P1"},
		{InceptionDate: "b", ExpirationDate: "x", NewRenewal: "New", BusinessTypeCode: "B2", PostalCode: "P2"},
		{InceptionDate: "c", ExpirationDate: "y", NewRenewal: "Renew", BusinessTypeCode: "B1", PostalCode: "P3"},
	}
	f, err := NewFeaturizer(records, preprocessing.UnknownIgnore)
	require.NoError(t, err)

	sum := 0
	for _, col := range []string{
		dataset.ColInceptionDate, dataset.ColExpirationDate, dataset.ColNewRenewal,
		dataset.ColBusinessTypeCode, dataset.ColPostalCode,
	} {
		d := f.Dictionarizer(col)
		require.NotNil(t, d, col)
		sum += d.Size()
	}
	assert.Equal(t, 3+2+2+2+3, sum)
	assert.Equal(t, sum+2, f.Width())
	assert.Nil(t, f.Dictionarizer(dataset.ColPolicyStatus))
}

func TestFeaturizer_Deterministic(t *testing.T) {
	records := loadTwoRows(t)
	a, err := NewFeaturizer(records, preprocessing.UnknownIgnore)
	require.NoError(t, err)
	b, err := NewFeaturizer(records, preprocessing.UnknownIgnore)
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprints(), b.Fingerprints())
	assert.Len(t, a.Fingerprints(), 5)

	Xa, err := a.Transform(records)
	require.NoError(t, err)
	Xb, err := b.Transform(records)
	require.NoError(t, err)
	assert.Equal(t, Xa.RawMatrix().Data, Xb.RawMatrix().Data)
}

func TestFeaturizer_Empty(t *testing.T) {
	_, err := NewFeaturizer(nil, preprocessing.UnknownIgnore)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestTrain_TwoRowsEveryTrainer(t *testing.T) {
	records := loadTwoRows(t)

	for _, kind := range config.TrainerKinds() {
		t.Run(string(kind), func(t *testing.T) {
			m, err := Train(records, config.DefaultTrainer(kind), preprocessing.UnknownIgnore)
			require.NoError(t, err)

			res, err := m.Predict(rowOne())
			require.NoError(t, err)
			assert.False(t, math.IsNaN(res.PredictedRate) || math.IsInf(res.PredictedRate, 0))

			ev, err := Evaluate(m, records)
			require.NoError(t, err)
			for _, v := range []float64{ev.RMS, ev.RSquared, ev.L1, ev.L2} {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			}
		})
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	records := loadTwoRows(t)
	m, err := Train(records, config.DefaultTrainer(config.TrainerFastForest), preprocessing.UnknownIgnore)
	require.NoError(t, err)

	first, err := Evaluate(m, records)
	require.NoError(t, err)
	second, err := Evaluate(m, records)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPredict_UnknownCategory(t *testing.T) {
	records := loadTwoRows(t)
	oov := rowOne()
	oov.PostalCode = "MK46 5JA"

	t.Run("ignore", func(t *testing.T) {
		var warnings []error
		errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
		t.Cleanup(func() { errors.SetWarningHandler(nil) })

		m, err := Train(records, config.DefaultTrainer(config.TrainerOLS), preprocessing.UnknownIgnore)
		require.NoError(t, err)
		res, err := m.Predict(oov)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(res.PredictedRate))

		require.Len(t, warnings, 1)
		var w *errors.UnknownCategoryWarning
		require.True(t, errors.As(warnings[0], &w))
		assert.Equal(t, dataset.ColPostalCode, w.Column)
	})

	t.Run("error", func(t *testing.T) {
		m, err := Train(records, config.DefaultTrainer(config.TrainerOLS), preprocessing.UnknownError)
		require.NoError(t, err)
		_, err = m.Predict(oov)
		var uce *errors.UnknownCategoryError
		require.True(t, errors.As(err, &uce))
		assert.Equal(t, "MK46 5JA", uce.Value)
	})
}

func TestNewRegressor(t *testing.T) {
	names := map[config.TrainerKind]string{
		config.TrainerFastTree:        "GradientBoostingRegressor",
		config.TrainerFastTreeTweedie: "GradientBoostingRegressor",
		config.TrainerFastForest:      "RandomForestRegressor",
		config.TrainerGAM:             "GAMRegressor",
		config.TrainerPoisson:         "PoissonRegressor",
		config.TrainerSDCA:            "SDCARegressor",
		config.TrainerOLS:             "OLSRegressor",
	}
	for kind, name := range names {
		reg, err := NewRegressor(config.DefaultTrainer(kind))
		require.NoError(t, err)
		assert.Equal(t, name, reg.Name())
		assert.False(t, reg.IsFitted())
	}

	_, err := NewRegressor(config.Trainer{Kind: "xgboost"})
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "trainer", verr.ParamName)
}

func TestTrain_LogsAndImportances(t *testing.T) {
	provider, logger := log.NewTestLoggerProvider(log.LevelInfo)
	log.SetProvider(provider)
	t.Cleanup(func() { log.SetProvider(log.NewZerologProvider(os.Stderr, log.LevelInfo)) })

	records := make([]dataset.ClaimsRecord, 0, 40)
	for i := 0; i < 40; i++ {
		r := rowOne()
		r.Premium = 100
		if i%2 == 1 {
			r.BusinessTypeCode = "BBB"
			r.Premium = 300
		}
		records = append(records, r)
	}

	tr := config.DefaultTrainer(config.TrainerFastTree)
	tr.NumTrees = 5
	m, err := Train(records, tr, preprocessing.UnknownIgnore)
	require.NoError(t, err)

	assert.True(t, logger.ContainsMessage("Model trained"))
	assert.True(t, logger.ContainsField(log.TrainerKey, "fasttree"))

	top := m.TopFeatures(1)
	require.Len(t, top, 1)
	assert.Contains(t, top[0].Name, "BusinessTypeCode=")

	lin, err := Train(records, config.DefaultTrainer(config.TrainerOLS), preprocessing.UnknownIgnore)
	require.NoError(t, err)
	assert.Nil(t, lin.TopFeatures(3))
}
