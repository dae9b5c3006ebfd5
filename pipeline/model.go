package pipeline

import (
	"sort"
	"time"

	"github.com/YuminosukeSato/claimrate/config"
	"github.com/YuminosukeSato/claimrate/core/model"
	"github.com/YuminosukeSato/claimrate/dataset"
	"github.com/YuminosukeSato/claimrate/linear"
	"github.com/YuminosukeSato/claimrate/metrics"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
	"github.com/YuminosukeSato/claimrate/preprocessing"
	"github.com/YuminosukeSato/claimrate/sklearn/ensemble"
)

// NewRegressor builds the learner selected by cfg.Kind.
func NewRegressor(cfg config.Trainer) (model.Regressor, error) {
	switch cfg.Kind {
	case config.TrainerFastTree, config.TrainerFastTreeTweedie:
		objective := ensemble.ObjectiveRegression
		if cfg.Kind == config.TrainerFastTreeTweedie {
			objective = ensemble.ObjectiveTweedie
		}
		g := ensemble.NewGradientBoostingRegressor().
			WithNumTrees(cfg.NumTrees).
			WithNumLeaves(cfg.NumLeaves).
			WithLearningRate(cfg.LearningRate).
			WithMinDataInLeaf(cfg.MinDataInLeaf).
			WithLambda(cfg.L2Weight).
			WithDropoutRate(cfg.DropoutRate).
			WithObjective(objective).
			WithSeed(cfg.Seed)
		g.TweedieVariancePower = cfg.TweediePower
		return g, nil

	case config.TrainerFastForest:
		return ensemble.NewRandomForestRegressor().
			WithNumTrees(cfg.NumTrees).
			WithNumLeaves(cfg.NumLeaves).
			WithMinDataInLeaf(cfg.MinDataInLeaf).
			WithFeatureFraction(cfg.FeatureFraction).
			WithNumThreads(cfg.NumThreads).
			WithSeed(cfg.Seed), nil

	case config.TrainerGAM:
		return ensemble.NewGAMRegressor().
			WithNumIterations(cfg.MaxIterations).
			WithLearningRate(cfg.LearningRate).
			WithMinDataInLeaf(cfg.MinDataInLeaf), nil

	case config.TrainerPoisson:
		return linear.NewPoissonRegressor(
			linear.WithMaxIterations(cfg.MaxIterations),
			linear.WithTol(cfg.Tol),
			linear.WithL1Weight(cfg.L1Weight),
			linear.WithL2Weight(cfg.L2Weight),
			linear.WithLearningRate(cfg.LearningRate),
		), nil

	case config.TrainerSDCA:
		return linear.NewSDCARegressor(
			linear.WithMaxIterations(cfg.MaxIterations),
			linear.WithTol(cfg.Tol),
			linear.WithL2Weight(cfg.L2Weight),
			linear.WithSeed(cfg.Seed),
		), nil

	case config.TrainerOLS:
		return linear.NewOLSRegressor(linear.WithL2Weight(cfg.L2Weight)), nil
	}
	return nil, errors.NewValidationError("trainer", "unknown trainer kind", string(cfg.Kind))
}

// Model is a fitted featurizer together with the learner trained on its output.
type Model struct {
	featurizer    *Featurizer
	regressor     model.Regressor
	trainer       config.Trainer
	trainDuration time.Duration
}

// Train fits the featurizer on records, then trains the configured learner.
func Train(records []dataset.ClaimsRecord, trainer config.Trainer, unknown preprocessing.HandleUnknown) (*Model, error) {
	logger := log.GetLoggerWithName("pipeline").With(log.PhaseKey, "training", log.TrainerKey, string(trainer.Kind))

	reg, err := NewRegressor(trainer)
	if err != nil {
		return nil, err
	}
	f, err := NewFeaturizer(records, unknown)
	if err != nil {
		return nil, err
	}
	X, err := f.Transform(records)
	if err != nil {
		return nil, err
	}
	y := f.Labels(records)

	start := time.Now()
	if err := reg.Fit(X, y); err != nil {
		return nil, errors.Wrapf(err, "train %s", reg.Name())
	}
	elapsed := time.Since(start)

	logger.Info("Model trained",
		log.ModelNameKey, reg.Name(),
		log.SamplesKey, len(records),
		log.FeaturesKey, f.Width(),
		log.DurationMsKey, elapsed.Milliseconds(),
	)
	return &Model{featurizer: f, regressor: reg, trainer: trainer, trainDuration: elapsed}, nil
}

// Featurizer returns the fitted featurizer.
func (m *Model) Featurizer() *Featurizer {
	return m.featurizer
}

// Regressor returns the trained learner.
func (m *Model) Regressor() model.Regressor {
	return m.regressor
}

// Trainer returns the configuration the model was trained with.
func (m *Model) Trainer() config.Trainer {
	return m.trainer
}

// TrainDuration returns the wall time of the learner's Fit.
func (m *Model) TrainDuration() time.Duration {
	return m.trainDuration
}

// Predict scores one record.
func (m *Model) Predict(r dataset.ClaimsRecord) (dataset.PredictionResult, error) {
	pred, err := m.PredictBatch([]dataset.ClaimsRecord{r})
	if err != nil {
		return dataset.PredictionResult{}, err
	}
	return dataset.PredictionResult{PredictedRate: pred[0]}, nil
}

// PredictBatch scores every record in order.
func (m *Model) PredictBatch(records []dataset.ClaimsRecord) ([]float64, error) {
	X, err := m.featurizer.Transform(records)
	if err != nil {
		return nil, err
	}
	pred, err := m.regressor.Predict(X)
	if err != nil {
		return nil, err
	}
	return model.Column(pred), nil
}

// Evaluate predicts every record and compares against its Premium.
func Evaluate(m *Model, records []dataset.ClaimsRecord) (metrics.RegressionMetrics, error) {
	pred, err := m.PredictBatch(records)
	if err != nil {
		return metrics.RegressionMetrics{}, err
	}
	labels := make([]float64, len(records))
	for i, r := range records {
		labels[i] = r.Label()
	}
	res, err := metrics.Regression(labels, pred)
	if err != nil {
		return metrics.RegressionMetrics{}, err
	}

	log.GetLoggerWithName("pipeline").Info("Model evaluated",
		log.PhaseKey, "evaluation",
		log.SamplesKey, len(records),
		log.RMSKey, res.RMS,
		log.R2ScoreKey, res.RSquared,
	)
	return res, nil
}

// FeatureImportance pairs a feature name with its normalized importance.
type FeatureImportance struct {
	Name       string
	Importance float64
}

// TopFeatures returns the k most important features for tree learners, or nil
// when the learner does not report importances.
func (m *Model) TopFeatures(k int) []FeatureImportance {
	imp, ok := m.regressor.(interface{ FeatureImportances() []float64 })
	if !ok {
		return nil
	}
	values := imp.FeatureImportances()
	names := m.featurizer.FeatureNames()
	out := make([]FeatureImportance, 0, len(values))
	for j, v := range values {
		if v > 0 && j < len(names) {
			out = append(out, FeatureImportance{Name: names[j], Importance: v})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	if k < len(out) {
		out = out[:k]
	}
	return out
}
