// Package ensemble implements the tree-ensemble regressors: gradient boosting
// (optionally with DART tree dropout), random forest and a boosted-stump
// generalized additive model. All of them grow trees with sklearn/tree.Builder.
package ensemble

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/claimrate/core/model"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
	"github.com/YuminosukeSato/claimrate/sklearn/tree"
)

// GradientBoostingRegressor fits an additive ensemble of leaf-wise trees to the
// gradients of an objective. With DropoutRate > 0 each round drops a random subset
// of the existing trees before computing gradients (DART) and renormalizes.
type GradientBoostingRegressor struct {
	model.BaseEstimator

	// Hyperparameters
	NumTrees             int
	NumLeaves            int
	LearningRate         float64
	MinDataInLeaf        int
	Lambda               float64 // L2 regularization on leaf values
	DropoutRate          float64
	Objective            string // regression, poisson or tweedie
	TweedieVariancePower float64
	Seed                 int64

	// Fitted state
	objective    ObjectiveFunction
	initScore    float64
	trees        []*tree.Tree
	featureGains []float64
}

// NewGradientBoostingRegressor creates a regressor with default parameters
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		NumTrees:             100,
		NumLeaves:            20,
		LearningRate:         0.2,
		MinDataInLeaf:        10,
		Lambda:               0,
		DropoutRate:          0,
		Objective:            ObjectiveRegression,
		TweedieVariancePower: 1.5,
		Seed:                 0,
	}
}

// WithNumTrees sets the number of boosting rounds
func (g *GradientBoostingRegressor) WithNumTrees(n int) *GradientBoostingRegressor {
	g.NumTrees = n
	return g
}

// WithNumLeaves sets the maximum number of leaves per tree
func (g *GradientBoostingRegressor) WithNumLeaves(n int) *GradientBoostingRegressor {
	g.NumLeaves = n
	return g
}

// WithLearningRate sets the shrinkage rate
func (g *GradientBoostingRegressor) WithLearningRate(lr float64) *GradientBoostingRegressor {
	g.LearningRate = lr
	return g
}

// WithMinDataInLeaf sets the minimum number of samples per leaf
func (g *GradientBoostingRegressor) WithMinDataInLeaf(n int) *GradientBoostingRegressor {
	g.MinDataInLeaf = n
	return g
}

// WithLambda sets the L2 regularization of leaf values
func (g *GradientBoostingRegressor) WithLambda(lambda float64) *GradientBoostingRegressor {
	g.Lambda = lambda
	return g
}

// WithDropoutRate enables DART tree dropout
func (g *GradientBoostingRegressor) WithDropoutRate(rate float64) *GradientBoostingRegressor {
	g.DropoutRate = rate
	return g
}

// WithObjective sets the objective. tweedie uses TweedieVariancePower.
func (g *GradientBoostingRegressor) WithObjective(objective string) *GradientBoostingRegressor {
	g.Objective = objective
	return g
}

// WithSeed sets the dropout RNG seed
func (g *GradientBoostingRegressor) WithSeed(seed int64) *GradientBoostingRegressor {
	g.Seed = seed
	return g
}

// Name implements model.Regressor.
func (g *GradientBoostingRegressor) Name() string {
	return "GradientBoostingRegressor"
}

func (g *GradientBoostingRegressor) validateParams() error {
	switch {
	case g.NumTrees < 1:
		return errors.NewValidationError("num_trees", "must be >= 1", g.NumTrees)
	case g.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be >= 2", g.NumLeaves)
	case g.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be > 0", g.LearningRate)
	case g.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be >= 1", g.MinDataInLeaf)
	case g.Lambda < 0:
		return errors.NewValidationError("lambda", "must be >= 0", g.Lambda)
	case g.DropoutRate < 0 || g.DropoutRate >= 1:
		return errors.NewValidationError("dropout_rate", "must be in [0, 1)", g.DropoutRate)
	}
	return nil
}

// Fit trains the ensemble
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	if err := g.validateParams(); err != nil {
		return err
	}
	rows, cols, err := model.CheckXY("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	obj, err := CreateObjectiveFunction(g.Objective, g.TweedieVariancePower)
	if err != nil {
		return err
	}
	labels := model.Column(y)
	if usesLogLink(obj) {
		for _, v := range labels {
			if v < 0 {
				return errors.NewValueError("GradientBoostingRegressor.Fit",
					fmt.Sprintf("objective %s requires non-negative labels, got %g", obj.Name(), v))
			}
		}
	}

	logger := log.GetLoggerWithName("ensemble.gbdt").With(
		log.ModelNameKey, g.Name(),
		log.EstimatorIDKey, g.EstimatorID(),
	)
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.TreesKey, g.NumTrees,
		log.LearningRateKey, g.LearningRate,
		"objective", obj.Name(),
		"dropout_rate", g.DropoutRate,
	)

	builder := tree.NewBuilder(X, tree.Params{
		NumLeaves:      g.NumLeaves,
		MinDataInLeaf:  g.MinDataInLeaf,
		Lambda:         g.Lambda,
		MinGainToSplit: 1e-7,
	})
	rng := rand.New(rand.NewPCG(uint64(g.Seed), 0x9e3779b97f4a7c15))

	g.objective = obj
	g.initScore = obj.GetInitScore(labels)
	g.trees = make([]*tree.Tree, 0, g.NumTrees)
	g.featureGains = make([]float64, cols)

	indices := make([]int, rows)
	scores := make([]float64, rows)
	for i := range indices {
		indices[i] = i
		scores[i] = g.initScore
	}
	// contributions[t][i] は木 t の学習サンプル i への出力 (重み込み)
	contributions := make([][]float64, 0, g.NumTrees)
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	current := make([]float64, rows)

	for iter := 0; iter < g.NumTrees; iter++ {
		dropped := g.selectDropped(rng, len(g.trees))

		copy(current, scores)
		for _, d := range dropped {
			for i := range current {
				current[i] -= contributions[d][i]
			}
		}
		for i := range labels {
			grad[i] = obj.CalculateGradient(current[i], labels[i])
			hess[i] = obj.CalculateHessian(current[i], labels[i])
		}

		t := builder.Build(grad, hess, indices, nil)
		k := float64(len(dropped))
		t.Scale(g.LearningRate / (1 + k))

		contrib := make([]float64, rows)
		for i := range contrib {
			contrib[i] = t.Predict(builder.Row(i))
			scores[i] += contrib[i]
		}

		// 落とした木は k/(k+1) 倍に縮める
		if len(dropped) > 0 {
			factor := k / (k + 1)
			for _, d := range dropped {
				g.trees[d].Scale(factor)
				for i := range scores {
					scores[i] += contributions[d][i] * (factor - 1)
					contributions[d][i] *= factor
				}
			}
		}

		g.trees = append(g.trees, t)
		contributions = append(contributions, contrib)
		t.AddGains(g.featureGains)

		if err := errors.CheckNumericalStability("GradientBoostingRegressor.Fit", scores, iter); err != nil {
			return err
		}
		if logger.Enabled(context.Background(), log.LevelDebug) && (iter+1)%max(1, g.NumTrees/10) == 0 {
			logger.Debug("Training progress",
				log.IterationKey, iter+1,
				log.LossKey, g.meanLoss(scores, labels),
				"leaves", t.NumLeaves,
				"dropped", len(dropped),
			)
		}
	}

	g.SetFitted(cols)
	logger.Info("Training completed",
		log.TreesKey, len(g.trees),
		log.LossKey, g.meanLoss(scores, labels),
	)
	return nil
}

func (g *GradientBoostingRegressor) selectDropped(rng *rand.Rand, numTrees int) []int {
	if g.DropoutRate <= 0 || numTrees == 0 {
		return nil
	}
	var dropped []int
	for t := 0; t < numTrees; t++ {
		if rng.Float64() < g.DropoutRate {
			dropped = append(dropped, t)
		}
	}
	return dropped
}

func (g *GradientBoostingRegressor) meanLoss(scores, labels []float64) float64 {
	var loss float64
	for i := range scores {
		loss += g.objective.CalculateLoss(scores[i], labels[i])
	}
	return loss / float64(len(scores))
}

// Predict makes predictions for input samples
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, err := model.CheckPredict(g.Name(), &g.BaseEstimator, X)
	if err != nil {
		return nil, err
	}

	predictions := mat.NewDense(rows, 1, nil)
	row := make([]float64, g.NFeatures())
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		raw := g.initScore
		for _, t := range g.trees {
			raw += t.Predict(row)
		}
		predictions.Set(i, 0, g.objective.Transform(raw))
	}
	return predictions, nil
}

// NumFittedTrees returns the number of trees in the fitted ensemble
func (g *GradientBoostingRegressor) NumFittedTrees() int {
	return len(g.trees)
}

// FeatureImportances returns split-gain importances normalized to sum to 1.
func (g *GradientBoostingRegressor) FeatureImportances() []float64 {
	return normalize(g.featureGains)
}

// GetParams returns the model's hyperparameters.
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"num_trees":              g.NumTrees,
		"num_leaves":             g.NumLeaves,
		"learning_rate":          g.LearningRate,
		"min_data_in_leaf":       g.MinDataInLeaf,
		"lambda":                 g.Lambda,
		"dropout_rate":           g.DropoutRate,
		"objective":              g.Objective,
		"tweedie_variance_power": g.TweedieVariancePower,
		"seed":                   g.Seed,
	}
}

func normalize(gains []float64) []float64 {
	out := make([]float64, len(gains))
	var total float64
	for _, v := range gains {
		total += v
	}
	if total == 0 {
		return out
	}
	for i, v := range gains {
		out[i] = v / total
	}
	return out
}
