package ensemble

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/claimrate/core/model"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
	"github.com/YuminosukeSato/claimrate/sklearn/tree"
)

// GAMRegressor is a generalized additive model
//
//	y ≈ intercept + Σ_j f_j(x_j)
//
// where every shape function f_j is piecewise constant. It is fitted by cyclic
// boosting of single-feature stumps on the squared-error residual, then the
// stumps of each feature are merged into one lookup table.
type GAMRegressor struct {
	model.BaseEstimator

	NumIterations int
	LearningRate  float64
	MinDataInLeaf int
	MaxBin        int

	intercept float64
	shapes    []ShapeFunction
}

// ShapeFunction maps one feature value to its additive contribution.
// Values[k] applies when Thresholds[k-1] < x <= Thresholds[k].
type ShapeFunction struct {
	Thresholds []float64
	Values     []float64
}

// Eval returns f(x).
func (s ShapeFunction) Eval(x float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return s.Values[sort.SearchFloat64s(s.Thresholds, x)]
}

type stump struct {
	threshold   float64
	left, right float64
}

// NewGAMRegressor creates a GAM with default parameters
func NewGAMRegressor() *GAMRegressor {
	return &GAMRegressor{
		NumIterations: 500,
		LearningRate:  0.02,
		MinDataInLeaf: 10,
		MaxBin:        255,
	}
}

// WithNumIterations sets the number of boosting passes over the features
func (g *GAMRegressor) WithNumIterations(n int) *GAMRegressor {
	g.NumIterations = n
	return g
}

// WithLearningRate sets the shrinkage rate
func (g *GAMRegressor) WithLearningRate(lr float64) *GAMRegressor {
	g.LearningRate = lr
	return g
}

// WithMinDataInLeaf sets the minimum number of samples per stump side
func (g *GAMRegressor) WithMinDataInLeaf(n int) *GAMRegressor {
	g.MinDataInLeaf = n
	return g
}

// Name implements model.Regressor.
func (g *GAMRegressor) Name() string {
	return "GAMRegressor"
}

// Fit trains the shape functions
func (g *GAMRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GAMRegressor.Fit")

	switch {
	case g.NumIterations < 1:
		return errors.NewValidationError("num_iterations", "must be >= 1", g.NumIterations)
	case g.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be > 0", g.LearningRate)
	case g.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be >= 1", g.MinDataInLeaf)
	}
	rows, cols, err := model.CheckXY("GAMRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("ensemble.gam").With(
		log.ModelNameKey, g.Name(),
		log.EstimatorIDKey, g.EstimatorID(),
	)
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.IterationKey, g.NumIterations,
		log.LearningRateKey, g.LearningRate,
	)

	obj := NewL2Objective()
	labels := model.Column(y)
	builder := tree.NewBuilder(X, tree.Params{
		NumLeaves:      2,
		MinDataInLeaf:  g.MinDataInLeaf,
		MinGainToSplit: 1e-12,
		MaxBin:         g.MaxBin,
	})

	g.intercept = obj.GetInitScore(labels)
	scores := make([]float64, rows)
	indices := make([]int, rows)
	for i := range scores {
		scores[i] = g.intercept
		indices[i] = i
	}
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	stumps := make([][]stump, cols)
	feature := make([]int, 1)

	for iter := 0; iter < g.NumIterations; iter++ {
		for j := 0; j < cols; j++ {
			for i := range labels {
				grad[i] = obj.CalculateGradient(scores[i], labels[i])
				hess[i] = obj.CalculateHessian(scores[i], labels[i])
			}
			feature[0] = j
			t := builder.Build(grad, hess, indices, feature)
			if t.NumLeaves < 2 {
				continue
			}
			t.Scale(g.LearningRate)
			root := t.Nodes[0]
			s := stump{
				threshold: root.Threshold,
				left:      t.Nodes[root.Left].Value,
				right:     t.Nodes[root.Right].Value,
			}
			stumps[j] = append(stumps[j], s)
			for i := range scores {
				if builder.Row(i)[j] <= s.threshold {
					scores[i] += s.left
				} else {
					scores[i] += s.right
				}
			}
		}
		if err := errors.CheckNumericalStability("GAMRegressor.Fit", scores, iter); err != nil {
			return err
		}
		if logger.Enabled(context.Background(), log.LevelDebug) && (iter+1)%max(1, g.NumIterations/10) == 0 {
			var loss float64
			for i := range scores {
				loss += obj.CalculateLoss(scores[i], labels[i])
			}
			logger.Debug("Training progress", log.IterationKey, iter+1, log.LossKey, loss/float64(rows))
		}
	}

	g.shapes = make([]ShapeFunction, cols)
	active := 0
	for j := range stumps {
		g.shapes[j] = mergeStumps(stumps[j])
		if len(stumps[j]) > 0 {
			active++
		}
	}
	g.SetFitted(cols)

	logger.Info("Training completed", "active_features", active)
	return nil
}

// mergeStumps folds a feature's stumps into one piecewise-constant function.
func mergeStumps(stumps []stump) ShapeFunction {
	if len(stumps) == 0 {
		return ShapeFunction{}
	}
	thresholds := make([]float64, 0, len(stumps))
	seen := make(map[float64]bool)
	for _, s := range stumps {
		if !seen[s.threshold] {
			seen[s.threshold] = true
			thresholds = append(thresholds, s.threshold)
		}
	}
	sort.Float64s(thresholds)

	values := make([]float64, len(thresholds)+1)
	for _, s := range stumps {
		// 区間 k は x <= thresholds[k] (最後の区間は上限なし)
		for k := range values {
			if k < len(thresholds) && thresholds[k] <= s.threshold {
				values[k] += s.left
			} else {
				values[k] += s.right
			}
		}
	}
	return ShapeFunction{Thresholds: thresholds, Values: values}
}

// Predict evaluates intercept + Σ f_j(x_j)
func (g *GAMRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, err := model.CheckPredict(g.Name(), &g.BaseEstimator, X)
	if err != nil {
		return nil, err
	}

	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		sum := g.intercept
		for j, shape := range g.shapes {
			sum += shape.Eval(X.At(i, j))
		}
		predictions.Set(i, 0, sum)
	}
	return predictions, nil
}

// Intercept returns the fitted bias.
func (g *GAMRegressor) Intercept() float64 {
	return g.intercept
}

// Shape returns the shape function of feature j.
func (g *GAMRegressor) Shape(j int) ShapeFunction {
	return g.shapes[j]
}

// GetParams returns the model's hyperparameters.
func (g *GAMRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"num_iterations":   g.NumIterations,
		"learning_rate":    g.LearningRate,
		"min_data_in_leaf": g.MinDataInLeaf,
		"max_bin":          g.MaxBin,
	}
}
