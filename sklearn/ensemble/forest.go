package ensemble

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/claimrate/core/model"
	"github.com/YuminosukeSato/claimrate/core/parallel"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
	"github.com/YuminosukeSato/claimrate/sklearn/tree"
)

// RandomForestRegressor averages independently grown trees, each fitted on a
// bootstrap sample and a random subset of the features.
//
// Trees are fitted by NumThreads workers. Every tree draws from its own RNG
// seeded from (Seed, tree index), so the fitted forest does not depend on
// scheduling or on NumThreads.
type RandomForestRegressor struct {
	model.BaseEstimator

	NumTrees        int
	NumLeaves       int
	MinDataInLeaf   int
	FeatureFraction float64 // fraction of features each tree may split on
	Bootstrap       bool
	NumThreads      int // <= 0 uses every CPU
	Seed            int64

	trees        []*tree.Tree
	featureGains []float64
}

// NewRandomForestRegressor creates a forest with default parameters
func NewRandomForestRegressor() *RandomForestRegressor {
	return &RandomForestRegressor{
		NumTrees:        100,
		NumLeaves:       20,
		MinDataInLeaf:   10,
		FeatureFraction: 0.7,
		Bootstrap:       true,
		NumThreads:      0,
		Seed:            0,
	}
}

// WithNumTrees sets the number of trees
func (f *RandomForestRegressor) WithNumTrees(n int) *RandomForestRegressor {
	f.NumTrees = n
	return f
}

// WithNumLeaves sets the maximum number of leaves per tree
func (f *RandomForestRegressor) WithNumLeaves(n int) *RandomForestRegressor {
	f.NumLeaves = n
	return f
}

// WithMinDataInLeaf sets the minimum number of samples per leaf
func (f *RandomForestRegressor) WithMinDataInLeaf(n int) *RandomForestRegressor {
	f.MinDataInLeaf = n
	return f
}

// WithFeatureFraction sets the per-tree feature sampling ratio
func (f *RandomForestRegressor) WithFeatureFraction(fraction float64) *RandomForestRegressor {
	f.FeatureFraction = fraction
	return f
}

// WithNumThreads sets the number of worker goroutines
func (f *RandomForestRegressor) WithNumThreads(n int) *RandomForestRegressor {
	f.NumThreads = n
	return f
}

// WithSeed sets the base seed
func (f *RandomForestRegressor) WithSeed(seed int64) *RandomForestRegressor {
	f.Seed = seed
	return f
}

// Name implements model.Regressor.
func (f *RandomForestRegressor) Name() string {
	return "RandomForestRegressor"
}

func (f *RandomForestRegressor) validateParams() error {
	switch {
	case f.NumTrees < 1:
		return errors.NewValidationError("num_trees", "must be >= 1", f.NumTrees)
	case f.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be >= 2", f.NumLeaves)
	case f.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be >= 1", f.MinDataInLeaf)
	case f.FeatureFraction <= 0 || f.FeatureFraction > 1:
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", f.FeatureFraction)
	}
	return nil
}

// Fit grows the forest
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if err := f.validateParams(); err != nil {
		return err
	}
	rows, cols, err := model.CheckXY("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("ensemble.forest").With(
		log.ModelNameKey, f.Name(),
		log.EstimatorIDKey, f.EstimatorID(),
	)
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.TreesKey, f.NumTrees,
		log.RandomSeedKey, f.Seed,
		"num_threads", f.NumThreads,
	)
	start := time.Now()

	// 勾配 -y、ヘッセ 1、λ=0 なら葉の値はラベルの平均になる
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	for i := 0; i < rows; i++ {
		grad[i] = -y.At(i, 0)
		hess[i] = 1
	}
	builder := tree.NewBuilder(X, tree.Params{
		NumLeaves:      f.NumLeaves,
		MinDataInLeaf:  f.MinDataInLeaf,
		MinGainToSplit: 1e-12,
	})

	numFeatures := int(math.Max(1, math.Round(f.FeatureFraction*float64(cols))))
	trees := make([]*tree.Tree, f.NumTrees)
	treeErrs := make([]error, f.NumTrees)

	parallel.ParallelizeWorkers(f.NumTrees, f.NumThreads, func(startTree, endTree int) {
		for t := startTree; t < endTree; t++ {
			treeErrs[t] = errors.SafeExecute("RandomForestRegressor.buildTree", func() error {
				rng := rand.New(rand.NewPCG(uint64(f.Seed), uint64(t)))
				trees[t] = builder.Build(grad, hess,
					f.sampleRows(rng, rows),
					sampleFeatures(rng, cols, numFeatures))
				return nil
			})
		}
	})
	for _, e := range treeErrs {
		if e != nil {
			return e
		}
	}

	f.trees = trees
	f.featureGains = make([]float64, cols)
	for _, t := range trees {
		t.AddGains(f.featureGains)
	}
	f.SetFitted(cols)

	logger.Info("Training completed",
		log.TreesKey, len(trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (f *RandomForestRegressor) sampleRows(rng *rand.Rand, rows int) []int {
	indices := make([]int, rows)
	for i := range indices {
		if f.Bootstrap {
			indices[i] = rng.IntN(rows)
		} else {
			indices[i] = i
		}
	}
	return indices
}

// sampleFeatures picks k distinct features in ascending order, nil when k == cols.
func sampleFeatures(rng *rand.Rand, cols, k int) []int {
	if k >= cols {
		return nil
	}
	features := rng.Perm(cols)[:k]
	sort.Ints(features)
	return features
}

// Predict averages the trees' outputs
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, err := model.CheckPredict(f.Name(), &f.BaseEstimator, X)
	if err != nil {
		return nil, err
	}

	predictions := mat.NewDense(rows, 1, nil)
	row := make([]float64, f.NFeatures())
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		var sum float64
		for _, t := range f.trees {
			sum += t.Predict(row)
		}
		predictions.Set(i, 0, sum/float64(len(f.trees)))
	}
	return predictions, nil
}

// FeatureImportances returns split-gain importances normalized to sum to 1.
func (f *RandomForestRegressor) FeatureImportances() []float64 {
	return normalize(f.featureGains)
}

// GetParams returns the model's hyperparameters.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"num_trees":        f.NumTrees,
		"num_leaves":       f.NumLeaves,
		"min_data_in_leaf": f.MinDataInLeaf,
		"feature_fraction": f.FeatureFraction,
		"bootstrap":        f.Bootstrap,
		"num_threads":      f.NumThreads,
		"seed":             f.Seed,
	}
}
