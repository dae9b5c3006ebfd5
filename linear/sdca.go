package linear

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/claimrate/core/model"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
	"github.com/YuminosukeSato/claimrate/preprocessing"
)

// SDCARegressor is ridge regression trained by stochastic dual coordinate ascent.
//
// Primal:
//
//	P(w) = (1/n) Σ ½(w·x_i - y_i)² + λ/2·||w||²
//
// For the squared loss every dual coordinate has a closed-form update
//
//	Δα_i = (y_i - w·x_i - α_i) / (1 + ||x_i||²/(λn)),   w += Δα_i·x_i/(λn)
//
// and training stops when the duality gap P(w) - D(α) falls below
// Tol·max(1, P(w)). λ is Params.L2Weight. A constant bias feature is appended
// and labels are centered, features are scaled with a zero-preserving
// MinMaxScaler.
type SDCARegressor struct {
	model.BaseEstimator
	Params

	scaler    *preprocessing.MinMaxScaler
	weights   []float64
	bias      float64
	yMean     float64
	nIter     int
	converged bool
	gap       float64
}

// NewSDCARegressor creates an SDCA regressor.
// Defaults: MaxIterations 1000, L2Weight 1e-4, Tol 1e-6, Shuffle true, Seed 0.
func NewSDCARegressor(opts ...Option) *SDCARegressor {
	s := &SDCARegressor{Params: Params{
		MaxIterations: 1000,
		Tol:           1e-6,
		L2Weight:      1e-4,
		Shuffle:       true,
	}}
	s.apply(opts)
	return s
}

// Name implements model.Regressor.
func (s *SDCARegressor) Name() string {
	return "SDCARegressor"
}

// Fit trains the model
func (s *SDCARegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SDCARegressor.Fit")

	if err := s.validate(false, false); err != nil {
		return err
	}
	if s.L2Weight <= 0 {
		return errors.NewValidationError("l2_weight", "must be > 0 for SDCA", s.L2Weight)
	}
	n, c, err := model.CheckXY("SDCARegressor.Fit", X, y)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("linear.sdca").With(
		log.ModelNameKey, s.Name(),
		log.EstimatorIDKey, s.EstimatorID(),
	)
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, c,
		log.RegularizationKey, s.L2Weight,
		log.RandomSeedKey, s.Seed,
	)

	s.scaler = preprocessing.NewMinMaxScaler(true)
	Xs, err := s.scaler.FitTransform(X)
	if err != nil {
		return errors.Wrap(err, "scale features")
	}

	labels := model.Column(y)
	s.yMean = stat.Mean(labels, nil)
	target := append([]float64(nil), labels...)
	floats.AddConst(-s.yMean, target)

	// 各行の ||x_i||² (バイアス分の1を含む)
	sqNorm := make([]float64, n)
	for i := 0; i < n; i++ {
		row := Xs.RawRowView(i)
		sqNorm[i] = floats.Dot(row, row) + 1
	}

	lambdaN := s.L2Weight * float64(n)
	alpha := make([]float64, n)
	w := make([]float64, c)
	var bias float64
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(uint64(s.Seed), uint64(n)))

	s.converged = false
	s.nIter = 0
	for epoch := 0; epoch < s.MaxIterations; epoch++ {
		if s.Shuffle {
			rng.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })
		}
		for _, i := range order {
			row := Xs.RawRowView(i)
			pred := floats.Dot(w, row) + bias
			delta := (target[i] - pred - alpha[i]) / (1 + sqNorm[i]/lambdaN)
			alpha[i] += delta
			step := delta / lambdaN
			floats.AddScaled(w, step, row)
			bias += step
		}

		primal, dual := s.objectives(Xs, target, alpha, w, bias)
		s.gap = primal - dual
		s.nIter = epoch + 1
		if err := errors.CheckScalar("SDCARegressor.Fit", s.gap, epoch); err != nil {
			return err
		}
		if logger.Enabled(context.Background(), log.LevelDebug) && s.nIter%max(1, s.MaxIterations/10) == 0 {
			logger.Debug("Training progress", log.IterationKey, s.nIter, log.LossKey, primal, "duality_gap", s.gap)
		}
		if s.gap <= s.Tol*math.Max(1, math.Abs(primal)) {
			s.converged = true
			break
		}
	}

	s.weights = w
	s.bias = bias
	s.SetFitted(c)

	if !s.converged {
		errors.Warn(errors.NewConvergenceWarning(s.Name(), s.nIter, "duality gap above tolerance"))
	}
	logger.Info("Training completed",
		log.IterationKey, s.nIter,
		"duality_gap", s.gap,
		"converged", s.converged,
	)
	return nil
}

// objectives returns the primal and dual objective values.
func (s *SDCARegressor) objectives(Xs *mat.Dense, target, alpha, w []float64, bias float64) (primal, dual float64) {
	n := len(target)
	for i := 0; i < n; i++ {
		r := floats.Dot(w, Xs.RawRowView(i)) + bias - target[i]
		primal += 0.5 * r * r
		dual += alpha[i]*target[i] - 0.5*alpha[i]*alpha[i]
	}
	reg := 0.5 * s.L2Weight * (floats.Dot(w, w) + bias*bias)
	primal = primal/float64(n) + reg
	dual = dual/float64(n) - reg
	return primal, dual
}

// Predict returns w·x + b for every row.
func (s *SDCARegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, err := model.CheckPredict(s.Name(), &s.BaseEstimator, X)
	if err != nil {
		return nil, err
	}
	Xs, err := s.scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, floats.Dot(s.weights, Xs.RawRowView(i))+s.bias+s.yMean)
	}
	return out, nil
}

// Coefficients returns the weights in the units of the unscaled features.
func (s *SDCARegressor) Coefficients() []float64 {
	if !s.IsFitted() {
		return nil
	}
	out := make([]float64, len(s.weights))
	floats.MulTo(out, s.weights, s.scaler.Scale)
	return out
}

// Intercept returns the bias including the label mean.
func (s *SDCARegressor) Intercept() float64 {
	return s.bias + s.yMean
}

// DualityGap returns the gap after the last epoch.
func (s *SDCARegressor) DualityGap() float64 {
	return s.gap
}

// NIter returns the number of epochs run by the last Fit.
func (s *SDCARegressor) NIter() int {
	return s.nIter
}

// Converged reports whether the last Fit met Tol.
func (s *SDCARegressor) Converged() bool {
	return s.converged
}

// GetParams returns the hyperparameters.
func (s *SDCARegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_iterations": s.MaxIterations,
		"tol":            s.Tol,
		"l2_weight":      s.L2Weight,
		"shuffle":        s.Shuffle,
		"seed":           s.Seed,
	}
}
