package linear

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/claimrate/core/model"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
	"github.com/YuminosukeSato/claimrate/preprocessing"
)

// PoissonRegressor is a Poisson GLM with log link and elastic-net penalty.
//
// It minimizes
//
//	(1/n) Σ (exp(η_i) - y_i·η_i) + L2/2·||w||² + L1·||w||₁,   η_i = b + w·x_i
//
// by proximal gradient descent with backtracking. Features are scaled to
// [-1, 1] with a zero-preserving MinMaxScaler before training.
type PoissonRegressor struct {
	model.BaseEstimator
	Params

	scaler    *preprocessing.MinMaxScaler
	weights   []float64
	intercept float64
	nIter     int
	converged bool
}

// NewPoissonRegressor creates a Poisson regressor.
// Defaults: MaxIterations 1000, L1Weight 0.8, L2Weight 0.2, LearningRate 0.1, Tol 1e-7.
func NewPoissonRegressor(opts ...Option) *PoissonRegressor {
	p := &PoissonRegressor{Params: Params{
		MaxIterations: 1000,
		Tol:           1e-7,
		L1Weight:      0.8,
		L2Weight:      0.2,
		LearningRate:  0.1,
	}}
	p.apply(opts)
	return p
}

// Name implements model.Regressor.
func (p *PoissonRegressor) Name() string {
	return "PoissonRegressor"
}

// Fit trains the model. Labels must be non-negative counts or rates.
func (p *PoissonRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "PoissonRegressor.Fit")

	if err := p.validate(true, true); err != nil {
		return err
	}
	n, c, err := model.CheckXY("PoissonRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	labels := model.Column(y)
	if floats.Min(labels) < 0 {
		return errors.NewValueError("PoissonRegressor.Fit", "labels must be non-negative for the poisson loss")
	}

	logger := log.GetLoggerWithName("linear.poisson").With(
		log.ModelNameKey, p.Name(),
		log.EstimatorIDKey, p.EstimatorID(),
	)
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, c,
		log.LearningRateKey, p.LearningRate,
		log.RegularizationKey, map[string]float64{"l1": p.L1Weight, "l2": p.L2Weight},
	)

	p.scaler = preprocessing.NewMinMaxScaler(true)
	Xs, err := p.scaler.FitTransform(X)
	if err != nil {
		return errors.Wrap(err, "scale features")
	}

	w := make([]float64, c)
	b := math.Log(math.Max(floats.Sum(labels)/float64(n), 1e-10))
	obj := &poissonObjective{X: Xs, y: labels, l2: p.L2Weight}
	f := obj.value(w, b)
	F := f + p.L1Weight*floats.Norm(w, 1)

	gw := make([]float64, c)
	wNew := make([]float64, c)
	step := p.LearningRate
	p.converged = false
	p.nIter = 0

	for iter := 0; iter < p.MaxIterations; iter++ {
		gb := obj.gradient(w, b, gw)

		// バックトラッキング: 二次上界を満たすまでステップを半分にする
		step *= 2
		var bNew, fNew float64
		for {
			for j := range w {
				wNew[j] = softThreshold(w[j]-step*gw[j], step*p.L1Weight)
			}
			bNew = b - step*gb
			fNew = obj.value(wNew, bNew)

			db := bNew - b
			var lin, sq float64
			for j := range w {
				d := wNew[j] - w[j]
				lin += gw[j] * d
				sq += d * d
			}
			lin += gb * db
			sq += db * db
			if fNew <= f+lin+sq/(2*step) || step < 1e-12 {
				break
			}
			step /= 2
		}

		copy(w, wNew)
		b = bNew
		f = fNew
		FNew := f + p.L1Weight*floats.Norm(w, 1)
		if err := errors.CheckScalar("PoissonRegressor.Fit", FNew, iter); err != nil {
			return err
		}
		p.nIter = iter + 1

		if logger.Enabled(context.Background(), log.LevelDebug) && p.nIter%max(1, p.MaxIterations/10) == 0 {
			logger.Debug("Training progress", log.IterationKey, p.nIter, log.LossKey, FNew)
		}
		if math.Abs(F-FNew) <= p.Tol*math.Max(1, math.Abs(F)) {
			p.converged = true
			F = FNew
			break
		}
		F = FNew
	}

	p.weights = w
	p.intercept = b
	p.SetFitted(c)

	if !p.converged {
		errors.Warn(errors.NewConvergenceWarning(p.Name(), p.nIter, "objective still decreasing"))
	}
	logger.Info("Training completed",
		log.IterationKey, p.nIter,
		log.LossKey, F,
		"converged", p.converged,
		"nonzero_weights", countNonZero(w),
	)
	return nil
}

// Predict returns exp(b + w·x) for every row.
func (p *PoissonRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, err := model.CheckPredict(p.Name(), &p.BaseEstimator, X)
	if err != nil {
		return nil, err
	}
	Xs, err := p.scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	var eta mat.VecDense
	eta.MulVec(Xs, mat.NewVecDense(len(p.weights), p.weights))
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, errors.StabilizeExp(eta.AtVec(i)+p.intercept))
	}
	return out, nil
}

// Coefficients returns the weights in the units of the unscaled features.
func (p *PoissonRegressor) Coefficients() []float64 {
	if !p.IsFitted() {
		return nil
	}
	out := make([]float64, len(p.weights))
	floats.MulTo(out, p.weights, p.scaler.Scale)
	return out
}

// Intercept returns the bias on the log scale.
func (p *PoissonRegressor) Intercept() float64 {
	return p.intercept
}

// NIter returns the number of iterations run by the last Fit.
func (p *PoissonRegressor) NIter() int {
	return p.nIter
}

// Converged reports whether the last Fit met Tol.
func (p *PoissonRegressor) Converged() bool {
	return p.converged
}

// GetParams returns the hyperparameters.
func (p *PoissonRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_iterations": p.MaxIterations,
		"tol":            p.Tol,
		"l1_weight":      p.L1Weight,
		"l2_weight":      p.L2Weight,
		"learning_rate":  p.LearningRate,
	}
}

// poissonObjective is the smooth part of the penalized Poisson loss.
type poissonObjective struct {
	X  *mat.Dense
	y  []float64
	l2 float64

	eta mat.VecDense
}

func (o *poissonObjective) linear(w []float64, b float64) {
	o.eta.MulVec(o.X, mat.NewVecDense(len(w), w))
	for i := 0; i < o.eta.Len(); i++ {
		o.eta.SetVec(i, o.eta.AtVec(i)+b)
	}
}

func (o *poissonObjective) value(w []float64, b float64) float64 {
	o.linear(w, b)
	var loss float64
	for i, yi := range o.y {
		eta := o.eta.AtVec(i)
		loss += errors.StabilizeExp(eta) - yi*eta
	}
	norm := floats.Norm(w, 2)
	return loss/float64(len(o.y)) + 0.5*o.l2*norm*norm
}

// gradient writes ∂/∂w into gw and returns ∂/∂b.
func (o *poissonObjective) gradient(w []float64, b float64, gw []float64) float64 {
	o.linear(w, b)
	n := len(o.y)
	residual := make([]float64, n)
	for i, yi := range o.y {
		residual[i] = errors.StabilizeExp(o.eta.AtVec(i)) - yi
	}
	var g mat.VecDense
	g.MulVec(o.X.T(), mat.NewVecDense(n, residual))
	inv := 1 / float64(n)
	for j := range gw {
		gw[j] = g.AtVec(j)*inv + o.l2*w[j]
	}
	return floats.Sum(residual) * inv
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}

func countNonZero(w []float64) int {
	n := 0
	for _, v := range w {
		if v != 0 {
			n++
		}
	}
	return n
}
