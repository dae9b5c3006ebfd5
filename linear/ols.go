package linear

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/claimrate/core/model"
	"github.com/YuminosukeSato/claimrate/core/parallel"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
)

// OLSRegressor is least squares with a small ridge term
//
//	w = (Xc^T Xc + n·λ·I)^(-1) Xc^T yc
//
// where Xc and yc are centered, so the intercept is not penalized. One-hot
// blocks are collinear with the intercept, and λ > 0 keeps the system
// positive definite.
type OLSRegressor struct {
	model.BaseEstimator
	Params

	weights   []float64
	intercept float64
}

// NewOLSRegressor は新しい最小二乗回帰モデルを作成する (L2Weight: 1e-6)
func NewOLSRegressor(opts ...Option) *OLSRegressor {
	o := &OLSRegressor{Params: Params{MaxIterations: 1, L2Weight: 1e-6}}
	o.apply(opts)
	return o
}

// Name implements model.Regressor.
func (o *OLSRegressor) Name() string {
	return "OLSRegressor"
}

// Fit は正規方程式をコレスキー分解で解く
func (o *OLSRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "OLSRegressor.Fit")

	if o.L2Weight < 0 {
		return errors.NewValidationError("l2_weight", "must be >= 0", o.L2Weight)
	}
	r, c, err := model.CheckXY("OLSRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("linear.ols").With(
		log.ModelNameKey, o.Name(),
		log.EstimatorIDKey, o.EstimatorID(),
	)
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, r,
		log.FeaturesKey, c,
		log.RegularizationKey, o.L2Weight,
	)

	labels := model.Column(y)
	means := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		means[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(labels, nil)

	// 中心化した X を作る
	Xc := mat.NewDense(r, c, nil)
	// 並列処理の閾値（この値以下の行数では逐次処理を使用）
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				Xc.Set(i, j, X.At(i, j)-means[j])
			}
		}
	})

	var xtx mat.SymDense
	xtx.SymOuterK(1, Xc.T())
	ridge := float64(r) * o.L2Weight
	for j := 0; j < c; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+ridge)
	}

	yc := make([]float64, r)
	for i := range labels {
		yc[i] = labels[i] - yMean
	}
	var xty mat.VecDense
	xty.MulVec(Xc.T(), mat.NewVecDense(r, yc))

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return errors.NewModelError("OLSRegressor.Fit", "singular matrix", errors.ErrSingularMatrix)
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &xty); err != nil {
		return errors.NewModelError("OLSRegressor.Fit", "singular matrix", errors.Wrap(errors.ErrSingularMatrix, err.Error()))
	}

	o.weights = make([]float64, c)
	for j := range o.weights {
		o.weights[j] = w.AtVec(j)
	}
	o.intercept = yMean - floats.Dot(means, o.weights)
	if err := errors.CheckNumericalStability("OLSRegressor.Fit", o.weights, 0); err != nil {
		return err
	}
	o.SetFitted(c)

	logger.Info("Training completed", "intercept", o.intercept)
	return nil
}

// Predict は y = X * weights + intercept を返す
func (o *OLSRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, err := model.CheckPredict(o.Name(), &o.BaseEstimator, X)
	if err != nil {
		return nil, err
	}
	var pred mat.VecDense
	pred.MulVec(X, mat.NewVecDense(len(o.weights), o.weights))
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, pred.AtVec(i)+o.intercept)
	}
	return out, nil
}

// Coefficients は学習された重み（係数）のコピーを返す
func (o *OLSRegressor) Coefficients() []float64 {
	if o.weights == nil {
		return nil
	}
	return append([]float64(nil), o.weights...)
}

// Intercept は学習された切片を返す
func (o *OLSRegressor) Intercept() float64 {
	return o.intercept
}

// GetParams returns the hyperparameters.
func (o *OLSRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"l2_weight": o.L2Weight,
	}
}
