// Package metrics computes the regression metrics reported after training.
package metrics

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

// RegressionMetrics はモデル評価の結果
type RegressionMetrics struct {
	L1       float64 // 平均絶対誤差
	L2       float64 // 平均二乗誤差
	RMS      float64 // L2 の平方根
	RSquared float64 // 決定係数
}

// MarshalZerologObject はzerologのイベントに評価結果を追加します。
func (m RegressionMetrics) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("l1", m.L1).
		Float64("l2", m.L2).
		Float64("rms", m.RMS).
		Float64("r2", m.RSquared)
}

// Regression は4つの指標をまとめて計算する
func Regression(yTrue, yPred []float64) (RegressionMetrics, error) {
	if err := checkPair("Regression", yTrue, yPred); err != nil {
		return RegressionMetrics{}, err
	}
	l1, _ := MAE(yTrue, yPred)
	l2, _ := MSE(yTrue, yPred)
	r2, _ := R2Score(yTrue, yPred)
	return RegressionMetrics{
		L1:       l1,
		L2:       l2,
		RMS:      math.Sqrt(l2),
		RSquared: r2,
	}, nil
}

func checkPair(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	for i := range yPred {
		if math.IsNaN(yPred[i]) || math.IsInf(yPred[i], 0) {
			return errors.NewValueError(op, "predictions contain NaN or Inf")
		}
	}
	return nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MSE", yTrue, yPred); err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	d := floats.Distance(yTrue, yPred, 2)
	return d * d / float64(len(yTrue)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MAE", yTrue, yPred); err != nil {
		return 0, err
	}
	// MAE = (1/n) * Σ|yTrue - yPred|
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue)), nil
}

// R2Score は決定係数（R²）を計算する。
//
// yTrue の分散が0のときは未定義なので、予測が完全一致なら1、そうでなければ0を返し、
// UndefinedMetricWarning を出す。NaN は返さない。
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}

	yMean := stat.Mean(yTrue, nil)
	var tss, rss float64
	for i := range yTrue {
		tss += (yTrue[i] - yMean) * (yTrue[i] - yMean)
		rss += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
	}

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2", "zero variance in labels", result))
		return result, nil
	}
	return 1 - rss/tss, nil
}
