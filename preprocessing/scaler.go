package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/claimrate/core/model"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

// MinMaxScaler は各特徴量を学習データの範囲で割って [-1, 1] 程度に揃える。
//
// FixZero が true のときは 0 を 0 のまま保つ (x / max|x|)。one-hot 列のような
// 疎な特徴量はそのまま残る。false のときは [0, 1] への通常のmin-max変換。
type MinMaxScaler struct {
	model.BaseEstimator

	// FixZero は0を保存するかどうか (デフォルト: true)
	FixZero bool

	// Offset と Scale は x' = (x - Offset[j]) * Scale[j] の係数
	Offset []float64
	Scale  []float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewMinMaxScaler(true)
//	XScaled, err := scaler.FitTransform(X)
func NewMinMaxScaler(fixZero bool) *MinMaxScaler {
	return &MinMaxScaler{FixZero: fixZero}
}

// Fit は訓練データから各列の範囲を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	m.Offset = make([]float64, c)
	m.Scale = make([]float64, c)
	for j := 0; j < c; j++ {
		lo, hi := X.At(0, j), X.At(0, j)
		for i := 1; i < r; i++ {
			v := X.At(i, j)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}

		var span float64
		if m.FixZero {
			span = math.Max(math.Abs(lo), math.Abs(hi))
		} else {
			m.Offset[j] = lo
			span = hi - lo
		}
		// 定数特徴量の場合、スケールを1に設定
		if span < 1e-12 {
			m.Scale[j] = 1.0
		} else {
			m.Scale[j] = 1.0 / span
		}
	}

	m.SetFitted(c)
	return nil
}

// Transform は学習済みの係数でデータを変換する
func (m *MinMaxScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "Transform")
	}
	r, c := X.Dims()
	if c != m.NFeatures() {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures(), c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - m.Offset[j]) * m.Scale[j]
	}, X)
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform は変換済みデータを元のスケールに戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (*mat.Dense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "InverseTransform")
	}
	r, c := X.Dims()
	if c != m.NFeatures() {
		return nil, errors.NewDimensionError("MinMaxScaler.InverseTransform", m.NFeatures(), c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v/m.Scale[j] + m.Offset[j]
	}, X)
	return result, nil
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fix_zero": m.FixZero,
	}
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(fix_zero=%t)", m.FixZero)
	}
	return fmt.Sprintf("MinMaxScaler(fix_zero=%t, n_features=%d)", m.FixZero, m.NFeatures())
}
