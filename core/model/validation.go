package model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

// CheckXY は学習データの形を検証し、行数と列数を返す。
//
//   - X が空なら ErrEmptyData を包んだ ModelError
//   - y の行数が X と違えば DimensionError (axis 0)
//   - y が列ベクトルでなければ ValueError
//   - NaN/Inf を含めば ValueError
func CheckXY(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != rows {
		return 0, 0, errors.NewDimensionError(op, rows, ry, 0)
	}
	if cy != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	for i := 0; i < rows; i++ {
		if v := y.At(i, 0); math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, errors.NewValueError(op, "y contains NaN or Inf")
		}
		for j := 0; j < cols; j++ {
			if v := X.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, errors.NewValueError(op, "X contains NaN or Inf")
			}
		}
	}
	return rows, cols, nil
}

// CheckPredict は予測入力を検証する。未学習なら NotFittedError、
// 列数が学習時と違えば DimensionError (axis 1)。
func CheckPredict(name string, e *BaseEstimator, X mat.Matrix) (rows int, err error) {
	if !e.IsFitted() {
		return 0, errors.NewNotFittedError(name, "Predict")
	}
	r, c := X.Dims()
	if c != e.NFeatures() {
		return 0, errors.NewDimensionError(name+".Predict", e.NFeatures(), c, 1)
	}
	return r, nil
}

// Column は n×1 行列の中身をスライスにコピーする
func Column(y mat.Matrix) []float64 {
	r, _ := y.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out
}
