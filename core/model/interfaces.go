// Package model defines the estimator interfaces shared by the learners and the
// validation helpers every Fit and Predict starts with.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor is what the pipeline trains: one learner chosen by configuration.
type Regressor interface {
	Fitter
	Predictor

	// Name returns the estimator type name used in logs and errors.
	Name() string

	// IsFitted reports whether Fit has completed successfully.
	IsFitted() bool
}

// ParameterGetter is implemented by learners that expose their hyperparameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}
