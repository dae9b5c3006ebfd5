package model

import (
	"github.com/google/uuid"
)

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は全てのモデルの基底となる構造体
//
// 学習状態と、学習時に見た特徴量数、ログ用の推定器IDを保持する。
type BaseEstimator struct {
	state     EstimatorState
	id        string
	nFeatures int
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted はモデルを学習済み状態に設定し、特徴量数を記録する
func (e *BaseEstimator) SetFitted(nFeatures int) {
	e.state = Fitted
	e.nFeatures = nFeatures
}

// Reset はモデルを初期状態にリセットする。IDは新しく振り直される。
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
	e.nFeatures = 0
	e.id = ""
}

// NFeatures は学習時の特徴量数を返す。未学習なら0。
func (e *BaseEstimator) NFeatures() int {
	return e.nFeatures
}

// EstimatorID はログの相関に使うUUIDを返す。初回呼び出し時に採番する。
func (e *BaseEstimator) EstimatorID() string {
	if e.id == "" {
		e.id = uuid.NewString()
	}
	return e.id
}
