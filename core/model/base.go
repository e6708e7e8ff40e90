package model

import "github.com/YuminosukeSato/coupling/pkg/errors"

// EstimatorState はモデルの学習状態
type EstimatorState int

const (
	NotFitted EstimatorState = iota
	Fitted
)

// BaseEstimator は学習状態だけを持つ埋め込み用の構造体。
// フォールドや試行ごとに新しいモデルを作るので、学習済みモデルを再学習することはない。
type BaseEstimator struct {
	state EstimatorState
}

func (e *BaseEstimator) IsFitted() bool { return e.state == Fitted }

func (e *BaseEstimator) SetFitted() { e.state = Fitted }

// Reset は未学習状態に戻す。Fit の途中で失敗したときに使う。
func (e *BaseEstimator) Reset() { e.state = NotFitted }

// CheckFitted は未学習なら NotFittedError を返す
func (e *BaseEstimator) CheckFitted(modelName, method string) error {
	if e.state != Fitted {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}
