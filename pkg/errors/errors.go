// Package errors はパイプライン全体のエラー型と警告システムを提供します。
// すべてのコンストラクタは cockroachdb/errors でスタックトレースを付与し、
// zerolog で構造化ログとして出力できるよう MarshalZerologObject を実装します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("coupling-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は警告ハンドラを設定します。
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nil を渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	モデル・データに関するエラー型
//
// ===========================================================================

// NotFittedError は未学習のモデルで `Predict` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("coupling: %s: model is not fitted yet, call Fit() before %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("coupling: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError はモデルのハイパーパラメータ検証に失敗した場合のエラーです。
// チューニング中はこのエラーを返した候補は TrialFailure として扱われます。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("coupling: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切な場合のエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("coupling: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は学習器内部で発生した一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("coupling: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("coupling: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError は数値計算でNaNやInfが発生した場合のエラーです。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "gradient", "leaf_value"）
	Values    []float64 // 問題のある値
	Iteration int       // 発生したイテレーション番号
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("coupling: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// ===========================================================================
//
//	モデル選択・交差検証のエラー型
//
// ===========================================================================

// ConfigurationError は設定値やパラメータ空間が不正な場合のエラーです。
// 学習開始前に検出され、回復されません。
type ConfigurationError struct {
	Field  string
	Reason string
	Value  interface{}
}

func (e *ConfigurationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("coupling: invalid configuration '%s': %s (got: %v)", e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("coupling: invalid configuration '%s': %s", e.Field, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("field", e.Field).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigurationError")
}

// NewConfigurationError は新しいConfigurationErrorを作成し、スタックトレースを付与します。
func NewConfigurationError(field, reason string, value interface{}) error {
	return errors.WithStack(&ConfigurationError{Field: field, Reason: reason, Value: value})
}

// DataInsufficientError は分割後のパーティションが空になる場合や
// 学習データとテストデータのスキーマが一致しない場合のエラーです。
type DataInsufficientError struct {
	Op     string
	Reason string
	Rows   int
}

func (e *DataInsufficientError) Error() string {
	return fmt.Sprintf("coupling: %s: insufficient data (%d rows): %s", e.Op, e.Rows, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DataInsufficientError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Int("rows", e.Rows).
		Str("type", "DataInsufficientError")
}

// NewDataInsufficientError は新しいDataInsufficientErrorを作成し、スタックトレースを付与します。
func NewDataInsufficientError(op, reason string, rows int) error {
	return errors.WithStack(&DataInsufficientError{Op: op, Reason: reason, Rows: rows})
}

// TrialFailure は単一のチューニング試行が失敗したことを示します。
// Tuner はこのエラーをローカルで回復し、次の候補に進みます。
type TrialFailure struct {
	Trial int
	Err   error
}

func (e *TrialFailure) Error() string {
	return fmt.Sprintf("coupling: trial %d failed: %v", e.Trial, e.Err)
}

func (e *TrialFailure) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TrialFailure) MarshalZerologObject(event *zerolog.Event) {
	event.Int("trial", e.Trial).
		Str("cause", fmt.Sprint(e.Err)).
		Str("type", "TrialFailure")
}

// NewTrialFailure は新しいTrialFailureを作成し、スタックトレースを付与します。
func NewTrialFailure(trial int, err error) error {
	return errors.WithStack(&TrialFailure{Trial: trial, Err: err})
}

// TuningExhaustedError は試行回数の上限に達しても成功試行数が足りなかった場合のエラーです。
// Best にはそれまでの最良値が入ります（成功試行がなければ NaN）。
type TuningExhaustedError struct {
	Study      string
	Successful int
	Requested  int
	Attempts   int
	Best       float64
}

func (e *TuningExhaustedError) Error() string {
	return fmt.Sprintf("coupling: study %s: tuning exhausted after %d attempts with %d/%d successful trials (best=%g)",
		e.Study, e.Attempts, e.Successful, e.Requested, e.Best)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TuningExhaustedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("study", e.Study).
		Int("successful", e.Successful).
		Int("requested", e.Requested).
		Int("attempts", e.Attempts).
		Float64("best", e.Best).
		Str("type", "TuningExhaustedError")
}

// HasBest は少なくとも1つの試行が成功したかどうかを返します。
func (e *TuningExhaustedError) HasBest() bool {
	return e.Successful > 0
}

// NewTuningExhaustedError は新しいTuningExhaustedErrorを作成し、スタックトレースを付与します。
func NewTuningExhaustedError(study string, successful, requested, attempts int, best float64) error {
	return errors.WithStack(&TuningExhaustedError{
		Study:      study,
		Successful: successful,
		Requested:  requested,
		Attempts:   attempts,
		Best:       best,
	})
}

// ShapeMismatchError はアンサンブルやキャッシュ読み込みで形状・インデックスが一致しない場合のエラーです。
type ShapeMismatchError struct {
	Op       string
	Expected int
	Got      int
	Detail   string
}

func (e *ShapeMismatchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("coupling: %s: shape mismatch, expected %d got %d: %s", e.Op, e.Expected, e.Got, e.Detail)
	}
	return fmt.Sprintf("coupling: %s: shape mismatch, expected %d got %d", e.Op, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ShapeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("detail", e.Detail).
		Str("type", "ShapeMismatchError")
}

// NewShapeMismatchError は新しいShapeMismatchErrorを作成し、スタックトレースを付与します。
func NewShapeMismatchError(op string, expected, got int, detail string) error {
	return errors.WithStack(&ShapeMismatchError{Op: op, Expected: expected, Got: got, Detail: detail})
}

// StorageError はスタディストアや予測キャッシュの読み書きに失敗した場合のエラーです。
// 存在しないスタディの読み込みはエラーではありません。
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("coupling: storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *StorageError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("path", e.Path).
		Str("cause", fmt.Sprint(e.Err)).
		Str("type", "StorageError")
}

// NewStorageError は新しいStorageErrorを作成し、スタックトレースを付与します。
func NewStorageError(op, path string, err error) error {
	return errors.WithStack(&StorageError{Op: op, Path: path, Err: err})
}

// IsTrialFailure はエラーが単一試行の中で回復可能な失敗かどうかを判定します。
// TrialFailure、ValidationError、NumericalInstabilityError、パニック由来のエラーが該当します。
func IsTrialFailure(err error) bool {
	if err == nil {
		return false
	}
	var tf *TrialFailure
	var ve *ValidationError
	var ne *NumericalInstabilityError
	var pe *PanicError
	return As(err, &tf) || As(err, &ve) || As(err, &ne) || As(err, &pe)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// Mark はメッセージを変えずに err を reference と Is で一致させます。
func Mark(err, reference error) error {
	return errors.Mark(err, reference)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")
)
