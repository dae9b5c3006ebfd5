// Package errors はclaimrate全体のエラーハンドリングと警告システムを提供します。
// 型付きエラーは cockroachdb/errors でスタックトレースを保持し、
// zerolog へ構造化フィールドとして書き出せます。
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
		log.Printf("claimrate-warning: %v\n", w)
	}
	// pkg/log からの循環importを避けるため、SetupLogger 側で注入される
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は警告ハンドラを差し替えます。nil を渡すと警告を捨てます。
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されていれば構造化ログとして出力し、なければ従来のハンドラを使用します。
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
//	警告型
//
// ===========================================================================

// ConvergenceWarning は反復最適化が MaxIterations 以内に収束しなかった場合の警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iterations.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// UndefinedMetricWarning は評価指標が定義できない場合の警告です。
// 例えば、ラベルの分散が0のときのR²など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// UnknownCategoryWarning は学習時に存在しなかったカテゴリ値が変換時に現れた場合の警告です。
// 値はすべて0のone-hotブロックとして扱われます。
type UnknownCategoryWarning struct {
	Column string
	Value  string
}

func (w *UnknownCategoryWarning) Error() string {
	return fmt.Sprintf("unknown category %q in column %s; encoded as all-zero block", w.Value, w.Column)
}

// MarshalZerologObject はzerologのイベントに警告情報を追加します。
func (w *UnknownCategoryWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Str("value", w.Value).
		Str("type", "UnknownCategoryWarning")
}

// NewUnknownCategoryWarning は新しいUnknownCategoryWarningを作成します。
func NewUnknownCategoryWarning(column, value string) *UnknownCategoryWarning {
	return &UnknownCategoryWarning{Column: column, Value: value}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で Predict や Transform を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("claimrate: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントにエラー情報を追加します。
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
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("claimrate: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, axisName(e.Axis), e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントにエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName(e.Axis)).
		Str("type", "DimensionError")
}

func axisName(axis int) string {
	if axis == 0 {
		return "rows"
	}
	return "features"
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は設定値やハイパーパラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("claimrate: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントにエラー情報を追加します。
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
	return fmt.Sprintf("claimrate: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は学習・推論中の一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("claimrate: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("claimrate: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// DataFormatError は入力ファイルの行が期待する形式でない場合のエラーです。
// Line は1始まりの物理行番号です。
type DataFormatError struct {
	Path   string
	Line   int
	Field  string
	Value  string
	Reason string
}

func (e *DataFormatError) Error() string {
	loc := fmt.Sprintf("line %d", e.Line)
	if e.Path != "" {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Field != "" {
		return fmt.Sprintf("claimrate: malformed row at %s: field %s=%q: %s", loc, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("claimrate: malformed row at %s: %s", loc, e.Reason)
}

// MarshalZerologObject はzerologのイベントにエラー情報を追加します。
func (e *DataFormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Int("line", e.Line).
		Str("field", e.Field).
		Str("value", e.Value).
		Str("reason", e.Reason).
		Str("type", "DataFormatError")
}

// NewDataFormatError は新しいDataFormatErrorを作成し、スタックトレースを付与します。
func NewDataFormatError(line int, field, value, reason string) error {
	return errors.WithStack(&DataFormatError{Line: line, Field: field, Value: value, Reason: reason})
}

// UnknownCategoryError は未知のカテゴリ値を拒否する設定のときに返されるエラーです。
type UnknownCategoryError struct {
	Column string
	Value  string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("claimrate: unknown category %q in column %s", e.Value, e.Column)
}

// MarshalZerologObject はzerologのイベントにエラー情報を追加します。
func (e *UnknownCategoryError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Str("value", e.Value).
		Str("type", "UnknownCategoryError")
}

// NewUnknownCategoryError は新しいUnknownCategoryErrorを作成し、スタックトレースを付与します。
func NewUnknownCategoryError(column, value string) error {
	return errors.WithStack(&UnknownCategoryError{Column: column, Value: value})
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
