// Package preprocessing turns categorical text into model features: a per-column
// Dictionarizer that assigns dense indices, a one-hot encoder over it and a
// zero-preserving min-max scaler used by the linear learners.
package preprocessing

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/YuminosukeSato/claimrate/core/model"
	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

// HandleUnknown は学習時に見なかったカテゴリ値の扱い
type HandleUnknown int

const (
	// UnknownIgnore はインデックス -1 (全0のone-hotブロック) に写し、警告を出す
	UnknownIgnore HandleUnknown = iota
	// UnknownError は UnknownCategoryError を返す
	UnknownError
)

func (h HandleUnknown) String() string {
	switch h {
	case UnknownIgnore:
		return "ignore"
	case UnknownError:
		return "error"
	default:
		return fmt.Sprintf("HandleUnknown(%d)", int(h))
	}
}

// ParseHandleUnknown は "ignore" / "error" を HandleUnknown に変換する
func ParseHandleUnknown(s string) (HandleUnknown, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ignore":
		return UnknownIgnore, nil
	case "error":
		return UnknownError, nil
	default:
		return UnknownIgnore, errors.NewValidationError("unknown_category", "must be ignore or error", s)
	}
}

// DictionarizerOption は Dictionarizer の設定関数
type DictionarizerOption func(*Dictionarizer)

// WithHandleUnknown は未知カテゴリの扱いを設定する
func WithHandleUnknown(h HandleUnknown) DictionarizerOption {
	return func(d *Dictionarizer) {
		d.handleUnknown = h
	}
}

// Dictionarizer は1列分のテキスト値に、初出順で0から連番のインデックスを振る。
// 学習後は不変で、再学習には Reset が必要。
type Dictionarizer struct {
	model.BaseEstimator

	column        string
	handleUnknown HandleUnknown
	vocabulary    []string
	index         map[string]int
}

// NewDictionarizer は列名 column の Dictionarizer を作成する
//
// 使用例:
//
//	d := preprocessing.NewDictionarizer("PostalCode")
//	err := d.Fit([]string{"MK46 5JA", "SW1A 1AA", "MK46 5JA"})
//	idx, _ := d.Transform("SW1A 1AA") // 1
func NewDictionarizer(column string, opts ...DictionarizerOption) *Dictionarizer {
	d := &Dictionarizer{column: column}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Column は列名を返す
func (d *Dictionarizer) Column() string {
	return d.column
}

// HandleUnknown は未知カテゴリの扱いを返す
func (d *Dictionarizer) HandleUnknown() HandleUnknown {
	return d.handleUnknown
}

// Fit は values を先頭から走査し、初めて現れた値に次のインデックスを割り当てる。
// 同じ入力からは常に同じ語彙が得られる。
func (d *Dictionarizer) Fit(values []string) error {
	if d.IsFitted() {
		return errors.NewValueError("Dictionarizer.Fit",
			fmt.Sprintf("column %s is already fitted; call Reset before refitting", d.column))
	}
	if len(values) == 0 {
		return errors.NewModelError("Dictionarizer.Fit", "empty data", errors.ErrEmptyData)
	}

	d.index = make(map[string]int)
	d.vocabulary = d.vocabulary[:0]
	for _, v := range values {
		if _, ok := d.index[v]; ok {
			continue
		}
		d.index[v] = len(d.vocabulary)
		d.vocabulary = append(d.vocabulary, v)
	}
	d.SetFitted(len(d.vocabulary))
	return nil
}

// Transform は値のインデックスを返す。
// 未知の値は UnknownIgnore なら -1 と警告、UnknownError なら UnknownCategoryError。
func (d *Dictionarizer) Transform(value string) (int, error) {
	if !d.IsFitted() {
		return 0, errors.NewNotFittedError("Dictionarizer", "Transform")
	}
	if idx, ok := d.index[value]; ok {
		return idx, nil
	}
	if d.handleUnknown == UnknownError {
		return 0, errors.NewUnknownCategoryError(d.column, value)
	}
	errors.Warn(errors.NewUnknownCategoryWarning(d.column, value))
	return -1, nil
}

// InverseTransform はインデックスから元の値を返す
func (d *Dictionarizer) InverseTransform(index int) (string, error) {
	if !d.IsFitted() {
		return "", errors.NewNotFittedError("Dictionarizer", "InverseTransform")
	}
	if index < 0 || index >= len(d.vocabulary) {
		return "", errors.NewValueError("Dictionarizer.InverseTransform",
			fmt.Sprintf("index %d out of range [0, %d) for column %s", index, len(d.vocabulary), d.column))
	}
	return d.vocabulary[index], nil
}

// Vocabulary は語彙をインデックス順にコピーして返す
func (d *Dictionarizer) Vocabulary() []string {
	out := make([]string, len(d.vocabulary))
	copy(out, d.vocabulary)
	return out
}

// Size は語彙数を返す。未学習なら0。
func (d *Dictionarizer) Size() int {
	return len(d.vocabulary)
}

// Fingerprint は順序付き語彙の xxhash。語彙が同じなら値も同じ。
func (d *Dictionarizer) Fingerprint() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(d.column)
	for _, v := range d.vocabulary {
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(v)
	}
	return h.Sum64()
}

// Reset は語彙を捨てて未学習状態に戻す
func (d *Dictionarizer) Reset() {
	d.BaseEstimator.Reset()
	d.vocabulary = nil
	d.index = nil
}

// GetParams は設定値を返す
func (d *Dictionarizer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"column":         d.column,
		"handle_unknown": d.handleUnknown.String(),
	}
}

// String は Dictionarizer の文字列表現を返す
func (d *Dictionarizer) String() string {
	if !d.IsFitted() {
		return fmt.Sprintf("Dictionarizer(column=%s, handle_unknown=%s)", d.column, d.handleUnknown)
	}
	return fmt.Sprintf("Dictionarizer(column=%s, handle_unknown=%s, size=%d)", d.column, d.handleUnknown, d.Size())
}
