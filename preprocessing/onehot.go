package preprocessing

import (
	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

// OneHotEncoder は学習済み Dictionarizer のインデックスを指示ベクトルに展開する
type OneHotEncoder struct {
	dict *Dictionarizer
}

// NewOneHotEncoder は学習済みの d から OneHotEncoder を作成する
func NewOneHotEncoder(d *Dictionarizer) (*OneHotEncoder, error) {
	if !d.IsFitted() {
		return nil, errors.NewNotFittedError("Dictionarizer", "NewOneHotEncoder")
	}
	return &OneHotEncoder{dict: d}, nil
}

// Dictionarizer は元の Dictionarizer を返す
func (o *OneHotEncoder) Dictionarizer() *Dictionarizer {
	return o.dict
}

// Width はブロック幅 (語彙数) を返す
func (o *OneHotEncoder) Width() int {
	return o.dict.Size()
}

// Encode は value の指示ブロックを dst に書く。len(dst) は Width と一致すること。
// 未知の値 (インデックス -1) は全0ブロックになる。
func (o *OneHotEncoder) Encode(value string, dst []float64) error {
	if len(dst) != o.Width() {
		return errors.NewDimensionError("OneHotEncoder.Encode", o.Width(), len(dst), 1)
	}
	idx, err := o.dict.Transform(value)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = 0
	}
	if idx >= 0 {
		dst[idx] = 1
	}
	return nil
}

// Decode は指示ブロックから元の値を返す。全0ブロックは ok=false。
func (o *OneHotEncoder) Decode(block []float64) (value string, ok bool, err error) {
	if len(block) != o.Width() {
		return "", false, errors.NewDimensionError("OneHotEncoder.Decode", o.Width(), len(block), 1)
	}
	for i, v := range block {
		if v != 0 {
			value, err = o.dict.InverseTransform(i)
			return value, err == nil, err
		}
	}
	return "", false, nil
}

// FeatureNames は "column=value" 形式の列名を返す
func (o *OneHotEncoder) FeatureNames() []string {
	vocab := o.dict.Vocabulary()
	names := make([]string, len(vocab))
	for i, v := range vocab {
		names[i] = o.dict.Column() + "=" + v
	}
	return names
}
