package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/creditscore/core/model"
	"github.com/YuminosukeSato/creditscore/dataset"
	"github.com/YuminosukeSato/creditscore/pkg/errors"
	"github.com/YuminosukeSato/creditscore/pkg/log"
)

// LabelEncoder はscikit-learn互換のラベルエンコーダー
// 文字列のカテゴリを 0 から n_classes-1 の整数コードに変換する
// コードはソート済みのクラス一覧におけるインデックス
type LabelEncoder struct {
	state *model.StateManager

	classes []string
	index   map[string]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{state: model.NewStateManager()}
}

// Fit はカテゴリ一覧を学習する。以前のマッピングは破棄される
func (e *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	seen := make(map[string]bool)
	classes := make([]string, 0)
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Strings(classes)

	e.classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
	e.state.SetFitted(1, len(values))
	return nil
}

// Transform は値を整数コードに変換する
// 学習時に存在しない値は SchemaError になる
func (e *LabelEncoder) Transform(values []string) ([]float64, error) {
	if err := e.state.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}

	codes := make([]float64, len(values))
	for i, v := range values {
		code, ok := e.index[v]
		if !ok {
			return nil, errors.NewSchemaError("", fmt.Sprintf("unseen label %q at row %d", v, i))
		}
		codes[i] = float64(code)
	}
	return codes, nil
}

// FitTransform はFitとTransformを同時に実行する
func (e *LabelEncoder) FitTransform(values []string) ([]float64, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// InverseTransform は整数コードを元のラベルに戻す
func (e *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	if err := e.state.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}

	labels := make([]string, len(codes))
	for i, c := range codes {
		if c != math.Trunc(c) || c < 0 || int(c) >= len(e.classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", fmt.Sprintf("code %v at row %d is not in [0, %d)", c, i, len(e.classes)))
		}
		labels[i] = e.classes[int(c)]
	}
	return labels, nil
}

// Classes はソート済みのクラス一覧を返す
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// EncodeCategorical replaces every text column not named in exclude by its
// integer codes, each column with a freshly fitted encoder. Numeric and
// excluded columns are carried over unchanged. t is not modified.
//
// Codes only have meaning relative to the table they were fitted on: encoding
// a second table yields independent mappings.
func EncodeCategorical(t *dataset.Table, exclude ...string) (*dataset.Table, map[string]*LabelEncoder, error) {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	logger := log.GetLoggerWithName("preprocessing")
	encoders := make(map[string]*LabelEncoder)
	columns := t.Columns()
	for i, c := range columns {
		if c.Kind != dataset.Text || skip[c.Name] {
			continue
		}

		enc := NewLabelEncoder()
		codes, err := enc.FitTransform(c.Strings)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "encode column %q", c.Name)
		}
		columns[i] = dataset.NewNumericColumn(c.Name, codes)
		encoders[c.Name] = enc

		logger.Debug("Encoded categorical column",
			log.ColumnKey, c.Name,
			log.CategoriesKey, len(enc.classes),
		)
	}

	out, err := dataset.New(columns...)
	if err != nil {
		return nil, nil, err
	}
	return out, encoders, nil
}
