package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// LabelEncoder は文字列ラベルを 0..n-1 の整数コードに変換する。
// クラスは辞書順に並べられるので、同じラベル集合からは常に同じコードが得られる。
type LabelEncoder struct {
	State   *model.StateManager
	Classes []string
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{State: model.NewStateManager()}
}

// Fit はラベルの一覧を学習する
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Classes = uniqueSorted(labels)
	e.State.SetDimensions(1, len(labels))
	e.State.SetFitted()
	return nil
}

// Transform はラベルを整数コードのベクトルに変換する。未知のラベルはValueError
func (e *LabelEncoder) Transform(labels []string) (*mat.VecDense, error) {
	if err := e.State.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, errors.NewModelError("LabelEncoder.Transform", "empty data", errors.ErrEmptyData)
	}
	codes := e.index()
	out := mat.NewVecDense(len(labels), nil)
	for i, l := range labels {
		c, ok := codes[l]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", fmt.Sprintf("unseen label %q", l))
		}
		out.SetVec(i, float64(c))
	}
	return out, nil
}

// FitTransform はFitとTransformを続けて行う
func (e *LabelEncoder) FitTransform(labels []string) (*mat.VecDense, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform は整数コードを元のラベルに戻す
func (e *LabelEncoder) InverseTransform(codes mat.Vector) ([]string, error) {
	if err := e.State.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	out := make([]string, codes.Len())
	for i := range out {
		c := int(codes.AtVec(i))
		if c < 0 || c >= len(e.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %d outside of %d classes", c, len(e.Classes)))
		}
		out[i] = e.Classes[c]
	}
	return out, nil
}

func (e *LabelEncoder) index() map[string]int {
	m := make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		m[c] = i
	}
	return m
}

// OneHotEncoder は1つのカテゴリ列を指示変数の列に展開する。
// 学習時に無かったカテゴリは全て0になる。
type OneHotEncoder struct {
	State      *model.StateManager
	Categories []string
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{State: model.NewStateManager()}
}

// Fit はカテゴリの一覧を学習する
func (e *OneHotEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Categories = uniqueSorted(values)
	e.State.SetDimensions(len(e.Categories), len(values))
	e.State.SetFitted()
	return nil
}

// Transform は len(values) x len(Categories) の指示行列を返す
func (e *OneHotEncoder) Transform(values []string) (*mat.Dense, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}
	pos := make(map[string]int, len(e.Categories))
	for i, c := range e.Categories {
		pos[c] = i
	}
	out := mat.NewDense(len(values), len(e.Categories), nil)
	for i, v := range values {
		if j, ok := pos[v]; ok {
			out.Set(i, j, 1)
		}
	}
	return out, nil
}

// FeatureNames は展開後の列名 (prefix_category) を返す
func (e *OneHotEncoder) FeatureNames(prefix string) []string {
	names := make([]string, len(e.Categories))
	for i, c := range e.Categories {
		names[i] = prefix + "_" + c
	}
	return names
}

// OrdinalEncoder はカテゴリを辞書順の整数に変換する。未知のカテゴリは -1
type OrdinalEncoder struct {
	State      *model.StateManager
	Categories []string
}

// NewOrdinalEncoder は新しいOrdinalEncoderを作成する
func NewOrdinalEncoder() *OrdinalEncoder {
	return &OrdinalEncoder{State: model.NewStateManager()}
}

// Fit はカテゴリの一覧を学習する
func (e *OrdinalEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("OrdinalEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Categories = uniqueSorted(values)
	e.State.SetDimensions(1, len(values))
	e.State.SetFitted()
	return nil
}

// Transform はカテゴリを整数コードに変換する
func (e *OrdinalEncoder) Transform(values []string) ([]float64, error) {
	if err := e.State.RequireFitted("OrdinalEncoder", "Transform"); err != nil {
		return nil, err
	}
	pos := make(map[string]int, len(e.Categories))
	for i, c := range e.Categories {
		pos[c] = i
	}
	out := make([]float64, len(values))
	for i, v := range values {
		j, ok := pos[v]
		if !ok {
			j = -1
		}
		out[i] = float64(j)
	}
	return out, nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
