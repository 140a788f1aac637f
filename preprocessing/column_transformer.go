package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

const (
	// DefaultMaxEncodingOHE はOne-Hotで展開するカテゴリ数の上限。これを超える列は順序エンコード
	DefaultMaxEncodingOHE = 25
	// DefaultCategoricalFill は constant 補完で使うカテゴリ
	DefaultCategoricalFill = "not_available"

	NormalizeZScore = "zscore"
	NormalizeMinMax = "minmax"
)

// ColumnTransformerConfig は特徴量の扱いを決める。ゼロ値はデフォルト設定を意味する。
type ColumnTransformerConfig struct {
	// NumericFeatures / CategoricalFeatures は型推論を上書きする列
	NumericFeatures     []string
	CategoricalFeatures []string

	NumericImputation     string // mean (default), median, zero, mode
	CategoricalImputation string // mode (default), constant
	CategoricalFillValue  string

	MaxEncodingOHE int

	Normalize       bool
	NormalizeMethod string // zscore (default), minmax
}

func (c ColumnTransformerConfig) withDefaults() ColumnTransformerConfig {
	if c.NumericImputation == "" {
		c.NumericImputation = ImputeMean
	}
	if c.CategoricalImputation == "" {
		c.CategoricalImputation = ImputeMode
	}
	if c.CategoricalFillValue == "" {
		c.CategoricalFillValue = DefaultCategoricalFill
	}
	if c.MaxEncodingOHE <= 0 {
		c.MaxEncodingOHE = DefaultMaxEncodingOHE
	}
	if c.NormalizeMethod == "" {
		c.NormalizeMethod = NormalizeZScore
	}
	return c
}

func (c ColumnTransformerConfig) validate() error {
	switch c.CategoricalImputation {
	case ImputeMode, ImputeConstant:
	default:
		return errors.NewValidationError("categorical_imputation", "must be mode or constant", c.CategoricalImputation)
	}
	switch c.NormalizeMethod {
	case NormalizeZScore, NormalizeMinMax:
	default:
		return errors.NewValidationError("normalize_method", "must be zscore or minmax", c.NormalizeMethod)
	}
	return nil
}

// ColumnTransformer は dataset.Frame の特徴量列を数値行列に変換する。
// 数値列は欠損補完、カテゴリ列は補完の後One-Hotまたは順序エンコードされ、
// 必要なら最後に全体を正規化する。全て欠損の列は落とされる。
type ColumnTransformer struct {
	State  *model.StateManager
	Config ColumnTransformerConfig

	Numeric     []string
	Categorical []string
	// Order は入力列の出力順
	Order []string

	NumericImputer  *SimpleImputer
	CategoricalFill map[string]string
	OneHot          map[string]*OneHotEncoder
	Ordinal         map[string]*OrdinalEncoder

	Standard *StandardScaler
	MinMax   *MinMaxScaler

	Features []string
}

// NewColumnTransformer は新しいColumnTransformerを作成する
func NewColumnTransformer(cfg ColumnTransformerConfig) *ColumnTransformer {
	return &ColumnTransformer{
		State:  model.NewStateManager(),
		Config: cfg.withDefaults(),
	}
}

// Fit は列の型を判定し、補完値・エンコーダ・スケーラーを学習する
func (t *ColumnTransformer) Fit(f *dataset.Frame) error {
	_, err := t.FitTransform(f)
	return err
}

// FitTransform は学習と変換を1回で行う
func (t *ColumnTransformer) FitTransform(f *dataset.Frame) (*mat.Dense, error) {
	if f == nil || f.NumRows() == 0 || f.NumCols() == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := t.Config.validate(); err != nil {
		return nil, err
	}
	if err := t.classify(f); err != nil {
		return nil, err
	}
	if len(t.Order) == 0 {
		return nil, errors.NewValueError("ColumnTransformer.Fit", "no usable feature columns")
	}

	numeric, err := t.numericMatrix(f)
	if err != nil {
		return nil, err
	}
	if numeric != nil {
		t.NumericImputer = NewSimpleImputer(t.Config.NumericImputation)
		if _, err := t.NumericImputer.FitTransform(numeric); err != nil {
			return nil, err
		}
	}

	t.CategoricalFill = make(map[string]string, len(t.Categorical))
	t.OneHot = make(map[string]*OneHotEncoder)
	t.Ordinal = make(map[string]*OrdinalEncoder)
	for _, name := range t.Categorical {
		values, _ := f.Column(name)
		fill := t.Config.CategoricalFillValue
		if t.Config.CategoricalImputation == ImputeMode {
			observed := make([]string, 0, len(values))
			for _, v := range values {
				if !dataset.IsMissing(v) {
					observed = append(observed, v)
				}
			}
			if len(observed) > 0 {
				fill = MostFrequent(observed)
			}
		}
		t.CategoricalFill[name] = fill
		filled := fillMissing(values, fill)
		if len(uniqueSorted(filled)) <= t.Config.MaxEncodingOHE {
			enc := NewOneHotEncoder()
			if err := enc.Fit(filled); err != nil {
				return nil, err
			}
			t.OneHot[name] = enc
		} else {
			enc := NewOrdinalEncoder()
			if err := enc.Fit(filled); err != nil {
				return nil, err
			}
			t.Ordinal[name] = enc
		}
	}

	t.State.SetFitted()
	X, names, err := t.assemble(f)
	if err != nil {
		t.State.Reset()
		return nil, err
	}
	t.Features = names
	_, cols := X.Dims()
	t.State.SetDimensions(cols, f.NumRows())

	if t.Config.Normalize {
		scaled, err := t.fitScaler(X)
		if err != nil {
			t.State.Reset()
			return nil, err
		}
		return scaled, nil
	}
	return X, nil
}

func (t *ColumnTransformer) classify(f *dataset.Frame) error {
	forced := make(map[string]dataset.Kind)
	for _, name := range t.Config.NumericFeatures {
		if !f.HasColumn(name) {
			return errors.NewColumnNotFoundError(name, "numeric feature")
		}
		forced[name] = dataset.KindNumeric
	}
	for _, name := range t.Config.CategoricalFeatures {
		if !f.HasColumn(name) {
			return errors.NewColumnNotFoundError(name, "categorical feature")
		}
		forced[name] = dataset.KindCategorical
	}

	t.Numeric, t.Categorical, t.Order = nil, nil, nil
	for _, name := range f.Columns {
		kind, ok := forced[name]
		if !ok {
			kind = f.ColumnKind(name)
		}
		switch kind {
		case dataset.KindNumeric:
			t.Numeric = append(t.Numeric, name)
		case dataset.KindCategorical:
			t.Categorical = append(t.Categorical, name)
		default:
			continue
		}
		t.Order = append(t.Order, name)
	}
	return nil
}

func (t *ColumnTransformer) numericMatrix(f *dataset.Frame) (*mat.Dense, error) {
	if len(t.Numeric) == 0 {
		return nil, nil
	}
	X := mat.NewDense(f.NumRows(), len(t.Numeric), nil)
	for j, name := range t.Numeric {
		col, err := f.Float64Column(name)
		if err != nil {
			return nil, err
		}
		X.SetCol(j, col)
	}
	return X, nil
}

func (t *ColumnTransformer) fitScaler(X *mat.Dense) (*mat.Dense, error) {
	var (
		out mat.Matrix
		err error
	)
	switch t.Config.NormalizeMethod {
	case NormalizeMinMax:
		t.MinMax = NewMinMaxScalerDefault()
		out, err = t.MinMax.FitTransform(X)
	default:
		t.Standard = NewStandardScalerDefault()
		out, err = t.Standard.FitTransform(X)
	}
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(out), nil
}

// Transform は学習済みの変換を適用する。学習時の列が無ければColumnNotFoundError
func (t *ColumnTransformer) Transform(f *dataset.Frame) (*mat.Dense, error) {
	if err := t.State.RequireFitted("ColumnTransformer", "Transform"); err != nil {
		return nil, err
	}
	if f == nil || f.NumRows() == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Transform", "empty data", errors.ErrEmptyData)
	}
	X, _, err := t.assemble(f)
	if err != nil {
		return nil, err
	}
	var scaled mat.Matrix
	switch {
	case t.Standard != nil:
		scaled, err = t.Standard.Transform(X)
	case t.MinMax != nil:
		scaled, err = t.MinMax.Transform(X)
	default:
		return X, nil
	}
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(scaled), nil
}

func (t *ColumnTransformer) assemble(f *dataset.Frame) (*mat.Dense, []string, error) {
	for _, name := range t.Order {
		if !f.HasColumn(name) {
			return nil, nil, errors.NewColumnNotFoundError(name, "feature")
		}
	}

	n := f.NumRows()
	var numeric mat.Matrix
	if len(t.Numeric) > 0 {
		raw, err := t.numericMatrix(f)
		if err != nil {
			return nil, nil, err
		}
		if numeric, err = t.NumericImputer.Transform(raw); err != nil {
			return nil, nil, err
		}
	}
	numericPos := make(map[string]int, len(t.Numeric))
	for j, name := range t.Numeric {
		numericPos[name] = j
	}

	blocks := make([]mat.Matrix, 0, len(t.Order))
	names := make([]string, 0, len(t.Order))
	width := 0
	for _, name := range t.Order {
		if j, ok := numericPos[name]; ok {
			col := mat.NewDense(n, 1, nil)
			for i := 0; i < n; i++ {
				col.Set(i, 0, numeric.At(i, j))
			}
			blocks = append(blocks, col)
			names = append(names, name)
			width++
			continue
		}
		values, _ := f.Column(name)
		filled := fillMissing(values, t.CategoricalFill[name])
		if enc, ok := t.OneHot[name]; ok {
			block, err := enc.Transform(filled)
			if err != nil {
				return nil, nil, err
			}
			blocks = append(blocks, block)
			names = append(names, enc.FeatureNames(name)...)
			width += len(enc.Categories)
			continue
		}
		codes, err := t.Ordinal[name].Transform(filled)
		if err != nil {
			return nil, nil, err
		}
		blocks = append(blocks, mat.NewDense(n, 1, codes))
		names = append(names, name)
		width++
	}

	X := mat.NewDense(n, width, nil)
	offset := 0
	for _, b := range blocks {
		_, c := b.Dims()
		X.Slice(0, n, offset, offset+c).(*mat.Dense).Copy(b)
		offset += c
	}
	return X, names, nil
}

// FeatureNames は出力行列の列名を返す
func (t *ColumnTransformer) FeatureNames() []string {
	return append([]string(nil), t.Features...)
}

// String は変換器の要約を返す
func (t *ColumnTransformer) String() string {
	return fmt.Sprintf("ColumnTransformer(numeric=%d, categorical=%d, one_hot=%d, ordinal=%d, features=%d)",
		len(t.Numeric), len(t.Categorical), len(t.OneHot), len(t.Ordinal), len(t.Features))
}

func fillMissing(values []string, fill string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if dataset.IsMissing(v) {
			v = fill
		}
		out[i] = v
	}
	return out
}
