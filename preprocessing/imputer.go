package preprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// Imputation strategies for numeric columns.
const (
	ImputeMean     = "mean"
	ImputeMedian   = "median"
	ImputeZero     = "zero"
	ImputeMode     = "mode"
	ImputeConstant = "constant"
)

// SimpleImputer は数値行列のNaNを列ごとの統計量で埋める
type SimpleImputer struct {
	State *model.StateManager

	// Strategy は mean, median, zero, mode, constant のいずれか
	Strategy string
	// FillValue は constant のときに使う値
	FillValue float64

	// Statistics は列ごとの補完値
	Statistics []float64
}

// NewSimpleImputer は新しいSimpleImputerを作成する
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{State: model.NewStateManager(), Strategy: strategy}
}

// Fit は各列の補完値を計算する。全てが欠損の列は0で補完する
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	switch s.Strategy {
	case ImputeMean, ImputeMedian, ImputeZero, ImputeMode, ImputeConstant:
	default:
		return errors.NewValidationError("numeric_imputation",
			"must be one of mean, median, zero, mode, constant", s.Strategy)
	}

	s.Statistics = make([]float64, c)
	for j := 0; j < c; j++ {
		observed := make([]float64, 0, r)
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		s.Statistics[j] = s.statistic(observed)
	}
	s.State.SetDimensions(c, r)
	s.State.SetFitted()
	return nil
}

func (s *SimpleImputer) statistic(observed []float64) float64 {
	switch s.Strategy {
	case ImputeZero:
		return 0
	case ImputeConstant:
		return s.FillValue
	}
	if len(observed) == 0 {
		return 0
	}
	switch s.Strategy {
	case ImputeMedian:
		sort.Float64s(observed)
		return stat.Quantile(0.5, stat.Empirical, observed, nil)
	case ImputeMode:
		sort.Float64s(observed)
		mode, _ := stat.Mode(observed, nil)
		return mode
	default:
		return stat.Mean(observed, nil)
	}
}

// Transform はNaNを補完値で置き換えた新しい行列を返す
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.State.CheckFeatures("SimpleImputer.Transform", c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		if math.IsNaN(v) {
			return s.Statistics[j]
		}
		return v
	}, X)
	return out, nil
}

// FitTransform はFitとTransformを続けて行う
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// MostFrequent は文字列の最頻値を返す。同数の場合は辞書順で小さい方
func MostFrequent(values []string) string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}
