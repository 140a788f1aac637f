// Package naive_bayes implements Gaussian naive Bayes.
package naive_bayes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// GaussianNB は特徴量がクラスごとに独立な正規分布に従うと仮定する分類器
type GaussianNB struct {
	State *model.StateManager

	// Priors は事前確率。nil なら学習データのクラス頻度を使う
	Priors []float64
	// VarSmoothing は分散に加える最大分散の割合
	VarSmoothing float64

	ClassLabels []int
	ClassCount  []float64
	Theta       [][]float64 // クラスごとの平均
	Var         [][]float64 // クラスごとの分散（Epsilon を含む）
	Epsilon     float64
}

// Option configures GaussianNB.
type Option func(*GaussianNB)

// WithPriors fixes the class priors.
func WithPriors(p []float64) Option {
	return func(nb *GaussianNB) { nb.Priors = append([]float64(nil), p...) }
}

// WithVarSmoothing sets the variance smoothing ratio.
func WithVarSmoothing(v float64) Option {
	return func(nb *GaussianNB) { nb.VarSmoothing = v }
}

// NewGaussianNB creates a GaussianNB with var_smoothing 1e-9.
func NewGaussianNB(opts ...Option) *GaussianNB {
	nb := &GaussianNB{State: model.NewStateManager(), VarSmoothing: 1e-9}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit learns per-class means and variances from scratch.
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	if nb.State == nil {
		nb.State = model.NewStateManager()
	}
	nb.State.Reset()
	nb.ClassLabels = nil
	return nb.PartialFit(X, y, nil)
}

// PartialFit updates the model with one batch. classes must list every class
// on the first call unless y already contains them all; later calls ignore it.
func (nb *GaussianNB) PartialFit(X, y mat.Matrix, classes []int) error {
	rows, cols, err := model.CheckFitInput("GaussianNB.PartialFit", X, y)
	if err != nil {
		return err
	}
	if nb.VarSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be >= 0", nb.VarSmoothing)
	}
	if nb.State == nil {
		nb.State = model.NewStateManager()
	}

	first := !nb.State.IsFitted()
	if first {
		if classes == nil {
			classes = model.UniqueClasses(y)
		}
		if err := nb.init(classes, cols); err != nil {
			return err
		}
	} else if err := nb.State.CheckFeatures("GaussianNB.PartialFit", cols); err != nil {
		return err
	}

	target := model.ClassIndices(y, nb.ClassLabels)
	for i, k := range target {
		if k < 0 {
			return errors.NewValueError("GaussianNB.PartialFit",
				fmt.Sprintf("label %v is not in classes %v", y.At(i, 0), nb.ClassLabels))
		}
	}

	// 前回の平滑化分を外してから更新する
	maxVar := 0.0
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		maxVar = math.Max(maxVar, stat.PopVariance(col, nil))
	}
	for k := range nb.Var {
		for j := range nb.Var[k] {
			nb.Var[k][j] -= nb.Epsilon
		}
	}
	nb.Epsilon = nb.VarSmoothing * maxVar

	x := make([]float64, cols)
	for k := range nb.ClassLabels {
		var idx []int
		for i, t := range target {
			if t == k {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			continue
		}
		nNew := float64(len(idx))
		mean := make([]float64, cols)
		for _, i := range idx {
			mat.Row(x, i, X)
			for j, v := range x {
				mean[j] += v
			}
		}
		for j := range mean {
			mean[j] /= nNew
		}
		ssd := make([]float64, cols)
		for _, i := range idx {
			mat.Row(x, i, X)
			for j, v := range x {
				d := v - mean[j]
				ssd[j] += d * d
			}
		}

		nOld := nb.ClassCount[k]
		nTotal := nOld + nNew
		for j := 0; j < cols; j++ {
			d := nb.Theta[k][j] - mean[j]
			total := nOld*nb.Var[k][j] + ssd[j] + nOld*nNew/nTotal*d*d
			nb.Theta[k][j] = (nOld*nb.Theta[k][j] + nNew*mean[j]) / nTotal
			nb.Var[k][j] = total / nTotal
		}
		nb.ClassCount[k] = nTotal
	}
	for k := range nb.Var {
		for j := range nb.Var[k] {
			nb.Var[k][j] += nb.Epsilon
		}
	}

	_, seen := nb.State.GetDimensions()
	nb.State.SetDimensions(cols, seen+rows)
	nb.State.SetFitted()
	return nil
}

func (nb *GaussianNB) init(classes []int, cols int) error {
	if len(classes) == 0 {
		return errors.NewValueError("GaussianNB.PartialFit", "classes must not be empty")
	}
	if nb.Priors != nil {
		if len(nb.Priors) != len(classes) {
			return errors.NewValidationError("priors", fmt.Sprintf("must have %d entries", len(classes)), nb.Priors)
		}
		var sum float64
		for _, p := range nb.Priors {
			if p < 0 {
				return errors.NewValidationError("priors", "must be non-negative", nb.Priors)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-8 {
			return errors.NewValidationError("priors", "must sum to 1", nb.Priors)
		}
	}
	nb.ClassLabels = append([]int(nil), classes...)
	nb.ClassCount = make([]float64, len(classes))
	nb.Theta = make([][]float64, len(classes))
	nb.Var = make([][]float64, len(classes))
	for k := range classes {
		nb.Theta[k] = make([]float64, cols)
		nb.Var[k] = make([]float64, cols)
	}
	nb.Epsilon = 0
	nb.State.SetDimensions(cols, 0)
	return nil
}

// NSamplesSeen returns the number of samples used so far.
func (nb *GaussianNB) NSamplesSeen() int {
	_, n := nb.State.GetDimensions()
	return n
}

func (nb *GaussianNB) classPriors() []float64 {
	if nb.Priors != nil {
		return nb.Priors
	}
	var total float64
	for _, c := range nb.ClassCount {
		total += c
	}
	p := make([]float64, len(nb.ClassCount))
	for k, c := range nb.ClassCount {
		p[k] = c / total
	}
	return p
}

// jointLogLikelihood returns log P(c) + log P(x|c) per row and class.
func (nb *GaussianNB) jointLogLikelihood(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := nb.State.RequireFitted("GaussianNB", method); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := nb.State.CheckFeatures("GaussianNB."+method, cols); err != nil {
		return nil, err
	}
	priors := nb.classPriors()
	k := len(nb.ClassLabels)
	out := mat.NewDense(rows, k, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		for c := 0; c < k; c++ {
			ll := math.Log(priors[c])
			for j, v := range x {
				variance := nb.Var[c][j]
				if variance <= 0 {
					variance = math.SmallestNonzeroFloat64
				}
				d := v - nb.Theta[c][j]
				ll -= 0.5 * (math.Log(2*math.Pi*variance) + d*d/variance)
			}
			out.Set(i, c, ll)
		}
	}
	return out, nil
}

// PredictLogProba returns log class probabilities.
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("PredictLogProba", X)
	if err != nil {
		return nil, err
	}
	rows, _ := jll.Dims()
	for i := 0; i < rows; i++ {
		row := jll.RawRowView(i)
		norm := errors.LogSumExp(row)
		for c := range row {
			row[c] -= norm
		}
	}
	return jll, nil
}

// PredictProba returns class probabilities.
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("PredictProba", X)
	if err != nil {
		return nil, err
	}
	rows, k := jll.Dims()
	out := mat.NewDense(rows, k, nil)
	for i := 0; i < rows; i++ {
		errors.Softmax(out.RawRowView(i), jll.RawRowView(i))
	}
	return out, nil
}

// Predict returns the most probable class.
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("Predict", X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(jll, nb.ClassLabels), nil
}

// Classes returns the class labels.
func (nb *GaussianNB) Classes() []int {
	return append([]int(nil), nb.ClassLabels...)
}

// Score returns the accuracy on (X, y).
func (nb *GaussianNB) Score(X, y mat.Matrix) (float64, error) {
	pred, err := nb.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVec("GaussianNB.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVec("GaussianNB.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(yTrue, yPred)
}

// GetParams returns the hyperparameters.
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.VarSmoothing,
		"priors":        nb.Priors,
	}
}

// SetParams updates the hyperparameters.
func (nb *GaussianNB) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "var_smoothing":
			f, err := model.ParamFloat(k, v)
			if err != nil {
				return err
			}
			nb.VarSmoothing = f
		case "priors":
			p, ok := v.([]float64)
			if !ok && v != nil {
				return errors.NewValueError("GaussianNB.SetParams", fmt.Sprintf("priors must be []float64, got %T", v))
			}
			nb.Priors = p
		default:
			return model.UnknownParam("GaussianNB", k)
		}
	}
	return nil
}

var _ model.Classifier = (*GaussianNB)(nil)
