package linear_model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// 連続してこのエポック数だけ損失が tol 以上改善しなければ停止する
const nIterNoChange = 5

// PAParams はPassiveAggressive系モデル共通のハイパーパラメータ
type PAParams struct {
	C            float64 // 正則化パラメータ
	FitIntercept bool    // 切片を学習するか
	MaxIter      int     // 最大エポック数
	Tol          float64 // 収束判定の許容誤差
	Shuffle      bool    // 各エポックでデータをシャッフルするか
	RandomState  int     // 乱数シード
	Average      bool    // 平均化PAを使用するか
	Loss         string
}

func (c *PAParams) validate(losses ...string) error {
	switch {
	case c.C <= 0:
		return errors.NewValidationError("C", "must be positive", c.C)
	case c.MaxIter <= 0:
		return errors.NewValidationError("max_iter", "must be positive", c.MaxIter)
	}
	for _, l := range losses {
		if c.Loss == l {
			return nil
		}
	}
	return errors.NewValidationError("loss", fmt.Sprintf("must be one of %v", losses), c.Loss)
}

func (c *PAParams) params() map[string]interface{} {
	return map[string]interface{}{
		"C":             c.C,
		"fit_intercept": c.FitIntercept,
		"max_iter":      c.MaxIter,
		"tol":           c.Tol,
		"shuffle":       c.Shuffle,
		"random_state":  c.RandomState,
		"average":       c.Average,
		"loss":          c.Loss,
	}
}

func (c *PAParams) set(name string, params map[string]interface{}, extra func(k string, v interface{}) (bool, error)) error {
	for k, v := range params {
		var err error
		switch k {
		case "C":
			c.C, err = model.ParamFloat(k, v)
		case "fit_intercept":
			c.FitIntercept, err = model.ParamBool(k, v)
		case "max_iter":
			c.MaxIter, err = model.ParamInt(k, v)
		case "tol":
			c.Tol, err = model.ParamFloat(k, v)
		case "shuffle":
			c.Shuffle, err = model.ParamBool(k, v)
		case "random_state":
			c.RandomState, err = model.ParamInt(k, v)
		case "average":
			c.Average, err = model.ParamBool(k, v)
		case "loss":
			c.Loss, err = model.ParamString(k, v)
		default:
			handled := false
			if extra != nil {
				handled, err = extra(k, v)
			}
			if !handled && err == nil {
				err = model.UnknownParam(name, k)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// epochs はエポックごとに fn(行番号) を呼び、平均損失が改善しなくなったら止める。
// 実行したエポック数と収束したかどうかを返す。
func (c *PAParams) epochs(rows int, fn func(i int) float64) (int, bool) {
	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(uint64(c.RandomState), uint64(c.RandomState)))
	best := math.Inf(1)
	noChange := 0
	for epoch := 1; epoch <= c.MaxIter; epoch++ {
		if c.Shuffle {
			rng.Shuffle(rows, func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		var loss float64
		for _, i := range order {
			loss += fn(i)
		}
		loss /= float64(rows)
		if c.Tol > 0 {
			if loss > best-c.Tol {
				noChange++
			} else {
				noChange = 0
			}
			if loss < best {
				best = loss
			}
			if noChange >= nIterNoChange {
				return epoch, true
			}
		}
	}
	return c.MaxIter, false
}

// paStep は PA-I の更新幅 τ = min(C, loss / ||x||²) を返す（切片分の1を含む）
func (c *PAParams) step(loss, sqNorm float64) float64 {
	if c.FitIntercept {
		sqNorm++
	}
	if sqNorm == 0 {
		return 0
	}
	return math.Min(c.C, loss/sqNorm)
}

// PassiveAggressiveRegressor は受動的攻撃的回帰モデル
type PassiveAggressiveRegressor struct {
	PAParams
	State *model.StateManager

	// Epsilon はepsilon-insensitive損失の幅
	Epsilon float64

	Coef  []float64
	Bias  float64
	NIter int
}

// PassiveAggressiveClassifier は受動的攻撃的分類モデル（クラスごとのOne-vs-Rest）
type PassiveAggressiveClassifier struct {
	PAParams
	State *model.StateManager

	Coef        [][]float64 // クラス数 x 特徴数
	Intercepts  []float64
	ClassLabels []int
	NIter       int
}

// PassiveAggressiveOption は設定オプション
type PassiveAggressiveOption func(*PAParams)

func defaultPAParams(loss string) PAParams {
	return PAParams{
		C:            1.0,
		FitIntercept: true,
		MaxIter:      1000,
		Tol:          1e-3,
		Shuffle:      true,
		RandomState:  42,
		Loss:         loss,
	}
}

// NewPassiveAggressiveRegressor は新しいPassiveAggressiveRegressorを作成
func NewPassiveAggressiveRegressor(options ...PassiveAggressiveOption) *PassiveAggressiveRegressor {
	pa := &PassiveAggressiveRegressor{
		PAParams: defaultPAParams("epsilon_insensitive"),
		State:    model.NewStateManager(),
		Epsilon:  0.1,
	}
	for _, opt := range options {
		opt(&pa.PAParams)
	}
	return pa
}

// NewPassiveAggressiveClassifier は新しいPassiveAggressiveClassifierを作成
func NewPassiveAggressiveClassifier(options ...PassiveAggressiveOption) *PassiveAggressiveClassifier {
	pa := &PassiveAggressiveClassifier{
		PAParams: defaultPAParams("hinge"),
		State:    model.NewStateManager(),
	}
	for _, opt := range options {
		opt(&pa.PAParams)
	}
	return pa
}

// WithPAC は正則化パラメータCを設定
func WithPAC(c float64) PassiveAggressiveOption {
	return func(cfg *PAParams) { cfg.C = c }
}

// WithPAMaxIter は最大エポック数を設定
func WithPAMaxIter(maxIter int) PassiveAggressiveOption {
	return func(cfg *PAParams) { cfg.MaxIter = maxIter }
}

// WithPAFitIntercept は切片の学習有無を設定
func WithPAFitIntercept(fit bool) PassiveAggressiveOption {
	return func(cfg *PAParams) { cfg.FitIntercept = fit }
}

// WithPALoss は損失関数を設定
func WithPALoss(loss string) PassiveAggressiveOption {
	return func(cfg *PAParams) { cfg.Loss = loss }
}

// WithPARandomState はシャッフルの乱数シードを設定
func WithPARandomState(seed int) PassiveAggressiveOption {
	return func(cfg *PAParams) { cfg.RandomState = seed }
}

// WithPAAverage は平均化PAの使用を設定
func WithPAAverage(average bool) PassiveAggressiveOption {
	return func(cfg *PAParams) { cfg.Average = average }
}

// Fit はエポック単位のオンライン更新でモデルを学習
func (pa *PassiveAggressiveRegressor) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckFitInput("PassiveAggressiveRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := pa.validate("epsilon_insensitive", "squared_epsilon_insensitive"); err != nil {
		return err
	}
	if pa.State == nil {
		pa.State = model.NewStateManager()
	}

	coef := make([]float64, cols)
	bias := 0.0
	avgCoef := make([]float64, cols)
	avgBias := 0.0
	var t float64
	x := make([]float64, cols)

	n, converged := pa.epochs(rows, func(i int) float64 {
		mat.Row(x, i, X)
		yi := y.At(i, 0)
		diff := yi - (bias + dotProduct(coef, x))
		loss := math.Max(0, math.Abs(diff)-pa.Epsilon)
		if loss > 0 {
			tau := pa.step(loss, dotProduct(x, x))
			if pa.Loss == "squared_epsilon_insensitive" {
				// PA-II
				sq := dotProduct(x, x)
				if pa.FitIntercept {
					sq++
				}
				tau = loss / (sq + 1/(2*pa.C))
			}
			if diff < 0 {
				tau = -tau
			}
			for j, xj := range x {
				coef[j] += tau * xj
			}
			if pa.FitIntercept {
				bias += tau
			}
		}
		t++
		for j := range coef {
			avgCoef[j] += (coef[j] - avgCoef[j]) / t
		}
		avgBias += (bias - avgBias) / t
		return loss
	})
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("PassiveAggressiveRegressor", n, "Maximum number of iterations reached"))
	}
	if pa.Average {
		coef, bias = avgCoef, avgBias
	}
	if err := errors.CheckNumericalStability("PassiveAggressiveRegressor.Fit", coef, n); err != nil {
		return err
	}

	pa.Coef, pa.Bias, pa.NIter = coef, bias, n
	pa.State.SetDimensions(cols, rows)
	pa.State.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (pa *PassiveAggressiveRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := pa.State.RequireFitted("PassiveAggressiveRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := pa.State.CheckFeatures("PassiveAggressiveRegressor.Predict", cols); err != nil {
		return nil, err
	}
	predictions := mat.NewDense(rows, 1, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		predictions.Set(i, 0, pa.Bias+dotProduct(pa.Coef, x))
	}
	return predictions, nil
}

// Score はR²を返す
func (pa *PassiveAggressiveRegressor) Score(X, y mat.Matrix) (float64, error) {
	return r2Score(pa.Predict, X, y)
}

// GetParams はハイパーパラメータを返す
func (pa *PassiveAggressiveRegressor) GetParams() map[string]interface{} {
	p := pa.params()
	p["epsilon"] = pa.Epsilon
	return p
}

// SetParams はハイパーパラメータを設定する
func (pa *PassiveAggressiveRegressor) SetParams(params map[string]interface{}) error {
	return pa.set("PassiveAggressiveRegressor", params, func(k string, v interface{}) (bool, error) {
		if k != "epsilon" {
			return false, nil
		}
		var err error
		pa.Epsilon, err = model.ParamFloat(k, v)
		return true, err
	})
}

// Fit はクラスごとのヒンジ損失でモデルを学習
func (pa *PassiveAggressiveClassifier) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckFitInput("PassiveAggressiveClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := pa.validate("hinge", "squared_hinge"); err != nil {
		return err
	}
	if pa.State == nil {
		pa.State = model.NewStateManager()
	}

	classes := model.UniqueClasses(y)
	if len(classes) < 2 {
		return errors.NewValueError("PassiveAggressiveClassifier.Fit",
			fmt.Sprintf("needs samples of at least 2 classes, got %d", len(classes)))
	}
	target := model.ClassIndices(y, classes)
	k := len(classes)
	coef := make([][]float64, k)
	avgCoef := make([][]float64, k)
	for c := range coef {
		coef[c] = make([]float64, cols)
		avgCoef[c] = make([]float64, cols)
	}
	intercepts := make([]float64, k)
	avgIntercepts := make([]float64, k)
	var t float64
	x := make([]float64, cols)

	n, converged := pa.epochs(rows, func(i int) float64 {
		mat.Row(x, i, X)
		sq := dotProduct(x, x)
		var total float64
		for c := 0; c < k; c++ {
			sign := -1.0
			if target[i] == c {
				sign = 1
			}
			margin := sign * (intercepts[c] + dotProduct(coef[c], x))
			if margin >= 1 {
				continue
			}
			loss := 1 - margin
			total += loss
			tau := pa.step(loss, sq)
			if pa.Loss == "squared_hinge" {
				norm := sq
				if pa.FitIntercept {
					norm++
				}
				tau = loss / (norm + 1/(2*pa.C))
			}
			for j, xj := range x {
				coef[c][j] += sign * tau * xj
			}
			if pa.FitIntercept {
				intercepts[c] += sign * tau
			}
		}
		t++
		for c := 0; c < k; c++ {
			for j := range coef[c] {
				avgCoef[c][j] += (coef[c][j] - avgCoef[c][j]) / t
			}
			avgIntercepts[c] += (intercepts[c] - avgIntercepts[c]) / t
		}
		return total / float64(k)
	})
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("PassiveAggressiveClassifier", n, "Maximum number of iterations reached"))
	}
	if pa.Average {
		coef, intercepts = avgCoef, avgIntercepts
	}

	pa.Coef, pa.Intercepts, pa.ClassLabels, pa.NIter = coef, intercepts, classes, n
	pa.State.SetDimensions(cols, rows)
	pa.State.SetFitted()
	return nil
}

// DecisionFunction はクラスごとのスコア（n x クラス数）を返す
func (pa *PassiveAggressiveClassifier) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := pa.State.RequireFitted("PassiveAggressiveClassifier", "DecisionFunction"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := pa.State.CheckFeatures("PassiveAggressiveClassifier.DecisionFunction", cols); err != nil {
		return nil, err
	}
	scores := mat.NewDense(rows, len(pa.ClassLabels), nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		for c := range pa.Coef {
			scores.Set(i, c, pa.Intercepts[c]+dotProduct(pa.Coef[c], x))
		}
	}
	return scores, nil
}

// Predict はスコア最大のクラスを返す
func (pa *PassiveAggressiveClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := pa.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(scores, pa.ClassLabels), nil
}

// PredictProba はスコアをsoftmaxで正規化した値を返す。
// 確率として較正されてはいないが、順位はDecisionFunctionと一致する。
func (pa *PassiveAggressiveClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := pa.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	rows, k := scores.Dims()
	out := mat.NewDense(rows, k, nil)
	for i := 0; i < rows; i++ {
		errors.Softmax(out.RawRowView(i), scores.RawRowView(i))
	}
	return out, nil
}

// Classes はクラスラベルを返す
func (pa *PassiveAggressiveClassifier) Classes() []int {
	return append([]int(nil), pa.ClassLabels...)
}

// Score は正解率を返す
func (pa *PassiveAggressiveClassifier) Score(X, y mat.Matrix) (float64, error) {
	return accuracyScore(pa.Predict, X, y)
}

// GetParams はハイパーパラメータを返す
func (pa *PassiveAggressiveClassifier) GetParams() map[string]interface{} {
	return pa.params()
}

// SetParams はハイパーパラメータを設定する
func (pa *PassiveAggressiveClassifier) SetParams(params map[string]interface{}) error {
	return pa.set("PassiveAggressiveClassifier", params, nil)
}

func r2Score(predict func(mat.Matrix) (mat.Matrix, error), X, y mat.Matrix) (float64, error) {
	pred, err := predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVec("Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVec("Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred)
}

var (
	_ model.Regressor  = (*PassiveAggressiveRegressor)(nil)
	_ model.Classifier = (*PassiveAggressiveClassifier)(nil)
)
