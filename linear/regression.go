// Package linear は正規方程式による線形回帰とリッジ回帰を提供する。
package linear

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/core/parallel"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearRegression は最小二乗法による線形回帰モデル
type LinearRegression struct {
	State *model.StateManager

	Coef []float64 // 重み（係数）
	Bias float64   // 切片

	FitIntercept bool
	// Tol はSVDフォールバックで特異値を0とみなす相対閾値
	Tol float64
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
		Tol:          1e-10,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる。
// 正規方程式 (X^T X) w = X^T y を解き、悪条件（One-Hot列の共線性など）の
// 場合はSVDによる最小ノルム解に切り替える。
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	return lr.fit("LinearRegression.Fit", X, y, 0)
}

func (lr *LinearRegression) fit(op string, X, y mat.Matrix, alpha float64) error {
	r, c, err := model.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	if _, cy := y.Dims(); cy != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}

	// 切片を推定する場合はXとyを中心化する
	xMean := make([]float64, c)
	var yMean float64
	if lr.FitIntercept {
		for j := 0; j < c; j++ {
			for i := 0; i < r; i++ {
				xMean[j] += X.At(i, j)
			}
			xMean[j] /= float64(r)
		}
		for i := 0; i < r; i++ {
			yMean += y.At(i, 0)
		}
		yMean /= float64(r)
	}

	Xc := mat.NewDense(r, c, nil)
	yc := mat.NewVecDense(r, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				Xc.Set(i, j, X.At(i, j)-xMean[j])
			}
			yc.SetVec(i, y.At(i, 0)-yMean)
		}
	})

	var XTX mat.Dense
	XTX.Mul(Xc.T(), Xc)
	for j := 0; j < c && alpha > 0; j++ {
		XTX.Set(j, j, XTX.At(j, j)+alpha)
	}
	var XTy mat.VecDense
	XTy.MulVec(Xc.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&XTX, &XTy); err != nil {
		sol, svdErr := lr.solveSVD(op, Xc, yc, alpha)
		if svdErr != nil {
			return svdErr
		}
		w = *sol
	}

	lr.Coef = make([]float64, c)
	lr.Bias = yMean
	for j := 0; j < c; j++ {
		lr.Coef[j] = w.AtVec(j)
		lr.Bias -= xMean[j] * lr.Coef[j]
	}
	if err := errors.CheckNumericalStability(op, lr.Coef, 0); err != nil {
		return err
	}

	lr.State.SetDimensions(c, r)
	lr.State.SetFitted()
	return nil
}

// solveSVD は X = U S V^T から最小ノルム解（alpha>0ならリッジ解）を求める
func (lr *LinearRegression) solveSVD(op string, X *mat.Dense, y *mat.VecDense, alpha float64) (*mat.VecDense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil, errors.NewModelError(op, "SVD factorization failed", errors.ErrSingularMatrix)
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var uty mat.VecDense
	uty.MulVec(u.T(), y)
	cutoff := 0.0
	if len(s) > 0 {
		cutoff = lr.Tol * s[0]
	}
	for k, sk := range s {
		if sk <= cutoff {
			uty.SetVec(k, 0)
			continue
		}
		uty.SetVec(k, uty.AtVec(k)*sk/(sk*sk+alpha))
	}
	var w mat.VecDense
	w.MulVec(&v, &uty)
	return &w, nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	return lr.predict("LinearRegression", X)
}

func (lr *LinearRegression) predict(name string, X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted(name, "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := lr.State.CheckFeatures(name+".Predict", c); err != nil {
		return nil, err
	}

	// 予測: y = X * weights + intercept
	predictions := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := lr.Bias
			for j := 0; j < c; j++ {
				pred += X.At(i, j) * lr.Coef[j]
			}
			predictions.Set(i, 0, pred)
		}
	})
	return predictions, nil
}

// Weights は学習された重み（係数）を返す
func (lr *LinearRegression) Weights() []float64 {
	return append([]float64(nil), lr.Coef...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.Bias
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	return r2(lr.Predict, X, y)
}

func r2(predict func(mat.Matrix) (mat.Matrix, error), X, y mat.Matrix) (float64, error) {
	yPred, err := predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVec("Score", y)
	if err != nil {
		return 0, err
	}
	p, err := metrics.ColumnVec("Score", yPred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, p)
}

// GetParams はハイパーパラメータを返す
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.FitIntercept,
		"tol":           lr.Tol,
	}
}

// SetParams はハイパーパラメータを設定する
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	return lr.setParams("LinearRegression", params, nil)
}

func (lr *LinearRegression) setParams(name string, params map[string]interface{}, extra func(k string, v interface{}) (bool, error)) error {
	for k, v := range params {
		var err error
		switch k {
		case "fit_intercept":
			lr.FitIntercept, err = model.ParamBool(k, v)
		case "tol":
			lr.Tol, err = model.ParamFloat(k, v)
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

// String はモデルの文字列表現を返す
func (lr *LinearRegression) String() string {
	return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.FitIntercept)
}

// Ridge はL2正則化付きの線形回帰
type Ridge struct {
	LinearRegression
	Alpha float64
}

// NewRidge は新しいRidgeを作成する。alphaは正則化の強さ
func NewRidge(alpha float64, opts ...Option) *Ridge {
	return &Ridge{LinearRegression: *NewLinearRegression(opts...), Alpha: alpha}
}

// Fit は (X^T X + αI) w = X^T y を解く。切片は正則化しない
func (r *Ridge) Fit(X, y mat.Matrix) error {
	if r.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", r.Alpha)
	}
	return r.fit("Ridge.Fit", X, y, r.Alpha)
}

// Predict は入力データに対する予測を行う
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	return r.predict("Ridge", X)
}

// Score はモデルの決定係数（R²）を計算する
func (r *Ridge) Score(X, y mat.Matrix) (float64, error) {
	return r2(r.Predict, X, y)
}

// GetParams はハイパーパラメータを返す
func (r *Ridge) GetParams() map[string]interface{} {
	p := r.LinearRegression.GetParams()
	p["alpha"] = r.Alpha
	return p
}

// SetParams はハイパーパラメータを設定する
func (r *Ridge) SetParams(params map[string]interface{}) error {
	return r.setParams("Ridge", params, func(k string, v interface{}) (bool, error) {
		if k != "alpha" {
			return false, nil
		}
		var err error
		r.Alpha, err = model.ParamFloat(k, v)
		return true, err
	})
}

// String はモデルの文字列表現を返す
func (r *Ridge) String() string {
	return fmt.Sprintf("Ridge(alpha=%g, fit_intercept=%t)", r.Alpha, r.FitIntercept)
}

var (
	_ model.Regressor   = (*LinearRegression)(nil)
	_ model.Regressor   = (*Ridge)(nil)
	_ model.LinearModel = (*LinearRegression)(nil)
)
