package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。yは1列の行列
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う。戻り値は n x 1 の行列
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は比較・チューニングの対象となる推定器の最小インターフェース
type Estimator interface {
	Fitter
	Predictor
	ParameterGetter
	ParameterSetter
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// Weights は学習された重み（係数）を返す
	Weights() []float64
	// Intercept は学習された切片を返す
	Intercept() float64
}
