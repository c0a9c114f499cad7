package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator is a regressor usable as a base learner: it can be fitted on a
// numeric matrix and a target column and then predict a target column.
type Estimator interface {
	Fitter
	Predictor
}

// WeightedFitter is implemented by learners that accept per-sample weights
// natively. Learners without it are fitted on a weighted resample instead.
type WeightedFitter interface {
	// FitWeighted fits the model with one non-negative weight per row of X.
	FitWeighted(X, y mat.Matrix, sampleWeight []float64) error
}

// Factory produces a fresh, unfitted base learner. Every boosting round and
// every bagging member calls it once so that learners never share state.
type Factory func() Estimator

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// Coef は学習された重み（係数）を返す
	Coef() []float64
	// Intercept は学習された切片を返す
	Intercept() float64
}
