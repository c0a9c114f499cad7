package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression ensembles.
type Regressor interface {
	Estimator
	Scorer
}

// Classifier combines interfaces for classification models.
type Classifier interface {
	Fitter
	Predictor

	// PredictProba returns an n×K matrix of class probabilities whose rows
	// sum to one.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// ClassLabels returns the sorted distinct labels seen during fitting.
	ClassLabels() []int
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is the interface for models that expose their hyperparameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}
