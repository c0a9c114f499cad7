package linear_model

import (
	"encoding/gob"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/pkg/errors"
)

func init() {
	gob.Register(&LinearRegression{})
	gob.Register(&Ridge{})
	gob.Register(&ElasticNet{})
}

// svdRcond is the relative singular-value cutoff of the least-squares solve.
const svdRcond = 1e-12

// LinearRegression is ordinary least squares solved through a thin SVD, so
// rank-deficient designs (for example constant ReLU columns) yield the
// minimum-norm solution instead of failing. Fields are exported for gob.
type LinearRegression struct {
	State *model.StateManager

	// Hyperparameters
	FitIntercept bool

	// Learned parameters
	Weights []float64
	Bias    float64
	Rank    int
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// LinearRegressionFactory returns a model.Factory of fresh LinearRegression
// learners built with options.
func LinearRegressionFactory(options ...LinearRegressionOption) model.Factory {
	return func() model.Estimator { return NewLinearRegression(options...) }
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	return lr.FitWeighted(X, y, nil)
}

// FitWeighted は重み付き最小二乗法で学習する。sampleWeight が nil なら等重み。
func (lr *LinearRegression) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	rows, cols, err := validateFit("LinearRegression.Fit", X, y, sampleWeight)
	if err != nil {
		return err
	}
	d := newDesign(X, y, sampleWeight, lr.FitIntercept)

	var svd mat.SVD
	if ok := svd.Factorize(d.X, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(svdRcond)

	coef := make([]float64, cols)
	if rank > 0 {
		var sol mat.Dense
		svd.SolveTo(&sol, d.y, rank)
		for j := range coef {
			coef[j] = sol.At(j, 0)
		}
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", coef, 0); err != nil {
		return err
	}

	lr.Weights = coef
	lr.Bias = d.intercept(coef)
	lr.Rank = rank
	lr.State.SetFitted(cols, rows)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	return predictLinear("LinearRegression.Predict", "LinearRegression", lr.State, X, lr.Weights, lr.Bias)
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	return score(lr, X, y)
}

// Coef は学習された重み（係数）を返す
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.Weights...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.Bias
}

// GetParams はハイパーパラメータを返す
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{"fit_intercept": lr.FitIntercept}
}
