package linear_model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/pkg/errors"
)

// Ridge is L2-regularized least squares solved with a Cholesky
// factorization of XᵀWX + αI on the centered design.
type Ridge struct {
	State *model.StateManager

	// Hyperparameters
	Alpha        float64
	FitIntercept bool

	// Learned parameters
	Weights []float64
	Bias    float64
}

// RidgeOption は設定オプション
type RidgeOption func(*Ridge)

// WithRidgeAlpha は正則化の強さを設定
func WithRidgeAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) {
		r.Alpha = alpha
	}
}

// WithRidgeFitIntercept は切片の学習有無を設定
func WithRidgeFitIntercept(fit bool) RidgeOption {
	return func(r *Ridge) {
		r.FitIntercept = fit
	}
}

// NewRidge creates a Ridge with alpha 1 and an intercept.
func NewRidge(options ...RidgeOption) *Ridge {
	r := &Ridge{
		State:        model.NewStateManager(),
		Alpha:        1.0,
		FitIntercept: true,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// RidgeFactory returns a model.Factory of fresh Ridge learners.
func RidgeFactory(alpha float64) model.Factory {
	return func() model.Estimator { return NewRidge(WithRidgeAlpha(alpha)) }
}

// Fit はモデルを訓練データで学習
func (r *Ridge) Fit(X, y mat.Matrix) error {
	return r.FitWeighted(X, y, nil)
}

// FitWeighted minimizes Σ w_i (y_i − x_i·β − b)² + α‖β‖² with the weights
// rescaled to mean one.
func (r *Ridge) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "Ridge.Fit")

	if r.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", r.Alpha)
	}
	rows, cols, err := validateFit("Ridge.Fit", X, y, sampleWeight)
	if err != nil {
		return err
	}
	d := newDesign(X, y, sampleWeight, r.FitIntercept)

	// A = XᵀX + αI, rhs = Xᵀy
	var gram mat.SymDense
	gram.SymOuterK(1, d.X.T())
	for j := 0; j < cols; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(d.X.T(), d.y)

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return errors.NewModelError("Ridge.Fit", "gram matrix is not positive definite", errors.ErrSingularMatrix)
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, &rhs); err != nil {
		return errors.NewModelError("Ridge.Fit", "cholesky solve failed", err)
	}

	coef := make([]float64, cols)
	for j := range coef {
		coef[j] = sol.AtVec(j)
	}
	if err := errors.CheckNumericalStability("Ridge.Fit", coef, 0); err != nil {
		return err
	}

	r.Weights = coef
	r.Bias = d.intercept(coef)
	r.State.SetFitted(cols, rows)
	return nil
}

// Predict は入力データに対する予測を行う
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	return predictLinear("Ridge.Predict", "Ridge", r.State, X, r.Weights, r.Bias)
}

// Score はモデルの決定係数（R²）を計算する
func (r *Ridge) Score(X, y mat.Matrix) (float64, error) {
	return score(r, X, y)
}

// Coef は学習された重み（係数）を返す
func (r *Ridge) Coef() []float64 {
	return append([]float64(nil), r.Weights...)
}

// Intercept は学習された切片を返す
func (r *Ridge) Intercept() float64 {
	return r.Bias
}

// GetParams はハイパーパラメータを返す
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{"alpha": r.Alpha, "fit_intercept": r.FitIntercept}
}
