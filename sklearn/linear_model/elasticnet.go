package linear_model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/pkg/errors"
)

// ElasticNet は L1 と L2 の混合正則化付き線形回帰（座標降下法）
//
// 目的関数:
//
//	1/(2n) Σ w_i (y_i − x_i·β − b)² + α·ρ·‖β‖₁ + α·(1−ρ)/2·‖β‖²
type ElasticNet struct {
	State *model.StateManager

	// Hyperparameters
	Alpha        float64
	L1Ratio      float64
	MaxIter      int
	Tol          float64
	FitIntercept bool

	// Learned parameters
	Weights []float64
	Bias    float64
	NIter   int
}

// ElasticNetOption は設定オプション
type ElasticNetOption func(*ElasticNet)

// WithENAlpha は正則化の強さを設定
func WithENAlpha(alpha float64) ElasticNetOption {
	return func(e *ElasticNet) { e.Alpha = alpha }
}

// WithL1Ratio は L1 の比率 ρ を設定
func WithL1Ratio(ratio float64) ElasticNetOption {
	return func(e *ElasticNet) { e.L1Ratio = ratio }
}

// WithENMaxIter は最大反復回数を設定
func WithENMaxIter(maxIter int) ElasticNetOption {
	return func(e *ElasticNet) { e.MaxIter = maxIter }
}

// WithENTol は収束判定の閾値を設定
func WithENTol(tol float64) ElasticNetOption {
	return func(e *ElasticNet) { e.Tol = tol }
}

// NewElasticNet creates an ElasticNet with alpha 0.01, l1_ratio 0.5,
// 1000 iterations and tolerance 1e-4.
func NewElasticNet(options ...ElasticNetOption) *ElasticNet {
	e := &ElasticNet{
		State:        model.NewStateManager(),
		Alpha:        0.01,
		L1Ratio:      0.5,
		MaxIter:      1000,
		Tol:          1e-4,
		FitIntercept: true,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// ElasticNetFactory returns a model.Factory of fresh ElasticNet learners.
func ElasticNetFactory(alpha, l1Ratio float64) model.Factory {
	return func() model.Estimator {
		return NewElasticNet(WithENAlpha(alpha), WithL1Ratio(l1Ratio))
	}
}

func (e *ElasticNet) validate() error {
	if e.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", e.Alpha)
	}
	if e.L1Ratio < 0 || e.L1Ratio > 1 {
		return errors.NewValidationError("l1_ratio", "must be in [0, 1]", e.L1Ratio)
	}
	if e.MaxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", e.MaxIter)
	}
	if e.Tol < 0 {
		return errors.NewValidationError("tol", "must be non-negative", e.Tol)
	}
	return nil
}

// Fit はモデルを訓練データで学習
func (e *ElasticNet) Fit(X, y mat.Matrix) error {
	return e.FitWeighted(X, y, nil)
}

// FitWeighted runs cyclic coordinate descent on the weighted centered design.
// A ConvergenceWarning is emitted when MaxIter is reached.
func (e *ElasticNet) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "ElasticNet.Fit")

	if err := e.validate(); err != nil {
		return err
	}
	rows, cols, err := validateFit("ElasticNet.Fit", X, y, sampleWeight)
	if err != nil {
		return err
	}
	d := newDesign(X, y, sampleWeight, e.FitIntercept)
	n := float64(rows)

	l1 := e.Alpha * e.L1Ratio
	l2 := e.Alpha * (1 - e.L1Ratio)

	// 列ごとの二乗和 / n
	colNorm := make([]float64, cols)
	columns := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		columns[j] = mat.Col(nil, j, d.X)
		colNorm[j] = floats.Dot(columns[j], columns[j]) / n
	}

	coef := make([]float64, cols)
	residual := mat.Col(nil, 0, d.y)

	converged := false
	iter := 0
	for iter = 1; iter <= e.MaxIter; iter++ {
		maxDelta, maxCoef := 0.0, 0.0
		for j := 0; j < cols; j++ {
			denom := colNorm[j] + l2
			if denom == 0 {
				continue
			}
			old := coef[j]
			rho := floats.Dot(columns[j], residual)/n + colNorm[j]*old
			updated := softThreshold(rho, l1) / denom
			if delta := updated - old; delta != 0 {
				// r -= x_j * delta
				floats.AddScaled(residual, -delta, columns[j])
				coef[j] = updated
			}
			maxDelta = math.Max(maxDelta, math.Abs(updated-old))
			maxCoef = math.Max(maxCoef, math.Abs(updated))
		}
		if err := errors.CheckNumericalStability("ElasticNet.Fit", coef, iter); err != nil {
			return err
		}
		if maxCoef == 0 || maxDelta/maxCoef < e.Tol {
			converged = true
			break
		}
	}
	if !converged {
		iter = e.MaxIter
		errors.Warn(errors.NewConvergenceWarning("ElasticNet", e.MaxIter, "coordinate updates did not fall below tol"))
	}

	e.Weights = coef
	e.Bias = d.intercept(coef)
	e.NIter = iter
	e.State.SetFitted(cols, rows)
	return nil
}

func softThreshold(x, lambda float64) float64 {
	switch {
	case x > lambda:
		return x - lambda
	case x < -lambda:
		return x + lambda
	default:
		return 0
	}
}

// Predict は入力データに対する予測を行う
func (e *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	return predictLinear("ElasticNet.Predict", "ElasticNet", e.State, X, e.Weights, e.Bias)
}

// Score はモデルの決定係数（R²）を計算する
func (e *ElasticNet) Score(X, y mat.Matrix) (float64, error) {
	return score(e, X, y)
}

// Coef は学習された重み（係数）を返す
func (e *ElasticNet) Coef() []float64 {
	return append([]float64(nil), e.Weights...)
}

// Intercept は学習された切片を返す
func (e *ElasticNet) Intercept() float64 {
	return e.Bias
}

// GetParams はハイパーパラメータを返す
func (e *ElasticNet) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         e.Alpha,
		"l1_ratio":      e.L1Ratio,
		"max_iter":      e.MaxIter,
		"tol":           e.Tol,
		"fit_intercept": e.FitIntercept,
	}
}
