package linear_model

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/pkg/errors"
)

// y = 2*x0 - 3*x1 + 1
func exactLinearData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		0, 1,
		1, 0,
		2, 3,
		3, 1,
		4, 5,
		-1, 2,
	})
	y := mat.NewDense(6, 1, nil)
	for i := 0; i < 6; i++ {
		y.Set(i, 0, 2*X.At(i, 0)-3*X.At(i, 1)+1)
	}
	return X, y
}

func TestLinearRegression_ExactFit(t *testing.T) {
	X, y := exactLinearData()

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	coef := lr.Coef()
	assert.InDelta(t, 2.0, coef[0], 1e-9)
	assert.InDelta(t, -3.0, coef[1], 1e-9)
	assert.InDelta(t, 1.0, lr.Intercept(), 1e-9)
	assert.Equal(t, 2, lr.Rank)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestLinearRegression_RankDeficientMinimumNorm(t *testing.T) {
	// 同一の列が2本: 最小ノルム解は係数を等分する
	X := mat.NewDense(5, 2, []float64{
		1, 1,
		2, 2,
		3, 3,
		4, 4,
		5, 5,
	})
	y := mat.NewDense(5, 1, []float64{3, 5, 7, 9, 11})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.Equal(t, 1, lr.Rank)
	assert.InDelta(t, 1.0, lr.Weights[0], 1e-9)
	assert.InDelta(t, 1.0, lr.Weights[1], 1e-9)
	assert.InDelta(t, 1.0, lr.Bias, 1e-9)
}

func TestLinearRegression_ConstantFeatures(t *testing.T) {
	// ReLU で全て 0 になった列など
	X := mat.NewDense(4, 2, nil)
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 6})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.Equal(t, []float64{0, 0}, lr.Coef())
	assert.InDelta(t, 3.0, lr.Intercept(), 1e-12)
}

func TestLinearRegression_WithoutIntercept(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})

	lr := NewLinearRegression(WithLRFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.InDelta(t, 2.0, lr.Weights[0], 1e-12)
	assert.Equal(t, 0.0, lr.Bias)
}

func TestLinearRegression_SampleWeights(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 3, 4})
	// 最後の点は外れ値
	y := mat.NewDense(5, 1, []float64{1, 3, 5, 7, 100})

	lr := NewLinearRegression()
	require.NoError(t, lr.FitWeighted(X, y, []float64{1, 1, 1, 1, 0}))
	assert.InDelta(t, 2.0, lr.Weights[0], 1e-9)
	assert.InDelta(t, 1.0, lr.Bias, 1e-9)

	// 重みのスケールは解に影響しない
	scaled := NewLinearRegression()
	require.NoError(t, scaled.FitWeighted(X, y, []float64{5, 5, 5, 5, 0}))
	assert.InDelta(t, lr.Weights[0], scaled.Weights[0], 1e-9)
}

func TestLinearRegression_Errors(t *testing.T) {
	X, y := exactLinearData()
	lr := NewLinearRegression()

	_, err := lr.Predict(X)
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	err = lr.Fit(X, mat.NewDense(5, 1, nil))
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))

	err = lr.FitWeighted(X, y, []float64{1, 1, 1, -1, 1, 1})
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))

	err = lr.FitWeighted(X, y, make([]float64, 6))
	assert.Error(t, err)

	require.NoError(t, lr.Fit(X, y))
	_, err = lr.Predict(mat.NewDense(2, 3, nil))
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestRidge_AlphaZeroMatchesOLS(t *testing.T) {
	X, y := exactLinearData()

	r := NewRidge(WithRidgeAlpha(0))
	require.NoError(t, r.Fit(X, y))
	assert.InDelta(t, 2.0, r.Coef()[0], 1e-8)
	assert.InDelta(t, -3.0, r.Coef()[1], 1e-8)
	assert.InDelta(t, 1.0, r.Intercept(), 1e-8)
}

func TestRidge_Shrinkage(t *testing.T) {
	X, y := exactLinearData()

	weak := NewRidge(WithRidgeAlpha(0.1))
	strong := NewRidge(WithRidgeAlpha(1000))
	require.NoError(t, weak.Fit(X, y))
	require.NoError(t, strong.Fit(X, y))

	norm := func(c []float64) float64 { return math.Hypot(c[0], c[1]) }
	assert.Less(t, norm(strong.Coef()), norm(weak.Coef()))

	// 強い正則化では切片は y の平均に近づく
	assert.InDelta(t, mat.Sum(y)/6, strong.Intercept(), 0.5)
}

func TestRidge_SingularDesignWithPenalty(t *testing.T) {
	X := mat.NewDense(4, 2, nil)
	y := mat.NewDense(4, 1, []float64{1, 1, 1, 1})

	r := NewRidge()
	require.NoError(t, r.Fit(X, y))
	assert.Equal(t, []float64{0, 0}, r.Coef())
	assert.InDelta(t, 1.0, r.Intercept(), 1e-12)
}

func TestRidge_NegativeAlpha(t *testing.T) {
	X, y := exactLinearData()
	err := NewRidge(WithRidgeAlpha(-1)).Fit(X, y)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestElasticNet_NoPenaltyMatchesOLS(t *testing.T) {
	X, y := exactLinearData()

	en := NewElasticNet(WithENAlpha(0), WithENTol(1e-12), WithENMaxIter(100000))
	require.NoError(t, en.Fit(X, y))
	assert.InDelta(t, 2.0, en.Coef()[0], 1e-6)
	assert.InDelta(t, -3.0, en.Coef()[1], 1e-6)
	assert.InDelta(t, 1.0, en.Intercept(), 1e-6)
}

func TestElasticNet_LargeAlphaZeroesCoefficients(t *testing.T) {
	X, y := exactLinearData()

	en := NewElasticNet(WithENAlpha(1e6), WithL1Ratio(1))
	require.NoError(t, en.Fit(X, y))
	assert.Equal(t, []float64{0, 0}, en.Coef())
	assert.InDelta(t, mat.Sum(y)/6, en.Intercept(), 1e-12)
	assert.Equal(t, 1, en.NIter)
}

func TestElasticNet_ConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	X, y := exactLinearData()
	en := NewElasticNet(WithENMaxIter(1), WithENTol(0))
	require.NoError(t, en.Fit(X, y))

	require.Len(t, warnings, 1)
	var convWarn *errors.ConvergenceWarning
	require.True(t, errors.As(warnings[0], &convWarn))
	assert.Equal(t, "ElasticNet", convWarn.Algorithm)
	assert.Equal(t, 1, en.NIter)
}

func TestElasticNet_InvalidParams(t *testing.T) {
	X, y := exactLinearData()
	for name, en := range map[string]*ElasticNet{
		"alpha":    NewElasticNet(WithENAlpha(-1)),
		"l1_ratio": NewElasticNet(WithL1Ratio(1.5)),
		"max_iter": NewElasticNet(WithENMaxIter(0)),
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(en.Fit(X, y), errors.ErrInvalidConfig))
		})
	}
}

func TestFactoriesProduceFreshLearners(t *testing.T) {
	factories := map[string]model.Factory{
		"ols":        LinearRegressionFactory(),
		"ridge":      RidgeFactory(0.5),
		"elasticnet": ElasticNetFactory(0.01, 0.5),
	}
	X, y := exactLinearData()
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			a, b := factory(), factory()
			require.NotSame(t, a, b)
			require.NoError(t, a.Fit(X, y))

			_, err := b.Predict(X)
			assert.True(t, errors.Is(err, errors.ErrNotFitted), "sibling learner must stay unfitted")

			_, ok := a.(model.WeightedFitter)
			assert.True(t, ok)
			_, ok = a.(model.LinearModel)
			assert.True(t, ok)
		})
	}
}

func TestLinearModelsGobRoundTrip(t *testing.T) {
	X, y := exactLinearData()
	r := NewRidge(WithRidgeAlpha(0.3))
	require.NoError(t, r.Fit(X, y))

	var buf bytes.Buffer
	var src model.Estimator = r
	require.NoError(t, model.SaveModelToWriter(&src, &buf))

	var dst model.Estimator
	require.NoError(t, model.LoadModelFromReader(&dst, &buf))

	want, err := r.Predict(X)
	require.NoError(t, err)
	got, err := dst.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}
