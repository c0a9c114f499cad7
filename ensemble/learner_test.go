package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/core/model"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/YuminosukeSato/genbooster/sklearn/linear_model"
)

func TestNewLearnerHandleRejectsNil(t *testing.T) {
	_, err := NewLearnerHandle(nil, 1)
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrInvalidConfig))

	h, err := NewLearnerHandle(func() model.Estimator { return nil }, 1)
	require.NoError(t, err)
	_, err = h.Fit(mat.NewDense(2, 1, nil), mat.NewDense(2, 1, nil))
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrInvalidConfig))
}

func TestLearnerHandleFreshLearnerPerFit(t *testing.T) {
	X, y := regressionData(20, 2, 40)
	h, err := NewLearnerHandle(linear_model.RidgeFactory(1.0), 1)
	require.NoError(t, err)

	a, err := h.Fit(X, y)
	require.NoError(t, err)
	b, err := h.Fit(X, y)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.True(t, h.SupportsWeights())
}

func TestLearnerHandleNativeWeights(t *testing.T) {
	X, y := regressionData(10, 2, 41)
	h, err := NewLearnerHandle(func() model.Estimator { return &recallLearner{} }, 1)
	require.NoError(t, err)

	w := []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	learner, err := h.FitWeighted(X, y, w, 0)
	require.NoError(t, err)
	assert.Equal(t, w, learner.(*recallLearner).weights)
	assert.Equal(t, mat.Col(nil, 0, y), learner.(*recallLearner).y)

	_, err = h.FitWeighted(X, y, w[:3], 0)
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrDimensionMismatch))
}

// unweightedRecall hides FitWeighted so the handle has to resample.
type unweightedRecall struct{ recallLearner }

func (u *unweightedRecall) FitWeighted() {}

func TestLearnerHandleResamplesWithoutNativeWeights(t *testing.T) {
	n := 30
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i))
	}
	h, err := NewLearnerHandle(func() model.Estimator { return &unweightedRecall{} }, 7)
	require.NoError(t, err)
	assert.False(t, h.SupportsWeights())

	// 重みゼロの行は決して選ばれない
	w := make([]float64, n)
	for i := 0; i < n; i += 2 {
		w[i] = 1
	}
	first, err := h.FitWeighted(X, y, w, 3)
	require.NoError(t, err)
	drawn := first.(*unweightedRecall).y
	require.Len(t, drawn, n)
	for _, v := range drawn {
		assert.Equal(t, 0, int(v)%2, "row %v has zero weight", v)
	}

	again, err := h.FitWeighted(X, y, w, 3)
	require.NoError(t, err)
	assert.Equal(t, drawn, again.(*unweightedRecall).y)

	other, err := h.FitWeighted(X, y, w, 4)
	require.NoError(t, err)
	assert.NotEqual(t, drawn, other.(*unweightedRecall).y)
}

func TestPredictColumnShape(t *testing.T) {
	_, err := predictColumn("op", wideLearner{}, mat.NewDense(3, 2, nil))
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrDimensionMismatch))

	out, err := predictColumn("op", &meanLearner{Mean: 2}, mat.NewDense(3, 2, nil))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2}, out)
}
