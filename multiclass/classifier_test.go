package multiclass

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/ensemble"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/YuminosukeSato/genbooster/sklearn/linear_model"
	"github.com/YuminosukeSato/genbooster/sklearn/tree"
)

// blobs returns three well separated clusters labelled 0, 1 and 2.
func blobs(perClass int, seed uint64) (*mat.Dense, *mat.Dense) {
	centers := [][2]float64{{0, 0}, {5, 5}, {10, 0}}
	noise := distuv.Normal{Mu: 0, Sigma: 0.5, Src: rand.NewPCG(seed, 2)}
	n := perClass * len(centers)
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for k, c := range centers {
		for i := 0; i < perClass; i++ {
			row := k*perClass + i
			X.Set(row, 0, c[0]+noise.Rand())
			X.Set(row, 1, c[1]+noise.Rand())
			y.Set(row, 0, float64(k))
		}
	}
	return X, y
}

func TestBoosterClassifier_FitPredict(t *testing.T) {
	X, y := blobs(30, 1)
	clf, err := NewBoosterClassifier(linear_model.RidgeFactory(1.0), ensemble.WithNEstimators(10))
	require.NoError(t, err)
	require.NoError(t, clf.Fit(X, y))

	assert.Equal(t, []int{0, 1, 2}, clf.ClassLabels())
	require.Len(t, clf.Models, 3)

	acc, err := clf.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.9)

	pred, err := clf.Predict(X)
	require.NoError(t, err)
	r, c := pred.Dims()
	assert.Equal(t, 90, r)
	assert.Equal(t, 1, c)
}

func TestClassifier_ProbaRowsSumToOneAndArgmaxMatches(t *testing.T) {
	X, y := blobs(20, 2)
	clf, err := NewRandomBagClassifier(linear_model.RidgeFactory(0.5), ensemble.WithNEstimators(5))
	require.NoError(t, err)
	require.NoError(t, clf.Fit(X, y))

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	labels, err := clf.PredictLabels(X)
	require.NoError(t, err)

	n, k := proba.Dims()
	require.Equal(t, 3, k)
	for i := 0; i < n; i++ {
		sum, best := 0.0, 0
		for j := 0; j < k; j++ {
			v := proba.At(i, j)
			assert.True(t, v >= 0 && v <= 1)
			sum += v
			if v > proba.At(i, best) {
				best = j
			}
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
		assert.Equal(t, clf.Classes[best], labels[i], "row %d", i)
	}
}

// fixedEnsemble returns a stored column regardless of input.
type fixedEnsemble struct {
	Column []float64
}

func (f *fixedEnsemble) Fit(_, _ mat.Matrix) error { return nil }

func (f *fixedEnsemble) FitContext(_ context.Context, _, _ mat.Matrix) error { return nil }

func (f *fixedEnsemble) Predict(X mat.Matrix) (mat.Matrix, error) {
	return mat.NewDense(len(f.Column), 1, append([]float64(nil), f.Column...)), nil
}

func TestClassifier_ArgmaxIsRowWise(t *testing.T) {
	// 列ごとの argmax なら [1, 0, 2] の添字になるが、行ごとに選ぶ必要がある
	clf := &Classifier{
		Classes: []int{0, 3, 7},
		Models: []ensemble.Ensemble{
			&fixedEnsemble{Column: []float64{1, 9, 0, 2}},
			&fixedEnsemble{Column: []float64{5, 0, 1, 2}},
			&fixedEnsemble{Column: []float64{2, 1, 8, 1}},
		},
		State: model.NewStateManager(),
	}
	clf.State.SetFitted(2, 4)

	labels, err := clf.PredictLabels(mat.NewDense(4, 2, nil))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0, 7, 0}, labels)

	pred, err := clf.Predict(mat.NewDense(4, 2, nil))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 7, 0}, mat.Col(nil, 0, pred))

	proba, err := clf.PredictProba(mat.NewDense(4, 2, nil))
	require.NoError(t, err)
	// 行 3 は 0 と 3 が同点
	assert.InDelta(t, proba.At(3, 0), proba.At(3, 1), 1e-15)
	want := math.Exp(5) / (math.Exp(1) + math.Exp(5) + math.Exp(2))
	assert.InDelta(t, want, proba.At(0, 1), 1e-12)
}

func TestClassifier_LabelValidation(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	tests := []struct {
		name   string
		labels []float64
	}{
		{"negative", []float64{0, 1, -1, 1}},
		{"fractional", []float64{0, 1, 0.5, 1}},
		{"nan", []float64{0, 1, math.NaN(), 1}},
		{"inf", []float64{0, 1, math.Inf(1), 1}},
		{"single class", []float64{2, 2, 2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf, err := NewBoosterClassifier(linear_model.RidgeFactory(1.0), ensemble.WithNEstimators(2))
			require.NoError(t, err)
			err = clf.Fit(X, mat.NewDense(4, 1, tt.labels))
			require.Error(t, err)
			assert.True(t, scigoErrors.Is(err, scigoErrors.ErrInvalidConfig))
		})
	}
}

func TestClassifier_NonContiguousLabels(t *testing.T) {
	X, y := blobs(15, 3)
	relabel := map[float64]float64{0: 4, 1: 9, 2: 2}
	n, _ := y.Dims()
	for i := 0; i < n; i++ {
		y.Set(i, 0, relabel[y.At(i, 0)])
	}

	clf, err := NewBoosterClassifier(linear_model.RidgeFactory(1.0), ensemble.WithNEstimators(5))
	require.NoError(t, err)
	require.NoError(t, clf.Fit(X, y))
	assert.Equal(t, []int{2, 4, 9}, clf.ClassLabels())

	acc, err := clf.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.9)
}

func TestClassifier_IndependentOfWorkerCount(t *testing.T) {
	X, y := blobs(15, 4)

	fit := func(jobs int) mat.Matrix {
		clf, err := NewBoosterClassifier(linear_model.RidgeFactory(1.0),
			ensemble.WithNEstimators(4),
			ensemble.WithNJobs(jobs),
		)
		require.NoError(t, err)
		require.NoError(t, clf.Fit(X, y))
		proba, err := clf.PredictProba(X)
		require.NoError(t, err)
		return proba
	}
	assert.True(t, mat.Equal(fit(1), fit(3)))
}

func TestClassifier_RejectsSharedCallbacks(t *testing.T) {
	var history map[string][]float64
	_, err := NewBoosterClassifier(linear_model.RidgeFactory(1.0),
		ensemble.WithCallbacks(ensemble.RecordEvaluation(&history)),
	)
	require.Error(t, err)

	var valErr *scigoErrors.ValidationError
	require.True(t, scigoErrors.As(err, &valErr))
	assert.Equal(t, "callbacks", valErr.ParamName)
}

func TestClassifier_PerClassCallbacks(t *testing.T) {
	X, y := blobs(15, 8)

	// 並行に呼ばれるので外側の map は学習前に用意しておく
	histories := map[int]*map[string][]float64{}
	for _, label := range []int{0, 1, 2} {
		histories[label] = new(map[string][]float64)
	}

	clf, err := NewBoosterClassifier(linear_model.RidgeFactory(1.0),
		ensemble.WithNEstimators(20),
		ensemble.WithTolerance(0),
		ensemble.WithNJobs(3),
	)
	require.NoError(t, err)
	clf.SetClassCallbacks(func(label int) []ensemble.Callback {
		return []ensemble.Callback{
			ensemble.RecordEvaluation(histories[label]),
			ensemble.EarlyStoppingCallback(3, ensemble.EvalTrainMSE, true),
		}
	})
	require.NoError(t, clf.Fit(X, y))

	require.Equal(t, []int{0, 1, 2}, clf.Classes)
	for k, m := range clf.Models {
		booster, ok := m.(*ensemble.Booster)
		require.True(t, ok)
		assert.Len(t, booster.Rounds, 20, "class %d", k)
		assert.Equal(t, booster.LossHistory(), (*histories[clf.Classes[k]])[ensemble.EvalTrainMSE], "class %d", k)
	}
}

func TestClassifier_NonFiniteScoresRejected(t *testing.T) {
	clf := &Classifier{
		Classes: []int{0, 1},
		Models: []ensemble.Ensemble{
			&fixedEnsemble{Column: []float64{1, math.NaN()}},
			&fixedEnsemble{Column: []float64{0, 1}},
		},
		State: model.NewStateManager(),
	}
	clf.State.SetFitted(1, 2)

	_, err := clf.PredictProba(mat.NewDense(2, 1, nil))
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrNumericInstability))
}

func TestClassifier_GetParams(t *testing.T) {
	X, y := blobs(10, 9)
	clf, err := NewBoosterClassifier(linear_model.RidgeFactory(1.0),
		ensemble.WithNEstimators(2),
		ensemble.WithNJobs(2),
	)
	require.NoError(t, err)
	require.NoError(t, clf.Fit(X, y))

	params := clf.GetParams()
	assert.Equal(t, "onehot", params["encoding"])
	assert.Equal(t, 2, params["n_jobs"])
	assert.Equal(t, []int{0, 1, 2}, params["classes"])
}

func TestAdaBoostClassifier_SignedEncoding(t *testing.T) {
	X, y := blobs(20, 5)

	base, err := NewAdaBoostClassifier(tree.ExtraTreeFactory(tree.WithMaxDepth(3)), ensemble.WithNEstimators(5))
	require.NoError(t, err)
	require.NoError(t, base.Fit(X, y))

	signed, err := New(func(opts ...ensemble.Option) (ensemble.Ensemble, error) {
		opts = append([]ensemble.Option{ensemble.WithNEstimators(5)}, opts...)
		return ensemble.NewAdaBoost(tree.ExtraTreeFactory(tree.WithMaxDepth(3)), opts...)
	}, WithEncoding(Signed))
	require.NoError(t, err)
	require.NoError(t, signed.Fit(X, y))

	for _, clf := range []*Classifier{base, signed} {
		acc, err := clf.Score(X, y)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, acc, 0.9)
	}
}

func TestClassifier_Errors(t *testing.T) {
	_, err := New(nil)
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrInvalidConfig))

	_, err = NewBoosterClassifier(linear_model.RidgeFactory(1.0), ensemble.WithLearningRate(-1))
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrInvalidConfig))

	nilFactory := func(...ensemble.Option) (ensemble.Ensemble, error) { return nil, nil }
	_, err = New(nilFactory, WithEncoding("binary"))
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrInvalidConfig))

	_, err = NewBoosterClassifier(nil)
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrInvalidConfig))

	X, y := blobs(10, 6)
	clf, err := NewBoosterClassifier(linear_model.RidgeFactory(1.0), ensemble.WithNEstimators(2))
	require.NoError(t, err)

	_, err = clf.PredictProba(X)
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrNotFitted))

	assert.True(t, scigoErrors.Is(clf.Fit(X, mat.NewDense(5, 1, nil)), scigoErrors.ErrDimensionMismatch))

	require.NoError(t, clf.Fit(X, y))
	_, err = clf.Predict(mat.NewDense(3, 5, nil))
	assert.True(t, scigoErrors.Is(err, scigoErrors.ErrDimensionMismatch))
}

func TestClassifier_PersistenceRoundTrip(t *testing.T) {
	X, y := blobs(10, 7)
	clf, err := NewBoosterClassifier(linear_model.RidgeFactory(1.0), ensemble.WithNEstimators(3))
	require.NoError(t, err)
	require.NoError(t, clf.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(clf, &buf))
	var loaded Classifier
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	assert.Equal(t, clf.Classes, loaded.Classes)
	want, err := clf.PredictProba(X)
	require.NoError(t, err)
	got, err := loaded.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
