package ensemble

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/genbooster/core/model"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/YuminosukeSato/genbooster/pkg/log"
)

// regressionData returns y = Σ (j+1)·x_j + 0.1·noise with x ~ N(0, 1).
func regressionData(n, p int, seed uint64) (*mat.Dense, *mat.Dense) {
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, 1)}
	X := mat.NewDense(n, p, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		target := 0.0
		for j := 0; j < p; j++ {
			v := norm.Rand()
			X.Set(i, j, v)
			target += float64(j+1) * v
		}
		y.Set(i, 0, target+0.1*norm.Rand())
	}
	return X, y
}

// captureLogs installs a TestLogger provider for the duration of the test.
func captureLogs(t *testing.T, level log.Level) *log.TestLogger {
	t.Helper()
	provider, logger := log.NewTestLoggerProvider(level)
	prev := log.SetProvider(provider)
	t.Cleanup(func() { log.SetProvider(prev) })
	return logger
}

func mustPredict(t *testing.T, p model.Predictor, X mat.Matrix) *mat.Dense {
	t.Helper()
	pred, err := p.Predict(X)
	require.NoError(t, err)
	return mat.DenseCopyOf(pred)
}

// recallLearner memorizes the training target and replays it, optionally
// perturbed, for inputs with the same number of rows.
type recallLearner struct {
	perturb func(y []float64)
	y       []float64
	weights []float64
}

func (l *recallLearner) Fit(_, y mat.Matrix) error {
	l.y = mat.Col(nil, 0, y)
	if l.perturb != nil {
		l.perturb(l.y)
	}
	return nil
}

func (l *recallLearner) FitWeighted(X, y mat.Matrix, w []float64) error {
	l.weights = append([]float64(nil), w...)
	return l.Fit(X, y)
}

func (l *recallLearner) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	if n != len(l.y) {
		return nil, scigoErrors.NewDimensionError("recallLearner.Predict", len(l.y), n, 0)
	}
	return mat.NewDense(n, 1, append([]float64(nil), l.y...)), nil
}

func shiftAll(delta float64) func([]float64) {
	return func(y []float64) {
		for i := range y {
			y[i] += delta
		}
	}
}

// meanLearner predicts the training mean and has no native weight support.
type meanLearner struct {
	Mean float64
}

func (l *meanLearner) Fit(_, y mat.Matrix) error {
	n, _ := y.Dims()
	s := 0.0
	for i := 0; i < n; i++ {
		s += y.At(i, 0)
	}
	l.Mean = s / float64(n)
	return nil
}

func (l *meanLearner) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, l.Mean)
	}
	return out, nil
}

type panicLearner struct{}

func (panicLearner) Fit(_, _ mat.Matrix) error { panic("learner exploded") }

func (panicLearner) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	return mat.NewDense(n, 1, nil), nil
}

// wideLearner returns two columns, which no ensemble accepts.
type wideLearner struct{}

func (wideLearner) Fit(_, _ mat.Matrix) error { return nil }

func (wideLearner) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	return mat.NewDense(n, 2, nil), nil
}
