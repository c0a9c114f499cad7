package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/core/rng"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
)

// LearnerHandle turns a model.Factory into fitted, independently owned base
// learners. How sample weights reach a learner is fixed by its type: a
// model.WeightedFitter receives them natively, anything else is fitted on a
// weighted bootstrap of the rows.
type LearnerHandle struct {
	factory model.Factory
	seed    uint64
}

// NewLearnerHandle wraps factory. seed drives the weighted resampling stream.
func NewLearnerHandle(factory model.Factory, seed uint64) (*LearnerHandle, error) {
	if factory == nil {
		return nil, scigoErrors.NewValidationError("base_learner", "factory must not be nil", nil)
	}
	return &LearnerHandle{factory: factory, seed: seed}, nil
}

func (h *LearnerHandle) newLearner() (model.Estimator, error) {
	learner := h.factory()
	if learner == nil {
		return nil, scigoErrors.NewValidationError("base_learner", "factory returned nil", nil)
	}
	return learner, nil
}

// Fit creates a fresh learner and fits it on (X, y).
func (h *LearnerHandle) Fit(X, y mat.Matrix) (model.Estimator, error) {
	learner, err := h.newLearner()
	if err != nil {
		return nil, err
	}
	if err := learner.Fit(X, y); err != nil {
		return nil, scigoErrors.NewModelError("LearnerHandle.Fit", "base learner fit failed", err)
	}
	return learner, nil
}

// FitWeighted creates a fresh learner and fits it with one weight per row.
// round selects the resampling stream for learners without native weights.
func (h *LearnerHandle) FitWeighted(X, y mat.Matrix, weights []float64, round int) (model.Estimator, error) {
	n, _ := X.Dims()
	if len(weights) != n {
		return nil, scigoErrors.NewDimensionError("LearnerHandle.FitWeighted", n, len(weights), 0)
	}
	learner, err := h.newLearner()
	if err != nil {
		return nil, err
	}

	if wf, ok := learner.(model.WeightedFitter); ok {
		if err := wf.FitWeighted(X, y, weights); err != nil {
			return nil, scigoErrors.NewModelError("LearnerHandle.FitWeighted", "base learner fit failed", err)
		}
		return learner, nil
	}

	Xr, yr := weightedResample(X, y, weights, rng.NewSource(h.seed, rng.StreamResample, round))
	if err := learner.Fit(Xr, yr); err != nil {
		return nil, scigoErrors.NewModelError("LearnerHandle.FitWeighted", "base learner fit failed", err)
	}
	return learner, nil
}

// SupportsWeights reports whether learners from factory take weights natively.
func (h *LearnerHandle) SupportsWeights() bool {
	learner := h.factory()
	_, ok := learner.(model.WeightedFitter)
	return ok
}

// weightedResample draws n rows with replacement, row i with probability
// weights[i].
func weightedResample(X, y mat.Matrix, weights []float64, src rand.Source) (*mat.Dense, *mat.Dense) {
	n, p := X.Dims()
	cat := distuv.NewCategorical(weights, src)
	Xr := mat.NewDense(n, p, nil)
	yr := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		row := int(cat.Rand())
		for j := 0; j < p; j++ {
			Xr.Set(i, j, X.At(row, j))
		}
		yr.Set(i, 0, y.At(row, 0))
	}
	return Xr, yr
}

// predictColumn runs learner on X and returns its n predictions as a slice.
func predictColumn(op string, learner model.Predictor, X mat.Matrix) ([]float64, error) {
	n, _ := X.Dims()
	pred, err := learner.Predict(X)
	if err != nil {
		return nil, scigoErrors.NewModelError(op, "base learner predict failed", err)
	}
	r, c := pred.Dims()
	if r != n {
		return nil, scigoErrors.NewDimensionError(op, n, r, 0)
	}
	if c != 1 {
		return nil, scigoErrors.NewDimensionError(op, 1, c, 1)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = pred.At(i, 0)
	}
	return out, nil
}
