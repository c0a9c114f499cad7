// Package ensemble implements the randomized-feature ensembles: residual
// boosting (Booster), AdaBoost.R2 reweighting (AdaBoost) and bootstrap
// bagging (RandomBag).
//
// Every ensemble wraps a user-supplied base regressor through a
// model.Factory. Before each fit the input matrix is widened by an
// augment.Augmenter whose random weights are drawn once per Fit from the
// configured seed, so two fits with the same data and seed produce identical
// state and predictions.
//
//	b, err := ensemble.NewBooster(linear_model.RidgeFactory(1.0),
//	    ensemble.WithNEstimators(50),
//	    ensemble.WithSeed(7),
//	)
//	if err != nil { ... }
//	if err := b.Fit(X, y); err != nil { ... }
//	pred, err := b.Predict(Xtest)
package ensemble

import (
	"context"
	"encoding/gob"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/core/model"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/YuminosukeSato/genbooster/pkg/log"
)

func init() {
	gob.Register(&Booster{})
	gob.Register(&AdaBoost{})
	gob.Register(&RandomBag{})
}

// Round is one fitted boosting iteration.
type Round struct {
	Learner model.Estimator
	// Weight is the round's contribution: the learning rate for Booster,
	// the AdaBoost estimator weight otherwise.
	Weight float64
	// Error is the mean squared residual after the round (Booster) or the
	// weighted loss of the round (AdaBoost).
	Error float64
}

// Ensemble is the contract shared by every ensemble in this package. The
// multiclass decomposer builds one per class.
type Ensemble interface {
	model.Estimator
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

var (
	_ Ensemble = (*Booster)(nil)
	_ Ensemble = (*AdaBoost)(nil)
	_ Ensemble = (*RandomBag)(nil)

	_ model.ParameterGetter = (*Booster)(nil)
	_ model.ParameterGetter = (*AdaBoost)(nil)
	_ model.ParameterGetter = (*RandomBag)(nil)
)

func newEstimatorID() string {
	return uuid.NewString()
}

func fitLogger(name, id string) log.Logger {
	return log.GetLoggerWithName("ensemble."+name).With(
		log.ModelNameKey, name,
		log.EstimatorIDKey, id,
	)
}

// checkTrainingData validates shapes and finiteness of a training pair and
// returns n and p.
func checkTrainingData(op string, X, y mat.Matrix) (int, int, error) {
	n, p := X.Dims()
	yr, yc := y.Dims()
	if yr != n {
		return 0, 0, scigoErrors.NewDimensionError(op, n, yr, 0)
	}
	if yc != 1 {
		return 0, 0, scigoErrors.NewDimensionError(op, 1, yc, 1)
	}
	if err := checkFinite(op, X); err != nil {
		return 0, 0, err
	}
	if err := checkFinite(op, y); err != nil {
		return 0, 0, err
	}
	return n, p, nil
}

func checkFinite(op string, m mat.Matrix) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return scigoErrors.NewValueError(op, "input contains NaN or Inf")
			}
		}
	}
	return nil
}

func column(v []float64) *mat.Dense {
	return mat.NewDense(len(v), 1, v)
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return scigoErrors.Wrap(err, "fit cancelled")
	}
	return nil
}
