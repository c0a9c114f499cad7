package ensemble

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/augment"
	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/core/parallel"
	"github.com/YuminosukeSato/genbooster/core/rng"
	"github.com/YuminosukeSato/genbooster/metrics"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/YuminosukeSato/genbooster/pkg/log"
)

// RandomBag is a bagging ensemble: every member is fitted on its own
// bootstrap sample of rows widened by the shared augmenter, and predictions
// are the unweighted mean over all members.
type RandomBag struct {
	Config    Config
	State     *model.StateManager
	ID        string
	Augmenter *augment.Augmenter
	Members   []model.Estimator

	factory model.Factory
}

// NewRandomBag creates a RandomBag whose members are built by factory.
func NewRandomBag(factory model.Factory, opts ...Option) (*RandomBag, error) {
	if factory == nil {
		return nil, scigoErrors.NewValidationError("base_learner", "factory must not be nil", nil)
	}
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &RandomBag{
		Config:  cfg,
		State:   model.NewStateManager(),
		ID:      newEstimatorID(),
		factory: factory,
	}, nil
}

// BootstrapIndices returns the n row indices drawn with replacement for
// member m.
func BootstrapIndices(n int, seed uint64, member int) []int {
	r := rng.New(seed, rng.StreamBootstrap, member)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = r.IntN(n)
	}
	return idx
}

// Fit trains the ensemble. y must be an n×1 column.
func (b *RandomBag) Fit(X, y mat.Matrix) error {
	return b.FitContext(context.Background(), X, y)
}

// FitContext fits members concurrently, at most Config.NJobs at a time.
// Members are stored by index, so the result does not depend on scheduling.
func (b *RandomBag) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "RandomBag.Fit")

	n, p, err := checkTrainingData("RandomBag.Fit", X, y)
	if err != nil {
		return err
	}
	if b.factory == nil {
		return scigoErrors.NewValidationError("base_learner", "factory must not be nil", nil)
	}
	seed := b.Config.SeedValue()
	handle, err := NewLearnerHandle(b.factory, seed)
	if err != nil {
		return err
	}
	aug, err := augment.New(p, b.Config.AugmentSpec())
	if err != nil {
		return err
	}

	logger := fitLogger("RandomBag", b.ID)
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.AugmentedFeaturesKey, aug.OutputDim(),
		log.EstimatorsKey, b.Config.NEstimators,
		log.RandomSeedKey, seed,
	)
	start := time.Now()

	dropout := b.Config.Dropout > 0
	members := make([]model.Estimator, b.Config.NEstimators)
	err = parallel.Map(ctx, "RandomBag.Fit", b.Config.NEstimators, b.Config.NJobs, func(_ context.Context, m int) error {
		idx := BootstrapIndices(n, seed, m)
		Xb := mat.NewDense(n, p, nil)
		yb := mat.NewDense(n, 1, nil)
		for i, row := range idx {
			for j := 0; j < p; j++ {
				Xb.Set(i, j, X.At(row, j))
			}
			yb.Set(i, 0, y.At(row, 0))
		}
		Z, err := aug.Transform(Xb, m, dropout)
		if err != nil {
			return err
		}
		learner, err := handle.Fit(Z, yb)
		if err != nil {
			return err
		}
		members[m] = learner
		logger.Debug("Member fitted", log.MemberKey, m)
		return nil
	})
	if err != nil {
		return err
	}

	b.Augmenter = aug
	b.Members = members
	b.State.SetFitted(p, n)

	logger.Info("Training completed",
		log.RoundsKeptKey, len(members),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// MemberPredictions returns an n×NEstimators matrix whose column m holds
// member m's predictions on X.
func (b *RandomBag) MemberPredictions(X mat.Matrix) (_ *mat.Dense, err error) {
	defer scigoErrors.Recover(&err, "RandomBag.MemberPredictions")

	if err := b.State.RequireFitted("RandomBag", "Predict"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := b.State.CheckFeatures("RandomBag.Predict", p); err != nil {
		return nil, err
	}
	Z, err := b.Augmenter.Transform(X, 0, false)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(n, len(b.Members), nil)
	err = parallel.Map(context.Background(), "RandomBag.Predict", len(b.Members), b.Config.NJobs, func(_ context.Context, m int) error {
		pred, err := predictColumn("RandomBag.Predict", b.Members[m], Z)
		if err != nil {
			return err
		}
		out.SetCol(m, pred)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Predict returns the arithmetic mean of the member predictions.
func (b *RandomBag) Predict(X mat.Matrix) (mat.Matrix, error) {
	members, err := b.MemberPredictions(X)
	if err != nil {
		return nil, err
	}
	n, m := members.Dims()
	out := make([]float64, n)
	for i := range out {
		s := 0.0
		for j := 0; j < m; j++ {
			s += members.At(i, j)
		}
		out[i] = s / float64(m)
	}
	return column(out), nil
}

// Score returns the R² of the predictions on (X, y).
func (b *RandomBag) Score(X, y mat.Matrix) (float64, error) {
	pred, err := b.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// GetParams returns the hyperparameters.
func (b *RandomBag) GetParams() map[string]interface{} {
	return configParams(b.Config)
}
