package ensemble

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/augment"
	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/metrics"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/YuminosukeSato/genbooster/pkg/log"
)

// Booster is a residual (gradient) boosting ensemble over augmented
// features. Each round fits a fresh learner on the current residual and
// subtracts its shrunken prediction.
type Booster struct {
	Config    Config
	State     *model.StateManager
	ID        string
	Augmenter *augment.Augmenter
	Rounds    []Round
	// YMean is the centering constant removed from y before the first round.
	YMean float64

	factory model.Factory
}

// NewBooster creates a Booster whose rounds are built by factory.
func NewBooster(factory model.Factory, opts ...Option) (*Booster, error) {
	if factory == nil {
		return nil, scigoErrors.NewValidationError("base_learner", "factory must not be nil", nil)
	}
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Booster{
		Config:  cfg,
		State:   model.NewStateManager(),
		ID:      newEstimatorID(),
		factory: factory,
	}, nil
}

// Fit trains the ensemble. y must be an n×1 column.
func (b *Booster) Fit(X, y mat.Matrix) error {
	return b.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cooperative cancellation checked between rounds.
func (b *Booster) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "Booster.Fit")

	n, p, err := checkTrainingData("Booster.Fit", X, y)
	if err != nil {
		return err
	}
	if b.factory == nil {
		return scigoErrors.NewValidationError("base_learner", "factory must not be nil", nil)
	}
	handle, err := NewLearnerHandle(b.factory, b.Config.SeedValue())
	if err != nil {
		return err
	}
	aug, err := augment.New(p, b.Config.AugmentSpec())
	if err != nil {
		return err
	}

	logger := fitLogger("Booster", b.ID)
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.AugmentedFeaturesKey, aug.OutputDim(),
		log.EstimatorsKey, b.Config.NEstimators,
		log.LearningRateKey, b.Config.LearningRate,
		log.RandomSeedKey, b.Config.SeedValue(),
	)
	start := time.Now()

	yMean := 0.0
	for i := 0; i < n; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(n)

	residual := make([]float64, n)
	for i := range residual {
		residual[i] = y.At(i, 0) - yMean
	}

	lr := b.Config.LearningRate
	dropout := b.Config.Dropout > 0
	callbacks := NewCallbackList("Booster", b.Config.callbacks...)
	rounds := make([]Round, 0, b.Config.NEstimators)
	stopReason := ""

	for k := 0; k < b.Config.NEstimators; k++ {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		if err := callbacks.BeforeIteration(k); err != nil {
			return err
		}
		if callbacks.ShouldStop() {
			stopReason = "callback"
			break
		}

		Z, err := aug.Transform(X, k, dropout)
		if err != nil {
			return err
		}
		learner, err := handle.Fit(Z, column(append([]float64(nil), residual...)))
		if err != nil {
			return err
		}
		pred, err := predictColumn("Booster.Fit", learner, Z)
		if err != nil {
			return err
		}

		mse := 0.0
		for i := range residual {
			residual[i] -= lr * pred[i]
			mse += residual[i] * residual[i]
		}
		mse /= float64(n)
		if err := scigoErrors.CheckNumericalStability("Booster.Fit", residual, k); err != nil {
			return err
		}

		rounds = append(rounds, Round{Learner: learner, Weight: lr, Error: mse})
		logger.Debug("Round finished", log.RoundKey, k, log.LossKey, mse)

		if err := callbacks.AfterIteration(k, map[string]float64{EvalTrainMSE: mse}, nil); err != nil {
			return err
		}
		if mse <= b.Config.Tolerance {
			stopReason = "tolerance"
			break
		}
		if callbacks.ShouldStop() {
			stopReason = "callback"
			break
		}
	}

	if len(rounds) == 0 {
		return scigoErrors.NewDegenerateEnsembleError("Booster", 0, "stopped before the first round")
	}

	b.Augmenter = aug
	b.Rounds = rounds
	b.YMean = yMean
	b.State.SetFitted(p, n)

	fields := []any{
		log.RoundsKeptKey, len(rounds),
		log.LossKey, rounds[len(rounds)-1].Error,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	}
	if stopReason != "" {
		fields = append(fields, log.StopReasonKey, stopReason)
	}
	logger.Info("Training completed", fields...)
	return nil
}

// Predict returns YMean plus the sum of every round's shrunken prediction.
func (b *Booster) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer scigoErrors.Recover(&err, "Booster.Predict")

	if err := b.State.RequireFitted("Booster", "Predict"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := b.State.CheckFeatures("Booster.Predict", p); err != nil {
		return nil, err
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = b.YMean
	}
	// dropout is off at predict time, so every round sees the same features
	Z, err := b.Augmenter.Transform(X, 0, false)
	if err != nil {
		return nil, err
	}
	for _, r := range b.Rounds {
		pred, err := predictColumn("Booster.Predict", r.Learner, Z)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] += r.Weight * pred[i]
		}
	}
	return column(out), nil
}

// Score returns the R² of the predictions on (X, y).
func (b *Booster) Score(X, y mat.Matrix) (float64, error) {
	pred, err := b.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// LossHistory returns the mean squared residual after each kept round.
func (b *Booster) LossHistory() []float64 {
	out := make([]float64, len(b.Rounds))
	for i, r := range b.Rounds {
		out[i] = r.Error
	}
	return out
}

// GetParams returns the hyperparameters.
func (b *Booster) GetParams() map[string]interface{} {
	return configParams(b.Config)
}

func configParams(c Config) map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":         c.NEstimators,
		"learning_rate":        c.LearningRate,
		"n_hidden_features":    c.NHiddenFeatures,
		"direct_link":          c.DirectLink,
		"weights_distribution": string(c.WeightsDistribution),
		"activation":           string(c.Activation),
		"dropout":              c.Dropout,
		"tolerance":            c.Tolerance,
		"seed":                 c.SeedValue(),
		"n_jobs":               c.NJobs,
	}
}
