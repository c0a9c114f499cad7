package ensemble

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/genbooster/augment"
	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/core/rng"
	"github.com/YuminosukeSato/genbooster/metrics"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/YuminosukeSato/genbooster/pkg/log"
)

// perfectRoundWeight is stored for a round with zero weighted error, where
// ln(1/β) is unbounded. Fitting stops at such a round, so it enters the
// weighted mean as one unit against the lr·ln(1/β) weights of earlier rounds.
const perfectRoundWeight = 1.0

// AdaBoost is an AdaBoost.R2 ensemble with linear loss over augmented
// features. Predictions are the mean of round predictions weighted by the
// round weights.
type AdaBoost struct {
	Config    Config
	State     *model.StateManager
	ID        string
	Augmenter *augment.Augmenter
	Rounds    []Round
	// InitialWeights is the sampled starting distribution over rows.
	InitialWeights []float64
	// SampleWeights is the distribution after the last kept round.
	SampleWeights []float64

	factory model.Factory
}

// NewAdaBoost creates an AdaBoost ensemble whose rounds are built by factory.
func NewAdaBoost(factory model.Factory, opts ...Option) (*AdaBoost, error) {
	if factory == nil {
		return nil, scigoErrors.NewValidationError("base_learner", "factory must not be nil", nil)
	}
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &AdaBoost{
		Config:  cfg,
		State:   model.NewStateManager(),
		ID:      newEstimatorID(),
		factory: factory,
	}, nil
}

// InitialSampleWeights draws n starting weights from dist and normalizes
// them to sum to one: U(0,1) for uniform, |N(0,1)| for normal.
func InitialSampleWeights(n int, dist augment.Distribution, seed uint64) ([]float64, error) {
	src := rng.NewSource(seed, rng.StreamSampleWeights, 0)
	w := make([]float64, n)
	switch dist {
	case augment.Normal:
		d := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
		for i := range w {
			w[i] = math.Abs(d.Rand())
		}
	case augment.Uniform:
		d := distuv.Uniform{Min: 0, Max: 1, Src: src}
		for i := range w {
			w[i] = d.Rand()
		}
	default:
		return nil, scigoErrors.NewValidationError("weights_distribution", "must be \"uniform\" or \"normal\"", dist)
	}
	if err := normalize("AdaBoost.InitialSampleWeights", w, 0); err != nil {
		return nil, err
	}
	return w, nil
}

func normalize(op string, w []float64, round int) error {
	sum := floats.Sum(w)
	if math.IsNaN(sum) || math.IsInf(sum, 0) || sum <= 0 {
		return scigoErrors.NewNumericalInstabilityError(op, []float64{sum}, round)
	}
	floats.Scale(1/sum, w)
	return nil
}

// Fit trains the ensemble. y must be an n×1 column.
func (a *AdaBoost) Fit(X, y mat.Matrix) error {
	return a.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cooperative cancellation checked between rounds.
//
// A round whose weighted error reaches 0.5 is discarded and ends fitting; if
// that happens on the first round the ensemble is degenerate. A perfect
// round (zero error) is kept with weight 1 and ends fitting.
func (a *AdaBoost) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "AdaBoost.Fit")

	n, p, err := checkTrainingData("AdaBoost.Fit", X, y)
	if err != nil {
		return err
	}
	if a.factory == nil {
		return scigoErrors.NewValidationError("base_learner", "factory must not be nil", nil)
	}
	seed := a.Config.SeedValue()
	handle, err := NewLearnerHandle(a.factory, seed)
	if err != nil {
		return err
	}
	aug, err := augment.New(p, a.Config.AugmentSpec())
	if err != nil {
		return err
	}
	weights, err := InitialSampleWeights(n, a.Config.WeightsDistribution, seed)
	if err != nil {
		return err
	}
	initial := append([]float64(nil), weights...)

	logger := fitLogger("AdaBoost", a.ID)
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.AugmentedFeaturesKey, aug.OutputDim(),
		log.EstimatorsKey, a.Config.NEstimators,
		log.RandomSeedKey, seed,
	)
	start := time.Now()

	target := make([]float64, n)
	for i := range target {
		target[i] = y.At(i, 0)
	}

	lr := a.Config.LearningRate
	dropout := a.Config.Dropout > 0
	callbacks := NewCallbackList("AdaBoost", a.Config.callbacks...)
	rounds := make([]Round, 0, a.Config.NEstimators)
	absErr := make([]float64, n)
	stopReason := ""

	for k := 0; k < a.Config.NEstimators; k++ {
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
		learner, err := handle.FitWeighted(Z, y, weights, k)
		if err != nil {
			return err
		}
		pred, err := predictColumn("AdaBoost.Fit", learner, Z)
		if err != nil {
			return err
		}
		for i := range absErr {
			absErr[i] = math.Abs(target[i] - pred[i])
		}
		if err := scigoErrors.CheckNumericalStability("AdaBoost.Fit", absErr, k); err != nil {
			return err
		}

		maxErr := floats.Max(absErr)
		if maxErr == 0 {
			rounds = append(rounds, Round{Learner: learner, Weight: perfectRoundWeight, Error: 0})
			logger.Debug("Perfect round", log.RoundKey, k)
			stopReason = "perfect fit"
			if err := callbacks.AfterIteration(k, map[string]float64{EvalWeightedError: 0, EvalEstimatorWeight: perfectRoundWeight}, weights); err != nil {
				return err
			}
			break
		}

		// linear loss in [0, 1]
		epsilon := 0.0
		for i, e := range absErr {
			epsilon += weights[i] * (e / maxErr)
		}

		if epsilon >= 0.5 {
			if len(rounds) == 0 {
				return scigoErrors.NewDegenerateEnsembleError("AdaBoost", epsilon, "first round weighted error >= 0.5")
			}
			stopReason = "weighted error >= 0.5"
			scigoErrors.Warn(scigoErrors.NewEarlyTerminationWarning("AdaBoost", k, a.Config.NEstimators, "weighted error reached 0.5"))
			break
		}
		if epsilon <= 0 {
			rounds = append(rounds, Round{Learner: learner, Weight: perfectRoundWeight, Error: 0})
			stopReason = "perfect fit"
			if err := callbacks.AfterIteration(k, map[string]float64{EvalWeightedError: 0, EvalEstimatorWeight: perfectRoundWeight}, weights); err != nil {
				return err
			}
			break
		}

		// the learning rate shrinks the round weight only
		beta := epsilon / (1 - epsilon)
		alpha := lr * math.Log(1/beta)
		for i, e := range absErr {
			weights[i] *= math.Pow(beta, 1-e/maxErr)
		}
		if err := normalize("AdaBoost.Fit", weights, k); err != nil {
			return err
		}
		if err := scigoErrors.CheckNumericalStability("AdaBoost.Fit", weights, k); err != nil {
			return err
		}

		rounds = append(rounds, Round{Learner: learner, Weight: alpha, Error: epsilon})
		logger.Debug("Round finished",
			log.RoundKey, k,
			log.WeightedErrorKey, epsilon,
			log.EstimatorWeightKey, alpha,
		)

		if err := callbacks.AfterIteration(k, map[string]float64{EvalWeightedError: epsilon, EvalEstimatorWeight: alpha}, weights); err != nil {
			return err
		}
		if epsilon < a.Config.Tolerance {
			stopReason = "tolerance"
			break
		}
		if callbacks.ShouldStop() {
			stopReason = "callback"
			break
		}
	}

	if len(rounds) == 0 {
		return scigoErrors.NewDegenerateEnsembleError("AdaBoost", 0, "stopped before the first round")
	}

	a.Augmenter = aug
	a.Rounds = rounds
	a.InitialWeights = initial
	a.SampleWeights = weights
	a.State.SetFitted(p, n)

	fields := []any{
		log.RoundsKeptKey, len(rounds),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	}
	if stopReason != "" {
		fields = append(fields, log.StopReasonKey, stopReason)
	}
	logger.Info("Training completed", fields...)
	return nil
}

// Predict returns the weighted mean of the round predictions.
func (a *AdaBoost) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer scigoErrors.Recover(&err, "AdaBoost.Predict")

	if err := a.State.RequireFitted("AdaBoost", "Predict"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := a.State.CheckFeatures("AdaBoost.Predict", p); err != nil {
		return nil, err
	}

	Z, err := a.Augmenter.Transform(X, 0, false)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	total := 0.0
	for _, r := range a.Rounds {
		pred, err := predictColumn("AdaBoost.Predict", r.Learner, Z)
		if err != nil {
			return nil, err
		}
		floats.AddScaled(out, r.Weight, pred)
		total += r.Weight
	}
	floats.Scale(1/total, out)
	return column(out), nil
}

// Score returns the R² of the predictions on (X, y).
func (a *AdaBoost) Score(X, y mat.Matrix) (float64, error) {
	pred, err := a.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// EstimatorWeights returns the weight of each kept round.
func (a *AdaBoost) EstimatorWeights() []float64 {
	out := make([]float64, len(a.Rounds))
	for i, r := range a.Rounds {
		out[i] = r.Weight
	}
	return out
}

// GetParams returns the hyperparameters.
func (a *AdaBoost) GetParams() map[string]interface{} {
	return configParams(a.Config)
}
