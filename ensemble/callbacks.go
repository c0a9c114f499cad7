package ensemble

import (
	"math"
	"time"

	"github.com/YuminosukeSato/genbooster/pkg/log"
)

// Evaluation names reported to callbacks.
const (
	EvalTrainMSE        = "train_mse"
	EvalWeightedError   = "weighted_error"
	EvalEstimatorWeight = "estimator_weight"
)

// CallbackEnv contains the environment for callbacks. A fresh env is created
// for every Fit call.
type CallbackEnv struct {
	Algorithm   string
	Round       int
	BeginTime   time.Time
	EndTime     time.Time
	EvalResults map[string]float64
	// SampleWeights is a copy of the AdaBoost weights after the round's
	// update; nil for Booster.
	SampleWeights []float64
	StopTraining  bool

	// per-fit callback state keyed by callback instance
	state map[any]any
}

// fitState returns the value stored under key for the current fit, creating
// it with init on first use.
func (e *CallbackEnv) fitState(key any, init func() any) any {
	if e.state == nil {
		e.state = make(map[any]any)
	}
	v, ok := e.state[key]
	if !ok {
		v = init()
		e.state[key] = v
	}
	return v
}

// Callback is called before and after every sequential boosting round.
// Setting env.StopTraining ends fitting after the current round; a returned
// error aborts Fit. Built-in callbacks keep their state in env, so one value
// may serve several fits.
type Callback func(env *CallbackEnv) error

// LogEvaluation logs evaluation results every period rounds at Info level.
func LogEvaluation(logger log.Logger, period int) Callback {
	if period <= 0 {
		period = 1
	}
	return func(env *CallbackEnv) error {
		if env.EvalResults == nil || env.Round%period != 0 {
			return nil
		}
		fields := []any{log.ModelNameKey, env.Algorithm, log.RoundKey, env.Round}
		for name, value := range env.EvalResults {
			fields = append(fields, name, value)
		}
		logger.Info("Evaluation", fields...)
		return nil
	}
}

// RecordEvaluation appends every evaluation result to *history. The map is
// the caller's, so one RecordEvaluation should observe one fit at a time.
func RecordEvaluation(history *map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		if env.EvalResults == nil {
			return nil
		}
		if *history == nil {
			*history = make(map[string][]float64)
		}
		for name, value := range env.EvalResults {
			(*history)[name] = append((*history)[name], value)
		}
		return nil
	}
}

type earlyStoppingState struct {
	bestScore       float64
	bestRound       int
	roundsNoImprove int
}

// EarlyStoppingCallback stops training when metric has not improved for
// rounds consecutive rounds of the current fit.
func EarlyStoppingCallback(rounds int, metric string, minimize bool) Callback {
	key := new(earlyStoppingState)
	return func(env *CallbackEnv) error {
		value, exists := env.EvalResults[metric]
		if !exists {
			return nil
		}
		st := env.fitState(key, func() any {
			s := &earlyStoppingState{bestScore: math.Inf(1)}
			if !minimize {
				s.bestScore = math.Inf(-1)
			}
			return s
		}).(*earlyStoppingState)

		improved := value > st.bestScore
		if minimize {
			improved = value < st.bestScore
		}
		if improved {
			st.bestScore = value
			st.bestRound = env.Round
			st.roundsNoImprove = 0
		} else {
			st.roundsNoImprove++
		}
		if st.roundsNoImprove >= rounds {
			log.GetLoggerWithName("ensemble.callbacks").Info("Early stopping",
				log.RoundKey, env.Round,
				"best_round", st.bestRound,
				metric, st.bestScore,
			)
			env.StopTraining = true
		}
		return nil
	}
}

// TimeLimit stops training once maxDuration has elapsed since the first
// round of the current fit.
func TimeLimit(maxDuration time.Duration) Callback {
	key := new(time.Time)
	return func(env *CallbackEnv) error {
		start := env.fitState(key, func() any {
			if env.BeginTime.IsZero() {
				return time.Now()
			}
			return env.BeginTime
		}).(time.Time)
		if time.Since(start) > maxDuration {
			log.GetLoggerWithName("ensemble.callbacks").Info("Time limit reached", log.RoundKey, env.Round)
			env.StopTraining = true
		}
		return nil
	}
}

// CallbackList manages multiple callbacks
type CallbackList struct {
	callbacks []Callback
	env       *CallbackEnv
}

// NewCallbackList creates a new callback list
func NewCallbackList(algorithm string, callbacks ...Callback) *CallbackList {
	return &CallbackList{
		callbacks: callbacks,
		env:       &CallbackEnv{Algorithm: algorithm},
	}
}

// BeforeIteration calls callbacks before each round
func (cl *CallbackList) BeforeIteration(round int) error {
	cl.env.Round = round
	cl.env.BeginTime = time.Now()
	cl.env.EvalResults = nil
	cl.env.SampleWeights = nil

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
		if cl.env.StopTraining {
			break
		}
	}
	return nil
}

// AfterIteration calls callbacks after each round
func (cl *CallbackList) AfterIteration(round int, evalResults map[string]float64, sampleWeights []float64) error {
	cl.env.Round = round
	cl.env.EndTime = time.Now()
	cl.env.EvalResults = evalResults
	if sampleWeights != nil {
		cl.env.SampleWeights = append([]float64(nil), sampleWeights...)
	}

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
	}
	return nil
}

// ShouldStop returns whether training should stop
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}
