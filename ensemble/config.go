package ensemble

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/YuminosukeSato/genbooster/augment"
	"github.com/YuminosukeSato/genbooster/core/rng"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
)

// Config holds the hyperparameters shared by Booster, AdaBoost and RandomBag.
// The mapstructure tags let the CLI decode it straight from a config file.
type Config struct {
	NEstimators         int                  `json:"n_estimators" mapstructure:"n_estimators" validate:"gt=0"`
	LearningRate        float64              `json:"learning_rate" mapstructure:"learning_rate" validate:"gt=0"`
	NHiddenFeatures     int                  `json:"n_hidden_features" mapstructure:"n_hidden_features" validate:"gte=0"`
	DirectLink          bool                 `json:"direct_link" mapstructure:"direct_link"`
	WeightsDistribution augment.Distribution `json:"weights_distribution" mapstructure:"weights_distribution" validate:"oneof=uniform normal"`
	Activation          augment.Activation   `json:"activation" mapstructure:"activation" validate:"oneof=relu tanh sigmoid"`
	Dropout             float64              `json:"dropout" mapstructure:"dropout" validate:"gte=0,lt=1"`
	Tolerance           float64              `json:"tolerance" mapstructure:"tolerance" validate:"gte=0"`
	Seed                *uint64              `json:"seed" mapstructure:"seed"`
	NJobs               int                  `json:"n_jobs" mapstructure:"n_jobs" validate:"gte=0"`

	callbacks []Callback
}

// DefaultConfig returns 100 estimators, learning rate 0.1, five ReLU hidden
// features with the direct link, uniform weights, no dropout and tolerance 1e-4.
func DefaultConfig() Config {
	return Config{
		NEstimators:         100,
		LearningRate:        0.1,
		NHiddenFeatures:     5,
		DirectLink:          true,
		WeightsDistribution: augment.Uniform,
		Activation:          augment.ReLU,
		Dropout:             0,
		Tolerance:           1e-4,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate reports the first invalid hyperparameter as an ErrInvalidConfig
// kind error.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if scigoErrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			reason := fe.Tag()
			if fe.Param() != "" {
				reason = fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
			}
			return scigoErrors.NewValidationError(fe.Field(), reason, fe.Value())
		}
		return scigoErrors.NewValidationError("config", err.Error(), c)
	}
	return c.AugmentSpec().Validate()
}

// SeedValue returns the configured seed or rng.DefaultSeed.
func (c Config) SeedValue() uint64 {
	if c.Seed == nil {
		return rng.DefaultSeed
	}
	return *c.Seed
}

// AugmentSpec derives the augmenter settings from the config.
func (c Config) AugmentSpec() augment.Spec {
	return augment.Spec{
		NHiddenFeatures: c.NHiddenFeatures,
		DirectLink:      c.DirectLink,
		Seed:            c.SeedValue(),
		DropoutRate:     c.Dropout,
		Distribution:    c.WeightsDistribution,
		Activation:      c.Activation,
	}
}

// Option configures an ensemble at construction.
type Option func(*Config)

// WithNEstimators sets the number of boosting rounds or bagging members.
func WithNEstimators(n int) Option {
	return func(c *Config) { c.NEstimators = n }
}

// WithLearningRate sets the shrinkage applied to each round.
func WithLearningRate(lr float64) Option {
	return func(c *Config) { c.LearningRate = lr }
}

// WithNHiddenFeatures sets the number of random hidden features.
func WithNHiddenFeatures(h int) Option {
	return func(c *Config) { c.NHiddenFeatures = h }
}

// WithDirectLink controls whether the original columns are kept.
func WithDirectLink(on bool) Option {
	return func(c *Config) { c.DirectLink = on }
}

// WithWeightsDistribution selects uniform or normal sampling for the hidden
// weights and the AdaBoost initial sample weights.
func WithWeightsDistribution(d augment.Distribution) Option {
	return func(c *Config) { c.WeightsDistribution = d }
}

// WithActivation selects the hidden-feature nonlinearity.
func WithActivation(a augment.Activation) Option {
	return func(c *Config) { c.Activation = a }
}

// WithDropout sets the training-time dropout rate of hidden features.
func WithDropout(rate float64) Option {
	return func(c *Config) { c.Dropout = rate }
}

// WithTolerance sets the early-stopping tolerance.
func WithTolerance(tol float64) Option {
	return func(c *Config) { c.Tolerance = tol }
}

// WithSeed fixes the seed of every random stream.
func WithSeed(seed uint64) Option {
	return func(c *Config) { c.Seed = &seed }
}

// WithNJobs bounds parallel member fits; 0 means one worker per CPU.
func WithNJobs(n int) Option {
	return func(c *Config) { c.NJobs = n }
}

// WithConfig replaces the whole configuration. Callbacks already registered
// are kept.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		cbs := c.callbacks
		*c = cfg
		c.callbacks = append(cbs, cfg.callbacks...)
	}
}

// WithCallbacks registers training callbacks. RandomBag ignores them since
// its members fit concurrently.
func WithCallbacks(cbs ...Callback) Option {
	return func(c *Config) { c.callbacks = append(c.callbacks, cbs...) }
}

// NewConfig applies opts to DefaultConfig and validates the result.
func NewConfig(opts ...Option) (Config, error) {
	return buildConfig(opts)
}

// Callbacks returns the registered training callbacks.
func (c Config) Callbacks() []Callback {
	return append([]Callback(nil), c.callbacks...)
}

func buildConfig(opts []Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
