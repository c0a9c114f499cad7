// Package config loads the command-line tool's settings from a YAML, TOML or
// JSON file with GENBOOSTER_ environment overrides.
//
//	ensemble:
//	  n_estimators: 50
//	  learning_rate: 0.1
//	learner:
//	  name: ridge
//	  alpha: 1.0
//
// GENBOOSTER_ENSEMBLE_N_ESTIMATORS=200 overrides ensemble.n_estimators.
package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/ensemble"
	"github.com/YuminosukeSato/genbooster/multiclass"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/YuminosukeSato/genbooster/sklearn/linear_model"
	"github.com/YuminosukeSato/genbooster/sklearn/tree"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GENBOOSTER"

// File is the full tool configuration.
type File struct {
	Task     string          `mapstructure:"task" validate:"oneof=regression classification"`
	Strategy string          `mapstructure:"strategy" validate:"oneof=booster adaboost randombag"`
	Scaler   string          `mapstructure:"scaler" validate:"oneof=standard minmax none"`
	Encoding string          `mapstructure:"encoding" validate:"oneof=onehot signed"`
	Learner  LearnerConfig   `mapstructure:"learner"`
	Ensemble ensemble.Config `mapstructure:"ensemble"`
	Log      LogConfig       `mapstructure:"log"`
}

// LearnerConfig selects and parameterizes the base learner.
type LearnerConfig struct {
	Name           string  `mapstructure:"name" validate:"oneof=linear ridge elasticnet extratree"`
	Alpha          float64 `mapstructure:"alpha" validate:"gte=0"`
	L1Ratio        float64 `mapstructure:"l1_ratio" validate:"gte=0,lte=1"`
	MaxDepth       int     `mapstructure:"max_depth" validate:"gte=0"`
	MinSamplesLeaf int     `mapstructure:"min_samples_leaf" validate:"gte=1"`
	RandomState    uint64  `mapstructure:"random_state"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	def := ensemble.DefaultConfig()
	v.SetDefault("task", "regression")
	v.SetDefault("strategy", "booster")
	v.SetDefault("scaler", "standard")
	v.SetDefault("encoding", string(multiclass.OneHot))

	v.SetDefault("learner.name", "ridge")
	v.SetDefault("learner.alpha", 1.0)
	v.SetDefault("learner.l1_ratio", 0.5)
	v.SetDefault("learner.max_depth", 0)
	v.SetDefault("learner.min_samples_leaf", 1)
	v.SetDefault("learner.random_state", 42)

	v.SetDefault("ensemble.n_estimators", def.NEstimators)
	v.SetDefault("ensemble.learning_rate", def.LearningRate)
	v.SetDefault("ensemble.n_hidden_features", def.NHiddenFeatures)
	v.SetDefault("ensemble.direct_link", def.DirectLink)
	v.SetDefault("ensemble.weights_distribution", string(def.WeightsDistribution))
	v.SetDefault("ensemble.activation", string(def.Activation))
	v.SetDefault("ensemble.dropout", def.Dropout)
	v.SetDefault("ensemble.tolerance", def.Tolerance)
	v.SetDefault("ensemble.n_jobs", def.NJobs)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.pretty", false)
}

// Load reads path (defaults only when path is empty), applies environment
// overrides and validates the result.
func Load(path string) (*File, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// seed has no default, so bind it explicitly for env lookups
	if err := v.BindEnv("ensemble.seed"); err != nil {
		return nil, scigoErrors.Wrap(err, "bind env")
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, scigoErrors.Wrapf(err, "read config %s", path)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, scigoErrors.Wrap(err, "unmarshal config")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("mapstructure"); name != "" && name != "-" {
			return name
		}
		return fld.Name
	})
	return val
}

// Validate reports the first invalid field as an ErrInvalidConfig kind error
// named by its dotted config key.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if scigoErrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			key := strings.TrimPrefix(fe.Namespace(), "File.")
			return scigoErrors.NewValidationError(key, fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param()), fe.Value())
		}
		return scigoErrors.NewValidationError("config", err.Error(), nil)
	}
	return f.Ensemble.Validate()
}

// BaseLearner returns the factory named by Learner.
func (f *File) BaseLearner() (model.Factory, error) {
	l := f.Learner
	switch l.Name {
	case "linear":
		return linear_model.LinearRegressionFactory(), nil
	case "ridge":
		return linear_model.RidgeFactory(l.Alpha), nil
	case "elasticnet":
		return linear_model.ElasticNetFactory(l.Alpha, l.L1Ratio), nil
	case "extratree":
		return tree.ExtraTreeFactory(
			tree.WithMaxDepth(l.MaxDepth),
			tree.WithMinSamplesLeaf(l.MinSamplesLeaf),
			tree.WithRandomState(l.RandomState),
		), nil
	default:
		return nil, scigoErrors.NewValidationError("learner.name", "unknown base learner", l.Name)
	}
}

// NewRegressor builds the configured regression ensemble.
func (f *File) NewRegressor(opts ...ensemble.Option) (ensemble.Ensemble, error) {
	base, err := f.BaseLearner()
	if err != nil {
		return nil, err
	}
	opts = append([]ensemble.Option{ensemble.WithConfig(f.Ensemble)}, opts...)
	switch f.Strategy {
	case "booster":
		return ensemble.NewBooster(base, opts...)
	case "adaboost":
		return ensemble.NewAdaBoost(base, opts...)
	case "randombag":
		return ensemble.NewRandomBag(base, opts...)
	default:
		return nil, scigoErrors.NewValidationError("strategy", "unknown strategy", f.Strategy)
	}
}

// NewClassifier builds the configured one-vs-rest classifier. opts apply to
// every class ensemble and therefore may not carry callbacks.
func (f *File) NewClassifier(opts ...ensemble.Option) (*multiclass.Classifier, error) {
	if _, err := f.BaseLearner(); err != nil {
		return nil, err
	}
	if _, err := multiclass.CheckEnsembleOptions(opts...); err != nil {
		return nil, err
	}
	shared := opts[:len(opts):len(opts)]
	return multiclass.New(func(extra ...ensemble.Option) (ensemble.Ensemble, error) {
		return f.NewRegressor(append(shared, extra...)...)
	},
		multiclass.WithEncoding(multiclass.Encoding(f.Encoding)),
		multiclass.WithNJobs(f.Ensemble.NJobs),
	)
}

// Summary returns the settings worth echoing at startup.
func (f *File) Summary() map[string]interface{} {
	return map[string]interface{}{
		"task":                 f.Task,
		"strategy":             f.Strategy,
		"learner":              f.Learner.Name,
		"n_estimators":         f.Ensemble.NEstimators,
		"learning_rate":        f.Ensemble.LearningRate,
		"n_hidden_features":    f.Ensemble.NHiddenFeatures,
		"activation":           string(f.Ensemble.Activation),
		"weights_distribution": string(f.Ensemble.WeightsDistribution),
		"seed":                 f.Ensemble.SeedValue(),
	}
}
