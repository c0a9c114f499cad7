// Package multiclass turns the regression ensembles into classifiers. Each
// class gets its own ensemble fitted on an indicator target; the per-class
// raw outputs are turned into probabilities with a softmax and the predicted
// label is the row-wise argmax.
package multiclass

import (
	"context"
	"encoding/gob"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/core/parallel"
	"github.com/YuminosukeSato/genbooster/ensemble"
	"github.com/YuminosukeSato/genbooster/metrics"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/YuminosukeSato/genbooster/pkg/log"
)

func init() {
	gob.Register(&Classifier{})
}

// Encoding selects the per-class regression target.
type Encoding string

const (
	// OneHot uses 1 for the class and 0 otherwise.
	OneHot Encoding = "onehot"
	// Signed uses 1 for the class and -1 otherwise.
	Signed Encoding = "signed"
)

// EnsembleFactory builds one unfitted per-class ensemble. opts carries the
// per-class settings (callbacks) and must be applied after the factory's own.
type EnsembleFactory func(opts ...ensemble.Option) (ensemble.Ensemble, error)

// Classifier is a one-vs-rest decomposition over regression ensembles.
// Models[k] scores Classes[k]. Fields are exported for gob.
type Classifier struct {
	Classes  []int
	Models   []ensemble.Ensemble
	Encoding Encoding
	NJobs    int
	State    *model.StateManager
	ID       string

	factory        EnsembleFactory
	classCallbacks func(label int) []ensemble.Callback
}

var (
	_ model.Classifier      = (*Classifier)(nil)
	_ model.ParameterGetter = (*Classifier)(nil)
)

// Option configures a Classifier.
type Option func(*Classifier)

// WithEncoding selects the target encoding (OneHot by default).
func WithEncoding(e Encoding) Option {
	return func(c *Classifier) { c.Encoding = e }
}

// WithNJobs bounds how many classes fit at once; 0 means one per CPU.
func WithNJobs(n int) Option {
	return func(c *Classifier) { c.NJobs = n }
}

// WithClassCallbacks gives every class ensemble its own callbacks, built by
// fn for that class label when the class is fitted.
func WithClassCallbacks(fn func(label int) []ensemble.Callback) Option {
	return func(c *Classifier) { c.classCallbacks = fn }
}

// New creates a Classifier whose per-class ensembles come from factory.
func New(factory EnsembleFactory, opts ...Option) (*Classifier, error) {
	if factory == nil {
		return nil, scigoErrors.NewValidationError("ensemble", "factory must not be nil", nil)
	}
	c := &Classifier{
		Encoding: OneHot,
		State:    model.NewStateManager(),
		ID:       uuid.NewString(),
		factory:  factory,
	}
	for _, opt := range opts {
		opt(c)
	}
	switch c.Encoding {
	case OneHot, Signed:
	default:
		return nil, scigoErrors.NewValidationError("encoding", "must be \"onehot\" or \"signed\"", c.Encoding)
	}
	if c.NJobs < 0 {
		return nil, scigoErrors.NewValidationError("n_jobs", "must be non-negative", c.NJobs)
	}
	return c, nil
}

// NewBoosterClassifier decomposes into one Booster per class. Callbacks go
// through SetClassCallbacks, not opts.
func NewBoosterClassifier(base model.Factory, opts ...ensemble.Option) (*Classifier, error) {
	return newWithEnsemble(base, opts, func(o []ensemble.Option) (ensemble.Ensemble, error) {
		return ensemble.NewBooster(base, o...)
	})
}

// NewAdaBoostClassifier decomposes into one AdaBoost per class.
func NewAdaBoostClassifier(base model.Factory, opts ...ensemble.Option) (*Classifier, error) {
	return newWithEnsemble(base, opts, func(o []ensemble.Option) (ensemble.Ensemble, error) {
		return ensemble.NewAdaBoost(base, o...)
	})
}

// NewRandomBagClassifier decomposes into one RandomBag per class.
func NewRandomBagClassifier(base model.Factory, opts ...ensemble.Option) (*Classifier, error) {
	return newWithEnsemble(base, opts, func(o []ensemble.Option) (ensemble.Ensemble, error) {
		return ensemble.NewRandomBag(base, o...)
	})
}

func newWithEnsemble(base model.Factory, opts []ensemble.Option, build func([]ensemble.Option) (ensemble.Ensemble, error)) (*Classifier, error) {
	if base == nil {
		return nil, scigoErrors.NewValidationError("base_learner", "factory must not be nil", nil)
	}
	cfg, err := CheckEnsembleOptions(opts...)
	if err != nil {
		return nil, err
	}
	shared := opts[:len(opts):len(opts)]
	return New(func(extra ...ensemble.Option) (ensemble.Ensemble, error) {
		return build(append(shared, extra...))
	}, WithNJobs(cfg.NJobs))
}

// CheckEnsembleOptions validates options meant for every class ensemble. They
// may not carry callbacks: one callback value would observe all classes.
func CheckEnsembleOptions(opts ...ensemble.Option) (ensemble.Config, error) {
	cfg, err := ensemble.NewConfig(opts...)
	if err != nil {
		return ensemble.Config{}, err
	}
	if n := len(cfg.Callbacks()); n > 0 {
		return ensemble.Config{}, scigoErrors.NewValidationError("callbacks", "shared by every class ensemble; use WithClassCallbacks", n)
	}
	return cfg, nil
}

// SetClassCallbacks installs per-class callbacks on a constructed Classifier.
func (c *Classifier) SetClassCallbacks(fn func(label int) []ensemble.Callback) {
	c.classCallbacks = fn
}

// Fit trains one ensemble per distinct label of y.
func (c *Classifier) Fit(X, y mat.Matrix) error {
	return c.FitContext(context.Background(), X, y)
}

// FitContext fits the per-class ensembles concurrently, at most NJobs at a
// time, and stores them in class order.
func (c *Classifier) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "Classifier.Fit")

	if c.factory == nil {
		return scigoErrors.NewValidationError("ensemble", "factory must not be nil", nil)
	}
	n, p := X.Dims()
	yr, yc := y.Dims()
	if yr != n {
		return scigoErrors.NewDimensionError("Classifier.Fit", n, yr, 0)
	}
	if yc != 1 {
		return scigoErrors.NewDimensionError("Classifier.Fit", 1, yc, 1)
	}
	labels, classes, err := classLabels(y)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("multiclass").With(
		log.ModelNameKey, "Classifier",
		log.EstimatorIDKey, c.ID,
	)
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.ClassesKey, len(classes),
	)
	start := time.Now()

	negative := 0.0
	if c.Encoding == Signed {
		negative = -1
	}

	models := make([]ensemble.Ensemble, len(classes))
	err = parallel.Map(ctx, "Classifier.Fit", len(classes), c.NJobs, func(ctx context.Context, k int) error {
		target := mat.NewDense(n, 1, nil)
		for i, label := range labels {
			if label == classes[k] {
				target.Set(i, 0, 1)
			} else {
				target.Set(i, 0, negative)
			}
		}
		var extra []ensemble.Option
		if c.classCallbacks != nil {
			extra = append(extra, ensemble.WithCallbacks(c.classCallbacks(classes[k])...))
		}
		m, err := c.factory(extra...)
		if err != nil {
			return err
		}
		if m == nil {
			return scigoErrors.NewValidationError("ensemble", "factory returned nil", nil)
		}
		if err := m.FitContext(ctx, X, target); err != nil {
			return scigoErrors.Wrapf(err, "class %d", classes[k])
		}
		models[k] = m
		logger.Debug("Class fitted", log.ClassKey, classes[k])
		return nil
	})
	if err != nil {
		return err
	}

	c.Classes = classes
	c.Models = models
	c.State.SetFitted(p, n)

	logger.Info("Training completed", log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

// classLabels validates y and returns its labels and sorted distinct classes.
func classLabels(y mat.Matrix) ([]int, []int, error) {
	n, _ := y.Dims()
	labels := make([]int, n)
	seen := make(map[int]struct{})
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v != math.Trunc(v) {
			return nil, nil, scigoErrors.NewValidationError("y", "labels must be non-negative integers", v)
		}
		labels[i] = int(v)
		seen[labels[i]] = struct{}{}
	}
	if len(seen) < 2 {
		return nil, nil, scigoErrors.NewValidationError("y", "at least two classes are required", len(seen))
	}
	classes := make([]int, 0, len(seen))
	for k := range seen {
		classes = append(classes, k)
	}
	sort.Ints(classes)
	return labels, classes, nil
}

// DecisionFunction returns the raw per-class outputs as an n×K matrix.
func (c *Classifier) DecisionFunction(X mat.Matrix) (_ *mat.Dense, err error) {
	defer scigoErrors.Recover(&err, "Classifier.Predict")

	if err := c.State.RequireFitted("Classifier", "Predict"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := c.State.CheckFeatures("Classifier.Predict", p); err != nil {
		return nil, err
	}

	raw := mat.NewDense(n, len(c.Models), nil)
	err = parallel.Map(context.Background(), "Classifier.Predict", len(c.Models), c.NJobs, func(_ context.Context, k int) error {
		pred, err := c.Models[k].Predict(X)
		if err != nil {
			return err
		}
		raw.SetCol(k, mat.Col(nil, 0, pred))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := scigoErrors.CheckMatrix("Classifier.Predict", raw, 0); err != nil {
		return nil, err
	}
	return raw, nil
}

// PredictProba returns the row-wise softmax of DecisionFunction.
func (c *Classifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	raw, err := c.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, _ := raw.Dims()
	for i := 0; i < n; i++ {
		row := raw.RawRowView(i)
		scigoErrors.Softmax(row, row)
	}
	return raw, nil
}

// PredictLabels returns the class label with the highest probability in
// each row.
func (c *Classifier) PredictLabels(X mat.Matrix) ([]int, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	dense := proba.(*mat.Dense)
	n, _ := dense.Dims()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = c.Classes[floats.MaxIdx(dense.RawRowView(i))]
	}
	return out, nil
}

// Predict returns PredictLabels as an n×1 matrix.
func (c *Classifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	labels, err := c.PredictLabels(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(labels), 1, nil)
	for i, l := range labels {
		out.Set(i, 0, float64(l))
	}
	return out, nil
}

// Score returns the accuracy of Predict on (X, y).
func (c *Classifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := c.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(y, pred)
}

// ClassLabels returns the sorted class labels seen during fitting.
func (c *Classifier) ClassLabels() []int {
	return append([]int(nil), c.Classes...)
}

// GetParams returns the decomposition settings.
func (c *Classifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"encoding": string(c.Encoding),
		"n_jobs":   c.NJobs,
		"classes":  c.ClassLabels(),
	}
}
