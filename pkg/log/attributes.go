package log

// Model and operation context.
const (
	// ModelNameKey identifies the type of model.
	// Examples: "Booster", "AdaBoost", "RandomBag", "Ridge"
	ModelNameKey = "model.name"

	// EstimatorIDKey provides a unique identifier for a specific model instance.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// AugmentedFeaturesKey is the column count after random feature augmentation.
	AugmentedFeaturesKey = "data.augmented_features"

	// ClassesKey is the number of distinct labels seen by a classifier.
	ClassesKey = "data.classes"
)

// Ensemble progress.
const (
	// RoundKey records the boosting round (0-based).
	RoundKey = "ensemble.round"

	// MemberKey records the bagging member index.
	MemberKey = "ensemble.member"

	// ClassKey records which class a one-vs-rest ensemble is trained for.
	ClassKey = "ensemble.class"

	// EstimatorsKey records the configured number of estimators.
	EstimatorsKey = "ensemble.n_estimators"

	// RoundsKeptKey records how many rounds survived fitting.
	RoundsKeptKey = "ensemble.rounds_kept"

	// WeightedErrorKey records the AdaBoost weighted error of a round.
	WeightedErrorKey = "ensemble.weighted_error"

	// EstimatorWeightKey records the weight assigned to a round.
	EstimatorWeightKey = "ensemble.estimator_weight"

	// StopReasonKey explains why fitting stopped before n_estimators.
	StopReasonKey = "ensemble.stop_reason"
)

// Metrics.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records loss value during training or evaluation.
	LossKey = "metrics.loss"

	// R2ScoreKey records the coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// AccuracyKey records classification accuracy.
	AccuracyKey = "metrics.accuracy"

	// IterationKey records the current iteration of iterative solvers.
	IterationKey = "training.iteration"
)

// Hyperparameters.
const (
	LearningRateKey   = "hyperparams.learning_rate"
	RegularizationKey = "hyperparams.regularization"
	HiddenFeaturesKey = "hyperparams.n_hidden_features"
	DropoutKey        = "hyperparams.dropout"
	RandomSeedKey     = "config.random_seed"
)

// Error context.
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"

	PhaseTraining   = "training"
	PhaseInference  = "inference"
	PhaseValidation = "validation"
)
