// Standard attribute keys. Keys are dotted ("model.name", "data.samples") so that
// records from every pipeline stage can be filtered the same way.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestRegressor".
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies one estimator instance (a UUID).
	EstimatorIDKey = "estimator.id"

	// OperationKey is the operation being performed: fit, predict, transform, score.
	OperationKey = "ml.operation"

	// ComponentKey is the package or stage emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey is the pipeline phase: load, training, evaluation, inference.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"

	// ColumnKey names a dataset column, e.g. "PostalCode".
	ColumnKey = "data.column"

	// VocabularySizeKey is the number of distinct categories fitted for a column.
	VocabularySizeKey = "data.vocabulary_size"

	// FingerprintKey is the xxhash fingerprint of a fitted vocabulary.
	FingerprintKey = "data.fingerprint"

	// PathKey is an input or output file path.
	PathKey = "data.path"
)

// Performance and quality.
const (
	DurationMsKey = "perf.duration_ms"
	LossKey       = "metrics.loss"
	RMSKey        = "metrics.rms"
	R2ScoreKey    = "metrics.r2_score"
	IterationKey  = "training.iteration"
	TreesKey      = "training.trees"
)

// Hyperparameters.
const (
	LearningRateKey   = "hyperparams.learning_rate"
	RegularizationKey = "hyperparams.regularization"
	RandomSeedKey     = "config.random_seed"
	TrainerKey        = "config.trainer"
)

// Errors.
const (
	ErrorCodeKey  = "error.code"
	SuggestionKey = "error.suggestion"
)

// Standard values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"

	PhaseLoad       = "load"
	PhaseTraining   = "training"
	PhaseEvaluation = "evaluation"
	PhaseInference  = "inference"

	ErrorNotFitted    = "NOT_FITTED"
	ErrorInvalidInput = "INVALID_INPUT"
	ErrorConvergence  = "CONVERGENCE_FAILURE"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)
