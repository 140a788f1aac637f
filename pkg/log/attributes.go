package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestClassifier".
	ModelNameKey = "model.name"

	// ModelIDKey is the short zoo id of an estimator, e.g. "rf".
	ModelIDKey = "model.id"

	// OperationKey is the ML operation: "fit", "predict", "transform".
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	ComponentKey = "ml.component"
)

// Experiment context.
const (
	// ExperimentIDKey is the run id assigned to one experiment.
	ExperimentIDKey = "experiment.id"

	// StageKey is the orchestrator stage: "setup", "compare_models", ...
	StageKey = "automl.stage"

	// TaskKey is the resolved task type.
	TaskKey = "automl.task"

	// TargetKey is the target column name.
	TargetKey = "automl.target"

	// SampleFracKey is the fraction used when the working table was sampled.
	SampleFracKey = "data.sample_frac"

	// FoldKey is the cross-validation fold number.
	FoldKey = "cv.fold"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	PathKey     = "data.path"
)

// Performance.
const (
	DurationMsKey = "perf.duration_ms"
	ScoreKey      = "metrics.score"
	MetricKey     = "metrics.name"
	IterationKey  = "training.iteration"
	RandomSeedKey = "config.random_seed"
)

// Error context.
const (
	ErrorKey      = "error"
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Standard values for OperationKey.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
)
