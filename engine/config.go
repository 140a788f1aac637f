package engine

import (
	"fmt"
	"maps"
	"slices"

	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/preprocessing"
	"github.com/YuminosukeSato/tabautoml/task"
)

// Stage defaults. A zero field in a stage config selects these.
const (
	DefaultTrainSize  = 0.7
	DefaultSessionID  = 42
	DefaultFolds      = 10
	DefaultNSelect    = 1
	DefaultRound      = 4
	DefaultNIter      = 10
	DefaultNRepeats   = 5
	DefaultPlotFormat = "png"
)

// Fold strategies.
const (
	FoldKFold           = "kfold"
	FoldStratifiedKFold = "stratifiedkfold"
)

// CompareModels error policies.
const (
	ErrorsIgnore = "ignore"
	ErrorsRaise  = "raise"
)

// TuneModel search algorithms.
const (
	SearchRandom = "random"
	SearchGrid   = "grid"
)

// Bool returns a pointer to b for the optional flags of the stage configs.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i for the optional seeds of the stage configs.
// A nil seed selects the default; 0 is a valid seed.
func Int(i int) *int { return &i }

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// SetupConfig configures the setup stage. Zero values mean the default.
type SetupConfig struct {
	Data   *dataset.Frame
	Target string

	TrainSize float64
	// SessionID seeds the split, the folds and the estimators; nil means
	// DefaultSessionID.
	SessionID *int

	Folds        int
	FoldStrategy string
	FoldShuffle  bool

	NumericFeatures     []string
	CategoricalFeatures []string
	IgnoreFeatures      []string

	NumericImputation     string
	CategoricalImputation string
	MaxEncodingOHE        int
	Normalize             bool
	NormalizeMethod       string

	// NJobs は交差検証の並列数。0以下はGOMAXPROCS
	NJobs int

	// Silent suppresses the setup summary log line.
	Silent bool
}

// resolved returns a copy with defaults filled in. Slices are cloned so the
// caller's config is never shared with the experiment.
func (c SetupConfig) resolved(t task.Task) SetupConfig {
	c.NumericFeatures = slices.Clone(c.NumericFeatures)
	c.CategoricalFeatures = slices.Clone(c.CategoricalFeatures)
	c.IgnoreFeatures = slices.Clone(c.IgnoreFeatures)
	if c.TrainSize == 0 {
		c.TrainSize = DefaultTrainSize
	}
	c.SessionID = Int(c.seed())
	if c.Folds == 0 {
		c.Folds = DefaultFolds
	}
	if c.FoldStrategy == "" {
		c.FoldStrategy = FoldKFold
		if t == task.Classification {
			c.FoldStrategy = FoldStratifiedKFold
		}
	}
	if c.MaxEncodingOHE == 0 {
		c.MaxEncodingOHE = preprocessing.DefaultMaxEncodingOHE
	}
	return c
}

func (c SetupConfig) seed() int {
	if c.SessionID == nil {
		return DefaultSessionID
	}
	return *c.SessionID
}

func (c SetupConfig) validate() error {
	if c.Data == nil || c.Data.NumRows() == 0 {
		return errors.Wrap(errors.ErrEmptyData, "setup")
	}
	if c.Target == "" {
		return errors.NewValidationError("target", "is required", c.Target)
	}
	if !c.Data.HasColumn(c.Target) {
		return errors.NewColumnNotFoundError(c.Target, "target")
	}
	for _, name := range c.IgnoreFeatures {
		if !c.Data.HasColumn(name) {
			return errors.NewColumnNotFoundError(name, "ignore")
		}
		if name == c.Target {
			return errors.NewValidationError("ignore_features", "must not contain the target", name)
		}
	}
	if c.TrainSize <= 0 || c.TrainSize >= 1 {
		return errors.NewValidationError("train_size", "must be in (0, 1)", c.TrainSize)
	}
	if c.Folds < 2 {
		return errors.NewValidationError("fold", "must be >= 2", c.Folds)
	}
	if c.FoldStrategy != FoldKFold && c.FoldStrategy != FoldStratifiedKFold {
		return errors.NewValidationError("fold_strategy",
			fmt.Sprintf("must be %s or %s", FoldKFold, FoldStratifiedKFold), c.FoldStrategy)
	}
	if c.MaxEncodingOHE < 0 {
		return errors.NewValidationError("max_encoding_ohe", "must be >= 0", c.MaxEncodingOHE)
	}
	return nil
}

func (c SetupConfig) transformerConfig() preprocessing.ColumnTransformerConfig {
	return preprocessing.ColumnTransformerConfig{
		NumericFeatures:       c.NumericFeatures,
		CategoricalFeatures:   c.CategoricalFeatures,
		NumericImputation:     c.NumericImputation,
		CategoricalImputation: c.CategoricalImputation,
		MaxEncodingOHE:        c.MaxEncodingOHE,
		Normalize:             c.Normalize,
		NormalizeMethod:       c.NormalizeMethod,
	}
}

// CompareConfig configures CompareModels.
type CompareConfig struct {
	// Include / Exclude はモデルIDで候補を絞る。Includeが空なら全モデル
	Include []string
	Exclude []string

	// Sort is the leaderboard metric, Accuracy or R2 by default.
	Sort    string
	NSelect int

	Folds           int
	CrossValidation *bool

	// Errors is ignore (warn and skip failing models) or raise.
	Errors string
	Round  int
}

func (c CompareConfig) resolved(defaultSort string, folds int) CompareConfig {
	c.Include = slices.Clone(c.Include)
	c.Exclude = slices.Clone(c.Exclude)
	if c.Sort == "" {
		c.Sort = defaultSort
	}
	if c.NSelect == 0 {
		c.NSelect = DefaultNSelect
	}
	if c.Folds == 0 {
		c.Folds = folds
	}
	if c.Errors == "" {
		c.Errors = ErrorsIgnore
	}
	if c.Round == 0 {
		c.Round = DefaultRound
	}
	return c
}

func (c CompareConfig) validate() error {
	if c.NSelect < 1 {
		return errors.NewValidationError("n_select", "must be >= 1", c.NSelect)
	}
	if c.Errors != ErrorsIgnore && c.Errors != ErrorsRaise {
		return errors.NewValidationError("errors", "must be ignore or raise", c.Errors)
	}
	return validateCommon(c.Folds, c.Round)
}

func validateCommon(folds, round int) error {
	if folds < 2 {
		return errors.NewValidationError("fold", "must be >= 2", folds)
	}
	if round < 0 {
		return errors.NewValidationError("round", "must be >= 0", round)
	}
	return nil
}

// CreateConfig configures CreateModel.
type CreateConfig struct {
	// Estimator is a model ID from Models.
	Estimator string
	Params    map[string]interface{}

	Folds           int
	CrossValidation *bool
	Round           int
}

func (c CreateConfig) resolved(folds int) CreateConfig {
	c.Params = maps.Clone(c.Params)
	if c.Folds == 0 {
		c.Folds = folds
	}
	if c.Round == 0 {
		c.Round = DefaultRound
	}
	return c
}

// TuneConfig configures TuneModel.
type TuneConfig struct {
	NIter    int
	Optimize string

	// CustomGrid replaces the default grid of the model.
	CustomGrid      map[string][]interface{}
	SearchAlgorithm string

	// ChooseBetter keeps the input model when no candidate beats it. Default true.
	ChooseBetter *bool

	Folds int
	Round int
}

func (c TuneConfig) resolved(defaultSort string, folds int) TuneConfig {
	if c.CustomGrid != nil {
		grid := make(map[string][]interface{}, len(c.CustomGrid))
		for k, v := range c.CustomGrid {
			grid[k] = slices.Clone(v)
		}
		c.CustomGrid = grid
	}
	if c.NIter == 0 {
		c.NIter = DefaultNIter
	}
	if c.Optimize == "" {
		c.Optimize = defaultSort
	}
	if c.SearchAlgorithm == "" {
		c.SearchAlgorithm = SearchRandom
	}
	if c.Folds == 0 {
		c.Folds = folds
	}
	if c.Round == 0 {
		c.Round = DefaultRound
	}
	return c
}

func (c TuneConfig) validate() error {
	if c.NIter < 1 {
		return errors.NewValidationError("n_iter", "must be >= 1", c.NIter)
	}
	if c.SearchAlgorithm != SearchRandom && c.SearchAlgorithm != SearchGrid {
		return errors.NewValidationError("search_algorithm", "must be random or grid", c.SearchAlgorithm)
	}
	return validateCommon(c.Folds, c.Round)
}

// FinalizeConfig configures FinalizeModel. It has no options yet.
type FinalizeConfig struct{}

// PredictConfig configures PredictModel.
type PredictConfig struct {
	// Data が nil ならホールドアウトで予測し、指標をPullに残す
	Data *dataset.Frame

	// RawScore adds one prediction_score_<class> column per class.
	RawScore bool
	Round    int
}

// PlotConfig configures PlotModel.
type PlotConfig struct {
	// Plot is one of viz.Kinds; residuals or auc by default.
	Plot      string
	OutputDir string
	Format    string
}

// InterpretConfig configures InterpretModel.
type InterpretConfig struct {
	NRepeats int
	// RandomState seeds the permutations; nil uses the session id.
	RandomState *int
	// Metric defaults to the leaderboard sort metric.
	Metric string
}

func (c InterpretConfig) resolved(defaultSort string, seed int) InterpretConfig {
	if c.NRepeats == 0 {
		c.NRepeats = DefaultNRepeats
	}
	if c.RandomState == nil {
		c.RandomState = Int(seed)
	} else {
		c.RandomState = Int(*c.RandomState)
	}
	if c.Metric == "" {
		c.Metric = defaultSort
	}
	return c
}
