// Package expfile reads experiment files. A file names the dataset, target
// and task and holds one section per stage:
//
//	data: titanic.csv
//	index: PassengerId
//	target: Survived
//	task: classification
//	sampling:
//	  frac: auto
//	compare_models:
//	  include: [lr, dt, rf]
//	finalize_model: {}
//	predict_model: {}
//
// YAML (.yaml, .yml) and HCL (.hcl) files share the same structure; in HCL
// every section is a block.
package expfile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/YuminosukeSato/tabautoml/automl"
	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/sampling"
)

// File is a decoded experiment file. Relative paths are resolved against the
// directory of the file.
type File struct {
	Data   string `yaml:"data" hcl:"data"`
	Index  string `yaml:"index" hcl:"index,optional"`
	Target string `yaml:"target" hcl:"target"`
	Task   string `yaml:"task" hcl:"task"`

	Sampling *Sampling `yaml:"sampling" hcl:"sampling,block"`
	Setup    *Setup    `yaml:"setup" hcl:"setup,block"`
	Compare  *Compare  `yaml:"compare_models" hcl:"compare_models,block"`
	Tune     *Tune     `yaml:"tune_model" hcl:"tune_model,block"`
	Finalize *Finalize `yaml:"finalize_model" hcl:"finalize_model,block"`
	Predict  *Predict  `yaml:"predict_model" hcl:"predict_model,block"`
	Plot     *Plot     `yaml:"plot_model" hcl:"plot_model,block"`

	dir string
}

// Sampling is the sampling section. Frac is "auto" or a number.
type Sampling struct {
	Frac        interface{} `yaml:"frac"`
	RandomState *int        `yaml:"random_state" hcl:"random_state,optional"`

	FracExpr cty.Value `yaml:"-" hcl:"frac,optional"`
}

// Setup is the setup section.
type Setup struct {
	TrainSize    float64 `yaml:"train_size" hcl:"train_size,optional"`
	SessionID    *int    `yaml:"session_id" hcl:"session_id,optional"`
	Fold         int     `yaml:"fold" hcl:"fold,optional"`
	FoldStrategy string  `yaml:"fold_strategy" hcl:"fold_strategy,optional"`
	FoldShuffle  bool    `yaml:"fold_shuffle" hcl:"fold_shuffle,optional"`

	NumericFeatures     []string `yaml:"numeric_features" hcl:"numeric_features,optional"`
	CategoricalFeatures []string `yaml:"categorical_features" hcl:"categorical_features,optional"`
	IgnoreFeatures      []string `yaml:"ignore_features" hcl:"ignore_features,optional"`

	NumericImputation     string `yaml:"numeric_imputation" hcl:"numeric_imputation,optional"`
	CategoricalImputation string `yaml:"categorical_imputation" hcl:"categorical_imputation,optional"`
	MaxEncodingOHE        int    `yaml:"max_encoding_ohe" hcl:"max_encoding_ohe,optional"`
	Normalize             bool   `yaml:"normalize" hcl:"normalize,optional"`
	NormalizeMethod       string `yaml:"normalize_method" hcl:"normalize_method,optional"`

	NJobs  int  `yaml:"n_jobs" hcl:"n_jobs,optional"`
	Silent bool `yaml:"silent" hcl:"silent,optional"`
}

// Compare is the compare_models section.
type Compare struct {
	Include         []string `yaml:"include" hcl:"include,optional"`
	Exclude         []string `yaml:"exclude" hcl:"exclude,optional"`
	Sort            string   `yaml:"sort" hcl:"sort,optional"`
	NSelect         int      `yaml:"n_select" hcl:"n_select,optional"`
	Fold            int      `yaml:"fold" hcl:"fold,optional"`
	CrossValidation *bool    `yaml:"cross_validation" hcl:"cross_validation,optional"`
	Errors          string   `yaml:"errors" hcl:"errors,optional"`
	Round           int      `yaml:"round" hcl:"round,optional"`
}

// Tune is the tune_model section.
type Tune struct {
	NIter           int                      `yaml:"n_iter" hcl:"n_iter,optional"`
	Optimize        string                   `yaml:"optimize" hcl:"optimize,optional"`
	CustomGrid      map[string][]interface{} `yaml:"custom_grid"`
	SearchAlgorithm string                   `yaml:"search_algorithm" hcl:"search_algorithm,optional"`
	ChooseBetter    *bool                    `yaml:"choose_better" hcl:"choose_better,optional"`
	Fold            int                      `yaml:"fold" hcl:"fold,optional"`
	Round           int                      `yaml:"round" hcl:"round,optional"`

	CustomGridExpr cty.Value `yaml:"-" hcl:"custom_grid,optional"`
}

// Finalize is the finalize_model section. Its presence enables the stage.
type Finalize struct{}

// Predict is the predict_model section. Without Data the holdout rows are
// predicted.
type Predict struct {
	Data     string `yaml:"data" hcl:"data,optional"`
	RawScore bool   `yaml:"raw_score" hcl:"raw_score,optional"`
	Round    int    `yaml:"round" hcl:"round,optional"`
}

// Plot is the plot_model section.
type Plot struct {
	Plot   string `yaml:"plot" hcl:"plot,optional"`
	Format string `yaml:"format" hcl:"format,optional"`
}

// Extensions lists the supported experiment file extensions.
var Extensions = []string{".yaml", ".yml", ".hcl"}

// Load decodes the experiment file at path by extension.
func Load(path string) (*File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var decode func([]byte, string) (*File, error)
	switch ext {
	case ".yaml", ".yml":
		decode = decodeYAML
	case ".hcl":
		decode = decodeHCL
	default:
		return nil, errors.NewUnsupportedFileFormatError(path, ext, Extensions)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFileNotFoundError(path, err)
	}
	f, err := decode(src, path)
	if err != nil {
		return nil, err
	}
	f.dir = filepath.Dir(path)
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) validate() error {
	if f.Data == "" {
		return errors.NewValidationError("data", "is required", f.Data)
	}
	if f.Target == "" {
		return errors.NewValidationError("target", "is required", f.Target)
	}
	if f.Sampling != nil {
		frac, err := sampling.FractionFromValue(f.Sampling.Frac)
		if err != nil {
			return err
		}
		if !frac.IsAuto() {
			if _, err := frac.Resolve(0); err != nil {
				return err
			}
		}
	}
	return nil
}

// Resolve returns p relative to the directory of the file unless absolute.
func (f *File) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || f.dir == "" {
		return p
	}
	return filepath.Join(f.dir, p)
}

// DataPath is the resolved dataset path.
func (f *File) DataPath() string { return f.Resolve(f.Data) }

// LoadOptions returns the dataset options implied by the file.
func (f *File) LoadOptions() []dataset.Option {
	if f.Index == "" {
		return nil
	}
	return []dataset.Option{dataset.WithIndexColumn(f.Index)}
}

// Experiment converts the file into an orchestrator config. A predict_model
// data path is loaded here with the same index column as the dataset.
func (f *File) Experiment() (automl.ExperimentConfig, error) {
	var cfg automl.ExperimentConfig

	if s := f.Sampling; s != nil {
		frac, err := sampling.FractionFromValue(s.Frac)
		if err != nil {
			return cfg, err
		}
		cfg.Sampling = &sampling.Config{Frac: frac, RandomState: s.RandomState}
	}
	if s := f.Setup; s != nil {
		cfg.Setup = engine.SetupConfig{
			TrainSize:             s.TrainSize,
			SessionID:             s.SessionID,
			Folds:                 s.Fold,
			FoldStrategy:          s.FoldStrategy,
			FoldShuffle:           s.FoldShuffle,
			NumericFeatures:       s.NumericFeatures,
			CategoricalFeatures:   s.CategoricalFeatures,
			IgnoreFeatures:        s.IgnoreFeatures,
			NumericImputation:     s.NumericImputation,
			CategoricalImputation: s.CategoricalImputation,
			MaxEncodingOHE:        s.MaxEncodingOHE,
			Normalize:             s.Normalize,
			NormalizeMethod:       s.NormalizeMethod,
			NJobs:                 s.NJobs,
			Silent:                s.Silent,
		}
	}
	if c := f.Compare; c != nil {
		cfg.Compare = engine.CompareConfig{
			Include:         c.Include,
			Exclude:         c.Exclude,
			Sort:            c.Sort,
			NSelect:         c.NSelect,
			Folds:           c.Fold,
			CrossValidation: c.CrossValidation,
			Errors:          c.Errors,
			Round:           c.Round,
		}
	}
	if t := f.Tune; t != nil {
		cfg.Tune = &engine.TuneConfig{
			NIter:           t.NIter,
			Optimize:        t.Optimize,
			CustomGrid:      t.CustomGrid,
			SearchAlgorithm: t.SearchAlgorithm,
			ChooseBetter:    t.ChooseBetter,
			Folds:           t.Fold,
			Round:           t.Round,
		}
	}
	if f.Finalize != nil {
		cfg.Finalize = &engine.FinalizeConfig{}
	}
	if p := f.Predict; p != nil {
		cfg.Predict = &engine.PredictConfig{RawScore: p.RawScore, Round: p.Round}
		if p.Data != "" {
			data, err := dataset.Load(f.Resolve(p.Data), f.LoadOptions()...)
			if err != nil {
				return cfg, err
			}
			cfg.Predict.Data = data
		}
	}
	if p := f.Plot; p != nil {
		cfg.Plot = &engine.PlotConfig{Plot: p.Plot, Format: p.Format}
	}
	return cfg, nil
}
