// Package automl is the experiment orchestrator. It holds the working table
// and its target, resolves the task type to a backing module and forwards
// each experiment stage to that module.
//
//	frame, _ := dataset.Load("titanic.csv", dataset.WithIndexColumn("PassengerId"))
//	a, err := automl.New(frame, "Survived", "classification")
//	if err != nil {
//	    return err
//	}
//	best, err := a.GetBestModel(automl.ExperimentConfig{})
//
// The orchestrator never trains or inspects a model itself. Stage calls are
// synchronous and their errors are returned as the module reported them.
package automl

import (
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
	"github.com/YuminosukeSato/tabautoml/sampling"
	"github.com/YuminosukeSato/tabautoml/task"
)

// Stage names of the orchestrator itself. The forwarded stages use the
// engine names.
const (
	StageSample    = "sample"
	StageBestModel = "get_best_model"
	StageRun       = "run"
)

// Option configures a TabularAutoML.
type Option func(*TabularAutoML)

// WithLogger sets the logger. The default is the "automl" logger of pkg/log.
func WithLogger(l log.Logger) Option {
	return func(a *TabularAutoML) { a.logger = l }
}

// WithModuleFactory replaces the backing module chosen for the task.
func WithModuleFactory(f ModuleFactory) Option {
	return func(a *TabularAutoML) { a.factory = f }
}

// WithRunID sets the run id attached to every log record. A random UUID is
// used by default.
func WithRunID(id string) Option {
	return func(a *TabularAutoML) { a.runID = id }
}

// TabularAutoML runs an AutoML experiment on one table.
type TabularAutoML struct {
	data   *dataset.Frame
	target string
	task   task.Task
	runID  string

	factory ModuleFactory
	module  engine.Module
	logger  log.Logger
}

// New validates the experiment inputs and binds the backing module of
// taskType. The task type is resolved first; then target must be a column
// of data.
func New(data *dataset.Frame, target, taskType string, opts ...Option) (*TabularAutoML, error) {
	t, factory, err := resolveModule(taskType)
	if err != nil {
		return nil, err
	}
	if data == nil || data.NumRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "automl")
	}
	if !data.HasColumn(target) {
		return nil, errors.NewColumnNotFoundError(target, "target")
	}

	a := &TabularAutoML{data: data, target: target, task: t, factory: factory}
	for _, opt := range opts {
		opt(a)
	}
	if a.runID == "" {
		a.runID = uuid.NewString()
	}
	if a.logger == nil {
		a.logger = log.GetLoggerWithName("automl")
	}
	a.logger = a.logger.With(log.ExperimentIDKey, a.runID, log.TaskKey, t.String())
	a.module = a.factory(engine.WithLogger(a.logger.With(log.ComponentKey, "engine")))
	return a, nil
}

// FromFile loads path (with indexCol as the row index when set) and calls
// New. The task type is checked before the file is read.
func FromFile(path, indexCol, target, taskType string, opts ...Option) (*TabularAutoML, error) {
	if _, _, err := resolveModule(taskType); err != nil {
		return nil, err
	}
	var loadOpts []dataset.Option
	if indexCol != "" {
		loadOpts = append(loadOpts, dataset.WithIndexColumn(indexCol))
	}
	data, err := dataset.Load(path, loadOpts...)
	if err != nil {
		return nil, err
	}
	return New(data, target, taskType, opts...)
}

// Data returns the working table.
func (a *TabularAutoML) Data() *dataset.Frame { return a.data }

// Target returns the target column.
func (a *TabularAutoML) Target() string { return a.target }

// Task returns the resolved task.
func (a *TabularAutoML) Task() task.Task { return a.task }

// RunID returns the id attached to the logs of this experiment.
func (a *TabularAutoML) RunID() string { return a.runID }

// Module returns the backing module.
func (a *TabularAutoML) Module() engine.Module { return a.module }

// track logs the start of stage and returns the function logging its end.
func (a *TabularAutoML) track(stage string) func(err error) {
	logger := a.logger.With(log.StageKey, stage)
	start := time.Now()
	logger.Debug("stage started")
	return func(err error) {
		elapsed := time.Since(start).Milliseconds()
		if err != nil {
			logger.Error("stage failed", err, log.DurationMsKey, elapsed)
			return
		}
		logger.Info("stage finished", log.DurationMsKey, elapsed)
	}
}

// GetSample draws a deterministic sample of the working table and returns it
// with the fraction used.
func (a *TabularAutoML) GetSample(cfg sampling.Config) (sample *dataset.Frame, frac float64, err error) {
	done := a.track(StageSample)
	defer func() { done(err) }()

	sample, frac, err = sampling.Sample(a.data, cfg)
	if err != nil {
		return nil, 0, err
	}
	a.logger.Info("sample drawn",
		log.SampleFracKey, frac,
		log.SamplesKey, sample.NumRows(),
		log.RandomSeedKey, cfg.Seed(),
	)
	return sample, frac, nil
}

// Setup runs the setup stage. Data and Target default to the working table
// and the stored target when unset.
func (a *TabularAutoML) Setup(cfg engine.SetupConfig) (info *engine.SetupInfo, err error) {
	done := a.track(engine.StageSetup)
	defer func() { done(err) }()

	if cfg.Data == nil {
		cfg.Data = a.data
	}
	if cfg.Target == "" {
		cfg.Target = a.target
	}
	return a.module.Setup(cfg)
}

// CompareModels runs the comparison stage and returns the best models, best
// first.
func (a *TabularAutoML) CompareModels(cfg engine.CompareConfig) (best []*engine.Model, err error) {
	done := a.track(engine.StageCompare)
	defer func() { done(err) }()
	return a.module.CompareModels(cfg)
}

// CreateModel trains one model of the zoo.
func (a *TabularAutoML) CreateModel(cfg engine.CreateConfig) (m *engine.Model, err error) {
	done := a.track(engine.StageCreate)
	defer func() { done(err) }()
	return a.module.CreateModel(cfg)
}

// TuneModel searches the hyperparameters of m.
func (a *TabularAutoML) TuneModel(m *engine.Model, cfg engine.TuneConfig) (tuned *engine.Model, err error) {
	done := a.track(engine.StageTune)
	defer func() { done(err) }()
	return a.module.TuneModel(m, cfg)
}

// FinalizeModel refits m on every row of the experiment.
func (a *TabularAutoML) FinalizeModel(m *engine.Model, cfg engine.FinalizeConfig) (final *engine.Model, err error) {
	done := a.track(engine.StageFinalize)
	defer func() { done(err) }()
	return a.module.FinalizeModel(m, cfg)
}

// PredictModel returns cfg.Data (or the holdout rows) with prediction
// columns.
func (a *TabularAutoML) PredictModel(m *engine.Model, cfg engine.PredictConfig) (out *dataset.Frame, err error) {
	done := a.track(engine.StagePredict)
	defer func() { done(err) }()
	return a.module.PredictModel(m, cfg)
}

// PlotModel renders a diagnostic plot of m and returns its path.
func (a *TabularAutoML) PlotModel(m *engine.Model, cfg engine.PlotConfig) (path string, err error) {
	done := a.track(engine.StagePlot)
	defer func() { done(err) }()
	return a.module.PlotModel(m, cfg)
}

// InterpretModel returns the feature importance of m.
func (a *TabularAutoML) InterpretModel(m *engine.Model, cfg engine.InterpretConfig) (imp []engine.FeatureImportance, err error) {
	done := a.track(engine.StageInterpret)
	defer func() { done(err) }()
	return a.module.InterpretModel(m, cfg)
}

// SaveModel writes m to path.
func (a *TabularAutoML) SaveModel(m *engine.Model, path string) (err error) {
	done := a.track(engine.StageSave)
	defer func() { done(err) }()
	return a.module.SaveModel(m, path)
}

// LoadModel reads a model written by SaveModel.
func (a *TabularAutoML) LoadModel(path string) (m *engine.Model, err error) {
	done := a.track(engine.StageLoad)
	defer func() { done(err) }()
	return a.module.LoadModel(path)
}

// Pull returns the table of the last stage.
func (a *TabularAutoML) Pull() (*dataset.Frame, error) {
	return a.module.Pull()
}
