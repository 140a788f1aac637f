// Package engine is the backing module of the orchestrator: a small
// PyCaret-style experiment API (setup, compare, create, tune, finalize,
// predict, plot, interpret, save, load, pull) on top of the gonum
// estimators of this repository.
//
// A Module holds one experiment. Setup must run before the stages that
// train or evaluate; calling them earlier fails with errors.StageError.
//
//	m := engine.NewClassification()
//	if _, err := m.Setup(engine.SetupConfig{Data: frame, Target: "Survived"}); err != nil {
//	    return err
//	}
//	best, err := m.CompareModels(engine.CompareConfig{})
package engine

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/modelselection"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
	"github.com/YuminosukeSato/tabautoml/task"
)

// Module is the stage contract the orchestrator forwards to.
type Module interface {
	Task() task.Task
	Setup(cfg SetupConfig) (*SetupInfo, error)
	CompareModels(cfg CompareConfig) ([]*Model, error)
	CreateModel(cfg CreateConfig) (*Model, error)
	TuneModel(m *Model, cfg TuneConfig) (*Model, error)
	FinalizeModel(m *Model, cfg FinalizeConfig) (*Model, error)
	PredictModel(m *Model, cfg PredictConfig) (*dataset.Frame, error)
	PlotModel(m *Model, cfg PlotConfig) (string, error)
	InterpretModel(m *Model, cfg InterpretConfig) ([]FeatureImportance, error)
	SaveModel(m *Model, path string) error
	LoadModel(path string) (*Model, error)
	// Pull returns the table produced by the last stage.
	Pull() (*dataset.Frame, error)
}

// Stage names used in logs and StageError.
const (
	StageSetup     = "setup"
	StageCompare   = "compare_models"
	StageCreate    = "create_model"
	StageTune      = "tune_model"
	StageFinalize  = "finalize_model"
	StagePredict   = "predict_model"
	StagePlot      = "plot_model"
	StageInterpret = "interpret_model"
	StageSave      = "save_model"
	StageLoad      = "load_model"
	StagePull      = "pull"
)

// Option configures a Gonum module.
type Option func(*Gonum)

// WithLogger sets the logger. The default is the "engine" logger of pkg/log.
func WithLogger(l log.Logger) Option {
	return func(g *Gonum) { g.logger = l }
}

// Gonum implements Module with the estimators of this repository.
type Gonum struct {
	task    task.Task
	profile taskProfile
	logger  log.Logger

	exp  *experiment
	last *dataset.Frame
}

// experiment is the state created by Setup.
type experiment struct {
	cfg      SetupConfig
	info     *SetupInfo
	metrics  []metrics.Metric
	pipeline *Pipeline

	// features は目的変数を除いた全行（インデックス付き）、y はその目的変数
	features *dataset.Frame
	y        *mat.VecDense

	// holdout keeps the raw test rows, target included.
	holdout *dataset.Frame

	XTrain, XTest *mat.Dense
	yTrain, yTest *mat.VecDense
}

// New returns the module for t.
func New(t task.Task, opts ...Option) (*Gonum, error) {
	p, ok := profiles[t]
	if !ok {
		return nil, errors.NewUnsupportedTaskTypeError(t.String(), task.Labels())
	}
	g := &Gonum{task: t, profile: p}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.GetLoggerWithName("engine")
	}
	g.logger = g.logger.With(log.TaskKey, t.String())
	return g, nil
}

// NewRegression returns the regression module.
func NewRegression(opts ...Option) Module {
	g, _ := New(task.Regression, opts...)
	return g
}

// NewClassification returns the classification module.
func NewClassification(opts ...Option) Module {
	g, _ := New(task.Classification, opts...)
	return g
}

// Task returns the task of the module.
func (g *Gonum) Task() task.Task { return g.task }

// Pull returns a copy of the last table produced by a stage.
func (g *Gonum) Pull() (*dataset.Frame, error) {
	if g.last == nil {
		return nil, errors.NewStageError(StagePull, StageSetup)
	}
	return g.last.Clone(), nil
}

func (g *Gonum) requireSetup(stage string) (*experiment, error) {
	if g.exp == nil {
		return nil, errors.NewStageError(stage, StageSetup)
	}
	return g.exp, nil
}

func (g *Gonum) stageLogger(stage string) (log.Logger, func(fields ...any)) {
	logger := g.logger.With(log.StageKey, stage)
	start := time.Now()
	logger.Debug("stage started")
	return logger, func(fields ...any) {
		fields = append(fields, log.DurationMsKey, time.Since(start).Milliseconds())
		logger.Info("stage finished", fields...)
	}
}

func (exp *experiment) splitter(folds int) modelselection.Splitter {
	if exp.cfg.FoldStrategy == FoldStratifiedKFold {
		return modelselection.NewStratifiedKFold(folds, exp.cfg.FoldShuffle, exp.cfg.seed())
	}
	return modelselection.NewKFold(folds, exp.cfg.FoldShuffle, exp.cfg.seed())
}

func (exp *experiment) nClasses() int {
	if exp.pipeline.Labels == nil {
		return 0
	}
	return len(exp.pipeline.Labels.Classes)
}

func (g *Gonum) factory(exp *experiment, e Entry, params map[string]interface{}) modelselection.Factory {
	return func() (model.Estimator, error) {
		est := e.New(exp.cfg.seed())
		if len(params) > 0 {
			if err := est.SetParams(params); err != nil {
				return nil, err
			}
		}
		return est, nil
	}
}

// evaluate cross validates e on the train split. Without cross validation
// the model is fitted once on the train split and scored on the holdout.
func (g *Gonum) evaluate(exp *experiment, e Entry, params map[string]interface{}, folds int, cv bool) (*modelselection.CVResult, error) {
	build := g.factory(exp, e, params)
	if cv {
		return modelselection.CrossValidate(build, exp.XTrain, exp.yTrain, exp.splitter(folds), exp.metrics, exp.cfg.NJobs)
	}

	var res *modelselection.CVResult
	err := errors.SafeExecute(e.ID+".holdout", func() error {
		est, err := build()
		if err != nil {
			return err
		}
		start := time.Now()
		if err := est.Fit(exp.XTrain, exp.yTrain); err != nil {
			return err
		}
		elapsed := time.Since(start)
		pred, proba, err := modelselection.PredictWithProba(est, exp.XTest, exp.nClasses())
		if err != nil {
			return err
		}
		scores := metrics.Evaluate(exp.metrics, exp.yTest, pred, proba)
		res = &modelselection.CVResult{Scores: make(map[string][]float64, len(scores)), FitTimes: []time.Duration{elapsed}, NFolds: 1}
		for k, v := range scores {
			res.Scores[k] = []float64{v}
		}
		return nil
	})
	return res, err
}

// fit trains a fresh estimator of e with params on X, y and wraps it in a
// model handle using pipeline.
func (g *Gonum) fit(exp *experiment, e Entry, params map[string]interface{}, X *mat.Dense, y *mat.VecDense, pipeline *Pipeline) (*Model, error) {
	est, err := g.factory(exp, e, params)()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	err = errors.SafeExecute(e.ID+".fit", func() error { return est.Fit(X, y) })
	if err != nil {
		return nil, errors.NewModelError(e.ID, "training failed", err)
	}
	return &Model{
		ID:        e.ID,
		Name:      e.Name,
		Task:      g.task,
		Estimator: est,
		Params:    cloneParams(params),
		FitTime:   time.Since(start),
		Pipeline:  pipeline,
	}, nil
}

func cloneParams(p map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func meanScores(res *modelselection.CVResult) map[string]float64 {
	out := make(map[string]float64, len(res.Scores))
	for k := range res.Scores {
		out[k] = res.Mean(k)
	}
	return out
}

// score evaluates one metric of est on X, y.
func score(metric metrics.Metric, est model.Estimator, X mat.Matrix, y *mat.VecDense, nClasses int) (float64, error) {
	pred, proba, err := modelselection.PredictWithProba(est, X, nClasses)
	if err != nil {
		return math.NaN(), err
	}
	if metric.NeedsProba && proba == nil {
		return math.NaN(), errors.NewValueError(metric.Name, "model does not provide probabilities")
	}
	return metric.Fn(y, pred, proba)
}
