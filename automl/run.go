package automl

import (
	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
	"github.com/YuminosukeSato/tabautoml/sampling"
	"github.com/YuminosukeSato/tabautoml/task"
)

// ExperimentConfig is the configuration of a whole experiment. Nil optional
// stages are skipped by Run.
type ExperimentConfig struct {
	// Sampling forces sampling when set. Tables above
	// sampling.LargeDatasetRows rows are sampled with the default config
	// either way.
	Sampling *sampling.Config

	Setup   engine.SetupConfig
	Compare engine.CompareConfig

	Tune     *engine.TuneConfig
	Finalize *engine.FinalizeConfig
	Predict  *engine.PredictConfig
	Plot     *engine.PlotConfig
}

// Result is the outcome of Run.
type Result struct {
	RunID string
	Task  task.Task

	// Sampled tells whether the experiment ran on a sample of SampleFrac.
	Sampled    bool
	SampleFrac float64
	Rows       int

	Setup       *engine.SetupInfo
	Leaderboard *dataset.Frame
	// Model は最後に実行した段階のモデル
	Model       *engine.Model
	Predictions *dataset.Frame
	// Scores is the Pull table of PredictModel on the holdout, when run.
	Scores   *dataset.Frame
	PlotPath string
}

// GetBestModel samples the table when needed, runs setup and returns the
// best model of the comparison.
func (a *TabularAutoML) GetBestModel(cfg ExperimentConfig) (best *engine.Model, err error) {
	done := a.track(StageBestModel)
	defer func() { done(err) }()

	res, err := a.bestModel(cfg)
	if err != nil {
		return nil, err
	}
	return res.Model, nil
}

// Run executes GetBestModel followed by the optional tune, finalize, predict
// and plot stages. The first failing stage aborts the run.
func (a *TabularAutoML) Run(cfg ExperimentConfig) (res *Result, err error) {
	done := a.track(StageRun)
	defer func() { done(err) }()

	res, err = a.bestModel(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Tune != nil {
		if res.Model, err = a.TuneModel(res.Model, *cfg.Tune); err != nil {
			return nil, err
		}
	}
	if cfg.Finalize != nil {
		if res.Model, err = a.FinalizeModel(res.Model, *cfg.Finalize); err != nil {
			return nil, err
		}
	}
	if cfg.Predict != nil {
		if res.Predictions, err = a.PredictModel(res.Model, *cfg.Predict); err != nil {
			return nil, err
		}
		if cfg.Predict.Data == nil {
			if res.Scores, err = a.Pull(); err != nil {
				return nil, err
			}
		}
	}
	if cfg.Plot != nil {
		if res.PlotPath, err = a.PlotModel(res.Model, *cfg.Plot); err != nil {
			return nil, err
		}
	}
	a.logger.Info("experiment finished",
		log.ModelIDKey, res.Model.ID,
		log.ModelNameKey, res.Model.Name,
		"finalized", res.Model.Finalized,
	)
	return res, nil
}

func (a *TabularAutoML) bestModel(cfg ExperimentConfig) (*Result, error) {
	res := &Result{RunID: a.runID, Task: a.task, Rows: a.data.NumRows()}

	data := a.data
	if sampling.ShouldSample(a.data.NumRows(), cfg.Sampling != nil) {
		sc := sampling.DefaultConfig()
		if cfg.Sampling != nil {
			sc = *cfg.Sampling
		}
		sample, frac, err := a.GetSample(sc)
		if err != nil {
			return nil, err
		}
		data, res.Sampled, res.SampleFrac = sample, true, frac
	}

	setup := cfg.Setup
	if setup.Data == nil {
		setup.Data = data
	}
	info, err := a.Setup(setup)
	if err != nil {
		return nil, err
	}
	res.Setup = info

	best, err := a.CompareModels(cfg.Compare)
	if err != nil {
		return nil, err
	}
	if len(best) == 0 {
		return nil, errors.NewModelError(engine.StageCompare, "no model returned", nil)
	}
	if res.Leaderboard, err = a.Pull(); err != nil {
		return nil, err
	}
	res.Model = best[0]
	return res, nil
}
