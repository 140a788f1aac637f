package engine

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/modelselection"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
	"github.com/YuminosukeSato/tabautoml/preprocessing"
)

// CompareModels cross validates every candidate of the zoo, ranks them by
// cfg.Sort and returns the best NSelect models refitted on the train split.
// The leaderboard is available from Pull.
func (g *Gonum) CompareModels(cfg CompareConfig) ([]*Model, error) {
	exp, err := g.requireSetup(StageCompare)
	if err != nil {
		return nil, err
	}
	logger, done := g.stageLogger(StageCompare)
	cfg = cfg.resolved(g.profile.defaultSort, exp.cfg.Folds)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	sortBy, err := metrics.Lookup(exp.metrics, cfg.Sort)
	if err != nil {
		return nil, err
	}
	entries, err := g.profile.candidates(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	cv := boolOr(cfg.CrossValidation, true)

	var (
		board   []leaderboardRow
		lastErr error
	)
	for _, e := range entries {
		res, err := g.evaluate(exp, e, nil, cfg.Folds, cv)
		if err != nil {
			if cfg.Errors == ErrorsRaise {
				return nil, errors.NewModelError(e.ID, "evaluation failed", err)
			}
			logger.Warn("model skipped", err, log.ModelIDKey, e.ID, log.ModelNameKey, e.Name)
			lastErr = err
			continue
		}
		scores := meanScores(res)
		logger.Debug("model evaluated",
			log.ModelIDKey, e.ID,
			log.MetricKey, sortBy.Name,
			log.ScoreKey, scores[sortBy.Name],
		)
		board = append(board, leaderboardRow{entry: e, result: res, scores: scores})
	}
	if len(board) == 0 {
		return nil, errors.NewModelError("CompareModels", "no model could be evaluated", lastErr)
	}

	sort.SliceStable(board, func(a, b int) bool {
		return sortBy.Better(board[a].scores[sortBy.Name], board[b].scores[sortBy.Name])
	})
	g.last = leaderboardFrame(board, exp.metrics, cfg.Round)

	n := min(cfg.NSelect, len(board))
	best := make([]*Model, 0, n)
	for _, row := range board[:n] {
		m, err := g.fit(exp, row.entry, nil, exp.XTrain, exp.yTrain, exp.pipeline)
		if err != nil {
			return nil, err
		}
		m.Scores = row.scores
		best = append(best, m)
	}
	done(
		log.ModelIDKey, best[0].ID,
		log.MetricKey, sortBy.Name,
		log.ScoreKey, best[0].Score(sortBy.Name),
		"candidates", len(board),
	)
	return best, nil
}

// CreateModel cross validates one model of the zoo with cfg.Params and
// returns it refitted on the train split. The fold scores are available
// from Pull.
func (g *Gonum) CreateModel(cfg CreateConfig) (*Model, error) {
	exp, err := g.requireSetup(StageCreate)
	if err != nil {
		return nil, err
	}
	_, done := g.stageLogger(StageCreate)
	cfg = cfg.resolved(exp.cfg.Folds)
	if err := validateCommon(cfg.Folds, cfg.Round); err != nil {
		return nil, err
	}
	if cfg.Estimator == "" {
		return nil, errors.NewValidationError("estimator", "is required", cfg.Estimator)
	}
	e, err := g.profile.entry(cfg.Estimator)
	if err != nil {
		return nil, err
	}

	res, err := g.evaluate(exp, e, cfg.Params, cfg.Folds, boolOr(cfg.CrossValidation, true))
	if err != nil {
		return nil, err
	}
	m, err := g.fit(exp, e, cfg.Params, exp.XTrain, exp.yTrain, exp.pipeline)
	if err != nil {
		return nil, err
	}
	m.Scores = meanScores(res)
	g.last = foldFrame(res, exp.metrics, cfg.Round)
	done(log.ModelIDKey, m.ID, log.ModelNameKey, m.Name)
	return m, nil
}

// TuneModel searches the grid of m (or cfg.CustomGrid) and returns the
// model refitted with the best candidate. With ChooseBetter the input model
// is returned when no candidate beats it under the same folds.
func (g *Gonum) TuneModel(m *Model, cfg TuneConfig) (*Model, error) {
	exp, err := g.requireSetup(StageTune)
	if err != nil {
		return nil, err
	}
	if err := m.check(StageTune); err != nil {
		return nil, err
	}
	logger, done := g.stageLogger(StageTune)
	cfg = cfg.resolved(g.profile.defaultSort, exp.cfg.Folds)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	optimize, err := metrics.Lookup(exp.metrics, cfg.Optimize)
	if err != nil {
		return nil, err
	}
	e, err := g.profile.entry(m.ID)
	if err != nil {
		return nil, err
	}

	grid := e.Grid
	if cfg.CustomGrid != nil {
		grid = cfg.CustomGrid
	}
	var candidates []map[string]interface{}
	if cfg.SearchAlgorithm == SearchGrid {
		candidates = modelselection.ParameterGrid(grid)
	} else {
		candidates, err = modelselection.ParameterSampler(grid, cfg.NIter, exp.cfg.seed())
		if err != nil {
			return nil, err
		}
	}
	if len(candidates) == 0 {
		return nil, errors.NewValidationError("custom_grid", "search space is empty", grid)
	}

	var (
		bestParams map[string]interface{}
		bestRes    *modelselection.CVResult
		bestScore  = optimize.Worst()
		lastErr    error
	)
	for i, c := range candidates {
		params := cloneParams(m.Params)
		for k, v := range c {
			params[k] = v
		}
		res, err := g.evaluate(exp, e, params, cfg.Folds, true)
		if err != nil {
			logger.Warn("candidate skipped", err, log.IterationKey, i, log.ModelIDKey, e.ID)
			lastErr = err
			continue
		}
		s := res.Mean(optimize.Name)
		logger.Debug("candidate evaluated", log.IterationKey, i, log.ScoreKey, s)
		if bestRes == nil || optimize.Better(s, bestScore) {
			bestParams, bestRes, bestScore = params, res, s
		}
	}
	if bestRes == nil {
		return nil, errors.NewModelError("TuneModel", "no candidate could be evaluated", lastErr)
	}

	if boolOr(cfg.ChooseBetter, true) {
		base, err := g.evaluate(exp, e, m.Params, cfg.Folds, true)
		if err == nil && !optimize.Better(bestScore, base.Mean(optimize.Name)) {
			logger.Info("tuned model is not better, keeping the original",
				log.ModelIDKey, m.ID,
				log.MetricKey, optimize.Name,
				log.ScoreKey, base.Mean(optimize.Name),
			)
			g.last = foldFrame(base, exp.metrics, cfg.Round)
			kept := *m
			kept.Scores = meanScores(base)
			done(log.ModelIDKey, m.ID, "improved", false)
			return &kept, nil
		}
	}

	tuned, err := g.fit(exp, e, bestParams, exp.XTrain, exp.yTrain, exp.pipeline)
	if err != nil {
		return nil, err
	}
	tuned.Scores = meanScores(bestRes)
	g.last = foldFrame(bestRes, exp.metrics, cfg.Round)
	done(
		log.ModelIDKey, tuned.ID,
		log.MetricKey, optimize.Name,
		log.ScoreKey, bestScore,
		"candidates", len(candidates),
		"improved", true,
	)
	return tuned, nil
}

// FinalizeModel refits the preprocessing and the model on train and holdout
// rows together. The returned handle is marked finalized; m is unchanged.
func (g *Gonum) FinalizeModel(m *Model, _ FinalizeConfig) (*Model, error) {
	exp, err := g.requireSetup(StageFinalize)
	if err != nil {
		return nil, err
	}
	if err := m.check(StageFinalize); err != nil {
		return nil, err
	}
	_, done := g.stageLogger(StageFinalize)
	e, err := g.profile.entry(m.ID)
	if err != nil {
		return nil, err
	}

	transformer := preprocessing.NewColumnTransformer(exp.cfg.transformerConfig())
	X, err := transformer.FitTransform(exp.features)
	if err != nil {
		return nil, err
	}
	pipeline := &Pipeline{
		Target:      exp.pipeline.Target,
		Features:    append([]string(nil), transformer.Order...),
		Transformer: transformer,
		Labels:      exp.pipeline.Labels,
	}
	final, err := g.fit(exp, e, m.Params, X, exp.y, pipeline)
	if err != nil {
		return nil, err
	}
	final.Scores = m.Scores
	final.Finalized = true
	done(log.ModelIDKey, final.ID, log.SamplesKey, exp.features.NumRows())
	return final, nil
}

// holdoutMatrix encodes the holdout rows with the pipeline of m, which for a
// finalized model differs from the experiment pipeline.
func (g *Gonum) holdoutMatrix(exp *experiment, m *Model) (*mat.Dense, *mat.VecDense, error) {
	if m.Pipeline == exp.pipeline {
		return exp.XTest, exp.yTest, nil
	}
	X, err := m.Pipeline.Transform(exp.holdout)
	if err != nil {
		return nil, nil, err
	}
	return X, exp.yTest, nil
}
