package engine

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/modelselection"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
)

// Prediction columns added by PredictModel.
const (
	LabelColumn = "prediction_label"
	ScoreColumn = "prediction_score"
)

// PredictModel appends prediction_label (and prediction_score when the model
// gives probabilities) to cfg.Data. Without Data the holdout rows are used and
// their scores become the Pull table. When Data carries a valid target column
// it is scored the same way.
func (g *Gonum) PredictModel(m *Model, cfg PredictConfig) (*dataset.Frame, error) {
	if err := m.check(StagePredict); err != nil {
		return nil, err
	}
	if m.Task != g.task {
		return nil, errors.NewValueError("PredictModel", "model task "+m.Task.String()+" does not match module task "+g.task.String())
	}
	logger, done := g.stageLogger(StagePredict)
	if cfg.Round == 0 {
		cfg.Round = DefaultRound
	}
	if cfg.Round < 0 {
		return nil, errors.NewValidationError("round", "must be >= 0", cfg.Round)
	}

	var (
		data *dataset.Frame
		X    *mat.Dense
		y    *mat.VecDense
		err  error
	)
	if cfg.Data == nil {
		exp, err := g.requireSetup(StagePredict)
		if err != nil {
			return nil, err
		}
		data = exp.holdout
		if X, y, err = g.holdoutMatrix(exp, m); err != nil {
			return nil, err
		}
	} else {
		data = cfg.Data
		if data.NumRows() == 0 {
			return nil, errors.Wrap(errors.ErrEmptyData, "predict_model")
		}
		if X, err = m.Pipeline.Transform(data); err != nil {
			return nil, err
		}
		if data.HasColumn(m.Pipeline.Target) {
			// 目的変数が欠損・未知ラベルを含むなら採点しない
			if y, err = m.Pipeline.EncodeTarget(data); err != nil {
				logger.Debug("target column not scored", err)
				y = nil
			}
		}
	}

	classes := m.Pipeline.Classes()
	pred, proba, err := modelselection.PredictWithProba(m.Estimator, X, len(classes))
	if err != nil {
		return nil, errors.NewModelError(m.ID, "prediction failed", err)
	}

	out, err := g.predictionFrame(data, m, pred, proba, cfg)
	if err != nil {
		return nil, err
	}

	if y != nil {
		set := g.profile.metrics()
		scores := metrics.Evaluate(set, y, pred, proba)
		g.last = scoreFrame(m.Name, scores, set, cfg.Round)
		sortBy, _ := metrics.Lookup(set, g.profile.defaultSort)
		logger.Info("holdout scored", log.ModelIDKey, m.ID, log.MetricKey, sortBy.Name, log.ScoreKey, scores[sortBy.Name])
	}
	done(log.ModelIDKey, m.ID, log.SamplesKey, data.NumRows())
	return out, nil
}

func (g *Gonum) predictionFrame(data *dataset.Frame, m *Model, pred *mat.VecDense, proba mat.Matrix, cfg PredictConfig) (*dataset.Frame, error) {
	n := pred.Len()
	var (
		labels []string
		err    error
	)
	if m.Pipeline.Labels != nil {
		if labels, err = m.Pipeline.Labels.InverseTransform(pred); err != nil {
			return nil, err
		}
	} else {
		labels = make([]string, n)
		for i := range labels {
			labels[i] = formatFloat(pred.AtVec(i), cfg.Round)
		}
	}
	out, err := data.WithColumn(LabelColumn, labels)
	if err != nil {
		return nil, err
	}
	if proba == nil {
		return out, nil
	}

	_, k := proba.Dims()
	best := make([]string, n)
	for i := 0; i < n; i++ {
		c := int(pred.AtVec(i))
		v := 0.0
		if c >= 0 && c < k {
			v = proba.At(i, c)
		}
		best[i] = formatFloat(v, cfg.Round)
	}
	if out, err = out.WithColumn(ScoreColumn, best); err != nil {
		return nil, err
	}
	if !cfg.RawScore {
		return out, nil
	}
	for j, class := range m.Pipeline.Classes() {
		col := make([]string, n)
		for i := 0; i < n; i++ {
			col[i] = formatFloat(proba.At(i, j), cfg.Round)
		}
		if out, err = out.WithColumn(ScoreColumn+"_"+class, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}
