package engine

import (
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/modelselection"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
	"github.com/YuminosukeSato/tabautoml/task"
	"github.com/YuminosukeSato/tabautoml/viz"
)

// plotTasks lists the tasks each plot applies to.
var plotTasks = map[string][]task.Task{
	"residuals":        {task.Regression},
	"error":            {task.Regression},
	"feature":          {task.Regression, task.Classification},
	"confusion_matrix": {task.Classification},
	"auc":              {task.Classification},
}

// featurePlotTop はfeature図に描く特徴量の上限
const featurePlotTop = 20

// PlotModel renders a diagnostic of m on the holdout rows into
// OutputDir/<plot>.<format> and returns that path.
func (g *Gonum) PlotModel(m *Model, cfg PlotConfig) (string, error) {
	exp, err := g.requireSetup(StagePlot)
	if err != nil {
		return "", err
	}
	if err := m.check(StagePlot); err != nil {
		return "", err
	}
	_, done := g.stageLogger(StagePlot)

	kind := strings.ToLower(cfg.Plot)
	if kind == "" {
		kind = g.profile.defaultPlot
	}
	tasks, ok := plotTasks[kind]
	if !ok || !slices.Contains(tasks, g.task) {
		return "", errors.NewValidationError("plot", "not available for "+g.task.String()+" (available: "+strings.Join(g.plots(), ", ")+")", cfg.Plot)
	}
	format := strings.TrimPrefix(strings.ToLower(cfg.Format), ".")
	if format == "" {
		format = DefaultPlotFormat
	}
	if err := viz.CheckFormat(format); err != nil {
		return "", err
	}
	dir := cfg.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create plot directory %s", dir)
	}
	path := filepath.Join(dir, kind+"."+format)

	X, y, err := g.holdoutMatrix(exp, m)
	if err != nil {
		return "", err
	}
	title := viz.WithTitle(m.Name)

	switch kind {
	case "feature":
		names, values, err := g.importances(exp, m, X, y)
		if err != nil {
			return "", err
		}
		err = viz.FeatureImportance(path, names, values, featurePlotTop, viz.WithTitle(m.Name+" Feature Importance"))
		if err != nil {
			return "", err
		}
	case "residuals", "error":
		pred, _, err := modelselection.PredictWithProba(m.Estimator, X, 0)
		if err != nil {
			return "", err
		}
		yTrue, yPred := mat.Col(nil, 0, y), mat.Col(nil, 0, pred)
		if kind == "residuals" {
			err = viz.Residuals(path, yTrue, yPred, title)
		} else {
			err = viz.PredictionError(path, yTrue, yPred, title)
		}
		if err != nil {
			return "", err
		}
	case "confusion_matrix":
		pred, _, err := modelselection.PredictWithProba(m.Estimator, X, 0)
		if err != nil {
			return "", err
		}
		cm, codes, err := metrics.ConfusionMatrix(y, pred)
		if err != nil {
			return "", err
		}
		classes := m.Pipeline.Classes()
		labels := make([]string, len(codes))
		for i, c := range codes {
			labels[i] = classes[c]
		}
		if err := viz.ConfusionMatrix(path, cm, labels, title); err != nil {
			return "", err
		}
	case "auc":
		curves, err := g.rocCurves(m, X, y)
		if err != nil {
			return "", err
		}
		if err := viz.ROC(path, curves, title); err != nil {
			return "", err
		}
	}

	done(log.ModelIDKey, m.ID, log.PathKey, path, "plot", kind)
	return path, nil
}

func (g *Gonum) plots() []string {
	var out []string
	for _, k := range viz.Kinds {
		if slices.Contains(plotTasks[k], g.task) {
			out = append(out, k)
		}
	}
	return out
}

// importances returns the model's own importances when it has them, the
// absolute weights of a linear model, and permutation importance otherwise.
func (g *Gonum) importances(exp *experiment, m *Model, X *mat.Dense, y *mat.VecDense) ([]string, []float64, error) {
	names := m.Pipeline.FeatureNames()
	switch est := m.Estimator.(type) {
	case model.FeatureImporter:
		return names, est.FeatureImportances(), nil
	case model.LinearModel:
		w := est.Weights()
		abs := make([]float64, len(w))
		for i, v := range w {
			abs[i] = math.Abs(v)
		}
		return names, abs, nil
	}
	cfg := InterpretConfig{}.resolved(g.profile.defaultSort, exp.cfg.seed())
	metric, err := metrics.Lookup(exp.metrics, cfg.Metric)
	if err != nil {
		return nil, nil, err
	}
	imp, err := permutationImportance(m, X, y, metric, cfg, exp.cfg.NJobs)
	if err != nil {
		return nil, nil, err
	}
	values := make([]float64, len(imp))
	order := make([]string, len(imp))
	for i, fi := range imp {
		order[i], values[i] = fi.Feature, fi.Mean
	}
	return order, values, nil
}

// rocCurves returns the curve of class 1 for binary targets and one curve
// per class otherwise. Classes absent from y are skipped.
func (g *Gonum) rocCurves(m *Model, X *mat.Dense, y *mat.VecDense) ([]viz.Curve, error) {
	classes := m.Pipeline.Classes()
	_, proba, err := modelselection.PredictWithProba(m.Estimator, X, len(classes))
	if err != nil {
		return nil, err
	}
	if proba == nil {
		return nil, errors.NewValueError("PlotModel", m.Name+" does not provide probabilities")
	}
	targets := make([]int, 0, len(classes))
	if len(classes) == 2 {
		targets = append(targets, 1)
	} else {
		for c := range classes {
			targets = append(targets, c)
		}
	}

	n := y.Len()
	var curves []viz.Curve
	for _, c := range targets {
		yBin := mat.NewVecDense(n, nil)
		score := mat.NewVecDense(n, nil)
		positives := 0
		for i := 0; i < n; i++ {
			if int(y.AtVec(i)) == c {
				yBin.SetVec(i, 1)
				positives++
			}
			score.SetVec(i, proba.At(i, c))
		}
		if positives == 0 || positives == n {
			continue
		}
		fpr, tpr, err := metrics.ROCCurve(yBin, score)
		if err != nil {
			continue
		}
		auc, err := metrics.AUC(yBin, score)
		if err != nil {
			auc = math.NaN()
		}
		curves = append(curves, viz.Curve{Label: classes[c], FPR: fpr, TPR: tpr, AUC: auc})
	}
	if len(curves) == 0 {
		return nil, errors.NewValueError("PlotModel", "holdout has no class with both positive and negative rows")
	}
	return curves, nil
}
