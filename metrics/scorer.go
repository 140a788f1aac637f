package metrics

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// Metric is a named score used to rank models on a leaderboard.
type Metric struct {
	Name            string
	GreaterIsBetter bool
	NeedsProba      bool
	Fn              func(yTrue, yPred *mat.VecDense, proba mat.Matrix) (float64, error)
}

// Better reports whether score a beats score b. NaN never wins.
func (m Metric) Better(a, b float64) bool {
	switch {
	case math.IsNaN(a):
		return false
	case math.IsNaN(b):
		return true
	case m.GreaterIsBetter:
		return a > b
	default:
		return a < b
	}
}

// Worst returns the value that loses to every finite score.
func (m Metric) Worst() float64 {
	if m.GreaterIsBetter {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

func labelMetric(name string, fn func(yTrue, yPred *mat.VecDense) (float64, error), greater bool) Metric {
	return Metric{
		Name:            name,
		GreaterIsBetter: greater,
		Fn: func(yTrue, yPred *mat.VecDense, _ mat.Matrix) (float64, error) {
			return fn(yTrue, yPred)
		},
	}
}

// RegressionMetrics returns the leaderboard columns for regression.
func RegressionMetrics() []Metric {
	return []Metric{
		labelMetric("MAE", MAE, false),
		labelMetric("MSE", MSE, false),
		labelMetric("RMSE", RMSE, false),
		labelMetric("R2", R2Score, true),
		labelMetric("RMSLE", RMSLE, false),
		labelMetric("MAPE", MAPE, false),
	}
}

// ClassificationMetrics returns the leaderboard columns for classification.
func ClassificationMetrics() []Metric {
	return []Metric{
		labelMetric("Accuracy", Accuracy, true),
		{
			Name:            "AUC",
			GreaterIsBetter: true,
			NeedsProba:      true,
			Fn: func(yTrue, _ *mat.VecDense, proba mat.Matrix) (float64, error) {
				return AUCScore(yTrue, proba)
			},
		},
		labelMetric("Recall", Recall, true),
		labelMetric("Precision", Precision, true),
		labelMetric("F1", F1, true),
		labelMetric("Kappa", CohenKappa, true),
		labelMetric("MCC", MCC, true),
	}
}

var metricAliases = map[string]string{
	"prec.":    "precision",
	"r2_score": "r2",
	"acc":      "accuracy",
	"roc_auc":  "auc",
	"f1_score": "f1",
}

// Lookup finds a metric by name, ignoring case.
func Lookup(set []Metric, name string) (Metric, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := metricAliases[key]; ok {
		key = alias
	}
	names := make([]string, 0, len(set))
	for _, m := range set {
		if strings.ToLower(m.Name) == key {
			return m, nil
		}
		names = append(names, m.Name)
	}
	return Metric{}, errors.NewValueError("metrics.Lookup",
		fmt.Sprintf("unknown metric %q (available: %s)", name, strings.Join(names, ", ")))
}

// Evaluate computes every metric of set. A metric that cannot be computed on
// this data (for example R2 on a constant target) is NaN.
func Evaluate(set []Metric, yTrue, yPred *mat.VecDense, proba mat.Matrix) map[string]float64 {
	out := make(map[string]float64, len(set))
	for _, m := range set {
		if m.NeedsProba && proba == nil {
			out[m.Name] = math.NaN()
			continue
		}
		v, err := m.Fn(yTrue, yPred, proba)
		if err != nil {
			v = math.NaN()
		}
		out[m.Name] = v
	}
	return out
}
