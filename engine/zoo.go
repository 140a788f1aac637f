package engine

import (
	"encoding/gob"
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/linear"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/sklearn/dummy"
	"github.com/YuminosukeSato/tabautoml/sklearn/ensemble"
	"github.com/YuminosukeSato/tabautoml/sklearn/linear_model"
	"github.com/YuminosukeSato/tabautoml/sklearn/naive_bayes"
	"github.com/YuminosukeSato/tabautoml/sklearn/neighbors"
	"github.com/YuminosukeSato/tabautoml/sklearn/tree"
	"github.com/YuminosukeSato/tabautoml/task"
)

// Entry is one model of a task's zoo.
type Entry struct {
	ID   string
	Name string
	// New builds an unfitted estimator seeded with the session id.
	New func(seed int) model.Estimator
	// Grid is the default TuneModel search space.
	Grid map[string][]interface{}
}

// taskProfile holds everything that differs between tasks.
type taskProfile struct {
	metrics     func() []metrics.Metric
	defaultSort string
	defaultPlot string
	stratify    bool
	zoo         []Entry
}

var profiles = map[task.Task]taskProfile{
	task.Regression: {
		metrics:     metrics.RegressionMetrics,
		defaultSort: "R2",
		defaultPlot: "residuals",
		zoo:         regressionZoo,
	},
	task.Classification: {
		metrics:     metrics.ClassificationMetrics,
		defaultSort: "Accuracy",
		defaultPlot: "auc",
		stratify:    true,
		zoo:         classificationZoo,
	},
}

var (
	depthGrid = []interface{}{2, 4, 6, 8, 10, 0}
	leafGrid  = []interface{}{1, 2, 4, 8}
	knnGrid   = map[string][]interface{}{
		"n_neighbors": {3, 5, 7, 9, 11, 15},
		"weights":     {"uniform", "distance"},
		"metric":      {"euclidean", "manhattan"},
	}
)

var regressionZoo = []Entry{
	{
		ID: "lr", Name: "Linear Regression",
		New:  func(int) model.Estimator { return linear.NewLinearRegression() },
		Grid: map[string][]interface{}{"fit_intercept": {true, false}},
	},
	{
		ID: "ridge", Name: "Ridge Regression",
		New: func(int) model.Estimator { return linear.NewRidge(1.0) },
		Grid: map[string][]interface{}{
			"alpha":         {0.001, 0.01, 0.1, 1.0, 10.0, 100.0},
			"fit_intercept": {true, false},
		},
	},
	{
		ID: "dt", Name: "Decision Tree Regressor",
		New: func(seed int) model.Estimator {
			return tree.NewDecisionTreeRegressor(tree.WithRandomState(seed))
		},
		Grid: map[string][]interface{}{
			"max_depth":        depthGrid,
			"min_samples_leaf": leafGrid,
			"criterion":        {"squared_error", "absolute_error"},
		},
	},
	{
		ID: "rf", Name: "Random Forest Regressor",
		New: func(seed int) model.Estimator {
			return ensemble.NewRandomForestRegressor(ensemble.WithRandomState(seed))
		},
		Grid: map[string][]interface{}{
			"n_estimators":     {50, 100, 200},
			"max_depth":        depthGrid,
			"min_samples_leaf": leafGrid,
			"max_features":     {"", "sqrt", "log2"},
		},
	},
	{
		ID: "knn", Name: "K Neighbors Regressor",
		New:  func(int) model.Estimator { return neighbors.NewKNeighborsRegressor() },
		Grid: knnGrid,
	},
	{
		ID: "par", Name: "Passive Aggressive Regressor",
		New: func(seed int) model.Estimator {
			return linear_model.NewPassiveAggressiveRegressor(linear_model.WithPARandomState(seed))
		},
		Grid: map[string][]interface{}{
			"C":       {0.01, 0.1, 1.0, 10.0},
			"loss":    {"epsilon_insensitive", "squared_epsilon_insensitive"},
			"average": {true, false},
		},
	},
	{
		ID: "dummy", Name: "Dummy Regressor",
		New:  func(int) model.Estimator { return dummy.NewDummyRegressor() },
		Grid: map[string][]interface{}{"strategy": {"mean", "median"}},
	},
}

var classificationZoo = []Entry{
	{
		ID: "lr", Name: "Logistic Regression",
		New: func(seed int) model.Estimator {
			return linear_model.NewLogisticRegression(linear_model.WithLRRandomState(seed))
		},
		Grid: map[string][]interface{}{
			"C":            {0.01, 0.1, 1.0, 10.0, 100.0},
			"class_weight": {"none", "balanced"},
		},
	},
	{
		ID: "dt", Name: "Decision Tree Classifier",
		New: func(seed int) model.Estimator {
			return tree.NewDecisionTreeClassifier(tree.WithRandomState(seed))
		},
		Grid: map[string][]interface{}{
			"max_depth":        depthGrid,
			"min_samples_leaf": leafGrid,
			"criterion":        {"gini", "entropy"},
		},
	},
	{
		ID: "rf", Name: "Random Forest Classifier",
		New: func(seed int) model.Estimator {
			return ensemble.NewRandomForestClassifier(ensemble.WithRandomState(seed))
		},
		Grid: map[string][]interface{}{
			"n_estimators":     {50, 100, 200},
			"max_depth":        depthGrid,
			"min_samples_leaf": leafGrid,
			"criterion":        {"gini", "entropy"},
		},
	},
	{
		ID: "knn", Name: "K Neighbors Classifier",
		New:  func(int) model.Estimator { return neighbors.NewKNeighborsClassifier() },
		Grid: knnGrid,
	},
	{
		ID: "nb", Name: "Naive Bayes",
		New: func(int) model.Estimator { return naive_bayes.NewGaussianNB() },
		Grid: map[string][]interface{}{
			"var_smoothing": {1e-9, 1e-8, 1e-7, 1e-6, 1e-5, 1e-3},
		},
	},
	{
		ID: "pa", Name: "Passive Aggressive Classifier",
		New: func(seed int) model.Estimator {
			return linear_model.NewPassiveAggressiveClassifier(linear_model.WithPARandomState(seed))
		},
		Grid: map[string][]interface{}{
			"C":       {0.01, 0.1, 1.0, 10.0},
			"loss":    {"hinge", "squared_hinge"},
			"average": {true, false},
		},
	},
	{
		ID: "dummy", Name: "Dummy Classifier",
		New:  func(int) model.Estimator { return dummy.NewDummyClassifier() },
		Grid: map[string][]interface{}{"strategy": {"prior", "most_frequent", "stratified", "uniform"}},
	},
}

// gobで保存するモデルハンドルのEstimatorに入る具象型
func init() {
	gob.Register(&linear.LinearRegression{})
	gob.Register(&linear.Ridge{})
	gob.Register(&linear_model.LogisticRegression{})
	gob.Register(&linear_model.PassiveAggressiveRegressor{})
	gob.Register(&linear_model.PassiveAggressiveClassifier{})
	gob.Register(&tree.DecisionTreeClassifier{})
	gob.Register(&tree.DecisionTreeRegressor{})
	gob.Register(&ensemble.RandomForestClassifier{})
	gob.Register(&ensemble.RandomForestRegressor{})
	gob.Register(&neighbors.KNeighborsClassifier{})
	gob.Register(&neighbors.KNeighborsRegressor{})
	gob.Register(&naive_bayes.GaussianNB{})
	gob.Register(&dummy.DummyRegressor{})
	gob.Register(&dummy.DummyClassifier{})
}

// Models lists the zoo of t in leaderboard order.
func Models(t task.Task) ([]Entry, error) {
	p, ok := profiles[t]
	if !ok {
		return nil, errors.NewUnsupportedTaskTypeError(t.String(), task.Labels())
	}
	return append([]Entry(nil), p.zoo...), nil
}

func (p taskProfile) entry(id string) (Entry, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	for _, e := range p.zoo {
		if e.ID == key {
			return e, nil
		}
	}
	return Entry{}, errors.NewValidationError("estimator",
		fmt.Sprintf("unknown model id (available: %s)", strings.Join(p.ids(), ", ")), id)
}

func (p taskProfile) ids() []string {
	out := make([]string, len(p.zoo))
	for i, e := range p.zoo {
		out[i] = e.ID
	}
	return out
}

// candidates applies include and exclude to the zoo, keeping zoo order.
func (p taskProfile) candidates(include, exclude []string) ([]Entry, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		e, err := p.entry(id)
		if err != nil {
			return nil, err
		}
		excluded[e.ID] = true
	}

	var out []Entry
	if len(include) == 0 {
		for _, e := range p.zoo {
			if !excluded[e.ID] {
				out = append(out, e)
			}
		}
	} else {
		seen := make(map[string]bool, len(include))
		for _, id := range include {
			e, err := p.entry(id)
			if err != nil {
				return nil, err
			}
			if excluded[e.ID] || seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
		order := make(map[string]int, len(p.zoo))
		for i, e := range p.zoo {
			order[e.ID] = i
		}
		sort.SliceStable(out, func(a, b int) bool { return order[out[a].ID] < order[out[b].ID] })
	}
	if len(out) == 0 {
		return nil, errors.NewValidationError("include", "no model left after include/exclude", include)
	}
	return out, nil
}
