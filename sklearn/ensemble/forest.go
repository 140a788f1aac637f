// Package ensemble provides bagged tree ensembles.
package ensemble

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/core/parallel"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/sklearn/tree"
)

// ForestParams はランダムフォレストのハイパーパラメータ
type ForestParams struct {
	tree.Params
	NEstimators int  // 木の本数
	Bootstrap   bool // ブートストラップ標本で各木を学習するか
	NJobs       int  // 並列数 (0 以下は CPU 数)
}

func defaultForestParams(criterion, maxFeatures string) ForestParams {
	p := ForestParams{
		Params: tree.Params{
			Criterion:       criterion,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			MaxFeatures:     maxFeatures,
			RandomState:     42,
		},
		NEstimators: 100,
		Bootstrap:   true,
	}
	return p
}

// Option configures a forest.
type Option func(*ForestParams)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option { return func(p *ForestParams) { p.NEstimators = n } }

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(b bool) Option { return func(p *ForestParams) { p.Bootstrap = b } }

// WithMaxDepth limits the depth of every tree.
func WithMaxDepth(d int) Option { return func(p *ForestParams) { p.MaxDepth = d } }

// WithMaxFeatures sets the features drawn per split.
func WithMaxFeatures(s string) Option { return func(p *ForestParams) { p.MaxFeatures = s } }

// WithMinSamplesLeaf sets the minimum leaf size.
func WithMinSamplesLeaf(n int) Option { return func(p *ForestParams) { p.MinSamplesLeaf = n } }

// WithRandomState seeds bootstrap and feature sampling.
func WithRandomState(seed int) Option { return func(p *ForestParams) { p.RandomState = seed } }

// WithNJobs sets the number of trees grown concurrently.
func WithNJobs(n int) Option { return func(p *ForestParams) { p.NJobs = n } }

func (p *ForestParams) validate(criteria ...string) error {
	if p.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", p.NEstimators)
	}
	return p.Params.Validate(criteria...)
}

// GetParams returns forest and tree hyperparameters.
func (p *ForestParams) GetParams() map[string]interface{} {
	out := p.Params.GetParams()
	out["n_estimators"] = p.NEstimators
	out["bootstrap"] = p.Bootstrap
	out["n_jobs"] = p.NJobs
	return out
}

func (p *ForestParams) set(name string, params map[string]interface{}) error {
	rest := make(map[string]interface{}, len(params))
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			p.NEstimators, err = model.ParamInt(k, v)
		case "bootstrap":
			p.Bootstrap, err = model.ParamBool(k, v)
		case "n_jobs":
			p.NJobs, err = model.ParamInt(k, v)
		default:
			rest[k] = v
		}
		if err != nil {
			return err
		}
	}
	return p.Params.Set(name, rest)
}

// grow fits NEstimators trees concurrently. Tree i uses seed RandomState+i
// for both its bootstrap sample and its feature draws, so the result does
// not depend on scheduling.
func (p *ForestParams) grow(rows int, fit func(tp tree.Params, sample []int) *tree.Tree) []*tree.Tree {
	trees := make([]*tree.Tree, p.NEstimators)
	_ = parallel.ForEach(p.NEstimators, p.NJobs, func(i int) error {
		tp := p.Params
		tp.RandomState = p.RandomState + i
		sample := make([]int, rows)
		if p.Bootstrap {
			seed := uint64(tp.RandomState)
			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
			for k := range sample {
				sample[k] = rng.IntN(rows)
			}
		} else {
			for k := range sample {
				sample[k] = k
			}
		}
		trees[i] = fit(tp, sample)
		return nil
	})
	return trees
}

func meanImportances(trees []*tree.Tree) []float64 {
	if len(trees) == 0 {
		return nil
	}
	out := make([]float64, len(trees[0].Importances))
	for _, t := range trees {
		for j, v := range t.NormalizedImportances() {
			out[j] += v
		}
	}
	var total float64
	for j := range out {
		out[j] /= float64(len(trees))
		total += out[j]
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// RandomForestClassifier averages the leaf class proportions of bagged CART trees.
type RandomForestClassifier struct {
	ForestParams
	State *model.StateManager

	Trees       []*tree.Tree
	ClassLabels []int
}

// NewRandomForestClassifier creates a forest of 100 gini trees with sqrt feature sampling.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		ForestParams: defaultForestParams("gini", "sqrt"),
		State:        model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&rf.ForestParams)
	}
	return rf
}

// Fit grows the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckFitInput("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rf.validate("gini", "entropy", "log_loss"); err != nil {
		return err
	}
	if rf.State == nil {
		rf.State = model.NewStateManager()
	}

	rf.ClassLabels = model.UniqueClasses(y)
	labels := model.ClassIndices(y, rf.ClassLabels)
	Xd := denseOf(X)
	rf.Trees = rf.grow(rows, func(tp tree.Params, sample []int) *tree.Tree {
		return tree.Build(tp, Xd, labels, len(rf.ClassLabels), sample)
	})

	rf.State.SetDimensions(cols, rows)
	rf.State.SetFitted()
	return nil
}

// PredictProba averages the class proportions over all trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.State.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := rf.State.CheckFeatures("RandomForestClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	k := len(rf.ClassLabels)
	out := mat.NewDense(rows, k, nil)
	parallel.ParallelizeWithThreshold(rows, 256, func(start, end int) {
		x := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			row := out.RawRowView(i)
			for _, t := range rf.Trees {
				for c, v := range t.Apply(x).Value {
					row[c] += v
				}
			}
			for c := range row {
				row[c] /= float64(len(rf.Trees))
			}
		}
	})
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, rf.ClassLabels), nil
}

// Classes returns the sorted class labels seen during fitting.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.ClassLabels...)
}

// Score returns the accuracy on (X, y).
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return score(metrics.Accuracy, y, pred)
}

// FeatureImportances returns the mean normalized importance over trees.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return meanImportances(rf.Trees)
}

// SetParams updates hyperparameters.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	return rf.set("RandomForestClassifier", params)
}

func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_features=%q, fitted=%v)",
		rf.NEstimators, rf.MaxFeatures, rf.State.IsFitted())
}

// RandomForestRegressor averages the leaf means of bagged CART trees.
type RandomForestRegressor struct {
	ForestParams
	State *model.StateManager

	Trees []*tree.Tree
}

// NewRandomForestRegressor creates a forest of 100 squared error trees using all features.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		ForestParams: defaultForestParams("squared_error", ""),
		State:        model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&rf.ForestParams)
	}
	return rf
}

// Fit grows the forest.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckFitInput("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rf.validate("squared_error", "absolute_error"); err != nil {
		return err
	}
	if rf.State == nil {
		rf.State = model.NewStateManager()
	}

	target := mat.Col(nil, 0, y)
	Xd := denseOf(X)
	rf.Trees = rf.grow(rows, func(tp tree.Params, sample []int) *tree.Tree {
		return tree.BuildRegression(tp, Xd, target, sample)
	})

	rf.State.SetDimensions(cols, rows)
	rf.State.SetFitted()
	return nil
}

// Predict averages the tree predictions.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.State.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := rf.State.CheckFeatures("RandomForestRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, 256, func(start, end int) {
		x := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			var sum float64
			for _, t := range rf.Trees {
				sum += t.Apply(x).Value[0]
			}
			out.Set(i, 0, sum/float64(len(rf.Trees)))
		}
	})
	return out, nil
}

// Score returns R² on (X, y).
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return score(metrics.R2Score, y, pred)
}

// FeatureImportances returns the mean normalized importance over trees.
func (rf *RandomForestRegressor) FeatureImportances() []float64 {
	return meanImportances(rf.Trees)
}

// SetParams updates hyperparameters.
func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	return rf.set("RandomForestRegressor", params)
}

func (rf *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_features=%q, fitted=%v)",
		rf.NEstimators, rf.MaxFeatures, rf.State.IsFitted())
}

func denseOf(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}

func score(fn func(yTrue, yPred *mat.VecDense) (float64, error), y, pred mat.Matrix) (float64, error) {
	yTrue, err := metrics.ColumnVec("Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVec("Score", pred)
	if err != nil {
		return 0, err
	}
	return fn(yTrue, yPred)
}

var (
	_ model.Classifier      = (*RandomForestClassifier)(nil)
	_ model.Regressor       = (*RandomForestRegressor)(nil)
	_ model.FeatureImporter = (*RandomForestClassifier)(nil)
	_ model.FeatureImporter = (*RandomForestRegressor)(nil)
)
