package tree

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// Option configures a decision tree.
type Option func(*Params)

// WithCriterion sets the split criterion.
func WithCriterion(c string) Option { return func(p *Params) { p.Criterion = c } }

// WithMaxDepth limits the depth of the tree (0 = unlimited).
func WithMaxDepth(d int) Option { return func(p *Params) { p.MaxDepth = d } }

// WithMinSamplesSplit sets the minimum node size for a split.
func WithMinSamplesSplit(n int) Option { return func(p *Params) { p.MinSamplesSplit = n } }

// WithMinSamplesLeaf sets the minimum leaf size.
func WithMinSamplesLeaf(n int) Option { return func(p *Params) { p.MinSamplesLeaf = n } }

// WithMaxFeatures sets the number of features drawn per split.
func WithMaxFeatures(s string) Option { return func(p *Params) { p.MaxFeatures = s } }

// WithMinImpurityDecrease sets the minimum impurity decrease for a split.
func WithMinImpurityDecrease(v float64) Option {
	return func(p *Params) { p.MinImpurityDecrease = v }
}

// WithRandomState seeds feature sampling.
func WithRandomState(seed int) Option { return func(p *Params) { p.RandomState = seed } }

// DecisionTreeClassifier は CART 分類木
type DecisionTreeClassifier struct {
	Params
	State *model.StateManager

	Tree        *Tree
	ClassLabels []int
}

// NewDecisionTreeClassifier creates a classifier with gini impurity and no depth limit.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		Params: defaultParams("gini"),
		State:  model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&dt.Params)
	}
	return dt
}

// Fit grows the tree on X and integer labels y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckFitInput("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := dt.Validate("gini", "entropy", "log_loss"); err != nil {
		return err
	}
	if dt.State == nil {
		dt.State = model.NewStateManager()
	}

	dt.ClassLabels = model.UniqueClasses(y)
	labels := model.ClassIndices(y, dt.ClassLabels)
	dt.Tree = Build(dt.Params, denseOf(X), labels, len(dt.ClassLabels), allRows(rows))

	dt.State.SetDimensions(cols, rows)
	dt.State.SetFitted()
	return nil
}

// PredictProba returns the class proportions of the leaf reached by each row.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.State.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := dt.State.CheckFeatures("DecisionTreeClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, len(dt.ClassLabels), nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		out.SetRow(i, dt.Tree.Apply(x).Value)
	}
	return out, nil
}

// Predict returns the majority class of the leaf reached by each row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, dt.ClassLabels), nil
}

// Classes returns the sorted class labels seen during fitting.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.ClassLabels...)
}

// Score returns the accuracy on (X, y).
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return score(metrics.Accuracy, y, pred)
}

// FeatureImportances returns the normalized impurity decrease per feature.
func (dt *DecisionTreeClassifier) FeatureImportances() []float64 {
	if dt.Tree == nil {
		return nil
	}
	return dt.Tree.NormalizedImportances()
}

// Depth returns the depth of the fitted tree (root = 0).
func (dt *DecisionTreeClassifier) Depth() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.Depth
}

// NLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) NLeaves() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.NLeaves()
}

// SetParams updates hyperparameters.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return dt.Set("DecisionTreeClassifier", params)
}

func (dt *DecisionTreeClassifier) String() string {
	if !dt.State.IsFitted() {
		return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d)", dt.Criterion, dt.MaxDepth)
	}
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, depth=%d, leaves=%d, classes=%d)",
		dt.Criterion, dt.Tree.Depth, dt.Tree.NLeaves(), len(dt.ClassLabels))
}

// score applies a metric to column matrices.
func score(fn func(yTrue, yPred *mat.VecDense) (float64, error), y, pred mat.Matrix) (float64, error) {
	yTrue, err := metrics.ColumnVec("Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVec("Score", pred)
	if err != nil {
		return 0, err
	}
	if yTrue.Len() != yPred.Len() {
		return 0, errors.NewDimensionError("Score", yTrue.Len(), yPred.Len(), 0)
	}
	return fn(yTrue, yPred)
}

var (
	_ model.Classifier      = (*DecisionTreeClassifier)(nil)
	_ model.FeatureImporter = (*DecisionTreeClassifier)(nil)
)
