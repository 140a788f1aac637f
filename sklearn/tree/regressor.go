package tree

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/metrics"
)

// DecisionTreeRegressor は CART 回帰木
type DecisionTreeRegressor struct {
	Params
	State *model.StateManager

	Tree *Tree
}

// NewDecisionTreeRegressor creates a regressor with squared error and no depth limit.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		Params: defaultParams("squared_error"),
		State:  model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&dt.Params)
	}
	return dt
}

// Fit grows the tree on X and continuous targets y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckFitInput("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := dt.Validate("squared_error", "absolute_error"); err != nil {
		return err
	}
	if dt.State == nil {
		dt.State = model.NewStateManager()
	}

	dt.Tree = BuildRegression(dt.Params, denseOf(X), mat.Col(nil, 0, y), allRows(rows))

	dt.State.SetDimensions(cols, rows)
	dt.State.SetFitted()
	return nil
}

// Predict returns the leaf value reached by each row.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := dt.State.CheckFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		out.Set(i, 0, dt.Tree.Apply(x).Value[0])
	}
	return out, nil
}

// Score returns R² on (X, y).
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return score(metrics.R2Score, y, pred)
}

// FeatureImportances returns the normalized variance reduction per feature.
func (dt *DecisionTreeRegressor) FeatureImportances() []float64 {
	if dt.Tree == nil {
		return nil
	}
	return dt.Tree.NormalizedImportances()
}

// Depth returns the depth of the fitted tree (root = 0).
func (dt *DecisionTreeRegressor) Depth() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.Depth
}

// SetParams updates hyperparameters.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return dt.Set("DecisionTreeRegressor", params)
}

func (dt *DecisionTreeRegressor) String() string {
	if !dt.State.IsFitted() {
		return fmt.Sprintf("DecisionTreeRegressor(criterion=%s, max_depth=%d)", dt.Criterion, dt.MaxDepth)
	}
	return fmt.Sprintf("DecisionTreeRegressor(criterion=%s, depth=%d, leaves=%d)",
		dt.Criterion, dt.Tree.Depth, dt.Tree.NLeaves())
}

var (
	_ model.Regressor       = (*DecisionTreeRegressor)(nil)
	_ model.FeatureImporter = (*DecisionTreeRegressor)(nil)
)
