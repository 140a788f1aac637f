package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// blobs は左下がクラス0、右上がクラス1の分離可能なデータ
func blobs() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_Separable(t *testing.T) {
	for _, criterion := range []string{"gini", "entropy", "log_loss"} {
		t.Run(criterion, func(t *testing.T) {
			X, y := blobs()
			dt := NewDecisionTreeClassifier(WithCriterion(criterion))
			require.NoError(t, dt.Fit(X, y))

			acc, err := dt.Score(X, y)
			require.NoError(t, err)
			assert.Equal(t, 1.0, acc)
			assert.Equal(t, []int{0, 1}, dt.Classes())
			assert.Equal(t, 1, dt.Depth())
			assert.Equal(t, 2, dt.NLeaves())

			proba, err := dt.PredictProba(mat.NewDense(2, 2, []float64{0.5, 0.5, 3.5, 3.5}))
			require.NoError(t, err)
			assert.Equal(t, []float64{1, 0}, mat.Row(nil, 0, proba))
			assert.Equal(t, []float64{0, 1}, mat.Row(nil, 1, proba))
		})
	}
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 1, []float64{1, 2, 3, 11, 12, 13, 21, 22, 23})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(mat.NewDense(3, 1, []float64{0, 15, 30}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, mat.Col(nil, 0, pred))

	imp := dt.FeatureImportances()
	require.Len(t, imp, 1)
	assert.InDelta(t, 1.0, imp[0], 1e-12)
}

func TestDecisionTreeClassifier_MaxDepthAndMinSamples(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	y := mat.NewDense(8, 1, []float64{0, 1, 0, 1, 0, 1, 0, 1})

	shallow := NewDecisionTreeClassifier(WithMaxDepth(1))
	require.NoError(t, shallow.Fit(X, y))
	assert.LessOrEqual(t, shallow.Depth(), 1)

	leafy := NewDecisionTreeClassifier(WithMinSamplesLeaf(4))
	require.NoError(t, leafy.Fit(X, y))
	assert.LessOrEqual(t, leafy.NLeaves(), 2)
}

func TestDecisionTreeClassifier_Params(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.SetParams(map[string]interface{}{
		"max_depth":    3.0,
		"criterion":    "entropy",
		"max_features": "sqrt",
	}))
	p := dt.GetParams()
	assert.Equal(t, 3, p["max_depth"])
	assert.Equal(t, "entropy", p["criterion"])
	assert.Equal(t, "sqrt", p["max_features"])

	require.NoError(t, dt.SetParams(map[string]interface{}{"max_depth": nil}))
	assert.Equal(t, 0, dt.MaxDepth)

	assert.Error(t, dt.SetParams(map[string]interface{}{"n_estimators": 10}))

	X, y := blobs()
	var valErr *errors.ValidationError
	bad := NewDecisionTreeClassifier(WithCriterion("squared_error"))
	assert.True(t, errors.As(bad.Fit(X, y), &valErr))
	bad = NewDecisionTreeClassifier(WithMinSamplesSplit(1))
	assert.True(t, errors.As(bad.Fit(X, y), &valErr))
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	var notFitted *errors.NotFittedError
	_, err := dt.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.As(err, &notFitted))
	assert.Contains(t, dt.String(), "criterion=gini")

	X, y := blobs()
	require.NoError(t, dt.Fit(X, y))
	var dimErr *errors.DimensionError
	_, err = dt.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.As(err, &dimErr))
}
