package linear_model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

func relabel(y *mat.Dense, labels map[float64]float64) *mat.Dense {
	n, _ := y.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, labels[y.At(i, 0)])
	}
	return out
}

func accuracy(t *testing.T, clf *LogisticRegression, X, y mat.Matrix) float64 {
	t.Helper()
	acc, err := clf.Score(X, y)
	require.NoError(t, err)
	return acc
}

func TestLogisticRegression_Binary(t *testing.T) {
	X, y := blobs([][2]float64{{-2, -2}, {2, 2}}, 50, 3)

	clf := NewLogisticRegression()
	require.NoError(t, clf.Fit(X, y))
	assert.True(t, clf.State.IsFitted())
	assert.Equal(t, []int{0, 1}, clf.Classes())
	assert.Len(t, clf.Coef, 1, "binary uses one sigmoid model")
	assert.GreaterOrEqual(t, accuracy(t, clf, X, y), 0.95)

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	r, c := proba.Dims()
	assert.Equal(t, 100, r)
	assert.Equal(t, 2, c)
	for i := 0; i < r; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-9)
	}
	// 中心付近の点は高い確率
	far := mat.NewDense(2, 2, []float64{-3, -3, 3, 3})
	p, err := clf.PredictProba(far)
	require.NoError(t, err)
	assert.Greater(t, p.At(0, 0), 0.9)
	assert.Greater(t, p.At(1, 1), 0.9)
}

func TestLogisticRegression_KeepsOriginalLabels(t *testing.T) {
	X, y := blobs([][2]float64{{-2, 0}, {2, 0}}, 30, 5)
	y = relabel(y, map[float64]float64{0: 3, 1: 7})

	clf := NewLogisticRegression()
	require.NoError(t, clf.Fit(X, y))
	assert.Equal(t, []int{3, 7}, clf.Classes())

	pred, err := clf.Predict(X)
	require.NoError(t, err)
	n, _ := pred.Dims()
	for i := 0; i < n; i++ {
		assert.Contains(t, []float64{3, 7}, pred.At(i, 0))
	}
	assert.GreaterOrEqual(t, accuracy(t, clf, X, y), 0.95)
}

func TestLogisticRegression_Multiclass(t *testing.T) {
	X, y := blobs([][2]float64{{0, 0}, {4, 0}, {0, 4}}, 40, 11)

	clf := NewLogisticRegression(WithLRMaxIter(500))
	require.NoError(t, clf.Fit(X, y))
	assert.Len(t, clf.Coef, 3)
	assert.Equal(t, []int{0, 1, 2}, clf.Classes())
	assert.GreaterOrEqual(t, accuracy(t, clf, X, y), 0.9)

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	row := make([]float64, 3)
	for i := 0; i < 120; i++ {
		mat.Row(row, i, proba)
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-9)
	}

	pred, err := clf.Predict(X)
	require.NoError(t, err)
	kappa, err := metrics.CohenKappa(mat.NewVecDense(120, mat.Col(nil, 0, y)), mat.NewVecDense(120, mat.Col(nil, 0, pred)))
	require.NoError(t, err)
	assert.Greater(t, kappa, 0.8)
}

func TestLogisticRegression_Regularization(t *testing.T) {
	X, y := blobs([][2]float64{{-1, -1}, {1, 1}}, 50, 7)

	weak := NewLogisticRegression(WithLRC(100), WithLRMaxIter(300))
	require.NoError(t, weak.Fit(X, y))
	strong := NewLogisticRegression(WithLRC(0.001), WithLRMaxIter(300))
	require.NoError(t, strong.Fit(X, y))
	none := NewLogisticRegression(WithLRPenalty("none"), WithLRMaxIter(300))
	require.NoError(t, none.Fit(X, y))

	norm := func(c []float64) float64 { return floats.Norm(c, 2) }
	assert.Less(t, norm(strong.Coef[0]), norm(weak.Coef[0]))
	assert.GreaterOrEqual(t, norm(none.Coef[0])+1e-9, norm(strong.Coef[0]))
}

func TestLogisticRegression_StrongPenaltySmallSample(t *testing.T) {
	// C が小さく行数も少ないと lambda が大きくなる (CV の fold で起きる)
	for _, n := range []int{20, 30} {
		X, y := blobs([][2]float64{{-1, -1}, {1, 1}}, n, 19)
		for _, c := range []float64{0.001, 0.01} {
			clf := NewLogisticRegression(WithLRC(c), WithLRMaxIter(300))
			require.NoError(t, clf.Fit(X, y))
			assert.Less(t, floats.Norm(clf.Coef[0], 2), 1.0, "n=%d C=%g", 2*n, c)
			assert.Less(t, math.Abs(clf.Intercepts[0]), 1.0)
		}
	}

	X, y := blobs([][2]float64{{0, 0}, {3, 0}, {0, 3}}, 10, 23)
	clf := NewLogisticRegression(WithLRC(0.001), WithLRMaxIter(300))
	require.NoError(t, clf.Fit(X, y))
	for _, coef := range clf.Coef {
		assert.Less(t, floats.Norm(coef, 2), 1.0)
	}
}

func TestLogisticRegression_BalancedClassWeight(t *testing.T) {
	// 90 対 10 の不均衡データ
	major, yMajor := blobs([][2]float64{{-1, 0}}, 90, 13)
	minor, _ := blobs([][2]float64{{1, 0}}, 10, 17)
	X := mat.NewDense(100, 2, nil)
	y := mat.NewDense(100, 1, nil)
	X.Slice(0, 90, 0, 2).(*mat.Dense).Copy(major)
	X.Slice(90, 100, 0, 2).(*mat.Dense).Copy(minor)
	y.Slice(0, 90, 0, 1).(*mat.Dense).Copy(yMajor)
	for i := 90; i < 100; i++ {
		y.Set(i, 0, 1)
	}

	plain := NewLogisticRegression()
	require.NoError(t, plain.Fit(X, y))
	balanced := NewLogisticRegression(WithLRClassWeight("balanced"))
	require.NoError(t, balanced.Fit(X, y))

	minority := mat.NewDense(1, 2, []float64{0.5, 0})
	pPlain, err := plain.PredictProba(minority)
	require.NoError(t, err)
	pBalanced, err := balanced.PredictProba(minority)
	require.NoError(t, err)
	assert.Greater(t, pBalanced.At(0, 1), pPlain.At(0, 1))

	w := sampleWeights([]int{0, 0, 0, 1}, 2, "balanced")
	assert.InDeltaSlice(t, []float64{4.0 / 6, 4.0 / 6, 4.0 / 6, 2}, w, 1e-12)
	assert.Equal(t, []float64{1, 1}, sampleWeights([]int{0, 1}, 2, "none"))
}

func TestLogisticRegression_Params(t *testing.T) {
	clf := NewLogisticRegression(WithLRC(0.5), WithLogisticFitIntercept(false), WithLRTol(1e-6), WithLRRandomState(9))
	params := clf.GetParams()
	assert.Equal(t, 0.5, params["C"])
	assert.Equal(t, false, params["fit_intercept"])
	assert.Equal(t, 1e-6, params["tol"])
	assert.Equal(t, 9, params["random_state"])

	// グリッドや設定ファイルから来る型の揺れを吸収する
	require.NoError(t, clf.SetParams(map[string]interface{}{
		"C":            2,
		"max_iter":     50.0,
		"penalty":      "none",
		"class_weight": "balanced",
	}))
	assert.Equal(t, 2.0, clf.C)
	assert.Equal(t, 50, clf.MaxIter)
	assert.Equal(t, "none", clf.Penalty)
	assert.Equal(t, "balanced", clf.ClassWeight)

	var valueErr *errors.ValueError
	assert.True(t, errors.As(clf.SetParams(map[string]interface{}{"max_iter": 2.5}), &valueErr))
	assert.Error(t, clf.SetParams(map[string]interface{}{"solver": "lbfgs"}))
}

func TestLogisticRegression_Errors(t *testing.T) {
	X, y := blobs([][2]float64{{-2, 0}, {2, 0}}, 10, 1)

	var notFitted *errors.NotFittedError
	_, err := NewLogisticRegression().Predict(X)
	assert.True(t, errors.As(err, &notFitted))
	_, err = NewLogisticRegression().PredictProba(X)
	assert.True(t, errors.As(err, &notFitted))

	var valErr *errors.ValidationError
	for name, clf := range map[string]*LogisticRegression{
		"C":            NewLogisticRegression(WithLRC(0)),
		"max_iter":     NewLogisticRegression(WithLRMaxIter(0)),
		"penalty":      NewLogisticRegression(WithLRPenalty("l1")),
		"class_weight": NewLogisticRegression(WithLRClassWeight("auto")),
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.As(clf.Fit(X, y), &valErr))
		})
	}

	var valueErr *errors.ValueError
	single := mat.NewDense(20, 1, nil)
	assert.True(t, errors.As(NewLogisticRegression().Fit(X, single), &valueErr))

	var dimErr *errors.DimensionError
	assert.True(t, errors.As(NewLogisticRegression().Fit(X, mat.NewDense(5, 1, nil)), &dimErr))

	clf := NewLogisticRegression()
	require.NoError(t, clf.Fit(X, y))
	_, err = clf.Predict(mat.NewDense(2, 3, nil))
	assert.True(t, errors.As(err, &dimErr))
	for _, c := range clf.Coef[0] {
		assert.False(t, math.IsNaN(c))
	}
}
