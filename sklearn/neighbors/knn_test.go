package neighbors

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

func TestKNeighborsClassifier(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		5, 5,
		5, 6,
		6, 5,
	})
	y := mat.NewDense(6, 1, []float64{2, 2, 2, 7, 7, 7})

	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	require.NoError(t, knn.Fit(X, y))
	assert.Equal(t, []int{2, 7}, knn.Classes())

	pred, err := knn.Predict(mat.NewDense(2, 2, []float64{0.2, 0.2, 5.5, 5.5}))
	require.NoError(t, err)
	assert.Equal(t, 2.0, pred.At(0, 0))
	assert.Equal(t, 7.0, pred.At(1, 0))

	proba, err := knn.PredictProba(mat.NewDense(1, 2, []float64{0, 0}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, mat.Row(nil, 0, proba))

	acc, err := knn.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
}

func TestKNeighborsClassifier_VoteShares(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 10})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	knn := NewKNeighborsClassifier(WithNNeighbors(4))
	require.NoError(t, knn.Fit(X, y))

	proba, err := knn.PredictProba(mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, proba.At(0, 0), 1e-12)

	knn = NewKNeighborsClassifier(WithNNeighbors(4), WithWeights("distance"))
	require.NoError(t, knn.Fit(X, y))
	// 完全一致する点が全ての重みを持つ
	proba, err = knn.PredictProba(mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, proba.At(0, 0))
}

func TestKNeighborsRegressor(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{10, 20, 30, 40, 50})

	knn := NewKNeighborsRegressor(WithNNeighbors(2))
	require.NoError(t, knn.Fit(X, y))
	pred, err := knn.Predict(mat.NewDense(2, 1, []float64{1.4, 4.6}))
	require.NoError(t, err)
	assert.InDelta(t, 15.0, pred.At(0, 0), 1e-12)
	assert.InDelta(t, 45.0, pred.At(1, 0), 1e-12)

	knn = NewKNeighborsRegressor(WithNNeighbors(2), WithWeights("distance"), WithMetric("manhattan"))
	require.NoError(t, knn.Fit(X, y))
	pred, err = knn.Predict(mat.NewDense(1, 1, []float64{1.25}))
	require.NoError(t, err)
	// 重み 1/0.25 と 1/0.75
	assert.InDelta(t, (10*4+20*(4.0/3))/(4+4.0/3), pred.At(0, 0), 1e-9)
}

func TestKNeighbors_MoreNeighborsThanRows(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{4, 6})
	knn := NewKNeighborsRegressor()
	require.NoError(t, knn.Fit(X, y))
	pred, err := knn.Predict(mat.NewDense(1, 1, []float64{100}))
	require.NoError(t, err)
	assert.Equal(t, 5.0, pred.At(0, 0))
}

func TestKNeighbors_ParamsAndErrors(t *testing.T) {
	knn := NewKNeighborsClassifier()
	assert.Equal(t, 5, knn.GetParams()["n_neighbors"])
	require.NoError(t, knn.SetParams(map[string]interface{}{"n_neighbors": 7.0, "weights": "distance"}))
	assert.Equal(t, 7, knn.NNeighbors)
	assert.Error(t, knn.SetParams(map[string]interface{}{"leaf_size": 30}))

	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})
	var ve *errors.ValidationError
	err := NewKNeighborsClassifier(WithNNeighbors(0)).Fit(X, y)
	assert.True(t, errors.As(err, &ve))
	err = NewKNeighborsRegressor(WithMetric("cosine")).Fit(X, y)
	assert.True(t, errors.As(err, &ve))

	_, err = NewKNeighborsRegressor().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestKNeighborsRegressor_GobRoundTrip(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 1, 1, 2, 2, 3, 3})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	knn := NewKNeighborsRegressor(WithNNeighbors(2))
	require.NoError(t, knn.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(knn, &buf))
	var loaded KNeighborsRegressor
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	want, err := knn.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
