package linear

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// syntheticData returns X in [-1, 1) and y = 1 + sum_j 0.5*(j+1)*x_j plus
// noise of at most 0.05.
func syntheticData(rows, cols int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(42, 42))
	X := mat.NewDense(rows, cols, nil)
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		v := 1.0
		for j := 0; j < cols; j++ {
			x := rng.Float64()*2 - 1
			X.Set(i, j, x)
			v += x * 0.5 * float64(j+1)
		}
		y.Set(i, 0, v+(rng.Float64()-0.5)*0.1)
	}
	return X, y
}

func TestLinearRegression_RecoversWeights(t *testing.T) {
	X, y := syntheticData(200, 3)
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	w := lr.Weights()
	assert.InDelta(t, 0.5, w[0], 0.02)
	assert.InDelta(t, 1.0, w[1], 0.02)
	assert.InDelta(t, 1.5, w[2], 0.02)
	assert.InDelta(t, 1.0, lr.Intercept(), 0.02)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.99)
}

func TestLinearRegression_CollinearFallsBackToSVD(t *testing.T) {
	// 2列目と3列目はOne-Hotのように和が常に1
	X := mat.NewDense(6, 3, []float64{
		1, 1, 0,
		2, 0, 1,
		3, 1, 0,
		4, 0, 1,
		5, 1, 0,
		6, 0, 1,
	})
	y := mat.NewDense(6, 1, []float64{3, 4, 7, 8, 11, 12})
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-8)
	}
}

func TestLinearRegression_Errors(t *testing.T) {
	lr := NewLinearRegression()
	_, err := lr.Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	require.NoError(t, lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{2, 4, 6})))
	_, err = lr.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.As(err, &de))
}

func TestRidge_ShrinksTowardsZero(t *testing.T) {
	X, y := syntheticData(100, 2)
	ols := NewLinearRegression()
	require.NoError(t, ols.Fit(X, y))
	ridge := NewRidge(1000)
	require.NoError(t, ridge.Fit(X, y))

	for j := range ols.Coef {
		assert.Less(t, abs(ridge.Coef[j]), abs(ols.Coef[j]))
	}

	assert.Error(t, NewRidge(-1).Fit(X, y))
}

func TestParams(t *testing.T) {
	r := NewRidge(1)
	require.NoError(t, r.SetParams(map[string]interface{}{"alpha": "0.5", "fit_intercept": false}))
	assert.Equal(t, 0.5, r.Alpha)
	assert.False(t, r.FitIntercept)
	assert.Equal(t, 0.5, r.GetParams()["alpha"])

	err := r.SetParams(map[string]interface{}{"gamma": 1})
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	assert.Error(t, NewLinearRegression().SetParams(map[string]interface{}{"alpha": 1}))
}

func TestRidge_GobRoundTrip(t *testing.T) {
	X, y := syntheticData(50, 2)
	r := NewRidge(0.1)
	require.NoError(t, r.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(r, &buf))
	var loaded Ridge
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	a, err := r.Predict(X)
	require.NoError(t, err)
	b, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(a, b, 1e-12))
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
