package dummy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

func TestDummyRegressor(t *testing.T) {
	X := mat.NewDense(4, 1, nil)
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 10})

	tests := []struct {
		strategy string
		quantile float64
		constant float64
		want     float64
	}{
		{"mean", 0, 0, 4},
		{"median", 0, 0, 2.5},
		{"quantile", 0, 0, 1},
		{"quantile", 1, 0, 10},
		{"constant", 0, 7, 7},
	}
	for _, tt := range tests {
		d := NewDummyRegressor()
		require.NoError(t, d.SetParams(map[string]interface{}{
			"strategy": tt.strategy, "quantile": tt.quantile, "constant": tt.constant,
		}))
		require.NoError(t, d.Fit(X, y), tt.strategy)
		pred, err := d.Predict(mat.NewDense(2, 1, nil))
		require.NoError(t, err)
		assert.InDelta(t, tt.want, pred.At(1, 0), 1e-12, tt.strategy)
	}

	d := NewDummyRegressor()
	require.NoError(t, d.Fit(X, y))
	r2, err := d.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, r2, 1e-12)

	d.Strategy = "mode"
	var ve *errors.ValidationError
	assert.True(t, errors.As(d.Fit(X, y), &ve))
}

func TestDummyClassifier(t *testing.T) {
	X := mat.NewDense(4, 2, nil)
	y := mat.NewDense(4, 1, []float64{1, 1, 1, 3})

	d := NewDummyClassifier()
	require.NoError(t, d.Fit(X, y))
	assert.Equal(t, []int{1, 3}, d.Classes())
	proba, err := d.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.75, 0.25}, mat.Row(nil, 0, proba))
	acc, err := d.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 0.75, acc)

	d = NewDummyClassifier()
	require.NoError(t, d.SetParams(map[string]interface{}{"strategy": "constant", "constant": 3}))
	require.NoError(t, d.Fit(X, y))
	pred, err := d.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 3.0, pred.At(0, 0))

	d.Constant = 9
	var ve *errors.ValueError
	assert.True(t, errors.As(d.Fit(X, y), &ve))
}

func TestDummyClassifier_RandomStrategiesAreSeeded(t *testing.T) {
	X := mat.NewDense(50, 1, nil)
	y := mat.NewDense(50, 1, nil)
	for i := 0; i < 50; i++ {
		y.Set(i, 0, float64(i%3))
	}
	for _, s := range []string{"stratified", "uniform"} {
		a, b := NewDummyClassifier(), NewDummyClassifier()
		a.Strategy, b.Strategy = s, s
		require.NoError(t, a.Fit(X, y))
		require.NoError(t, b.Fit(X, y))
		pa, err := a.Predict(X)
		require.NoError(t, err)
		pb, err := b.Predict(X)
		require.NoError(t, err)
		assert.True(t, mat.Equal(pa, pb), s)
	}
}
