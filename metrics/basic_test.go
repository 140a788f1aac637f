package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

func TestRegressionMetrics(t *testing.T) {
	yTrue := vec(3, -0.5, 2, 7)
	yPred := vec(2.5, 0, 2, 8)

	tests := []struct {
		name string
		fn   func(a, b *mat.VecDense) (float64, error)
		want float64
	}{
		{"MSE", MSE, 0.375},
		{"RMSE", RMSE, math.Sqrt(0.375)},
		{"MAE", MAE, 0.5},
		{"R2", R2Score, 0.9486081370449679},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.fn(yTrue, yPred)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)

			perfect, err := tc.fn(yTrue, yTrue)
			require.NoError(t, err)
			if tc.name == "R2" {
				assert.Equal(t, 1.0, perfect)
			} else {
				assert.Equal(t, 0.0, perfect)
			}
		})
	}
}

func TestRegressionMetrics_Errors(t *testing.T) {
	var dimErr *errors.DimensionError
	_, err := MSE(vec(1, 2, 3), vec(1, 2))
	assert.True(t, errors.As(err, &dimErr))

	var valErr *errors.ValueError
	_, err = MAE(&mat.VecDense{}, &mat.VecDense{})
	assert.True(t, errors.As(err, &valErr))
	_, err = MSE(nil, vec(1))
	assert.True(t, errors.As(err, &valErr))

	// 分散ゼロの R2 は定義できない
	_, err = R2Score(vec(2, 2, 2), vec(1, 2, 3))
	assert.True(t, errors.As(err, &valErr))
}

func TestMSEMatrix(t *testing.T) {
	a := mat.NewDense(3, 1, []float64{1, 2, 3})
	b := mat.NewDense(3, 1, []float64{1, 2, 5})
	got, err := MSEMatrix(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, got, 1e-12)

	_, err = MSEMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
	assert.Error(t, err, "must be a column vector")
	_, err = MSEMatrix(a, mat.NewDense(2, 1, nil))
	assert.Error(t, err)
}

func TestAccuracyAndError(t *testing.T) {
	yTrue := vec(0, 1, 1, 0, 2)
	yPred := vec(0, 1, 0, 0, 1)

	acc, err := Accuracy(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, acc, 1e-12)

	e, err := ClassificationError(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, e, 1e-12)

	_, err = Accuracy(vec(1), vec(1, 0))
	assert.Error(t, err)
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name  string
		yTrue *mat.VecDense
		score *mat.VecDense
		want  float64
	}{
		{"perfect", vec(0, 0, 0, 1, 1, 1), vec(0.1, 0.2, 0.3, 0.7, 0.8, 0.9), 1},
		{"inverted", vec(0, 0, 1, 1), vec(0.9, 0.8, 0.2, 0.1), 0},
		{"ties count half", vec(0, 1), vec(0.5, 0.5), 0.5},
		{"mixed", vec(0, 0, 1, 1), vec(0.1, 0.4, 0.35, 0.8), 0.75},
		{"single class", vec(1, 1, 1), vec(0.2, 0.5, 0.9), 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AUC(tc.yTrue, tc.score)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}

	var valErr *errors.ValueError
	_, err := AUC(vec(0, 2), vec(0.1, 0.9))
	assert.True(t, errors.As(err, &valErr))

	m, err := AUCMatrix(mat.NewDense(4, 1, []float64{0, 0, 1, 1}), mat.NewDense(4, 1, []float64{0.1, 0.4, 0.35, 0.8}))
	require.NoError(t, err)
	assert.InDelta(t, 0.75, m, 1e-12)
	_, err = AUCMatrix(nil, mat.NewDense(1, 1, nil))
	assert.Error(t, err)
}

func TestBinaryLogLoss(t *testing.T) {
	got, err := BinaryLogLoss(vec(1, 0), vec(0.9, 0.1))
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(0.9), got, 1e-12)

	// 0 と 1 はクリップされ有限になる
	clipped, err := BinaryLogLoss(vec(1, 0), vec(0, 1))
	require.NoError(t, err)
	assert.False(t, math.IsInf(clipped, 0))
	assert.Greater(t, clipped, 30.0)

	_, err = BinaryLogLoss(vec(0.5), vec(0.5))
	assert.Error(t, err)
}
