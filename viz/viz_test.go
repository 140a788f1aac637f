package viz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

func requireFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRegressionPlots(t *testing.T) {
	dir := t.TempDir()
	yTrue := []float64{1, 2, 3, 4, 5, 6}
	yPred := []float64{1.1, 1.8, 3.3, 3.9, 5.2, 5.7}

	path := filepath.Join(dir, "residuals.png")
	require.NoError(t, Residuals(path, yTrue, yPred))
	requireFile(t, path)

	path = filepath.Join(dir, "error.svg")
	require.NoError(t, PredictionError(path, yTrue, yPred, WithTitle("holdout")))
	requireFile(t, path)
}

func TestFeatureImportance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feature.png")
	err := FeatureImportance(path, []string{"Age", "Fare", "Sex_male"}, []float64{0.2, 0.1, 0.7}, 2)
	require.NoError(t, err)
	requireFile(t, path)
}

func TestConfusionMatrixAndROC(t *testing.T) {
	dir := t.TempDir()
	cm := mat.NewDense(2, 2, []float64{10, 2, 3, 15})
	path := filepath.Join(dir, "cm.png")
	require.NoError(t, ConfusionMatrix(path, cm, []string{"0", "1"}))
	requireFile(t, path)

	path = filepath.Join(dir, "auc.png")
	curves := []Curve{{Label: "1", FPR: []float64{0, 0.2, 1}, TPR: []float64{0, 0.8, 1}, AUC: 0.8}}
	require.NoError(t, ROC(path, curves))
	requireFile(t, path)
}

func TestInvalidInput(t *testing.T) {
	dir := t.TempDir()

	err := Residuals(filepath.Join(dir, "r.png"), []float64{1, 2}, []float64{1})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	err = Residuals(filepath.Join(dir, "r.png"), nil, nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	err = Residuals(filepath.Join(dir, "r.bmp"), []float64{1, 2}, []float64{1, 2})
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	err = ConfusionMatrix(filepath.Join(dir, "cm.png"), mat.NewDense(2, 2, nil), []string{"a"})
	assert.Error(t, err)
}

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, CheckFormat("png"))
	assert.NoError(t, CheckFormat(".SVG"))
	assert.Error(t, CheckFormat("gif"))
}
