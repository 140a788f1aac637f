package modelselection

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

func covers(t *testing.T, n int, folds []Fold) {
	t.Helper()
	seen := make([]int, n)
	for _, f := range folds {
		assert.Equal(t, n, len(f.TrainIndices)+len(f.TestIndices))
		for _, i := range f.TestIndices {
			seen[i]++
		}
	}
	for i, c := range seen {
		assert.Equal(t, 1, c, "row %d must be tested exactly once", i)
	}
}

func TestKFold(t *testing.T) {
	X := mat.NewDense(10, 1, nil)
	folds, err := NewKFold(3, false, 0).Split(X, nil)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	covers(t, 10, folds)

	a, err := NewKFold(3, true, 42).Split(X, nil)
	require.NoError(t, err)
	b, err := NewKFold(3, true, 42).Split(X, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	covers(t, 10, a)

	_, err = NewKFold(20, false, 0).Split(X, nil)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	assert.Equal(t, 5, NewKFold(1, false, 0).GetNSplits())
}

func TestStratifiedKFold(t *testing.T) {
	y := mat.NewVecDense(12, []float64{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1})
	X := mat.NewDense(12, 1, nil)
	folds, err := NewStratifiedKFold(4, true, 7).Split(X, y)
	require.NoError(t, err)
	covers(t, 12, folds)
	for _, f := range folds {
		ones := 0
		for _, i := range f.TestIndices {
			if y.AtVec(i) == 1 {
				ones++
			}
		}
		assert.Len(t, f.TestIndices, 3)
		assert.Equal(t, 1, ones)
	}

	_, err = NewStratifiedKFold(4, false, 0).Split(X, mat.NewVecDense(3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(10, nil, 0.7, 42)
	require.NoError(t, err)
	assert.Len(t, train, 7)
	assert.Len(t, test, 3)
	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)

	again, _, err := TrainTestSplit(10, nil, 0.7, 42)
	require.NoError(t, err)
	assert.Equal(t, train, again)

	y := mat.NewVecDense(10, []float64{0, 0, 0, 0, 0, 1, 1, 1, 1, 1})
	train, test, err = TrainTestSplit(10, y, 0.6, 1)
	require.NoError(t, err)
	assert.Len(t, train, 6)
	assert.Len(t, test, 4)
	pos := 0
	for _, i := range test {
		pos += int(y.AtVec(i))
	}
	assert.Equal(t, 2, pos)

	_, _, err = TrainTestSplit(10, nil, 1, 0)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(1, nil, 0.5, 0)
	assert.Error(t, err)
}

func TestSubset(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewVecDense(3, []float64{10, 20, 30})
	xs, ys := Subset(X, y, []int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, xs.RawMatrix().Data)
	assert.Equal(t, []float64{30, 10}, ys.RawVector().Data)
}

func TestParameterGridAndSampler(t *testing.T) {
	grid := map[string][]interface{}{
		"alpha": {0.1, 1.0},
		"depth": {1, 2, 3},
		"empty": {},
	}
	points := ParameterGrid(grid)
	require.Len(t, points, 6)
	assert.Equal(t, map[string]interface{}{"alpha": 0.1, "depth": 1}, points[0])
	assert.Equal(t, map[string]interface{}{"alpha": 1.0, "depth": 3}, points[5])

	sampled, err := ParameterSampler(grid, 4, 42)
	require.NoError(t, err)
	require.Len(t, sampled, 4)
	again, err := ParameterSampler(grid, 4, 42)
	require.NoError(t, err)
	assert.Equal(t, sampled, again)

	full, err := ParameterSampler(grid, 100, 42)
	require.NoError(t, err)
	assert.Equal(t, points, full)

	_, err = ParameterSampler(grid, 0, 42)
	assert.Error(t, err)
	assert.Empty(t, ParameterGrid(nil))
}

// meanRegressor predicts the training mean.
type meanRegressor struct{ mean float64 }

func (m *meanRegressor) Fit(_, y mat.Matrix) error {
	r, _ := y.Dims()
	var s float64
	for i := 0; i < r; i++ {
		s += y.At(i, 0)
	}
	m.mean = s / float64(r)
	return nil
}

func (m *meanRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.mean)
	}
	return out, nil
}

func (m *meanRegressor) GetParams() map[string]interface{}      { return nil }
func (m *meanRegressor) SetParams(map[string]interface{}) error { return nil }

type panicky struct{ meanRegressor }

func (p *panicky) Fit(_, _ mat.Matrix) error { panic("boom") }

func TestCrossValidate(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewVecDense(6, []float64{1, 1, 1, 1, 1, 1})
	res, err := CrossValidate(func() (model.Estimator, error) { return &meanRegressor{}, nil },
		X, y, NewKFold(3, false, 0), metrics.RegressionMetrics(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.NFolds)
	assert.Equal(t, []float64{0, 0, 0}, res.Scores["MAE"])
	assert.Equal(t, 0.0, res.Mean("MAE"))
	assert.Equal(t, 0.0, res.Std("MAE"))
	assert.True(t, res.Mean("R2") != res.Mean("R2"), "R2 is undefined on a constant target")
	assert.True(t, res.Mean("nope") != res.Mean("nope"))

	_, err = CrossValidate(func() (model.Estimator, error) { return &panicky{}, nil },
		X, y, NewKFold(3, false, 0), metrics.RegressionMetrics(), 1)
	var pe *errors.PanicError
	assert.True(t, errors.As(err, &pe))
}

func TestAlignProba(t *testing.T) {
	p := mat.NewDense(1, 2, []float64{0.3, 0.7})
	out := AlignProba(p, []int{0, 2}, 3)
	assert.Equal(t, []float64{0.3, 0, 0.7}, out.RawMatrix().Data)
	assert.Equal(t, 3, NumClasses(mat.NewVecDense(3, []float64{0, 2, 1})))
}
