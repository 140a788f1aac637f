// Package neighbors implements brute-force k-nearest-neighbor estimators.
package neighbors

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/core/parallel"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// Params はk近傍法のハイパーパラメータ
type Params struct {
	NNeighbors int
	Weights    string  // uniform, distance
	Metric     string  // euclidean, manhattan, minkowski
	P          float64 // minkowski の次数
}

func defaultParams() Params {
	return Params{NNeighbors: 5, Weights: "uniform", Metric: "minkowski", P: 2}
}

// Option configures a neighbors estimator.
type Option func(*Params)

// WithNNeighbors sets k.
func WithNNeighbors(k int) Option { return func(p *Params) { p.NNeighbors = k } }

// WithWeights sets the vote weighting (uniform or distance).
func WithWeights(w string) Option { return func(p *Params) { p.Weights = w } }

// WithMetric sets the distance metric.
func WithMetric(m string) Option { return func(p *Params) { p.Metric = m } }

func (p *Params) validate() error {
	switch {
	case p.NNeighbors < 1:
		return errors.NewValidationError("n_neighbors", "must be >= 1", p.NNeighbors)
	case p.Weights != "uniform" && p.Weights != "distance":
		return errors.NewValidationError("weights", "must be uniform or distance", p.Weights)
	case p.Metric != "euclidean" && p.Metric != "manhattan" && p.Metric != "minkowski":
		return errors.NewValidationError("metric", "must be euclidean, manhattan or minkowski", p.Metric)
	case p.Metric == "minkowski" && p.P < 1:
		return errors.NewValidationError("p", "must be >= 1", p.P)
	}
	return nil
}

// GetParams returns the hyperparameters.
func (p *Params) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": p.NNeighbors,
		"weights":     p.Weights,
		"metric":      p.Metric,
		"p":           p.P,
	}
}

func (p *Params) set(name string, params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_neighbors":
			p.NNeighbors, err = model.ParamInt(k, v)
		case "weights":
			p.Weights, err = model.ParamString(k, v)
		case "metric":
			p.Metric, err = model.ParamString(k, v)
		case "p":
			p.P, err = model.ParamFloat(k, v)
		default:
			err = model.UnknownParam(name, k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Params) distance(a, b []float64) float64 {
	var d float64
	switch {
	case p.Metric == "manhattan" || (p.Metric == "minkowski" && p.P == 1):
		for i := range a {
			d += math.Abs(a[i] - b[i])
		}
		return d
	case p.Metric == "euclidean" || p.P == 2:
		for i := range a {
			diff := a[i] - b[i]
			d += diff * diff
		}
		return math.Sqrt(d)
	default:
		for i := range a {
			d += math.Pow(math.Abs(a[i]-b[i]), p.P)
		}
		return math.Pow(d, 1/p.P)
	}
}

// TrainingSet は学習データ（行優先）
type TrainingSet struct {
	Data []float64
	Rows int
	Cols int
	Y    []float64
}

func newTrainingSet(X, y mat.Matrix) TrainingSet {
	r, c := X.Dims()
	data := make([]float64, 0, r*c)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		data = append(data, row...)
	}
	return TrainingSet{Data: data, Rows: r, Cols: c, Y: mat.Col(nil, 0, y)}
}

type neighbor struct {
	idx  int
	dist float64
}

// kNearest returns the k nearest training rows of x ordered by distance, ties by row.
func (p *Params) kNearest(ix *TrainingSet, x []float64) []neighbor {
	all := make([]neighbor, ix.Rows)
	for i := 0; i < ix.Rows; i++ {
		all[i] = neighbor{i, p.distance(x, ix.Data[i*ix.Cols:(i+1)*ix.Cols])}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].dist < all[b].dist })
	k := p.NNeighbors
	if k > len(all) {
		k = len(all)
	}
	return all[:k]
}

// weightsOf returns the vote weight of each neighbor. With distance weighting,
// exact matches take all the weight.
func (p *Params) weightsOf(nb []neighbor) []float64 {
	w := make([]float64, len(nb))
	if p.Weights != "distance" {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	exact := false
	for i, n := range nb {
		if n.dist == 0 {
			w[i] = 1
			exact = true
		}
	}
	if exact {
		return w
	}
	for i, n := range nb {
		w[i] = 1 / n.dist
	}
	return w
}

// each runs fn for every row of X in parallel.
func each(X mat.Matrix, fn func(i int, x []float64)) {
	rows, cols := X.Dims()
	parallel.ParallelizeWithThreshold(rows, 64, func(start, end int) {
		x := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			fn(i, x)
		}
	})
}

// KNeighborsClassifier votes among the k nearest training rows.
type KNeighborsClassifier struct {
	Params
	State *model.StateManager

	Train       TrainingSet
	ClassLabels []int
	Labels      []int // 学習データのクラス位置
}

// NewKNeighborsClassifier creates a 5-NN classifier.
func NewKNeighborsClassifier(opts ...Option) *KNeighborsClassifier {
	k := &KNeighborsClassifier{Params: defaultParams(), State: model.NewStateManager()}
	for _, opt := range opts {
		opt(&k.Params)
	}
	return k
}

// Fit stores the training data.
func (k *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckFitInput("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := k.validate(); err != nil {
		return err
	}
	if k.State == nil {
		k.State = model.NewStateManager()
	}
	k.Train = newTrainingSet(X, y)
	k.ClassLabels = model.UniqueClasses(y)
	k.Labels = model.ClassIndices(y, k.ClassLabels)
	k.State.SetDimensions(cols, rows)
	k.State.SetFitted()
	return nil
}

// PredictProba returns the weighted vote share of each class.
func (k *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := k.State.RequireFitted("KNeighborsClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := k.State.CheckFeatures("KNeighborsClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, len(k.ClassLabels), nil)
	each(X, func(i int, x []float64) {
		nb := k.kNearest(&k.Train, x)
		w := k.weightsOf(nb)
		row := out.RawRowView(i)
		var total float64
		for j, n := range nb {
			row[k.Labels[n.idx]] += w[j]
			total += w[j]
		}
		for c := range row {
			row[c] /= total
		}
	})
	return out, nil
}

// Predict returns the class with the largest vote.
func (k *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := k.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, k.ClassLabels), nil
}

// Classes returns the sorted class labels seen during fitting.
func (k *KNeighborsClassifier) Classes() []int {
	return append([]int(nil), k.ClassLabels...)
}

// Score returns the accuracy on (X, y).
func (k *KNeighborsClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := k.Predict(X)
	if err != nil {
		return 0, err
	}
	return score(metrics.Accuracy, y, pred)
}

// SetParams updates hyperparameters.
func (k *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	return k.set("KNeighborsClassifier", params)
}

func (k *KNeighborsClassifier) String() string {
	return fmt.Sprintf("KNeighborsClassifier(n_neighbors=%d, weights=%s)", k.NNeighbors, k.Weights)
}

// KNeighborsRegressor averages the targets of the k nearest training rows.
type KNeighborsRegressor struct {
	Params
	State *model.StateManager

	Train TrainingSet
}

// NewKNeighborsRegressor creates a 5-NN regressor.
func NewKNeighborsRegressor(opts ...Option) *KNeighborsRegressor {
	k := &KNeighborsRegressor{Params: defaultParams(), State: model.NewStateManager()}
	for _, opt := range opts {
		opt(&k.Params)
	}
	return k
}

// Fit stores the training data.
func (k *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckFitInput("KNeighborsRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := k.validate(); err != nil {
		return err
	}
	if k.State == nil {
		k.State = model.NewStateManager()
	}
	k.Train = newTrainingSet(X, y)
	k.State.SetDimensions(cols, rows)
	k.State.SetFitted()
	return nil
}

// Predict returns the weighted mean target of the neighbors.
func (k *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := k.State.RequireFitted("KNeighborsRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := k.State.CheckFeatures("KNeighborsRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	each(X, func(i int, x []float64) {
		nb := k.kNearest(&k.Train, x)
		w := k.weightsOf(nb)
		var sum, total float64
		for j, n := range nb {
			sum += w[j] * k.Train.Y[n.idx]
			total += w[j]
		}
		out.Set(i, 0, sum/total)
	})
	return out, nil
}

// Score returns R² on (X, y).
func (k *KNeighborsRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := k.Predict(X)
	if err != nil {
		return 0, err
	}
	return score(metrics.R2Score, y, pred)
}

// SetParams updates hyperparameters.
func (k *KNeighborsRegressor) SetParams(params map[string]interface{}) error {
	return k.set("KNeighborsRegressor", params)
}

func (k *KNeighborsRegressor) String() string {
	return fmt.Sprintf("KNeighborsRegressor(n_neighbors=%d, weights=%s)", k.NNeighbors, k.Weights)
}

func score(fn func(yTrue, yPred *mat.VecDense) (float64, error), y, pred mat.Matrix) (float64, error) {
	yTrue, err := metrics.ColumnVec("Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVec("Score", pred)
	if err != nil {
		return 0, err
	}
	return fn(yTrue, yPred)
}

var (
	_ model.Classifier = (*KNeighborsClassifier)(nil)
	_ model.Regressor  = (*KNeighborsRegressor)(nil)
)
