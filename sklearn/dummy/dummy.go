// Package dummy provides baseline estimators that ignore the features.
package dummy

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// DummyRegressor predicts a constant computed from the training targets.
type DummyRegressor struct {
	State *model.StateManager

	Strategy string  // mean, median, quantile, constant
	Quantile float64 // strategy=quantile
	Constant float64 // strategy=constant

	Value float64
}

// NewDummyRegressor creates a mean baseline.
func NewDummyRegressor() *DummyRegressor {
	return &DummyRegressor{State: model.NewStateManager(), Strategy: "mean", Quantile: 0.5}
}

// Fit computes the constant.
func (d *DummyRegressor) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckFitInput("DummyRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if d.State == nil {
		d.State = model.NewStateManager()
	}
	target := mat.Col(nil, 0, y)
	switch d.Strategy {
	case "mean":
		d.Value = stat.Mean(target, nil)
	case "median", "quantile":
		q := 0.5
		if d.Strategy == "quantile" {
			if d.Quantile < 0 || d.Quantile > 1 {
				return errors.NewValidationError("quantile", "must be in [0, 1]", d.Quantile)
			}
			q = d.Quantile
		}
		d.Value = quantile(target, q)
	case "constant":
		d.Value = d.Constant
	default:
		return errors.NewValidationError("strategy", "must be mean, median, quantile or constant", d.Strategy)
	}
	d.State.SetDimensions(cols, rows)
	d.State.SetFitted()
	return nil
}

// Predict returns the constant for every row.
func (d *DummyRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := d.State.RequireFitted("DummyRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, d.Value)
	}
	return out, nil
}

// Score returns R² on (X, y).
func (d *DummyRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := d.Predict(X)
	if err != nil {
		return 0, err
	}
	return score(metrics.R2Score, y, pred)
}

// GetParams returns the hyperparameters.
func (d *DummyRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"strategy": d.Strategy,
		"quantile": d.Quantile,
		"constant": d.Constant,
	}
}

// SetParams updates the hyperparameters.
func (d *DummyRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "strategy":
			d.Strategy, err = model.ParamString(k, v)
		case "quantile":
			d.Quantile, err = model.ParamFloat(k, v)
		case "constant":
			d.Constant, err = model.ParamFloat(k, v)
		default:
			err = model.UnknownParam("DummyRegressor", k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *DummyRegressor) String() string {
	return fmt.Sprintf("DummyRegressor(strategy=%s)", d.Strategy)
}

// DummyClassifier predicts from the class distribution of the training targets.
type DummyClassifier struct {
	State *model.StateManager

	Strategy    string // prior, most_frequent, stratified, uniform, constant
	Constant    int    // strategy=constant
	RandomState int

	ClassLabels []int
	ClassPrior  []float64
}

// NewDummyClassifier creates a prior baseline.
func NewDummyClassifier() *DummyClassifier {
	return &DummyClassifier{State: model.NewStateManager(), Strategy: "prior", RandomState: 42}
}

// Fit records the class frequencies.
func (d *DummyClassifier) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckFitInput("DummyClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	switch d.Strategy {
	case "prior", "most_frequent", "stratified", "uniform", "constant":
	default:
		return errors.NewValidationError("strategy", "must be prior, most_frequent, stratified, uniform or constant", d.Strategy)
	}
	if d.State == nil {
		d.State = model.NewStateManager()
	}
	d.ClassLabels = model.UniqueClasses(y)
	if d.Strategy == "constant" && indexOf(d.ClassLabels, d.Constant) < 0 {
		return errors.NewValueError("DummyClassifier.Fit",
			fmt.Sprintf("constant %d is not one of the training classes %v", d.Constant, d.ClassLabels))
	}
	d.ClassPrior = make([]float64, len(d.ClassLabels))
	for _, k := range model.ClassIndices(y, d.ClassLabels) {
		d.ClassPrior[k]++
	}
	for k := range d.ClassPrior {
		d.ClassPrior[k] /= float64(rows)
	}
	d.State.SetDimensions(cols, rows)
	d.State.SetFitted()
	return nil
}

// PredictProba returns one distribution per row according to Strategy.
func (d *DummyClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := d.State.RequireFitted("DummyClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	k := len(d.ClassLabels)
	out := mat.NewDense(rows, k, nil)
	rng := rand.New(rand.NewPCG(uint64(d.RandomState), uint64(d.RandomState)))
	mode := argmax(d.ClassPrior)
	for i := 0; i < rows; i++ {
		switch d.Strategy {
		case "prior":
			out.SetRow(i, d.ClassPrior)
		case "most_frequent":
			out.Set(i, mode, 1)
		case "uniform":
			for c := 0; c < k; c++ {
				out.Set(i, c, 1/float64(k))
			}
		case "stratified":
			out.Set(i, draw(rng, d.ClassPrior), 1)
		case "constant":
			out.Set(i, indexOf(d.ClassLabels, d.Constant), 1)
		}
	}
	return out, nil
}

// Predict returns one label per row. uniform draws a random class.
func (d *DummyClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := d.PredictProba(X)
	if err != nil {
		return nil, err
	}
	if d.Strategy != "uniform" {
		return model.ArgmaxLabels(proba, d.ClassLabels), nil
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	rng := rand.New(rand.NewPCG(uint64(d.RandomState), uint64(d.RandomState)))
	for i := 0; i < rows; i++ {
		out.Set(i, 0, float64(d.ClassLabels[rng.IntN(len(d.ClassLabels))]))
	}
	return out, nil
}

// Classes returns the class labels.
func (d *DummyClassifier) Classes() []int {
	return append([]int(nil), d.ClassLabels...)
}

// Score returns the accuracy on (X, y).
func (d *DummyClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := d.Predict(X)
	if err != nil {
		return 0, err
	}
	return score(metrics.Accuracy, y, pred)
}

// GetParams returns the hyperparameters.
func (d *DummyClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"strategy":     d.Strategy,
		"constant":     d.Constant,
		"random_state": d.RandomState,
	}
}

// SetParams updates the hyperparameters.
func (d *DummyClassifier) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "strategy":
			d.Strategy, err = model.ParamString(k, v)
		case "constant":
			d.Constant, err = model.ParamInt(k, v)
		case "random_state":
			d.RandomState, err = model.ParamInt(k, v)
		default:
			err = model.UnknownParam("DummyClassifier", k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *DummyClassifier) String() string {
	return fmt.Sprintf("DummyClassifier(strategy=%s)", d.Strategy)
}

// quantile interpolates linearly between order statistics (numpy's default).
func quantile(x []float64, q float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func draw(rng *rand.Rand, p []float64) int {
	u := rng.Float64()
	var acc float64
	for i, v := range p {
		acc += v
		if u < acc {
			return i
		}
	}
	return len(p) - 1
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
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
	_ model.Regressor  = (*DummyRegressor)(nil)
	_ model.Classifier = (*DummyClassifier)(nil)
)
