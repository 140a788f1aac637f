package modelselection

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/core/parallel"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// CVResult stores cross-validation results
type CVResult struct {
	// Scores holds one value per fold for every metric name
	Scores   map[string][]float64
	FitTimes []time.Duration
	NFolds   int
}

// Mean returns the mean fold score of metric, NaN when unknown
// or when any fold could not compute it.
func (cv *CVResult) Mean(metric string) float64 {
	s, ok := cv.Scores[metric]
	if !ok || len(s) == 0 {
		return math.NaN()
	}
	return stat.Mean(s, nil)
}

// Std returns the population standard deviation of the fold scores.
func (cv *CVResult) Std(metric string) float64 {
	s, ok := cv.Scores[metric]
	if !ok || len(s) == 0 {
		return math.NaN()
	}
	_, std := stat.PopMeanStdDev(s, nil)
	return std
}

// MeanFitTime returns the average fit duration across folds.
func (cv *CVResult) MeanFitTime() time.Duration {
	if len(cv.FitTimes) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range cv.FitTimes {
		total += d
	}
	return total / time.Duration(len(cv.FitTimes))
}

// Factory builds a fresh, unfitted estimator for one fold.
type Factory func() (model.Estimator, error)

// CrossValidate fits a new estimator per fold and scores it on the held
// out rows with every metric in set. Folds run on up to workers goroutines.
// Estimator panics are returned as errors.PanicError.
func CrossValidate(factory Factory, X mat.Matrix, y *mat.VecDense, splitter Splitter, set []metrics.Metric, workers int) (*CVResult, error) {
	folds, err := splitter.Split(X, y)
	if err != nil {
		return nil, err
	}
	nClasses := 0
	if len(set) > 0 && isClassificationSet(set) {
		nClasses = NumClasses(y)
	}

	perFold := make([]map[string]float64, len(folds))
	fitTimes := make([]time.Duration, len(folds))
	err = parallel.ForEach(len(folds), workers, func(i int) error {
		return errors.SafeExecute(fmt.Sprintf("cross_validate.fold_%d", i), func() error {
			est, err := factory()
			if err != nil {
				return err
			}
			trainX, trainY := Subset(X, y, folds[i].TrainIndices)
			testX, testY := Subset(X, y, folds[i].TestIndices)

			start := time.Now()
			if err := est.Fit(trainX, trainY); err != nil {
				return errors.Wrapf(err, "fold %d training failed", i)
			}
			fitTimes[i] = time.Since(start)

			pred, proba, err := PredictWithProba(est, testX, nClasses)
			if err != nil {
				return errors.Wrapf(err, "fold %d prediction failed", i)
			}
			perFold[i] = metrics.Evaluate(set, testY, pred, proba)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	result := &CVResult{Scores: make(map[string][]float64, len(set)), FitTimes: fitTimes, NFolds: len(folds)}
	for _, m := range set {
		scores := make([]float64, len(folds))
		for i := range folds {
			scores[i] = perFold[i][m.Name]
		}
		result.Scores[m.Name] = scores
	}
	return result, nil
}

func isClassificationSet(set []metrics.Metric) bool {
	for _, m := range set {
		if m.NeedsProba {
			return true
		}
	}
	return false
}

// NumClasses returns max(y)+1 for integer coded labels.
func NumClasses(y mat.Vector) int {
	maxLabel := -1
	for i := 0; i < y.Len(); i++ {
		if l := int(y.AtVec(i)); l > maxLabel {
			maxLabel = l
		}
	}
	return maxLabel + 1
}

// PredictWithProba returns the predictions of est as a vector and, for
// classifiers when nClasses > 0, the class probabilities spread over
// nClasses columns. Columns for classes the estimator never saw are zero.
func PredictWithProba(est model.Estimator, X mat.Matrix, nClasses int) (*mat.VecDense, mat.Matrix, error) {
	raw, err := est.Predict(X)
	if err != nil {
		return nil, nil, err
	}
	pred, err := metrics.ColumnVec("Predict", raw)
	if err != nil {
		return nil, nil, err
	}
	clf, ok := est.(model.Classifier)
	if !ok || nClasses == 0 {
		return pred, nil, nil
	}
	p, err := clf.PredictProba(X)
	if err != nil {
		return nil, nil, err
	}
	return pred, AlignProba(p, clf.Classes(), nClasses), nil
}

// AlignProba maps the columns of proba (ordered as classes) onto class
// codes 0..nClasses-1.
func AlignProba(proba mat.Matrix, classes []int, nClasses int) *mat.Dense {
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, nClasses, nil)
	for j, c := range classes {
		if c < 0 || c >= nClasses {
			continue
		}
		for i := 0; i < rows; i++ {
			out.Set(i, c, proba.At(i, j))
		}
	}
	return out
}
