// Package modelselection provides cross-validation splitters, train/test
// splitting, cross-validated scoring and hyperparameter search spaces.
package modelselection

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// Splitter defines interface for cross-validation splitters
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)
	GetNSplits() int
}

// Fold represents a single fold in cross-validation
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

func newRand(seed int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a new k-fold splitter. nSplits below 2 falls back to 5.
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold. Test folds are
// contiguous blocks of the (optionally shuffled) index order; the first
// n % k folds get one extra sample.
func (kf *KFold) Split(X, _ mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if nSamples < kf.NSplits {
		return nil, errors.NewValidationError("folds",
			"cannot be greater than the number of samples", kf.NSplits)
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := newRand(kf.RandomSeed)
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for i := range folds {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := append([]int(nil), indices[current:current+testSize]...)
		train := make([]int, 0, nSamples-testSize)
		train = append(train, indices[:current]...)
		train = append(train, indices[current+testSize:]...)
		folds[i] = Fold{TrainIndices: train, TestIndices: test}
		current += testSize
	}
	return folds, nil
}

// StratifiedKFold implements stratified k-fold cross-validation
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/test indices for each fold. Samples of
// every class are dealt over the folds in turn, continuing where the previous
// class stopped, so fold sizes differ by at most one.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if y == nil {
		return nil, errors.NewValueError("StratifiedKFold.Split", "y is required")
	}
	if yRows, _ := y.Dims(); yRows != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yRows, 0)
	}
	if nSamples < skf.NSplits {
		return nil, errors.NewValidationError("folds",
			"cannot be greater than the number of samples", skf.NSplits)
	}

	labels, byClass := groupByClass(y, nSamples)
	if skf.Shuffle {
		r := newRand(skf.RandomSeed)
		for _, label := range labels {
			idx := byClass[label]
			r.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}
	}

	foldOf := make([]int, nSamples)
	next := 0
	for _, label := range labels {
		for _, i := range byClass[label] {
			foldOf[i] = next
			next = (next + 1) % skf.NSplits
		}
	}

	folds := make([]Fold, skf.NSplits)
	for i := 0; i < nSamples; i++ {
		for f := range folds {
			if foldOf[i] == f {
				folds[f].TestIndices = append(folds[f].TestIndices, i)
			} else {
				folds[f].TrainIndices = append(folds[f].TrainIndices, i)
			}
		}
	}
	return folds, nil
}

// groupByClass returns the sorted labels of y and the row indices per label.
func groupByClass(y mat.Matrix, n int) ([]float64, map[float64][]int) {
	byClass := make(map[float64][]int)
	for i := 0; i < n; i++ {
		label := y.At(i, 0)
		byClass[label] = append(byClass[label], i)
	}
	labels := make([]float64, 0, len(byClass))
	for l := range byClass {
		labels = append(labels, l)
	}
	sort.Float64s(labels)
	return labels, byClass
}

// TrainTestSplit returns shuffled train and test row indices. When stratify
// is non-nil every class is split with the same proportion and keeps at
// least one row on each side when it has two or more rows.
func TrainTestSplit(nSamples int, stratify mat.Matrix, trainSize float64, seed int) (train, test []int, err error) {
	if !(trainSize > 0 && trainSize < 1) {
		return nil, nil, errors.NewValidationError("train_size", "must be in (0, 1)", trainSize)
	}
	if nSamples < 2 {
		return nil, nil, errors.NewValidationError("n_samples", "at least 2 rows are needed for a holdout split", nSamples)
	}
	r := newRand(seed)

	if stratify == nil {
		perm := r.Perm(nSamples)
		nTrain := splitSize(nSamples, trainSize)
		return perm[:nTrain], perm[nTrain:], nil
	}
	if rows, _ := stratify.Dims(); rows != nSamples {
		return nil, nil, errors.NewDimensionError("TrainTestSplit", nSamples, rows, 0)
	}

	labels, byClass := groupByClass(stratify, nSamples)
	for _, label := range labels {
		idx := byClass[label]
		r.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		if len(idx) == 1 {
			train = append(train, idx[0])
			continue
		}
		nTrain := splitSize(len(idx), trainSize)
		train = append(train, idx[:nTrain]...)
		test = append(test, idx[nTrain:]...)
	}
	r.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	r.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// splitSize is round(n*trainSize) kept within [1, n-1].
func splitSize(n int, trainSize float64) int {
	k := int(math.Round(float64(n) * trainSize))
	if k < 1 {
		k = 1
	}
	if k > n-1 {
		k = n - 1
	}
	return k
}

// Subset extracts the rows of X and y named by indices, in that order.
// y may be nil.
func Subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.VecDense) {
	_, xCols := X.Dims()
	xs := mat.NewDense(len(indices), xCols, nil)
	var ys *mat.VecDense
	if y != nil {
		ys = mat.NewVecDense(len(indices), nil)
	}
	for i, idx := range indices {
		for j := 0; j < xCols; j++ {
			xs.Set(i, j, X.At(idx, j))
		}
		if ys != nil {
			ys.SetVec(i, y.At(idx, 0))
		}
	}
	return xs, ys
}
