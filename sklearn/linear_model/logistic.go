// Package linear_model provides gradient based linear classifiers and the
// online passive aggressive models.
package linear_model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// LogisticRegression implements logistic regression for classification.
// Two classes use a single sigmoid model, more classes a multinomial softmax
// model. Features are standardized internally and the learned weights are
// mapped back to the original scale.
type LogisticRegression struct {
	State *model.StateManager

	// Hyperparameters
	Penalty      string  // "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	FitIntercept bool
	ClassWeight  string // "balanced" or "none"
	MaxIter      int
	Tol          float64
	RandomState  int

	// Model parameters. Binary models have one row.
	Coef        [][]float64
	Intercepts  []float64
	ClassLabels []int
	NIter       int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		State:        model.NewStateManager(),
		Penalty:      "l2",
		C:            1.0,
		FitIntercept: true,
		ClassWeight:  "none",
		MaxIter:      100,
		Tol:          1e-4,
		RandomState:  42,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.FitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.MaxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Tol = tol
	}
}

// WithLRRandomState sets the random seed used for weight initialization
func WithLRRandomState(seed int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.RandomState = seed
	}
}

// WithLRClassWeight sets "balanced" or "none" class weighting
func WithLRClassWeight(w string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.ClassWeight = w
	}
}

func (lr *LogisticRegression) validate() error {
	switch {
	case lr.C <= 0:
		return errors.NewValidationError("C", "must be positive", lr.C)
	case lr.MaxIter <= 0:
		return errors.NewValidationError("max_iter", "must be positive", lr.MaxIter)
	case lr.Penalty != "l2" && lr.Penalty != "none":
		return errors.NewValidationError("penalty", "must be l2 or none", lr.Penalty)
	case lr.ClassWeight != "balanced" && lr.ClassWeight != "none":
		return errors.NewValidationError("class_weight", "must be balanced or none", lr.ClassWeight)
	}
	return nil
}

// Fit trains the logistic regression model with full batch gradient descent.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckFitInput("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if err := lr.validate(); err != nil {
		return err
	}
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}

	lr.ClassLabels = model.UniqueClasses(y)
	if len(lr.ClassLabels) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs samples of at least 2 classes, got %d", len(lr.ClassLabels)))
	}

	Z, mean, scale := standardize(X)
	target := model.ClassIndices(y, lr.ClassLabels)
	weights := sampleWeights(target, len(lr.ClassLabels), lr.ClassWeight)

	nModels := len(lr.ClassLabels)
	if nModels == 2 {
		nModels = 1
	}
	rng := rand.New(rand.NewPCG(uint64(lr.RandomState), uint64(lr.RandomState)))
	coef := make([][]float64, nModels)
	for k := range coef {
		coef[k] = make([]float64, nFeatures)
		for j := range coef[k] {
			coef[k][j] = rng.NormFloat64() * 0.01
		}
	}
	intercepts := make([]float64, nModels)

	lambda := 0.0
	if lr.Penalty == "l2" {
		lambda = 1.0 / (lr.C * float64(nSamples))
	}

	gradW := make([][]float64, nModels)
	for k := range gradW {
		gradW[k] = make([]float64, nFeatures)
	}
	gradB := make([]float64, nModels)
	probs := make([]float64, len(lr.ClassLabels))
	scores := make([]float64, nModels)
	row := make([]float64, nFeatures)
	var wSum, zNorm float64
	for i, w := range weights {
		wSum += w
		mat.Row(row, i, Z)
		zNorm += w * (dotProduct(row, row) + 1)
	}
	// 損失の Lipschitz 定数の上界。sigmoid は 1/4、softmax は 1/2 倍。
	lipschitz := 0.5 * zNorm / wSum
	if nModels == 1 {
		lipschitz = 0.25 * zNorm / wSum
	}
	maxStep := 1.0 / (lipschitz + lambda)

	converged := false
	lr.NIter = 0
	for iter := 0; iter < lr.MaxIter; iter++ {
		for k := range gradW {
			for j := range gradW[k] {
				gradW[k][j] = 0
			}
			gradB[k] = 0
		}

		for i := 0; i < nSamples; i++ {
			mat.Row(row, i, Z)
			for k := 0; k < nModels; k++ {
				scores[k] = intercepts[k] + dotProduct(coef[k], row)
			}
			if nModels == 1 {
				p := errors.Sigmoid(scores[0])
				yi := 0.0
				if target[i] == 1 {
					yi = 1
				}
				diff := weights[i] * (p - yi)
				gradB[0] += diff
				for j, x := range row {
					gradW[0][j] += diff * x
				}
				continue
			}
			errors.Softmax(probs, scores)
			for k := 0; k < nModels; k++ {
				yi := 0.0
				if target[i] == k {
					yi = 1
				}
				diff := weights[i] * (probs[k] - yi)
				gradB[k] += diff
				for j, x := range row {
					gradW[k][j] += diff * x
				}
			}
		}

		learningRate := math.Min(1.0/(1.0+0.01*float64(iter)), maxStep)
		maxGrad := 0.0
		for k := 0; k < nModels; k++ {
			for j := range coef[k] {
				g := gradW[k][j]/wSum + lambda*coef[k][j]
				coef[k][j] -= learningRate * g
				maxGrad = math.Max(maxGrad, math.Abs(g))
			}
			if lr.FitIntercept {
				g := gradB[k] / wSum
				intercepts[k] -= learningRate * g
				maxGrad = math.Max(maxGrad, math.Abs(g))
			}
		}
		lr.NIter = iter + 1
		if maxGrad < lr.Tol {
			converged = true
			break
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.NIter, ""))
	}

	// 標準化前のスケールに戻す
	for k := 0; k < nModels; k++ {
		for j := range coef[k] {
			coef[k][j] /= scale[j]
			intercepts[k] -= coef[k][j] * mean[j]
		}
		if err := errors.CheckNumericalStability("LogisticRegression.Fit", coef[k], lr.NIter); err != nil {
			return err
		}
	}
	lr.Coef = coef
	lr.Intercepts = intercepts

	lr.State.SetDimensions(nFeatures, nSamples)
	lr.State.SetFitted()
	return nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.predictProba("Predict", X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxLabels(proba, lr.ClassLabels), nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return lr.predictProba("PredictProba", X)
}

func (lr *LogisticRegression) predictProba(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := lr.State.RequireFitted("LogisticRegression", method); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.State.CheckFeatures("LogisticRegression."+method, nFeatures); err != nil {
		return nil, err
	}

	nClasses := len(lr.ClassLabels)
	probas := mat.NewDense(nSamples, nClasses, nil)
	row := make([]float64, nFeatures)
	scores := make([]float64, len(lr.Coef))
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		for k := range lr.Coef {
			scores[k] = lr.Intercepts[k] + dotProduct(lr.Coef[k], row)
		}
		if nClasses == 2 {
			p := errors.Sigmoid(scores[0])
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
			continue
		}
		errors.Softmax(probas.RawRowView(i), scores)
	}
	return probas, nil
}

// Classes returns the sorted class labels seen during fitting
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.ClassLabels...)
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	return accuracyScore(lr.Predict, X, y)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.Penalty,
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"class_weight":  lr.ClassWeight,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
		"random_state":  lr.RandomState,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.Penalty, err = model.ParamString(key, value)
		case "C":
			lr.C, err = model.ParamFloat(key, value)
		case "fit_intercept":
			lr.FitIntercept, err = model.ParamBool(key, value)
		case "class_weight":
			lr.ClassWeight, err = model.ParamString(key, value)
		case "max_iter":
			lr.MaxIter, err = model.ParamInt(key, value)
		case "tol":
			lr.Tol, err = model.ParamFloat(key, value)
		case "random_state":
			lr.RandomState, err = model.ParamInt(key, value)
		default:
			err = model.UnknownParam("LogisticRegression", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// sampleWeights returns n_samples / (n_classes * count(class)) per sample
// for "balanced", otherwise ones.
func sampleWeights(target []int, nClasses int, mode string) []float64 {
	w := make([]float64, len(target))
	counts := make([]float64, nClasses)
	for _, t := range target {
		counts[t]++
	}
	for i, t := range target {
		w[i] = 1
		if mode == "balanced" {
			w[i] = float64(len(target)) / (float64(nClasses) * counts[t])
		}
	}
	return w
}

// standardize returns (X - mean) / std per column. Constant columns keep scale 1.
func standardize(X mat.Matrix) (*mat.Dense, []float64, []float64) {
	r, c := X.Dims()
	mean := make([]float64, c)
	scale := make([]float64, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			mean[j] += X.At(i, j)
		}
		mean[j] /= float64(r)
		var ss float64
		for i := 0; i < r; i++ {
			d := X.At(i, j) - mean[j]
			ss += d * d
		}
		scale[j] = math.Sqrt(ss / float64(r))
		if scale[j] < 1e-12 {
			scale[j] = 1
		}
	}
	Z := mat.NewDense(r, c, nil)
	Z.Apply(func(_, j int, v float64) float64 { return (v - mean[j]) / scale[j] }, X)
	return Z, mean, scale
}

func accuracyScore(predict func(mat.Matrix) (mat.Matrix, error), X, y mat.Matrix) (float64, error) {
	pred, err := predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVec("Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVec("Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(yTrue, yPred)
}

func dotProduct(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

var _ model.Classifier = (*LogisticRegression)(nil)
