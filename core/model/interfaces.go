package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is implemented by models that compute their default score
// (R² for regressors, accuracy for classifiers).
type Scorer interface {
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Estimator
	Scorer
}

// Classifier combines interfaces for classification models.
// Class labels are the integer codes produced by preprocessing.LabelEncoder.
type Classifier interface {
	Estimator
	Scorer

	// PredictProba returns an n x len(Classes()) matrix of class probabilities.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted classes seen during fitting.
	Classes() []int
}

// FeatureImporter is implemented by models with intrinsic feature importances.
type FeatureImporter interface {
	FeatureImportances() []float64
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
// Unknown keys are rejected with a ValueError.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}
