// Package tabautoml is a low-code AutoML toolkit for tabular data written in
// pure Go on top of gonum.
//
// A single orchestrator object, automl.TabularAutoML, binds a dataset, a
// target column and a task (regression or classification) to a backing
// engine.Module, and forwards every experiment stage to it:
//
//	a, err := automl.FromFile("titanic.csv", "PassengerId", "Survived", "classification")
//	if err != nil {
//		log.Fatal(err)
//	}
//	res, err := a.Run(automl.ExperimentConfig{
//		Setup:    engine.SetupConfig{Folds: 5},
//		Compare:  engine.CompareConfig{Include: []string{"lr", "dt", "rf"}},
//		Finalize: &engine.FinalizeConfig{},
//	})
//
// Large tables (more than sampling.LargeDatasetRows rows) are sampled before
// setup so that model comparison stays fast; sampling can also be forced
// with an explicit or "auto" fraction.
//
// # Packages
//
//   - automl: task dispatch, sampling policy and the experiment orchestrator
//   - engine: setup, compare, create, tune, finalize, predict, plot,
//     interpret, save and load stages for both tasks
//   - dataset: CSV/TSV loading with an optional index column
//   - sampling: the Auto/Explicit fraction and the seeded sampler
//   - metrics, modelselection, preprocessing: scoring, folds and encoding
//   - sklearn/...: gonum estimators with a scikit-learn style API
//   - viz: gonum/plot diagnostic plots
//
// The tabautoml command (cmd/tabautoml) runs experiment files written in
// YAML or HCL and records every run under ~/.tabautoml/runs.
package tabautoml
