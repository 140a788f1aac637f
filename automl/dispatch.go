package automl

import (
	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/task"
)

// ModuleFactory builds the backing module of one task.
type ModuleFactory func(opts ...engine.Option) engine.Module

// modules maps every supported task to its backing module.
var modules = map[task.Task]ModuleFactory{
	task.Regression:     engine.NewRegression,
	task.Classification: engine.NewClassification,
}

// resolveModule parses the task label and returns the factory of its
// backing module. An empty label is a TaskTypeRequiredError and an unknown
// one an UnsupportedTaskTypeError.
func resolveModule(label string) (task.Task, ModuleFactory, error) {
	t, err := task.Parse(label)
	if err != nil {
		return 0, nil, err
	}
	return t, modules[t], nil
}
