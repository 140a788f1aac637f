// Package task defines the closed set of supported task types.
package task

import (
	"strings"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// Task is a supported machine learning task. The zero value is invalid.
type Task int

const (
	Regression Task = iota + 1
	Classification
)

var labels = map[Task]string{
	Regression:     "regression",
	Classification: "classification",
}

// All returns every supported task in declaration order.
func All() []Task {
	return []Task{Regression, Classification}
}

// Labels returns the labels of every supported task.
func Labels() []string {
	out := make([]string, 0, len(labels))
	for _, t := range All() {
		out = append(out, labels[t])
	}
	return out
}

// Parse resolves a label. An empty label is a TaskTypeRequiredError and an
// unknown one an UnsupportedTaskTypeError. Matching ignores case and
// surrounding space.
func Parse(label string) (Task, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return 0, errors.NewTaskTypeRequiredError()
	}
	for _, t := range All() {
		if labels[t] == normalized {
			return t, nil
		}
	}
	return 0, errors.NewUnsupportedTaskTypeError(label, Labels())
}

// String returns the task label.
func (t Task) String() string {
	if l, ok := labels[t]; ok {
		return l
	}
	return "unknown"
}

// Valid reports whether t is one of the supported tasks.
func (t Task) Valid() bool {
	_, ok := labels[t]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (t Task) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, errors.NewUnsupportedTaskTypeError(t.String(), Labels())
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Task) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
