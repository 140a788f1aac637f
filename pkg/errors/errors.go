// Package errors defines the typed errors shared by every tabautoml package.
//
// Constructors attach a stack trace with cockroachdb/errors; callers match
// with As and never string-compare messages. Nothing here retries or
// downgrades a failure to a warning: an error returned by a stage reaches the
// caller of the orchestrator unchanged.
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// NotFittedError: Fit 前に Predict / Transform が呼ばれた。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("tabautoml: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "NotFittedError").Str("model_name", e.ModelName).Str("method", e.Method)
}

func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports a shape mismatch. Axis 0 counts rows, axis 1
// features.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("tabautoml: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "DimensionError").
		Str("operation", e.Op).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Int("expected", e.Expected).
		Int("got", e.Got)
}

func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError rejects a named setting (sampling fraction, fold count,
// hyperparameter, config key) before any work starts.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tabautoml: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "ValidationError").
		Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value)
}

func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError: 値そのものが処理できない (数値でない target、未知の label など)。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("tabautoml: %s: %s", e.Op, e.Message)
}

func (e *ValueError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "ValueError").Str("operation", e.Op).Str("message", e.Message)
}

func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError wraps a failure of one estimator or transformer with the
// operation and a short kind ("fit", "transform", "candidate failed").
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("tabautoml: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("tabautoml: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

func (e *ModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "ModelError").Str("operation", e.Op).Str("kind", e.Kind)
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError: NaN / Inf が係数や勾配に現れた。Values は先頭5件まで表示。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	shown := e.Values
	if len(shown) > 5 {
		shown = shown[:5]
	}
	parts := make([]string, 0, len(shown)+1)
	for _, v := range shown {
		parts = append(parts, fmt.Sprintf("%.6g", v))
	}
	if len(e.Values) > len(shown) {
		parts = append(parts, "...")
	}
	return fmt.Sprintf("tabautoml: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, strings.Join(parts, ", "))
}

func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

// Sentinels.
var (
	ErrEmptyData      = errors.New("empty data")
	ErrSingularMatrix = errors.New("singular matrix")
)

// Thin re-exports so callers import a single errors package.

func Is(err, target error) bool             { return errors.Is(err, target) }
func As(err error, target interface{}) bool { return errors.As(err, target) }
func New(message string) error              { return errors.New(message) }
func WithStack(err error) error             { return errors.WithStack(err) }

func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// SafeDetails returns the first safe detail recorded on err, which for
// errors built here is the formatted stack trace.
func SafeDetails(err error) string {
	if d := errors.GetSafeDetails(err).SafeDetails; len(d) > 0 {
		return d[0]
	}
	return ""
}
