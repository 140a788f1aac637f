package errors

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// 警告は失敗ではない。Warn に渡された値はログへ流れるだけで、
// 呼び出し元の処理は続行する。
var (
	warnMu      sync.Mutex
	warnHandler = func(w error) { fmt.Fprintf(os.Stderr, "tabautoml: warning: %v\n", w) }
	// pkg/log が Setup 時に差し込む (import cycle 回避)
	warnSink func(error)
)

// SetWarningHandler replaces the fallback handler used while no logger is
// installed. Tests pass a no-op to keep output clean.
func SetWarningHandler(handler func(w error)) {
	warnMu.Lock()
	warnHandler = handler
	warnMu.Unlock()
}

// SetZerologWarnFunc routes warnings into the structured logger; nil restores
// the fallback handler.
func SetZerologWarnFunc(fn func(warning error)) {
	warnMu.Lock()
	warnSink = fn
	warnMu.Unlock()
}

// Warn reports a non-fatal condition.
func Warn(w error) {
	warnMu.Lock()
	defer warnMu.Unlock()
	switch {
	case warnSink != nil:
		warnSink(w)
	case warnHandler != nil:
		warnHandler(w)
	}
}

// ConvergenceWarning: 反復上限までに収束しなかった。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message == "" {
		return fmt.Sprintf("%s failed to converge after %d iterations; raise max_iter or loosen tol",
			w.Algorithm, w.Iterations)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
}

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "ConvergenceWarning").
		Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message)
}

func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// UndefinedMetricWarning is raised when a metric has no defined value for the
// given predictions (e.g. precision without any positive prediction) and
// Result is returned instead.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %g due to %s", w.Metric, w.Result, w.Condition)
}

func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "UndefinedMetricWarning").
		Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result)
}

func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}
