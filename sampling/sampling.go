// Package sampling decides how much of a large table to keep before the
// expensive setup and comparison stages, and draws the sample.
package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

const (
	// LargeDatasetRows is the row count above which a table is sampled
	// automatically and above which Auto targets this many rows.
	LargeDatasetRows = 100_000

	// DefaultRandomState seeds the sampler when Config.RandomState is nil.
	DefaultRandomState = 42

	// defaultAutoFraction is used by Auto for tables at or below LargeDatasetRows.
	defaultAutoFraction = 0.5

	// Auto is clamped to [minAutoFraction, maxAutoFraction] so that rounding
	// never yields an empty or a full sample.
	minAutoFraction = 0.01
	maxAutoFraction = 0.99
)

// Fraction is either Auto or an explicit fraction of rows. The zero value is Auto.
type Fraction struct {
	explicit bool
	value    float64
}

// Auto selects the fraction from the row count with AutoFraction.
func Auto() Fraction { return Fraction{} }

// Explicit selects a fixed fraction of rows. It is validated when resolved.
func Explicit(f float64) Fraction { return Fraction{explicit: true, value: f} }

// IsAuto reports whether the fraction is Auto.
func (f Fraction) IsAuto() bool { return !f.explicit }

// Value returns the explicit fraction; ok is false for Auto.
func (f Fraction) Value() (v float64, ok bool) { return f.value, f.explicit }

// String renders "auto" or the explicit value.
func (f Fraction) String() string {
	if f.IsAuto() {
		return "auto"
	}
	return strconv.FormatFloat(f.value, 'f', -1, 64)
}

// Resolve returns the fraction to use for a table with the given number of rows.
func (f Fraction) Resolve(rows int) (float64, error) {
	v := f.value
	if f.IsAuto() {
		v = AutoFraction(rows)
	}
	if math.IsNaN(v) || v <= 0 || v >= 1 {
		return 0, errors.NewValidationError("frac", "must be in (0, 1)", v)
	}
	return v, nil
}

// ParseFraction parses the textual form used in experiment files and on the
// command line: "auto" (or empty) or a number.
func ParseFraction(s string) (Fraction, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return Auto(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Fraction{}, errors.NewValidationError("frac", `must be "auto" or a number`, s)
	}
	return Explicit(v), nil
}

// FractionFromValue converts a decoded YAML/HCL value (string, float or int).
func FractionFromValue(v interface{}) (Fraction, error) {
	switch x := v.(type) {
	case nil:
		return Auto(), nil
	case Fraction:
		return x, nil
	case string:
		return ParseFraction(x)
	case float64:
		return Explicit(x), nil
	case float32:
		return Explicit(float64(x)), nil
	case int:
		return Explicit(float64(x)), nil
	default:
		return Fraction{}, errors.NewValidationError("frac", `must be "auto" or a number`, fmt.Sprintf("%v", v))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Fraction) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fraction) UnmarshalText(text []byte) error {
	parsed, err := ParseFraction(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// AutoFraction returns LargeDatasetRows/rows rounded to two decimals for
// tables above LargeDatasetRows, and 0.5 otherwise. The result stays within
// [0.01, 0.99].
func AutoFraction(rows int) float64 {
	if rows <= LargeDatasetRows {
		return defaultAutoFraction
	}
	f := decimal.NewFromInt(LargeDatasetRows).
		Div(decimal.NewFromInt(int64(rows))).
		Round(2).
		InexactFloat64()
	switch {
	case f < minAutoFraction:
		return minAutoFraction
	case f > maxAutoFraction:
		return maxAutoFraction
	}
	return f
}

// Config holds the sampling options of an experiment.
type Config struct {
	// Frac is the fraction of rows to keep; the zero value is Auto.
	Frac Fraction

	// RandomState seeds the sampler; nil selects DefaultRandomState.
	// 0 is a seed like any other.
	RandomState *int
}

// Int returns a pointer to v, for Config.RandomState.
func Int(v int) *int { return &v }

// DefaultConfig is Auto with the default seed.
func DefaultConfig() Config {
	return Config{Frac: Auto(), RandomState: Int(DefaultRandomState)}
}

// Seed returns the effective random state.
func (c Config) Seed() int {
	if c.RandomState == nil {
		return DefaultRandomState
	}
	return *c.RandomState
}

// ShouldSample reports whether the orchestrator samples a table: always when
// it has more than LargeDatasetRows rows, and whenever the caller supplied a
// sampling config.
func ShouldSample(rows int, configured bool) bool {
	return configured || rows > LargeDatasetRows
}

// Sample draws round(rows*f) rows without replacement, keeping their original
// order, columns and index. The same seed always selects the same rows.
// The result is a strict, non-empty subset of the input.
func Sample(frame *dataset.Frame, cfg Config) (*dataset.Frame, float64, error) {
	rows := frame.NumRows()
	if rows == 0 {
		return nil, 0, errors.Wrap(errors.ErrEmptyData, "sampling")
	}
	frac, err := cfg.Frac.Resolve(rows)
	if err != nil {
		return nil, 0, err
	}

	n := int(math.Round(float64(rows) * frac))
	if n == 0 {
		return nil, 0, errors.NewValidationError("frac",
			fmt.Sprintf("sample of %d rows would be empty", rows), frac)
	}
	if n >= rows {
		return nil, 0, errors.NewValidationError("frac",
			fmt.Sprintf("sample of %d rows would keep every row", rows), frac)
	}

	seed := uint64(cfg.Seed())
	rng := rand.New(rand.NewPCG(seed, seed))
	picked := rng.Perm(rows)[:n]
	sort.Ints(picked)

	return frame.Take(picked), frac, nil
}
