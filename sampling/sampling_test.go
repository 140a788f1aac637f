package sampling

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

func makeFrame(rows int) *dataset.Frame {
	f := &dataset.Frame{
		Columns:   []string{"x", "y"},
		Rows:      make([][]string, rows),
		Index:     make([]string, rows),
		IndexName: "id",
	}
	for i := 0; i < rows; i++ {
		f.Rows[i] = []string{strconv.Itoa(i), strconv.Itoa(i % 2)}
		f.Index[i] = "r" + strconv.Itoa(i)
	}
	return f
}

func TestAutoFraction(t *testing.T) {
	tests := []struct {
		rows int
		want float64
	}{
		{10, 0.5},
		{LargeDatasetRows, 0.5},
		{LargeDatasetRows + 1, 0.99},
		{150_000, 0.67},
		{250_000, 0.4},
		{300_000, 0.33},
		{1_000_000, 0.1},
		{50_000_000, 0.01},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.rows), func(t *testing.T) {
			assert.Equal(t, tt.want, AutoFraction(tt.rows))
		})
	}
}

func TestFraction(t *testing.T) {
	var zero Fraction
	assert.True(t, zero.IsAuto())
	assert.Equal(t, "auto", zero.String())

	f := Explicit(0.25)
	v, ok := f.Value()
	assert.True(t, ok)
	assert.Equal(t, 0.25, v)
	assert.Equal(t, "0.25", f.String())

	parsed, err := ParseFraction("AUTO")
	require.NoError(t, err)
	assert.True(t, parsed.IsAuto())

	parsed, err = ParseFraction("0.33")
	require.NoError(t, err)
	assert.Equal(t, Explicit(0.33), parsed)

	_, err = ParseFraction("half")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	fromValue, err := FractionFromValue(0.2)
	require.NoError(t, err)
	assert.Equal(t, Explicit(0.2), fromValue)

	fromValue, err = FractionFromValue("auto")
	require.NoError(t, err)
	assert.True(t, fromValue.IsAuto())

	_, err = FractionFromValue([]int{1})
	assert.Error(t, err)
}

func TestFraction_Resolve(t *testing.T) {
	for _, bad := range []float64{0, -0.1, 1, 1.5, math.NaN()} {
		_, err := Explicit(bad).Resolve(100)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve), "frac %v", bad)
	}
	got, err := Auto().Resolve(10)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got)
}

func TestSample_ExplicitFraction(t *testing.T) {
	frame := makeFrame(891)

	sample, frac, err := Sample(frame, Config{Frac: Explicit(0.1)})
	require.NoError(t, err)
	assert.Equal(t, 0.1, frac)
	assert.Equal(t, 89, sample.NumRows())
	assert.Equal(t, frame.Columns, sample.Columns)
	assert.Equal(t, "id", sample.IndexName)
	assert.Len(t, sample.Index, 89)

	// strict subset, original order preserved
	seen := map[string]bool{}
	prev := -1
	for i, row := range sample.Rows {
		n, err := strconv.Atoi(row[0])
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		prev = n
		assert.Equal(t, "r"+row[0], sample.Index[i])
		assert.False(t, seen[row[0]])
		seen[row[0]] = true
	}
}

func TestSample_Deterministic(t *testing.T) {
	frame := makeFrame(500)

	a, _, err := Sample(frame, Config{Frac: Explicit(0.3), RandomState: Int(7)})
	require.NoError(t, err)
	b, _, err := Sample(frame, Config{Frac: Explicit(0.3), RandomState: Int(7)})
	require.NoError(t, err)
	c, _, err := Sample(frame, Config{Frac: Explicit(0.3), RandomState: Int(8)})
	require.NoError(t, err)

	assert.Equal(t, a.Index, b.Index)
	assert.NotEqual(t, a.Index, c.Index)

	// nil は既定の seed
	d, _, err := Sample(frame, Config{Frac: Explicit(0.3)})
	require.NoError(t, err)
	e, _, err := Sample(frame, Config{Frac: Explicit(0.3), RandomState: Int(DefaultRandomState)})
	require.NoError(t, err)
	assert.Equal(t, d.Index, e.Index)
}

func TestSample_ZeroSeedIsDistinct(t *testing.T) {
	frame := makeFrame(500)

	zero, _, err := Sample(frame, Config{Frac: Explicit(0.3), RandomState: Int(0)})
	require.NoError(t, err)
	again, _, err := Sample(frame, Config{Frac: Explicit(0.3), RandomState: Int(0)})
	require.NoError(t, err)
	def, _, err := Sample(frame, Config{Frac: Explicit(0.3)})
	require.NoError(t, err)

	assert.Equal(t, zero.Index, again.Index)
	assert.NotEqual(t, zero.Index, def.Index)
	assert.Equal(t, 0, Config{RandomState: Int(0)}.Seed())
	assert.Equal(t, DefaultRandomState, Config{}.Seed())
}

func TestSample_Auto(t *testing.T) {
	small := makeFrame(80)
	sample, frac, err := Sample(small, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.5, frac)
	assert.Equal(t, 40, sample.NumRows())

	large := makeFrame(120_000)
	sample, frac, err = Sample(large, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.83, frac)
	assert.InDelta(t, float64(LargeDatasetRows)/120_000, frac, 0.005)
	assert.Equal(t, 99_600, sample.NumRows())
}

func TestSample_Errors(t *testing.T) {
	var ve *errors.ValidationError

	_, _, err := Sample(makeFrame(3), Config{Frac: Explicit(0.1)})
	assert.True(t, errors.As(err, &ve), "empty sample")

	_, _, err = Sample(makeFrame(3), Config{Frac: Explicit(0.9)})
	assert.True(t, errors.As(err, &ve), "sample keeps every row")

	_, _, err = Sample(makeFrame(10), Config{Frac: Explicit(2)})
	assert.True(t, errors.As(err, &ve))

	_, _, err = Sample(makeFrame(0), DefaultConfig())
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestShouldSample(t *testing.T) {
	assert.False(t, ShouldSample(LargeDatasetRows, false))
	assert.True(t, ShouldSample(LargeDatasetRows+1, false))
	assert.True(t, ShouldSample(10, true))
}
