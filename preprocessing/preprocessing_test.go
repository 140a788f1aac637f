package preprocessing

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})
	s := NewStandardScalerDefault()

	_, err := s.Transform(X)
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	out, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")
	assert.InDelta(t, 0, out.At(0, 1), 1e-12)

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{2, 4, 6})
	m := NewMinMaxScalerDefault()
	out, err := m.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, mat.Col(nil, 0, out))

	back, err := m.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	bad := NewMinMaxScaler([2]float64{1, 1})
	assert.Error(t, bad.Fit(X))
}

func TestSimpleImputer(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(4, 2, []float64{
		1, nan,
		nan, 5,
		3, 5,
		8, 1,
	})
	tests := []struct {
		strategy string
		want     [2]float64
	}{
		{ImputeMean, [2]float64{4, 11.0 / 3.0}},
		{ImputeMedian, [2]float64{3, 5}},
		{ImputeZero, [2]float64{0, 0}},
		{ImputeMode, [2]float64{1, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			imp := NewSimpleImputer(tt.strategy)
			out, err := imp.FitTransform(X)
			require.NoError(t, err)
			assert.InDelta(t, tt.want[0], out.At(1, 0), 1e-12)
			assert.InDelta(t, tt.want[1], out.At(0, 1), 1e-12)
			assert.Equal(t, 8.0, out.At(3, 0))
		})
	}

	imp := NewSimpleImputer("max")
	var ve *errors.ValidationError
	assert.True(t, errors.As(imp.Fit(X), &ve))
}

func TestLabelEncoder(t *testing.T) {
	enc := NewLabelEncoder()
	codes, err := enc.FitTransform([]string{"yes", "no", "yes", "maybe"})
	require.NoError(t, err)
	assert.Equal(t, []string{"maybe", "no", "yes"}, enc.Classes)
	assert.Equal(t, []float64{2, 1, 2, 0}, codes.RawVector().Data)

	labels, err := enc.InverseTransform(codes)
	require.NoError(t, err)
	assert.Equal(t, []string{"yes", "no", "yes", "maybe"}, labels)

	_, err = enc.Transform([]string{"never"})
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	_, err = enc.InverseTransform(mat.NewVecDense(1, []float64{7}))
	assert.Error(t, err)
}

func TestOneHotAndOrdinal(t *testing.T) {
	oh := NewOneHotEncoder()
	require.NoError(t, oh.Fit([]string{"b", "a", "b"}))
	out, err := oh.Transform([]string{"a", "b", "z"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 1, 0, 0}, out.RawMatrix().Data)
	assert.Equal(t, []string{"c_a", "c_b"}, oh.FeatureNames("c"))

	ord := NewOrdinalEncoder()
	require.NoError(t, ord.Fit([]string{"x", "y"}))
	codes, err := ord.Transform([]string{"y", "x", "q"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, -1}, codes)
}

func TestMostFrequent(t *testing.T) {
	assert.Equal(t, "b", MostFrequent([]string{"a", "b", "b", "c"}))
	assert.Equal(t, "a", MostFrequent([]string{"b", "a"}))
}

const mixedCSV = `age,city,score,empty
22,Tokyo,1.5,
,Osaka,2.5,
40,Tokyo,,
35,,4.0,
`

func loadMixed(t *testing.T) *dataset.Frame {
	t.Helper()
	f, err := dataset.LoadReader(strings.NewReader(mixedCSV), dataset.WithName("mixed.csv"))
	require.NoError(t, err)
	return f
}

func TestColumnTransformer_FitTransform(t *testing.T) {
	f := loadMixed(t)
	ct := NewColumnTransformer(ColumnTransformerConfig{})
	X, err := ct.FitTransform(f)
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "score"}, ct.Numeric)
	assert.Equal(t, []string{"city"}, ct.Categorical)
	assert.Equal(t, []string{"age", "city_Osaka", "city_Tokyo", "score"}, ct.FeatureNames())

	r, c := X.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 4, c)
	assert.InDelta(t, 97.0/3.0, X.At(1, 0), 1e-12, "age imputed with mean")
	assert.Equal(t, 1.0, X.At(3, 2), "missing city imputed with mode Tokyo")
	assert.InDelta(t, 8.0/3.0, X.At(2, 3), 1e-12)

	again, err := ct.Transform(f)
	require.NoError(t, err)
	assert.True(t, mat.Equal(X, again))
}

func TestColumnTransformer_OrdinalAndNormalize(t *testing.T) {
	f := loadMixed(t)
	ct := NewColumnTransformer(ColumnTransformerConfig{
		MaxEncodingOHE:        1,
		CategoricalImputation: ImputeConstant,
		Normalize:             true,
		NormalizeMethod:       NormalizeMinMax,
	})
	X, err := ct.FitTransform(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "city", "score"}, ct.FeatureNames())
	require.Contains(t, ct.Ordinal, "city")
	assert.Equal(t, []string{"Osaka", "Tokyo", "not_available"}, ct.Ordinal["city"].Categories)
	col := mat.Col(nil, 1, X)
	assert.Equal(t, []float64{0.5, 0, 0.5, 1}, col)
}

func TestColumnTransformer_Errors(t *testing.T) {
	f := loadMixed(t)

	ct := NewColumnTransformer(ColumnTransformerConfig{NumericFeatures: []string{"nope"}})
	_, err := ct.FitTransform(f)
	var cnf *errors.ColumnNotFoundError
	assert.True(t, errors.As(err, &cnf))

	ct = NewColumnTransformer(ColumnTransformerConfig{NumericFeatures: []string{"city"}})
	_, err = ct.FitTransform(f)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	ct = NewColumnTransformer(ColumnTransformerConfig{})
	_, err = ct.Transform(f)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, ct.Fit(f))
	dropped, err := f.Drop("city")
	require.NoError(t, err)
	_, err = ct.Transform(dropped)
	assert.True(t, errors.As(err, &cnf))
}

func TestColumnTransformer_GobRoundTrip(t *testing.T) {
	f := loadMixed(t)
	ct := NewColumnTransformer(ColumnTransformerConfig{Normalize: true})
	X, err := ct.FitTransform(f)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(ct, &buf))
	var loaded ColumnTransformer
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	again, err := loaded.Transform(f)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, again, 1e-12))
}
