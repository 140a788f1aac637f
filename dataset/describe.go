package dataset

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
	KindEmpty       Kind = "empty"
)

// ColumnKind infers the kind of a column from its non-missing cells.
func (f *Frame) ColumnKind(name string) Kind {
	j := f.ColumnIndex(name)
	if j < 0 {
		return KindEmpty
	}
	seen := false
	for _, row := range f.Rows {
		_, ok, err := ParseCell(row[j])
		if err != nil {
			return KindCategorical
		}
		seen = seen || ok
	}
	if !seen {
		return KindEmpty
	}
	return KindNumeric
}

// ColumnSummary describes one column. Numeric statistics are NaN for
// non-numeric columns.
type ColumnSummary struct {
	Name    string  `json:"name"`
	Kind    Kind    `json:"kind"`
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Unique  int     `json:"unique"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Describe summarises every column of the frame.
func Describe(f *Frame) []ColumnSummary {
	out := make([]ColumnSummary, 0, len(f.Columns))
	for j, name := range f.Columns {
		s := ColumnSummary{
			Name: name,
			Kind: f.ColumnKind(name),
			Mean: math.NaN(), Std: math.NaN(), Min: math.NaN(), Max: math.NaN(),
		}
		unique := make(map[string]struct{})
		var values []float64
		for _, row := range f.Rows {
			cell := row[j]
			if IsMissing(cell) {
				s.Missing++
				continue
			}
			s.Count++
			unique[cell] = struct{}{}
			if s.Kind == KindNumeric {
				v, _, _ := ParseCell(cell)
				values = append(values, v)
			}
		}
		s.Unique = len(unique)
		if len(values) > 0 {
			s.Mean, s.Std = stat.MeanStdDev(values, nil)
			if len(values) < 2 {
				s.Std = 0
			}
			s.Min = floats.Min(values)
			s.Max = floats.Max(values)
		}
		out = append(out, s)
	}
	return out
}
