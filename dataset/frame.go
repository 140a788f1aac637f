// Package dataset loads tabular files into an in-memory Frame.
//
// Cells are kept as the raw strings read from the file. Numeric
// interpretation, imputation and encoding happen downstream in the
// preprocessing package so that the loader never guesses types.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// missingMarkers are the cell values treated as missing.
var missingMarkers = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "NaN": {}, "nan": {}, "null": {}, "NULL": {}, "None": {},
}

// IsMissing reports whether a raw cell is one of the missing-value markers.
func IsMissing(cell string) bool {
	_, ok := missingMarkers[strings.TrimSpace(cell)]
	return ok
}

// Frame is a two-dimensional table of rows by named columns.
// When an index column was applied it is held in Index and is not part of Columns.
type Frame struct {
	Name      string
	Columns   []string
	Rows      [][]string
	Index     []string
	IndexName string
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int { return len(f.Rows) }

// NumCols returns the number of columns, excluding the index.
func (f *Frame) NumCols() int { return len(f.Columns) }

// HasIndex reports whether an index column was applied.
func (f *Frame) HasIndex() bool { return f.IndexName != "" }

// ColumnIndex returns the position of name in Columns, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether name is a column of the frame.
func (f *Frame) HasColumn(name string) bool {
	return f.ColumnIndex(name) >= 0
}

// Column returns a copy of the raw values of a column.
func (f *Frame) Column(name string) ([]string, error) {
	j := f.ColumnIndex(name)
	if j < 0 {
		return nil, errors.NewColumnNotFoundError(name, "")
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[j]
	}
	return out, nil
}

// Float64Column parses a column as numbers. Missing cells become NaN; any
// other non-numeric cell is a ValueError.
func (f *Frame) Float64Column(name string) ([]float64, error) {
	raw, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, cell := range raw {
		v, ok, err := ParseCell(cell)
		if err != nil {
			return nil, errors.NewValueError("Float64Column",
				fmt.Sprintf("column %q row %d: %q is not numeric", name, i, cell))
		}
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out, nil
}

// ParseCell parses a numeric cell. ok is false for missing markers.
func ParseCell(cell string) (v float64, ok bool, err error) {
	if IsMissing(cell) {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// Take returns a new frame holding the given rows in the given order.
func (f *Frame) Take(rows []int) *Frame {
	out := &Frame{
		Name:      f.Name,
		Columns:   append([]string(nil), f.Columns...),
		Rows:      make([][]string, len(rows)),
		IndexName: f.IndexName,
	}
	if f.Index != nil {
		out.Index = make([]string, len(rows))
	}
	for k, i := range rows {
		out.Rows[k] = append([]string(nil), f.Rows[i]...)
		if f.Index != nil {
			out.Index[k] = f.Index[i]
		}
	}
	return out
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	rows := make([]int, len(f.Rows))
	for i := range rows {
		rows[i] = i
	}
	return f.Take(rows)
}

// Drop returns a copy of the frame without the named columns.
func (f *Frame) Drop(cols ...string) (*Frame, error) {
	drop := make(map[int]bool, len(cols))
	for _, c := range cols {
		j := f.ColumnIndex(c)
		if j < 0 {
			return nil, errors.NewColumnNotFoundError(c, "")
		}
		drop[j] = true
	}

	out := &Frame{Name: f.Name, IndexName: f.IndexName, Rows: make([][]string, len(f.Rows))}
	if f.Index != nil {
		out.Index = append([]string(nil), f.Index...)
	}
	keep := make([]int, 0, len(f.Columns)-len(drop))
	for j, c := range f.Columns {
		if !drop[j] {
			keep = append(keep, j)
			out.Columns = append(out.Columns, c)
		}
	}
	for i, row := range f.Rows {
		r := make([]string, len(keep))
		for k, j := range keep {
			r[k] = row[j]
		}
		out.Rows[i] = r
	}
	return out, nil
}

// WithColumn returns a copy of the frame with values set as column name.
// An existing column of that name is replaced, otherwise it is appended.
func (f *Frame) WithColumn(name string, values []string) (*Frame, error) {
	if len(values) != len(f.Rows) {
		return nil, errors.NewDimensionError("WithColumn", len(f.Rows), len(values), 0)
	}
	out := f.Clone()
	j := out.ColumnIndex(name)
	if j < 0 {
		out.Columns = append(out.Columns, name)
		for i := range out.Rows {
			out.Rows[i] = append(out.Rows[i], values[i])
		}
		return out, nil
	}
	for i := range out.Rows {
		out.Rows[i][j] = values[i]
	}
	return out, nil
}

// WriteCSV writes the frame as CSV with a header row. The index, when
// present, is written as the first column.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := f.Columns
	if f.HasIndex() {
		header = append([]string{f.IndexName}, f.Columns...)
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for i, row := range f.Rows {
		rec := row
		if f.HasIndex() {
			rec = append([]string{f.Index[i]}, row...)
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "write csv row %d", i)
		}
	}
	cw.Flush()
	return cw.Error()
}
