package cli

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/YuminosukeSato/tabautoml/dataset"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printFrame writes f as an aligned table, index first.
func printFrame(w io.Writer, f *dataset.Frame) error {
	tw := newTabWriter(w)
	header := f.Columns
	if f.HasIndex() {
		header = append([]string{f.IndexName}, f.Columns...)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i, row := range f.Rows {
		cells := row
		if f.HasIndex() {
			cells = append([]string{f.Index[i]}, row...)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// printPairs writes key/value lines aligned on the value.
func printPairs(w io.Writer, pairs [][2]string) error {
	tw := newTabWriter(w)
	for _, p := range pairs {
		fmt.Fprintf(tw, "%s:\t%s\n", p[0], p[1])
	}
	return tw.Flush()
}

func formatNumber(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).Round(places).String()
}
