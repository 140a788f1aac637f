package engine

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/modelselection"
)

// formatFloat rounds v half away from zero to places decimals.
// decimal.NewFromFloat panics on NaN and Inf, which are written like strconv.
func formatFloat(v float64, places int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).Round(int32(places)).String()
}

// roundFloat is formatFloat as a number.
func roundFloat(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64()
}

func metricNames(set []metrics.Metric) []string {
	out := make([]string, len(set))
	for i, m := range set {
		out[i] = m.Name
	}
	return out
}

// leaderboardRow is one evaluated candidate of CompareModels.
type leaderboardRow struct {
	entry  Entry
	result *modelselection.CVResult
	scores map[string]float64
}

const fitTimeColumn = "TT (Sec)"

// leaderboardFrame renders rows indexed by model id.
func leaderboardFrame(rows []leaderboardRow, set []metrics.Metric, places int) *dataset.Frame {
	cols := append([]string{"Model"}, metricNames(set)...)
	cols = append(cols, fitTimeColumn)
	f := &dataset.Frame{Columns: cols, IndexName: "ID"}
	for _, r := range rows {
		row := make([]string, 0, len(cols))
		row = append(row, r.entry.Name)
		for _, m := range set {
			row = append(row, formatFloat(r.scores[m.Name], places))
		}
		row = append(row, formatFloat(r.result.MeanFitTime().Seconds(), 2))
		f.Rows = append(f.Rows, row)
		f.Index = append(f.Index, r.entry.ID)
	}
	return f
}

// foldFrame renders per fold scores followed by Mean and Std rows.
func foldFrame(res *modelselection.CVResult, set []metrics.Metric, places int) *dataset.Frame {
	f := &dataset.Frame{Columns: metricNames(set), IndexName: "Fold"}
	row := func(label string, value func(name string) float64) {
		cells := make([]string, len(set))
		for j, m := range set {
			cells[j] = formatFloat(value(m.Name), places)
		}
		f.Rows = append(f.Rows, cells)
		f.Index = append(f.Index, label)
	}
	for i := 0; i < res.NFolds; i++ {
		row(strconv.Itoa(i), func(name string) float64 {
			s := res.Scores[name]
			if i < len(s) {
				return s[i]
			}
			return math.NaN()
		})
	}
	row("Mean", res.Mean)
	row("Std", res.Std)
	return f
}

// scoreFrame is a single row of holdout scores for the named model.
func scoreFrame(name string, scores map[string]float64, set []metrics.Metric, places int) *dataset.Frame {
	cols := append([]string{"Model"}, metricNames(set)...)
	row := []string{name}
	for _, m := range set {
		row = append(row, formatFloat(scores[m.Name], places))
	}
	return &dataset.Frame{Columns: cols, Rows: [][]string{row}}
}

func infoFrame(info *SetupInfo) *dataset.Frame {
	f := &dataset.Frame{Columns: []string{"Description", "Value"}}
	for _, kv := range info.pairs() {
		f.Rows = append(f.Rows, []string{kv[0], kv[1]})
	}
	return f
}

func importanceFrame(imp []FeatureImportance, places int) *dataset.Frame {
	f := &dataset.Frame{Columns: []string{"Feature", "Importance", "Std"}}
	for _, fi := range imp {
		f.Rows = append(f.Rows, []string{fi.Feature, formatFloat(fi.Mean, places), formatFloat(fi.Std, places)})
	}
	return f
}
