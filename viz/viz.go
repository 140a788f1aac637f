// Package viz renders model diagnostics with gonum/plot.
//
// Every renderer writes one image; the format follows the file extension
// (png, svg, pdf, ...). The output directory must exist.
//
//	err := viz.Residuals("runs/abc/residuals.png", yTrue, yPred)
package viz

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// Kinds はPlotModelで選べる図の種類
var Kinds = []string{"residuals", "error", "feature", "confusion_matrix", "auc"}

// Formats はSaveが扱える拡張子
var Formats = []string{"png", "svg", "pdf", "jpg", "jpeg", "eps", "tif", "tiff"}

var (
	pointColor = color.RGBA{R: 20, G: 80, B: 200, A: 200}
	refColor   = color.RGBA{R: 200, G: 30, B: 30, A: 220}
	barColor   = color.RGBA{R: 40, G: 120, B: 40, A: 255}
)

type options struct {
	width, height vg.Length
	title         string
}

// Option configures a renderer.
type Option func(*options)

// WithSize sets the image size. The default is 8x6 inches.
func WithSize(w, h vg.Length) Option {
	return func(o *options) { o.width, o.height = w, h }
}

// WithTitle overrides the default title.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

func apply(def string, opts []Option) options {
	o := options{width: 8 * vg.Inch, height: 6 * vg.Inch, title: def}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CheckFormat はformatが保存可能な拡張子か確認する
func CheckFormat(format string) error {
	f := strings.TrimPrefix(strings.ToLower(format), ".")
	for _, s := range Formats {
		if s == f {
			return nil
		}
	}
	return errors.NewValidationError("format", fmt.Sprintf("must be one of %s", strings.Join(Formats, ", ")), format)
}

func save(p *plot.Plot, o options, path string) error {
	if err := CheckFormat(filepath.Ext(path)); err != nil {
		return err
	}
	if err := p.Save(o.width, o.height, path); err != nil {
		return errors.Wrapf(err, "failed to write plot %s", path)
	}
	return nil
}

func checkPair(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	if len(yTrue) != len(yPred) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

func scatter(p *plot.Plot, xys plotter.XYs, legend string) error {
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	s.GlyphStyle.Color = pointColor
	s.GlyphStyle.Radius = vg.Points(2.2)
	p.Add(s)
	p.Legend.Add(legend, s)
	return nil
}

func line(p *plot.Plot, xys plotter.XYs, c color.Color, legend string) error {
	l, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	l.Color = c
	l.Width = vg.Points(1)
	l.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(l)
	if legend != "" {
		p.Legend.Add(legend, l)
	}
	return nil
}

// Residuals plots yPred against yTrue-yPred with a zero reference line.
func Residuals(path string, yTrue, yPred []float64, opts ...Option) error {
	if err := checkPair("viz.Residuals", yTrue, yPred); err != nil {
		return err
	}
	o := apply("Residuals", opts)
	p := plot.New()
	p.Title.Text = o.title
	p.X.Label.Text = "predicted value"
	p.Y.Label.Text = "residual"
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(yTrue))
	for i := range yTrue {
		xys[i] = plotter.XY{X: yPred[i], Y: yTrue[i] - yPred[i]}
	}
	if err := scatter(p, xys, "residuals"); err != nil {
		return err
	}
	lo, hi := floats.Min(yPred), floats.Max(yPred)
	if err := line(p, plotter.XYs{{X: lo, Y: 0}, {X: hi, Y: 0}}, refColor, ""); err != nil {
		return err
	}
	return save(p, o, path)
}

// PredictionError plots yTrue against yPred with the identity line.
func PredictionError(path string, yTrue, yPred []float64, opts ...Option) error {
	if err := checkPair("viz.PredictionError", yTrue, yPred); err != nil {
		return err
	}
	o := apply("Prediction Error", opts)
	p := plot.New()
	p.Title.Text = o.title
	p.X.Label.Text = "y"
	p.Y.Label.Text = "predicted y"
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(yTrue))
	for i := range yTrue {
		xys[i] = plotter.XY{X: yTrue[i], Y: yPred[i]}
	}
	if err := scatter(p, xys, "predictions"); err != nil {
		return err
	}
	lo := math.Min(floats.Min(yTrue), floats.Min(yPred))
	hi := math.Max(floats.Max(yTrue), floats.Max(yPred))
	if err := line(p, plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}}, refColor, "identity"); err != nil {
		return err
	}
	return save(p, o, path)
}

// FeatureImportance draws the top largest importances as horizontal bars.
// top <= 0 keeps every feature.
func FeatureImportance(path string, names []string, values []float64, top int, opts ...Option) error {
	if len(names) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "viz.FeatureImportance")
	}
	if len(names) != len(values) {
		return errors.NewDimensionError("viz.FeatureImportance", len(names), len(values), 0)
	}
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })
	if top > 0 && top < len(order) {
		order = order[:top]
	}

	// 下から小さい順に並べると一番上が最重要になる
	bars := make(plotter.Values, len(order))
	labels := make([]string, len(order))
	for i, idx := range order {
		k := len(order) - 1 - i
		bars[k] = values[idx]
		labels[k] = names[idx]
	}

	o := apply("Feature Importance", opts)
	p := plot.New()
	p.Title.Text = o.title
	p.X.Label.Text = "importance"

	b, err := plotter.NewBarChart(bars, vg.Points(12))
	if err != nil {
		return err
	}
	b.Horizontal = true
	b.Color = barColor
	b.LineStyle.Width = 0
	p.Add(b)
	p.NominalY(labels...)
	return save(p, o, path)
}

type confusionGrid struct {
	cm *mat.Dense
}

func (g confusionGrid) Dims() (c, r int) {
	r, c = g.cm.Dims()
	return c, r
}

// 行0(正解の先頭クラス)を上に置く
func (g confusionGrid) Z(c, r int) float64 {
	rows, _ := g.cm.Dims()
	return g.cm.At(rows-1-r, c)
}

func (g confusionGrid) X(c int) float64 { return float64(c) }
func (g confusionGrid) Y(r int) float64 { return float64(r) }

// ConfusionMatrix draws cm (rows: true label, columns: predicted label) as a
// heat map with the counts written in every cell.
func ConfusionMatrix(path string, cm *mat.Dense, labels []string, opts ...Option) error {
	if cm == nil {
		return errors.Wrap(errors.ErrEmptyData, "viz.ConfusionMatrix")
	}
	rows, cols := cm.Dims()
	if rows != cols || rows != len(labels) {
		return errors.NewDimensionError("viz.ConfusionMatrix", len(labels), rows, 0)
	}

	o := apply("Confusion Matrix", opts)
	p := plot.New()
	p.Title.Text = o.title
	p.X.Label.Text = "predicted class"
	p.Y.Label.Text = "true class"

	grid := confusionGrid{cm: cm}
	h := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	p.Add(h)

	cells := plotter.XYLabels{
		XYs:    make(plotter.XYs, 0, rows*cols),
		Labels: make([]string, 0, rows*cols),
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(c), Y: float64(r)})
			cells.Labels = append(cells.Labels, fmt.Sprintf("%.0f", grid.Z(c, r)))
		}
	}
	text, err := plotter.NewLabels(cells)
	if err != nil {
		return err
	}
	p.Add(text)

	yLabels := make([]string, rows)
	for i, l := range labels {
		yLabels[rows-1-i] = l
	}
	p.NominalX(labels...)
	p.NominalY(yLabels...)
	return save(p, o, path)
}

// Curve is one ROC curve.
type Curve struct {
	Label string
	FPR   []float64
	TPR   []float64
	AUC   float64
}

// ROC draws one line per curve plus the chance diagonal.
func ROC(path string, curves []Curve, opts ...Option) error {
	if len(curves) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "viz.ROC")
	}
	o := apply("ROC Curves", opts)
	p := plot.New()
	p.Title.Text = o.title
	p.X.Label.Text = "false positive rate"
	p.Y.Label.Text = "true positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	colors := palette.Rainbow(len(curves)+1, palette.Blue, palette.Red, 1, 0.8, 1).Colors()
	for i, c := range curves {
		if len(c.FPR) != len(c.TPR) {
			return errors.NewDimensionError("viz.ROC", len(c.FPR), len(c.TPR), 0)
		}
		xys := make(plotter.XYs, len(c.FPR))
		for k := range c.FPR {
			xys[k] = plotter.XY{X: c.FPR[k], Y: c.TPR[k]}
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		l.Color = colors[i]
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("%s (AUC = %.2f)", c.Label, c.AUC), l)
	}
	if err := line(p, plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}}, refColor, "chance"); err != nil {
		return err
	}
	p.Legend.Top = false
	p.Legend.Left = false
	return save(p, o, path)
}
