package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/preprocessing"
	"github.com/YuminosukeSato/tabautoml/task"
)

// Pipeline turns raw rows into the feature matrix a model was trained on
// and decodes its predictions.
type Pipeline struct {
	Target      string
	Features    []string
	Transformer *preprocessing.ColumnTransformer
	// Labels is nil for regression.
	Labels *preprocessing.LabelEncoder
}

// Transform encodes f with the fitted transformer. Every training feature
// must be a column of f; other columns are ignored.
func (p *Pipeline) Transform(f *dataset.Frame) (*mat.Dense, error) {
	if p == nil || p.Transformer == nil {
		return nil, errors.NewNotFittedError("Pipeline", "Transform")
	}
	for _, name := range p.Features {
		if !f.HasColumn(name) {
			return nil, errors.NewColumnNotFoundError(name, "feature")
		}
	}
	return p.Transformer.Transform(f)
}

// FeatureNames returns the encoded feature names.
func (p *Pipeline) FeatureNames() []string {
	return p.Transformer.FeatureNames()
}

// Classes returns the decoded class labels, nil for regression.
func (p *Pipeline) Classes() []string {
	if p.Labels == nil {
		return nil
	}
	return append([]string(nil), p.Labels.Classes...)
}

// EncodeTarget reads the target column of f. Classification labels must
// have been seen during setup.
func (p *Pipeline) EncodeTarget(f *dataset.Frame) (*mat.VecDense, error) {
	raw, err := f.Column(p.Target)
	if err != nil {
		return nil, errors.NewColumnNotFoundError(p.Target, "target")
	}
	if p.Labels != nil {
		return p.Labels.Transform(raw)
	}
	return numericTarget(p.Target, raw)
}

func numericTarget(name string, raw []string) (*mat.VecDense, error) {
	out := mat.NewVecDense(len(raw), nil)
	for i, cell := range raw {
		v, ok, err := dataset.ParseCell(cell)
		if err != nil || !ok {
			return nil, errors.NewValueError("EncodeTarget",
				fmt.Sprintf("target %q must be numeric for regression, got %q at row %d", name, cell, i))
		}
		out.SetVec(i, v)
	}
	return out, nil
}

// Model is the handle the stages pass around. It owns its pipeline so a
// saved model predicts on raw rows without the experiment.
type Model struct {
	ID   string
	Name string
	Task task.Task

	Estimator model.Estimator
	// Params は既定値から変更したハイパーパラメータ
	Params map[string]interface{}

	// Scores are the mean cross validation scores per metric.
	Scores  map[string]float64
	FitTime time.Duration

	Finalized bool
	Pipeline  *Pipeline
}

// Score returns the stored score of metric, NaN when absent.
func (m *Model) Score(metric string) float64 {
	if v, ok := m.Scores[metric]; ok {
		return v
	}
	return math.NaN()
}

func (m *Model) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s(%s", m.Name, m.ID)
	keys := make([]string, 0, len(m.Params))
	for k := range m.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ", %s=%v", k, m.Params[k])
	}
	if m.Finalized {
		b.WriteString(", finalized")
	}
	b.WriteString(")")
	return b.String()
}

func (m *Model) check(stage string) error {
	if m == nil {
		return errors.NewValidationError("model", stage+" needs a model", nil)
	}
	if m.Estimator == nil || m.Pipeline == nil {
		return errors.NewNotFittedError(m.Name, stage)
	}
	return nil
}

// FeatureImportance is one row of InterpretModel.
type FeatureImportance struct {
	Feature string  `json:"feature"`
	Mean    float64 `json:"importance_mean"`
	Std     float64 `json:"importance_std"`
}
