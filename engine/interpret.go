package engine

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabautoml/core/parallel"
	"github.com/YuminosukeSato/tabautoml/metrics"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
)

// InterpretModel computes permutation feature importance of m on the
// holdout rows: the mean drop of cfg.Metric over NRepeats shuffles of each
// encoded feature. The result is sorted by descending importance and is
// also the Pull table.
func (g *Gonum) InterpretModel(m *Model, cfg InterpretConfig) ([]FeatureImportance, error) {
	exp, err := g.requireSetup(StageInterpret)
	if err != nil {
		return nil, err
	}
	if err := m.check(StageInterpret); err != nil {
		return nil, err
	}
	_, done := g.stageLogger(StageInterpret)
	cfg = cfg.resolved(g.profile.defaultSort, exp.cfg.seed())
	if cfg.NRepeats < 1 {
		return nil, errors.NewValidationError("n_repeats", "must be >= 1", cfg.NRepeats)
	}
	metric, err := metrics.Lookup(exp.metrics, cfg.Metric)
	if err != nil {
		return nil, err
	}
	X, y, err := g.holdoutMatrix(exp, m)
	if err != nil {
		return nil, err
	}

	imp, err := permutationImportance(m, X, y, metric, cfg, exp.cfg.NJobs)
	if err != nil {
		return nil, err
	}
	g.last = importanceFrame(imp, DefaultRound)
	done(log.ModelIDKey, m.ID, log.MetricKey, metric.Name, log.FeaturesKey, len(imp))
	return imp, nil
}

// permutationImportance shuffles one column at a time. Column j repeat r is
// shuffled with seed (RandomState, j*NRepeats+r) so results do not depend on
// the number of workers.
func permutationImportance(m *Model, X *mat.Dense, y *mat.VecDense, metric metrics.Metric, cfg InterpretConfig, workers int) ([]FeatureImportance, error) {
	nClasses := len(m.Pipeline.Classes())
	baseline, err := score(metric, m.Estimator, X, y, nClasses)
	if err != nil {
		return nil, err
	}

	names := m.Pipeline.FeatureNames()
	rows, cols := X.Dims()
	if len(names) != cols {
		return nil, errors.NewDimensionError("InterpretModel", len(names), cols, 1)
	}
	out := make([]FeatureImportance, cols)
	err = parallel.ForEach(cols, workers, func(j int) error {
		return errors.SafeExecute(fmt.Sprintf("permutation_importance.%s", names[j]), func() error {
			Xp := mat.DenseCopyOf(X)
			original := mat.Col(nil, j, X)
			drops := make([]float64, cfg.NRepeats)
			for r := range drops {
				rng := rand.New(rand.NewPCG(uint64(*cfg.RandomState), uint64(j*cfg.NRepeats+r)))
				perm := rng.Perm(rows)
				for i, p := range perm {
					Xp.Set(i, j, original[p])
				}
				s, err := score(metric, m.Estimator, Xp, y, nClasses)
				if err != nil {
					return err
				}
				if metric.GreaterIsBetter {
					drops[r] = baseline - s
				} else {
					drops[r] = s - baseline
				}
			}
			mean, std := stat.PopMeanStdDev(drops, nil)
			out[j] = FeatureImportance{Feature: names[j], Mean: mean, Std: std}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Mean > out[b].Mean })
	return out, nil
}
