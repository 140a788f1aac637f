package engine

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/modelselection"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
	"github.com/YuminosukeSato/tabautoml/preprocessing"
	"github.com/YuminosukeSato/tabautoml/task"
)

// SetupInfo summarises a setup run.
type SetupInfo struct {
	Task      task.Task `json:"task"`
	Target    string    `json:"target"`
	SessionID int       `json:"session_id"`

	Rows        int `json:"rows"`
	DroppedRows int `json:"dropped_rows"`
	TrainRows   int `json:"train_rows"`
	TestRows    int `json:"test_rows"`

	Numeric     []string `json:"numeric_features"`
	Categorical []string `json:"categorical_features"`
	Ignored     []string `json:"ignored_features"`
	// Transformed はエンコード後の特徴量名
	Transformed []string `json:"transformed_features"`
	Classes     []string `json:"classes,omitempty"`

	Folds        int    `json:"folds"`
	FoldStrategy string `json:"fold_strategy"`
	Normalize    bool   `json:"normalize"`
}

func (s *SetupInfo) pairs() [][2]string {
	out := [][2]string{
		{"Session id", strconv.Itoa(s.SessionID)},
		{"Target", s.Target},
		{"Target type", s.Task.String()},
		{"Original data rows", strconv.Itoa(s.Rows)},
		{"Rows with missing target", strconv.Itoa(s.DroppedRows)},
		{"Train set rows", strconv.Itoa(s.TrainRows)},
		{"Test set rows", strconv.Itoa(s.TestRows)},
		{"Numeric features", strconv.Itoa(len(s.Numeric))},
		{"Categorical features", strconv.Itoa(len(s.Categorical))},
		{"Ignored features", strings.Join(s.Ignored, ", ")},
		{"Transformed features", strconv.Itoa(len(s.Transformed))},
		{"Normalize", strconv.FormatBool(s.Normalize)},
		{"Fold generator", s.FoldStrategy},
		{"Fold number", strconv.Itoa(s.Folds)},
	}
	if s.Classes != nil {
		out = append(out, [2]string{"Classes", strings.Join(s.Classes, ", ")})
	}
	return out
}

// Setup prepares the experiment: it encodes the target, splits train and
// holdout rows and fits the preprocessing on the train rows. A new Setup
// discards the previous experiment.
func (g *Gonum) Setup(cfg SetupConfig) (*SetupInfo, error) {
	logger, done := g.stageLogger(StageSetup)
	cfg = cfg.resolved(g.task)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rows, target, err := g.encodeTarget(cfg)
	if err != nil {
		return nil, err
	}
	data := cfg.Data
	if len(rows) < data.NumRows() {
		logger.Warn("dropping rows with a missing target",
			log.TargetKey, cfg.Target,
			"dropped", data.NumRows()-len(rows),
		)
		data = data.Take(rows)
	}

	features, err := data.Drop(append([]string{cfg.Target}, cfg.IgnoreFeatures...)...)
	if err != nil {
		return nil, err
	}
	if features.NumCols() == 0 {
		return nil, errors.NewValueError("Setup", "no feature columns left after dropping the target and ignored features")
	}

	var stratify mat.Matrix
	if g.profile.stratify {
		stratify = target.y
	}
	trainIdx, testIdx, err := modelselection.TrainTestSplit(features.NumRows(), stratify, cfg.TrainSize, cfg.seed())
	if err != nil {
		return nil, err
	}

	transformer := preprocessing.NewColumnTransformer(cfg.transformerConfig())
	XTrain, err := transformer.FitTransform(features.Take(trainIdx))
	if err != nil {
		return nil, err
	}
	XTest, err := transformer.Transform(features.Take(testIdx))
	if err != nil {
		return nil, err
	}
	_, yTrain := modelselection.Subset(target.y, target.y, trainIdx)
	_, yTest := modelselection.Subset(target.y, target.y, testIdx)

	pipeline := &Pipeline{
		Target:      cfg.Target,
		Features:    append([]string(nil), transformer.Order...),
		Transformer: transformer,
		Labels:      target.labels,
	}
	info := &SetupInfo{
		Task:         g.task,
		Target:       cfg.Target,
		SessionID:    cfg.seed(),
		Rows:         cfg.Data.NumRows(),
		DroppedRows:  cfg.Data.NumRows() - data.NumRows(),
		TrainRows:    len(trainIdx),
		TestRows:     len(testIdx),
		Numeric:      append([]string(nil), transformer.Numeric...),
		Categorical:  append([]string(nil), transformer.Categorical...),
		Ignored:      cfg.IgnoreFeatures,
		Transformed:  transformer.FeatureNames(),
		Classes:      pipeline.Classes(),
		Folds:        cfg.Folds,
		FoldStrategy: cfg.FoldStrategy,
		Normalize:    cfg.Normalize,
	}

	g.exp = &experiment{
		cfg:      cfg,
		info:     info,
		metrics:  g.profile.metrics(),
		pipeline: pipeline,
		features: features,
		y:        target.y,
		holdout:  data.Take(testIdx),
		XTrain:   XTrain,
		XTest:    XTest,
		yTrain:   yTrain,
		yTest:    yTest,
	}
	g.last = infoFrame(info)

	if !cfg.Silent {
		done(
			log.TargetKey, cfg.Target,
			log.SamplesKey, data.NumRows(),
			log.FeaturesKey, len(info.Transformed),
			log.RandomSeedKey, cfg.seed(),
			"train_rows", info.TrainRows,
			"test_rows", info.TestRows,
		)
	}
	return info, nil
}

type encodedTarget struct {
	y      *mat.VecDense
	labels *preprocessing.LabelEncoder
}

// encodeTarget returns the rows with a target value and the encoded target
// of those rows.
func (g *Gonum) encodeTarget(cfg SetupConfig) ([]int, encodedTarget, error) {
	raw, err := cfg.Data.Column(cfg.Target)
	if err != nil {
		return nil, encodedTarget{}, err
	}
	rows := make([]int, 0, len(raw))
	values := make([]string, 0, len(raw))
	for i, cell := range raw {
		if dataset.IsMissing(cell) {
			continue
		}
		rows = append(rows, i)
		values = append(values, cell)
	}
	if len(values) < 2 {
		return nil, encodedTarget{}, errors.NewValueError("Setup",
			fmt.Sprintf("target %q needs at least 2 non-missing values, got %d", cfg.Target, len(values)))
	}

	if g.task == task.Regression {
		y, err := numericTarget(cfg.Target, values)
		if err != nil {
			return nil, encodedTarget{}, err
		}
		return rows, encodedTarget{y: y}, nil
	}

	enc := preprocessing.NewLabelEncoder()
	y, err := enc.FitTransform(values)
	if err != nil {
		return nil, encodedTarget{}, err
	}
	if len(enc.Classes) < 2 {
		return nil, encodedTarget{}, errors.NewValueError("Setup",
			fmt.Sprintf("target %q has a single class %q", cfg.Target, enc.Classes[0]))
	}
	return rows, encodedTarget{y: y, labels: enc}, nil
}
