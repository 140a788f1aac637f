package automl

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
	"github.com/YuminosukeSato/tabautoml/sampling"
	"github.com/YuminosukeSato/tabautoml/task"
)

var titanicPath = filepath.Join("..", "dataset", "testdata", "titanic.csv")

// fakeModule records the stage calls it receives.
type fakeModule struct {
	calls []string
	setup engine.SetupConfig
	err   map[string]error
	model *engine.Model
}

func newFake() *fakeModule {
	return &fakeModule{
		err:   map[string]error{},
		model: &engine.Model{ID: "lr", Name: "Logistic Regression"},
	}
}

func (f *fakeModule) factory(opts ...engine.Option) engine.Module { return f }

func (f *fakeModule) call(stage string) error {
	f.calls = append(f.calls, stage)
	return f.err[stage]
}

func (f *fakeModule) Task() task.Task { return task.Classification }

func (f *fakeModule) Setup(cfg engine.SetupConfig) (*engine.SetupInfo, error) {
	f.setup = cfg
	if err := f.call(engine.StageSetup); err != nil {
		return nil, err
	}
	return &engine.SetupInfo{Target: cfg.Target, Rows: cfg.Data.NumRows()}, nil
}

func (f *fakeModule) CompareModels(engine.CompareConfig) ([]*engine.Model, error) {
	if err := f.call(engine.StageCompare); err != nil {
		return nil, err
	}
	return []*engine.Model{f.model}, nil
}

func (f *fakeModule) CreateModel(engine.CreateConfig) (*engine.Model, error) {
	return f.model, f.call(engine.StageCreate)
}

func (f *fakeModule) TuneModel(m *engine.Model, _ engine.TuneConfig) (*engine.Model, error) {
	if err := f.call(engine.StageTune); err != nil {
		return nil, err
	}
	tuned := *m
	tuned.Params = map[string]interface{}{"C": 10.0}
	return &tuned, nil
}

func (f *fakeModule) FinalizeModel(m *engine.Model, _ engine.FinalizeConfig) (*engine.Model, error) {
	if err := f.call(engine.StageFinalize); err != nil {
		return nil, err
	}
	final := *m
	final.Finalized = true
	return &final, nil
}

func (f *fakeModule) PredictModel(*engine.Model, engine.PredictConfig) (*dataset.Frame, error) {
	if err := f.call(engine.StagePredict); err != nil {
		return nil, err
	}
	return &dataset.Frame{Columns: []string{engine.LabelColumn}, Rows: [][]string{{"1"}}}, nil
}

func (f *fakeModule) PlotModel(*engine.Model, engine.PlotConfig) (string, error) {
	return "auc.png", f.call(engine.StagePlot)
}

func (f *fakeModule) InterpretModel(*engine.Model, engine.InterpretConfig) ([]engine.FeatureImportance, error) {
	return nil, f.call(engine.StageInterpret)
}

func (f *fakeModule) SaveModel(*engine.Model, string) error { return f.call(engine.StageSave) }

func (f *fakeModule) LoadModel(string) (*engine.Model, error) {
	return f.model, f.call(engine.StageLoad)
}

func (f *fakeModule) Pull() (*dataset.Frame, error) {
	return &dataset.Frame{Columns: []string{"Model"}, Rows: [][]string{{f.model.Name}}}, nil
}

func loadTitanic(t *testing.T) *dataset.Frame {
	t.Helper()
	f, err := dataset.Load(titanicPath, dataset.WithIndexColumn("PassengerId"))
	require.NoError(t, err)
	return f
}

func numbered(rows int) *dataset.Frame {
	f := &dataset.Frame{Columns: []string{"x", "y"}}
	for i := 0; i < rows; i++ {
		f.Rows = append(f.Rows, []string{fmt.Sprint(i), fmt.Sprint(i % 2)})
	}
	return f
}

func TestNew_TaskResolution(t *testing.T) {
	data := loadTitanic(t)

	tests := []struct {
		name     string
		taskType string
		want     task.Task
		check    func(t *testing.T, err error)
	}{
		{name: "classification", taskType: "classification", want: task.Classification},
		{name: "regression", taskType: "Regression", want: task.Regression},
		{
			name: "missing", taskType: "",
			check: func(t *testing.T, err error) {
				var target *errors.TaskTypeRequiredError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name: "unknown", taskType: "unknown",
			check: func(t *testing.T, err error) {
				var target *errors.UnsupportedTaskTypeError
				require.True(t, errors.As(err, &target))
				assert.Equal(t, "unknown", target.TaskType)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(data, "Survived", tt.taskType)
			if tt.check != nil {
				require.Error(t, err)
				tt.check(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Task())
			assert.Equal(t, tt.want, a.Module().Task())
		})
	}
}

func TestNew_TaskCheckedBeforeTarget(t *testing.T) {
	_, err := New(loadTitanic(t), "missing", "")
	var target *errors.TaskTypeRequiredError
	assert.True(t, errors.As(err, &target))
}

func TestNew_MissingTarget(t *testing.T) {
	_, err := New(loadTitanic(t), "Outcome", "classification")
	var colErr *errors.ColumnNotFoundError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, "Outcome", colErr.Column)
	assert.Equal(t, "target", colErr.Role)

	_, err = New(nil, "y", "regression")
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestNew_RunID(t *testing.T) {
	a, err := New(numbered(10), "y", "regression")
	require.NoError(t, err)
	assert.Len(t, a.RunID(), 36)

	b, err := New(numbered(10), "y", "regression", WithRunID("run-1"))
	require.NoError(t, err)
	assert.Equal(t, "run-1", b.RunID())
}

func TestFromFile(t *testing.T) {
	a, err := FromFile(titanicPath, "PassengerId", "Survived", "classification")
	require.NoError(t, err)
	assert.Equal(t, "PassengerId", a.Data().IndexName)
	assert.NotContains(t, a.Data().Columns, "PassengerId")
	assert.Equal(t, "Survived", a.Target())

	_, err = FromFile(titanicPath, "Id", "Survived", "classification")
	var colErr *errors.ColumnNotFoundError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, "index", colErr.Role)

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.csv"), "", "y", "regression")
	var fileErr *errors.FileNotFoundError
	assert.True(t, errors.As(err, &fileErr))

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.csv"), "", "y", "unknown")
	var taskErr *errors.UnsupportedTaskTypeError
	assert.True(t, errors.As(err, &taskErr))
}

func TestGetSample(t *testing.T) {
	a, err := New(loadTitanic(t), "Survived", "classification")
	require.NoError(t, err)
	rows := a.Data().NumRows()

	sample, frac, err := a.GetSample(sampling.Config{})
	require.NoError(t, err)
	assert.Equal(t, 0.5, frac)
	assert.GreaterOrEqual(t, sample.NumRows(), rows/2)
	assert.Equal(t, "PassengerId", sample.IndexName)

	again, _, err := a.GetSample(sampling.Config{})
	require.NoError(t, err)
	assert.Equal(t, sample.Index, again.Index)

	sample, frac, err = a.GetSample(sampling.Config{Frac: sampling.Explicit(0.25), RandomState: sampling.Int(7)})
	require.NoError(t, err)
	assert.Equal(t, 0.25, frac)
	assert.Equal(t, 20, sample.NumRows())
	// 作業テーブルは変わらない
	assert.Equal(t, rows, a.Data().NumRows())
}

func TestSetup_Defaults(t *testing.T) {
	fake := newFake()
	a, err := New(numbered(10), "y", "classification", WithModuleFactory(fake.factory))
	require.NoError(t, err)

	_, err = a.Setup(engine.SetupConfig{})
	require.NoError(t, err)
	assert.Same(t, a.Data(), fake.setup.Data)
	assert.Equal(t, "y", fake.setup.Target)

	// caller values win
	other := numbered(4)
	_, err = a.Setup(engine.SetupConfig{Data: other, Target: "x"})
	require.NoError(t, err)
	assert.Same(t, other, fake.setup.Data)
	assert.Equal(t, "x", fake.setup.Target)
}

func TestGetBestModel_Sampling(t *testing.T) {
	fake := newFake()
	a, err := New(numbered(40), "y", "classification", WithModuleFactory(fake.factory))
	require.NoError(t, err)

	best, err := a.GetBestModel(ExperimentConfig{})
	require.NoError(t, err)
	assert.Equal(t, "lr", best.ID)
	assert.Equal(t, []string{engine.StageSetup, engine.StageCompare}, fake.calls)
	// small table without a sampling config is used as is
	assert.Equal(t, 40, fake.setup.Data.NumRows())

	_, err = a.GetBestModel(ExperimentConfig{Sampling: &sampling.Config{Frac: sampling.Explicit(0.5)}})
	require.NoError(t, err)
	assert.Equal(t, 20, fake.setup.Data.NumRows())
}

func TestRun_Stages(t *testing.T) {
	fake := newFake()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	a, err := New(numbered(10), "y", "classification",
		WithModuleFactory(fake.factory), WithLogger(logger), WithRunID("run-42"))
	require.NoError(t, err)

	res, err := a.Run(ExperimentConfig{
		Tune:     &engine.TuneConfig{},
		Finalize: &engine.FinalizeConfig{},
		Predict:  &engine.PredictConfig{},
		Plot:     &engine.PlotConfig{},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		engine.StageSetup, engine.StageCompare, engine.StageTune,
		engine.StageFinalize, engine.StagePredict, engine.StagePlot,
	}, fake.calls)
	assert.Equal(t, "run-42", res.RunID)
	assert.False(t, res.Sampled)
	assert.True(t, res.Model.Finalized)
	assert.Equal(t, 10.0, res.Model.Params["C"])
	assert.NotNil(t, res.Leaderboard)
	assert.NotNil(t, res.Predictions)
	assert.NotNil(t, res.Scores)
	assert.Equal(t, "auc.png", res.PlotPath)

	assert.True(t, logger.ContainsField(log.ExperimentIDKey, "run-42"))
	assert.True(t, logger.ContainsField(log.StageKey, engine.StageTune))
	assert.True(t, logger.ContainsField(log.TaskKey, "classification"))
}

func TestRun_SkipsUnsetStages(t *testing.T) {
	fake := newFake()
	a, err := New(numbered(10), "y", "classification", WithModuleFactory(fake.factory))
	require.NoError(t, err)

	res, err := a.Run(ExperimentConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{engine.StageSetup, engine.StageCompare}, fake.calls)
	assert.Nil(t, res.Predictions)
	assert.False(t, res.Model.Finalized)
}

func TestRun_AbortsOnFailure(t *testing.T) {
	fake := newFake()
	boom := errors.NewValueError("tune_model", "boom")
	fake.err[engine.StageTune] = boom
	logger, _ := log.NewTestLogger(log.LevelDebug)
	a, err := New(numbered(10), "y", "classification", WithModuleFactory(fake.factory), WithLogger(logger))
	require.NoError(t, err)

	_, err = a.Run(ExperimentConfig{Tune: &engine.TuneConfig{}, Finalize: &engine.FinalizeConfig{}})
	require.Error(t, err)
	// errors are forwarded as is
	assert.Equal(t, boom, err)
	assert.Equal(t, []string{engine.StageSetup, engine.StageCompare, engine.StageTune}, fake.calls)
	assert.True(t, logger.ContainsMessage("stage failed"))
}

func TestForwards(t *testing.T) {
	fake := newFake()
	a, err := New(numbered(10), "y", "classification", WithModuleFactory(fake.factory))
	require.NoError(t, err)
	m := fake.model

	_, err = a.CreateModel(engine.CreateConfig{Estimator: "lr"})
	require.NoError(t, err)
	_, err = a.InterpretModel(m, engine.InterpretConfig{})
	require.NoError(t, err)
	require.NoError(t, a.SaveModel(m, "model.gob"))
	_, err = a.LoadModel("model.gob")
	require.NoError(t, err)
	frame, err := a.Pull()
	require.NoError(t, err)
	assert.Equal(t, m.Name, frame.Rows[0][0])

	assert.Equal(t, []string{
		engine.StageCreate, engine.StageInterpret, engine.StageSave, engine.StageLoad,
	}, fake.calls)
}

// TestTitanicEndToEnd runs the real classification module on the titanic
// fixture.
func TestTitanicEndToEnd(t *testing.T) {
	a, err := FromFile(titanicPath, "PassengerId", "Survived", "classification")
	require.NoError(t, err)
	assert.Equal(t, 80, a.Data().NumRows())
	assert.Equal(t, "1", a.Data().Index[0])

	sample, _, err := a.GetSample(sampling.Config{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sample.NumRows(), a.Data().NumRows()/2)

	dir := t.TempDir()
	res, err := a.Run(ExperimentConfig{
		Setup: engine.SetupConfig{
			Folds:          3,
			IgnoreFeatures: []string{"Name", "Ticket"},
		},
		Compare:  engine.CompareConfig{Include: []string{"lr", "dt", "nb", "dummy"}},
		Finalize: &engine.FinalizeConfig{},
		Predict:  &engine.PredictConfig{},
		Plot:     &engine.PlotConfig{OutputDir: dir},
	})
	require.NoError(t, err)
	assert.True(t, res.Model.Finalized)
	assert.Equal(t, 4, res.Leaderboard.NumRows())
	assert.Equal(t, res.Setup.TestRows, res.Predictions.NumRows())
	assert.Contains(t, res.Predictions.Columns, engine.LabelColumn)
	assert.True(t, strings.HasPrefix(res.PlotPath, dir))
	assert.FileExists(t, res.PlotPath)

	path := filepath.Join(dir, "model.gob")
	require.NoError(t, a.SaveModel(res.Model, path))
	loaded, err := a.LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, res.Model.ID, loaded.ID)
}
