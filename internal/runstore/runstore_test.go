package runstore

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabautoml/automl"
	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/task"
)

func TestCreateAndGet(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs"))
	require.NoError(t, err)

	r, err := s.Create(Record{Data: "titanic.csv", Target: "Survived", Task: task.Classification})
	require.NoError(t, err)
	assert.Len(t, r.ID, 36)
	assert.Equal(t, StatusRunning, r.Status)
	assert.FileExists(t, r.Path(RecordFileName))
	assert.NoFileExists(t, r.Path(RecordFileName+".tmp"))

	got, err := s.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, task.Classification, got.Task)
	assert.Equal(t, r.Dir(), got.Dir())

	// 一意な接頭辞でも引ける
	got, err = s.Get(r.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	var notFound *errors.FileNotFoundError
	_, err = s.Get("does-not-exist")
	assert.True(t, errors.As(err, &notFound))
}

func TestGet_AmbiguousPrefix(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	for _, id := range []string{"abc1", "abc2"} {
		r := &Record{ID: id, Task: task.Regression, dir: filepath.Join(root, id)}
		require.NoError(t, os.MkdirAll(r.dir, 0o755))
		require.NoError(t, s.Save(r))
	}
	var valErr *errors.ValidationError
	_, err = s.Get("abc")
	assert.True(t, errors.As(err, &valErr))
}

func TestCompleteAndList(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	first, err := s.Create(Record{Data: "a.csv", Target: "y", Task: task.Regression})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := s.Create(Record{Data: "b.csv", Target: "y", Task: task.Regression})
	require.NoError(t, err)

	board := &dataset.Frame{Columns: []string{"Model", "MAE"}, Rows: [][]string{{"Linear Regression", "0.1"}}, Index: []string{"lr"}, IndexName: "id"}
	res := &automl.Result{
		RunID:       second.ID,
		Task:        task.Regression,
		Sampled:     true,
		SampleFrac:  0.5,
		Rows:        100,
		Leaderboard: board,
		Model: &engine.Model{
			ID: "lr", Name: "Linear Regression", Task: task.Regression,
			Scores:  map[string]float64{"MAE": 0.1, "R2": math.NaN()},
			FitTime: 1500 * time.Millisecond,
		},
		PlotPath: filepath.Join(second.Dir(), "residuals.png"),
	}
	second.Complete(res)
	require.NoError(t, s.Save(second))

	first.Fail(errors.New("boom"))
	require.NoError(t, s.Save(first))

	// run.json のないディレクトリは無視
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "stray"), 0o755))

	runs, err := s.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	done := runs[0]
	assert.Equal(t, StatusFinished, done.Status)
	require.NotNil(t, done.FinishedAt)
	assert.True(t, done.Sampled)
	assert.Equal(t, 0.5, done.SampleFrac)
	assert.Equal(t, "residuals.png", done.PlotFile)
	require.NotNil(t, done.Model)
	assert.Equal(t, map[string]float64{"MAE": 0.1}, done.Model.Scores)
	assert.Equal(t, 1.5, done.Model.FitTimeSec)
	require.NotNil(t, done.Leaderboard)
	assert.Equal(t, []string{"lr"}, done.Leaderboard.Frame().Index)

	assert.Equal(t, StatusFailed, runs[1].Status)
	assert.Equal(t, "boom", runs[1].Error)
}

func TestWritePredictions(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	r, err := s.Create(Record{Data: "a.csv", Target: "y", Task: task.Regression})
	require.NoError(t, err)

	f := &dataset.Frame{Columns: []string{"x", "prediction_label"}, Rows: [][]string{{"1", "2.5"}}}
	require.NoError(t, s.WritePredictions(r, f))
	assert.Equal(t, PredictionsFileName, r.PredictionsFile)

	b, err := os.ReadFile(r.Path(PredictionsFileName))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "x,prediction_label"))

	entries, err := os.ReadDir(r.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
}

func TestOpen_Empty(t *testing.T) {
	var valErr *errors.ValidationError
	_, err := Open("")
	assert.True(t, errors.As(err, &valErr))
}
