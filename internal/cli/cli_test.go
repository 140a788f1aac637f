package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabautoml/automl"
	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/internal/runstore"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/sampling"
)

// resetFlags clears values and Changed state left by a previous invocation.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCmd executes the root command with args and returns stdout.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// isolate points HOME at a temp dir so config and runs stay inside the test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func titanicPath(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs("../../dataset/testdata/titanic.csv")
	require.NoError(t, err)
	return p
}

func TestCLI_Models(t *testing.T) {
	isolate(t)

	out, err := executeCmd(t, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "Linear Regression")
	assert.Contains(t, out, "Naive Bayes")

	out, err = executeCmd(t, "models", "--task", "classification")
	require.NoError(t, err)
	assert.Contains(t, out, "Logistic Regression")
	assert.NotContains(t, out, "ridge")

	_, err = executeCmd(t, "models", "--task", "clustering")
	var unsupported *errors.UnsupportedTaskTypeError
	assert.True(t, errors.As(err, &unsupported))
}

func TestCLI_Describe(t *testing.T) {
	isolate(t)

	out, err := executeCmd(t, "describe", titanicPath(t), "--index", "PassengerId")
	require.NoError(t, err)
	assert.Contains(t, out, "titanic.csv: 80 rows x 11 columns")
	assert.Contains(t, out, "Age")
	assert.Contains(t, out, "categorical")

	_, err = executeCmd(t, "describe", filepath.Join(t.TempDir(), "missing.csv"))
	var notFound *errors.FileNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestCLI_Sample(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	explicit := filepath.Join(dir, "explicit.csv")
	_, err := executeCmd(t, "sample", titanicPath(t), "--index", "PassengerId", "--frac", "0.25", "--random-state", "7", "-o", explicit)
	require.NoError(t, err)
	f, err := dataset.Load(explicit, dataset.WithIndexColumn("PassengerId"))
	require.NoError(t, err)
	assert.Equal(t, 20, f.NumRows())

	// 既定は auto で半分
	out, err := executeCmd(t, "sample", titanicPath(t))
	require.NoError(t, err)
	f, err = dataset.LoadReader(strings.NewReader(out), dataset.WithName("stdout.csv"))
	require.NoError(t, err)
	assert.Equal(t, 40, f.NumRows())

	var valErr *errors.ValidationError
	_, err = executeCmd(t, "sample", titanicPath(t), "--frac", "many")
	assert.True(t, errors.As(err, &valErr))
	_, err = executeCmd(t, "sample", titanicPath(t), "--frac", "1.5")
	assert.True(t, errors.As(err, &valErr))
}

func TestCLI_Config(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := executeCmd(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "folds:")
	assert.Contains(t, out, "10")

	out, err = executeCmd(t, "--config", path, "config", "set", "folds", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Set folds = 4")
	assert.FileExists(t, path)

	out, err = executeCmd(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Regexp(t, `folds:\s+4`, out)

	var valErr *errors.ValidationError
	_, err = executeCmd(t, "--config", path, "config", "set", "folds", "1")
	assert.True(t, errors.As(err, &valErr))
	_, err = executeCmd(t, "--config", path, "config", "set", "colour", "red")
	assert.True(t, errors.As(err, &valErr))

	// フラグは設定より優先されるが不正値は拒否
	_, err = executeCmd(t, "--config", path, "--log-format", "xml", "config", "show")
	assert.Error(t, err)
}

const experiment = `data: %DATA%
index: PassengerId
target: Survived
task: classification
setup:
  fold: 3
  ignore_features: [Name, Ticket]
compare_models:
  include: [lr, dt, nb, dummy]
finalize_model: {}
predict_model: {}
plot_model: {}
`

func writeExperiment(t *testing.T, target string) string {
	t.Helper()
	content := strings.ReplaceAll(experiment, "%DATA%", titanicPath(t))
	content = strings.ReplaceAll(content, "target: Survived", "target: "+target)
	path := filepath.Join(t.TempDir(), "titanic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCLI_RunPredictAndRuns(t *testing.T) {
	home := isolate(t)

	out, err := executeCmd(t, "run", writeExperiment(t, "Survived"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Run")
	assert.Contains(t, out, "Leaderboard")
	assert.Contains(t, out, "Holdout")

	store, err := runstore.Open(filepath.Join(home, ".tabautoml", "runs"))
	require.NoError(t, err)
	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	rec := runs[0]
	assert.Equal(t, runstore.StatusFinished, rec.Status)
	assert.FileExists(t, rec.Path(runstore.ModelFileName))
	assert.FileExists(t, rec.Path(runstore.PredictionsFileName))
	assert.Equal(t, "auc.png", rec.PlotFile)
	assert.FileExists(t, rec.Path(rec.PlotFile))
	require.NotNil(t, rec.Model)
	assert.True(t, rec.Model.Finalized)
	assert.Equal(t, 4, len(rec.Leaderboard.Rows))

	out, err = executeCmd(t, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)
	assert.Contains(t, out, runstore.StatusFinished)

	out, err = executeCmd(t, "runs", "show", rec.ID[:8])
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)
	assert.Contains(t, out, "Leaderboard")

	out, err = executeCmd(t, "runs", "show", rec.ID, "--json")
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "classification", decoded["task"])

	// run id からの予測
	out, err = executeCmd(t, "predict", rec.ID, titanicPath(t), "--index", "PassengerId")
	require.NoError(t, err)
	header := strings.SplitN(out, "\n", 2)[0]
	assert.Contains(t, header, engine.LabelColumn)
	assert.Contains(t, header, engine.ScoreColumn)
	assert.True(t, strings.HasPrefix(header, "PassengerId,"))

	// モデルファイルからの予測には --task が必要
	modelFile := rec.Path(runstore.ModelFileName)
	_, err = executeCmd(t, "predict", modelFile, titanicPath(t))
	assert.Error(t, err)

	dst := filepath.Join(t.TempDir(), "pred.csv")
	_, err = executeCmd(t, "predict", modelFile, titanicPath(t), "--task", "classification", "-o", dst)
	require.NoError(t, err)
	pred, err := dataset.Load(dst)
	require.NoError(t, err)
	assert.Equal(t, 80, pred.NumRows())

	var valueErr *errors.ValueError
	_, err = executeCmd(t, "predict", rec.ID, titanicPath(t), "--task", "regression")
	assert.True(t, errors.As(err, &valueErr))
}

func TestCLI_RunFailureIsRecorded(t *testing.T) {
	home := isolate(t)

	_, err := executeCmd(t, "run", writeExperiment(t, "Nope"))
	var colErr *errors.ColumnNotFoundError
	require.True(t, errors.As(err, &colErr))

	store, err := runstore.Open(filepath.Join(home, ".tabautoml", "runs"))
	require.NoError(t, err)
	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runstore.StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)

	out, err := executeCmd(t, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, runstore.StatusFailed)
}

func TestCLI_RunErrors(t *testing.T) {
	isolate(t)

	var formatErr *errors.UnsupportedFileFormatError
	path := filepath.Join(t.TempDir(), "exp.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	_, err := executeCmd(t, "run", path)
	assert.True(t, errors.As(err, &formatErr))

	_, err = executeCmd(t, "run")
	assert.Error(t, err)

	var unsupported *errors.UnsupportedTaskTypeError
	bad := writeExperiment(t, "Survived")
	b, err := os.ReadFile(bad)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(bad, []byte(strings.ReplaceAll(string(b), "task: classification", "task: clustering")), 0o644))
	_, err = executeCmd(t, "run", bad)
	assert.True(t, errors.As(err, &unsupported))
}

func TestApplyDefaults(t *testing.T) {
	isolate(t)
	_, err := executeCmd(t, "config", "show")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	exp := automl.ExperimentConfig{Plot: &engine.PlotConfig{}}
	applyDefaults(&exp, cfg)
	require.NotNil(t, exp.Setup.SessionID)
	assert.Equal(t, 42, *exp.Setup.SessionID)
	assert.Equal(t, 10, exp.Setup.Folds)
	assert.Equal(t, 0.7, exp.Setup.TrainSize)
	assert.Equal(t, "png", exp.Plot.Format)

	exp = automl.ExperimentConfig{
		Setup: engine.SetupConfig{Folds: 3, SessionID: engine.Int(0)},
		Plot:  &engine.PlotConfig{Format: "svg"},
	}
	applyDefaults(&exp, cfg)
	assert.Equal(t, 3, exp.Setup.Folds)
	assert.Equal(t, 0, *exp.Setup.SessionID, "an explicit zero seed is kept")
	assert.Equal(t, "svg", exp.Plot.Format)
}

func TestCLI_RunSampleFlag(t *testing.T) {
	home := isolate(t)

	out, err := executeCmd(t, "run", writeExperiment(t, "Survived"), "--sample", "0.75")
	require.NoError(t, err)
	assert.Contains(t, out, "Sample fraction")

	store, err := runstore.Open(filepath.Join(home, ".tabautoml", "runs"))
	require.NoError(t, err)
	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Sampled)
	assert.Equal(t, 0.75, runs[0].SampleFrac)

	var valErr *errors.ValidationError
	_, err = executeCmd(t, "run", writeExperiment(t, "Survived"), "--sample", "2")
	assert.True(t, errors.As(err, &valErr))
}

func TestOverrideSampling(t *testing.T) {
	exp := automl.ExperimentConfig{}
	require.NoError(t, overrideSampling(&exp, "auto"))
	require.NotNil(t, exp.Sampling)
	assert.True(t, exp.Sampling.Frac.IsAuto())
	assert.Equal(t, sampling.DefaultRandomState, exp.Sampling.Seed())

	exp = automl.ExperimentConfig{Sampling: &sampling.Config{RandomState: sampling.Int(7)}}
	require.NoError(t, overrideSampling(&exp, "0.3"))
	v, ok := exp.Sampling.Frac.Value()
	assert.True(t, ok)
	assert.Equal(t, 0.3, v)
	assert.Equal(t, 7, exp.Sampling.Seed())

	assert.Error(t, overrideSampling(&exp, "lots"))
}

func TestCLI_PersistentFlagsOverrideConfig(t *testing.T) {
	isolate(t)

	_, err := executeCmd(t, "--log-level", "debug", "--log-format", "json", "models", "--task", "regression")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	_, err = executeCmd(t, "models")
	require.NoError(t, err)
	assert.NotEqual(t, "debug", cfg.LogLevel)
}
