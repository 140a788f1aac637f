package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabautoml/automl"
	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/internal/config"
	"github.com/YuminosukeSato/tabautoml/internal/expfile"
	"github.com/YuminosukeSato/tabautoml/internal/runstore"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
	"github.com/YuminosukeSato/tabautoml/sampling"
	"github.com/YuminosukeSato/tabautoml/task"
)

var runSample string

var runCmd = &cobra.Command{
	Use:   "run <experiment-file>",
	Short: "Run an experiment file and record the result",
	Long: `Run loads the dataset named by the experiment file, samples it when it is
large or when a sampling section is present, compares the candidate models
and runs the optional tune, finalize, predict and plot stages. The model,
predictions and plots are stored in a new run directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runExperiment,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runSample, "sample", "", `force sampling with this fraction, "auto" or a number in (0, 1)`)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	f, err := expfile.Load(args[0])
	if err != nil {
		return err
	}
	t, err := task.Parse(f.Task)
	if err != nil {
		return err
	}
	exp, err := f.Experiment()
	if err != nil {
		return err
	}
	applyDefaults(&exp, cfg)
	if cmd.Flags().Changed("sample") {
		if err := overrideSampling(&exp, runSample); err != nil {
			return err
		}
	}

	store, err := runstore.Open(cfg.RunsDir)
	if err != nil {
		return err
	}
	expPath, err := filepath.Abs(args[0])
	if err != nil {
		expPath = args[0]
	}
	rec, err := store.Create(runstore.Record{
		Experiment: expPath,
		Data:       f.DataPath(),
		Target:     f.Target,
		Task:       t,
	})
	if err != nil {
		return err
	}
	logger := log.GetLoggerWithName("cli").With(log.ExperimentIDKey, rec.ID)
	logger.Debug("run created", log.PathKey, rec.Dir())

	res, err := execute(f, exp, store, rec)
	if err != nil {
		rec.Fail(err)
		if saveErr := store.Save(rec); saveErr != nil {
			logger.Warn("failed to record run failure", saveErr)
		}
		return err
	}
	rec.Complete(res)
	if err := store.Save(rec); err != nil {
		return err
	}
	return printRun(cmd, rec, res)
}

func execute(f *expfile.File, exp automl.ExperimentConfig, store *runstore.Store, rec *runstore.Record) (*automl.Result, error) {
	a, err := automl.FromFile(f.DataPath(), f.Index, f.Target, f.Task, automl.WithRunID(rec.ID))
	if err != nil {
		return nil, err
	}
	if exp.Plot != nil && exp.Plot.OutputDir == "" {
		exp.Plot.OutputDir = rec.Dir()
	}
	res, err := a.Run(exp)
	if err != nil {
		return nil, err
	}
	if err := a.SaveModel(res.Model, rec.Path(runstore.ModelFileName)); err != nil {
		return nil, err
	}
	rec.ModelFile = runstore.ModelFileName
	if res.Predictions != nil {
		if err := store.WritePredictions(rec, res.Predictions); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// applyDefaults fills settings the experiment file left unset from the
// global config.
func applyDefaults(exp *automl.ExperimentConfig, g *config.Global) {
	if exp.Setup.SessionID == nil {
		exp.Setup.SessionID = engine.Int(g.SessionID)
	}
	if exp.Setup.Folds == 0 {
		exp.Setup.Folds = g.Folds
	}
	if exp.Setup.TrainSize == 0 {
		exp.Setup.TrainSize = g.TrainSize
	}
	if exp.Plot != nil && exp.Plot.Format == "" {
		exp.Plot.Format = g.PlotFormat
	}
}

// overrideSampling replaces the sampling fraction, keeping a seed set in
// the experiment file.
func overrideSampling(exp *automl.ExperimentConfig, frac string) error {
	f, err := sampling.ParseFraction(frac)
	if err != nil {
		return err
	}
	sc := sampling.DefaultConfig()
	if exp.Sampling != nil {
		sc = *exp.Sampling
	}
	sc.Frac = f
	if _, err := f.Resolve(0); err != nil {
		return err
	}
	exp.Sampling = &sc
	return nil
}

func printRun(cmd *cobra.Command, rec *runstore.Record, res *automl.Result) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Run %s finished\n\n", rec.ID)

	pairs := [][2]string{
		{"Task", res.Task.String()},
		{"Rows", strconv.Itoa(res.Rows)},
	}
	if res.Sampled {
		pairs = append(pairs, [2]string{"Sample fraction", formatNumber(res.SampleFrac, 4)})
	}
	pairs = append(pairs,
		[2]string{"Best model", res.Model.Name + " (" + res.Model.ID + ")"},
		[2]string{"Finalized", strconv.FormatBool(res.Model.Finalized)},
	)
	if len(res.Model.Params) > 0 {
		keys := make([]string, 0, len(res.Model.Params))
		for k := range res.Model.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pairs = append(pairs, [2]string{"  " + k, fmt.Sprint(res.Model.Params[k])})
		}
	}
	if err := printPairs(out, pairs); err != nil {
		return err
	}

	if res.Leaderboard != nil {
		fmt.Fprintln(out, "\nLeaderboard")
		if err := printFrame(out, res.Leaderboard); err != nil {
			return err
		}
	}
	if res.Scores != nil {
		fmt.Fprintln(out, "\nHoldout")
		if err := printFrame(out, res.Scores); err != nil {
			return err
		}
	}

	artifacts := [][2]string{{"Run dir", rec.Dir()}}
	for _, a := range [][2]string{
		{"Model", rec.ModelFile},
		{"Predictions", rec.PredictionsFile},
		{"Plot", rec.PlotFile},
	} {
		if a[1] != "" {
			artifacts = append(artifacts, a)
		}
	}
	fmt.Fprintln(out)
	return printPairs(out, artifacts)
}
