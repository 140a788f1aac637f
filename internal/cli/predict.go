package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/internal/runstore"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
	"github.com/YuminosukeSato/tabautoml/task"
)

var (
	predictTask     string
	predictIndex    string
	predictOutput   string
	predictRawScore bool
	predictRound    int
)

var predictCmd = &cobra.Command{
	Use:   "predict <run-id|model-file> <data>",
	Short: "Predict a table with a stored model",
	Long: `Predict loads the model of a recorded run (or a model file written by a
run) and appends prediction_label, and prediction_score for classifiers, to
the table. A model file needs --task. When the table carries the target
column the predictions are scored as well.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath, t, err := resolveModel(args[0])
		if err != nil {
			return err
		}
		module, err := engine.New(t, engine.WithLogger(log.GetLoggerWithName("engine")))
		if err != nil {
			return err
		}
		m, err := module.LoadModel(modelPath)
		if err != nil {
			return err
		}
		data, err := dataset.Load(args[1], loadOptions(predictIndex)...)
		if err != nil {
			return err
		}
		pred, err := module.PredictModel(m, engine.PredictConfig{Data: data, RawScore: predictRawScore, Round: predictRound})
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if predictOutput != "" {
			file, err := os.Create(predictOutput)
			if err != nil {
				return errors.Wrap(err, "create output file")
			}
			defer file.Close()
			w = file
		}
		if err := pred.WriteCSV(w); err != nil {
			return err
		}
		// 目的変数があれば採点結果が残る
		if scores, err := module.Pull(); err == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Scores")
			if err := printFrame(cmd.ErrOrStderr(), scores); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVar(&predictTask, "task", "", "task of a model file: regression or classification")
	predictCmd.Flags().StringVar(&predictIndex, "index", "", "column to use as the row index")
	predictCmd.Flags().StringVarP(&predictOutput, "output", "o", "", "write predictions to this file instead of stdout")
	predictCmd.Flags().BoolVar(&predictRawScore, "raw-score", false, "add one score column per class")
	predictCmd.Flags().IntVar(&predictRound, "round", 0, "decimal places of scores (0 uses the default)")
}

// resolveModel maps an existing model file, or else a run id, to a model
// path and its task.
func resolveModel(ref string) (string, task.Task, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		t, err := task.Parse(predictTask)
		if err != nil {
			return "", 0, errors.Wrap(err, "--task is required with a model file")
		}
		return ref, t, nil
	}
	store, err := runstore.Open(cfg.RunsDir)
	if err != nil {
		return "", 0, err
	}
	rec, err := store.Get(ref)
	if err != nil {
		return "", 0, err
	}
	if rec.ModelFile == "" {
		return "", 0, errors.NewValueError("predict", "run "+rec.ID+" has no model (status "+rec.Status+")")
	}
	if predictTask != "" {
		t, err := task.Parse(predictTask)
		if err != nil {
			return "", 0, err
		}
		if t != rec.Task {
			return "", 0, errors.NewValueError("predict", "run "+rec.ID+" is a "+rec.Task.String()+" run")
		}
	}
	return rec.Path(rec.ModelFile), rec.Task, nil
}
