package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabautoml/internal/runstore"
)

var runsShowJSON bool

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runstore.Open(cfg.RunsDir)
		if err != nil {
			return err
		}
		runs, err := store.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "(no runs)")
			return nil
		}
		tw := newTabWriter(out)
		fmt.Fprintln(tw, "id\tcreated\tstatus\ttask\tmodel\tdata")
		for _, r := range runs {
			model := "-"
			if r.Model != nil {
				model = r.Model.ID
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Status, r.Task, model, r.Data)
		}
		return tw.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runstore.Open(cfg.RunsDir)
		if err != nil {
			return err
		}
		r, err := store.Get(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if runsShowJSON {
			b, err := json.MarshalIndent(r, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}

		pairs := [][2]string{
			{"ID", r.ID},
			{"Status", r.Status},
			{"Created", r.CreatedAt.Local().Format(time.DateTime)},
			{"Task", r.Task.String()},
			{"Data", r.Data},
			{"Target", r.Target},
			{"Rows", strconv.Itoa(r.Rows)},
		}
		if r.Experiment != "" {
			pairs = append(pairs, [2]string{"Experiment", r.Experiment})
		}
		if r.Sampled {
			pairs = append(pairs, [2]string{"Sample fraction", formatNumber(r.SampleFrac, 4)})
		}
		if r.Error != "" {
			pairs = append(pairs, [2]string{"Error", r.Error})
		}
		if m := r.Model; m != nil {
			pairs = append(pairs, [2]string{"Model", m.Name + " (" + m.ID + ")"})
			pairs = append(pairs, [2]string{"Finalized", strconv.FormatBool(m.Finalized)})
			names := make([]string, 0, len(m.Scores))
			for k := range m.Scores {
				names = append(names, k)
			}
			sort.Strings(names)
			for _, k := range names {
				pairs = append(pairs, [2]string{"  " + k, formatNumber(m.Scores[k], 4)})
			}
		}
		for _, a := range [][2]string{
			{"Model file", r.ModelFile},
			{"Predictions", r.PredictionsFile},
			{"Plot", r.PlotFile},
		} {
			if a[1] != "" {
				pairs = append(pairs, [2]string{a[0], r.Path(a[1])})
			}
		}
		if err := printPairs(out, pairs); err != nil {
			return err
		}
		if r.Leaderboard != nil {
			fmt.Fprintln(out, "\nLeaderboard")
			return printFrame(out, r.Leaderboard.Frame())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsShowCmd.Flags().BoolVar(&runsShowJSON, "json", false, "print the raw run record")
}
