package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/task"
)

var modelsTask string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the available estimators per task",
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks := task.All()
		if modelsTask != "" {
			t, err := task.Parse(modelsTask)
			if err != nil {
				return err
			}
			tasks = []task.Task{t}
		}
		tw := newTabWriter(cmd.OutOrStdout())
		fmt.Fprintln(tw, "task\tid\tname\ttunable")
		for _, t := range tasks {
			entries, err := engine.Models(t)
			if err != nil {
				return err
			}
			for _, e := range entries {
				params := make([]string, 0, len(e.Grid))
				for k := range e.Grid {
					params = append(params, k)
				}
				sort.Strings(params)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t, e.ID, e.Name, strings.Join(params, ","))
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().StringVar(&modelsTask, "task", "", "only list estimators of this task")
}
