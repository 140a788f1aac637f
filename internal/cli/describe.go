package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabautoml/dataset"
)

var describeIndex string

var describeCmd = &cobra.Command{
	Use:   "describe <data>",
	Short: "Summarize the columns of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := dataset.Load(args[0], loadOptions(describeIndex)...)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d rows x %d columns\n\n", frame.Name, frame.NumRows(), frame.NumCols())

		tw := newTabWriter(out)
		fmt.Fprintln(tw, strings.Join([]string{"column", "kind", "count", "missing", "unique", "mean", "std", "min", "max"}, "\t"))
		for _, s := range dataset.Describe(frame) {
			fmt.Fprintln(tw, strings.Join([]string{
				s.Name,
				string(s.Kind),
				strconv.Itoa(s.Count),
				strconv.Itoa(s.Missing),
				strconv.Itoa(s.Unique),
				formatNumber(s.Mean, 4),
				formatNumber(s.Std, 4),
				formatNumber(s.Min, 4),
				formatNumber(s.Max, 4),
			}, "\t"))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVar(&describeIndex, "index", "", "column to use as the row index")
}

func loadOptions(index string) []dataset.Option {
	if index == "" {
		return nil
	}
	return []dataset.Option{dataset.WithIndexColumn(index)}
}
