package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/sampling"
)

var (
	sampleFrac        string
	sampleRandomState int
	sampleIndex       string
	sampleOutput      string
)

var sampleCmd = &cobra.Command{
	Use:   "sample <data>",
	Short: "Draw a reproducible random sample of a table",
	Long: `Sample keeps a fraction of the rows of a table. With --frac auto the
fraction is chosen from the row count: half of the rows for small tables and
about 100000 rows for large ones. The sample is written as CSV.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frac, err := sampling.ParseFraction(sampleFrac)
		if err != nil {
			return err
		}
		frame, err := dataset.Load(args[0], loadOptions(sampleIndex)...)
		if err != nil {
			return err
		}
		sc := sampling.Config{Frac: frac}
		if cmd.Flags().Changed("random-state") {
			sc.RandomState = sampling.Int(sampleRandomState)
		}
		sample, used, err := sampling.Sample(frame, sc)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if sampleOutput != "" {
			file, err := os.Create(sampleOutput)
			if err != nil {
				return errors.Wrap(err, "create output file")
			}
			defer file.Close()
			w = file
		}
		if err := sample.WriteCSV(w); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Sampled %d of %d rows (frac %s)\n", sample.NumRows(), frame.NumRows(), formatNumber(used, 4))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().StringVar(&sampleFrac, "frac", "auto", `fraction of rows to keep, "auto" or a number in (0, 1)`)
	sampleCmd.Flags().IntVar(&sampleRandomState, "random-state", sampling.DefaultRandomState, "sampler seed")
	sampleCmd.Flags().StringVar(&sampleIndex, "index", "", "column to use as the row index")
	sampleCmd.Flags().StringVarP(&sampleOutput, "output", "o", "", "write the sample to this file instead of stdout")
}
