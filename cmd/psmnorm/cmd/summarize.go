package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/psmnorm/pkg/stats"
	"github.com/ChrisMcGann/psmnorm/pkg/writer/csv"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a unified table",
	Long:  `Print per-engine PSM counts, decoy fractions, mean theoretical m/z, accuracy and modification counts of a unified CSV/TSV table.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := csv.ReadFile(args[0])
		if err != nil {
			return err
		}
		s, err := stats.Summarize(t)
		if err != nil {
			return err
		}
		s.Print(os.Stdout)
		return nil
	},
}
