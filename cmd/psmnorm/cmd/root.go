// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChrisMcGann/psmnorm/pkg/config"
	"github.com/ChrisMcGann/psmnorm/pkg/core"
	"github.com/ChrisMcGann/psmnorm/pkg/pipeline"
)

var (
	verbose bool
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "psmnorm",
	Short: "psmnorm - unified PSM table builder",
	Long: `psmnorm normalizes peptide-spectrum matches from several search engines
into one unified table, written as CSV/TSV or SQLite.

Every row is brought to the same form:
- Modifications mapped to catalog names (position 0 = N-terminus, residues 1-based)
- Fixed modifications applied, composite mass shifts split
- Theoretical mass, m/z and accuracy from the elemental composition
- Per-spectrum ranks, enzyme specificity and decoy flags`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose development logging")

	rootCmd.AddCommand(unifyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)
}

// loadModDatabase returns the default modification database extended with
// the entries of path, when given.
func loadModDatabase(path string) (*core.ModDatabase, error) {
	modDB := core.DefaultModDatabase()
	if path == "" {
		return modDB, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open custom modifications: %w", err)
	}
	defer f.Close()
	if err := modDB.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load custom modifications %s: %w", path, err)
	}
	return modDB, nil
}

// newPipeline builds the pipeline of cfg with the custom modifications it names.
func newPipeline(cfg *config.Config, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	modDB, err := loadModDatabase(cfg.CustomModifications)
	if err != nil {
		return nil, err
	}
	opts = append([]pipeline.Option{pipeline.WithModDatabase(modDB), pipeline.WithLogger(logger)}, opts...)
	return pipeline.New(cfg, opts...)
}
