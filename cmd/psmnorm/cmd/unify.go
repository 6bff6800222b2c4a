package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChrisMcGann/psmnorm/pkg/config"
	"github.com/ChrisMcGann/psmnorm/pkg/pipeline"
	"github.com/ChrisMcGann/psmnorm/pkg/protein"
	"github.com/ChrisMcGann/psmnorm/pkg/reader"
	"github.com/ChrisMcGann/psmnorm/pkg/reader/mzid"
	"github.com/ChrisMcGann/psmnorm/pkg/reader/mzml"
	"github.com/ChrisMcGann/psmnorm/pkg/reader/tsv"
	"github.com/ChrisMcGann/psmnorm/pkg/sanitize"
	"github.com/ChrisMcGann/psmnorm/pkg/stats"
	"github.com/ChrisMcGann/psmnorm/pkg/writer/csv"
	"github.com/ChrisMcGann/psmnorm/pkg/writer/sqlite"
)

var (
	// Flags for unify command
	configFile   string
	outputFiles  []string
	rejectedFile string
	engineName   string
	notation     string
	workerCount  int
	decoyTag     string
	fastaFile    string
	mzmlFiles    []string
	customMods   string
	topN         int
	removeDecoys bool
	engines      []string
	keepDups     bool
	description  string
)

func init() {
	unifyCmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file, .json or .yaml (required)")
	unifyCmd.Flags().StringSliceVarP(&outputFiles, "out", "o", nil, "Output file(s): .csv, .tsv, .txt or .db/.sqlite (required)")
	unifyCmd.Flags().StringVar(&rejectedFile, "rejected", "", "Write rejected rows (invalid, unmappable, malformed) to this CSV/TSV file")
	unifyCmd.Flags().StringVar(&engineName, "engine", "", "Search engine for delimited inputs without an engine column")
	unifyCmd.Flags().StringVar(&notation, "notation", "", "Modification notation for delimited inputs: at, colon or bracket")
	unifyCmd.Flags().IntVar(&workerCount, "workers", 0, "Number of worker goroutines (0 = CPUs - 1)")
	unifyCmd.Flags().StringVar(&decoyTag, "decoy-tag", "", "Decoy protein prefix, overrides the configuration")
	unifyCmd.Flags().StringVar(&fastaFile, "fasta", "", "Protein database for rows without protein coordinates")
	unifyCmd.Flags().StringSliceVar(&mzmlFiles, "mzml", nil, "mzML file(s) supplying retention time and precursor m/z")
	unifyCmd.Flags().StringVar(&customMods, "mods", "", "Path to custom modifications CSV (mod,massshift)")
	unifyCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only PSMs ranked N or better (0 = no limit)")
	unifyCmd.Flags().BoolVar(&removeDecoys, "remove-decoys", false, "Drop decoy PSMs from the output")
	unifyCmd.Flags().StringSliceVar(&engines, "engines", nil, "Keep only these search engines (comma-separated)")
	unifyCmd.Flags().BoolVar(&keepDups, "keep-duplicates", false, "Keep duplicate PSM rows")
	unifyCmd.Flags().StringVar(&description, "description", "", "Description stored in the SQLite header")

	unifyCmd.MarkFlagRequired("config")
	unifyCmd.MarkFlagRequired("out")
}

var unifyCmd = &cobra.Command{
	Use:   "unify [input files...]",
	Short: "Normalize search engine results into the unified table",
	Long: `Read PSMs from delimited (CSV/TSV) and mzIdentML search engine results,
normalize them and write the unified table.

Examples:
  # Unify two engines into CSV
  psmnorm unify -c params.yaml -o unified.csv msgf.mzid comet.tsv

  # Write both CSV and SQLite, fill protein coordinates and experimental m/z
  psmnorm unify -c params.yaml -o unified.csv -o unified.db --fasta db.fasta --mzml run1.mzML results.tsv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUnify,
}

func runUnify(cmd *cobra.Command, args []string) error {
	for _, in := range args {
		if _, err := os.Stat(in); os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", in)
		}
	}
	for _, out := range outputFiles {
		if _, err := outputFormat(out); err != nil {
			return err
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	var opts []pipeline.Option
	if cfg.Fasta != "" {
		mapper, err := protein.Open(cfg.Fasta)
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d proteins from %s\n", mapper.Len(), cfg.Fasta)
		opts = append(opts, pipeline.WithMapper(mapper))
	}
	if len(cfg.MzML) > 0 {
		set, err := mzml.OpenSet(ctx, cfg.MzML, cfg.WorkerCount)
		if err != nil {
			return err
		}
		for run, ix := range set {
			logger.Info("indexed spectra", zap.String("run", run), zap.Int("spectra", ix.Len()))
		}
		opts = append(opts, pipeline.WithSpectrumIndex(set))
	}

	p, err := newPipeline(cfg, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("Unifying %d input file(s)...\n", len(args))
	fmt.Printf("Catalog: %d modifications, %d composite mass keys\n", p.Catalog().Len(), p.Composite().Keys())
	fmt.Printf("Enzyme: %s (%s)\n", cfg.Enzyme, cfg.TerminalCleavageIntegrity)

	registry := reader.NewRegistry(
		mzid.Format{Delimiter: cfg.ProteinDelimiter},
		tsv.Format{Engine: engineName, Notation: notation},
	)
	res, err := p.RunFiles(ctx, registry, args)
	if err != nil {
		return err
	}

	for _, out := range outputFiles {
		if err := writeOutput(out, res, args); err != nil {
			return err
		}
	}
	if rejectedFile != "" && len(res.Rejected) > 0 {
		if err := csv.WriteFile(rejectedFile, sanitize.Build(res.Rejected)); err != nil {
			return fmt.Errorf("failed to write rejected rows: %w", err)
		}
	}

	sum := res.Summary
	fmt.Printf("\nUnification complete!\n")
	fmt.Printf("Processed: %d PSMs\n", sum.RowsIn)
	fmt.Printf("Written: %d PSMs\n", sum.RowsOut)
	if sum.Invalid > 0 {
		fmt.Printf("Skipped: %d PSMs (validation errors)\n", sum.Invalid)
	}
	if sum.Unmappable > 0 {
		fmt.Printf("Skipped: %d PSMs (unmappable modifications, %.2f%%)\n", sum.Unmappable, sum.UnmappableFraction()*100)
	}
	if sum.Malformed > 0 {
		fmt.Printf("Skipped: %d PSMs (malformed sequences)\n", sum.Malformed)
	}
	if n := sum.Filter.Removed(); n > 0 {
		fmt.Printf("Filtered: %d PSMs (%d duplicates, %d engine, %d rank, %d decoys)\n",
			n, sum.Filter.Duplicates, sum.Filter.Engine, sum.Filter.Rank, sum.Filter.Decoys)
	}
	if len(sum.Ambiguous) > 0 {
		fmt.Printf("Ambiguous mass keys: %s\n", strings.Join(sum.Ambiguous, ", "))
	}

	if s, err := stats.Summarize(res.Table); err == nil {
		fmt.Println()
		s.Print(os.Stdout)
	}
	for _, out := range outputFiles {
		fmt.Printf("Output: %s\n", out)
	}
	return nil
}

// applyOverrides copies flags given on the command line over cfg.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.WorkerCount = workerCount
	}
	if flags.Changed("decoy-tag") {
		cfg.DecoyTag = decoyTag
	}
	if flags.Changed("fasta") {
		cfg.Fasta = fastaFile
	}
	if flags.Changed("mzml") {
		cfg.MzML = mzmlFiles
	}
	if flags.Changed("mods") {
		cfg.CustomModifications = customMods
	}
	if flags.Changed("top-n") {
		cfg.TopN = topN
	}
	if flags.Changed("remove-decoys") {
		cfg.RemoveDecoys = removeDecoys
	}
	if flags.Changed("engines") {
		cfg.Engines = engines
	}
	if flags.Changed("keep-duplicates") {
		cfg.KeepDuplicates = keepDups
	}
}

func outputFormat(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".tsv", ".txt":
		return "csv", nil
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("cannot detect output format from extension '%s', use .csv, .tsv, .txt or .db", ext)
	}
}

func writeOutput(path string, res *pipeline.Result, inputs []string) error {
	format, err := outputFormat(path)
	if err != nil {
		return err
	}
	if format == "csv" {
		if err := csv.WriteFile(path, res.Table); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	}

	w, err := sqlite.NewWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer w.Close()

	if err := w.WriteTable(res.Table); err != nil {
		return fmt.Errorf("failed to write PSMs: %w", err)
	}
	sum := res.Summary
	run := sqlite.RunInfo{
		Inputs:      inputs,
		RowsIn:      sum.RowsIn,
		RowsOut:     sum.RowsOut,
		Unmappable:  sum.Unmappable,
		Malformed:   sum.Malformed + sum.Invalid,
		Ambiguous:   len(sum.Ambiguous),
		Duplicates:  sum.Filter.Duplicates,
		Description: description,
	}
	if err := w.Finalize(run); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}
	return nil
}
