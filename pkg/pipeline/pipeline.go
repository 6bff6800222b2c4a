// Package pipeline orchestrates the normalization of search engine PSMs
// into the unified table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ChrisMcGann/psmnorm/pkg/catalog"
	"github.com/ChrisMcGann/psmnorm/pkg/config"
	"github.com/ChrisMcGann/psmnorm/pkg/core"
	"github.com/ChrisMcGann/psmnorm/pkg/decoy"
	"github.com/ChrisMcGann/psmnorm/pkg/enzyme"
	"github.com/ChrisMcGann/psmnorm/pkg/filter"
	"github.com/ChrisMcGann/psmnorm/pkg/position"
	"github.com/ChrisMcGann/psmnorm/pkg/protein"
	"github.com/ChrisMcGann/psmnorm/pkg/rank"
	"github.com/ChrisMcGann/psmnorm/pkg/reader"
	"github.com/ChrisMcGann/psmnorm/pkg/resolve"
	"github.com/ChrisMcGann/psmnorm/pkg/sanitize"
	"github.com/ChrisMcGann/psmnorm/pkg/workers"
)

// SpectrumIndex fills experimental values of a PSM from raw spectra. A
// missing spectrum is reported as *core.LookupKeyError.
type SpectrumIndex interface {
	Annotate(p *core.PSM) error
}

// Summary reports what a run did with its rows.
type Summary struct {
	RowsIn     int
	RowsOut    int
	Invalid    int // rows failing record validation
	Unmappable int
	Malformed  int // non-IUPAC sequences
	Ambiguous  []string
	Ranked     int
	Filter     filter.Stats
}

// UnmappableFraction returns the fraction of input rows with unmappable
// modifications.
func (s Summary) UnmappableFraction() float64 {
	if s.RowsIn == 0 {
		return 0
	}
	return float64(s.Unmappable) / float64(s.RowsIn)
}

// Result is the output of a run.
type Result struct {
	Table    *sanitize.Table
	PSMs     []*core.PSM // rows of Table, in order
	Rejected []*core.PSM // invalid, unmappable and malformed rows kept for audit
	Summary  Summary
}

// Pipeline holds the reference data of one configuration. It is built once
// and read-only while running.
type Pipeline struct {
	cfg        *config.Config
	catalog    *catalog.Catalog
	composite  *catalog.CompositeTable
	resolver   *resolve.Resolver
	composer   *core.Composer
	classifier *enzyme.Classifier
	tagger     *decoy.Tagger
	ranking    rank.Config
	filter     filter.Config
	mapper     protein.Mapper
	spectra    SpectrumIndex
	mods       *core.ModDatabase
	logger     *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithModDatabase sets the name <-> mass service. Defaults to
// core.DefaultModDatabase.
func WithModDatabase(db *core.ModDatabase) Option {
	return func(p *Pipeline) { p.mods = db }
}

// WithMapper sets the protein mapping service used for rows without
// protein coordinates.
func WithMapper(m protein.Mapper) Option {
	return func(p *Pipeline) { p.mapper = m }
}

// WithSpectrumIndex sets the experimental spectrum index.
func WithSpectrumIndex(ix SpectrumIndex) Option {
	return func(p *Pipeline) { p.spectra = ix }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New builds the catalog, the composite mass table and every stage of cfg.
// Configuration problems are returned as *core.ConfigurationError before
// any row is processed.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	if p.mods == nil {
		p.mods = core.DefaultModDatabase()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var err error
	p.catalog, err = catalog.Build(cfg.Modifications, p.mods, cfg.MassPrecision)
	if err != nil {
		return nil, err
	}
	p.composite, err = catalog.BuildComposite(p.catalog, cfg.MaxCombinationSize)
	if err != nil {
		return nil, err
	}
	for _, names := range p.catalog.Collisions() {
		p.logger.Warn("modifications share a mass key",
			zap.Strings("names", names),
			zap.Int32("precision", p.catalog.Precision()))
	}

	p.resolver = resolve.New(p.catalog, p.composite,
		resolve.WithTolerance(decimal.NewFromFloat(cfg.MassLookupTolerance)),
		resolve.WithNameLookup(p.mods),
		resolve.WithPositions(position.NewNormalizer(cfg.EnginePositionOffset)),
	)
	p.resolver.SetLogger(p.logger)

	p.classifier, err = enzyme.New(cfg.Enzyme, cfg.TerminalCleavageIntegrity, cfg.FlankDelimiter)
	if err != nil {
		return nil, err
	}
	p.tagger = decoy.NewTagger(cfg.DecoyTag, cfg.ProteinDelimiter, cfg.ImmutablePeptides)
	p.ranking = rank.Config{ScoreField: cfg.ValidationScoreField, BiggerBetter: cfg.BiggerScoresBetter}
	p.filter = filter.Config{
		TopN:          cfg.TopN,
		Engines:       cfg.Engines,
		RemoveDecoys:  cfg.RemoveDecoys,
		KeepDuplicate: cfg.KeepDuplicates,
	}
	p.composer = core.NewComposer(p.mods)

	p.logger.Debug("pipeline ready",
		zap.Int("catalog", p.catalog.Len()),
		zap.Int("combinations", p.composite.Len()),
		zap.Int("mass_keys", p.composite.Keys()),
		zap.Int("ambiguous_keys", len(p.composite.AmbiguousKeys())))
	return p, nil
}

// Catalog returns the modification catalog.
func (p *Pipeline) Catalog() *catalog.Catalog { return p.catalog }

// Composite returns the composite mass table.
func (p *Pipeline) Composite() *catalog.CompositeTable { return p.composite }

// RunFiles reads every path with the first matching reader and runs the
// pipeline over the combined records.
func (p *Pipeline) RunFiles(ctx context.Context, registry *reader.Registry, paths []string) (*Result, error) {
	var psms []*core.PSM
	for _, path := range paths {
		stream, err := registry.Open(path)
		if err != nil {
			return nil, err
		}
		recs, err := reader.ReadAll(stream)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", path, err)
		}
		p.logger.Info("read input", zap.String("path", path), zap.Int("psms", len(recs)))
		psms = append(psms, recs...)
	}
	return p.Run(ctx, psms)
}

// Run normalizes psms in place and assembles the unified table. Rows keep
// their input order.
func (p *Pipeline) Run(ctx context.Context, psms []*core.PSM) (*Result, error) {
	sum := Summary{RowsIn: len(psms)}

	for _, psm := range psms {
		if psm.Extra == nil {
			psm.Extra = make(map[string]string)
		}
		if err := psm.Validate(); err != nil {
			psm.Malformed = true
			sum.Invalid++
			p.logger.Debug("invalid record",
				zap.String("spectrum", psm.SpectrumKey()),
				zap.String("psm", psm.Name()),
				zap.Error(err))
			continue
		}
		if p.spectra != nil {
			if err := p.spectra.Annotate(psm); err != nil {
				return nil, err
			}
		}
	}

	sample, err := p.resolveAll(ctx, psms, &sum)
	if err != nil {
		return nil, err
	}
	massSample, err := p.massAll(ctx, psms, &sum)
	if err != nil {
		return nil, err
	}
	if sample == nil {
		sample = massSample
	}
	if err := p.checkUnmappable(sum, sample); err != nil {
		return nil, err
	}

	var accepted, rejected []*core.PSM
	for _, psm := range psms {
		if psm.Malformed || psm.Unmappable {
			rejected = append(rejected, psm)
			continue
		}
		accepted = append(accepted, psm)
	}

	// Duplicates go before ranking so they do not take up ranks
	accepted, duplicates := p.filter.Deduplicate(accepted)

	p.mapProteins(accepted)
	sum.Ranked = rank.Assign(accepted, p.ranking)
	for _, psm := range accepted {
		p.classifier.Classify(psm)
		p.tagger.Tag(psm)
	}

	kept, stats := p.filter.Apply(accepted)
	stats.Duplicates = duplicates
	sum.Filter = stats
	sum.RowsOut = len(kept)

	table := sanitize.Build(kept)

	p.logger.Info("normalization complete",
		zap.Int("rows_in", sum.RowsIn),
		zap.Int("rows_out", sum.RowsOut),
		zap.Int("invalid", sum.Invalid),
		zap.Int("unmappable", sum.Unmappable),
		zap.Int("malformed", sum.Malformed),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("ranked", sum.Ranked))

	return &Result{Table: table, PSMs: kept, Rejected: rejected, Summary: sum}, nil
}

type resolveOutcome struct {
	ambiguous  []string
	unmappable error
}

// resolveAll maps raw annotations to catalog modifications on the worker
// pool and reports ambiguous masses once. It returns the first unmappable
// row error as an example for the summary warning.
func (p *Pipeline) resolveAll(ctx context.Context, psms []*core.PSM, sum *Summary) (sample, err error) {
	outcomes, err := workers.Map(ctx, p.cfg.WorkerCount, psms, func(_ context.Context, psm *core.PSM) (resolveOutcome, error) {
		if psm.Malformed {
			return resolveOutcome{}, nil
		}
		return p.resolvePSM(psm), nil
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, o := range outcomes {
		if o.unmappable != nil {
			sum.Unmappable++
			if sample == nil {
				sample = o.unmappable
			}
		}
		for _, k := range o.ambiguous {
			if !seen[k] {
				seen[k] = true
				sum.Ambiguous = append(sum.Ambiguous, k)
			}
		}
	}
	sort.Strings(sum.Ambiguous)

	for _, k := range sum.Ambiguous {
		names := make([]string, 0)
		for _, combo := range p.composite.Lookup(k) {
			names = append(names, strings.Join(catalog.Names(combo), "+"))
		}
		p.logger.Warn("ambiguous composite mass, chose the lexicographically smallest combination",
			zap.String("mass", k),
			zap.Strings("combinations", names))
	}

	return sample, nil
}

// checkUnmappable warns about rows dropped for unmappable modifications in
// either stage and fails the run above the configured fraction.
func (p *Pipeline) checkUnmappable(sum Summary, sample error) error {
	if sum.Unmappable == 0 {
		return nil
	}
	frac := sum.UnmappableFraction()
	p.logger.Warn("PSMs with unmappable modifications excluded",
		zap.Int("count", sum.Unmappable),
		zap.Int("total", sum.RowsIn),
		zap.Float64("fraction", frac),
		zap.NamedError("example", sample))
	if frac > p.cfg.UnmappableThreshold {
		return fmt.Errorf("%d of %d PSMs (%.1f%% > %.1f%%), check the modifications configuration: %w",
			sum.Unmappable, sum.RowsIn, frac*100, p.cfg.UnmappableThreshold*100, core.ErrUnmappableFraction)
	}
	return nil
}

// resolvePSM touches only psm and read-only reference data.
func (p *Pipeline) resolvePSM(psm *core.PSM) resolveOutcome {
	notation := p.cfg.Notation(psm.SearchEngine, psm.RawNotation)
	raw := psm.RawModifications
	if notation == resolve.NotationBracket && strings.TrimSpace(raw) == "" {
		raw = psm.Sequence
	}

	observed, seq, err := resolve.ParseNotation(notation, raw, psm.Sequence)
	if err != nil {
		psm.Unmappable = true
		return resolveOutcome{unmappable: fmt.Errorf("%s: %w", psm.SpectrumKey(), err)}
	}
	seq = strings.ToUpper(strings.TrimSpace(seq))

	res, err := p.resolver.Resolve(psm.SearchEngine, seq, observed)
	if err != nil {
		psm.Unmappable = true
		return resolveOutcome{unmappable: err}
	}

	psm.Sequence = seq
	psm.Modifications = resolve.ApplyFixed(p.catalog, seq, res.Mods)
	sanitize.PSM(psm)
	return resolveOutcome{ambiguous: res.AmbiguousKeys}
}

type massOutcome int

const (
	massOK massOutcome = iota
	massSkipped
	massMalformed
	massUnmappable
)

type massResult struct {
	outcome massOutcome
	err     error // row-level cause of massMalformed or massUnmappable
}

// massAll computes masses, m/z and accuracy on the worker pool. The
// composition service is passed to every task explicitly. It returns the
// first unmappable row error, if any.
func (p *Pipeline) massAll(ctx context.Context, psms []*core.PSM, sum *Summary) (sample, err error) {
	composer := p.composer
	results, err := workers.Map(ctx, p.cfg.WorkerCount, psms, func(_ context.Context, psm *core.PSM) (massResult, error) {
		if psm.Malformed || psm.Unmappable {
			return massResult{outcome: massSkipped}, nil
		}
		return computeMass(composer, psm)
	})
	if err != nil {
		return nil, err
	}

	unmappable := 0
	for _, r := range results {
		switch r.outcome {
		case massMalformed:
			sum.Malformed++
		case massUnmappable:
			unmappable++
			if sample == nil {
				sample = r.err
			}
		}
	}
	if sum.Malformed > 0 {
		p.logger.Warn("PSMs with malformed sequences excluded from mass calculation",
			zap.Int("count", sum.Malformed))
	}
	sum.Unmappable += unmappable
	return sample, nil
}

// computeMass fills the mass fields of psm. Modifications without a mass in
// the database make the row unmappable.
func computeMass(composer *core.Composer, psm *core.PSM) (massResult, error) {
	mass, formula, err := composer.MassAndComposition(psm.Sequence, psm.Modifications)
	if err != nil {
		var ume *core.UnmappableModificationError
		switch {
		case errors.Is(err, core.ErrMalformedSequence):
			psm.Malformed = true
			return massResult{outcome: massMalformed, err: err}, nil
		case errors.As(err, &ume):
			psm.Unmappable = true
			return massResult{outcome: massUnmappable, err: err}, nil
		}
		return massResult{outcome: massSkipped}, err
	}

	mz := core.CalcMZ(mass, psm.Charge)
	psm.UCalcMass = &mass
	psm.UCalcMZ = &mz
	psm.Formula = formula
	if psm.ExpMZ > 0 {
		ppm := core.AccuracyPPM(psm.ExpMZ, mz)
		psm.AccuracyPPM = &ppm
	}
	return massResult{outcome: massOK}, nil
}

// mapProteins fills protein coordinates of rows the reader left without.
func (p *Pipeline) mapProteins(psms []*core.PSM) {
	if p.mapper == nil {
		return
	}
	var seqs []string
	for _, psm := range psms {
		if needsMapping(psm) {
			seqs = append(seqs, psm.Sequence)
		}
	}
	if len(seqs) == 0 {
		return
	}

	matches := p.mapper.MapPeptides(seqs)
	unmatched := 0
	for _, psm := range psms {
		if !needsMapping(psm) {
			continue
		}
		m, ok := matches[psm.Sequence]
		if !ok {
			unmatched++
			continue
		}
		protein.Annotate(psm, m, p.cfg.ProteinDelimiter)
	}
	if unmatched > 0 {
		p.logger.Warn("peptides not found in protein database", zap.Int("count", unmatched))
	}
}

func needsMapping(psm *core.PSM) bool {
	return psm.ProteinID == "" || psm.SequencePre == "" || psm.SequencePost == "" ||
		psm.SequenceStart == "" || psm.SequenceStop == ""
}
