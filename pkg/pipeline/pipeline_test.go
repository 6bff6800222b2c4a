package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ChrisMcGann/psmnorm/pkg/catalog"
	"github.com/ChrisMcGann/psmnorm/pkg/config"
	"github.com/ChrisMcGann/psmnorm/pkg/core"
	"github.com/ChrisMcGann/psmnorm/pkg/protein"
	"github.com/ChrisMcGann/psmnorm/pkg/sanitize"
	"github.com/ChrisMcGann/psmnorm/pkg/stats"
)

const testFasta = `>sp|P1|TEST
PEPTIDEKAGR
>decoy_sp|P2|TEST
GGACDKLL
`

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Modifications = []catalog.Spec{
		{AA: "C", Type: catalog.Fixed, Position: catalog.Any, Name: "Carbamidomethyl"},
		{AA: "M", Type: catalog.Optional, Position: catalog.Any, Name: "Oxidation"},
		{AA: "*", Type: catalog.Optional, Position: catalog.ProtNTerm, Name: "Acetyl"},
		{AA: "S", Type: catalog.Optional, Position: catalog.Any, Name: "Phospho"},
		{AA: "T", Type: catalog.Optional, Position: catalog.Any, Name: "Phospho"},
		{AA: "Y", Type: catalog.Optional, Position: catalog.Any, Name: "Phospho"},
	}
	cfg.ValidationScoreField = map[string]string{"msgf": "SpecEValue"}
	cfg.BiggerScoresBetter = map[string]bool{"msgf": false}
	cfg.EngineNotation = map[string]string{"msfragger": "bracket"}
	cfg.WorkerCount = 2
	return cfg
}

func psm(engine, id, seq, raw string, charge int) *core.PSM {
	return &core.PSM{
		SpectrumID:       id,
		Sequence:         seq,
		RawModifications: raw,
		RawNotation:      "at",
		Charge:           charge,
		SearchEngine:     engine,
		Extra:            map[string]string{},
	}
}

func testPSMs() []*core.PSM {
	msgf := []*core.PSM{
		psm("msgf", "index=1", "PEPTIDEK", "", 2),
		psm("msgf", "index=2", "MCPEPK", "15.994915@1", 2),
		psm("msgf", "index=3", "ACDEFGHIK", "42.010565@0", 3),
		psm("msgf", "index=4", "SAMPLER", "79.966331@1;15.994915@3", 2),
		psm("msgf", "index=5", "MCDK", "73.0164@1", 2),
	}
	for i, p := range msgf {
		p.Extra["SpecEValue"] = "1e-1" + string(rune('0'+i))
	}
	msfragger := []*core.PSM{
		psm("msfragger", "scan=1", "n[42.0106]PEPTIDEK", "", 2),
		psm("msfragger", "scan=2", "PEPM[15.9949]CK", "", 3),
		psm("msfragger", "scan=3", "AC[57.0215]DK", "", 2),
		psm("msfragger", "scan=4", "PEPS[79.9663]TK", "", 2),
		psm("msfragger", "scan=5", "M[15.9949]PEPTIDER", "", 1),
	}
	for _, p := range msfragger {
		p.RawNotation = ""
		p.Extra["hyperscore"] = "20"
	}
	return append(msgf, msfragger...)
}

func newPipeline(t *testing.T, cfg *config.Config, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestRunEndToEnd(t *testing.T) {
	mapper, err := protein.Load(strings.NewReader(testFasta))
	if err != nil {
		t.Fatal(err)
	}
	p := newPipeline(t, testConfig(), WithMapper(mapper))

	res, err := p.Run(context.Background(), testPSMs())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Summary.RowsIn != 10 || res.Summary.RowsOut != 10 || len(res.Rejected) != 0 {
		t.Fatalf("Summary = %+v, rejected %d", res.Summary, len(res.Rejected))
	}

	wantMods := map[string]string{
		"index=1": "",
		"index=2": "Oxidation:1;Carbamidomethyl:2",
		"index=3": "Acetyl:0;Carbamidomethyl:2",
		"index=4": "Phospho:1;Oxidation:3",
		"index=5": "Oxidation:1;Carbamidomethyl:2",
		"scan=1":  "Acetyl:0",
		"scan=2":  "Oxidation:4;Carbamidomethyl:5",
		"scan=3":  "Carbamidomethyl:2",
		"scan=4":  "Phospho:4",
		"scan=5":  "Oxidation:1",
	}
	tokens := map[string]int{}
	for _, r := range res.PSMs {
		if got := r.ModString(); got != wantMods[r.SpectrumID] {
			t.Errorf("%s modifications = %q, want %q", r.SpectrumID, got, wantMods[r.SpectrumID])
		}
		tokens[r.SearchEngine] += len(r.Modifications)

		// Every cysteine carries the fixed modification
		cam := strings.Count(r.ModString(), "Carbamidomethyl:")
		if c := strings.Count(r.Sequence, "C"); cam != c {
			t.Errorf("%s has %d Carbamidomethyl tokens for %d cysteines", r.SpectrumID, cam, c)
		}
	}
	if tokens["msgf"] != 8 || tokens["msfragger"] != 6 {
		t.Errorf("token counts = %v, want msgf 8 and msfragger 6", tokens)
	}

	s, err := stats.Summarize(res.Table)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	wantMean := map[string]float64{"msgf": 392.539870366, "msfragger": 493.157758757}
	for engine, want := range wantMean {
		e, ok := s.Engine(engine)
		if !ok {
			t.Fatalf("no statistics for %s", engine)
		}
		if math.Abs(e.MeanUCalcMZ-want) > 1e-6 {
			t.Errorf("%s mean uCalc m/z = %.9f, want %.9f", engine, e.MeanUCalcMZ, want)
		}
	}
	wantCounts := map[string]int{"Oxidation": 5, "Carbamidomethyl": 5, "Acetyl": 2, "Phospho": 2}
	for name, n := range wantCounts {
		if s.Mods[name] != n {
			t.Errorf("%s tokens = %d, want %d", name, s.Mods[name], n)
		}
	}
	if s.Decoys != 1 {
		t.Errorf("decoys = %d, want 1", s.Decoys)
	}
}

func TestRunAnnotations(t *testing.T) {
	mapper, err := protein.Load(strings.NewReader(testFasta))
	if err != nil {
		t.Fatal(err)
	}
	p := newPipeline(t, testConfig(), WithMapper(mapper))
	res, err := p.Run(context.Background(), testPSMs())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	byID := map[string]*core.PSM{}
	for _, r := range res.PSMs {
		byID[r.SpectrumID] = r
	}

	pep := byID["index=1"]
	if pep.ProteinID != "sp|P1|TEST" || pep.SequencePre != "-" || pep.SequencePost != "A" {
		t.Errorf("protein annotation = %s %s %s", pep.ProteinID, pep.SequencePre, pep.SequencePost)
	}
	if pep.EnzN == nil || !*pep.EnzN || pep.EnzC == nil || !*pep.EnzC {
		t.Errorf("enzyme classification = %v %v", pep.EnzN, pep.EnzC)
	}
	if pep.Rank == nil || *pep.Rank != 1 {
		t.Errorf("rank = %v, want 1", pep.Rank)
	}
	if byID["scan=1"].Rank != nil {
		t.Errorf("unconfigured engine ranked")
	}
	if !byID["scan=3"].IsDecoy || byID["index=1"].IsDecoy {
		t.Error("decoy tagging mismatch")
	}
	if byID["scan=1"].Sequence != "PEPTIDEK" {
		t.Errorf("bracket sequence = %s", byID["scan=1"].Sequence)
	}
	if byID["index=2"].Formula == "" || byID["index=2"].UCalcMass == nil {
		t.Error("mass not computed")
	}

	// Canonical columns then extras sorted by name
	h := res.Table.Header
	if len(h) != len(sanitize.Columns)+2 || h[len(h)-2] != "SpecEValue" || h[len(h)-1] != "hyperscore" {
		t.Errorf("header tail = %v", h[len(sanitize.Columns):])
	}
}

func TestRunRejected(t *testing.T) {
	cfg := testConfig()
	cfg.UnmappableThreshold = 0.5
	p := newPipeline(t, cfg)

	psms := []*core.PSM{
		psm("msgf", "index=1", "PEPTIDEK", "", 2),
		psm("msgf", "index=2", "PEPXK", "", 2),
		psm("msgf", "index=3", "PEPTIDEK", "999.1234@2", 2),
		psm("msgf", "index=1", "PEPTIDEK", "", 2),
		psm("msgf", "index=4", "PEPTIDEK", "", 0),
	}
	res, err := p.Run(context.Background(), psms)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sum := res.Summary
	if sum.Malformed != 1 || sum.Unmappable != 1 || sum.Invalid != 1 || sum.Filter.Duplicates != 1 || sum.RowsOut != 1 {
		t.Errorf("Summary = %+v", sum)
	}
	if len(res.Rejected) != 3 {
		t.Errorf("rejected = %d, want 3", len(res.Rejected))
	}
	if math.Abs(sum.UnmappableFraction()-0.2) > 1e-12 {
		t.Errorf("UnmappableFraction() = %v", sum.UnmappableFraction())
	}
}

func TestRunUnmappableThreshold(t *testing.T) {
	p := newPipeline(t, testConfig())
	psms := []*core.PSM{
		psm("msgf", "index=1", "PEPTIDEK", "", 2),
		psm("msgf", "index=2", "PEPTIDEK", "999.1234@2", 2),
	}
	_, err := p.Run(context.Background(), psms)
	if !errors.Is(err, core.ErrUnmappableFraction) {
		t.Errorf("Run() error = %v, want ErrUnmappableFraction", err)
	}
}

type missingIndex struct{}

func (missingIndex) Annotate(p *core.PSM) error {
	return &core.LookupKeyError{SpectrumID: p.SpectrumKey()}
}

func TestRunLookupKeyError(t *testing.T) {
	p := newPipeline(t, testConfig(), WithSpectrumIndex(missingIndex{}))
	_, err := p.Run(context.Background(), testPSMs())
	var lke *core.LookupKeyError
	if !errors.As(err, &lke) || lke.SpectrumID != "index=1" {
		t.Errorf("Run() error = %v, want LookupKeyError for index=1", err)
	}
}

func TestNewConfigurationError(t *testing.T) {
	cfg := testConfig()
	cfg.Modifications = append(cfg.Modifications, catalog.Spec{AA: "K", Type: catalog.Optional, Name: "NoSuchMod"})
	_, err := New(cfg)
	var ce *core.ConfigurationError
	if !errors.As(err, &ce) || ce.Key != "modifications" {
		t.Errorf("New() error = %v, want ConfigurationError on modifications", err)
	}

	cfg = testConfig()
	cfg.Enzyme = "[KR"
	_, err = New(cfg)
	if !errors.As(err, &ce) || ce.Key != "enzyme" {
		t.Errorf("New() error = %v, want ConfigurationError on enzyme", err)
	}
}

func TestRunDuplicatesBeforeRanking(t *testing.T) {
	rows := func() []*core.PSM {
		psms := []*core.PSM{
			psm("msgf", "index=1", "PEPTIDEK", "", 2),
			psm("msgf", "index=1", "PEPTIDEK", "", 2),
			psm("msgf", "index=1", "PEPTIDER", "", 2),
		}
		psms[0].Extra["SpecEValue"] = "1e-10"
		psms[1].Extra["SpecEValue"] = "1e-10"
		psms[2].Extra["SpecEValue"] = "1e-5"
		return psms
	}

	p := newPipeline(t, testConfig())
	res, err := p.Run(context.Background(), rows())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.PSMs) != 2 || res.Summary.Filter.Duplicates != 1 {
		t.Fatalf("kept %d rows, %d duplicates", len(res.PSMs), res.Summary.Filter.Duplicates)
	}
	for i, want := range []int{1, 2} {
		if r := res.PSMs[i]; r.Rank == nil || *r.Rank != want {
			t.Errorf("%s rank = %v, want %d", r.Sequence, r.Rank, want)
		}
	}

	cfg := testConfig()
	cfg.KeepDuplicates = true
	res, err = newPipeline(t, cfg).Run(context.Background(), rows())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.PSMs) != 3 || res.Summary.Filter.Duplicates != 0 {
		t.Errorf("KeepDuplicates kept %d rows, %d duplicates", len(res.PSMs), res.Summary.Filter.Duplicates)
	}
}

func TestRunEngineFilter(t *testing.T) {
	cfg := testConfig()
	cfg.Engines = []string{"msfragger"}
	res, err := newPipeline(t, cfg).Run(context.Background(), testPSMs())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.PSMs) != 5 || res.Summary.Filter.Engine != 5 {
		t.Errorf("kept %d rows, %d removed by engine", len(res.PSMs), res.Summary.Filter.Engine)
	}
	for _, r := range res.PSMs {
		if r.SearchEngine != "msfragger" {
			t.Errorf("row of engine %s kept", r.SearchEngine)
		}
	}
}

func TestRunZeroUnmappableThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.UnmappableThreshold = 0
	psms := testPSMs()
	psms[0].RawModifications = "999.1234@2"
	_, err := newPipeline(t, cfg).Run(context.Background(), psms)
	if !errors.Is(err, core.ErrUnmappableFraction) {
		t.Errorf("Run() error = %v, want ErrUnmappableFraction", err)
	}
}

func TestMassStageUnmappableCounts(t *testing.T) {
	p := newPipeline(t, testConfig())
	psms := []*core.PSM{
		psm("msgf", "index=1", "PEPTIDEK", "", 2),
		psm("msgf", "index=2", "PEPTIDEK", "", 2),
	}
	psms[1].Modifications = []core.Modification{{Name: "NoSuchMod", Position: 2}}

	sum := Summary{RowsIn: len(psms)}
	sample, err := p.massAll(context.Background(), psms, &sum)
	if err != nil {
		t.Fatalf("massAll() error = %v", err)
	}
	var ume *core.UnmappableModificationError
	if sum.Unmappable != 1 || !psms[1].Unmappable || !errors.As(sample, &ume) {
		t.Fatalf("Unmappable = %d, sample = %v", sum.Unmappable, sample)
	}
	if psms[0].UCalcMZ == nil {
		t.Error("mass not computed for the mappable row")
	}

	// The threshold applies to rows dropped by the mass stage too
	if err := p.checkUnmappable(sum, sample); !errors.Is(err, core.ErrUnmappableFraction) {
		t.Errorf("checkUnmappable() error = %v, want ErrUnmappableFraction", err)
	}
}
