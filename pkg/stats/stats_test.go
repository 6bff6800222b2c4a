package stats

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
	"github.com/ChrisMcGann/psmnorm/pkg/sanitize"
)

func f(v float64) *float64 { return &v }

func TestSummarize(t *testing.T) {
	psms := []*core.PSM{
		{Sequence: "A", Charge: 1, SearchEngine: "comet", UCalcMZ: f(100), AccuracyPPM: f(2),
			Modifications: []core.Modification{{Name: "Oxidation", Position: 1}}},
		{Sequence: "B", Charge: 1, SearchEngine: "comet", UCalcMZ: f(200), AccuracyPPM: f(4), IsDecoy: true,
			Modifications: []core.Modification{{Name: "Oxidation", Position: 1}, {Name: "Acetyl", Position: 0}}},
		{Sequence: "C", Charge: 1, SearchEngine: "msgf", UCalcMZ: f(300), AccuracyPPM: f(-1)},
		{Sequence: "D", Charge: 1, SearchEngine: "xtandem"},
	}
	s, err := Summarize(sanitize.Build(psms))
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	nan := math.NaN()
	want := &Summary{
		Rows:   4,
		Decoys: 1,
		Engines: []Engine{
			{Name: "comet", PSMs: 2, Decoys: 1, MeanUCalcMZ: 150, MeanPPM: 3, StdDevPPM: math.Sqrt2},
			{Name: "msgf", PSMs: 1, MeanUCalcMZ: 300, MeanPPM: -1, StdDevPPM: nan},
			{Name: "xtandem", PSMs: 1, MeanUCalcMZ: nan, MeanPPM: nan, StdDevPPM: nan},
		},
		Mods: map[string]int{"Oxidation": 2, "Acetyl": 1},
	}
	opts := cmp.Options{cmpopts.EquateNaNs(), cmpopts.EquateApprox(0, 1e-9)}
	if diff := cmp.Diff(want, s, opts); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}
	if s.DecoyFraction() != 0.25 {
		t.Errorf("DecoyFraction() = %v, want 0.25", s.DecoyFraction())
	}
	if e, ok := s.Engine("msgf"); !ok || e.PSMs != 1 {
		t.Errorf("Engine(msgf) = %+v, %v", e, ok)
	}

	var buf bytes.Buffer
	s.Print(&buf)
	for _, want := range []string{"Rows: 4", "comet", "Oxidation", "Decoy fraction: 0.2500"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Print() output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestSummarizeErrors(t *testing.T) {
	if _, err := Summarize(&sanitize.Table{Header: []string{"x"}}); err == nil {
		t.Error("expected error for missing columns")
	}

	tbl := sanitize.Build([]*core.PSM{{Sequence: "A", Charge: 1, SearchEngine: "e"}})
	tbl.Rows[0][tbl.Index(sanitize.ColModifications)] = "broken"
	if _, err := Summarize(tbl); err == nil {
		t.Error("expected error for invalid modification annotation")
	}
}
