// Package stats computes summary statistics of unified PSM tables.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
	"github.com/ChrisMcGann/psmnorm/pkg/sanitize"
)

// Engine holds the statistics of one search engine.
type Engine struct {
	Name        string
	PSMs        int
	Decoys      int
	MeanUCalcMZ float64 // NaN when no row has a computed m/z
	MeanPPM     float64 // NaN when no row has an accuracy
	StdDevPPM   float64
}

// Summary holds the statistics of a table.
type Summary struct {
	Rows    int
	Decoys  int
	Engines []Engine       // sorted by name
	Mods    map[string]int // modification token counts by name
}

// DecoyFraction returns the fraction of decoy rows, 0 for an empty table.
func (s *Summary) DecoyFraction() float64 {
	if s.Rows == 0 {
		return 0
	}
	return float64(s.Decoys) / float64(s.Rows)
}

// Engine returns the statistics of engine name.
func (s *Summary) Engine(name string) (Engine, bool) {
	for _, e := range s.Engines {
		if e.Name == name {
			return e, true
		}
	}
	return Engine{}, false
}

type accumulator struct {
	psms   int
	decoys int
	mz     []float64
	ppm    []float64
}

// Summarize computes the summary of a sanitized table.
func Summarize(t *sanitize.Table) (*Summary, error) {
	engineIdx := t.Index(sanitize.ColSearchEngine)
	mzIdx := t.Index(sanitize.ColUCalcMZ)
	ppmIdx := t.Index(sanitize.ColAccuracy)
	modIdx := t.Index(sanitize.ColModifications)
	decoyIdx := t.Index(sanitize.ColIsDecoy)
	if engineIdx < 0 || mzIdx < 0 || ppmIdx < 0 || modIdx < 0 || decoyIdx < 0 {
		return nil, fmt.Errorf("table is missing canonical columns")
	}

	s := &Summary{Rows: len(t.Rows), Mods: make(map[string]int)}
	acc := make(map[string]*accumulator)

	for i, row := range t.Rows {
		a := acc[row[engineIdx]]
		if a == nil {
			a = &accumulator{}
			acc[row[engineIdx]] = a
		}
		a.psms++

		if row[decoyIdx] == "true" {
			a.decoys++
			s.Decoys++
		}
		if v := row[mzIdx]; v != "" {
			mz, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid %s '%s': %w", i+1, sanitize.ColUCalcMZ, v, err)
			}
			a.mz = append(a.mz, mz)
		}
		if v := row[ppmIdx]; v != "" {
			ppm, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid %s '%s': %w", i+1, sanitize.ColAccuracy, v, err)
			}
			a.ppm = append(a.ppm, ppm)
		}

		mods, err := core.ParseModifications(row[modIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		for _, m := range mods {
			s.Mods[m.Name]++
		}
	}

	for name, a := range acc {
		e := Engine{Name: name, PSMs: a.psms, Decoys: a.decoys, MeanUCalcMZ: math.NaN(), MeanPPM: math.NaN(), StdDevPPM: math.NaN()}
		if len(a.mz) > 0 {
			e.MeanUCalcMZ = stat.Mean(a.mz, nil)
		}
		switch len(a.ppm) {
		case 0:
		case 1:
			e.MeanPPM = a.ppm[0]
		default:
			e.MeanPPM, e.StdDevPPM = stat.MeanStdDev(a.ppm, nil)
		}
		s.Engines = append(s.Engines, e)
	}
	sort.Slice(s.Engines, func(i, j int) bool { return s.Engines[i].Name < s.Engines[j].Name })

	return s, nil
}

// Print writes a human readable report.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Rows: %d\n", s.Rows)
	fmt.Fprintf(w, "Decoy fraction: %.4f\n", s.DecoyFraction())
	fmt.Fprintf(w, "\n%-20s %8s %8s %14s %12s %12s\n", "Engine", "PSMs", "Decoys", "Mean m/z", "Mean ppm", "SD ppm")
	for _, e := range s.Engines {
		fmt.Fprintf(w, "%-20s %8d %8d %14.5f %12.3f %12.3f\n", e.Name, e.PSMs, e.Decoys, e.MeanUCalcMZ, e.MeanPPM, e.StdDevPPM)
	}

	if len(s.Mods) == 0 {
		return
	}
	names := make([]string, 0, len(s.Mods))
	for n := range s.Mods {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "\nModifications:\n")
	for _, n := range names {
		fmt.Fprintf(w, "  %-30s %d\n", n, s.Mods[n])
	}
}
