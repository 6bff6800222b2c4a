// Package core provides modification lookup and management
package core

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ModDatabase stores modification definitions. It serves both directions of
// the Unimod lookup: name -> mass and mass -> names.
type ModDatabase struct {
	mods  map[string]float64     // name -> mass shift
	comps map[string]Composition // name -> elemental delta, when known
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods:  make(map[string]float64),
		comps: make(map[string]Composition),
	}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift[,aa])
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	if scanner.Scan() {
		// header line
	}

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		modName := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}

		db.Add(modName, mass)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

// GetComposition returns the elemental delta of a modification if known
func (db *ModDatabase) GetComposition(name string) (Composition, bool) {
	comp, ok := db.comps[name]
	return comp, ok
}

// Add adds or updates a modification. A custom mass drops any known composition.
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
	delete(db.comps, name)
}

// AddComposition adds or updates a modification defined by its elemental delta
func (db *ModDatabase) AddComposition(name string, comp Composition) {
	db.mods[name] = comp.Mass()
	db.comps[name] = comp
}

// Names returns all modification names, sorted
func (db *ModDatabase) Names() []string {
	names := make([]string, 0, len(db.mods))
	for name := range db.mods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NamesForMass returns the names whose mass lies within tol of mass, closest
// first and alphabetically among equally close names.
func (db *ModDatabase) NamesForMass(mass, tol float64) []string {
	type hit struct {
		name string
		diff float64
	}
	var hits []hit
	for name, m := range db.mods {
		if d := math.Abs(m - mass); d <= tol {
			hits = append(hits, hit{name: name, diff: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].diff != hits[j].diff {
			return hits[i].diff < hits[j].diff
		}
		return hits[i].name < hits[j].name
	})

	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.name
	}
	return names
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	// Common modifications from unimod, by composition where it only uses C/H/N/O/S/P
	db.AddComposition("Acetyl", Composition{C: 2, H: 2, O: 1})
	db.AddComposition("Amidated", Composition{H: 1, N: 1, O: -1})
	db.AddComposition("Carbamidomethyl", Composition{C: 2, H: 3, N: 1, O: 1})
	db.AddComposition("Carbamyl", Composition{C: 1, H: 1, N: 1, O: 1})
	db.AddComposition("Carboxymethyl", Composition{C: 2, H: 2, O: 2})
	db.AddComposition("Deamidated", Composition{H: -1, N: -1, O: 1})
	db.AddComposition("Oxidation", Composition{O: 1})
	db.AddComposition("Dioxidation", Composition{O: 2})
	db.AddComposition("Phospho", Composition{H: 1, O: 3, P: 1})
	db.AddComposition("Dehydrated", Composition{H: -2, O: -1})
	db.AddComposition("Glu->pyro-Glu", Composition{H: -2, O: -1})
	db.AddComposition("Gln->pyro-Glu", Composition{H: -3, N: -1})
	db.AddComposition("Methyl", Composition{C: 1, H: 2})
	db.AddComposition("Dimethyl", Composition{C: 2, H: 4})
	db.AddComposition("Trimethyl", Composition{C: 3, H: 6})
	db.AddComposition("Methylthio", Composition{C: 1, H: 2, S: 1})
	db.AddComposition("Propionamide", Composition{C: 3, H: 5, N: 1, O: 1})
	db.AddComposition("Propionyl", Composition{C: 3, H: 4, O: 1})
	db.AddComposition("Guanidinyl", Composition{C: 1, H: 2, N: 2})
	db.AddComposition("Hex", Composition{C: 6, H: 10, O: 5})
	db.AddComposition("HexNAc", Composition{C: 8, H: 13, N: 1, O: 5})
	db.AddComposition("Sulfo", Composition{O: 3, S: 1})
	db.AddComposition("Met->Hse", Composition{C: -1, H: -2, O: 1, S: -1})
	db.AddComposition("Met->Hsl", Composition{C: -1, H: -4, S: -1})
	db.AddComposition("GG", Composition{C: 4, H: 6, N: 2, O: 2})
	db.AddComposition("Formyl", Composition{C: 1, O: 1})

	// Mass only: isotope labels or elements the composition service does not track
	db.Add("Cation:Na", 21.981943)
	db.Add("NIPCAM", 99.068414)
	db.Add("Pyro-carbamidomethyl", 39.994915)
	db.Add("Biotin", 226.077598)
	db.Add("Lipoyl", 188.032956)
	db.Add("Farnesyl", 204.187801)
	db.Add("Myristoyl", 210.198366)
	db.Add("PyridoxalPhosphate", 229.014009)
	db.Add("Palmitoyl", 238.229666)
	db.Add("GeranylGeranyl", 272.250401)
	db.Add("Phosphopantetheine", 340.085794)
	db.Add("FAD", 783.141486)
	db.Add("HNE", 156.11503)
	db.Add("Glucuronyl", 176.032088)
	db.Add("Glutathione", 305.068156)
	db.Add("TMT", 224.152478)
	db.Add("TMT6plex", 229.162932)
	db.Add("TMTpro", 304.207146)
	db.Add("iTRAQ4plex", 144.102063)
	db.Add("iTRAQ8plex", 304.205360)
	db.Add("Label:13C(6)", 6.020129)
	db.Add("Label:13C(6)15N(2)", 8.014199)
	db.Add("Label:13C(6)15N(4)", 10.008269)

	return db
}
