// Package core provides chemistry calculations for peptide mass calculations
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Atomic masses (monoisotopic)
const (
	MassH  = 1.0078250321
	MassC  = 12.0000000000
	MassN  = 14.0030740052
	MassO  = 15.9949146221
	MassS  = 31.9720706900
	MassP  = 30.9737615100
	MassSe = 79.9165218

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688
)

// Composition stores elemental composition. Counts may be negative for
// modification deltas (e.g., Deamidated is H-1 N-1 O1).
type Composition struct {
	C, H, N, O, S, P, Se int
}

// Add returns the element-wise sum of two compositions.
func (c Composition) Add(o Composition) Composition {
	return Composition{
		C:  c.C + o.C,
		H:  c.H + o.H,
		N:  c.N + o.N,
		O:  c.O + o.O,
		S:  c.S + o.S,
		P:  c.P + o.P,
		Se: c.Se + o.Se,
	}
}

// Mass returns the monoisotopic mass of the composition.
func (c Composition) Mass() float64 {
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS +
		float64(c.P)*MassP +
		float64(c.Se)*MassSe
}

// Formula returns the Hill notation of the composition (C, H, then alphabetical).
func (c Composition) Formula() string {
	var b strings.Builder
	write := func(sym string, n int) {
		if n == 0 {
			return
		}
		b.WriteString(sym)
		if n != 1 {
			b.WriteString(strconv.Itoa(n))
		}
	}
	write("C", c.C)
	write("H", c.H)
	write("N", c.N)
	write("O", c.O)
	write("P", c.P)
	write("S", c.S)
	write("Se", c.Se)
	return b.String()
}

// AminoAcidCompositions maps amino acid one-letter codes to residue composition
var AminoAcidCompositions = map[rune]Composition{
	'A': {C: 3, H: 5, N: 1, O: 1},
	'R': {C: 6, H: 12, N: 4, O: 1},
	'N': {C: 4, H: 6, N: 2, O: 2},
	'D': {C: 4, H: 5, N: 1, O: 3},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3},
	'Q': {C: 5, H: 8, N: 2, O: 2},
	'G': {C: 2, H: 3, N: 1, O: 1},
	'H': {C: 6, H: 7, N: 3, O: 1},
	'I': {C: 6, H: 11, N: 1, O: 1},
	'L': {C: 6, H: 11, N: 1, O: 1},
	'K': {C: 6, H: 12, N: 2, O: 1},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1},
	'P': {C: 5, H: 7, N: 1, O: 1},
	'S': {C: 3, H: 5, N: 1, O: 2},
	'T': {C: 4, H: 7, N: 1, O: 2},
	'W': {C: 11, H: 10, N: 2, O: 1},
	'Y': {C: 9, H: 9, N: 1, O: 2},
	'V': {C: 5, H: 9, N: 1, O: 1},
	'U': {C: 3, H: 5, N: 1, O: 1, Se: 1},
	'O': {C: 12, H: 19, N: 3, O: 2},
}

var water = Composition{H: 2, O: 1}

// Composer is the composition service: it turns a sequence and named
// modifications into a neutral monoisotopic mass and a formula. It is
// read-only after construction and safe to share between workers.
type Composer struct {
	mods *ModDatabase
}

// NewComposer creates a composition service backed by a modification database
func NewComposer(db *ModDatabase) *Composer {
	if db == nil {
		db = DefaultModDatabase()
	}
	return &Composer{mods: db}
}

// MassAndComposition computes the neutral monoisotopic mass of a modified
// peptide and its formula. Modifications with a known composition contribute
// to the formula; the others contribute their mass only and are appended to
// the formula as "+Name".
func (c *Composer) MassAndComposition(sequence string, modifications []Modification) (float64, string, error) {
	comp := water

	for i, aa := range sequence {
		aaComp, ok := AminoAcidCompositions[aa]
		if !ok {
			return 0, "", fmt.Errorf("residue '%c' at position %d of %s: %w", aa, i+1, sequence, ErrMalformedSequence)
		}
		comp = comp.Add(aaComp)
	}

	extraMass := 0.0
	var extraNames []string
	for _, mod := range modifications {
		if modComp, ok := c.mods.GetComposition(mod.Name); ok {
			comp = comp.Add(modComp)
			continue
		}
		mass := mod.Mass
		if mass == 0 {
			m, ok := c.mods.GetMass(mod.Name)
			if !ok {
				return 0, "", &UnmappableModificationError{Sequence: sequence, Token: mod.Name, Position: mod.Position}
			}
			mass = m
		}
		extraMass += mass
		extraNames = append(extraNames, mod.Name)
	}

	formula := comp.Formula()
	for _, name := range extraNames {
		formula += "+" + name
	}

	return comp.Mass() + extraMass, formula, nil
}

// CalcMZ converts a neutral mass to m/z: (mass + charge * proton) / charge
func CalcMZ(mass float64, charge int) float64 {
	return (mass + float64(charge)*ProtonMass) / float64(charge)
}

// AccuracyPPM returns the relative deviation of the experimental from the
// calculated m/z in parts per million.
func AccuracyPPM(expMZ, calcMZ float64) float64 {
	return (expMZ - calcMZ) / calcMZ * 1e6
}
