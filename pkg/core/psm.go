// Package core provides the intermediate representation (IR) models and validation logic
// for peptide-spectrum matches handled by psmnorm.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// PSM represents a single peptide-spectrum match with all associated metadata.
// Readers create it, every pipeline stage fills additional fields in place.
type PSM struct {
	// Reader fields
	SpectrumID       string
	SpectrumTitle    string
	Sequence         string
	RawModifications string // engine-specific annotation, see RawNotation
	RawNotation      string // notation of RawModifications ("at", "bracket", "colon")
	Charge           int
	SearchEngine     string
	ProteinID        string
	RetentionTime    *float64 // seconds
	ExpMZ            float64
	CalcMZ           *float64 // m/z as reported by the engine
	SequenceStart    string
	SequenceStop     string
	SequencePre      string
	SequencePost     string
	RawDataLocation  string

	// Engine specific columns, appended after the canonical block
	Extra map[string]string

	// Pipeline fields
	Modifications   []Modification
	UCalcMass       *float64
	UCalcMZ         *float64
	AccuracyPPM     *float64
	Formula         string
	Rank            *int
	EnzN            *bool
	EnzC            *bool
	MissedCleavages *int
	IsDecoy         bool
	IsImmutable     bool

	// Row state
	Unmappable bool
	Malformed  bool
}

// Modification represents a resolved modification with its canonical position.
type Modification struct {
	Mass     float64
	Position int    // 0 for N-term, 1..len(seq) for residues and C-term
	Name     string // Unimod name (e.g., "Carbamidomethyl", "Oxidation")
}

// Validate checks that a PSM meets the minimum requirements for processing.
func (p *PSM) Validate() error {
	var errs []string

	if p.Sequence == "" {
		errs = append(errs, "sequence is required")
	}
	if p.Charge <= 0 {
		errs = append(errs, "charge must be positive")
	}
	if p.SpectrumID == "" && p.SpectrumTitle == "" {
		errs = append(errs, "spectrum id or title is required")
	}
	if p.SearchEngine == "" {
		errs = append(errs, "search engine is required")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "PSM",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// SpectrumKey returns the identifier used to group PSMs of the same spectrum.
func (p *PSM) SpectrumKey() string {
	if p.SpectrumID != "" {
		return p.SpectrumID
	}
	return p.SpectrumTitle
}

// ModString returns the canonical annotation "Name:pos;Name:pos;..."
func (p *PSM) ModString() string {
	return FormatModifications(p.Modifications)
}

// FormatModifications serializes modifications in the order given.
func FormatModifications(mods []Modification) string {
	if len(mods) == 0 {
		return ""
	}

	parts := make([]string, 0, len(mods))
	for _, mod := range mods {
		parts = append(parts, mod.Name+":"+strconv.Itoa(mod.Position))
	}
	return strings.Join(parts, ";")
}

// ParseModifications parses a canonical annotation. Empty tokens are skipped,
// masses are left zero.
func ParseModifications(s string) ([]Modification, error) {
	var mods []Modification
	for _, tok := range strings.Split(s, ";") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		idx := strings.LastIndex(tok, ":")
		if idx <= 0 {
			return nil, fmt.Errorf("invalid modification token '%s', expected 'Name:position'", tok)
		}
		pos, err := strconv.Atoi(tok[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid position in modification token '%s': %w", tok, err)
		}
		mods = append(mods, Modification{Name: tok[:idx], Position: pos})
	}
	return mods, nil
}

// Name returns the PSM name in format "Sequence/Charge"
func (p *PSM) Name() string {
	return fmt.Sprintf("%s/%d", p.Sequence, p.Charge)
}
