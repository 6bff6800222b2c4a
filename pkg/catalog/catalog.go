// Package catalog builds the canonical modification catalog from the user
// configuration and precomputes the composite mass table derived from it.
package catalog

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

// DefaultPrecision is the number of decimals used for mass keys. It matches
// the granularity of Unimod monoisotopic masses.
const DefaultPrecision int32 = 5

// ModType marks a modification as fixed or optional (variable).
type ModType string

const (
	Fixed    ModType = "fix"
	Optional ModType = "opt"
)

// Position is a site class a modification may occupy.
type Position string

const (
	Any       Position = "any"
	ProtNTerm Position = "Prot-N-term"
	NTerm     Position = "N-term"
	ProtCTerm Position = "Prot-C-term"
	CTerm     Position = "C-term"
)

// AnyResidue is the amino acid wildcard used for terminal modifications.
const AnyResidue = "*"

// Spec is one configured modification declaration.
type Spec struct {
	AA       string   `json:"aa" yaml:"aa"`
	Type     ModType  `json:"type" yaml:"type"`
	Position Position `json:"position" yaml:"position"`
	Name     string   `json:"name" yaml:"name"`
}

// MassLookup resolves a modification name to its monoisotopic mass.
type MassLookup interface {
	GetMass(name string) (float64, bool)
}

// Entry is one catalog modification with every residue and site class it
// was declared for. Sites keeps the declared (position, residue) pairs.
type Entry struct {
	Name       string
	Mass       decimal.Decimal
	AminoAcids map[string]bool
	Positions  map[Position]bool
	Sites      map[Position]map[string]bool
}

// MassFloat returns the entry mass as float64.
func (e *Entry) MassFloat() float64 {
	return e.Mass.InexactFloat64()
}

// AcceptsResidue reports whether the entry may sit on residue aa.
func (e *Entry) AcceptsResidue(aa byte) bool {
	return e.AminoAcids[AnyResidue] || e.AminoAcids[string(aa)]
}

// AcceptsAt reports whether the entry was declared for residue aa at site class p.
func (e *Entry) AcceptsAt(p Position, aa byte) bool {
	site := e.Sites[p]
	return site[AnyResidue] || site[string(aa)]
}

// SideChainEligible reports whether aa may carry the entry away from the termini.
func (e *Entry) SideChainEligible(aa byte) bool {
	return e.AcceptsAt(Any, aa)
}

// NTermEligible reports whether a peptide starting with aa may carry the entry on its N-terminus.
func (e *Entry) NTermEligible(aa byte) bool {
	return e.AcceptsAt(NTerm, aa) || e.AcceptsAt(ProtNTerm, aa)
}

// CTermEligible reports whether a peptide ending with aa may carry the entry on its C-terminus.
func (e *Entry) CTermEligible(aa byte) bool {
	return e.AcceptsAt(CTerm, aa) || e.AcceptsAt(ProtCTerm, aa)
}

// NTerminal reports whether the entry has a peptide or protein N-terminal site class.
func (e *Entry) NTerminal() bool {
	return e.Positions[NTerm] || e.Positions[ProtNTerm]
}

// CTerminal reports whether the entry has a peptide or protein C-terminal site class.
func (e *Entry) CTerminal() bool {
	return e.Positions[CTerm] || e.Positions[ProtCTerm]
}

// FixedSite is a residue (or terminus) that always carries a modification.
type FixedSite struct {
	AA       string
	Position Position
	Name     string
}

// Catalog is the read-only modification catalog of one configuration.
type Catalog struct {
	entries   []*Entry // sorted by name
	byName    map[string]*Entry
	byFold    map[string]*Entry
	fixed     []FixedSite
	precision int32
}

// Build creates the catalog. Every declared name must resolve to a mass.
func Build(specs []Spec, masses MassLookup, precision int32) (*Catalog, error) {
	if precision <= 0 {
		precision = DefaultPrecision
	}

	c := &Catalog{
		byName:    make(map[string]*Entry),
		byFold:    make(map[string]*Entry),
		precision: precision,
	}

	for i, s := range specs {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, &core.ConfigurationError{Key: "modifications", Message: "entry " + strconv.Itoa(i) + " has no name"}
		}
		pos := s.Position
		if pos == "" {
			pos = Any
		}
		if !validPosition(pos) {
			return nil, &core.ConfigurationError{Key: "modifications", Message: "unknown position '" + string(pos) + "' for " + name}
		}
		aa := strings.TrimSpace(s.AA)
		if aa == "" {
			aa = AnyResidue
		}

		entry, ok := c.byName[name]
		if !ok {
			mass, found := masses.GetMass(name)
			if !found {
				return nil, &core.ConfigurationError{Key: "modifications", Message: "no mass for modification '" + name + "'"}
			}
			entry = &Entry{
				Name:       name,
				Mass:       decimal.NewFromFloat(mass),
				AminoAcids: make(map[string]bool),
				Positions:  make(map[Position]bool),
				Sites:      make(map[Position]map[string]bool),
			}
			c.byName[name] = entry
			c.byFold[strings.ToLower(name)] = entry
			c.entries = append(c.entries, entry)
		}
		entry.AminoAcids[aa] = true
		entry.Positions[pos] = true
		if entry.Sites[pos] == nil {
			entry.Sites[pos] = make(map[string]bool)
		}
		entry.Sites[pos][aa] = true

		if s.Type == Fixed {
			c.fixed = append(c.fixed, FixedSite{AA: aa, Position: pos, Name: name})
		}
	}

	sort.Slice(c.entries, func(i, j int) bool { return c.entries[i].Name < c.entries[j].Name })
	return c, nil
}

func validPosition(p Position) bool {
	switch p {
	case Any, ProtNTerm, NTerm, ProtCTerm, CTerm:
		return true
	}
	return false
}

// Len returns the number of distinct modifications.
func (c *Catalog) Len() int { return len(c.entries) }

// Precision returns the number of decimals of mass keys.
func (c *Catalog) Precision() int32 { return c.precision }

// Entries returns the entries sorted by name. The slice must not be modified.
func (c *Catalog) Entries() []*Entry { return c.entries }

// Entry returns the entry by exact name, falling back to a case-insensitive match.
func (c *Catalog) Entry(name string) (*Entry, bool) {
	if e, ok := c.byName[name]; ok {
		return e, true
	}
	e, ok := c.byFold[strings.ToLower(name)]
	return e, ok
}

// Has reports whether name is in the catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Entry(name)
	return ok
}

// FixedSites returns the fixed modification declarations in configuration order.
func (c *Catalog) FixedSites() []FixedSite { return c.fixed }

// MassKey rounds a mass to the catalog precision and renders it as a key.
func (c *Catalog) MassKey(mass decimal.Decimal) string {
	return mass.Round(c.precision).StringFixed(c.precision)
}

// Near returns entries whose rounded mass is within tol of the rounded
// mass, closest first and by name on ties. A zero tol matches the key only.
func (c *Catalog) Near(mass, tol decimal.Decimal) []*Entry {
	m := mass.Round(c.precision)
	var out []*Entry
	for _, e := range c.entries {
		if e.Mass.Round(c.precision).Sub(m).Abs().Cmp(tol) <= 0 {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di := out[i].Mass.Round(c.precision).Sub(m).Abs()
		dj := out[j].Mass.Round(c.precision).Sub(m).Abs()
		return di.Cmp(dj) < 0
	})
	return out
}

// Collisions returns groups of distinct names whose masses share a key at
// the catalog precision. Such names can only be told apart by eligibility.
func (c *Catalog) Collisions() [][]string {
	groups := make(map[string][]string)
	var keys []string
	for _, e := range c.entries {
		k := c.MassKey(e.Mass)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e.Name)
	}
	sort.Strings(keys)

	var out [][]string
	for _, k := range keys {
		if len(groups[k]) > 1 {
			out = append(out, groups[k])
		}
	}
	return out
}
