// Package enzyme classifies the cleavage specificity of peptide termini and
// counts missed cleavages.
package enzyme

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

// Integrity decides how alternative flanking residues are combined.
type Integrity string

const (
	// All requires every protein context to be compliant.
	All Integrity = "all"
	// AnyContext requires at least one compliant protein context.
	AnyContext Integrity = "any"
)

// ProteinTerminus is the flanking residue marking a protein end. It is
// always compliant.
const ProteinTerminus = "-"

// Rules maps enzyme names to cleavage rules. A rule is matched against the
// two residues around a bond, left residue first.
var Rules = map[string]string{
	"trypsin":      `[KR][^P]`,
	"trypsin/p":    `[KR].`,
	"lys-c":        `K[^P]`,
	"lys-n":        `.K`,
	"arg-c":        `R[^P]`,
	"asp-n":        `.D`,
	"glu-c":        `E[^P]`,
	"chymotrypsin": `[FLWY][^P]`,
	"pepsin":       `[FL].`,
}

// Classifier applies one cleavage rule to PSMs.
type Classifier struct {
	rule      *regexp.Regexp
	integrity Integrity
	delimiter string
}

// New compiles rule, which is either a name from Rules or a regular
// expression over a residue pair.
func New(rule string, integrity Integrity, delimiter string) (*Classifier, error) {
	if r, ok := Rules[strings.ToLower(rule)]; ok {
		rule = r
	}
	if rule == "" {
		return nil, &core.ConfigurationError{Key: "enzyme", Message: "no cleavage rule"}
	}
	re, err := regexp.Compile(`^(?:` + rule + `)`)
	if err != nil {
		return nil, &core.ConfigurationError{Key: "enzyme", Message: fmt.Sprintf("invalid cleavage rule '%s': %v", rule, err)}
	}

	switch integrity {
	case "":
		integrity = All
	case All, AnyContext:
	default:
		return nil, &core.ConfigurationError{
			Key:     "terminal_cleavage_site_integrity",
			Message: fmt.Sprintf("unknown mode '%s', expected 'all' or 'any'", integrity),
		}
	}

	return &Classifier{rule: re, integrity: integrity, delimiter: delimiter}, nil
}

// Cleaves reports whether the bond between left and right matches the rule.
func (c *Classifier) Cleaves(left, right byte) bool {
	return c.rule.MatchString(string([]byte{left, right}))
}

// MissedCleavages counts internal cleavage sites. The bond after the last
// residue is not counted.
func (c *Classifier) MissedCleavages(sequence string) int {
	n := 0
	for i := 0; i+1 < len(sequence); i++ {
		if c.Cleaves(sequence[i], sequence[i+1]) {
			n++
		}
	}
	return n
}

// NTerminal reports N-terminal compliance given the alternative residues
// before the peptide. The second result is false when pre carries no residue.
func (c *Classifier) NTerminal(pre, sequence string) (bool, bool) {
	if sequence == "" {
		return false, false
	}
	return c.combine(pre, func(flank string) bool {
		return flank == ProteinTerminus || c.Cleaves(flank[0], sequence[0])
	})
}

// CTerminal reports C-terminal compliance given the alternative residues
// after the peptide.
func (c *Classifier) CTerminal(sequence, post string) (bool, bool) {
	if sequence == "" {
		return false, false
	}
	last := sequence[len(sequence)-1]
	return c.combine(post, func(flank string) bool {
		return flank == ProteinTerminus || c.Cleaves(last, flank[0])
	})
}

func (c *Classifier) combine(flanks string, ok func(string) bool) (bool, bool) {
	var alts []string
	for _, f := range c.split(flanks) {
		if f = strings.TrimSpace(f); f != "" {
			alts = append(alts, strings.ToUpper(f))
		}
	}
	if len(alts) == 0 {
		return false, false
	}

	for _, f := range alts {
		compliant := ok(f)
		if c.integrity == AnyContext && compliant {
			return true, true
		}
		if c.integrity == All && !compliant {
			return false, true
		}
	}
	return c.integrity == All, true
}

func (c *Classifier) split(s string) []string {
	if c.delimiter == "" {
		return []string{s}
	}
	return strings.Split(s, c.delimiter)
}

// Classify sets EnzN, EnzC and MissedCleavages on p. Termini without
// flanking residues are left nil.
func (c *Classifier) Classify(p *core.PSM) {
	seq := strings.ToUpper(p.Sequence)

	if v, ok := c.NTerminal(p.SequencePre, seq); ok {
		p.EnzN = &v
	} else {
		p.EnzN = nil
	}
	if v, ok := c.CTerminal(seq, p.SequencePost); ok {
		p.EnzC = &v
	} else {
		p.EnzC = nil
	}
	mc := c.MissedCleavages(seq)
	p.MissedCleavages = &mc
}
