// Package decoy flags decoy and immutable identifications.
package decoy

import (
	"strings"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

// DefaultTag is the protein accession prefix of decoy sequences.
const DefaultTag = "decoy_"

// Tagger classifies PSMs by protein accession prefix.
type Tagger struct {
	tag       string
	delimiter string
	immutable []string
}

// NewTagger creates a tagger. An empty tag selects DefaultTag; an empty
// delimiter treats protein ids as single-valued.
func NewTagger(tag, delimiter string, immutable []string) *Tagger {
	if tag == "" {
		tag = DefaultTag
	}
	var imm []string
	for _, s := range immutable {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			imm = append(imm, s)
		}
	}
	return &Tagger{tag: tag, delimiter: delimiter, immutable: imm}
}

// IsDecoy reports whether every protein in proteinID carries the decoy tag.
// A peptide shared with a target protein is not a decoy.
func (t *Tagger) IsDecoy(proteinID string) bool {
	ids := []string{proteinID}
	if t.delimiter != "" {
		ids = strings.Split(proteinID, t.delimiter)
	}

	seen := 0
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if !strings.HasPrefix(id, t.tag) {
			return false
		}
		seen++
	}
	return seen > 0
}

// IsImmutable reports whether sequence occurs in one of the immutable peptides.
func (t *Tagger) IsImmutable(sequence string) bool {
	if sequence == "" {
		return false
	}
	sequence = strings.ToUpper(sequence)
	for _, s := range t.immutable {
		if strings.Contains(s, sequence) {
			return true
		}
	}
	return false
}

// Tag sets IsDecoy and IsImmutable on p.
func (t *Tagger) Tag(p *core.PSM) {
	p.IsDecoy = t.IsDecoy(p.ProteinID)
	p.IsImmutable = t.IsImmutable(p.Sequence)
}
