// Package position maps engine-local modification positions onto the
// canonical convention: 0 is the peptide N-terminus, 1..L the residues.
// C-terminal modifications sit on L.
package position

import (
	"github.com/ChrisMcGann/psmnorm/pkg/catalog"
)

// Terminal marks an observed position as explicitly terminal.
type Terminal int

const (
	Residue Terminal = iota
	NTerminus
	CTerminus
)

// Normalizer applies per-engine residue index offsets. Engines reporting
// 0-based residue indices are configured with offset 1.
type Normalizer struct {
	offsets map[string]int
}

// NewNormalizer creates a normalizer from engine -> offset.
func NewNormalizer(offsets map[string]int) *Normalizer {
	m := make(map[string]int, len(offsets))
	for k, v := range offsets {
		m[k] = v
	}
	return &Normalizer{offsets: m}
}

// Residue converts an engine residue index to the canonical 1-based index.
// Terminal observations are passed through untouched.
func (n *Normalizer) Residue(engine string, pos int, term Terminal) int {
	if term != Residue {
		return pos
	}
	return pos + n.offsets[engine]
}

// Place returns the canonical position of entry e observed at pos on
// sequence, or false when the entry is not eligible there.
//
// N-terminal entries are forced to 0 when observed on the terminus or the
// first residue, or on a residue they cannot occupy as a side-chain
// modification. C-terminal entries map to len(sequence).
func Place(e *catalog.Entry, sequence string, pos int, term Terminal) (int, bool) {
	l := len(sequence)
	if l == 0 {
		return 0, false
	}

	nOK := e.NTermEligible(sequence[0])
	cOK := e.CTermEligible(sequence[l-1])

	switch {
	case term == NTerminus || pos <= 0:
		return 0, nOK
	case term == CTerminus || pos > l:
		if cOK {
			return l, true
		}
		return 0, false
	}

	residueOK := e.SideChainEligible(sequence[pos-1])
	if nOK && (pos == 1 || !residueOK) {
		return 0, true
	}
	if residueOK {
		return pos, true
	}
	if cOK && pos == l {
		return l, true
	}
	return 0, false
}
