package resolve

import (
	"github.com/ChrisMcGann/psmnorm/pkg/catalog"
	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

// ApplyFixed appends the fixed modifications of c that mods does not already
// carry. Every residue matching a fixed declaration gets one token; protein
// terminal declarations are treated as peptide terminal.
func ApplyFixed(c *catalog.Catalog, sequence string, mods []core.Modification) []core.Modification {
	if len(sequence) == 0 {
		return mods
	}

	type site struct {
		name string
		pos  int
	}
	present := make(map[site]bool, len(mods))
	for _, m := range mods {
		present[site{m.Name, m.Position}] = true
	}

	add := func(e *catalog.Entry, pos int) {
		s := site{e.Name, pos}
		if present[s] {
			return
		}
		present[s] = true
		mods = append(mods, core.Modification{Name: e.Name, Position: pos, Mass: e.MassFloat()})
	}

	for _, fs := range c.FixedSites() {
		e, ok := c.Entry(fs.Name)
		if !ok {
			continue
		}
		matches := func(aa byte) bool {
			return fs.AA == catalog.AnyResidue || fs.AA == string(aa)
		}

		switch fs.Position {
		case catalog.NTerm, catalog.ProtNTerm:
			if matches(sequence[0]) {
				add(e, 0)
			}
		case catalog.CTerm, catalog.ProtCTerm:
			if matches(sequence[len(sequence)-1]) {
				add(e, len(sequence))
			}
		default:
			for i := 0; i < len(sequence); i++ {
				if matches(sequence[i]) {
					add(e, i+1)
				}
			}
		}
	}
	return mods
}
