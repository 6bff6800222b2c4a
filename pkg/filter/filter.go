// Package filter provides row filtering for the unified PSM table
package filter

import (
	"strconv"
	"strings"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN          int      // Keep only PSMs ranked <= N within their spectrum (0 = no limit)
	Engines       []string // Keep only the listed search engines (nil = all)
	RemoveDecoys  bool     // Drop decoy PSMs unless they are immutable
	KeepDuplicate bool     // Keep duplicate PSM rows
}

// Stats counts the rows removed by each filter.
type Stats struct {
	Duplicates int
	Engine     int
	Rank       int
	Decoys     int
}

// Removed returns the total number of removed rows.
func (s Stats) Removed() int {
	return s.Duplicates + s.Engine + s.Rank + s.Decoys
}

// Deduplicate drops repeated PSM rows, keeping the first of each
// DuplicateKey. Run it before ranking so duplicates do not take up ranks.
func (c *Config) Deduplicate(psms []*core.PSM) ([]*core.PSM, int) {
	if c.KeepDuplicate {
		return psms, 0
	}
	seen := make(map[string]bool, len(psms))
	kept := make([]*core.PSM, 0, len(psms))
	for _, p := range psms {
		key := DuplicateKey(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, p)
	}
	return kept, len(psms) - len(kept)
}

// Apply applies the engine, rank and decoy filters and returns the kept PSMs
// in input order. Duplicates are left to Deduplicate.
func (c *Config) Apply(psms []*core.PSM) ([]*core.PSM, Stats) {
	var stats Stats
	kept := make([]*core.PSM, 0, len(psms))

	for _, p := range psms {
		if len(c.Engines) > 0 && !matchesEngine(p.SearchEngine, c.Engines) {
			stats.Engine++
			continue
		}

		if c.TopN > 0 && p.Rank != nil && *p.Rank > c.TopN {
			stats.Rank++
			continue
		}

		if c.RemoveDecoys && p.IsDecoy && !p.IsImmutable {
			stats.Decoys++
			continue
		}

		kept = append(kept, p)
	}

	return kept, stats
}

// matchesEngine checks if engine is one of the allowed engines
func matchesEngine(engine string, engines []string) bool {
	for _, e := range engines {
		if strings.EqualFold(engine, e) {
			return true
		}
	}
	return false
}

// DuplicateKey identifies a PSM row: spectrum, engine, sequence,
// modifications and charge.
func DuplicateKey(p *core.PSM) string {
	return strings.Join([]string{
		p.SpectrumKey(),
		p.SearchEngine,
		strings.ToUpper(p.Sequence),
		p.ModString(),
		strconv.Itoa(p.Charge),
	}, "\x00")
}
