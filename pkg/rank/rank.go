// Package rank assigns per-spectrum competition ranks to PSMs using each
// engine's score field and score direction.
package rank

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

// Config holds the per-engine score field and direction.
type Config struct {
	ScoreField   map[string]string
	BiggerBetter map[string]bool
}

// Score returns the configured score of p, if the engine is configured and
// the value parses.
func (c Config) Score(p *core.PSM) (float64, bool) {
	field, ok := c.ScoreField[p.SearchEngine]
	if !ok {
		return 0, false
	}
	raw, ok := p.Extra[field]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Assign groups PSMs by (spectrum, engine) and sets Rank. Ties share the
// lowest rank of the tied block ("1224" ranking). PSMs of engines without a
// configured field and direction, or without a parsable score, keep a nil
// rank and do not take part. It returns the number of ranked PSMs.
func Assign(psms []*core.PSM, cfg Config) int {
	type groupKey struct{ spectrum, engine string }
	type scored struct {
		psm   *core.PSM
		score float64
	}

	groups := make(map[groupKey][]scored)
	var order []groupKey
	for _, p := range psms {
		p.Rank = nil
		if _, ok := cfg.BiggerBetter[p.SearchEngine]; !ok {
			continue
		}
		s, ok := cfg.Score(p)
		if !ok {
			continue
		}
		k := groupKey{p.SpectrumKey(), p.SearchEngine}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], scored{psm: p, score: s})
	}

	ranked := 0
	for _, k := range order {
		g := groups[k]
		bigger := cfg.BiggerBetter[k.engine]
		sort.SliceStable(g, func(i, j int) bool {
			if bigger {
				return g[i].score > g[j].score
			}
			return g[i].score < g[j].score
		})

		for i := range g {
			r := i + 1
			if i > 0 && g[i].score == g[i-1].score {
				r = *g[i-1].psm.Rank
			}
			g[i].psm.Rank = &r
			ranked++
		}
	}
	return ranked
}
