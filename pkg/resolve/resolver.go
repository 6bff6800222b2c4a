package resolve

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ChrisMcGann/psmnorm/pkg/catalog"
	"github.com/ChrisMcGann/psmnorm/pkg/core"
	"github.com/ChrisMcGann/psmnorm/pkg/position"
)

// DefaultTolerance is the mass tolerance (Da) between an observed delta and
// a catalog mass key. Engines commonly report three or four decimals.
var DefaultTolerance = decimal.RequireFromString("0.001")

// NameLookup is the external mass -> name service consulted when neither a
// single entry nor a combination explains an observed mass.
type NameLookup interface {
	NamesForMass(mass, tol float64) []string
}

// Resolution is the outcome of resolving the observed modifications of one PSM.
type Resolution struct {
	Mods []core.Modification
	// AmbiguousKeys lists mass keys explained by more than one eligible
	// combination. The lexicographically smallest combination was chosen.
	AmbiguousKeys []string
}

// Resolver maps observed modifications onto catalog entries. It only reads
// the catalog and composite table and is safe for concurrent use.
type Resolver struct {
	catalog   *catalog.Catalog
	table     *catalog.CompositeTable
	lookup    NameLookup
	positions *position.Normalizer
	tolerance decimal.Decimal
	logger    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTolerance sets the mass tolerance. Negative values are ignored.
func WithTolerance(tol decimal.Decimal) Option {
	return func(r *Resolver) {
		if !tol.IsNegative() {
			r.tolerance = tol
		}
	}
}

// WithNameLookup sets the external mass -> name service.
func WithNameLookup(l NameLookup) Option {
	return func(r *Resolver) { r.lookup = l }
}

// WithPositions sets the per-engine position normalizer.
func WithPositions(n *position.Normalizer) Option {
	return func(r *Resolver) { r.positions = n }
}

// New creates a resolver over a catalog and its composite table.
func New(c *catalog.Catalog, t *catalog.CompositeTable, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:   c,
		table:     t,
		positions: position.NewNormalizer(nil),
		tolerance: DefaultTolerance,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLogger sets the logger used for debug output.
func (r *Resolver) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Catalog returns the catalog the resolver was built from.
func (r *Resolver) Catalog() *catalog.Catalog { return r.catalog }

// Resolve maps the observed modifications of one PSM. The returned
// modifications are in observation order; callers sort them. Any observation
// that cannot be explained yields an *core.UnmappableModificationError.
func (r *Resolver) Resolve(engine, sequence string, observed []Observed) (Resolution, error) {
	var res Resolution
	for _, o := range observed {
		pos := r.positions.Residue(engine, o.Position, o.Terminal)
		var (
			mods      []core.Modification
			ambiguous string
			ok        bool
		)
		if o.HasMass {
			mods, ambiguous, ok = r.resolveMass(sequence, o.Mass, pos, o.Terminal)
		} else {
			mods, ok = r.resolveName(sequence, o.Name, pos, o.Terminal)
		}
		if !ok {
			return Resolution{}, &core.UnmappableModificationError{
				Sequence: sequence,
				Token:    o.Token,
				Position: pos,
			}
		}
		if ambiguous != "" {
			res.AmbiguousKeys = append(res.AmbiguousKeys, ambiguous)
		}
		res.Mods = append(res.Mods, mods...)
	}
	return res, nil
}

// resolveName handles engines reporting names, e.g. "Oxidation" or
// "Oxidation (M)".
func (r *Resolver) resolveName(sequence, name string, pos int, term position.Terminal) ([]core.Modification, bool) {
	e, ok := r.catalog.Entry(name)
	if !ok {
		if i := strings.Index(name, " ("); i > 0 {
			e, ok = r.catalog.Entry(name[:i])
		}
	}
	if !ok {
		return nil, false
	}
	p, ok := position.Place(e, sequence, pos, term)
	if !ok {
		return nil, false
	}
	return []core.Modification{{Name: e.Name, Position: p, Mass: e.MassFloat()}}, true
}

// resolveMass tries single entries, then combinations, then the external
// lookup. The second result is the key of an ambiguous combination choice.
func (r *Resolver) resolveMass(sequence string, mass decimal.Decimal, pos int, term position.Terminal) ([]core.Modification, string, bool) {
	for _, e := range r.catalog.Near(mass, r.tolerance) {
		if p, ok := position.Place(e, sequence, pos, term); ok {
			return []core.Modification{{Name: e.Name, Position: p, Mass: e.MassFloat()}}, "", true
		}
	}

	if r.table != nil {
		for _, key := range r.table.NearKeys(mass, r.tolerance) {
			var chosen []core.Modification
			eligible := 0
			for _, combo := range r.table.Lookup(key) {
				mods, ok := placeCombination(combo, sequence, pos, term)
				if !ok {
					continue
				}
				if eligible == 0 {
					chosen = mods
				}
				eligible++
			}
			if eligible == 1 {
				return chosen, "", true
			}
			if eligible > 1 {
				r.logger.Debug("ambiguous composite mass",
					zap.String("key", key),
					zap.String("sequence", sequence),
					zap.Int("eligible", eligible))
				return chosen, key, true
			}
		}
	}

	if r.lookup != nil {
		for _, name := range r.lookup.NamesForMass(mass.InexactFloat64(), r.tolerance.InexactFloat64()) {
			e, ok := r.catalog.Entry(name)
			if !ok {
				continue
			}
			if p, ok := position.Place(e, sequence, pos, term); ok {
				return []core.Modification{{Name: e.Name, Position: p, Mass: e.MassFloat()}}, "", true
			}
		}
	}

	return nil, "", false
}

// placeCombination places every member of combo at pos or an adjacent
// residue. All members must be placeable for the combination to count.
func placeCombination(combo []*catalog.Entry, sequence string, pos int, term position.Terminal) ([]core.Modification, bool) {
	mods := make([]core.Modification, 0, len(combo))
	for _, e := range combo {
		p, ok := placeNear(e, sequence, pos, term)
		if !ok {
			return nil, false
		}
		mods = append(mods, core.Modification{Name: e.Name, Position: p, Mass: e.MassFloat()})
	}
	return mods, true
}

func placeNear(e *catalog.Entry, sequence string, pos int, term position.Terminal) (int, bool) {
	if p, ok := position.Place(e, sequence, pos, term); ok {
		return p, true
	}
	if term != position.Residue {
		return 0, false
	}
	for _, adj := range []int{pos - 1, pos + 1} {
		if adj < 1 || adj > len(sequence) {
			continue
		}
		if e.SideChainEligible(sequence[adj-1]) {
			return adj, true
		}
	}
	return 0, false
}
