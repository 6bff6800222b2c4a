package catalog

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

// MaxEnumerableEntries bounds full combination enumeration (2^N sums).
const MaxEnumerableEntries = 20

// CompositeTable maps a rounded mass key to every combination of two or more
// catalog entries whose summed mass rounds to that key. It is built once per
// catalog and immutable afterwards.
//
// Storage is flat: combination i spans members[offsets[i]:offsets[i+1]] (entry
// indices into Catalog.Entries). Keys are sorted by mass. Key k owns
// order[keyStart[k]:keyStart[k+1]], the ids of its combinations in
// lexicographic name order.
type CompositeTable struct {
	catalog  *Catalog
	keys     []string
	keyMass  []decimal.Decimal
	keyStart []int32
	order    []int32
	offsets  []int32
	members  []int32
}

// BuildComposite enumerates all combinations of size 2..maxSize (0 means the
// catalog size) and indexes them by their rounded summed mass.
func BuildComposite(c *Catalog, maxSize int) (*CompositeTable, error) {
	n := c.Len()
	if maxSize <= 0 || maxSize > n {
		maxSize = n
	}
	if maxSize > MaxEnumerableEntries {
		return nil, &core.ConfigurationError{
			Key:     "max_combination_size",
			Message: "combination size " + strconv.Itoa(maxSize) + " exceeds " + strconv.Itoa(MaxEnumerableEntries),
		}
	}

	t := &CompositeTable{catalog: c, offsets: []int32{0}}
	var keyOf []decimal.Decimal

	entries := c.Entries()
	stack := make([]int32, 0, maxSize)
	var walk func(start int, sum decimal.Decimal)
	walk = func(start int, sum decimal.Decimal) {
		for i := start; i < n; i++ {
			stack = append(stack, int32(i))
			s := sum.Add(entries[i].Mass)
			if len(stack) >= 2 {
				t.members = append(t.members, stack...)
				t.offsets = append(t.offsets, int32(len(t.members)))
				keyOf = append(keyOf, s.Round(c.precision))
			}
			if len(stack) < maxSize {
				walk(i+1, s)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if maxSize >= 2 {
		walk(0, decimal.Zero)
	}

	t.order = make([]int32, len(keyOf))
	for i := range t.order {
		t.order[i] = int32(i)
	}
	sort.Slice(t.order, func(a, b int) bool {
		ia, ib := t.order[a], t.order[b]
		if cmp := keyOf[ia].Cmp(keyOf[ib]); cmp != 0 {
			return cmp < 0
		}
		return t.less(ia, ib)
	})

	for i, id := range t.order {
		m := keyOf[id]
		if len(t.keyMass) == 0 || !t.keyMass[len(t.keyMass)-1].Equal(m) {
			t.keys = append(t.keys, c.MassKey(m))
			t.keyMass = append(t.keyMass, m)
			t.keyStart = append(t.keyStart, int32(i))
		}
	}
	t.keyStart = append(t.keyStart, int32(len(t.order)))

	return t, nil
}

// less orders combinations lexicographically by member names. Entries are
// sorted by name, so comparing entry indices is equivalent.
func (t *CompositeTable) less(a, b int32) bool {
	ma := t.combo(a)
	mb := t.combo(b)
	for i := 0; i < len(ma) && i < len(mb); i++ {
		if ma[i] != mb[i] {
			return ma[i] < mb[i]
		}
	}
	return len(ma) < len(mb)
}

func (t *CompositeTable) combo(id int32) []int32 {
	return t.members[t.offsets[id]:t.offsets[id+1]]
}

// Len returns the number of combinations in the table.
func (t *CompositeTable) Len() int { return len(t.order) }

// Keys returns the number of distinct mass keys.
func (t *CompositeTable) Keys() int { return len(t.keys) }

// Lookup returns the combinations explaining key in lexicographic name order.
func (t *CompositeTable) Lookup(key string) [][]*Entry {
	m, err := decimal.NewFromString(key)
	if err != nil {
		return nil
	}
	k := sort.Search(len(t.keyMass), func(i int) bool { return t.keyMass[i].Cmp(m) >= 0 })
	if k >= len(t.keys) || t.keys[k] != key {
		return nil
	}

	entries := t.catalog.Entries()
	ids := t.order[t.keyStart[k]:t.keyStart[k+1]]
	out := make([][]*Entry, 0, len(ids))
	for _, id := range ids {
		m := t.combo(id)
		combo := make([]*Entry, len(m))
		for i, idx := range m {
			combo[i] = entries[idx]
		}
		out = append(out, combo)
	}
	return out
}

// LookupMass is Lookup with the key derived from mass.
func (t *CompositeTable) LookupMass(mass decimal.Decimal) [][]*Entry {
	return t.Lookup(t.catalog.MassKey(mass))
}

// NearKeys returns the keys within tol of mass, closest first.
func (t *CompositeTable) NearKeys(mass, tol decimal.Decimal) []string {
	m := mass.Round(t.catalog.precision)
	lo := m.Sub(tol)
	hi := m.Add(tol)

	start := sort.Search(len(t.keyMass), func(i int) bool { return t.keyMass[i].Cmp(lo) >= 0 })
	var idx []int
	for i := start; i < len(t.keyMass) && t.keyMass[i].Cmp(hi) <= 0; i++ {
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return t.keyMass[idx[a]].Sub(m).Abs().Cmp(t.keyMass[idx[b]].Sub(m).Abs()) < 0
	})

	out := make([]string, len(idx))
	for i, k := range idx {
		out[i] = t.keys[k]
	}
	return out
}

// AmbiguousKeys returns the keys explained by more than one combination.
func (t *CompositeTable) AmbiguousKeys() []string {
	var out []string
	for k := range t.keys {
		if t.keyStart[k+1]-t.keyStart[k] > 1 {
			out = append(out, t.keys[k])
		}
	}
	return out
}

// Names returns the member names of a combination.
func Names(combo []*Entry) []string {
	names := make([]string, len(combo))
	for i, e := range combo {
		names[i] = e.Name
	}
	return names
}
