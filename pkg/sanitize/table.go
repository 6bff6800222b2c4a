package sanitize

import (
	"sort"
	"strings"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

// Table is the assembled output: canonical columns first, then engine
// specific columns sorted by name.
type Table struct {
	Header []string
	Rows   [][]string
}

// Build assembles PSMs into a sanitized table. Extra columns of every PSM
// are collected; PSMs lacking one get an empty value.
func Build(psms []*core.PSM) *Table {
	extraSet := make(map[string]bool)
	for _, p := range psms {
		for k := range p.Extra {
			if !IsCanonical(k) {
				extraSet[k] = true
			}
		}
	}
	extras := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extras = append(extras, k)
	}
	sort.Strings(extras)

	t := &Table{Header: append(append([]string(nil), Columns...), extras...)}
	for _, p := range psms {
		values := Values(p)
		row := make([]string, len(t.Header))
		for i, col := range t.Header {
			if v, ok := values[col]; ok {
				row[i] = v
			} else {
				row[i] = p.Extra[col]
			}
		}
		t.Rows = append(t.Rows, row)
	}

	t.Sanitize()
	return t
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	return indexOf(t.Header, name)
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns all values of column name, or nil when absent.
func (t *Table) Column(name string) []string {
	idx := t.Index(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// Sanitize inserts missing canonical columns with their defaults, reorders
// columns, and normalizes values by column type. Applying it to a
// sanitized table changes nothing.
func (t *Table) Sanitize() {
	var extras []string
	seen := make(map[string]bool, len(t.Header))
	for _, h := range t.Header {
		if !IsCanonical(h) && !seen[h] {
			extras = append(extras, h)
		}
		seen[h] = true
	}
	sort.Strings(extras)
	header := append(append([]string(nil), Columns...), extras...)

	src := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := src[h]; !dup {
			src[h] = i
		}
	}

	rawIdx := indexOf(header, ColRawDataLocation)
	titleIdx := indexOf(header, ColSpectrumTitle)

	rows := make([][]string, len(t.Rows))
	for r, old := range t.Rows {
		row := make([]string, len(header))
		for i, col := range header {
			j, ok := src[col]
			switch {
			case !ok:
				row[i] = Defaults[col]
			case j < len(old):
				row[i] = old[j]
			}
			row[i] = normalize(col, row[i])
		}
		row[rawIdx] = RawDataLocation(row[rawIdx], row[titleIdx])
		rows[r] = row
	}

	t.Header = header
	t.Rows = rows
}

func normalize(col, v string) string {
	switch col {
	case ColSequence:
		return strings.ToUpper(strings.TrimSpace(v))
	case ColModifications:
		return cleanModString(v)
	}
	if kind, ok := Dtypes[col]; ok {
		return FormatValue(kind, v)
	}
	return v
}
