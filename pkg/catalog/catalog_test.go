package catalog

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
)

func testSpecs() []Spec {
	return []Spec{
		{AA: "C", Type: Fixed, Position: Any, Name: "Carbamidomethyl"},
		{AA: "M", Type: Optional, Position: Any, Name: "Oxidation"},
		{AA: "*", Type: Optional, Position: NTerm, Name: "Acetyl"},
		{AA: "K", Type: Optional, Position: Any, Name: "Acetyl"},
		{AA: "S", Type: Optional, Position: Any, Name: "Phospho"},
		{AA: "T", Type: Optional, Position: Any, Name: "Phospho"},
	}
}

func TestBuild(t *testing.T) {
	c, err := Build(testSpecs(), core.DefaultModDatabase(), 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if c.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", c.Len())
	}
	if c.Precision() != DefaultPrecision {
		t.Errorf("Precision() = %d, want %d", c.Precision(), DefaultPrecision)
	}

	var names []string
	for _, e := range c.Entries() {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"Acetyl", "Carbamidomethyl", "Oxidation", "Phospho"}, names); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}

	acetyl, ok := c.Entry("acetyl")
	if !ok {
		t.Fatal("case-insensitive Entry lookup failed")
	}
	if diff := cmp.Diff(map[string]bool{"*": true, "K": true}, acetyl.AminoAcids); diff != "" {
		t.Errorf("Acetyl amino acids mismatch (-want +got):\n%s", diff)
	}
	if !acetyl.NTerminal() || !acetyl.Positions[Any] {
		t.Errorf("Acetyl positions = %v, want N-term and any", acetyl.Positions)
	}

	phospho, _ := c.Entry("Phospho")
	if !phospho.AcceptsResidue('S') || !phospho.AcceptsResidue('T') || phospho.AcceptsResidue('Y') {
		t.Errorf("Phospho residues = %v", phospho.AminoAcids)
	}

	want := []FixedSite{{AA: "C", Position: Any, Name: "Carbamidomethyl"}}
	if diff := cmp.Diff(want, c.FixedSites()); diff != "" {
		t.Errorf("FixedSites() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		specs []Spec
	}{
		{"unknown name", []Spec{{AA: "C", Type: Fixed, Position: Any, Name: "NotAMod"}}},
		{"empty name", []Spec{{AA: "C", Type: Fixed, Position: Any}}},
		{"bad position", []Spec{{AA: "C", Type: Fixed, Position: "middle", Name: "Oxidation"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.specs, core.DefaultModDatabase(), 0)
			var cfgErr *core.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Build() error = %v, want ConfigurationError", err)
			}
			if cfgErr.Key != "modifications" {
				t.Errorf("ConfigurationError.Key = %s, want modifications", cfgErr.Key)
			}
		})
	}
}

func TestCompositeTable(t *testing.T) {
	c, err := Build(testSpecs(), core.DefaultModDatabase(), 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	table, err := BuildComposite(c, 0)
	if err != nil {
		t.Fatalf("BuildComposite() error = %v", err)
	}

	// 4 entries: C(4,2) + C(4,3) + C(4,4) = 6 + 4 + 1
	if table.Len() != 11 {
		t.Errorf("Len() = %d, want 11", table.Len())
	}

	cam, _ := c.Entry("Carbamidomethyl")
	ox, _ := c.Entry("Oxidation")
	combos := table.LookupMass(cam.Mass.Add(ox.Mass))
	if len(combos) != 1 {
		t.Fatalf("LookupMass(CAM+Ox) returned %d combinations, want 1", len(combos))
	}
	if diff := cmp.Diff([]string{"Carbamidomethyl", "Oxidation"}, Names(combos[0])); diff != "" {
		t.Errorf("combination mismatch (-want +got):\n%s", diff)
	}

	if got := table.Lookup("1.00000"); got != nil {
		t.Errorf("Lookup(1.00000) = %v, want nil", got)
	}
}

func TestCompositeTableAmbiguousOrder(t *testing.T) {
	db := core.NewModDatabase()
	db.Add("A", 1.0)
	db.Add("B", 2.0)
	db.Add("C", 3.0)
	db.Add("D", 0.5)
	db.Add("E", 2.5)
	specs := []Spec{
		{AA: "*", Type: Optional, Name: "A"},
		{AA: "*", Type: Optional, Name: "B"},
		{AA: "*", Type: Optional, Name: "C"},
		{AA: "*", Type: Optional, Name: "D"},
		{AA: "*", Type: Optional, Name: "E"},
	}
	c, err := Build(specs, db, 5)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	table, err := BuildComposite(c, 0)
	if err != nil {
		t.Fatalf("BuildComposite() error = %v", err)
	}

	// 3.5 = A+E = C+D = A+B+D
	var got [][]string
	for _, combo := range table.LookupMass(decimal.RequireFromString("3.5")) {
		got = append(got, Names(combo))
	}
	want := [][]string{{"A", "B", "D"}, {"A", "E"}, {"C", "D"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LookupMass(3.5) mismatch (-want +got):\n%s", diff)
	}

	found := false
	for _, k := range table.AmbiguousKeys() {
		if k == "3.50000" {
			found = true
		}
	}
	if !found {
		t.Errorf("AmbiguousKeys() = %v, want 3.50000 included", table.AmbiguousKeys())
	}
}

func TestCompositeTableLimit(t *testing.T) {
	db := core.NewModDatabase()
	var specs []Spec
	for i := 0; i < MaxEnumerableEntries+1; i++ {
		name := string(rune('a'+i%26)) + string(rune('A'+i/26))
		db.Add(name, float64(i+1))
		specs = append(specs, Spec{AA: "*", Type: Optional, Name: name})
	}
	c, err := Build(specs, db, 5)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := BuildComposite(c, 0); err == nil {
		t.Error("expected error for oversized catalog")
	}
	table, err := BuildComposite(c, 2)
	if err != nil {
		t.Fatalf("BuildComposite(maxSize=2) error = %v", err)
	}
	n := MaxEnumerableEntries + 1
	if table.Len() != n*(n-1)/2 {
		t.Errorf("Len() = %d, want %d", table.Len(), n*(n-1)/2)
	}
}

func TestCollisions(t *testing.T) {
	db := core.DefaultModDatabase()
	db.Add("TMT10plex", 229.162932)
	specs := []Spec{
		{AA: "K", Type: Fixed, Name: "TMT6plex"},
		{AA: "K", Type: Fixed, Name: "TMT10plex"},
		{AA: "M", Type: Optional, Name: "Oxidation"},
	}
	c, err := Build(specs, db, 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := [][]string{{"TMT10plex", "TMT6plex"}}
	if diff := cmp.Diff(want, c.Collisions()); diff != "" {
		t.Errorf("Collisions() mismatch (-want +got):\n%s", diff)
	}
}

func TestNear(t *testing.T) {
	c, err := Build(testSpecs(), core.DefaultModDatabase(), 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tol := decimal.RequireFromString("0.001")
	got := c.Near(decimal.RequireFromString("15.9949"), tol)
	if len(got) != 1 || got[0].Name != "Oxidation" {
		t.Errorf("Near(15.9949) = %v, want [Oxidation]", Names(got))
	}
	if got := c.Near(decimal.RequireFromString("15.9949"), decimal.Zero); len(got) != 0 {
		t.Errorf("Near(15.9949, 0) = %v, want none", Names(got))
	}

	table, err := BuildComposite(c, 0)
	if err != nil {
		t.Fatalf("BuildComposite() error = %v", err)
	}
	keys := table.NearKeys(decimal.RequireFromString("73.0164"), tol)
	if len(keys) != 1 {
		t.Fatalf("NearKeys(73.0164) = %v, want one key", keys)
	}
	if diff := cmp.Diff([]string{"Carbamidomethyl", "Oxidation"}, Names(table.Lookup(keys[0])[0])); diff != "" {
		t.Errorf("Lookup(%s) mismatch (-want +got):\n%s", keys[0], diff)
	}
}
