package tsv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ChrisMcGann/psmnorm/pkg/core"
	"github.com/ChrisMcGann/psmnorm/pkg/reader"
)

const testTSV = "ScanNum\tPeptide\tCharge\tProtein\tPrecursorMZ\tMods\tSpecEValue\n" +
	"scan=1\tPEPMK\t2\tsp|P1\t300.15\t15.9949@4\t1e-10\n" +
	"\t\t\t\t\t\t\n" +
	"scan=2\tACDK\t3+\tdecoy_P2\t\t\t0.5\n"

func TestReader(t *testing.T) {
	r, err := NewReader(strings.NewReader(testTSV), '\t', "msgfplus", "at")
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}

	var got []*core.PSM
	for r.Next() {
		got = append(got, r.Record())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	want := []*core.PSM{
		{
			SpectrumID:       "scan=1",
			Sequence:         "PEPMK",
			Charge:           2,
			ProteinID:        "sp|P1",
			ExpMZ:            300.15,
			RawModifications: "15.9949@4",
			RawNotation:      "at",
			SearchEngine:     "msgfplus",
			Extra:            map[string]string{"SpecEValue": "1e-10"},
		},
		{
			SpectrumID:   "scan=2",
			Sequence:     "ACDK",
			Charge:       3,
			ProteinID:    "decoy_P2",
			RawNotation:  "at",
			SearchEngine: "msgfplus",
			Extra:        map[string]string{"SpecEValue": "0.5"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderErrors(t *testing.T) {
	if _, err := NewReader(strings.NewReader("a,b\n1,2\n"), ',', "x", ""); err == nil {
		t.Error("expected error for header without sequence column")
	}

	r, err := NewReader(strings.NewReader("sequence,charge\nPEPK,two\n"), ',', "x", "")
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	if r.Next() {
		t.Fatal("Next() = true for invalid charge")
	}
	if r.Err() == nil || !strings.Contains(r.Err().Error(), "line 2") {
		t.Errorf("Err() = %v, want line 2 error", r.Err())
	}
}

func TestFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "comet_run1.csv")
	content := "Spectrum ID,Sequence,Charge,Search Engine,xcorr\nscan=9,PEPK,2,,3.1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("hello\tworld\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := Format{}
	if !f.CanParse(path) {
		t.Errorf("CanParse(%s) = false", path)
	}
	if f.CanParse(other) {
		t.Errorf("CanParse(%s) = true", other)
	}

	stream, err := reader.NewRegistry(f).Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	psms, err := reader.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(psms) != 1 {
		t.Fatalf("read %d records, want 1", len(psms))
	}
	if psms[0].SearchEngine != "comet_run1" {
		t.Errorf("SearchEngine = %s, want file name fallback", psms[0].SearchEngine)
	}
	if psms[0].Extra["xcorr"] != "3.1" {
		t.Errorf("Extra = %v", psms[0].Extra)
	}
}
